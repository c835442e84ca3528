// Package report renders a human-readable summary of a generator run as
// Markdown and, through goldmark, as a standalone HTML page.
//
// Reports only carry data derived from the inputs so an unchanged tree
// produces byte-identical reports and the output commit leaves them alone.
package report

import (
	"bytes"
	"fmt"
	"html"
	"path/filepath"
	"slices"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"git.home.luguber.info/inful/projgen/internal/output"
	"git.home.luguber.info/inful/projgen/internal/project"
)

// Summary is the input of a report.
type Summary struct {
	Solution       string
	Platform       string
	Configuration  string
	Build          string
	Projects       int
	Enabled        int
	Libraries      int
	Passes         int
	Exclusions     []project.Exclusion
	Cycles         []string
	FailedPackages map[string]string
}

// Markdown renders the summary.
func Markdown(s Summary) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# %s\n\n", s.Solution)
	fmt.Fprintf(&b, "Platform `%s`, configuration `%s`, build `%s`.\n\n", s.Platform, s.Configuration, s.Build)

	b.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Projects | %d |\n", s.Projects)
	fmt.Fprintf(&b, "| Enabled | %d |\n", s.Enabled)
	fmt.Fprintf(&b, "| Excluded | %d |\n", len(s.Exclusions))
	fmt.Fprintf(&b, "| Libraries | %d |\n", s.Libraries)
	fmt.Fprintf(&b, "| Propagation passes | %d |\n", s.Passes)
	b.WriteString("\n")

	if len(s.Exclusions) > 0 {
		b.WriteString("## Excluded projects\n\n| Project | Reason | Detail |\n|---|---|---|\n")
		for _, e := range s.Exclusions {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", cell(e.Project), e.Reason, cell(e.Detail))
		}
		b.WriteString("\n")
	}

	if len(s.Cycles) > 0 {
		b.WriteString("## Dependency cycles\n\n")
		for _, c := range s.Cycles {
			fmt.Fprintf(&b, "- `%s`\n", c)
		}
		b.WriteString("\n")
	}

	if len(s.FailedPackages) > 0 {
		b.WriteString("## Unavailable packages\n\n")
		names := make([]string, 0, len(s.FailedPackages))
		for n := range s.FailedPackages {
			names = append(names, n)
		}
		slices.Sort(names)
		for _, n := range names {
			fmt.Fprintf(&b, "- **%s**: %s\n", n, oneLine(s.FailedPackages[n]))
		}
		b.WriteString("\n")
	}
	return b.Bytes()
}

// HTML converts Markdown into a complete HTML document.
func HTML(title string, md []byte) ([]byte, error) {
	conv := goldmark.New(goldmark.WithExtensions(extension.Table))
	var body bytes.Buffer
	if err := conv.Convert(md, &body); err != nil {
		return nil, fmt.Errorf("convert report: %w", err)
	}
	var b bytes.Buffer
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(title))
	b.WriteString("</head>\n<body>\n")
	b.Write(body.Bytes())
	b.WriteString("</body>\n</html>\n")
	return b.Bytes(), nil
}

// Write registers <dir>/<solution>.report.md and .report.html in asm.
func Write(asm *output.Assembly, dir string, s Summary) error {
	md := Markdown(s)
	page, err := HTML(s.Solution, md)
	if err != nil {
		return err
	}
	for name, content := range map[string][]byte{
		s.Solution + ".report.md":   md,
		s.Solution + ".report.html": page,
	} {
		art, err := asm.Create(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if _, err := art.Write(content); err != nil {
			return err
		}
	}
	return nil
}

func cell(s string) string { return strings.ReplaceAll(oneLine(s), "|", "\\|") }

func oneLine(s string) string { return strings.Join(strings.Fields(s), " ") }
