package report

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/projgen/internal/output"
	"git.home.luguber.info/inful/projgen/internal/project"
)

func sample() Summary {
	return Summary{
		Solution:      "engine",
		Platform:      "win",
		Configuration: "Debug",
		Build:         "dev",
		Projects:      5,
		Enabled:       3,
		Libraries:     2,
		Passes:        2,
		Exclusions: []project.Exclusion{
			{Project: "net", Reason: project.ReasonMissingLibrary, Detail: "openssl"},
			{Project: "web", Reason: project.ReasonPropagated, Detail: "web -> net | tls"},
		},
		Cycles:         []string{"cycle: a -> b -> a"},
		FailedPackages: map[string]string{"sdk": "network (warning): package fetch failed:\n404"},
	}
}

func TestMarkdown(t *testing.T) {
	md := string(Markdown(sample()))
	assert.True(t, strings.HasPrefix(md, "# engine\n"))
	assert.Contains(t, md, "| Excluded | 2 |")
	assert.Contains(t, md, "| net | missing-library | openssl |")
	assert.Contains(t, md, `web -> net \| tls`, "pipes are escaped in table cells")
	assert.Contains(t, md, "- `cycle: a -> b -> a`")
	assert.Contains(t, md, "- **sdk**: network (warning): package fetch failed: 404")
}

func TestMarkdownOmitsEmptySections(t *testing.T) {
	md := string(Markdown(Summary{Solution: "s"}))
	assert.NotContains(t, md, "## ")
}

func TestHTML(t *testing.T) {
	page, err := HTML("engine <x>", Markdown(sample()))
	require.NoError(t, err)
	s := string(page)
	assert.Contains(t, s, "<title>engine &lt;x&gt;</title>")
	assert.Contains(t, s, "<table>")
	assert.Contains(t, s, "<h2>Excluded projects</h2>")
	assert.Contains(t, s, "<td>openssl</td>")
}

func TestWriteIsStable(t *testing.T) {
	dir := t.TempDir()
	asm := output.NewAssembly()
	require.NoError(t, Write(asm, dir, sample()))
	n, err := asm.Commit(false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	again := output.NewAssembly()
	require.NoError(t, Write(again, dir, sample()))
	n, err = again.Commit(false)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "identical runs produce identical reports")

	arts := again.Artifacts()
	assert.Equal(t, filepath.Join(dir, "engine.report.html"), arts[0].Path())
	assert.Equal(t, filepath.Join(dir, "engine.report.md"), arts[1].Path())
}
