package scan

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/projgen/internal/project"
)

// DeclarationFile marks a project directory.
const DeclarationFile = "build.yaml"

type declaration struct {
	App        bool                  `yaml:"app"`
	DevOnly    bool                  `yaml:"devonly"`
	EngineOnly bool                  `yaml:"engineonly"`
	Tests      bool                  `yaml:"tests"`
	Dependency stringList            `yaml:"dependency"`
	PublicLib  stringList            `yaml:"publiclib"`
	PrivateLib stringList            `yaml:"privatelib"`
	Options    map[string]stringList `yaml:"options"`
}

// stringList accepts a scalar or a sequence.
type stringList []string

func (l *stringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*l = stringList{s}
		return nil
	case yaml.SequenceNode:
		var ss []string
		if err := node.Decode(&ss); err != nil {
			return err
		}
		*l = ss
		return nil
	default:
		return fmt.Errorf("line %d: expected a string or a list of strings", node.Line)
	}
}

func parseDeclaration(path string) (project.Attributes, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return project.Attributes{}, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var d declaration
	if err := dec.Decode(&d); err != nil && !errors.Is(err, io.EOF) {
		return project.Attributes{}, err
	}
	for _, list := range [][]string{d.Dependency, d.PublicLib, d.PrivateLib} {
		for _, name := range list {
			if name == "" {
				return project.Attributes{}, fmt.Errorf("empty dependency name")
			}
		}
	}

	attrs := project.Attributes{
		App:          d.App,
		DevOnly:      d.DevOnly,
		EngineOnly:   d.EngineOnly,
		HasTests:     d.Tests,
		Dependencies: []string(d.Dependency),
		PublicLibs:   []string(d.PublicLib),
		PrivateLibs:  []string(d.PrivateLib),
		Extra:        project.Options{},
	}
	for k, v := range d.Options {
		attrs.Extra.Add(k, v...)
	}
	return attrs, nil
}
