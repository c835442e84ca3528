package library

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ManifestFile is the file name that marks a library directory.
const ManifestFile = "library.yaml"

type manifest struct {
	Name     string           `yaml:"name"`
	External string           `yaml:"external"`
	Configs  []manifestConfig `yaml:"configs"`
}

type manifestConfig struct {
	Platforms string          `yaml:"platforms"`
	Configs   string          `yaml:"configs"`
	Include   []string        `yaml:"include"`
	Link      []string        `yaml:"link"`
	Deploy    []DeployFile    `yaml:"deploy"`
	System    []SystemLibrary `yaml:"system"`
}

// HasManifest reports whether dir holds a library manifest.
func HasManifest(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, ManifestFile))
	return err == nil && !info.IsDir()
}

func readManifest(path string) (*manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var m manifest
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return &m, nil
		}
		return nil, err
	}
	for i, c := range m.Configs {
		for j, d := range c.Deploy {
			if d.Source == "" {
				return nil, fmt.Errorf("configs[%d].deploy[%d]: source is required", i, j)
			}
		}
		for j, s := range c.System {
			if s.Name == "" {
				return nil, fmt.Errorf("configs[%d].system[%d]: name is required", i, j)
			}
		}
	}
	return &m, nil
}

// build turns a parsed manifest into a Library rooted at root. Relative
// include, link and deploy source paths resolve against root.
func (m *manifest) build(name, dir, root string) *Library {
	lib := &Library{
		Name:        name,
		Dir:         dir,
		Root:        root,
		External:    m.External,
		WellDefined: true,
	}
	for _, c := range m.Configs {
		state := MergedState{SystemLibs: append([]SystemLibrary(nil), c.System...)}
		for _, p := range c.Include {
			state.IncludePaths = appendUnique(state.IncludePaths, resolvePath(root, p))
		}
		for _, p := range c.Link {
			state.LinkPaths = appendUnique(state.LinkPaths, resolvePath(root, p))
		}
		for _, d := range c.Deploy {
			target := d.Target
			if target == "" {
				target = filepath.Base(d.Source)
			}
			state.DeployFiles = appendUnique(state.DeployFiles, DeployFile{Source: resolvePath(root, d.Source), Target: target})
		}
		lib.Configs = append(lib.Configs, Config{
			Selector: ParseSelector(c.Platforms, c.Configs),
			State:    state,
		})
	}
	return lib
}

func resolvePath(root, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(root, p)
}
