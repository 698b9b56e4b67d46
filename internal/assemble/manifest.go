package assemble

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// Manifest describes one module's fragment set, parsed from autoc.toml.
type Manifest struct {
	// Name is the module name; artifacts are named <Name>.h / <Name>.c.
	Name string
	// Shared lists fragment files loaded for every scenario.
	Shared []string
	// Scenarios maps a scenario name to its fragment files.
	Scenarios map[string][]string
	// Dir is the directory the manifest was loaded from; fragment paths
	// are resolved relative to it.
	Dir string
}

var (
	// ErrModuleSectionMissing indicates that [module] is missing.
	ErrModuleSectionMissing = errors.New("missing [module]")
	// ErrModuleNameMissing indicates that [module].name is missing.
	ErrModuleNameMissing = errors.New("missing [module].name")
)

type manifestFile struct {
	Module struct {
		Name   string   `toml:"name"`
		Shared []string `toml:"shared"`
	} `toml:"module"`
	Scenario map[string]scenarioSection `toml:"scenario"`
}

type scenarioSection struct {
	Fragments []string `toml:"fragments"`
}

// LoadManifest parses an autoc.toml module manifest.
func LoadManifest(path string) (*Manifest, error) {
	var cfg manifestFile
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if !meta.IsDefined("module") {
		return nil, fmt.Errorf("%s: %w", path, ErrModuleSectionMissing)
	}
	name := strings.TrimSpace(cfg.Module.Name)
	if !meta.IsDefined("module", "name") || name == "" {
		return nil, fmt.Errorf("%s: %w", path, ErrModuleNameMissing)
	}

	m := &Manifest{
		Name:      name,
		Shared:    cfg.Module.Shared,
		Scenarios: make(map[string][]string, len(cfg.Scenario)),
		Dir:       filepath.Dir(path),
	}
	for sc, section := range cfg.Scenario {
		m.Scenarios[sc] = section.Fragments
	}
	return m, nil
}

// FragmentPaths returns the fragment files for a scenario: scenario-specific
// files first, shared files second, each group in manifest order. A missing
// scenario section silently falls back to shared-only content.
func (m *Manifest) FragmentPaths(scenario Scenario) []string {
	out := make([]string, 0, len(m.Shared)+4)
	for _, p := range m.Scenarios[string(scenario)] {
		out = append(out, filepath.Join(m.Dir, p))
	}
	for _, p := range m.Shared {
		out = append(out, filepath.Join(m.Dir, p))
	}
	return out
}

// ScenarioNames returns the declared scenario names, sorted.
func (m *Manifest) ScenarioNames() []string {
	out := make([]string, 0, len(m.Scenarios))
	for sc := range m.Scenarios {
		out = append(out, sc)
	}
	sort.Strings(out)
	return out
}
