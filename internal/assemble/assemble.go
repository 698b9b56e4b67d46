// Package assemble merges the source fragments of one module into a single
// ModuleUnit before any type analysis runs.
//
// Fragments come in two scopes: shared (loaded for every scenario) and
// scenario-specific. Scenario declarations are merged first so they can
// complete or override stub declarations from the shared fragment; a
// duplicate symbol within the same scope is a hard error, never an
// override.
package assemble

import (
	"fmt"
	"os"

	"autoc/internal/ast"
	"autoc/internal/diag"
	"autoc/internal/source"
)

// Assemble merges fragments into one ModuleUnit. Fragments whose Scenario
// matches neither the selector nor the shared scope are ignored, so a
// caller may pass a module's full fragment set.
//
// On conflict the returned unit is nil and the bag holds the error.
func Assemble(module string, scenario Scenario, frags []*ast.Fragment, bag *diag.Bag) (*ast.ModuleUnit, error) {
	unit := &ast.ModuleUnit{
		Name:     module,
		Scenario: string(scenario),
	}

	// scenario scope first, shared second
	ordered := make([]*ast.Fragment, 0, len(frags))
	for _, f := range frags {
		if f.Scenario == string(scenario) {
			ordered = append(ordered, f)
		}
	}
	sharedStart := len(ordered)
	for _, f := range frags {
		if f.Shared() {
			ordered = append(ordered, f)
		}
	}

	if len(ordered) == 0 {
		bag.Add(diag.NewError(diag.AsmEmptyModule,
			unit.SpanOf(),
			fmt.Sprintf("module %q has no fragments for scenario %q", module, scenario)).
			At(module, ""))
		return nil, bag.Err()
	}

	// seenTypes / seenValues record which scope (index into the ordered
	// groups) first declared a symbol. Types and value symbols (functions,
	// globals) live in separate namespaces, as they do in the target.
	type origin struct {
		shared bool
		path   string
	}
	seenTypes := make(map[string]origin)
	seenValues := make(map[string]origin)
	includes := make(map[string]bool)

	for i, f := range ordered {
		shared := i >= sharedStart

		for _, inc := range f.Includes {
			includes[inc] = true
		}

		for _, td := range f.Types {
			if prev, dup := seenTypes[td.Name]; dup {
				if prev.shared == shared {
					bag.Add(diag.NewError(diag.AsmDuplicateSymbol, td.Span,
						fmt.Sprintf("type %q declared in both %s and %s", td.Name, prev.path, f.Path)).
						At(module, td.Name))
					continue
				}
				// cross-scope: the scenario declaration already won
				continue
			}
			seenTypes[td.Name] = origin{shared: shared, path: f.Path}
			unit.Types = append(unit.Types, td)
		}

		for _, fn := range f.Funcs {
			if prev, dup := seenValues[fn.Name]; dup {
				if prev.shared == shared {
					bag.Add(diag.NewError(diag.AsmDuplicateSymbol, fn.Span,
						fmt.Sprintf("function %q declared in both %s and %s", fn.Name, prev.path, f.Path)).
						At(module, fn.Name))
				}
				continue
			}
			seenValues[fn.Name] = origin{shared: shared, path: f.Path}
			unit.Funcs = append(unit.Funcs, fn)
		}

		for _, g := range f.Globals {
			if prev, dup := seenValues[g.Name]; dup {
				if prev.shared == shared {
					bag.Add(diag.NewError(diag.AsmDuplicateSymbol, g.Span,
						fmt.Sprintf("global %q declared in both %s and %s", g.Name, prev.path, f.Path)).
						At(module, g.Name))
				}
				continue
			}
			seenValues[g.Name] = origin{shared: shared, path: f.Path}
			unit.Globals = append(unit.Globals, g)
		}
	}

	// deterministic include order is the emitter's job; here we only dedup
	for inc := range includes {
		unit.Includes = append(unit.Includes, inc)
	}

	if bag.HasErrors() {
		return nil, bag.Err()
	}
	return unit, nil
}

// LoadFragments reads and decodes fragment files for a manifest and
// scenario selection.
func LoadFragments(m *Manifest, scenario Scenario, bag *diag.Bag) ([]*ast.Fragment, error) {
	paths := m.FragmentPaths(scenario)
	frags := make([]*ast.Fragment, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			bag.Add(diag.NewError(diag.AsmBadFragment, source.Span{},
				fmt.Sprintf("read fragment %s: %v", p, err)).At(m.Name, ""))
			return nil, bag.Err()
		}
		f, err := ast.DecodeFragment(data)
		if err != nil {
			bag.Add(diag.NewError(diag.AsmBadFragment, source.Span{},
				fmt.Sprintf("fragment %s: %v", p, err)).At(m.Name, ""))
			return nil, bag.Err()
		}
		if f.Path == "" {
			f.Path = p
		}
		frags = append(frags, f)
	}
	return frags, nil
}

// Load is the convenience entry used by the driver: manifest in, merged
// unit out.
func Load(manifestPath string, scenario Scenario, bag *diag.Bag) (*ast.ModuleUnit, error) {
	m, err := LoadManifest(manifestPath)
	if err != nil {
		bag.Add(diag.NewError(diag.AsmBadManifest, source.Span{}, err.Error()))
		return nil, bag.Err()
	}
	frags, err := LoadFragments(m, scenario, bag)
	if err != nil {
		return nil, err
	}
	return Assemble(m.Name, scenario, frags, bag)
}
