package ast

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/text/unicode/norm"

	"autoc/internal/source"
)

// Fragment is one source unit contributing declarations to a module, as
// serialized by the front end. Shared fragments are loaded for every
// scenario; the rest only for their own.
type Fragment struct {
	// Module is the logical module this fragment belongs to.
	Module string
	// Path is the fragment file path, for diagnostics.
	Path string
	// Scenario is empty for shared fragments, otherwise the scenario name
	// the fragment is specific to.
	Scenario string
	// Includes lists target-language headers the fragment's externals
	// need, e.g. "stdio.h" or "auto/str.h".
	Includes []string

	Types   []*TypeDecl
	Funcs   []*FnDecl
	Globals []*GlobalDecl
}

// Shared reports whether the fragment is scenario-independent.
func (f *Fragment) Shared() bool {
	return f.Scenario == ""
}

// DecodeFragment parses a msgpack-encoded fragment produced by the front
// end and NFC-normalizes every identifier so symbol comparison and name
// mangling are stable across front-end encodings.
func DecodeFragment(data []byte) (*Fragment, error) {
	var f Fragment
	if err := msgpack.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode fragment: %w", err)
	}
	normalizeFragment(&f)
	return &f, nil
}

// EncodeFragment serializes a fragment; the driver uses it for cache
// fixtures and tests for round-trips.
func EncodeFragment(f *Fragment) ([]byte, error) {
	return msgpack.Marshal(f)
}

func normalizeFragment(f *Fragment) {
	f.Module = norm.NFC.String(f.Module)
	for _, td := range f.Types {
		td.Name = norm.NFC.String(td.Name)
		for i := range td.Params {
			td.Params[i] = norm.NFC.String(td.Params[i])
		}
		for i := range td.Fields {
			td.Fields[i].Name = norm.NFC.String(td.Fields[i].Name)
		}
		for i := range td.Variants {
			td.Variants[i].Name = norm.NFC.String(td.Variants[i].Name)
			for j := range td.Variants[i].Fields {
				td.Variants[i].Fields[j].Name = norm.NFC.String(td.Variants[i].Fields[j].Name)
			}
		}
		for _, m := range td.Methods {
			m.Name = norm.NFC.String(m.Name)
			for i := range m.Params {
				m.Params[i].Name = norm.NFC.String(m.Params[i].Name)
			}
		}
	}
	for _, fn := range f.Funcs {
		fn.Name = norm.NFC.String(fn.Name)
		for i := range fn.Params {
			fn.Params[i].Name = norm.NFC.String(fn.Params[i].Name)
		}
	}
	for _, g := range f.Globals {
		g.Name = norm.NFC.String(g.Name)
	}
}

// ModuleUnit is the merged, single-module program tree. It is created once
// per module by the assembler and read-only for every later pass.
type ModuleUnit struct {
	Name     string
	Scenario string
	Includes []string

	Types   []*TypeDecl
	Funcs   []*FnDecl
	Globals []*GlobalDecl
}

// TypeByName looks up a type declaration.
func (u *ModuleUnit) TypeByName(name string) (*TypeDecl, bool) {
	for _, td := range u.Types {
		if td.Name == name {
			return td, true
		}
	}
	return nil, false
}

// FuncByName looks up a free function declaration.
func (u *ModuleUnit) FuncByName(name string) (*FnDecl, bool) {
	for _, fn := range u.Funcs {
		if fn.Name == name {
			return fn, true
		}
	}
	return nil, false
}

// SpanOf returns a representative span for module-level diagnostics.
func (u *ModuleUnit) SpanOf() source.Span {
	if len(u.Types) > 0 {
		return u.Types[0].Span
	}
	if len(u.Funcs) > 0 {
		return u.Funcs[0].Span
	}
	return source.Span{}
}
