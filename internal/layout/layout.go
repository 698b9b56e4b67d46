// Package layout computes memory layout for concrete types: record sizes
// for the ownership size classes, and the discriminant-plus-payload shape
// of tag types consumed by the emitter.
package layout

import (
	"fmt"
	"strings"

	"autoc/internal/ast"
	"autoc/internal/mono"
	"autoc/internal/types"
)

// TypeLayout is the ABI layout of a concrete type.
type TypeLayout struct {
	Size  int
	Align int

	// Record-only:
	FieldOffsets []int

	// Tag-only, for ABI queries:
	TagSize       int
	TagAlign      int
	PayloadOffset int

	// HeapBacked marks types owning heap storage (str, slices, and any
	// record containing one).
	HeapBacked bool
}

// SizeClass drives the ownership classifier's defaults.
type SizeClass uint8

const (
	// ClassSmall is a fixed-size scalar or small record: copied by default.
	ClassSmall SizeClass = iota
	// ClassLarge is a large aggregate: referenced by default.
	ClassLarge
	// ClassHeap is a heap-backed aggregate: referenced by default.
	ClassHeap
)

func (c SizeClass) String() string {
	switch c {
	case ClassSmall:
		return "small"
	case ClassLarge:
		return "large"
	case ClassHeap:
		return "heap"
	}
	return "invalid"
}

// Engine computes and caches layouts for one monomorphized module.
type Engine struct {
	Target Target
	Module *mono.Module

	cache map[types.TypeID]TypeLayout
}

// New creates a layout engine for the given module.
func New(target Target, mm *mono.Module) *Engine {
	return &Engine{
		Target: target,
		Module: mm,
		cache:  make(map[types.TypeID]TypeLayout, 64),
	}
}

// Of computes and caches the layout of a type.
func (e *Engine) Of(id types.TypeID) (TypeLayout, error) {
	state := &layoutState{index: make(map[types.TypeID]int, 8)}
	return e.of(id, state)
}

// OfRef resolves a concrete type reference and computes its layout.
func (e *Engine) OfRef(ref ast.TypeRef) (TypeLayout, error) {
	return e.Of(e.RefID(ref))
}

// RefID interns a concrete type reference. Post-monomorphization refs
// carry no type arguments, so the mapping is direct.
func (e *Engine) RefID(ref ast.TypeRef) types.TypeID {
	in := e.Module.Interner
	switch {
	case ref.Ptr != nil:
		return in.Ptr(e.RefID(*ref.Ptr))
	case ref.Slice != nil:
		return in.Slice(e.RefID(*ref.Slice))
	}
	bi := in.Builtins()
	switch ref.Name {
	case "", "void":
		return bi.Void
	case "bool":
		return bi.Bool
	case "int":
		return bi.Int
	case "float":
		return bi.Float
	case "char":
		return bi.Char
	case "str":
		return bi.Str
	}
	return in.Named(ref.Name)
}

// ClassOf returns the size class driving parameter passing defaults.
func (e *Engine) ClassOf(id types.TypeID) (SizeClass, error) {
	l, err := e.Of(id)
	if err != nil {
		return ClassLarge, err
	}
	if l.HeapBacked {
		return ClassHeap, nil
	}
	if l.Size <= 2*e.Target.PtrSize {
		return ClassSmall, nil
	}
	return ClassLarge, nil
}

// ClassOfRef is ClassOf over a type reference.
func (e *Engine) ClassOfRef(ref ast.TypeRef) (SizeClass, error) {
	return e.ClassOf(e.RefID(ref))
}

type layoutState struct {
	stack []types.TypeID
	index map[types.TypeID]int
}

func (e *Engine) of(id types.TypeID, state *layoutState) (TypeLayout, error) {
	if cached, ok := e.cache[id]; ok {
		return cached, nil
	}
	if idx, ok := state.index[id]; ok {
		cycle := append([]types.TypeID(nil), state.stack[idx:]...)
		cycle = append(cycle, id)
		return TypeLayout{}, e.recursiveErr(cycle)
	}
	state.index[id] = len(state.stack)
	state.stack = append(state.stack, id)

	l, err := e.compute(id, state)

	state.stack = state.stack[:len(state.stack)-1]
	delete(state.index, id)

	if err != nil {
		return TypeLayout{}, err
	}
	e.cache[id] = l
	return l, nil
}

func (e *Engine) recursiveErr(cycle []types.TypeID) error {
	in := e.Module.Interner
	parts := make([]string, 0, len(cycle))
	for _, id := range cycle {
		parts = append(parts, in.String(id))
	}
	return fmt.Errorf("recursive value type has infinite size (cycle: %s); break it with an indirection",
		strings.Join(parts, " -> "))
}

func (e *Engine) compute(id types.TypeID, state *layoutState) (TypeLayout, error) {
	in := e.Module.Interner
	tt, ok := in.Lookup(id)
	if !ok {
		return TypeLayout{Size: 0, Align: 1}, nil
	}

	switch tt.Kind {
	case types.KindVoid:
		return TypeLayout{Size: 0, Align: 1}, nil
	case types.KindBool, types.KindChar:
		return TypeLayout{Size: 1, Align: 1}, nil
	case types.KindInt:
		return TypeLayout{Size: 8, Align: 8}, nil
	case types.KindFloat:
		return TypeLayout{Size: 8, Align: 8}, nil
	case types.KindStr:
		// ptr + len view over heap storage
		return TypeLayout{
			Size:       2 * e.Target.PtrSize,
			Align:      e.Target.PtrAlign,
			HeapBacked: true,
		}, nil
	case types.KindPtr:
		// indirected fields are opaque references during layout
		return TypeLayout{Size: e.Target.PtrSize, Align: e.Target.PtrAlign}, nil
	case types.KindSlice:
		return TypeLayout{
			Size:       2 * e.Target.PtrSize,
			Align:      e.Target.PtrAlign,
			HeapBacked: true,
		}, nil
	case types.KindNamed:
		td, ok := e.Module.TypeByName(tt.Name)
		if !ok {
			// externally provided type; assume pointer-sized opaque value
			return TypeLayout{Size: e.Target.PtrSize, Align: e.Target.PtrAlign}, nil
		}
		return e.computeDecl(td, state)
	}
	return TypeLayout{Size: 0, Align: 1}, nil
}

func (e *Engine) computeDecl(td *ast.TypeDecl, state *layoutState) (TypeLayout, error) {
	switch td.Kind {
	case ast.TypeEnum:
		return TypeLayout{Size: 4, Align: 4, TagSize: 4, TagAlign: 4}, nil

	case ast.TypeRecord:
		out := TypeLayout{Align: 1}
		for _, f := range td.Fields {
			fl, err := e.of(e.RefID(f.Type), state)
			if err != nil {
				return TypeLayout{}, err
			}
			out.Size = alignUp(out.Size, fl.Align)
			out.FieldOffsets = append(out.FieldOffsets, out.Size)
			out.Size += fl.Size
			if fl.Align > out.Align {
				out.Align = fl.Align
			}
			out.HeapBacked = out.HeapBacked || fl.HeapBacked
		}
		out.Size = alignUp(out.Size, out.Align)
		return out, nil

	case ast.TypeTag:
		// discriminant, then a payload wide enough for the largest variant
		out := TypeLayout{TagSize: 4, TagAlign: 4, Size: 4, Align: 4}
		payloadSize, payloadAlign := 0, 1
		for _, v := range td.Variants {
			vs, va := 0, 1
			for _, f := range v.Fields {
				fl, err := e.of(e.RefID(f.Type), state)
				if err != nil {
					return TypeLayout{}, err
				}
				vs = alignUp(vs, fl.Align) + fl.Size
				if fl.Align > va {
					va = fl.Align
				}
				out.HeapBacked = out.HeapBacked || fl.HeapBacked
			}
			if vs > payloadSize {
				payloadSize = vs
			}
			if va > payloadAlign {
				payloadAlign = va
			}
		}
		if payloadSize > 0 {
			out.PayloadOffset = alignUp(out.TagSize, payloadAlign)
			out.Size = out.PayloadOffset + payloadSize
			if payloadAlign > out.Align {
				out.Align = payloadAlign
			}
		}
		out.Size = alignUp(out.Size, out.Align)
		return out, nil
	}
	return TypeLayout{Size: 0, Align: 1}, nil
}

func alignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	rem := n % align
	if rem == 0 {
		return n
	}
	return n + align - rem
}
