// Package own assigns a passing strategy to every parameter binding before
// method lowering runs. The strategy is derived once, here, from the
// binding's declared intent and the size class of its type; later passes
// read the tag and never re-derive it.
package own

import (
	"autoc/internal/ast"
	"autoc/internal/source"
)

// Mode is the passing strategy of one binding.
type Mode uint8

const (
	ModeInvalid Mode = iota
	// ModeCopy passes by value. Small scalars and records default here;
	// transfer-of-ownership bindings land here regardless of size.
	ModeCopy
	// ModeRefImm passes a read-only reference. Default for large and
	// heap-backed aggregates.
	ModeRefImm
	// ModeRefMut passes a mutable reference for in-place mutation.
	ModeRefMut
	// ModePointer passes a raw address. Only produced for an explicit addr
	// intent, and only legal when the body is opened for low-level access.
	ModePointer
)

func (m Mode) String() string {
	switch m {
	case ModeCopy:
		return "copy"
	case ModeRefImm:
		return "ref"
	case ModeRefMut:
		return "mut ref"
	case ModePointer:
		return "pointer"
	}
	return "invalid"
}

// ByRef reports whether the callee receives an address rather than a value.
func (m Mode) ByRef() bool {
	return m == ModeRefImm || m == ModeRefMut || m == ModePointer
}

// ParamClass is one classified parameter slot.
type ParamClass struct {
	Name string
	Type ast.TypeRef
	Mode Mode
	Span source.Span
}

// FnClass is the classification of one function or method. Receiver is nil
// for free functions and static methods; Result is nil for void returns.
type FnClass struct {
	Name     string
	Receiver *ParamClass
	Params   []ParamClass
	Result   *ParamClass
}

// Set holds the classifications of every function and method in a module.
// It is written by this pass and read-only afterwards.
type Set struct {
	fns map[string]*FnClass
}

// methodKey namespaces methods under their owning type.
func methodKey(typeName, method string) string {
	return typeName + "." + method
}

// Fn returns the classification of a free function.
func (s *Set) Fn(name string) (*FnClass, bool) {
	fc, ok := s.fns[name]
	return fc, ok
}

// Method returns the classification of a method of the named type.
func (s *Set) Method(typeName, method string) (*FnClass, bool) {
	fc, ok := s.fns[methodKey(typeName, method)]
	return fc, ok
}
