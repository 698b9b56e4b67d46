package cgen

import (
	"strings"

	"autoc/internal/ast"
	"autoc/internal/own"
)

// cType renders a type reference as a C type expression. Slices render to
// their generated record name.
func cType(ref ast.TypeRef) string {
	switch {
	case ref.Ptr != nil:
		return cType(*ref.Ptr) + "*"
	case ref.Slice != nil:
		return sliceName(*ref.Slice)
	}
	switch ref.Name {
	case "", "void":
		return "void"
	case "bool":
		return "bool"
	case "int":
		return "int64_t"
	case "float":
		return "double"
	case "char":
		return "char"
	case "str":
		return "str"
	}
	return ref.Name
}

// sliceName is the generated record name for a slice of elem, slice_<elem>.
func sliceName(elem ast.TypeRef) string {
	return "slice_" + mangleRef(elem)
}

// mangleRef flattens a type reference into an identifier-safe name,
// matching the interner's canonical encoding.
func mangleRef(ref ast.TypeRef) string {
	switch {
	case ref.Ptr != nil:
		return "ptr_" + mangleRef(*ref.Ptr)
	case ref.Slice != nil:
		return "slice_" + mangleRef(*ref.Slice)
	case ref.Name == "":
		return "void"
	}
	return ref.Name
}

// paramDecl renders one parameter slot with its passing strategy.
func paramDecl(name string, ref ast.TypeRef, mode own.Mode) string {
	t := cType(ref)
	switch mode {
	case own.ModeRefImm:
		return "const " + t + "* " + name
	case own.ModeRefMut, own.ModePointer:
		return t + "* " + name
	}
	return t + " " + name
}

// retDecl renders a return slot. Results always move out by value; a
// reference mode here would hand the caller borrowed storage.
func retDecl(ref ast.TypeRef, mode own.Mode) string {
	t := cType(ref)
	if mode.ByRef() {
		return t + "*"
	}
	return t
}

// guardName is the include-guard macro for a module header.
func guardName(module string) string {
	var b strings.Builder
	for _, r := range module {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - ('a' - 'A'))
		case r >= 'A' && r <= 'Z' || r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String() + "_H"
}
