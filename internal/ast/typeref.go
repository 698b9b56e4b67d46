package ast

import "strings"

// TypeRef is a serialized type expression as the front end resolved it.
// The backend converts TypeRefs to interned TypeIDs during
// monomorphization; the tree itself stays independent of any interner so
// fragments can be decoded without shared state.
type TypeRef struct {
	// Name is the type name: a builtin ("int", "str"), a user type, or a
	// generic parameter. Empty for pointer/slice wrappers.
	Name string
	// Args holds generic arguments for an application Name<Args...>.
	Args []TypeRef
	// Ptr marks a pointer indirection. Cyclic record fields arrive with
	// Ptr set; the layout pass treats them as opaque references.
	Ptr *TypeRef
	// Slice marks a []Elem view.
	Slice *TypeRef
}

// IsVoid reports whether the reference denotes no value.
func (t TypeRef) IsVoid() bool {
	return t.Name == "" && t.Ptr == nil && t.Slice == nil || t.Name == "void"
}

// IsGeneric reports whether the reference carries type arguments.
func (t TypeRef) IsGeneric() bool {
	return len(t.Args) > 0
}

// String renders the reference for diagnostics.
func (t TypeRef) String() string {
	switch {
	case t.Ptr != nil:
		return "*" + t.Ptr.String()
	case t.Slice != nil:
		return "[]" + t.Slice.String()
	case len(t.Args) > 0:
		args := make([]string, 0, len(t.Args))
		for _, a := range t.Args {
			args = append(args, a.String())
		}
		return t.Name + "<" + strings.Join(args, ", ") + ">"
	case t.Name == "":
		return "void"
	default:
		return t.Name
	}
}

// Named builds a plain named reference.
func Named(name string) TypeRef {
	return TypeRef{Name: name}
}

// Applied builds a generic application.
func Applied(name string, args ...TypeRef) TypeRef {
	return TypeRef{Name: name, Args: args}
}

// PtrTo builds a pointer reference.
func PtrTo(elem TypeRef) TypeRef {
	e := elem
	return TypeRef{Ptr: &e}
}

// SliceOf builds a slice reference.
func SliceOf(elem TypeRef) TypeRef {
	e := elem
	return TypeRef{Slice: &e}
}
