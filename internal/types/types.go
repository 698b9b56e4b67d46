package types

// TypeID is a stable handle into an Interner.
type TypeID uint32

// NoTypeID marks an absent or invalid type.
const NoTypeID TypeID = 0

// Kind discriminates type descriptors.
type Kind uint8

const (
	KindInvalid Kind = iota
	// KindVoid is the empty return type.
	KindVoid
	KindBool
	KindInt
	KindFloat
	KindChar
	KindStr
	// KindNamed is a concrete user-declared record, tag or enum type,
	// identified by name. Monomorphized instances are Named too, under
	// their mangled name.
	KindNamed
	// KindParam is an unbound generic type parameter.
	KindParam
	// KindApplied is a generic application Name<Args...> before
	// monomorphization rewrites it to a Named instance.
	KindApplied
	// KindPtr is a raw pointer, and doubles as the explicit indirection
	// marker for cyclic record fields.
	KindPtr
	// KindSlice is a dynamically sized view []T.
	KindSlice
)

// Type is a structural descriptor. Descriptors are interned; compare
// TypeIDs, not Types.
type Type struct {
	Kind Kind
	Name string   // Named, Param, Applied
	Elem TypeID   // Ptr, Slice
	Args []TypeID // Applied
}

func (k Kind) String() string {
	switch k {
	case KindVoid:
		return "void"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindChar:
		return "char"
	case KindStr:
		return "str"
	case KindNamed:
		return "named"
	case KindParam:
		return "param"
	case KindApplied:
		return "applied"
	case KindPtr:
		return "ptr"
	case KindSlice:
		return "slice"
	}
	return "invalid"
}

// IsScalar reports whether the kind is a fixed-size primitive.
func (k Kind) IsScalar() bool {
	switch k {
	case KindBool, KindInt, KindFloat, KindChar, KindPtr:
		return true
	}
	return false
}
