package ast

import (
	"autoc/internal/source"
)

// TypeKind discriminates user type declarations.
type TypeKind uint8

const (
	// TypeRecord is a plain struct-like record.
	TypeRecord TypeKind = iota
	// TypeTag is a sum type: variants with payload fields, lowered to a
	// discriminant plus a payload union.
	TypeTag
	// TypeEnum is a payload-less tag, lowered to a plain C enum.
	TypeEnum
)

func (k TypeKind) String() string {
	switch k {
	case TypeRecord:
		return "type"
	case TypeTag:
		return "tag"
	case TypeEnum:
		return "enum"
	}
	return "invalid"
}

// TypeDecl is a named, possibly generic, user type declaration.
type TypeDecl struct {
	Name string
	// Params lists generic parameter names in declaration order.
	Params   []string
	Kind     TypeKind
	Fields   []Field   // TypeRecord
	Variants []Variant // TypeTag, TypeEnum
	Methods  []*MethodDecl
	Pub      bool
	Span     source.Span
}

// IsGeneric reports whether the declaration has type parameters.
func (d *TypeDecl) IsGeneric() bool {
	return len(d.Params) > 0
}

// Variant looks up a variant by name.
func (d *TypeDecl) Variant(name string) (*Variant, bool) {
	for i := range d.Variants {
		if d.Variants[i].Name == name {
			return &d.Variants[i], true
		}
	}
	return nil, false
}

// Field is a record or variant payload field.
type Field struct {
	Name string
	Type TypeRef
	Pub  bool
	Span source.Span
}

// Variant is one alternative of a tag or enum declaration.
type Variant struct {
	Name   string
	Fields []Field
	// HasValue pins the discriminant to Value; auto-assignment fills the
	// rest upward from the highest explicit value seen so far.
	HasValue bool
	Value    int
	Span     source.Span
}

// MethodKind discriminates static and instance methods.
type MethodKind uint8

const (
	MethodInstance MethodKind = iota
	MethodStatic
)

// MethodDecl is a type-scoped function. It belongs to exactly one TypeDecl
// and never outlives it.
type MethodDecl struct {
	Name string
	Kind MethodKind
	// Mutates marks an instance method declared to mutate its receiver.
	Mutates bool
	Params  []Param
	Ret     TypeRef
	// Body is nil for externally provided methods: a prototype is emitted,
	// no definition.
	Body *Block
	Span source.Span
}

// FnDecl is a free function.
type FnDecl struct {
	Name string
	// TypeParams lists generic parameter names in declaration order.
	TypeParams []string
	Params     []Param
	Ret        TypeRef
	// Body is nil for extern functions.
	Body *Block
	Pub  bool
	Span source.Span
}

// IsGeneric reports whether the function has type parameters.
func (d *FnDecl) IsGeneric() bool {
	return len(d.TypeParams) > 0
}

// GlobalDecl is a module-level binding.
type GlobalDecl struct {
	Name string
	Type TypeRef
	Mut  bool
	Init *Expr
	Pub  bool
	Span source.Span
}

// Intent is the declared passing intent of a parameter, straight from the
// front end. The ownership classifier combines it with the size class to
// produce the final passing strategy.
type Intent uint8

const (
	// IntentRead is the default read-only intent.
	IntentRead Intent = iota
	// IntentMut declares mutate-in-place.
	IntentMut
	// IntentTake declares transfer of ownership.
	IntentTake
	// IntentAddr declares explicit low-level address-of access.
	IntentAddr
)

func (i Intent) String() string {
	switch i {
	case IntentRead:
		return "read"
	case IntentMut:
		return "mut"
	case IntentTake:
		return "take"
	case IntentAddr:
		return "addr"
	}
	return "invalid"
}

// Param is a parameter slot of a function or method.
type Param struct {
	Name   string
	Type   TypeRef
	Intent Intent
	Span   source.Span
}
