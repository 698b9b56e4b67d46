package types

import (
	"fmt"
	"strings"

	"fortio.org/safecast"
)

// Builtins stores TypeIDs for the primitive types.
type Builtins struct {
	Invalid TypeID
	Void    TypeID
	Bool    TypeID
	Int     TypeID
	Float   TypeID
	Char    TypeID
	Str     TypeID
}

// Interner provides stable TypeIDs by hashing structural descriptors.
// One interner serves one compilation run; it is not safe for concurrent
// mutation.
type Interner struct {
	types    []Type
	index    map[string]TypeID
	builtins Builtins
}

// NewInterner constructs an interner seeded with built-in primitives.
func NewInterner() *Interner {
	in := &Interner{
		index: make(map[string]TypeID, 64),
	}
	in.builtins.Invalid = in.internRaw(Type{Kind: KindInvalid})
	in.builtins.Void = in.Intern(Type{Kind: KindVoid})
	in.builtins.Bool = in.Intern(Type{Kind: KindBool})
	in.builtins.Int = in.Intern(Type{Kind: KindInt})
	in.builtins.Float = in.Intern(Type{Kind: KindFloat})
	in.builtins.Char = in.Intern(Type{Kind: KindChar})
	in.builtins.Str = in.Intern(Type{Kind: KindStr})
	return in
}

// Builtins returns TypeIDs for primitive types.
func (in *Interner) Builtins() Builtins {
	return in.builtins
}

// Intern ensures the provided descriptor has a stable TypeID.
func (in *Interner) Intern(t Type) TypeID {
	if t.Kind == KindInvalid {
		return NoTypeID
	}
	key := in.key(t)
	if id, ok := in.index[key]; ok {
		return id
	}
	return in.internRaw(t)
}

func (in *Interner) internRaw(t Type) TypeID {
	lenTypes, err := safecast.Conv[uint32](len(in.types))
	if err != nil {
		panic(fmt.Errorf("len(types) overflow: %w", err))
	}
	id := TypeID(lenTypes)
	in.types = append(in.types, t)
	in.index[in.key(t)] = id
	return id
}

// Lookup returns the descriptor for a TypeID.
func (in *Interner) Lookup(id TypeID) (Type, bool) {
	if id == NoTypeID || int(id) >= len(in.types) {
		return Type{}, false
	}
	return in.types[id], true
}

// MustLookup panics when id is invalid.
func (in *Interner) MustLookup(id TypeID) Type {
	tt, ok := in.Lookup(id)
	if !ok {
		panic("types: invalid TypeID")
	}
	return tt
}

// Named interns a concrete named type.
func (in *Interner) Named(name string) TypeID {
	return in.Intern(Type{Kind: KindNamed, Name: name})
}

// Param interns a generic type parameter.
func (in *Interner) Param(name string) TypeID {
	return in.Intern(Type{Kind: KindParam, Name: name})
}

// Applied interns a generic application.
func (in *Interner) Applied(name string, args []TypeID) TypeID {
	return in.Intern(Type{Kind: KindApplied, Name: name, Args: args})
}

// Ptr interns a pointer to elem.
func (in *Interner) Ptr(elem TypeID) TypeID {
	return in.Intern(Type{Kind: KindPtr, Elem: elem})
}

// Slice interns a slice of elem.
func (in *Interner) Slice(elem TypeID) TypeID {
	return in.Intern(Type{Kind: KindSlice, Elem: elem})
}

// key builds the structural hash key for the index map.
func (in *Interner) key(t Type) string {
	var b strings.Builder
	b.WriteString(t.Kind.String())
	b.WriteByte('|')
	b.WriteString(t.Name)
	b.WriteByte('|')
	fmt.Fprintf(&b, "%d", t.Elem)
	for _, a := range t.Args {
		fmt.Fprintf(&b, "|%d", a)
	}
	return b.String()
}

// Mangle produces the canonical encoding of a type used inside generated
// names, e.g. Intern(List<int>) mangles to "List_int" and []T to "slice_T".
// The encoding is total over post-monomorphization types; a KindParam or
// KindApplied argument still mangles (to its name) so error paths can
// render it, but such a name must never reach the emitter.
func (in *Interner) Mangle(id TypeID) string {
	t, ok := in.Lookup(id)
	if !ok {
		return "invalid"
	}
	switch t.Kind {
	case KindVoid, KindBool, KindInt, KindFloat, KindChar, KindStr:
		return t.Kind.String()
	case KindNamed, KindParam:
		return t.Name
	case KindApplied:
		parts := make([]string, 0, len(t.Args)+1)
		parts = append(parts, t.Name)
		for _, a := range t.Args {
			parts = append(parts, in.Mangle(a))
		}
		return strings.Join(parts, "_")
	case KindPtr:
		return "ptr_" + in.Mangle(t.Elem)
	case KindSlice:
		return "slice_" + in.Mangle(t.Elem)
	}
	return "invalid"
}

// String renders a type for diagnostics, e.g. "List<int>" or "*Node".
func (in *Interner) String(id TypeID) string {
	t, ok := in.Lookup(id)
	if !ok {
		return "<invalid>"
	}
	switch t.Kind {
	case KindVoid, KindBool, KindInt, KindFloat, KindChar, KindStr:
		return t.Kind.String()
	case KindNamed, KindParam:
		return t.Name
	case KindApplied:
		args := make([]string, 0, len(t.Args))
		for _, a := range t.Args {
			args = append(args, in.String(a))
		}
		return t.Name + "<" + strings.Join(args, ", ") + ">"
	case KindPtr:
		return "*" + in.String(t.Elem)
	case KindSlice:
		return "[]" + in.String(t.Elem)
	}
	return "<invalid>"
}

// HasParams reports whether the type mentions any unbound generic
// parameter.
func (in *Interner) HasParams(id TypeID) bool {
	t, ok := in.Lookup(id)
	if !ok {
		return false
	}
	switch t.Kind {
	case KindParam:
		return true
	case KindApplied:
		for _, a := range t.Args {
			if in.HasParams(a) {
				return true
			}
		}
		return false
	case KindPtr, KindSlice:
		return in.HasParams(t.Elem)
	}
	return false
}
