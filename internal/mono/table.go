package mono

import (
	"fmt"
	"strings"

	"autoc/internal/source"
	"autoc/internal/types"
)

// Kind identifies the kind of entity being instantiated.
type Kind uint8

const (
	// KindFn is a generic function instantiation.
	KindFn Kind = iota
	// KindType is a generic type instantiation.
	KindType
	// KindSlice is a slice container instantiation ([]T lowers to a
	// generated slice_T record).
	KindSlice
)

func (k Kind) String() string {
	switch k {
	case KindFn:
		return "fn"
	case KindType:
		return "type"
	case KindSlice:
		return "slice"
	}
	return "invalid"
}

// Key is a comparable instantiation key.
//
// Go maps cannot use slices as keys, so the normalized type arguments are
// folded into a stable Args string; the TypeIDs live on the Entry.
type Key struct {
	Base string
	Args string
}

// Entry is one recorded instantiation: the single source of truth for
// "has this instantiation already been emitted".
type Entry struct {
	Kind Kind
	Key  Key
	// Name is the generated concrete name, e.g. "List_int".
	Name     string
	TypeArgs []types.TypeID
	// Sites records where the instantiation was requested, for
	// diagnostics; the first site is the originating one.
	Sites []source.Span
}

// Table tracks generic instantiations for a compilation run. It is
// append-only and deduplicated by key; entries keep insertion order so
// everything observable downstream is deterministic.
//
// A Table is owned by the monomorphizer of one pipeline; cross-module
// sharing goes through Merge under the driver's serialization point.
type Table struct {
	entries map[Key]*Entry
	byName  map[string]Key
	order   []Key
}

// NewTable creates an empty instantiation table.
func NewTable() *Table {
	return &Table{
		entries: make(map[Key]*Entry),
		byName:  make(map[string]Key),
	}
}

// ArgsKey folds type arguments into the stable string used in Keys. It is
// built from canonical manglings, not TypeIDs, so keys agree across the
// per-module interners that meet in Merge.
func ArgsKey(in *types.Interner, args []types.TypeID) string {
	if len(args) == 0 {
		return ""
	}
	parts := make([]string, 0, len(args))
	for _, a := range args {
		parts = append(parts, in.Mangle(a))
	}
	return strings.Join(parts, "#")
}

// Lookup returns the entry for a key, if recorded.
func (t *Table) Lookup(key Key) (*Entry, bool) {
	if t == nil {
		return nil, false
	}
	e, ok := t.entries[key]
	return e, ok
}

// Record registers an instantiation. It returns the entry and whether it
// was newly created; requesting the same key twice returns the same entry.
// Two different keys mangling to the same name is a fatal collision.
func (t *Table) Record(kind Kind, key Key, name string, args []types.TypeID, site source.Span) (*Entry, bool, error) {
	if e, ok := t.entries[key]; ok {
		if site != (source.Span{}) {
			e.Sites = append(e.Sites, site)
		}
		return e, false, nil
	}
	if prev, ok := t.byName[name]; ok && prev != key {
		return nil, false, fmt.Errorf("instantiations %s<%s> and %s<%s> both mangle to %q",
			prev.Base, prev.Args, key.Base, key.Args, name)
	}

	e := &Entry{
		Kind:     kind,
		Key:      key,
		Name:     name,
		TypeArgs: append([]types.TypeID(nil), args...),
	}
	if site != (source.Span{}) {
		e.Sites = append(e.Sites, site)
	}
	t.entries[key] = e
	t.byName[name] = key
	t.order = append(t.order, key)
	return e, true, nil
}

// Entries returns entries in insertion order.
func (t *Table) Entries() []*Entry {
	if t == nil {
		return nil
	}
	out := make([]*Entry, 0, len(t.order))
	for _, k := range t.order {
		out = append(out, t.entries[k])
	}
	return out
}

// Len returns the number of recorded instantiations.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.order)
}

// Merge folds another table into t. The same key arriving from two modules
// must carry the same generated name; a name claimed by two different keys
// is a fatal collision. Cross-module generic instantiation thus computes
// once under one name.
func (t *Table) Merge(other *Table) error {
	if other == nil {
		return nil
	}
	for _, k := range other.order {
		src := other.entries[k]
		if e, ok := t.entries[k]; ok {
			if e.Name != src.Name {
				return fmt.Errorf("instantiation %s<%s> named %q in one module and %q in another",
					k.Base, k.Args, e.Name, src.Name)
			}
			e.Sites = append(e.Sites, src.Sites...)
			continue
		}
		if prev, ok := t.byName[src.Name]; ok && prev != k {
			return fmt.Errorf("instantiations %s<%s> and %s<%s> both mangle to %q",
				prev.Base, prev.Args, k.Base, k.Args, src.Name)
		}
		cp := *src
		cp.Sites = append([]source.Span(nil), src.Sites...)
		t.entries[k] = &cp
		t.byName[src.Name] = k
		t.order = append(t.order, k)
	}
	return nil
}
