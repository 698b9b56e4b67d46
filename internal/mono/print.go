package mono

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"autoc/internal/types"
)

// Dump writes a text representation of the instantiation table, for the
// inspect command and debugging. Output order is (kind, name), stable.
func Dump(w io.Writer, t *Table, in *types.Interner) error {
	if w == nil || t == nil || t.Len() == 0 {
		return nil
	}

	entries := t.Entries()
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Name < b.Name
	})

	for _, e := range entries {
		args := make([]string, 0, len(e.TypeArgs))
		for _, a := range e.TypeArgs {
			args = append(args, in.String(a))
		}
		if _, err := fmt.Fprintf(w, "%-5s %s = %s<%s> (%d use sites)\n",
			e.Kind, e.Name, e.Key.Base, strings.Join(args, ", "), len(e.Sites)); err != nil {
			return err
		}
	}
	return nil
}
