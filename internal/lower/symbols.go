package lower

import (
	"fmt"

	"autoc/internal/diag"
	"autoc/internal/source"
)

// Symbols is the emitted-symbol table: every name that will appear at file
// scope in the output registers here exactly once. Two distinct origins
// mangling to the same name is fatal; no disambiguation scheme is guessed.
type Symbols struct {
	module string
	byName map[string]source.Span
}

func NewSymbols(module string) *Symbols {
	return &Symbols{module: module, byName: make(map[string]source.Span, 64)}
}

// Declare registers a file-scope name. It reports false and records a
// diagnostic when the name is already taken.
func (s *Symbols) Declare(name string, sp source.Span, bag *diag.Bag) bool {
	if prev, ok := s.byName[name]; ok {
		bag.Add(diag.NewError(diag.EmitSymbolCollision, sp,
			fmt.Sprintf("symbol %q already emitted", name)).
			At(s.module, name).
			WithNote(prev, "previous declaration here"))
		return false
	}
	s.byName[name] = sp
	return true
}

// Has reports whether a name is taken.
func (s *Symbols) Has(name string) bool {
	_, ok := s.byName[name]
	return ok
}
