package diag

import (
	"autoc/internal/source"
)

type Note struct {
	Span source.Span
	Msg  string
}

// Diagnostic is a structured error value. The backend never renders these
// itself; they are handed to an external renderer via the Bag.
type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Primary  source.Span
	// Module and Symbol identify the origin when a span is unavailable
	// (e.g. symbols synthesized during lowering).
	Module string
	Symbol string
	Notes  []Note
}
