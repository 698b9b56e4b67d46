// Package cgen serializes a lowered program into its two output artifacts:
// a declarations header and a definitions source file. Emission is a pure
// function of the program: identical input produces byte-identical output.
package cgen

import (
	"bytes"
	"fmt"
)

// sink accumulates the two artifacts side by side. Declarations go to the
// header, definitions to the source; both are flushed at once so a failed
// emission never leaves a partial artifact pair.
type sink struct {
	header bytes.Buffer
	source bytes.Buffer
	indent int
}

func (s *sink) h(format string, args ...any) {
	fmt.Fprintf(&s.header, format, args...)
	s.header.WriteByte('\n')
}

func (s *sink) hraw(line string) {
	s.header.WriteString(line)
	s.header.WriteByte('\n')
}

func (s *sink) c(format string, args ...any) {
	for i := 0; i < s.indent; i++ {
		s.source.WriteString("    ")
	}
	fmt.Fprintf(&s.source, format, args...)
	s.source.WriteByte('\n')
}

func (s *sink) blank() {
	s.source.WriteByte('\n')
}

func (s *sink) hblank() {
	s.header.WriteByte('\n')
}
