package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"autoc/internal/diag"
)

var (
	errorColor = color.New(color.FgRed, color.Bold)
	warnColor  = color.New(color.FgYellow, color.Bold)
	infoColor  = color.New(color.FgCyan)
	noteColor  = color.New(color.Faint)
)

// renderDiagnostics prints every diagnostic in the bag, sorted by span.
func renderDiagnostics(out io.Writer, bag *diag.Bag) {
	if bag == nil || bag.Len() == 0 {
		return
	}
	bag.Sort()
	for _, d := range bag.Items() {
		fmt.Fprintf(out, "%s[%s]: %s\n", severityLabel(d.Severity), d.Code.ID(), d.Message)
		if origin := originOf(d); origin != "" {
			fmt.Fprintf(out, "  in %s\n", origin)
		}
		if !d.Primary.Empty() {
			fmt.Fprintf(out, "  at %s\n", d.Primary)
		}
		for _, n := range d.Notes {
			noteColor.Fprintf(out, "  note: %s (%s)\n", n.Msg, n.Span)
		}
	}
}

func severityLabel(s diag.Severity) string {
	switch s {
	case diag.SevError:
		return errorColor.Sprint("error")
	case diag.SevWarning:
		return warnColor.Sprint("warning")
	}
	return infoColor.Sprint("info")
}

func originOf(d diag.Diagnostic) string {
	switch {
	case d.Module != "" && d.Symbol != "":
		return d.Module + "." + d.Symbol
	case d.Module != "":
		return d.Module
	}
	return d.Symbol
}
