package layout

import (
	"fmt"
	"sort"
	"strings"

	"autoc/internal/ast"
	"autoc/internal/diag"
)

// SwitchCase is one lowered match arm.
type SwitchCase struct {
	Variant *VariantLayout
	// Binds pairs arm binding names with the payload fields they
	// destructure, in payload order.
	Binds []string
	Body  *ast.Block
}

// Switch is the discriminant-dispatch lowering of a pattern match,
// consumed by the emitter: one case per covered variant plus an optional
// default.
type Switch struct {
	Subject ast.Expr
	Tag     *TagLayout
	Cases   []SwitchCase
	Default *ast.Block
}

// LowerMatch checks a pattern match against the subject's tag layout and
// produces its dispatch plan. A match that misses variants and has no
// catch-all is rejected here, never deferred to the emitter.
func LowerMatch(ms *ast.MatchStmt, tl *TagLayout, bag *diag.Bag) (*Switch, error) {
	sw := &Switch{Subject: ms.Subject, Tag: tl, Default: ms.Default}
	covered := make(map[string]bool, len(ms.Arms))

	for _, arm := range ms.Arms {
		vl, ok := tl.Variant(arm.Variant)
		if !ok {
			bag.Add(diag.NewError(diag.LayoutUnknownVariant, arm.Span,
				fmt.Sprintf("%s has no variant %q", tl.TypeName, arm.Variant)).At("", tl.TypeName))
			continue
		}
		if covered[arm.Variant] {
			bag.Add(diag.NewError(diag.LayoutDuplicateVariant, arm.Span,
				fmt.Sprintf("variant %q matched twice", arm.Variant)).At("", tl.TypeName))
			continue
		}
		if len(arm.Binds) > len(vl.Fields) {
			bag.Add(diag.NewError(diag.LayoutUnknownVariant, arm.Span,
				fmt.Sprintf("variant %q has %d payload fields, pattern binds %d",
					arm.Variant, len(vl.Fields), len(arm.Binds))).At("", tl.TypeName))
			continue
		}
		covered[arm.Variant] = true
		sw.Cases = append(sw.Cases, SwitchCase{
			Variant: vl,
			Binds:   arm.Binds,
			Body:    arm.Body,
		})
	}

	if ms.Default == nil {
		missing := make([]string, 0)
		for _, v := range tl.Variants {
			if !covered[v.Name] {
				missing = append(missing, v.Name)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			bag.Add(diag.NewError(diag.LayoutNonExhaustiveMatch, ms.Span,
				fmt.Sprintf("match over %s misses variants %s and has no catch-all",
					tl.TypeName, strings.Join(missing, ", "))).At("", tl.TypeName))
		}
	}

	if bag.HasErrors() {
		return nil, bag.Err()
	}
	return sw, nil
}
