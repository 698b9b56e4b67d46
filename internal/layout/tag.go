package layout

import (
	"fmt"

	"fortio.org/safecast"

	"autoc/internal/ast"
	"autoc/internal/diag"
)

// VariantLayout is one variant with its assigned discriminant.
type VariantLayout struct {
	Name string
	Disc int
	// Fields is the payload shape; empty for payload-less variants, which
	// reserve no payload storage.
	Fields []ast.Field
}

// TagLayout is the emission plan for one tag type: the discriminant enum,
// the payload union, and the variant table pattern matches dispatch over.
type TagLayout struct {
	TypeName string
	// DiscName is the C enum holding the discriminants, <TypeName>Tag.
	DiscName string
	// UnionName is the payload union, <TypeName>Payload; empty when no
	// variant carries payload.
	UnionName string
	Variants  []VariantLayout

	byName map[string]int
}

// Variant looks up a variant layout by name.
func (tl *TagLayout) Variant(name string) (*VariantLayout, bool) {
	i, ok := tl.byName[name]
	if !ok {
		return nil, false
	}
	return &tl.Variants[i], true
}

// HasPayload reports whether any variant carries payload fields.
func (tl *TagLayout) HasPayload() bool {
	return tl.UnionName != ""
}

// DiscConst returns the emitted discriminant constant for a variant,
// TYPENAME_VARIANT.
func (tl *TagLayout) DiscConst(variant string) string {
	return discConst(tl.TypeName, variant)
}

// ComputeTag assigns discriminants and names the generated declarations
// for a tag or enum type.
//
// Assignment order is declaration order starting at 0. An explicit value
// pins its variant; auto-assignment continues upward from the highest
// value seen so far. Reusing a value is an error.
func ComputeTag(td *ast.TypeDecl, bag *diag.Bag) (*TagLayout, error) {
	if td.Kind != ast.TypeTag && td.Kind != ast.TypeEnum {
		return nil, fmt.Errorf("%s is not a tag type", td.Name)
	}

	tl := &TagLayout{
		TypeName: td.Name,
		DiscName: td.Name + "Tag",
		byName:   make(map[string]int, len(td.Variants)),
	}
	if td.Kind == ast.TypeEnum {
		// a plain enum IS its discriminant; no separate tag type
		tl.DiscName = td.Name
	}

	used := make(map[int]string, len(td.Variants))
	next := 0
	hasPayload := false

	for _, v := range td.Variants {
		if _, dup := tl.byName[v.Name]; dup {
			bag.Add(diag.NewError(diag.LayoutDuplicateVariant, v.Span,
				fmt.Sprintf("variant %q declared twice in %s", v.Name, td.Name)).At("", td.Name))
			continue
		}

		disc := next
		if v.HasValue {
			disc = v.Value
		}
		if prev, taken := used[disc]; taken {
			bag.Add(diag.NewError(diag.LayoutDuplicateDiscriminant, v.Span,
				fmt.Sprintf("discriminant %d of %q already used by %q", disc, v.Name, prev)).At("", td.Name))
			continue
		}
		used[disc] = v.Name
		if disc >= next {
			next = disc + 1
		}

		if len(v.Fields) > 0 {
			hasPayload = true
		}
		tl.byName[v.Name] = len(tl.Variants)
		tl.Variants = append(tl.Variants, VariantLayout{
			Name:   v.Name,
			Disc:   disc,
			Fields: v.Fields,
		})
	}

	if hasPayload {
		tl.UnionName = td.Name + "Payload"
	}

	if bag.HasErrors() {
		return nil, bag.Err()
	}
	return tl, nil
}

func discConst(typeName, variant string) string {
	return toUpperSnake(typeName) + "_" + toUpperSnake(variant)
}

// toUpperSnake turns PascalCase into UPPER_SNAKE ("HttpStatus" ->
// "HTTP_STATUS"), with word boundaries at lower-to-upper case changes.
func toUpperSnake(s string) string {
	out := make([]rune, 0, len(s)+4)
	var prevLower bool
	for _, r := range s {
		isUpper := r >= 'A' && r <= 'Z'
		if isUpper && prevLower {
			out = append(out, '_')
		}
		if r >= 'a' && r <= 'z' {
			r -= 'a' - 'A'
		}
		out = append(out, r)
		prevLower = !isUpper
	}
	return string(out)
}

// DiscWidth returns the byte width of the discriminant storage required
// for the highest assigned value.
func (tl *TagLayout) DiscWidth() int {
	maxDisc := 0
	for _, v := range tl.Variants {
		if v.Disc > maxDisc {
			maxDisc = v.Disc
		}
	}
	u, err := safecast.Conv[uint32](maxDisc)
	if err != nil || u > 0xFFFF {
		return 4
	}
	if u > 0xFF {
		return 2
	}
	return 1
}
