package layout

import (
	"testing"

	"autoc/internal/ast"
	"autoc/internal/diag"
	"autoc/internal/mono"
	"autoc/internal/types"
)

func moduleWith(t *testing.T, decls ...*ast.TypeDecl) *mono.Module {
	t.Helper()
	unit := &ast.ModuleUnit{Name: "demo", Types: decls}
	mm, err := mono.Run(unit, types.NewInterner(), mono.NewTable(), diag.NewBag(50))
	if err != nil {
		t.Fatalf("mono: %v", err)
	}
	return mm
}

func shapeDecl() *ast.TypeDecl {
	return &ast.TypeDecl{
		Name: "Shape",
		Kind: ast.TypeTag,
		Variants: []ast.Variant{
			{Name: "Point"},
			{Name: "Circle", Fields: []ast.Field{{Name: "radius", Type: ast.Named("float")}}},
			{Name: "Rect", Fields: []ast.Field{
				{Name: "w", Type: ast.Named("float")},
				{Name: "h", Type: ast.Named("float")},
			}},
		},
	}
}

func TestDiscriminantStability(t *testing.T) {
	td := shapeDecl()

	first, err := ComputeTag(td, diag.NewBag(10))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	for i, want := range []int{0, 1, 2} {
		if first.Variants[i].Disc != want {
			t.Fatalf("variant %d disc = %d, want %d", i, first.Variants[i].Disc, want)
		}
	}

	second, err := ComputeTag(td, diag.NewBag(10))
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	for i := range first.Variants {
		if first.Variants[i].Disc != second.Variants[i].Disc {
			t.Fatalf("re-running layout changed discriminants")
		}
	}
}

func TestExplicitDiscriminants(t *testing.T) {
	td := &ast.TypeDecl{
		Name: "Status",
		Kind: ast.TypeEnum,
		Variants: []ast.Variant{
			{Name: "Ok"},                          // auto: 0
			{Name: "NotFound", HasValue: true, Value: 404}, // pinned
			{Name: "Teapot"},                      // fills upward: 405
			{Name: "Internal", HasValue: true, Value: 500},
			{Name: "Next"}, // 501
		},
	}
	tl, err := ComputeTag(td, diag.NewBag(10))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	want := []int{0, 404, 405, 500, 501}
	for i, w := range want {
		if tl.Variants[i].Disc != w {
			t.Fatalf("variant %q disc = %d, want %d", tl.Variants[i].Name, tl.Variants[i].Disc, w)
		}
	}
}

func TestDuplicateDiscriminant(t *testing.T) {
	td := &ast.TypeDecl{
		Name: "Bad",
		Kind: ast.TypeEnum,
		Variants: []ast.Variant{
			{Name: "A"},
			{Name: "B", HasValue: true, Value: 0},
		},
	}
	bag := diag.NewBag(10)
	if _, err := ComputeTag(td, bag); err == nil {
		t.Fatalf("expected duplicate discriminant error")
	}
	if bag.Items()[0].Code != diag.LayoutDuplicateDiscriminant {
		t.Fatalf("code = %v", bag.Items()[0].Code)
	}
}

func TestDiscConst(t *testing.T) {
	tl, err := ComputeTag(shapeDecl(), diag.NewBag(10))
	if err != nil {
		t.Fatal(err)
	}
	if got := tl.DiscConst("Circle"); got != "SHAPE_CIRCLE" {
		t.Fatalf("DiscConst = %q", got)
	}
	if !tl.HasPayload() {
		t.Fatalf("Shape carries payload")
	}
	if tl.UnionName != "ShapePayload" || tl.DiscName != "ShapeTag" {
		t.Fatalf("names: %q %q", tl.UnionName, tl.DiscName)
	}
}

func TestEnumHasNoPayloadStorage(t *testing.T) {
	td := &ast.TypeDecl{
		Name: "Color",
		Kind: ast.TypeEnum,
		Variants: []ast.Variant{
			{Name: "Red"}, {Name: "Green"}, {Name: "Blue"},
		},
	}
	tl, err := ComputeTag(td, diag.NewBag(10))
	if err != nil {
		t.Fatal(err)
	}
	if tl.HasPayload() {
		t.Fatalf("payload-less variants must not reserve payload storage")
	}

	mm := moduleWith(t, td)
	eng := New(X86_64LinuxGNU(), mm)
	l, err := eng.OfRef(ast.Named("Color"))
	if err != nil {
		t.Fatal(err)
	}
	if l.Size != 4 {
		t.Fatalf("enum size = %d, want discriminant only", l.Size)
	}
}

func TestMatchExhaustiveness(t *testing.T) {
	tl, err := ComputeTag(shapeDecl(), diag.NewBag(10))
	if err != nil {
		t.Fatal(err)
	}

	arm := func(v string, binds ...string) ast.MatchArm {
		return ast.MatchArm{Variant: v, Binds: binds, Body: &ast.Block{}}
	}
	subject := ast.Ident("s")

	// 2 of 3 variants, no catch-all: rejected
	ms := &ast.MatchStmt{Subject: subject, Arms: []ast.MatchArm{arm("Point"), arm("Circle", "r")}}
	bag := diag.NewBag(10)
	if _, err := LowerMatch(ms, tl, bag); err == nil {
		t.Fatalf("non-exhaustive match must be rejected")
	}
	if bag.Items()[0].Code != diag.LayoutNonExhaustiveMatch {
		t.Fatalf("code = %v", bag.Items()[0].Code)
	}

	// adding the third variant makes it exhaustive
	ms.Arms = append(ms.Arms, arm("Rect", "w", "h"))
	if _, err := LowerMatch(ms, tl, diag.NewBag(10)); err != nil {
		t.Fatalf("exhaustive match rejected: %v", err)
	}

	// or a catch-all takes the missing variants
	ms.Arms = ms.Arms[:2]
	ms.Default = &ast.Block{}
	sw, err := LowerMatch(ms, tl, diag.NewBag(10))
	if err != nil {
		t.Fatalf("catch-all match rejected: %v", err)
	}
	if len(sw.Cases) != 2 || sw.Default == nil {
		t.Fatalf("unexpected switch shape")
	}
}

func TestMatchUnknownVariant(t *testing.T) {
	tl, err := ComputeTag(shapeDecl(), diag.NewBag(10))
	if err != nil {
		t.Fatal(err)
	}
	ms := &ast.MatchStmt{
		Subject: ast.Ident("s"),
		Arms:    []ast.MatchArm{{Variant: "Square", Body: &ast.Block{}}},
		Default: &ast.Block{},
	}
	bag := diag.NewBag(10)
	if _, err := LowerMatch(ms, tl, bag); err == nil {
		t.Fatalf("unknown variant must be rejected")
	}
	if bag.Items()[0].Code != diag.LayoutUnknownVariant {
		t.Fatalf("code = %v", bag.Items()[0].Code)
	}
}

func TestSizeClasses(t *testing.T) {
	point := &ast.TypeDecl{
		Name: "Point",
		Kind: ast.TypeRecord,
		Fields: []ast.Field{
			{Name: "x", Type: ast.Named("int")},
			{Name: "y", Type: ast.Named("int")},
		},
	}
	matrix := &ast.TypeDecl{
		Name: "Matrix",
		Kind: ast.TypeRecord,
		Fields: []ast.Field{
			{Name: "a", Type: ast.Named("float")},
			{Name: "b", Type: ast.Named("float")},
			{Name: "c", Type: ast.Named("float")},
			{Name: "d", Type: ast.Named("float")},
		},
	}
	named := &ast.TypeDecl{
		Name:   "Doc",
		Kind:   ast.TypeRecord,
		Fields: []ast.Field{{Name: "title", Type: ast.Named("str")}},
	}

	mm := moduleWith(t, point, matrix, named)
	eng := New(X86_64LinuxGNU(), mm)

	cases := []struct {
		ref  ast.TypeRef
		want SizeClass
	}{
		{ast.Named("int"), ClassSmall},
		{ast.Named("bool"), ClassSmall},
		{ast.Named("Point"), ClassSmall},
		{ast.Named("Matrix"), ClassLarge},
		{ast.Named("str"), ClassHeap},
		{ast.Named("Doc"), ClassHeap},
		{ast.PtrTo(ast.Named("Matrix")), ClassSmall},
	}
	for _, tc := range cases {
		got, err := eng.ClassOfRef(tc.ref)
		if err != nil {
			t.Fatalf("%s: %v", tc.ref, err)
		}
		if got != tc.want {
			t.Errorf("ClassOf(%s) = %s, want %s", tc.ref, got, tc.want)
		}
	}
}

func TestRecursiveValueTypeRejected(t *testing.T) {
	// direct embedding without indirection has infinite size
	node := &ast.TypeDecl{
		Name:   "Node",
		Kind:   ast.TypeRecord,
		Fields: []ast.Field{{Name: "next", Type: ast.Named("Node")}},
	}
	mm := moduleWith(t, node)
	eng := New(X86_64LinuxGNU(), mm)
	if _, err := eng.OfRef(ast.Named("Node")); err == nil {
		t.Fatalf("recursive value type must be rejected")
	}

	// through a pointer it is fine
	linked := &ast.TypeDecl{
		Name:   "Linked",
		Kind:   ast.TypeRecord,
		Fields: []ast.Field{{Name: "next", Type: ast.PtrTo(ast.Named("Linked"))}},
	}
	mm2 := moduleWith(t, linked)
	eng2 := New(X86_64LinuxGNU(), mm2)
	l, err := eng2.OfRef(ast.Named("Linked"))
	if err != nil {
		t.Fatalf("indirected recursion rejected: %v", err)
	}
	if l.Size != 8 {
		t.Fatalf("size = %d", l.Size)
	}
}

func TestTagPayloadLayout(t *testing.T) {
	mm := moduleWith(t, shapeDecl())
	eng := New(X86_64LinuxGNU(), mm)
	l, err := eng.OfRef(ast.Named("Shape"))
	if err != nil {
		t.Fatal(err)
	}
	// disc (4) aligned to payload align (8) + widest payload (two floats)
	if l.PayloadOffset != 8 || l.Size != 24 {
		t.Fatalf("payload offset %d size %d", l.PayloadOffset, l.Size)
	}
}
