package mono

import (
	"strings"
	"testing"

	"autoc/internal/ast"
	"autoc/internal/diag"
	"autoc/internal/source"
	"autoc/internal/types"
)

func spanZero() source.Span {
	return source.Span{}
}

// listDecl is the canonical generic container used across these tests:
//
//	type List<T> { items: []T, len: int }
func listDecl() *ast.TypeDecl {
	return &ast.TypeDecl{
		Name:   "List",
		Params: []string{"T"},
		Kind:   ast.TypeRecord,
		Fields: []ast.Field{
			{Name: "items", Type: ast.SliceOf(ast.Named("T"))},
			{Name: "len", Type: ast.Named("int")},
		},
	}
}

func runMono(t *testing.T, unit *ast.ModuleUnit) (*Module, *Table, *diag.Bag, error) {
	t.Helper()
	in := types.NewInterner()
	table := NewTable()
	bag := diag.NewBag(100)
	mm, err := Run(unit, in, table, bag)
	return mm, table, bag, err
}

func TestMonomorphizeIdempotent(t *testing.T) {
	unit := &ast.ModuleUnit{
		Name:  "demo",
		Types: []*ast.TypeDecl{listDecl()},
		Funcs: []*ast.FnDecl{
			{Name: "a", Params: []ast.Param{{Name: "xs", Type: ast.Applied("List", ast.Named("int"))}}},
			{Name: "b", Params: []ast.Param{{Name: "xs", Type: ast.Applied("List", ast.Named("int"))}}},
		},
	}

	mm, table, _, err := runMono(t, unit)
	if err != nil {
		t.Fatalf("mono: %v", err)
	}

	var lists []*ast.TypeDecl
	for _, td := range mm.Types {
		if strings.HasPrefix(td.Name, "List_") {
			lists = append(lists, td)
		}
	}
	if len(lists) != 1 {
		t.Fatalf("List<int> requested twice must emit once, got %d decls", len(lists))
	}
	if lists[0].Name != "List_int" {
		t.Fatalf("mangled name = %q, want List_int", lists[0].Name)
	}

	entry, ok := table.Lookup(Key{Base: "List", Args: "int"})
	if !ok {
		t.Fatalf("instantiation not recorded")
	}
	if entry.Name != "List_int" {
		t.Fatalf("table name = %q", entry.Name)
	}
}

func TestMonomorphizeTwoInstantiations(t *testing.T) {
	unit := &ast.ModuleUnit{
		Name:  "demo",
		Types: []*ast.TypeDecl{listDecl()},
		Funcs: []*ast.FnDecl{
			{Name: "a", Params: []ast.Param{{Name: "xs", Type: ast.Applied("List", ast.Named("int"))}}},
			{Name: "b", Params: []ast.Param{{Name: "ys", Type: ast.Applied("List", ast.Named("str"))}}},
		},
	}

	mm, _, _, err := runMono(t, unit)
	if err != nil {
		t.Fatalf("mono: %v", err)
	}

	names := map[string]bool{}
	for _, td := range mm.Types {
		names[td.Name] = true
	}
	if !names["List_int"] || !names["List_str"] {
		t.Fatalf("want both List_int and List_str, got %v", names)
	}

	li, _ := mm.TypeByName("List_int")
	ls, _ := mm.TypeByName("List_str")
	if li.Fields[0].Type.Slice.Name != "int" {
		t.Fatalf("List_int items = %s", li.Fields[0].Type)
	}
	if ls.Fields[0].Type.Slice.Name != "str" {
		t.Fatalf("List_str items = %s (shared state corruption?)", ls.Fields[0].Type)
	}
}

func TestMonomorphizeNestedApplication(t *testing.T) {
	pair := &ast.TypeDecl{
		Name:   "Pair",
		Params: []string{"A", "B"},
		Kind:   ast.TypeRecord,
		Fields: []ast.Field{
			{Name: "a", Type: ast.Named("A")},
			{Name: "b", Type: ast.Named("B")},
		},
	}
	unit := &ast.ModuleUnit{
		Name:  "demo",
		Types: []*ast.TypeDecl{listDecl(), pair},
		Funcs: []*ast.FnDecl{
			{Name: "use", Params: []ast.Param{{
				Name: "xs",
				Type: ast.Applied("List", ast.Applied("Pair", ast.Named("int"), ast.Named("bool"))),
			}}},
		},
	}

	mm, _, _, err := runMono(t, unit)
	if err != nil {
		t.Fatalf("mono: %v", err)
	}
	if _, ok := mm.TypeByName("Pair_int_bool"); !ok {
		t.Fatalf("inner instantiation missing")
	}
	if _, ok := mm.TypeByName("List_Pair_int_bool"); !ok {
		t.Fatalf("outer instantiation missing")
	}
}

func TestMonomorphizeGenericFunction(t *testing.T) {
	id := &ast.FnDecl{
		Name:       "identity",
		TypeParams: []string{"T"},
		Params:     []ast.Param{{Name: "x", Type: ast.Named("T")}},
		Ret:        ast.Named("T"),
		Body: &ast.Block{Stmts: []ast.Stmt{
			{Kind: ast.StmtReturn, Return: &ast.ReturnStmt{Value: &ast.Expr{Kind: ast.ExprIdent, Name: "x"}}},
		}},
	}
	call := ast.CallOf(ast.Ident("identity"), ast.Int(1))
	call.TypeArgs = []ast.TypeRef{ast.Named("int")}
	main := &ast.FnDecl{
		Name: "main",
		Body: &ast.Block{Stmts: []ast.Stmt{{Kind: ast.StmtExpr, Expr: &call}}},
	}

	unit := &ast.ModuleUnit{Name: "demo", Funcs: []*ast.FnDecl{id, main}}
	mm, _, _, err := runMono(t, unit)
	if err != nil {
		t.Fatalf("mono: %v", err)
	}

	var inst *ast.FnDecl
	var mainOut *ast.FnDecl
	for _, fn := range mm.Funcs {
		switch fn.Name {
		case "identity_int":
			inst = fn
		case "main":
			mainOut = fn
		}
	}
	if inst == nil {
		t.Fatalf("identity_int not generated; funcs: %v", fnNames(mm))
	}
	if inst.Params[0].Type.Name != "int" || inst.Ret.Name != "int" {
		t.Fatalf("substitution failed: %s -> %s", inst.Params[0].Type, inst.Ret)
	}
	got := mainOut.Body.Stmts[0].Expr.X.Name
	if got != "identity_int" {
		t.Fatalf("call site rewritten to %q", got)
	}
}

func fnNames(mm *Module) []string {
	out := make([]string, 0, len(mm.Funcs))
	for _, fn := range mm.Funcs {
		out = append(out, fn.Name)
	}
	return out
}

func TestMonomorphizeCyclicInstantiation(t *testing.T) {
	// type Wrap<T> { inner: Wrap<Wrap<T>> } can never terminate.
	wrap := &ast.TypeDecl{
		Name:   "Wrap",
		Params: []string{"T"},
		Kind:   ast.TypeRecord,
		Fields: []ast.Field{
			{Name: "inner", Type: ast.Applied("Wrap", ast.Applied("Wrap", ast.Named("T")))},
		},
	}
	unit := &ast.ModuleUnit{
		Name:  "demo",
		Types: []*ast.TypeDecl{wrap},
		Funcs: []*ast.FnDecl{
			{Name: "use", Params: []ast.Param{{Name: "w", Type: ast.Applied("Wrap", ast.Named("int"))}}},
		},
	}

	_, _, bag, err := runMono(t, unit)
	if err == nil {
		t.Fatalf("expected cyclic instantiation error")
	}
	if !hasCode(bag, diag.MonoCyclicInstantiation) {
		t.Fatalf("want MonoCyclicInstantiation, bag: %v", bag.Items())
	}
}

func TestMonomorphizeSelfReferenceThroughPointer(t *testing.T) {
	// type Node<T> { value: T, next: *Node<T> } is legal: the second
	// request hits the table entry registered before field expansion.
	node := &ast.TypeDecl{
		Name:   "Node",
		Params: []string{"T"},
		Kind:   ast.TypeRecord,
		Fields: []ast.Field{
			{Name: "value", Type: ast.Named("T")},
			{Name: "next", Type: ast.PtrTo(ast.Applied("Node", ast.Named("T")))},
		},
	}
	unit := &ast.ModuleUnit{
		Name:  "demo",
		Types: []*ast.TypeDecl{node},
		Funcs: []*ast.FnDecl{
			{Name: "use", Params: []ast.Param{{Name: "n", Type: ast.Applied("Node", ast.Named("int"))}}},
		},
	}

	mm, _, _, err := runMono(t, unit)
	if err != nil {
		t.Fatalf("self-reference through pointer must be accepted: %v", err)
	}
	nd, ok := mm.TypeByName("Node_int")
	if !ok {
		t.Fatalf("Node_int missing")
	}
	if nd.Fields[1].Type.Ptr == nil || nd.Fields[1].Type.Ptr.Name != "Node_int" {
		t.Fatalf("next field = %s", nd.Fields[1].Type)
	}
}

func TestMonomorphizeUnresolvedGeneric(t *testing.T) {
	unit := &ast.ModuleUnit{
		Name:  "demo",
		Types: []*ast.TypeDecl{listDecl()},
		Funcs: []*ast.FnDecl{
			// bare List without type arguments
			{Name: "use", Params: []ast.Param{{Name: "xs", Type: ast.Named("List")}}},
		},
	}
	_, _, bag, err := runMono(t, unit)
	if err == nil {
		t.Fatalf("expected unresolved generic error")
	}
	if !hasCode(bag, diag.MonoUnresolvedGeneric) {
		t.Fatalf("want MonoUnresolvedGeneric, bag: %v", bag.Items())
	}
}

func TestMonomorphizeArityMismatch(t *testing.T) {
	unit := &ast.ModuleUnit{
		Name:  "demo",
		Types: []*ast.TypeDecl{listDecl()},
		Funcs: []*ast.FnDecl{
			{Name: "use", Params: []ast.Param{{
				Name: "xs",
				Type: ast.Applied("List", ast.Named("int"), ast.Named("str")),
			}}},
		},
	}
	_, _, bag, err := runMono(t, unit)
	if err == nil {
		t.Fatalf("expected arity error")
	}
	if !hasCode(bag, diag.MonoArityMismatch) {
		t.Fatalf("want MonoArityMismatch, bag: %v", bag.Items())
	}
}

func TestTableMerge(t *testing.T) {
	inA := types.NewInterner()
	a := NewTable()
	if _, _, err := a.Record(KindType, Key{"List", "int"}, "List_int", []types.TypeID{inA.Builtins().Int}, spanZero()); err != nil {
		t.Fatal(err)
	}

	inB := types.NewInterner()
	b := NewTable()
	if _, _, err := b.Record(KindType, Key{"List", "int"}, "List_int", []types.TypeID{inB.Builtins().Int}, spanZero()); err != nil {
		t.Fatal(err)
	}
	if _, _, err := b.Record(KindType, Key{"List", "str"}, "List_str", []types.TypeID{inB.Builtins().Str}, spanZero()); err != nil {
		t.Fatal(err)
	}

	if err := a.Merge(b); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if a.Len() != 2 {
		t.Fatalf("merged len = %d", a.Len())
	}

	// same name under a different key is a collision
	c := NewTable()
	if _, _, err := c.Record(KindType, Key{"Other", "int"}, "List_int", nil, spanZero()); err != nil {
		t.Fatal(err)
	}
	if err := a.Merge(c); err == nil {
		t.Fatalf("expected collision on merge")
	}
}

func TestRecordNameCollision(t *testing.T) {
	tb := NewTable()
	if _, _, err := tb.Record(KindType, Key{"A", "x"}, "A_x", nil, spanZero()); err != nil {
		t.Fatal(err)
	}
	if _, _, err := tb.Record(KindType, Key{"A", "y"}, "A_x", nil, spanZero()); err == nil {
		t.Fatalf("two keys sharing a mangled name must be fatal")
	}
}

func hasCode(bag *diag.Bag, code diag.Code) bool {
	for _, d := range bag.Items() {
		if d.Code == code {
			return true
		}
	}
	return false
}
