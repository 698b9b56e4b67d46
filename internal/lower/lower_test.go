package lower

import (
	"testing"

	"autoc/internal/ast"
	"autoc/internal/diag"
	"autoc/internal/layout"
	"autoc/internal/mono"
	"autoc/internal/own"
	"autoc/internal/types"
)

func lowerUnit(t *testing.T, unit *ast.ModuleUnit) (*Program, *diag.Bag, error) {
	t.Helper()
	unit.Name = "demo"
	mm, err := mono.Run(unit, types.NewInterner(), mono.NewTable(), diag.NewBag(50))
	if err != nil {
		t.Fatalf("mono: %v", err)
	}
	eng := layout.New(layout.X86_64LinuxGNU(), mm)
	bag := diag.NewBag(50)
	set, err := own.Classify(mm, eng, bag)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	p, err := Run(mm, eng, set, bag)
	return p, bag, err
}

func counterDecl() *ast.TypeDecl {
	incBody := &ast.Block{Stmts: []ast.Stmt{{
		Kind: ast.StmtAssign,
		Assign: &ast.AssignStmt{
			Target: ast.SelfField("n"),
			Value:  ast.Binary("+", ast.SelfField("n"), ast.Int(1)),
		},
	}}}
	getBody := &ast.Block{Stmts: []ast.Stmt{{
		Kind:   ast.StmtReturn,
		Return: &ast.ReturnStmt{Value: selfFieldPtr("n")},
	}}}
	zero := ast.Expr{Kind: ast.ExprStructLit, Name: "Counter", Type: ast.Named("Counter")}
	newBody := &ast.Block{Stmts: []ast.Stmt{{
		Kind:   ast.StmtReturn,
		Return: &ast.ReturnStmt{Value: &zero},
	}}}
	return &ast.TypeDecl{
		Name:   "Counter",
		Kind:   ast.TypeRecord,
		Fields: []ast.Field{{Name: "n", Type: ast.Named("int")}},
		Methods: []*ast.MethodDecl{
			{Name: "inc", Kind: ast.MethodInstance, Mutates: true, Body: incBody},
			{Name: "get", Kind: ast.MethodInstance, Ret: ast.Named("int"), Body: getBody},
			{Name: "make", Kind: ast.MethodStatic, Ret: ast.Named("Counter"), Body: newBody},
		},
	}
}

func selfFieldPtr(name string) *ast.Expr {
	e := ast.SelfField(name)
	return &e
}

func TestMethodsBecomeFreeFunctions(t *testing.T) {
	p, _, err := lowerUnit(t, &ast.ModuleUnit{Types: []*ast.TypeDecl{counterDecl()}})
	if err != nil {
		t.Fatalf("lower: %v", err)
	}

	inc, ok := p.Func("Counter_inc")
	if !ok {
		t.Fatalf("Counter_inc not emitted")
	}
	if len(inc.Params) != 1 || inc.Params[0].Name != "self" {
		t.Fatalf("inc params: %+v", inc.Params)
	}
	if inc.Params[0].Mode != own.ModeRefMut {
		t.Errorf("mutating receiver mode = %s", inc.Params[0].Mode)
	}

	get, _ := p.Func("Counter_get")
	if get.Params[0].Mode != own.ModeRefImm {
		t.Errorf("read receiver mode = %s", get.Params[0].Mode)
	}
	if get.RetMode != own.ModeCopy {
		t.Errorf("result mode = %s, want copy", get.RetMode)
	}

	mk, ok := p.Func("Counter_make")
	if !ok {
		t.Fatalf("Counter_make not emitted")
	}
	if len(mk.Params) != 0 {
		t.Errorf("static method grew a receiver: %+v", mk.Params)
	}
}

func TestImplicitSelfRewritten(t *testing.T) {
	p, _, err := lowerUnit(t, &ast.ModuleUnit{Types: []*ast.TypeDecl{counterDecl()}})
	if err != nil {
		t.Fatalf("lower: %v", err)
	}
	get, _ := p.Func("Counter_get")
	ret := get.Body.Stmts[0].Return.Value
	if ret.Kind != ast.ExprField || ret.X == nil {
		t.Fatalf("field access still implicit: %+v", ret)
	}
	if ret.X.Kind != ast.ExprIdent || ret.X.Name != "self" {
		t.Fatalf("receiver qualifier = %+v", ret.X)
	}
}

func TestCallSitesRewritten(t *testing.T) {
	instCall := ast.CallOf(ast.FieldOf(ast.Ident("c"), "inc"))
	staticCall := ast.CallOf(ast.FieldOf(ast.Ident("Counter"), "make"))
	body := &ast.Block{Stmts: []ast.Stmt{
		{Kind: ast.StmtLet, Let: &ast.LetStmt{Name: "c", Mut: true, Type: ast.Named("Counter"), Init: &staticCall}},
		{Kind: ast.StmtExpr, Expr: &instCall},
	}}
	unit := &ast.ModuleUnit{
		Types: []*ast.TypeDecl{counterDecl()},
		Funcs: []*ast.FnDecl{{Name: "main", Body: body}},
	}
	p, _, err := lowerUnit(t, unit)
	if err != nil {
		t.Fatalf("lower: %v", err)
	}
	main, _ := p.Func("main")

	let := main.Body.Stmts[0].Let.Init
	if let.X == nil || let.X.Kind != ast.ExprIdent || let.X.Name != "Counter_make" {
		t.Fatalf("static call site = %+v", let.X)
	}
	if len(let.Args) != 0 {
		t.Fatalf("static call gained a receiver arg")
	}

	call := main.Body.Stmts[1].Expr
	if call.X.Kind != ast.ExprIdent || call.X.Name != "Counter_inc" {
		t.Fatalf("instance call site = %+v", call.X)
	}
	if len(call.Args) != 1 || call.Args[0].Kind != ast.ExprIdent || call.Args[0].Name != "c" {
		t.Fatalf("receiver not prepended: %+v", call.Args)
	}
}

func TestSymbolCollision(t *testing.T) {
	// a free function occupying the name a method mangles to
	unit := &ast.ModuleUnit{
		Types: []*ast.TypeDecl{counterDecl()},
		Funcs: []*ast.FnDecl{{Name: "Counter_inc", Body: &ast.Block{}}},
	}
	_, bag, err := lowerUnit(t, unit)
	if err == nil {
		t.Fatalf("mangled name collision must be fatal")
	}
	found := false
	for _, d := range bag.Items() {
		if d.Code == diag.EmitSymbolCollision {
			found = true
		}
	}
	if !found {
		t.Fatalf("no symbol collision diagnostic: %+v", bag.Items())
	}
}

func TestMatchValidatedDuringLowering(t *testing.T) {
	shape := &ast.TypeDecl{
		Name: "Shape",
		Kind: ast.TypeTag,
		Variants: []ast.Variant{
			{Name: "Point"},
			{Name: "Circle", Fields: []ast.Field{{Name: "r", Type: ast.Named("float")}}},
			{Name: "Rect"},
		},
	}
	ms := &ast.MatchStmt{
		Subject: ast.Ident("s"),
		Arms:    []ast.MatchArm{{Variant: "Point", Body: &ast.Block{}}},
	}
	body := &ast.Block{Stmts: []ast.Stmt{
		{Kind: ast.StmtLet, Let: &ast.LetStmt{Name: "s", Type: ast.Named("Shape")}},
		{Kind: ast.StmtMatch, Match: ms},
	}}
	unit := &ast.ModuleUnit{
		Types: []*ast.TypeDecl{shape},
		Funcs: []*ast.FnDecl{{Name: "area", Body: body}},
	}
	_, bag, err := lowerUnit(t, unit)
	if err == nil {
		t.Fatalf("non-exhaustive match must fail lowering")
	}
	found := false
	for _, d := range bag.Items() {
		if d.Code == diag.LayoutNonExhaustiveMatch {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing exhaustiveness diagnostic: %+v", bag.Items())
	}
}

func TestTagLayoutsCollected(t *testing.T) {
	shape := &ast.TypeDecl{
		Name: "Shape",
		Kind: ast.TypeTag,
		Variants: []ast.Variant{
			{Name: "Point"},
			{Name: "Circle", Fields: []ast.Field{{Name: "r", Type: ast.Named("float")}}},
		},
	}
	p, _, err := lowerUnit(t, &ast.ModuleUnit{Types: []*ast.TypeDecl{shape}})
	if err != nil {
		t.Fatalf("lower: %v", err)
	}
	tl, ok := p.Tags["Shape"]
	if !ok {
		t.Fatalf("tag layout not collected")
	}
	if tl.DiscName != "ShapeTag" || tl.UnionName != "ShapePayload" {
		t.Fatalf("derived names: %q %q", tl.DiscName, tl.UnionName)
	}
	if !p.Symbols.Has("ShapeTag") || !p.Symbols.Has("ShapePayload") {
		t.Fatalf("derived type names not reserved")
	}
}
