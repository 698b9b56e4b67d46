package own

import (
	"testing"

	"autoc/internal/ast"
	"autoc/internal/diag"
	"autoc/internal/layout"
	"autoc/internal/mono"
	"autoc/internal/types"
)

func build(t *testing.T, unit *ast.ModuleUnit) (*mono.Module, *layout.Engine) {
	t.Helper()
	unit.Name = "demo"
	mm, err := mono.Run(unit, types.NewInterner(), mono.NewTable(), diag.NewBag(50))
	if err != nil {
		t.Fatalf("mono: %v", err)
	}
	return mm, layout.New(layout.X86_64LinuxGNU(), mm)
}

func bufferDecl() *ast.TypeDecl {
	grow := &ast.MethodDecl{
		Name:    "grow",
		Kind:    ast.MethodInstance,
		Mutates: true,
		Params:  []ast.Param{{Name: "by", Type: ast.Named("int")}},
		Body:    &ast.Block{},
	}
	size := &ast.MethodDecl{
		Name: "size",
		Kind: ast.MethodInstance,
		Ret:  ast.Named("int"),
		Body: &ast.Block{},
	}
	return &ast.TypeDecl{
		Name: "Buffer",
		Kind: ast.TypeRecord,
		Fields: []ast.Field{
			{Name: "data", Type: ast.Named("str")},
			{Name: "len", Type: ast.Named("int")},
		},
		Methods: []*ast.MethodDecl{grow, size},
	}
}

func TestDecisionTable(t *testing.T) {
	fn := &ast.FnDecl{
		Name: "process",
		Params: []ast.Param{
			{Name: "n", Type: ast.Named("int")},                          // small read
			{Name: "buf", Type: ast.Named("Buffer")},                     // heap read
			{Name: "out", Type: ast.Named("Buffer"), Intent: ast.IntentMut},
			{Name: "owned", Type: ast.Named("Buffer"), Intent: ast.IntentTake},
		},
		Body: &ast.Block{},
	}
	mm, eng := build(t, &ast.ModuleUnit{Types: []*ast.TypeDecl{bufferDecl()}, Funcs: []*ast.FnDecl{fn}})

	set, err := Classify(mm, eng, diag.NewBag(10))
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	fc, ok := set.Fn("process")
	if !ok {
		t.Fatalf("process not classified")
	}
	want := []Mode{ModeCopy, ModeRefImm, ModeRefMut, ModeCopy}
	if len(fc.Params) != len(want) {
		t.Fatalf("classified %d params, want %d", len(fc.Params), len(want))
	}
	for i, w := range want {
		if fc.Params[i].Mode != w {
			t.Errorf("param %q mode = %s, want %s", fc.Params[i].Name, fc.Params[i].Mode, w)
		}
		if fc.Params[i].Mode == ModeInvalid {
			t.Errorf("param %q left unclassified", fc.Params[i].Name)
		}
	}
}

func TestReceiverModes(t *testing.T) {
	mm, eng := build(t, &ast.ModuleUnit{Types: []*ast.TypeDecl{bufferDecl()}})
	set, err := Classify(mm, eng, diag.NewBag(10))
	if err != nil {
		t.Fatalf("classify: %v", err)
	}

	grow, ok := set.Method("Buffer", "grow")
	if !ok || grow.Receiver == nil {
		t.Fatalf("grow receiver missing")
	}
	if grow.Receiver.Mode != ModeRefMut {
		t.Errorf("mutating receiver mode = %s, want mut ref", grow.Receiver.Mode)
	}

	size, ok := set.Method("Buffer", "size")
	if !ok || size.Receiver == nil {
		t.Fatalf("size receiver missing")
	}
	if size.Receiver.Mode != ModeRefImm {
		t.Errorf("read receiver mode = %s, want ref", size.Receiver.Mode)
	}
}

func TestPointerRequiresUnsafe(t *testing.T) {
	param := ast.Param{Name: "raw", Type: ast.Named("int"), Intent: ast.IntentAddr}

	safe := &ast.FnDecl{Name: "poke", Params: []ast.Param{param}, Body: &ast.Block{}}
	mm, eng := build(t, &ast.ModuleUnit{Funcs: []*ast.FnDecl{safe}})
	bag := diag.NewBag(10)
	if _, err := Classify(mm, eng, bag); err == nil {
		t.Fatalf("addr intent outside unsafe must be rejected")
	}
	if bag.Items()[0].Code != diag.OwnPointerOutsideUnsafe {
		t.Fatalf("code = %v", bag.Items()[0].Code)
	}

	blessed := &ast.FnDecl{Name: "poke", Params: []ast.Param{param}, Body: &ast.Block{Unsafe: true}}
	mm2, eng2 := build(t, &ast.ModuleUnit{Funcs: []*ast.FnDecl{blessed}})
	set, err := Classify(mm2, eng2, diag.NewBag(10))
	if err != nil {
		t.Fatalf("addr intent inside unsafe rejected: %v", err)
	}
	fc, _ := set.Fn("poke")
	if fc.Params[0].Mode != ModePointer {
		t.Fatalf("mode = %s, want pointer", fc.Params[0].Mode)
	}

	// extern prototypes carry no body to mark
	extern := &ast.FnDecl{Name: "memset_at", Params: []ast.Param{param}}
	mm3, eng3 := build(t, &ast.ModuleUnit{Funcs: []*ast.FnDecl{extern}})
	if _, err := Classify(mm3, eng3, diag.NewBag(10)); err != nil {
		t.Fatalf("extern addr param rejected: %v", err)
	}
}

func TestMutMethodOnImmutableBinding(t *testing.T) {
	mainWith := func(mut bool, method string) *ast.ModuleUnit {
		call := ast.CallOf(ast.FieldOf(ast.Ident("b"), method), ast.Int(4))
		body := &ast.Block{Stmts: []ast.Stmt{
			{Kind: ast.StmtLet, Let: &ast.LetStmt{Name: "b", Mut: mut, Type: ast.Named("Buffer")}},
			{Kind: ast.StmtExpr, Expr: &call},
		}}
		return &ast.ModuleUnit{
			Types: []*ast.TypeDecl{bufferDecl()},
			Funcs: []*ast.FnDecl{{Name: "main", Body: body}},
		}
	}

	mm, eng := build(t, mainWith(false, "grow"))
	bag := diag.NewBag(10)
	if _, err := Classify(mm, eng, bag); err == nil {
		t.Fatalf("mutating call on immutable binding must be rejected")
	}
	if bag.Items()[0].Code != diag.OwnMutateImmutable {
		t.Fatalf("code = %v", bag.Items()[0].Code)
	}

	// the same call on a mutable binding passes
	mm, eng = build(t, mainWith(true, "grow"))
	if _, err := Classify(mm, eng, diag.NewBag(10)); err != nil {
		t.Fatalf("mutating call on mutable binding rejected: %v", err)
	}

	// read-only methods never care
	mm, eng = build(t, mainWith(false, "size"))
	if _, err := Classify(mm, eng, diag.NewBag(10)); err != nil {
		t.Fatalf("read method on immutable binding rejected: %v", err)
	}
}

func TestAssignToImmutable(t *testing.T) {
	mainWith := func(mut bool) *ast.ModuleUnit {
		body := &ast.Block{Stmts: []ast.Stmt{
			{Kind: ast.StmtLet, Let: &ast.LetStmt{Name: "x", Mut: mut, Type: ast.Named("int")}},
			{Kind: ast.StmtAssign, Assign: &ast.AssignStmt{Target: ast.Ident("x"), Value: ast.Int(1)}},
		}}
		return &ast.ModuleUnit{Funcs: []*ast.FnDecl{{Name: "main", Body: body}}}
	}

	mm, eng := build(t, mainWith(false))
	bag := diag.NewBag(10)
	if _, err := Classify(mm, eng, bag); err == nil {
		t.Fatalf("assignment to immutable binding must be rejected")
	}
	if bag.Items()[0].Code != diag.OwnMutateImmutable {
		t.Fatalf("code = %v", bag.Items()[0].Code)
	}

	mm, eng = build(t, mainWith(true))
	if _, err := Classify(mm, eng, diag.NewBag(10)); err != nil {
		t.Fatalf("assignment to mutable binding rejected: %v", err)
	}
}

func TestFieldWriteRootsAtBinding(t *testing.T) {
	target := ast.FieldOf(ast.Ident("b"), "len")
	body := &ast.Block{Stmts: []ast.Stmt{
		{Kind: ast.StmtLet, Let: &ast.LetStmt{Name: "b", Type: ast.Named("Buffer")}},
		{Kind: ast.StmtAssign, Assign: &ast.AssignStmt{Target: target, Value: ast.Int(0)}},
	}}
	fn := &ast.FnDecl{Name: "main", Body: body}
	mm, eng := build(t, &ast.ModuleUnit{Types: []*ast.TypeDecl{bufferDecl()}, Funcs: []*ast.FnDecl{fn}})

	if _, err := Classify(mm, eng, diag.NewBag(10)); err == nil {
		t.Fatalf("field write through immutable binding must be rejected")
	}
}

func TestMutParamIsWritable(t *testing.T) {
	body := &ast.Block{Stmts: []ast.Stmt{
		{Kind: ast.StmtAssign, Assign: &ast.AssignStmt{
			Target: ast.FieldOf(ast.Ident("out"), "len"),
			Value:  ast.Int(0),
		}},
	}}
	fn := &ast.FnDecl{
		Name:   "reset",
		Params: []ast.Param{{Name: "out", Type: ast.Named("Buffer"), Intent: ast.IntentMut}},
		Body:   body,
	}
	mm, eng := build(t, &ast.ModuleUnit{Types: []*ast.TypeDecl{bufferDecl()}, Funcs: []*ast.FnDecl{fn}})
	if _, err := Classify(mm, eng, diag.NewBag(10)); err != nil {
		t.Fatalf("write through mut param rejected: %v", err)
	}
}

func TestMutParamOnImmutableArgument(t *testing.T) {
	consume := &ast.FnDecl{
		Name:   "consume",
		Params: []ast.Param{{Name: "out", Type: ast.Named("Buffer"), Intent: ast.IntentMut}},
		Body:   &ast.Block{},
	}
	mainWith := func(mut bool) *ast.ModuleUnit {
		call := ast.CallOf(ast.Ident("consume"), ast.Ident("b"))
		body := &ast.Block{Stmts: []ast.Stmt{
			{Kind: ast.StmtLet, Let: &ast.LetStmt{Name: "b", Mut: mut, Type: ast.Named("Buffer")}},
			{Kind: ast.StmtExpr, Expr: &call},
		}}
		return &ast.ModuleUnit{
			Types: []*ast.TypeDecl{bufferDecl()},
			Funcs: []*ast.FnDecl{consume, {Name: "main", Body: body}},
		}
	}

	mm, eng := build(t, mainWith(false))
	bag := diag.NewBag(10)
	if _, err := Classify(mm, eng, bag); err == nil {
		t.Fatalf("immutable binding into a mut slot must be rejected")
	}
	if bag.Items()[0].Code != diag.OwnMutateImmutable {
		t.Fatalf("code = %v", bag.Items()[0].Code)
	}

	mm, eng = build(t, mainWith(true))
	if _, err := Classify(mm, eng, diag.NewBag(10)); err != nil {
		t.Fatalf("mutable binding into a mut slot rejected: %v", err)
	}
}

func TestTemporaryIntoReferenceSlot(t *testing.T) {
	consume := &ast.FnDecl{
		Name:   "consume",
		Params: []ast.Param{{Name: "out", Type: ast.Named("Buffer"), Intent: ast.IntentMut}},
		Body:   &ast.Block{},
	}
	sink := &ast.FnDecl{
		Name:   "sink",
		Params: []ast.Param{{Name: "owned", Type: ast.Named("Buffer"), Intent: ast.IntentTake}},
		Body:   &ast.Block{},
	}
	lit := ast.Expr{Kind: ast.ExprStructLit, Name: "Buffer", Type: ast.Named("Buffer")}

	call := ast.CallOf(ast.Ident("consume"), lit)
	body := &ast.Block{Stmts: []ast.Stmt{{Kind: ast.StmtExpr, Expr: &call}}}
	unit := &ast.ModuleUnit{
		Types: []*ast.TypeDecl{bufferDecl()},
		Funcs: []*ast.FnDecl{consume, {Name: "main", Body: body}},
	}
	mm, eng := build(t, unit)
	bag := diag.NewBag(10)
	if _, err := Classify(mm, eng, bag); err == nil {
		t.Fatalf("literal into a reference slot must be rejected")
	}
	if bag.Items()[0].Code != diag.OwnTemporaryRef {
		t.Fatalf("code = %v", bag.Items()[0].Code)
	}

	// moving a literal into a by-value slot is fine
	call = ast.CallOf(ast.Ident("sink"), lit)
	body = &ast.Block{Stmts: []ast.Stmt{{Kind: ast.StmtExpr, Expr: &call}}}
	unit = &ast.ModuleUnit{
		Types: []*ast.TypeDecl{bufferDecl()},
		Funcs: []*ast.FnDecl{sink, {Name: "main", Body: body}},
	}
	mm, eng = build(t, unit)
	if _, err := Classify(mm, eng, diag.NewBag(10)); err != nil {
		t.Fatalf("literal moved by value rejected: %v", err)
	}
}

func TestResultSlots(t *testing.T) {
	fill := &ast.FnDecl{Name: "fill", Ret: ast.Named("Buffer"), Body: &ast.Block{}}
	reset := &ast.FnDecl{Name: "reset", Body: &ast.Block{}}
	unit := &ast.ModuleUnit{
		Types: []*ast.TypeDecl{bufferDecl()},
		Funcs: []*ast.FnDecl{fill, reset},
	}
	mm, eng := build(t, unit)
	set, err := Classify(mm, eng, diag.NewBag(10))
	if err != nil {
		t.Fatalf("classify: %v", err)
	}

	fc, _ := set.Fn("fill")
	if fc.Result == nil {
		t.Fatalf("fill result not classified")
	}
	// a heap-backed result still moves out by value
	if fc.Result.Mode != ModeCopy {
		t.Errorf("fill result mode = %s, want copy", fc.Result.Mode)
	}

	fc, _ = set.Fn("reset")
	if fc.Result != nil {
		t.Errorf("void function carries a result slot")
	}

	size, _ := set.Method("Buffer", "size")
	if size.Result == nil || size.Result.Mode != ModeCopy {
		t.Errorf("method result not classified as a move")
	}
	grow, _ := set.Method("Buffer", "grow")
	if grow.Result != nil {
		t.Errorf("void method carries a result slot")
	}
}

func TestMatchBindingInheritsSubjectMutability(t *testing.T) {
	shape := &ast.TypeDecl{
		Name: "Shape",
		Kind: ast.TypeTag,
		Variants: []ast.Variant{
			{Name: "Circle", Fields: []ast.Field{{Name: "radius", Type: ast.Named("int")}}},
			{Name: "Point"},
		},
	}
	handlerWith := func(intent ast.Intent) *ast.ModuleUnit {
		armBody := &ast.Block{Stmts: []ast.Stmt{
			{Kind: ast.StmtAssign, Assign: &ast.AssignStmt{Target: ast.Ident("r"), Value: ast.Int(1)}},
		}}
		match := &ast.MatchStmt{
			Subject: ast.Ident("s"),
			Arms:    []ast.MatchArm{{Variant: "Circle", Binds: []string{"r"}, Body: armBody}},
			Default: &ast.Block{},
		}
		fn := &ast.FnDecl{
			Name:   "handle",
			Params: []ast.Param{{Name: "s", Type: ast.Named("Shape"), Intent: intent}},
			Body:   &ast.Block{Stmts: []ast.Stmt{{Kind: ast.StmtMatch, Match: match}}},
		}
		return &ast.ModuleUnit{Types: []*ast.TypeDecl{shape}, Funcs: []*ast.FnDecl{fn}}
	}

	mm, eng := build(t, handlerWith(ast.IntentMut))
	if _, err := Classify(mm, eng, diag.NewBag(10)); err != nil {
		t.Fatalf("write to binding of mutable subject rejected: %v", err)
	}

	mm, eng = build(t, handlerWith(ast.IntentRead))
	bag := diag.NewBag(10)
	if _, err := Classify(mm, eng, bag); err == nil {
		t.Fatalf("write to binding of immutable subject must be rejected")
	}
	if bag.Items()[0].Code != diag.OwnMutateImmutable {
		t.Fatalf("code = %v", bag.Items()[0].Code)
	}
}
