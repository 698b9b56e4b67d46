package own

import (
	"fmt"

	"autoc/internal/ast"
	"autoc/internal/diag"
	"autoc/internal/layout"
	"autoc/internal/mono"
	"autoc/internal/source"
)

// Classifier walks a concrete module once and tags every parameter binding.
type Classifier struct {
	mm  *mono.Module
	eng *layout.Engine
	bag *diag.Bag

	set *Set
}

// Classify tags every parameter of every function and method in the module
// and checks bodies for mutable access to immutable-origin bindings. Every
// binding receives exactly one tag even when a diagnostic is raised, so the
// result is usable by lowering for error recovery.
func Classify(mm *mono.Module, eng *layout.Engine, bag *diag.Bag) (*Set, error) {
	c := &Classifier{
		mm:  mm,
		eng: eng,
		bag: bag,
		set: &Set{fns: make(map[string]*FnClass)},
	}
	for _, fn := range mm.Funcs {
		c.classifyFn(fn)
	}
	for _, td := range mm.Types {
		for _, md := range td.Methods {
			c.classifyMethod(td, md)
		}
	}
	return c.set, bag.Err()
}

func (c *Classifier) classifyFn(fn *ast.FnDecl) {
	fc := &FnClass{Name: fn.Name}
	env := newEnv()
	for _, p := range fn.Params {
		pc := c.classifyParam(p, fn.Name, bodyUnsafe(fn.Body))
		fc.Params = append(fc.Params, pc)
		env.bind(p.Name, paramMutable(p.Intent), p.Type)
	}
	fc.Result = classifyResult(fn.Ret, fn.Span)
	c.set.fns[fn.Name] = fc
	if fn.Body != nil {
		c.checkBlock(fn.Body, env, fn.Body.Unsafe, fn.Name)
	}
}

func (c *Classifier) classifyMethod(td *ast.TypeDecl, md *ast.MethodDecl) {
	fc := &FnClass{Name: md.Name}
	env := newEnv()
	if md.Kind == ast.MethodInstance {
		// Receivers are references by default; a mutating method takes a
		// mutable reference. Size class never demotes a receiver to a copy:
		// field writes must land on the caller's value.
		mode := ModeRefImm
		if md.Mutates {
			mode = ModeRefMut
		}
		fc.Receiver = &ParamClass{
			Name: "self",
			Type: ast.Named(td.Name),
			Mode: mode,
			Span: md.Span,
		}
		env.bind("self", md.Mutates, ast.Named(td.Name))
	}
	sym := td.Name + "." + md.Name
	for _, p := range md.Params {
		pc := c.classifyParam(p, sym, bodyUnsafe(md.Body))
		fc.Params = append(fc.Params, pc)
		env.bind(p.Name, paramMutable(p.Intent), p.Type)
	}
	fc.Result = classifyResult(md.Ret, md.Span)
	c.set.fns[methodKey(td.Name, md.Name)] = fc
	if md.Body != nil {
		c.checkBlock(md.Body, env, md.Body.Unsafe, sym)
	}
}

// classifyParam applies the decision table and raises the declaration-site
// diagnostics modeOf cannot.
func (c *Classifier) classifyParam(p ast.Param, sym string, unsafeBody bool) ParamClass {
	pc := ParamClass{Name: p.Name, Type: p.Type, Span: p.Span}
	pc.Mode, _ = c.modeOf(p)
	switch {
	case pc.Mode == ModePointer && !unsafeBody:
		c.bag.Add(diag.NewError(diag.OwnPointerOutsideUnsafe, p.Span,
			fmt.Sprintf("parameter %q requests a raw address but the body is not marked unsafe", p.Name)).
			At(c.mm.Name, sym))
	case p.Intent == ast.IntentRead:
		if _, err := c.eng.ClassOfRef(p.Type); err != nil {
			c.bag.Add(diag.NewError(diag.OwnUnknownBinding, p.Span, err.Error()).At(c.mm.Name, sym))
		}
	}
	return pc
}

// modeOf applies the decision table alone. The intent always wins over the
// size class: mutate-in-place needs a reference no matter how small the
// value, and transfer of ownership is a move by value no matter how large.
// Call-site checks use it to see the callee the way the classifier did.
func (c *Classifier) modeOf(p ast.Param) (Mode, bool) {
	switch p.Intent {
	case ast.IntentAddr:
		return ModePointer, true
	case ast.IntentTake:
		return ModeCopy, true
	case ast.IntentMut:
		return ModeRefMut, true
	}
	class, err := c.eng.ClassOfRef(p.Type)
	if err != nil {
		return ModeRefImm, false
	}
	if class == layout.ClassSmall {
		return ModeCopy, true
	}
	return ModeRefImm, true
}

// classifyResult tags the return slot. A result always transfers ownership
// to the caller, so it is a move by value regardless of size class; void
// functions carry no slot.
func classifyResult(ret ast.TypeRef, sp source.Span) *ParamClass {
	if ret.IsVoid() {
		return nil
	}
	return &ParamClass{Type: ret, Mode: ModeCopy, Span: sp}
}

// bodyUnsafe reports whether a raw pointer parameter is legal. Externally
// provided functions have no body to mark; their low-level access lives on
// the other side of the prototype.
func bodyUnsafe(b *ast.Block) bool {
	return b == nil || b.Unsafe
}

func paramMutable(in ast.Intent) bool {
	return in != ast.IntentRead
}

// env tracks binding mutability and declared types through a body walk.
// Scopes are copy-on-enter: blocks get a child env and never leak bindings
// upward.
type env struct {
	parent *env
	binds  map[string]binding
}

type binding struct {
	mut bool
	ref ast.TypeRef
}

func newEnv() *env {
	return &env{binds: make(map[string]binding)}
}

func (e *env) child() *env {
	return &env{parent: e, binds: make(map[string]binding)}
}

func (e *env) bind(name string, mut bool, ref ast.TypeRef) {
	e.binds[name] = binding{mut: mut, ref: ref}
}

func (e *env) lookup(name string) (binding, bool) {
	for s := e; s != nil; s = s.parent {
		if b, ok := s.binds[name]; ok {
			return b, true
		}
	}
	return binding{}, false
}

func (c *Classifier) checkBlock(b *ast.Block, outer *env, inUnsafe bool, sym string) {
	env := outer.child()
	unsafe := inUnsafe || b.Unsafe
	for i := range b.Stmts {
		c.checkStmt(&b.Stmts[i], env, unsafe, sym)
	}
}

func (c *Classifier) checkStmt(st *ast.Stmt, env *env, unsafe bool, sym string) {
	switch st.Kind {
	case ast.StmtLet:
		if st.Let.Init != nil {
			c.checkExpr(st.Let.Init, env, unsafe, sym)
		}
		ref := st.Let.Type
		if ref.Name == "" && ref.Ptr == nil && ref.Slice == nil && st.Let.Init != nil {
			ref = st.Let.Init.Type
		}
		env.bind(st.Let.Name, st.Let.Mut, ref)
	case ast.StmtAssign:
		c.checkExpr(&st.Assign.Value, env, unsafe, sym)
		c.requireMutable(&st.Assign.Target, env, sym, "assignment")
	case ast.StmtExpr:
		c.checkExpr(st.Expr, env, unsafe, sym)
	case ast.StmtIf:
		c.checkExpr(&st.If.Cond, env, unsafe, sym)
		c.checkBlock(st.If.Then, env, unsafe, sym)
		if st.If.Else != nil {
			c.checkStmt(st.If.Else, env, unsafe, sym)
		}
	case ast.StmtWhile:
		if st.While.Cond != nil {
			c.checkExpr(st.While.Cond, env, unsafe, sym)
		}
		c.checkBlock(st.While.Body, env, unsafe, sym)
	case ast.StmtFor:
		c.checkExpr(&st.For.From, env, unsafe, sym)
		c.checkExpr(&st.For.To, env, unsafe, sym)
		body := env.child()
		body.bind(st.For.Var, true, ast.Named("int"))
		c.checkBlock(st.For.Body, body, unsafe, sym)
	case ast.StmtReturn:
		if st.Return.Value != nil {
			c.checkExpr(st.Return.Value, env, unsafe, sym)
		}
	case ast.StmtMatch:
		c.checkExpr(&st.Match.Subject, env, unsafe, sym)
		subjType := c.exprType(&st.Match.Subject, env)
		_, subjMut, known := c.rootBinding(&st.Match.Subject, env)
		subjMut = subjMut && known
		for i := range st.Match.Arms {
			arm := &st.Match.Arms[i]
			armEnv := env.child()
			c.bindArm(arm, subjType, subjMut, armEnv)
			c.checkBlock(arm.Body, armEnv, unsafe, sym)
		}
		if st.Match.Default != nil {
			c.checkBlock(st.Match.Default, env, unsafe, sym)
		}
	case ast.StmtBlock:
		c.checkBlock(st.Block, env, unsafe, sym)
	}
}

// bindArm introduces the arm's payload bindings. Payload bindings view the
// subject's storage, so they inherit the subject's mutability only when the
// root binding is mutable; subjects with no named origin bind immutable.
func (c *Classifier) bindArm(arm *ast.MatchArm, subj ast.TypeRef, mut bool, env *env) {
	td, ok := c.mm.TypeByName(subj.Name)
	if !ok {
		for _, b := range arm.Binds {
			env.bind(b, mut, ast.TypeRef{})
		}
		return
	}
	v, ok := td.Variant(arm.Variant)
	if !ok {
		return
	}
	for i, b := range arm.Binds {
		var ref ast.TypeRef
		if i < len(v.Fields) {
			ref = v.Fields[i].Type
		}
		env.bind(b, mut, ref)
	}
}

func (c *Classifier) checkExpr(e *ast.Expr, env *env, unsafe bool, sym string) {
	if e == nil {
		return
	}
	switch e.Kind {
	case ast.ExprUnary:
		if e.Op == "&" && !unsafe {
			c.bag.Add(diag.NewError(diag.OwnPointerOutsideUnsafe, e.Span,
				"address-of outside an unsafe block").At(c.mm.Name, sym))
		}
		c.checkExpr(e.X, env, unsafe, sym)
	case ast.ExprBinary:
		c.checkExpr(e.X, env, unsafe, sym)
		c.checkExpr(e.Y, env, unsafe, sym)
	case ast.ExprCall:
		c.checkCall(e, env, unsafe, sym)
	case ast.ExprField, ast.ExprIndex:
		c.checkExpr(e.X, env, unsafe, sym)
		if e.Kind == ast.ExprIndex {
			c.checkExpr(e.Y, env, unsafe, sym)
		}
	case ast.ExprStructLit, ast.ExprVariant:
		for i := range e.Args {
			c.checkExpr(&e.Args[i], env, unsafe, sym)
		}
		for i := range e.Fields {
			c.checkExpr(&e.Fields[i].Value, env, unsafe, sym)
		}
	case ast.ExprIdent:
		if e.Name == "self" {
			return
		}
		if _, ok := env.lookup(e.Name); ok {
			return
		}
		// globals and function names resolve at module scope
	}
}

// checkCall validates calls against the callee's declared intents: a method
// declared to mutate its receiver may only be called on a mutable-origin
// binding, and every argument must fit the slot it flows into. The check
// runs here, before lowering, so the emitter never sees the violation.
func (c *Classifier) checkCall(e *ast.Expr, env *env, unsafe bool, sym string) {
	for i := range e.Args {
		c.checkExpr(&e.Args[i], env, unsafe, sym)
	}
	callee := e.X
	if callee == nil {
		return
	}
	if callee.Kind == ast.ExprIdent {
		if fn, ok := c.fnByName(callee.Name); ok {
			c.checkArgs(fn.Params, e.Args, env, sym)
		}
		return
	}
	if callee.Kind != ast.ExprField || callee.X == nil {
		c.checkExpr(callee, env, unsafe, sym)
		return
	}
	recv := callee.X

	// Type.method(...) on an unshadowed type name is a static call: no
	// receiver to check, only the argument slots.
	if recv.Kind == ast.ExprIdent {
		if _, bound := env.lookup(recv.Name); !bound {
			if td, ok := c.mm.TypeByName(recv.Name); ok {
				if md := methodByName(td, callee.Name); md != nil && md.Kind == ast.MethodStatic {
					c.checkArgs(md.Params, e.Args, env, sym)
					return
				}
			}
		}
	}

	c.checkExpr(recv, env, unsafe, sym)

	recvType := c.exprType(recv, env)
	if recvType.Ptr != nil {
		recvType = *recvType.Ptr
	}
	td, ok := c.mm.TypeByName(recvType.Name)
	if !ok {
		return
	}
	md := methodByName(td, callee.Name)
	if md == nil {
		return
	}
	c.checkArgs(md.Params, e.Args, env, sym)
	if !md.Mutates {
		return
	}
	if name, mut, known := c.rootBinding(recv, env); known && !mut {
		c.bag.Add(diag.NewError(diag.OwnMutateImmutable, e.Span,
			fmt.Sprintf("method %s.%s mutates its receiver but %q is immutable at its origin",
				td.Name, md.Name, name)).At(c.mm.Name, sym))
	}
}

// checkArgs matches arguments against the slots they flow into. A reference
// slot needs addressable storage behind the argument, and a mutable
// reference additionally needs a mutable-origin binding. Extra arguments
// are an arity error the front end already owns.
func (c *Classifier) checkArgs(params []ast.Param, args []ast.Expr, env *env, sym string) {
	for i := range args {
		if i >= len(params) {
			break
		}
		mode, ok := c.modeOf(params[i])
		if !ok || !mode.ByRef() {
			continue
		}
		a := &args[i]
		if !addressable(a) {
			c.bag.Add(diag.NewError(diag.OwnTemporaryRef, a.Span,
				fmt.Sprintf("parameter %q takes a reference but the argument is a temporary value", params[i].Name)).
				At(c.mm.Name, sym))
			continue
		}
		if mode != ModeRefMut {
			continue
		}
		if name, mut, known := c.rootBinding(a, env); known && !mut {
			c.bag.Add(diag.NewError(diag.OwnMutateImmutable, a.Span,
				fmt.Sprintf("parameter %q mutates in place but %q is immutable at its origin",
					params[i].Name, name)).At(c.mm.Name, sym))
		}
	}
}

// addressable reports whether an expression denotes storage a reference can
// point at. Calls, literals, and operator results are temporaries.
func addressable(e *ast.Expr) bool {
	switch e.Kind {
	case ast.ExprIdent, ast.ExprField, ast.ExprIndex:
		return true
	case ast.ExprUnary:
		return e.Op == "*"
	}
	return false
}

func (c *Classifier) fnByName(name string) (*ast.FnDecl, bool) {
	for _, fn := range c.mm.Funcs {
		if fn.Name == name {
			return fn, true
		}
	}
	return nil, false
}

func methodByName(td *ast.TypeDecl, name string) *ast.MethodDecl {
	for _, md := range td.Methods {
		if md.Name == name {
			return md
		}
	}
	return nil
}

// requireMutable resolves the root binding of an lvalue and reports a write
// through an immutable origin. Writes through dereferences have no named
// origin in this frame and pass.
func (c *Classifier) requireMutable(target *ast.Expr, env *env, sym, what string) {
	name, mut, known := c.rootBinding(target, env)
	if !known {
		if target.Kind == ast.ExprIdent {
			c.bag.Add(diag.NewError(diag.OwnUnknownBinding, target.Span,
				fmt.Sprintf("%s targets unknown binding %q", what, target.Name)).At(c.mm.Name, sym))
		}
		return
	}
	if !mut {
		c.bag.Add(diag.NewError(diag.OwnMutateImmutable, target.Span,
			fmt.Sprintf("%s to %q, which is immutable at its origin", what, name)).At(c.mm.Name, sym))
	}
}

// rootBinding walks field and index chains down to the named binding the
// lvalue ultimately lives in. An implicit current-instance field access
// roots at the receiver.
func (c *Classifier) rootBinding(e *ast.Expr, env *env) (string, bool, bool) {
	switch e.Kind {
	case ast.ExprIdent:
		if b, ok := env.lookup(e.Name); ok {
			return e.Name, b.mut, true
		}
		for _, g := range c.mm.Globals {
			if g.Name == e.Name {
				return e.Name, g.Mut, true
			}
		}
		return e.Name, false, false
	case ast.ExprField:
		if e.X == nil {
			b, ok := env.lookup("self")
			return "self", ok && b.mut, ok
		}
		return c.rootBinding(e.X, env)
	case ast.ExprIndex:
		return c.rootBinding(e.X, env)
	case ast.ExprUnary:
		// a write through a dereference targets whatever the pointer
		// points at, not the pointer binding itself
		return "", false, false
	}
	return "", false, false
}

// exprType resolves the declared type of an expression, preferring the
// binding environment over the front end annotation so synthetic trees in
// tests work unannotated.
func (c *Classifier) exprType(e *ast.Expr, env *env) ast.TypeRef {
	switch e.Kind {
	case ast.ExprIdent:
		if b, ok := env.lookup(e.Name); ok && !refIsZero(b.ref) {
			return b.ref
		}
		for _, g := range c.mm.Globals {
			if g.Name == e.Name {
				return g.Type
			}
		}
	case ast.ExprField:
		base := ast.TypeRef{}
		if e.X == nil {
			if b, ok := env.lookup("self"); ok {
				base = b.ref
			}
		} else {
			base = c.exprType(e.X, env)
		}
		if base.Ptr != nil {
			base = *base.Ptr
		}
		if td, ok := c.mm.TypeByName(base.Name); ok {
			for _, f := range td.Fields {
				if f.Name == e.Name {
					return f.Type
				}
			}
		}
	case ast.ExprIndex:
		base := c.exprType(e.X, env)
		if base.Slice != nil {
			return *base.Slice
		}
	case ast.ExprUnary:
		if e.Op == "*" {
			base := c.exprType(e.X, env)
			if base.Ptr != nil {
				return *base.Ptr
			}
		}
	}
	return e.Type
}

func refIsZero(r ast.TypeRef) bool {
	return r.Name == "" && r.Ptr == nil && r.Slice == nil && len(r.Args) == 0
}
