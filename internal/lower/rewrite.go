package lower

import (
	"fmt"

	"autoc/internal/ast"
	"autoc/internal/diag"
	"autoc/internal/layout"
	"autoc/internal/mono"
)

// env tracks declared binding types through a body walk so method call
// sites can be resolved to their owning type.
type env struct {
	parent *env
	binds  map[string]ast.TypeRef
}

func newEnv() *env {
	return &env{binds: make(map[string]ast.TypeRef)}
}

func (e *env) child() *env {
	return &env{parent: e, binds: make(map[string]ast.TypeRef)}
}

func (e *env) bind(name string, ref ast.TypeRef) {
	e.binds[name] = ref
}

func (e *env) lookup(name string) (ast.TypeRef, bool) {
	for s := e; s != nil; s = s.parent {
		if r, ok := s.binds[name]; ok {
			return r, true
		}
	}
	return ast.TypeRef{}, false
}

// rewriter lowers one function body in place. The monomorphizer already
// cloned the tree, so the lowered program owns it.
type rewriter struct {
	p   *Program
	mm  *mono.Module
	bag *diag.Bag

	sym      string
	selfType string
}

func (rw *rewriter) lowerBody(f *Func, env *env, selfType string) {
	if f.Body == nil {
		return
	}
	rw.sym = f.Name
	rw.selfType = selfType
	rw.block(f.Body, env)
}

func (rw *rewriter) block(b *ast.Block, outer *env) {
	env := outer.child()
	for i := range b.Stmts {
		rw.stmt(&b.Stmts[i], env)
	}
}

func (rw *rewriter) stmt(st *ast.Stmt, env *env) {
	switch st.Kind {
	case ast.StmtLet:
		if st.Let.Init != nil {
			rw.expr(st.Let.Init, env)
		}
		ref := st.Let.Type
		if ref.IsVoid() && st.Let.Init != nil {
			ref = st.Let.Init.Type
		}
		env.bind(st.Let.Name, ref)
	case ast.StmtAssign:
		rw.expr(&st.Assign.Target, env)
		rw.expr(&st.Assign.Value, env)
	case ast.StmtExpr:
		rw.expr(st.Expr, env)
	case ast.StmtIf:
		rw.expr(&st.If.Cond, env)
		rw.block(st.If.Then, env)
		if st.If.Else != nil {
			rw.stmt(st.If.Else, env)
		}
	case ast.StmtWhile:
		if st.While.Cond != nil {
			rw.expr(st.While.Cond, env)
		}
		rw.block(st.While.Body, env)
	case ast.StmtFor:
		rw.expr(&st.For.From, env)
		rw.expr(&st.For.To, env)
		body := env.child()
		body.bind(st.For.Var, ast.Named("int"))
		rw.block(st.For.Body, body)
	case ast.StmtReturn:
		if st.Return.Value != nil {
			rw.expr(st.Return.Value, env)
		}
	case ast.StmtMatch:
		rw.match(st.Match, env)
	case ast.StmtBlock:
		rw.block(st.Block, env)
	}
}

// match checks the dispatch against the subject's tag layout and lowers the
// arm bodies. The computed plan is stored on the program; the emitter reads
// it back and never re-validates.
func (rw *rewriter) match(ms *ast.MatchStmt, env *env) {
	rw.expr(&ms.Subject, env)
	subj := rw.exprType(&ms.Subject, env)
	tl, ok := rw.p.Tags[subj.Name]
	if !ok {
		rw.bag.Add(diag.NewError(diag.LayoutUnknownVariant, ms.Span,
			fmt.Sprintf("match subject %q is not a tag type", subj.Name)).
			At(rw.p.Name, rw.sym))
		return
	}
	if sw, err := layout.LowerMatch(ms, tl, rw.bag); err == nil {
		rw.p.Matches[ms] = &MatchPlan{Tag: tl, Switch: sw}
	}

	td, _ := rw.mm.TypeByName(subj.Name)
	for i := range ms.Arms {
		arm := &ms.Arms[i]
		armEnv := env.child()
		if td != nil {
			if v, ok := td.Variant(arm.Variant); ok {
				for j, b := range arm.Binds {
					if j < len(v.Fields) {
						armEnv.bind(b, v.Fields[j].Type)
					}
				}
			}
		}
		rw.block(arm.Body, armEnv)
	}
	if ms.Default != nil {
		rw.block(ms.Default, env)
	}
}

func (rw *rewriter) expr(e *ast.Expr, env *env) {
	if e == nil {
		return
	}
	switch e.Kind {
	case ast.ExprField:
		// implicit current-instance access becomes an explicit receiver
		// access right here; the emitter never re-resolves scope
		if e.X == nil && rw.selfType != "" {
			self := ast.Ident("self")
			self.Type = ast.Named(rw.selfType)
			e.X = &self
			return
		}
		rw.expr(e.X, env)
	case ast.ExprCall:
		rw.call(e, env)
	case ast.ExprUnary:
		rw.expr(e.X, env)
	case ast.ExprBinary, ast.ExprIndex:
		rw.expr(e.X, env)
		rw.expr(e.Y, env)
	case ast.ExprStructLit, ast.ExprVariant:
		for i := range e.Args {
			rw.expr(&e.Args[i], env)
		}
		for i := range e.Fields {
			rw.expr(&e.Fields[i].Value, env)
		}
	}
}

// call rewrites method call sites to their mangled free-function form:
// instance calls gain the receiver as the first argument, static calls keep
// their argument list.
func (rw *rewriter) call(e *ast.Expr, env *env) {
	for i := range e.Args {
		rw.expr(&e.Args[i], env)
	}
	callee := e.X
	if callee == nil || callee.Kind != ast.ExprField {
		rw.expr(callee, env)
		return
	}

	// Type.method(...) with no binding named like the type is static
	if recv := callee.X; recv != nil && recv.Kind == ast.ExprIdent {
		if _, bound := env.lookup(recv.Name); !bound {
			if td, ok := rw.mm.TypeByName(recv.Name); ok {
				if md := methodOf(td, callee.Name); md != nil && md.Kind == ast.MethodStatic {
					*e.X = ast.Ident(MangleMethod(td.Name, md.Name))
					return
				}
			}
		}
	}

	rw.expr(callee, env)
	recv := callee.X
	if recv == nil {
		return
	}
	recvType := rw.exprType(recv, env)
	base := recvType
	if base.Ptr != nil {
		base = *base.Ptr
	}
	td, ok := rw.mm.TypeByName(base.Name)
	if !ok {
		return
	}
	md := methodOf(td, callee.Name)
	if md == nil {
		return
	}
	args := make([]ast.Expr, 0, len(e.Args)+1)
	args = append(args, *recv)
	args = append(args, e.Args...)
	e.Args = args
	*e.X = ast.Ident(MangleMethod(td.Name, md.Name))
}

func methodOf(td *ast.TypeDecl, name string) *ast.MethodDecl {
	for _, md := range td.Methods {
		if md.Name == name {
			return md
		}
	}
	return nil
}

// exprType resolves the declared type of an expression from the binding
// environment, falling back to the front end annotation.
func (rw *rewriter) exprType(e *ast.Expr, env *env) ast.TypeRef {
	switch e.Kind {
	case ast.ExprIdent:
		if r, ok := env.lookup(e.Name); ok && !r.IsVoid() {
			return r
		}
		for _, g := range rw.mm.Globals {
			if g.Name == e.Name {
				return g.Type
			}
		}
	case ast.ExprField:
		base := ast.TypeRef{}
		if e.X != nil {
			base = rw.exprType(e.X, env)
		}
		if base.Ptr != nil {
			base = *base.Ptr
		}
		if td, ok := rw.mm.TypeByName(base.Name); ok {
			for _, f := range td.Fields {
				if f.Name == e.Name {
					return f.Type
				}
			}
		}
	case ast.ExprIndex:
		base := rw.exprType(e.X, env)
		if base.Slice != nil {
			return *base.Slice
		}
	case ast.ExprStructLit, ast.ExprVariant:
		return ast.Named(e.Name)
	case ast.ExprUnary:
		if e.Op == "*" {
			base := rw.exprType(e.X, env)
			if base.Ptr != nil {
				return *base.Ptr
			}
		}
	}
	return e.Type
}
