package mono

import (
	"autoc/internal/ast"
	"autoc/internal/types"
)

// binding is one generic parameter's concrete substitution.
type binding struct {
	Ref ast.TypeRef
	ID  types.TypeID
}

// env maps generic parameter names to concrete bindings for the
// instantiation currently being expanded.
type env map[string]binding

// cloneBlock deep-copies a block, rewriting every type reference through
// the monomorphizer. The input tree is never mutated.
func (m *Monomorphizer) cloneBlock(b *ast.Block, e env) (*ast.Block, error) {
	if b == nil {
		return nil, nil
	}
	out := &ast.Block{Unsafe: b.Unsafe, Span: b.Span, Stmts: make([]ast.Stmt, 0, len(b.Stmts))}
	for i := range b.Stmts {
		st, err := m.cloneStmt(&b.Stmts[i], e)
		if err != nil {
			return nil, err
		}
		out.Stmts = append(out.Stmts, *st)
	}
	return out, nil
}

func (m *Monomorphizer) cloneStmt(s *ast.Stmt, e env) (*ast.Stmt, error) {
	out := &ast.Stmt{Kind: s.Kind, Span: s.Span}
	var err error
	switch s.Kind {
	case ast.StmtLet:
		ls := &ast.LetStmt{Name: s.Let.Name, Mut: s.Let.Mut}
		if ls.Init, err = m.cloneExprPtr(s.Let.Init, e); err != nil {
			return nil, err
		}
		if !s.Let.Type.IsVoid() {
			if ls.Type, _, err = m.resolveRef(s.Let.Type, e, s.Span); err != nil {
				return nil, err
			}
		}
		out.Let = ls
	case ast.StmtAssign:
		as := &ast.AssignStmt{}
		t, err := m.cloneExpr(s.Assign.Target, e)
		if err != nil {
			return nil, err
		}
		v, err := m.cloneExpr(s.Assign.Value, e)
		if err != nil {
			return nil, err
		}
		as.Target, as.Value = *t, *v
		out.Assign = as
	case ast.StmtExpr:
		if out.Expr, err = m.cloneExprPtr(s.Expr, e); err != nil {
			return nil, err
		}
	case ast.StmtIf:
		is := &ast.IfStmt{}
		c, err := m.cloneExpr(s.If.Cond, e)
		if err != nil {
			return nil, err
		}
		is.Cond = *c
		if is.Then, err = m.cloneBlock(s.If.Then, e); err != nil {
			return nil, err
		}
		if s.If.Else != nil {
			if is.Else, err = m.cloneStmt(s.If.Else, e); err != nil {
				return nil, err
			}
		}
		out.If = is
	case ast.StmtWhile:
		ws := &ast.WhileStmt{}
		if ws.Cond, err = m.cloneExprPtr(s.While.Cond, e); err != nil {
			return nil, err
		}
		if ws.Body, err = m.cloneBlock(s.While.Body, e); err != nil {
			return nil, err
		}
		out.While = ws
	case ast.StmtFor:
		fs := &ast.ForStmt{Var: s.For.Var}
		from, err := m.cloneExpr(s.For.From, e)
		if err != nil {
			return nil, err
		}
		to, err := m.cloneExpr(s.For.To, e)
		if err != nil {
			return nil, err
		}
		fs.From, fs.To = *from, *to
		if fs.Body, err = m.cloneBlock(s.For.Body, e); err != nil {
			return nil, err
		}
		out.For = fs
	case ast.StmtReturn:
		rs := &ast.ReturnStmt{}
		if rs.Value, err = m.cloneExprPtr(s.Return.Value, e); err != nil {
			return nil, err
		}
		out.Return = rs
	case ast.StmtBreak, ast.StmtContinue:
		// no payload
	case ast.StmtMatch:
		ms := &ast.MatchStmt{Span: s.Match.Span}
		subj, err := m.cloneExpr(s.Match.Subject, e)
		if err != nil {
			return nil, err
		}
		ms.Subject = *subj
		for _, arm := range s.Match.Arms {
			body, err := m.cloneBlock(arm.Body, e)
			if err != nil {
				return nil, err
			}
			ms.Arms = append(ms.Arms, ast.MatchArm{
				Variant: arm.Variant,
				Binds:   append([]string(nil), arm.Binds...),
				Body:    body,
				Span:    arm.Span,
			})
		}
		if ms.Default, err = m.cloneBlock(s.Match.Default, e); err != nil {
			return nil, err
		}
		out.Match = ms
	case ast.StmtBlock:
		if out.Block, err = m.cloneBlock(s.Block, e); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (m *Monomorphizer) cloneExprPtr(x *ast.Expr, e env) (*ast.Expr, error) {
	if x == nil {
		return nil, nil
	}
	return m.cloneExpr(*x, e)
}

// cloneExpr deep-copies an expression, substituting type arguments and
// rewriting generic call sites, struct literals and variant constructors
// to their instantiated names.
func (m *Monomorphizer) cloneExpr(x ast.Expr, e env) (*ast.Expr, error) {
	out := x // shallow copy of scalars
	var err error

	if out.X, err = m.cloneExprPtr(x.X, e); err != nil {
		return nil, err
	}
	if out.Y, err = m.cloneExprPtr(x.Y, e); err != nil {
		return nil, err
	}
	if len(x.Args) > 0 {
		out.Args = make([]ast.Expr, 0, len(x.Args))
		for i := range x.Args {
			a, err := m.cloneExpr(x.Args[i], e)
			if err != nil {
				return nil, err
			}
			out.Args = append(out.Args, *a)
		}
	}
	if len(x.Fields) > 0 {
		out.Fields = make([]ast.FieldInit, 0, len(x.Fields))
		for i := range x.Fields {
			v, err := m.cloneExpr(x.Fields[i].Value, e)
			if err != nil {
				return nil, err
			}
			out.Fields = append(out.Fields, ast.FieldInit{Name: x.Fields[i].Name, Value: *v})
		}
	}
	if !x.Type.IsVoid() {
		if out.Type, _, err = m.resolveRef(x.Type, e, x.Span); err != nil {
			return nil, err
		}
	}

	switch x.Kind {
	case ast.ExprCall:
		if out.X != nil && out.X.Kind == ast.ExprIdent {
			if name, rewritten, err := m.rewriteCallee(out.X.Name, x.TypeArgs, e, x.Span); err != nil {
				return nil, err
			} else if rewritten {
				out.X.Name = name
				out.TypeArgs = nil
			}
		}
	case ast.ExprStructLit, ast.ExprVariant:
		name, rewritten, err := m.rewriteTypeName(x.Name, x.TypeArgs, e, x.Span)
		if err != nil {
			return nil, err
		}
		if rewritten {
			out.Name = name
			out.TypeArgs = nil
		}
	}
	return &out, nil
}
