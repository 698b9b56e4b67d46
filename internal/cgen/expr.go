package cgen

import (
	"fmt"
	"strconv"
	"strings"

	"autoc/internal/ast"
	"autoc/internal/lower"
)

func (e *emitter) expr(x *ast.Expr) string {
	switch x.Kind {
	case ast.ExprInt:
		return strconv.FormatInt(x.IntVal, 10)
	case ast.ExprFloat:
		return floatLit(x.FloatVal)
	case ast.ExprBool:
		return boolLit(x.BoolVal)
	case ast.ExprStr:
		return "str_lit(" + strconv.Quote(x.StrVal) + ")"
	case ast.ExprChar:
		return strconv.QuoteRune(rune(x.IntVal))
	case ast.ExprNil:
		return "NULL"
	case ast.ExprIdent:
		if e.byRef[x.Name] {
			return "(*" + x.Name + ")"
		}
		return x.Name
	case ast.ExprUnary:
		return "(" + x.Op + e.expr(x.X) + ")"
	case ast.ExprBinary:
		return "(" + e.expr(x.X) + " " + x.Op + " " + e.expr(x.Y) + ")"
	case ast.ExprField:
		return e.fieldExpr(x)
	case ast.ExprIndex:
		if x.X != nil && x.X.Type.Slice != nil {
			return e.expr(x.X) + ".data[" + e.expr(x.Y) + "]"
		}
		return e.expr(x.X) + "[" + e.expr(x.Y) + "]"
	case ast.ExprCall:
		return e.callExpr(x)
	case ast.ExprStructLit:
		return e.structLit(x)
	case ast.ExprVariant:
		return e.variantLit(x)
	}
	return "/*invalid*/0"
}

func (e *emitter) fieldExpr(x *ast.Expr) string {
	base := x.X
	if base != nil && base.Kind == ast.ExprIdent && e.byRef[base.Name] {
		return base.Name + "->" + x.Name
	}
	if base == nil {
		return x.Name
	}
	return e.expr(base) + "." + x.Name
}

// callExpr renders a call, inserting address-of on arguments whose
// parameter slot is by-reference. A by-reference binding forwarded to a
// by-reference slot passes through unchanged.
func (e *emitter) callExpr(x *ast.Expr) string {
	callee := ""
	var target *lower.Func
	if x.X != nil && x.X.Kind == ast.ExprIdent {
		callee = x.X.Name
		target, _ = e.p.Func(callee)
	} else if x.X != nil {
		callee = e.expr(x.X)
	}

	args := make([]string, 0, len(x.Args))
	for i := range x.Args {
		a := &x.Args[i]
		if target != nil && i < len(target.Params) && target.Params[i].Mode.ByRef() {
			args = append(args, e.refArg(a))
		} else {
			args = append(args, e.expr(a))
		}
	}
	return callee + "(" + strings.Join(args, ", ") + ")"
}

// refArg renders an argument for a by-reference slot. Classification has
// already rejected temporaries in these positions, so the expression is an
// addressable lvalue here.
func (e *emitter) refArg(a *ast.Expr) string {
	if a.Kind == ast.ExprIdent && e.byRef[a.Name] {
		return a.Name
	}
	return "&" + e.expr(a)
}

func (e *emitter) structLit(x *ast.Expr) string {
	if len(x.Fields) == 0 {
		return "(" + x.Name + "){0}"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "(%s){ ", x.Name)
	for i, f := range x.Fields {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, ".%s = %s", f.Name, e.expr(&x.Fields[i].Value))
	}
	b.WriteString(" }")
	return b.String()
}

// variantLit constructs a tag value: the discriminant, plus the payload
// compound when the variant carries fields. Enum variants are bare
// discriminant constants.
func (e *emitter) variantLit(x *ast.Expr) string {
	tl, ok := e.p.Tags[x.Name]
	if !ok {
		return "/*unknown tag*/0"
	}
	if td := e.types[x.Name]; td != nil && td.Kind == ast.TypeEnum {
		return tl.DiscConst(x.Sel)
	}
	vl, ok := tl.Variant(x.Sel)
	if !ok || len(vl.Fields) == 0 {
		return fmt.Sprintf("(%s){ .tag = %s }", x.Name, tl.DiscConst(x.Sel))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "(%s){ .tag = %s, .payload.%s = { ", x.Name, tl.DiscConst(x.Sel), x.Sel)
	for i := range x.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(e.expr(&x.Args[i]))
	}
	b.WriteString(" } }")
	return b.String()
}

func floatLit(v float64) string {
	out := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(out, ".eE") {
		out += ".0"
	}
	return out
}

func boolLit(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
