package ast

import (
	"autoc/internal/source"
)

// ExprKind discriminates expression nodes.
type ExprKind uint8

const (
	ExprInvalid ExprKind = iota
	ExprInt
	ExprFloat
	ExprBool
	ExprStr
	ExprChar
	ExprNil
	ExprIdent
	ExprUnary
	ExprBinary
	ExprCall
	ExprField
	ExprIndex
	ExprStructLit
	ExprVariant
)

// Expr is a kind-tagged expression node. The front end resolves every
// expression, so Type carries the (possibly generic) resolved type.
type Expr struct {
	Kind ExprKind

	IntVal   int64
	FloatVal float64
	BoolVal  bool
	StrVal   string

	// Name is the identifier, field, callee or type name depending on Kind.
	Name string
	// Sel is the variant name for ExprVariant.
	Sel string
	// Op is the operator for ExprUnary/ExprBinary, in target syntax
	// ("+", "==", "!", "-", "&").
	Op string

	// X is the operand, receiver, callee or indexed expression. A nil X on
	// ExprField is an implicit current-instance access; method lowering
	// rewrites it to an explicit receiver access.
	X *Expr
	// Y is the right operand of ExprBinary or the index of ExprIndex.
	Y *Expr

	// Args holds call arguments or variant payload values.
	Args []Expr
	// TypeArgs holds explicit generic arguments at call sites, struct
	// literals and variant constructors.
	TypeArgs []TypeRef
	// Fields holds struct literal initializers.
	Fields []FieldInit

	// Type is the resolved type from the front end.
	Type TypeRef
	Span source.Span
}

// FieldInit is one field initializer of a struct literal.
type FieldInit struct {
	Name  string
	Value Expr
}

// Ident builds an identifier expression; used heavily by tests.
func Ident(name string) Expr {
	return Expr{Kind: ExprIdent, Name: name}
}

// Int builds an integer literal.
func Int(v int64) Expr {
	return Expr{Kind: ExprInt, IntVal: v, Type: Named("int")}
}

// Str builds a string literal.
func Str(v string) Expr {
	return Expr{Kind: ExprStr, StrVal: v, Type: Named("str")}
}

// Bool builds a boolean literal.
func Bool(v bool) Expr {
	return Expr{Kind: ExprBool, BoolVal: v, Type: Named("bool")}
}

// FieldOf builds an explicit field access.
func FieldOf(x Expr, name string) Expr {
	xc := x
	return Expr{Kind: ExprField, X: &xc, Name: name}
}

// SelfField builds an implicit current-instance field access.
func SelfField(name string) Expr {
	return Expr{Kind: ExprField, Name: name}
}

// CallOf builds a call with the given callee expression.
func CallOf(callee Expr, args ...Expr) Expr {
	c := callee
	return Expr{Kind: ExprCall, X: &c, Args: args}
}

// Binary builds a binary operation.
func Binary(op string, x, y Expr) Expr {
	xc, yc := x, y
	return Expr{Kind: ExprBinary, Op: op, X: &xc, Y: &yc}
}
