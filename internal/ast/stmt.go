package ast

import (
	"autoc/internal/source"
)

// StmtKind discriminates statement nodes.
type StmtKind uint8

const (
	StmtInvalid StmtKind = iota
	StmtLet
	StmtAssign
	StmtExpr
	StmtIf
	StmtWhile
	StmtFor
	StmtReturn
	StmtBreak
	StmtContinue
	StmtMatch
	StmtBlock
)

// Stmt is a kind-tagged statement node. Exactly one payload field matching
// Kind is set.
type Stmt struct {
	Kind   StmtKind
	Let    *LetStmt
	Assign *AssignStmt
	Expr   *Expr
	If     *IfStmt
	While  *WhileStmt
	For    *ForStmt
	Return *ReturnStmt
	Match  *MatchStmt
	Block  *Block
	Span   source.Span
}

// Block is a statement sequence. Unsafe marks a block the source
// explicitly opened for low-level access; raw pointer classification is
// only legal inside such blocks.
type Block struct {
	Stmts  []Stmt
	Unsafe bool
	Span   source.Span
}

// LetStmt introduces a local binding.
type LetStmt struct {
	Name string
	Mut  bool
	Type TypeRef
	Init *Expr
}

// AssignStmt writes Value into Target.
type AssignStmt struct {
	Target Expr
	Value  Expr
}

// IfStmt is a conditional branch. Else is nil, a StmtBlock, or a StmtIf
// for else-if chains.
type IfStmt struct {
	Cond Expr
	Then *Block
	Else *Stmt
}

// WhileStmt is a loop. A nil Cond is an unbounded loop; early-exit
// constructs (break) leave it.
type WhileStmt struct {
	Cond *Expr
	Body *Block
}

// ForStmt is a bounded counting loop over [From, To).
type ForStmt struct {
	Var  string
	From Expr
	To   Expr
	Body *Block
}

// ReturnStmt exits the enclosing function. Value is nil for void returns.
type ReturnStmt struct {
	Value *Expr
}

// MatchStmt is a pattern match over a tag value. A match with no Default
// must cover every variant of the subject's type.
type MatchStmt struct {
	Subject Expr
	Arms    []MatchArm
	Default *Block
	Span    source.Span
}

// MatchArm covers one variant, binding its payload fields positionally.
type MatchArm struct {
	Variant string
	// Binds names the payload fields of the matched variant in order. An
	// empty slice matches a payload-less variant.
	Binds []string
	Body  *Block
	Span  source.Span
}
