package cgen

import (
	"fmt"
	"sort"
	"strings"

	"autoc/internal/ast"
	"autoc/internal/diag"
	"autoc/internal/lower"
)

// Artifacts is the emitted pair for one module. Names are derived from the
// module name only, so downstream build tooling can predict them.
type Artifacts struct {
	HeaderName string
	SourceName string
	Header     []byte
	Source     []byte
}

// Emit serializes a lowered program. Any layout error found while placing
// types aborts the whole emission; no partial artifacts are produced.
func Emit(p *lower.Program, bag *diag.Bag) (*Artifacts, error) {
	e := &emitter{
		p:     p,
		s:     &sink{},
		bag:   bag,
		types: make(map[string]*ast.TypeDecl, len(p.Types)),
	}
	for _, td := range p.Types {
		e.types[td.Name] = td
	}

	for _, td := range p.Types {
		if _, err := p.Layout.OfRef(ast.Named(td.Name)); err != nil {
			bag.Add(diag.NewError(diag.LayoutRecursiveType, td.Span, err.Error()).
				At(p.Name, td.Name))
		}
	}
	if bag.HasErrors() {
		return nil, bag.Err()
	}

	e.emitHeader()
	e.emitSource()

	return &Artifacts{
		HeaderName: p.Name + ".h",
		SourceName: p.Name + ".c",
		Header:     e.s.header.Bytes(),
		Source:     e.s.source.Bytes(),
	}, bag.Err()
}

type emitter struct {
	p   *lower.Program
	s   *sink
	bag *diag.Bag

	types map[string]*ast.TypeDecl

	// byRef marks the by-reference parameters of the function currently
	// being emitted.
	byRef map[string]bool
}

// ---- declarations artifact ----

func (e *emitter) emitHeader() {
	s := e.s
	guard := guardName(e.p.Name)
	s.h("#ifndef %s", guard)
	s.h("#define %s", guard)
	s.hblank()
	s.hraw("#include <stdbool.h>")
	s.hraw("#include <stddef.h>")
	s.hraw("#include <stdint.h>")
	for _, inc := range sortedIncludes(e.p.Includes) {
		if strings.HasPrefix(inc, "<") {
			s.h("#include %s", inc)
		} else {
			s.h("#include %q", inc)
		}
	}
	s.hblank()

	e.emitStrRecord()
	e.emitSliceRecords()
	e.emitTypeDecls()
	e.emitGlobalDecls()
	e.emitPrototypes()

	s.h("#endif")
}

func sortedIncludes(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

// emitStrRecord emits the shared string view record. Every module header
// carries it behind its own guard so headers stay self-contained.
func (e *emitter) emitStrRecord() {
	s := e.s
	s.hraw("#ifndef AUTOC_STR_DEFINED")
	s.hraw("#define AUTOC_STR_DEFINED")
	s.hraw("typedef struct str { char* data; size_t len; } str;")
	s.hraw("#define str_lit(s) ((str){ (char*)(s), sizeof(s) - 1 })")
	s.hraw("#endif")
	s.hblank()
}

func (e *emitter) emitSliceRecords() {
	s := e.s
	seen := make(map[string]bool, len(e.p.SliceElems))
	for _, elem := range e.p.SliceElems {
		name := sliceName(elem)
		if seen[name] {
			continue
		}
		seen[name] = true
		guard := "AUTOC_" + strings.ToUpper(name) + "_DEFINED"
		s.h("#ifndef %s", guard)
		s.h("#define %s", guard)
		s.h("typedef struct %s { %s* data; size_t len; } %s;", name, cType(elem), name)
		s.hraw("#endif")
		s.hblank()
	}
}

// emitTypeDecls places every type definition after the definitions it
// embeds by value: first-reference order within a declaration, falling
// back to declaration order between independent types. Pointer and slice
// fields are opaque and never force an ordering.
func (e *emitter) emitTypeDecls() {
	forward := 0
	for _, td := range e.p.Types {
		if td.Kind == ast.TypeEnum {
			continue
		}
		e.s.h("typedef struct %s %s;", td.Name, td.Name)
		forward++
	}
	if forward > 0 {
		e.s.hblank()
	}

	done := make(map[string]bool, len(e.p.Types))
	visiting := make(map[string]bool, len(e.p.Types))
	for _, td := range e.p.Types {
		e.placeType(td, done, visiting)
	}
}

func (e *emitter) placeType(td *ast.TypeDecl, done, visiting map[string]bool) {
	if done[td.Name] || visiting[td.Name] {
		return
	}
	visiting[td.Name] = true
	for _, dep := range e.valueDeps(td) {
		e.placeType(dep, done, visiting)
	}
	visiting[td.Name] = false
	done[td.Name] = true
	e.emitTypeDef(td)
}

func (e *emitter) valueDeps(td *ast.TypeDecl) []*ast.TypeDecl {
	var deps []*ast.TypeDecl
	add := func(ref ast.TypeRef) {
		if ref.Ptr != nil || ref.Slice != nil {
			return
		}
		if dep, ok := e.types[ref.Name]; ok && dep != td {
			deps = append(deps, dep)
		}
	}
	for _, f := range td.Fields {
		add(f.Type)
	}
	for _, v := range td.Variants {
		for _, f := range v.Fields {
			add(f.Type)
		}
	}
	return deps
}

func (e *emitter) emitTypeDef(td *ast.TypeDecl) {
	s := e.s
	switch td.Kind {
	case ast.TypeEnum:
		tl := e.p.Tags[td.Name]
		if tl == nil {
			return
		}
		s.h("typedef enum {")
		for _, v := range tl.Variants {
			s.h("    %s = %d,", tl.DiscConst(v.Name), v.Disc)
		}
		s.h("} %s;", tl.DiscName)
		s.hblank()

	case ast.TypeTag:
		tl := e.p.Tags[td.Name]
		if tl == nil {
			return
		}
		s.h("typedef enum {")
		for _, v := range tl.Variants {
			s.h("    %s = %d,", tl.DiscConst(v.Name), v.Disc)
		}
		s.h("} %s;", tl.DiscName)
		if tl.HasPayload() {
			s.h("typedef union %s {", tl.UnionName)
			for _, v := range tl.Variants {
				if len(v.Fields) == 0 {
					continue
				}
				var fields strings.Builder
				for _, f := range v.Fields {
					fmt.Fprintf(&fields, " %s %s;", cType(f.Type), f.Name)
				}
				s.h("    struct {%s } %s;", fields.String(), v.Name)
			}
			s.h("} %s;", tl.UnionName)
		}
		s.h("struct %s {", td.Name)
		s.h("    %s tag;", tl.DiscName)
		if tl.HasPayload() {
			s.h("    %s payload;", tl.UnionName)
		}
		s.hraw("};")
		s.hblank()

	case ast.TypeRecord:
		s.h("struct %s {", td.Name)
		for _, f := range td.Fields {
			s.h("    %s %s;", cType(f.Type), f.Name)
		}
		s.hraw("};")
		s.hblank()
	}
}

func (e *emitter) emitGlobalDecls() {
	emitted := false
	for _, g := range e.p.Globals {
		if lit, ok := defineValue(g); ok {
			e.s.h("#define %s %s", g.Name, lit)
		} else {
			e.s.h("extern %s %s;", cType(g.Type), g.Name)
		}
		emitted = true
	}
	if emitted {
		e.s.hblank()
	}
}

// defineValue renders an immutable scalar global as a macro body.
func defineValue(g *ast.GlobalDecl) (string, bool) {
	if g.Mut || g.Init == nil {
		return "", false
	}
	switch g.Init.Kind {
	case ast.ExprInt:
		return fmt.Sprintf("%d", g.Init.IntVal), true
	case ast.ExprFloat:
		return floatLit(g.Init.FloatVal), true
	case ast.ExprBool:
		return boolLit(g.Init.BoolVal), true
	}
	return "", false
}

func (e *emitter) emitPrototypes() {
	for _, f := range e.p.Funcs {
		e.s.h("%s;", e.signature(f))
	}
	if len(e.p.Funcs) > 0 {
		e.s.hblank()
	}
}

func (e *emitter) signature(f *lower.Func) string {
	var b strings.Builder
	b.WriteString(retDecl(f.Ret, f.RetMode))
	b.WriteByte(' ')
	b.WriteString(f.Name)
	b.WriteByte('(')
	if len(f.Params) == 0 {
		b.WriteString("void")
	}
	for i, pr := range f.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(paramDecl(pr.Name, pr.Type, pr.Mode))
	}
	b.WriteByte(')')
	return b.String()
}

// ---- definitions artifact ----

func (e *emitter) emitSource() {
	s := e.s
	s.c("#include %q", e.p.Name+".h")
	s.blank()

	for _, g := range e.p.Globals {
		if _, ok := defineValue(g); ok {
			continue
		}
		if g.Init != nil {
			s.c("%s %s = %s;", cType(g.Type), g.Name, e.expr(g.Init))
		} else {
			s.c("%s %s;", cType(g.Type), g.Name)
		}
	}

	for _, f := range e.p.Funcs {
		if f.Body == nil {
			continue
		}
		e.byRef = make(map[string]bool, len(f.Params))
		for _, pr := range f.Params {
			if pr.Mode.ByRef() {
				e.byRef[pr.Name] = true
			}
		}
		s.blank()
		s.c("%s {", e.signature(f))
		s.indent++
		e.stmts(f.Body.Stmts)
		s.indent--
		s.c("}")
	}
}

func (e *emitter) stmts(sts []ast.Stmt) {
	for i := range sts {
		e.stmt(&sts[i])
	}
}

func (e *emitter) stmt(st *ast.Stmt) {
	s := e.s
	switch st.Kind {
	case ast.StmtLet:
		if st.Let.Init != nil {
			s.c("%s %s = %s;", cType(letType(st.Let)), st.Let.Name, e.expr(st.Let.Init))
		} else {
			s.c("%s %s;", cType(letType(st.Let)), st.Let.Name)
		}
	case ast.StmtAssign:
		s.c("%s = %s;", e.expr(&st.Assign.Target), e.expr(&st.Assign.Value))
	case ast.StmtExpr:
		s.c("%s;", e.expr(st.Expr))
	case ast.StmtIf:
		e.emitIf(st.If, "if")
	case ast.StmtWhile:
		if st.While.Cond != nil {
			s.c("while (%s) {", e.expr(st.While.Cond))
		} else {
			s.c("while (true) {")
		}
		s.indent++
		e.stmts(st.While.Body.Stmts)
		s.indent--
		s.c("}")
	case ast.StmtFor:
		v := st.For.Var
		s.c("for (int64_t %s = %s; %s < %s; %s++) {", v, e.expr(&st.For.From), v, e.expr(&st.For.To), v)
		s.indent++
		e.stmts(st.For.Body.Stmts)
		s.indent--
		s.c("}")
	case ast.StmtReturn:
		if st.Return.Value != nil {
			s.c("return %s;", e.expr(st.Return.Value))
		} else {
			s.c("return;")
		}
	case ast.StmtBreak:
		s.c("break;")
	case ast.StmtContinue:
		s.c("continue;")
	case ast.StmtMatch:
		e.emitMatch(st.Match)
	case ast.StmtBlock:
		s.c("{")
		s.indent++
		e.stmts(st.Block.Stmts)
		s.indent--
		s.c("}")
	}
}

func letType(l *ast.LetStmt) ast.TypeRef {
	if !l.Type.IsVoid() {
		return l.Type
	}
	if l.Init != nil {
		return l.Init.Type
	}
	return ast.TypeRef{}
}

func (e *emitter) emitIf(is *ast.IfStmt, head string) {
	s := e.s
	s.c("%s (%s) {", head, e.expr(&is.Cond))
	s.indent++
	e.stmts(is.Then.Stmts)
	s.indent--
	if is.Else == nil {
		s.c("}")
		return
	}
	switch is.Else.Kind {
	case ast.StmtIf:
		e.chainElse(is.Else.If)
	case ast.StmtBlock:
		s.c("} else {")
		s.indent++
		e.stmts(is.Else.Block.Stmts)
		s.indent--
		s.c("}")
	default:
		s.c("} else {")
		s.indent++
		e.stmt(is.Else)
		s.indent--
		s.c("}")
	}
}

func (e *emitter) chainElse(is *ast.IfStmt) {
	s := e.s
	s.c("} else if (%s) {", e.expr(&is.Cond))
	s.indent++
	e.stmts(is.Then.Stmts)
	s.indent--
	if is.Else == nil {
		s.c("}")
		return
	}
	switch is.Else.Kind {
	case ast.StmtIf:
		e.chainElse(is.Else.If)
	default:
		s.c("} else {")
		s.indent++
		e.stmt(is.Else)
		s.indent--
		s.c("}")
	}
}

// emitMatch serializes the dispatch plan the lowering pass computed:
// switch over the discriminant, one case per covered variant, payload
// fields destructured into the arm bindings.
func (e *emitter) emitMatch(ms *ast.MatchStmt) {
	s := e.s
	plan, ok := e.p.Matches[ms]
	if !ok {
		return
	}
	subj := e.expr(&ms.Subject)
	tl := plan.Tag

	scrutinee := subj
	if td := e.types[tl.TypeName]; td != nil && td.Kind == ast.TypeTag {
		scrutinee = subj + ".tag"
	}
	s.c("switch (%s) {", scrutinee)
	for ci := range plan.Switch.Cases {
		cs := &plan.Switch.Cases[ci]
		s.c("case %s: {", tl.DiscConst(cs.Variant.Name))
		s.indent++
		for j, bind := range cs.Binds {
			f := cs.Variant.Fields[j]
			s.c("%s %s = %s.payload.%s.%s;", cType(f.Type), bind, subj, cs.Variant.Name, f.Name)
		}
		e.stmts(cs.Body.Stmts)
		s.c("break;")
		s.indent--
		s.c("}")
	}
	if plan.Switch.Default != nil {
		s.c("default: {")
		s.indent++
		e.stmts(plan.Switch.Default.Stmts)
		s.c("break;")
		s.indent--
		s.c("}")
	}
	s.c("}")
}
