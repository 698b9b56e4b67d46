// Package mono resolves every generic type and function reference in a
// ModuleUnit to a concrete instantiation. The output module contains only
// concrete declarations; the instantiation table is the single source of
// truth for what has been generated.
package mono

import (
	"fmt"
	"strings"

	"autoc/internal/ast"
	"autoc/internal/diag"
	"autoc/internal/source"
	"autoc/internal/types"
)

// Module is the concrete, monomorphized program: every declaration here is
// emittable as-is. Instantiated declarations are appended in first-request
// order, after the unit's own concrete declarations.
type Module struct {
	Name     string
	Scenario string
	Includes []string

	Types   []*ast.TypeDecl
	Funcs   []*ast.FnDecl
	Globals []*ast.GlobalDecl

	// Slices lists the distinct slice types used, in first-use order; the
	// emitter generates one slice_T record per entry.
	Slices []types.TypeID

	Interner *types.Interner

	typeIndex map[string]*ast.TypeDecl
}

// TypeByName looks up a concrete type declaration.
func (mm *Module) TypeByName(name string) (*ast.TypeDecl, bool) {
	td, ok := mm.typeIndex[name]
	return td, ok
}

// Monomorphizer walks one merged, read-only ModuleUnit.
type Monomorphizer struct {
	unit  *ast.ModuleUnit
	in    *types.Interner
	table *Table
	bag   *diag.Bag

	typeTemplates map[string]*ast.TypeDecl
	fnTemplates   map[string]*ast.FnDecl

	out *Module
	// expanding holds the base names of instantiations currently being
	// expanded; re-entering a base with different arguments means the
	// generic is instantiated in terms of itself.
	expanding map[string]bool
	sliceSeen map[types.TypeID]bool
}

// Run monomorphizes a unit. The table is owned by this pass for the
// duration of the run and only grows; it may be pre-seeded by the driver
// with cross-module entries.
func Run(unit *ast.ModuleUnit, in *types.Interner, table *Table, bag *diag.Bag) (*Module, error) {
	m := &Monomorphizer{
		unit:          unit,
		in:            in,
		table:         table,
		bag:           bag,
		typeTemplates: make(map[string]*ast.TypeDecl),
		fnTemplates:   make(map[string]*ast.FnDecl),
		expanding:     make(map[string]bool),
		sliceSeen:     make(map[types.TypeID]bool),
		out: &Module{
			Name:      unit.Name,
			Scenario:  unit.Scenario,
			Includes:  append([]string(nil), unit.Includes...),
			Interner:  in,
			typeIndex: make(map[string]*ast.TypeDecl),
		},
	}

	for _, td := range unit.Types {
		if td.IsGeneric() {
			m.typeTemplates[td.Name] = td
		}
	}
	for _, fn := range unit.Funcs {
		if fn.IsGeneric() {
			m.fnTemplates[fn.Name] = fn
		}
	}

	for _, td := range unit.Types {
		if td.IsGeneric() {
			continue
		}
		concrete, err := m.cloneTypeDecl(td, td.Name, nil)
		if err != nil {
			return nil, err
		}
		m.appendType(concrete)
	}
	for _, fn := range unit.Funcs {
		if fn.IsGeneric() {
			continue
		}
		concrete, err := m.cloneFnDecl(fn, fn.Name, nil)
		if err != nil {
			return nil, err
		}
		m.out.Funcs = append(m.out.Funcs, concrete)
	}
	for _, g := range unit.Globals {
		cg := &ast.GlobalDecl{Name: g.Name, Mut: g.Mut, Pub: g.Pub, Span: g.Span}
		var err error
		if cg.Type, _, err = m.resolveRef(g.Type, nil, g.Span); err != nil {
			return nil, err
		}
		if cg.Init, err = m.cloneExprPtr(g.Init, nil); err != nil {
			return nil, err
		}
		m.out.Globals = append(m.out.Globals, cg)
	}

	if bag.HasErrors() {
		return nil, bag.Err()
	}
	return m.out, nil
}

func (m *Monomorphizer) appendType(td *ast.TypeDecl) {
	m.out.Types = append(m.out.Types, td)
	m.out.typeIndex[td.Name] = td
}

// fail records a diagnostic and returns it as the pass-aborting error.
func (m *Monomorphizer) fail(code diag.Code, sp source.Span, msg string) error {
	m.bag.Add(diag.NewError(code, sp, msg).At(m.unit.Name, ""))
	return fmt.Errorf("%s: %s", code, msg)
}

// resolveRef rewrites a type reference to its concrete form and interns
// it. Generic applications are instantiated on first sight.
func (m *Monomorphizer) resolveRef(ref ast.TypeRef, e env, sp source.Span) (ast.TypeRef, types.TypeID, error) {
	switch {
	case ref.Ptr != nil:
		elem, elemID, err := m.resolveRef(*ref.Ptr, e, sp)
		if err != nil {
			return ast.TypeRef{}, types.NoTypeID, err
		}
		return ast.PtrTo(elem), m.in.Ptr(elemID), nil

	case ref.Slice != nil:
		elem, elemID, err := m.resolveRef(*ref.Slice, e, sp)
		if err != nil {
			return ast.TypeRef{}, types.NoTypeID, err
		}
		id := m.in.Slice(elemID)
		if err := m.recordSlice(id, elemID, sp); err != nil {
			return ast.TypeRef{}, types.NoTypeID, err
		}
		return ast.SliceOf(elem), id, nil
	}

	if b, ok := e[ref.Name]; ok && len(ref.Args) == 0 {
		return b.Ref, b.ID, nil
	}

	if td, ok := m.typeTemplates[ref.Name]; ok {
		if len(ref.Args) == 0 {
			return ast.TypeRef{}, types.NoTypeID, m.fail(diag.MonoUnresolvedGeneric, sp,
				fmt.Sprintf("cannot monomorphize %q: generic type used without type arguments", ref.Name))
		}
		if len(ref.Args) != len(td.Params) {
			return ast.TypeRef{}, types.NoTypeID, m.fail(diag.MonoArityMismatch, sp,
				fmt.Sprintf("%s expects %d type arguments, got %d", td.Name, len(td.Params), len(ref.Args)))
		}
		argRefs := make([]ast.TypeRef, 0, len(ref.Args))
		argIDs := make([]types.TypeID, 0, len(ref.Args))
		for _, a := range ref.Args {
			ar, aid, err := m.resolveRef(a, e, sp)
			if err != nil {
				return ast.TypeRef{}, types.NoTypeID, err
			}
			argRefs = append(argRefs, ar)
			argIDs = append(argIDs, aid)
		}
		name, err := m.instantiateType(td, argRefs, argIDs, sp)
		if err != nil {
			return ast.TypeRef{}, types.NoTypeID, err
		}
		return ast.Named(name), m.in.Named(name), nil
	}

	if len(ref.Args) > 0 {
		return ast.TypeRef{}, types.NoTypeID, m.fail(diag.MonoUnknownType, sp,
			fmt.Sprintf("type arguments applied to non-generic type %q", ref.Name))
	}

	if id, ok := m.builtinID(ref.Name); ok {
		return ref, id, nil
	}

	if _, ok := m.unit.TypeByName(ref.Name); ok {
		return ref, m.in.Named(ref.Name), nil
	}
	// Instantiated names land in the output index, not the input unit.
	if _, ok := m.out.typeIndex[ref.Name]; ok {
		return ref, m.in.Named(ref.Name), nil
	}

	return ast.TypeRef{}, types.NoTypeID, m.fail(diag.MonoUnresolvedGeneric, sp,
		fmt.Sprintf("cannot monomorphize: unresolved type %q", ref.Name))
}

func (m *Monomorphizer) builtinID(name string) (types.TypeID, bool) {
	bi := m.in.Builtins()
	switch name {
	case "", "void":
		return bi.Void, true
	case "bool":
		return bi.Bool, true
	case "int":
		return bi.Int, true
	case "float":
		return bi.Float, true
	case "char":
		return bi.Char, true
	case "str":
		return bi.Str, true
	}
	return types.NoTypeID, false
}

func (m *Monomorphizer) recordSlice(id, elemID types.TypeID, sp source.Span) error {
	key := Key{Base: "slice", Args: m.in.Mangle(elemID)}
	name := m.in.Mangle(id)
	if _, _, err := m.table.Record(KindSlice, key, name, []types.TypeID{elemID}, sp); err != nil {
		return m.fail(diag.EmitSymbolCollision, sp, err.Error())
	}
	if !m.sliceSeen[id] {
		m.sliceSeen[id] = true
		m.out.Slices = append(m.out.Slices, id)
	}
	return nil
}

// instantiateType creates (or reuses) the concrete instance of a generic
// type declaration. Registration happens before field expansion so that
// self-references through a pointer terminate via the table.
func (m *Monomorphizer) instantiateType(td *ast.TypeDecl, argRefs []ast.TypeRef, argIDs []types.TypeID, sp source.Span) (string, error) {
	key := Key{Base: td.Name, Args: ArgsKey(m.in, argIDs)}
	if entry, ok := m.table.Lookup(key); ok {
		return entry.Name, nil
	}

	if m.expanding[td.Name] {
		return "", m.fail(diag.MonoCyclicInstantiation, sp,
			fmt.Sprintf("generic type %q is instantiated in terms of itself", td.Name))
	}

	name := mangledName(td.Name, m.in, argIDs)
	if _, _, err := m.table.Record(KindType, key, name, argIDs, sp); err != nil {
		return "", m.fail(diag.EmitSymbolCollision, sp, err.Error())
	}

	m.expanding[td.Name] = true
	defer delete(m.expanding, td.Name)

	e := make(env, len(td.Params))
	for i, p := range td.Params {
		e[p] = binding{Ref: argRefs[i], ID: argIDs[i]}
	}

	concrete, err := m.cloneTypeDecl(td, name, e)
	if err != nil {
		return "", err
	}
	m.appendType(concrete)
	return name, nil
}

// instantiateFn creates (or reuses) the concrete instance of a generic
// function.
func (m *Monomorphizer) instantiateFn(fn *ast.FnDecl, argRefs []ast.TypeRef, argIDs []types.TypeID, sp source.Span) (string, error) {
	key := Key{Base: fn.Name, Args: ArgsKey(m.in, argIDs)}
	if entry, ok := m.table.Lookup(key); ok {
		return entry.Name, nil
	}

	if m.expanding[fn.Name] {
		return "", m.fail(diag.MonoCyclicInstantiation, sp,
			fmt.Sprintf("generic function %q is instantiated in terms of itself", fn.Name))
	}

	name := mangledName(fn.Name, m.in, argIDs)
	if _, _, err := m.table.Record(KindFn, key, name, argIDs, sp); err != nil {
		return "", m.fail(diag.EmitSymbolCollision, sp, err.Error())
	}

	m.expanding[fn.Name] = true
	defer delete(m.expanding, fn.Name)

	e := make(env, len(fn.TypeParams))
	for i, p := range fn.TypeParams {
		e[p] = binding{Ref: argRefs[i], ID: argIDs[i]}
	}

	concrete, err := m.cloneFnDecl(fn, name, e)
	if err != nil {
		return "", err
	}
	concrete.TypeParams = nil
	m.out.Funcs = append(m.out.Funcs, concrete)
	return name, nil
}

// rewriteCallee handles a call to a possibly generic free function.
func (m *Monomorphizer) rewriteCallee(name string, typeArgs []ast.TypeRef, e env, sp source.Span) (string, bool, error) {
	fn, ok := m.fnTemplates[name]
	if !ok {
		return "", false, nil
	}
	if len(typeArgs) == 0 {
		return "", false, m.fail(diag.MonoUnresolvedGeneric, sp,
			fmt.Sprintf("cannot monomorphize call to %q: missing type arguments", name))
	}
	if len(typeArgs) != len(fn.TypeParams) {
		return "", false, m.fail(diag.MonoArityMismatch, sp,
			fmt.Sprintf("%s expects %d type arguments, got %d", fn.Name, len(fn.TypeParams), len(typeArgs)))
	}
	argRefs := make([]ast.TypeRef, 0, len(typeArgs))
	argIDs := make([]types.TypeID, 0, len(typeArgs))
	for _, a := range typeArgs {
		ar, aid, err := m.resolveRef(a, e, sp)
		if err != nil {
			return "", false, err
		}
		argRefs = append(argRefs, ar)
		argIDs = append(argIDs, aid)
	}
	mangled, err := m.instantiateFn(fn, argRefs, argIDs, sp)
	if err != nil {
		return "", false, err
	}
	return mangled, true, nil
}

// rewriteTypeName handles struct literals and variant constructors naming
// a possibly generic type.
func (m *Monomorphizer) rewriteTypeName(name string, typeArgs []ast.TypeRef, e env, sp source.Span) (string, bool, error) {
	if _, ok := m.typeTemplates[name]; !ok {
		return "", false, nil
	}
	concrete, _, err := m.resolveRef(ast.TypeRef{Name: name, Args: typeArgs}, e, sp)
	if err != nil {
		return "", false, err
	}
	return concrete.Name, true, nil
}

func (m *Monomorphizer) cloneTypeDecl(td *ast.TypeDecl, name string, e env) (*ast.TypeDecl, error) {
	out := &ast.TypeDecl{
		Name: name,
		Kind: td.Kind,
		Pub:  td.Pub,
		Span: td.Span,
	}
	for _, f := range td.Fields {
		cf := ast.Field{Name: f.Name, Pub: f.Pub, Span: f.Span}
		var err error
		if cf.Type, _, err = m.resolveRef(f.Type, e, f.Span); err != nil {
			return nil, err
		}
		out.Fields = append(out.Fields, cf)
	}
	for _, v := range td.Variants {
		cv := ast.Variant{Name: v.Name, HasValue: v.HasValue, Value: v.Value, Span: v.Span}
		for _, f := range v.Fields {
			cf := ast.Field{Name: f.Name, Pub: f.Pub, Span: f.Span}
			var err error
			if cf.Type, _, err = m.resolveRef(f.Type, e, f.Span); err != nil {
				return nil, err
			}
			cv.Fields = append(cv.Fields, cf)
		}
		out.Variants = append(out.Variants, cv)
	}
	for _, md := range td.Methods {
		cm := &ast.MethodDecl{
			Name:    md.Name,
			Kind:    md.Kind,
			Mutates: md.Mutates,
			Span:    md.Span,
		}
		for _, p := range md.Params {
			cp := ast.Param{Name: p.Name, Intent: p.Intent, Span: p.Span}
			var err error
			if cp.Type, _, err = m.resolveRef(p.Type, e, p.Span); err != nil {
				return nil, err
			}
			cm.Params = append(cm.Params, cp)
		}
		var err error
		if !md.Ret.IsVoid() {
			if cm.Ret, _, err = m.resolveRef(md.Ret, e, md.Span); err != nil {
				return nil, err
			}
		}
		if cm.Body, err = m.cloneBlock(md.Body, e); err != nil {
			return nil, err
		}
		out.Methods = append(out.Methods, cm)
	}
	return out, nil
}

func (m *Monomorphizer) cloneFnDecl(fn *ast.FnDecl, name string, e env) (*ast.FnDecl, error) {
	out := &ast.FnDecl{
		Name: name,
		Pub:  fn.Pub,
		Span: fn.Span,
	}
	for _, p := range fn.Params {
		cp := ast.Param{Name: p.Name, Intent: p.Intent, Span: p.Span}
		var err error
		if cp.Type, _, err = m.resolveRef(p.Type, e, p.Span); err != nil {
			return nil, err
		}
		out.Params = append(out.Params, cp)
	}
	var err error
	if !fn.Ret.IsVoid() {
		if out.Ret, _, err = m.resolveRef(fn.Ret, e, fn.Span); err != nil {
			return nil, err
		}
	}
	if out.Body, err = m.cloneBlock(fn.Body, e); err != nil {
		return nil, err
	}
	return out, nil
}

// mangledName builds the deterministic concrete name: base, underscore,
// then each argument's canonical encoding in declaration order.
func mangledName(base string, in *types.Interner, argIDs []types.TypeID) string {
	parts := make([]string, 0, len(argIDs)+1)
	parts = append(parts, base)
	for _, a := range argIDs {
		parts = append(parts, in.Mangle(a))
	}
	return strings.Join(parts, "_")
}
