// Package lower flattens a monomorphized module into the emitter's input:
// methods become free functions with an explicit receiver parameter,
// implicit current-instance accesses become explicit, method call sites are
// rewritten to the mangled free-function names, and pattern matches are
// checked against their tag layouts. After this pass the emitter never
// resolves a name or a scope.
package lower

import (
	"autoc/internal/ast"
	"autoc/internal/diag"
	"autoc/internal/layout"
	"autoc/internal/mono"
	"autoc/internal/own"
	"autoc/internal/source"
	"autoc/internal/types"
)

// Param is one lowered parameter slot, carrying the passing strategy the
// classifier assigned.
type Param struct {
	Name string
	Type ast.TypeRef
	Mode own.Mode
}

// Func is a lowered file-scope function. A nil Body is an externally
// provided function: a prototype is emitted, no definition.
type Func struct {
	Name   string
	Params []Param
	Ret    ast.TypeRef
	// RetMode is the ownership tag of the return slot; results move out by
	// value, so this stays ModeCopy for every classified function.
	RetMode own.Mode
	Body    *ast.Block
	Pub     bool
	Span    source.Span
}

// Program is the fully lowered module, ready for emission.
type Program struct {
	Name     string
	Scenario string
	Includes []string

	Types   []*ast.TypeDecl
	Tags    map[string]*layout.TagLayout
	Funcs   []*Func
	Globals []*ast.GlobalDecl

	// Matches holds the dispatch plan computed for every validated match
	// statement, keyed by the statement node.
	Matches map[*ast.MatchStmt]*MatchPlan

	// SliceElems lists the element types needing a generated slice record,
	// in first-use order.
	SliceElems []ast.TypeRef

	Layout  *layout.Engine
	Symbols *Symbols

	fnIndex map[string]*Func
}

// MatchPlan is the discriminant dispatch for one match statement.
type MatchPlan struct {
	Tag    *layout.TagLayout
	Switch *layout.Switch
}

// Func looks up a lowered function by its emitted name.
func (p *Program) Func(name string) (*Func, bool) {
	f, ok := p.fnIndex[name]
	return f, ok
}

// MangleMethod builds the emitted name of a method: owning type, an
// underscore, then the method name unchanged.
func MangleMethod(typeName, method string) string {
	return typeName + "_" + method
}

// Run lowers a module. The classifier set must cover every function and
// method of the module.
func Run(mm *mono.Module, eng *layout.Engine, set *own.Set, bag *diag.Bag) (*Program, error) {
	p := &Program{
		Name:     mm.Name,
		Scenario: mm.Scenario,
		Includes: append([]string(nil), mm.Includes...),
		Types:    mm.Types,
		Tags:     make(map[string]*layout.TagLayout, len(mm.Types)),
		Matches:  make(map[*ast.MatchStmt]*MatchPlan),
		Globals:  mm.Globals,
		Layout:   eng,
		Symbols:  NewSymbols(mm.Name),
		fnIndex:  make(map[string]*Func, len(mm.Funcs)),
	}
	for _, id := range mm.Slices {
		tt, ok := mm.Interner.Lookup(id)
		if !ok {
			continue
		}
		p.SliceElems = append(p.SliceElems, refOfID(mm, tt.Elem))
	}

	for _, td := range mm.Types {
		p.Symbols.Declare(td.Name, td.Span, bag)
		if td.Kind == ast.TypeRecord {
			continue
		}
		tl, err := layout.ComputeTag(td, bag)
		if err != nil {
			continue
		}
		p.Tags[td.Name] = tl
		if tl.DiscName != td.Name {
			p.Symbols.Declare(tl.DiscName, td.Span, bag)
		}
		if tl.HasPayload() {
			p.Symbols.Declare(tl.UnionName, td.Span, bag)
		}
	}
	for _, g := range mm.Globals {
		p.Symbols.Declare(g.Name, g.Span, bag)
	}

	rw := &rewriter{p: p, mm: mm, bag: bag}

	for _, fn := range mm.Funcs {
		fc, ok := set.Fn(fn.Name)
		if !ok {
			continue
		}
		lf := &Func{Name: fn.Name, Ret: fn.Ret, RetMode: resultMode(fc), Body: fn.Body, Pub: fn.Pub, Span: fn.Span}
		env := newEnv()
		for i, pr := range fn.Params {
			lf.Params = append(lf.Params, Param{Name: pr.Name, Type: pr.Type, Mode: fc.Params[i].Mode})
			env.bind(pr.Name, pr.Type)
		}
		p.addFunc(lf, bag)
		rw.lowerBody(lf, env, "")
	}

	for _, td := range mm.Types {
		for _, md := range td.Methods {
			fc, ok := set.Method(td.Name, md.Name)
			if !ok {
				continue
			}
			lf := &Func{
				Name:    MangleMethod(td.Name, md.Name),
				Ret:     md.Ret,
				RetMode: resultMode(fc),
				Body:    md.Body,
				Pub:     td.Pub,
				Span:    md.Span,
			}
			env := newEnv()
			if md.Kind == ast.MethodInstance {
				lf.Params = append(lf.Params, Param{
					Name: "self",
					Type: ast.Named(td.Name),
					Mode: fc.Receiver.Mode,
				})
				env.bind("self", ast.Named(td.Name))
			}
			for i, pr := range md.Params {
				lf.Params = append(lf.Params, Param{Name: pr.Name, Type: pr.Type, Mode: fc.Params[i].Mode})
				env.bind(pr.Name, pr.Type)
			}
			p.addFunc(lf, bag)
			selfType := ""
			if md.Kind == ast.MethodInstance {
				selfType = td.Name
			}
			rw.lowerBody(lf, env, selfType)
		}
	}

	return p, bag.Err()
}

// resultMode reads the return-slot tag off a classification. Void functions
// carry no slot; their C return type needs no ownership shaping either.
func resultMode(fc *own.FnClass) own.Mode {
	if fc.Result != nil {
		return fc.Result.Mode
	}
	return own.ModeCopy
}

func (p *Program) addFunc(f *Func, bag *diag.Bag) {
	if p.Symbols.Declare(f.Name, f.Span, bag) {
		p.fnIndex[f.Name] = f
	}
	p.Funcs = append(p.Funcs, f)
}

// refOfID reconstructs a type reference from an interned id; used to name
// generated slice records.
func refOfID(mm *mono.Module, id types.TypeID) ast.TypeRef {
	tt, ok := mm.Interner.Lookup(id)
	if !ok {
		return ast.TypeRef{}
	}
	switch tt.Kind {
	case types.KindPtr:
		return ast.PtrTo(refOfID(mm, tt.Elem))
	case types.KindSlice:
		return ast.SliceOf(refOfID(mm, tt.Elem))
	case types.KindNamed:
		return ast.Named(tt.Name)
	case types.KindVoid, types.KindInvalid:
		return ast.TypeRef{}
	}
	return ast.Named(tt.Kind.String())
}
