package driver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"autoc/internal/assemble"
	"autoc/internal/ast"
	"autoc/internal/cgen"
	"autoc/internal/diag"
	"autoc/internal/mono"
	"autoc/internal/source"
)

// ModuleResult is the outcome of one module inside a multi-module build.
// A failed module carries its diagnostics; siblings still complete.
type ModuleResult struct {
	Name      string
	Artifacts *cgen.Artifacts
	Bag       *diag.Bag
	Cached    bool
	Err       error
}

// BuildAll compiles independent modules in parallel. Instantiation tables
// are merged into one shared table through a single serialization point,
// so a generic crossing module boundaries is never generated twice under
// different names.
func BuildAll(ctx context.Context, manifestPaths []string, opts Options) ([]*ModuleResult, error) {
	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}

	shared := mono.NewTable()
	var mergeMu sync.Mutex

	results := make([]*ModuleResult, len(manifestPaths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)

	for i, path := range manifestPaths {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res := buildOne(path, opts, shared, &mergeMu)
			results[i] = res
			if opts.Observer != nil {
				opts.Observer.ModuleFinished(res.Name, res.Cached, res.Err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}

	var errs []error
	for _, res := range results {
		if res != nil && res.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", res.Name, res.Err))
		}
	}
	return results, errors.Join(errs...)
}

func buildOne(manifestPath string, opts Options, shared *mono.Table, mergeMu *sync.Mutex) *ModuleResult {
	bag := diag.NewBag(opts.MaxDiagnostics)
	res := &ModuleResult{Name: manifestPath, Bag: bag}

	m, err := assemble.LoadManifest(manifestPath)
	if err != nil {
		bag.Add(diag.NewError(diag.AsmBadManifest, source.Span{}, err.Error()))
		res.Err = bag.Err()
		return res
	}
	res.Name = m.Name
	if opts.Observer != nil {
		opts.Observer.ModuleStarted(m.Name)
	}

	frags, raw, err := readFragments(m, opts.Scenario, bag)
	if err != nil {
		res.Err = err
		return res
	}

	key := hashInputs(m.Name, string(opts.Scenario), opts.Target.Triple, raw)
	if opts.Cache != nil {
		var payload DiskPayload
		if hit, err := opts.Cache.Get(key, &payload); err == nil && hit {
			res.Artifacts = &cgen.Artifacts{
				HeaderName: payload.HeaderName,
				SourceName: payload.SourceName,
				Header:     payload.Header,
				Source:     payload.Source,
			}
			res.Cached = true
			res.Err = writeOut(opts, res.Artifacts)
			return res
		}
	}

	unit, err := assemble.Assemble(m.Name, opts.Scenario, frags, bag)
	if err != nil {
		res.Err = err
		return res
	}
	build, err := CompileUnit(unit, mono.NewTable(), opts.Target, bag)
	if err != nil {
		res.Err = err
		return res
	}

	// single serialization point for cross-module instantiations
	mergeMu.Lock()
	mergeErr := shared.Merge(build.Table)
	mergeMu.Unlock()
	if mergeErr != nil {
		bag.Add(diag.NewError(diag.EmitSymbolCollision, source.Span{}, mergeErr.Error()).
			At(m.Name, ""))
		res.Err = bag.Err()
		return res
	}

	res.Artifacts = build.Artifacts
	if err := writeOut(opts, res.Artifacts); err != nil {
		res.Err = err
		return res
	}
	if opts.Cache != nil {
		payload := &DiskPayload{
			Module:     m.Name,
			Scenario:   string(opts.Scenario),
			Target:     opts.Target.Triple,
			HeaderName: res.Artifacts.HeaderName,
			SourceName: res.Artifacts.SourceName,
			Header:     res.Artifacts.Header,
			Source:     res.Artifacts.Source,
		}
		// a cache write failure never fails the build
		_ = opts.Cache.Put(key, payload)
	}
	return res
}

func writeOut(opts Options, art *cgen.Artifacts) error {
	if opts.OutDir == "" {
		return nil
	}
	return WriteArtifacts(opts.OutDir, art)
}

// readFragments decodes a manifest's fragment files, returning the raw
// bytes alongside for cache keying.
func readFragments(m *assemble.Manifest, scenario assemble.Scenario, bag *diag.Bag) ([]*ast.Fragment, [][]byte, error) {
	paths := m.FragmentPaths(scenario)
	frags := make([]*ast.Fragment, 0, len(paths))
	raw := make([][]byte, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			bag.Add(diag.NewError(diag.AsmBadFragment, source.Span{},
				fmt.Sprintf("read fragment %s: %v", p, err)).At(m.Name, ""))
			return nil, nil, bag.Err()
		}
		f, err := ast.DecodeFragment(data)
		if err != nil {
			bag.Add(diag.NewError(diag.AsmBadFragment, source.Span{},
				fmt.Sprintf("fragment %s: %v", p, err)).At(m.Name, ""))
			return nil, nil, bag.Err()
		}
		if f.Path == "" {
			f.Path = p
		}
		frags = append(frags, f)
		raw = append(raw, data)
	}
	return frags, raw, nil
}
