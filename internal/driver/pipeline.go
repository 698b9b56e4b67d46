// Package driver orchestrates the backend pipeline: fragment assembly,
// monomorphization, ownership classification, lowering and emission, with
// artifact caching and parallel multi-module builds on top.
package driver

import (
	"fmt"
	"os"
	"path/filepath"

	"autoc/internal/assemble"
	"autoc/internal/ast"
	"autoc/internal/cgen"
	"autoc/internal/diag"
	"autoc/internal/layout"
	"autoc/internal/lower"
	"autoc/internal/mono"
	"autoc/internal/own"
	"autoc/internal/types"
)

// Options configures one build run.
type Options struct {
	// Scenario selects which fragment set the assembler loads.
	Scenario assemble.Scenario
	// Target fixes pointer size and alignment for layout.
	Target layout.Target
	// OutDir receives the emitted artifact pairs.
	OutDir string
	// MaxDiagnostics caps the diagnostics collected per module.
	MaxDiagnostics int
	// Jobs bounds build parallelism; 0 means one worker per CPU.
	Jobs int
	// Cache, when set, skips recompilation of unchanged modules.
	Cache *DiskCache
	// Observer, when set, receives module lifecycle events.
	Observer Observer
}

// Observer receives build progress events. Calls may come from multiple
// goroutines.
type Observer interface {
	ModuleStarted(name string)
	ModuleFinished(name string, cached bool, err error)
}

// Build is the result of compiling one module: every intermediate stage is
// kept so inspection tooling can render them.
type Build struct {
	Unit      *ast.ModuleUnit
	Module    *mono.Module
	Program   *lower.Program
	Artifacts *cgen.Artifacts
	Table     *mono.Table
}

// CompileUnit runs the core passes over an assembled unit. The table is
// owned by this compilation and collects every instantiation made.
func CompileUnit(unit *ast.ModuleUnit, table *mono.Table, target layout.Target, bag *diag.Bag) (*Build, error) {
	mm, err := mono.Run(unit, types.NewInterner(), table, bag)
	if err != nil {
		return nil, err
	}
	eng := layout.New(target, mm)
	set, err := own.Classify(mm, eng, bag)
	if err != nil {
		return nil, err
	}
	prog, err := lower.Run(mm, eng, set, bag)
	if err != nil {
		return nil, err
	}
	art, err := cgen.Emit(prog, bag)
	if err != nil {
		return nil, err
	}
	return &Build{Unit: unit, Module: mm, Program: prog, Artifacts: art, Table: table}, nil
}

// CompileManifest assembles and compiles the module a manifest describes.
func CompileManifest(path string, opts Options, bag *diag.Bag) (*Build, error) {
	unit, err := assemble.Load(path, opts.Scenario, bag)
	if err != nil {
		return nil, err
	}
	return CompileUnit(unit, mono.NewTable(), opts.Target, bag)
}

// WriteArtifacts places the artifact pair under dir, creating it if needed.
func WriteArtifacts(dir string, art *cgen.Artifacts) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, art.HeaderName), art.Header, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", art.HeaderName, err)
	}
	if err := os.WriteFile(filepath.Join(dir, art.SourceName), art.Source, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", art.SourceName, err)
	}
	return nil
}
