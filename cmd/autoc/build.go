package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"

	"autoc/internal/assemble"
	"autoc/internal/driver"
	"autoc/internal/layout"
)

var buildCmd = &cobra.Command{
	Use:   "build [flags] [manifest...]",
	Short: "Compile Auto modules to C",
	Long:  "Compile one or more modules to C, using autoc.toml manifests as entrypoints.",
	RunE:  buildExecution,
}

func init() {
	buildCmd.Flags().String("scenario", string(assemble.ScenarioC), "fragment scenario to assemble (c|interp)")
	buildCmd.Flags().String("out", "build", "directory receiving the emitted .h/.c pairs")
	buildCmd.Flags().Int("jobs", 0, "maximum parallel module builds (0 = one per CPU)")
	buildCmd.Flags().Bool("no-cache", false, "recompile even when cached artifacts match")
	buildCmd.Flags().String("ui", "auto", "user interface (auto|on|off)")
}

func buildExecution(cmd *cobra.Command, args []string) error {
	scenarioValue, err := cmd.Flags().GetString("scenario")
	if err != nil {
		return err
	}
	outDir, err := cmd.Flags().GetString("out")
	if err != nil {
		return err
	}
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return err
	}
	noCache, err := cmd.Flags().GetBool("no-cache")
	if err != nil {
		return err
	}
	uiValue, err := cmd.Flags().GetString("ui")
	if err != nil {
		return err
	}
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return err
	}
	maxDiagnostics, err := cmd.Root().PersistentFlags().GetInt("max-diagnostics")
	if err != nil {
		return fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}

	scenario, err := assemble.ParseScenario(scenarioValue)
	if err != nil {
		return err
	}
	uiModeValue, err := readUIMode(uiValue)
	if err != nil {
		return err
	}

	paths, err := resolveManifests(args)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(paths))
	for _, path := range paths {
		m, loadErr := assemble.LoadManifest(path)
		if loadErr != nil {
			return loadErr
		}
		names = append(names, m.Name)
	}

	opts := driver.Options{
		Scenario:       scenario,
		Target:         layout.X86_64LinuxGNU(),
		OutDir:         outDir,
		MaxDiagnostics: maxDiagnostics,
		Jobs:           jobs,
	}
	if !noCache {
		cache, cacheErr := driver.OpenDiskCache("autoc")
		if cacheErr != nil {
			return cacheErr
		}
		opts.Cache = cache
	}

	useTUI := shouldUseTUI(uiModeValue) && !quiet && len(names) > 0

	var (
		results  []*driver.ModuleResult
		buildErr error
	)
	if useTUI {
		results, buildErr = runBuildWithUI(cmd.Context(), "autoc build", names, paths, opts)
	} else {
		if !quiet {
			opts.Observer = &lineObserver{out: os.Stdout}
		}
		results, buildErr = driver.BuildAll(cmd.Context(), paths, opts)
	}

	cached := 0
	for _, res := range results {
		if res == nil {
			continue
		}
		renderDiagnostics(os.Stderr, res.Bag)
		if res.Cached {
			cached++
		}
	}
	if buildErr != nil {
		return buildErr
	}
	if !quiet {
		fmt.Fprintf(os.Stdout, "built %d module(s) into %s (%d cached)\n", len(results), outDir, cached)
	}
	return nil
}

// resolveManifests turns CLI arguments into manifest paths. A directory
// argument means its autoc.toml; no arguments means the current directory.
func resolveManifests(args []string) ([]string, error) {
	if len(args) == 0 {
		args = []string{"."}
	}
	paths := make([]string, 0, len(args))
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			paths = append(paths, filepath.Join(arg, "autoc.toml"))
			continue
		}
		paths = append(paths, arg)
	}
	return paths, nil
}

// lineObserver prints one line per module lifecycle event. Events arrive
// from build goroutines, so writes are serialized.
type lineObserver struct {
	mu  sync.Mutex
	out *os.File
}

func (o *lineObserver) ModuleStarted(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintf(o.out, "compiling %s\n", name)
}

func (o *lineObserver) ModuleFinished(name string, cached bool, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch {
	case err != nil:
		fmt.Fprintf(o.out, "%s failed\n", name)
	case cached:
		fmt.Fprintf(o.out, "%s ok (cached)\n", name)
	default:
		fmt.Fprintf(o.out, "%s ok\n", name)
	}
}
