package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"autoc/internal/assemble"
	"autoc/internal/ast"
	"autoc/internal/diag"
	"autoc/internal/driver"
	"autoc/internal/layout"
	"autoc/internal/mono"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [flags] [manifest]",
	Short: "Show the intermediate form of one module",
	Long:  "Compile a module and print its instantiation table and type layouts without writing artifacts.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  inspectExecution,
}

func init() {
	inspectCmd.Flags().String("scenario", string(assemble.ScenarioC), "fragment scenario to assemble (c|interp)")
	inspectCmd.Flags().String("show", "all", "sections to print (instantiations|layouts|all)")
}

func inspectExecution(cmd *cobra.Command, args []string) error {
	scenarioValue, err := cmd.Flags().GetString("scenario")
	if err != nil {
		return err
	}
	show, err := cmd.Flags().GetString("show")
	if err != nil {
		return err
	}
	maxDiagnostics, err := cmd.Root().PersistentFlags().GetInt("max-diagnostics")
	if err != nil {
		return fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}
	switch show {
	case "instantiations", "layouts", "all":
		// supported
	default:
		return fmt.Errorf("invalid --show value %q (expected instantiations|layouts|all)", show)
	}

	scenario, err := assemble.ParseScenario(scenarioValue)
	if err != nil {
		return err
	}
	paths, err := resolveManifests(args)
	if err != nil {
		return err
	}

	bag := diag.NewBag(maxDiagnostics)
	build, err := driver.CompileManifest(paths[0], driver.Options{
		Scenario: scenario,
		Target:   layout.X86_64LinuxGNU(),
	}, bag)
	renderDiagnostics(cmd.ErrOrStderr(), bag)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if show == "instantiations" || show == "all" {
		fmt.Fprintf(out, "instantiations of %s:\n", build.Module.Name)
		if err := mono.Dump(out, build.Table, build.Module.Interner); err != nil {
			return err
		}
	}
	if show == "layouts" || show == "all" {
		fmt.Fprintln(out, "layouts:")
		if err := dumpLayouts(out, build); err != nil {
			return err
		}
	}
	return nil
}

func dumpLayouts(out io.Writer, build *driver.Build) error {
	for _, td := range build.Program.Types {
		l, err := build.Program.Layout.OfRef(ast.Named(td.Name))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  %s size=%d align=%d", td.Name, l.Size, l.Align)
		if l.HeapBacked {
			fmt.Fprint(out, " heap")
		}
		fmt.Fprintln(out)
		tl, ok := build.Program.Tags[td.Name]
		if !ok {
			continue
		}
		for _, v := range tl.Variants {
			fmt.Fprintf(out, "    %s = %d\n", tl.DiscConst(v.Name), v.Disc)
		}
	}
	return nil
}
