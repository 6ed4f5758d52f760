package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/xplshn/svrtl/pkg/ast"
	"github.com/xplshn/svrtl/pkg/cli"
	"github.com/xplshn/svrtl/pkg/config"
	"github.com/xplshn/svrtl/pkg/elaborate"
	"github.com/xplshn/svrtl/pkg/rtlil"
)

func main() {
	app := cli.NewApp("slang")
	app.Synopsis = "[options] <design.json> ..."
	app.Description = "SystemVerilog elaboration frontend: reads checked design trees " +
		"(the --dump-ast JSON format) and lowers them to a cell-level netlist."

	var (
		outFile    string
		topModule  string
		configFile string
		dumpAST    bool
		quiet      bool
		includes   []string
		defines    []string
	)

	fs := app.FlagSet
	fs.String(&outFile, "output", "o", "", "Write the netlist JSON into <file> instead of stdout.", "file")
	fs.String(&topModule, "top", "t", "", "Restrict elaboration to the given top module.", "module")
	fs.String(&configFile, "config", "c", "", "Load project settings from a YAML file.", "file")
	fs.Bool(&dumpAST, "dump-ast", "", false, "Serialize the AST to stdout before elaboration.")
	fs.Bool(&quiet, "quiet", "q", false, "Suppress the summary line.")
	fs.List(&includes, "include", "I", "Add a directory to the include path.", "path")
	fs.Special(&defines, "D", "Define a preprocessor macro (e.g. -DWIDTH=8)", "name[=value]")

	cfg := config.NewConfig()
	warningEntries := setupWarningGroup(fs, cfg)

	app.Action = func(inputFiles []string) error {
		if configFile == "" {
			if _, err := os.Stat("slang.yaml"); err == nil {
				configFile = "slang.yaml"
			}
		}
		if configFile != "" {
			if err := cfg.LoadProjectFile(configFile); err != nil {
				return fmt.Errorf("slang: %w", err)
			}
		}

		// Command-line toggles override the project file.
		for i, entry := range warningEntries {
			if entry.Enabled != nil && *entry.Enabled {
				cfg.SetWarning(config.Warning(i), true)
			}
			if entry.Disabled != nil && *entry.Disabled {
				cfg.SetWarning(config.Warning(i), false)
			}
		}
		if topModule != "" {
			cfg.TopModule = topModule
		}
		cfg.IncludePaths = append(cfg.IncludePaths, includes...)
		for _, def := range defines {
			name, value := config.ParseDefine(def)
			cfg.Defines[name] = value
		}

		if len(inputFiles) == 0 {
			return fmt.Errorf("slang: no input files specified")
		}

		comp, err := loadInputs(inputFiles)
		if err != nil {
			return err
		}
		if cfg.TopModule != "" {
			comp = restrictToTop(comp, cfg.TopModule)
			if comp == nil {
				return fmt.Errorf("slang: top module %q not found", cfg.TopModule)
			}
		}

		if dumpAST {
			if err := ast.DumpJSON(os.Stdout, comp); err != nil {
				return fmt.Errorf("slang: %w", err)
			}
		}

		design := elaborate.Elaborate(comp, cfg)

		out := os.Stdout
		if outFile != "" {
			f, err := os.Create(outFile)
			if err != nil {
				return fmt.Errorf("slang: %w", err)
			}
			defer f.Close()
			out = f
		}
		if err := rtlil.WriteJSON(out, design); err != nil {
			return fmt.Errorf("slang: %w", err)
		}

		if !quiet {
			printSummary(design)
		}
		return nil
	}

	if err := app.Run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setupWarningGroup exposes every registered warning as -W<name> /
// -Wno-<name> toggles.
func setupWarningGroup(fs *cli.FlagSet, cfg *config.Config) []cli.GroupEntry {
	entries := make([]cli.GroupEntry, config.WarnCount)
	for i := config.Warning(0); i < config.WarnCount; i++ {
		info := cfg.Warnings[i]
		entries[i] = cli.GroupEntry{
			Name:     info.Name,
			Prefix:   "W",
			Usage:    info.Description,
			Enabled:  new(bool),
			Disabled: new(bool),
		}
	}
	fs.AddGroup("Warnings", entries)
	return entries
}

// loadInputs reads every design file and merges their top-level members
// under one root.
func loadInputs(paths []string) (*ast.Compilation, error) {
	root := ast.NewRoot()
	var sm *ast.SourceManager
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("slang: %w", err)
		}
		comp, err := ast.LoadJSON(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("slang: %s: %w", path, err)
		}
		for _, m := range comp.Root.Members {
			root.AddMember(m)
		}
		if sm == nil {
			sm = comp.SourceMgr
		}
	}
	return ast.NewCompilation(root, sm), nil
}

// restrictToTop drops root instances other than the requested top module.
func restrictToTop(comp *ast.Compilation, top string) *ast.Compilation {
	root := ast.NewRoot()
	for _, inst := range comp.TopInstances() {
		if inst.Name() == top || (inst.Body != nil && inst.Body.Name() == top) {
			root.AddMember(inst)
		}
	}
	if len(root.Members) == 0 {
		return nil
	}
	return ast.NewCompilation(root, comp.SourceMgr)
}

func printSummary(design *rtlil.Design) {
	var wires, cells, procs int
	for _, mod := range design.ModuleOrder {
		wires += len(mod.WireOrder)
		cells += len(mod.Cells)
		procs += len(mod.Processes)
	}
	fmt.Fprintf(os.Stderr, "slang: elaborated %d module(s): %s wires, %s cells, %s processes\n",
		len(design.ModuleOrder),
		humanize.Comma(int64(wires)), humanize.Comma(int64(cells)), humanize.Comma(int64(procs)))
}
