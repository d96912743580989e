// Command compiler is the CLI entry point of spec §6: `compiler
// <source> [--dump-ir <path>] [--registers N] [--log-level
// debug|info|warn|error]`. Grounded on the teacher's cmd/kanso-cli/
// main.go (read-file, parse, print, color-report-and-exit shape),
// retargeted to run the full pipeline through register allocation
// instead of stopping after parsing.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/fatih/color"

	"tinyssa/internal/codegen"
	"tinyssa/internal/compilation"
	"tinyssa/internal/errkit"
	"tinyssa/internal/ir"
	"tinyssa/internal/parser"
	"tinyssa/internal/symtab"
	"tinyssa/internal/visualizer"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("compiler", flag.ContinueOnError)
	dumpIR := fs.String("dump-ir", "", "write the final IR dump to this file")
	registers := fs.Int("registers", 6, "register allocator palette size (K)")
	logLevel := fs.String("log-level", "info", "debug|info|warn|error")
	optimize := fs.Bool("optimize", false, "run the optional ConstFold/CSE/LoadStoreElim/DCE passes before allocation")
	dumpDot := fs.String("dump-dot", "", "write a Graphviz dot rendering of the final IR to this file")
	emitAsm := fs.String("emit-asm", "", "write a DLX-style pseudo-assembly listing to this file (inspection only, not a real backend)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: compiler <source> [--dump-ir <path>] [--registers N] [--log-level debug|info|warn|error] [--optimize] [--dump-dot <path>] [--emit-asm <path>]")
		return 1
	}
	path := fs.Arg(0)

	level, err := compilation.ParseLevel(*logLevel)
	if err != nil {
		color.Red("%s", err)
		return 1
	}

	source, err := os.ReadFile(path)
	if err != nil {
		color.Red("cannot read %s: %s", path, err)
		return 1
	}

	comp := compilation.New(path, *registers, level)

	tree, diag := parser.ParseSource(path, string(source))
	if diag != nil {
		reportAndExit(string(source), path, diag)
		return 1
	}

	symbols, diags := symtab.Build(tree)
	if len(diags) > 0 {
		for _, d := range diags {
			reportOne(string(source), path, d)
		}
		return 1
	}

	prog, diags := ir.Build(comp, tree, symbols)
	if len(diags) > 0 {
		for _, d := range diags {
			reportOne(string(source), path, d)
		}
		return 1
	}

	clobbers := ir.BuildClobberSets(prog, symbols)
	if *optimize {
		ir.Optimize(prog)
	}

	allocs := map[string]*ir.Allocation{}
	for _, fn := range prog.FunctionsInOrder() {
		alloc, _, allocErr := ir.Allocate(comp, prog, fn, *registers)
		if allocErr != nil {
			reportOne(string(source), path, allocErr)
			return 1
		}
		allocs[fn.Name] = alloc
	}

	if *dumpDot != "" {
		if err := os.WriteFile(*dumpDot, []byte(visualizer.Dot(prog, clobbers)), 0o644); err != nil {
			color.Red("cannot write %s: %s", *dumpDot, err)
			return 1
		}
	}

	if *emitAsm != "" {
		if err := os.WriteFile(*emitAsm, []byte(codegen.Emit(prog, allocs)), 0o644); err != nil {
			color.Red("cannot write %s: %s", *emitAsm, err)
			return 1
		}
	}

	dump := ir.Dump(prog)
	if *dumpIR != "" {
		if err := os.WriteFile(*dumpIR, []byte(dump), 0o644); err != nil {
			color.Red("cannot write %s: %s", *dumpIR, err)
			return 1
		}
	} else {
		fmt.Print(dump)
	}

	color.Green("compiled %s", path)
	return 0
}

func reportAndExit(source, path string, d *errkit.Diagnostic) {
	reportOne(source, path, d)
}

func reportOne(source, path string, d *errkit.Diagnostic) {
	reporter := errkit.NewReporter(path, source)
	fmt.Fprint(os.Stderr, reporter.Format(d))
}
