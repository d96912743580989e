package codegen_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tinyssa/internal/codegen"
	"tinyssa/internal/compilation"
	"tinyssa/internal/ir"
	"tinyssa/internal/parser"
	"tinyssa/internal/symtab"
)

func TestEmitRendersColoredRegisters(t *testing.T) {
	comp, diag := parser.ParseSource("test.tiny", `main var a; { let a <- 1; let a <- a + 2 }.`)
	require.Nil(t, diag)
	symbols, diags := symtab.Build(comp)
	require.Empty(t, diags)
	c := compilation.New("test.tiny", 4, compilation.Error)
	prog, diags := ir.Build(c, comp, symbols)
	require.Empty(t, diags)

	allocs := map[string]*ir.Allocation{}
	for _, fn := range prog.FunctionsInOrder() {
		alloc, _, allocErr := ir.Allocate(c, prog, fn, 4)
		require.Nil(t, allocErr)
		allocs[fn.Name] = alloc
	}

	out := codegen.Emit(prog, allocs)
	require.Contains(t, out, "; function main")
	require.Contains(t, out, "BB_0:")
	require.Contains(t, out, "ADD")
	require.Contains(t, out, "R")
}
