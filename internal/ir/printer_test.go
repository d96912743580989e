package ir_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"tinyssa/internal/ir"
)

func TestDumpRendersFunctionsAndBlocks(t *testing.T) {
	prog := build(t, `main var a; { let a <- 1; let a <- a + 2 }.`)

	out := ir.Dump(prog)
	require.Contains(t, out, "function main:")
	require.Contains(t, out, "BB_0:")
	require.Contains(t, out, "const #1")
	require.Contains(t, out, "const #2")
	require.Contains(t, out, "ADD")
	require.Contains(t, out, "->")
}

func TestDumpOmitsInactiveInstructions(t *testing.T) {
	prog := build(t, `main var a, b;
	{
		if a < 10 then let b <- 5 else let b <- 5 fi;
		let a <- b
	}.`)

	out := ir.Dump(prog)
	require.NotContains(t, strings.ToUpper(out), "PHI", "a trivially-removed phi must not appear in the dump")
}

func TestDumpRendersArrayAddressOperands(t *testing.T) {
	prog := build(t, `main array[3][4] a; { let a[1][2] <- 7 }.`)

	out := ir.Dump(prog)
	require.Contains(t, out, "ADDA")
	require.Contains(t, out, "STORE")
	require.Contains(t, out, "#4")
}
