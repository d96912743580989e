package ir_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tinyssa/internal/ir"
)

func TestClobberDetectsDirectGlobalArrayWrite(t *testing.T) {
	prog, symbols := compileWithSymbols(t, `main array[5] a; { let a[1] <- 9 }.`)
	sets := ir.BuildClobberSets(prog, symbols)
	require.True(t, sets["main"]["a"], "main directly stores into global array a")
}

func TestClobberIgnoresGlobalScalarWrite(t *testing.T) {
	prog, symbols := compileWithSymbols(t, `main var a; { let a <- 9 }.`)
	sets := ir.BuildClobberSets(prog, symbols)
	require.Empty(t, sets["main"], "a scalar write leaves no memory instruction to observe")
}

func TestClobberIgnoresLocalArrayWrite(t *testing.T) {
	prog, symbols := compileWithSymbols(t, `main
	function f; array[3] local; { let local[0] <- 1; return };
	{ call f }.`)
	sets := ir.BuildClobberSets(prog, symbols)
	require.Empty(t, sets["f"], "a function-local array write never touches GlobalBase")
}

func TestClobberPropagatesTransitivelyThroughCalls(t *testing.T) {
	prog, symbols := compileWithSymbols(t, `main array[2] g;
	function inner; { let g[0] <- 1; return };
	function outer; { call inner; return };
	{ call outer }.`)
	sets := ir.BuildClobberSets(prog, symbols)
	require.True(t, sets["inner"]["g"])
	require.True(t, sets["outer"]["g"], "outer calls inner, which writes g, so outer's set must include g too")
}
