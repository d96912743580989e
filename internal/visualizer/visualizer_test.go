package visualizer_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tinyssa/internal/compilation"
	"tinyssa/internal/ir"
	"tinyssa/internal/parser"
	"tinyssa/internal/symtab"
	"tinyssa/internal/visualizer"
)

func compile(t *testing.T, source string) (*ir.Program, *symtab.Table) {
	t.Helper()
	comp, diag := parser.ParseSource("test.tiny", source)
	require.Nil(t, diag)
	symbols, diags := symtab.Build(comp)
	require.Empty(t, diags)
	c := compilation.New("test.tiny", 4, compilation.Error)
	prog, diags := ir.Build(c, comp, symbols)
	require.Empty(t, diags)
	return prog, symbols
}

func TestTextAnnotatesCallSitesWithClobbers(t *testing.T) {
	prog, symbols := compile(t, `main array[2] g;
	function inner; { let g[0] <- 1; return };
	{ call inner }.`)
	clobbers := ir.BuildClobberSets(prog, symbols)

	out := visualizer.Text(prog, clobbers)
	require.Contains(t, out, "CALL")
	require.Contains(t, out, "clobbers: {g}")
}

func TestDotProducesOneClusterPerFunction(t *testing.T) {
	prog, symbols := compile(t, `main var a; { let a <- 1 }.`)
	clobbers := ir.BuildClobberSets(prog, symbols)

	out := visualizer.Dot(prog, clobbers)
	require.Contains(t, out, "digraph IR")
	require.Contains(t, out, "subgraph cluster_main")
	require.Contains(t, out, "main_BB_0")
}

func TestInterferenceDotGroupsCoalescedCluster(t *testing.T) {
	prog, _ := compile(t, `main var a, b;
	{
		let a <- 1;
		if a < 10 then let b <- 2 else let b <- 3 fi;
		let a <- b
	}.`)
	fn := prog.Functions["main"]
	g := ir.BuildInterference(prog, fn)
	clusters := ir.Coalesce(prog, fn, g)
	require.Len(t, clusters, 1)

	out := visualizer.InterferenceDot(fn.Name, g, clusters)
	require.Contains(t, out, "graph Interference_main")
	require.Contains(t, out, "cluster_0")
}
