package ir_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tinyssa/internal/ir"
)

// ReversePostOrder visits every reachable block exactly once, entry
// first.
func TestReversePostOrderVisitsEachBlockOnce(t *testing.T) {
	prog := build(t, `main var a;
	{
		let a <- 0;
		while a < 10 do
			if a < 5 then let a <- a + 1 else let a <- a + 2 fi
		od
	}.`)
	fn := prog.Functions["main"]
	require.NotNil(t, fn)

	rpo := fn.ReversePostOrder()
	require.Equal(t, fn.Entry, rpo[0])

	seen := map[ir.BasicBlockIdx]bool{}
	for _, b := range rpo {
		require.False(t, seen[b], "block %d visited twice", b)
		seen[b] = true
	}
	require.Len(t, rpo, len(fn.Blocks), "RPO must cover every block reachable from entry")
}

// A loop's back-edge is recognized regardless of which other forward
// edges a block has.
func TestIsBackEdgeDetectsLoopBackEdge(t *testing.T) {
	prog := build(t, `main var a; { let a <- 0; while a < 10 do let a <- a + 1 od }.`)
	fn := prog.Functions["main"]
	require.NotNil(t, fn)

	var header ir.BasicBlockIdx
	found := false
	for _, b := range fn.ReversePostOrder() {
		if fn.Block(b).Kind == ir.BlockLoopHead {
			header = b
			found = true
		}
	}
	require.True(t, found)

	bb := fn.Block(header)
	require.Len(t, bb.Preds, 2)

	backEdges := 0
	for _, p := range bb.Preds {
		if fn.IsBackEdge(p, header) {
			backEdges++
		}
	}
	require.Equal(t, 1, backEdges, "exactly one predecessor edge into the header should be a back-edge")
	require.False(t, fn.IsBackEdge(bb.Preds[0], header), "the pre-header edge is forward, not a back-edge")
	require.True(t, fn.IsBackEdge(bb.Preds[1], header), "the loop-body edge closing the cycle is the back-edge")
}
