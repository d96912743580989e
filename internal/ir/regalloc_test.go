package ir_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tinyssa/internal/compilation"
	"tinyssa/internal/ir"
)

// Scenario 6: the phi produced by scenario 2's if/else join has
// operands that don't interfere with each other or with the phi's own
// result, so Coalesce registers one cluster; after allocation all
// three share a single color and phi destruction emits no MOVEs.
func TestRegallocCoalescesNonInterferingPhi(t *testing.T) {
	prog := build(t, `main var a, b;
	{
		let a <- 1;
		if a < 10 then let b <- 2 else let b <- 3 fi;
		let a <- b
	}.`)
	fn := prog.Functions["main"]
	require.NotNil(t, fn)

	g := ir.BuildInterference(prog, fn)
	clusters := ir.Coalesce(prog, fn, g)
	require.Len(t, clusters, 1)
	require.Len(t, clusters[0].Members, 3)

	c := compilation.New("test.tiny", 4, compilation.Error)
	alloc, _, diag := ir.Allocate(c, prog, fn, 4)
	require.Nil(t, diag)

	colors := map[ir.Color]int{}
	for _, m := range clusters[0].Members {
		colors[alloc.ColorOf(m)]++
	}
	require.Len(t, colors, 1, "every member of the coalesced cluster should share one color")

	for _, b := range fn.ReversePostOrder() {
		for _, idx := range fn.Block(b).Instructions {
			inst := fn.Instruction(idx)
			if inst.Active && inst.Opcode == ir.OpMove {
				t.Fatalf("unexpected MOVE at %d: coalesced operands should need no move", b)
			}
		}
	}
}

// Allocate never leaves two interfering values sharing a color.
func TestRegallocRespectsInterference(t *testing.T) {
	prog := build(t, `main var a, b, c, d;
	{
		let a <- 1;
		let b <- 2;
		let c <- 3;
		let d <- a + b + c
	}.`)
	fn := prog.Functions["main"]
	require.NotNil(t, fn)

	c := compilation.New("test.tiny", 4, compilation.Error)
	alloc, g, diag := ir.Allocate(c, prog, fn, 4)
	require.Nil(t, diag)

	for _, v := range g.Nodes() {
		for _, n := range g.Neighbors(v) {
			if alloc.ColorOf(v) >= 0 && alloc.ColorOf(n) >= 0 {
				require.NotEqual(t, alloc.ColorOf(v), alloc.ColorOf(n), "interfering values %d and %d must not share a color", v, n)
			}
		}
	}
}

// Allocation fails cleanly when the palette can't cover a function's
// live ranges.
func TestRegallocExhaustedPaletteFails(t *testing.T) {
	prog := build(t, `main var a, b, c, d, e;
	{
		let a <- 1;
		let b <- 2;
		let c <- 3;
		let d <- 4;
		let e <- a + b + c + d
	}.`)
	fn := prog.Functions["main"]
	require.NotNil(t, fn)

	c := compilation.New("test.tiny", 1, compilation.Error)
	_, _, diag := ir.Allocate(c, prog, fn, 1)
	require.NotNil(t, diag, "one color can't cover four simultaneously live values")
}
