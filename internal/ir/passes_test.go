package ir_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tinyssa/internal/ir"
)

func TestConstFoldFoldsArithmeticOnTwoConstants(t *testing.T) {
	prog := build(t, `main var a; { let a <- 2 + 3 }.`)
	fn := prog.Functions["main"]
	require.NotNil(t, fn)

	changed := ir.ConstFold(prog, fn)
	require.True(t, changed)

	foundFive := false
	for _, idx := range fn.Block(fn.Entry).Instructions {
		inst := fn.Instruction(idx)
		if !inst.Active {
			continue
		}
		if inst.Opcode == ir.OpConst && prog.Value(inst.Result).ConstInt == 5 {
			foundFive = true
		}
		require.NotEqual(t, ir.OpAdd, inst.Opcode, "the ADD should have folded away")
	}
	require.True(t, foundFive)
}

func TestCSEReusesIdenticalPureInstruction(t *testing.T) {
	prog := build(t, `main var a, b, c; { let a <- 1; let b <- 2; let c <- (a + b) + (a + b) }.`)
	fn := prog.Functions["main"]
	require.NotNil(t, fn)

	changed := ir.CSE(prog, fn)
	require.True(t, changed)

	addCount := 0
	for _, idx := range fn.Block(fn.Entry).Instructions {
		inst := fn.Instruction(idx)
		if inst.Active && inst.Opcode == ir.OpAdd {
			addCount++
		}
	}
	require.Equal(t, 2, addCount, "the second (a + b) should reuse the first's result, leaving only it and the outer sum")
}

func TestDCERemovesDeadPureInstruction(t *testing.T) {
	prog := build(t, `main var a; { let a <- 1; let a <- 2 + 3 }.`)
	fn := prog.Functions["main"]
	require.NotNil(t, fn)

	ir.ConstFold(prog, fn)
	changed := ir.DCE(prog, fn)
	require.True(t, changed)

	for _, idx := range fn.Block(fn.Entry).Instructions {
		inst := fn.Instruction(idx)
		if inst.Active && inst.Opcode == ir.OpConst && prog.Value(inst.Result).ConstInt == 1 {
			t.Fatal("the dead first assignment's constant should have been eliminated")
		}
	}
}

func TestOptimizeIsIdempotent(t *testing.T) {
	prog := build(t, `main var a, b; { let a <- 1 + 2; let b <- a + (1 + 2) }.`)
	fn := prog.Functions["main"]
	require.NotNil(t, fn)

	ir.Optimize(prog)
	before := ir.Dump(prog)
	ir.Optimize(prog)
	after := ir.Dump(prog)
	require.Equal(t, before, after, "running Optimize again once it has reached a fixpoint must be a no-op")
}
