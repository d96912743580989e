package ir_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tinyssa/internal/compilation"
	"tinyssa/internal/errkit"
	"tinyssa/internal/ir"
	"tinyssa/internal/parser"
	"tinyssa/internal/symtab"
)

// compileWithSymbols parses source, builds its symbol table and
// lowers it to a Program, failing the test on any diagnostic.
func compileWithSymbols(t *testing.T, source string) (*ir.Program, *symtab.Table) {
	t.Helper()
	comp, diag := parser.ParseSource("test.tiny", source)
	require.Nil(t, diag, "parse error: %v", diag)

	symbols, diags := symtab.Build(comp)
	require.Empty(t, diags, "symbol table errors: %v", diags)

	c := compilation.New("test.tiny", 4, compilation.Error)
	prog, diags := ir.Build(c, comp, symbols)
	require.Empty(t, diags, "builder errors: %v", diags)
	return prog, symbols
}

// build is compileWithSymbols for the common case where the test has
// no need of the symbol table itself.
func build(t *testing.T, source string) *ir.Program {
	t.Helper()
	prog, _ := compileWithSymbols(t, source)
	return prog
}

func activeInstructions(fn *ir.Function, block ir.BasicBlockIdx) []*ir.Instruction {
	bb := fn.Block(block)
	var out []*ir.Instruction
	for _, idx := range bb.Instructions {
		inst := fn.Instruction(idx)
		if inst.Active {
			out = append(out, inst)
		}
	}
	return out
}

// Scenario 1: straight-line scalar reassignment. Two WriteVariable
// calls, no phi, and the entry block holds exactly const/const/ADD.
func TestBuilderStraightLineScalar(t *testing.T) {
	prog := build(t, `main var a; { let a <- 1; let a <- a + 2 }.`)
	fn := prog.Functions["main"]
	require.NotNil(t, fn)

	insts := activeInstructions(fn, fn.Entry)
	require.Len(t, insts, 3)
	require.Equal(t, ir.OpConst, insts[0].Opcode)
	require.Equal(t, ir.OpConst, insts[1].Opcode)
	require.Equal(t, ir.OpAdd, insts[2].Opcode)
	require.Equal(t, []ir.ValueIdx{insts[0].Result, insts[1].Result}, insts[2].Operands)

	for _, inst := range insts {
		require.False(t, inst.IsPhi())
	}
}

// Scenario 2: if/else join produces a two-operand PHI for the
// variable assigned on both arms.
func TestBuilderIfElseJoin(t *testing.T) {
	prog := build(t, `main var a, b;
	{
		let a <- 1;
		if a < 10 then let b <- 2 else let b <- 3 fi;
		let a <- b
	}.`)
	fn := prog.Functions["main"]
	require.NotNil(t, fn)

	var phis []*ir.Instruction
	for _, b := range fn.ReversePostOrder() {
		for _, inst := range activeInstructions(fn, b) {
			if inst.IsPhi() {
				phis = append(phis, inst)
			}
		}
	}
	require.Len(t, phis, 1)
	require.Len(t, phis[0].Operands, 2)
	require.Len(t, phis[0].OpSource, 2)
}

// Scenario 3: when both phi operands resolve to the same constant,
// TryRemoveTrivialPhi removes the phi and downstream reads see the
// constant directly.
func TestBuilderTrivialPhiRemoved(t *testing.T) {
	prog := build(t, `main var a, b;
	{
		if a < 10 then let b <- 5 else let b <- 5 fi;
		let a <- b
	}.`)
	fn := prog.Functions["main"]
	require.NotNil(t, fn)

	for _, b := range fn.ReversePostOrder() {
		for _, inst := range activeInstructions(fn, b) {
			require.False(t, inst.IsPhi(), "no active phi should survive a trivial merge")
		}
	}

	constCount := 0
	for _, b := range fn.ReversePostOrder() {
		for _, inst := range activeInstructions(fn, b) {
			if inst.Opcode == ir.OpConst && prog.Value(inst.Result).ConstInt == 5 {
				constCount++
			}
		}
	}
	require.Equal(t, 1, constCount, "the constant 5 should be memoized per function, not duplicated by the merge")
}

// Scenario 4: a while loop's header is sealed only after the back-edge
// is added, and the surviving phi retains the pre-header and
// loop-body operands.
func TestBuilderWhileBackEdgePhi(t *testing.T) {
	prog := build(t, `main var a;
	{
		let a <- 0;
		while a < 10 do let a <- a + 1 od
	}.`)
	fn := prog.Functions["main"]
	require.NotNil(t, fn)

	var header *ir.BasicBlock
	for _, idx := range fn.ReversePostOrder() {
		bb := fn.Block(idx)
		if bb.Kind == ir.BlockLoopHead {
			header = bb
		}
	}
	require.NotNil(t, header, "expected a loop-head block")
	require.True(t, header.Sealed)
	require.Len(t, header.Preds, 2)

	phis := activeInstructions(fn, header.Idx)
	require.NotEmpty(t, phis)
	require.True(t, phis[0].IsPhi())
	require.Len(t, phis[0].OpSource, 2)
	require.Contains(t, phis[0].OpSource, header.Preds[0])
	require.Contains(t, phis[0].OpSource, header.Preds[1])
}

// Scenario 5: indexing a 2D array folds to ADDA(ADDA(base, offset(a)),
// ADD(MUL(#4, #1), #2)) — exactly two ADDAs (base+offset, then the
// folded index sum), not one ADDA per dimension.
func TestBuilderArrayAddress(t *testing.T) {
	prog := build(t, `main array[3][4] a; { let a[1][2] <- 7 }.`)
	fn := prog.Functions["main"]
	require.NotNil(t, fn)

	insts := activeInstructions(fn, fn.Entry)

	var store *ir.Instruction
	for _, inst := range insts {
		if inst.Opcode == ir.OpStore {
			store = inst
		}
	}
	require.NotNil(t, store, "expected a STORE for an array assignment")

	addaCount, mulCount, addCount := 0, 0, 0
	for _, inst := range insts {
		switch inst.Opcode {
		case ir.OpAdda:
			addaCount++
		case ir.OpMul:
			mulCount++
		case ir.OpAdd:
			addCount++
		}
	}
	require.Equal(t, 2, addaCount, "base+offset ADDA plus one final ADDA combining the folded index sum")
	require.Equal(t, 1, mulCount, "only the outer dimension's stride is non-trivial (stride 4)")
	require.Equal(t, 1, addCount, "the two dimension terms are folded together via one ADD")

	finalAdda := insts[len(insts)-1]
	for _, inst := range insts {
		if inst.Opcode == ir.OpAdda && inst.Result == store.Operands[1] {
			finalAdda = inst
		}
	}
	require.Equal(t, ir.OpAdda, finalAdda.Opcode)
	sumVal := finalAdda.Operands[1]
	var sumInst *ir.Instruction
	for _, inst := range insts {
		if inst.Result == sumVal {
			sumInst = inst
		}
	}
	require.NotNil(t, sumInst)
	require.Equal(t, ir.OpAdd, sumInst.Opcode)
}

// lowerToDiags parses and builds a symbol table (assumed clean), then
// lowers to IR and returns whatever diagnostics the builder itself
// raises, for tests that exercise the builder's own semantic checks.
func lowerToDiags(t *testing.T, source string) []*errkit.Diagnostic {
	t.Helper()
	comp, diag := parser.ParseSource("test.tiny", source)
	require.Nil(t, diag, "parse error: %v", diag)

	symbols, diags := symtab.Build(comp)
	require.Empty(t, diags, "symbol table errors: %v", diags)

	c := compilation.New("test.tiny", 4, compilation.Error)
	_, diags = ir.Build(c, comp, symbols)
	return diags
}

func TestBuilderRejectsUndeclaredScalarRead(t *testing.T) {
	diags := lowerToDiags(t, `main var a; { let a <- b }.`)
	require.Len(t, diags, 1)
	require.Equal(t, errkit.Semantic, diags[0].Kind)
}

func TestBuilderRejectsUndeclaredScalarWrite(t *testing.T) {
	diags := lowerToDiags(t, `main var a; { let b <- 1 }.`)
	require.Len(t, diags, 1)
	require.Equal(t, errkit.Semantic, diags[0].Kind)
}

func TestBuilderRejectsUndeclaredArray(t *testing.T) {
	diags := lowerToDiags(t, `main var a; { let a <- b[0] }.`)
	require.Len(t, diags, 1)
	require.Equal(t, errkit.Semantic, diags[0].Kind)
}

func TestBuilderRejectsArrayDimensionMismatch(t *testing.T) {
	diags := lowerToDiags(t, `main array[3][4] a; { let a[1] <- 7 }.`)
	require.Len(t, diags, 1)
	require.Equal(t, errkit.Semantic, diags[0].Kind)
}

func TestBuilderRejectsCallArityMismatch(t *testing.T) {
	diags := lowerToDiags(t, `main var a;
	function f(x, y); { return x + y };
	{ let a <- call f(1) }.`)
	require.Len(t, diags, 1)
	require.Equal(t, errkit.Semantic, diags[0].Kind)
}

func TestBuilderAcceptsCorrectCallArity(t *testing.T) {
	diags := lowerToDiags(t, `main var a;
	function f(x, y); { return x + y };
	{ let a <- call f(1, 2) }.`)
	require.Empty(t, diags)
}
