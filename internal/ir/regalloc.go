// Graph-coloring register allocation with spill-cost ranking and the
// phi-destruction rewrite (spec §4.6-4.7), grounded on
// original_source/src/RegAlloc/RegAlloc.cpp (RegAllocator::GetColor's
// palette-exhaustion-is-fatal policy, spec Open Question 3) for the
// coloring shape, and on the Chaitin-style remove/color idiom of
// hhramberg-go-vslc's regalloc.go for the Go rendering of the
// algorithm (plain slices and maps in place of a pointer-linked
// node graph).
package ir

import (
	"math"
	"sort"

	"tinyssa/internal/ast"
	"tinyssa/internal/compilation"
	"tinyssa/internal/errkit"
)

// Color is a physical register color. White means unassigned; Black
// means "forced any" (spec §4.6) — assignable over no constraint.
type Color int

const (
	White Color = -1
	Black Color = -2
)

// Allocation is the result of one allocator run: a stable ValueIdx ->
// Color mapping (spec §3 "stable after allocator completion").
type Allocation struct {
	K      int
	Colors map[ValueIdx]Color
}

func (a *Allocation) ColorOf(v ValueIdx) Color {
	if c, ok := a.Colors[v]; ok {
		return c
	}
	return White
}

// Allocate runs the full register-allocation pipeline for fn: build
// the interference graph, coalesce phi clusters, color clusters then
// remaining values, retry spill candidates by cost, and destroy phis
// with explicit MOVE instructions (spec §4.6 steps 1-4).
func Allocate(c *compilation.Compilation, prog *Program, fn *Function, k int) (*Allocation, *InterferenceGraph, *errkit.Diagnostic) {
	g := BuildInterference(prog, fn)
	clusters := Coalesce(prog, fn, g)

	alloc := &Allocation{K: k, Colors: map[ValueIdx]Color{}}

	clustered := map[ValueIdx]bool{}
	for _, cl := range clusters {
		avoid := ClusterNeighbors(g, cl)
		color := firstAvailable(avoid, alloc, k)
		for _, m := range cl.Members {
			alloc.Colors[m] = color
			clustered[m] = true
		}
	}

	var uncolored []ValueIdx
	for _, v := range g.Nodes() {
		if clustered[v] {
			continue
		}
		avoid := map[ValueIdx]bool{}
		for _, n := range g.Neighbors(v) {
			avoid[n] = true
		}
		color := firstAvailable(avoid, alloc, k)
		if color == White {
			uncolored = append(uncolored, v)
			continue
		}
		alloc.Colors[v] = color
	}

	if len(uncolored) > 0 {
		sort.Slice(uncolored, func(i, j int) bool {
			return spillCost(prog, g, uncolored[i]) > spillCost(prog, g, uncolored[j])
		})
		for _, v := range uncolored {
			avoid := map[ValueIdx]bool{}
			for _, n := range g.Neighbors(v) {
				avoid[n] = true
			}
			color := firstAvailable(avoid, alloc, k)
			if color == White {
				c.Logger.Errorf("register allocation failed: palette of %d colors exhausted for value #%d in %q", k, v, fn.Name)
				return alloc, g, errkit.New(errkit.Alloc, ast.Position{}, "register allocation failed for function %q: palette of %d colors exhausted", fn.Name, k)
			}
			alloc.Colors[v] = color
		}
	}

	destroyPhis(prog, fn, alloc)
	return alloc, g, nil
}

// firstAvailable returns the lowest-numbered color in [0,k) not used
// by any value in avoid and not already Black/forced, or White if the
// palette is exhausted (spec §4.6 steps 1-2).
func firstAvailable(avoid map[ValueIdx]bool, alloc *Allocation, k int) Color {
	used := map[Color]bool{}
	for v := range avoid {
		c := alloc.ColorOf(v)
		if c >= 0 {
			used[c] = true
		}
	}
	for c := Color(0); int(c) < k; c++ {
		if !used[c] {
			return c
		}
	}
	return White
}

// spillCost is cost = 10^loop_depth / degree (spec §4.6 step 3).
func spillCost(prog *Program, g *InterferenceGraph, v ValueIdx) float64 {
	degree := len(g.Neighbors(v))
	if degree == 0 {
		degree = 1
	}
	val := prog.Value(v)
	depth := 0
	if val != nil {
		depth = val.LoopDepth
	}
	return math.Pow(10, float64(depth)) / float64(degree)
}

// destroyPhis is the phi-destruction pass (spec §4.6 step 4): walk in
// reverse post-order; for every still-active phi, mark it inactive and
// emit colored MOVE instructions in each predecessor, spliced before a
// trailing BRA (spec §4.7 rationale for why predecessor placement,
// not a new critical-edge block, is sound here).
func destroyPhis(prog *Program, fn *Function, alloc *Allocation) {
	for _, b := range fn.ReversePostOrder() {
		bb := fn.Block(b)
		for _, idx := range bb.Instructions {
			phi := fn.Instruction(idx)
			if !phi.IsPhi() {
				break
			}
			if !phi.Active {
				continue
			}
			destroyOnePhi(prog, fn, alloc, phi)
		}
	}
}

func destroyOnePhi(prog *Program, fn *Function, alloc *Allocation, phi *Instruction) {
	r := phi.Result
	c := alloc.ColorOf(r)
	phi.Active = false

	for pred, operand := range phi.OpSource {
		ci := alloc.ColorOf(operand)
		val := prog.Value(operand)

		// color(ai) == c and ai not a constant: already in r's color,
		// no move instruction required (spec §4.6 step 4 only names a
		// MOVE for the mismatch case and the constant-rematerialization
		// case).
		if ci == c && !val.IsConstant() {
			continue
		}

		fresh := prog.newValue(VAny)
		fresh.DefBlock = pred
		mv := fn.newInstruction(OpMove, pred, []ValueIdx{operand}, fresh.Idx)
		val.AddUse(mv.Idx)
		alloc.Colors[fresh.Idx] = c

		insertBeforeTerminator(fn, pred, mv)
	}
}

// insertBeforeTerminator splices inst before a trailing BRA in block,
// or appends it otherwise (spec §4.6 step 4).
func insertBeforeTerminator(fn *Function, block BasicBlockIdx, inst *Instruction) {
	bb := fn.Block(block)
	if n := len(bb.Instructions); n > 0 {
		last := fn.Instruction(bb.Instructions[n-1])
		if last.Opcode == OpBra {
			bb.Instructions = append(bb.Instructions, 0)
			copy(bb.Instructions[n:], bb.Instructions[n-1:])
			bb.Instructions[n-1] = inst.Idx
			return
		}
	}
	fn.appendInstruction(block, inst)
}
