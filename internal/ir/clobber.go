// Interprocedural global clobbering (SPEC_FULL.md §3, grounded on
// original_source/src/Analysis/GlobalClobbering.cpp): a conservative,
// whole-program pass computing which global arrays each function may
// write, directly or by calling another function that does. Only
// arrays are tracked: a global scalar goes through plain WriteVariable
// with no memory trace at all (spec §4.1, §8 scenario 1), so there is
// no IR-level instruction a clobbering pass could observe for one. The
// visualizer annotates call sites with this set.
package ir

import "tinyssa/internal/symtab"

// ClobberSets maps a function name to the set of global array names it
// writes directly (via a STORE whose address chain roots at
// GlobalBase) or transitively through any function it calls.
type ClobberSets map[string]map[string]bool

// BuildClobberSets computes ClobberSets for every function in prog,
// following call edges to a fixpoint (a function's clobber set only
// grows as its callees' sets are folded in, so this always
// terminates: the join-semilattice is finite and monotone). symbols
// resolves a STORE's global offset constant back to the array's
// declared name.
func BuildClobberSets(prog *Program, symbols *symtab.Table) ClobberSets {
	direct := map[string]map[string]bool{}
	calls := map[string]map[string]bool{}

	for name, fn := range prog.Functions {
		direct[name] = directClobbers(prog, fn, symbols)
		calls[name] = calleesOf(prog, fn)
	}

	sets := ClobberSets{}
	for name := range prog.Functions {
		sets[name] = map[string]bool{}
	}

	changed := true
	for changed {
		changed = false
		for name := range prog.Functions {
			for g := range direct[name] {
				if !sets[name][g] {
					sets[name][g] = true
					changed = true
				}
			}
			for callee := range calls[name] {
				for g := range sets[callee] {
					if !sets[name][g] {
						sets[name][g] = true
						changed = true
					}
				}
			}
		}
	}
	return sets
}

// directClobbers scans fn's own instructions for a STORE whose address
// chain roots at GlobalBase rather than fn's own LocalBase, resolving
// the base offset back to a declared global array's name.
func directClobbers(prog *Program, fn *Function, symbols *symtab.Table) map[string]bool {
	out := map[string]bool{}
	for _, inst := range fn.Instructions {
		if inst.Opcode != OpStore {
			continue
		}
		if name, ok := globalArrayName(prog, fn, symbols, inst.Operands[1]); ok {
			out[name] = true
		}
	}
	return out
}

// globalArrayName walks an ADDA chain back to its base value; if that
// base is the program's GlobalBase, the chain's innermost ADDA's
// offset operand is the constant symbols records for one declared
// global array, which this resolves by value.
func globalArrayName(prog *Program, fn *Function, symbols *symtab.Table, addr ValueIdx) (string, bool) {
	for {
		v := prog.Value(addr)
		if v == nil {
			return "", false
		}
		if v.Kind == VGlobalBase {
			return "", false
		}
		if v.Kind == VLocalBase || addr == fn.LocalBase {
			return "", false
		}
		inst := definingInstruction(fn, addr)
		if inst == nil || inst.Opcode != OpAdda {
			return "", false
		}
		base := prog.Value(inst.Operands[0])
		if base != nil && base.Kind == VGlobalBase {
			offset := prog.Value(inst.Operands[1])
			if offset == nil || offset.Kind != VConst {
				return "", false
			}
			for _, sym := range symbols.Globals {
				if sym.IsArray() && sym.Offset == offset.ConstInt {
					return sym.Name, true
				}
			}
			return "", false
		}
		addr = inst.Operands[0]
	}
}

func definingInstruction(fn *Function, v ValueIdx) *Instruction {
	for _, inst := range fn.Instructions {
		if inst.Result == v {
			return inst
		}
	}
	return nil
}

// calleesOf collects the distinct function names fn calls directly.
func calleesOf(prog *Program, fn *Function) map[string]bool {
	out := map[string]bool{}
	for _, inst := range fn.Instructions {
		if inst.Opcode != OpCall {
			continue
		}
		callee := prog.Value(inst.Operands[0])
		if callee.Kind == VFunc {
			if _, ok := prog.Functions[callee.Name]; ok {
				out[callee.Name] = true
			}
		}
	}
	return out
}
