// Optional analysis passes (SPEC_FULL.md §3, grounded on the teacher's
// internal/ir/optimizations.go pipeline shape and Papyrus's
// src/Analysis/{DCE,CSE,ConstantFolding,LoadStoreRemover}): constant
// folding, dead-code elimination, common-subexpression elimination and
// load/store elimination, run over the already-constructed SSA IR in
// an explicit, fixed order. None of these are prescribed by spec §4 —
// they are an original addition exercising the same Value/Instruction
// model the constructor builds, not a transliteration of any one
// source file.
//
// None of the passes run unless requested; Allocate (regalloc.go) and
// the dump printer work identically whether or not Optimize has been
// called first.
package ir

// Optimize runs ConstFold, CSE, LoadStoreElim and DCE, in that order,
// over every function of prog, repeating the sequence until a full
// pass makes no further change (each pass can expose opportunities for
// another one: folding constants can make two arithmetic instructions
// textually identical for CSE, eliminating a load can make its address
// computation dead).
func Optimize(prog *Program) {
	for _, fn := range prog.Functions {
		for {
			changed := false
			changed = ConstFold(prog, fn) || changed
			changed = CSE(prog, fn) || changed
			changed = LoadStoreElim(prog, fn) || changed
			changed = DCE(prog, fn) || changed
			if !changed {
				break
			}
		}
	}
}

var foldable = map[Opcode]func(a, b int64) int64{
	OpAdd: func(a, b int64) int64 { return a + b },
	OpSub: func(a, b int64) int64 { return a - b },
	OpMul: func(a, b int64) int64 { return a * b },
	OpDiv: func(a, b int64) int64 {
		if b == 0 {
			return 0
		}
		return a / b
	},
}

// ConstFold replaces an arithmetic instruction whose two operands are
// both constants with a single OpConst producing the folded value,
// rewiring every use of the old result to the new constant.
func ConstFold(prog *Program, fn *Function) bool {
	changed := false
	for _, bb := range fn.Blocks {
		for _, idx := range bb.Instructions {
			inst := fn.Instruction(idx)
			if !inst.Active || inst.Result == InvalidValue {
				continue
			}
			fold, ok := foldable[inst.Opcode]
			if !ok || len(inst.Operands) != 2 {
				continue
			}
			a, okA := prog.constOf(inst.Operands[0])
			b, okB := prog.constOf(inst.Operands[1])
			if !okA || !okB {
				continue
			}
			folded := fold(a, b)
			cv := prog.newValue(VConst)
			cv.ConstInt = folded
			cv.DefBlock = bb.Idx
			constInst := fn.newInstruction(OpConst, bb.Idx, nil, cv.Idx)
			replaceInstruction(fn, bb, idx, constInst)
			rewireResult(prog, fn, inst.Result, cv.Idx)
			inst.Active = false
			changed = true
		}
	}
	return changed
}

func (p *Program) constOf(v ValueIdx) (int64, bool) {
	val := p.Value(v)
	if val == nil || val.Kind != VConst {
		return 0, false
	}
	return val.ConstInt, true
}

// replaceInstruction inserts repl into bb immediately before old's
// position and leaves old in place (deactivated separately by the
// caller) so instruction-list indices used elsewhere stay valid.
func replaceInstruction(fn *Function, bb *BasicBlock, oldIdx InstructionIdx, repl *Instruction) {
	for i, idx := range bb.Instructions {
		if idx == oldIdx {
			bb.Instructions = append(bb.Instructions, 0)
			copy(bb.Instructions[i+1:], bb.Instructions[i:])
			bb.Instructions[i] = repl.Idx
			return
		}
	}
}

// rewireResult redirects every live user of oldVal to newVal across
// fn, including phi OpSource entries, and moves oldVal's use list onto
// newVal.
func rewireResult(prog *Program, fn *Function, oldVal, newVal ValueIdx) {
	if oldVal == InvalidValue || oldVal == newVal {
		return
	}
	old := prog.Value(oldVal)
	for _, userIdx := range old.LiveUses() {
		user := fn.Instruction(userIdx)
		if user == nil {
			continue
		}
		for i, op := range user.Operands {
			if op == oldVal {
				user.Operands[i] = newVal
				prog.Value(newVal).AddUse(userIdx)
			}
		}
		if user.IsPhi() {
			for block, v := range user.OpSource {
				if v == oldVal {
					user.OpSource[block] = newVal
				}
			}
		}
	}
	old.Uses = nil
}

// CSE (common-subexpression elimination) replaces a pure instruction
// with an earlier, textually identical one in the same block, which
// therefore dominates it; identical instructions in different blocks
// are left alone (spec §4.1's arithmetic and address opcodes —
// ADD/SUB/MUL/DIV/ADDA — are pure functions of their operands; LOAD is
// deliberately excluded, since two loads of the same address can
// legitimately differ across an intervening STORE or CALL this pass
// does not attempt to disprove).
func CSE(prog *Program, fn *Function) bool {
	changed := false
	type key struct {
		op   Opcode
		a, b ValueIdx
	}
	for _, block := range fn.ReversePostOrder() {
		seen := map[key]ValueIdx{}
		bb := fn.Block(block)
		for _, idx := range bb.Instructions {
			inst := fn.Instruction(idx)
			if !inst.Active || !isPure(inst.Opcode) || inst.Result == InvalidValue {
				continue
			}
			k := key{op: inst.Opcode}
			switch len(inst.Operands) {
			case 1:
				k.a = inst.Operands[0]
			case 2:
				k.a, k.b = inst.Operands[0], inst.Operands[1]
			default:
				continue
			}
			if prior, ok := seen[k]; ok {
				rewireResult(prog, fn, inst.Result, prior)
				inst.Active = false
				changed = true
				continue
			}
			seen[k] = inst.Result
		}
	}
	return changed
}

func isPure(op Opcode) bool {
	switch op {
	case OpAdd, OpSub, OpMul, OpDiv, OpAdda:
		return true
	default:
		return false
	}
}

// LoadStoreElim drops a LOAD/LOADG whose address/location was just
// written by the immediately preceding STORE/STOREG to the same
// address in the same block, reusing the stored value directly
// instead of reading it back from memory. The constructor never emits
// LOADG/STOREG for this language (spec §4.1 routes every scalar,
// global or local, through WriteVariable/ReadVariable — see
// clobber.go's doc comment), so those two cases are presently inert;
// they stay in the switch so this pass still covers the full opcode
// set spec §3 defines.
func LoadStoreElim(prog *Program, fn *Function) bool {
	changed := false
	for _, bb := range fn.Blocks {
		var lastStoreAddr, lastStoreVal ValueIdx = InvalidValue, InvalidValue
		var lastStoreGLoc, lastStoreGVal ValueIdx = InvalidValue, InvalidValue
		for _, idx := range bb.Instructions {
			inst := fn.Instruction(idx)
			if !inst.Active {
				continue
			}
			switch inst.Opcode {
			case OpStore:
				lastStoreVal, lastStoreAddr = inst.Operands[0], inst.Operands[1]
			case OpStoreG:
				lastStoreGVal, lastStoreGLoc = inst.Operands[0], inst.Operands[1]
			case OpLoad:
				if inst.Operands[0] == lastStoreAddr && lastStoreAddr != InvalidValue {
					rewireResult(prog, fn, inst.Result, lastStoreVal)
					inst.Active = false
					changed = true
				}
			case OpLoadG:
				if inst.Operands[0] == lastStoreGLoc && lastStoreGLoc != InvalidValue {
					rewireResult(prog, fn, inst.Result, lastStoreGVal)
					inst.Active = false
					changed = true
				}
			case OpCall:
				lastStoreAddr, lastStoreGLoc = InvalidValue, InvalidValue
			}
		}
	}
	return changed
}

// DCE removes (deactivates) every instruction whose result has no
// live uses and whose opcode has no observable effect beyond
// producing that result.
func DCE(prog *Program, fn *Function) bool {
	changed := false
	for _, bb := range fn.Blocks {
		for _, idx := range bb.Instructions {
			inst := fn.Instruction(idx)
			if !inst.Active || hasSideEffect(inst.Opcode) {
				continue
			}
			if inst.Result == InvalidValue {
				continue
			}
			if len(prog.Value(inst.Result).LiveUses()) > 0 {
				continue
			}
			inst.Active = false
			changed = true
		}
	}
	return changed
}

func hasSideEffect(op Opcode) bool {
	switch op {
	case OpStore, OpStoreG, OpCall, OpRead, OpWritex, OpWritenl, OpRet,
		OpBra, OpBeq, OpBne, OpBlt, OpBle, OpBgt, OpBge, OpArg, OpPhi:
		return true
	default:
		return false
	}
}
