// On-the-fly SSA construction (spec §4.2), following Braun et al.,
// "Simple and Efficient Construction of SSA Form" — grounded on
// original_source/src/IR/SSA.cpp's WriteVariable/ReadVariable/
// ReadVariableRecursive/AddPhiOperands/TryRemoveTrivialPhi/SealBB.
package ir

// writeVariable is WriteVariable(name, block, value): O(1).
func (b *Builder) writeVariable(name string, block BasicBlockIdx, value ValueIdx) {
	if b.fn.LocalDefs[name] == nil {
		b.fn.LocalDefs[name] = map[BasicBlockIdx]ValueIdx{}
	}
	b.fn.LocalDefs[name][block] = value
}

// readVariable is ReadVariable(name, block).
func (b *Builder) readVariable(name string, block BasicBlockIdx) ValueIdx {
	if defs, ok := b.fn.LocalDefs[name]; ok {
		if v, ok2 := defs[block]; ok2 {
			return v
		}
	}
	return b.readVariableRecursive(name, block)
}

// readVariableRecursive is ReadVariableRecursive(name, block), the
// three-case algorithm of spec §4.2.
func (b *Builder) readVariableRecursive(name string, block BasicBlockIdx) ValueIdx {
	bb := b.fn.Block(block)

	if !bb.Sealed {
		// Case 1: block not yet sealed.
		phi := b.newPhi(block)
		if b.fn.IncompletePhis[block] == nil {
			b.fn.IncompletePhis[block] = map[string]InstructionIdx{}
		}
		b.fn.IncompletePhis[block][name] = phi.Idx
		b.writeVariable(name, block, phi.Result)
		return phi.Result
	}

	if len(bb.Preds) == 1 {
		// Case 2: exactly one sealed predecessor.
		return b.readVariable(name, bb.Preds[0])
	}

	// Case 3: sealed with zero or several predecessors. WriteVariable
	// before AddPhiOperands is mandatory here to terminate on
	// back-edges (spec §4.2 "Correctness invariants").
	phi := b.newPhi(block)
	b.writeVariable(name, block, phi.Result)
	return b.addPhiOperands(name, phi.Idx)
}

// newPhi emits a fresh PHI at block's head and allocates its result
// value (spec §3 "contiguous prefix of PHI instructions").
func (b *Builder) newPhi(block BasicBlockIdx) *Instruction {
	result := b.prog.newValue(VAny)
	result.DefBlock = block
	phi := b.fn.newInstruction(OpPhi, block, nil, result.Idx)
	phi.OpSource = map[BasicBlockIdx]ValueIdx{}
	b.fn.prependPhi(block, phi)
	return phi
}

// addPhiOperands is AddPhiOperands(name, phi): for each predecessor of
// phi's block, append ReadVariable(name, pred) as an operand,
// recording the (predecessor, value) pair in op_source.
func (b *Builder) addPhiOperands(name string, phiIdx InstructionIdx) ValueIdx {
	phi := b.fn.Instruction(phiIdx)
	block := b.fn.Block(phi.Block)
	for _, pred := range block.Preds {
		v := b.readVariable(name, pred)
		phi.Operands = append(phi.Operands, v)
		phi.OpSource[pred] = v
		b.prog.Value(v).AddUse(phiIdx)
	}
	return b.tryRemoveTrivialPhi(phiIdx)
}

// tryRemoveTrivialPhi is TryRemoveTrivialPhi(phi): ignoring
// self-references and duplicates, if all remaining operands equal a
// single value s the phi is trivial and is replaced by s (or, if no
// non-self operand exists at all, by a fresh undefined value);
// otherwise the phi survives.
func (b *Builder) tryRemoveTrivialPhi(phiIdx InstructionIdx) ValueIdx {
	phi := b.fn.Instruction(phiIdx)

	same := InvalidValue
	trivial := true
	for _, op := range phi.Operands {
		if op == phi.Result || op == same {
			continue
		}
		if same != InvalidValue {
			trivial = false
			break
		}
		same = op
	}
	if !trivial {
		return phi.Result
	}
	if same == InvalidValue {
		undef := b.prog.newValue(VAny)
		undef.DefBlock = phi.Block
		same = undef.Idx
	}

	phi.Active = false
	users := append([]InstructionIdx(nil), b.prog.Value(phi.Result).LiveUses()...)
	for _, u := range users {
		if u == phiIdx {
			continue
		}
		b.replaceUse(u, phi.Result, same)
	}
	for _, u := range users {
		if u == phiIdx {
			continue
		}
		other := b.fn.Instruction(u)
		if other != nil && other.IsPhi() && other.Active {
			b.tryRemoveTrivialPhi(other.Idx)
		}
	}
	return same
}

// replaceUse rewrites every occurrence of oldVal in user's operand
// list (and, if user is a phi, its op_source map) to newVal, and
// updates both values' use lists to match.
func (b *Builder) replaceUse(user InstructionIdx, oldVal, newVal ValueIdx) {
	inst := b.fn.Instruction(user)
	count := 0
	for i, op := range inst.Operands {
		if op == oldVal {
			inst.Operands[i] = newVal
			count++
		}
	}
	if inst.IsPhi() {
		for block, v := range inst.OpSource {
			if v == oldVal {
				inst.OpSource[block] = newVal
			}
		}
	}
	for i := 0; i < count; i++ {
		b.prog.Value(oldVal).RemoveUse(user)
		b.prog.Value(newVal).AddUse(user)
	}
}

// sealBlock is SealBlock(block): resolves every incomplete phi
// recorded for block, then redirects any in-block use of a still-active
// phi's same-block operand that was lowered after the phi to the
// phi's own result (spec §4.2), and marks block sealed.
func (b *Builder) sealBlock(block BasicBlockIdx) {
	names := b.fn.IncompletePhis[block]
	for name, phiIdx := range names {
		b.addPhiOperands(name, phiIdx)
	}
	delete(b.fn.IncompletePhis, block)

	bb := b.fn.Block(block)
	for pos, idx := range bb.Instructions {
		phi := b.fn.Instruction(idx)
		if !phi.Active || !phi.IsPhi() || phi.Block != block {
			continue
		}
		for _, operand := range phi.Operands {
			v := b.prog.Value(operand)
			if v.DefBlock != block || operand == phi.Result {
				continue
			}
			for _, userIdx := range v.LiveUses() {
				if userIdx == idx {
					continue
				}
				userPos := indexInBlock(bb, userIdx)
				if userPos > pos {
					b.replaceUse(userIdx, operand, phi.Result)
				}
			}
		}
	}

	bb.Sealed = true
}

func indexInBlock(bb *BasicBlock, idx InstructionIdx) int {
	for i, v := range bb.Instructions {
		if v == idx {
			return i
		}
	}
	return -1
}
