// Package codegen is the DLX-style pseudo-assembly stub of
// SPEC_FULL.md §3, grounded on original_source/src/CodeGen/
// DLXCodeGen.h. Final machine-code emission is explicitly out of scope
// (spec §1), so Emit produces a plain inspection listing — one line
// per surviving instruction, operands rendered against the colored
// register allocation rather than IR value indices — and is not
// reachable from the default CLI path.
package codegen

import (
	"fmt"
	"strings"

	"tinyssa/internal/ir"
)

// Emit renders prog's functions as pseudo-assembly, one physical
// register name per colored value (`Rn`) and one spill-slot name per
// value the allocator could not color (`Sn`, numbered by ValueIdx
// since no real stack-slot assignment exists in this stub).
func Emit(prog *ir.Program, allocs map[string]*ir.Allocation) string {
	var sb strings.Builder
	for _, fn := range prog.FunctionsInOrder() {
		alloc := allocs[fn.Name]
		fmt.Fprintf(&sb, "; function %s\n", fn.Name)
		for _, b := range fn.ReversePostOrder() {
			bb := fn.Block(b)
			fmt.Fprintf(&sb, "BB_%d:\n", b)
			for _, idx := range bb.Instructions {
				inst := fn.Instruction(idx)
				if !inst.Active {
					continue
				}
				sb.WriteString("  ")
				sb.WriteString(line(prog, alloc, inst))
				sb.WriteString("\n")
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func line(prog *ir.Program, alloc *ir.Allocation, inst *ir.Instruction) string {
	parts := []string{mnemonic(inst.Opcode)}
	if inst.Result != ir.InvalidValue {
		parts[0] = fmt.Sprintf("%s %s,", parts[0], reg(alloc, inst.Result))
	}
	for _, op := range inst.Operands {
		parts = append(parts, operand(prog, alloc, op))
	}
	return strings.Join(parts, " ")
}

func mnemonic(op ir.Opcode) string { return op.String() }

func operand(prog *ir.Program, alloc *ir.Allocation, v ir.ValueIdx) string {
	val := prog.Value(v)
	if val == nil {
		return fmt.Sprintf("#%d", v)
	}
	switch val.Kind {
	case ir.VConst:
		return fmt.Sprintf("#%d", val.ConstInt)
	case ir.VFunc, ir.VLocation:
		return "&" + val.Name
	case ir.VBranch:
		return fmt.Sprintf("BB_%d", val.Target)
	default:
		return reg(alloc, v)
	}
}

// reg renders v against alloc's coloring: Rn for a colored physical
// register, Sn (by ValueIdx) for a value the allocator never colored.
func reg(alloc *ir.Allocation, v ir.ValueIdx) string {
	if alloc == nil {
		return fmt.Sprintf("S%d", v)
	}
	c := alloc.ColorOf(v)
	if c < 0 {
		return fmt.Sprintf("S%d", v)
	}
	return fmt.Sprintf("R%d", c)
}
