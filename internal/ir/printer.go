// IR dump printer (spec §6 "IR dump file"), grounded on the teacher's
// old internal/ir/printer.go dump-section style (per-function listing
// of block labels followed by instruction lines), adapted to the new
// tagged-variant model and operand-rendering rules.
package ir

import (
	"fmt"
	"strings"
)

// Dump renders prog's functions in the format spec §6 names:
// per-function BB_k: sections, (value_idx) OPCODE operand lines, and
// successor edges after each block.
func Dump(prog *Program) string {
	var sb strings.Builder
	for _, fn := range prog.FunctionsInOrder() {
		dumpFunction(&sb, prog, fn)
	}
	return sb.String()
}

func dumpFunction(sb *strings.Builder, prog *Program, fn *Function) {
	fmt.Fprintf(sb, "function %s:\n", fn.Name)
	for _, b := range fn.ReversePostOrder() {
		dumpBlock(sb, prog, fn, b)
	}
	sb.WriteString("\n")
}

func dumpBlock(sb *strings.Builder, prog *Program, fn *Function, b BasicBlockIdx) {
	bb := fn.Block(b)
	fmt.Fprintf(sb, "BB_%d:\n", b)
	for _, idx := range bb.Instructions {
		inst := fn.Instruction(idx)
		if !inst.Active {
			continue
		}
		dumpInstruction(sb, prog, inst)
	}
	succs := make([]string, 0, len(bb.Succs))
	for _, s := range bb.Succs {
		succs = append(succs, fmt.Sprintf("BB_%d", s))
	}
	fmt.Fprintf(sb, "  -> %s\n", strings.Join(succs, ", "))
}

func dumpInstruction(sb *strings.Builder, prog *Program, inst *Instruction) {
	result := ""
	if inst.Result != InvalidValue {
		result = fmt.Sprintf("(%d) ", inst.Result)
	} else {
		result = fmt.Sprintf("(%d) ", inst.Idx)
	}
	parts := []string{result + inst.Opcode.String()}
	if inst.Opcode == OpConst {
		parts = append(parts, renderOperand(prog, inst.Result))
	}
	for _, op := range inst.Operands {
		parts = append(parts, renderOperand(prog, op))
	}
	sb.WriteString(strings.Join(parts, " "))
	sb.WriteString("\n")
}

// renderOperand implements spec §6's operand rendering rules: #n for
// constants, &name for functions and locations, BB_k for branch
// targets, bare names for named values, (idx) fallback.
func renderOperand(prog *Program, v ValueIdx) string {
	val := prog.Value(v)
	if val == nil {
		return fmt.Sprintf("(%d)", v)
	}
	switch val.Kind {
	case VConst:
		return fmt.Sprintf("#%d", val.ConstInt)
	case VFunc, VLocation:
		return "&" + val.Name
	case VBranch:
		return fmt.Sprintf("BB_%d", val.Target)
	case VVar:
		return val.Name
	default:
		return fmt.Sprintf("(%d)", v)
	}
}
