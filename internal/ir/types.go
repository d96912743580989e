// Package ir implements the middle-end data model and passes: the IR
// constructor and on-the-fly SSA construction (spec §4.1-4.2), CFG
// traversal (§4.3), the interference-graph builder and coalescing
// (§4.4-4.5), the register allocator and phi-destruction (§4.6-4.7),
// optional analysis passes, and the IR dump printer (§6).
//
// The Value and Instruction tagged variants use a small fixed payload
// plus side tables (uses, operand-source) rather than per-kind
// interface implementers (spec §9 "Tagged variants"), unlike the
// teacher's own internal/ir/types.go, which models its EVM-contract
// instruction set as ~20 concrete structs behind an Instruction
// interface — that shape is exactly what spec §9 asks this design to
// avoid.
package ir

import "fmt"

// ValueIdx, InstructionIdx and BasicBlockIdx are dense integer handles
// (spec §3, §9 "Instruction/value identity"): never reused, never
// hashed by pointer. ValueIdx is allocated from the Program's global
// value pool and so is unique across the whole program; Instruction
// and BasicBlock indices are allocated from per-function counters.
type (
	ValueIdx       int
	InstructionIdx int
	BasicBlockIdx  int
)

// InvalidValue marks "no result" (e.g. a STORE or a procedure RET).
const InvalidValue ValueIdx = -1

// tombstoneUse marks a removed entry in a Value's Uses list (spec §9:
// "append-only with a tombstone policy for RemoveUse").
const tombstoneUse InstructionIdx = -1

// ValueKind is Value's closed tag set (spec §3).
type ValueKind int

const (
	VConst ValueKind = iota
	VVar
	VBranch
	VFunc
	VLocation
	VGlobalBase
	VLocalBase
	VAny
)

func (k ValueKind) String() string {
	switch k {
	case VConst:
		return "const"
	case VVar:
		return "var"
	case VBranch:
		return "branch"
	case VFunc:
		return "func"
	case VLocation:
		return "location"
	case VGlobalBase:
		return "globalbase"
	case VLocalBase:
		return "localbase"
	case VAny:
		return "any"
	default:
		return "unknown"
	}
}

// NeverInterferes reports whether values of this kind are excluded
// from the live set during interference construction (spec §4.4 step
// 2/3: Branch, GlobalBase, LocalBase and Func never interfere).
func (k ValueKind) NeverInterferes() bool {
	switch k {
	case VBranch, VGlobalBase, VLocalBase, VFunc:
		return true
	default:
		return false
	}
}

// Value is anything that can flow as an operand (spec §3).
type Value struct {
	Idx  ValueIdx
	Kind ValueKind

	ConstInt int64         // valid when Kind == VConst
	Name     string        // valid when Kind == VVar, VFunc, VLocation
	Target   BasicBlockIdx // valid when Kind == VBranch

	Uses      []InstructionIdx // append-only, tombstoned (never shuffled)
	LoopDepth int
	SpillCost float64

	// DefBlock is the block whose instruction list defines this value
	// (the phi's own block for a PHI result), used for loop-depth
	// tracking (spec §3) and for SealBlock's same-block use redirect
	// (spec §4.2).
	DefBlock BasicBlockIdx
}

func (v *Value) AddUse(i InstructionIdx) { v.Uses = append(v.Uses, i) }

// RemoveUse tombstones the first live occurrence of i, leaving the
// slice length unchanged (spec §9).
func (v *Value) RemoveUse(i InstructionIdx) {
	for idx, u := range v.Uses {
		if u == i {
			v.Uses[idx] = tombstoneUse
			return
		}
	}
}

// LiveUses returns the non-tombstoned user instructions.
func (v *Value) LiveUses() []InstructionIdx {
	out := make([]InstructionIdx, 0, len(v.Uses))
	for _, u := range v.Uses {
		if u != tombstoneUse {
			out = append(out, u)
		}
	}
	return out
}

func (v *Value) IsConstant() bool { return v.Kind == VConst }

// Opcode is Instruction's closed tag set (spec §3).
type Opcode int

const (
	OpConst Opcode = iota
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpLoad
	OpStore
	OpLoadG
	OpStoreG
	OpAdda
	OpBra
	OpBeq
	OpBne
	OpBlt
	OpBle
	OpBgt
	OpBge
	OpRet
	OpCall
	OpRead
	OpWritex
	OpWritenl
	OpPhi
	OpMove
	OpArg
)

func (o Opcode) String() string {
	names := [...]string{
		"const", "ADD", "SUB", "MUL", "DIV",
		"LOAD", "STORE", "LOADG", "STOREG", "ADDA",
		"BRA", "BEQ", "BNE", "BLT", "BLE", "BGT", "BGE",
		"RET", "CALL", "READ", "WRITEX", "WRITENL",
		"PHI", "MOVE", "ARG",
	}
	if int(o) < len(names) {
		return names[o]
	}
	return "UNKNOWN"
}

// IsConditionalBranch reports whether o is one of the six conditional
// branch opcodes encoding a relational test directly (spec §3
// "conditional branches on relational results").
func (o Opcode) IsConditionalBranch() bool {
	switch o {
	case OpBeq, OpBne, OpBlt, OpBle, OpBgt, OpBge:
		return true
	default:
		return false
	}
}

func (o Opcode) IsTerminator() bool {
	return o == OpBra || o.IsConditionalBranch() || o == OpRet
}

// Instruction is the three-address form of spec §3. A conditional
// branch's Operands are [left, right, trueTarget, falseTarget] (left
// and right are the compared values; trueTarget/falseTarget are
// VBranch-kind values); an unconditional OpBra's Operands are
// [target]. PHI carries the auxiliary operand-source map separately
// in OpSource.
type Instruction struct {
	Idx      InstructionIdx
	Opcode   Opcode
	Operands []ValueIdx
	Result   ValueIdx
	Block    BasicBlockIdx
	Active   bool

	// OpSource records, for a PHI, which predecessor supplied which
	// operand value (spec §3, §4.2 AddPhiOperands).
	OpSource map[BasicBlockIdx]ValueIdx
}

func (i *Instruction) IsPhi() bool { return i.Opcode == OpPhi }

// BlockKind classifies a BasicBlock (spec §3).
type BlockKind int

const (
	BlockNormal BlockKind = iota
	BlockEntry
	BlockLoopHead
	BlockJoin
	BlockExit
)

func (k BlockKind) String() string {
	switch k {
	case BlockEntry:
		return "entry"
	case BlockLoopHead:
		return "loophead"
	case BlockJoin:
		return "join"
	case BlockExit:
		return "exit"
	default:
		return "normal"
	}
}

// BasicBlock is an insertion-ordered list of instructions plus CFG
// edges (spec §3). The instruction list may begin with a contiguous
// prefix of PHI instructions; all non-phi instructions follow; at most
// one terminator ends the block.
type BasicBlock struct {
	Idx          BasicBlockIdx
	Instructions []InstructionIdx
	Preds        []BasicBlockIdx
	Succs        []BasicBlockIdx
	Sealed       bool
	Dead         bool
	Kind         BlockKind
}

func (b *BasicBlock) AddPred(p BasicBlockIdx) { b.Preds = append(b.Preds, p) }
func (b *BasicBlock) AddSucc(s BasicBlockIdx) { b.Succs = append(b.Succs, s) }

// PhiPrefixLen returns how many leading instructions of b are active
// PHIs (the invariant contiguous-phi-prefix of spec §3), given a
// lookup of instructions by index.
func (b *BasicBlock) PhiPrefixLen(get func(InstructionIdx) *Instruction) int {
	n := 0
	for _, idx := range b.Instructions {
		inst := get(idx)
		if inst == nil || !inst.Active || !inst.IsPhi() {
			break
		}
		n++
	}
	return n
}

// Function holds one function's CFG, instructions, and on-the-fly SSA
// construction bookkeeping (spec §3).
type Function struct {
	Name        string
	IsProcedure bool
	Entry       BasicBlockIdx
	Exit        BasicBlockIdx
	LocalBase   ValueIdx

	Instructions map[InstructionIdx]*Instruction
	Blocks       map[BasicBlockIdx]*BasicBlock

	// LocalDefs is local_defs: Name -> (BasicBlockIdx -> ValueIdx).
	LocalDefs map[string]map[BasicBlockIdx]ValueIdx
	// IncompletePhis is incomplete_phis: BasicBlockIdx -> (Name -> InstructionIdx).
	IncompletePhis map[BasicBlockIdx]map[string]InstructionIdx

	nextInst  InstructionIdx
	nextBlock BasicBlockIdx

	rpoCache []BasicBlockIdx
	poCache  []BasicBlockIdx
	rpoValid bool
}

func newFunction(name string, isProcedure bool) *Function {
	return &Function{
		Name:           name,
		IsProcedure:    isProcedure,
		Instructions:   map[InstructionIdx]*Instruction{},
		Blocks:         map[BasicBlockIdx]*BasicBlock{},
		LocalDefs:      map[string]map[BasicBlockIdx]ValueIdx{},
		IncompletePhis: map[BasicBlockIdx]map[string]InstructionIdx{},
	}
}

func (f *Function) Instruction(i InstructionIdx) *Instruction { return f.Instructions[i] }
func (f *Function) Block(b BasicBlockIdx) *BasicBlock         { return f.Blocks[b] }

// invalidateTraversal drops the cached RPO/PO; called whenever a block
// or an edge is added (spec §4.3: "cached until any block is added").
func (f *Function) invalidateTraversal() { f.rpoValid = false }

func (f *Function) createBlock(kind BlockKind) *BasicBlock {
	idx := f.nextBlock
	f.nextBlock++
	b := &BasicBlock{Idx: idx, Kind: kind}
	f.Blocks[idx] = b
	f.invalidateTraversal()
	return b
}

func (f *Function) addEdge(from, to BasicBlockIdx) {
	f.Blocks[from].AddSucc(to)
	f.Blocks[to].AddPred(from)
	f.invalidateTraversal()
}

func (f *Function) newInstruction(op Opcode, block BasicBlockIdx, operands []ValueIdx, result ValueIdx) *Instruction {
	idx := f.nextInst
	f.nextInst++
	inst := &Instruction{Idx: idx, Opcode: op, Operands: operands, Result: result, Block: block, Active: true}
	f.Instructions[idx] = inst
	return inst
}

// appendInstruction adds inst to the end of block's instruction list.
func (f *Function) appendInstruction(block BasicBlockIdx, inst *Instruction) {
	f.Blocks[block].Instructions = append(f.Blocks[block].Instructions, inst.Idx)
}

// prependPhi inserts inst at the head of block's instruction list,
// after any existing phi prefix (spec §4.2: "emit a fresh PHI
// instruction at the head of block").
func (f *Function) prependPhi(block BasicBlockIdx, inst *Instruction) {
	b := f.Blocks[block]
	n := b.PhiPrefixLen(f.Instruction)
	b.Instructions = append(b.Instructions, 0)
	copy(b.Instructions[n+1:], b.Instructions[n:])
	b.Instructions[n] = inst.Idx
}

// Program is the whole compilation unit (spec §3): functions keyed by
// name and the program-wide value pool. Global symbols and their
// offsets are kept in symtab.Table, not here.
type Program struct {
	Functions map[string]*Function
	order     []string // declaration order, for printing (spec §6)

	values       map[ValueIdx]*Value
	nextValueIdx ValueIdx
}

func NewProgram() *Program {
	return &Program{
		Functions: map[string]*Function{},
		values:    map[ValueIdx]*Value{},
	}
}

func (p *Program) Value(idx ValueIdx) *Value { return p.values[idx] }

func (p *Program) newValue(kind ValueKind) *Value {
	idx := p.nextValueIdx
	p.nextValueIdx++
	v := &Value{Idx: idx, Kind: kind}
	p.values[idx] = v
	return v
}

func (p *Program) addFunction(f *Function) {
	p.Functions[f.Name] = f
	p.order = append(p.order, f.Name)
}

// FunctionsInOrder returns functions in declaration order (main last,
// as built by Builder.Build).
func (p *Program) FunctionsInOrder() []*Function {
	out := make([]*Function, 0, len(p.order))
	for _, name := range p.order {
		out = append(out, p.Functions[name])
	}
	return out
}

func (p *Program) String() string { return fmt.Sprintf("Program{%d functions}", len(p.Functions)) }
