// IR construction: walking internal/ast's Computation tree to build,
// per function, a CFG driven by the on-the-fly SSA algorithm of
// Braun et al. (spec §4.1-4.2), grounded on
// original_source/src/IR/IRConstructor.cpp (the AST walk structure)
// and original_source/src/IR/SSA.cpp (ReadVariable/WriteVariable/
// ReadVariableRecursive/AddPhiOperands/TryRemoveTrivialPhi/SealBB).
package ir

import (
	"tinyssa/internal/ast"
	"tinyssa/internal/compilation"
	"tinyssa/internal/errkit"
	"tinyssa/internal/symtab"
	"tinyssa/internal/token"
)

// Builder lowers one Computation into a Program. It is created fresh
// per compilation; it carries no package-level state (spec §9 "no
// global mutable state" — everything lives on Builder or the
// Compilation handle it is given).
type Builder struct {
	comp    *compilation.Compilation
	symbols *symtab.Table
	prog    *Program

	fn       *Function
	fnInfo   *symtab.FuncInfo
	cur      BasicBlockIdx
	globalBV ValueIdx // the single program-wide GlobalBase value

	constMemo map[int64]ValueIdx // per-function constant memoization

	diags []*errkit.Diagnostic
}

// Build lowers comp into a Program, driven by the symbol table
// already computed by symtab.Build (spec §4.1 "Entry: visit globals
// ...; visit each function declaration; finally process main's
// body.").
func Build(c *compilation.Compilation, comp *ast.Computation, symbols *symtab.Table) (*Program, []*errkit.Diagnostic) {
	b := &Builder{
		comp:    c,
		symbols: symbols,
		prog:    NewProgram(),
	}
	b.globalBV = b.prog.newValue(VGlobalBase).Idx

	for _, fn := range comp.Funcs {
		b.buildFunction(symbols.Functions[fn.Name], fn.Name, fn.IsProcedure, fn.Params, fn.Body, fn.Pos)
	}
	b.buildFunction(nil, "main", true, nil, comp.Body, comp.Pos)

	return b.prog, b.diags
}

func (b *Builder) errorf(pos ast.Position, format string, args ...any) {
	b.diags = append(b.diags, errkit.New(errkit.IR, pos, format, args...))
}

// semanticErrorf raises spec §7's SemanticError: a source-level
// condition (undeclared identifier, arity mismatch, dimension
// mismatch) that the AST walk itself detects, as distinct from
// errorf's internal-invariant-violation IRError.
func (b *Builder) semanticErrorf(pos ast.Position, format string, args ...any) {
	b.diags = append(b.diags, errkit.New(errkit.Semantic, pos, format, args...))
}

// buildFunction lowers one function body (fnInfo nil selects the
// synthetic "main" function built from the computation's top-level
// statement sequence, spec §4.1).
func (b *Builder) buildFunction(fnInfo *symtab.FuncInfo, name string, isProcedure bool, params []string, body ast.StatSeq, pos ast.Position) {
	fn := newFunction(name, isProcedure)
	b.fn = fn
	b.fnInfo = fnInfo
	b.constMemo = map[int64]ValueIdx{}

	lb := b.prog.newValue(VLocalBase)
	fn.LocalBase = lb.Idx

	entry := fn.createBlock(BlockEntry)
	fn.Entry = entry.Idx
	entry.Sealed = true
	b.cur = entry.Idx

	b.comp.Logger.Debugf("building function %q (procedure=%v)", name, isProcedure)

	for _, p := range params {
		param := b.prog.newValue(VAny)
		param.DefBlock = entry.Idx
		inst := fn.newInstruction(OpArg, entry.Idx, nil, param.Idx)
		fn.appendInstruction(entry.Idx, inst)
		b.writeVariable(p, entry.Idx, param.Idx)
	}

	b.lowerStatSeq(body)

	exit := fn.createBlock(BlockExit)
	fn.Exit = exit.Idx
	fn.addEdge(b.cur, exit.Idx)
	b.emitTerminatorIfMissing(b.cur, exit.Idx)
	exit.Sealed = true

	b.prog.addFunction(fn)
}

// emitTerminatorIfMissing appends an implicit RET to the function's
// exit block when the body's last block fell off the end without an
// explicit return (legal per spec §6's EBNF: returnStmt is optional at
// the tail of a statSequence). The RET goes into the exit block, so the
// body's own blocks hold only the instructions lowered from source.
func (b *Builder) emitTerminatorIfMissing(block, exit BasicBlockIdx) {
	bb := b.fn.Block(block)
	if len(bb.Instructions) > 0 {
		last := b.fn.Instruction(bb.Instructions[len(bb.Instructions)-1])
		if last.Opcode.IsTerminator() {
			return
		}
	}
	inst := b.fn.newInstruction(OpRet, exit, nil, InvalidValue)
	b.fn.appendInstruction(exit, inst)
}

func (b *Builder) lowerStatSeq(seq ast.StatSeq) {
	for _, st := range seq {
		b.lowerStmt(st)
	}
}

func (b *Builder) lowerStmt(st ast.Stmt) {
	switch s := st.(type) {
	case *ast.AssignStmt:
		b.lowerAssign(s)
	case *ast.CallStmt:
		b.lowerCall(s.Name, s.Args, s.Pos)
	case *ast.IfStmt:
		b.lowerIf(s)
	case *ast.WhileStmt:
		b.lowerWhile(s)
	case *ast.ReturnStmt:
		b.lowerReturn(s)
	default:
		b.errorf(ast.Position{}, "unhandled statement %T", st)
	}
}

// lowerAssign implements spec §4.1's assignment lowering exactly: a
// scalar target goes through WriteVariable — global or local alike,
// spec §8 scenario 1 traces a `main var a;` global through plain
// WriteVariable with no LOADG/STOREG at all — and an array target
// lowers its address and emits an explicit STORE, since SSA variable
// versioning does not apply to aliasable memory.
func (b *Builder) lowerAssign(s *ast.AssignStmt) {
	rhs := b.lowerExpr(s.Value)
	if !s.Target.IsArray() {
		if _, _, ok := b.lookupSymbol(s.Target.Name); !ok {
			b.semanticErrorf(s.Target.Pos, "undeclared identifier %q", s.Target.Name)
			return
		}
		b.writeVariable(s.Target.Name, b.cur, rhs)
		return
	}
	addr := b.lowerArrayAddress(s.Target)
	inst := b.fn.newInstruction(OpStore, b.cur, []ValueIdx{rhs, addr}, InvalidValue)
	b.addUses(inst)
	b.fn.appendInstruction(b.cur, inst)
}

func (b *Builder) lowerCall(name string, args []ast.Expr, pos ast.Position) ValueIdx {
	if fnInfo, ok := b.symbols.Functions[name]; ok && len(args) != len(fnInfo.Params) {
		b.semanticErrorf(pos, "call to %q passes %d argument(s), want %d", name, len(args), len(fnInfo.Params))
	}
	argVals := make([]ValueIdx, 0, len(args))
	for _, a := range args {
		argVals = append(argVals, b.lowerExpr(a))
	}
	for _, v := range argVals {
		arg := b.fn.newInstruction(OpArg, b.cur, []ValueIdx{v}, InvalidValue)
		b.addUses(arg)
		b.fn.appendInstruction(b.cur, arg)
	}
	switch name {
	case "InputNum":
		result := b.prog.newValue(VAny)
		result.DefBlock = b.cur
		inst := b.fn.newInstruction(OpRead, b.cur, nil, result.Idx)
		b.fn.appendInstruction(b.cur, inst)
		return result.Idx
	case "OutputNum":
		inst := b.fn.newInstruction(OpWritex, b.cur, argVals, InvalidValue)
		b.addUses(inst)
		b.fn.appendInstruction(b.cur, inst)
		return InvalidValue
	case "OutputNewLine":
		inst := b.fn.newInstruction(OpWritenl, b.cur, nil, InvalidValue)
		b.fn.appendInstruction(b.cur, inst)
		return InvalidValue
	}
	callee := b.prog.newValue(VFunc)
	callee.Name = name
	result := b.prog.newValue(VAny)
	result.DefBlock = b.cur
	inst := b.fn.newInstruction(OpCall, b.cur, []ValueIdx{callee.Idx}, result.Idx)
	b.fn.appendInstruction(b.cur, inst)
	b.prog.Value(callee.Idx).AddUse(inst.Idx)
	return result.Idx
}

// lowerIf implements spec §4.1's if/else lowering: a conditional
// branch to the then-block and an unconditional branch to the else
// path (or straight to the join when there is no else), a dedicated
// join block, and per-arm sealing once all predecessors are known.
func (b *Builder) lowerIf(s *ast.IfStmt) {
	cond := s.Cond.(*ast.BinaryExpr)
	left := b.lowerExpr(cond.Left)
	right := b.lowerExpr(cond.Right)

	thenBB := b.fn.createBlock(BlockNormal)
	joinBB := b.fn.createBlock(BlockJoin)
	var elseBB *BasicBlock
	if len(s.Else) > 0 {
		elseBB = b.fn.createBlock(BlockNormal)
	}

	trueTarget := b.prog.newValue(VBranch)
	trueTarget.Target = thenBB.Idx
	falseTarget := b.prog.newValue(VBranch)
	if elseBB != nil {
		falseTarget.Target = elseBB.Idx
	} else {
		falseTarget.Target = joinBB.Idx
	}

	branchOp := conditionalOpcode(cond.Op)
	br := b.fn.newInstruction(branchOp, b.cur, []ValueIdx{left, right, trueTarget.Idx, falseTarget.Idx}, InvalidValue)
	b.addUses(br)
	trueTarget.AddUse(br.Idx)
	falseTarget.AddUse(br.Idx)
	b.fn.appendInstruction(b.cur, br)

	b.fn.addEdge(b.cur, thenBB.Idx)
	if elseBB != nil {
		b.fn.addEdge(b.cur, elseBB.Idx)
	} else {
		b.fn.addEdge(b.cur, joinBB.Idx)
	}
	thenBB.Sealed = true
	if elseBB != nil {
		elseBB.Sealed = true
	}

	b.cur = thenBB.Idx
	b.lowerStatSeq(s.Then)
	b.emitBra(joinBB.Idx)
	b.fn.addEdge(b.cur, joinBB.Idx)
	thenEnd := b.cur

	if elseBB != nil {
		b.cur = elseBB.Idx
		b.lowerStatSeq(s.Else)
		b.emitBra(joinBB.Idx)
		b.fn.addEdge(b.cur, joinBB.Idx)
	}
	_ = thenEnd

	joinBB.Sealed = true
	b.cur = joinBB.Idx
}

// lowerWhile implements spec §4.1's while lowering: loop-head, body
// and exit blocks; the header is a join with the preheader and the
// back-edge as predecessors, and is left unsealed until the body has
// been lowered and the back-edge added — the scenario that exercises
// incomplete_phis (spec §4.2).
func (b *Builder) lowerWhile(s *ast.WhileStmt) {
	preheader := b.cur
	header := b.fn.createBlock(BlockLoopHead)
	b.fn.addEdge(preheader, header.Idx)
	b.cur = header.Idx

	cond := s.Cond.(*ast.BinaryExpr)
	left := b.lowerExpr(cond.Left)
	right := b.lowerExpr(cond.Right)

	bodyBB := b.fn.createBlock(BlockNormal)
	exitBB := b.fn.createBlock(BlockNormal)

	trueTarget := b.prog.newValue(VBranch)
	trueTarget.Target = bodyBB.Idx
	falseTarget := b.prog.newValue(VBranch)
	falseTarget.Target = exitBB.Idx

	branchOp := conditionalOpcode(cond.Op)
	br := b.fn.newInstruction(branchOp, header.Idx, []ValueIdx{left, right, trueTarget.Idx, falseTarget.Idx}, InvalidValue)
	b.addUses(br)
	trueTarget.AddUse(br.Idx)
	falseTarget.AddUse(br.Idx)
	b.fn.appendInstruction(header.Idx, br)

	b.fn.addEdge(header.Idx, bodyBB.Idx)
	b.fn.addEdge(header.Idx, exitBB.Idx)
	bodyBB.Sealed = true

	b.cur = bodyBB.Idx
	b.lowerStatSeq(s.Body)
	b.emitBra(header.Idx)
	b.fn.addEdge(b.cur, header.Idx)

	b.sealBlock(header.Idx)
	exitBB.Sealed = true
	b.cur = exitBB.Idx
}

func (b *Builder) emitBra(target BasicBlockIdx) {
	tv := b.prog.newValue(VBranch)
	tv.Target = target
	inst := b.fn.newInstruction(OpBra, b.cur, []ValueIdx{tv.Idx}, InvalidValue)
	tv.AddUse(inst.Idx)
	b.fn.appendInstruction(b.cur, inst)
}

func (b *Builder) lowerReturn(s *ast.ReturnStmt) {
	var operands []ValueIdx
	if s.Value != nil {
		operands = []ValueIdx{b.lowerExpr(s.Value)}
	}
	inst := b.fn.newInstruction(OpRet, b.cur, operands, InvalidValue)
	b.addUses(inst)
	b.fn.appendInstruction(b.cur, inst)
}

func (b *Builder) lowerExpr(e ast.Expr) ValueIdx {
	switch ex := e.(type) {
	case *ast.NumberLit:
		return b.constant(ex.Value)
	case *ast.DesignatorExpr:
		if ex.Designator.IsArray() {
			addr := b.lowerArrayAddress(ex.Designator)
			result := b.prog.newValue(VAny)
			result.DefBlock = b.cur
			inst := b.fn.newInstruction(OpLoad, b.cur, []ValueIdx{addr}, result.Idx)
			b.addUses(inst)
			b.fn.appendInstruction(b.cur, inst)
			return result.Idx
		}
		if _, _, ok := b.lookupSymbol(ex.Designator.Name); !ok {
			b.semanticErrorf(ex.Designator.Pos, "undeclared identifier %q", ex.Designator.Name)
			return b.constant(0)
		}
		return b.readVariable(ex.Designator.Name, b.cur)
	case *ast.CallExpr:
		v := b.lowerCall(ex.Name, ex.Args, ex.Pos)
		if v == InvalidValue {
			return b.constant(0)
		}
		return v
	case *ast.BinaryExpr:
		left := b.lowerExpr(ex.Left)
		right := b.lowerExpr(ex.Right)
		result := b.prog.newValue(VAny)
		result.DefBlock = b.cur
		inst := b.fn.newInstruction(arithmeticOpcode(ex.Op), b.cur, []ValueIdx{left, right}, result.Idx)
		b.addUses(inst)
		b.fn.appendInstruction(b.cur, inst)
		return result.Idx
	default:
		b.errorf(ast.Position{}, "unhandled expression %T", e)
		return b.constant(0)
	}
}

// lowerArrayAddress implements spec §4.1's linear-address folding
// exactly as spec §8 scenario 5 traces it: one ADDA for base+offset(x),
// then the per-dimension terms MUL(stride_k, e_k) are folded from the
// innermost dimension outward into a single sum via ADD (the innermost
// dimension's stride is always 1, so its index contributes to the sum
// unmultiplied), and a second, final ADDA adds that sum to the base
// address — two ADDAs total regardless of dimension count, not one
// per dimension.
func (b *Builder) lowerArrayAddress(d *ast.Designator) ValueIdx {
	sym, isGlobal, ok := b.lookupSymbol(d.Name)
	if !ok {
		b.semanticErrorf(d.Pos, "undeclared array %q", d.Name)
		return b.constant(0)
	}
	if len(d.Indices) != len(sym.Dims) {
		b.semanticErrorf(d.Pos, "%q is declared with %d dimension(s), used with %d", d.Name, len(sym.Dims), len(d.Indices))
		return b.constant(0)
	}
	base := b.globalBV
	if !isGlobal {
		base = b.fn.LocalBase
	}
	offset := b.constant(sym.Offset)
	baseAddr := b.emitAdda(base, offset)

	n := len(d.Indices)
	indices := make([]ValueIdx, n)
	for k := 0; k < n; k++ {
		indices[k] = b.lowerExpr(d.Indices[k])
	}

	acc := indices[n-1]
	for k := n - 2; k >= 0; k-- {
		stride := int64(1)
		for j := k + 1; j < len(sym.Dims); j++ {
			stride *= sym.Dims[j]
		}
		strideV := b.constant(stride)
		mulResult := b.prog.newValue(VAny)
		mulResult.DefBlock = b.cur
		mul := b.fn.newInstruction(OpMul, b.cur, []ValueIdx{strideV, indices[k]}, mulResult.Idx)
		b.addUses(mul)
		b.fn.appendInstruction(b.cur, mul)

		sumResult := b.prog.newValue(VAny)
		sumResult.DefBlock = b.cur
		add := b.fn.newInstruction(OpAdd, b.cur, []ValueIdx{mulResult.Idx, acc}, sumResult.Idx)
		b.addUses(add)
		b.fn.appendInstruction(b.cur, add)
		acc = sumResult.Idx
	}

	return b.emitAdda(baseAddr, acc)
}

func (b *Builder) emitAdda(base, offset ValueIdx) ValueIdx {
	result := b.prog.newValue(VAny)
	result.DefBlock = b.cur
	inst := b.fn.newInstruction(OpAdda, b.cur, []ValueIdx{base, offset}, result.Idx)
	b.addUses(inst)
	b.fn.appendInstruction(b.cur, inst)
	return result.Idx
}

// constant emits a fresh Const value, memoized per function (spec
// §4.1 "with memoization to deduplicate identical constants").
func (b *Builder) constant(n int64) ValueIdx {
	if v, ok := b.constMemo[n]; ok {
		return v
	}
	v := b.prog.newValue(VConst)
	v.ConstInt = n
	v.DefBlock = b.cur
	inst := b.fn.newInstruction(OpConst, b.cur, nil, v.Idx)
	b.fn.appendInstruction(b.cur, inst)
	b.constMemo[n] = v.Idx
	return v.Idx
}

func (b *Builder) addUses(inst *Instruction) {
	for _, op := range inst.Operands {
		b.prog.Value(op).AddUse(inst.Idx)
	}
}

func (b *Builder) lookupSymbol(name string) (*symtab.Symbol, bool, bool) {
	return b.symbols.Lookup(b.fnInfo, name)
}

func arithmeticOpcode(op token.Kind) Opcode {
	switch op {
	case token.PLUS:
		return OpAdd
	case token.MINUS:
		return OpSub
	case token.STAR:
		return OpMul
	case token.SLASH:
		return OpDiv
	default:
		return OpAdd
	}
}

// conditionalOpcode maps a relational operator to one of the six
// conditional-branch opcodes, each carrying both the compared values
// and both branch targets as operands (an IR shape not otherwise
// pinned down by the specification, resolved here following
// original_source's ITENode and the teacher's own
// BranchTerminator{Cond, TrueTarget, FalseTarget} — one branch
// instruction per relation, rather than a separate CMP plus a
// condition-code branch).
func conditionalOpcode(op token.Kind) Opcode {
	switch op {
	case token.EQ:
		return OpBeq
	case token.NEQ:
		return OpBne
	case token.LT:
		return OpBlt
	case token.LE:
		return OpBle
	case token.GT:
		return OpBgt
	case token.GE:
		return OpBge
	default:
		return OpBeq
	}
}
