// Package symtab builds the two-level symbol table (global and
// per-function) that the parser/AST stage hands to the IR constructor
// (spec §2 stage 2, §4.1). Its exact logic is not prescribed by the
// specification (the parser is named as an external collaborator in
// spec §1); this implementation is original, grounded on the shape of
// declaration-collection in original_source/src/FrontEnd/ASTConstructor.cpp
// (global symbols recorded before any function body is walked, each
// function's locals recorded before its statements are lowered).
package symtab

import (
	"tinyssa/internal/ast"
	"tinyssa/internal/errkit"
)

// Symbol describes one declared variable: its dimensions (nil for a
// scalar) and its word offset from GlobalBase or LocalBase.
type Symbol struct {
	Name   string
	Dims   []int64
	Offset int64
}

func (s *Symbol) IsArray() bool { return len(s.Dims) > 0 }

// Size is the number of words the symbol occupies: 1 for a scalar,
// the product of its dimensions for an array.
func (s *Symbol) Size() int64 {
	if !s.IsArray() {
		return 1
	}
	n := int64(1)
	for _, d := range s.Dims {
		n *= d
	}
	return n
}

// FuncInfo is one function or procedure's local symbol scope.
type FuncInfo struct {
	Decl        *ast.FuncDecl
	IsProcedure bool
	Params      []string
	Locals      map[string]*Symbol
	FrameSize   int64
}

// Table is the program's two-level symbol table: Globals plus one
// FuncInfo per declared function.
type Table struct {
	Globals   map[string]*Symbol
	Functions map[string]*FuncInfo
	frameSize int64
}

// Build walks the Computation tree once, collecting global symbols
// (offset from GlobalBase) and then each function's parameters and
// locals (offset from LocalBase), detecting duplicate declarations
// along the way. It does not inspect statement bodies: this table only
// needs to know what names exist and where they live, not how they are
// used (that is the IR constructor's job, spec §4.1).
func Build(comp *ast.Computation) (*Table, []*errkit.Diagnostic) {
	t := &Table{Globals: map[string]*Symbol{}, Functions: map[string]*FuncInfo{}}
	var diags []*errkit.Diagnostic

	for _, decl := range comp.Globals {
		for _, name := range decl.Names {
			if _, dup := t.Globals[name]; dup {
				diags = append(diags, errkit.New(errkit.Semantic, decl.Pos, "duplicate global declaration of %q", name))
				continue
			}
			sym := &Symbol{Name: name, Dims: decl.Dims, Offset: t.frameSize}
			t.frameSize += sym.Size()
			t.Globals[name] = sym
		}
	}

	for _, fn := range comp.Funcs {
		if _, dup := t.Functions[fn.Name]; dup {
			diags = append(diags, errkit.New(errkit.Semantic, fn.Pos, "duplicate function declaration of %q", fn.Name))
			continue
		}
		info := &FuncInfo{Decl: fn, IsProcedure: fn.IsProcedure, Params: fn.Params, Locals: map[string]*Symbol{}}
		for _, p := range fn.Params {
			if _, dup := info.Locals[p]; dup {
				diags = append(diags, errkit.New(errkit.Semantic, fn.Pos, "duplicate parameter %q in %q", p, fn.Name))
				continue
			}
			info.Locals[p] = &Symbol{Name: p, Offset: info.FrameSize}
			info.FrameSize++
		}
		for _, decl := range fn.Locals {
			for _, name := range decl.Names {
				if _, dup := info.Locals[name]; dup {
					diags = append(diags, errkit.New(errkit.Semantic, decl.Pos, "duplicate local declaration of %q in %q", name, fn.Name))
					continue
				}
				sym := &Symbol{Name: name, Dims: decl.Dims, Offset: info.FrameSize}
				info.FrameSize += sym.Size()
				info.Locals[name] = sym
			}
		}
		t.Functions[fn.Name] = info
	}

	return t, diags
}

// Lookup resolves name first against fn's locals/params, then against
// globals, returning (symbol, isGlobal, ok).
func (t *Table) Lookup(fn *FuncInfo, name string) (*Symbol, bool, bool) {
	if fn != nil {
		if sym, ok := fn.Locals[name]; ok {
			return sym, false, true
		}
	}
	if sym, ok := t.Globals[name]; ok {
		return sym, true, true
	}
	return nil, false, false
}
