package symtab_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tinyssa/internal/parser"
	"tinyssa/internal/symtab"
)

func parse(t *testing.T, source string) *symtab.Table {
	t.Helper()
	comp, diag := parser.ParseSource("test.tiny", source)
	require.Nil(t, diag)
	table, diags := symtab.Build(comp)
	require.Empty(t, diags)
	return table
}

func TestBuildAssignsSequentialGlobalOffsets(t *testing.T) {
	table := parse(t, `main var a, b; array[3] c; { }.`)
	require.Equal(t, int64(0), table.Globals["a"].Offset)
	require.Equal(t, int64(1), table.Globals["b"].Offset)
	require.Equal(t, int64(2), table.Globals["c"].Offset)
	require.True(t, table.Globals["c"].IsArray())
	require.Equal(t, int64(3), table.Globals["c"].Size())
}

func TestBuildFlagsDuplicateGlobal(t *testing.T) {
	comp, diag := parser.ParseSource("test.tiny", `main var a, a; { }.`)
	require.Nil(t, diag)
	_, diags := symtab.Build(comp)
	require.Len(t, diags, 1)
}

func TestBuildGivesEachFunctionItsOwnLocalScope(t *testing.T) {
	table := parse(t, `main
	function f(x); var y; { return x };
	{ }.`)
	info := table.Functions["f"]
	require.NotNil(t, info)
	require.Equal(t, int64(0), info.Locals["x"].Offset)
	require.Equal(t, int64(1), info.Locals["y"].Offset)
}

func TestLookupPrefersLocalOverGlobal(t *testing.T) {
	table := parse(t, `main var a;
	function f(a); { return a };
	{ }.`)
	sym, isGlobal, ok := table.Lookup(table.Functions["f"], "a")
	require.True(t, ok)
	require.False(t, isGlobal)
	require.Equal(t, int64(0), sym.Offset)
}

func TestLookupFallsBackToGlobal(t *testing.T) {
	table := parse(t, `main var a;
	function f; { return a };
	{ }.`)
	sym, isGlobal, ok := table.Lookup(table.Functions["f"], "a")
	require.True(t, ok)
	require.True(t, isGlobal)
	require.Equal(t, int64(0), sym.Offset)
}
