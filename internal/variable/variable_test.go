package variable

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zekaeng/zeka/internal/field"
)

func TestTableSetGetClear(t *testing.T) {
	f := field.Default()
	tbl := NewTable(f)

	_, truthy := tbl.Get(5)
	require.False(t, truthy)

	tbl.Set(5, f.FromUint64(42))
	v, truthy := tbl.Get(5)
	require.True(t, truthy)
	require.True(t, f.Equal(v, f.FromUint64(42)))

	tbl.Set(6, f.Zero())
	_, truthy = tbl.Get(6)
	require.False(t, truthy, "a zero value is present but falsy")

	tbl.Clear(5)
	_, truthy = tbl.Get(5)
	require.False(t, truthy)
}

func TestParseAndEvalSimpleAnd(t *testing.T) {
	f := field.Default()
	tbl := NewTable(f)
	tbl.Set(1, f.FromUint64(3))
	tbl.Set(2, f.FromUint64(4))

	e, err := Parse("1 & 2")
	require.NoError(t, err)
	require.ElementsMatch(t, []uint16{1, 2}, e.Leaves())

	res := Eval(f, e, tbl)
	require.True(t, res.True)
	require.True(t, f.Equal(res.Product, f.FromUint64(12)))
}

func TestParseAndEvalOrLooserThanAnd(t *testing.T) {
	f := field.Default()
	tbl := NewTable(f)
	tbl.Set(1, f.FromUint64(1))
	// 2 and 3 left unset (falsy)

	e, err := Parse("1 & 2 | 3")
	require.NoError(t, err)
	res := Eval(f, e, tbl)
	require.False(t, res.True) // (1&2)|3 = (false)|(false) = false
}

func TestParseParentheses(t *testing.T) {
	f := field.Default()
	tbl := NewTable(f)
	tbl.Set(2, f.FromUint64(1))
	tbl.Set(3, f.FromUint64(1))

	e, err := Parse("1 & (2 | 3)")
	require.NoError(t, err)
	res := Eval(f, e, tbl)
	require.False(t, res.True) // 1 is unset/falsy
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse("1 & & 2")
	require.Error(t, err)
}

func TestTerminalStateDeterministic(t *testing.T) {
	f := field.Default()
	start := CompileStartState("1 & 2")
	p := f.FromUint64(12)
	s1 := TerminalState(start, p)
	s2 := TerminalState(start, p)
	require.Equal(t, s1, s2)

	other := TerminalState(start, f.FromUint64(13))
	require.NotEqual(t, s1, other)
}
