package pyast

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, code string) *Module {
	t.Helper()
	m, err := Parse(context.Background(), []byte(code))
	require.NoError(t, err)
	return m
}

func TestParseSimpleStatements(t *testing.T) {
	tests := []struct {
		code string
		want Stmt
	}{
		{code: "x = 1", want: &Assign{}},
		{code: "x += 1", want: &AugAssign{}},
		{code: "print(x)", want: &ExprStmt{}},
		{code: "pass", want: &Pass{}},
		{code: "return x", want: &Return{}},
		{code: "del x", want: &Delete{}},
		{code: "import os", want: &Import{}},
		{code: "from os import path", want: &ImportFrom{}},
		{code: "global x", want: &Global{}},
		{code: "nonlocal x", want: &Nonlocal{}},
		{code: "break", want: &Break{}},
		{code: "continue", want: &Continue{}},
		{code: "class A:\n    pass", want: &Unsupported{}},
		{code: "with f() as g:\n    pass", want: &Unsupported{}},
		{code: "raise E", want: &Unsupported{}},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			m := parse(t, tt.code+"\n")
			require.Len(t, m.Body, 1)
			assert.IsType(t, tt.want, m.Body[0])
		})
	}
}

func TestParseSpans(t *testing.T) {
	m := parse(t, "x = 1\n\ny = foo(\n    2,\n)\n")
	require.Len(t, m.Body, 2)

	first := m.Body[0].Span()
	assert.Equal(t, 1, first.Line)
	assert.Equal(t, "x = 1", m.Text(first))

	second := m.Body[1].Span()
	assert.Equal(t, 3, second.Line)
	assert.Equal(t, 5, second.EndLine)
	assert.Equal(t, "y = foo(\n    2,\n)", m.Text(second))
	assert.Equal(t, "expression_statement", m.Body[1].Kind())
}

func TestParseIfChain(t *testing.T) {
	m := parse(t, "if a > b:\n    x = 1\nelif a < b:\n    x = 2\nelif (a == b):\n    x = 3\nelse:\n    x = 4\n")
	require.Len(t, m.Body, 1)

	top, ok := m.Body[0].(*If)
	require.True(t, ok)
	assert.False(t, top.Elif)
	assert.Equal(t, ExprCompare, top.Test.Kind)
	assert.Equal(t, "a > b", m.Text(top.Test.Span))
	require.Len(t, top.Body, 1)

	require.Len(t, top.Orelse, 1)
	second, ok := top.Orelse[0].(*If)
	require.True(t, ok)
	assert.True(t, second.Elif)
	assert.Equal(t, "a < b", m.Text(second.Test.Span))

	require.Len(t, second.Orelse, 1)
	third, ok := second.Orelse[0].(*If)
	require.True(t, ok)
	assert.True(t, third.Elif)
	assert.Equal(t, ExprCompare, third.Test.Kind, "parentheses are unwrapped")
	assert.Equal(t, "a == b", m.Text(third.Test.Span))

	require.Len(t, third.Orelse, 1)
	assert.IsType(t, &Assign{}, third.Orelse[0])

	stripped := top.WithoutElse()
	assert.Empty(t, stripped.Orelse)
	assert.Len(t, top.Orelse, 1, "original keeps its chain")
}

func TestParseElseWithNestedIf(t *testing.T) {
	m := parse(t, "if a > b:\n    x = 1\nelse:\n    if c > d:\n        x = 2\n")
	top := m.Body[0].(*If)

	require.Len(t, top.Orelse, 1)
	inner, ok := top.Orelse[0].(*If)
	require.True(t, ok)
	assert.False(t, inner.Elif)
}

func TestParseLoops(t *testing.T) {
	m := parse(t, "while n < 10:\n    n += 1\nelse:\n    done()\nfor k, v in items():\n    pass\nasync def f():\n    async for x in y:\n        pass\n")
	require.Len(t, m.Body, 3)

	w, ok := m.Body[0].(*While)
	require.True(t, ok)
	assert.Equal(t, ExprCompare, w.Test.Kind)
	assert.Len(t, w.Body, 1)
	assert.Len(t, w.Orelse, 1)

	f, ok := m.Body[1].(*For)
	require.True(t, ok)
	assert.Equal(t, ExprTuple, f.Target.Kind)
	assert.Equal(t, "k, v", m.Text(f.Target.Span))
	assert.Equal(t, ExprCall, f.Iter.Kind)
	assert.Equal(t, "items()", m.Text(f.Iter.Span))
	assert.Empty(t, f.Orelse)
	assert.False(t, f.Async)

	fn, ok := m.Function("f")
	require.True(t, ok)
	require.Len(t, fn.Body, 1)
	inner, ok := fn.Body[0].(*For)
	require.True(t, ok)
	assert.True(t, inner.Async)
	assert.Equal(t, ExprName, inner.Target.Kind)
}

func TestParseExprKinds(t *testing.T) {
	tests := []struct {
		test string
		want ExprKind
	}{
		{test: "a > b", want: ExprCompare},
		{test: "a is not None", want: ExprCompare},
		{test: "ready", want: ExprName},
		{test: "check(x)", want: ExprCall},
		{test: "a and b", want: ExprBoolOp},
		{test: "not a", want: ExprNot},
		{test: "True", want: ExprConstant},
		{test: "self.ready", want: ExprAttribute},
		{test: "x[0]", want: ExprOther},
	}

	for _, tt := range tests {
		t.Run(tt.test, func(t *testing.T) {
			m := parse(t, "if "+tt.test+":\n    pass\n")
			s := m.Body[0].(*If)
			assert.Equal(t, tt.want, s.Test.Kind, "got %s (%s)", s.Test.Kind, s.Test.Type)
			assert.Equal(t, tt.test, m.Text(s.Test.Span))
		})
	}
}

func TestParseFunctions(t *testing.T) {
	m := parse(t, "def outer():\n    def inner():\n        return 1\n    return inner\n\n@cache\ndef decorated(x):\n    return x\n")

	assert.Equal(t, []string{"outer", "inner", "decorated"}, m.Functions())

	inner, ok := m.Function("inner")
	require.True(t, ok)
	assert.Len(t, inner.Body, 1)

	dec, ok := m.Function("decorated")
	require.True(t, ok)
	assert.Equal(t, "decorated_definition", dec.Kind())
	assert.Equal(t, 6, dec.Span().Line)

	_, ok = m.Function("missing")
	assert.False(t, ok)
}

func TestFunctionDefsKeepsRedefinitions(t *testing.T) {
	m := parse(t, "def f():\n    x = 1\n\ndef f():\n    y = 2\n    z = 3\n")

	defs := m.FunctionDefs()
	require.Len(t, defs, 2)
	assert.Equal(t, 1, defs[0].Span().Line)
	assert.Len(t, defs[0].Body, 1)
	assert.Equal(t, 4, defs[1].Span().Line)
	assert.Len(t, defs[1].Body, 2)
	assert.Equal(t, []string{"f", "f"}, m.Functions())
	assert.True(t, m.HasFunctionDefs())

	assert.False(t, parse(t, "x = 1\n").HasFunctionDefs())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		code string
		line int
	}{
		{name: "incomplete comparison", code: "x = 1\nif a >:\n    pass\n", line: 2},
		{name: "unbalanced paren", code: "y = (1,\n", line: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(context.Background(), []byte(tt.code))
			require.Error(t, err)

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.GreaterOrEqual(t, perr.Line, tt.line)
			assert.Contains(t, perr.Error(), "line")
		})
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prog.py")
	require.NoError(t, os.WriteFile(path, []byte("x = 1\n"), 0644))

	m, err := ParseFile(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, m.Body, 1)

	_, err = ParseFile(context.Background(), filepath.Join(t.TempDir(), "missing.py"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestTextOfOutOfRange(t *testing.T) {
	src := []byte("abc")
	assert.Equal(t, "", TextOf(src, Span{Start: 2, End: 10}))
	assert.Equal(t, "", TextOf(src, Span{Start: 2, End: 1}))
	assert.Equal(t, "bc", TextOf(src, Span{Start: 1, End: 3}))
}

func TestExprKindString(t *testing.T) {
	assert.Equal(t, "compare", ExprCompare.String())
	assert.Equal(t, "unknown", ExprKind(99).String())
}
