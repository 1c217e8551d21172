package parser_test

import (
	"math/big"
	"testing"

	"github.com/mna/cfront/ir/ast"
	"github.com/mna/cfront/ir/parser"
	"github.com/mna/cfront/ir/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMinimalFunction(t *testing.T) {
	obj, err := parser.ParseObject("t.ir", []byte(`object "T" { code { function foo() -> x { x := 42 } } }`))
	require.NoError(t, err)
	require.Equal(t, "T", obj.Identifier)
	require.Len(t, obj.Code.Stmts, 1)

	fn, ok := obj.Code.Stmts[0].(*ast.FunctionDefinition)
	require.True(t, ok)
	assert.Equal(t, "foo", fn.Name)
	assert.Equal(t, "x", fn.Results[0].Name)

	assign, ok := fn.Body.Stmts[0].(*ast.Assignment)
	require.True(t, ok)
	assert.Equal(t, []string{"x"}, assign.Bindings)
	lit, ok := assign.Initializer.(*ast.Literal)
	require.True(t, ok)
	assert.Zero(t, lit.Int.Cmp(big.NewInt(42)))
}

func TestParseRuntimeObjectInvariant(t *testing.T) {
	obj, err := parser.ParseObject("t.ir", []byte(`object "T" { code { } object "T_deployed" { code { } } }`))
	require.NoError(t, err)
	require.NotNil(t, obj.Inner)
	assert.True(t, obj.Inner.IsRuntime())
	assert.False(t, obj.IsRuntime())
}

func TestParseSwitchDefault(t *testing.T) {
	obj, err := parser.ParseObject("t.ir", []byte(`object "T" { code {
		let x
		switch 42
		case 1 { x := 22 }
		default { x := 17 }
	} }`))
	require.NoError(t, err)
	sw, ok := obj.Code.Stmts[1].(*ast.Switch)
	require.True(t, ok)
	require.Len(t, sw.Cases, 1)
	require.NotNil(t, sw.Default)
}

func TestParseDuplicateSwitchLiteralIsError(t *testing.T) {
	_, err := parser.ParseObject("t.ir", []byte(`object "T" { code {
		switch 1
		case 1 { }
		case 1 { }
	} }`))
	require.Error(t, err)
}

func TestParseLeaveAndFor(t *testing.T) {
	obj, err := parser.ParseObject("t.ir", []byte(`object "T" { code {
		let x := 42
		if lt(x, 55) { leave }
		for { let i := 0 } lt(i, 10) { i := add(i, 1) } {
			x := add(x, i)
		}
	} }`))
	require.NoError(t, err)
	require.Len(t, obj.Code.Stmts, 3)
	_, ok := obj.Code.Stmts[1].(*ast.IfConditional)
	require.True(t, ok)
	forLoop, ok := obj.Code.Stmts[2].(*ast.ForLoop)
	require.True(t, ok)
	require.NotNil(t, forLoop.Body)
}

func TestParseCallStatementVsAssignmentDisambiguation(t *testing.T) {
	obj, err := parser.ParseObject("t.ir", []byte(`object "T" { code {
		sstore(0, 1)
		a, b := f()
	} }`))
	require.NoError(t, err)
	_, ok := obj.Code.Stmts[0].(*ast.ExprStmt)
	require.True(t, ok)
	asg, ok := obj.Code.Stmts[1].(*ast.Assignment)
	require.True(t, ok)
	assert.Len(t, asg.Bindings, 2)
}

func TestParseTypedIdent(t *testing.T) {
	obj, err := parser.ParseObject("t.ir", []byte(`object "T" { code {
		function f(a: uint32, b: bool) -> r: uint8 { r := a }
	} }`))
	require.NoError(t, err)
	fn := obj.Code.Stmts[0].(*ast.FunctionDefinition)
	require.Equal(t, token.IntType{Bits: 32, Signed: false}, fn.Parameters[0].ResolvedType())
	require.Equal(t, token.IntType{Bits: 1, Signed: false}, fn.Parameters[1].ResolvedType())
	require.Equal(t, token.IntType{Bits: 8, Signed: false}, fn.Results[0].ResolvedType())
}

func TestParseDefaultTypeIsField(t *testing.T) {
	obj, err := parser.ParseObject("t.ir", []byte(`object "T" { code { let x } }`))
	require.NoError(t, err)
	decl := obj.Code.Stmts[0].(*ast.VariableDeclaration)
	assert.Equal(t, token.Field, decl.Bindings[0].ResolvedType())
}

func TestParseErrorReportsExpectedSet(t *testing.T) {
	_, err := parser.ParseObject("t.ir", []byte(`object "T" { code { let } }`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected")
}
