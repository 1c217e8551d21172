package refbackend_test

import (
	"math/big"
	"testing"

	"github.com/mna/cfront/backend"
	"github.com/mna/cfront/backend/refbackend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinimalFunctionReturns42(t *testing.T) {
	ctx := refbackend.New("T")
	fn := ctx.DeclareFunction("foo", backend.Runtime, 0, 1, false)
	ctx.SetFunction(fn)
	entry := ctx.NewBlock("entry")
	ctx.SetBlock(entry)
	forty2 := ctx.ConstInt(256, false, big.NewInt(42))
	ctx.Return(forty2)

	res, err := refbackend.Run(ctx, "foo")
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, big.NewInt(42), res[0])

	build, err := ctx.Build()
	require.NoError(t, err)
	assert.NotEmpty(t, build.Hash)
	assert.Contains(t, build.AssemblyText, "function foo")
}

func TestArithmeticSub(t *testing.T) {
	ctx := refbackend.New("T")
	fn := ctx.DeclareFunction("f", backend.Runtime, 0, 1, false)
	ctx.SetFunction(fn)
	entry := ctx.NewBlock("entry")
	ctx.SetBlock(entry)
	y := ctx.ConstInt(256, false, big.NewInt(1234567890123456789))
	z := ctx.ConstInt(256, false, big.NewInt(1234567890123456788))
	results, err := ctx.Intrinsic("sub", []backend.Value{y, z})
	require.NoError(t, err)
	ctx.Return(results[0])

	res, err := refbackend.Run(ctx, "f")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1), res[0])
}

func TestNearCallRecoversFromRevert(t *testing.T) {
	ctx := refbackend.New("T")
	callee := ctx.DeclareFunction("zkSyncNearCall_f", backend.Runtime, 0, 1, true)
	ctx.SetFunction(callee)
	cb := ctx.NewBlock("entry")
	ctx.SetBlock(cb)
	ctx.Intrinsic("revert", nil)
	ctx.Unreachable()

	caller := ctx.DeclareFunction("main", backend.Runtime, 0, 1, false)
	ctx.SetFunction(caller)
	mb := ctx.NewBlock("entry")
	ctx.SetBlock(mb)
	res := ctx.InvokeNearCall(callee, nil)
	ctx.Return(res[0])

	out, err := refbackend.Run(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(0), out[0])
}
