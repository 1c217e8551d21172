package lower_test

import (
	"math/big"
	"testing"

	"github.com/mna/cfront/backend/refbackend"
	"github.com/mna/cfront/ir/lower"
	"github.com/mna/cfront/ir/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lowerSource(t *testing.T, src string) *refbackend.Context {
	t.Helper()
	obj, err := parser.ParseObject("t.ir", []byte(src))
	require.NoError(t, err)
	ctx := refbackend.New(obj.Identifier)
	require.NoError(t, lower.Object(ctx, obj, nil))
	return ctx
}

func TestLowerMinimalFunctionReturns42(t *testing.T) {
	ctx := lowerSource(t, `object "T" {
		code {
			function foo() -> x { x := 42 }
		}
	}`)
	res, err := refbackend.Run(ctx, "foo")
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, big.NewInt(42), res[0])
}

func TestLowerArithmeticAndCall(t *testing.T) {
	ctx := lowerSource(t, `object "T" {
		code {
			function add1(a) -> r { r := add(a, 1) }
			function main() -> r { r := add1(41) }
		}
	}`)
	res, err := refbackend.Run(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(42), res[0])
}

func TestLowerIfConditional(t *testing.T) {
	ctx := lowerSource(t, `object "T" {
		code {
			function f(a) -> r {
				r := 0
				if lt(a, 10) { r := 1 }
			}
		}
	}`)
	res, err := refbackend.Run(ctx, "f", big.NewInt(5))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1), res[0])

	res, err = refbackend.Run(ctx, "f", big.NewInt(50))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(0), res[0])
}

func TestLowerSwitchDefault(t *testing.T) {
	ctx := lowerSource(t, `object "T" {
		code {
			function f(a) -> r {
				switch a
				case 1 { r := 11 }
				case 2 { r := 22 }
				default { r := 99 }
			}
		}
	}`)
	res, err := refbackend.Run(ctx, "f", big.NewInt(2))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(22), res[0])

	res, err = refbackend.Run(ctx, "f", big.NewInt(7))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(99), res[0])
}

func TestLowerForLoopAccumulates(t *testing.T) {
	ctx := lowerSource(t, `object "T" {
		code {
			function sum(n) -> r {
				let i := 0
				for { } lt(i, n) { i := add(i, 1) } {
					r := add(r, i)
				}
			}
		}
	}`)
	res, err := refbackend.Run(ctx, "sum", big.NewInt(5))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(10), res[0]) // 0+1+2+3+4
}

func TestLowerBreakAndContinue(t *testing.T) {
	ctx := lowerSource(t, `object "T" {
		code {
			function f(n) -> r {
				for { let i := 0 } lt(i, n) { i := add(i, 1) } {
					if eq(i, 3) { break }
					if eq(mod(i, 2), 0) { continue }
					r := add(r, i)
				}
			}
		}
	}`)
	res, err := refbackend.Run(ctx, "f", big.NewInt(10))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1), res[0]) // only i=1 is odd and < 3
}

func TestLowerLeaveExitsEarly(t *testing.T) {
	ctx := lowerSource(t, `object "T" {
		code {
			function f(a) -> r {
				r := 1
				if lt(a, 10) { leave }
				r := 2
			}
		}
	}`)
	res, err := refbackend.Run(ctx, "f", big.NewInt(5))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1), res[0])
}

func TestLowerMultiReturnViaHiddenPointer(t *testing.T) {
	ctx := lowerSource(t, `object "T" {
		code {
			function divmod(a, b) -> q, r {
				q := div(a, b)
				r := mod(a, b)
			}
			function main() -> r {
				let q, rem := divmod(17, 5)
				r := add(q, rem)
			}
		}
	}`)
	res, err := refbackend.Run(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(5), res[0]) // q=3, rem=2
}

func TestLowerNearCallRecoversFromRevert(t *testing.T) {
	ctx := lowerSource(t, `object "T" {
		code {
			function zkSyncNearCall_risky() -> r {
				revert(0, 0)
			}
			function main() -> r {
				r := zkSyncNearCall_risky()
			}
		}
	}`)
	res, err := refbackend.Run(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(0), res[0])
}

func TestLowerRuntimeObjectNested(t *testing.T) {
	obj, err := parser.ParseObject("t.ir", []byte(`object "T" {
		code { }
		object "T_deployed" {
			code { function entrypoint() -> r { r := 7 } }
		}
	}`))
	require.NoError(t, err)
	ctx := refbackend.New(obj.Identifier)
	require.NoError(t, lower.Object(ctx, obj, nil))
	res, err := refbackend.Run(ctx, "entrypoint")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(7), res[0])
}

func TestLowerBigDecimalSub(t *testing.T) {
	ctx := lowerSource(t, `object "T" {
		code {
			function f() -> x {
				let y := 1234567890123456789012345679
				let z := 1234567890123456789012345678
				x := sub(y, z)
			}
		}
	}`)
	res, err := refbackend.Run(ctx, "f")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1), res[0])
}

func TestLowerLinkersymbolResolves(t *testing.T) {
	obj, err := parser.ParseObject("t.ir", []byte(`object "T" {
		code {
			function f() -> a {
				a := linkersymbol("lib.sol:Lib")
			}
		}
	}`))
	require.NoError(t, err)

	libs := func(ref string) (string, error) {
		require.Equal(t, "lib.sol:Lib", ref)
		return "2a", nil
	}
	ctx := refbackend.New(obj.Identifier)
	require.NoError(t, lower.Object(ctx, obj, libs))
	res, err := refbackend.Run(ctx, "f")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(42), res[0])
}
