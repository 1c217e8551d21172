package lower_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mna/cfront/asm/block"
	"github.com/mna/cfront/asm/elaborate"
	"github.com/mna/cfront/asm/lower"
	"github.com/mna/cfront/asm/model"
	"github.com/mna/cfront/backend"
	"github.com/mna/cfront/backend/refbackend"
)

func i(opcode string) model.Instruction { return model.Instruction{Opcode: opcode} }

func pushTag(v string) model.Instruction {
	return model.Instruction{Opcode: "PUSH_Tag", Value: v, HasValue: true}
}

func tagIns(v string) model.Instruction {
	return model.Instruction{Opcode: "tag", Value: v, HasValue: true}
}

func build(t *testing.T, code []model.Instruction) *elaborate.Function {
	t.Helper()
	built, err := block.Build(code)
	require.NoError(t, err)
	fn, err := elaborate.Elaborate(built)
	require.NoError(t, err)
	return fn
}

// TestLowerCallReturn lowers a call/return scenario: a call into tag 5
// that immediately jumps back out to the return tag 10 the call left on
// top of the stack.
func TestLowerCallReturn(t *testing.T) {
	code := []model.Instruction{
		i("CALLVALUE"),
		pushTag("5"),
		pushTag("10"),
		i("JUMP"),
	}
	code[3].JumpType = "in"
	code = append(code, tagIns("5"))
	code = append(code, i("JUMP"))
	code[len(code)-1].JumpType = "out"
	code = append(code, tagIns("10"))
	code = append(code, i("STOP"))

	fn := build(t, code)

	ctx := refbackend.New("C")
	require.NoError(t, lower.Function(ctx, backend.Runtime, "runtime", fn, nil))

	_, err := refbackend.Run(ctx, "runtime")
	require.NoError(t, err)

	bld, err := ctx.Build()
	require.NoError(t, err)
	assert.Contains(t, bld.AssemblyText, "function runtime")
	assert.NotEmpty(t, bld.Hash)
}

// TestLowerConditionalJump lowers a JUMPI whose untaken path has no
// explicit tag, checking that asm/lower resolves the fall-through
// successor via the block builder's recorded Next link.
func TestLowerConditionalJump(t *testing.T) {
	code := []model.Instruction{
		i("CALLVALUE"),
		pushTag("99"),
		i("JUMPI"),
		i("STOP"),
	}
	code = append(code, tagIns("99"))
	code = append(code, i("STOP"))

	fn := build(t, code)

	ctx := refbackend.New("C")
	require.NoError(t, lower.Function(ctx, backend.Runtime, "runtime", fn, nil))

	_, err := refbackend.Run(ctx, "runtime")
	require.NoError(t, err)

	bld, err := ctx.Build()
	require.NoError(t, err)
	assert.Contains(t, bld.AssemblyText, "branch")
}

// TestLowerStackCloning checks that two call sites into the same callee tag
// with different return addresses lower to two distinct backend blocks
// (the block-cloning alternative to phi-nodes).
func TestLowerStackCloning(t *testing.T) {
	code := []model.Instruction{
		pushTag("3"),
		pushTag("100"),
		i("JUMP"),
	}
	code[2].JumpType = "in"
	code = append(code, tagIns("100"))
	code = append(code, pushTag("3"))
	code = append(code, pushTag("200"))
	code = append(code, i("JUMP"))
	code[len(code)-1].JumpType = "in"
	code = append(code, tagIns("200"))
	code = append(code, i("STOP"))
	code = append(code, tagIns("3"))
	code = append(code, i("JUMP"))
	code[len(code)-1].JumpType = "out"

	fn := build(t, code)
	require.Len(t, fn.Blocks[3], 2)

	ctx := refbackend.New("C")
	require.NoError(t, lower.Function(ctx, backend.Runtime, "runtime", fn, nil))

	bld, err := ctx.Build()
	require.NoError(t, err)
	assert.Contains(t, bld.AssemblyText, "block_3/0")
	assert.Contains(t, bld.AssemblyText, "block_3/1")
}

// TestLowerSymbolicPushes checks that PUSHLIB resolves through the library
// table and PUSH_Data through the data-path table, and that an unknown
// reference fails the lowering instead of silently pushing zero.
func TestLowerSymbolicPushes(t *testing.T) {
	code := []model.Instruction{
		{Opcode: "PUSHLIB", Value: "lib.sol:Lib", HasValue: true},
		i("POP"),
		{Opcode: "PUSH_Data", Value: "1", HasValue: true},
		i("POP"),
		i("STOP"),
	}
	fn := build(t, code)

	res := &lower.Resolver{
		DataPaths: map[string]string{
			"0000000000000000000000000000000000000000000000000000000000000001": "dep.sol:Dep",
		},
		Library: func(ref string) (string, error) {
			require.Equal(t, "lib.sol:Lib", ref)
			return "0123456789abcdef0123456789abcdef01234567", nil
		},
	}

	ctx := refbackend.New("C")
	require.NoError(t, lower.Function(ctx, backend.Runtime, "runtime", fn, res))

	_, err := refbackend.Run(ctx, "runtime")
	require.NoError(t, err)

	ctx2 := refbackend.New("C")
	err = lower.Function(ctx2, backend.Runtime, "runtime", fn, &lower.Resolver{})
	require.Error(t, err)
}
