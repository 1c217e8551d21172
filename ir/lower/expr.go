package lower

import (
	"fmt"
	"math/big"

	"github.com/mna/cfront/backend"
	"github.com/mna/cfront/ir/ast"
	"github.com/mna/cfront/ir/token"
)

// expr lowers e to a single backend value. Multi-result calls are only
// valid in initializer position and go through callMulti instead.
func (l *lowering) expr(e ast.Expr) (backend.Value, error) {
	switch v := e.(type) {
	case *ast.Literal:
		return l.literal(v)
	case *ast.Identifier:
		slot, ok := l.fn.lookup(v.Name)
		if !ok {
			return nil, fmt.Errorf("%s: reference to undeclared identifier %q", v.Position, v.Name)
		}
		return l.ctx.Load(slot), nil
	case *ast.FunctionCall:
		vals, err := l.callMulti(v)
		if err != nil {
			return nil, err
		}
		if len(vals) != 1 {
			return nil, fmt.Errorf("%s: %q used in expression position must produce exactly 1 value, got %d", v.Position, v.Name, len(vals))
		}
		return vals[0], nil
	default:
		return nil, fmt.Errorf("lower: unhandled expression type %T", e)
	}
}

// literal materializes a constant value. String literals have no numeric
// reading in the structured-IR type system; they are only ever passed to
// built-ins that take a symbolic name (linkersymbol, loadimmutable), so
// they lower to a content-derived integer the reference backend can still
// carry through the call, matching how those built-ins are opaque to
// arithmetic lowering.
func (l *lowering) literal(lit *ast.Literal) (backend.Value, error) {
	ty := token.Field
	if lit.Type != nil {
		ty = *lit.Type
	}
	switch lit.Kind {
	case token.INT:
		return l.ctx.ConstInt(ty.Bits, ty.Signed, lit.Int), nil
	case token.HEX:
		n, ok := new(big.Int).SetString(lit.Hex, 16)
		if !ok {
			return nil, fmt.Errorf("%s: invalid hex literal %q", lit.Position, lit.Hex)
		}
		return l.ctx.ConstInt(ty.Bits, ty.Signed, n), nil
	case token.TRUE:
		return l.ctx.ConstInt(1, false, big.NewInt(1)), nil
	case token.FALSE:
		return l.ctx.ConstInt(1, false, big.NewInt(0)), nil
	case token.STRING:
		n := new(big.Int).SetBytes([]byte(lit.Str))
		return l.ctx.ConstInt(256, false, n), nil
	default:
		return nil, fmt.Errorf("%s: unhandled literal kind", lit.Position)
	}
}
