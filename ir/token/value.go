package token

import (
	"fmt"
	"math/big"
)

// IntType describes the bit width and signedness of an integer type. The
// default, zero IntType{} is not valid on its own; Field reports the
// default 256-bit unsigned "field" type used when a TypedIdent omits its
// type.
type IntType struct {
	Bits   int // 1..256
	Signed bool
}

// Field is the default integer type: an unsigned 256-bit word.
var Field = IntType{Bits: 256, Signed: false}

func (t IntType) String() string {
	if t.Signed {
		return fmt.Sprintf("int%d", t.Bits)
	}
	return fmt.Sprintf("uint%d", t.Bits)
}

// Value carries the literal text and decoded payload of a token produced by
// the lexer.
type Value struct {
	Raw string   // literal source text
	Pos Position // start position

	Int    *big.Int // set for INT; the field type is 256 bits wide, so decimal literals routinely exceed a machine word
	Hex    string   // set for HEX, hex digits without the "0x" prefix
	Bool   bool     // set for TRUE and FALSE
	String string   // set for STRING, decoded value
	IntTy  IntType  // set for INTTYPE
}
