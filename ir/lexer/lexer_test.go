package lexer_test

import (
	"strings"
	"testing"

	"github.com/mna/cfront/ir/lexer"
	"github.com/mna/cfront/ir/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func toks(t *testing.T, src string) []token.Token {
	t.Helper()
	tvs, err := lexer.ScanAll("test.ir", []byte(src))
	require.NoError(t, err)
	out := make([]token.Token, len(tvs))
	for i, tv := range tvs {
		out[i] = tv.Token
	}
	return out
}

func TestScanKeywordsAndSymbols(t *testing.T) {
	got := toks(t, `object "T" { code { function foo() -> x { x := 42 } } }`)
	want := []token.Token{
		token.OBJECT, token.STRING, token.LBRACE,
		token.CODE, token.LBRACE,
		token.FUNCTION, token.IDENT, token.LPAREN, token.RPAREN, token.ARROW, token.IDENT, token.LBRACE,
		token.IDENT, token.WALRUS, token.INT,
		token.RBRACE, token.RBRACE, token.RBRACE,
		token.EOF,
	}
	assert.Equal(t, want, got)
}

func TestScanIntTypes(t *testing.T) {
	tvs, err := lexer.ScanAll("t.ir", []byte(`let x: uint32`))
	require.NoError(t, err)
	require.Len(t, tvs, 5) // let, x, colon, uint32, EOF
	assert.Equal(t, token.INTTYPE, tvs[3].Token)
	assert.Equal(t, 32, tvs[3].Value.IntTy.Bits)
	assert.False(t, tvs[3].Value.IntTy.Signed)
}

func TestScanHexAndComments(t *testing.T) {
	tvs, err := lexer.ScanAll("t.ir", []byte("// comment\nlet x := 0x2a /* trailing */"))
	require.NoError(t, err)
	var hexSeen bool
	for _, tv := range tvs {
		if tv.Token == token.HEX {
			hexSeen = true
			assert.Equal(t, "2a", tv.Value.Hex)
		}
	}
	assert.True(t, hexSeen)
}

func TestScanStringEscapes(t *testing.T) {
	tvs, err := lexer.ScanAll("t.ir", []byte(`"a\tb\x41"`))
	require.NoError(t, err)
	require.Equal(t, token.STRING, tvs[0].Token)
	assert.Equal(t, "a\tbA", tvs[0].Value.String)
}

func TestScanIllegalCharacter(t *testing.T) {
	_, err := lexer.ScanAll("t.ir", []byte(`@`))
	require.Error(t, err)
}

func TestRoundTripNoWhitespaceNeeded(t *testing.T) {
	// Sequence of tokens that don't require whitespace between them to
	// re-tokenize to the same sequence (punctuation-delimited).
	src := `(x,y)->z`
	tvs, err := lexer.ScanAll("test.ir", []byte(src))
	require.NoError(t, err)
	var rendered strings.Builder
	for _, tv := range tvs {
		rendered.WriteString(tv.Value.Raw)
	}
	first := toks(t, src)
	second := toks(t, rendered.String())
	assert.Equal(t, first, second)
}

func TestScanBigDecimalLiteral(t *testing.T) {
	tvs, err := lexer.ScanAll("t.ir", []byte(`1234567890123456789012345679`))
	require.NoError(t, err)
	require.Equal(t, token.INT, tvs[0].Token)
	assert.Equal(t, "1234567890123456789012345679", tvs[0].Value.Int.String())
}
