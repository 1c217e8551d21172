// Package parser implements a recursive-descent parser for the
// structured-IR grammar: it builds the typed AST defined in
// ir/ast directly from the token stream produced by ir/lexer.
package parser

import (
	"errors"
	"strings"

	"github.com/mna/cfront/ir/ast"
	"github.com/mna/cfront/ir/lexer"
	"github.com/mna/cfront/ir/token"
)

// ParseObject parses a single top-level object from src. The error, if
// non-nil, is a token.ErrorList.
func ParseObject(filename string, src []byte) (*ast.Object, error) {
	var p parser
	p.init(filename, src)
	obj := p.parseObject()
	p.errors.Sort()
	return obj, p.errors.Err()
}

type parser struct {
	lex    lexer.Lexer
	errors token.ErrorList

	tok token.Token
	val token.Value
}

func (p *parser) init(filename string, src []byte) {
	p.lex.Init(filename, src, p.errors.Add)
	p.advance()
}

func (p *parser) advance() {
	p.tok = p.lex.Scan(&p.val)
}

var errPanicMode = errors.New("panic mode")

// expect consumes the current token if it is one of toks, otherwise it
// records an error naming the expected set and aborts the current
// statement via panic/recover.
func (p *parser) expect(toks ...token.Token) token.Value {
	for _, tok := range toks {
		if p.tok == tok {
			val := p.val
			p.advance()
			return val
		}
	}
	p.errorExpected(toks)
	panic(errPanicMode)
}

func (p *parser) accept(tok token.Token) bool {
	if p.tok == tok {
		p.advance()
		return true
	}
	return false
}

func (p *parser) error(pos token.Position, msg string) {
	p.errors.Add(pos, msg)
}

func (p *parser) errorExpected(toks []token.Token) {
	var sb strings.Builder
	sb.WriteString("expected ")
	if len(toks) > 1 {
		sb.WriteString("one of ")
	}
	for i, tok := range toks {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(tok.String())
	}
	sb.WriteString(", found ")
	if p.val.Raw != "" {
		sb.WriteString(p.val.Raw)
	} else {
		sb.WriteString(p.tok.String())
	}
	p.error(p.val.Pos, sb.String())
}

// parseObject parses: 'object' STRING '{' 'code' Block [Object] '}'
func (p *parser) parseObject() *ast.Object {
	pos := p.val.Pos
	p.expect(token.OBJECT)
	name := p.expect(token.STRING)
	p.expect(token.LBRACE)
	p.expect(token.CODE)
	body := p.parseBlock()

	obj := &ast.Object{Position: pos, Identifier: name.String, Code: body}
	if p.tok == token.OBJECT {
		obj.Inner = p.parseObject()
	}
	p.expect(token.RBRACE)
	return obj
}

// parseBlock parses: '{' Statement* '}'
func (p *parser) parseBlock() *ast.Block {
	pos := p.expect(token.LBRACE).Pos
	block := &ast.Block{Position: pos}
	for p.tok != token.RBRACE && p.tok != token.EOF {
		block.Stmts = append(block.Stmts, p.parseStatementRecovering())
	}
	p.expect(token.RBRACE)
	return block
}

func (p *parser) parseStatementRecovering() (stmt ast.Stmt) {
	startTok := p.tok
	defer func() {
		if r := recover(); r != nil {
			if r != errPanicMode {
				panic(r)
			}
			pos := p.val.Pos
			stmt = &ast.BadStmt{Position: pos}
			p.resync(startTok)
		}
	}()
	return p.parseStatement()
}

// resync skips tokens until a plausible statement boundary: the closing
// brace of the enclosing block, or EOF. Bounded recovery keeps one bad
// statement from cascading into the rest of the block.
func (p *parser) resync(_ token.Token) {
	for p.tok != token.RBRACE && p.tok != token.EOF {
		p.advance()
	}
}

func (p *parser) parseStatement() ast.Stmt {
	switch p.tok {
	case token.LBRACE:
		return &ast.BlockStmt{Block: p.parseBlock()}
	case token.FUNCTION:
		return p.parseFunctionDefinition()
	case token.LET:
		return p.parseVariableDeclaration()
	case token.IF:
		return p.parseIfConditional()
	case token.SWITCH:
		return p.parseSwitch()
	case token.FOR:
		return p.parseForLoop()
	case token.BREAK:
		pos := p.expect(token.BREAK).Pos
		return &ast.ControlStmt{Position: pos, Kind: ast.Break}
	case token.CONTINUE:
		pos := p.expect(token.CONTINUE).Pos
		return &ast.ControlStmt{Position: pos, Kind: ast.Continue}
	case token.LEAVE:
		pos := p.expect(token.LEAVE).Pos
		return &ast.ControlStmt{Position: pos, Kind: ast.Leave}
	case token.IDENT:
		return p.parseIdentLedStatement()
	default:
		p.errorExpected([]token.Token{token.LBRACE, token.FUNCTION, token.LET, token.IF, token.SWITCH, token.FOR, token.IDENT})
		panic(errPanicMode)
	}
}

// parseIdentLedStatement disambiguates an Assignment from a bare function
// call used as a statement: "name(" is a call, otherwise it is the start of
// an identifier list terminated by ":=".
func (p *parser) parseIdentLedStatement() ast.Stmt {
	pos := p.val.Pos
	first := p.expect(token.IDENT).Raw

	if p.tok == token.LPAREN {
		call := p.parseCallTail(pos, first)
		return &ast.ExprStmt{Call: call}
	}

	names := []string{first}
	for p.accept(token.COMMA) {
		names = append(names, p.expect(token.IDENT).Raw)
	}
	p.expect(token.WALRUS)
	init := p.parseExpression()
	return &ast.Assignment{Position: pos, Bindings: names, Initializer: init}
}

func (p *parser) parseCallTail(pos token.Position, name string) *ast.FunctionCall {
	p.expect(token.LPAREN)
	var args []ast.Expr
	if p.tok != token.RPAREN {
		args = append(args, p.parseExpression())
		for p.accept(token.COMMA) {
			args = append(args, p.parseExpression())
		}
	}
	p.expect(token.RPAREN)
	return &ast.FunctionCall{Position: pos, Name: name, Args: args}
}

// parseTypedIdentList parses: name [: type] (',' name [: type])*
func (p *parser) parseTypedIdentList() []ast.TypedIdent {
	var out []ast.TypedIdent
	out = append(out, p.parseTypedIdent())
	for p.accept(token.COMMA) {
		out = append(out, p.parseTypedIdent())
	}
	return out
}

func (p *parser) parseTypedIdent() ast.TypedIdent {
	name := p.expect(token.IDENT)
	ti := ast.TypedIdent{Name: name.Raw, Position: name.Pos}
	if p.accept(token.COLON) {
		ti.Type = p.parseType()
	}
	return ti
}

func (p *parser) parseType() *token.IntType {
	switch p.tok {
	case token.BOOLTYPE:
		p.advance()
		t := token.IntType{Bits: 1, Signed: false}
		return &t
	case token.INTTYPE:
		t := p.val.IntTy
		p.advance()
		return &t
	default:
		p.errorExpected([]token.Token{token.BOOLTYPE, token.INTTYPE})
		panic(errPanicMode)
	}
}

// parseFunctionDefinition parses:
// 'function' IDENT '(' TypedIdentList? ')' ['->' TypedIdentList] Block
func (p *parser) parseFunctionDefinition() *ast.FunctionDefinition {
	pos := p.expect(token.FUNCTION).Pos
	name := p.expect(token.IDENT).Raw
	p.expect(token.LPAREN)
	var params []ast.TypedIdent
	if p.tok != token.RPAREN {
		params = p.parseTypedIdentList()
	}
	p.expect(token.RPAREN)

	var results []ast.TypedIdent
	if p.accept(token.ARROW) {
		results = p.parseTypedIdentList()
	}
	body := p.parseBlock()
	return &ast.FunctionDefinition{Position: pos, Name: name, Parameters: params, Results: results, Body: body}
}

// parseVariableDeclaration parses: 'let' TypedIdentList [':=' Expression]
func (p *parser) parseVariableDeclaration() *ast.VariableDeclaration {
	pos := p.expect(token.LET).Pos
	bindings := p.parseTypedIdentList()
	var init ast.Expr
	if p.accept(token.WALRUS) {
		init = p.parseExpression()
	}
	return &ast.VariableDeclaration{Position: pos, Bindings: bindings, Initializer: init}
}

// parseIfConditional parses: 'if' Expression Block
func (p *parser) parseIfConditional() *ast.IfConditional {
	pos := p.expect(token.IF).Pos
	cond := p.parseExpression()
	body := p.parseBlock()
	return &ast.IfConditional{Position: pos, Condition: cond, Body: body}
}

// parseSwitch parses: 'switch' Expression Case* [Default]
// where Case = 'case' Literal Block, Default = 'default' Block, and at
// least one of cases or default must be present.
func (p *parser) parseSwitch() *ast.Switch {
	pos := p.expect(token.SWITCH).Pos
	scrutinee := p.parseExpression()
	sw := &ast.Switch{Position: pos, Scrutinee: scrutinee}

	seen := map[interface{}]bool{}
	for p.tok == token.CASE {
		p.advance()
		lit := p.parseLiteral()
		key := literalKey(lit)
		if seen[key] {
			p.error(lit.Position, "duplicate switch case literal")
		}
		seen[key] = true
		body := p.parseBlock()
		sw.Cases = append(sw.Cases, ast.SwitchCase{Literal: lit, Body: body})
	}
	if p.tok == token.DEFAULT {
		p.advance()
		sw.Default = p.parseBlock()
	}
	if len(sw.Cases) == 0 && sw.Default == nil {
		p.error(pos, "switch must have at least one case or a default block")
	}
	return sw
}

func literalKey(lit *ast.Literal) interface{} {
	switch lit.Kind {
	case token.INT:
		return "d:" + lit.Int.String()
	case token.HEX:
		return "0x" + lit.Hex
	case token.STRING:
		return "s:" + lit.Str
	case token.TRUE, token.FALSE:
		return lit.Bool
	default:
		return lit
	}
}

// parseForLoop parses: 'for' Block Expression Block Block
func (p *parser) parseForLoop() *ast.ForLoop {
	pos := p.expect(token.FOR).Pos
	init := p.parseBlock()
	cond := p.parseExpression()
	post := p.parseBlock()
	body := p.parseBlock()
	return &ast.ForLoop{Position: pos, Init: init, Condition: cond, Post: post, Body: body}
}

// parseExpression parses: Literal | IDENT | FunctionCall
func (p *parser) parseExpression() ast.Expr {
	switch p.tok {
	case token.INT, token.HEX, token.STRING, token.TRUE, token.FALSE:
		return p.parseLiteral()
	case token.IDENT:
		pos := p.val.Pos
		name := p.expect(token.IDENT).Raw
		if p.tok == token.LPAREN {
			return p.parseCallTail(pos, name)
		}
		return &ast.Identifier{Position: pos, Name: name}
	default:
		p.errorExpected([]token.Token{token.INT, token.HEX, token.STRING, token.TRUE, token.FALSE, token.IDENT})
		panic(errPanicMode)
	}
}

func (p *parser) parseLiteral() *ast.Literal {
	val := p.val
	tok := p.tok
	p.advance()
	lit := &ast.Literal{Position: val.Pos, Kind: tok}
	switch tok {
	case token.INT:
		lit.Int = val.Int
	case token.HEX:
		lit.Hex = val.Hex
	case token.STRING:
		lit.Str = val.String
	case token.TRUE:
		lit.Bool = true
	case token.FALSE:
		lit.Bool = false
	}
	if p.accept(token.COLON) {
		lit.Type = p.parseType()
	}
	return lit
}
