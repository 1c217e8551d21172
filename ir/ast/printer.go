package ast

import (
	"fmt"
	"io"
	"strings"
)

// Printer controls pretty-printing of an Object's AST: each node is
// printed on its own indented line as "<kind> <detail>", followed by
// " @<pos>" when WithPos is set.
type Printer struct {
	// Output is the io.Writer to print to.
	Output io.Writer
	// WithPos includes each node's source position when true.
	WithPos bool
}

// Print pretty-prints o and any nested runtime object.
func (p *Printer) Print(o *Object) error {
	pp := &printer{w: p.Output, withPos: p.WithPos}
	pp.object(o)
	return pp.err
}

type printer struct {
	w       io.Writer
	withPos bool
	depth   int
	err     error
}

func (p *printer) line(format string, args ...interface{}) {
	if p.err != nil {
		return
	}
	_, err := fmt.Fprintf(p.w, "%s%s\n", strings.Repeat("  ", p.depth), fmt.Sprintf(format, args...))
	if err != nil {
		p.err = err
	}
}

func (p *printer) pos(n Node) string {
	if !p.withPos {
		return ""
	}
	return " @" + n.Pos().String()
}

func (p *printer) object(o *Object) {
	if o == nil {
		return
	}
	p.line("object %s%s", o.Identifier, p.pos(o))
	p.depth++
	p.block(o.Code)
	p.depth--
	if o.Inner != nil {
		p.object(o.Inner)
	}
}

func (p *printer) block(b *Block) {
	if b == nil {
		return
	}
	for _, s := range b.Stmts {
		p.stmt(s)
	}
}

func (p *printer) stmt(s Stmt) {
	switch s := s.(type) {
	case *FunctionDefinition:
		p.line("function %s(%s) -> (%s)%s", s.Name, typedIdentList(s.Parameters), typedIdentList(s.Results), p.pos(s))
		p.depth++
		p.block(s.Body)
		p.depth--
	case *VariableDeclaration:
		p.line("let %s%s", typedIdentList(s.Bindings), p.pos(s))
		if s.Initializer != nil {
			p.depth++
			p.expr(s.Initializer)
			p.depth--
		}
	case *Assignment:
		p.line("assign %s%s", strings.Join(s.Bindings, ", "), p.pos(s))
		p.depth++
		p.expr(s.Initializer)
		p.depth--
	case *IfConditional:
		p.line("if%s", p.pos(s))
		p.depth++
		p.expr(s.Condition)
		p.block(s.Body)
		p.depth--
	case *Switch:
		p.line("switch%s", p.pos(s))
		p.depth++
		p.expr(s.Scrutinee)
		for _, c := range s.Cases {
			p.line("case %s", c.Literal.Text())
			p.depth++
			p.block(c.Body)
			p.depth--
		}
		if s.Default != nil {
			p.line("default")
			p.depth++
			p.block(s.Default)
			p.depth--
		}
		p.depth--
	case *ForLoop:
		p.line("for%s", p.pos(s))
		p.depth++
		p.block(s.Init)
		if s.Condition != nil {
			p.expr(s.Condition)
		}
		p.block(s.Post)
		p.block(s.Body)
		p.depth--
	case *ControlStmt:
		names := [...]string{"continue", "break", "leave"}
		p.line("%s%s", names[s.Kind], p.pos(s))
	case *BlockStmt:
		p.line("block%s", p.pos(s))
		p.depth++
		p.block(s.Block)
		p.depth--
	case *ExprStmt:
		p.expr(s.Call)
	case *BadStmt:
		p.line("<bad>%s", p.pos(s))
	default:
		p.line("<unknown stmt %T>", s)
	}
}

func (p *printer) expr(e Expr) {
	switch e := e.(type) {
	case *Literal:
		p.line("literal %s%s", e.Text(), p.pos(e))
	case *Identifier:
		p.line("ident %s%s", e.Name, p.pos(e))
	case *FunctionCall:
		p.line("call %s%s", e.Name, p.pos(e))
		p.depth++
		for _, a := range e.Args {
			p.expr(a)
		}
		p.depth--
	default:
		p.line("<unknown expr %T>", e)
	}
}

func typedIdentList(ts []TypedIdent) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = fmt.Sprintf("%s:%s", t.Name, t.ResolvedType())
	}
	return strings.Join(parts, ", ")
}
