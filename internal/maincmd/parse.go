package maincmd

import (
	"context"
	"os"

	"github.com/mna/cfront/ir/ast"
	"github.com/mna/cfront/ir/parser"
	"github.com/mna/mainer"
)

func (c *Cmd) Parse(ctx context.Context, stdio mainer.Stdio, args []string) error {
	printer := ast.Printer{
		Output:  stdio.Stdout,
		WithPos: c.WithPos,
	}
	for _, file := range args {
		if err := ctx.Err(); err != nil {
			return printError(stdio, err)
		}
		src, err := os.ReadFile(file)
		if err != nil {
			return printError(stdio, err)
		}
		obj, err := parser.ParseObject(file, src)
		if err != nil {
			return printError(stdio, err)
		}
		if err := printer.Print(obj); err != nil {
			return printError(stdio, err)
		}
	}
	return nil
}
