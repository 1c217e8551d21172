package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/cfront/ir/lexer"
	"github.com/mna/mainer"
)

func (c *Cmd) Tokenize(ctx context.Context, stdio mainer.Stdio, args []string) error {
	for _, file := range args {
		if err := ctx.Err(); err != nil {
			return printError(stdio, err)
		}
		src, err := os.ReadFile(file)
		if err != nil {
			return printError(stdio, err)
		}
		toks, err := lexer.ScanAll(file, src)
		for _, tok := range toks {
			fmt.Fprintf(stdio.Stdout, "%s: %s", tok.Value.Pos, tok.Token)
			if tok.Value.Raw != "" && tok.Value.Raw != tok.Token.String() {
				fmt.Fprintf(stdio.Stdout, " %s", tok.Value.Raw)
			}
			fmt.Fprintln(stdio.Stdout)
		}
		if err != nil {
			return printError(stdio, err)
		}
	}
	return nil
}
