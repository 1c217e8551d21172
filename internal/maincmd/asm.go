package maincmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/mna/cfront/asm/block"
	"github.com/mna/cfront/asm/elaborate"
	"github.com/mna/cfront/asm/model"
	"github.com/mna/cfront/asm/parse"
	"github.com/mna/mainer"
)

func (c *Cmd) Asm(ctx context.Context, stdio mainer.Stdio, args []string) error {
	for _, file := range args {
		if err := ctx.Err(); err != nil {
			return printError(stdio, err)
		}
		raw, err := os.ReadFile(file)
		if err != nil {
			return printError(stdio, err)
		}
		asmObj, err := parse.Assembly(raw)
		if err != nil {
			return printError(stdio, err)
		}

		if err := dumpCode(stdio, "deploy", asmObj.Code); err != nil {
			return err
		}
		if rt, ok := asmObj.Runtime(); ok {
			if err := dumpCode(stdio, "runtime", rt.Code); err != nil {
				return err
			}
		}
	}
	return nil
}

func dumpCode(stdio mainer.Stdio, name string, code []model.Instruction) error {
	built, err := block.Build(code)
	if err != nil {
		return printError(stdio, err)
	}
	fn, err := elaborate.Elaborate(built)
	if err != nil {
		return printError(stdio, err)
	}

	fmt.Fprintf(stdio.Stdout, "%s code (stack size %d):\n", name, fn.StackSize)

	tags := make([]uint64, 0, len(fn.Blocks))
	for tag := range fn.Blocks {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })

	for _, tag := range tags {
		for i, b := range fn.Blocks[tag] {
			fmt.Fprintf(stdio.Stdout, "block_%d/%d: init=%s final=%s term=%s",
				tag, i, formatStack(b.InitialStack), formatStack(b.FinalStack), termName(b.Term))
			if b.Term == block.TermCall {
				fmt.Fprintf(stdio.Stdout, " callee=%d return=%d", b.Dest, b.ReturnTag)
			} else if b.Dest != 0 {
				fmt.Fprintf(stdio.Stdout, " dest=%d", b.Dest)
			}
			if b.Truncated {
				fmt.Fprint(stdio.Stdout, " truncated")
			}
			fmt.Fprintln(stdio.Stdout)
			for _, el := range b.Elements {
				fmt.Fprintf(stdio.Stdout, "  %-16s depth=%d\n", instructionText(el.Instruction), len(el.Stack))
			}
		}
	}
	return nil
}

func instructionText(ins model.Instruction) string {
	if ins.HasValue {
		return ins.Opcode + " " + ins.Value
	}
	return ins.Opcode
}

func formatStack(s elaborate.Stack) string {
	parts := make([]string, len(s))
	for i, el := range s {
		switch el.Kind {
		case elaborate.ElemTag:
			parts[i] = fmt.Sprintf("T%d", el.Tag)
		case elaborate.ElemConstant:
			parts[i] = "0x" + el.Const
		default:
			parts[i] = "V"
		}
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func termName(t block.Terminator) string {
	switch t {
	case block.TermFallthrough:
		return "fallthrough"
	case block.TermJump:
		return "jump"
	case block.TermCondJump:
		return "jumpi"
	case block.TermCall:
		return "call"
	case block.TermReturn:
		return "return"
	default:
		return "exit"
	}
}
