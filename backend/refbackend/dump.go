package refbackend

import (
	"fmt"
	"sort"
	"strings"
)

// dump renders every declared function in a stable, deterministic order so
// that Build's content hash is reproducible across runs.
func (c *Context) dump() string {
	names := make([]string, 0, len(c.funcs))
	for n := range c.funcs {
		names = append(names, n)
	}
	sort.Strings(names)

	var sb strings.Builder
	fmt.Fprintf(&sb, "; contract %s\n", c.name)
	for _, n := range names {
		f := c.funcs[n]
		fmt.Fprintf(&sb, "function %s params=%d results=%d nearcall=%v\n", f.name, f.paramCount, f.resultCnt, f.nearCall)
		for _, b := range f.blocks {
			fmt.Fprintf(&sb, "  block %s:\n", b.name)
			for _, in := range b.instr {
				fmt.Fprintf(&sb, "    %s\n", dumpInstr(in, f))
			}
		}
	}
	return sb.String()
}

func dumpInstr(in instr, f *fn) string {
	switch in.op {
	case opConst:
		return fmt.Sprintf("v%d = const %s", in.args[0], f.consts[in.n].v.String())
	case opParam:
		return fmt.Sprintf("v%d = param[%d]", in.args[0], in.n)
	case opAlloca:
		if in.aux == "gep" {
			return fmt.Sprintf("v%d = gep v%d, %d", in.args[0], in.args[1], in.n)
		}
		return fmt.Sprintf("v%d = alloca %d", in.args[0], in.n)
	case opLoad:
		return fmt.Sprintf("v%d = load v%d", in.args[0], in.args[1])
	case opStore:
		return fmt.Sprintf("store v%d, v%d", in.args[1], in.args[2])
	case opIntrinsic:
		return fmt.Sprintf("v%d = %s(%s)", in.args[0], in.aux, joinArgs(in.args[1:]))
	case opCall:
		return fmt.Sprintf("v%d = call %s(%s)", in.args[0], in.aux, joinArgs(in.args[1:]))
	case opNearCall:
		return fmt.Sprintf("v%d = nearcall %s(%s)", in.args[0], in.aux, joinArgs(in.args[1:]))
	case opJump:
		return fmt.Sprintf("jump %s", in.dest.name)
	case opBranch:
		return fmt.Sprintf("branch v%d, %s, %s", in.args[0], in.dest.name, in.alt.name)
	case opReturn:
		return fmt.Sprintf("return %s", joinArgs(in.args))
	case opUnreachable:
		return "unreachable"
	default:
		return "?"
	}
}

func joinArgs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("v%d", id)
	}
	return strings.Join(parts, ", ")
}
