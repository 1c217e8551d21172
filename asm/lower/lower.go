// Package lower emits backend IR from an elaborated stack-asm function.
// It materializes the elaborator's symbolic stack as a fixed bank of
// backend-level slots serving as the function's local stack, and declares
// one backend basic block per Block clone, routing jumps to the clone
// whose recorded initial stack hash matches the outgoing stack.
//
// Using memory slots instead of passing SSA values directly between
// blocks sidesteps needing phi nodes across the elaborator's cloned
// blocks.
package lower

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/mna/cfront/asm/block"
	"github.com/mna/cfront/asm/elaborate"
	"github.com/mna/cfront/asm/model"
	"github.com/mna/cfront/backend"
)

// Resolver supplies the symbolic-operand tables a listing may reference.
// A nil Resolver (or a nil field) makes the corresponding opcode an error,
// since the value it pushes cannot be materialized without the table.
type Resolver struct {
	// DataPaths maps a canonical (left-zero-padded, 64-hex-digit) data
	// index to the path of the contract stored at that index, consulted
	// for PUSH_Data operands.
	DataPaths map[string]string
	// Library resolves a "file:name" reference to its 40-hex-digit
	// address, consulted for PUSHLIB operands.
	Library func(ref string) (string, error)
}

// Function lowers an elaborated stack-asm function into ctx under the
// given code kind and function name. res may be nil when the listing
// carries no symbolic PUSHLIB/PUSH_Data operands.
func Function(ctx backend.Context, kind backend.CodeKind, name string, fn *elaborate.Function, res *Resolver) error {
	l := &lowering{ctx: ctx, fn: fn, res: res, handles: map[uint64]map[string]backend.Block{}}

	bfn := ctx.DeclareFunction(name, kind, 0, 0, false)
	ctx.SetFunction(bfn)

	// Declare every clone's backend block up front so any instruction can
	// reference a not-yet-emitted successor by handle.
	for tag, clones := range fn.Blocks {
		for idx, clone := range clones {
			h := ctx.NewBlock(fmt.Sprintf("block_%d/%d", tag, idx))
			bucket := l.handles[tag]
			if bucket == nil {
				bucket = map[string]backend.Block{}
				l.handles[tag] = bucket
			}
			bucket[clone.InitialStack.Hash()] = h
			l.clones = append(l.clones, clone)
		}
	}

	l.slots = make([]backend.Value, fn.StackSize)
	entry, ok := l.blockFor(0, emptyStackHash)
	if !ok {
		// tag 0 may have a non-empty entry shape in degenerate inputs; fall
		// back to whichever single clone owns tag 0.
		if bucket := l.handles[0]; len(bucket) == 1 {
			for _, h := range bucket {
				entry = h
			}
		} else {
			return fmt.Errorf("asm/lower: no entry clone for tag 0")
		}
	}
	ctx.SetBlock(entry)
	for i := range l.slots {
		l.slots[i] = ctx.Alloca(1)
	}

	for _, clone := range l.clones {
		h, ok := l.blockFor(clone.Tag, clone.InitialStack.Hash())
		if !ok {
			return fmt.Errorf("asm/lower: missing block handle for tag %d", clone.Tag)
		}
		ctx.SetBlock(h)
		if err := l.emitBlock(clone); err != nil {
			return err
		}
	}
	return nil
}

var emptyStackHash = elaborate.Stack(nil).Hash()

type lowering struct {
	ctx     backend.Context
	fn      *elaborate.Function
	res     *Resolver
	slots   []backend.Value
	handles map[uint64]map[string]backend.Block // tag -> initial-stack-hash -> block
	clones  []*elaborate.Block
}

func (l *lowering) blockFor(tag uint64, hash string) (backend.Block, bool) {
	bucket := l.handles[tag]
	if bucket == nil {
		return nil, false
	}
	h, ok := bucket[hash]
	return h, ok
}

// slot returns the backend storage cell for symbolic stack depth d
// (0 = bottom of the function's stack).
func (l *lowering) slot(d int) (backend.Value, error) {
	if d < 0 || d >= len(l.slots) {
		return nil, fmt.Errorf("asm/lower: stack slot %d out of range (size %d)", d, len(l.slots))
	}
	return l.slots[d], nil
}

// emitBlock emits b's instructions, then its terminator.
func (l *lowering) emitBlock(b *elaborate.Block) error {
	if b.Truncated {
		l.ctx.Unreachable()
		return nil
	}

	for _, el := range b.Elements {
		if err := l.emitElement(el); err != nil {
			return err
		}
	}
	return l.emitTerminator(b)
}

// emitElement pops el's operands from the slots indexed by its
// pre-instruction stack depth, issues the backend intrinsic, and pushes
// results back.
func (l *lowering) emitElement(el elaborate.Element) error {
	ins := el.Instruction
	depth := len(el.Stack)

	switch {
	case ins.IsPushTag():
		v, err := l.slot(depth)
		if err != nil {
			return err
		}
		tag, _ := parseDecimal(ins.Value)
		l.ctx.Store(v, l.ctx.ConstInt(256, false, big.NewInt(int64(tag))))
		return nil

	case ins.Opcode == "PUSHLIB":
		v, err := l.slot(depth)
		if err != nil {
			return err
		}
		if l.res == nil || l.res.Library == nil {
			return fmt.Errorf("asm/lower: PUSHLIB %q: no library table", ins.Value)
		}
		addr, err := l.res.Library(ins.Value)
		if err != nil {
			return err
		}
		n, ok := new(big.Int).SetString(addr, 16)
		if !ok {
			return fmt.Errorf("asm/lower: PUSHLIB %q: bad address %q", ins.Value, addr)
		}
		l.ctx.Store(v, l.ctx.ConstInt(256, false, n))
		return nil

	case ins.Opcode == "PUSH_Data":
		v, err := l.slot(depth)
		if err != nil {
			return err
		}
		if l.res == nil || l.res.DataPaths == nil {
			return fmt.Errorf("asm/lower: PUSH_Data %q: no data-path table", ins.Value)
		}
		if _, ok := l.res.DataPaths[padIndex(ins.Value)]; !ok {
			return fmt.Errorf("asm/lower: PUSH_Data %q: unresolved data index", ins.Value)
		}
		// The final value (the dependency's offset in the produced
		// artifact) is only known to the backend at link time.
		results, err := l.ctx.Intrinsic("dataoffset", nil)
		if err != nil {
			return fmt.Errorf("asm/lower: PUSH_Data %q: %w", ins.Value, err)
		}
		l.ctx.Store(v, results[0])
		return nil

	case ins.Opcode == "PUSH_ContractHash" || ins.Opcode == "PUSH_ContractHashSize":
		v, err := l.slot(depth)
		if err != nil {
			return err
		}
		// The referenced contract's build hash is not known until it has
		// itself been compiled; the backend patches the value in.
		intrin := "contracthash"
		if ins.Opcode == "PUSH_ContractHashSize" {
			intrin = "contracthashsize"
		}
		results, err := l.ctx.Intrinsic(intrin, nil)
		if err != nil {
			return fmt.Errorf("asm/lower: %s %q: %w", ins.Opcode, ins.Value, err)
		}
		l.ctx.Store(v, results[0])
		return nil

	case ins.IsPush():
		v, err := l.slot(depth)
		if err != nil {
			return err
		}
		n := new(big.Int)
		if ins.Value != "" {
			n.SetString(ins.Value, 16)
		}
		l.ctx.Store(v, l.ctx.ConstInt(256, false, n))
		return nil

	case strings.HasPrefix(ins.Opcode, "DUP"):
		k, err := opSuffix(ins.Opcode, "DUP")
		if err != nil {
			return err
		}
		src, err := l.slot(depth - k)
		if err != nil {
			return err
		}
		dst, err := l.slot(depth)
		if err != nil {
			return err
		}
		l.ctx.Store(dst, l.ctx.Load(src))
		return nil

	case strings.HasPrefix(ins.Opcode, "SWAP"):
		k, err := opSuffix(ins.Opcode, "SWAP")
		if err != nil {
			return err
		}
		top, err := l.slot(depth - 1)
		if err != nil {
			return err
		}
		other, err := l.slot(depth - 1 - k)
		if err != nil {
			return err
		}
		tv, ov := l.ctx.Load(top), l.ctx.Load(other)
		l.ctx.Store(top, ov)
		l.ctx.Store(other, tv)
		return nil

	case ins.Opcode == "POP":
		return nil

	case ins.IsExit():
		return l.emitExit(ins)

	default:
		return l.emitIntrinsic(ins, depth)
	}
}

// emitIntrinsic dispatches a generic opcode to backend.Intrinsic, using
// the same arity table the elaborator uses to decide how many operands to
// load and how many results to store.
func (l *lowering) emitIntrinsic(ins model.Instruction, depth int) error {
	ar, ok := elaborate.Arity[ins.Opcode]
	if !ok {
		return fmt.Errorf("asm/lower: unknown opcode %s", ins.Opcode)
	}
	inputs, outputs := ar[0], ar[1]

	args := make([]backend.Value, inputs)
	for k := 0; k < inputs; k++ {
		src, err := l.slot(depth - 1 - k)
		if err != nil {
			return err
		}
		args[k] = l.ctx.Load(src)
	}

	results, err := l.ctx.Intrinsic(strings.ToLower(ins.Opcode), args)
	if err != nil {
		return fmt.Errorf("asm/lower: %s: %w", ins.Opcode, err)
	}
	for k := 0; k < outputs && k < len(results); k++ {
		dst, err := l.slot(depth - inputs + k)
		if err != nil {
			return err
		}
		l.ctx.Store(dst, results[k])
	}
	return nil
}

func (l *lowering) emitExit(ins model.Instruction) error {
	switch ins.Opcode {
	case "STOP":
		l.ctx.Return()
	case "INVALID":
		l.ctx.Unreachable()
	case "RETURN", "REVERT":
		if _, err := l.ctx.Intrinsic(strings.ToLower(ins.Opcode), nil); err != nil {
			return fmt.Errorf("asm/lower: %s: %w", ins.Opcode, err)
		}
		l.ctx.Return()
	default:
		return fmt.Errorf("asm/lower: unhandled exit opcode %s", ins.Opcode)
	}
	return nil
}

func (l *lowering) emitTerminator(b *elaborate.Block) error {
	switch b.Term {
	case block.TermFallthrough, block.TermJump:
		dest, ok := l.blockFor(b.Dest, b.FinalStack.Hash())
		if !ok {
			return fmt.Errorf("asm/lower: no clone of tag %d matches outgoing stack", b.Dest)
		}
		l.ctx.Jump(dest)
		return nil

	case block.TermCondJump:
		// PreTermStack is [tag, cond, ...]: JUMPI pops the destination
		// tag (already routed structurally) then the condition, which
		// occupies depth len(PreTermStack)-2.
		condDepth := len(b.PreTermStack) - 2
		if condDepth < 0 {
			return fmt.Errorf("asm/lower: conditional jump with insufficient stack depth")
		}
		condSlot, err := l.slot(condDepth)
		if err != nil {
			return err
		}
		cond := l.ctx.Load(condSlot)

		taken, ok := l.blockFor(b.Dest, b.FinalStack.Hash())
		if !ok {
			return fmt.Errorf("asm/lower: no clone of tag %d matches outgoing stack", b.Dest)
		}
		untaken := taken
		if b.HasFallthrough {
			if h, ok := l.blockFor(b.FallthroughTag, b.FinalStack.Hash()); ok {
				untaken = h
			}
		}
		l.ctx.Branch(cond, taken, untaken)
		return nil

	case block.TermCall:
		// The return tag replaces the consumed callee tag on top of the
		// caller's stack; that slot has to actually hold the value, since
		// the callee's JUMP [out] will later load it back out. A bare
		// JUMP [in] has no return tag to materialize.
		if b.ReturnTag != 0 {
			retSlot, err := l.slot(len(b.FinalStack) - 1)
			if err != nil {
				return err
			}
			l.ctx.Store(retSlot, l.ctx.ConstInt(256, false, big.NewInt(int64(b.ReturnTag))))
		}

		callee, ok := l.blockFor(b.Dest, b.FinalStack.Hash())
		if !ok {
			return fmt.Errorf("asm/lower: no clone of callee tag %d matches call stack", b.Dest)
		}
		l.ctx.Jump(callee)
		return nil

	case block.TermReturn:
		// JUMP [out] resumes the caller at the return tag it pushed; it
		// does not end the deploy/runtime function itself.
		// b.Dest is 0 when the elaborator could not resolve the popped
		// element to a tag, which only happens for malformed input.
		dest, ok := l.blockFor(b.Dest, b.FinalStack.Hash())
		if !ok {
			return fmt.Errorf("asm/lower: unresolved return to tag %d", b.Dest)
		}
		l.ctx.Jump(dest)
		return nil

	case block.TermExit:
		return nil

	default:
		return fmt.Errorf("asm/lower: unhandled terminator %v", b.Term)
	}
}

// padIndex left-zero-pads a decimal data-index string to the canonical
// 64-hex-digit width the dependency pass records entries under.
func padIndex(s string) string {
	const width = 64
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

func parseDecimal(s string) (uint64, bool) {
	var v uint64
	if s == "" {
		return 0, false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		v = v*10 + uint64(c-'0')
	}
	return v, true
}

func opSuffix(opcode, prefix string) (int, error) {
	var n int
	suffix := strings.TrimPrefix(opcode, prefix)
	if suffix == "" {
		return 0, fmt.Errorf("asm/lower: invalid opcode %s", opcode)
	}
	for _, c := range suffix {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("asm/lower: invalid opcode %s", opcode)
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}
