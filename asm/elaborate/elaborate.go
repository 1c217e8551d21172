// Package elaborate is the symbolic elaborator. It walks
// the block-builder's flat tag -> Block map with a symbolic stack,
// reconstructing a control-flow graph whose blocks are cloned per distinct
// incoming stack shape (the alternative to SSA phi-nodes),
// recovering function boundaries from the call/return tag pattern, and
// recording per-instruction stack metadata that asm/lower consumes.
//
// The block-cloning worklist turns a graph of blocks into something that
// can be emitted address-by-address, by tracking which (block, stack
// shape) pairs have already been visited.
package elaborate

import (
	"fmt"
	"strings"

	"github.com/mna/cfront/asm/block"
	"github.com/mna/cfront/asm/model"
)

// StackElementKind discriminates the StackElement sum type.
type StackElementKind int

const (
	// ElemValue is an opaque computed value of no further symbolic
	// interest.
	ElemValue StackElementKind = iota
	// ElemTag carries a block tag, recovered through DUP/SWAP/POP and
	// through bitwise masking/shifting so that jump destinations and
	// call/return pairs can be reconstructed.
	ElemTag
	// ElemConstant carries a literal hex payload, as pushed by a PUSH*
	// instruction other than PUSH_Tag.
	ElemConstant
)

// StackElement is one entry of the symbolic Stack.
type StackElement struct {
	Kind  StackElementKind
	Tag   uint64 // ElemTag; 0 means "not a tag"
	Const string // ElemConstant: hex payload
}

func valueElem() StackElement           { return StackElement{Kind: ElemValue} }
func tagElem(t uint64) StackElement     { return StackElement{Kind: ElemTag, Tag: t} }
func constElem(hex string) StackElement { return StackElement{Kind: ElemConstant, Const: hex} }

// Stack is an ordered symbolic stack, top-of-stack at index 0.
type Stack []StackElement

// Hash returns a key identifying the element sequence, used both as the
// elaborator's visited-set key and, by asm/lower, to route a jump to the
// destination clone whose recorded initial stack matches. It is an
// injective rendering, not a digest: fields are delimited by characters
// that cannot occur in a hex payload, so two distinct stacks never
// collide.
func (s Stack) Hash() string {
	var sb strings.Builder
	for _, el := range s {
		fmt.Fprintf(&sb, "%d:%d:%s|", el.Kind, el.Tag, el.Const)
	}
	return sb.String()
}

func (s Stack) clone() Stack {
	out := make(Stack, len(s))
	copy(out, s)
	return out
}

// Element pairs one instruction with the symbolic stack state immediately
// before it executes, which is what asm/lower needs to know
// which materialized slots an instruction's operands live in.
type Element struct {
	Instruction model.Instruction
	Stack       Stack
}

// Block is one clone of a block-builder Block, elaborated against a
// specific incoming stack shape.
type Block struct {
	Tag      uint64
	Elements []Element

	InitialStack Stack
	// PreTermStack is the symbolic stack immediately before the block's
	// terminator executes (i.e. after all of Elements but before any
	// jump/call/return pops its own operands off it). asm/lower uses it to
	// locate a conditional jump's condition value.
	PreTermStack Stack
	FinalStack   Stack
	Predecessors map[uint64]struct{}

	Term      block.Terminator
	Dest      uint64 // resolved jump/call destination, see Elaborate
	ReturnTag uint64

	// FallthroughTag is the untaken-branch destination of a TermCondJump,
	// i.e. the tag of whichever block physically follows this one;
	// HasFallthrough is false for every other terminator.
	FallthroughTag uint64
	HasFallthrough bool

	InitialStackOffset int
	FinalStackOffset   int
	DeepestStackOffset int
	HighestStackSize   int

	// Truncated is set when elaboration failed partway through this block
	// (stack underflow, non-tag where a tag was required): the
	// block is terminated early with a synthetic INVALID and not followed
	// further.
	Truncated bool
}

// Function is the reconstructed per-code-type unit: one
// function per code type (deploy/runtime), with one or more Block clones
// per tag.
type Function struct {
	Blocks    map[uint64][]*Block
	StackSize int
}

// queueItem is one pending (tag, incoming-stack) elaboration request.
type queueItem struct {
	tag         uint64
	predecessor uint64
	hasPred     bool
	stack       Stack
}

// Elaborate runs the symbolic elaboration over the output of
// asm/block.Build.
func Elaborate(built *block.Result) (*Function, error) {
	fn := &Function{Blocks: map[uint64][]*Block{}}
	visited := map[string]*Block{}
	queue := []queueItem{{tag: built.Entry}}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		raw, ok := built.Blocks[item.tag]
		if !ok {
			return nil, fmt.Errorf("asm/elaborate: jump to unknown tag %d", item.tag)
		}

		key := fmt.Sprintf("%d:%s", item.tag, item.stack.Hash())
		if existing, ok := visited[key]; ok {
			if item.hasPred {
				existing.Predecessors[item.predecessor] = struct{}{}
			}
			continue
		}

		clone := &Block{
			Tag:          item.tag,
			InitialStack: item.stack.clone(),
			Predecessors: map[uint64]struct{}{},
		}
		if item.hasPred {
			clone.Predecessors[item.predecessor] = struct{}{}
		}
		visited[key] = clone
		fn.Blocks[item.tag] = append(fn.Blocks[item.tag], clone)

		work := item.stack.clone()
		for _, el := range raw.Elements {
			before := work.clone()
			next, err := step(work, el.Instruction)
			if err != nil {
				clone.Elements = append(clone.Elements, Element{
					Instruction: model.Instruction{Opcode: "INVALID"},
					Stack:       before,
				})
				clone.Term = block.TermExit
				clone.Truncated = true
				work = nil
				break
			}
			clone.Elements = append(clone.Elements, Element{Instruction: el.Instruction, Stack: before})
			work = next
		}

		if clone.Truncated {
			continue
		}
		clone.Term = raw.Term
		clone.PreTermStack = work.clone()
		clone.FinalStack = work.clone()

		switch raw.Term {
		case block.TermFallthrough:
			queue = append(queue, queueItem{tag: raw.Dest, predecessor: item.tag, hasPred: true, stack: work})
			clone.Dest = raw.Dest

		case block.TermJump:
			popped, rest, err := popOne(work)
			dest := raw.Dest
			if err == nil && popped.Kind == ElemTag && popped.Tag != 0 {
				dest = popped.Tag
			}
			clone.Dest = dest
			clone.FinalStack = rest.clone()
			queue = append(queue, queueItem{tag: dest, predecessor: item.tag, hasPred: true, stack: rest})

		case block.TermCondJump:
			// JUMPI pops the destination tag, then the condition. The
			// destination was already resolved structurally by asm/block,
			// but both operands occupy stack slots that must come off.
			popped, afterTag, err := popOne(work)
			dest := raw.Dest
			if err == nil && popped.Kind == ElemTag && popped.Tag != 0 {
				dest = popped.Tag
			}
			clone.Dest = dest
			_, afterCond, err := popOne(afterTag)
			if err != nil {
				afterCond = afterTag
			}
			clone.FinalStack = afterCond.clone()
			queue = append(queue, queueItem{tag: clone.Dest, predecessor: item.tag, hasPred: true, stack: afterCond})
			if next, ok := raw.NextTag(); ok {
				clone.FallthroughTag = next
				clone.HasFallthrough = true
				queue = append(queue, queueItem{tag: next, predecessor: item.tag, hasPred: true, stack: afterCond})
			}

		case block.TermCall:
			clone.Dest = raw.Dest
			clone.ReturnTag = raw.ReturnTag
			// The jump consumes the callee tag; the return tag takes its
			// place on top, where the callee's terminal JUMP [out] will
			// find it.
			rest := work
			if len(rest) > 0 && rest[0].Kind == ElemTag && rest[0].Tag == raw.Dest {
				rest = rest[1:]
			}
			calleeStack := rest.clone()
			if raw.ReturnTag != 0 {
				calleeStack = append(Stack{tagElem(raw.ReturnTag)}, calleeStack...)
			}
			clone.FinalStack = calleeStack.clone()
			queue = append(queue, queueItem{tag: raw.Dest, predecessor: item.tag, hasPred: true, stack: calleeStack})

		case block.TermReturn:
			// JUMP [out] returns control within the same deploy/runtime
			// function to whichever tag is on top of the stack at runtime
			// (the return address the call site pushed); it is
			// not a backend function return.
			popped, rest, err := popOne(work)
			if err == nil && popped.Kind == ElemTag && popped.Tag != 0 {
				clone.Dest = popped.Tag
				queue = append(queue, queueItem{tag: popped.Tag, predecessor: item.tag, hasPred: true, stack: rest})
			}
			clone.FinalStack = rest.clone()

		case block.TermExit:
			// terminal: no successors.
		}
	}

	finalize(fn)
	return fn, nil
}

// popOne pops the top element, returning it and the remaining stack.
func popOne(s Stack) (StackElement, Stack, error) {
	if len(s) == 0 {
		return StackElement{}, s, fmt.Errorf("asm/elaborate: stack underflow")
	}
	return s[0], s[1:], nil
}

// finalize computes, per block, the initial/final stack offsets (depth
// relative to function entry), the deepest offset reached, and the
// function's overall stack size.
func finalize(fn *Function) {
	maxSize := 0
	for _, clones := range fn.Blocks {
		for _, b := range clones {
			b.InitialStackOffset = len(b.InitialStack)
			b.FinalStackOffset = len(b.FinalStack)
			deepest := b.InitialStackOffset
			size := len(b.InitialStack)
			for _, el := range b.Elements {
				if len(el.Stack) > deepest {
					deepest = len(el.Stack)
				}
				if len(el.Stack) > size {
					size = len(el.Stack)
				}
			}
			if len(b.FinalStack) > deepest {
				deepest = len(b.FinalStack)
			}
			// PreTermStack is the depth right before the terminator pops
			// its own operands (e.g. a lone CALLVALUE feeding a JUMPI):
			// that transient slot still needs backing storage even
			// though it is gone by FinalStack.
			if len(b.PreTermStack) > deepest {
				deepest = len(b.PreTermStack)
			}
			if len(b.PreTermStack) > size {
				size = len(b.PreTermStack)
			}
			// a call's pushed return tag can outgrow the pre-terminator
			// depth, and its slot needs backing storage too.
			if len(b.FinalStack) > size {
				size = len(b.FinalStack)
			}
			b.DeepestStackOffset = deepest
			b.HighestStackSize = size
			if size > maxSize {
				maxSize = size
			}
		}
	}
	fn.StackSize = maxSize
}
