// Package block splits a flat stack-asm instruction stream into basic
// blocks terminated by jumps, conditional jumps, fall-throughs, returns,
// reverts or tag labels: a run of instructions with jump or conditional
// jump successors, built from an already-linear external listing rather
// than from a freshly-compiled AST.
package block

import (
	"fmt"

	"github.com/mna/cfront/asm/model"
)

// Terminator classifies how a Block ends.
type Terminator int

const (
	// TermFallthrough falls into the next block (Dest) without a jump
	// instruction, emitted when a bare Tag token is encountered while
	// building the current block.
	TermFallthrough Terminator = iota
	// TermJump is an unconditional JUMP with no "[in]" annotation routed to
	// Dest. When no tag was available to
	// supply Dest (the buffer was empty and no annotation was present),
	// Dest is 0 (unknown) and the symbolic elaborator is relied on to
	// supply the true destination from its tracked stack.
	TermJump
	// TermCondJump is a PUSH_Tag t; JUMPI pair: branches to Dest, falls
	// through to the next block otherwise.
	TermCondJump
	// TermCall is a PUSH_Tag callee; PUSH_Tag returnTag; JUMP [in]
	// subsequence: Dest is
	// the callee tag, ReturnTag is the tag execution resumes at.
	TermCall
	// TermReturn is a JUMP annotated "[out]": the function-return jump back
	// to whichever return tag is on top of the stack at runtime.
	TermReturn
	// TermExit is RETURN, REVERT, STOP or INVALID: a side-effectful
	// terminal exit, never followed.
	TermExit
)

// Element is one non-terminator instruction inside a Block, kept verbatim
// from the input stream for the elaborator to interpret symbolically.
type Element struct {
	Instruction model.Instruction
}

// Block is a maximal straight-line run of instructions, as built directly
// from the stack-asm listing, before symbolic elaboration. One Block
// exists per distinct Tag (explicit or synthetic) at this stage; the
// elaborator may later clone it per distinct incoming stack shape.
//
// A Block's Tag is either an explicit Tag instruction's value, or a
// synthetic tag (the fall-through case following a conditional
// jump whose untaken path has no label of its own in the listing) drawn
// from a range disjoint from decimal tag literals so it can never collide
// with a real one.
type Block struct {
	Tag      uint64
	Synth    bool
	Elements []Element

	Term      Terminator
	Dest      uint64 // TermFallthrough / TermJump / TermCondJump / TermCall callee
	ReturnTag uint64 // TermCall only

	// nextBlock is whichever block physically follows this one in the
	// instruction stream, used by the elaborator to resolve a
	// TermCondJump's untaken (fall-through) successor, which has no Dest
	// of its own. Held as a pointer (not a tag value) because the
	// successor's own tag may still be rewritten in place by a later
	// explicit Tag instruction (see Build); resolving through the pointer
	// means that rewrite is always reflected.
	nextBlock *Block
}

// NextTag returns the tag of the block that physically follows b in the
// instruction stream, if any.
func (b *Block) NextTag() (uint64, bool) {
	if b.nextBlock == nil {
		return 0, false
	}
	return b.nextBlock.Tag, true
}

// Result is the per-code-type output of Build: a flat tag -> Block map
// plus the entry tag (always 0).
type Result struct {
	Blocks map[uint64]*Block
	Entry  uint64
}

// syntheticBase starts the synthetic-tag range far above any plausible
// decimal tag literal so Build never has to reconcile a collision.
const syntheticBase = uint64(1) << 62

// tagBuffer holds PUSH_Tag values seen but not yet immediately consumed by
// a JUMP/JUMPI, in push order, so that a later "[in]"-annotated JUMP not
// immediately preceded by its own PUSH_Tag can still resolve a callee
// against "the top-most buffered tag".
type tagBuffer struct {
	tags []uint64
}

func (b *tagBuffer) push(t uint64) { b.tags = append(b.tags, t) }

func (b *tagBuffer) pop() (uint64, bool) {
	if len(b.tags) == 0 {
		return 0, false
	}
	t := b.tags[len(b.tags)-1]
	b.tags = b.tags[:len(b.tags)-1]
	return t, true
}

// builder carries Build's mutable state.
type builder struct {
	res       *Result
	buf       tagBuffer
	cur       *Block
	nextSynth uint64

	// awaitingNext is the most recently finished block still needing its
	// nextBlock field populated with whatever tag comes immediately after it in
	// the stream (set by finish, consumed by the following startBlock).
	awaitingNext *Block
}

func (b *builder) startBlock(tag uint64, synth bool) {
	b.cur = &Block{Tag: tag, Synth: synth}
	if b.awaitingNext != nil {
		b.awaitingNext.nextBlock = b.cur
		b.awaitingNext = nil
	}
}

func (b *builder) startSynthetic() {
	tag := b.nextSynth
	b.nextSynth++
	b.startBlock(tag, true)
}

func (b *builder) finish(term Terminator, dest, ret uint64) {
	b.cur.Term = term
	b.cur.Dest = dest
	b.cur.ReturnTag = ret
	b.res.Blocks[b.cur.Tag] = b.cur
	b.awaitingNext = b.cur
}

// Build walks code and emits Blocks, keyed by tag. An instruction
// sequence with no leading Tag instruction starts block 0 (the entry
// block).
func Build(code []model.Instruction) (*Result, error) {
	b := &builder{
		res:       &Result{Blocks: map[uint64]*Block{}},
		nextSynth: syntheticBase,
	}
	b.startBlock(0, false)

	i := 0
	for i < len(code) {
		ins := code[i]

		switch {
		case ins.IsTag():
			tag, err := parseTag(ins.Value)
			if err != nil {
				return nil, fmt.Errorf("asm/block: %w", err)
			}
			if len(b.cur.Elements) == 0 {
				// Nothing has been emitted into the current (possibly
				// placeholder, possibly synthetic) block yet: just give it
				// its real tag in place.
				b.cur.Tag = tag
				b.cur.Synth = false
			} else {
				// A bare Tag encountered while building another block
				// terminates it as a fall-through to that tag.
				b.finish(TermFallthrough, tag, 0)
				b.startBlock(tag, false)
			}
			i++

		case ins.IsPushTag():
			tagVal, err := parseTag(ins.Value)
			if err != nil {
				return nil, fmt.Errorf("asm/block: %w", err)
			}
			if i+1 < len(code) {
				next := code[i+1]
				if next.Opcode == "JUMP" && next.JumpType == "in" {
					// PUSH_Tag callee ; PUSH_Tag returnTag ; JUMP [in]: the
					// just-pushed tag is the return address, the callee is the
					// top-most previously buffered tag.
					callee, ok := b.buf.pop()
					if !ok {
						callee = 0
					}
					b.finish(TermCall, callee, tagVal)
					b.startSynthetic()
					i += 2
					continue
				}
				if next.Opcode == "JUMPI" {
					// The tag still occupies a stack slot at runtime, so it
					// stays in the element stream for the elaborator.
					b.cur.Elements = append(b.cur.Elements, Element{Instruction: ins})
					b.finish(TermCondJump, tagVal, 0)
					b.startSynthetic()
					i += 2
					continue
				}
			}
			b.buf.push(tagVal)
			b.cur.Elements = append(b.cur.Elements, Element{Instruction: ins})
			i++

		case ins.Opcode == "JUMP":
			switch ins.JumpType {
			case "out":
				b.finish(TermReturn, 0, 0)
			case "in":
				dest, _ := b.buf.pop()
				b.finish(TermCall, dest, 0)
			default:
				dest, ok := b.buf.pop()
				if !ok {
					dest = 0 // unknown, resolved from the symbolic stack
				}
				b.finish(TermJump, dest, 0)
			}
			b.startSynthetic()
			i++

		case ins.Opcode == "JUMPI":
			dest, ok := b.buf.pop()
			if !ok {
				dest = 0
			}
			b.finish(TermCondJump, dest, 0)
			b.startSynthetic()
			i++

		case ins.IsExit():
			b.cur.Elements = append(b.cur.Elements, Element{Instruction: ins})
			b.finish(TermExit, 0, 0)
			b.startSynthetic()
			i++

		default:
			b.cur.Elements = append(b.cur.Elements, Element{Instruction: ins})
			i++
		}
	}

	if len(b.cur.Elements) > 0 || b.cur.Tag == 0 {
		if _, already := b.res.Blocks[b.cur.Tag]; !already {
			// ran out of instructions mid-block: treat as a terminal exit
			// so the final block always closes with an explicit terminator.
			b.finish(TermExit, 0, 0)
		}
	}
	return b.res, nil
}

func parseTag(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	var v uint64
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("invalid tag literal %q", s)
		}
		v = v*10 + uint64(c-'0')
	}
	return v, nil
}
