// Package refbackend is a small in-tree implementation of the
// backend.Context interface: it emits a flat instruction stream per block,
// then walks it with a tiny stack interpreter. It exists to make
// end-to-end scenarios executable in this module's own tests; a
// production backend would instead lower to a real target ISA.
package refbackend

import (
	"fmt"
	"math/big"

	"github.com/mna/cfront/backend"
)

// op is the closed instruction set this reference backend understands.
type op int

const (
	opConst op = iota
	opParam
	opLoad
	opStore
	opAlloca
	opIntrinsic
	opCall
	opNearCall
	opJump
	opBranch
	opReturn
	opUnreachable
)

type instr struct {
	op    op
	args  []int // operand value ids
	aux   string
	nargs int
	dest  *blk
	alt   *blk // branch false-target
	n     int  // alloca size / gep-less slot count
}

type blk struct {
	name  string
	instr []instr
}

func (b *blk) Name() string { return b.name }

type fn struct {
	name       string
	kind       backend.CodeKind
	paramCount int
	resultCnt  int
	nearCall   bool
	blocks     []*blk
	nextVal    int
	consts     map[int]constValue
}

func (f *fn) Name() string { return f.name }

// value is a reference into a function's SSA value table, resolved only at
// execution time (values are produced once the function actually runs).
type value struct {
	backend.ValueBase
	id int
}

// constValue carries an immediate, used for ConstInt results; it
// participates in the same value numbering as computed values.
type constValue struct {
	backend.ValueBase
	id   int
	v    *big.Int
	bits int
}

// Context is the reference backend's per-contract state.
type Context struct {
	funcs      map[string]*fn
	byHandle   map[backend.Func]*fn
	cur        *fn
	curBlk     *blk
	name       string
	storageMap map[string]*big.Int
}

func New(contractName string) *Context {
	return &Context{funcs: map[string]*fn{}, byHandle: map[backend.Func]*fn{}, name: contractName}
}

func (c *Context) DeclareFunction(name string, kind backend.CodeKind, paramCount, resultCount int, isNearCall bool) backend.Func {
	f := &fn{name: name, kind: kind, paramCount: paramCount, resultCnt: resultCount, nearCall: isNearCall}
	c.funcs[name] = f
	c.byHandle[f] = f
	return f
}

func (c *Context) SetFunction(h backend.Func) {
	c.cur = c.byHandle[h]
}

func (c *Context) NewBlock(name string) backend.Block {
	b := &blk{name: name}
	c.cur.blocks = append(c.cur.blocks, b)
	return b
}

func (c *Context) SetBlock(b backend.Block) { c.curBlk = b.(*blk) }

func (c *Context) nextID() int {
	c.cur.nextVal++
	return c.cur.nextVal
}

func (c *Context) emit(in instr) value {
	id := c.nextID()
	in.args = append([]int{id}, in.args...) // [0] is the result id
	c.curBlk.instr = append(c.curBlk.instr, in)
	return value{id: id}
}

func (c *Context) Param(i int) backend.Value {
	return c.emit(instr{op: opParam, n: i})
}

func (c *Context) ConstInt(bits int, signed bool, v *big.Int) backend.Value {
	id := c.nextID()
	cv := constValue{id: id, v: new(big.Int).Set(v), bits: bits}
	c.curBlk.instr = append(c.curBlk.instr, instr{op: opConst, args: []int{id}, n: id})
	c.constants()[id] = cv
	return cv
}

// constants lazily creates the per-function constant pool keyed by value id.
func (f *fn) constantsMap() map[int]constValue {
	if f.consts == nil {
		f.consts = map[int]constValue{}
	}
	return f.consts
}
func (c *Context) constants() map[int]constValue { return c.cur.constantsMap() }

func (c *Context) Alloca(n int) backend.Value {
	return c.emit(instr{op: opAlloca, n: n})
}

func (c *Context) GEP(ptr backend.Value, i int) backend.Value {
	return c.emit(instr{op: opAlloca, args: []int{valID(ptr)}, n: i, aux: "gep"})
}

func (c *Context) Load(ptr backend.Value) backend.Value {
	return c.emit(instr{op: opLoad, args: []int{valID(ptr)}})
}

func (c *Context) Store(ptr, v backend.Value) {
	id := c.nextID()
	c.curBlk.instr = append(c.curBlk.instr, instr{op: opStore, args: []int{id, valID(ptr), valID(v)}})
}

func (c *Context) Intrinsic(name string, args []backend.Value) ([]backend.Value, error) {
	v := c.emit(instr{op: opIntrinsic, aux: name, args: valIDs(args)})
	return []backend.Value{v}, nil
}

func (c *Context) Call(fnH backend.Func, args []backend.Value) []backend.Value {
	v := c.emit(instr{op: opCall, aux: fnH.Name(), args: valIDs(args), nargs: len(args)})
	return []backend.Value{v}
}

func (c *Context) InvokeNearCall(fnH backend.Func, args []backend.Value) []backend.Value {
	v := c.emit(instr{op: opNearCall, aux: fnH.Name(), args: valIDs(args), nargs: len(args)})
	return []backend.Value{v}
}

func (c *Context) Jump(dest backend.Block) {
	c.curBlk.instr = append(c.curBlk.instr, instr{op: opJump, dest: dest.(*blk)})
}

func (c *Context) Branch(cond backend.Value, ifTrue, ifFalse backend.Block) {
	c.curBlk.instr = append(c.curBlk.instr, instr{op: opBranch, args: []int{valID(cond)}, dest: ifTrue.(*blk), alt: ifFalse.(*blk)})
}

func (c *Context) Return(vals ...backend.Value) {
	c.curBlk.instr = append(c.curBlk.instr, instr{op: opReturn, args: valIDs(vals)})
}

func (c *Context) Unreachable() {
	c.curBlk.instr = append(c.curBlk.instr, instr{op: opUnreachable})
}

func valID(v backend.Value) int {
	switch vv := v.(type) {
	case value:
		return vv.id
	case constValue:
		return vv.id
	default:
		panic(fmt.Sprintf("refbackend: unknown value kind %T", v))
	}
}

func valIDs(vs []backend.Value) []int {
	out := make([]int, len(vs))
	for i, v := range vs {
		out[i] = valID(v)
	}
	return out
}

// Build finalizes the program: assembly text is a textual dump of every
// function's blocks, bytecode is the bytes of that same text, and the
// hash is computed over the assembly text: the reference
// backend hashes its own canonical text form rather than a real target
// ISA encoding.
func (c *Context) Build() (backend.Build, error) {
	text := c.dump()
	return backend.Build{
		Bytecode:     []byte(text),
		AssemblyText: text,
		Hash:         contentHash([]byte(text)),
	}, nil
}
