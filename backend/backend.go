// Package backend declares the opaque target-machine IR builder that the
// structured-IR and stack-asm lowering passes (ir/lower, asm/lower) target.
// The real backend (integer/pointer arithmetic, basic-block
// construction, memory/storage/calldata primitives, and final bytecode
// production) is an external collaborator; only its interface is
// declared here. backend/refbackend provides an in-tree implementation
// used by this module's own tests.
package backend

import "math/big"

// Value is an opaque backend-level SSA value (a register, constant or
// pointer).
type Value interface {
	isValue()
}

// ValueBase must be embedded by external implementations of Value: isValue
// is unexported so the method can only be defined here, in this package.
type ValueBase struct{}

func (ValueBase) isValue() {}

// Block is an opaque basic block handle.
type Block interface {
	Name() string
}

// Func is an opaque function handle.
type Func interface {
	Name() string
}

// Build is the final artifact produced once a contract's code has been
// fully lowered: bytecode, textual assembly, and a content hash.
type Build struct {
	Bytecode     []byte
	AssemblyText string
	Hash         string // hex-encoded content hash
}

// CodeKind distinguishes a contract's deploy code from its runtime code
//.
type CodeKind int

const (
	Deploy CodeKind = iota
	Runtime
)

// Context is the per-contract backend context. One Context is constructed
// per contract compilation and never shared between goroutines.
type Context interface {
	// DeclareFunction declares a function with the given parameter and
	// result counts and returns its handle. isNearCall marks a function
	// invoked through the near-call convention.
	DeclareFunction(name string, kind CodeKind, paramCount, resultCount int, isNearCall bool) Func

	// SetFunction selects the function subsequently built against by
	// NewBlock/SetBlock/emit calls.
	SetFunction(fn Func)

	// NewBlock creates a new, not yet positioned basic block in the current
	// function.
	NewBlock(name string) Block

	// SetBlock selects the block that subsequent Emit* calls append to.
	SetBlock(b Block)

	// Param returns the value of the i-th parameter of the current
	// function.
	Param(i int) Value

	// ConstInt materializes an integer constant of the given bit width.
	ConstInt(bits int, signed bool, v *big.Int) Value

	// Alloca reserves a stack slot holding n words, returning a pointer
	// value. Used both for ordinary local bindings and for the
	// hidden-pointer multi-return convention.
	Alloca(n int) Value

	// GEP indexes into a pointer value previously returned by Alloca,
	// selecting the i-th word.
	GEP(ptr Value, i int) Value

	Load(ptr Value) Value
	Store(ptr Value, v Value)

	// Intrinsic dispatches a built-in operation by name
	// against args, returning its results (0 or 1 values: every built-in in
	// the catalog, the call family included, has at most one output).
	Intrinsic(name string, args []Value) ([]Value, error)

	// Call invokes fn with args using the standard calling convention.
	Call(fn Func, args []Value) []Value

	// InvokeNearCall invokes fn wrapped in a landing pad that recovers
	// control to the caller on an internal exception (the
	// zkSyncNearCall_ convention).
	InvokeNearCall(fn Func, args []Value) []Value

	// Jump unconditionally branches the current block to dest.
	Jump(dest Block)

	// Branch conditionally branches to ifTrue when cond is non-zero,
	// otherwise to ifFalse.
	Branch(cond Value, ifTrue, ifFalse Block)

	// Return emits a function return with the given values.
	Return(vals ...Value)

	// Unreachable marks the current block as not returning normally
	// (used to terminate a block truncated by an elaboration error).
	Unreachable()

	// Build finalizes all declared functions into a Build artifact.
	Build() (Build, error)
}
