// Package builtin is the closed enumeration of built-in structured-IR
// operation names, their arities, and the categories the lowering pass
// dispatches on. Names not present in this catalog are
// user-defined function calls.
package builtin

// Category groups built-ins by the kind of backend primitive they lower to.
type Category int

const (
	Arithmetic Category = iota
	Comparison
	Bitwise
	Hashing
	Memory
	Storage
	Immutable
	Calldata
	Code
	ReturnData
	Control
	Logging
	ExternalCall
	Creation
	DeployMeta
	Environment
	Termination
)

// Signature describes a built-in's input and output arity. No catalog
// entry sets Variadic: every built-in, each logN included, has a fixed
// arity.
type Signature struct {
	Name     string
	Category Category
	Inputs   int
	Outputs  int
	Variadic bool // true when Inputs is a minimum, not exact
}

var catalog = buildCatalog()

func buildCatalog() map[string]Signature {
	m := map[string]Signature{}
	add := func(cat Category, ins, outs int, names ...string) {
		for _, n := range names {
			m[n] = Signature{Name: n, Category: cat, Inputs: ins, Outputs: outs}
		}
	}

	add(Arithmetic, 2, 1, "add", "sub", "mul", "div", "sdiv", "mod", "smod", "exp", "signextend")
	add(Arithmetic, 3, 1, "addmod", "mulmod")
	add(Comparison, 2, 1, "lt", "gt", "slt", "sgt", "eq")
	add(Comparison, 1, 1, "iszero")
	add(Bitwise, 2, 1, "and", "or", "xor", "shl", "shr", "sar", "byte")
	add(Bitwise, 1, 1, "not")
	add(Hashing, 2, 1, "keccak256")
	add(Memory, 1, 1, "mload")
	add(Memory, 2, 0, "mstore", "mstore8")
	add(Storage, 1, 1, "sload")
	add(Storage, 2, 0, "sstore")
	add(Immutable, 1, 1, "loadimmutable")
	add(Immutable, 3, 0, "setimmutable")
	add(Calldata, 1, 1, "calldataload")
	add(Calldata, 0, 1, "calldatasize")
	add(Calldata, 3, 0, "calldatacopy")
	add(Code, 0, 1, "codesize")
	add(Code, 3, 0, "codecopy")
	add(Code, 1, 1, "extcodesize", "extcodehash")
	add(Code, 4, 0, "extcodecopy")
	add(ReturnData, 0, 1, "returndatasize")
	add(ReturnData, 3, 0, "returndatacopy")
	add(Control, 2, 0, "return", "revert")
	add(Control, 0, 0, "stop", "invalid")
	add(Logging, 2, 0, "log0")
	add(Logging, 3, 0, "log1")
	add(Logging, 4, 0, "log2")
	add(Logging, 5, 0, "log3")
	add(Logging, 6, 0, "log4")
	add(ExternalCall, 7, 1, "call", "callcode")
	add(ExternalCall, 6, 1, "delegatecall", "staticcall")
	add(Creation, 3, 1, "create")
	add(Creation, 4, 1, "create2")
	add(DeployMeta, 1, 1, "datasize", "dataoffset")
	add(DeployMeta, 3, 0, "datacopy")
	add(DeployMeta, 1, 1, "memoryguard")
	add(DeployMeta, 1, 1, "linkersymbol")
	add(Environment, 0, 1, "address", "caller", "callvalue", "origin", "timestamp", "number", "gas",
		"gaslimit", "chainid", "basefee", "coinbase", "msize", "pc", "gasprice", "difficulty", "selfbalance")
	add(Environment, 1, 1, "balance", "blockhash")
	add(Termination, 1, 0, "selfdestruct")

	return m
}

// Lookup returns the catalog entry for name and whether it exists.
func Lookup(name string) (Signature, bool) {
	sig, ok := catalog[name]
	return sig, ok
}

// IsBuiltin reports whether name is a catalog entry rather than a
// user-defined function.
func IsBuiltin(name string) bool {
	_, ok := catalog[name]
	return ok
}
