// Package model is the stack-asm data model: the instruction
// stream plus the nested data section a stack-asm listing carries for a
// single contract. The model carries no parsing or elaboration logic of
// its own; asm/parse produces it and asm/block consumes it.
package model

// Instruction is one stack-asm opcode, optionally carrying a value: a decimal tag number for PUSH_Tag/Tag, a hex payload for PUSH*, an
// object identifier for PUSH_Data, or a symbolic name for PUSHLIB,
// PUSH_ContractHash[Size] and ASSIGNIMMUTABLE. JumpType carries the "[in]"
// / "[out]" annotation the external assembler attaches to JUMP.
type Instruction struct {
	Opcode   string
	Value    string
	HasValue bool
	JumpType string // "in", "out", or "" when absent
}

// IsPushTag reports whether ins pushes a block tag.
func (ins Instruction) IsPushTag() bool { return ins.Opcode == "PUSH_Tag" }

// IsTag reports whether ins is a tag label starting a new block.
func (ins Instruction) IsTag() bool { return ins.Opcode == "tag" || ins.Opcode == "Tag" }

// IsPush reports whether ins is any push-family opcode (PUSH, PUSH1..32,
// PUSH_Tag, PUSH_Data, PUSHLIB, PUSH_ContractHash, PUSH_ContractHashSize,
// and the like).
func (ins Instruction) IsPush() bool {
	return len(ins.Opcode) >= 4 && ins.Opcode[:4] == "PUSH"
}

// IsExit reports whether ins unconditionally ends execution of the current
// call frame.
func (ins Instruction) IsExit() bool {
	switch ins.Opcode {
	case "RETURN", "REVERT", "STOP", "INVALID":
		return true
	default:
		return false
	}
}

// DataKind discriminates the Data tagged union.
type DataKind int

const (
	// DataAssembly holds a nested Assembly (a factory dependency still
	// inline, before the dependency pass replaces it with a Path).
	DataAssembly DataKind = iota
	// DataHash holds a 64-hex-character content hash.
	DataHash
	// DataPath holds a resolved on-disk or logical path, set during the
	// dependency-resolution pass.
	DataPath
)

// Data is the tagged union stored in Assembly.Data's values.
type Data struct {
	Kind     DataKind
	Assembly *Assembly
	Hash     string
	Path     string
}

// DataMap is an insertion-ordered string-keyed map. The data section's key
// order is significant for content hashing. encoding/json's map[string]V
// does not guarantee order on decode, so the stack-asm parser (asm/parse)
// builds this explicitly from the JSON token stream instead.
type DataMap struct {
	keys []string
	vals map[string]Data
}

// NewDataMap returns an empty ordered map.
func NewDataMap() *DataMap {
	return &DataMap{vals: map[string]Data{}}
}

// Set inserts or overwrites the value for k, appending k to the key order
// only the first time it is seen.
func (m *DataMap) Set(k string, v Data) {
	if _, ok := m.vals[k]; !ok {
		m.keys = append(m.keys, k)
	}
	m.vals[k] = v
}

// Get returns the value stored for k.
func (m *DataMap) Get(k string) (Data, bool) {
	if m == nil {
		return Data{}, false
	}
	v, ok := m.vals[k]
	return v, ok
}

// Keys returns the keys in insertion order.
func (m *DataMap) Keys() []string {
	if m == nil {
		return nil
	}
	return m.keys
}

// Len returns the number of entries.
func (m *DataMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Assembly is one compiled unit of stack-asm: either a whole contract's
// deploy-code listing (with the runtime listing nested at Data["0"]) or,
// recursively, a factory dependency's listing.
type Assembly struct {
	Auxdata             []byte
	Code                []Instruction
	Data                *DataMap
	FullPath            string
	FactoryDependencies map[string]struct{}
}

// Runtime returns the nested runtime-code Assembly stored at the
// conventional key "0", if present. The top-level data section always
// stores the runtime listing under that key.
func (a *Assembly) Runtime() (*Assembly, bool) {
	if a == nil || a.Data == nil {
		return nil, false
	}
	d, ok := a.Data.Get("0")
	if !ok || d.Kind != DataAssembly {
		return nil, false
	}
	return d.Assembly, true
}
