package project

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"sort"

	"golang.org/x/crypto/sha3"

	"github.com/mna/cfront/asm/model"
)

// AssemblyHash is the content hash of a stack-asm listing: the keccak256
// of its canonical JSON serialization (fixed field order, insertion-ordered
// data map). It is what the dependency pass looks up, keyed independently
// of the final backend.Build.Hash a contract's own compiled bytecode gets
// (see DESIGN.md).
func AssemblyHash(a *model.Assembly) string {
	h := sha3.NewLegacyKeccak256()
	h.Write(canonicalAssemblyJSON(a))
	return hex.EncodeToString(h.Sum(nil))
}

// canonicalAssemblyJSON renders a the same way on every call: fixed field
// order, and the data map in its recorded insertion order rather than
// whatever order a Go map would range over.
func canonicalAssemblyJSON(a *model.Assembly) []byte {
	var buf bytes.Buffer
	buf.WriteByte('{')

	buf.WriteString(`"auxdata":`)
	writeJSONString(&buf, hex.EncodeToString(a.Auxdata))

	buf.WriteString(`,"code":[`)
	for i, ins := range a.Code {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		buf.WriteString(`"opcode":`)
		writeJSONString(&buf, ins.Opcode)
		buf.WriteString(`,"value":`)
		writeJSONString(&buf, ins.Value)
		buf.WriteString(`,"jumpType":`)
		writeJSONString(&buf, ins.JumpType)
		buf.WriteByte('}')
	}
	buf.WriteByte(']')

	buf.WriteString(`,"data":{`)
	for i, key := range a.Data.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		d, _ := a.Data.Get(key)
		writeJSONString(&buf, key)
		buf.WriteByte(':')
		switch d.Kind {
		case model.DataAssembly:
			buf.Write(canonicalAssemblyJSON(d.Assembly))
		case model.DataHash:
			writeJSONString(&buf, d.Hash)
		case model.DataPath:
			writeJSONString(&buf, d.Path)
		}
	}
	buf.WriteByte('}')

	buf.WriteString(`,"fullPath":`)
	writeJSONString(&buf, a.FullPath)

	buf.WriteString(`,"factoryDependencies":[`)
	deps := make([]string, 0, len(a.FactoryDependencies))
	for dep := range a.FactoryDependencies {
		deps = append(deps, dep)
	}
	sort.Strings(deps)
	for i, dep := range deps {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeJSONString(&buf, dep)
	}
	buf.WriteByte(']')

	buf.WriteByte('}')
	return buf.Bytes()
}

func writeJSONString(buf *bytes.Buffer, s string) {
	b, _ := json.Marshal(s)
	buf.Write(b)
}
