package model

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// instructionJSON is the wire shape of Instruction, matching the field
// names the external compiler's legacy-assembly JSON uses.
type instructionJSON struct {
	Name     string `json:"name"`
	Value    string `json:"value,omitempty"`
	JumpType string `json:"jumpType,omitempty"`
}

func (ins Instruction) MarshalJSON() ([]byte, error) {
	w := instructionJSON{Name: ins.Opcode, JumpType: ins.JumpType}
	if ins.HasValue {
		w.Value = ins.Value
	}
	return json.Marshal(w)
}

func (ins *Instruction) UnmarshalJSON(b []byte) error {
	var w instructionJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*ins = Instruction{Opcode: w.Name, Value: w.Value, HasValue: w.Value != "", JumpType: w.JumpType}
	return nil
}

// assemblyJSON is the wire shape of Assembly, minus the ordered Data map
// which is handled by hand in (Un)MarshalJSON below.
type assemblyJSON struct {
	Auxdata             string        `json:"auxdata,omitempty"`
	Code                []Instruction `json:"code"`
	FullPath            string        `json:".full_path,omitempty"`
	FactoryDependencies []string      `json:"factory_dependencies,omitempty"`
}

func (a *Assembly) MarshalJSON() ([]byte, error) {
	w := assemblyJSON{Code: a.Code, FullPath: a.FullPath}
	if len(a.Auxdata) > 0 {
		w.Auxdata = base64.StdEncoding.EncodeToString(a.Auxdata)
	}
	for dep := range a.FactoryDependencies {
		w.FactoryDependencies = append(w.FactoryDependencies, dep)
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	if w.Auxdata != "" {
		buf.WriteString(`"auxdata":`)
		aj, _ := json.Marshal(w.Auxdata)
		buf.Write(aj)
		buf.WriteByte(',')
	}
	buf.WriteString(`"code":`)
	codeJSON, err := json.Marshal(w.Code)
	if err != nil {
		return nil, err
	}
	buf.Write(codeJSON)

	if a.Data.Len() > 0 {
		buf.WriteString(`,"data":{`)
		for i, k := range a.Data.Keys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			v, _ := a.Data.Get(k)
			kj, _ := json.Marshal(k)
			buf.Write(kj)
			buf.WriteByte(':')
			vj, err := marshalData(v)
			if err != nil {
				return nil, err
			}
			buf.Write(vj)
		}
		buf.WriteByte('}')
	}
	writeField(&buf, ".full_path", w.FullPath, w.FullPath != "")
	if len(w.FactoryDependencies) > 0 {
		buf.WriteString(`,"factory_dependencies":`)
		fdj, _ := json.Marshal(w.FactoryDependencies)
		buf.Write(fdj)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeField(buf *bytes.Buffer, name, val string, present bool) {
	if !present {
		return
	}
	if buf.Len() > 1 {
		buf.WriteByte(',')
	}
	nj, _ := json.Marshal(name)
	buf.Write(nj)
	buf.WriteByte(':')
	vj, _ := json.Marshal(val)
	buf.Write(vj)
}

func marshalData(d Data) ([]byte, error) {
	switch d.Kind {
	case DataAssembly:
		return d.Assembly.MarshalJSON()
	case DataHash:
		return json.Marshal(d.Hash)
	case DataPath:
		return json.Marshal(d.Path)
	default:
		return nil, fmt.Errorf("model: unknown data kind %d", d.Kind)
	}
}

// UnmarshalJSON decodes a, preserving the insertion order of the "data"
// object's keys, which requires walking the raw token stream
// instead of relying on encoding/json's unordered map[string]T decoding.
func (a *Assembly) UnmarshalJSON(b []byte) error {
	var raw struct {
		Auxdata             string          `json:"auxdata"`
		Code                []Instruction   `json:"code"`
		Data                json.RawMessage `json:"data"`
		FullPath            string          `json:".full_path"`
		FactoryDependencies []string        `json:"factory_dependencies"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*a = Assembly{
		Code:     raw.Code,
		FullPath: raw.FullPath,
	}
	if raw.Auxdata != "" {
		aux, err := base64.StdEncoding.DecodeString(raw.Auxdata)
		if err != nil {
			return fmt.Errorf("model: invalid auxdata: %w", err)
		}
		a.Auxdata = aux
	}
	if len(raw.FactoryDependencies) > 0 {
		a.FactoryDependencies = make(map[string]struct{}, len(raw.FactoryDependencies))
		for _, dep := range raw.FactoryDependencies {
			a.FactoryDependencies[dep] = struct{}{}
		}
	}
	if len(raw.Data) > 0 {
		dm, err := decodeOrderedData(raw.Data)
		if err != nil {
			return err
		}
		a.Data = dm
	}
	return nil
}

// decodeOrderedData walks the "data" object token-by-token to preserve key
// order, dispatching each value to the Data union member it matches: a
// nested object is an Assembly, a 64-hex-character string is a Hash,
// anything else a Path.
func decodeOrderedData(raw json.RawMessage) (*DataMap, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("model: expected data object, got %v", tok)
	}

	dm := NewDataMap()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("model: expected string data key, got %v", keyTok)
		}

		var rawVal json.RawMessage
		if err := dec.Decode(&rawVal); err != nil {
			return nil, fmt.Errorf("model: data[%q]: %w", key, err)
		}
		d, err := decodeDataValue(rawVal)
		if err != nil {
			return nil, fmt.Errorf("model: data[%q]: %w", key, err)
		}
		dm.Set(key, d)
	}
	if _, err := dec.Token(); err != nil { // closing '}'
		return nil, err
	}
	return dm, nil
}

func decodeDataValue(raw json.RawMessage) (Data, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var asm Assembly
		if err := json.Unmarshal(raw, &asm); err != nil {
			return Data{}, err
		}
		return Data{Kind: DataAssembly, Assembly: &asm}, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return Data{}, fmt.Errorf("expected string or assembly object: %w", err)
	}
	if isHexHash(s) {
		return Data{Kind: DataHash, Hash: s}, nil
	}
	return Data{Kind: DataPath, Path: s}, nil
}

func isHexHash(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
