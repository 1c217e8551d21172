package project

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/mna/cfront/asm/parse"
	irparser "github.com/mna/cfront/ir/parser"
)

// standardJSONInput is the subset of the external compiler's standard-JSON
// output this adapter reads: for each source path, the external compiler
// emits abi plus either irOptimized (structured-IR mode) or
// evm.legacyAssembly (stack-asm mode).
type standardJSONInput struct {
	Errors []struct {
		Severity string `json:"severity"`
	} `json:"errors"`
	Contracts map[string]map[string]struct {
		IROptimized string `json:"irOptimized"`
		EVM         struct {
			LegacyAssembly json.RawMessage `json:"legacyAssembly"`
		} `json:"evm"`
	} `json:"contracts"`
}

// hasFatalErrors reports whether raw's "errors" array contains any entry
// at severity "error", which causes the compiler to pass the original
// output through verbatim without compiling.
func hasFatalErrors(in *standardJSONInput) bool {
	for _, e := range in.Errors {
		if e.Severity == "error" {
			return true
		}
	}
	return false
}

// BuildFromStandardJSON parses the external compiler's standard-JSON
// output into a Project ready for Compile/CompileAll. If raw carries a fatal (severity "error") diagnostic, passthrough
// is true and raw should be forwarded to the caller unchanged rather than
// compiled.
func BuildFromStandardJSON(raw []byte, version string, newBackend NewBackendFunc, libs LibraryTable) (proj *Project, passthrough bool, err error) {
	var in standardJSONInput
	if jerr := json.Unmarshal(raw, &in); jerr != nil {
		return nil, false, fmt.Errorf("project: standard-json: %w", jerr)
	}
	if hasFatalErrors(&in) {
		return nil, true, nil
	}

	proj = New(version, newBackend, libs)

	for srcPath, byName := range in.Contracts {
		for name, c := range byName {
			path := srcPath + ":" + name

			contract := &Contract{Path: path, Identifier: name}
			switch {
			case c.IROptimized != "":
				obj, perr := irparser.ParseObject(path, []byte(c.IROptimized))
				if perr != nil {
					return nil, false, fmt.Errorf("project: %s: %w", path, perr)
				}
				contract.Kind = KindStructuredIR
				contract.IR = obj
				contract.FactoryDependencies = obj.FactoryDependencies

			case len(c.EVM.LegacyAssembly) > 0:
				asmObj, perr := parse.Assembly(c.EVM.LegacyAssembly)
				if perr != nil {
					return nil, false, fmt.Errorf("project: %s: %w", path, perr)
				}
				asmObj.FullPath = path
				contract.Kind = KindStackAsm
				contract.Asm = asmObj
				contract.FactoryDependencies = make([]string, 0, len(asmObj.FactoryDependencies))
				for dep := range asmObj.FactoryDependencies {
					contract.FactoryDependencies = append(contract.FactoryDependencies, dep)
				}
				proj.RegisterAssemblyHash(AssemblyHash(asmObj), path)

			default:
				return nil, false, fmt.Errorf("project: %s: neither irOptimized nor evm.legacyAssembly present", path)
			}

			proj.AddContract(contract)
		}
	}

	return proj, false, nil
}

// PostProcessStandardJSON folds compiled builds back into the original
// standard-JSON document: each contract's evm field becomes
// {"bytecode":{"object":<hex>}}, factory_dependencies becomes its
// hash->path map, and a top-level (per-contract) hash field is set.
// irOptimized is dropped.
func PostProcessStandardJSON(raw []byte, builds map[string]*ContractBuild) ([]byte, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("project: standard-json: %w", err)
	}

	contracts, _ := doc["contracts"].(map[string]any)
	for srcPath, byNameAny := range contracts {
		byName, ok := byNameAny.(map[string]any)
		if !ok {
			continue
		}
		for name, entryAny := range byName {
			entry, ok := entryAny.(map[string]any)
			if !ok {
				continue
			}
			build, ok := builds[srcPath+":"+name]
			if !ok {
				continue
			}
			delete(entry, "irOptimized")
			entry["evm"] = map[string]any{
				"bytecode": map[string]any{
					"object": hex.EncodeToString(build.Build.Bytecode),
				},
			}
			entry["factory_dependencies"] = build.Build.FactoryDependencies
			entry["hash"] = build.Build.Hash
			byName[name] = entry
		}
		contracts[srcPath] = byName
	}
	doc["contracts"] = contracts

	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("project: standard-json: %w", err)
	}
	return out, nil
}
