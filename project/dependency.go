package project

import (
	"fmt"
	"strings"

	"github.com/mna/cfront/asm/model"
)

// canonicalIndexWidth is the canonical data-index width: a 256-bit
// (32-byte) field value hex-encoded is 64 digits.
const canonicalIndexWidth = 64

// resolveDataPaths runs the dependency pass over both code sections of a
// stack-asm contract: the deploy listing's data map, and the runtime
// listing's own data map nested under key "0". Each returned table maps a
// left-zero-padded index to the path stored at that index, with the
// all-zero index reserved for the contract's own path; depPaths lists
// every distinct dependency path the pass resolved, for the caller to
// compile and record as factory dependencies.
func (p *Project) resolveDataPaths(asmObj *model.Assembly) (deployPaths, runtimePaths map[string]string, depPaths []string, err error) {
	seen := map[string]bool{}
	collect := func(paths []string) {
		for _, path := range paths {
			if path == asmObj.FullPath || seen[path] {
				continue
			}
			seen[path] = true
			depPaths = append(depPaths, path)
		}
	}

	deployPaths, deps, err := p.dataPass(asmObj, asmObj.FullPath, true)
	if err != nil {
		return nil, nil, nil, err
	}
	collect(deps)

	if rt, ok := asmObj.Runtime(); ok {
		runtimePaths, deps, err = p.dataPass(rt, asmObj.FullPath, false)
		if err != nil {
			return nil, nil, nil, err
		}
		collect(deps)
	}
	return deployPaths, runtimePaths, depPaths, nil
}

// dataPass walks one assembly's data map and replaces every inline
// Assembly entry with a resolved model.DataPath, looking its content hash
// up in the project-wide hashPaths table. Bare content-hash entries are
// recorded as-is: they are already link-time references and resolve no
// further. skipRuntimeKey excludes the "0" entry, which on the deploy
// listing holds the runtime code rather than a dependency.
func (p *Project) dataPass(a *model.Assembly, selfPath string, skipRuntimeKey bool) (map[string]string, []string, error) {
	indexPaths := map[string]string{
		strings.Repeat("0", canonicalIndexWidth): selfPath,
	}
	var depPaths []string
	if a.Data == nil {
		return indexPaths, nil, nil
	}
	for _, key := range a.Data.Keys() {
		if skipRuntimeKey && key == "0" {
			continue
		}
		d, _ := a.Data.Get(key)

		switch d.Kind {
		case model.DataAssembly:
			hash := AssemblyHash(d.Assembly)
			path, ok := p.hashPaths.Get(hash)
			if !ok {
				return nil, nil, fmt.Errorf("data entry %q (hash %s): %w", key, hash, ErrMissingDependency)
			}
			a.Data.Set(key, model.Data{Kind: model.DataPath, Path: path})
			indexPaths[paddedIndex(key)] = path
			depPaths = append(depPaths, path)

		case model.DataHash:
			indexPaths[paddedIndex(key)] = d.Hash

		case model.DataPath:
			indexPaths[paddedIndex(key)] = d.Path
			depPaths = append(depPaths, d.Path)
		}
	}
	return indexPaths, depPaths, nil
}

// paddedIndex left-zero-pads a decimal data-map key to canonicalIndexWidth
// hex digits, matching the external assembler's fixed-width PUSH_Data
// operand encoding.
func paddedIndex(key string) string {
	if len(key) >= canonicalIndexWidth {
		return key
	}
	return strings.Repeat("0", canonicalIndexWidth-len(key)) + key
}
