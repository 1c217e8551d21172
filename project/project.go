// Package project is the project orchestrator: it holds a set of named
// contracts addressed by path,
// drives their compilation through the Source/Waiter/Build state machine,
// lowers each one through the structured-IR or stack-asm front end
// and attaches factory-dependency hashes, and adapts to/from the
// external compiler's standard-JSON and combined-JSON wire formats.
package project

import (
	"sync"

	"github.com/dolthub/swiss"

	"github.com/mna/cfront/asm/model"
	"github.com/mna/cfront/backend"
	"github.com/mna/cfront/ir/ast"
)

// SourceKind distinguishes which front end a Contract must be lowered
// through.
type SourceKind int

const (
	// KindStructuredIR contracts lower through ir/lower.
	KindStructuredIR SourceKind = iota
	// KindStackAsm contracts lower through asm/block, asm/elaborate and
	// asm/lower.
	KindStackAsm
)

// Contract is a project contract before compilation: the Source state
// payload.
type Contract struct {
	// Path is the contract's fully-qualified path, e.g. "file.sol:Name";
	// it is the key contracts are addressed by everywhere in the project.
	Path string
	// Identifier is the contract's short name as referenced by other
	// contracts' factory-dependency lists.
	Identifier string

	Kind SourceKind
	IR   *ast.Object     // set when Kind == KindStructuredIR
	Asm  *model.Assembly // set when Kind == KindStackAsm

	// FactoryDependencies are the other contracts' Identifiers this one
	// references via create/create2.
	FactoryDependencies []string
}

// BuildResult is the backend artifact
// plus the resolved factory-dependency hash -> path map.
type BuildResult struct {
	Bytecode            []byte
	AssemblyText        string
	Hash                string
	FactoryDependencies map[string]string // build hash -> path
	// DataPaths is the data-index -> path table for stack-asm contracts
	// (nil for structured-IR contracts, which have no data map).
	DataPaths map[string]string
}

// ContractBuild is a fully compiled contract.
type ContractBuild struct {
	Path       string
	Identifier string
	Build      BuildResult
}

// NewBackendFunc constructs a fresh, per-contract backend.Context.
// Backend contexts are never shared: each goroutine owns one for the
// duration of one contract's compilation.
type NewBackendFunc func(contractName string) backend.Context

// Project is the shared compilation unit. identifierPaths and
// libraries are read-only once construction (AddContract calls) is done;
// contracts is the only mutable shared state and is always mutated under
// mu.
type Project struct {
	Version string

	// NewBackend constructs a fresh backend.Context per contract
	// compilation. Must be set before Compile/CompileAll is called.
	NewBackend NewBackendFunc

	mu        sync.Mutex
	contracts map[string]contractState

	identifierPaths *swiss.Map[string, string]
	// hashPaths maps a nested stack-asm Assembly's content hash
	// to the path of the contract it belongs to, for the dependency
	// pass. It is populated once at project-construction time (every
	// contract's own top-level hash is computable from its parsed
	// Assembly without waiting on compilation order), so — unlike
	// contracts — it never changes after New/AddContract and needs no
	// lock.
	hashPaths *swiss.Map[string, string]

	libraries LibraryTable
}

// contractState is the tagged union of a contract's lifecycle states.
type contractState interface{ isContractState() }

type sourceState struct{ contract *Contract }
type waiterState struct{ cond *sync.Cond }
type buildState struct{ build *ContractBuild }

// errorState exists so that a contract whose compilation fails still
// wakes its waiters instead of leaving them blocked on the condition
// variable forever: a per-contract error must bubble up, not deadlock
// unrelated requests for the same contract.
type errorState struct{ err error }

func (sourceState) isContractState() {}
func (waiterState) isContractState() {}
func (buildState) isContractState()  {}
func (errorState) isContractState()  {}

// New returns an empty project ready for AddContract calls.
func New(version string, newBackend NewBackendFunc, libs LibraryTable) *Project {
	return &Project{
		Version:         version,
		NewBackend:      newBackend,
		contracts:       map[string]contractState{},
		identifierPaths: swiss.NewMap[string, string](8),
		hashPaths:       swiss.NewMap[string, string](8),
		libraries:       libs,
	}
}

// AddContract registers c under its path and records its identifier ->
// path mapping. Must be called before any Compile/CompileAll call — it is
// not safe for concurrent use with those.
func (p *Project) AddContract(c *Contract) {
	p.contracts[c.Path] = sourceState{contract: c}
	p.identifierPaths.Put(c.Identifier, c.Path)
}

// RegisterAssemblyHash records that the nested stack-asm blob whose
// canonical-JSON keccak256 is hash lives at path, for resolveDataPaths
// to consult. Must be called before any Compile/CompileAll
// call.
func (p *Project) RegisterAssemblyHash(hash, path string) {
	p.hashPaths.Put(hash, path)
}

// Libraries returns the project's library address table,
// consulted when resolving a linkersymbol reference.
func (p *Project) Libraries() LibraryTable { return p.libraries }

// Paths returns every contract path registered in the project.
func (p *Project) Paths() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	paths := make([]string, 0, len(p.contracts))
	for path := range p.contracts {
		paths = append(paths, path)
	}
	return paths
}
