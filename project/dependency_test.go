package project_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mna/cfront/asm/model"
	"github.com/mna/cfront/project"
)

func stopOnlyAssembly() *model.Assembly {
	return &model.Assembly{
		Code: []model.Instruction{{Opcode: "STOP"}},
		Data: model.NewDataMap(),
	}
}

func addAsmContract(p *project.Project, path string) {
	a := stopOnlyAssembly()
	a.FullPath = path
	p.AddContract(&project.Contract{
		Path:       path,
		Identifier: path,
		Kind:       project.KindStackAsm,
		Asm:        a,
	})
}

// TestResolveDataPathsSucceedsWhenHashKnown covers the dependency
// pass: an inline factory-dependency Assembly embedded in the data map is
// replaced by a resolved path when its content hash is registered, and
// the resolved dependency is compiled and recorded as a factory
// dependency of the parent.
func TestResolveDataPathsSucceedsWhenHashKnown(t *testing.T) {
	dep := stopOnlyAssembly()

	parent := stopOnlyAssembly()
	parent.FullPath = "parent.sol:Parent"
	parent.Data.Set("1", model.Data{Kind: model.DataAssembly, Assembly: dep})

	p := project.New("v1", refBackend, nil)
	p.RegisterAssemblyHash(project.AssemblyHash(dep), "dep.sol:Dep")
	addAsmContract(p, "dep.sol:Dep")
	p.AddContract(&project.Contract{
		Path:       "parent.sol:Parent",
		Identifier: "Parent",
		Kind:       project.KindStackAsm,
		Asm:        parent,
	})

	build, err := p.Compile(context.Background(), "parent.sol:Parent")
	require.NoError(t, err)
	require.NotNil(t, build.Build.DataPaths)
	assert.Equal(t, "dep.sol:Dep", build.Build.DataPaths[paddedIndexForTest("1")])
	// the all-zero index maps back to the contract itself.
	assert.Equal(t, "parent.sol:Parent", build.Build.DataPaths[paddedIndexForTest("0")])

	require.Len(t, build.Build.FactoryDependencies, 1)
	for _, path := range build.Build.FactoryDependencies {
		assert.Equal(t, "dep.sol:Dep", path)
	}
}

// TestResolveDataPathsFailsWhenHashUnknown covers the fatal
// MissingDependency error for an unregistered content hash.
func TestResolveDataPathsFailsWhenHashUnknown(t *testing.T) {
	parent := stopOnlyAssembly()
	parent.FullPath = "parent.sol:Parent"
	parent.Data.Set("1", model.Data{Kind: model.DataAssembly, Assembly: stopOnlyAssembly()})

	p := project.New("v1", refBackend, nil)
	p.AddContract(&project.Contract{
		Path:       "parent.sol:Parent",
		Identifier: "Parent",
		Kind:       project.KindStackAsm,
		Asm:        parent,
	})

	_, err := p.Compile(context.Background(), "parent.sol:Parent")
	require.ErrorIs(t, err, project.ErrMissingDependency)
}

// TestResolveDataPathsSkipsRuntimeEntry: the deploy listing's "0" entry
// holds the runtime listing, not a dependency, and must not require a
// registered hash; only the self-index mapping is recorded for it.
func TestResolveDataPathsSkipsRuntimeEntry(t *testing.T) {
	parent := stopOnlyAssembly()
	parent.FullPath = "parent.sol:Parent"
	parent.Data.Set("0", model.Data{Kind: model.DataAssembly, Assembly: stopOnlyAssembly()})

	p := project.New("v1", refBackend, nil)
	p.AddContract(&project.Contract{
		Path:       "parent.sol:Parent",
		Identifier: "Parent",
		Kind:       project.KindStackAsm,
		Asm:        parent,
	})

	build, err := p.Compile(context.Background(), "parent.sol:Parent")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		paddedIndexForTest("0"): "parent.sol:Parent",
	}, build.Build.DataPaths)
	assert.Empty(t, build.Build.FactoryDependencies)
}

// TestResolveDataPathsRuntimePass: a dependency embedded in the runtime
// listing's own data map is resolved by the runtime pass and recorded as
// a factory dependency, the same way a deploy-listing dependency is.
func TestResolveDataPathsRuntimePass(t *testing.T) {
	dep := stopOnlyAssembly()

	runtime := stopOnlyAssembly()
	runtime.Data.Set("1", model.Data{Kind: model.DataAssembly, Assembly: dep})

	parent := stopOnlyAssembly()
	parent.FullPath = "parent.sol:Parent"
	parent.Data.Set("0", model.Data{Kind: model.DataAssembly, Assembly: runtime})

	p := project.New("v1", refBackend, nil)
	p.RegisterAssemblyHash(project.AssemblyHash(dep), "dep.sol:Dep")
	addAsmContract(p, "dep.sol:Dep")
	p.AddContract(&project.Contract{
		Path:       "parent.sol:Parent",
		Identifier: "Parent",
		Kind:       project.KindStackAsm,
		Asm:        parent,
	})

	build, err := p.Compile(context.Background(), "parent.sol:Parent")
	require.NoError(t, err)
	assert.Equal(t, "dep.sol:Dep", build.Build.DataPaths[paddedIndexForTest("1")])

	require.Len(t, build.Build.FactoryDependencies, 1)
	for _, path := range build.Build.FactoryDependencies {
		assert.Equal(t, "dep.sol:Dep", path)
	}
}

// paddedIndexForTest mirrors project's unexported canonical-width padding
// (64 hex digits) so the test can locate the resolved entry
// without reaching into the package's internals.
func paddedIndexForTest(key string) string {
	const width = 64
	if len(key) >= width {
		return key
	}
	pad := make([]byte, width-len(key))
	for i := range pad {
		pad[i] = '0'
	}
	return string(pad) + key
}
