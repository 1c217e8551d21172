package project_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mna/cfront/project"
)

func TestCombinedJSON(t *testing.T) {
	builds := map[string]*project.ContractBuild{
		"a.sol:A": {
			Path: "a.sol:A",
			Build: project.BuildResult{
				Bytecode:            []byte{0xde, 0xad},
				FactoryDependencies: map[string]string{"h1": "b.sol:B"},
			},
		},
	}

	out := project.CombinedJSON(builds, nil)
	entry := out["a.sol:A"]
	assert.Equal(t, "dead", entry.Bin)
	assert.Empty(t, entry.BinRuntime)
	assert.Equal(t, map[string]string{"h1": "b.sol:B"}, entry.FactoryDeps)

	out = project.CombinedJSON(builds, map[string]bool{"a.sol:A": true})
	entry = out["a.sol:A"]
	assert.Empty(t, entry.Bin)
	assert.Equal(t, "dead", entry.BinRuntime)
}
