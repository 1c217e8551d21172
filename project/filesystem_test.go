package project_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mna/cfront/project"
)

func TestOutputBaseName(t *testing.T) {
	assert.Equal(t, "dir.file.sol.C", project.OutputBaseName("dir/file.sol:C"))
	assert.Equal(t, "file.sol", project.OutputBaseName("file.sol"))
}

func TestWriteOutputsRespectsOverwrite(t *testing.T) {
	dir := t.TempDir()
	builds := map[string]*project.ContractBuild{
		"a.sol:A": {
			Path:       "a.sol:A",
			Identifier: "A",
			Build: project.BuildResult{
				Bytecode:     []byte{0x01, 0x02},
				AssemblyText: "; asm\n",
				Hash:         "deadbeef",
			},
		},
	}

	require.NoError(t, project.WriteOutputs(dir, builds, false))

	zbin, err := os.ReadFile(filepath.Join(dir, "a.sol.A.zbin"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02}, zbin)

	err = project.WriteOutputs(dir, builds, false)
	assert.Error(t, err)

	require.NoError(t, project.WriteOutputs(dir, builds, true))
}
