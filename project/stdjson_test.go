package project_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mna/cfront/backend"
	"github.com/mna/cfront/backend/refbackend"
	"github.com/mna/cfront/project"
)

func refBackend(name string) backend.Context { return refbackend.New(name) }

const stdJSONFixture = `{
  "errors": [{"severity": "warning", "message": "unused variable"}],
  "contracts": {
    "c.sol": {
      "C": {
        "abi": [],
        "irOptimized": "object \"C\" { code { function f() -> x { x := 42 } } }"
      }
    }
  }
}`

func TestBuildFromStandardJSON(t *testing.T) {
	proj, passthrough, err := project.BuildFromStandardJSON([]byte(stdJSONFixture), "v1", refBackend, nil)
	require.NoError(t, err)
	require.False(t, passthrough)
	require.Len(t, proj.Paths(), 1)
	assert.Equal(t, "c.sol:C", proj.Paths()[0])

	build, err := proj.Compile(context.Background(), "c.sol:C")
	require.NoError(t, err)
	assert.NotEmpty(t, build.Build.Hash)
}

func TestBuildFromStandardJSONPassthroughOnFatalError(t *testing.T) {
	raw := `{"errors":[{"severity":"error","message":"parse error"}],"contracts":{}}`
	proj, passthrough, err := project.BuildFromStandardJSON([]byte(raw), "v1", refBackend, nil)
	require.NoError(t, err)
	assert.True(t, passthrough)
	assert.Nil(t, proj)
}

func TestPostProcessStandardJSON(t *testing.T) {
	proj, _, err := project.BuildFromStandardJSON([]byte(stdJSONFixture), "v1", refBackend, nil)
	require.NoError(t, err)

	builds, err := proj.CompileAll(context.Background())
	require.NoError(t, err)

	out, err := project.PostProcessStandardJSON([]byte(stdJSONFixture), builds)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(out, &doc))

	contract := doc["contracts"].(map[string]any)["c.sol"].(map[string]any)["C"].(map[string]any)
	assert.NotContains(t, contract, "irOptimized")
	assert.NotEmpty(t, contract["hash"])
	evm := contract["evm"].(map[string]any)
	bytecode := evm["bytecode"].(map[string]any)
	assert.NotEmpty(t, bytecode["object"])
}
