package project_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mna/cfront/project"
)

func TestParseLibrariesAndResolve(t *testing.T) {
	libs, err := project.ParseLibraries([]string{
		"lib.sol:Math=0x1234567890123456789012345678901234567890",
	})
	require.NoError(t, err)

	addr, err := libs.Resolve("lib.sol:Math")
	require.NoError(t, err)
	assert.Equal(t, "1234567890123456789012345678901234567890", addr)
}

func TestParseLibrariesRejectsMalformedEntries(t *testing.T) {
	_, err := project.ParseLibraries([]string{"not-valid"})
	assert.Error(t, err)

	_, err = project.ParseLibraries([]string{"lib.sol:Math=0xshort"})
	assert.Error(t, err)
}

func TestLibraryTableResolveMissing(t *testing.T) {
	libs, err := project.ParseLibraries(nil)
	require.NoError(t, err)

	_, err = libs.Resolve("lib.sol:Math")
	require.ErrorIs(t, err, project.ErrMissingLibrary)
}
