package project_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mna/cfront/asm/model"
	"github.com/mna/cfront/project"
)

func TestAssemblyHashDeterministic(t *testing.T) {
	build := func() *model.Assembly {
		a := stopOnlyAssembly()
		a.FactoryDependencies = map[string]struct{}{"B": {}, "A": {}}
		return a
	}

	h1 := project.AssemblyHash(build())
	h2 := project.AssemblyHash(build())
	assert.Equal(t, h1, h2, "hash must not depend on Go's randomized map iteration order")
	assert.Len(t, h1, 64)
}

func TestAssemblyHashDiffersOnContent(t *testing.T) {
	a := stopOnlyAssembly()
	b := stopOnlyAssembly()
	b.Code = append(b.Code, model.Instruction{Opcode: "INVALID"})

	assert.NotEqual(t, project.AssemblyHash(a), project.AssemblyHash(b))
}
