package maincmd

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/mna/cfront/backend"
	"github.com/mna/cfront/backend/refbackend"
	"github.com/mna/cfront/project"
	"github.com/mna/mainer"
)

func (c *Cmd) StandardJSON(ctx context.Context, stdio mainer.Stdio, args []string) error {
	raw, err := readInput(stdio, args)
	if err != nil {
		return printError(stdio, err)
	}

	proj, passthrough, err := c.buildProject(raw)
	if err != nil {
		return printError(stdio, err)
	}
	if passthrough {
		_, err = stdio.Stdout.Write(raw)
		return printError(stdio, err)
	}

	builds, err := proj.CompileAll(ctx)
	if err != nil {
		return printError(stdio, err)
	}

	out, err := project.PostProcessStandardJSON(raw, builds)
	if err != nil {
		return printError(stdio, err)
	}
	if _, err := stdio.Stdout.Write(out); err != nil {
		return printError(stdio, err)
	}

	return c.writeOutputs(stdio, builds)
}

// readInput reads the standard-JSON document from the single file argument,
// or from stdin when no argument was given.
func readInput(stdio mainer.Stdio, args []string) ([]byte, error) {
	if len(args) == 1 {
		return os.ReadFile(args[0])
	}
	return io.ReadAll(stdio.Stdin)
}

// buildProject constructs a compilable Project from the raw standard-JSON
// document, wiring in the library table and the per-contract backend
// constructor.
func (c *Cmd) buildProject(raw []byte) (*project.Project, bool, error) {
	var libs project.LibraryTable
	if c.Libraries != "" {
		var err error
		libs, err = project.ParseLibraries(strings.Split(c.Libraries, ","))
		if err != nil {
			return nil, false, err
		}
	}
	newBackend := func(name string) backend.Context { return refbackend.New(name) }
	return project.BuildFromStandardJSON(raw, c.BuildVersion, newBackend, libs)
}

func (c *Cmd) writeOutputs(stdio mainer.Stdio, builds map[string]*project.ContractBuild) error {
	if c.OutputDir == "" {
		return nil
	}
	return printError(stdio, project.WriteOutputs(c.OutputDir, builds, c.Overwrite))
}
