package maincmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mna/cfront/project"
	"github.com/mna/mainer"
)

func (c *Cmd) CombinedJSON(ctx context.Context, stdio mainer.Stdio, args []string) error {
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

	doc := map[string]any{
		"version":   c.BuildVersion,
		"contracts": project.CombinedJSON(builds, nil),
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return printError(stdio, err)
	}
	fmt.Fprintln(stdio.Stdout, string(out))

	return c.writeOutputs(stdio, builds)
}
