package cli

import (
	"context"
	"fmt"
)

// ModesCmd lists the writeback connector's modes.
type ModesCmd struct {
	OutputFlags
}

// Run executes the modes command.
func (c *ModesCmd) Run(cli *CLI, ctx context.Context) error {
	return cli.WithRuntime(ctx, func(ctx context.Context, rt *Runtime) error {
		d := rt.Display
		view := NewModesView(d.Token(), d.Topology(), d.DumpModes(ctx), d.CurrentModeIndex())
		out, err := Format(view, &c.OutputFlags)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	})
}
