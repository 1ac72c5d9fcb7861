package cli

import (
	"context"
	"fmt"

	"github.com/frobware/go-wbdisplay"
)

// ValidateCmd checks that a frame would be accepted.
type ValidateCmd struct {
	OutputFlags

	Resolution wbdisplay.DisplayAttributes `arg:"" help:"Resolution as WIDTHxHEIGHT[@FPS]."`
	Secure     bool                        `help:"Mark the output buffer secure."`
}

// Run executes the validate command.
func (c *ValidateCmd) Run(cli *CLI, ctx context.Context) error {
	return cli.WithRuntime(ctx, func(ctx context.Context, rt *Runtime) error {
		if _, err := selectMode(ctx, rt, c.Resolution); err != nil {
			return err
		}

		bufs, free, err := rt.allocate(ctx, c.Resolution, 1)
		if err != nil {
			return err
		}
		defer free()

		buf := bufs[0]
		buf.Secure = c.Secure
		if err := rt.Display.Validate(ctx, buf); err != nil {
			return err
		}

		out, err := Format(FramesView{
			Resolution: c.Resolution.String(),
			Frames:     1,
			Buffers:    1,
			Validated:  true,
		}, &c.OutputFlags)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	})
}
