package cli

import (
	"context"
	"fmt"

	"github.com/frobware/go-wbdisplay"
)

// CommitCmd commits frames, rotating through a set of output buffers.
type CommitCmd struct {
	OutputFlags

	Resolution wbdisplay.DisplayAttributes `arg:"" help:"Resolution as WIDTHxHEIGHT[@FPS]."`
	Frames     int                         `help:"Number of frames to commit." default:"${default_frames}"`
	Buffers    int                         `help:"Number of output buffers to rotate through." default:"${default_buffers}"`
	Secure     bool                        `help:"Mark the output buffers secure."`
}

// Run executes the commit command.
func (c *CommitCmd) Run(cli *CLI, ctx context.Context) error {
	if c.Frames < 1 || c.Buffers < 1 {
		return fmt.Errorf("--frames and --buffers must be at least 1")
	}

	return cli.WithRuntime(ctx, func(ctx context.Context, rt *Runtime) error {
		if _, err := selectMode(ctx, rt, c.Resolution); err != nil {
			return err
		}

		bufs, free, err := rt.allocate(ctx, c.Resolution, c.Buffers)
		if err != nil {
			return err
		}
		defer free()

		for i := range c.Frames {
			if err := ctx.Err(); err != nil {
				return err
			}
			buf := bufs[i%len(bufs)]
			buf.Secure = c.Secure
			if err := rt.Display.Commit(ctx, buf); err != nil {
				return fmt.Errorf("frame %d: %w", i, err)
			}
		}

		out, err := Format(FramesView{
			Resolution: c.Resolution.String(),
			Frames:     c.Frames,
			Buffers:    c.Buffers,
		}, &c.OutputFlags)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	})
}
