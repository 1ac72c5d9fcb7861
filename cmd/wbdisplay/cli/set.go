package cli

import (
	"context"
	"fmt"

	"github.com/frobware/go-wbdisplay"
)

// SetCmd selects an output mode.
type SetCmd struct {
	OutputFlags

	Resolution wbdisplay.DisplayAttributes `arg:"" help:"Resolution as WIDTHxHEIGHT[@FPS]."`
}

// Run executes the set command.
func (c *SetCmd) Run(cli *CLI, ctx context.Context) error {
	return cli.WithRuntime(ctx, func(ctx context.Context, rt *Runtime) error {
		view, err := selectMode(ctx, rt, c.Resolution)
		if err != nil {
			return err
		}
		out, err := Format(view, &c.OutputFlags)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	})
}

// selectMode sets attrs on the display and describes the result.
func selectMode(ctx context.Context, rt *Runtime, attrs wbdisplay.DisplayAttributes) (DisplayView, error) {
	d := rt.Display
	if err := d.SetDisplayAttributes(ctx, attrs); err != nil {
		return DisplayView{}, fmt.Errorf("set display attributes %s: %w", attrs, err)
	}
	current, ok := d.DisplayAttributes()
	if !ok {
		return DisplayView{}, fmt.Errorf("no mode selected after setting %s: %w", attrs, wbdisplay.ErrModeNotSupported)
	}
	return DisplayView{
		Token:      d.Token(),
		ModeIndex:  d.CurrentModeIndex(),
		Attributes: current,
		Panel:      d.PanelInfo(),
		Mixer:      d.MixerAttributes(),
	}, nil
}
