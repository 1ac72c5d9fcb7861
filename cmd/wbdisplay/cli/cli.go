// Package cli implements the wbdisplay command line.
package cli

import (
	"log/slog"
	"os"
	"reflect"

	"github.com/alecthomas/kong"

	"github.com/frobware/go-wbdisplay"
	"github.com/frobware/go-wbdisplay/config"
	"github.com/frobware/go-wbdisplay/logging"
)

// CLI is the root command structure for wbdisplay.
type CLI struct {
	Config string `name:"config" help:"Config file path." default:"${default_config_path}"`
	Log    string `name:"log" help:"Log spec (e.g., 'info,manager=debug')." env:"WBDISPLAY_LOG"`
	Device string `name:"device" short:"d" help:"DRM device path (overrides config)."`
	Fake   bool   `name:"fake" help:"Use in-memory hardware instead of a DRM device."`

	Modes    ModesCmd    `cmd:"" help:"List the writeback connector's modes."`
	Set      SetCmd      `cmd:"" help:"Select an output mode, registering it if needed."`
	Validate ValidateCmd `cmd:"" help:"Check that a frame would be accepted, without committing."`
	Commit   CommitCmd   `cmd:"" help:"Commit frames into allocated buffers."`
	Capture  CaptureCmd  `cmd:"" help:"Commit one frame and write it to a BMP file."`
}

// KongOptions returns the Kong configuration options for the CLI.
func KongOptions() []kong.Option {
	return []kong.Option{
		kong.Name("wbdisplay"),
		kong.Description("Virtual writeback display driver."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.TypeMapper(reflect.TypeOf(wbdisplay.DisplayAttributes{}), displayAttributesMapper()),
		kong.Vars{
			"default_config_path": config.DefaultConfigPath,
			"default_frames":      "3",
			"default_buffers":     "2",
		},
	}
}

// LoadConfig loads the configuration, applying --device.
func (c *CLI) LoadConfig() (config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return cfg, err
	}
	if c.Device != "" {
		cfg.Device.Path = c.Device
	}
	return cfg, nil
}

// Logger creates a logger for CLI commands. Commands default to warn
// unless --log or WBDISPLAY_LOG says otherwise.
func (c *CLI) Logger(cfg config.Config) (*slog.Logger, error) {
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return nil, err
	}

	spec := c.Log
	if spec == "" {
		spec = "warn"
	}

	return logging.New(logging.Options{
		CLISpec:    spec,
		ConfigSpec: cfg.Logging.ToSpec(),
		Format:     format,
		Output:     os.Stderr,
	})
}
