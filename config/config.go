// Package config handles wbdisplay configuration.
//
// Configuration is loaded with overlay semantics:
//
//  1. Start with built-in defaults (embedded from default.toml)
//  2. Overlay with config file values (if the file exists)
//  3. CLI flags and environment variables override at runtime
//
// The TOML decoder only sets fields present in the file, so a config
// file names only what it changes. A config file that exists but does
// not parse is an error.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/frobware/go-wbdisplay"
	"github.com/frobware/go-wbdisplay/logging"
)

//go:embed default.toml
var defaultConfigTOML string

// DefaultConfigPath is where the CLI looks for a config file.
const DefaultConfigPath = "/etc/wbdisplay/wbdisplay.toml"

// Config is the top-level configuration.
type Config struct {
	Device   DeviceConfig   `toml:"device"`
	Registry RegistryConfig `toml:"registry"`
	Logging  LoggingConfig  `toml:"logging"`
	Runtime  RuntimeConfig  `toml:"runtime"`
}

// DeviceConfig selects the DRM device and the writeback pipe.
type DeviceConfig struct {
	Path string `toml:"path"`
	// ConnectorID and CRTCID pin the writeback connector and pipe.
	// Zero means discover them.
	ConnectorID   uint32 `toml:"connector_id"`
	CRTCID        uint32 `toml:"crtc_id"`
	MaxMixerWidth uint32 `toml:"max_mixer_width"`
}

// Token returns the configured connector and pipe, and whether both
// are set.
func (c DeviceConfig) Token() (wbdisplay.Token, bool) {
	t := wbdisplay.Token{ConnectorID: c.ConnectorID, CRTCID: c.CRTCID}
	return t, t.ConnectorID != 0 && t.CRTCID != 0
}

// Resources returns the hardware limits.
func (c DeviceConfig) Resources() wbdisplay.Resources {
	return wbdisplay.Resources{MaxMixerWidth: c.MaxMixerWidth}
}

// RegistryConfig controls framebuffer lifetime.
type RegistryConfig struct {
	// CycleDelay is the number of frames a framebuffer survives
	// without being referenced.
	CycleDelay int `toml:"cycle_delay"`
}

// LoggingConfig controls logging.
type LoggingConfig struct {
	// Level is a log spec such as "info" or "info,manager=debug".
	Level string `toml:"level"`
	// Format is "text" or "json".
	Format string `toml:"format"`
	// Components adds per-component levels to Level.
	Components map[string]string `toml:"components"`
}

// ToSpec returns the log spec described by the section.
func (c LoggingConfig) ToSpec() string {
	if len(c.Components) == 0 {
		return c.Level
	}
	base := c.Level
	if base == "" {
		base = logging.LevelInfo.String()
	}
	return logging.SpecFromComponents(base, c.Components)
}

// RuntimeConfig locates runtime state.
type RuntimeConfig struct {
	Dir string `toml:"dir"`
}

// DefaultConfig returns the embedded defaults.
func DefaultConfig() Config {
	var cfg Config
	if _, err := toml.Decode(defaultConfigTOML, &cfg); err != nil {
		panic(fmt.Sprintf("embedded default.toml: %v", err))
	}
	return cfg
}

// Load reads path over the defaults. A missing file yields the
// defaults; an unreadable or invalid one is an error.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return cfg, fmt.Errorf("parse config file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("config file %s: unknown key %q", path, undecoded[0].String())
	}
	return cfg, cfg.Validate()
}

// Validate checks field ranges.
func (c Config) Validate() error {
	var errs []error
	if c.Device.Path == "" {
		errs = append(errs, errors.New("device.path must be set"))
	}
	if (c.Device.ConnectorID == 0) != (c.Device.CRTCID == 0) {
		errs = append(errs, errors.New("device.connector_id and device.crtc_id must be set together"))
	}
	if c.Device.MaxMixerWidth == 0 {
		errs = append(errs, errors.New("device.max_mixer_width must be positive"))
	}
	if c.Registry.CycleDelay < 2 {
		errs = append(errs, fmt.Errorf("registry.cycle_delay must be at least 2, got %d", c.Registry.CycleDelay))
	}
	if _, err := logging.ParseSpec(c.Logging.ToSpec()); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}
	if _, err := logging.ParseFormat(c.Logging.Format); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}
	if _, err := NewRuntimeDirs(c.Runtime.Dir); err != nil {
		errs = append(errs, fmt.Errorf("runtime.dir: %w", err))
	}
	return errors.Join(errs...)
}
