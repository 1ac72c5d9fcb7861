package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frobware/go-wbdisplay"
	"github.com/frobware/go-wbdisplay/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wbdisplay.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := config.DefaultConfig()

	assert.Equal(t, "/dev/dri/card0", cfg.Device.Path)
	assert.Equal(t, uint32(2560), cfg.Device.MaxMixerWidth)
	assert.Equal(t, 3, cfg.Registry.CycleDelay)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "/run/wbdisplay", cfg.Runtime.Dir)
	require.NoError(t, cfg.Validate())

	_, ok := cfg.Device.Token()
	assert.False(t, ok, "defaults discover the writeback pipe")
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), cfg)
}

// TestLoad_Overlay verifies that keys absent from the file keep their
// defaults.
func TestLoad_Overlay(t *testing.T) {
	path := writeConfig(t, `
[device]
connector_id = 33
crtc_id = 71

[logging.components]
manager = "debug"
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	token, ok := cfg.Device.Token()
	require.True(t, ok)
	assert.Equal(t, wbdisplay.Token{ConnectorID: 33, CRTCID: 71}, token)
	assert.Equal(t, "/dev/dri/card0", cfg.Device.Path)
	assert.Equal(t, wbdisplay.Resources{MaxMixerWidth: 2560}, cfg.Device.Resources())
	assert.Equal(t, "info,manager=debug", cfg.Logging.ToSpec())
}

func TestLoad_InvalidTOML(t *testing.T) {
	_, err := config.Load(writeConfig(t, "[device\npath = 1"))
	assert.ErrorContains(t, err, "parse config file")
}

func TestLoad_UnknownKey(t *testing.T) {
	_, err := config.Load(writeConfig(t, "[registry]\ncycle_dely = 4\n"))
	assert.ErrorContains(t, err, "unknown key")
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"half token", "[device]\nconnector_id = 33\n", "must be set together"},
		{"cycle delay", "[registry]\ncycle_delay = 1\n", "cycle_delay"},
		{"log spec", "[logging]\nlevel = \"loud\"\n", "logging"},
		{"log format", "[logging]\nformat = \"xml\"\n", "logging"},
		{"relative runtime", "[runtime]\ndir = \"run\"\n", "runtime.dir"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.body))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestRuntimeDirs(t *testing.T) {
	_, err := config.NewRuntimeDirs("relative")
	assert.Error(t, err)
	_, err = config.NewRuntimeDirs("")
	assert.Error(t, err)

	base := t.TempDir()
	dirs, err := config.NewRuntimeDirs(base)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "locks", "dev-dri-card0.lock"), dirs.DeviceLock("/dev/dri/card0"))

	require.NoError(t, dirs.EnsureDirectories())
	assert.DirExists(t, filepath.Join(base, "locks"))
	assert.DirExists(t, dirs.Captures())
}
