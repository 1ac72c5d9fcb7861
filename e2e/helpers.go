//go:build e2e

package e2e

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/frobware/go-wbdisplay"
	"github.com/frobware/go-wbdisplay/config"
	"github.com/frobware/go-wbdisplay/device"
	"github.com/frobware/go-wbdisplay/interpreter"
	"github.com/frobware/go-wbdisplay/interpreter/drm"
	"github.com/frobware/go-wbdisplay/lock"
	"github.com/frobware/go-wbdisplay/logging"
	"github.com/frobware/go-wbdisplay/manager"
	"github.com/frobware/go-wbdisplay/registry"
)

// DeviceEnvVar overrides the DRM device under test.
const DeviceEnvVar = "WBDISPLAY_E2E_DEVICE"

// TestEnv is a display opened on a real writeback connector. The
// device lock is held for the lifetime of the test.
type TestEnv struct {
	T       *testing.T
	Dirs    config.RuntimeDirs
	Display *manager.Manager
	Kernel  interpreter.KernelOperations
	buffers []wbdisplay.Buffer
	logger  *slog.Logger
}

// Run opens the device under its lock, builds a TestEnv and calls fn.
// The display is closed when fn returns.
func Run(t *testing.T, fn func(ctx context.Context, env *TestEnv)) {
	t.Helper()

	baseDir := filepath.Join(os.TempDir(), fmt.Sprintf("wbdisplay-e2e-%d-%s", os.Getpid(), sanitizeTestName(t.Name())))
	dirs, err := config.NewRuntimeDirs(baseDir)
	require.NoError(t, err)
	require.NoError(t, dirs.EnsureDirectories())
	t.Cleanup(func() {
		if err := os.RemoveAll(dirs.Base()); err != nil {
			t.Logf("warning: failed to remove %s: %v", dirs.Base(), err)
		}
	})

	logger := newLogger(t)
	path := devicePath()

	// The lock lives in the shared system directory so concurrent
	// test binaries and the CLI serialise on the device.
	shared, err := config.NewRuntimeDirs(config.DefaultConfig().Runtime.Dir)
	require.NoError(t, err)
	require.NoError(t, shared.EnsureDirectories())

	err = lock.Run(context.Background(), shared.DeviceLock(path), func(ctx context.Context, _ lock.Scope) error {
		kernel, err := drm.Open(path, drm.WithLogger(logger))
		if err != nil {
			return err
		}
		token, err := kernel.FindWriteback(ctx)
		if err != nil {
			kernel.Close()
			return err
		}

		cfg := config.DefaultConfig()
		base := device.New(kernel, token, cfg.Device.Resources(), logger)
		display := manager.New(base, registry.New(kernel, cfg.Registry.CycleDelay, logger), logger)
		if err := display.Init(ctx); err != nil {
			return errors.Join(err, display.Close(ctx))
		}

		env := &TestEnv{T: t, Dirs: dirs, Display: display, Kernel: kernel, logger: logger}
		defer func() {
			for _, buf := range env.buffers {
				if err := kernel.FreeBuffer(context.Background(), buf); err != nil {
					t.Logf("warning: failed to free buffer: %v", err)
				}
			}
			if err := display.Close(context.Background()); err != nil {
				t.Logf("warning: failed to close display: %v", err)
			}
		}()
		fn(ctx, env)
		return nil
	})
	require.NoError(t, err)
}

// Allocate returns a buffer sized for attrs, freed before the display
// closes.
func (e *TestEnv) Allocate(ctx context.Context, attrs wbdisplay.DisplayAttributes) wbdisplay.Buffer {
	e.T.Helper()
	buf, err := e.Kernel.AllocateBuffer(ctx, attrs.XPixels, attrs.YPixels, wbdisplay.FormatXRGB8888)
	require.NoError(e.T, err, "failed to allocate %s buffer", attrs)
	e.buffers = append(e.buffers, buf)
	return buf
}

// Capture writes the buffer contents to the test's capture directory
// and returns the file path.
func (e *TestEnv) Capture(ctx context.Context, buf wbdisplay.Buffer) string {
	e.T.Helper()
	data, err := e.Kernel.ReadBuffer(ctx, buf)
	require.NoError(e.T, err)
	path := filepath.Join(e.Dirs.Captures(), sanitizeTestName(e.T.Name())+".raw")
	require.NoError(e.T, os.WriteFile(path, data, 0o644))
	e.logger.Info("captured output", "path", path, "bytes", len(data))
	return path
}

// AssertCurrent verifies the selected mode matches attrs.
func (e *TestEnv) AssertCurrent(attrs wbdisplay.DisplayAttributes) {
	e.T.Helper()
	current, ok := e.Display.DisplayAttributes()
	require.True(e.T, ok, "no mode selected")
	require.Equal(e.T, attrs, current.DisplayAttributes)
}

// RequireRoot fails the test if not running as root.
func RequireRoot(t *testing.T) {
	t.Helper()
	if os.Geteuid() != 0 {
		t.Fatal("test requires root privileges")
	}
}

// RequireDevice fails the test if the DRM device is missing.
func RequireDevice(t *testing.T) {
	t.Helper()
	if _, err := os.Stat(devicePath()); err != nil {
		t.Fatalf("test requires DRM device %s: %v", devicePath(), err)
	}
}

func devicePath() string {
	if p := os.Getenv(DeviceEnvVar); p != "" {
		return p
	}
	return config.DefaultConfig().Device.Path
}

func newLogger(t *testing.T) *slog.Logger {
	t.Helper()
	// Examples:
	//   WBDISPLAY_LOG=debug               - all components at debug
	//   WBDISPLAY_LOG=info,drm=trace      - default info, ioctls at trace
	if envSpec := os.Getenv(logging.EnvVar); envSpec != "" {
		logger, err := logging.New(logging.Options{
			EnvSpec: envSpec,
			Format:  logging.FormatText,
			Output:  os.Stderr,
		})
		if err != nil {
			t.Fatalf("invalid %s spec: %v", logging.EnvVar, err)
		}
		return logger
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func sanitizeTestName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return '_'
		}
	}, name)
}

// cleanupStaleTestDirs removes directories left by crashed runs.
func cleanupStaleTestDirs() {
	matches, _ := filepath.Glob(filepath.Join(os.TempDir(), "wbdisplay-e2e-*"))
	for _, m := range matches {
		os.RemoveAll(m)
	}
}
