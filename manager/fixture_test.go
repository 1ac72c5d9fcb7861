package manager_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frobware/go-wbdisplay"
	"github.com/frobware/go-wbdisplay/device"
	"github.com/frobware/go-wbdisplay/interpreter/memory"
	"github.com/frobware/go-wbdisplay/manager"
	"github.com/frobware/go-wbdisplay/registry"
)

// testLogger returns a logger for tests. By default it discards all output.
// Set WBDISPLAY_TEST_VERBOSE=1 to enable logging.
func testLogger() *slog.Logger {
	if os.Getenv("WBDISPLAY_TEST_VERBOSE") != "" {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testToken = wbdisplay.Token{ConnectorID: 33, CRTCID: 71}

const testMaxMixerWidth = 2560

// testFixture provides access to all components for verification.
type testFixture struct {
	Manager  *manager.Manager
	Kernel   *memory.Kernel
	Registry *registry.Registry
	t        *testing.T
}

// newTestFixture creates an initialised display whose connector
// starts with modes.
func newTestFixture(t *testing.T, modes ...wbdisplay.Mode) *testFixture {
	t.Helper()
	return newTestFixtureWith(t, wbdisplay.ConnectorInfo{Modes: modes, Connected: true})
}

func newTestFixtureWith(t *testing.T, info wbdisplay.ConnectorInfo, opts ...memory.Option) *testFixture {
	t.Helper()
	return newTestFixtureWithLogger(t, testLogger(), info, opts...)
}

// newTestFixtureWithLogger is newTestFixtureWith with the display
// logging to logger.
func newTestFixtureWithLogger(t *testing.T, logger *slog.Logger, info wbdisplay.ConnectorInfo, opts ...memory.Option) *testFixture {
	t.Helper()
	opts = append([]memory.Option{
		memory.WithLogger(testLogger()),
		memory.WithConnector(testToken.ConnectorID, info),
		memory.WithWriteback(testToken),
	}, opts...)
	kernel := memory.New(opts...)

	base := device.New(kernel, testToken, wbdisplay.Resources{MaxMixerWidth: testMaxMixerWidth}, testLogger())
	reg := registry.New(kernel, registry.DefaultCycleDelay, testLogger())
	mgr := manager.New(base, reg, logger)
	require.NoError(t, mgr.Init(context.Background()), "failed to initialise display")

	return &testFixture{
		Manager:  mgr,
		Kernel:   kernel,
		Registry: reg,
		t:        t,
	}
}

// Buffer returns an output buffer with the given handle.
func (f *testFixture) Buffer(fd int, w, h uint32) wbdisplay.Buffer {
	return wbdisplay.Buffer{
		Planes: []wbdisplay.Plane{{FD: fd, Stride: w * 4}},
		Width:  w,
		Height: h,
		Format: wbdisplay.FormatXRGB8888,
	}
}

// SetAttributes selects a mode and fails the test on error.
func (f *testFixture) SetAttributes(w, h, fps uint32) {
	f.t.Helper()
	err := f.Manager.SetDisplayAttributes(context.Background(),
		wbdisplay.DisplayAttributes{XPixels: w, YPixels: h, FPS: fps})
	require.NoError(f.t, err, "SetDisplayAttributes(%dx%d@%d)", w, h, fps)
}

// AssertKernelOps verifies the number of calls of each operation.
func (f *testFixture) AssertKernelOps(expected map[string]int) {
	f.t.Helper()
	for op, n := range expected {
		assert.Equal(f.t, n, f.Kernel.OperationCount(op), "operation %s", op)
	}
}

func timingMode(w, h uint16, fps uint32) wbdisplay.Mode {
	return wbdisplay.Mode{
		HDisplay: w, HSyncStart: w + 48, HSyncEnd: w + 80, HTotal: w + 160,
		VDisplay: h, VSyncStart: h + 3, VSyncEnd: h + 8, VTotal: h + 30,
		VRefresh: fps,
		Name:     "preset",
	}
}
