package manager_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frobware/go-wbdisplay"
	"github.com/frobware/go-wbdisplay/interpreter/memory"
)

// TestSetDisplayAttributes_RegistersModeOnEmptyConnector verifies that:
//
//	Given a connector with no modes,
//	When 1920x1080@30 is requested,
//	Then one mode-table update carries a mode with clock 62208,
//	And the mode is selected at index 0,
//	And a second identical request updates nothing.
func TestSetDisplayAttributes_RegistersModeOnEmptyConnector(t *testing.T) {
	fix := newTestFixture(t)

	fix.SetAttributes(1920, 1080, 30)

	assert.Equal(t, 0, fix.Manager.CurrentModeIndex())
	modes := fix.Manager.Modes()
	require.Len(t, modes, 1)
	assert.Equal(t, uint32(62208), modes[0].Clock)
	assert.Equal(t, "1920x1080", modes[0].Name)
	assert.Equal(t, uint16(1920), modes[0].HTotal)
	assert.Equal(t, uint16(1080), modes[0].VSyncEnd)

	info, ok := fix.Kernel.Connector(testToken.ConnectorID)
	require.True(t, ok)
	assert.True(t, info.Connected)
	assert.Equal(t, modes, info.Modes)

	fix.SetAttributes(1920, 1080, 30)
	fix.AssertKernelOps(map[string]int{memory.OpUpdateModeTable: 1})
	assert.Equal(t, 0, fix.Manager.CurrentModeIndex())
}

// TestSetDisplayAttributes_ExistingModeNoUpdate verifies that an exact
// match is selected without touching the mode table.
func TestSetDisplayAttributes_ExistingModeNoUpdate(t *testing.T) {
	fix := newTestFixture(t, timingMode(1280, 720, 60), timingMode(1920, 1080, 60))

	fix.SetAttributes(1920, 1080, 60)

	assert.Equal(t, 1, fix.Manager.CurrentModeIndex())
	fix.AssertKernelOps(map[string]int{memory.OpUpdateModeTable: 0})

	attrs, ok := fix.Manager.DisplayAttributes()
	require.True(t, ok)
	assert.Equal(t, wbdisplay.DisplayAttributes{XPixels: 1920, YPixels: 1080, FPS: 60}, attrs.DisplayAttributes)
	assert.Equal(t, uint32(1920+160), attrs.HTotal)
}

// TestSetDisplayAttributes_MatchIsExact verifies that a mode differing
// only in refresh rate is not reused.
func TestSetDisplayAttributes_MatchIsExact(t *testing.T) {
	fix := newTestFixture(t, timingMode(1920, 1080, 60))

	fix.SetAttributes(1920, 1080, 59)

	assert.Equal(t, 1, fix.Manager.CurrentModeIndex())
	require.Len(t, fix.Manager.Modes(), 2)
	assert.Equal(t, timingMode(1920, 1080, 60), fix.Manager.Modes()[0], "existing modes are preserved")
	fix.AssertKernelOps(map[string]int{memory.OpUpdateModeTable: 1})
}

// TestSetDisplayAttributes_ZeroSizeRejected verifies that:
//
//	Given a display with a selected mode,
//	When a zero width or height is requested,
//	Then ErrInvalidParameters is returned,
//	And neither the selected mode nor the kernel is touched.
func TestSetDisplayAttributes_ZeroSizeRejected(t *testing.T) {
	fix := newTestFixture(t, timingMode(1280, 720, 60))
	fix.SetAttributes(1280, 720, 60)
	before := len(fix.Kernel.Operations())

	for _, attrs := range []wbdisplay.DisplayAttributes{
		{XPixels: 0, YPixels: 1080, FPS: 60},
		{XPixels: 1920, YPixels: 0, FPS: 60},
	} {
		err := fix.Manager.SetDisplayAttributes(context.Background(), attrs)
		require.Error(t, err)
		assert.ErrorIs(t, err, wbdisplay.ErrInvalidParameters)
	}

	assert.Equal(t, 0, fix.Manager.CurrentModeIndex())
	assert.Len(t, fix.Kernel.Operations(), before)
}

// TestSetDisplayAttributes_HardwareRejects verifies that:
//
//	Given a selected mode,
//	When the kernel rejects the mode-table update for a new mode,
//	Then a hardware error is returned,
//	And the cached mode list and selected index are unchanged.
func TestSetDisplayAttributes_HardwareRejects(t *testing.T) {
	fix := newTestFixture(t, timingMode(1280, 720, 60))
	fix.SetAttributes(1280, 720, 60)
	fix.Kernel.FailNext(memory.OpUpdateModeTable, errors.New("EINVAL"))

	err := fix.Manager.SetDisplayAttributes(context.Background(),
		wbdisplay.DisplayAttributes{XPixels: 800, YPixels: 600, FPS: 60})
	require.Error(t, err)
	assert.ErrorIs(t, err, wbdisplay.ErrHardware)

	var hw *wbdisplay.HardwareError
	require.ErrorAs(t, err, &hw)
	assert.Equal(t, testToken.ConnectorID, hw.ConnectorID)

	assert.Equal(t, 0, fix.Manager.CurrentModeIndex())
	assert.Len(t, fix.Manager.Modes(), 1)
	fix.AssertKernelOps(map[string]int{memory.OpReloadConnector: 1})
}

// TestSetDisplayAttributes_DriverDropsMode verifies that a mode the
// kernel accepts but does not list afterwards is reported as not
// supported.
func TestSetDisplayAttributes_DriverDropsMode(t *testing.T) {
	dropOdd := func(modes []wbdisplay.Mode) []wbdisplay.Mode {
		var out []wbdisplay.Mode
		for _, m := range modes {
			if m.HDisplay%2 == 0 {
				out = append(out, m)
			}
		}
		return out
	}
	fix := newTestFixtureWith(t, wbdisplay.ConnectorInfo{}, memory.WithNormalizer(dropOdd))

	err := fix.Manager.SetDisplayAttributes(context.Background(),
		wbdisplay.DisplayAttributes{XPixels: 1366, YPixels: 768, FPS: 60})
	require.NoError(t, err)

	err = fix.Manager.SetDisplayAttributes(context.Background(),
		wbdisplay.DisplayAttributes{XPixels: 1365, YPixels: 768, FPS: 60})
	require.Error(t, err)
	assert.ErrorIs(t, err, wbdisplay.ErrModeNotSupported)

	var notFound wbdisplay.ModeNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, uint32(1365), notFound.Requested.XPixels)
	assert.Equal(t, 0, fix.Manager.CurrentModeIndex())
}

// TestSetDisplayAttributes_DriverReorders verifies the index is taken
// from the reloaded list, not from where the mode was appended.
func TestSetDisplayAttributes_DriverReorders(t *testing.T) {
	newestFirst := func(modes []wbdisplay.Mode) []wbdisplay.Mode {
		out := make([]wbdisplay.Mode, 0, len(modes))
		for i := len(modes) - 1; i >= 0; i-- {
			out = append(out, modes[i])
		}
		return out
	}
	fix := newTestFixtureWith(t, wbdisplay.ConnectorInfo{
		Modes: []wbdisplay.Mode{timingMode(1280, 720, 60)},
	}, memory.WithNormalizer(newestFirst))

	fix.SetAttributes(640, 480, 60)

	assert.Equal(t, 0, fix.Manager.CurrentModeIndex())
	assert.Equal(t, uint32(640), fix.Manager.PanelInfo().Width)
}

func TestInit_InfersTopology(t *testing.T) {
	single := newTestFixture(t, timingMode(1920, 1080, 60))
	assert.Equal(t, wbdisplay.TopologySingleLM, single.Manager.Topology())

	dual := newTestFixture(t, timingMode(1920, 1080, 60), timingMode(3840, 2160, 30))
	assert.Equal(t, wbdisplay.TopologyDualLMMerge, dual.Manager.Topology())

	dual.SetAttributes(3840, 2160, 30)
	assert.Equal(t, uint32(1920), dual.Manager.PanelInfo().SplitLeft)
	assert.Equal(t, uint32(1920), dual.Manager.MixerAttributes().SplitLeft)
}

func TestInit_KeepsDriverTopology(t *testing.T) {
	fix := newTestFixtureWith(t, wbdisplay.ConnectorInfo{
		Modes:    []wbdisplay.Mode{timingMode(1920, 1080, 60)},
		Topology: wbdisplay.TopologyDualLM,
	})
	assert.Equal(t, wbdisplay.TopologyDualLM, fix.Manager.Topology())
}

func TestDumpModes(t *testing.T) {
	fix := newTestFixture(t, timingMode(1280, 720, 60))
	fix.SetAttributes(640, 480, 30)

	modes := fix.Manager.DumpModes(context.Background())
	require.Len(t, modes, 2)
	assert.Equal(t, "640x480", modes[1].Name)
}

// TestSetDisplayAttributes_ReloadFails verifies that:
//
//	Given a kernel that accepts a new mode table,
//	When reloading the connector afterwards fails,
//	Then a hardware error is returned,
//	And the table that was sent is dumped at error level.
func TestSetDisplayAttributes_ReloadFails(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelError}))
	fix := newTestFixtureWithLogger(t, logger, wbdisplay.ConnectorInfo{
		Modes:     []wbdisplay.Mode{timingMode(1280, 720, 60)},
		Connected: true,
	})
	fix.Kernel.FailNext(memory.OpReloadConnector, errors.New("EIO"))

	err := fix.Manager.SetDisplayAttributes(context.Background(),
		wbdisplay.DisplayAttributes{XPixels: 800, YPixels: 600, FPS: 60})
	require.ErrorIs(t, err, wbdisplay.ErrHardware)

	out := logs.String()
	assert.Contains(t, out, "mode table accepted but connector reload failed")
	assert.Contains(t, out, "name=preset")
	assert.Contains(t, out, "name=800x600")
	assert.Equal(t, -1, fix.Manager.CurrentModeIndex())
}
