package device_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frobware/go-wbdisplay"
	"github.com/frobware/go-wbdisplay/action"
	"github.com/frobware/go-wbdisplay/device"
	"github.com/frobware/go-wbdisplay/interpreter/memory"
)

var token = wbdisplay.Token{ConnectorID: 33, CRTCID: 71}

func testLogger() *slog.Logger {
	if os.Getenv("WBDISPLAY_TEST_VERBOSE") != "" {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newBase(t *testing.T, modes ...wbdisplay.Mode) (*device.Base, *memory.Kernel) {
	t.Helper()
	kernel := memory.New(
		memory.WithLogger(testLogger()),
		memory.WithConnector(token.ConnectorID, wbdisplay.ConnectorInfo{
			Modes:    modes,
			Topology: wbdisplay.TopologyDualLMMerge,
		}),
	)
	base := device.New(kernel, token, wbdisplay.Resources{MaxMixerWidth: 2560}, testLogger())
	require.NoError(t, base.Init(context.Background()))
	return base, kernel
}

func mode(w, h uint16, fps uint32) wbdisplay.Mode {
	return wbdisplay.Mode{HDisplay: w, HTotal: w, VDisplay: h, VTotal: h, VRefresh: fps}
}

func TestInit_BuildsCaches(t *testing.T) {
	base, _ := newBase(t, mode(1280, 720, 60), mode(3840, 2160, 30))

	assert.Equal(t, uint64(1), base.ConnectorState().Version())
	assert.Equal(t, 2, base.ConnectorState().ModeCount())
	assert.Equal(t, -1, base.CurrentModeIndex())

	attrs, ok := base.ModeAttributes(1)
	require.True(t, ok)
	assert.Equal(t, uint32(3840), attrs.XPixels)
	assert.True(t, attrs.SplitDisplay)
	assert.Equal(t, uint32(33_333_333), attrs.VSyncPeriodNs)

	_, ok = base.CurrentModeAttributes()
	assert.False(t, ok)
}

func TestInit_ConnectorMissing(t *testing.T) {
	kernel := memory.New()
	base := device.New(kernel, token, wbdisplay.Resources{}, testLogger())

	err := base.Init(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, wbdisplay.ErrHardware)
}

func TestSetCurrentMode_RefreshesPanelAndMixer(t *testing.T) {
	base, _ := newBase(t, mode(1280, 720, 60), mode(3840, 2160, 30))

	require.NoError(t, base.SetCurrentMode(1))
	assert.Equal(t, 1, base.CurrentModeIndex())

	panel := base.PanelInfo()
	assert.Equal(t, uint32(3840), panel.Width)
	assert.Equal(t, uint32(1920), panel.SplitLeft)
	assert.True(t, panel.Writeback)
	assert.Equal(t, wbdisplay.MixerAttributes{Width: 3840, Height: 2160, SplitLeft: 1920}, base.MixerAttributes())

	err := base.SetCurrentMode(2)
	assert.ErrorIs(t, err, wbdisplay.ErrInvalidParameters)
	assert.Equal(t, 1, base.CurrentModeIndex(), "failed selection must not change the index")
}

func TestReloadConnector_KeepsTopologyAndBumpsVersion(t *testing.T) {
	base, kernel := newBase(t, mode(1280, 720, 60))
	ctx := context.Background()

	require.NoError(t, kernel.UpdateModeTable(ctx, token.ConnectorID, true,
		[]wbdisplay.Mode{mode(1280, 720, 60), mode(640, 480, 60)}))
	require.NoError(t, base.ReloadConnector(ctx))

	state := base.ConnectorState()
	assert.Equal(t, uint64(2), state.Version())
	assert.Equal(t, 2, state.ModeCount())
	assert.Equal(t, wbdisplay.TopologyDualLMMerge, state.Topology())
}

func TestAtomicCommit_FlushesAndResets(t *testing.T) {
	base, kernel := newBase(t, mode(1280, 720, 60))
	ctx := context.Background()

	base.Transaction().Perform(action.SetConnectorCRTC{ConnectorID: token.ConnectorID, CRTCID: token.CRTCID})
	require.NoError(t, base.AtomicCommit(ctx))
	assert.Zero(t, base.Transaction().Len())

	commits := kernel.Commits()
	require.Len(t, commits, 1)
	assert.Equal(t, []action.Action{action.SetConnectorCRTC{ConnectorID: 33, CRTCID: 71}}, commits[0])
}

func TestAtomicCommit_FailureWrapsHardwareError(t *testing.T) {
	base, kernel := newBase(t, mode(1280, 720, 60))
	kernel.FailNext(memory.OpAtomicCommit, errors.New("EINVAL"))

	base.Transaction().Perform(action.SetConnectorCRTC{ConnectorID: token.ConnectorID, CRTCID: token.CRTCID})
	err := base.AtomicCommit(context.Background())
	require.Error(t, err)

	var hw *wbdisplay.HardwareError
	require.ErrorAs(t, err, &hw)
	assert.Equal(t, "atomic commit", hw.Op)
	assert.Equal(t, token.CRTCID, hw.CRTCID)
	assert.Zero(t, base.Transaction().Len(), "transaction resets on failure")
}

func TestAtomicDryRun_DoesNotCommit(t *testing.T) {
	base, kernel := newBase(t, mode(1280, 720, 60))

	base.Transaction().Perform(action.SetCRTCActive{CRTCID: token.CRTCID, Active: true})
	require.NoError(t, base.AtomicDryRun(context.Background()))

	assert.Empty(t, kernel.Commits())
	assert.Len(t, kernel.Tests(), 1)
	assert.Zero(t, base.Transaction().Len())
}

func TestPowerOnOff(t *testing.T) {
	base, kernel := newBase(t, mode(1280, 720, 60))
	ctx := context.Background()

	require.NoError(t, base.PowerOn(ctx))
	require.NoError(t, base.PowerOff(ctx))

	commits := kernel.Commits()
	require.Len(t, commits, 2)
	assert.Equal(t, []action.Action{
		action.SetCRTCActive{CRTCID: 71, Active: true},
		action.SetConnectorPowerMode{ConnectorID: 33, Mode: wbdisplay.PowerModeOn},
	}, commits[0])
	assert.Equal(t, []action.Action{
		action.SetConnectorPowerMode{ConnectorID: 33, Mode: wbdisplay.PowerModeOff},
		action.SetCRTCActive{CRTCID: 71, Active: false},
	}, commits[1])
}

// TestWaitRetire verifies that:
//
//	Given hardware that signals the retire fence after a delay,
//	When a commit returns,
//	Then waiting with a shorter deadline times out,
//	And waiting without one returns once the frame is written.
func TestWaitRetire(t *testing.T) {
	kernel := memory.New(
		memory.WithLogger(testLogger()),
		memory.WithWriteback(token),
		memory.WithRetireFences(200*time.Millisecond),
	)
	base := device.New(kernel, token, wbdisplay.Resources{MaxMixerWidth: 2560}, testLogger())
	ctx := context.Background()
	require.NoError(t, base.Init(ctx))
	t.Cleanup(func() { base.Close() })

	require.NoError(t, base.PowerOn(ctx))
	require.NotNil(t, base.RetireFence())

	short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, base.WaitRetire(short), context.DeadlineExceeded)

	require.NoError(t, base.WaitRetire(ctx))
	require.NoError(t, base.WaitRetire(ctx), "a signalled fence stays signalled")
}

func TestWaitRetire_NoFence(t *testing.T) {
	base, _ := newBase(t, mode(1280, 720, 60))
	ctx := context.Background()

	require.NoError(t, base.PowerOn(ctx))
	assert.Nil(t, base.RetireFence())
	assert.NoError(t, base.WaitRetire(ctx))
}
