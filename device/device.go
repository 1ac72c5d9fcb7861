// Package device provides the base display device: the component that
// owns the connector snapshot, the derived attribute caches and the
// pending atomic transaction, and is the only path from the display to
// the kernel's atomic interface.
package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/frobware/go-wbdisplay"
	"github.com/frobware/go-wbdisplay/action"
	"github.com/frobware/go-wbdisplay/compute"
	"github.com/frobware/go-wbdisplay/interpreter"
)

// Base is the base device for one connector. It is not safe for
// concurrent use.
type Base struct {
	kernel    interpreter.KernelOperations
	token     wbdisplay.Token
	resources wbdisplay.Resources

	state     wbdisplay.ConnectorState
	modeAttrs []wbdisplay.ModeAttributes

	// currentMode indexes state's mode list, or is -1 until a mode
	// is selected.
	currentMode int
	panel       wbdisplay.PanelInfo
	mixer       wbdisplay.MixerAttributes

	txn         action.Transaction
	retireFence *os.File

	logger *slog.Logger
}

// New creates a base device driving token through kernel.
func New(kernel interpreter.KernelOperations, token wbdisplay.Token, resources wbdisplay.Resources, logger *slog.Logger) *Base {
	if logger == nil {
		logger = slog.Default()
	}
	return &Base{
		kernel:      kernel,
		token:       token,
		resources:   resources,
		currentMode: -1,
		logger: logger.With("component", "device",
			"connector_id", token.ConnectorID, "crtc_id", token.CRTCID),
	}
}

// Init loads the connector metadata and builds the per-mode caches.
func (b *Base) Init(ctx context.Context) error {
	info, err := b.kernel.ReloadConnector(ctx, b.token.ConnectorID)
	if err != nil {
		return b.hardwareError("get connector", err)
	}
	b.state = wbdisplay.NewConnectorState(info)
	b.InitializeConfigs()
	b.logger.DebugContext(ctx, "device initialised", "modes", b.state.ModeCount(),
		"topology", b.state.Topology(), "connected", info.Connected)
	return nil
}

// Token returns the connector and pipe this device drives.
func (b *Base) Token() wbdisplay.Token { return b.token }

// Resources returns the hardware limits.
func (b *Base) Resources() wbdisplay.Resources { return b.resources }

// ConnectorState returns the current connector snapshot.
func (b *Base) ConnectorState() wbdisplay.ConnectorState { return b.state }

// SetTopology replaces the connector snapshot with one carrying t.
func (b *Base) SetTopology(t wbdisplay.Topology) {
	b.state = b.state.WithTopology(t)
}

// UpdateModeTable sends modes to the kernel as the connector's full
// mode list. The cached snapshot is not touched.
func (b *Base) UpdateModeTable(ctx context.Context, modes []wbdisplay.Mode) error {
	if err := b.kernel.UpdateModeTable(ctx, b.token.ConnectorID, true, modes); err != nil {
		return b.hardwareError("writeback mode table update", err)
	}
	return nil
}

// ReloadConnector replaces the snapshot with the kernel's view of the
// connector. A topology the kernel does not report is carried over
// from the previous snapshot.
func (b *Base) ReloadConnector(ctx context.Context) error {
	info, err := b.kernel.ReloadConnector(ctx, b.token.ConnectorID)
	if err != nil {
		return b.hardwareError("get connector", err)
	}
	if info.Topology == wbdisplay.TopologyUnknown {
		info.Topology = b.state.Topology()
	}
	b.state = b.state.Replace(info)
	b.logger.DebugContext(ctx, "connector reloaded", "version", b.state.Version(), "modes", b.state.ModeCount())
	return nil
}

// InitializeConfigs rebuilds the per-mode attribute cache from the
// current snapshot and refreshes the panel and mixer caches for the
// selected mode.
func (b *Base) InitializeConfigs() {
	b.modeAttrs = compute.AllModeAttributes(b.state)
	if b.currentMode >= len(b.modeAttrs) {
		b.currentMode = -1
	}
	b.refreshCurrent()
}

// SetCurrentMode selects the mode at index i and refreshes the panel
// and mixer attributes.
func (b *Base) SetCurrentMode(i int) error {
	if i < 0 || i >= len(b.modeAttrs) {
		return fmt.Errorf("mode index %d out of range [0,%d): %w", i, len(b.modeAttrs), wbdisplay.ErrInvalidParameters)
	}
	b.currentMode = i
	b.refreshCurrent()
	return nil
}

func (b *Base) refreshCurrent() {
	if b.currentMode < 0 {
		b.panel = wbdisplay.PanelInfo{}
		b.mixer = wbdisplay.MixerAttributes{}
		return
	}
	attrs := b.modeAttrs[b.currentMode]
	b.panel = compute.PanelInfo(attrs, b.state.Topology())
	b.mixer = compute.MixerAttributes(attrs)
}

// CurrentModeIndex returns the selected mode index, or -1.
func (b *Base) CurrentModeIndex() int { return b.currentMode }

// ModeAttributes returns the cached attributes of mode i.
func (b *Base) ModeAttributes(i int) (wbdisplay.ModeAttributes, bool) {
	if i < 0 || i >= len(b.modeAttrs) {
		return wbdisplay.ModeAttributes{}, false
	}
	return b.modeAttrs[i], true
}

// CurrentModeAttributes returns the attributes of the selected mode.
func (b *Base) CurrentModeAttributes() (wbdisplay.ModeAttributes, bool) {
	return b.ModeAttributes(b.currentMode)
}

// PanelInfo returns the panel description of the selected mode.
func (b *Base) PanelInfo() wbdisplay.PanelInfo { return b.panel }

// MixerAttributes returns the mixer output of the selected mode.
func (b *Base) MixerAttributes() wbdisplay.MixerAttributes { return b.mixer }

// Transaction returns the pending atomic transaction.
func (b *Base) Transaction() *action.Transaction { return &b.txn }

// AtomicCommit submits the pending transaction and resets it whatever
// the outcome.
func (b *Base) AtomicCommit(ctx context.Context) error {
	actions := b.txn.Actions()
	b.txn.Reset()

	result, err := b.kernel.AtomicCommit(ctx, actions)
	if err != nil {
		return b.hardwareError("atomic commit", err)
	}
	b.setRetireFence(result.RetireFence)
	b.logger.DebugContext(ctx, "committed", "actions", len(actions))
	return nil
}

// AtomicDryRun checks the pending transaction without applying it and
// resets it whatever the outcome.
func (b *Base) AtomicDryRun(ctx context.Context) error {
	actions := b.txn.Actions()
	b.txn.Reset()

	if err := b.kernel.AtomicTest(ctx, actions); err != nil {
		return b.hardwareError("atomic test", err)
	}
	b.logger.DebugContext(ctx, "validated", "actions", len(actions))
	return nil
}

// PowerOn activates the pipe and powers the connector on.
func (b *Base) PowerOn(ctx context.Context) error {
	b.txn.Perform(compute.PowerOnActions(b.token)...)
	return b.AtomicCommit(ctx)
}

// PowerOff powers the connector off and deactivates the pipe.
func (b *Base) PowerOff(ctx context.Context) error {
	b.txn.Perform(compute.PowerOffActions(b.token)...)
	return b.AtomicCommit(ctx)
}

func (b *Base) setRetireFence(f *os.File) {
	if f == nil {
		return
	}
	if b.retireFence != nil {
		b.retireFence.Close()
	}
	b.retireFence = f
}

// Close releases the last retire fence and the kernel adapter.
func (b *Base) Close() error {
	var errs []error
	if b.retireFence != nil {
		errs = append(errs, b.retireFence.Close())
		b.retireFence = nil
	}
	errs = append(errs, b.kernel.Close())
	return errors.Join(errs...)
}

func (b *Base) hardwareError(op string, err error) error {
	b.logger.Error(op+" failed", "error", err)
	return &wbdisplay.HardwareError{
		Op:          op,
		ConnectorID: b.token.ConnectorID,
		CRTCID:      b.token.CRTCID,
		Err:         err,
	}
}
