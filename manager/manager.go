// Package manager implements the virtual writeback display on top of
// a base device.
//
// # Mode model
//
// A writeback sink accepts any resolution the layer mixers can
// produce, but the kernel only programs modes present in the
// connector's mode table. SetDisplayAttributes therefore first looks
// for an exact (width, height, refresh) match and, failing that,
// synthesizes a mode, pushes the extended table to the kernel and
// reloads the connector. The mode list only grows.
//
// # Frame model
//
// Each Commit builds one atomic transaction:
//
//  1. On the first frame only: assign the pipe and power the connector on.
//  2. Bind the output framebuffer, resolved through the buffer registry.
//  3. Set the destination rectangle to the full selected mode.
//  4. Set the framebuffer secure mode from the buffer.
//
// The first Commit to enqueue the first-cycle properties leaves the
// first cycle, whether or not the kernel accepts it. The pipe
// assignment and power-on are never sent again by Commit.
//
// Validate builds the same transaction and submits it test-only. It
// never changes first-cycle state or the registry's slot ownership, so
// it can be repeated any number of times before a Commit.
//
// A failed Commit is not retried and does not advance the registry.
package manager

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/frobware/go-wbdisplay"
	"github.com/frobware/go-wbdisplay/compute"
	"github.com/frobware/go-wbdisplay/device"
	"github.com/frobware/go-wbdisplay/registry"
)

// Manager is a virtual writeback display. It is not safe for
// concurrent use.
type Manager struct {
	base     *device.Base
	registry *registry.Registry

	// firstCycle is true until the first Commit enqueues the pipe
	// assignment and power-on.
	firstCycle bool
	frames     uint64

	session uuid.UUID
	logger  *slog.Logger
}

// New creates a display over base, resolving output buffers through
// reg.
func New(base *device.Base, reg *registry.Registry, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	session := uuid.New()
	token := base.Token()
	return &Manager{
		base:       base,
		registry:   reg,
		firstCycle: true,
		session:    session,
		logger: WithOpIDHandler(logger).With("component", "manager",
			"session", session.String(), "connector_id", token.ConnectorID, "crtc_id", token.CRTCID),
	}
}

// Init initialises the base device and, when the driver reports no
// topology, infers one from the widest mode.
func (m *Manager) Init(ctx context.Context) error {
	if err := m.base.Init(ctx); err != nil {
		return err
	}

	state := m.base.ConnectorState()
	if state.Topology() == wbdisplay.TopologyUnknown {
		topology := compute.InferTopology(state.Modes(), m.base.Resources().MaxMixerWidth)
		m.base.SetTopology(topology)
		m.base.InitializeConfigs()
		m.logger.InfoContext(ctx, "inferred topology", "topology", topology,
			"max_mixer_width", m.base.Resources().MaxMixerWidth)
	}

	m.logger.InfoContext(ctx, "display initialised", "modes", state.ModeCount(),
		"topology", m.base.ConnectorState().Topology())
	return nil
}

// Session returns the id tagging this display's log records.
func (m *Manager) Session() uuid.UUID { return m.session }

// Token returns the connector and pipe the display drives.
func (m *Manager) Token() wbdisplay.Token { return m.base.Token() }

// Modes returns the connector's current mode list.
func (m *Manager) Modes() []wbdisplay.Mode { return m.base.ConnectorState().Modes() }

// Topology returns the connector topology.
func (m *Manager) Topology() wbdisplay.Topology { return m.base.ConnectorState().Topology() }

// CurrentModeIndex returns the selected mode index, or -1.
func (m *Manager) CurrentModeIndex() int { return m.base.CurrentModeIndex() }

// DisplayAttributes returns the attributes of the selected mode.
func (m *Manager) DisplayAttributes() (wbdisplay.ModeAttributes, bool) {
	return m.base.CurrentModeAttributes()
}

// PanelInfo returns the virtual panel description.
func (m *Manager) PanelInfo() wbdisplay.PanelInfo { return m.base.PanelInfo() }

// MixerAttributes returns the layer mixer output.
func (m *Manager) MixerAttributes() wbdisplay.MixerAttributes { return m.base.MixerAttributes() }

// PPFeaturesVersion reports the post-processing feature versions.
// A writeback output has no post-processing blocks.
func (m *Manager) PPFeaturesVersion() wbdisplay.PPFeatureVersion {
	return wbdisplay.PPFeatureVersion{}
}

// PowerOn powers the display on. Before the first commit it does
// nothing: the first commit assigns the pipe and powers on itself.
func (m *Manager) PowerOn(ctx context.Context) error {
	if m.firstCycle {
		m.logger.DebugContext(ctx, "power on deferred to first commit")
		return nil
	}
	return m.base.PowerOn(ctx)
}

// WaitRetire blocks until the latest committed frame has been written
// to its output buffer.
func (m *Manager) WaitRetire(ctx context.Context) error {
	return m.base.WaitRetire(ctx)
}

// PowerOff powers the display off.
func (m *Manager) PowerOff(ctx context.Context) error {
	return m.base.PowerOff(ctx)
}

// Close releases every framebuffer and the device.
func (m *Manager) Close(ctx context.Context) error {
	return errors.Join(
		m.registry.Close(ctx),
		m.base.Close(),
	)
}
