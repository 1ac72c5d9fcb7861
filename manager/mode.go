package manager

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/frobware/go-wbdisplay"
	"github.com/frobware/go-wbdisplay/compute"
)

// SetDisplayAttributes selects the mode matching attrs, registering a
// new mode with the kernel if none exists. On failure the selected
// mode is unchanged.
func (m *Manager) SetDisplayAttributes(ctx context.Context, attrs wbdisplay.DisplayAttributes) error {
	if attrs.XPixels == 0 || attrs.YPixels == 0 {
		m.logger.ErrorContext(ctx, "invalid display attributes", "requested", attrs.String())
		return fmt.Errorf("display attributes %s: %w", attrs, wbdisplay.ErrInvalidParameters)
	}
	if attrs.XPixels > math.MaxUint16 || attrs.YPixels > math.MaxUint16 {
		m.logger.ErrorContext(ctx, "display attributes exceed mode timing range", "requested", attrs.String())
		return fmt.Errorf("display attributes %s: %w", attrs, wbdisplay.ErrInvalidParameters)
	}

	index, ok := m.negotiateMode(attrs)
	if !ok {
		var err error
		if index, err = m.registerNewMode(ctx, attrs); err != nil {
			return err
		}
	}

	if err := m.base.SetCurrentMode(index); err != nil {
		return err
	}
	m.logger.InfoContext(ctx, "display attributes set", "resolution", attrs.String(), "mode_index", index)
	return nil
}

func (m *Manager) negotiateMode(attrs wbdisplay.DisplayAttributes) (int, bool) {
	return compute.FindMode(m.base.ConnectorState().Modes(), attrs)
}

// registerNewMode appends a synthesized mode to the connector's mode
// table and returns its index after the kernel has accepted it.
func (m *Manager) registerNewMode(ctx context.Context, attrs wbdisplay.DisplayAttributes) (int, error) {
	mode := compute.SynthesizeMode(attrs)
	modes := compute.AppendMode(m.base.ConnectorState().Modes(), mode)

	m.logger.InfoContext(ctx, "registering new mode", "mode", mode.String(), "clock", mode.Clock, "count", len(modes))
	if err := m.base.UpdateModeTable(ctx, modes); err != nil {
		m.dumpModes(ctx, slog.LevelError, "rejected mode table", modes)
		return -1, err
	}

	if err := m.base.ReloadConnector(ctx); err != nil {
		m.dumpModes(ctx, slog.LevelError, "mode table accepted but connector reload failed", modes)
		return -1, err
	}
	m.base.InitializeConfigs()
	m.dumpModes(ctx, slog.LevelDebug, "mode table after update", m.base.ConnectorState().Modes())

	index, ok := m.negotiateMode(attrs)
	if !ok {
		m.dumpModes(ctx, slog.LevelError, "registered mode missing from connector", m.base.ConnectorState().Modes())
		return -1, wbdisplay.ModeNotFoundError{Requested: attrs}
	}
	return index, nil
}

// DumpModes logs the connector's mode table and returns it.
func (m *Manager) DumpModes(ctx context.Context) []wbdisplay.Mode {
	modes := m.base.ConnectorState().Modes()
	m.dumpModes(ctx, slog.LevelInfo, "connector modes", modes)
	return modes
}

func (m *Manager) dumpModes(ctx context.Context, level slog.Level, msg string, modes []wbdisplay.Mode) {
	if !m.logger.Enabled(ctx, level) {
		return
	}
	m.logger.Log(ctx, level, msg, "count", len(modes))
	for i, mode := range modes {
		m.logger.Log(ctx, level, "mode",
			"index", i,
			"name", mode.Name,
			"clock", mode.Clock,
			"hdisplay", mode.HDisplay,
			"hsync_start", mode.HSyncStart,
			"hsync_end", mode.HSyncEnd,
			"htotal", mode.HTotal,
			"vdisplay", mode.VDisplay,
			"vsync_start", mode.VSyncStart,
			"vsync_end", mode.VSyncEnd,
			"vtotal", mode.VTotal,
			"vrefresh", mode.VRefresh,
			"flags", mode.Flags,
			"type", mode.Type)
	}
}
