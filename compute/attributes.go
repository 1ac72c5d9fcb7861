package compute

import (
	"github.com/frobware/go-wbdisplay"
)

// ModeAttributes derives the display attributes cached for one mode.
func ModeAttributes(m wbdisplay.Mode, topology wbdisplay.Topology) wbdisplay.ModeAttributes {
	attrs := wbdisplay.ModeAttributes{
		DisplayAttributes: wbdisplay.DisplayAttributes{
			XPixels: uint32(m.HDisplay),
			YPixels: uint32(m.VDisplay),
			FPS:     m.VRefresh,
		},
		HTotal:       uint32(m.HTotal),
		VTotal:       uint32(m.VTotal),
		ClockKHz:     m.Clock,
		SplitDisplay: topology.Split(),
	}
	if m.VRefresh > 0 {
		attrs.VSyncPeriodNs = uint32(1_000_000_000 / m.VRefresh)
	}
	return attrs
}

// AllModeAttributes rebuilds the per-mode attribute cache from a
// connector snapshot. The result is index-aligned with the mode list.
func AllModeAttributes(state wbdisplay.ConnectorState) []wbdisplay.ModeAttributes {
	modes := state.Modes()
	attrs := make([]wbdisplay.ModeAttributes, len(modes))
	for i, m := range modes {
		attrs[i] = ModeAttributes(m, state.Topology())
	}
	return attrs
}

// PanelInfo derives the virtual panel description for the selected
// mode.
func PanelInfo(attrs wbdisplay.ModeAttributes, topology wbdisplay.Topology) wbdisplay.PanelInfo {
	return wbdisplay.PanelInfo{
		Width:     attrs.XPixels,
		Height:    attrs.YPixels,
		MinFPS:    attrs.FPS,
		MaxFPS:    attrs.FPS,
		SplitLeft: splitLeft(attrs),
		Topology:  topology,
		Writeback: true,
	}
}

// MixerAttributes derives the layer mixer output for the selected
// mode.
func MixerAttributes(attrs wbdisplay.ModeAttributes) wbdisplay.MixerAttributes {
	return wbdisplay.MixerAttributes{
		Width:     attrs.XPixels,
		Height:    attrs.YPixels,
		SplitLeft: splitLeft(attrs),
	}
}

func splitLeft(attrs wbdisplay.ModeAttributes) uint32 {
	if attrs.SplitDisplay {
		return attrs.XPixels / 2
	}
	return attrs.XPixels
}

// DestinationRect returns the full-frame output rectangle for the
// selected mode. No cropping or scaling happens at this layer.
func DestinationRect(attrs wbdisplay.DisplayAttributes) wbdisplay.Rect {
	return wbdisplay.Rect{
		Left:   0,
		Top:    0,
		Right:  attrs.XPixels,
		Bottom: attrs.YPixels,
	}
}
