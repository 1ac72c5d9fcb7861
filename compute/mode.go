// Package compute contains pure functions for the display's decision
// logic. Functions in this package perform no I/O - they transform
// connector data into modes, derived attributes and actions.
package compute

import (
	"fmt"

	"github.com/frobware/go-wbdisplay"
)

// FindMode returns the index of the first mode whose active size and
// refresh rate exactly equal the requested attributes. Matching is
// strict and stable: insertion order decides between duplicates.
func FindMode(modes []wbdisplay.Mode, requested wbdisplay.DisplayAttributes) (int, bool) {
	for i, m := range modes {
		if m.Matches(requested) {
			return i, true
		}
	}
	return -1, false
}

// SynthesizeMode builds a timing mode for a writeback sink. Nothing
// is scanned out, so sync start, end and total all equal the active
// size and the pixel clock is derived from the totals.
func SynthesizeMode(requested wbdisplay.DisplayAttributes) wbdisplay.Mode {
	h := uint16(requested.XPixels)
	v := uint16(requested.YPixels)
	m := wbdisplay.Mode{
		HDisplay:   h,
		HSyncStart: h,
		HSyncEnd:   h,
		HTotal:     h,
		VDisplay:   v,
		VSyncStart: v,
		VSyncEnd:   v,
		VTotal:     v,
		VRefresh:   requested.FPS,
	}
	m.Clock = PixelClock(m)
	m.Name = modeName(m)
	return m
}

// PixelClock returns htotal * vtotal * vrefresh / 1000 in kHz.
func PixelClock(m wbdisplay.Mode) uint32 {
	return uint32(uint64(m.HTotal) * uint64(m.VTotal) * uint64(m.VRefresh) / 1000)
}

func modeName(m wbdisplay.Mode) string {
	return fmt.Sprintf("%dx%d", m.HDisplay, m.VDisplay)
}

// AppendMode returns a new mode list with m appended. The input is
// never modified.
func AppendMode(modes []wbdisplay.Mode, m wbdisplay.Mode) []wbdisplay.Mode {
	out := make([]wbdisplay.Mode, 0, len(modes)+1)
	out = append(out, modes...)
	return append(out, m)
}

// InferTopology chooses a topology for a connector the driver has not
// assigned one to: a merged dual-mixer layout when any mode is wider
// than a single mixer can produce, otherwise a single mixer.
func InferTopology(modes []wbdisplay.Mode, maxMixerWidth uint32) wbdisplay.Topology {
	var maxWidth uint32
	for _, m := range modes {
		maxWidth = max(maxWidth, uint32(m.HDisplay))
	}
	if maxWidth > maxMixerWidth {
		return wbdisplay.TopologyDualLMMerge
	}
	return wbdisplay.TopologySingleLM
}
