package wbdisplay

import "fmt"

// Mode is one timing descriptor known to a connector. The field set
// mirrors the kernel's drm_mode_modeinfo. Modes are immutable once
// they have been added to a connector's mode list.
type Mode struct {
	Clock      uint32 `json:"clock"` // pixel clock in kHz
	HDisplay   uint16 `json:"hdisplay"`
	HSyncStart uint16 `json:"hsync_start"`
	HSyncEnd   uint16 `json:"hsync_end"`
	HTotal     uint16 `json:"htotal"`
	HSkew      uint16 `json:"hskew"`
	VDisplay   uint16 `json:"vdisplay"`
	VSyncStart uint16 `json:"vsync_start"`
	VSyncEnd   uint16 `json:"vsync_end"`
	VTotal     uint16 `json:"vtotal"`
	VScan      uint16 `json:"vscan"`
	VRefresh   uint32 `json:"vrefresh"`
	Flags      uint32 `json:"flags"`
	Type       uint32 `json:"type"`
	Name       string `json:"name"`
}

// Matches reports whether the mode's active size and refresh rate are
// exactly those requested. There is no tolerance: any field off by one
// is a miss.
func (m Mode) Matches(a DisplayAttributes) bool {
	return uint32(m.HDisplay) == a.XPixels &&
		uint32(m.VDisplay) == a.YPixels &&
		m.VRefresh == a.FPS
}

// String renders the mode as WxH@FPS.
func (m Mode) String() string {
	return fmt.Sprintf("%dx%d@%d", m.HDisplay, m.VDisplay, m.VRefresh)
}

// DisplayAttributes is a caller-requested output size and refresh rate.
type DisplayAttributes struct {
	XPixels uint32 `json:"x_pixels"`
	YPixels uint32 `json:"y_pixels"`
	FPS     uint32 `json:"fps"`
}

// String renders the attributes as WxH@FPS.
func (a DisplayAttributes) String() string {
	return fmt.Sprintf("%dx%d@%d", a.XPixels, a.YPixels, a.FPS)
}

// ModeAttributes are the display attributes derived from one mode.
// They are rebuilt whenever the connector's mode list is reloaded.
type ModeAttributes struct {
	DisplayAttributes
	HTotal        uint32 `json:"h_total"`
	VTotal        uint32 `json:"v_total"`
	ClockKHz      uint32 `json:"clock_khz"`
	VSyncPeriodNs uint32 `json:"vsync_period_ns"`
	SplitDisplay  bool   `json:"split_display"`
}
