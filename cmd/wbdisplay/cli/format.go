package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"k8s.io/client-go/util/jsonpath"

	"github.com/frobware/go-wbdisplay"
)

// tableFormatter renders a view as human-readable text.
type tableFormatter interface {
	table() string
}

// Format renders v according to flags.
func Format(v tableFormatter, flags *OutputFlags) (string, error) {
	switch flags.Format() {
	case OutputFormatJSON:
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal result: %w", err)
		}
		return string(out) + "\n", nil
	case OutputFormatJSONPath:
		return formatJSONPath(v, flags.JSONPathExpr())
	default:
		return v.table(), nil
	}
}

func formatJSONPath(v any, expr string) (string, error) {
	jp := jsonpath.New("output")
	if err := jp.Parse(expr); err != nil {
		return "", fmt.Errorf("invalid jsonpath expression %q: %w", expr, err)
	}

	// jsonpath walks generic values, so round-trip through JSON to
	// honour the json tags.
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal: %w", err)
	}
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return "", fmt.Errorf("failed to unmarshal: %w", err)
	}

	var buf bytes.Buffer
	if err := jp.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("jsonpath execution failed: %w", err)
	}
	return buf.String() + "\n", nil
}

// ModeRow is one mode in ModesView.
type ModeRow struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	Width   uint16 `json:"width"`
	Height  uint16 `json:"height"`
	Refresh uint32 `json:"refresh"`
	Clock   uint32 `json:"clock_khz"`
	HTotal  uint16 `json:"h_total"`
	VTotal  uint16 `json:"v_total"`
	Current bool   `json:"current"`
}

// ModesView is the output of the modes command.
type ModesView struct {
	Token    wbdisplay.Token    `json:"token"`
	Topology wbdisplay.Topology `json:"topology"`
	Modes    []ModeRow          `json:"modes"`
}

// NewModesView builds the view of modes with current marked.
func NewModesView(token wbdisplay.Token, topology wbdisplay.Topology, modes []wbdisplay.Mode, current int) ModesView {
	v := ModesView{Token: token, Topology: topology, Modes: make([]ModeRow, len(modes))}
	for i, m := range modes {
		v.Modes[i] = ModeRow{
			Index:   i,
			Name:    m.Name,
			Width:   m.HDisplay,
			Height:  m.VDisplay,
			Refresh: m.VRefresh,
			Clock:   m.Clock,
			HTotal:  m.HTotal,
			VTotal:  m.VTotal,
			Current: i == current,
		}
	}
	return v
}

func (v ModesView) table() string {
	var b strings.Builder
	fmt.Fprintf(&b, "CONNECTOR  %d  crtc %d  %s\n", v.Token.ConnectorID, v.Token.CRTCID, v.Topology)
	if len(v.Modes) == 0 {
		b.WriteString("  no modes\n")
		return b.String()
	}
	fmt.Fprintf(&b, "  %-3s %-5s %-12s %-7s %-10s %-6s %-6s %s\n", "", "INDEX", "NAME", "REFRESH", "CLOCK", "HTOTAL", "VTOTAL", "SIZE")
	for _, m := range v.Modes {
		mark := ""
		if m.Current {
			mark = "*"
		}
		fmt.Fprintf(&b, "  %-3s %-5d %-12s %-7d %-10d %-6d %-6d %dx%d\n",
			mark, m.Index, m.Name, m.Refresh, m.Clock, m.HTotal, m.VTotal, m.Width, m.Height)
	}
	return b.String()
}

// DisplayView is the output of the set command.
type DisplayView struct {
	Token      wbdisplay.Token           `json:"token"`
	ModeIndex  int                       `json:"mode_index"`
	Attributes wbdisplay.ModeAttributes  `json:"attributes"`
	Panel      wbdisplay.PanelInfo       `json:"panel"`
	Mixer      wbdisplay.MixerAttributes `json:"mixer"`
}

func (v DisplayView) table() string {
	var b strings.Builder
	fmt.Fprintf(&b, "MODE  %d  %s\n", v.ModeIndex, v.Attributes.DisplayAttributes)
	fmt.Fprintf(&b, "  clock     %d kHz\n", v.Attributes.ClockKHz)
	fmt.Fprintf(&b, "  total     %dx%d\n", v.Attributes.HTotal, v.Attributes.VTotal)
	fmt.Fprintf(&b, "  vsync     %d ns\n", v.Attributes.VSyncPeriodNs)
	fmt.Fprintf(&b, "  topology  %s\n", v.Panel.Topology)
	fmt.Fprintf(&b, "  mixer     %dx%d split-left %d\n", v.Mixer.Width, v.Mixer.Height, v.Mixer.SplitLeft)
	return b.String()
}

// FramesView is the output of the commit and validate commands.
type FramesView struct {
	Resolution string `json:"resolution"`
	Frames     int    `json:"frames"`
	Buffers    int    `json:"buffers"`
	Validated  bool   `json:"validated"`
}

func (v FramesView) table() string {
	verb := "committed"
	if v.Validated {
		verb = "validated"
	}
	return fmt.Sprintf("%s %d frame(s) at %s using %d buffer(s)\n", verb, v.Frames, v.Resolution, v.Buffers)
}

// CaptureView is the output of the capture command.
type CaptureView struct {
	Path   string `json:"path"`
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
	Bytes  int    `json:"bytes"`
}

func (v CaptureView) table() string {
	return fmt.Sprintf("captured %dx%d frame to %s\n", v.Width, v.Height, v.Path)
}
