package wbdisplay

// PowerMode is the connector power state. Values are those of the
// connector's LP enum property.
type PowerMode uint64

const (
	PowerModeOn          PowerMode = 0
	PowerModeDoze        PowerMode = 1
	PowerModeDozeSuspend PowerMode = 2
	PowerModeOff         PowerMode = 5
)

// String returns the string representation of the power mode.
func (p PowerMode) String() string {
	switch p {
	case PowerModeOn:
		return "on"
	case PowerModeDoze:
		return "doze"
	case PowerModeDozeSuspend:
		return "doze-suspend"
	case PowerModeOff:
		return "off"
	default:
		return "unknown"
	}
}

// SecureMode tags the output framebuffer for protected content
// handling. Values are those of the fb_translation_mode property.
type SecureMode uint64

const (
	SecureModeNonSecure SecureMode = 0
	SecureModeSecure    SecureMode = 1
)

// SecureModeFor maps a buffer's secure flag to the property value.
func SecureModeFor(secure bool) SecureMode {
	if secure {
		return SecureModeSecure
	}
	return SecureModeNonSecure
}

// String returns the string representation of the secure mode.
func (s SecureMode) String() string {
	if s == SecureModeSecure {
		return "secure"
	}
	return "non-secure"
}

// PanelInfo describes the virtual panel presented by the current mode.
type PanelInfo struct {
	Width     uint32   `json:"width"`
	Height    uint32   `json:"height"`
	MinFPS    uint32   `json:"min_fps"`
	MaxFPS    uint32   `json:"max_fps"`
	SplitLeft uint32   `json:"split_left"`
	Topology  Topology `json:"topology"`
	IsPrimary bool     `json:"is_primary"`
	Writeback bool     `json:"writeback"`
}

// MixerAttributes describe the layer mixer output for the current mode.
type MixerAttributes struct {
	Width     uint32 `json:"width"`
	Height    uint32 `json:"height"`
	SplitLeft uint32 `json:"split_left"`
}

// PPFeatureVersion reports post-processing feature versions. A
// writeback sink has none, so the zero value is all it ever reports.
type PPFeatureVersion struct {
	Versions map[string]uint32 `json:"versions,omitempty"`
}
