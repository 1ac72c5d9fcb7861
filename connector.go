package wbdisplay

import "slices"

// Topology describes how many layer mixers combine to drive one
// connector.
type Topology uint32

const (
	TopologyUnknown Topology = iota
	TopologySingleLM
	TopologySingleLMDSC
	TopologyDualLM
	TopologyDualLMDSC
	TopologyDualLMMerge
	TopologyDualLMMergeDSC
	TopologyDualLMDSCMerge
	TopologyPPSplit
)

// String returns the string representation of the topology.
func (t Topology) String() string {
	switch t {
	case TopologySingleLM:
		return "single-lm"
	case TopologySingleLMDSC:
		return "single-lm-dsc"
	case TopologyDualLM:
		return "dual-lm"
	case TopologyDualLMDSC:
		return "dual-lm-dsc"
	case TopologyDualLMMerge:
		return "dual-lm-merge"
	case TopologyDualLMMergeDSC:
		return "dual-lm-merge-dsc"
	case TopologyDualLMDSCMerge:
		return "dual-lm-dsc-merge"
	case TopologyPPSplit:
		return "pp-split"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so Topology
// serialises as its string name in JSON.
func (t Topology) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Split reports whether the topology drives the connector with more
// than one mixer.
func (t Topology) Split() bool {
	switch t {
	case TopologyDualLM, TopologyDualLMDSC, TopologyDualLMMerge,
		TopologyDualLMMergeDSC, TopologyDualLMDSCMerge, TopologyPPSplit:
		return true
	default:
		return false
	}
}

// ConnectorInfo is the hardware sink metadata as reported by the
// kernel.
type ConnectorInfo struct {
	Modes     []Mode   `json:"modes"`
	Topology  Topology `json:"topology"`
	Connected bool     `json:"connected"`
}

// ConnectorState is an immutable, versioned snapshot of ConnectorInfo.
// It is never mutated in place: a reload or topology assignment
// produces a new state with the next version.
type ConnectorState struct {
	version uint64
	info    ConnectorInfo
}

// NewConnectorState returns the first version of a connector state.
func NewConnectorState(info ConnectorInfo) ConnectorState {
	return ConnectorState{version: 1, info: cloneInfo(info)}
}

// Version returns the snapshot version. The zero ConnectorState has
// version 0.
func (s ConnectorState) Version() uint64 { return s.version }

// Info returns a copy of the connector metadata.
func (s ConnectorState) Info() ConnectorInfo { return cloneInfo(s.info) }

// Topology returns the connector topology.
func (s ConnectorState) Topology() Topology { return s.info.Topology }

// Modes returns a copy of the ordered mode list.
func (s ConnectorState) Modes() []Mode { return slices.Clone(s.info.Modes) }

// ModeCount returns the number of known modes.
func (s ConnectorState) ModeCount() int { return len(s.info.Modes) }

// Mode returns the mode at index i.
func (s ConnectorState) Mode(i int) (Mode, bool) {
	if i < 0 || i >= len(s.info.Modes) {
		return Mode{}, false
	}
	return s.info.Modes[i], true
}

// Replace returns the successor state holding info.
func (s ConnectorState) Replace(info ConnectorInfo) ConnectorState {
	return ConnectorState{version: s.version + 1, info: cloneInfo(info)}
}

// WithTopology returns the successor state with the topology set.
func (s ConnectorState) WithTopology(t Topology) ConnectorState {
	info := s.Info()
	info.Topology = t
	return s.Replace(info)
}

func cloneInfo(info ConnectorInfo) ConnectorInfo {
	info.Modes = slices.Clone(info.Modes)
	return info
}

// Token identifies the connector and the display pipe (CRTC) assigned
// to it. It is fixed at device construction.
type Token struct {
	ConnectorID uint32 `json:"connector_id"`
	CRTCID      uint32 `json:"crtc_id"`
}

// Resources are the hardware limits the driver needs.
type Resources struct {
	// MaxMixerWidth is the widest output a single layer mixer can
	// produce.
	MaxMixerWidth uint32 `json:"max_mixer_width"`
}
