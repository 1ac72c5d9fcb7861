package kernel

import (
	"bufio"
	"bytes"
	"strings"

	"github.com/frobware/go-wbdisplay"
)

// ModePropertiesName is the connector blob property that carries the
// driver's per-mode key=value lines, including the topology.
const ModePropertiesName = "mode_properties"

var topologies = map[string]wbdisplay.Topology{
	"sde_singlepipe":        wbdisplay.TopologySingleLM,
	"sde_singlepipe_dsc":    wbdisplay.TopologySingleLMDSC,
	"sde_dualpipe":          wbdisplay.TopologyDualLM,
	"sde_dualpipe_dsc":      wbdisplay.TopologyDualLMDSC,
	"sde_dualpipemerge":     wbdisplay.TopologyDualLMMerge,
	"sde_dualpipemerge_dsc": wbdisplay.TopologyDualLMMergeDSC,
	"sde_dualpipe_dscmerge": wbdisplay.TopologyDualLMDSCMerge,
	"sde_ppsplit":           wbdisplay.TopologyPPSplit,
}

// ParseModeProperties splits a mode_properties blob into its key=value
// pairs. Lines without '=' are ignored and the blob may be NUL padded.
func ParseModeProperties(blob []byte) map[string]string {
	blob, _, _ = bytes.Cut(blob, []byte{0})
	props := make(map[string]string)
	sc := bufio.NewScanner(bytes.NewReader(blob))
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), "=")
		if !ok {
			continue
		}
		props[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return props
}

// TopologyFromModeProperties returns the topology named in a
// mode_properties blob, or TopologyUnknown if none is assigned.
func TopologyFromModeProperties(blob []byte) wbdisplay.Topology {
	name, ok := ParseModeProperties(blob)["topology"]
	if !ok {
		return wbdisplay.TopologyUnknown
	}
	return topologies[strings.ToLower(name)]
}
