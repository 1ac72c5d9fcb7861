package drm

import (
	"context"
	"fmt"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/frobware/go-wbdisplay"
	"github.com/frobware/go-wbdisplay/kernel"
)

// connectorTypeWriteback is DRM_MODE_CONNECTOR_WRITEBACK.
const connectorTypeWriteback = 18

// propTypeBlob is DRM_MODE_PROP_BLOB.
const propTypeBlob = 1 << 4

type getConnector struct {
	encodersPtr   uint64
	modesPtr      uint64
	propsPtr      uint64
	propValuesPtr uint64

	countModes    uint32
	countProps    uint32
	countEncoders uint32

	encoderID       uint32
	connectorID     uint32
	connectorType   uint32
	connectorTypeID uint32

	connection uint32
	mmWidth    uint32
	mmHeight   uint32
	subpixel   uint32
	pad        uint32
}

type getResources struct {
	fbIDPtr        uint64
	crtcIDPtr      uint64
	connectorIDPtr uint64
	encoderIDPtr   uint64

	countFbs        uint32
	countCrtcs      uint32
	countConnectors uint32
	countEncoders   uint32

	minWidth, maxWidth   uint32
	minHeight, maxHeight uint32
}

type getEncoder struct {
	encoderID      uint32
	encoderType    uint32
	crtcID         uint32
	possibleCrtcs  uint32
	possibleClones uint32
}

type getBlob struct {
	blobID uint32
	length uint32
	data   uint64
}

// connector is the decoded result of GETCONNECTOR.
type connector struct {
	hdr        getConnector
	modes      []wbdisplay.Mode
	props      []uint32
	propValues []uint64
	encoders   []uint32
}

// UpdateModeTable sends the full mode list to the writeback connector
// with DRM_IOCTL_SDE_WB_CONFIG.
func (k *kernelAdapter) UpdateModeTable(ctx context.Context, connectorID uint32, connected bool, modes []wbdisplay.Mode) error {
	table := kernel.EncodeModes(modes)
	cfg := kernel.WBConfig{
		ConnectorID: connectorID,
		CountModes:  uint32(len(modes)),
		Modes:       ptr(table),
	}
	if connected {
		cfg.Flags |= kernel.WBConfigFlagConnected
	}
	payload, err := cfg.MarshalBinary()
	if err != nil {
		return err
	}

	err = k.ioctl(kernel.IOCTLSDEWBConfig, unsafe.Pointer(&payload[0]))
	runtime.KeepAlive(table)
	if err != nil {
		return fmt.Errorf("SDE_WB_CONFIG connector %d (%d modes): %w", connectorID, len(modes), err)
	}
	k.logger.DebugContext(ctx, "mode table updated", "connector_id", connectorID, "modes", len(modes), "connected", connected)
	return nil
}

// ReloadConnector queries the connector's modes, connection state and
// topology.
func (k *kernelAdapter) ReloadConnector(ctx context.Context, connectorID uint32) (wbdisplay.ConnectorInfo, error) {
	c, err := k.getConnector(connectorID, true)
	if err != nil {
		return wbdisplay.ConnectorInfo{}, err
	}

	info := wbdisplay.ConnectorInfo{
		Modes:     c.modes,
		Connected: c.hdr.connection == kernel.Connected,
		Topology:  wbdisplay.TopologyUnknown,
	}

	for i, id := range c.props {
		name, flags, err := k.propertyName(id)
		if err != nil {
			return wbdisplay.ConnectorInfo{}, err
		}
		if name != kernel.ModePropertiesName || flags&propTypeBlob == 0 || c.propValues[i] == 0 {
			continue
		}
		blob, err := k.blob(uint32(c.propValues[i]))
		if err != nil {
			return wbdisplay.ConnectorInfo{}, err
		}
		info.Topology = kernel.TopologyFromModeProperties(blob)
	}

	k.logger.DebugContext(ctx, "reloaded connector", "connector_id", connectorID,
		"modes", len(info.Modes), "connected", info.Connected, "topology", info.Topology)
	return info, nil
}

// getConnector runs GETCONNECTOR twice: once for the counts, then with
// arrays sized to them. If the counts change in between the query is
// repeated.
func (k *kernelAdapter) getConnector(connectorID uint32, withModes bool) (connector, error) {
	for {
		var probe getConnector
		probe.connectorID = connectorID
		if err := k.ioctl(kernel.IOCTLModeGetConnector, unsafe.Pointer(&probe)); err != nil {
			return connector{}, fmt.Errorf("GETCONNECTOR %d: %w", connectorID, err)
		}

		var modeBuf []byte
		if withModes {
			modeBuf = make([]byte, int(probe.countModes)*kernel.ModeInfoSize)
		}
		c := connector{
			props:      make([]uint32, probe.countProps),
			propValues: make([]uint64, probe.countProps),
			encoders:   make([]uint32, probe.countEncoders),
		}

		hdr := getConnector{
			connectorID:   connectorID,
			propsPtr:      ptr(c.props),
			propValuesPtr: ptr(c.propValues),
			encodersPtr:   ptr(c.encoders),
			countProps:    probe.countProps,
			countEncoders: probe.countEncoders,
		}
		if withModes {
			hdr.modesPtr = ptr(modeBuf)
			hdr.countModes = probe.countModes
		}

		err := k.ioctl(kernel.IOCTLModeGetConnector, unsafe.Pointer(&hdr))
		runtime.KeepAlive(modeBuf)
		runtime.KeepAlive(c.props)
		runtime.KeepAlive(c.propValues)
		runtime.KeepAlive(c.encoders)
		if err != nil {
			return connector{}, fmt.Errorf("GETCONNECTOR %d: %w", connectorID, err)
		}
		if hdr.countProps > probe.countProps || hdr.countEncoders > probe.countEncoders ||
			(withModes && hdr.countModes > probe.countModes) {
			continue
		}

		c.hdr = hdr
		c.props = c.props[:hdr.countProps]
		c.propValues = c.propValues[:hdr.countProps]
		c.encoders = c.encoders[:hdr.countEncoders]
		if withModes {
			modes, err := kernel.DecodeModes(modeBuf[:int(hdr.countModes)*kernel.ModeInfoSize])
			if err != nil {
				return connector{}, fmt.Errorf("connector %d: %w", connectorID, err)
			}
			c.modes = modes
		}
		return c, nil
	}
}

func (k *kernelAdapter) blob(id uint32) ([]byte, error) {
	var req getBlob
	req.blobID = id
	if err := k.ioctl(kernel.IOCTLModeGetPropBlob, unsafe.Pointer(&req)); err != nil {
		return nil, fmt.Errorf("GETPROPBLOB %d: %w", id, err)
	}
	data := make([]byte, req.length)
	req.data = ptr(data)
	err := k.ioctl(kernel.IOCTLModeGetPropBlob, unsafe.Pointer(&req))
	runtime.KeepAlive(data)
	if err != nil {
		return nil, fmt.Errorf("GETPROPBLOB %d: %w", id, err)
	}
	return data, nil
}

// FindWriteback returns the first writeback connector and the first
// CRTC its encoder can drive.
func (k *kernelAdapter) FindWriteback(ctx context.Context) (wbdisplay.Token, error) {
	var probe getResources
	if err := k.ioctl(kernel.IOCTLModeGetResources, unsafe.Pointer(&probe)); err != nil {
		return wbdisplay.Token{}, fmt.Errorf("GETRESOURCES: %w", err)
	}
	crtcs := make([]uint32, probe.countCrtcs)
	conns := make([]uint32, probe.countConnectors)
	res := getResources{
		crtcIDPtr:       ptr(crtcs),
		connectorIDPtr:  ptr(conns),
		countCrtcs:      probe.countCrtcs,
		countConnectors: probe.countConnectors,
	}
	err := k.ioctl(kernel.IOCTLModeGetResources, unsafe.Pointer(&res))
	runtime.KeepAlive(crtcs)
	runtime.KeepAlive(conns)
	if err != nil {
		return wbdisplay.Token{}, fmt.Errorf("GETRESOURCES: %w", err)
	}
	crtcs = crtcs[:min(res.countCrtcs, probe.countCrtcs)]
	conns = conns[:min(res.countConnectors, probe.countConnectors)]

	for _, id := range conns {
		c, err := k.getConnector(id, false)
		if err != nil {
			return wbdisplay.Token{}, err
		}
		if c.hdr.connectorType != connectorTypeWriteback {
			continue
		}
		for _, encID := range c.encoders {
			enc := getEncoder{encoderID: encID}
			if err := k.ioctl(kernel.IOCTLModeGetEncoder, unsafe.Pointer(&enc)); err != nil {
				return wbdisplay.Token{}, fmt.Errorf("GETENCODER %d: %w", encID, err)
			}
			for i, crtcID := range crtcs {
				if enc.possibleCrtcs&(1<<i) != 0 {
					token := wbdisplay.Token{ConnectorID: id, CRTCID: crtcID}
					k.logger.DebugContext(ctx, "found writeback connector", "connector_id", token.ConnectorID, "crtc_id", token.CRTCID)
					return token, nil
				}
			}
		}
	}
	return wbdisplay.Token{}, fmt.Errorf("no writeback connector with a usable crtc: %w", unix.ENODEV)
}
