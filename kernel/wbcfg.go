package kernel

import (
	"encoding/binary"
	"fmt"
)

const (
	// WBConfigSize is sizeof(struct sde_drm_wb_cfg).
	WBConfigSize = 24

	// WBConfigFlagConnected is SDE_DRM_WB_CFG_FLAGS_CONNECTED.
	WBConfigFlagConnected = 1 << 0
)

// WBConfig is struct sde_drm_wb_cfg, the payload of the writeback
// mode-table update. Modes points at an array of CountModes
// drm_mode_modeinfo structures owned by the caller.
type WBConfig struct {
	ConnectorID uint32
	Flags       uint32
	CountModes  uint32
	Modes       uint64
}

// MarshalBinary encodes the configuration in the kernel's layout:
// three u32 fields, four bytes of padding, then the u64 pointer.
func (c WBConfig) MarshalBinary() ([]byte, error) {
	buf := make([]byte, WBConfigSize)
	ne := binary.NativeEndian
	ne.PutUint32(buf[0:], c.ConnectorID)
	ne.PutUint32(buf[4:], c.Flags)
	ne.PutUint32(buf[8:], c.CountModes)
	ne.PutUint64(buf[16:], c.Modes)
	return buf, nil
}

// UnmarshalBinary decodes a configuration encoded by MarshalBinary.
func (c *WBConfig) UnmarshalBinary(data []byte) error {
	if len(data) < WBConfigSize {
		return fmt.Errorf("short sde_drm_wb_cfg: %d bytes, want %d", len(data), WBConfigSize)
	}
	ne := binary.NativeEndian
	c.ConnectorID = ne.Uint32(data[0:])
	c.Flags = ne.Uint32(data[4:])
	c.CountModes = ne.Uint32(data[8:])
	c.Modes = ne.Uint64(data[16:])
	return nil
}

// Connected reports whether the connected flag is set.
func (c WBConfig) Connected() bool {
	return c.Flags&WBConfigFlagConnected != 0
}
