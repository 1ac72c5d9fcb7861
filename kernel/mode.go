package kernel

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/frobware/go-wbdisplay"
)

const (
	// DisplayModeLen is DRM_DISPLAY_MODE_LEN.
	DisplayModeLen = 32

	// ModeInfoSize is sizeof(struct drm_mode_modeinfo).
	ModeInfoSize = 68
)

// Offsets into struct drm_mode_modeinfo.
const (
	offClock      = 0
	offHDisplay   = 4
	offHSyncStart = 6
	offHSyncEnd   = 8
	offHTotal     = 10
	offHSkew      = 12
	offVDisplay   = 14
	offVSyncStart = 16
	offVSyncEnd   = 18
	offVTotal     = 20
	offVScan      = 22
	offVRefresh   = 24
	offFlags      = 28
	offType       = 32
	offName       = 36
)

// PutMode encodes m into dst, which must hold at least ModeInfoSize
// bytes. Names longer than DisplayModeLen-1 are truncated so the
// kernel always sees a NUL terminator.
func PutMode(dst []byte, m wbdisplay.Mode) {
	_ = dst[ModeInfoSize-1]
	ne := binary.NativeEndian
	ne.PutUint32(dst[offClock:], m.Clock)
	ne.PutUint16(dst[offHDisplay:], m.HDisplay)
	ne.PutUint16(dst[offHSyncStart:], m.HSyncStart)
	ne.PutUint16(dst[offHSyncEnd:], m.HSyncEnd)
	ne.PutUint16(dst[offHTotal:], m.HTotal)
	ne.PutUint16(dst[offHSkew:], m.HSkew)
	ne.PutUint16(dst[offVDisplay:], m.VDisplay)
	ne.PutUint16(dst[offVSyncStart:], m.VSyncStart)
	ne.PutUint16(dst[offVSyncEnd:], m.VSyncEnd)
	ne.PutUint16(dst[offVTotal:], m.VTotal)
	ne.PutUint16(dst[offVScan:], m.VScan)
	ne.PutUint32(dst[offVRefresh:], m.VRefresh)
	ne.PutUint32(dst[offFlags:], m.Flags)
	ne.PutUint32(dst[offType:], m.Type)

	name := dst[offName : offName+DisplayModeLen]
	clear(name)
	copy(name[:DisplayModeLen-1], m.Name)
}

// Mode decodes one struct drm_mode_modeinfo.
func Mode(src []byte) (wbdisplay.Mode, error) {
	if len(src) < ModeInfoSize {
		return wbdisplay.Mode{}, fmt.Errorf("short modeinfo: %d bytes, want %d", len(src), ModeInfoSize)
	}
	ne := binary.NativeEndian
	name, _, _ := bytes.Cut(src[offName:offName+DisplayModeLen], []byte{0})
	return wbdisplay.Mode{
		Clock:      ne.Uint32(src[offClock:]),
		HDisplay:   ne.Uint16(src[offHDisplay:]),
		HSyncStart: ne.Uint16(src[offHSyncStart:]),
		HSyncEnd:   ne.Uint16(src[offHSyncEnd:]),
		HTotal:     ne.Uint16(src[offHTotal:]),
		HSkew:      ne.Uint16(src[offHSkew:]),
		VDisplay:   ne.Uint16(src[offVDisplay:]),
		VSyncStart: ne.Uint16(src[offVSyncStart:]),
		VSyncEnd:   ne.Uint16(src[offVSyncEnd:]),
		VTotal:     ne.Uint16(src[offVTotal:]),
		VScan:      ne.Uint16(src[offVScan:]),
		VRefresh:   ne.Uint32(src[offVRefresh:]),
		Flags:      ne.Uint32(src[offFlags:]),
		Type:       ne.Uint32(src[offType:]),
		Name:       string(name),
	}, nil
}

// EncodeModes encodes modes as a contiguous array of struct
// drm_mode_modeinfo, the layout the kernel expects behind a modes
// pointer.
func EncodeModes(modes []wbdisplay.Mode) []byte {
	buf := make([]byte, len(modes)*ModeInfoSize)
	for i, m := range modes {
		PutMode(buf[i*ModeInfoSize:], m)
	}
	return buf
}

// DecodeModes decodes a contiguous array of struct drm_mode_modeinfo.
func DecodeModes(src []byte) ([]wbdisplay.Mode, error) {
	if len(src)%ModeInfoSize != 0 {
		return nil, fmt.Errorf("modeinfo array of %d bytes is not a multiple of %d", len(src), ModeInfoSize)
	}
	modes := make([]wbdisplay.Mode, 0, len(src)/ModeInfoSize)
	for off := 0; off < len(src); off += ModeInfoSize {
		m, err := Mode(src[off : off+ModeInfoSize])
		if err != nil {
			return nil, err
		}
		modes = append(modes, m)
	}
	return modes, nil
}
