package interpreter

import (
	"fmt"

	"github.com/frobware/go-wbdisplay"
	"github.com/frobware/go-wbdisplay/action"
)

// PropertyWrite is one (object, property, value) triple of an atomic
// request, with the property named rather than numbered.
type PropertyWrite struct {
	ObjectID   uint32
	ObjectType uint32
	Property   string
	Value      uint64
}

// Object types a PropertyWrite may target.
const (
	ObjectConnector uint32 = 0xc0c0c0c0
	ObjectCRTC      uint32 = 0xcccccccc
)

// Connector and CRTC property names.
const (
	PropCRTCID            = "CRTC_ID"
	PropPowerMode         = "LP"
	PropOutputFB          = "FB_ID"
	PropDstX              = "dst_x"
	PropDstY              = "dst_y"
	PropDstW              = "dst_w"
	PropDstH              = "dst_h"
	PropFBTranslationMode = "fb_translation_mode"
	PropRetireFence       = "RETIRE_FENCE"
	PropActive            = "ACTIVE"
)

// PropertyWrites lowers actions to named property writes, preserving
// order. A destination rectangle becomes four writes.
func PropertyWrites(actions []action.Action) ([]PropertyWrite, error) {
	var writes []PropertyWrite
	conn := func(id uint32, name string, v uint64) {
		writes = append(writes, PropertyWrite{ObjectID: id, ObjectType: ObjectConnector, Property: name, Value: v})
	}

	for _, a := range actions {
		switch a := a.(type) {
		case action.SetConnectorCRTC:
			conn(a.ConnectorID, PropCRTCID, uint64(a.CRTCID))

		case action.SetConnectorPowerMode:
			conn(a.ConnectorID, PropPowerMode, uint64(a.Mode))

		case action.SetOutputFramebuffer:
			conn(a.ConnectorID, PropOutputFB, uint64(a.FramebufferID))

		case action.SetOutputRect:
			conn(a.ConnectorID, PropDstX, uint64(a.Rect.Left))
			conn(a.ConnectorID, PropDstY, uint64(a.Rect.Top))
			conn(a.ConnectorID, PropDstW, uint64(a.Rect.Width()))
			conn(a.ConnectorID, PropDstH, uint64(a.Rect.Height()))

		case action.SetFramebufferSecureMode:
			conn(a.ConnectorID, PropFBTranslationMode, uint64(a.Mode))

		case action.SetCRTCActive:
			var v uint64
			if a.Active {
				v = 1
			}
			writes = append(writes, PropertyWrite{ObjectID: a.CRTCID, ObjectType: ObjectCRTC, Property: PropActive, Value: v})

		default:
			return nil, fmt.Errorf("unknown action type: %T: %w", a, wbdisplay.ErrInvalidParameters)
		}
	}

	return writes, nil
}
