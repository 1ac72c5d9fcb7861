package compute

import (
	"github.com/frobware/go-wbdisplay"
	"github.com/frobware/go-wbdisplay/action"
)

// FirstCycleActions returns the property changes that bring a
// writeback connector up on its first frame: pipe assignment and
// power on.
func FirstCycleActions(token wbdisplay.Token) []action.Action {
	return []action.Action{
		action.SetConnectorCRTC{ConnectorID: token.ConnectorID, CRTCID: token.CRTCID},
		action.SetConnectorPowerMode{ConnectorID: token.ConnectorID, Mode: wbdisplay.PowerModeOn},
	}
}

// OutputActions returns the per-frame property changes binding the
// output framebuffer, its destination rectangle and its secure mode.
func OutputActions(token wbdisplay.Token, fbID uint32, rect wbdisplay.Rect, secure bool) []action.Action {
	return []action.Action{
		action.SetOutputFramebuffer{ConnectorID: token.ConnectorID, FramebufferID: fbID},
		action.SetOutputRect{ConnectorID: token.ConnectorID, Rect: rect},
		action.SetFramebufferSecureMode{ConnectorID: token.ConnectorID, Mode: wbdisplay.SecureModeFor(secure)},
	}
}

// PowerOnActions activates the pipe and powers the connector on.
func PowerOnActions(token wbdisplay.Token) []action.Action {
	return []action.Action{
		action.SetCRTCActive{CRTCID: token.CRTCID, Active: true},
		action.SetConnectorPowerMode{ConnectorID: token.ConnectorID, Mode: wbdisplay.PowerModeOn},
	}
}

// PowerOffActions powers the connector off and deactivates the pipe.
func PowerOffActions(token wbdisplay.Token) []action.Action {
	return []action.Action{
		action.SetConnectorPowerMode{ConnectorID: token.ConnectorID, Mode: wbdisplay.PowerModeOff},
		action.SetCRTCActive{CRTCID: token.CRTCID, Active: false},
	}
}
