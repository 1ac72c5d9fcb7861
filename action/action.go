// Package action contains reified atomic property changes -
// descriptions of what to set without actually setting it. These are
// pure data structures; the interpreter layer turns them into kernel
// property writes.
package action

import "github.com/frobware/go-wbdisplay"

// Action represents one property change in an atomic transaction.
// Actions are data - they describe what to set, not how.
type Action interface {
	isAction()
}

// Connector actions

// SetConnectorCRTC assigns the display pipe to the connector.
type SetConnectorCRTC struct {
	ConnectorID uint32
	CRTCID      uint32
}

func (SetConnectorCRTC) isAction() {}

// SetConnectorPowerMode sets the connector power state.
type SetConnectorPowerMode struct {
	ConnectorID uint32
	Mode        wbdisplay.PowerMode
}

func (SetConnectorPowerMode) isAction() {}

// SetOutputFramebuffer binds the framebuffer the writeback connector
// renders into.
type SetOutputFramebuffer struct {
	ConnectorID   uint32
	FramebufferID uint32
}

func (SetOutputFramebuffer) isAction() {}

// SetOutputRect sets the destination rectangle within the output
// framebuffer.
type SetOutputRect struct {
	ConnectorID uint32
	Rect        wbdisplay.Rect
}

func (SetOutputRect) isAction() {}

// SetFramebufferSecureMode tags the output framebuffer as secure or
// non-secure.
type SetFramebufferSecureMode struct {
	ConnectorID uint32
	Mode        wbdisplay.SecureMode
}

func (SetFramebufferSecureMode) isAction() {}

// CRTC actions

// SetCRTCActive enables or disables the display pipe.
type SetCRTCActive struct {
	CRTCID uint32
	Active bool
}

func (SetCRTCActive) isAction() {}
