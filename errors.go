package wbdisplay

import (
	"errors"
	"fmt"
)

// Error kinds surfaced to callers. Success is a nil error.
var (
	// ErrInvalidParameters is returned for requests that can never be
	// satisfied, such as a zero-sized resolution.
	ErrInvalidParameters = errors.New("invalid parameters")

	// ErrModeNotSupported is returned when neither negotiation nor
	// registration produced a usable mode.
	ErrModeNotSupported = errors.New("mode not supported")

	// ErrHardware is returned when the kernel rejects a mode-table
	// update or an atomic submission.
	ErrHardware = errors.New("hardware failure")
)

// ModeNotFoundError is returned when a mode for the requested
// attributes is absent from the connector, even after registration.
type ModeNotFoundError struct {
	Requested DisplayAttributes
}

func (e ModeNotFoundError) Error() string {
	return fmt.Sprintf("mode not found for resolution %dx%d fps %d",
		e.Requested.XPixels, e.Requested.YPixels, e.Requested.FPS)
}

// Is reports ModeNotFoundError as ErrModeNotSupported.
func (e ModeNotFoundError) Is(target error) bool {
	return target == ErrModeNotSupported
}

// HardwareError is returned when a hardware call fails. It carries the
// identifiers needed to reproduce the failure.
type HardwareError struct {
	Op          string
	ConnectorID uint32
	CRTCID      uint32
	Err         error
}

func (e *HardwareError) Error() string {
	return fmt.Sprintf("%s failed for crtc_id %d conn_id %d: %v", e.Op, e.CRTCID, e.ConnectorID, e.Err)
}

// Unwrap returns the underlying cause.
func (e *HardwareError) Unwrap() error { return e.Err }

// Is reports HardwareError as ErrHardware.
func (e *HardwareError) Is(target error) bool {
	return target == ErrHardware
}
