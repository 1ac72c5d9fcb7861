// Package interpreter contains the interfaces through which the
// display reaches the kernel. Implementations of these interfaces are
// the only code that performs actual I/O.
package interpreter

import (
	"context"
	"io"
	"os"

	"github.com/frobware/go-wbdisplay"
	"github.com/frobware/go-wbdisplay/action"
)

// HardwareChannel updates and reloads connector mode tables.
type HardwareChannel interface {
	// UpdateModeTable replaces the connector's mode list with modes
	// and sets its connection state. A failure must leave the kernel's
	// mode list unchanged.
	UpdateModeTable(ctx context.Context, connectorID uint32, connected bool, modes []wbdisplay.Mode) error

	// ReloadConnector returns the authoritative connector metadata.
	// The driver may have normalised or reordered the modes.
	ReloadConnector(ctx context.Context, connectorID uint32) (wbdisplay.ConnectorInfo, error)
}

// CommitResult carries what the kernel hands back from a commit.
type CommitResult struct {
	// RetireFence is a sync file signalled when the written frame
	// retires, or nil if the connector exposes no retire fence. The
	// caller owns it.
	RetireFence *os.File
}

// AtomicDevice submits property changes as one atomic request.
type AtomicDevice interface {
	// AtomicCommit applies actions to the hardware.
	AtomicCommit(ctx context.Context, actions []action.Action) (CommitResult, error)

	// AtomicTest checks actions without changing hardware state.
	AtomicTest(ctx context.Context, actions []action.Action) error
}

// FramebufferOperations creates and destroys kernel framebuffers.
type FramebufferOperations interface {
	AddFramebuffer(ctx context.Context, buf wbdisplay.Buffer) (uint32, error)
	RemoveFramebuffer(ctx context.Context, fbID uint32) error
}

// BufferAllocator provides output buffers. The display itself never
// allocates; callers such as the CLI use this to drive it.
type BufferAllocator interface {
	AllocateBuffer(ctx context.Context, width, height, format uint32) (wbdisplay.Buffer, error)
	FreeBuffer(ctx context.Context, buf wbdisplay.Buffer) error

	// ReadBuffer returns a copy of the buffer's first plane.
	ReadBuffer(ctx context.Context, buf wbdisplay.Buffer) ([]byte, error)
}

// ConnectorFinder locates a writeback connector and a pipe able to
// drive it.
type ConnectorFinder interface {
	FindWriteback(ctx context.Context) (wbdisplay.Token, error)
}

// KernelOperations combines all kernel operations.
type KernelOperations interface {
	io.Closer
	HardwareChannel
	AtomicDevice
	FramebufferOperations
	BufferAllocator
	ConnectorFinder
}
