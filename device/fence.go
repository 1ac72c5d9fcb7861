package device

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// fencePollInterval bounds how long a single poll blocks, so that
// cancellation is noticed.
const fencePollInterval = 50 // milliseconds

// ErrFenceClosed is returned when a retire fence hangs up without
// signalling.
var ErrFenceClosed = errors.New("retire fence closed without signalling")

// RetireFence returns the fence of the latest commit, or nil if the
// kernel returned none. The device keeps ownership.
func (b *Base) RetireFence() *os.File { return b.retireFence }

// WaitRetire blocks until the latest commit's writeback has completed,
// that is until its retire fence signals. It returns immediately when
// there is no fence.
func (b *Base) WaitRetire(ctx context.Context) error {
	if b.retireFence == nil {
		return nil
	}
	if err := waitFence(ctx, b.retireFence); err != nil {
		return fmt.Errorf("wait for retire fence: %w", err)
	}
	b.logger.DebugContext(ctx, "retire fence signalled")
	return nil
}

func waitFence(ctx context.Context, fence *os.File) error {
	fds := []unix.PollFd{{Fd: int32(fence.Fd()), Events: unix.POLLIN}}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fds[0].Revents = 0
		n, err := unix.Poll(fds, fencePollInterval)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return err
		}
		if n == 0 {
			continue
		}
		switch revents := fds[0].Revents; {
		case revents&unix.POLLIN != 0:
			return nil
		case revents&unix.POLLNVAL != 0:
			return unix.EBADF
		default:
			return ErrFenceClosed
		}
	}
}
