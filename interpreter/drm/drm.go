// Package drm provides kernel operations over the DRM character
// device using raw ioctls.
package drm

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/frobware/go-wbdisplay/interpreter"
	"github.com/frobware/go-wbdisplay/kernel"
)

// kernelAdapter implements interpreter.KernelOperations on an open
// DRM device.
type kernelAdapter struct {
	file   *os.File
	logger *slog.Logger

	// props caches property ids by object and name. Property ids are
	// fixed for the lifetime of the device.
	props map[propKey]uint32

	// dumb tracks buffers from AllocateBuffer, keyed by exported fd.
	dumb map[int]dumbBuffer
}

type propKey struct {
	objectID uint32
	name     string
}

// Option configures a kernelAdapter.
type Option func(*kernelAdapter)

// WithLogger sets the logger for kernel operations.
func WithLogger(logger *slog.Logger) Option {
	return func(k *kernelAdapter) {
		k.logger = logger
	}
}

// Open opens the DRM device at path and enables the client
// capabilities the writeback display needs.
func Open(path string, opts ...Option) (interpreter.KernelOperations, error) {
	f, err := os.OpenFile(path, os.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	k := &kernelAdapter{
		file:   f,
		logger: slog.Default(),
		props:  make(map[propKey]uint32),
		dumb:   make(map[int]dumbBuffer),
	}
	for _, opt := range opts {
		opt(k)
	}
	k.logger = k.logger.With("component", "drm", "device", path)

	for _, c := range []uint64{
		kernel.ClientCapUniversalPlanes,
		kernel.ClientCapAtomic,
		kernel.ClientCapWritebackConnectors,
	} {
		if err := k.setClientCap(c, 1); err != nil {
			f.Close()
			return nil, fmt.Errorf("enable client cap %d on %s: %w", c, path, err)
		}
	}

	k.logger.Debug("opened device")
	return k, nil
}

// Close releases allocated buffers and closes the device.
func (k *kernelAdapter) Close() error {
	var errs []error
	for fd, b := range k.dumb {
		if err := k.destroyDumb(b); err != nil {
			errs = append(errs, err)
		}
		delete(k.dumb, fd)
	}
	errs = append(errs, k.file.Close())
	return errors.Join(errs...)
}

type setClientCap struct {
	capability uint64
	value      uint64
}

func (k *kernelAdapter) setClientCap(capability, value uint64) error {
	req := setClientCap{capability: capability, value: value}
	return k.ioctl(kernel.IOCTLSetClientCap, unsafe.Pointer(&req))
}

// ioctl issues a DRM request, restarting it when interrupted as libdrm
// does.
func (k *kernelAdapter) ioctl(request uint32, arg unsafe.Pointer) error {
	for {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, k.file.Fd(), uintptr(request), uintptr(arg))
		switch errno {
		case 0:
			return nil
		case unix.EINTR, unix.EAGAIN:
			continue
		default:
			return errno
		}
	}
}

// ptr converts a slice's backing array to the u64 user pointer carried
// in DRM structures. The caller keeps the slice alive across the
// ioctl.
func ptr[T any](s []T) uint64 {
	if len(s) == 0 {
		return 0
	}
	return uint64(uintptr(unsafe.Pointer(&s[0])))
}
