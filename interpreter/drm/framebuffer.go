package drm

import (
	"context"
	"fmt"
	"slices"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/frobware/go-wbdisplay"
	"github.com/frobware/go-wbdisplay/kernel"
)

type fbCmd2 struct {
	fbID        uint32
	width       uint32
	height      uint32
	pixelFormat uint32
	flags       uint32
	handles     [4]uint32
	pitches     [4]uint32
	offsets     [4]uint32
	modifier    [4]uint64
}

type primeHandle struct {
	handle uint32
	flags  uint32
	fd     int32
}

type createDumb struct {
	height uint32
	width  uint32
	bpp    uint32
	flags  uint32
	handle uint32
	pitch  uint32
	size   uint64
}

type mapDumb struct {
	handle uint32
	pad    uint32
	offset uint64
}

type dumbBuffer struct {
	handle uint32
	size   uint64
	offset uint64
	fd     int
}

// AddFramebuffer imports the buffer's planes and creates a framebuffer
// with ADDFB2.
func (k *kernelAdapter) AddFramebuffer(ctx context.Context, buf wbdisplay.Buffer) (uint32, error) {
	if len(buf.Planes) == 0 || len(buf.Planes) > 4 {
		return 0, fmt.Errorf("buffer with %d planes: %w", len(buf.Planes), wbdisplay.ErrInvalidParameters)
	}

	cmd := fbCmd2{
		width:       buf.Width,
		height:      buf.Height,
		pixelFormat: buf.Format,
	}
	for i, p := range buf.Planes {
		handle := p.Handle
		if handle == 0 {
			h, err := k.primeFDToHandle(p.FD)
			if err != nil {
				return 0, err
			}
			handle = h
		}
		cmd.handles[i] = handle
		cmd.pitches[i] = p.Stride
		cmd.offsets[i] = p.Offset
	}

	if err := k.ioctl(kernel.IOCTLModeAddFB2, unsafe.Pointer(&cmd)); err != nil {
		return 0, fmt.Errorf("ADDFB2 %dx%d: %w", buf.Width, buf.Height, err)
	}
	k.logger.DebugContext(ctx, "added framebuffer", "fb_id", cmd.fbID, "handle", buf.Key(), "width", buf.Width, "height", buf.Height)
	return cmd.fbID, nil
}

// RemoveFramebuffer destroys a framebuffer with RMFB.
func (k *kernelAdapter) RemoveFramebuffer(ctx context.Context, fbID uint32) error {
	id := fbID
	if err := k.ioctl(kernel.IOCTLModeRmFB, unsafe.Pointer(&id)); err != nil {
		return fmt.Errorf("RMFB %d: %w", fbID, err)
	}
	k.logger.DebugContext(ctx, "removed framebuffer", "fb_id", fbID)
	return nil
}

func (k *kernelAdapter) primeFDToHandle(fd int) (uint32, error) {
	req := primeHandle{fd: int32(fd)}
	if err := k.ioctl(kernel.IOCTLPrimeFDToHandle, unsafe.Pointer(&req)); err != nil {
		return 0, fmt.Errorf("PRIME_FD_TO_HANDLE %d: %w", fd, err)
	}
	return req.handle, nil
}

// AllocateBuffer creates a 32bpp dumb buffer and exports it as a PRIME
// fd, which becomes the buffer's key.
func (k *kernelAdapter) AllocateBuffer(ctx context.Context, width, height, format uint32) (wbdisplay.Buffer, error) {
	if width == 0 || height == 0 {
		return wbdisplay.Buffer{}, fmt.Errorf("allocate %dx%d: %w", width, height, wbdisplay.ErrInvalidParameters)
	}

	req := createDumb{width: width, height: height, bpp: 32}
	if err := k.ioctl(kernel.IOCTLModeCreateDumb, unsafe.Pointer(&req)); err != nil {
		return wbdisplay.Buffer{}, fmt.Errorf("CREATE_DUMB %dx%d: %w", width, height, err)
	}
	b := dumbBuffer{handle: req.handle, size: req.size}

	m := mapDumb{handle: req.handle}
	if err := k.ioctl(kernel.IOCTLModeMapDumb, unsafe.Pointer(&m)); err != nil {
		k.destroyDumb(b)
		return wbdisplay.Buffer{}, fmt.Errorf("MAP_DUMB %d: %w", req.handle, err)
	}
	b.offset = m.offset

	prime := primeHandle{handle: req.handle, flags: kernel.PrimeFlagCloexec | unix.O_RDWR}
	if err := k.ioctl(kernel.IOCTLPrimeHandleToFD, unsafe.Pointer(&prime)); err != nil {
		k.destroyDumb(b)
		return wbdisplay.Buffer{}, fmt.Errorf("PRIME_HANDLE_TO_FD %d: %w", req.handle, err)
	}
	b.fd = int(prime.fd)
	k.dumb[b.fd] = b

	k.logger.DebugContext(ctx, "allocated buffer", "handle", b.fd, "width", width, "height", height, "pitch", req.pitch)
	return wbdisplay.Buffer{
		Planes: []wbdisplay.Plane{{FD: b.fd, Handle: req.handle, Stride: req.pitch}},
		Width:  width,
		Height: height,
		Format: format,
	}, nil
}

// FreeBuffer destroys a buffer from AllocateBuffer.
func (k *kernelAdapter) FreeBuffer(ctx context.Context, buf wbdisplay.Buffer) error {
	b, ok := k.dumb[buf.Key()]
	if !ok {
		return fmt.Errorf("buffer %d was not allocated here: %w", buf.Key(), wbdisplay.ErrInvalidParameters)
	}
	delete(k.dumb, buf.Key())
	return k.destroyDumb(b)
}

// ReadBuffer maps a dumb buffer and copies its contents.
func (k *kernelAdapter) ReadBuffer(ctx context.Context, buf wbdisplay.Buffer) ([]byte, error) {
	b, ok := k.dumb[buf.Key()]
	if !ok {
		return nil, fmt.Errorf("buffer %d was not allocated here: %w", buf.Key(), wbdisplay.ErrInvalidParameters)
	}
	data, err := unix.Mmap(int(k.file.Fd()), int64(b.offset), int(b.size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap buffer %d: %w", buf.Key(), err)
	}
	defer unix.Munmap(data)
	return slices.Clone(data), nil
}

func (k *kernelAdapter) destroyDumb(b dumbBuffer) error {
	if b.fd > 0 {
		unix.Close(b.fd)
	}
	handle := b.handle
	if err := k.ioctl(kernel.IOCTLModeDestroyDumb, unsafe.Pointer(&handle)); err != nil {
		return fmt.Errorf("DESTROY_DUMB %d: %w", b.handle, err)
	}
	return nil
}
