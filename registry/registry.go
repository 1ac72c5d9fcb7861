// Package registry maps output buffer handles to kernel framebuffer
// ids across frames.
//
// # Frame lifecycle
//
// The registry is a ring of CycleDelay slots, one per in-flight frame.
// A commit cycle runs:
//
//  1. RegisterCurrent: buffers the frame references are claimed for the
//     current slot, so mappings created in earlier frames stay alive.
//  2. MapBufferToFbID: the buffer's fb id is returned, creating one in
//     the current slot if the handle has never been seen.
//  3. UnregisterNext (after a successful commit): the ring advances and
//     every mapping left in the slot that becomes current is released.
//
// A mapping not reclaimed for CycleDelay-1 frames is therefore removed
// once the kernel can no longer be reading or writing the buffer, and
// the table holds at most the in-flight buffers.
//
// Validation runs only step 2, so a dry run sees the same fb id a
// commit would use and never disturbs slot ownership. A framebuffer a
// dry run creates is held outside the ring as unclaimed. A later
// RegisterCurrent of the same handle moves it into the current slot.
// Otherwise it is released by the next dry run that creates another
// framebuffer, or by the next UnregisterNext, so at most one unclaimed
// mapping exists at any time.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/frobware/go-wbdisplay"
	"github.com/frobware/go-wbdisplay/interpreter"
)

// DefaultCycleDelay is the number of frames a mapping survives
// without being referenced.
const DefaultCycleDelay = 3

// Registry is the sole owner of the handle to fb id table for one
// display instance. It is not safe for concurrent use.
type Registry struct {
	fbs     interpreter.FramebufferOperations
	slots   []map[int]uint32
	current int

	// claimed holds handles registered for the current frame that
	// have no mapping yet.
	claimed   map[int]struct{}
	unclaimed map[int]uint32

	logger *slog.Logger
}

// New creates a registry with cycleDelay slots. Values below 2 are
// raised to 2: a buffer must survive at least the frame after its
// commit.
func New(fbs interpreter.FramebufferOperations, cycleDelay int, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	cycleDelay = max(cycleDelay, 2)
	slots := make([]map[int]uint32, cycleDelay)
	for i := range slots {
		slots[i] = make(map[int]uint32)
	}
	return &Registry{
		fbs:       fbs,
		slots:     slots,
		claimed:   make(map[int]struct{}),
		unclaimed: make(map[int]uint32),
		logger:    logger.With("component", "registry"),
	}
}

// CycleDelay returns the number of slots in the ring.
func (r *Registry) CycleDelay() int {
	return len(r.slots)
}

// RegisterCurrent claims the frame's buffers for the current slot.
// Buffers already mapped in an older slot move to the current one so
// the next UnregisterNext calls do not release them.
func (r *Registry) RegisterCurrent(frame ...wbdisplay.Buffer) {
	clear(r.claimed)
	cur := r.slots[r.current]
	for _, buf := range frame {
		key := buf.Key()
		if key < 0 {
			continue
		}
		if _, ok := cur[key]; ok {
			continue
		}
		if fbID, ok := r.unclaimed[key]; ok {
			delete(r.unclaimed, key)
			cur[key] = fbID
			r.logger.Debug("claimed validated mapping", "handle", key, "fb_id", fbID, "slot", r.current)
			continue
		}
		if slot, fbID, ok := r.find(key); ok {
			delete(r.slots[slot], key)
			cur[key] = fbID
			r.logger.Debug("claimed mapping for current frame", "handle", key, "fb_id", fbID, "from_slot", slot, "slot", r.current)
			continue
		}
		r.claimed[key] = struct{}{}
	}
}

// MapBufferToFbID returns the framebuffer id for buf, creating one if
// the handle is not in any slot. Repeated calls with the same handle
// return the same id until the mapping is released.
func (r *Registry) MapBufferToFbID(ctx context.Context, buf wbdisplay.Buffer) (uint32, error) {
	key := buf.Key()
	if key < 0 {
		return 0, fmt.Errorf("buffer has no valid plane handle: %w", wbdisplay.ErrInvalidParameters)
	}
	if _, fbID, ok := r.find(key); ok {
		return fbID, nil
	}
	if fbID, ok := r.unclaimed[key]; ok {
		return fbID, nil
	}

	_, claimed := r.claimed[key]
	if !claimed {
		// A dry run only needs its own framebuffer.
		_ = r.release(ctx, r.unclaimed)
	}

	fbID, err := r.fbs.AddFramebuffer(ctx, buf)
	if err != nil {
		return 0, fmt.Errorf("create framebuffer for handle %d: %w", key, err)
	}
	if claimed {
		delete(r.claimed, key)
		r.slots[r.current][key] = fbID
	} else {
		r.unclaimed[key] = fbID
	}
	r.logger.Debug("created framebuffer", "handle", key, "fb_id", fbID, "slot", r.current,
		"claimed", claimed, "width", buf.Width, "height", buf.Height)
	return fbID, nil
}

// FbID returns the framebuffer id mapped to a buffer handle.
func (r *Registry) FbID(key int) (uint32, bool) {
	if _, fbID, ok := r.find(key); ok {
		return fbID, true
	}
	fbID, ok := r.unclaimed[key]
	return fbID, ok
}

// UnregisterNext advances the ring and releases the mappings left in
// the slot that becomes current. Every mapping is removed from the
// table even if the kernel refuses to destroy it; the errors are
// joined and returned.
func (r *Registry) UnregisterNext(ctx context.Context) error {
	clear(r.claimed)
	r.current = (r.current + 1) % len(r.slots)
	return errors.Join(
		r.release(ctx, r.slots[r.current]),
		r.release(ctx, r.unclaimed),
	)
}

// Close releases every mapping.
func (r *Registry) Close(ctx context.Context) error {
	errs := []error{r.release(ctx, r.unclaimed)}
	for _, slot := range r.slots {
		errs = append(errs, r.release(ctx, slot))
	}
	return errors.Join(errs...)
}

// Len returns the number of live mappings.
func (r *Registry) Len() int {
	n := 0
	for _, slot := range r.slots {
		n += len(slot)
	}
	return n + len(r.unclaimed)
}

// release removes every framebuffer in mappings and empties it.
func (r *Registry) release(ctx context.Context, mappings map[int]uint32) error {
	var errs []error
	for key, fbID := range mappings {
		if err := r.fbs.RemoveFramebuffer(ctx, fbID); err != nil {
			r.logger.Warn("failed to remove framebuffer", "handle", key, "fb_id", fbID, "error", err)
			errs = append(errs, fmt.Errorf("remove fb %d: %w", fbID, err))
			continue
		}
		r.logger.Debug("released framebuffer", "handle", key, "fb_id", fbID)
	}
	clear(mappings)
	return errors.Join(errs...)
}

// find searches the current slot first, then the older ones.
func (r *Registry) find(key int) (int, uint32, bool) {
	n := len(r.slots)
	for i := 0; i < n; i++ {
		slot := (r.current + n - i) % n
		if fbID, ok := r.slots[slot][key]; ok {
			return slot, fbID, true
		}
	}
	return 0, 0, false
}
