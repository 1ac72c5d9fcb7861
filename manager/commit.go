package manager

import (
	"context"
	"fmt"

	"github.com/frobware/go-wbdisplay"
	"github.com/frobware/go-wbdisplay/compute"
)

// Commit writes one frame into buf.
func (m *Manager) Commit(ctx context.Context, buf wbdisplay.Buffer) error {
	ctx = m.beginFrame(ctx)

	if err := m.prepare(ctx, buf, true); err != nil {
		return err
	}
	if err := m.base.AtomicCommit(ctx); err != nil {
		m.logger.ErrorContext(ctx, "commit failed", "error", err)
		return err
	}
	if err := m.registry.UnregisterNext(ctx); err != nil {
		m.logger.WarnContext(ctx, "failed to release framebuffers", "error", err)
	}
	m.logger.DebugContext(ctx, "frame committed", "handle", buf.Key())
	return nil
}

// Validate checks that the kernel would accept a commit of buf.
func (m *Manager) Validate(ctx context.Context, buf wbdisplay.Buffer) error {
	ctx = m.beginFrame(ctx)

	if err := m.prepare(ctx, buf, false); err != nil {
		return err
	}
	if err := m.base.AtomicDryRun(ctx); err != nil {
		m.logger.ErrorContext(ctx, "validate failed", "error", err)
		return err
	}
	m.logger.DebugContext(ctx, "frame validated", "handle", buf.Key())
	return nil
}

func (m *Manager) beginFrame(ctx context.Context) context.Context {
	m.frames++
	return ContextWithOpID(ctx, m.frames)
}

// prepare enqueues the frame's property changes on the base device's
// transaction. Only a commit claims the buffer in the registry.
func (m *Manager) prepare(ctx context.Context, buf wbdisplay.Buffer, commit bool) error {
	attrs, ok := m.base.CurrentModeAttributes()
	if !ok {
		m.logger.ErrorContext(ctx, "no display mode selected")
		return fmt.Errorf("no display mode selected: %w", wbdisplay.ErrModeNotSupported)
	}

	token := m.base.Token()
	txn := m.base.Transaction()
	firstCycle := m.firstCycle
	if firstCycle {
		txn.Perform(compute.FirstCycleActions(token)...)
		if commit {
			m.firstCycle = false
		}
	}

	if commit {
		m.registry.RegisterCurrent(buf)
	}
	fbID, err := m.registry.MapBufferToFbID(ctx, buf)
	if err != nil {
		txn.Reset()
		m.logger.ErrorContext(ctx, "failed to map output buffer", "handle", buf.Key(), "error", err)
		return err
	}

	rect := compute.DestinationRect(attrs.DisplayAttributes)
	txn.Perform(compute.OutputActions(token, fbID, rect, buf.Secure)...)
	m.logger.DebugContext(ctx, "frame prepared", "fb_id", fbID, "dst_w", rect.Width(), "dst_h", rect.Height(),
		"secure", buf.Secure, "first_cycle", firstCycle)
	return nil
}
