//go:build e2e

package e2e

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/frobware/go-wbdisplay"
)

func TestMain(m *testing.M) {
	// Fail fast on prerequisites
	if os.Geteuid() != 0 {
		fmt.Fprintln(os.Stderr, "e2e tests require root privileges")
		os.Exit(1)
	}

	cleanupStaleTestDirs()

	os.Exit(m.Run())
}

// TestSetDisplayAttributes_RegistersAndCommits tests the full lifecycle
// of a registered mode on a real writeback connector.
func TestSetDisplayAttributes_RegistersAndCommits(t *testing.T) {
	RequireRoot(t)
	RequireDevice(t)

	Run(t, func(ctx context.Context, env *TestEnv) {
		attrs := wbdisplay.DisplayAttributes{XPixels: 1280, YPixels: 720, FPS: 30}

		// When: the mode is selected
		require.NoError(t, env.Display.SetDisplayAttributes(ctx, attrs))

		// Then: the driver reports it and it is current
		env.AssertCurrent(attrs)
		found := false
		for _, m := range env.Display.Modes() {
			if m.Matches(attrs) {
				found = true
			}
		}
		require.True(t, found, "driver should list the registered mode")

		// When: frames are committed into two rotating buffers
		bufs := []wbdisplay.Buffer{env.Allocate(ctx, attrs), env.Allocate(ctx, attrs)}
		for i := range 6 {
			require.NoError(t, env.Display.Commit(ctx, bufs[i%2]), "frame %d", i)
		}

		// Then: validation of a further frame still succeeds
		require.NoError(t, env.Display.Validate(ctx, bufs[0]))
	})
}

// TestSetDisplayAttributes_ExistingModeDoesNotUpdate verifies that
// selecting an already registered mode is pure negotiation.
func TestSetDisplayAttributes_ExistingModeDoesNotUpdate(t *testing.T) {
	RequireRoot(t)
	RequireDevice(t)

	Run(t, func(ctx context.Context, env *TestEnv) {
		attrs := wbdisplay.DisplayAttributes{XPixels: 640, YPixels: 480, FPS: 60}
		require.NoError(t, env.Display.SetDisplayAttributes(ctx, attrs))
		before := len(env.Display.Modes())

		require.NoError(t, env.Display.SetDisplayAttributes(ctx, attrs))
		require.Len(t, env.Display.Modes(), before)
		env.AssertCurrent(attrs)
	})
}

// TestCommit_WritesOutput verifies that the writeback actually lands in
// the output buffer.
func TestCommit_WritesOutput(t *testing.T) {
	RequireRoot(t)
	RequireDevice(t)

	Run(t, func(ctx context.Context, env *TestEnv) {
		attrs := wbdisplay.DisplayAttributes{XPixels: 640, YPixels: 480, FPS: 60}
		require.NoError(t, env.Display.SetDisplayAttributes(ctx, attrs))

		buf := env.Allocate(ctx, attrs)
		require.NoError(t, env.Display.Commit(ctx, buf))
		require.NoError(t, env.Display.WaitRetire(ctx))

		path := env.Capture(ctx, buf)
		info, err := os.Stat(path)
		require.NoError(t, err)
		require.GreaterOrEqual(t, info.Size(), int64(buf.Planes[0].Stride*attrs.YPixels))
	})
}

// TestInvalidParameters verifies that impossible sizes never reach the
// hardware.
func TestInvalidParameters(t *testing.T) {
	RequireRoot(t)
	RequireDevice(t)

	Run(t, func(ctx context.Context, env *TestEnv) {
		before := len(env.Display.Modes())
		err := env.Display.SetDisplayAttributes(ctx, wbdisplay.DisplayAttributes{XPixels: 0, YPixels: 480, FPS: 60})
		require.True(t, errors.Is(err, wbdisplay.ErrInvalidParameters), "got %v", err)
		require.Len(t, env.Display.Modes(), before)
	})
}
