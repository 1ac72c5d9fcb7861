package memory_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frobware/go-wbdisplay"
	"github.com/frobware/go-wbdisplay/action"
	"github.com/frobware/go-wbdisplay/interpreter/memory"
)

var token = wbdisplay.Token{ConnectorID: 5, CRTCID: 9}

// TestUpdateModeTable_Normalizes verifies that the installed normalizer
// decides what ReloadConnector reports.
//
// Given: a kernel whose driver reverses the mode list
// When:  two modes are written
// Then:  reload returns them reversed and the connector is connected
func TestUpdateModeTable_Normalizes(t *testing.T) {
	ctx := context.Background()
	k := memory.New(
		memory.WithWriteback(token),
		memory.WithNormalizer(func(m []wbdisplay.Mode) []wbdisplay.Mode {
			slices.Reverse(m)
			return m
		}),
	)
	modes := []wbdisplay.Mode{{Name: "a"}, {Name: "b"}}

	require.NoError(t, k.UpdateModeTable(ctx, token.ConnectorID, true, modes))
	info, err := k.ReloadConnector(ctx, token.ConnectorID)
	require.NoError(t, err)

	assert.True(t, info.Connected)
	assert.Equal(t, []wbdisplay.Mode{{Name: "b"}, {Name: "a"}}, info.Modes)
	assert.Equal(t, "a", modes[0].Name, "caller's slice must not be modified")
}

func TestUpdateModeTable_UnknownConnector(t *testing.T) {
	k := memory.New()
	err := k.UpdateModeTable(context.Background(), 77, true, nil)
	assert.ErrorIs(t, err, memory.ErrNoSuchObject)
}

// TestFailNext verifies injected failures are consumed by exactly one
// call and leave state unchanged.
func TestFailNext(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	k := memory.New(memory.WithConnector(token.ConnectorID, wbdisplay.ConnectorInfo{
		Modes: []wbdisplay.Mode{{Name: "kept"}},
	}))

	k.FailNext(memory.OpUpdateModeTable, boom)
	err := k.UpdateModeTable(ctx, token.ConnectorID, true, nil)
	require.ErrorIs(t, err, boom)

	info, ok := k.Connector(token.ConnectorID)
	require.True(t, ok)
	assert.Equal(t, []wbdisplay.Mode{{Name: "kept"}}, info.Modes)

	require.NoError(t, k.UpdateModeTable(ctx, token.ConnectorID, true, nil))

	ops := k.Operations()
	require.Len(t, ops, 2)
	assert.ErrorIs(t, ops[0].Err, boom)
	assert.NoError(t, ops[1].Err)
}

// TestAtomicCommit_RendersIntoOutput verifies that a commit naming a
// framebuffer fills the backing buffer.
func TestAtomicCommit_RendersIntoOutput(t *testing.T) {
	ctx := context.Background()
	k := memory.New(memory.WithWriteback(token))

	buf, err := k.AllocateBuffer(ctx, 4, 2, wbdisplay.FormatXRGB8888)
	require.NoError(t, err)
	assert.Equal(t, uint32(16), buf.Planes[0].Stride)

	fbID, err := k.AddFramebuffer(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(101), fbID)

	_, err = k.AtomicCommit(ctx, []action.Action{
		action.SetConnectorCRTC{ConnectorID: token.ConnectorID, CRTCID: token.CRTCID},
		action.SetOutputFramebuffer{ConnectorID: token.ConnectorID, FramebufferID: fbID},
	})
	require.NoError(t, err)
	require.Len(t, k.Commits(), 1)

	data, err := k.ReadBuffer(ctx, buf)
	require.NoError(t, err)
	require.Len(t, data, 32)
	for i := 0; i < len(data); i += 4 {
		assert.Equal(t, byte(0x80), data[i+1], "green channel of pixel %d", i/4)
	}
}

func TestAtomicCommit_UnknownFramebuffer(t *testing.T) {
	k := memory.New(memory.WithWriteback(token))
	_, err := k.AtomicCommit(context.Background(), []action.Action{
		action.SetOutputFramebuffer{ConnectorID: token.ConnectorID, FramebufferID: 4242},
	})
	assert.ErrorIs(t, err, memory.ErrNoSuchObject)
	assert.Empty(t, k.Commits())
}

func TestAtomicTest_DoesNotRecordCommit(t *testing.T) {
	k := memory.New(memory.WithWriteback(token))
	err := k.AtomicTest(context.Background(), []action.Action{
		action.SetCRTCActive{CRTCID: token.CRTCID, Active: true},
	})
	require.NoError(t, err)
	assert.Len(t, k.Tests(), 1)
	assert.Empty(t, k.Commits())
}

func TestRemoveFramebuffer(t *testing.T) {
	ctx := context.Background()
	k := memory.New()

	buf, err := k.AllocateBuffer(ctx, 1, 1, wbdisplay.FormatXRGB8888)
	require.NoError(t, err)
	fbID, err := k.AddFramebuffer(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, 1, k.FramebufferCount())

	require.NoError(t, k.RemoveFramebuffer(ctx, fbID))
	assert.Equal(t, 0, k.FramebufferCount())
	assert.ErrorIs(t, k.RemoveFramebuffer(ctx, fbID), memory.ErrNoSuchObject)
}

func TestAllocateBuffer_ZeroSize(t *testing.T) {
	k := memory.New()
	_, err := k.AllocateBuffer(context.Background(), 0, 10, wbdisplay.FormatXRGB8888)
	assert.ErrorIs(t, err, wbdisplay.ErrInvalidParameters)
}

func TestFreeBuffer(t *testing.T) {
	ctx := context.Background()
	k := memory.New()

	buf, err := k.AllocateBuffer(ctx, 2, 2, wbdisplay.FormatXRGB8888)
	require.NoError(t, err)
	require.NoError(t, k.FreeBuffer(ctx, buf))

	_, err = k.ReadBuffer(ctx, buf)
	assert.ErrorIs(t, err, memory.ErrNoSuchObject)
}

func TestFindWriteback(t *testing.T) {
	ctx := context.Background()

	_, err := memory.New().FindWriteback(ctx)
	assert.ErrorIs(t, err, memory.ErrNoSuchObject)

	got, err := memory.New(memory.WithWriteback(token)).FindWriteback(ctx)
	require.NoError(t, err)
	assert.Equal(t, token, got)
}
