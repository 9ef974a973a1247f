package state

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/vestabridge/internal/board"
	"github.com/mattjoyce/vestabridge/internal/events"
)

type readerFunc func(ctx context.Context) (board.Snapshot, error)

func (f readerFunc) Current(ctx context.Context) (board.Snapshot, error) { return f(ctx) }

func TestCapturerCaptureResolveDiscard(t *testing.T) {
	t.Parallel()
	store, _ := openStore(t)
	hub := events.NewHub(10, nil)

	live := board.Layout{{1, 2}, {3, 4}}
	c := NewCapturer(store, readerFunc(func(context.Context) (board.Snapshot, error) {
		return board.Snapshot{Layout: live, ID: "cloud-42"}, nil
	}), hub)
	ctx := context.Background()

	require.NoError(t, c.Capture(ctx, "temp_timer-1"))

	cmd, err := c.Resolve(ctx, "temp_timer-1")
	require.NoError(t, err)
	assert.Equal(t, live, cmd.Layout)
	assert.Nil(t, cmd.Render)

	require.NoError(t, c.Discard(ctx, "temp_timer-1"))
	_, err = c.Resolve(ctx, "temp_timer-1")
	assert.ErrorIs(t, err, ErrSlotNotFound)

	var types []string
	for _, ev := range hub.SnapshotSince(0) {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []string{events.SlotSaved, events.SlotDeleted}, types)
}

func TestCapturerNoContent(t *testing.T) {
	t.Parallel()
	store, _ := openStore(t)

	failing := NewCapturer(store, readerFunc(func(context.Context) (board.Snapshot, error) {
		return board.Snapshot{}, errors.New("timeout")
	}), nil)
	assert.ErrorIs(t, failing.Capture(context.Background(), "x"), ErrNoContent)

	empty := NewCapturer(store, readerFunc(func(context.Context) (board.Snapshot, error) {
		return board.Snapshot{}, nil
	}), nil)
	assert.ErrorIs(t, empty.Capture(context.Background(), "x"), ErrNoContent)

	_, err := store.Get(context.Background(), "x")
	assert.ErrorIs(t, err, ErrSlotNotFound)
}

func TestCapturerRejectsBadSlotName(t *testing.T) {
	t.Parallel()
	store, _ := openStore(t)
	c := NewCapturer(store, readerFunc(func(context.Context) (board.Snapshot, error) {
		t.Fatal("reader must not be called for an invalid slot")
		return board.Snapshot{}, nil
	}), nil)
	assert.ErrorIs(t, c.Capture(context.Background(), "a/b"), ErrInvalidSlotName)
}
