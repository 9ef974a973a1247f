package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/vestabridge/internal/board"
	"github.com/mattjoyce/vestabridge/internal/clock"
	"github.com/mattjoyce/vestabridge/internal/device/devicetest"
	"github.com/mattjoyce/vestabridge/internal/events"
	"github.com/mattjoyce/vestabridge/internal/log"
	"github.com/mattjoyce/vestabridge/internal/scheduler"
	"github.com/mattjoyce/vestabridge/internal/state"
	"github.com/mattjoyce/vestabridge/internal/storage"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR", "json")
	os.Exit(m.Run())
}

var epoch = time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*Service, *devicetest.Board, *clock.FakeClock, *events.Hub) {
	t.Helper()
	db, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "slots.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	c := clock.NewFake(epoch)
	dev := devicetest.New(c, 15*time.Second, "GOOD MORNING")
	hub := events.NewHub(200, c)
	return New(Config{}, dev, state.NewStore(db, c), c, hub), dev, c, hub
}

func timers(s *Service) []scheduler.TimerInfo {
	var out []scheduler.TimerInfo
	for info := range s.ListTimers() {
		out = append(out, info)
	}
	return out
}

func TestTimedDisplayEndToEnd(t *testing.T) {
	s, dev, c, _ := setup(t)
	ctx := context.Background()
	morning := board.TextToLayout("GOOD MORNING", board.Standard)

	id, err := s.ScheduleTimedDisplay(ctx, TimedRequest{
		Command:  board.TextCommand("ALERT", nil),
		Duration: 30 * time.Second,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, dev.Reads(), "current board captured before overwrite")
	writes := dev.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, "ALERT", writes[0].Command.Text)

	listed := timers(s)
	require.Len(t, listed, 1)
	assert.Equal(t, id, listed[0].ID)
	assert.True(t, listed[0].Pending)

	c.Advance(30 * time.Second)

	writes = dev.Writes()
	require.Len(t, writes, 2)
	assert.Equal(t, morning, writes[1].Command.Layout)
	assert.LessOrEqual(t, writes[1].At.Sub(writes[0].At), 45*time.Second)
	assert.Empty(t, timers(s))

	slots, err := s.ListSlots(ctx)
	require.NoError(t, err)
	assert.Empty(t, slots, "temporary slot cleaned up")
}

func TestShortTimedDisplayWaitsForRateWindow(t *testing.T) {
	s, dev, c, _ := setup(t)

	_, err := s.ScheduleTimedDisplay(context.Background(), TimedRequest{
		Command:     board.TextCommand("BRB", nil),
		Duration:    5 * time.Second,
		RestoreSlot: "",
	})
	require.NoError(t, err)

	c.Advance(15 * time.Second)
	assert.Len(t, dev.Writes(), 1, "restore held back until the window plus margin")

	c.Advance(500 * time.Millisecond)
	writes := dev.Writes()
	require.Len(t, writes, 2)
	assert.Equal(t, epoch.Add(15500*time.Millisecond), writes[1].At)
}

func TestQueuedTimedMessageThenQueuedRestore(t *testing.T) {
	s, dev, c, _ := setup(t)
	ctx := context.Background()

	assert.True(t, s.DispatchNow(ctx, board.TextCommand("FIRST", nil)))
	c.Advance(time.Second)

	_, err := s.ScheduleTimedDisplay(ctx, TimedRequest{
		Command:  board.TextCommand("ALERT", nil),
		Duration: 5 * time.Second,
	})
	require.NoError(t, err)
	assert.Len(t, dev.Writes(), 1, "timed message queued behind FIRST")

	c.Advance(time.Minute)

	writes := dev.Writes()
	require.Len(t, writes, 3)
	assert.Equal(t, "FIRST", writes[0].Command.Text)
	assert.Equal(t, "ALERT", writes[1].Command.Text)
	assert.Equal(t, board.TextToLayout("FIRST", board.Standard), writes[2].Command.Layout)
	for i := 1; i < len(writes); i++ {
		assert.GreaterOrEqual(t, writes[i].At.Sub(writes[i-1].At), 15*time.Second, "write %d respects the interval", i)
	}
}

func TestRestoreRenderParamsThroughService(t *testing.T) {
	s, dev, c, _ := setup(t)
	ctx := context.Background()
	require.NoError(t, s.SaveSlot(ctx, "home"))

	column := &board.RenderParams{Strategy: "column"}
	_, err := s.ScheduleTimedDisplay(ctx, TimedRequest{
		Command:     board.TextCommand("SALE", nil),
		Duration:    time.Minute,
		RestoreSlot: "home",
		Render:      column,
	})
	require.NoError(t, err)

	c.Advance(time.Minute)
	writes := dev.Writes()
	require.Len(t, writes, 2)
	assert.Equal(t, column, writes[0].Command.Render)
	assert.Equal(t, column, writes[1].Command.Render)

	slots, err := s.ListSlots(ctx)
	require.NoError(t, err)
	require.Len(t, slots, 1, "named slots are kept")
}

func TestSlotOperations(t *testing.T) {
	s, dev, c, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, s.SaveSlot(ctx, "morning"))
	s.DispatchNow(ctx, board.TextCommand("SOMETHING ELSE", nil))
	c.Advance(15 * time.Second)

	ok, err := s.RestoreSlot(ctx, "morning", nil)
	require.NoError(t, err)
	assert.True(t, ok)
	writes := dev.Writes()
	assert.Equal(t, board.TextToLayout("GOOD MORNING", board.Standard), writes[len(writes)-1].Command.Layout)

	_, err = s.RestoreSlot(ctx, "missing", nil)
	assert.True(t, IsNotFound(err))

	require.NoError(t, s.DeleteSlot(ctx, "morning"))
	assert.True(t, IsNotFound(s.DeleteSlot(ctx, "morning")))
}

func TestScheduleRejectsBadInput(t *testing.T) {
	s, _, _, _ := setup(t)
	ctx := context.Background()

	_, err := s.ScheduleTimedDisplay(ctx, TimedRequest{Command: board.TextCommand("x", nil)})
	assert.True(t, IsInvalid(err))

	_, err = s.ScheduleTimedDisplay(ctx, TimedRequest{Command: board.TextCommand("x", nil), Duration: time.Second, RestoreSlot: "a/b"})
	assert.True(t, IsInvalid(err))
}

func TestCancelAndShutdown(t *testing.T) {
	s, dev, c, _ := setup(t)
	ctx := context.Background()

	id, err := s.ScheduleTimedDisplay(ctx, TimedRequest{Command: board.TextCommand("A", nil), Duration: time.Minute})
	require.NoError(t, err)
	assert.True(t, s.CancelTimer(id))
	assert.False(t, s.CancelTimer(id))

	_, err = s.ScheduleTimedDisplay(ctx, TimedRequest{Command: board.TextCommand("B", nil), Duration: time.Minute})
	require.NoError(t, err)
	s.DispatchNow(ctx, board.TextCommand("C", nil))

	m := s.Metrics()
	assert.Equal(t, 1, m.ActiveTimers)
	assert.Equal(t, "fake", m.Transport)
	assert.Equal(t, int64(15000), m.MinIntervalMs)
	assert.Equal(t, 2, m.Dispatch.QueueDepth)

	s.Shutdown()
	c.Advance(time.Hour)
	assert.Len(t, dev.Writes(), 1, "nothing written after shutdown")
	assert.Empty(t, timers(s))
	assert.Zero(t, s.Metrics().Dispatch.QueueDepth)
}
