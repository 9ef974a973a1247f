package scheduler

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/vestabridge/internal/board"
	"github.com/mattjoyce/vestabridge/internal/clock"
	"github.com/mattjoyce/vestabridge/internal/events"
	"github.com/mattjoyce/vestabridge/internal/ratelimit"
	"github.com/mattjoyce/vestabridge/internal/scheduler/mocks"
)

// TestLogBuffer is a bytes.Buffer that can be used to capture log output.
type TestLogBuffer struct {
	bytes.Buffer
}

// NewTestSlogger creates a new *slog.Logger that writes to a TestLogBuffer.
func NewTestSlogger() (*slog.Logger, *TestLogBuffer) {
	var buf TestLogBuffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(handler), &buf
}

var epoch = time.Date(2026, 5, 4, 7, 30, 0, 0, time.UTC)

type fixture struct {
	s       *Scheduler
	writer  *mocks.MockWriter
	capture *mocks.MockStateCapture
	clock   *clock.FakeClock
	hub     *events.Hub
	logs    *TestLogBuffer
}

func setup(t *testing.T, interval time.Duration) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	writer := mocks.NewMockWriter(ctrl)
	capture := mocks.NewMockStateCapture(ctrl)
	c := clock.NewFake(epoch)
	hub := events.NewHub(100, c)
	logger, buf := NewTestSlogger()

	s := New(Config{}, writer, capture, ratelimit.NewGate(c, interval), c, hub, logger)
	return &fixture{s: s, writer: writer, capture: capture, clock: c, hub: hub, logs: buf}
}

func collect(s *Scheduler) []TimerInfo {
	var out []TimerInfo
	for info := range s.List() {
		out = append(out, info)
	}
	return out
}

var (
	alert    = board.TextCommand("ALERT", nil)
	snapshot = board.LayoutCommand(board.Layout{{8, 9}}, nil)
)

func TestScheduleCapturesWritesThenRestores(t *testing.T) {
	f := setup(t, 15*time.Second)
	ctx := context.Background()

	var captured string
	gomock.InOrder(
		f.capture.EXPECT().Capture(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, slot string) error {
			captured = slot
			return nil
		}),
		f.writer.EXPECT().Write(gomock.Any(), alert).Return(true),
	)

	id, err := f.s.Schedule(ctx, alert, 30*time.Second, RestoreIntent{})
	require.NoError(t, err)
	assert.Equal(t, "temp_"+id, captured)

	infos := collect(f.s)
	require.Len(t, infos, 1)
	assert.Equal(t, id, infos[0].ID)
	assert.True(t, infos[0].Pending)
	assert.Equal(t, epoch.Add(30*time.Second), infos[0].FireAt)
	assert.Equal(t, captured, infos[0].Slot)

	gomock.InOrder(
		f.capture.EXPECT().Resolve(gomock.Any(), captured).Return(snapshot, nil),
		f.writer.EXPECT().Write(gomock.Any(), snapshot).Return(true),
	)
	f.capture.EXPECT().Discard(gomock.Any(), captured).Return(nil)

	f.clock.Advance(29 * time.Second)
	assert.Equal(t, 1, f.s.Len())

	f.clock.Advance(time.Second)
	assert.Zero(t, f.s.Len())
	assert.Empty(t, collect(f.s))
}

func TestRestoreWaitsOutRateWindow(t *testing.T) {
	f := setup(t, 15*time.Second)

	f.writer.EXPECT().Write(gomock.Any(), alert).Return(true)
	id, err := f.s.Schedule(context.Background(), alert, 5*time.Second, RestoreIntent{Slot: "morning"})
	require.NoError(t, err)

	f.clock.Advance(5 * time.Second)
	infos := collect(f.s)
	require.Len(t, infos, 1)
	assert.Equal(t, id, infos[0].ID)
	assert.False(t, infos[0].Pending, "timer is firing during the courtesy wait")

	// 15s window from the write instant, 10s left, plus the 0.5s margin.
	f.clock.Advance(10 * time.Second)
	assert.Equal(t, 1, f.s.Len())

	gomock.InOrder(
		f.capture.EXPECT().Resolve(gomock.Any(), "morning").Return(snapshot, nil),
		f.writer.EXPECT().Write(gomock.Any(), snapshot).Return(true),
	)
	f.clock.Advance(DefaultRestoreMargin)
	assert.Zero(t, f.s.Len())
}

func TestRestoreRenderParams(t *testing.T) {
	column := &board.RenderParams{Strategy: "column"}
	edges := &board.RenderParams{Strategy: "edges-to-center"}

	tests := []struct {
		name     string
		override *board.RenderParams
		want     *board.RenderParams
	}{
		{name: "inherits timed message params", override: nil, want: column},
		{name: "explicit restore params win", override: edges, want: edges},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t, 0)
			timed := board.TextCommand("SALE", column)

			f.writer.EXPECT().Write(gomock.Any(), timed).Return(true)
			_, err := f.s.Schedule(context.Background(), timed, time.Minute, RestoreIntent{Slot: "home", Render: tt.override})
			require.NoError(t, err)

			f.capture.EXPECT().Resolve(gomock.Any(), "home").Return(snapshot, nil)
			f.writer.EXPECT().Write(gomock.Any(), snapshot.WithRender(tt.want)).Return(true)
			f.clock.Advance(time.Minute)
		})
	}
}

func TestCaptureFailureStillSchedules(t *testing.T) {
	f := setup(t, 15*time.Second)

	f.capture.EXPECT().Capture(gomock.Any(), gomock.Any()).Return(errors.New("device unreachable"))
	f.writer.EXPECT().Write(gomock.Any(), alert).Return(true)

	id, err := f.s.Schedule(context.Background(), alert, time.Minute, RestoreIntent{})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	f.capture.EXPECT().Resolve(gomock.Any(), "temp_"+id).Return(board.Command{}, errors.New("slot not found"))
	f.capture.EXPECT().Discard(gomock.Any(), "temp_"+id).Return(errors.New("slot not found"))

	f.clock.Advance(time.Minute)
	assert.Zero(t, f.s.Len())
	assert.Contains(t, f.logs.String(), "restore content unavailable")
}

func TestFailedTimedWriteStillArms(t *testing.T) {
	f := setup(t, 0)

	f.writer.EXPECT().Write(gomock.Any(), alert).Return(false)
	_, err := f.s.Schedule(context.Background(), alert, time.Second, RestoreIntent{Slot: "home"})
	require.NoError(t, err)
	assert.Equal(t, 1, f.s.Len())

	f.capture.EXPECT().Resolve(gomock.Any(), "home").Return(snapshot, nil)
	f.writer.EXPECT().Write(gomock.Any(), snapshot).Return(false)
	f.clock.Advance(time.Second)
	assert.Zero(t, f.s.Len(), "removed even when the restore write fails")
}

func TestScheduleValidation(t *testing.T) {
	f := setup(t, 0)

	_, err := f.s.Schedule(context.Background(), board.Command{}, time.Second, RestoreIntent{})
	assert.ErrorIs(t, err, ErrEmptyCommand)

	_, err = f.s.Schedule(context.Background(), alert, 0, RestoreIntent{})
	assert.ErrorIs(t, err, ErrInvalidDuration)

	_, err = f.s.Schedule(context.Background(), alert, -time.Second, RestoreIntent{})
	assert.ErrorIs(t, err, ErrInvalidDuration)
	assert.Zero(t, f.s.Len())
}

func TestCancel(t *testing.T) {
	t.Run("explicit slot", func(t *testing.T) {
		f := setup(t, 0)
		f.writer.EXPECT().Write(gomock.Any(), alert).Return(true)
		id, err := f.s.Schedule(context.Background(), alert, time.Minute, RestoreIntent{Slot: "home"})
		require.NoError(t, err)

		assert.True(t, f.s.Cancel(id))
		assert.False(t, f.s.Cancel(id), "second cancel is a no-op")
		assert.False(t, f.s.Cancel("timer-unknown"))
		assert.Zero(t, f.s.Len())
		assert.Zero(t, f.clock.Pending())

		f.clock.Advance(time.Hour)

		var cancelled bool
		for _, ev := range f.hub.SnapshotSince(0) {
			cancelled = cancelled || ev.Type == events.TimerCancelled
		}
		assert.True(t, cancelled)
	})

	t.Run("auto slot is discarded", func(t *testing.T) {
		f := setup(t, 0)
		f.capture.EXPECT().Capture(gomock.Any(), gomock.Any()).Return(nil)
		f.writer.EXPECT().Write(gomock.Any(), alert).Return(true)
		id, err := f.s.Schedule(context.Background(), alert, time.Minute, RestoreIntent{})
		require.NoError(t, err)

		f.capture.EXPECT().Discard(gomock.Any(), "temp_"+id).Return(nil)
		assert.True(t, f.s.Cancel(id))
	})
}

func TestCancelDuringCourtesyWaitIsNoop(t *testing.T) {
	f := setup(t, 15*time.Second)

	f.writer.EXPECT().Write(gomock.Any(), alert).Return(true)
	id, err := f.s.Schedule(context.Background(), alert, 5*time.Second, RestoreIntent{Slot: "home"})
	require.NoError(t, err)

	f.clock.Advance(5 * time.Second)
	assert.False(t, f.s.Cancel(id))

	f.capture.EXPECT().Resolve(gomock.Any(), "home").Return(snapshot, nil)
	f.writer.EXPECT().Write(gomock.Any(), snapshot).Return(true)
	f.clock.Advance(10*time.Second + DefaultRestoreMargin)
	assert.Zero(t, f.s.Len())
}

func TestCancelAllSkipsRestores(t *testing.T) {
	f := setup(t, 15*time.Second)

	f.writer.EXPECT().Write(gomock.Any(), alert).Return(true).Times(2)
	_, err := f.s.Schedule(context.Background(), alert, 5*time.Second, RestoreIntent{Slot: "a"})
	require.NoError(t, err)
	_, err = f.s.Schedule(context.Background(), alert, time.Hour, RestoreIntent{Slot: "b"})
	require.NoError(t, err)

	// First timer is now waiting out the rate window.
	f.clock.Advance(5 * time.Second)
	require.Equal(t, 2, f.s.Len())

	assert.Equal(t, 2, f.s.CancelAll())
	assert.Zero(t, f.s.Len())

	// No Resolve or restore Write is expected.
	f.clock.Advance(2 * time.Hour)
	assert.Zero(t, f.s.CancelAll())
}

func TestListIsRestartableSnapshot(t *testing.T) {
	f := setup(t, 0)
	f.writer.EXPECT().Write(gomock.Any(), alert).Return(true).AnyTimes()

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := f.s.Schedule(context.Background(), alert, time.Hour, RestoreIntent{Slot: "home"})
		require.NoError(t, err)
		ids = append(ids, id)
		f.clock.Advance(time.Second)
	}

	seq := f.s.List()
	for pass := 0; pass < 2; pass++ {
		var got []string
		for info := range seq {
			got = append(got, info.ID)
		}
		assert.Equal(t, ids, got, "pass %d", pass)
	}

	var first []string
	for info := range seq {
		first = append(first, info.ID)
		break
	}
	assert.Equal(t, ids[:1], first)
	assert.Equal(t, 3, f.s.Len(), "listing does not mutate")
}

func TestIDsUniqueWithinOneSecond(t *testing.T) {
	f := setup(t, 0)
	f.writer.EXPECT().Write(gomock.Any(), alert).Return(true).AnyTimes()

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		id, err := f.s.Schedule(context.Background(), alert, time.Hour, RestoreIntent{Slot: "home"})
		require.NoError(t, err)
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Equal(t, 200, f.s.Len())
}

func TestCallbackPanicIsContained(t *testing.T) {
	f := setup(t, 0)
	f.writer.EXPECT().Write(gomock.Any(), alert).Return(true).Times(2)

	_, err := f.s.Schedule(context.Background(), alert, time.Second, RestoreIntent{Slot: "bad"})
	require.NoError(t, err)
	_, err = f.s.Schedule(context.Background(), alert, 2*time.Second, RestoreIntent{Slot: "good"})
	require.NoError(t, err)

	f.capture.EXPECT().Resolve(gomock.Any(), "bad").DoAndReturn(func(context.Context, string) (board.Command, error) {
		panic("corrupt row")
	})
	f.capture.EXPECT().Resolve(gomock.Any(), "good").Return(snapshot, nil)
	f.writer.EXPECT().Write(gomock.Any(), snapshot).Return(true)

	assert.NotPanics(t, func() { f.clock.Advance(2 * time.Second) })
	assert.Zero(t, f.s.Len())
	assert.Contains(t, f.logs.String(), "timer callback panicked")
}

type countingWriter struct {
	writes atomic.Int32
}

func (w *countingWriter) Write(context.Context, board.Command) bool {
	w.writes.Add(1)
	return true
}

type fixedCapture struct{}

func (fixedCapture) Capture(context.Context, string) error { return nil }
func (fixedCapture) Resolve(context.Context, string) (board.Command, error) {
	return snapshot, nil
}
func (fixedCapture) Discard(context.Context, string) error { return nil }

func TestFireCancelRaceAtMostOnce(t *testing.T) {
	logger, _ := NewTestSlogger()
	var restoredWins, cancelWins int

	for trial := 0; trial < 1000; trial++ {
		c := clock.NewFake(epoch)
		w := &countingWriter{}
		s := New(Config{}, w, fixedCapture{}, ratelimit.NewGate(c, 0), c, nil, logger)

		id, err := s.Schedule(context.Background(), alert, time.Second, RestoreIntent{Slot: "home"})
		require.NoError(t, err)

		var cancelled bool
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Advance(time.Second)
		}()
		go func() {
			defer wg.Done()
			cancelled = s.Cancel(id)
		}()
		wg.Wait()

		restored := w.writes.Load() == 2
		if restored == cancelled {
			t.Fatalf("trial %d: restored=%v cancelled=%v, want exactly one", trial, restored, cancelled)
		}
		if restored {
			restoredWins++
		} else {
			cancelWins++
		}
		require.Zero(t, s.Len(), "trial %d", trial)
	}
	t.Logf("restore won %d, cancel won %d", restoredWins, cancelWins)
}
