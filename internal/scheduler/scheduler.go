// Package scheduler runs "show this for a while, then put back what was
// there" workflows on top of the dispatcher.
package scheduler

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/vestabridge/internal/board"
	"github.com/mattjoyce/vestabridge/internal/clock"
	"github.com/mattjoyce/vestabridge/internal/events"
	"github.com/mattjoyce/vestabridge/internal/log"
)

const (
	DefaultRestoreMargin = 500 * time.Millisecond
	tempSlotPrefix       = "temp_"
)

var (
	ErrEmptyCommand    = errors.New("timed message is empty")
	ErrInvalidDuration = errors.New("duration must be positive")
)

// Timer lifecycle. Pending moves to Firing or Cancelled exactly once, by
// compare-and-swap; both end in Removed. Restoring is the committed part of
// Firing, after the courtesy wait.
const (
	statePending int32 = iota
	stateFiring
	stateRestoring
	stateCancelled
	stateRemoved
)

// RestoreIntent says what to put back when a timer fires. An empty Slot
// means capture the current board first. A nil Render reuses the timed
// message's render params.
type RestoreIntent struct {
	Slot   string
	Render *board.RenderParams
}

// TimerInfo is a read-only view of a registered timer.
type TimerInfo struct {
	ID        string    `json:"timer_id"`
	Pending   bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	FireAt    time.Time `json:"fire_at"`
	Slot      string    `json:"restore_slot"`
}

type Config struct {
	// RestoreMargin is added to the remaining rate window before a restore.
	RestoreMargin time.Duration
}

type timer struct {
	id            string
	slot          string
	autoSlot      bool
	restoreRender *board.RenderParams
	createdAt     time.Time
	fireAt        time.Time
	writeInstant  time.Time
	logger        *slog.Logger

	state atomic.Int32

	// guarded by Scheduler.mu
	handle *clock.Timer
	wait   *clock.Timer
}

type Scheduler struct {
	writer  Writer
	capture StateCapture
	window  RateWindow
	clock   clock.Clock
	events  *events.Hub
	logger  *slog.Logger
	margin  time.Duration

	mu     sync.Mutex
	timers map[string]*timer
}

func New(cfg Config, writer Writer, capture StateCapture, window RateWindow, c clock.Clock, hub *events.Hub, logger *slog.Logger) *Scheduler {
	if cfg.RestoreMargin <= 0 {
		cfg.RestoreMargin = DefaultRestoreMargin
	}
	if logger == nil {
		logger = log.WithComponent("scheduler")
	} else {
		logger = logger.With("component", "scheduler")
	}
	return &Scheduler{
		writer:  writer,
		capture: capture,
		window:  window,
		clock:   c,
		events:  hub,
		logger:  logger,
		margin:  cfg.RestoreMargin,
		timers:  make(map[string]*timer),
	}
}

func (s *Scheduler) newID() string {
	return fmt.Sprintf("timer-%d-%s", s.clock.Now().Unix(), uuid.NewString()[:8])
}

// Schedule shows cmd now and arms a timer that restores the board after d.
// Only invalid input is an error: capture and write failures are logged
// and the timer is armed regardless.
func (s *Scheduler) Schedule(ctx context.Context, cmd board.Command, d time.Duration, intent RestoreIntent) (string, error) {
	if cmd.IsEmpty() {
		return "", ErrEmptyCommand
	}
	if d <= 0 {
		return "", fmt.Errorf("%w: got %s", ErrInvalidDuration, d)
	}

	t := &timer{
		id:            s.newID(),
		slot:          intent.Slot,
		restoreRender: intent.Render,
	}
	if t.restoreRender == nil {
		t.restoreRender = cmd.Render
	}
	t.logger = s.logger.With("timer_id", t.id)

	if t.slot == "" {
		t.slot = tempSlotPrefix + t.id
		t.autoSlot = true
		if err := s.capture.Capture(ctx, t.slot); err != nil {
			t.logger.Warn("could not capture current board, restore will be skipped", "slot", t.slot, "error", err)
		}
	}

	if !s.writer.Write(ctx, cmd) {
		t.logger.Warn("timed message write failed", "command", cmd.String())
	}
	t.writeInstant = s.clock.Now()
	t.createdAt = t.writeInstant
	t.fireAt = t.writeInstant.Add(d)

	s.mu.Lock()
	t.handle = s.clock.AfterFunc(d, func() { s.fire(t) })
	s.timers[t.id] = t
	s.mu.Unlock()

	t.logger.Info("timed message scheduled", "duration", d.String(), "slot", t.slot)
	s.events.Publish(events.TimerScheduled, map[string]any{
		"timer_id":         t.id,
		"duration_seconds": d.Seconds(),
		"restore_slot":     t.slot,
	})
	return t.id, nil
}

func (s *Scheduler) fire(t *timer) {
	defer s.recoverCallback(t)

	if !t.state.CompareAndSwap(statePending, stateFiring) {
		return
	}
	s.events.Publish(events.TimerFired, map[string]string{"timer_id": t.id})

	wait := s.window.TimeUntilNextSlotFrom(t.writeInstant)
	if wait <= 0 {
		s.restore(t)
		return
	}
	wait += s.margin
	t.logger.Debug("waiting out rate window before restore", "wait_ms", wait.Milliseconds())

	s.mu.Lock()
	defer s.mu.Unlock()
	if t.state.Load() != stateFiring {
		return
	}
	t.wait = s.clock.AfterFunc(wait, func() {
		defer s.recoverCallback(t)
		s.restore(t)
	})
}

func (s *Scheduler) restore(t *timer) {
	if !t.state.CompareAndSwap(stateFiring, stateRestoring) {
		// Abandoned by CancelAll during the wait.
		return
	}
	ctx := context.Background()
	defer s.remove(t)
	if t.autoSlot {
		defer s.discard(ctx, t)
	}

	cmd, err := s.capture.Resolve(ctx, t.slot)
	if err != nil {
		t.logger.Warn("restore content unavailable, leaving timed message up", "slot", t.slot, "error", err)
		return
	}
	cmd = cmd.WithRender(t.restoreRender)

	if !s.writer.Write(ctx, cmd) {
		t.logger.Warn("restore write failed", "slot", t.slot)
		return
	}
	t.logger.Info("board restored", "slot", t.slot)
	s.events.Publish(events.TimerRestored, map[string]string{"timer_id": t.id, "restore_slot": t.slot})
}

func (s *Scheduler) remove(t *timer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timers[t.id] == t {
		delete(s.timers, t.id)
	}
	t.state.Store(stateRemoved)
}

func (s *Scheduler) discard(ctx context.Context, t *timer) {
	if err := s.capture.Discard(ctx, t.slot); err != nil {
		t.logger.Debug("temporary slot not removed", "slot", t.slot, "error", err)
	}
}

func (s *Scheduler) recoverCallback(t *timer) {
	if r := recover(); r != nil {
		t.logger.Error("timer callback panicked", "panic", r)
		s.remove(t)
	}
}

// Cancel stops a pending timer without restoring. It reports false for
// unknown ids and timers that already started firing.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	t, ok := s.timers[id]
	if !ok || !t.state.CompareAndSwap(statePending, stateCancelled) {
		s.mu.Unlock()
		return false
	}
	t.handle.Stop()
	delete(s.timers, id)
	t.state.Store(stateRemoved)
	s.mu.Unlock()

	t.logger.Info("timer cancelled")
	s.events.Publish(events.TimerCancelled, map[string]string{"timer_id": id})
	if t.autoSlot {
		s.discard(context.Background(), t)
	}
	return true
}

// CancelAll cancels every timer without restoring, including timers
// waiting out the rate window, and clears the registry.
func (s *Scheduler) CancelAll() int {
	s.mu.Lock()
	var cancelled []*timer
	for id, t := range s.timers {
		switch {
		case t.state.CompareAndSwap(statePending, stateCancelled):
			t.handle.Stop()
		case t.state.CompareAndSwap(stateFiring, stateCancelled):
			t.wait.Stop()
		default:
			// Restore already committed; it removes itself.
			continue
		}
		t.state.Store(stateRemoved)
		delete(s.timers, id)
		cancelled = append(cancelled, t)
	}
	s.mu.Unlock()

	for _, t := range cancelled {
		if t.autoSlot {
			s.discard(context.Background(), t)
		}
	}
	if len(cancelled) > 0 {
		s.logger.Info("cancelled all timers", "count", len(cancelled))
	}
	return len(cancelled)
}

// List enumerates registered timers, oldest first. Each range over the
// returned sequence takes a fresh snapshot.
func (s *Scheduler) List() iter.Seq[TimerInfo] {
	return func(yield func(TimerInfo) bool) {
		for _, info := range s.snapshot() {
			if !yield(info) {
				return
			}
		}
	}
}

func (s *Scheduler) snapshot() []TimerInfo {
	s.mu.Lock()
	out := make([]TimerInfo, 0, len(s.timers))
	for _, t := range s.timers {
		out = append(out, TimerInfo{
			ID:        t.id,
			Pending:   t.state.Load() == statePending,
			CreatedAt: t.createdAt,
			FireAt:    t.fireAt,
			Slot:      t.slot,
		})
	}
	s.mu.Unlock()

	slices.SortFunc(out, func(a, b TimerInfo) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Len returns the number of registered timers.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}
