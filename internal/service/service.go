// Package service is the caller-facing API of the bridge. The bus router
// and the HTTP API both drive the board through it.
package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/mattjoyce/vestabridge/internal/board"
	"github.com/mattjoyce/vestabridge/internal/clock"
	"github.com/mattjoyce/vestabridge/internal/device"
	"github.com/mattjoyce/vestabridge/internal/dispatch"
	"github.com/mattjoyce/vestabridge/internal/events"
	"github.com/mattjoyce/vestabridge/internal/log"
	"github.com/mattjoyce/vestabridge/internal/scheduler"
	"github.com/mattjoyce/vestabridge/internal/state"
)

type Config struct {
	Dispatch  dispatch.Config
	Scheduler scheduler.Config
}

// TimedRequest asks for Command to be shown for Duration.
type TimedRequest struct {
	Command  board.Command
	Duration time.Duration
	// RestoreSlot names saved content to put back. Empty captures the
	// current board first.
	RestoreSlot string
	// Render applies to the timed message when set.
	Render *board.RenderParams
	// RestoreRender applies to the restore; nil reuses the timed message's.
	RestoreRender *board.RenderParams
}

// Metrics is a point-in-time view for /metrics and the monitor.
type Metrics struct {
	UptimeSeconds float64        `json:"uptime_seconds"`
	ActiveTimers  int            `json:"active_timers"`
	Transport     string         `json:"transport"`
	MinIntervalMs int64          `json:"min_interval_ms"`
	Dispatch      dispatch.Stats `json:"dispatch"`
}

type Service struct {
	device     device.Client
	dispatcher *dispatch.Dispatcher
	scheduler  *scheduler.Scheduler
	capturer   *state.Capturer
	clock      clock.Clock
	started    time.Time
	logger     *slog.Logger
}

func New(cfg Config, dev device.Client, store *state.Store, c clock.Clock, hub *events.Hub) *Service {
	d := dispatch.New(cfg.Dispatch, dev, c, hub)
	capturer := state.NewCapturer(store, dev, hub)
	return &Service{
		device:     dev,
		dispatcher: d,
		scheduler:  scheduler.New(cfg.Scheduler, d, capturer, d.Gate(), c, hub, nil),
		capturer:   capturer,
		clock:      c,
		started:    c.Now(),
		logger:     log.WithComponent("service"),
	}
}

// DispatchNow writes or queues cmd. See dispatch.Dispatcher.Write.
func (s *Service) DispatchNow(ctx context.Context, cmd board.Command) bool {
	return s.dispatcher.Write(ctx, cmd)
}

// ScheduleTimedDisplay shows a message for a while, then restores.
func (s *Service) ScheduleTimedDisplay(ctx context.Context, req TimedRequest) (string, error) {
	cmd := req.Command
	if req.Render != nil {
		cmd = cmd.WithRender(req.Render)
	}
	if req.RestoreSlot != "" {
		if err := state.ValidateSlotName(req.RestoreSlot); err != nil {
			return "", err
		}
	}
	return s.scheduler.Schedule(ctx, cmd, req.Duration, scheduler.RestoreIntent{
		Slot:   req.RestoreSlot,
		Render: req.RestoreRender,
	})
}

func (s *Service) CancelTimer(id string) bool {
	return s.scheduler.Cancel(id)
}

func (s *Service) ListTimers() iter.Seq[scheduler.TimerInfo] {
	return s.scheduler.List()
}

// SaveSlot captures the current board into slot.
func (s *Service) SaveSlot(ctx context.Context, slot string) error {
	return s.capturer.Capture(ctx, slot)
}

// RestoreSlot writes saved content back to the board through the
// dispatcher. The bool has Write's meaning.
func (s *Service) RestoreSlot(ctx context.Context, slot string, render *board.RenderParams) (bool, error) {
	cmd, err := s.capturer.Resolve(ctx, slot)
	if err != nil {
		return false, err
	}
	return s.dispatcher.Write(ctx, cmd.WithRender(render)), nil
}

func (s *Service) DeleteSlot(ctx context.Context, slot string) error {
	return s.capturer.Discard(ctx, slot)
}

func (s *Service) ListSlots(ctx context.Context) ([]state.SlotSummary, error) {
	return s.capturer.Store().List(ctx)
}

func (s *Service) Metrics() Metrics {
	return Metrics{
		UptimeSeconds: s.clock.Now().Sub(s.started).Seconds(),
		ActiveTimers:  s.scheduler.Len(),
		Transport:     s.device.Name(),
		MinIntervalMs: s.device.MinInterval().Milliseconds(),
		Dispatch:      s.dispatcher.Stats(),
	}
}

// Shutdown cancels every timer without restoring and drains the queue.
func (s *Service) Shutdown() {
	timers := s.scheduler.CancelAll()
	discarded := s.dispatcher.Shutdown()
	s.logger.Info("service stopped", "timers_cancelled", timers, "commands_discarded", discarded)
}

// IsNotFound reports whether err means a slot does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, state.ErrSlotNotFound)
}

// IsInvalid reports whether err is a caller input problem.
func IsInvalid(err error) bool {
	return errors.Is(err, state.ErrInvalidSlotName) ||
		errors.Is(err, scheduler.ErrEmptyCommand) ||
		errors.Is(err, scheduler.ErrInvalidDuration) ||
		errors.Is(err, board.ErrEmptyLayout) ||
		errors.Is(err, ErrInvalidPayload)
}

// String describes the service for startup logs.
func (s *Service) String() string {
	return fmt.Sprintf("%s transport, %s board, min interval %s", s.device.Name(), s.device.Board().Name, s.device.MinInterval())
}
