package dispatch

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/mattjoyce/vestabridge/internal/board"
	"github.com/mattjoyce/vestabridge/internal/clock"
	"github.com/mattjoyce/vestabridge/internal/events"
	"github.com/mattjoyce/vestabridge/internal/log"
	"github.com/mattjoyce/vestabridge/internal/queue"
	"github.com/mattjoyce/vestabridge/internal/ratelimit"
)

const DefaultWriteTimeout = 10 * time.Second

//go:generate mockgen -destination=mocks/mock_device.go -package=mocks github.com/mattjoyce/vestabridge/internal/dispatch Device

// Device is the write side of a board transport.
type Device interface {
	Write(ctx context.Context, cmd board.Command) error
	// MinInterval is the spacing the transport requires between writes.
	// Zero means no limit.
	MinInterval() time.Duration
}

type Config struct {
	Queue        queue.Config
	WriteTimeout time.Duration
}

// Stats are cumulative dispatch counters.
type Stats struct {
	Direct     int64 `json:"direct"`
	Queued     int64 `json:"queued"`
	Delivered  int64 `json:"delivered"`
	Failed     int64 `json:"failed"`
	Evicted    int64 `json:"evicted"`
	QueueDepth int   `json:"queue_depth"`
}

type Dispatcher struct {
	device  Device
	gate    *ratelimit.Gate
	queue   *queue.Queue
	clock   clock.Clock
	events  *events.Hub
	logger  *slog.Logger
	timeout time.Duration

	direct    atomic.Int64
	queued    atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64
}

func New(cfg Config, device Device, c clock.Clock, hub *events.Hub) *Dispatcher {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	d := &Dispatcher{
		device:  device,
		gate:    ratelimit.NewGate(c, device.MinInterval()),
		clock:   c,
		events:  hub,
		logger:  log.WithComponent("dispatch"),
		timeout: cfg.WriteTimeout,
	}
	d.queue = queue.New(cfg.Queue, d.gate, c, func(cmd board.Command) bool {
		return d.send(context.Background(), cmd, "queued")
	}, hub)
	return d
}

// Write sends cmd now if the gate is open, otherwise queues it. The result
// is the device outcome for a direct send and true for a queued one.
func (d *Dispatcher) Write(ctx context.Context, cmd board.Command) bool {
	if cmd.IsEmpty() {
		d.logger.Warn("ignoring empty command")
		return false
	}

	attempted, ok := d.queue.Bypass(func() bool {
		d.direct.Add(1)
		return d.send(ctx, cmd, "direct")
	})
	if attempted {
		return ok
	}

	d.queued.Add(1)
	d.logger.Info("rate limited, command queued",
		"wait_ms", d.gate.TimeUntilNextSlot().Milliseconds(),
		"command", cmd.String(),
	)
	d.events.Publish(events.DispatchQueued, map[string]any{
		"command": cmd.String(),
		"wait_ms": d.gate.TimeUntilNextSlot().Milliseconds(),
	})
	return d.queue.Enqueue(cmd)
}

// send performs exactly one device call and advances the gate on success.
func (d *Dispatcher) send(ctx context.Context, cmd board.Command, path string) bool {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := d.clock.Now()
	if err := d.device.Write(ctx, cmd); err != nil {
		d.failed.Add(1)
		d.logger.Warn("device write failed", "path", path, "command", cmd.String(), "error", err)
		d.events.Publish(events.DispatchFailed, map[string]any{
			"path":    path,
			"command": cmd.String(),
			"error":   err.Error(),
		})
		return false
	}

	now := d.clock.Now()
	d.gate.RecordSuccess(now)
	d.delivered.Add(1)
	d.logger.Debug("device write ok", "path", path, "command", cmd.String(), "duration_ms", now.Sub(start).Milliseconds())
	d.events.Publish(events.DispatchSent, map[string]any{
		"path":    path,
		"command": cmd.String(),
	})
	return true
}

// Gate exposes the rate gate so the timed scheduler can size its courtesy
// wait. Callers must only read from it.
func (d *Dispatcher) Gate() *ratelimit.Gate {
	return d.gate
}

// Shutdown drains the queue, discarding unsent commands.
func (d *Dispatcher) Shutdown() int {
	return d.queue.Drain()
}

func (d *Dispatcher) Stats() Stats {
	return Stats{
		Direct:     d.direct.Load(),
		Queued:     d.queued.Load(),
		Delivered:  d.delivered.Load(),
		Failed:     d.failed.Load(),
		Evicted:    d.queue.Evicted(),
		QueueDepth: d.queue.Len(),
	}
}
