// Package queue buffers device writes that arrive while the rate gate is
// closed and drains them one per open slot.
package queue

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gammazero/deque"

	"github.com/mattjoyce/vestabridge/internal/board"
	"github.com/mattjoyce/vestabridge/internal/clock"
	"github.com/mattjoyce/vestabridge/internal/events"
	"github.com/mattjoyce/vestabridge/internal/log"
	"github.com/mattjoyce/vestabridge/internal/ratelimit"
)

const (
	DefaultCapacity     = 10
	DefaultProcessDelay = 100 * time.Millisecond
)

// Sender performs one device write and reports whether it succeeded.
type Sender func(cmd board.Command) bool

type Config struct {
	// Capacity bounds the queue; overflow evicts the oldest command.
	Capacity int
	// ProcessDelay is how long the loop waits when the gate is already
	// open, so processing never recurses synchronously.
	ProcessDelay time.Duration
}

// Queue is a bounded FIFO of pending commands plus the self-rearming loop
// that sends them. Enqueue, Bypass and the loop share one mutex; the loop's
// device call happens inside it.
type Queue struct {
	gate         *ratelimit.Gate
	clock        clock.Clock
	send         Sender
	events       *events.Hub
	logger       *slog.Logger
	capacity     int
	processDelay time.Duration

	mu      sync.Mutex
	items   deque.Deque[board.Command]
	timer   *clock.Timer
	armed   bool
	gen     uint64
	evicted int64
}

func New(cfg Config, gate *ratelimit.Gate, c clock.Clock, send Sender, hub *events.Hub) *Queue {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.ProcessDelay <= 0 {
		cfg.ProcessDelay = DefaultProcessDelay
	}
	return &Queue{
		gate:         gate,
		clock:        c,
		send:         send,
		events:       hub,
		logger:       log.WithComponent("queue"),
		capacity:     cfg.Capacity,
		processDelay: cfg.ProcessDelay,
	}
}

// Enqueue appends cmd, evicting the oldest pending command when full, and
// arms the loop if it is idle. It always accepts.
func (q *Queue) Enqueue(cmd board.Command) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.items.Len() >= q.capacity {
		evicted := q.items.PopFront()
		q.evicted++
		q.logger.Info("queue full, evicted oldest command",
			"capacity", q.capacity,
			"evicted", evicted.String(),
		)
		q.events.Publish(events.QueueEvicted, map[string]any{
			"capacity": q.capacity,
			"evicted":  evicted.String(),
		})
	}
	q.items.PushBack(cmd)
	q.logger.Debug("command queued", "queue_size", q.items.Len(), "wait_ms", q.gate.TimeUntilNextSlot().Milliseconds())

	if !q.armed {
		q.scheduleNextAttemptLocked()
	}
	return true
}

// Bypass runs send inside the queue's critical section if the gate is open.
// attempted is false when the gate was closed and send did not run.
func (q *Queue) Bypass(send func() bool) (attempted, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.gate.CanSendNow() {
		return false, false
	}
	return true, q.safeSend(send)
}

func (q *Queue) scheduleNextAttemptLocked() {
	delay := q.gate.TimeUntilNextSlot()
	if delay <= 0 {
		delay = q.processDelay
	}
	if q.timer != nil {
		q.timer.Stop()
	}
	q.gen++
	gen := q.gen
	q.armed = true
	q.timer = q.clock.AfterFunc(delay, func() { q.processOne(gen) })
}

func (q *Queue) processOne(gen uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if gen != q.gen {
		return
	}
	q.armed = false
	q.timer = nil

	if q.items.Len() == 0 {
		return
	}
	if !q.gate.CanSendNow() {
		// Fired early, or a direct write took the slot.
		q.scheduleNextAttemptLocked()
		return
	}

	cmd := q.items.PopFront()
	if !q.safeSend(func() bool { return q.send(cmd) }) {
		q.logger.Warn("queued write failed, command dropped", "command", cmd.String(), "remaining", q.items.Len())
		return
	}
	if q.items.Len() > 0 {
		q.scheduleNextAttemptLocked()
	}
}

func (q *Queue) safeSend(send func() bool) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("device write panicked", "panic", r)
			ok = false
		}
	}()
	return send()
}

// Drain stops the loop and discards everything pending. It returns the
// number of commands discarded.
func (q *Queue) Drain() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	q.gen++
	q.armed = false

	n := q.items.Len()
	q.items.Clear()
	if n > 0 {
		q.logger.Warn("discarding queued commands", "count", n)
		q.events.Publish(events.QueueDrained, map[string]int{"discarded": n})
	}
	return n
}

// Len returns the number of pending commands.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Evicted returns how many commands overflow has discarded.
func (q *Queue) Evicted() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.evicted
}

// Snapshot returns the pending commands, oldest first.
func (q *Queue) Snapshot() []board.Command {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]board.Command, 0, q.items.Len())
	for i := 0; i < q.items.Len(); i++ {
		out = append(out, q.items.At(i))
	}
	return out
}

// Idle reports whether no processing attempt is armed.
func (q *Queue) Idle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return !q.armed
}
