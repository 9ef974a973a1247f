// Package events fans out dispatcher, queue and timer activity to the SSE
// endpoint and the terminal monitor.
package events

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gammazero/deque"

	"github.com/mattjoyce/vestabridge/internal/clock"
)

// Event types published by the bridge.
const (
	DispatchSent   = "dispatch.sent"
	DispatchQueued = "dispatch.queued"
	DispatchFailed = "dispatch.failed"
	QueueEvicted   = "queue.evicted"
	QueueDrained   = "queue.drained"
	TimerScheduled = "timer.scheduled"
	TimerFired     = "timer.fired"
	TimerCancelled = "timer.cancelled"
	TimerRestored  = "timer.restored"
	SlotSaved      = "slot.saved"
	SlotDeleted    = "slot.deleted"
)

const defaultCapacity = 100

type Event struct {
	ID   int64           `json:"id"`
	Type string          `json:"type"`
	At   time.Time       `json:"at"`
	Data json.RawMessage `json:"data"`
}

// Hub is an in-memory pub/sub that keeps the most recent events for late
// subscribers. A nil *Hub accepts and drops everything.
type Hub struct {
	clock    clock.Clock
	capacity int
	nextID   atomic.Int64

	mu        sync.Mutex
	recent    deque.Deque[Event]
	subs      map[int]chan Event
	nextSubID int
}

func NewHub(capacity int, c clock.Clock) *Hub {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	if c == nil {
		c = clock.Real()
	}
	return &Hub{
		clock:    c,
		capacity: capacity,
		subs:     make(map[int]chan Event),
	}
}

func (h *Hub) Publish(eventType string, data any) {
	if h == nil {
		return
	}

	payload := json.RawMessage("{}")
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			payload = b
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ev := Event{
		ID:   h.nextID.Add(1),
		Type: eventType,
		At:   h.clock.Now().UTC(),
		Data: payload,
	}
	if h.recent.Len() == h.capacity {
		h.recent.PopFront()
	}
	h.recent.PushBack(ev)
	for _, ch := range h.subs {
		// Slow subscribers miss events rather than block producers.
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe returns a live event channel and a func that closes it.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextSubID
	h.nextSubID++
	ch := make(chan Event, 128)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// SnapshotSince returns buffered events with ID > lastID, oldest first.
func (h *Hub) SnapshotSince(lastID int64) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Event, 0, h.recent.Len())
	for i := 0; i < h.recent.Len(); i++ {
		if ev := h.recent.At(i); ev.ID > lastID {
			out = append(out, ev)
		}
	}
	return out
}
