// Package ratelimit holds the write gate that spaces successful device
// writes at least a minimum interval apart.
package ratelimit

import (
	"sync/atomic"
	"time"

	"github.com/mattjoyce/vestabridge/internal/clock"
)

// Gate remembers when the last successful write happened. Before the
// first success the gate is open.
//
// The only state is the last-success timestamp, stored atomically so the
// scheduler can read it without holding the queue lock.
type Gate struct {
	clock       clock.Clock
	minInterval time.Duration
	lastSuccess atomic.Int64 // unix nanos, 0 = never
}

// NewGate returns an open gate. A non-positive interval never closes.
func NewGate(c clock.Clock, minInterval time.Duration) *Gate {
	if minInterval < 0 {
		minInterval = 0
	}
	return &Gate{clock: c, minInterval: minInterval}
}

// MinInterval returns the configured spacing.
func (g *Gate) MinInterval() time.Duration {
	return g.minInterval
}

// CanSendNow reports whether at least MinInterval has passed since the last
// success.
func (g *Gate) CanSendNow() bool {
	return g.TimeUntilNextSlot() == 0
}

// TimeUntilNextSlot is max(0, MinInterval - elapsed since last success).
func (g *Gate) TimeUntilNextSlot() time.Duration {
	last := g.lastSuccess.Load()
	if last == 0 {
		return 0
	}
	return g.TimeUntilNextSlotFrom(time.Unix(0, last))
}

// TimeUntilNextSlotFrom is max(0, MinInterval - elapsed since at).
func (g *Gate) TimeUntilNextSlotFrom(at time.Time) time.Duration {
	if g.minInterval <= 0 {
		return 0
	}
	remaining := g.minInterval - g.clock.Now().Sub(at)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RecordSuccess marks at as the last successful write.
func (g *Gate) RecordSuccess(at time.Time) {
	g.lastSuccess.Store(at.UnixNano())
}

// LastSuccess returns the last recorded success, or the zero time.
func (g *Gate) LastSuccess() time.Time {
	last := g.lastSuccess.Load()
	if last == 0 {
		return time.Time{}
	}
	return time.Unix(0, last)
}
