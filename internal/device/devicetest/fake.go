// Package devicetest provides an in-memory board for tests above the
// transport layer.
package devicetest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mattjoyce/vestabridge/internal/board"
	"github.com/mattjoyce/vestabridge/internal/clock"
	"github.com/mattjoyce/vestabridge/internal/device"
)

var _ device.Client = (*Board)(nil)

// ErrWriteRejected is returned by Write while Fail is set.
var ErrWriteRejected = errors.New("fake board rejected write")

// Write is one accepted write and the clock reading when it happened.
type Write struct {
	At      time.Time
	Command board.Command
}

// Board accepts every write (unless Fail is set) and reports the last
// written content as current.
type Board struct {
	clock    clock.Clock
	interval time.Duration

	mu      sync.Mutex
	showing board.Layout
	writes  []Write
	reads   int
	fail    bool
}

// New returns a standard board showing initial.
func New(c clock.Clock, interval time.Duration, initial string) *Board {
	return &Board{
		clock:    c,
		interval: interval,
		showing:  board.TextToLayout(initial, board.Standard),
	}
}

func (b *Board) Name() string               { return "fake" }
func (b *Board) Board() board.Type          { return board.Standard }
func (b *Board) MinInterval() time.Duration { return b.interval }

func (b *Board) Write(_ context.Context, cmd board.Command) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return ErrWriteRejected
	}
	b.writes = append(b.writes, Write{At: b.clock.Now(), Command: cmd})
	if len(cmd.Layout) > 0 {
		b.showing = cmd.Layout.Clone()
	} else {
		b.showing = board.TextToLayout(cmd.Text, board.Standard)
	}
	return nil
}

func (b *Board) Current(context.Context) (board.Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reads++
	return board.Snapshot{Layout: b.showing.Clone(), ID: "fake-1"}, nil
}

// Fail makes later writes return ErrWriteRejected until called with false.
func (b *Board) Fail(fail bool) {
	b.mu.Lock()
	b.fail = fail
	b.mu.Unlock()
}

// Writes returns accepted writes in order.
func (b *Board) Writes() []Write {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Write(nil), b.writes...)
}

// Reads counts Current calls.
func (b *Board) Reads() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reads
}

// Showing returns the current content.
func (b *Board) Showing() board.Layout {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.showing.Clone()
}
