package scheduler

import (
	"context"
	"time"

	"github.com/mattjoyce/vestabridge/internal/board"
)

//go:generate mockgen -destination=mocks/mock_scheduler.go -package=mocks github.com/mattjoyce/vestabridge/internal/scheduler Writer,StateCapture

// Writer is the dispatcher's write entry point. A true result means the
// command was written or accepted into the queue.
type Writer interface {
	Write(ctx context.Context, cmd board.Command) bool
}

// StateCapture saves and resolves board content by slot name.
type StateCapture interface {
	// Capture snapshots what the board shows now into slot.
	Capture(ctx context.Context, slot string) error
	// Resolve returns the content saved in slot.
	Resolve(ctx context.Context, slot string) (board.Command, error)
	// Discard forgets slot. Used for slots the scheduler created itself.
	Discard(ctx context.Context, slot string) error
}

// RateWindow answers how long until the device accepts another write,
// measured from a given write instant.
type RateWindow interface {
	TimeUntilNextSlotFrom(at time.Time) time.Duration
}
