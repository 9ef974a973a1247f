package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mattjoyce/vestabridge/internal/board"
	"github.com/mattjoyce/vestabridge/internal/events"
	"github.com/mattjoyce/vestabridge/internal/log"
)

// ErrNoContent means the board could not report what it shows.
var ErrNoContent = errors.New("no current board content")

// Reader reads what the board currently shows.
type Reader interface {
	Current(ctx context.Context) (board.Snapshot, error)
}

// Capturer snapshots the live board into slots and resolves slots back into
// commands.
type Capturer struct {
	store  *Store
	reader Reader
	events *events.Hub
	logger *slog.Logger
}

func NewCapturer(store *Store, reader Reader, hub *events.Hub) *Capturer {
	return &Capturer{
		store:  store,
		reader: reader,
		events: hub,
		logger: log.WithComponent("state"),
	}
}

// Capture saves the current board into slot.
func (c *Capturer) Capture(ctx context.Context, slot string) error {
	if err := ValidateSlotName(slot); err != nil {
		return err
	}
	snap, err := c.reader.Current(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoContent, err)
	}
	if len(snap.Layout) == 0 {
		return ErrNoContent
	}
	if err := c.store.Save(ctx, slot, snap.Layout, snap.ID); err != nil {
		return err
	}

	c.logger.Info("board saved", "slot", slot, "original_id", snap.ID)
	c.events.Publish(events.SlotSaved, map[string]string{"slot": slot, "original_id": snap.ID})
	return nil
}

// Resolve returns the slot's layout as a command without render params.
func (c *Capturer) Resolve(ctx context.Context, slot string) (board.Command, error) {
	saved, err := c.store.Get(ctx, slot)
	if err != nil {
		return board.Command{}, err
	}
	return board.LayoutCommand(saved.Layout, nil), nil
}

// Discard deletes slot.
func (c *Capturer) Discard(ctx context.Context, slot string) error {
	if err := c.store.Delete(ctx, slot); err != nil {
		return err
	}
	c.logger.Debug("slot deleted", "slot", slot)
	c.events.Publish(events.SlotDeleted, map[string]string{"slot": slot})
	return nil
}

// Store exposes the underlying slot store.
func (c *Capturer) Store() *Store {
	return c.store
}
