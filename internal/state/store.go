// Package state persists named board snapshots ("slots") and implements the
// capture/resolve contract the timed scheduler restores from.
package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattjoyce/vestabridge/internal/board"
	"github.com/mattjoyce/vestabridge/internal/clock"
)

const maxSlotNameLen = 128

// Fixed-width so saved_at sorts lexically.
const savedAtFormat = "2006-01-02T15:04:05.000000000Z07:00"

var (
	ErrSlotNotFound    = errors.New("slot not found")
	ErrInvalidSlotName = errors.New("invalid slot name")
)

// Slot is a saved board layout.
type Slot struct {
	Name       string       `json:"name"`
	Layout     board.Layout `json:"layout"`
	OriginalID string       `json:"original_id,omitempty"`
	SavedAt    time.Time    `json:"saved_at"`
}

// SlotSummary is a Slot without its layout.
type SlotSummary struct {
	Name    string    `json:"name"`
	SavedAt time.Time `json:"saved_at"`
}

type Store struct {
	db    *sql.DB
	clock clock.Clock
}

func NewStore(db *sql.DB, c clock.Clock) *Store {
	if c == nil {
		c = clock.Real()
	}
	return &Store{db: db, clock: c}
}

// ValidateSlotName rejects names that cannot be used as a topic level.
func ValidateSlotName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: empty", ErrInvalidSlotName)
	case len(name) > maxSlotNameLen:
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidSlotName, maxSlotNameLen)
	case strings.ContainsAny(name, "/+#"):
		return fmt.Errorf("%w: %q contains '/', '+' or '#'", ErrInvalidSlotName, name)
	}
	return nil
}

// Save upserts a slot.
func (s *Store) Save(ctx context.Context, name string, layout board.Layout, originalID string) error {
	if err := ValidateSlotName(name); err != nil {
		return err
	}
	if len(layout) == 0 {
		return board.ErrEmptyLayout
	}
	raw, err := json.Marshal(layout)
	if err != nil {
		return fmt.Errorf("marshal layout: %w", err)
	}

	now := s.clock.Now().UTC().Format(savedAtFormat)
	_, err = s.db.ExecContext(ctx, `
INSERT INTO slots(name, layout, original_id, saved_at)
VALUES(?, ?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
  layout = excluded.layout,
  original_id = excluded.original_id,
  saved_at = excluded.saved_at;
`, name, string(raw), nullIfEmpty(originalID), now)
	if err != nil {
		return fmt.Errorf("upsert slot %q: %w", name, err)
	}
	return nil
}

// Get returns a slot. Layouts saved in older shapes (a JSON string, or an
// object wrapping the grid under "message") are normalised.
func (s *Store) Get(ctx context.Context, name string) (Slot, error) {
	var (
		raw        string
		originalID sql.NullString
		savedAt    string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT layout, original_id, saved_at FROM slots WHERE name = ?;", name,
	).Scan(&raw, &originalID, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Slot{}, fmt.Errorf("%w: %q", ErrSlotNotFound, name)
	}
	if err != nil {
		return Slot{}, fmt.Errorf("read slot %q: %w", name, err)
	}

	layout, err := board.ParseLayout([]byte(raw))
	if err != nil {
		return Slot{}, fmt.Errorf("slot %q has unusable layout: %w", name, err)
	}
	at, _ := time.Parse(time.RFC3339Nano, savedAt)
	return Slot{Name: name, Layout: layout, OriginalID: originalID.String, SavedAt: at}, nil
}

// Delete removes a slot.
func (s *Store) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM slots WHERE name = ?;", name)
	if err != nil {
		return fmt.Errorf("delete slot %q: %w", name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %q", ErrSlotNotFound, name)
	}
	return nil
}

// List returns slot names, most recently saved first.
func (s *Store) List(ctx context.Context) ([]SlotSummary, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name, saved_at FROM slots ORDER BY saved_at DESC, name ASC;")
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer rows.Close()

	var out []SlotSummary
	for rows.Next() {
		var name, savedAt string
		if err := rows.Scan(&name, &savedAt); err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		at, _ := time.Parse(time.RFC3339Nano, savedAt)
		out = append(out, SlotSummary{Name: name, SavedAt: at})
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
