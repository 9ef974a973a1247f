// Package board models what a split-flap board can show: board geometry,
// the character code table, and the Command values the dispatcher writes.
package board

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownBoardType is returned by ParseType for names other than
// "standard" and "note".
var ErrUnknownBoardType = errors.New("unknown board type")

// Type describes a board model's geometry.
type Type struct {
	Name string
	Rows int
	Cols int
}

var (
	Standard = Type{Name: "standard", Rows: 6, Cols: 22}
	Note     = Type{Name: "note", Rows: 3, Cols: 15}
)

// ParseType is case-insensitive; an empty name means Standard.
func ParseType(name string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", Standard.Name:
		return Standard, nil
	case Note.Name:
		return Note, nil
	default:
		return Type{}, fmt.Errorf("%w %q (valid: standard, note)", ErrUnknownBoardType, name)
	}
}

func (t Type) String() string {
	return fmt.Sprintf("%s (%dx%d)", t.Name, t.Rows, t.Cols)
}

// Blank returns an all-blank layout for the board.
func (t Type) Blank() Layout {
	layout := make(Layout, t.Rows)
	for i := range layout {
		layout[i] = make([]int, t.Cols)
	}
	return layout
}
