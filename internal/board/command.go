package board

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyLayout is returned when a layout payload decodes to nothing.
var ErrEmptyLayout = errors.New("empty layout")

// Layout is a grid of character codes, one slice per row.
type Layout [][]int

// Clone returns a deep copy.
func (l Layout) Clone() Layout {
	if l == nil {
		return nil
	}
	out := make(Layout, len(l))
	for i, row := range l {
		out[i] = append([]int(nil), row...)
	}
	return out
}

// RenderParams are per-write animation hints passed through to the device.
type RenderParams struct {
	Strategy       string `json:"strategy,omitempty"`
	StepIntervalMs *int   `json:"step_interval_ms,omitempty"`
	StepSize       *int   `json:"step_size,omitempty"`
}

// IsZero reports whether no hint is set.
func (p *RenderParams) IsZero() bool {
	return p == nil || (p.Strategy == "" && p.StepIntervalMs == nil && p.StepSize == nil)
}

// Command is one write request: text or a layout, plus optional render
// hints. Treat it as immutable once handed to the dispatcher.
type Command struct {
	Text   string        `json:"text,omitempty"`
	Layout Layout        `json:"layout,omitempty"`
	Render *RenderParams `json:"render,omitempty"`
}

// TextCommand builds a text command.
func TextCommand(text string, render *RenderParams) Command {
	return Command{Text: text, Render: render}
}

// LayoutCommand builds a layout command.
func LayoutCommand(layout Layout, render *RenderParams) Command {
	return Command{Layout: layout, Render: render}
}

// IsEmpty reports whether the command carries nothing to show.
func (c Command) IsEmpty() bool {
	return c.Text == "" && len(c.Layout) == 0
}

// WithRender returns a copy of c carrying render.
func (c Command) WithRender(render *RenderParams) Command {
	c.Render = render
	return c
}

// String is a short description for logs.
func (c Command) String() string {
	if len(c.Layout) > 0 {
		cols := len(c.Layout[0])
		return fmt.Sprintf("layout %dx%d", len(c.Layout), cols)
	}
	if len(c.Text) > 40 {
		return fmt.Sprintf("text %q...", c.Text[:40])
	}
	return fmt.Sprintf("text %q", c.Text)
}

// messageObject is the object form of a message payload.
type messageObject struct {
	Text   *string         `json:"text"`
	Layout json.RawMessage `json:"layout"`
	RenderParams
}

// ParseMessage decodes a message payload the way the bus and the HTTP API
// accept it:
//
//   - a JSON array is a layout;
//   - an object with "text" or "layout" is that content, with optional
//     strategy, step_interval_ms and step_size fields;
//   - any other JSON value is shown as its text form;
//   - anything that is not JSON is plain text.
func ParseMessage(payload []byte) (Command, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return Command{}, errors.New("empty message payload")
	}

	var raw any
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return TextCommand(string(payload), nil), nil
	}

	switch v := raw.(type) {
	case []any:
		layout, err := ParseLayout(trimmed)
		if err != nil {
			return Command{}, err
		}
		return LayoutCommand(layout, nil), nil
	case map[string]any:
		var obj messageObject
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return Command{}, fmt.Errorf("decode message object: %w", err)
		}
		render := obj.RenderParams
		var renderPtr *RenderParams
		if !render.IsZero() {
			renderPtr = &render
		}
		switch {
		case obj.Text != nil:
			return TextCommand(*obj.Text, renderPtr), nil
		case len(obj.Layout) > 0:
			layout, err := ParseLayout(obj.Layout)
			if err != nil {
				return Command{}, err
			}
			return LayoutCommand(layout, renderPtr), nil
		}
		return TextCommand(string(trimmed), nil), nil
	case string:
		return TextCommand(v, nil), nil
	default:
		return TextCommand(string(trimmed), nil), nil
	}
}

// ParseLayout accepts a layout as a JSON array, a JSON string containing
// the array, or an object wrapping it under "message" or "layout".
func ParseLayout(raw []byte) (Layout, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, ErrEmptyLayout
	}

	switch raw[0] {
	case '"':
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, fmt.Errorf("decode layout string: %w", err)
		}
		return ParseLayout([]byte(strings.TrimSpace(inner)))
	case '{':
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(raw, &wrapper); err != nil {
			return nil, fmt.Errorf("decode layout wrapper: %w", err)
		}
		for _, key := range []string{"message", "layout"} {
			if inner, ok := wrapper[key]; ok {
				return ParseLayout(inner)
			}
		}
		return nil, errors.New("layout object has no message or layout field")
	}

	var layout Layout
	if err := json.Unmarshal(raw, &layout); err != nil {
		return nil, fmt.Errorf("decode layout: %w", err)
	}
	if len(layout) == 0 {
		return nil, ErrEmptyLayout
	}
	return layout, nil
}

// Snapshot is what a board reported as currently displayed.
type Snapshot struct {
	Layout Layout
	// ID is the transport's message id, or a generated one.
	ID string
}
