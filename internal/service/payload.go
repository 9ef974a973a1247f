package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/mattjoyce/vestabridge/internal/board"
	"github.com/mattjoyce/vestabridge/internal/scheduler"
)

// DefaultTimedSeconds applies when a timed payload omits duration_seconds.
const DefaultTimedSeconds = 60

// ErrInvalidPayload marks message content that could not be decoded.
var ErrInvalidPayload = errors.New("invalid message payload")

// TimedPayload is the JSON form of a timed display request, shared by the
// bus and the HTTP API.
type TimedPayload struct {
	Message         json.RawMessage `json:"message"`
	DurationSeconds *float64        `json:"duration_seconds"`
	RestoreSlot     string          `json:"restore_slot"`
	ResponseTopic   string          `json:"response_topic"`
	board.RenderParams

	RestoreStrategy       string `json:"restore_strategy"`
	RestoreStepIntervalMs *int   `json:"restore_step_interval_ms"`
	RestoreStepSize       *int   `json:"restore_step_size"`
}

// Request converts the payload. Message may be text, a layout or a message
// object, as for a plain message.
func (p TimedPayload) Request() (TimedRequest, error) {
	if m := bytes.TrimSpace(p.Message); len(m) == 0 || bytes.Equal(m, []byte("null")) {
		return TimedRequest{}, fmt.Errorf("%w: missing message", scheduler.ErrEmptyCommand)
	}
	cmd, err := board.ParseMessage(p.Message)
	if err != nil {
		return TimedRequest{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	seconds := float64(DefaultTimedSeconds)
	if p.DurationSeconds != nil {
		seconds = *p.DurationSeconds
	}

	req := TimedRequest{
		Command:     cmd,
		Duration:    time.Duration(seconds * float64(time.Second)),
		RestoreSlot: p.RestoreSlot,
	}
	if render := p.RenderParams; !render.IsZero() {
		req.Render = &render
	}
	restore := board.RenderParams{
		Strategy:       p.RestoreStrategy,
		StepIntervalMs: p.RestoreStepIntervalMs,
		StepSize:       p.RestoreStepSize,
	}
	if !restore.IsZero() {
		req.RestoreRender = &restore
	}
	return req, nil
}

// TimedReceipt acknowledges a scheduled timed display.
type TimedReceipt struct {
	TimerID         string          `json:"timer_id"`
	Message         json.RawMessage `json:"message"`
	DurationSeconds float64         `json:"duration_seconds"`
	RestoreSlot     *string         `json:"restore_slot"`
}

func NewTimedReceipt(id string, p TimedPayload, req TimedRequest) TimedReceipt {
	r := TimedReceipt{
		TimerID:         id,
		Message:         p.Message,
		DurationSeconds: req.Duration.Seconds(),
	}
	if p.RestoreSlot != "" {
		slot := p.RestoreSlot
		r.RestoreSlot = &slot
	}
	return r
}

// TimerList is the listing published on the bus and served over HTTP.
type TimerList struct {
	ActiveTimers []scheduler.TimerInfo `json:"active_timers"`
	TotalCount   int                   `json:"total_count"`
	Timestamp    int64                 `json:"timestamp"`
}

func NewTimerList(timers iter.Seq[scheduler.TimerInfo], now time.Time) TimerList {
	list := TimerList{ActiveTimers: []scheduler.TimerInfo{}, Timestamp: now.Unix()}
	for info := range timers {
		list.ActiveTimers = append(list.ActiveTimers, info)
	}
	list.TotalCount = len(list.ActiveTimers)
	return list
}
