package service

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/vestabridge/internal/board"
	"github.com/mattjoyce/vestabridge/internal/scheduler"
)

func decodePayload(t *testing.T, raw string) TimedPayload {
	t.Helper()
	var p TimedPayload
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	return p
}

func TestTimedPayloadRequest(t *testing.T) {
	p := decodePayload(t, `{
		"message": "ALERT",
		"duration_seconds": 1.5,
		"restore_slot": "home",
		"strategy": "column",
		"step_interval_ms": 250,
		"restore_strategy": "diagonal",
		"restore_step_size": 3
	}`)

	req, err := p.Request()
	require.NoError(t, err)
	assert.Equal(t, board.TextCommand("ALERT", nil), req.Command)
	assert.Equal(t, 1500*time.Millisecond, req.Duration)
	assert.Equal(t, "home", req.RestoreSlot)
	require.NotNil(t, req.Render)
	assert.Equal(t, "column", req.Render.Strategy)
	assert.Equal(t, 250, *req.Render.StepIntervalMs)
	require.NotNil(t, req.RestoreRender)
	assert.Equal(t, "diagonal", req.RestoreRender.Strategy)
	assert.Equal(t, 3, *req.RestoreRender.StepSize)
	assert.Nil(t, req.RestoreRender.StepIntervalMs)
}

func TestTimedPayloadDefaults(t *testing.T) {
	req, err := decodePayload(t, `{"message": [[0,8,9]]}`).Request()
	require.NoError(t, err)
	assert.Equal(t, DefaultTimedSeconds*time.Second, req.Duration)
	assert.Equal(t, board.Layout{{0, 8, 9}}, req.Command.Layout)
	assert.Nil(t, req.Render)
	assert.Nil(t, req.RestoreRender)
}

func TestTimedPayloadErrors(t *testing.T) {
	_, err := decodePayload(t, `{"duration_seconds": 5}`).Request()
	assert.ErrorIs(t, err, scheduler.ErrEmptyCommand)
	assert.True(t, IsInvalid(err))

	_, err = decodePayload(t, `{"message": null}`).Request()
	assert.ErrorIs(t, err, scheduler.ErrEmptyCommand)

	_, err = decodePayload(t, `{"message": [[1, "x"]]}`).Request()
	assert.ErrorIs(t, err, ErrInvalidPayload)
	assert.True(t, IsInvalid(err))
}

func TestTimedReceipt(t *testing.T) {
	p := decodePayload(t, `{"message": "HI", "duration_seconds": 10}`)
	req, err := p.Request()
	require.NoError(t, err)

	data, err := json.Marshal(NewTimedReceipt("timer-1", p, req))
	require.NoError(t, err)
	assert.JSONEq(t, `{"timer_id":"timer-1","message":"HI","duration_seconds":10,"restore_slot":null}`, string(data))
}

func TestNewTimerList(t *testing.T) {
	now := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	seq := func(yield func(scheduler.TimerInfo) bool) {
		for _, id := range []string{"a", "b"} {
			if !yield(scheduler.TimerInfo{ID: id, Pending: true}) {
				return
			}
		}
	}

	list := NewTimerList(seq, now)
	assert.Equal(t, 2, list.TotalCount)
	assert.Equal(t, now.Unix(), list.Timestamp)
	assert.Equal(t, "b", list.ActiveTimers[1].ID)
}
