// Package bridge maps bus topics onto board operations. Handler failures
// are logged and never surface to the bus.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mattjoyce/vestabridge/internal/board"
	"github.com/mattjoyce/vestabridge/internal/clock"
	"github.com/mattjoyce/vestabridge/internal/log"
	"github.com/mattjoyce/vestabridge/internal/service"
)

type Bridge struct {
	prefix string
	bus    Bus
	svc    Service
	clock  clock.Clock
	logger *slog.Logger
	ctx    context.Context
}

func New(prefix string, bus Bus, svc Service, c clock.Clock) *Bridge {
	if c == nil {
		c = clock.Real()
	}
	return &Bridge{
		prefix: strings.TrimRight(prefix, "/"),
		bus:    bus,
		svc:    svc,
		clock:  c,
		logger: log.WithComponent("bridge"),
		ctx:    context.Background(),
	}
}

// Topic returns the full topic for suffix.
func (b *Bridge) Topic(suffix string) string {
	return b.prefix + "/" + suffix
}

// Start subscribes every command topic. ctx bounds the handlers' board
// operations.
func (b *Bridge) Start(ctx context.Context) error {
	b.ctx = ctx
	for _, suffix := range subscribed {
		if err := b.bus.Subscribe(b.Topic(suffix), b.HandleMessage); err != nil {
			return fmt.Errorf("subscribe %s: %w", b.Topic(suffix), err)
		}
	}
	b.logger.Info("bridge listening", "prefix", b.prefix, "topics", len(subscribed))
	return nil
}

// HandleMessage routes one bus message by topic suffix.
func (b *Bridge) HandleMessage(topic string, payload []byte) {
	suffix, ok := strings.CutPrefix(topic, b.prefix+"/")
	if !ok {
		b.logger.Warn("message on unexpected topic", "topic", topic)
		return
	}
	b.logger.Debug("message received", "topic", topic, "bytes", len(payload))

	switch suffix {
	case TopicMessage:
		b.handleMessage(payload)
		return
	case TopicTimedMessage:
		b.handleTimedMessage(payload)
		return
	case TopicListTimers:
		b.handleListTimers(payload)
		return
	}

	action, arg, _ := strings.Cut(suffix, "/")
	switch action {
	case "save":
		b.handleSave(arg)
	case "restore":
		b.handleRestore(arg, payload)
	case "delete":
		b.handleDelete(arg)
	case "cancel-timer":
		b.handleCancelTimer(arg)
	default:
		b.logger.Warn("unknown topic suffix", "suffix", suffix)
	}
}

func (b *Bridge) handleMessage(payload []byte) {
	cmd, err := board.ParseMessage(payload)
	if err != nil {
		b.logger.Error("invalid message payload", "error", err)
		return
	}
	if b.svc.DispatchNow(b.ctx, cmd) {
		b.logger.Info("message accepted", "command", cmd.String())
	} else {
		b.logger.Error("message not sent", "command", cmd.String())
	}
}

func (b *Bridge) handleSave(slot string) {
	if err := b.svc.SaveSlot(b.ctx, slot); err != nil {
		b.logger.Error("save failed", "slot", slot, "error", err)
		return
	}
	b.logger.Info("board saved", "slot", slot)
}

func (b *Bridge) handleRestore(slot string, payload []byte) {
	var render *board.RenderParams
	if p := bytes.TrimSpace(payload); len(p) > 0 {
		var params board.RenderParams
		if err := json.Unmarshal(p, &params); err != nil {
			b.logger.Warn("ignoring unreadable restore options", "slot", slot, "error", err)
		} else if !params.IsZero() {
			render = &params
		}
	}

	ok, err := b.svc.RestoreSlot(b.ctx, slot, render)
	switch {
	case err != nil:
		b.logger.Error("restore failed", "slot", slot, "error", err)
	case !ok:
		b.logger.Error("restore not sent", "slot", slot)
	default:
		b.logger.Info("board restored", "slot", slot)
	}
}

func (b *Bridge) handleDelete(slot string) {
	if err := b.svc.DeleteSlot(b.ctx, slot); err != nil {
		b.logger.Error("delete failed", "slot", slot, "error", err)
		return
	}
	b.logger.Info("slot deleted", "slot", slot)
}

func (b *Bridge) handleTimedMessage(payload []byte) {
	var in service.TimedPayload
	if err := json.Unmarshal(payload, &in); err != nil {
		b.logger.Error("invalid timed message JSON", "error", err)
		return
	}
	req, err := in.Request()
	if err != nil {
		b.logger.Error("invalid timed message", "error", err)
		return
	}

	id, err := b.svc.ScheduleTimedDisplay(b.ctx, req)
	if err != nil {
		b.logger.Error("timed message rejected", "error", err)
		return
	}

	if in.ResponseTopic == "" {
		return
	}
	b.publishJSON(in.ResponseTopic, service.NewTimedReceipt(id, in, req))
}

func (b *Bridge) handleCancelTimer(id string) {
	if b.svc.CancelTimer(id) {
		b.logger.Info("timer cancelled", "timer_id", id)
	} else {
		b.logger.Info("timer not cancelled", "timer_id", id, "reason", "unknown or already firing")
	}
}

func (b *Bridge) handleListTimers(payload []byte) {
	topic := b.responseTopic(payload)
	list := service.NewTimerList(b.svc.ListTimers(), b.clock.Now())
	if b.publishJSON(topic, list) {
		b.logger.Info("published timer list", "topic", topic, "count", list.TotalCount)
	}
}

// responseTopic reads a list-timers payload: empty means the default
// topic, a JSON object may carry response_topic, and anything else that
// is not JSON is the topic itself.
func (b *Bridge) responseTopic(payload []byte) string {
	fallback := b.Topic(TopicTimersResponse)
	p := strings.TrimSpace(string(payload))
	if p == "" {
		return fallback
	}

	var raw any
	if err := json.Unmarshal([]byte(p), &raw); err != nil {
		return p
	}
	if obj, ok := raw.(map[string]any); ok {
		if topic, ok := obj["response_topic"].(string); ok && topic != "" {
			return topic
		}
	}
	return fallback
}

func (b *Bridge) publishJSON(topic string, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		b.logger.Error("encode response", "topic", topic, "error", err)
		return false
	}
	if err := b.bus.Publish(topic, data); err != nil {
		b.logger.Error("publish failed", "topic", topic, "error", err)
		return false
	}
	return true
}
