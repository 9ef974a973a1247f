package bridge

import (
	"context"
	"iter"

	"github.com/mattjoyce/vestabridge/internal/board"
	"github.com/mattjoyce/vestabridge/internal/mqtt"
	"github.com/mattjoyce/vestabridge/internal/scheduler"
	"github.com/mattjoyce/vestabridge/internal/service"
)

// Bus is the message-bus side of the bridge.
type Bus interface {
	Subscribe(topic string, h mqtt.Handler) error
	Publish(topic string, payload []byte) error
}

// Service is the board side of the bridge.
type Service interface {
	DispatchNow(ctx context.Context, cmd board.Command) bool
	ScheduleTimedDisplay(ctx context.Context, req service.TimedRequest) (string, error)
	CancelTimer(id string) bool
	ListTimers() iter.Seq[scheduler.TimerInfo]
	SaveSlot(ctx context.Context, slot string) error
	RestoreSlot(ctx context.Context, slot string, render *board.RenderParams) (bool, error)
	DeleteSlot(ctx context.Context, slot string) error
}

var (
	_ Bus     = (*mqtt.Client)(nil)
	_ Service = (*service.Service)(nil)
)
