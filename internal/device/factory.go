package device

import (
	"context"
	"errors"
	"time"

	"github.com/mattjoyce/vestabridge/internal/board"
)

// Client is a board transport: the write capability the dispatcher drives
// plus the read side slots are captured from.
type Client interface {
	Name() string
	Board() board.Type
	MinInterval() time.Duration
	Write(ctx context.Context, cmd board.Command) error
	Current(ctx context.Context) (board.Snapshot, error)
}

var (
	_ Client = (*Cloud)(nil)
	_ Client = (*Local)(nil)
)

// Config selects and configures a transport.
type Config struct {
	APIKey      string
	LocalAPIKey string
	UseLocalAPI bool
	LocalHost   string
	LocalPort   int
	BoardType   string
	Timeout     time.Duration
}

// New picks the local API when asked for and a local key exists, or when
// only a local key is configured; otherwise the cloud API.
func New(cfg Config) (Client, error) {
	bt, err := board.ParseType(cfg.BoardType)
	if err != nil {
		return nil, err
	}

	useLocal := (cfg.UseLocalAPI && cfg.LocalAPIKey != "") || (cfg.LocalAPIKey != "" && cfg.APIKey == "")
	switch {
	case useLocal:
		return NewLocal(LocalConfig{
			APIKey:  cfg.LocalAPIKey,
			Host:    cfg.LocalHost,
			Port:    cfg.LocalPort,
			Board:   bt,
			Timeout: cfg.Timeout,
		})
	case cfg.APIKey != "":
		return NewCloud(CloudConfig{APIKey: cfg.APIKey, Board: bt, Timeout: cfg.Timeout})
	default:
		return nil, errors.New("no board API key configured (set device.api_key or device.local_api_key)")
	}
}
