package device

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mattjoyce/vestabridge/internal/board"
	"github.com/mattjoyce/vestabridge/internal/clock"
	"github.com/mattjoyce/vestabridge/internal/log"
)

const (
	DefaultLocalHost = "vestaboard.local"
	DefaultLocalPort = 7000
	LocalMinInterval = time.Second
	localKeyHeader   = "X-Vestaboard-Local-Api-Key"
)

type LocalConfig struct {
	APIKey     string
	Host       string
	Port       int
	Board      board.Type
	Timeout    time.Duration
	HTTPClient *http.Client
	Clock      clock.Clock
	// URL overrides the address built from Host and Port.
	URL string
}

// Local writes straight to the board over the LAN.
type Local struct {
	api   apiClient
	board board.Type
	clock clock.Clock
}

func NewLocal(cfg LocalConfig) (*Local, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("local API key is empty")
	}
	if cfg.Host == "" {
		cfg.Host = DefaultLocalHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultLocalPort
	}
	if cfg.Board.Rows == 0 {
		cfg.Board = board.Standard
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.URL == "" {
		cfg.URL = fmt.Sprintf("http://%s:%d/local-api/message", cfg.Host, cfg.Port)
	}

	logger := log.WithComponent("device").With(slog.String("api", "local"))
	logger.Info("local API client ready", "board", cfg.Board.String(), "url", cfg.URL)
	return &Local{
		api: apiClient{
			url:       cfg.URL,
			keyHeader: localKeyHeader,
			key:       cfg.APIKey,
			http:      newHTTPClient(cfg.HTTPClient, cfg.Timeout),
			logger:    logger,
		},
		board: cfg.Board,
		clock: cfg.Clock,
	}, nil
}

func (l *Local) Name() string { return "local" }

func (l *Local) Board() board.Type { return l.board }

func (l *Local) MinInterval() time.Duration { return LocalMinInterval }

// localMessage is the transition-aware request body.
type localMessage struct {
	Characters board.Layout `json:"characters"`
	board.RenderParams
}

// Write converts text to a centred layout. With render params the body is
// {"characters": grid, "strategy": ...}; otherwise the bare grid.
func (l *Local) Write(ctx context.Context, cmd board.Command) error {
	layout := cmd.Layout
	if len(layout) == 0 {
		layout = board.TextToLayout(cmd.Text, l.board)
	}

	var payload any = layout
	if !cmd.Render.IsZero() {
		payload = localMessage{Characters: layout, RenderParams: *cmd.Render}
	}

	l.api.logger.Info("writing layout", "board", l.board.Name, "strategy", renderStrategy(cmd.Render))
	l.api.logPreview(layout)

	if _, err := l.api.do(ctx, http.MethodPost, payload); err != nil {
		l.api.logWriteError(err)
		return err
	}
	l.api.logger.Info("board write ok")
	return nil
}

// Current reads the displayed layout. The local API has no message ids, so
// one is generated.
func (l *Local) Current(ctx context.Context) (board.Snapshot, error) {
	body, err := l.api.do(ctx, http.MethodGet, nil)
	if err != nil {
		l.api.logger.Error("read current message failed", "error", err)
		return board.Snapshot{}, err
	}
	layout, err := board.ParseLayout(body)
	if err != nil {
		return board.Snapshot{}, fmt.Errorf("current message: %w", err)
	}
	return board.Snapshot{
		Layout: layout,
		ID:     fmt.Sprintf("local-%d", l.clock.Now().Unix()),
	}, nil
}

func renderStrategy(p *board.RenderParams) string {
	if p == nil {
		return ""
	}
	return p.Strategy
}
