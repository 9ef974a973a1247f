package device

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mattjoyce/vestabridge/internal/board"
	"github.com/mattjoyce/vestabridge/internal/log"
)

const (
	DefaultCloudURL  = "https://rw.vestaboard.com/"
	CloudMinInterval = 15 * time.Second
	cloudKeyHeader   = "X-Vestaboard-Read-Write-Key"
)

type CloudConfig struct {
	APIKey string
	// URL overrides DefaultCloudURL.
	URL        string
	Board      board.Type
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Cloud writes through the hosted read/write API.
type Cloud struct {
	api   apiClient
	board board.Type
}

func NewCloud(cfg CloudConfig) (*Cloud, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("cloud API key is empty")
	}
	if cfg.URL == "" {
		cfg.URL = DefaultCloudURL
	}
	if cfg.Board.Rows == 0 {
		cfg.Board = board.Standard
	}
	logger := log.WithComponent("device").With(slog.String("api", "cloud"))
	logger.Info("cloud API client ready", "board", cfg.Board.String())
	return &Cloud{
		api: apiClient{
			url:       cfg.URL,
			keyHeader: cloudKeyHeader,
			key:       cfg.APIKey,
			http:      newHTTPClient(cfg.HTTPClient, cfg.Timeout),
			logger:    logger,
		},
		board: cfg.Board,
	}, nil
}

func (c *Cloud) Name() string { return "cloud" }

func (c *Cloud) Board() board.Type { return c.board }

func (c *Cloud) MinInterval() time.Duration { return CloudMinInterval }

// Write posts text as {"text": ...} and layouts as the bare grid. The cloud
// API has no transition support, so render params are not sent.
func (c *Cloud) Write(ctx context.Context, cmd board.Command) error {
	var payload any
	if len(cmd.Layout) > 0 {
		payload = cmd.Layout
		c.api.logger.Info("writing layout", "board", c.board.Name)
		c.api.logPreview(cmd.Layout)
	} else {
		payload = map[string]string{"text": cmd.Text}
		c.api.logger.Info("writing text", "text", cmd.Text)
	}

	body, err := c.api.do(ctx, http.MethodPost, payload)
	if err != nil {
		c.api.logWriteError(err)
		return err
	}

	var resp struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(body, &resp)
	c.api.logger.Info("board write ok", "message_id", resp.ID)
	return nil
}

// Current reads the layout the board is showing.
func (c *Cloud) Current(ctx context.Context) (board.Snapshot, error) {
	body, err := c.api.do(ctx, http.MethodGet, nil)
	if err != nil {
		c.api.logger.Error("read current message failed", "error", err)
		return board.Snapshot{}, err
	}

	var resp struct {
		CurrentMessage struct {
			Layout json.RawMessage `json:"layout"`
			ID     string          `json:"id"`
		} `json:"currentMessage"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return board.Snapshot{}, fmt.Errorf("decode current message: %w", err)
	}
	layout, err := board.ParseLayout(resp.CurrentMessage.Layout)
	if err != nil {
		return board.Snapshot{}, fmt.Errorf("current message: %w", err)
	}
	c.api.logger.Debug("read current message", "message_id", resp.CurrentMessage.ID)
	return board.Snapshot{Layout: layout, ID: resp.CurrentMessage.ID}, nil
}
