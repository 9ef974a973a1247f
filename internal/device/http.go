// Package device talks to the board over its cloud or local HTTP API.
package device

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mattjoyce/vestabridge/internal/board"
)

const (
	DefaultTimeout  = 10 * time.Second
	maxResponseBody = 64 * 1024
	maxErrorDetail  = 512
)

// StatusError is a non-2xx response from the board API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("board API returned HTTP %d", e.Code)
	}
	return fmt.Sprintf("board API returned HTTP %d: %s", e.Code, e.Body)
}

// IsRateLimited reports whether the board rejected the write for exceeding
// its rate limit.
func (e *StatusError) IsRateLimited() bool {
	return e.Code == http.StatusTooManyRequests
}

// apiClient is the HTTP plumbing shared by both transports.
type apiClient struct {
	url       string
	keyHeader string
	key       string
	http      *http.Client
	logger    *slog.Logger
}

func (c *apiClient) do(ctx context.Context, method string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set(c.keyHeader, c.key)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, c.url, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := strings.TrimSpace(string(respBody))
		if len(detail) > maxErrorDetail {
			detail = detail[:maxErrorDetail]
		}
		return respBody, &StatusError{Code: resp.StatusCode, Body: detail}
	}
	return respBody, nil
}

// logWriteError logs a failed write the way operators need to see it: rate
// limit rejections at warn, everything else at error.
func (c *apiClient) logWriteError(err error) {
	var se *StatusError
	if errors.As(err, &se) && se.IsRateLimited() {
		c.logger.Warn("board rejected write with 429 rate limit")
		return
	}
	c.logger.Error("board write failed", "error", err)
}

func (c *apiClient) logPreview(layout board.Layout) {
	if !c.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	for _, line := range board.Preview(layout, board.DefaultPreviewRows) {
		c.logger.Debug(line)
	}
}

func newHTTPClient(hc *http.Client, timeout time.Duration) *http.Client {
	if hc != nil {
		return hc
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}
