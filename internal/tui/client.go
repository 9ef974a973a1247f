package tui

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/vestabridge/internal/api"
	"github.com/mattjoyce/vestabridge/internal/events"
	"github.com/mattjoyce/vestabridge/internal/service"
)

// --- Message types ---

type eventMsg events.Event

type metricsMsg api.MetricsResponse

type timersMsg service.TimerList

type tickMsg time.Time

type errMsg struct{ err error }

type sseDisconnectedMsg struct{ err error }
type reconnectMsg struct{}

// --- Commands ---

// apiClient talks to a running bridge's HTTP API.
type apiClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func newAPIClient(baseURL, apiKey string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 2 * time.Second},
	}
}

func (c *apiClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *apiClient) fetchMetrics() tea.Msg {
	var m api.MetricsResponse
	if err := c.getJSON(context.Background(), "/metrics", &m); err != nil {
		return errMsg{err}
	}
	return metricsMsg(m)
}

func (c *apiClient) fetchTimers() tea.Msg {
	var l service.TimerList
	if err := c.getJSON(context.Background(), "/v1/timers", &l); err != nil {
		return errMsg{err}
	}
	return timersMsg(l)
}

// subscribeToEvents connects to /events and feeds events into ch until the
// stream ends.
func (c *apiClient) subscribeToEvents(ch chan<- events.Event) tea.Cmd {
	return func() tea.Msg {
		req, err := http.NewRequest(http.MethodGet, c.baseURL+"/events", nil)
		if err != nil {
			return sseDisconnectedMsg{err}
		}
		// No client timeout: the stream is long-lived.
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return sseDisconnectedMsg{err}
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return sseDisconnectedMsg{fmt.Errorf("GET /events: %s", resp.Status)}
		}
		return sseDisconnectedMsg{readSSE(resp.Body, ch, time.Now)}
	}
}

// readSSE parses an event stream into ch. Comment lines (keep-alives) are
// skipped.
func readSSE(r io.Reader, ch chan<- events.Event, now func() time.Time) error {
	scanner := bufio.NewScanner(r)
	var current events.Event

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "":
			if len(current.Data) > 0 {
				current.At = now()
				ch <- current
			}
			current = events.Event{}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "id: "):
			if id, err := strconv.ParseInt(line[4:], 10, 64); err == nil {
				current.ID = id
			}
		case strings.HasPrefix(line, "event: "):
			current.Type = line[7:]
		case strings.HasPrefix(line, "data: "):
			current.Data = json.RawMessage(line[6:])
		}
	}
	return scanner.Err()
}

// receiveNextEvent waits for the next event from the channel.
func receiveNextEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		return eventMsg(<-ch)
	}
}
