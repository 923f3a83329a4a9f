package chatcmder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/xeleb-ai/xeleb/api"
	"github.com/xeleb-ai/xeleb/pkg/agent"
	"github.com/xeleb-ai/xeleb/pkg/conversation"
	"github.com/xeleb-ai/xeleb/pkg/sse"
)

// apiClient talks to a running xeleb API server.
type apiClient struct {
	target string
	http   *http.Client
}

func newAPIClient(target string) *apiClient {
	return &apiClient{
		target: strings.TrimRight(target, "/"),
		http: &http.Client{
			// Agent answers can take several tool calls
			Timeout: 5 * time.Minute,
		},
	}
}

func (c *apiClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		r = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.target+path, r)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to xeleb API at %s: %w", c.target, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		return nil, responseError(resp)
	}
	return resp, nil
}

// statusError is an error reply of the API server.
type statusError struct {
	status  int
	message string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s (HTTP %d)", e.message, e.status)
}

func responseError(resp *http.Response) error {
	raw, _ := io.ReadAll(resp.Body)

	var e api.ErrorResponse
	if err := json.Unmarshal(raw, &e); err == nil && e.Error != "" {
		return &statusError{status: resp.StatusCode, message: e.Error}
	}
	return &statusError{status: resp.StatusCode, message: "request failed: " + strings.TrimSpace(string(raw))}
}

func isNotFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.status == http.StatusNotFound
}

func (c *apiClient) getJSON(ctx context.Context, method, path string, body, dest any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// askStream posts q to /ask/stream and calls onDelta for every streamed
// chunk. It returns the full reply and its response time.
func (c *apiClient) askStream(ctx context.Context, q agent.Question, onDelta func(string)) (agent.Answer, error) {
	resp, err := c.do(ctx, http.MethodPost, "/ask/stream", q)
	if err != nil {
		return agent.Answer{}, err
	}
	defer resp.Body.Close()

	var (
		full   strings.Builder
		answer agent.Answer
	)

	reader := sse.NewReader(resp.Body)
	for {
		ev, err := reader.Next()
		if err != nil {
			return agent.Answer{}, fmt.Errorf("reading stream: %w", err)
		}
		if ev == nil {
			return agent.Answer{}, errors.New("stream ended before the answer was complete")
		}

		var frame api.StreamFrame
		if err := json.Unmarshal([]byte(ev.Data), &frame); err != nil {
			continue
		}

		if frame.Error != "" {
			return agent.Answer{}, errors.New(frame.Error)
		}
		if frame.Delta != "" {
			full.WriteString(frame.Delta)
			if onDelta != nil {
				onDelta(frame.Delta)
			}
		}
		if frame.Done {
			answer.Response = full.String()
			answer.ResponseTime = frame.ResponseTime
			return answer, nil
		}
	}
}

// clearHistory reports whether the thread had a conversation to delete.
func (c *apiClient) clearHistory(ctx context.Context, userID, threadID string) (bool, error) {
	var out map[string]any
	err := c.getJSON(ctx, http.MethodDelete, "/v1/chat/history", api.ClearHistoryRequest{
		UserID:   userID,
		ThreadID: threadID,
	}, &out)
	if isNotFound(err) {
		return false, nil
	}
	return err == nil, err
}

func (c *apiClient) initialize(ctx context.Context, name string) (api.InitializeResponse, error) {
	var out api.InitializeResponse
	err := c.getJSON(ctx, http.MethodPost, "/initialize_agent", api.InitializeRequest{Name: name}, &out)
	return out, err
}

func (c *apiClient) listAgents(ctx context.Context) (api.AgentsResponse, error) {
	var out api.AgentsResponse
	err := c.getJSON(ctx, http.MethodGet, "/list_agents", nil, &out)
	return out, err
}

func (c *apiClient) history(ctx context.Context, key conversation.ThreadKey, page int) (conversation.HistoryPage, error) {
	var out conversation.HistoryPage
	err := c.getJSON(ctx, http.MethodPost, "/v1/chat/history", api.ChatHistoryRequest{
		ThreadInfo: key,
		Page:       page,
		PageSize:   api.DefaultHistoryPageSize,
	}, &out)
	return out, err
}
