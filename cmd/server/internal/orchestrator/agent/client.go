package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Client posts JSON payloads to agent endpoints. Per-call deadlines come from
// the caller's context; the underlying http.Client carries no timeout of its
// own so the context is the single source of cancellation.
type Client struct {
	httpClient *http.Client
}

// NewClient creates an agent HTTP client.
func NewClient() *Client {
	return &Client{httpClient: &http.Client{}}
}

// CallResult carries the decoded response plus the byte sizes recorded in the
// audit trail.
type CallResult struct {
	Body        map[string]any
	InputBytes  int
	OutputBytes int
}

// Call POSTs payload to endpoint and decodes the JSON response. Non-2xx
// statuses are errors; the remote call is abandoned in place when ctx expires.
func (c *Client) Call(ctx context.Context, endpoint string, payload map[string]any) (CallResult, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return CallResult{}, fmt.Errorf("failed to serialize agent request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return CallResult{InputBytes: len(reqBody)}, fmt.Errorf("failed to create agent request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return CallResult{InputBytes: len(reqBody)}, fmt.Errorf("agent call failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return CallResult{InputBytes: len(reqBody)}, fmt.Errorf("failed to read agent response: %w", err)
	}

	result := CallResult{
		InputBytes:  len(reqBody),
		OutputBytes: len(respBody),
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return result, fmt.Errorf("agent returned HTTP %d: %s", httpResp.StatusCode, truncate(respBody, 256))
	}

	var body map[string]any
	if err := json.Unmarshal(respBody, &body); err != nil {
		return result, fmt.Errorf("failed to parse agent response: %w", err)
	}
	result.Body = body

	return result, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
