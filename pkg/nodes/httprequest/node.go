// Package httprequest provides HTTP request node implementation for workflow graph execution.
package httprequest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/dukex/nodeflow/pkg/log"
	"github.com/dukex/nodeflow/pkg/protocol"
	"github.com/dukex/nodeflow/pkg/state"
)

const (
	DefaultTimeout = 30 * time.Second
	// MaxResponseBytes bounds how much of a response body is read.
	MaxResponseBytes = 10 << 20

	statusTimeout     = http.StatusRequestTimeout
	statusUnreachable = 0
)

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPRequestConfig defines the configuration for HTTP request nodes.
type HTTPRequestConfig struct {
	URL     string         `json:"url"`
	Method  string         `json:"method"`
	Headers map[string]any `json:"headers"`
	Body    any            `json:"body"`
	Timeout float64        `json:"timeout"`
	Retries RetryConfig    `json:"retries"`
}

// RetryConfig defines retry behavior for HTTP requests.
type RetryConfig struct {
	Attempts int `json:"attempts"`
	Delay    int `json:"delay"`
}

// HTTPRequestNode performs one HTTP call. Transport failures are reported in
// the result map with success=false so error edges can route them.
type HTTPRequestNode struct {
	id     string
	config HTTPRequestConfig
	client Doer
}

// NewHTTPRequestNode creates a new HTTP request node.
func NewHTTPRequestNode(id string, config map[string]any, client Doer) (*HTTPRequestNode, error) {
	httpConfig := HTTPRequestConfig{
		Retries: RetryConfig{Attempts: 1},
	}

	if err := protocol.DecodeConfig(config, &httpConfig); err != nil {
		return nil, err
	}

	httpConfig.Method = strings.ToUpper(strings.TrimSpace(httpConfig.Method))
	if httpConfig.Method == "" {
		httpConfig.Method = http.MethodGet
	}

	if httpConfig.Retries.Attempts < 1 {
		httpConfig.Retries.Attempts = 1
	}

	if client == nil {
		client = http.DefaultClient
	}

	return &HTTPRequestNode{
		id:     id,
		config: httpConfig,
		client: client,
	}, nil
}

// ID returns the node ID.
func (n *HTTPRequestNode) ID() string {
	return n.id
}

// Execute performs the HTTP request. Server errors and network failures are
// retried when retries.attempts is above one; client errors are not.
func (n *HTTPRequestNode) Execute(ctx context.Context, st *state.ExecutionState) (map[string]any, error) {
	url := strings.TrimSpace(st.InterpolateString(n.config.URL))
	if url == "" {
		return failure(statusUnreachable, "url is required"), nil
	}

	body, contentType, err := n.renderBody(st)
	if err != nil {
		return failure(statusUnreachable, err.Error()), nil
	}

	headers := make(map[string]string, len(n.config.Headers))
	for key, value := range n.config.Headers {
		headers[key] = state.Stringify(value)
		if s, ok := value.(string); ok {
			headers[key] = st.InterpolateString(s)
		}
	}

	if contentType != "" && !hasHeader(headers, "Content-Type") {
		headers["Content-Type"] = contentType
	}

	var result map[string]any

	for attempt := 1; attempt <= n.config.Retries.Attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return result, nil
			case <-time.After(time.Duration(n.config.Retries.Delay) * time.Millisecond):
			}
		}

		result = n.performRequest(ctx, url, body, headers)

		if !retryable(result) {
			break
		}

		log.FromContext(ctx).DebugContext(ctx, "retryable http response",
			"url", url, "attempt", attempt, "status_code", result["status_code"])
	}

	if n.config.Retries.Attempts > 1 {
		result["attempts"] = n.config.Retries.Attempts
	}

	return result, nil
}

func (n *HTTPRequestNode) timeout() time.Duration {
	if n.config.Timeout <= 0 {
		return DefaultTimeout
	}

	return time.Duration(n.config.Timeout * float64(time.Second))
}

// renderBody encodes object bodies as JSON and interpolates string bodies.
func (n *HTTPRequestNode) renderBody(st *state.ExecutionState) ([]byte, string, error) {
	switch body := n.config.Body.(type) {
	case nil:
		return nil, "", nil
	case string:
		if body == "" {
			return nil, "", nil
		}

		return []byte(st.InterpolateString(body)), "", nil
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode request body: %w", err)
		}

		return data, "application/json", nil
	}
}

// performRequest executes a single HTTP request.
func (n *HTTPRequestNode) performRequest(ctx context.Context, url string, body []byte, headers map[string]string) map[string]any {
	ctx, cancel := context.WithTimeout(ctx, n.timeout())
	defer cancel()

	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, n.config.Method, url, reqBody)
	if err != nil {
		return failure(statusUnreachable, fmt.Sprintf("failed to create request: %v", err))
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return failure(statusTimeout, fmt.Sprintf("request timed out after %s", n.timeout()))
		}

		return failure(statusUnreachable, fmt.Sprintf("request failed: %v", err))
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes))
	if err != nil {
		if isTimeout(err) {
			return failure(statusTimeout, fmt.Sprintf("request timed out after %s", n.timeout()))
		}

		return failure(resp.StatusCode, fmt.Sprintf("failed to read response: %v", err))
	}

	responseHeaders := make(map[string]any, len(resp.Header))
	for key := range resp.Header {
		responseHeaders[key] = resp.Header.Get(key)
	}

	var data any = string(respBody)

	var decoded any
	if len(respBody) > 0 && json.Unmarshal(respBody, &decoded) == nil {
		data = decoded
	}

	result := map[string]any{
		"status_code": resp.StatusCode,
		"headers":     responseHeaders,
		"data":        data,
		"success":     resp.StatusCode >= 200 && resp.StatusCode < 300,
	}

	return result
}

func failure(statusCode int, message string) map[string]any {
	return map[string]any{
		"status_code": statusCode,
		"error":       message,
		"success":     false,
	}
}

func retryable(result map[string]any) bool {
	code, _ := result["status_code"].(int)

	return code == statusUnreachable || code == statusTimeout || code >= 500
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error

	return errors.As(err, &netErr) && netErr.Timeout()
}

func hasHeader(headers map[string]string, name string) bool {
	for key := range headers {
		if strings.EqualFold(key, name) {
			return true
		}
	}

	return false
}
