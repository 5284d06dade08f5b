package httprequest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dukex/nodeflow/pkg/state"
)

func newState() *state.ExecutionState {
	st := state.New("exec-1", "wf-1", "", map[string]any{"user_id": "123"}, map[string]any{"token": "secret"})
	st.SetNodeOutput("prev", map[string]any{"name": "Alice"})

	return st
}

func TestHTTPRequestNode_Execute_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"message": "success", "status": "ok"}`))
	}))
	defer server.Close()

	node, err := NewHTTPRequestNode("test-node", map[string]any{"url": server.URL}, server.Client())
	if err != nil {
		t.Fatalf("Failed to create node: %v", err)
	}

	result, err := node.Execute(t.Context(), newState())
	if err != nil {
		t.Fatalf("Node execution failed: %v", err)
	}

	if result["status_code"] != 200 {
		t.Errorf("Expected status code 200, got: %v", result["status_code"])
	}

	if result["success"] != true {
		t.Errorf("Expected success=true, got: %v", result["success"])
	}

	data, ok := result["data"].(map[string]any)
	if !ok {
		t.Fatalf("Expected JSON data to be parsed, got: %T", result["data"])
	}

	if data["message"] != "success" {
		t.Errorf("Expected message 'success', got: %v", data["message"])
	}

	headers, _ := result["headers"].(map[string]any)
	if headers["Content-Type"] != "application/json" {
		t.Errorf("Expected response headers, got: %v", headers)
	}
}

func TestHTTPRequestNode_Execute_PlainTextBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	node, err := NewHTTPRequestNode("test-node", map[string]any{"url": server.URL, "timeout": 1}, server.Client())
	if err != nil {
		t.Fatalf("Failed to create node: %v", err)
	}

	result, _ := node.Execute(t.Context(), newState())
	if result["data"] != "ok" {
		t.Errorf("Expected data 'ok', got: %v", result["data"])
	}
}

func TestHTTPRequestNode_Execute_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": "internal server error"}`))
	}))
	defer server.Close()

	node, err := NewHTTPRequestNode("test-node", map[string]any{"url": server.URL}, server.Client())
	if err != nil {
		t.Fatalf("Failed to create node: %v", err)
	}

	result, err := node.Execute(t.Context(), newState())
	if err != nil {
		t.Fatalf("Node execution failed: %v", err)
	}

	if result["success"] != false {
		t.Errorf("Expected success=false, got: %v", result["success"])
	}

	if result["status_code"] != 500 {
		t.Errorf("Expected status code 500, got: %v", result["status_code"])
	}
}

func TestHTTPRequestNode_Execute_WithTemplating(t *testing.T) {
	var (
		gotPath   string
		gotAuth   string
		gotType   string
		gotMethod string
		gotBody   map[string]any
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		gotMethod = r.Method

		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)

		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	node, err := NewHTTPRequestNode("test-node", map[string]any{
		"url":     server.URL + "/users/{{input.user_id}}",
		"method":  "post",
		"headers": map[string]any{"Authorization": "Bearer {{vars.token}}"},
		"body":    map[string]any{"name": "Alice", "count": 2},
	}, server.Client())
	if err != nil {
		t.Fatalf("Failed to create node: %v", err)
	}

	result, err := node.Execute(t.Context(), newState())
	if err != nil {
		t.Fatalf("Node execution failed: %v", err)
	}

	if result["success"] != true {
		t.Errorf("Expected success=true, got: %v", result)
	}

	if gotPath != "/users/123" {
		t.Errorf("Expected interpolated path, got: %s", gotPath)
	}

	if gotMethod != http.MethodPost {
		t.Errorf("Expected POST, got: %s", gotMethod)
	}

	if gotAuth != "Bearer secret" {
		t.Errorf("Expected interpolated header, got: %s", gotAuth)
	}

	if gotType != "application/json" {
		t.Errorf("Expected JSON content type, got: %s", gotType)
	}

	if gotBody["name"] != "Alice" {
		t.Errorf("Expected JSON body, got: %v", gotBody)
	}
}

func TestHTTPRequestNode_Execute_StringBody(t *testing.T) {
	var gotBody string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
	}))
	defer server.Close()

	node, err := NewHTTPRequestNode("test-node", map[string]any{
		"url":    server.URL,
		"method": "PUT",
		"body":   "hello {{prev.name}}",
	}, server.Client())
	if err != nil {
		t.Fatalf("Failed to create node: %v", err)
	}

	if _, err := node.Execute(t.Context(), newState()); err != nil {
		t.Fatalf("Node execution failed: %v", err)
	}

	if gotBody != "hello Alice" {
		t.Errorf("Expected interpolated body, got: %q", gotBody)
	}
}

func TestHTTPRequestNode_Execute_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	node, err := NewHTTPRequestNode("test-node", map[string]any{"url": server.URL, "timeout": 0.05}, server.Client())
	if err != nil {
		t.Fatalf("Failed to create node: %v", err)
	}

	result, err := node.Execute(t.Context(), newState())
	if err != nil {
		t.Fatalf("Node execution failed: %v", err)
	}

	if result["status_code"] != 408 {
		t.Errorf("Expected status code 408, got: %v", result["status_code"])
	}

	if result["success"] != false {
		t.Errorf("Expected success=false, got: %v", result["success"])
	}

	if _, ok := result["error"].(string); !ok {
		t.Error("Expected error message to be string")
	}
}

func TestHTTPRequestNode_Execute_ConnectionFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	node, err := NewHTTPRequestNode("test-node", map[string]any{"url": url}, nil)
	if err != nil {
		t.Fatalf("Failed to create node: %v", err)
	}

	result, err := node.Execute(t.Context(), newState())
	if err != nil {
		t.Fatalf("Node execution failed: %v", err)
	}

	if result["status_code"] != 0 {
		t.Errorf("Expected status code 0, got: %v", result["status_code"])
	}

	if result["success"] != false {
		t.Errorf("Expected success=false, got: %v", result["success"])
	}
}

func TestHTTPRequestNode_Execute_EmptyURL(t *testing.T) {
	node, err := NewHTTPRequestNode("test-node", map[string]any{"url": "{{input.missing}}"}, nil)
	if err != nil {
		t.Fatalf("Failed to create node: %v", err)
	}

	result, _ := node.Execute(t.Context(), newState())
	if result["status_code"] != 0 || result["success"] != false {
		t.Errorf("Expected unreachable failure, got: %v", result)
	}
}

func TestHTTPRequestNode_Execute_WithRetries(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)

			return
		}

		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	node, err := NewHTTPRequestNode("test-node", map[string]any{
		"url":     server.URL,
		"retries": map[string]any{"attempts": 3, "delay": 1},
	}, server.Client())
	if err != nil {
		t.Fatalf("Failed to create node: %v", err)
	}

	result, err := node.Execute(t.Context(), newState())
	if err != nil {
		t.Fatalf("Node execution failed: %v", err)
	}

	if result["success"] != true {
		t.Errorf("Expected success after retries, got: %v", result)
	}

	if calls.Load() != 3 {
		t.Errorf("Expected 3 calls, got: %d", calls.Load())
	}
}

func TestHTTPRequestNode_Execute_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	node, err := NewHTTPRequestNode("test-node", map[string]any{
		"url":     server.URL,
		"retries": map[string]any{"attempts": 3},
	}, server.Client())
	if err != nil {
		t.Fatalf("Failed to create node: %v", err)
	}

	result, _ := node.Execute(t.Context(), newState())
	if result["status_code"] != 404 || result["success"] != false {
		t.Errorf("Expected 404 failure, got: %v", result)
	}

	if calls.Load() != 1 {
		t.Errorf("Expected a single call, got: %d", calls.Load())
	}
}

func TestNewHTTPRequestNode_InvalidConfig(t *testing.T) {
	_, err := NewHTTPRequestNode("test-node", map[string]any{"url": "https://example.com", "timeout": "soon"}, nil)
	if err == nil {
		t.Error("Expected invalid timeout to be rejected")
	}
}

func TestNodeFactory_Schema(t *testing.T) {
	factory := NewHTTPRequestNodeFactory(nil)

	schema := factory.Schema()
	if schema == nil {
		t.Fatal("Expected schema to be defined")
	}

	props, ok := schema["properties"].(map[string]any)
	if !ok {
		t.Fatal("Expected properties in schema")
	}

	if _, ok := props["url"]; !ok {
		t.Error("Expected url property in schema")
	}

	required, ok := schema["required"].([]string)
	if !ok {
		t.Fatal("Expected required array in schema")
	}

	if len(required) != 1 || required[0] != "url" {
		t.Errorf("Expected required=['url'], got: %v", required)
	}

	if len(factory.Types()) != 2 {
		t.Errorf("Expected http and action types, got: %v", factory.Types())
	}
}
