// Package httprequest provides HTTP request node factory for the registry system.
package httprequest

import (
	"context"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/protocol"
)

// HTTPRequestNodeFactory creates HTTPRequestNode instances.
type HTTPRequestNodeFactory struct {
	client Doer
}

// NewHTTPRequestNodeFactory creates a new HTTP request node factory. A nil
// client selects http.DefaultClient.
func NewHTTPRequestNodeFactory(client Doer) protocol.NodeFactory {
	return &HTTPRequestNodeFactory{client: client}
}

// Create creates a new HTTPRequestNode instance.
func (f *HTTPRequestNodeFactory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewHTTPRequestNode(id, config, f.client)
}

// ID returns the factory ID.
func (f *HTTPRequestNodeFactory) ID() string {
	return "httprequest"
}

// Types returns the node types served by the factory.
func (f *HTTPRequestNodeFactory) Types() []models.NodeType {
	return []models.NodeType{models.NodeTypeHTTP, models.NodeTypeAction}
}

// Name returns the factory name.
func (f *HTTPRequestNodeFactory) Name() string {
	return "HTTP Request"
}

// Description returns the factory description.
func (f *HTTPRequestNodeFactory) Description() string {
	return "Performs HTTP requests with optional retries. Failures are reported with success=false for error edge routing"
}

// Schema returns the JSON schema for HTTP request node configuration.
func (f *HTTPRequestNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "HTTP URL to request. Supports {{ path }} interpolation",
				"examples": []string{
					"https://api.example.com/users",
					"{{get_user.user_url}}",
					"https://{{vars.api_host}}/webhook/{{input.webhook_id}}",
				},
			},
			"method": map[string]any{
				"type":        "string",
				"description": "HTTP method",
				"default":     "GET",
				"enum":        []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS"},
			},
			"headers": map[string]any{
				"type":        "object",
				"description": "HTTP headers. Values support interpolation",
				"examples": []map[string]any{
					{"Authorization": "Bearer {{vars.api_token}}"},
				},
			},
			"body": map[string]any{
				"type":        []string{"string", "object", "array"},
				"description": "Request body. Objects are sent as JSON, strings are interpolated",
			},
			"timeout": map[string]any{
				"type":        "number",
				"description": "Request timeout in seconds",
				"default":     30,
				"minimum":     0,
				"maximum":     300,
			},
			"retries": map[string]any{
				"type":        "object",
				"description": "Retry configuration for server errors and network failures",
				"properties": map[string]any{
					"attempts": map[string]any{
						"type":        "integer",
						"description": "Number of attempts including the initial request",
						"default":     1,
						"minimum":     1,
						"maximum":     10,
					},
					"delay": map[string]any{
						"type":        "integer",
						"description": "Delay between attempts in milliseconds",
						"default":     0,
						"minimum":     0,
						"maximum":     30000,
					},
				},
			},
		},
		"required": []string{"url"},
		"examples": []map[string]any{
			{
				"url":    "https://api.github.com/user",
				"method": "GET",
				"headers": map[string]string{
					"Authorization": "Bearer {{vars.github_token}}",
				},
			},
			{
				"url":     "{{discovery.webhook_url}}",
				"method":  "POST",
				"body":    map[string]any{"status": "completed"},
				"retries": map[string]any{"attempts": 3, "delay": 1000},
			},
		},
	}
}
