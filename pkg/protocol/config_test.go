package protocol_test

import (
	"testing"

	"github.com/dukex/nodeflow/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleConfig struct {
	URL     string         `json:"url"`
	Timeout float64        `json:"timeout"`
	Retries int            `json:"retries"`
	Strict  bool           `json:"strict"`
	Headers map[string]any `json:"headers"`
}

func TestDecodeConfig(t *testing.T) {
	var cfg sampleConfig

	err := protocol.DecodeConfig(map[string]any{
		"url":     "https://example.test",
		"timeout": "2.5",
		"retries": 3.0,
		"strict":  "true",
		"headers": map[string]any{"X-Key": "v"},
		"ignored": true,
	}, &cfg)
	require.NoError(t, err)

	assert.Equal(t, "https://example.test", cfg.URL)
	assert.InDelta(t, 2.5, cfg.Timeout, 1e-9)
	assert.Equal(t, 3, cfg.Retries)
	assert.True(t, cfg.Strict)
	assert.Equal(t, map[string]any{"X-Key": "v"}, cfg.Headers)
}

func TestDecodeConfig_Invalid(t *testing.T) {
	var cfg sampleConfig

	err := protocol.DecodeConfig(map[string]any{"retries": "many"}, &cfg)
	require.ErrorContains(t, err, "invalid node configuration")
}
