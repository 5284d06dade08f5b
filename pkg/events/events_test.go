package events

import (
	"encoding/json"
	"testing"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeFailed_JSONSerialization(t *testing.T) {
	original := &NodeFailed{
		BaseEvent:  NewBaseEvent(NodeFailedEvent, "wf-123", "exec-456"),
		NodeID:     "fetch",
		NodeType:   models.NodeTypeHTTP,
		Error:      "connection refused",
		DurationMs: 12,
	}

	jsonData, err := json.Marshal(original)
	require.NoError(t, err)
	assert.Contains(t, string(jsonData), `"type":"node.failed"`)
	assert.Contains(t, string(jsonData), `"execution_id":"exec-456"`)
	assert.Contains(t, string(jsonData), `"node_type":"http"`)

	decoded, ok := New(NodeFailedEvent)
	require.True(t, ok)
	require.NoError(t, json.Unmarshal(jsonData, decoded))

	event := decoded.(*NodeFailed)
	assert.Equal(t, original.ID, event.ID)
	assert.Equal(t, original.NodeID, event.NodeID)
	assert.Equal(t, original.Error, event.Error)
	assert.Equal(t, NodeFailedEvent, event.GetType())
}

func TestNew(t *testing.T) {
	for _, eventType := range []EventType{
		ExecutionRequestedEvent, ExecutionStartedEvent, ExecutionCompletedEvent,
		ExecutionFailedEvent, ExecutionCancelledEvent, NodeCompletedEvent, NodeFailedEvent,
	} {
		event, ok := New(eventType)
		require.True(t, ok, eventType)

		typed, ok := event.(interface{ GetType() EventType })
		require.True(t, ok)
		assert.Equal(t, eventType, typed.GetType())
	}

	_, ok := New("workflow.triggered")
	assert.False(t, ok)
}
