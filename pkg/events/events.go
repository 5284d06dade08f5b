// Package events defines the execution lifecycle events published on the event bus.
package events

import (
	"time"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic carries every lifecycle event.
const Topic = "nodeflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	ExecutionRequestedEvent EventType = "execution.requested"
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
	ExecutionCancelledEvent EventType = "execution.cancelled"

	NodeCompletedEvent EventType = "node.completed"
	NodeFailedEvent    EventType = "node.failed"
)

type BaseEvent struct {
	ID          string         `json:"id"`
	Type        EventType      `json:"type"`
	Timestamp   time.Time      `json:"timestamp"`
	WorkflowID  string         `json:"workflow_id"`
	ExecutionID string         `json:"execution_id"`
	WorkerID    string         `json:"worker_id,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, workflowID, executionID string) BaseEvent {
	return BaseEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		WorkflowID:  workflowID,
		ExecutionID: executionID,
		Metadata:    make(map[string]any),
	}
}

// ExecutionRequested asks a worker to run a pending execution.
type ExecutionRequested struct {
	BaseEvent

	UserID    string         `json:"user_id,omitempty"`
	InputData map[string]any `json:"input_data,omitempty"`
}

func (e ExecutionRequested) GetType() EventType {
	return ExecutionRequestedEvent
}

type ExecutionStarted struct {
	BaseEvent
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	OutputData map[string]any `json:"output_data,omitempty"`
	DurationMs int64          `json:"duration_ms"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	NodeID     string `json:"node_id,omitempty"`
	Error      string `json:"error"`
	DurationMs int64  `json:"duration_ms"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

type ExecutionCancelled struct {
	BaseEvent

	NodeID string `json:"node_id,omitempty"`
}

func (e ExecutionCancelled) GetType() EventType {
	return ExecutionCancelledEvent
}

type NodeCompleted struct {
	BaseEvent

	NodeID     string          `json:"node_id"`
	NodeType   models.NodeType `json:"node_type"`
	DurationMs int64           `json:"duration_ms"`
}

func (e NodeCompleted) GetType() EventType {
	return NodeCompletedEvent
}

type NodeFailed struct {
	BaseEvent

	NodeID     string          `json:"node_id"`
	NodeType   models.NodeType `json:"node_type"`
	Error      string          `json:"error"`
	DurationMs int64           `json:"duration_ms"`
}

func (e NodeFailed) GetType() EventType {
	return NodeFailedEvent
}

// New returns an empty event value for eventType, ready to be decoded into.
func New(eventType EventType) (any, bool) {
	switch eventType {
	case ExecutionRequestedEvent:
		return &ExecutionRequested{}, true
	case ExecutionStartedEvent:
		return &ExecutionStarted{}, true
	case ExecutionCompletedEvent:
		return &ExecutionCompleted{}, true
	case ExecutionFailedEvent:
		return &ExecutionFailed{}, true
	case ExecutionCancelledEvent:
		return &ExecutionCancelled{}, true
	case NodeCompletedEvent:
		return &NodeCompleted{}, true
	case NodeFailedEvent:
		return &NodeFailed{}, true
	default:
		return nil, false
	}
}
