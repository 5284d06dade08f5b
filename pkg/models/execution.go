package models

import "time"

// ExecutionStatus is the lifecycle state of a persisted execution.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
	ExecutionStatusAwaiting  ExecutionStatus = "awaiting"
)

// IsTerminal reports whether no further transitions are expected.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecutionStatusCompleted, ExecutionStatusFailed, ExecutionStatusCancelled, ExecutionStatusAwaiting:
		return true
	case ExecutionStatusPending, ExecutionStatusRunning:
		return false
	}

	return false
}

// Execution is the persisted record of a single workflow run.
type Execution struct {
	ID            string          `json:"id"`
	WorkflowID    string          `json:"workflow_id"`
	UserID        string          `json:"user_id,omitempty"`
	Status        ExecutionStatus `json:"status"`
	StartedAt     *time.Time      `json:"started_at,omitempty"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	InputData     map[string]any  `json:"input_data"`
	Variables     map[string]any  `json:"variables"`
	OutputData    map[string]any  `json:"output_data,omitempty"`
	Error         string          `json:"error,omitempty"`
	CurrentNodeID string          `json:"current_node_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// ExecutionLog is the persisted record of one node execution within a run.
type ExecutionLog struct {
	ID          string         `json:"id"`
	ExecutionID string         `json:"execution_id"`
	NodeID      string         `json:"node_id"`
	NodeType    NodeType       `json:"node_type"`
	Status      NodeStatus     `json:"status"`
	Input       map[string]any `json:"input,omitempty"`
	Output      map[string]any `json:"output,omitempty"`
	Error       string         `json:"error,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	DurationMs  *int64         `json:"duration_ms,omitempty"`
}

// ExecutionUpdate carries a partial update of an execution row. Nil fields
// are left untouched.
type ExecutionUpdate struct {
	Status        *ExecutionStatus
	StartedAt     *time.Time
	CompletedAt   *time.Time
	Variables     map[string]any
	OutputData    map[string]any
	Error         *string
	CurrentNodeID *string
}

// Apply copies the non-nil fields of the update onto execution.
func (u ExecutionUpdate) Apply(execution *Execution) {
	if u.Status != nil {
		execution.Status = *u.Status
	}

	if u.StartedAt != nil {
		execution.StartedAt = u.StartedAt
	}

	if u.CompletedAt != nil {
		execution.CompletedAt = u.CompletedAt
	}

	if u.Variables != nil {
		execution.Variables = u.Variables
	}

	if u.OutputData != nil {
		execution.OutputData = u.OutputData
	}

	if u.Error != nil {
		execution.Error = *u.Error
	}

	if u.CurrentNodeID != nil {
		execution.CurrentNodeID = *u.CurrentNodeID
	}
}

// LogUpdate carries a partial update of an execution log row.
type LogUpdate struct {
	Status      *NodeStatus
	Output      map[string]any
	Error       *string
	CompletedAt *time.Time
	DurationMs  *int64
}

// Apply copies the non-nil fields of the update onto log.
func (u LogUpdate) Apply(log *ExecutionLog) {
	if u.Status != nil {
		log.Status = *u.Status
	}

	if u.Output != nil {
		log.Output = u.Output
	}

	if u.Error != nil {
		log.Error = *u.Error
	}

	if u.CompletedAt != nil {
		log.CompletedAt = u.CompletedAt
	}

	if u.DurationMs != nil {
		log.DurationMs = u.DurationMs
	}
}

// Ptr returns a pointer to v. Handy for building partial updates.
func Ptr[T any](v T) *T {
	return &v
}
