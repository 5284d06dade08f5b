package start

import (
	"context"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/protocol"
)

// StartNodeFactory creates StartNode instances for start and trigger nodes.
type StartNodeFactory struct{}

func NewStartNodeFactory() protocol.NodeFactory {
	return &StartNodeFactory{}
}

func (f *StartNodeFactory) Create(_ context.Context, id string, _ map[string]any) (protocol.Node, error) {
	return NewStartNode(id), nil
}

func (f *StartNodeFactory) ID() string {
	return "start"
}

func (f *StartNodeFactory) Types() []models.NodeType {
	return []models.NodeType{models.NodeTypeStart, models.NodeTypeTrigger}
}

func (f *StartNodeFactory) Name() string {
	return "Start"
}

func (f *StartNodeFactory) Description() string {
	return "Entry point of a workflow. Passes the trigger input through to downstream nodes."
}

// Schema returns the JSON schema for start node configuration. A trigger may
// carry a cron schedule used by the scheduler.
func (f *StartNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"schedule": map[string]any{
				"type":        "string",
				"description": "Cron expression (5 fields) for scheduled triggers",
				"examples":    []string{"*/5 * * * *", "0 9 * * MON-FRI"},
			},
		},
	}
}
