package verification

import (
	"context"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/protocol"
)

type VerificationNodeFactory struct{}

func NewVerificationNodeFactory() protocol.NodeFactory {
	return &VerificationNodeFactory{}
}

func (f *VerificationNodeFactory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewVerificationNode(id, config)
}

func (f *VerificationNodeFactory) ID() string {
	return "verification"
}

func (f *VerificationNodeFactory) Types() []models.NodeType {
	return []models.NodeType{models.NodeTypeVerification}
}

func (f *VerificationNodeFactory) Name() string {
	return "Verification"
}

func (f *VerificationNodeFactory) Description() string {
	return "Checks workflow values against rules and reports violations"
}

func (f *VerificationNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"rules": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"field": map[string]any{
							"description": "Value to check, usually a {{ path }} reference",
						},
						"check": map[string]any{
							"type": "string",
							"enum": []string{
								CheckRequired, CheckEquals, CheckNotEquals, CheckContains,
								CheckType, CheckMinLength, CheckMaxLength, CheckRegex,
							},
						},
						"expected": map[string]any{},
						"message":  map[string]any{"type": "string"},
					},
					"required": []string{"field", "check"},
				},
			},
			"strict": map[string]any{
				"type":        "boolean",
				"description": "Stop at the first violation",
				"default":     true,
			},
		},
		"required": []string{"rules"},
	}
}
