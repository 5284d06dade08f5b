package code

import (
	"context"
	"errors"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/protocol"
	"github.com/dukex/nodeflow/pkg/sandbox"
)

var errNoRunner = errors.New("code node requires a sandbox runner")

type CodeNodeFactory struct {
	runner Runner
}

func NewCodeNodeFactory(runner Runner) protocol.NodeFactory {
	return &CodeNodeFactory{runner: runner}
}

func (f *CodeNodeFactory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	if f.runner == nil {
		return nil, errNoRunner
	}

	return NewCodeNode(id, config, f.runner), nil
}

func (f *CodeNodeFactory) ID() string {
	return "code"
}

func (f *CodeNodeFactory) Types() []models.NodeType {
	return []models.NodeType{models.NodeTypeCode}
}

func (f *CodeNodeFactory) Name() string {
	return "Code"
}

func (f *CodeNodeFactory) Description() string {
	return "Runs a short Python (Starlark dialect) program in a restricted sandbox. The program assigns its output to result"
}

func (f *CodeNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"language": map[string]any{
				"type":    "string",
				"enum":    []string{sandbox.DefaultLanguage},
				"default": sandbox.DefaultLanguage,
			},
			"source": map[string]any{
				"type":        "string",
				"description": "Alias of code",
			},
			"code": map[string]any{
				"type":        "string",
				"description": "Program source. inputs, variables and input_data are available; assign the output to result",
				"examples": []string{
					"result = {'total': sum([row['amount'] for row in inputs['fetch']['data']])}",
					"result = input_data['n'] * 2",
				},
			},
		},
		"anyOf": []any{
			map[string]any{"required": []string{"code"}},
			map[string]any{"required": []string{"source"}},
		},
	}
}
