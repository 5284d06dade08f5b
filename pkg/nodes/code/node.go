// Package code provides the code node, which runs user programs in the sandbox.
package code

import (
	"context"

	"github.com/dukex/nodeflow/pkg/sandbox"
	"github.com/dukex/nodeflow/pkg/state"
)

// Runner executes sandboxed programs. *sandbox.Runner satisfies it.
type Runner interface {
	Run(ctx context.Context, req sandbox.Request) sandbox.Result
}

type CodeNode struct {
	id       string
	language string
	source   string
	runner   Runner
}

func NewCodeNode(id string, config map[string]any, runner Runner) *CodeNode {
	source, _ := config["code"].(string)
	if source == "" {
		source, _ = config["source"].(string)
	}

	language, _ := config["language"].(string)
	if language == "" {
		language = sandbox.DefaultLanguage
	}

	return &CodeNode{
		id:       id,
		language: language,
		source:   source,
		runner:   runner,
	}
}

func (n *CodeNode) ID() string {
	return n.id
}

// Execute runs the program with copies of the node outputs, variables and
// input data. The program's result global becomes the result entry.
func (n *CodeNode) Execute(ctx context.Context, st *state.ExecutionState) (map[string]any, error) {
	result := n.runner.Run(ctx, sandbox.Request{
		Language:  n.language,
		Source:    n.source,
		Inputs:    st.NodeOutputs(),
		Variables: st.Variables(),
		InputData: st.InputData(),
	})

	return result.Map(), nil
}
