package registry

import (
	"github.com/dukex/nodeflow/pkg/knowledge"
	"github.com/dukex/nodeflow/pkg/llm"
	"github.com/dukex/nodeflow/pkg/nodes/agent"
	"github.com/dukex/nodeflow/pkg/nodes/code"
	"github.com/dukex/nodeflow/pkg/nodes/conditional"
	"github.com/dukex/nodeflow/pkg/nodes/end"
	"github.com/dukex/nodeflow/pkg/nodes/httprequest"
	knowledgenode "github.com/dukex/nodeflow/pkg/nodes/knowledge"
	llmnode "github.com/dukex/nodeflow/pkg/nodes/llm"
	"github.com/dukex/nodeflow/pkg/nodes/loop"
	"github.com/dukex/nodeflow/pkg/nodes/start"
	"github.com/dukex/nodeflow/pkg/nodes/tool"
	"github.com/dukex/nodeflow/pkg/nodes/verification"
)

// Dependencies are the collaborators injected into the built-in nodes. Nil
// collaborators make the nodes that need them fail on creation.
type Dependencies struct {
	HTTPClient httprequest.Doer
	Sandbox    code.Runner
	Models     llm.Registry
	Tools      tool.Catalog
	Agents     agent.Resolver
	Knowledge  knowledge.VectorStore
}

// RegisterDefaultNodes registers all built-in node factories with the registry.
func (r *Registry) RegisterDefaultNodes(deps Dependencies) {
	r.RegisterNode(start.NewStartNodeFactory())
	r.RegisterNode(end.NewEndNodeFactory())
	r.RegisterNode(conditional.NewConditionalNodeFactory())
	r.RegisterNode(loop.NewLoopNodeFactory())
	r.RegisterNode(verification.NewVerificationNodeFactory())

	r.RegisterNode(httprequest.NewHTTPRequestNodeFactory(deps.HTTPClient))
	r.RegisterNode(code.NewCodeNodeFactory(deps.Sandbox))
	r.RegisterNode(llmnode.NewLLMNodeFactory(deps.Models))
	r.RegisterNode(agent.NewAgentNodeFactory(deps.Agents))
	r.RegisterNode(tool.NewToolNodeFactory(deps.Tools))
	r.RegisterNode(knowledgenode.NewKnowledgeNodeFactory(deps.Models, deps.Knowledge))
}
