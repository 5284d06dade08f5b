package registry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/protocol"
	"github.com/dukex/nodeflow/pkg/sandbox"
	"github.com/dukex/nodeflow/pkg/state"
)

func newTestRegistry() *Registry {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	registry := NewRegistry(logger)
	registry.RegisterDefaultNodes(Dependencies{
		Sandbox: sandbox.NewRunner(logger, sandbox.Options{}),
	})

	return registry
}

func TestRegisterDefaultNodes(t *testing.T) {
	registry := newTestRegistry()

	types := registry.Types()
	if len(types) != len(models.NodeTypes) {
		t.Errorf("Expected %d node types, got %d: %v", len(models.NodeTypes), len(types), types)
	}

	for _, nodeType := range models.NodeTypes {
		if _, ok := registry.Factory(nodeType); !ok {
			t.Errorf("Expected node type '%s' to be registered", nodeType)
		}

		schema, ok := registry.Schema(nodeType)
		if !ok || schema["type"] != "object" {
			t.Errorf("Expected object schema for '%s', got: %v", nodeType, schema)
		}
	}
}

func TestDispatch_Start(t *testing.T) {
	registry := newTestRegistry()
	st := state.New("exec-1", "wf-1", "", map[string]any{"n": 1}, nil)

	result, err := registry.Dispatch(t.Context(), models.NodeTypeStart, "start", nil, st)
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	if result["started"] != true {
		t.Errorf("Expected started=true, got: %v", result)
	}

	if _, ok := result[DurationKey].(int64); !ok {
		t.Errorf("Expected %s to be attached, got: %v", DurationKey, result)
	}
}

func TestDispatch_Code(t *testing.T) {
	registry := newTestRegistry()
	st := state.New("exec-1", "wf-1", "", map[string]any{"n": 4}, nil)

	result, err := registry.Dispatch(t.Context(), models.NodeTypeCode, "code", map[string]any{"code": "result = input_data['n'] + 1"}, st)
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	if result["result"] != int64(5) {
		t.Errorf("Expected result 5, got: %v", result["result"])
	}
}

func TestDispatch_UnknownType(t *testing.T) {
	registry := newTestRegistry()

	result, err := registry.Dispatch(t.Context(), models.NodeType("webhook"), "hook", nil, state.New("exec-1", "wf-1", "", nil, nil))
	if err != nil {
		t.Fatalf("Unknown types must not raise: %v", err)
	}

	if result["skipped"] != true {
		t.Errorf("Expected skipped=true, got: %v", result)
	}

	if _, ok := result["reason"].(string); !ok {
		t.Error("Expected a skip reason")
	}

	if _, ok := result[DurationKey]; !ok {
		t.Errorf("Expected %s on skipped results", DurationKey)
	}
}

func TestDispatch_MissingCollaborator(t *testing.T) {
	registry := newTestRegistry()

	_, err := registry.Dispatch(t.Context(), models.NodeTypeLLM, "llm", map[string]any{"prompt": "hi"}, state.New("exec-1", "wf-1", "", nil, nil))
	if err == nil {
		t.Fatal("Expected an error for an llm node without a model registry")
	}
}

type failingFactory struct{}

func (failingFactory) Create(_ context.Context, id string, _ map[string]any) (protocol.Node, error) {
	return failingNode{id: id}, nil
}

func (failingFactory) ID() string               { return "failing" }
func (failingFactory) Types() []models.NodeType { return []models.NodeType{models.NodeTypeTool} }
func (failingFactory) Name() string             { return "Failing" }
func (failingFactory) Description() string      { return "" }
func (failingFactory) Schema() map[string]any   { return map[string]any{"type": "object"} }

type failingNode struct{ id string }

func (n failingNode) ID() string { return n.id }

func (n failingNode) Execute(context.Context, *state.ExecutionState) (map[string]any, error) {
	return nil, errors.New("boom")
}

func TestDispatch_HandlerError(t *testing.T) {
	registry := newTestRegistry()
	registry.RegisterNode(failingFactory{})

	_, err := registry.Dispatch(t.Context(), models.NodeTypeTool, "tool", nil, state.New("exec-1", "wf-1", "", nil, nil))
	if err == nil || err.Error() != "boom" {
		t.Errorf("Expected handler error to propagate, got: %v", err)
	}
}
