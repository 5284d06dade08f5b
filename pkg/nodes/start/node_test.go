package start

import (
	"testing"

	"github.com/dukex/nodeflow/pkg/state"
)

func TestStartNode_Execute(t *testing.T) {
	st := state.New("exec-1", "wf-1", "", map[string]any{"n": 42, "name": "Alice"}, nil)

	node := NewStartNode("start")

	result, err := node.Execute(t.Context(), st)
	if err != nil {
		t.Fatalf("Node execution failed: %v", err)
	}

	if result["started"] != true {
		t.Errorf("Expected started=true, got: %v", result["started"])
	}

	if result["n"] != 42 || result["name"] != "Alice" {
		t.Errorf("Expected input data to be merged, got: %v", result)
	}

	if _, ok := st.InputData()["started"]; ok {
		t.Error("Input data must not be modified")
	}
}

func TestStartNode_InputOverridesStartedMarker(t *testing.T) {
	st := state.New("exec-1", "wf-1", "", map[string]any{"started": "2026-01-01", "n": 1}, nil)

	result, err := NewStartNode("start").Execute(t.Context(), st)
	if err != nil {
		t.Fatalf("Node execution failed: %v", err)
	}

	if result["started"] != "2026-01-01" {
		t.Errorf("Expected input started to win, got: %v", result["started"])
	}

	if result["n"] != 1 {
		t.Errorf("Expected input data to be merged, got: %v", result)
	}
}
