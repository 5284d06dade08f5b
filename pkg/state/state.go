// Package state holds the mutable, per-run execution state shared by the
// executor and node handlers.
package state

import (
	"maps"
	"sync"

	"github.com/dukex/nodeflow/pkg/models"
)

// ExecutionState is the in-memory store of variables, node outputs and loop
// counters for one execution. All methods are safe for concurrent use.
type ExecutionState struct {
	executionID string
	workflowID  string
	userID      string

	mu            sync.RWMutex
	variables     map[string]any
	inputData     map[string]any
	nodeOutputs   map[string]any
	nodeResults   map[string]*models.NodeResult
	loopCounters  map[string]int
	currentNodeID string
}

// New creates the state for an execution. inputData is copied and treated as
// read-only afterwards; variables seeds the variable store.
func New(executionID, workflowID, userID string, inputData, variables map[string]any) *ExecutionState {
	st := &ExecutionState{
		executionID:  executionID,
		workflowID:   workflowID,
		userID:       userID,
		variables:    make(map[string]any, len(variables)),
		inputData:    make(map[string]any, len(inputData)),
		nodeOutputs:  make(map[string]any),
		nodeResults:  make(map[string]*models.NodeResult),
		loopCounters: make(map[string]int),
	}

	maps.Copy(st.inputData, inputData)
	maps.Copy(st.variables, variables)

	return st
}

func (s *ExecutionState) ExecutionID() string { return s.executionID }
func (s *ExecutionState) WorkflowID() string  { return s.workflowID }
func (s *ExecutionState) UserID() string      { return s.userID }

// GetNodeOutput returns the stored output of a node.
func (s *ExecutionState) GetNodeOutput(nodeID string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	output, ok := s.nodeOutputs[nodeID]

	return output, ok
}

func (s *ExecutionState) SetNodeOutput(nodeID string, output any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nodeOutputs[nodeID] = output
}

// NodeOutputs returns a copy of all node outputs.
func (s *ExecutionState) NodeOutputs() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return maps.Clone(s.nodeOutputs)
}

func (s *ExecutionState) Variable(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.variables[name]

	return value, ok
}

func (s *ExecutionState) SetVariable(name string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.variables[name] = value
}

// Variables returns a copy of the variable store.
func (s *ExecutionState) Variables() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return maps.Clone(s.variables)
}

// InputData returns a copy of the trigger input.
func (s *ExecutionState) InputData() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return maps.Clone(s.inputData)
}

func (s *ExecutionState) SetNodeResult(result *models.NodeResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *result
	s.nodeResults[result.NodeID] = &copied
}

func (s *ExecutionState) NodeResult(nodeID string) (*models.NodeResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result, ok := s.nodeResults[nodeID]
	if !ok {
		return nil, false
	}

	copied := *result

	return &copied, true
}

func (s *ExecutionState) SetLoopCounter(loopID string, index int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loopCounters[loopID] = index
}

func (s *ExecutionState) LoopCounter(loopID string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	index, ok := s.loopCounters[loopID]

	return index, ok
}

func (s *ExecutionState) SetCurrentNode(nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentNodeID = nodeID
}

func (s *ExecutionState) CurrentNode() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.currentNodeID
}
