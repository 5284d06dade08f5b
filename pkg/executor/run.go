package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/dukex/nodeflow/pkg/compiler"
	"github.com/dukex/nodeflow/pkg/eventbus"
	"github.com/dukex/nodeflow/pkg/events"
	"github.com/dukex/nodeflow/pkg/log"
	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/nodes/values"
	"github.com/dukex/nodeflow/pkg/otelhelper"
	"github.com/dukex/nodeflow/pkg/persistence"
	"github.com/dukex/nodeflow/pkg/registry"
	"github.com/dukex/nodeflow/pkg/state"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// run is the traversal of one execution.
type run struct {
	*Executor

	execution *models.Execution
	plan      *compiler.CompiledWorkflow
	state     *state.ExecutionState
	logger    *slog.Logger

	// outputs selected by terminal nodes with an output_mapping, in execution order
	terminalOutputs []map[string]any
}

// traversal tracks the nodes executed on the current path. Inside a loop
// body the loop id is in bodies and its continuation edges do not count as
// satisfied.
type traversal struct {
	executed map[string]bool
	bodies   map[string]bool
}

func newTraversal() *traversal {
	return &traversal{executed: make(map[string]bool), bodies: make(map[string]bool)}
}

// iteration returns the traversal of one body pass of loopID.
func (t *traversal) iteration(loopID string) *traversal {
	bodies := maps.Clone(t.bodies)
	bodies[loopID] = true

	return &traversal{executed: maps.Clone(t.executed), bodies: bodies}
}

func (r *run) visit(ctx context.Context, nodeID string, t *traversal) error {
	node, ok := r.plan.Node(nodeID)
	if !ok || t.executed[nodeID] || !r.ready(node, t) {
		return nil
	}

	if err := r.checkCancelled(ctx); err != nil {
		return err
	}

	result, err := r.execute(ctx, node)
	t.executed[nodeID] = true

	if err != nil {
		if !r.hasErrorEdge(nodeID) {
			return err
		}

		r.logger.WarnContext(ctx, "node failed, following error edges", "node_id", nodeID, "error", err)
		result = map[string]any{"error": errorMessage(err), "success": false}
		r.state.SetNodeOutput(nodeID, result)
	}

	switch {
	case node.IsTerminal():
		return nil
	case node.IsLoop():
		return r.runLoop(ctx, node, result, t)
	case node.IsConditional():
		return r.follow(ctx, nodeID, t, func(edge *models.Edge) bool {
			return followConditional(edge, result)
		})
	default:
		return r.follow(ctx, nodeID, t, func(edge *models.Edge) bool {
			return shouldFollow(edge, result)
		})
	}
}

// ready reports whether every predecessor of node has executed. Edges into
// loop nodes are back-edges and never block, so a loop runs as soon as it is
// reached.
func (r *run) ready(node *models.Node, t *traversal) bool {
	for _, edge := range r.plan.Incoming(node.ID) {
		if r.plan.IsBackEdge(edge) || !r.plan.IsReachable(edge.SourceID) {
			continue
		}

		if !t.executed[edge.SourceID] {
			return false
		}

		if t.bodies[edge.SourceID] && edge.Type() != models.EdgeTypeItem {
			return false
		}
	}

	return true
}

func (r *run) follow(ctx context.Context, nodeID string, t *traversal, accept func(*models.Edge) bool) error {
	for _, edge := range r.plan.Outgoing(nodeID) {
		if !accept(edge) {
			continue
		}

		if err := r.visit(ctx, edge.TargetID, t); err != nil {
			return err
		}
	}

	return nil
}

// runLoop walks the item edges once per item, each pass starting from the
// executed set as it was before the loop, then walks the continuation edges.
func (r *run) runLoop(ctx context.Context, node *models.Node, result map[string]any, t *traversal) error {
	items, _ := values.ToSlice(result["items"])
	if len(items) > MaxLoopIterations {
		r.logger.WarnContext(ctx, "loop truncated", "node_id", node.ID, "items", len(items), "max", MaxLoopIterations)
		items = items[:MaxLoopIterations]
	}

	itemVariable, _ := result["item_variable"].(string)
	if itemVariable == "" {
		itemVariable = "item"
	}

	if parallel, _ := result["parallel"].(bool); parallel {
		r.logger.DebugContext(ctx, "running parallel loop sequentially", "node_id", node.ID)
	}

	var body, continuation []*models.Edge

	for _, edge := range r.plan.Outgoing(node.ID) {
		if edge.Type() == models.EdgeTypeItem {
			body = append(body, edge)
		} else {
			continuation = append(continuation, edge)
		}
	}

	visited := make(map[string]bool)

	for i, item := range items {
		r.state.SetVariable(itemVariable, item)
		r.state.SetVariable(itemVariable+"_index", i)
		r.state.SetLoopCounter(node.ID, i)

		pass := t.iteration(node.ID)

		for _, edge := range body {
			if err := r.visit(ctx, edge.TargetID, pass); err != nil {
				return err
			}
		}

		maps.Copy(visited, pass.executed)
	}

	maps.Copy(t.executed, visited)

	for _, edge := range continuation {
		if !shouldFollow(edge, result) {
			continue
		}

		if err := r.visit(ctx, edge.TargetID, t); err != nil {
			return err
		}
	}

	return nil
}

// execute runs one node: it records the log row, dispatches the handler and
// stores the result in the execution state.
func (r *run) execute(ctx context.Context, node *models.Node) (map[string]any, error) {
	ctx, span := otelhelper.StartSpan(ctx, r.tracer, "node.execute",
		attribute.String(otelhelper.ExecutionIDKey, r.execution.ID),
		attribute.String(otelhelper.NodeIDKey, node.ID),
		attribute.String(otelhelper.NodeTypeKey, string(node.Type)),
	)

	status := models.NodeStatusFailed
	defer func() { otelhelper.EndNodeSpan(span, string(status)) }()

	logger := r.logger.With("node_id", node.ID, "node_type", node.Type)

	r.enter(ctx, node.ID)

	config := r.state.ResolveConfig(node.Config)
	started := time.Now().UTC()
	logID := r.createLog(ctx, logger, node, config, started)

	logger.DebugContext(ctx, "executing node")

	result, err := r.dispatcher.Dispatch(log.WithLogger(ctx, logger), node.Type, node.ID, config, r.state)

	completed := time.Now().UTC()
	duration := completed.Sub(started)
	durationMs := duration.Milliseconds()

	if err != nil {
		herr := &HandlerError{NodeID: node.ID, NodeType: node.Type, Err: err}
		message := err.Error()

		r.updateLog(ctx, logger, logID, models.LogUpdate{
			Status:      models.Ptr(models.NodeStatusFailed),
			Error:       &message,
			CompletedAt: &completed,
			DurationMs:  &durationMs,
		})
		r.state.SetNodeResult(&models.NodeResult{
			NodeID: node.ID, Type: node.Type, Status: models.NodeStatusFailed,
			Input: config, Error: message, DurationMs: durationMs,
		})

		otelhelper.SetError(span, err)
		r.metrics.ObserveNode(string(node.Type), string(models.NodeStatusFailed), duration.Seconds())
		r.publish(ctx, events.NodeFailed{
			BaseEvent:  r.baseEvent(events.NodeFailedEvent, r.execution),
			NodeID:     node.ID,
			NodeType:   node.Type,
			Error:      message,
			DurationMs: durationMs,
		})
		logger.ErrorContext(ctx, "node failed", "error", err, "duration_ms", durationMs)

		return nil, herr
	}

	r.state.SetNodeOutput(node.ID, result)
	r.promote(node, result)

	if node.IsTerminal() {
		if _, mapped := node.Config["output_mapping"]; mapped {
			output := maps.Clone(result)
			delete(output, registry.DurationKey)
			r.terminalOutputs = append(r.terminalOutputs, output)
		}
	}

	r.updateLog(ctx, logger, logID, models.LogUpdate{
		Status:      models.Ptr(models.NodeStatusCompleted),
		Output:      result,
		CompletedAt: &completed,
		DurationMs:  &durationMs,
	})
	r.state.SetNodeResult(&models.NodeResult{
		NodeID: node.ID, Type: node.Type, Status: models.NodeStatusCompleted,
		Input: config, Output: result, DurationMs: durationMs,
	})

	status = models.NodeStatusCompleted
	span.SetStatus(codes.Ok, "")
	r.metrics.ObserveNode(string(node.Type), string(models.NodeStatusCompleted), duration.Seconds())
	r.publish(ctx, events.NodeCompleted{
		BaseEvent:  r.baseEvent(events.NodeCompletedEvent, r.execution),
		NodeID:     node.ID,
		NodeType:   node.Type,
		DurationMs: durationMs,
	})
	logger.InfoContext(ctx, "node completed", "duration_ms", durationMs)

	return result, nil
}

func (r *run) publish(ctx context.Context, event eventbus.Event) {
	r.publishEvent(ctx, r.execution.ID, event)
}

// promote copies result entries into variables as declared by node.Outputs.
func (r *run) promote(node *models.Node, result map[string]any) {
	for resultKey, variable := range node.Outputs {
		if value, ok := result[resultKey]; ok {
			r.state.SetVariable(variable, value)
		}
	}
}

// enter records node as the current node. Persisting it is best-effort.
func (r *run) enter(ctx context.Context, nodeID string) {
	r.state.SetCurrentNode(nodeID)

	if err := r.executions.Update(ctx, r.execution.ID, models.ExecutionUpdate{CurrentNodeID: &nodeID}); err != nil {
		r.logger.WarnContext(ctx, "failed to record current node", "node_id", nodeID, "error", err)

		return
	}

	r.execution.CurrentNodeID = nodeID
}

// createLog creates the running log row, retrying once. An empty id means the
// row could not be recorded.
func (r *run) createLog(ctx context.Context, logger *slog.Logger, node *models.Node, input map[string]any, started time.Time) string {
	row := &models.ExecutionLog{
		ExecutionID: r.execution.ID,
		NodeID:      node.ID,
		NodeType:    node.Type,
		Status:      models.NodeStatusRunning,
		Input:       input,
		StartedAt:   started,
	}

	var (
		id  string
		err error
	)

	for range 2 {
		if id, err = r.executions.CreateLog(ctx, row); err == nil {
			return id
		}
	}

	logger.ErrorContext(ctx, "failed to create execution log", "error", err)

	return ""
}

func (r *run) updateLog(ctx context.Context, logger *slog.Logger, logID string, update models.LogUpdate) {
	if logID == "" {
		return
	}

	// a started row is always closed, even after cancellation
	ctx = context.WithoutCancel(ctx)

	var err error

	for range 2 {
		if err = r.executions.UpdateLog(ctx, logID, update); err == nil {
			return
		}
	}

	logger.ErrorContext(ctx, "failed to update execution log", "log_id", logID, "error", err)
}

// checkCancelled observes context cancellation and external cancellation of
// the execution row.
func (r *run) checkCancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}

	current, err := r.executions.GetByID(ctx, r.execution.ID)
	if err != nil {
		r.logger.WarnContext(ctx, "failed to check execution status", "error", err)

		return nil
	}

	if current.Status == models.ExecutionStatusCancelled {
		return ErrCancelled
	}

	return nil
}

func (r *run) hasErrorEdge(nodeID string) bool {
	for _, edge := range r.plan.Outgoing(nodeID) {
		if edge.Type() == models.EdgeTypeError {
			return true
		}
	}

	return false
}

// outputData returns the outputs selected by terminal nodes, or every node
// output when no terminal node selected any.
func (r *run) outputData() map[string]any {
	if len(r.terminalOutputs) == 0 {
		return map[string]any{"outputs": r.state.NodeOutputs()}
	}

	output := make(map[string]any)
	for _, selected := range r.terminalOutputs {
		maps.Copy(output, selected)
	}

	return output
}

// finish persists the terminal status of the execution in a single update.
func (r *run) finish(ctx context.Context, span trace.Span, started time.Time, runErr error) (*models.Execution, error) {
	if runErr != nil && ctx.Err() != nil && !IsCancelled(runErr) {
		runErr = fmt.Errorf("%w: %w", ErrCancelled, runErr)
	}

	// the terminal write must happen even when ctx was cancelled
	writeCtx := context.WithoutCancel(ctx)
	completed := time.Now().UTC()
	duration := completed.Sub(started)
	nodeID := r.state.CurrentNode()

	update := models.ExecutionUpdate{
		CompletedAt: &completed,
		Variables:   r.state.Variables(),
		OutputData:  r.outputData(),
	}

	var result error

	switch {
	case runErr == nil:
		update.Status = models.Ptr(models.ExecutionStatusCompleted)
	case IsCancelled(runErr):
		update.Status = models.Ptr(models.ExecutionStatusCancelled)
		result = runErr
	default:
		update.Status = models.Ptr(models.ExecutionStatusFailed)
		update.Error = models.Ptr(errorMessage(runErr))
		result = &ExecutionError{ExecutionID: r.execution.ID, NodeID: nodeID, Err: runErr}
	}

	if err := r.executions.Update(writeCtx, r.execution.ID, update); err != nil {
		err = fmt.Errorf("%w: failed to finish execution %s: %w", persistence.ErrPersistence, r.execution.ID, err)
		otelhelper.SetError(span, err)
		r.logger.ErrorContext(writeCtx, "failed to persist execution result", "error", err)

		return r.execution, errors.Join(err, result)
	}

	update.Apply(r.execution)

	status := *update.Status
	r.metrics.IncExecutionFinished(r.execution.WorkflowID, string(status))
	r.metrics.ObserveExecutionDuration(r.execution.WorkflowID, duration.Seconds())

	switch status {
	case models.ExecutionStatusCompleted:
		span.SetStatus(codes.Ok, "")
		r.publish(writeCtx, events.ExecutionCompleted{
			BaseEvent:  r.baseEvent(events.ExecutionCompletedEvent, r.execution),
			OutputData: update.OutputData,
			DurationMs: duration.Milliseconds(),
		})
		r.logger.InfoContext(writeCtx, "execution completed", "duration_ms", duration.Milliseconds())
	case models.ExecutionStatusCancelled:
		span.SetAttributes(attribute.String(otelhelper.NodeIDKey, nodeID))
		r.publish(writeCtx, events.ExecutionCancelled{
			BaseEvent: r.baseEvent(events.ExecutionCancelledEvent, r.execution),
			NodeID:    nodeID,
		})
		r.logger.InfoContext(writeCtx, "execution cancelled", "node_id", nodeID)
	default:
		otelhelper.SetError(span, runErr)
		r.publish(writeCtx, events.ExecutionFailed{
			BaseEvent:  r.baseEvent(events.ExecutionFailedEvent, r.execution),
			NodeID:     nodeID,
			Error:      r.execution.Error,
			DurationMs: duration.Milliseconds(),
		})
		r.logger.ErrorContext(writeCtx, "execution failed", "node_id", nodeID, "error", runErr)
	}

	return r.execution, result
}

// errorMessage returns the message of the handler failure underlying err.
func errorMessage(err error) string {
	var herr *HandlerError
	if errors.As(err, &herr) {
		return herr.Err.Error()
	}

	return err.Error()
}

// shouldFollow decides whether edge is taken after a node produced result.
func shouldFollow(edge *models.Edge, result map[string]any) bool {
	failed := result["error"] != nil || result["success"] == false

	switch edge.Type() {
	case models.EdgeTypeDefault:
		return true
	case models.EdgeTypeSuccess:
		return !failed
	case models.EdgeTypeError:
		return failed
	case models.EdgeTypeTrue, models.EdgeTypeFalse, models.EdgeTypeItem:
		return false
	}

	return false
}

func followConditional(edge *models.Edge, result map[string]any) bool {
	held, _ := result["condition"].(bool)

	switch edge.Type() {
	case models.EdgeTypeTrue:
		return held
	case models.EdgeTypeFalse:
		return !held
	case models.EdgeTypeDefault, models.EdgeTypeSuccess, models.EdgeTypeError, models.EdgeTypeItem:
		return shouldFollow(edge, result)
	}

	return false
}
