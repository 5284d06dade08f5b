// Package sandbox runs user supplied code for code nodes inside a restricted
// Starlark interpreter. The exposed language is "python": programs are
// written in the Starlark dialect of Python, checked against a denylist
// policy before they run, and executed with step, time and result size
// limits.
package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Error categories reported in Result.ErrorType.
const (
	ErrorTypeSecurity = "SecurityError"
	ErrorTypeSyntax   = "SyntaxError"
	ErrorTypeRuntime  = "RuntimeError"
	ErrorTypeTimeout  = "TimeoutError"
	ErrorTypeLanguage = "LanguageError"
)

const (
	DefaultLanguage       = "python"
	DefaultTimeout        = 5 * time.Second
	DefaultMaxSteps       = 10_000_000
	DefaultMaxResultBytes = 1 << 20
	resultGlobal          = "result"
)

var errUnresolvedName = errors.New("name error")

// Options configures a Runner. Zero values select defaults.
type Options struct {
	Languages      []string
	Timeout        time.Duration
	MaxSteps       uint64
	MaxResultBytes int
}

// Request describes one program run.
type Request struct {
	Language  string
	Source    string
	Inputs    map[string]any
	Variables map[string]any
	InputData map[string]any
}

// Result is the normalised outcome of a run.
type Result struct {
	Success   bool   `json:"success"`
	Result    any    `json:"result"`
	Error     string `json:"error,omitempty"`
	ErrorType string `json:"error_type,omitempty"`
}

// Map renders the result as a handler output.
func (r Result) Map() map[string]any {
	out := map[string]any{
		"success": r.Success,
		"result":  r.Result,
	}

	if r.Error != "" {
		out["error"] = r.Error
		out["error_type"] = r.ErrorType
	}

	return out
}

// Runner executes programs. It is safe for concurrent use.
type Runner struct {
	logger  *slog.Logger
	options Options
	file    *syntax.FileOptions
}

func NewRunner(logger *slog.Logger, options Options) *Runner {
	if len(options.Languages) == 0 {
		options.Languages = []string{DefaultLanguage}
	}

	if options.Timeout <= 0 {
		options.Timeout = DefaultTimeout
	}

	if options.MaxSteps == 0 {
		options.MaxSteps = DefaultMaxSteps
	}

	if options.MaxResultBytes <= 0 {
		options.MaxResultBytes = DefaultMaxResultBytes
	}

	return &Runner{
		logger:  logger.With("module", "sandbox"),
		options: options,
		file: &syntax.FileOptions{
			Set:             true,
			While:           true,
			TopLevelControl: true,
			GlobalReassign:  true,
		},
	}
}

// Run validates and executes a program. Failures of any category are
// reported through Result; Run itself never returns an error.
func (r *Runner) Run(ctx context.Context, req Request) Result {
	language := strings.ToLower(strings.TrimSpace(req.Language))
	if language == "" {
		language = DefaultLanguage
	}

	if !slices.Contains(r.options.Languages, language) {
		return failure(ErrorTypeLanguage, fmt.Sprintf("unsupported language %q", req.Language))
	}

	program, err := r.compile(req.Source)
	if err != nil {
		var securityErr *SecurityError
		if errors.As(err, &securityErr) {
			r.logger.WarnContext(ctx, "rejected code node program", "reason", securityErr.Reason)

			return failure(ErrorTypeSecurity, securityErr.Error())
		}

		if errors.Is(err, errUnresolvedName) {
			return failure(ErrorTypeRuntime, err.Error())
		}

		return failure(ErrorTypeSyntax, err.Error())
	}

	predeclared, err := environment(req)
	if err != nil {
		return failure(ErrorTypeRuntime, err.Error())
	}

	return r.execute(ctx, program, predeclared)
}

func (r *Runner) compile(source string) (*starlark.Program, error) {
	if err := prescan(source); err != nil {
		return nil, err
	}

	file, err := r.file.Parse("code", source, 0)
	if err != nil {
		if violation := scanUnparsable(source); violation != nil {
			return nil, violation
		}

		return nil, fmt.Errorf("syntax error: %w", err)
	}

	if err := inspect(file); err != nil {
		return nil, err
	}

	program, err := starlark.FileProgram(file, isPredeclared)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errUnresolvedName, err)
	}

	return program, nil
}

func (r *Runner) execute(ctx context.Context, program *starlark.Program, predeclared starlark.StringDict) Result {
	thread := &starlark.Thread{
		Name:  "code-node",
		Print: func(*starlark.Thread, string) {},
		Load: func(*starlark.Thread, string) (starlark.StringDict, error) {
			return nil, &SecurityError{Reason: "load statements are not allowed"}
		},
	}
	thread.SetMaxExecutionSteps(r.options.MaxSteps)

	var timedOut atomic.Bool

	done := make(chan struct{})
	defer close(done)

	go func() {
		timer := time.NewTimer(r.options.Timeout)
		defer timer.Stop()

		select {
		case <-timer.C:
			timedOut.Store(true)
			thread.Cancel("timeout")
		case <-ctx.Done():
			thread.Cancel(ctx.Err().Error())
		case <-done:
		}
	}()

	globals, err := program.Init(thread, predeclared)
	if err != nil {
		if timedOut.Load() {
			return failure(ErrorTypeTimeout, fmt.Sprintf("execution exceeded %s", r.options.Timeout))
		}

		var evalErr *starlark.EvalError
		if errors.As(err, &evalErr) {
			return failure(ErrorTypeRuntime, evalErr.Msg)
		}

		return failure(ErrorTypeRuntime, err.Error())
	}

	value, err := fromStarlark(globals[resultGlobal])
	if err != nil {
		return failure(ErrorTypeRuntime, err.Error())
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return failure(ErrorTypeRuntime, fmt.Sprintf("result is not serializable: %v", err))
	}

	if len(encoded) > r.options.MaxResultBytes {
		return failure(ErrorTypeRuntime, fmt.Sprintf("result exceeds %d bytes", r.options.MaxResultBytes))
	}

	return Result{Success: true, Result: value}
}

func failure(errorType, message string) Result {
	return Result{Success: false, Error: message, ErrorType: errorType}
}

func environment(req Request) (starlark.StringDict, error) {
	predeclared := starlark.StringDict{
		"sum":   starlark.NewBuiltin("sum", builtinSum),
		"round": starlark.NewBuiltin("round", builtinRound),
	}

	for name, value := range map[string]map[string]any{
		"inputs":     req.Inputs,
		"variables":  req.Variables,
		"input_data": req.InputData,
	} {
		if value == nil {
			value = map[string]any{}
		}

		converted, err := toStarlark(value)
		if err != nil {
			return nil, fmt.Errorf("failed to expose %s: %w", name, err)
		}

		predeclared[name] = converted
	}

	return predeclared, nil
}

func isPredeclared(name string) bool {
	switch name {
	case "inputs", "variables", "input_data", "sum", "round":
		return true
	}

	return starlark.Universe.Has(name)
}
