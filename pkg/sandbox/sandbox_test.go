package sandbox_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/dukex/nodeflow/pkg/sandbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRunner(options sandbox.Options) *sandbox.Runner {
	return sandbox.NewRunner(slog.New(slog.NewTextHandler(io.Discard, nil)), options)
}

func run(t *testing.T, runner *sandbox.Runner, source string) sandbox.Result {
	t.Helper()

	return runner.Run(t.Context(), sandbox.Request{
		Language:  "python",
		Source:    source,
		Inputs:    map[string]any{"fetch": map[string]any{"status_code": 200}},
		Variables: map[string]any{"x": "c", "n": 42.0},
		InputData: map[string]any{"user": "alice"},
	})
}

func TestRun_Success(t *testing.T) {
	runner := newRunner(sandbox.Options{})

	tests := []struct {
		name     string
		source   string
		expected any
	}{
		{"variable method", `result = variables["x"].upper()`, "C"},
		{"inputs access", `result = inputs["fetch"]["status_code"] + 1`, int64(201)},
		{"input data", `result = "hello " + input_data["user"]`, "hello alice"},
		{"whole float becomes int", `result = variables["n"] * 2`, int64(84)},
		{"top level loop", "total = 0\nfor i in range(5):\n    total += i\nresult = total", int64(10)},
		{"while loop", "i = 0\nwhile i < 3:\n    i += 1\nresult = i", int64(3)},
		{"builtins", `result = [sum([1, 2, 3]), round(2.567, 2), round(2.5), len("abc")]`, []any{int64(6), 2.57, int64(2), int64(3)}},
		{"dict result", `result = {"items": sorted([3, 1, 2]), "ok": True}`, map[string]any{"items": []any{int64(1), int64(2), int64(3)}, "ok": true}},
		{"print is silent", "print('hi')\nresult = None", nil},
		{"no result assigned", "x = 1", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := run(t, runner, tt.source)

			require.True(t, result.Success, result.Error)
			assert.Equal(t, tt.expected, result.Result)
			assert.Empty(t, result.ErrorType)
		})
	}
}

func TestRun_SecurityViolations(t *testing.T) {
	runner := newRunner(sandbox.Options{})

	programs := map[string]string{
		"import":            "import os\nresult = 1",
		"from import":       "from os import path\nresult = 1",
		"indented import":   "if True:\n    import subprocess\nresult = 1",
		"import after semi": "x = 1; import os\nresult = 1",
		"one-line block":    "if True: import os\nresult = 1",
		"from after semi":   "x = 1;from os import path\nresult = 1",
		"exec":              `exec("result = 1")`,
		"eval":              `result = eval("1 + 1")`,
		"compile":           `result = compile("1", "f", "eval")`,
		"open":              `result = open("/etc/passwd")`,
		"globals":           `result = globals()`,
		"locals":            `result = locals()`,
		"dunder import":     `result = __import__("os")`,
		"class attribute":   `result = "".__class__`,
		"subclasses":        `result = [].__class__.__subclasses__()`,
		"mro":               `result = {}.__mro__`,
		"code attribute":    `f = lambda: 1` + "\n" + `result = f.__code__`,
		"getattr":           `result = getattr("a", "upper")`,
		"load":              `load("module.star", "x")` + "\nresult = x",
		"unparsable exec":   "class A:\n    pass\nexec('x')",
		"unparsable dunder": "try:\n    x = ().__class__\nexcept:\n    pass",
	}

	for name, source := range programs {
		t.Run(name, func(t *testing.T) {
			result := run(t, runner, source)

			assert.False(t, result.Success)
			assert.True(t, strings.HasPrefix(result.Error, "Security violation"), result.Error)
			assert.Equal(t, sandbox.ErrorTypeSecurity, result.ErrorType)
			assert.Equal(t, false, result.Map()["success"])
		})
	}
}

func TestRun_ErrorCategories(t *testing.T) {
	runner := newRunner(sandbox.Options{})

	result := run(t, runner, "result = (")
	assert.False(t, result.Success)
	assert.Equal(t, sandbox.ErrorTypeSyntax, result.ErrorType)

	result = run(t, runner, "result = 1 // 0")
	assert.False(t, result.Success)
	assert.Equal(t, sandbox.ErrorTypeRuntime, result.ErrorType)
	assert.Contains(t, result.Error, "division by zero")

	result = run(t, runner, "result = undefined_name")
	assert.False(t, result.Success)
	assert.Equal(t, sandbox.ErrorTypeRuntime, result.ErrorType)

	result = runner.Run(t.Context(), sandbox.Request{Language: "javascript", Source: "result = 1"})
	assert.False(t, result.Success)
	assert.Equal(t, sandbox.ErrorTypeLanguage, result.ErrorType)
}

func TestRun_Limits(t *testing.T) {
	t.Run("timeout", func(t *testing.T) {
		runner := newRunner(sandbox.Options{Timeout: 50 * time.Millisecond, MaxSteps: 1 << 62})

		started := time.Now()
		result := run(t, runner, "while True:\n    pass")

		assert.False(t, result.Success)
		assert.Equal(t, sandbox.ErrorTypeTimeout, result.ErrorType)
		assert.Less(t, time.Since(started), 5*time.Second)
	})

	t.Run("step limit", func(t *testing.T) {
		runner := newRunner(sandbox.Options{MaxSteps: 1000})

		result := run(t, runner, "i = 0\nwhile True:\n    i += 1")

		assert.False(t, result.Success)
		assert.Equal(t, sandbox.ErrorTypeRuntime, result.ErrorType)
	})

	t.Run("result size", func(t *testing.T) {
		runner := newRunner(sandbox.Options{MaxResultBytes: 16})

		result := run(t, runner, `result = "x" * 100`)

		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "result exceeds")
	})

	t.Run("context cancellation", func(t *testing.T) {
		runner := newRunner(sandbox.Options{MaxSteps: 1 << 62})

		ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
		defer cancel()

		result := runner.Run(ctx, sandbox.Request{Source: "while True:\n    pass"})

		assert.False(t, result.Success)
		assert.Equal(t, sandbox.ErrorTypeRuntime, result.ErrorType)
	})
}

func TestRun_InputsAreCopies(t *testing.T) {
	runner := newRunner(sandbox.Options{})
	variables := map[string]any{"x": "original"}

	result := runner.Run(t.Context(), sandbox.Request{
		Source:    "variables[\"x\"] = \"changed\"\nresult = variables[\"x\"]",
		Variables: variables,
	})

	require.True(t, result.Success, result.Error)
	assert.Equal(t, "changed", result.Result)
	assert.Equal(t, "original", variables["x"])
}
