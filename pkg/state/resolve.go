package state

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	wholeExpressionPattern  = regexp.MustCompile(`^\s*\{\{\s*([^{}]*?)\s*\}\}\s*$`)
	inlineExpressionPattern = regexp.MustCompile(`\{\{\s*([^{}]*?)\s*\}\}`)
)

// ResolveVariable evaluates expr when it is exactly one "{{ path }}"
// expression and returns the referenced value, or nil when the path does not
// resolve. Any other string is returned unchanged.
//
// Supported paths:
//
//	input.<key>      trigger input
//	vars.<key>       workflow variables
//	<node_id>.<key>  a node output entry, or the output itself when it is a scalar
//	<name>           a variable, then an input key
func (s *ExecutionState) ResolveVariable(expr string) any {
	match := wholeExpressionPattern.FindStringSubmatch(expr)
	if match == nil {
		return expr
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.lookup(match[1])
}

// ResolveConfig returns a copy of config where every string value that is a
// whole "{{ path }}" expression is replaced by the value it references.
// Nested maps and lists are walked. Mixed strings are left untouched; use
// InterpolateString for inline substitution.
func (s *ExecutionState) ResolveConfig(config map[string]any) map[string]any {
	if config == nil {
		return map[string]any{}
	}

	resolved, _ := s.resolveValue(config).(map[string]any)

	return resolved
}

func (s *ExecutionState) resolveValue(value any) any {
	switch v := value.(type) {
	case string:
		if strings.Contains(v, "{{") {
			return s.ResolveVariable(v)
		}

		return v
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = s.resolveValue(item)
		}

		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = s.resolveValue(item)
		}

		return out
	case []string:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = s.resolveValue(item)
		}

		return out
	default:
		return value
	}
}

// InterpolateString replaces every "{{ path }}" occurrence inside s with the
// string form of the referenced value. Unresolved paths render as empty.
func (s *ExecutionState) InterpolateString(text string) string {
	if !strings.Contains(text, "{{") {
		return text
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return inlineExpressionPattern.ReplaceAllStringFunc(text, func(token string) string {
		match := inlineExpressionPattern.FindStringSubmatch(token)

		return Stringify(s.lookup(match[1]))
	})
}

// Stringify renders a resolved value for inline templates.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]any, []any:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}

		return string(data)
	default:
		return fmt.Sprint(v)
	}
}

// lookup resolves a path. Callers must hold the read lock.
func (s *ExecutionState) lookup(path string) any {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}

	head, rest, dotted := strings.Cut(path, ".")
	if !dotted {
		if value, ok := s.variables[head]; ok {
			return value
		}

		if value, ok := s.inputData[head]; ok {
			return value
		}

		return nil
	}

	switch head {
	case "input":
		return walk(s.inputData, rest)
	case "vars":
		return walk(s.variables, rest)
	}

	if output, ok := s.nodeOutputs[head]; ok {
		if m, isMap := output.(map[string]any); isMap {
			return walk(m, rest)
		}

		return output
	}

	if value, ok := s.variables[head]; ok {
		if m, isMap := value.(map[string]any); isMap {
			return walk(m, rest)
		}
	}

	return nil
}

// walk looks up key in m, falling back to a nested walk over dot separated
// segments when the literal key is absent.
func walk(m map[string]any, key string) any {
	if value, ok := m[key]; ok {
		return value
	}

	head, rest, dotted := strings.Cut(key, ".")
	if !dotted {
		return nil
	}

	next, ok := m[head].(map[string]any)
	if !ok {
		return nil
	}

	return walk(next, rest)
}
