package sandbox

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.starlark.net/syntax"
)

// ErrSecurityViolation is wrapped by every SecurityError.
var ErrSecurityViolation = errors.New("security violation")

// SecurityError reports a program rejected by the pre-execution policy.
type SecurityError struct {
	Reason string
	Line   int32
}

func (e *SecurityError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("Security violation: %s (line %d)", e.Reason, e.Line)
	}

	return "Security violation: " + e.Reason
}

func (e *SecurityError) Unwrap() error {
	return ErrSecurityViolation
}

var deniedNames = map[string]bool{
	"exec":       true,
	"eval":       true,
	"compile":    true,
	"open":       true,
	"globals":    true,
	"locals":     true,
	"__import__": true,
	"getattr":    true,
	"hasattr":    true,
	"setattr":    true,
	"delattr":    true,
	"dir":        true,
	"vars":       true,
	"input":      true,
	"breakpoint": true,
	"load":       true,
}

var deniedAttributes = map[string]bool{
	"__class__":      true,
	"__subclasses__": true,
	"__bases__":      true,
	"__mro__":        true,
	"__code__":       true,
	"__globals__":    true,
	"__builtins__":   true,
	"__dict__":       true,
}

var (
	// Imports may start a line or follow ";" or the ":" of a one-line block.
	importPattern = regexp.MustCompile(`(?m)(?:^|[;:])\s*(import\s+[\w.]+|from\s+[\w.]+\s+import\b)`)
	deniedPattern = regexp.MustCompile(`\b(exec|eval|compile|open|globals|locals|__import__)\s*\(|\.\s*(__class__|__subclasses__|__bases__|__mro__|__code__)\b`)
)

// prescan rejects constructs that are not valid Starlark syntax but must
// still be reported as policy violations.
func prescan(source string) error {
	if match := importPattern.FindStringSubmatch(source); match != nil {
		return &SecurityError{Reason: "import statements are not allowed: " + match[1]}
	}

	return nil
}

// scanUnparsable looks for denied calls in source that failed to parse.
func scanUnparsable(source string) error {
	if match := deniedPattern.FindString(source); match != "" {
		return &SecurityError{Reason: "forbidden construct " + strings.TrimSpace(match)}
	}

	return nil
}

// inspect walks the parsed program and rejects the first denied construct.
func inspect(file *syntax.File) error {
	var violation error

	syntax.Walk(file, func(n syntax.Node) bool {
		if violation != nil {
			return false
		}

		switch node := n.(type) {
		case *syntax.LoadStmt:
			violation = &SecurityError{Reason: "load statements are not allowed", Line: node.Load.Line}
		case *syntax.Ident:
			if deniedNames[node.Name] || isDunder(node.Name) {
				violation = &SecurityError{Reason: fmt.Sprintf("use of %q is not allowed", node.Name), Line: node.NamePos.Line}
			}
		case *syntax.DotExpr:
			if deniedAttributes[node.Name.Name] || isDunder(node.Name.Name) {
				violation = &SecurityError{Reason: fmt.Sprintf("access to attribute %q is not allowed", node.Name.Name), Line: node.Dot.Line}
			}
		}

		return violation == nil
	})

	return violation
}

func isDunder(name string) bool {
	return len(name) > 4 && strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__")
}
