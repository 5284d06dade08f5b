// Package expr evaluates bounded boolean and arithmetic expressions used by
// conditional nodes. Only literals, comparisons, boolean operators, basic
// arithmetic and the names true, false and null are accepted; anything else
// is rejected before evaluation.
package expr

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"go.starlark.net/syntax"
)

// MaxLength bounds the size of an expression source.
const MaxLength = 4096

var (
	// ErrSyntax indicates the expression could not be parsed.
	ErrSyntax = errors.New("expression syntax error")

	// ErrUnsupported indicates the expression uses a construct outside the allowed grammar.
	ErrUnsupported = errors.New("unsupported expression")

	// ErrEvaluation indicates a type or arithmetic failure during evaluation.
	ErrEvaluation = errors.New("expression evaluation error")
)

var parseOptions = &syntax.FileOptions{}

// Evaluate parses and evaluates src. Integers evaluate to int64, decimals to
// float64, null to nil.
func Evaluate(src string) (any, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrSyntax)
	}

	if len(src) > MaxLength {
		return nil, fmt.Errorf("%w: expression exceeds %d bytes", ErrUnsupported, MaxLength)
	}

	node, err := parseOptions.ParseExpr("condition", src, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSyntax, err)
	}

	if err := check(node); err != nil {
		return nil, err
	}

	return eval(node)
}

// EvaluateBool evaluates src and reports the truthiness of the result.
func EvaluateBool(src string) (bool, error) {
	value, err := Evaluate(src)
	if err != nil {
		return false, err
	}

	return Truthy(value), nil
}

// check walks the tree and rejects every node kind outside the grammar.
func check(root syntax.Expr) error {
	var failure error

	syntax.Walk(root, func(n syntax.Node) bool {
		if failure != nil {
			return false
		}

		switch node := n.(type) {
		case nil:
		case *syntax.Literal:
			if node.Token == syntax.BYTES {
				failure = fmt.Errorf("%w: bytes literals", ErrUnsupported)
			}
		case *syntax.Ident:
			if _, ok := constants[node.Name]; !ok {
				failure = fmt.Errorf("%w: name %q", ErrUnsupported, node.Name)
			}
		case *syntax.ParenExpr:
		case *syntax.UnaryExpr:
			if !allowedUnary[node.Op] {
				failure = fmt.Errorf("%w: operator %s", ErrUnsupported, node.Op)
			}
		case *syntax.BinaryExpr:
			if !allowedBinary[node.Op] {
				failure = fmt.Errorf("%w: operator %s", ErrUnsupported, node.Op)
			}
		default:
			failure = fmt.Errorf("%w: %T", ErrUnsupported, n)
		}

		return failure == nil
	})

	return failure
}

var constants = map[string]any{
	"true":  true,
	"True":  true,
	"false": false,
	"False": false,
	"null":  nil,
	"None":  nil,
}

var allowedUnary = map[syntax.Token]bool{
	syntax.NOT:   true,
	syntax.MINUS: true,
	syntax.PLUS:  true,
}

var allowedBinary = map[syntax.Token]bool{
	syntax.EQL:   true,
	syntax.NEQ:   true,
	syntax.LT:    true,
	syntax.GT:    true,
	syntax.LE:    true,
	syntax.GE:    true,
	syntax.AND:   true,
	syntax.OR:    true,
	syntax.PLUS:  true,
	syntax.MINUS: true,
	syntax.STAR:  true,
	syntax.SLASH: true,
}

func eval(node syntax.Expr) (any, error) {
	switch n := node.(type) {
	case *syntax.Literal:
		return literal(n)
	case *syntax.Ident:
		return constants[n.Name], nil
	case *syntax.ParenExpr:
		return eval(n.X)
	case *syntax.UnaryExpr:
		return unary(n)
	case *syntax.BinaryExpr:
		return binary(n)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupported, node)
	}
}

func literal(n *syntax.Literal) (any, error) {
	switch v := n.Value.(type) {
	case int64:
		return v, nil
	case float64:
		return v, nil
	case string:
		return v, nil
	default:
		return nil, fmt.Errorf("%w: literal %s out of range", ErrEvaluation, n.Raw)
	}
}

func unary(n *syntax.UnaryExpr) (any, error) {
	x, err := eval(n.X)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case syntax.NOT:
		return !Truthy(x), nil
	case syntax.MINUS:
		switch v := x.(type) {
		case int64:
			return -v, nil
		case float64:
			return -v, nil
		}
	case syntax.PLUS:
		switch x.(type) {
		case int64, float64:
			return x, nil
		}
	}

	return nil, fmt.Errorf("%w: unary %s on %s", ErrEvaluation, n.Op, typeName(x))
}

func binary(n *syntax.BinaryExpr) (any, error) {
	x, err := eval(n.X)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case syntax.AND:
		if !Truthy(x) {
			return x, nil
		}

		return eval(n.Y)
	case syntax.OR:
		if Truthy(x) {
			return x, nil
		}

		return eval(n.Y)
	}

	y, err := eval(n.Y)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case syntax.EQL:
		return equal(x, y), nil
	case syntax.NEQ:
		return !equal(x, y), nil
	case syntax.LT, syntax.GT, syntax.LE, syntax.GE:
		return order(x, y, n.Op)
	default:
		return arithmetic(x, y, n.Op)
	}
}

func equal(x, y any) bool {
	xf, xNum := number(x)
	yf, yNum := number(y)

	if xNum && yNum {
		return xf == yf
	}

	return x == y
}

func order(x, y any, op syntax.Token) (bool, error) {
	if xf, ok := number(x); ok {
		if yf, ok := number(y); ok {
			return compareFloat(xf, yf, op), nil
		}
	}

	if xs, ok := x.(string); ok {
		if ys, ok := y.(string); ok {
			return compareString(xs, ys, op), nil
		}
	}

	return false, fmt.Errorf("%w: cannot compare %s %s %s", ErrEvaluation, typeName(x), op, typeName(y))
}

func compareFloat(a, b float64, op syntax.Token) bool {
	switch op {
	case syntax.LT:
		return a < b
	case syntax.GT:
		return a > b
	case syntax.LE:
		return a <= b
	case syntax.GE:
		return a >= b
	default:
		return false
	}
}

func compareString(a, b string, op syntax.Token) bool {
	switch op {
	case syntax.LT:
		return a < b
	case syntax.GT:
		return a > b
	case syntax.LE:
		return a <= b
	case syntax.GE:
		return a >= b
	default:
		return false
	}
}

func arithmetic(x, y any, op syntax.Token) (any, error) {
	if op == syntax.PLUS {
		if xs, ok := x.(string); ok {
			if ys, ok := y.(string); ok {
				return xs + ys, nil
			}
		}
	}

	xi, xInt := x.(int64)
	yi, yInt := y.(int64)

	if xInt && yInt && op != syntax.SLASH {
		switch op {
		case syntax.PLUS:
			return xi + yi, nil
		case syntax.MINUS:
			return xi - yi, nil
		case syntax.STAR:
			return xi * yi, nil
		}
	}

	xf, xNum := number(x)
	yf, yNum := number(y)

	if !xNum || !yNum {
		return nil, fmt.Errorf("%w: unsupported operands %s %s %s", ErrEvaluation, typeName(x), op, typeName(y))
	}

	switch op {
	case syntax.PLUS:
		return xf + yf, nil
	case syntax.MINUS:
		return xf - yf, nil
	case syntax.STAR:
		return xf * yf, nil
	case syntax.SLASH:
		if yf == 0 {
			return nil, fmt.Errorf("%w: division by zero", ErrEvaluation)
		}

		result := xf / yf
		if math.IsInf(result, 0) {
			return nil, fmt.Errorf("%w: float overflow", ErrEvaluation)
		}

		return result, nil
	}

	return nil, fmt.Errorf("%w: operator %s", ErrUnsupported, op)
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// Truthy reports the boolean interpretation of a value.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case int64:
		return t != 0
	case int:
		return t != 0
	case float64:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case int64:
		return "int"
	case float64:
		return "float"
	case string:
		return "string"
	default:
		return fmt.Sprintf("%T", v)
	}
}
