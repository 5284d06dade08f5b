package sandbox

import (
	"fmt"
	"math"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// builtinSum implements sum(iterable, start=0).
func builtinSum(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		iterable starlark.Iterable
		start    starlark.Value = starlark.MakeInt(0)
	)

	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &iterable, &start); err != nil {
		return nil, err
	}

	iter := iterable.Iterate()
	defer iter.Done()

	total := start

	var item starlark.Value
	for iter.Next(&item) {
		next, err := starlark.Binary(syntax.PLUS, total, item)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", fn.Name(), err)
		}

		total = next
	}

	return total, nil
}

// builtinRound implements round(number, ndigits=None) with half-even rounding.
func builtinRound(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		number  starlark.Value
		ndigits starlark.Value = starlark.None
	)

	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "number", &number, "ndigits?", &ndigits); err != nil {
		return nil, err
	}

	var value float64

	switch n := number.(type) {
	case starlark.Int:
		if ndigits == starlark.None {
			return n, nil
		}

		value = float64(n.Float())
	case starlark.Float:
		value = float64(n)
	default:
		return nil, fmt.Errorf("%s: got %s, want number", fn.Name(), number.Type())
	}

	if ndigits == starlark.None {
		return starlark.MakeInt64(int64(math.RoundToEven(value))), nil
	}

	var digits int
	if err := starlark.AsInt(ndigits, &digits); err != nil {
		return nil, fmt.Errorf("%s: ndigits: %w", fn.Name(), err)
	}

	scale := math.Pow(10, float64(digits))

	return starlark.Float(math.RoundToEven(value*scale) / scale), nil
}
