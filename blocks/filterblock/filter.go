// Package filterblock implements the FILTER block: a pure row-mask over one
// column, with no pause points.
package filterblock

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/gurre/leadpipe/engine"
	"github.com/gurre/leadpipe/frame"
)

// Block filters rows of the input frame by a single column condition.
type Block struct{}

// New constructs a filter Block.
func New() *Block {
	return &Block{}
}

// Execute implements engine.Block.
func (b *Block) Execute(ctx context.Context, in *frame.Frame, config map[string]any, onProgress engine.ProgressFunc, pauseCheck engine.PauseCheckFunc, startRow int) (engine.ExecResult, error) {
	if in == nil {
		return engine.ExecResult{}, engine.NewExecutionError(engine.ErrEmptyInput, "no frame to filter")
	}

	column, _ := config["column"].(string)
	if column == "" {
		return engine.ExecResult{}, engine.NewExecutionError(engine.ErrConfigMissing, "column is required for Filter block")
	}
	if !hasColumn(in, column) {
		return engine.ExecResult{}, engine.NewExecutionError(engine.ErrConfigInvalid, fmt.Sprintf("column %q not found in frame", column))
	}

	operator := "contains"
	if v, ok := config["operator"].(string); ok && v != "" {
		operator = v
	}
	value := config["value"]
	if value == nil {
		value = ""
	}
	caseSensitive, _ := config["case_sensitive"].(bool)

	predicate, err := matcher(operator, value, caseSensitive)
	if err != nil {
		return engine.ExecResult{}, engine.NewExecutionError(engine.ErrConfigInvalid, err.Error())
	}

	onProgress(10)

	out := in.Filter(func(id frame.RowID) bool {
		v, ok := in.Get(id, column)
		return predicate(v, ok)
	})

	onProgress(100)

	return engine.ExecResult{Frame: out}, nil
}

func hasColumn(f *frame.Frame, name string) bool {
	for _, c := range f.Columns() {
		if c == name {
			return true
		}
	}
	return false
}

// matcher returns a predicate over (cell value, present) for the given
// operator and comparison value.
func matcher(operator string, value any, caseSensitive bool) (func(v any, present bool) bool, error) {
	switch operator {
	case "contains":
		needle := fmt.Sprintf("%v", value)
		if !caseSensitive {
			needle = strings.ToLower(needle)
		}
		return func(v any, present bool) bool {
			if !present {
				return false
			}
			hay := fmt.Sprintf("%v", v)
			if !caseSensitive {
				hay = strings.ToLower(hay)
			}
			return strings.Contains(hay, needle)
		}, nil
	case "equals":
		return func(v any, present bool) bool {
			if !present {
				return false
			}
			return looseEquals(v, value)
		}, nil
	case "not_equals":
		return func(v any, present bool) bool {
			if !present {
				return true
			}
			return !looseEquals(v, value)
		}, nil
	case "greater_than":
		return func(v any, present bool) bool {
			if !present {
				return false
			}
			a, b, ok := asFloats(v, value)
			return ok && a > b
		}, nil
	case "less_than":
		return func(v any, present bool) bool {
			if !present {
				return false
			}
			a, b, ok := asFloats(v, value)
			return ok && a < b
		}, nil
	case "is_true":
		return func(v any, present bool) bool {
			return present && looseEquals(v, true)
		}, nil
	case "is_false":
		return func(v any, present bool) bool {
			return present && looseEquals(v, false)
		}, nil
	case "is_null":
		return func(v any, present bool) bool {
			return !present
		}, nil
	case "is_not_null":
		return func(v any, present bool) bool {
			return present
		}, nil
	default:
		return nil, fmt.Errorf("unknown operator: %q", operator)
	}
}

func looseEquals(a, b any) bool {
	if af, bf, ok := asFloats(a, b); ok {
		return af == bf
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func asFloats(a, b any) (float64, float64, bool) {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	return af, bf, aok && bok
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
