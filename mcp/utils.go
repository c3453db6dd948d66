package mcp

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
)

// jsonResult renders v as the text and structured content of a result
func jsonResult(v interface{}) (ToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return ToolResult{}, fmt.Errorf("failed to marshal result: %w", err)
	}
	return ToolResult{Text: string(data), StructuredContent: v}, nil
}

func errorResult(format string, args ...interface{}) ToolResult {
	return ToolResult{Text: fmt.Sprintf(format, args...), IsError: true}
}

// StringSliceArg reads a string array argument
func StringSliceArg(args map[string]interface{}, name string) ([]string, error) {
	raw, ok := args[name]
	if !ok {
		return nil, fmt.Errorf("missing argument %q", name)
	}
	items, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("argument %q must be an array of strings", name)
	}
	out := make([]string, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("argument %q[%d] must be a string", name, i)
		}
		out[i] = s
	}
	return out, nil
}

// Uint64Arg reads a non-negative integer argument. JSON numbers arrive as
// float64, so decimal strings are accepted for values beyond 2^53.
func Uint64Arg(args map[string]interface{}, name string) (uint64, error) {
	switch v := args[name].(type) {
	case float64:
		if v < 0 || v != math.Trunc(v) || v >= math.MaxUint64 {
			return 0, fmt.Errorf("argument %q must be a non-negative integer", name)
		}
		return uint64(v), nil
	case string:
		n, ok := new(big.Int).SetString(v, 10)
		if !ok || n.Sign() < 0 || !n.IsUint64() {
			return 0, fmt.Errorf("argument %q must be a non-negative integer", name)
		}
		return n.Uint64(), nil
	case nil:
		return 0, fmt.Errorf("missing argument %q", name)
	default:
		return 0, fmt.Errorf("argument %q must be a non-negative integer", name)
	}
}

// BigIntArg reads an optional decimal-string integer argument. Absent means nil.
func BigIntArg(args map[string]interface{}, name string) (*big.Int, error) {
	switch v := args[name].(type) {
	case nil:
		return nil, nil
	case string:
		n, ok := new(big.Int).SetString(v, 10)
		if !ok || n.Sign() < 0 {
			return nil, fmt.Errorf("argument %q must be a non-negative decimal string", name)
		}
		return n, nil
	case float64:
		if v < 0 || v != math.Trunc(v) {
			return nil, fmt.Errorf("argument %q must be a non-negative integer", name)
		}
		n, _ := new(big.Float).SetFloat64(v).Int(nil)
		return n, nil
	default:
		return nil, fmt.Errorf("argument %q must be a decimal string", name)
	}
}
