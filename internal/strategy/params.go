package strategy

import (
	"fmt"
	"strings"
)

// Int reads an integer parameter, accepting any numeric kind a config
// decoder may produce.
func Int(params map[string]any, key string, def int) (int, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("param %s: %v is not an integer", key, n)
		}
		return int(n), nil
	}
	return 0, fmt.Errorf("param %s: want integer, got %T", key, v)
}

// Float reads a numeric parameter.
func Float(params map[string]any, key string, def float64) (float64, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	}
	return 0, fmt.Errorf("param %s: want number, got %T", key, v)
}

// Bool reads a boolean parameter.
func Bool(params map[string]any, key string, def bool) (bool, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("param %s: want bool, got %T", key, v)
	}
	return b, nil
}

// String reads a string parameter.
func String(params map[string]any, key string, def string) (string, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("param %s: want string, got %T", key, v)
	}
	return s, nil
}

// Symbol reads a symbol parameter and upper-cases it.
func Symbol(params map[string]any, key string, def string) (string, error) {
	s, err := String(params, key, def)
	return strings.ToUpper(s), err
}
