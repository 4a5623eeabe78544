package calculators

import (
	"fmt"

	"github.com/kubev2v/wave-planner/internal/estimation"
)

func getInt(p estimation.Param) (int, error) {
	switch v := p.Value.(type) {
	case float64:
		return int(v), nil // JSON default
	case int:
		return v, nil // Direct struct usage or YAML (sometimes)
	case int64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("param %s is not a number (type: %T)", p.Key, p.Value)
	}
}

func getFloat(p estimation.Param) (float64, error) {
	switch v := p.Value.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0.0, fmt.Errorf("param %s is not a number (type: %T)", p.Key, p.Value)
	}
}

func getString(p estimation.Param) (string, error) {
	switch v := p.Value.(type) {
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		return "", fmt.Errorf("param %s is not a string (type: %T)", p.Key, p.Value)
	}
}

// requireFloat reads a mandatory numeric param.
func requireFloat(params map[string]estimation.Param, key string) (float64, error) {
	p, ok := params[key]
	if !ok {
		return 0, fmt.Errorf("missing %s", key)
	}
	return getFloat(p)
}

// optionalFloat reads a numeric param, falling back to def when absent.
func optionalFloat(params map[string]estimation.Param, key string, def float64) (float64, error) {
	p, ok := params[key]
	if !ok {
		return def, nil
	}
	return getFloat(p)
}

func requireInt(params map[string]estimation.Param, key string) (int, error) {
	p, ok := params[key]
	if !ok {
		return 0, fmt.Errorf("missing %s", key)
	}
	return getInt(p)
}
