package toolreg

import (
	"encoding/json"
	"fmt"
	"math"
)

// ValidateArgs checks supplied arguments against the descriptor's parameter
// list: names must be declared, required parameters present, values coercible
// to the declared type. Declared defaults fill in absent optionals. The
// returned map is a fresh copy; the caller's map is never mutated.
func ValidateArgs(desc Descriptor, args map[string]any) (map[string]any, error) {
	declared := make(map[string]Param, len(desc.Params))
	for _, p := range desc.Params {
		declared[p.Name] = p
	}

	for name := range args {
		if _, ok := declared[name]; !ok {
			return nil, &ArgumentError{Param: name, Reason: "not a parameter of this tool"}
		}
	}

	checked := make(map[string]any, len(desc.Params))
	for _, p := range desc.Params {
		raw, present := args[p.Name]
		if !present || raw == nil {
			if p.Required {
				return nil, &ArgumentError{Param: p.Name, Reason: "required parameter missing"}
			}
			if p.Default != nil {
				checked[p.Name] = p.Default
			}
			continue
		}
		val, err := coerce(p.Type, raw)
		if err != nil {
			return nil, &ArgumentError{Param: p.Name, Reason: err.Error()}
		}
		checked[p.Name] = val
	}
	return checked, nil
}

func coerce(typ string, v any) (any, error) {
	switch typ {
	case TypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return nil, fmt.Errorf("expected string, got %T", v)
	case TypeInteger:
		switch n := v.(type) {
		case int:
			return n, nil
		case int64:
			return int(n), nil
		case float64:
			if n != math.Trunc(n) {
				return nil, fmt.Errorf("expected integer, got %v", n)
			}
			return int(n), nil
		case json.Number:
			i, err := n.Int64()
			if err != nil {
				return nil, fmt.Errorf("expected integer, got %q", n.String())
			}
			return int(i), nil
		}
		return nil, fmt.Errorf("expected integer, got %T", v)
	case TypeNumber:
		switch n := v.(type) {
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case float64:
			return n, nil
		case json.Number:
			f, err := n.Float64()
			if err != nil {
				return nil, fmt.Errorf("expected number, got %q", n.String())
			}
			return f, nil
		}
		return nil, fmt.Errorf("expected number, got %T", v)
	case TypeBoolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
		return nil, fmt.Errorf("expected boolean, got %T", v)
	default:
		return nil, fmt.Errorf("unsupported parameter type %q", typ)
	}
}
