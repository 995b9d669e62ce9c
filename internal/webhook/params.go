package webhook

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MapParams zips parallel name/value arrays into a keyed parameter map.
func MapParams(names []string, values []any) (map[string]any, error) {
	if len(names) != len(values) {
		return nil, fmt.Errorf("parameter length mismatch: %d names, %d values", len(names), len(values))
	}
	params := make(map[string]any, len(names))
	for i, name := range names {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid parameter name at position %d", i)
		}
		params[name] = values[i]
	}
	return params, nil
}

// MapParamsRequired maps the arrays and additionally asserts the given keys
// are present.
func MapParamsRequired(names []string, values []any, required []string) (map[string]any, error) {
	params, err := MapParams(names, values)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, key := range required {
		if _, ok := params[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required parameters: %s", strings.Join(missing, ", "))
	}
	return params, nil
}

// paramString renders a parameter value as a string. Decoded JSON values are
// usually strings already; anything else falls back to its default format.
func paramString(v any) string {
	switch typed := v.(type) {
	case string:
		return typed
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", typed)
	}
}

// paramUint parses a numeric parameter. JSON decoding yields float64 for
// numbers and strings for uint256 values, so both are accepted.
func paramUint(v any) (uint64, error) {
	switch typed := v.(type) {
	case uint64:
		return typed, nil
	case int:
		if typed < 0 {
			return 0, fmt.Errorf("negative value %d", typed)
		}
		return uint64(typed), nil
	case int64:
		if typed < 0 {
			return 0, fmt.Errorf("negative value %d", typed)
		}
		return uint64(typed), nil
	case float64:
		if typed < 0 || typed != math.Trunc(typed) {
			return 0, fmt.Errorf("value %v is not a non-negative integer", typed)
		}
		return uint64(typed), nil
	case json.Number:
		return strconv.ParseUint(typed.String(), 10, 64)
	case string:
		return strconv.ParseUint(strings.TrimSpace(typed), 10, 64)
	default:
		return 0, fmt.Errorf("unsupported numeric type %T", v)
	}
}
