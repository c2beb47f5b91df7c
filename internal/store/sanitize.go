package store

import (
	"math"
	"strings"
)

// Sanitize coerces an arbitrary decoded value into the subset the document
// store accepts: nil, bool, string, float64, []any and map[string]any. NaN and
// infinities become 0, map keys containing '.' have it replaced with '_', and
// anything else becomes nil. Sanitize(Sanitize(x)) == Sanitize(x).
func Sanitize(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case bool, string:
		return v
	case float64:
		return sanitizeFloat(v)
	case float32:
		return sanitizeFloat(float64(v))
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = Sanitize(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			if strings.Contains(k, ".") {
				k = strings.ReplaceAll(k, ".", "_")
			}
			out[k] = Sanitize(item)
		}
		return out
	default:
		return nil
	}
}

func sanitizeFloat(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// SanitizeMap is Sanitize for a parameter bag, keeping the map type.
func SanitizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return Sanitize(m).(map[string]any)
}
