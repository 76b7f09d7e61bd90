package inmemory

import (
	"strconv"
	"strings"
)

// toFloat64 converts the numbers found in decoded fixtures: float64 from
// JSON, int from YAML. Numeric strings convert too, so versions like "10"
// and "9" compare as numbers.
func toFloat64(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
