package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ToQuantity converts a decoded cell to an integer quantity.
// It returns nil for empty cells, fractional numbers and anything that is not
// a plain base-10 integer, so callers can reject the row instead of guessing.
func ToQuantity(val any) *int {
	var n int
	switch v := val.(type) {
	case nil:
		return nil
	case int:
		n = v
	case int64:
		n = int(v)
	case int32:
		n = int(v)
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) || math.IsNaN(v) {
			return nil
		}
		n = int(v)
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil
		}
		i, err := strconv.Atoi(s)
		if err != nil {
			return nil
		}
		n = i
	case []byte:
		return ToQuantity(string(v))
	default:
		return nil
	}
	return &n
}

// ToString converts various types to string.
func ToString(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ToBool converts various types to bool.
// It handles bool, integers (1=true), and strings ("1", "true", "yes").
func ToBool(val any) bool {
	switch v := val.(type) {
	case bool:
		return v
	case int:
		return v == 1
	case int64:
		return v == 1
	case string:
		s := strings.ToLower(strings.TrimSpace(v))
		return s == "1" || s == "true" || s == "yes"
	case []byte:
		return ToBool(string(v))
	default:
		return false
	}
}
