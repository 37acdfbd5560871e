package utils

import (
	"math"
	"strconv"
	"strings"
)

// RoundFloat rounds a float64 to a specified number of decimal places.
func RoundFloat(val float64, precision uint) float64 {
	ratio := math.Pow(10, float64(precision))
	return math.Round(val*ratio) / ratio
}

// ParseDecimal parses a decimal string accepting both ',' and '.' as the
// decimal separator ("10,50" and "10.50" are equivalent). The boolean
// result reports whether the string parsed; callers that want the
// coerce-to-zero policy can ignore it.
func ParseDecimal(s string) (float64, bool) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, false
	}
	normalized := strings.Replace(trimmed, ",", ".", 1)
	v, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
