package utils

import (
	"math"
	"strconv"
	"strings"
)

// ParseAmount reads a stored money or count string leniently.
// Commas, spaces and a leading rupee sign are ignored; anything unparsable is 0.
func ParseAmount(s string) float64 {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "₹")
	s = strings.NewReplacer(",", "", " ", "").Replace(s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// FormatAmount renders f with two decimals.
func FormatAmount(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}
