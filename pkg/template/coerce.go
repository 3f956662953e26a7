package template

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseNumber parses a rendered string into a finite float64. NaN and the
// infinities are rejected: they cannot be stored as JSON output.
func ParseNumber(s string) (float64, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
	}
	return value, nil
}

// ParseBoolean parses a rendered string into a bool.
// Accepts true/1/yes/y/on and false/0/no/n/off, case-insensitive, trimmed.
func ParseBoolean(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "y", "on":
		return true, nil
	case "false", "0", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrInvalidBoolean, s)
	}
}

// ParseJSON strictly parses a rendered string as JSON.
func ParseJSON(s string) (interface{}, error) {
	var value interface{}
	if err := json.Unmarshal([]byte(s), &value); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return value, nil
}
