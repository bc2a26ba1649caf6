package parser

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// FormatError reports a value that could not be read as a magnitude.
type FormatError struct {
	Input any
	Err   error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse magnitude %q: %v", fmt.Sprint(e.Input), e.Err)
	}
	return fmt.Sprintf("parse magnitude %q: unsupported input", fmt.Sprint(e.Input))
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

var digitRun = regexp.MustCompile(`[0-9]+`)

// NormalizeMagnitude converts a human formatted count such as "12k", "3.4m" or "57"
// into an integer. Numeric inputs are truncated toward zero.
func NormalizeMagnitude(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float32:
		return truncate(float64(n), v)
	case float64:
		return truncate(n, v)
	case string:
		return magnitudeString(n)
	default:
		return 0, &FormatError{Input: v}
	}
}

func magnitudeString(input string) (int, error) {
	s := strings.ToLower(strings.TrimSpace(input))

	multiplier := 1.0
	switch {
	case strings.Contains(s, "k"):
		if s == "k" {
			return 1_000, nil
		}
		s = strings.ReplaceAll(s, "k", "")
		multiplier = 1_000
	case strings.Contains(s, "m"):
		if s == "m" {
			return 1_000_000, nil
		}
		s = strings.ReplaceAll(s, "m", "")
		multiplier = 1_000_000
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, &FormatError{Input: input, Err: err}
	}
	return truncate(f*multiplier, input)
}

func truncate(f float64, input any) (int, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &FormatError{Input: input, Err: fmt.Errorf("not a finite number")}
	}
	return int(math.Trunc(f)), nil
}

// FirstNumber strips thousands separators from text and returns the first run of
// digits, normalized through NormalizeMagnitude.
func FirstNumber(text string) (int, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(text), ",", "")
	match := digitRun.FindString(cleaned)
	if match == "" {
		return 0, &FormatError{Input: text, Err: fmt.Errorf("no digits")}
	}
	return NormalizeMagnitude(match)
}
