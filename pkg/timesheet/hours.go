package timesheet

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

type Format string

const (
	FormatDecimal Format = "decimal"
	FormatHHMM    Format = "hhmm"
)

// ParseFormat maps unknown values to FormatDecimal.
func ParseFormat(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), string(FormatHHMM)) {
		return FormatHHMM
	}
	return FormatDecimal
}

// ParseHours reads decimal ("7.5") or clock ("7:30") input. Trailing text after
// the number is ignored, so "8.5h" is 8.5 and "8:30:15" is 8.5. It never fails:
// anything unparsable or negative yields 0.
func ParseHours(value string) float64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0
	}

	var hours float64
	if h, rest, found := strings.Cut(trimmed, ":"); found {
		m, _, _ := strings.Cut(rest, ":")
		hv, ok := parseNumber(h)
		if !ok {
			return 0
		}
		mv, ok := parseNumber(m)
		if !ok {
			return 0
		}
		hours = hv + mv/60
	} else {
		v, ok := parseNumber(numberPrefix.FindString(trimmed))
		if !ok {
			return 0
		}
		hours = v
	}

	if hours < 0 {
		return 0
	}
	return hours
}

var numberPrefix = regexp.MustCompile(`^[+-]?(\d+([.,]\d*)?|[.,]\d+)([eE][+-]?\d+)?`)

// parseNumber treats an empty part as 0, so "7:" and ":30" are accepted.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, true
	}
	v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// FormatHours renders hours as "7.50" or, in FormatHHMM, as "07:30".
func FormatHours(hours float64, format Format) string {
	if format == FormatHHMM {
		h := math.Floor(hours)
		m := math.Round((hours - h) * 60)
		if m >= 60 {
			h++
			m = 0
		}
		return fmt.Sprintf("%02d:%02d", int(h), int(m))
	}
	return strconv.FormatFloat(hours, 'f', 2, 64)
}

// RoundToIncrement rounds hours to the nearest multiple of the given minutes.
func RoundToIncrement(hours float64, minutes int) float64 {
	if minutes <= 0 {
		return hours
	}
	step := float64(minutes) / 60
	return math.Round(hours/step) * step
}
