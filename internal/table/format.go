package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatFloat renders a float the way the datasets' users expect to read it:
// shortest round-trip form, with a trailing ".0" on integral values.
func FormatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// Format renders a cell for human-readable output. Missing cells render as
// "NaN".
func Format(v any) string {
	if IsNull(v) {
		return "NaN"
	}
	return formatPresent(v)
}

// FormatCSV renders a cell for CSV output. Missing cells render as an empty
// field.
func FormatCSV(v any) string {
	if IsNull(v) {
		return ""
	}
	return formatPresent(v)
}

func formatPresent(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return FormatFloat(t)
	case bool:
		if t {
			return "True"
		}
		return "False"
	default:
		return fmt.Sprint(v)
	}
}
