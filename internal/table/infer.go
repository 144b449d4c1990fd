package table

import (
	"strconv"
	"strings"
)

// missingTokens are the cell spellings read as missing, matching the usual
// pandas read_csv defaults.
var missingTokens = map[string]struct{}{
	"":         {},
	"#N/A":     {},
	"#N/A N/A": {},
	"#NA":      {},
	"-1.#IND":  {},
	"-1.#QNAN": {},
	"-NaN":     {},
	"-nan":     {},
	"1.#IND":   {},
	"1.#QNAN":  {},
	"<NA>":     {},
	"N/A":      {},
	"NA":       {},
	"NULL":     {},
	"NaN":      {},
	"None":     {},
	"n/a":      {},
	"nan":      {},
	"null":     {},
}

// IsMissingToken reports whether a raw CSV cell denotes a missing value.
func IsMissingToken(s string) bool {
	_, ok := missingTokens[s]
	return ok
}

// InferColumn builds a typed column from raw cells. A nil entry in raw is a
// missing cell.
//
// Inference order:
//   - every present cell parses as an integer: int64, or float64 when the
//     column has gaps (integers cannot hold a missing value)
//   - every present cell parses as a float: float64
//   - every present cell is True/False and nothing is missing: bool
//   - a column with no present cells: float64
//   - anything else: object (strings)
//
// Surrounding whitespace is ignored when parsing numbers and booleans; text
// cells keep it.
func InferColumn(name string, raw []*string) *Column {
	var (
		seen     bool
		missing  bool
		allInt   = true
		allFloat = true
		allBool  = true
	)

	for _, p := range raw {
		if p == nil {
			missing = true
			continue
		}
		seen = true
		v := strings.TrimSpace(*p)

		if allInt {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				allInt = false
			}
		}
		if allFloat {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				allFloat = false
			}
		}
		if allBool {
			if _, ok := parseBool(v); !ok {
				allBool = false
			}
		}
	}

	out := make([]any, len(raw))
	switch {
	case !seen:
		return &Column{Name: name, Type: Float64, V: out}

	case allInt && !missing:
		for i, p := range raw {
			n, _ := strconv.ParseInt(strings.TrimSpace(*p), 10, 64)
			out[i] = n
		}
		return &Column{Name: name, Type: Int64, V: out}

	case allInt || allFloat:
		for i, p := range raw {
			if p == nil {
				continue
			}
			f, _ := strconv.ParseFloat(strings.TrimSpace(*p), 64)
			out[i] = f
		}
		return &Column{Name: name, Type: Float64, V: out}

	case allBool && !missing:
		for i, p := range raw {
			b, _ := parseBool(strings.TrimSpace(*p))
			out[i] = b
		}
		return &Column{Name: name, Type: Bool, V: out}

	default:
		for i, p := range raw {
			if p != nil {
				out[i] = *p
			}
		}
		return &Column{Name: name, Type: Object, V: out}
	}
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true":
		return true, true
	case "false":
		return false, true
	default:
		return false, false
	}
}
