// Package stats provides the descriptive statistics the reporter and the
// cleaning stages rely on. Functions take cells as stored in a table column
// ([]any) or plain float64 slices, and ignore missing cells.
package stats

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/abdulrahmanphy64/yaml-driven-data-pipeline/internal/table"
)

// ErrEmpty is returned when a statistic needs at least one present value.
var ErrEmpty = errors.New("stats: no non-missing values")

// Median returns the median of xs, averaging the two middle values for an
// even count. xs is not modified.
func Median(xs []float64) (float64, error) {
	if len(xs) == 0 {
		return math.NaN(), ErrEmpty
	}
	cp := append([]float64(nil), xs...)
	sort.Float64s(cp)

	mid := len(cp) / 2
	if len(cp)%2 == 1 {
		return cp[mid], nil
	}
	return (cp[mid-1] + cp[mid]) / 2, nil
}

// Summary is the min/max/mean/population-std of a numeric sample.
type Summary struct {
	Min, Max, Mean, Std float64
	Count               int
}

// Describe summarizes xs. Std is the population standard deviation (divides
// by n). An empty sample yields NaN fields and ErrEmpty.
func Describe(xs []float64) (Summary, error) {
	if len(xs) == 0 {
		nan := math.NaN()
		return Summary{Min: nan, Max: nan, Mean: nan, Std: nan}, ErrEmpty
	}
	mean, std := stat.PopMeanStdDev(xs, nil)
	return Summary{
		Min:   floats.Min(xs),
		Max:   floats.Max(xs),
		Mean:  mean,
		Std:   std,
		Count: len(xs),
	}, nil
}

// ValueCount is one entry of a frequency table.
type ValueCount struct {
	Value any
	Count int
}

// missingKey stands in for every missing cell when cells are used as map
// keys (NaN never equals itself).
type missingKey struct{}

func key(v any) any {
	if table.IsNull(v) {
		return missingKey{}
	}
	return v
}

// ValueCounts counts the non-missing cells, most frequent first. Equal counts
// keep first-appearance order.
func ValueCounts(values []any) []ValueCount {
	idx := map[any]int{}
	var out []ValueCount
	for _, v := range values {
		if table.IsNull(v) {
			continue
		}
		if i, ok := idx[v]; ok {
			out[i].Count++
			continue
		}
		idx[v] = len(out)
		out = append(out, ValueCount{Value: v, Count: 1})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// Unique returns the distinct cells in first-appearance order. Missing cells
// collapse into a single nil entry, mirroring how a frame's unique() keeps
// one NaN.
func Unique(values []any) []any {
	seen := map[any]struct{}{}
	var out []any
	for _, v := range values {
		k := key(v)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		if _, miss := k.(missingKey); miss {
			out = append(out, nil)
			continue
		}
		out = append(out, v)
	}
	return out
}

// Mode returns the most frequent non-missing cell. When several cells tie,
// the smallest one (by Less) wins, so the result does not depend on row
// order.
func Mode(values []any) (any, error) {
	counts := ValueCounts(values)
	if len(counts) == 0 {
		return nil, ErrEmpty
	}
	best := counts[0]
	for _, vc := range counts[1:] {
		if vc.Count < best.Count {
			break
		}
		if Less(vc.Value, best.Value) {
			best = vc
		}
	}
	return best.Value, nil
}

// Less orders cells: numbers numerically, strings lexically, false before
// true. Cells of different kinds order numbers < bools < strings.
func Less(a, b any) bool {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra < rb
	}
	switch ra {
	case 0:
		fa, _ := table.AsFloat(a)
		fb, _ := table.AsFloat(b)
		return fa < fb
	case 1:
		return !a.(bool) && b.(bool)
	default:
		return toString(a) < toString(b)
	}
}

func rank(v any) int {
	switch v.(type) {
	case int64, float64, int:
		return 0
	case bool:
		return 1
	default:
		return 2
	}
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return table.Format(v)
}
