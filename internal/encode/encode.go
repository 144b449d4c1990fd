// Package encode turns categorical columns into model-ready numbers.
package encode

import (
	"fmt"
	"sort"

	"github.com/abdulrahmanphy64/yaml-driven-data-pipeline/internal/stats"
	"github.com/abdulrahmanphy64/yaml-driven-data-pipeline/internal/table"
)

// missingLabel is the text a missing cell takes before label encoding, so
// gaps become a class of their own.
const missingLabel = "nan"

// LabelEncoder maps each distinct value's text to an integer code. Classes
// are sorted, so the code of a value is its rank among the distinct texts.
type LabelEncoder struct {
	Classes []string
	index   map[string]int64
}

// Fit learns the classes of c.
func (e *LabelEncoder) Fit(c *table.Column) {
	seen := map[string]struct{}{}
	e.Classes = e.Classes[:0]
	for _, v := range c.V {
		s := labelText(v)
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		e.Classes = append(e.Classes, s)
	}
	sort.Strings(e.Classes)

	e.index = make(map[string]int64, len(e.Classes))
	for i, s := range e.Classes {
		e.index[s] = int64(i)
	}
}

// Transform encodes c with the learned classes. The result keeps c's name
// and has dtype int64. A value not seen during Fit is an error.
func (e *LabelEncoder) Transform(c *table.Column) (*table.Column, error) {
	out := make([]any, c.Len())
	for i, v := range c.V {
		s := labelText(v)
		code, ok := e.index[s]
		if !ok {
			return nil, fmt.Errorf("encode: %q: unseen label %q", c.Name, s)
		}
		out[i] = code
	}
	return table.NewColumn(c.Name, table.Int64, out), nil
}

// FitTransform is Fit followed by Transform.
func (e *LabelEncoder) FitTransform(c *table.Column) (*table.Column, error) {
	e.Fit(c)
	return e.Transform(c)
}

func labelText(v any) string {
	if table.IsNull(v) {
		return missingLabel
	}
	return table.Format(v)
}

// OneHot expands c into one boolean indicator column per distinct
// non-missing value, named "<column>_<value>". Columns come out in sorted
// value order. A row whose cell is missing is false in every indicator.
func OneHot(c *table.Column) []*table.Column {
	var values []any
	for _, v := range stats.Unique(c.V) {
		if v != nil {
			values = append(values, v)
		}
	}
	sort.SliceStable(values, func(i, j int) bool { return stats.Less(values[i], values[j]) })

	out := make([]*table.Column, len(values))
	for k, val := range values {
		cells := make([]any, c.Len())
		for i, v := range c.V {
			cells[i] = !table.IsNull(v) && v == val
		}
		out[k] = table.NewColumn(fmt.Sprintf("%s_%s", c.Name, table.Format(val)), table.Bool, cells)
	}
	return out
}
