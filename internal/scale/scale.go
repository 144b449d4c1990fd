// Package scale rescales numeric columns. Each scaler is fitted on one
// column's own data; missing cells are ignored while fitting and stay
// missing in the output. Bool columns are read as 0/1, and every output
// column is float64.
package scale

import (
	"fmt"

	"github.com/abdulrahmanphy64/yaml-driven-data-pipeline/internal/stats"
	"github.com/abdulrahmanphy64/yaml-driven-data-pipeline/internal/table"
)

// Scaler is a fitted column transform.
type Scaler interface {
	Fit(c *table.Column) error
	Transform(c *table.Column) (*table.Column, error)
}

// Standard maps x to (x - mean) / std, with the population std. A column with
// zero variance maps every present cell to 0.
type Standard struct {
	Mean, Std float64
}

// Fit implements Scaler.
func (s *Standard) Fit(c *table.Column) error {
	sum, err := describe(c)
	if err != nil {
		return err
	}
	s.Mean, s.Std = sum.Mean, sum.Std
	return nil
}

// Transform implements Scaler.
func (s *Standard) Transform(c *table.Column) (*table.Column, error) {
	std := s.Std
	if std == 0 {
		std = 1
	}
	return apply(c, func(x float64) float64 { return (x - s.Mean) / std })
}

// MinMax maps x to (x - min) / (max - min). A constant column maps every
// present cell to 0.
type MinMax struct {
	Min, Max float64
}

// Fit implements Scaler.
func (m *MinMax) Fit(c *table.Column) error {
	sum, err := describe(c)
	if err != nil {
		return err
	}
	m.Min, m.Max = sum.Min, sum.Max
	return nil
}

// Transform implements Scaler.
func (m *MinMax) Transform(c *table.Column) (*table.Column, error) {
	rng := m.Max - m.Min
	if rng == 0 {
		rng = 1
	}
	return apply(c, func(x float64) float64 { return (x - m.Min) / rng })
}

// FitTransform fits s on c and returns the rescaled column.
func FitTransform(s Scaler, c *table.Column) (*table.Column, error) {
	if err := s.Fit(c); err != nil {
		return nil, err
	}
	return s.Transform(c)
}

func describe(c *table.Column) (stats.Summary, error) {
	if err := scalable(c); err != nil {
		return stats.Summary{}, err
	}
	xs := make([]float64, 0, c.Len())
	for _, v := range c.V {
		if x, ok := cellFloat(v); ok {
			xs = append(xs, x)
		}
	}
	// An all-missing column fits to NaN and transforms to all-missing.
	sum, _ := stats.Describe(xs)
	return sum, nil
}

func apply(c *table.Column, f func(float64) float64) (*table.Column, error) {
	if err := scalable(c); err != nil {
		return nil, err
	}
	out := make([]any, c.Len())
	for i, v := range c.V {
		x, ok := cellFloat(v)
		if !ok {
			continue
		}
		out[i] = f(x)
	}
	return table.NewColumn(c.Name, table.Float64, out), nil
}

// scalable accepts numeric columns and bool columns such as one-hot
// indicators.
func scalable(c *table.Column) error {
	if c.Type.IsNumeric() || c.Type == table.Bool {
		return nil
	}
	return fmt.Errorf("scale %q (%s): %w", c.Name, c.Type, table.ErrNotNumeric)
}

// cellFloat reads a bool cell as 0 or 1 and any other cell as table.AsFloat
// does.
func cellFloat(v any) (float64, bool) {
	if b, ok := v.(bool); ok {
		if b {
			return 1, true
		}
		return 0, true
	}
	return table.AsFloat(v)
}
