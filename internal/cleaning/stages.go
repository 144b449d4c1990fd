package cleaning

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/abdulrahmanphy64/yaml-driven-data-pipeline/internal/config"
	"github.com/abdulrahmanphy64/yaml-driven-data-pipeline/internal/encode"
	"github.com/abdulrahmanphy64/yaml-driven-data-pipeline/internal/scale"
	"github.com/abdulrahmanphy64/yaml-driven-data-pipeline/internal/stats"
	"github.com/abdulrahmanphy64/yaml-driven-data-pipeline/internal/table"
)

// dropStage removes the listed columns. Names the table lacks are ignored.
type dropStage struct {
	columns []string
	logger  *zap.Logger
}

func (s *dropStage) Name() string { return config.StageDrop }

func (s *dropStage) skipped() bool { return len(s.columns) == 0 }

func (s *dropStage) Apply(t *table.Table) (*table.Table, error) {
	removed := t.Drop(s.columns...)
	if len(removed) < len(s.columns) {
		s.logger.Debug("drop: some columns were not present",
			zap.Strings("requested", s.columns),
			zap.Strings("removed", removed),
		)
	}
	return t, nil
}

// columnFunc applies one method to one column of t.
type columnFunc func(t *table.Table, c *table.Column, m config.Method) error

// strategyStage walks a section's strategy map in document order.
type strategyStage struct {
	name    string
	section *config.Section
	apply   columnFunc
	strict  bool
	logger  *zap.Logger
}

func (s *strategyStage) Name() string { return s.name }

func (s *strategyStage) skipped() bool { return !s.section.Active() }

func (s *strategyStage) Apply(t *table.Table) (*table.Table, error) {
	if !s.section.Active() {
		return t, nil
	}

	for _, a := range s.section.Strategy {
		if a.Method.Stage() != s.name {
			if s.strict {
				return nil, fmt.Errorf("%s: %w %q", a.Column, ErrUnsupportedMethod, a.Raw)
			}
			s.logger.Warn("unsupported method; column left untouched",
				zap.String("stage", s.name),
				zap.String("column", a.Column),
				zap.String("method", a.Raw),
			)
			continue
		}

		c, ok := t.Column(a.Column)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, a.Column)
		}
		if err := s.apply(t, c, a.Method); err != nil {
			return nil, fmt.Errorf("%s %s: %w", a.Method, a.Column, err)
		}
	}
	return t, nil
}

// fillMissing replaces missing cells with the column median or mode. A
// column without any present value is left as is.
func fillMissing(t *table.Table, c *table.Column, m config.Method) error {
	if m == config.MethodMedian && !c.Type.IsNumeric() {
		return fmt.Errorf("%q (%s): %w", c.Name, c.Type, table.ErrNotNumeric)
	}
	if c.NullCount() == 0 {
		return nil
	}

	var (
		fill any
		typ  = c.Type
		err  error
	)
	switch m {
	case config.MethodMedian:
		fill, err = stats.Median(c.Floats())
		// A median is fractional in general, so the column becomes float64.
		typ = table.Float64
	case config.MethodMode:
		fill, err = stats.Mode(c.V)
	}
	if errors.Is(err, stats.ErrEmpty) {
		return nil
	}
	if err != nil {
		return err
	}

	out := make([]any, c.Len())
	for i, v := range c.V {
		switch {
		case table.IsNull(v):
			out[i] = fill
		case typ == table.Float64:
			f, _ := table.AsFloat(v)
			out[i] = f
		default:
			out[i] = v
		}
	}
	return t.Replace(c.Name, table.NewColumn(c.Name, typ, out))
}

// encodeColumn label-encodes in place or expands c into one-hot columns
// appended at the end of the table.
func encodeColumn(t *table.Table, c *table.Column, m config.Method) error {
	switch m {
	case config.MethodLabel:
		var le encode.LabelEncoder
		out, err := le.FitTransform(c)
		if err != nil {
			return err
		}
		return t.Replace(c.Name, out)
	case config.MethodOneHot:
		indicators := encode.OneHot(c)
		t.Drop(c.Name)
		for _, ic := range indicators {
			if err := t.Append(ic); err != nil {
				return err
			}
		}
	}
	return nil
}

// scaleColumn standardizes or min-max scales c from its own statistics.
func scaleColumn(t *table.Table, c *table.Column, m config.Method) error {
	var s scale.Scaler
	switch m {
	case config.MethodStandard:
		s = &scale.Standard{}
	case config.MethodMinMax:
		s = &scale.MinMax{}
	default:
		return nil
	}
	out, err := scale.FitTransform(s, c)
	if err != nil {
		return err
	}
	return t.Replace(c.Name, out)
}
