// Package probe drafts a cleaning rules document from a sample of a dataset.
//
// Only a bounded prefix of the input is read (default 20KB), so probing a
// large file stays fast. The sample is cut at the last complete line, parsed
// with the same inference the pipeline uses, and every column is measured for
// missing values and uniqueness. Those measurements drive a small set of
// deterministic heuristics:
//
//   - columns missing in more than half the sampled rows are dropped
//   - text or integer columns whose values are (nearly) all distinct are
//     treated as identifiers and dropped
//   - remaining numeric columns with gaps are filled with the median, other
//     columns with gaps with the mode
//   - text columns are label encoded when binary or high-cardinality, one-hot
//     encoded otherwise
//   - numeric columns with more than two distinct values are scaled
//
// The result is a starting point meant to be reviewed, not a final config.
package probe

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/abdulrahmanphy64/yaml-driven-data-pipeline/internal/config"
	"github.com/abdulrahmanphy64/yaml-driven-data-pipeline/internal/table"
)

const (
	// DefaultMaxBytes is the sample size read from the start of the input.
	DefaultMaxBytes = 20000

	// distinctCapPerColumn bounds distinct counting so high-cardinality
	// columns cannot grow the probe's memory without limit.
	distinctCapPerColumn = 10000
)

// ErrNoHeader is returned when the sample does not contain a header line.
var ErrNoHeader = errors.New("probe: sample has no header")

// Options tunes sampling and the suggestion heuristics. Zero values select
// the defaults noted on each field.
type Options struct {
	// MaxBytes is how much of the input is sampled. Default DefaultMaxBytes.
	MaxBytes int

	// Read controls CSV parsing of the sample.
	Read table.ReadOptions

	// MaxMissingRatio drops columns missing in a larger share of sampled
	// rows. Default 0.5.
	MaxMissingRatio float64

	// IDRatio is the distinct/present ratio above which text and integer
	// columns are treated as identifiers. Default 0.9.
	IDRatio float64

	// MinIDRows is the number of present values a column needs before it
	// can be called an identifier. Default 5.
	MinIDRows int

	// MaxOneHot is the largest cardinality one-hot encoded; wider text
	// columns are label encoded. Default 10.
	MaxOneHot int

	// Scaling is the scaler suggested for numeric columns. Default
	// config.MethodStandard.
	Scaling config.Method
}

func (o Options) withDefaults() Options {
	if o.MaxBytes <= 0 {
		o.MaxBytes = DefaultMaxBytes
	}
	if o.MaxMissingRatio <= 0 {
		o.MaxMissingRatio = 0.5
	}
	if o.IDRatio <= 0 {
		o.IDRatio = 0.9
	}
	if o.MinIDRows <= 0 {
		o.MinIDRows = 5
	}
	if o.MaxOneHot <= 0 {
		o.MaxOneHot = 10
	}
	if o.Scaling != config.MethodMinMax {
		o.Scaling = config.MethodStandard
	}
	return o
}

// Result is what a probe produced.
type Result struct {
	Rules config.Rules

	// Truncated reports that the input was longer than the sample.
	Truncated bool

	Stats Uniqueness
}

// ProbeFile samples the CSV at path and suggests rules for it.
func ProbeFile(path string, opt Options) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open sample: %w", err)
	}
	defer f.Close()
	return Probe(f, opt)
}

// Probe samples r and suggests rules for the sampled rows.
func Probe(r io.Reader, opt Options) (Result, error) {
	opt = opt.withDefaults()

	sample, truncated, err := Sample(r, opt.MaxBytes)
	if err != nil {
		return Result{}, err
	}
	if len(bytes.TrimSpace(sample)) == 0 {
		return Result{}, ErrNoHeader
	}

	t, err := table.ReadCSV(bytes.NewReader(sample), opt.Read)
	if err != nil {
		return Result{}, fmt.Errorf("parse csv sample: %w", err)
	}

	rules, st := Suggest(t, opt)
	return Result{Rules: rules, Truncated: truncated, Stats: st}, nil
}

// Sample reads at most maxBytes from r. When the input is longer, the sample
// is cut after its last newline so no half-written record reaches the parser.
func Sample(r io.Reader, maxBytes int) (sample []byte, truncated bool, err error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	b, err := io.ReadAll(io.LimitReader(r, int64(maxBytes)+1))
	if err != nil {
		return nil, false, fmt.Errorf("read sample: %w", err)
	}
	if len(b) <= maxBytes {
		return b, false, nil
	}

	b = b[:maxBytes]
	if i := bytes.LastIndexByte(b, '\n'); i >= 0 {
		b = b[:i+1]
	}
	return b, true, nil
}

// Suggest measures t and drafts rules for it. It never fails: columns the
// heuristics have no opinion on are simply left out of the document.
func Suggest(t *table.Table, opt Options) (config.Rules, Uniqueness) {
	opt = opt.withDefaults()
	st := measure(t)

	var (
		drop    []string
		missing config.StrategyMap
		encode  config.StrategyMap
		scale   config.StrategyMap
	)
	assign := func(m *config.StrategyMap, col string, method config.Method) {
		*m = append(*m, config.Assignment{Column: col, Method: method, Raw: method.String()})
	}

	for i := range st.Columns {
		cs := &st.Columns[i]

		if reason := dropReason(*cs, st.SampledRows, opt); reason != "" {
			cs.Action = "drop (" + reason + ")"
			drop = append(drop, cs.Name)
			continue
		}

		var actions []string
		if cs.Missing > 0 {
			method := config.MethodMode
			if cs.Type.IsNumeric() {
				method = config.MethodMedian
			}
			assign(&missing, cs.Name, method)
			actions = append(actions, method.String())
		}

		switch {
		case cs.Type == table.Object:
			method := config.MethodOneHot
			if cs.Distinct <= 2 || cs.Distinct > opt.MaxOneHot {
				method = config.MethodLabel
			}
			assign(&encode, cs.Name, method)
			actions = append(actions, method.String())

		case cs.Type.IsNumeric() && cs.Distinct > 2:
			assign(&scale, cs.Name, opt.Scaling)
			actions = append(actions, opt.Scaling.String())
		}

		cs.Action = joinActions(actions)
	}

	return config.Rules{
		DropColumns:   drop,
		MissingValues: section(missing),
		Encoding:      section(encode),
		Scaling:       section(scale),
	}, st
}

func dropReason(cs ColumnStats, rows int, opt Options) string {
	if rows == 0 {
		return ""
	}
	if ratio := float64(cs.Missing) / float64(rows); ratio > opt.MaxMissingRatio {
		return fmt.Sprintf("%.0f%% missing", ratio*100)
	}
	if cs.Type != table.Object && cs.Type != table.Int64 {
		return ""
	}
	if cs.Present >= opt.MinIDRows && cs.Ratio() > opt.IDRatio {
		return "identifier"
	}
	return ""
}

func section(s config.StrategyMap) *config.Section {
	if len(s) == 0 {
		return nil
	}
	return &config.Section{Strategy: s}
}

func joinActions(a []string) string {
	if len(a) == 0 {
		return "keep"
	}
	return strings.Join(a, ", ")
}
