// Package profile computes a descriptive profile of a CSV dataset and renders
// it as a plain-text report.
//
// A Reporter owns its table read-only. Each query (DatasetMetadata,
// ColumnSummary, NumericalSummary, CategoricalSummary, SampleRows) is
// independent and recomputed on every call; Render and GenerateReport combine
// them into the five report sections.
package profile

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"

	"github.com/abdulrahmanphy64/yaml-driven-data-pipeline/internal/stats"
	"github.com/abdulrahmanphy64/yaml-driven-data-pipeline/internal/table"
)

const (
	// DefaultDataPath is where New reads from when given an empty path.
	DefaultDataPath = "data/raw/titanic.csv"
	// DefaultReportPath is where GenerateReport writes when given an empty path.
	DefaultReportPath = "artifacts/explore_dataset.txt"

	// SampleSize is the number of leading rows shown by SampleRows.
	SampleSize = 5
	// TopN is the number of most frequent values listed per categorical column.
	TopN = 3
)

// Option configures a Reporter.
type Option func(*options)

type options struct {
	logger *zap.Logger
	read   table.ReadOptions
}

// WithLogger sets the logger used for load and write events.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithReadOptions controls how the source CSV is parsed.
func WithReadOptions(r table.ReadOptions) Option {
	return func(o *options) { o.read = r }
}

// Reporter profiles one table.
type Reporter struct {
	source      string
	sourceBytes int64
	t           *table.Table
	logger      *zap.Logger
}

// New loads the CSV at path (DefaultDataPath when empty). A missing file
// yields an error wrapping fs.ErrNotExist.
func New(path string, opts ...Option) (*Reporter, error) {
	if path == "" {
		path = DefaultDataPath
	}
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat source: %w", err)
	}
	t, err := table.LoadCSV(path, o.read)
	if err != nil {
		return nil, err
	}

	rows, cols := t.Shape()
	o.logger.Debug("dataset loaded",
		zap.String("path", path),
		zap.Int("rows", rows),
		zap.Int("columns", cols),
		zap.String("size", humanize.Bytes(uint64(fi.Size()))),
	)
	return &Reporter{source: path, sourceBytes: fi.Size(), t: t, logger: o.logger}, nil
}

// NewFromTable wraps an already-loaded table. The Reporter does not modify t.
func NewFromTable(t *table.Table, opts ...Option) *Reporter {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Reporter{t: t, logger: o.logger}
}

// Metadata is the dataset shape. SourceBytes is zero when the table was not
// loaded from a file.
type Metadata struct {
	Rows        int
	Columns     int
	SourceBytes int64
}

// DatasetMetadata returns the row and column counts.
func (r *Reporter) DatasetMetadata() Metadata {
	rows, cols := r.t.Shape()
	return Metadata{Rows: rows, Columns: cols, SourceBytes: r.sourceBytes}
}

// ColumnSummary describes one column. Unique counts missing cells as one
// distinct value when any are present.
type ColumnSummary struct {
	Name    string
	Type    table.DType
	Missing int
	Unique  int
}

// ColumnSummary returns one record per column in table order.
func (r *Reporter) ColumnSummary() []ColumnSummary {
	cols := r.t.Columns()
	out := make([]ColumnSummary, 0, len(cols))
	for _, c := range cols {
		out = append(out, ColumnSummary{
			Name:    c.Name,
			Type:    c.Type,
			Missing: c.NullCount(),
			Unique:  len(stats.Unique(c.V)),
		})
	}
	return out
}

// NumericalSummary holds the statistics of an int64 or float64 column over
// its non-missing cells. Std is the population standard deviation. All
// fields are NaN for a column without present values.
type NumericalSummary struct {
	Name string
	Type table.DType
	Min  float64
	Max  float64
	Mean float64
	Std  float64
}

// NumericalSummary covers numeric columns only; others are skipped.
func (r *Reporter) NumericalSummary() []NumericalSummary {
	var out []NumericalSummary
	for _, c := range r.t.Columns() {
		if !c.Type.IsNumeric() {
			continue
		}
		// ErrEmpty leaves NaN in every field, which is what the report shows.
		s, _ := stats.Describe(c.Floats())
		out = append(out, NumericalSummary{
			Name: c.Name,
			Type: c.Type,
			Min:  s.Min,
			Max:  s.Max,
			Mean: s.Mean,
			Std:  s.Std,
		})
	}
	return out
}

// CategoricalSummary lists the distinct values of an object column in
// first-seen order. A missing value appears once as nil.
type CategoricalSummary struct {
	Name   string
	Unique int
	Values []any
}

// CategoricalSummary covers object columns only; others are skipped.
func (r *Reporter) CategoricalSummary() []CategoricalSummary {
	var out []CategoricalSummary
	for _, c := range r.t.Columns() {
		if c.Type != table.Object {
			continue
		}
		vals := stats.Unique(c.V)
		out = append(out, CategoricalSummary{Name: c.Name, Unique: len(vals), Values: vals})
	}
	return out
}

// TopValues returns up to n most frequent non-missing values of col,
// descending by count. Equal counts keep first-appearance order.
func (r *Reporter) TopValues(col string, n int) ([]stats.ValueCount, error) {
	c, ok := r.t.Column(col)
	if !ok {
		return nil, fmt.Errorf("%w: %s", table.ErrNoColumn, col)
	}
	vc := stats.ValueCounts(c.V)
	if n >= 0 && len(vc) > n {
		vc = vc[:n]
	}
	return vc, nil
}

// SampleRows returns a copy of the first SampleSize rows.
func (r *Reporter) SampleRows() *table.Table {
	return r.t.Head(SampleSize)
}

// Render writes the full report to w.
func (r *Reporter) Render(w io.Writer) error {
	var b bytes.Buffer

	md := r.DatasetMetadata()
	b.WriteString("==== DATASET METADATA ====\n")
	fmt.Fprintf(&b, "Rows: %d\n", md.Rows)
	fmt.Fprintf(&b, "Columns: %d\n", md.Columns)
	if md.SourceBytes > 0 {
		fmt.Fprintf(&b, "Source: %s (%s)\n", r.source, humanize.Bytes(uint64(md.SourceBytes)))
	}
	b.WriteString("\n")

	b.WriteString("==== COLUMN SUMMARY ====\n")
	for _, cs := range r.ColumnSummary() {
		fmt.Fprintf(&b, "\nColumn: %s\n", cs.Name)
		fmt.Fprintf(&b, "  Type: %s\n", cs.Type)
		fmt.Fprintf(&b, "  Missing: %d\n", cs.Missing)
		fmt.Fprintf(&b, "  Unique Values: %d\n", cs.Unique)
	}
	b.WriteString("\n")

	b.WriteString("==== NUMERICAL SUMMARY ====\n")
	for _, ns := range r.NumericalSummary() {
		fmt.Fprintf(&b, "\nColumn: %s\n", ns.Name)
		fmt.Fprintf(&b, "  Min: %s\n", formatBound(ns.Type, ns.Min))
		fmt.Fprintf(&b, "  Max: %s\n", formatBound(ns.Type, ns.Max))
		fmt.Fprintf(&b, "  Mean: %.2f\n", ns.Mean)
		fmt.Fprintf(&b, "  Std Dev: %.2f\n", ns.Std)
	}
	b.WriteString("\n")

	b.WriteString("==== CATEGORICAL SUMMARY ====\n")
	for _, cs := range r.CategoricalSummary() {
		fmt.Fprintf(&b, "\nColumn: %s\n", cs.Name)
		fmt.Fprintf(&b, "  Unique Values: %d\n", cs.Unique)

		top, err := r.TopValues(cs.Name, TopN)
		if err != nil {
			return err
		}
		b.WriteString("  Top Values:\n")
		for _, vc := range top {
			fmt.Fprintf(&b, "    %s: %d\n", table.Format(vc.Value), vc.Count)
		}
	}
	b.WriteString("\n")

	b.WriteString("==== SAMPLE ROWS (HEAD) ====\n")
	renderSample(&b, r.SampleRows())

	_, err := w.Write(b.Bytes())
	return err
}

// GenerateReport renders the report into path (DefaultReportPath when
// empty), creating the parent directory. I/O errors are returned wrapped.
func (r *Reporter) GenerateReport(path string) error {
	if path == "" {
		path = DefaultReportPath
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := r.Render(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write report: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close report: %w", err)
	}

	r.logger.Info("report written", zap.String("path", path))
	return nil
}

// formatBound prints min/max in the column's own type: integers without a
// fractional part, floats in shortest form.
func formatBound(d table.DType, f float64) string {
	if d == table.Int64 && !math.IsNaN(f) {
		return strconv.FormatInt(int64(f), 10)
	}
	return table.FormatFloat(f)
}

// renderSample draws the sample rows as an ASCII grid with a leading row
// index column.
func renderSample(w io.Writer, t *table.Table) {
	names := t.Names()
	header := make([]string, 0, len(names)+1)
	header = append(header, "")
	header = append(header, names...)

	rows := make([][]string, 0, t.Rows())
	for i := 0; i < t.Rows(); i++ {
		line := make([]string, 0, len(names)+1)
		line = append(line, strconv.Itoa(i))
		for _, v := range t.Row(i) {
			line = append(line, table.Format(v))
		}
		rows = append(rows, line)
	}

	tw := tablewriter.NewWriter(w)
	tw.SetAutoFormatHeaders(false)
	tw.SetAutoWrapText(false)
	tw.SetHeader(header)
	tw.AppendBulk(rows)
	tw.Render()
}
