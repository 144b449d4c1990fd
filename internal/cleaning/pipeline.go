// Package cleaning applies a rules document to a table in four fixed stages:
// drop_columns, missing_values, encoding, scaling.
//
// Every stage is skipped when its section is absent. Stages never edit
// column cells in place; they swap whole columns on a private snapshot of
// the table, so a stage that fails leaves the previous stage's output intact
// and available through StageError.Partial.
package cleaning

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/abdulrahmanphy64/yaml-driven-data-pipeline/internal/config"
	"github.com/abdulrahmanphy64/yaml-driven-data-pipeline/internal/metrics"
	"github.com/abdulrahmanphy64/yaml-driven-data-pipeline/internal/table"
)

var (
	// ErrEmptyPath is returned by ValidatePath and New for an empty source
	// path.
	ErrEmptyPath = errors.New("invalid file path")
	// ErrNotCSV is returned by ValidatePath and New when the source path
	// lacks a .csv extension.
	ErrNotCSV = errors.New("file must be csv")
	// ErrColumnNotFound is returned when a strategy names a column the table
	// does not have when its stage runs.
	ErrColumnNotFound = errors.New("column not found")
	// ErrUnsupportedMethod is returned in strict mode for a method that is
	// unknown or belongs to another stage.
	ErrUnsupportedMethod = errors.New("unsupported method")
)

// Stage is one step of the pipeline. Apply receives a table it owns
// exclusively and returns the table for the next stage.
type Stage interface {
	Name() string
	Apply(t *table.Table) (*table.Table, error)
}

// StageError reports the stage that failed, the stages that completed before
// it, and the table as those stages left it.
type StageError struct {
	Stage     string
	Completed []string
	Partial   *table.Table
	Err       error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger for stage progress and skipped entries.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithStrictMethods makes unknown or misplaced methods fail the run with
// ErrUnsupportedMethod instead of being skipped with a warning.
func WithStrictMethods(strict bool) Option {
	return func(p *Pipeline) { p.strict = strict }
}

// WithReadOptions controls how New parses the source CSV.
func WithReadOptions(r table.ReadOptions) Option {
	return func(p *Pipeline) { p.read = r }
}

// Pipeline runs the cleaning stages over a loaded table.
type Pipeline struct {
	rules  config.Rules
	t      *table.Table
	logger *zap.Logger
	strict bool
	read   table.ReadOptions
}

// ValidatePath checks that path is non-empty and names a .csv file. It does
// no I/O.
func ValidatePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return ErrEmptyPath
	}
	if !strings.EqualFold(filepath.Ext(path), ".csv") {
		return fmt.Errorf("%w: %s", ErrNotCSV, path)
	}
	return nil
}

// New validates path, loads the CSV it names and binds rules. Path problems
// are reported before the file is touched.
func New(path string, rules config.Rules, opts ...Option) (*Pipeline, error) {
	if err := ValidatePath(path); err != nil {
		return nil, err
	}

	p := newPipeline(rules, opts)
	t, err := table.LoadCSV(path, p.read)
	if err != nil {
		return nil, err
	}
	p.t = t

	rows, cols := t.Shape()
	p.logger.Debug("source loaded", zap.String("path", path), zap.Int("rows", rows), zap.Int("columns", cols))
	return p, nil
}

// NewFromTable binds rules to an already-loaded table. Run never modifies t.
func NewFromTable(t *table.Table, rules config.Rules, opts ...Option) (*Pipeline, error) {
	if t == nil {
		return nil, errors.New("cleaning: nil table")
	}
	p := newPipeline(rules, opts)
	p.t = t
	return p, nil
}

func newPipeline(rules config.Rules, opts []Option) *Pipeline {
	p := &Pipeline{rules: rules, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Table returns the loaded source table.
func (p *Pipeline) Table() *table.Table { return p.t }

// Stages returns the stages in execution order.
func (p *Pipeline) Stages() []Stage {
	return []Stage{
		&dropStage{columns: p.rules.DropColumns, logger: p.logger},
		p.strategyStage(config.StageMissingValues, fillMissing),
		p.strategyStage(config.StageEncoding, encodeColumn),
		p.strategyStage(config.StageScaling, scaleColumn),
	}
}

func (p *Pipeline) strategyStage(name string, apply columnFunc) *strategyStage {
	return &strategyStage{
		name:    name,
		section: p.rules.Section(name),
		apply:   apply,
		strict:  p.strict,
		logger:  p.logger,
	}
}

// Run applies every stage in order and returns the cleaned table. The
// source table is left as loaded, so Run may be called again.
//
// On failure the error is a *StageError.
func (p *Pipeline) Run() (*table.Table, error) {
	rows, cols := p.t.Shape()
	metrics.IncCounter(metrics.RowsTotal, float64(rows), metrics.Labels{"kind": "input"})
	metrics.IncCounter(metrics.ColumnsTotal, float64(cols), metrics.Labels{"kind": "input"})

	cur := p.t
	var completed []string
	for _, st := range p.Stages() {
		start := time.Now()

		if sk, ok := st.(interface{ skipped() bool }); ok && sk.skipped() {
			metrics.RecordStage(st.Name(), "skipped", time.Since(start))
			p.logger.Debug("stage skipped", zap.String("stage", st.Name()))
			completed = append(completed, st.Name())
			continue
		}

		next, err := st.Apply(cur.Snapshot())
		d := time.Since(start)
		if err != nil {
			metrics.RecordStage(st.Name(), "error", d)
			p.logger.Error("stage failed", zap.String("stage", st.Name()), zap.Error(err))
			return nil, &StageError{Stage: st.Name(), Completed: completed, Partial: cur, Err: err}
		}
		metrics.RecordStage(st.Name(), "ok", d)

		r, c := next.Shape()
		p.logger.Info("stage complete",
			zap.String("stage", st.Name()),
			zap.Int("rows", r),
			zap.Int("columns", c),
			zap.Duration("duration", d),
		)
		cur = next
		completed = append(completed, st.Name())
	}

	rows, cols = cur.Shape()
	metrics.IncCounter(metrics.RowsTotal, float64(rows), metrics.Labels{"kind": "output"})
	metrics.IncCounter(metrics.ColumnsTotal, float64(cols), metrics.Labels{"kind": "output"})
	return cur, nil
}
