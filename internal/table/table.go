// Package table holds the in-memory, column-major dataset shared by the
// profiling reporter and the cleaning pipeline.
//
// A Table is an ordered list of named columns. Every column holds exactly
// Rows() values; cells are one of nil (missing), int64, float64, bool or
// string. A float64 NaN is treated as missing as well, so that numeric
// columns can carry gaps after arithmetic.
//
// Ownership: a Table is not safe for concurrent use. The component that loads
// it owns it; stages hand it from one to the next.
package table

import (
	"errors"
	"fmt"
	"math"
)

// DType is the declared type of a column, named after the pandas dtypes the
// datasets are usually described with.
type DType string

const (
	Int64   DType = "int64"
	Float64 DType = "float64"
	Bool    DType = "bool"
	Object  DType = "object"
)

// IsNumeric reports whether the dtype is int64 or float64.
func (d DType) IsNumeric() bool { return d == Int64 || d == Float64 }

var (
	// ErrLength is returned when a column does not match the table row count.
	ErrLength = errors.New("table: column length does not match row count")
	// ErrDuplicateColumn is returned when a column name is already present.
	ErrDuplicateColumn = errors.New("table: duplicate column")
	// ErrNoColumn is returned by operations that require an existing column.
	ErrNoColumn = errors.New("table: no such column")
	// ErrNotNumeric is returned when arithmetic is requested on a column
	// whose dtype is not int64 or float64.
	ErrNotNumeric = errors.New("table: column is not numeric")
)

// Column is a named, homogeneous sequence of cells.
type Column struct {
	Name string
	Type DType
	V    []any
}

// NewColumn builds a column from already-typed cells.
func NewColumn(name string, typ DType, values []any) *Column {
	return &Column{Name: name, Type: typ, V: values}
}

// Len returns the number of cells.
func (c *Column) Len() int { return len(c.V) }

// IsNull reports whether cell i is missing.
func (c *Column) IsNull(i int) bool { return IsNull(c.V[i]) }

// NullCount returns the number of missing cells.
func (c *Column) NullCount() int {
	n := 0
	for _, v := range c.V {
		if IsNull(v) {
			n++
		}
	}
	return n
}

// Floats returns the non-missing cells of a numeric column as float64, in
// row order. Non-numeric cells are skipped.
func (c *Column) Floats() []float64 {
	out := make([]float64, 0, len(c.V))
	for _, v := range c.V {
		if f, ok := AsFloat(v); ok {
			out = append(out, f)
		}
	}
	return out
}

// Clone returns a deep copy of the column.
func (c *Column) Clone() *Column {
	v := make([]any, len(c.V))
	copy(v, c.V)
	return &Column{Name: c.Name, Type: c.Type, V: v}
}

// IsNull reports whether v is a missing cell.
func IsNull(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(t)
	default:
		return false
	}
}

// AsFloat converts a numeric, non-missing cell to float64.
func AsFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int64:
		return float64(t), true
	case float64:
		if math.IsNaN(t) {
			return 0, false
		}
		return t, true
	case int:
		return float64(t), true
	default:
		return 0, false
	}
}

// Table is an ordered collection of equally long columns.
type Table struct {
	cols []*Column
	rows int
}

// New builds a table from columns. All columns must have the same length and
// distinct names.
func New(cols ...*Column) (*Table, error) {
	t := &Table{}
	if len(cols) > 0 {
		t.rows = cols[0].Len()
	}
	for _, c := range cols {
		if err := t.Append(c); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Rows returns the row count.
func (t *Table) Rows() int { return t.rows }

// Shape returns (rows, columns).
func (t *Table) Shape() (int, int) { return t.rows, len(t.cols) }

// Columns returns the columns in table order. The slice is owned by the table.
func (t *Table) Columns() []*Column { return t.cols }

// Names returns the column names in table order.
func (t *Table) Names() []string {
	out := make([]string, len(t.cols))
	for i, c := range t.cols {
		out[i] = c.Name
	}
	return out
}

// Index returns the position of the named column, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.cols {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Column returns the named column.
func (t *Table) Column(name string) (*Column, bool) {
	if i := t.Index(name); i >= 0 {
		return t.cols[i], true
	}
	return nil, false
}

// Append adds c at the end of the table.
func (t *Table) Append(c *Column) error {
	if t.Index(c.Name) >= 0 {
		return fmt.Errorf("%w: %q", ErrDuplicateColumn, c.Name)
	}
	if len(t.cols) > 0 && c.Len() != t.rows {
		return fmt.Errorf("%w: %q has %d values, table has %d rows", ErrLength, c.Name, c.Len(), t.rows)
	}
	if len(t.cols) == 0 {
		t.rows = c.Len()
	}
	t.cols = append(t.cols, c)
	return nil
}

// Replace swaps the named column for c, keeping its position. c may carry a
// different dtype but must keep the row count.
func (t *Table) Replace(name string, c *Column) error {
	i := t.Index(name)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrNoColumn, name)
	}
	if c.Len() != t.rows {
		return fmt.Errorf("%w: %q has %d values, table has %d rows", ErrLength, c.Name, c.Len(), t.rows)
	}
	if c.Name != name && t.Index(c.Name) >= 0 {
		return fmt.Errorf("%w: %q", ErrDuplicateColumn, c.Name)
	}
	t.cols[i] = c
	return nil
}

// Drop removes the named columns and returns the names actually removed.
// Names that are not present are ignored. The row count is unchanged.
func (t *Table) Drop(names ...string) []string {
	if len(names) == 0 {
		return nil
	}
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}

	var removed []string
	kept := t.cols[:0]
	for _, c := range t.cols {
		if _, ok := drop[c.Name]; ok {
			removed = append(removed, c.Name)
			continue
		}
		kept = append(kept, c)
	}
	// Clear the tail so dropped columns can be collected.
	for i := len(kept); i < len(t.cols); i++ {
		t.cols[i] = nil
	}
	t.cols = kept
	return removed
}

// Row returns the cells of row i across all columns.
func (t *Table) Row(i int) []any {
	out := make([]any, len(t.cols))
	for j, c := range t.cols {
		out[j] = c.V[i]
	}
	return out
}

// Head returns a copy of the first n rows (fewer if the table is shorter).
func (t *Table) Head(n int) *Table {
	if n > t.rows {
		n = t.rows
	}
	if n < 0 {
		n = 0
	}
	out := &Table{rows: n, cols: make([]*Column, len(t.cols))}
	for i, c := range t.cols {
		v := make([]any, n)
		copy(v, c.V[:n])
		out.cols[i] = &Column{Name: c.Name, Type: c.Type, V: v}
	}
	return out
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := &Table{rows: t.rows, cols: make([]*Column, len(t.cols))}
	for i, c := range t.cols {
		out.cols[i] = c.Clone()
	}
	return out
}

// Snapshot returns a table that shares t's columns but has its own column
// list, so Append, Replace and Drop on the snapshot leave t untouched. Cells
// are not copied; callers must replace columns rather than edit them.
func (t *Table) Snapshot() *Table {
	cols := make([]*Column, len(t.cols))
	copy(cols, t.cols)
	return &Table{rows: t.rows, cols: cols}
}
