package storage

import (
	"fmt"
	"math"

	"github.com/abdulrahmanphy64/yaml-driven-data-pipeline/internal/table"
)

// ColumnType is the backend-neutral type of a destination column. Each
// backend maps it to its own SQL type.
type ColumnType int

const (
	TypeText ColumnType = iota
	TypeBigInt
	TypeDouble
	TypeBool
)

// ColumnSpec describes one destination column. Every column is nullable
// because cleaned tables may still carry missing cells.
type ColumnSpec struct {
	Name string
	Type ColumnType
}

// TableSpec is the destination layout derived from a table.
type TableSpec struct {
	Name    string
	Columns []ColumnSpec
}

// ColumnTypeFor maps a table dtype onto a ColumnType.
func ColumnTypeFor(d table.DType) ColumnType {
	switch d {
	case table.Int64:
		return TypeBigInt
	case table.Float64:
		return TypeDouble
	case table.Bool:
		return TypeBool
	default:
		return TypeText
	}
}

// SpecFor derives the destination layout for t stored under name.
func SpecFor(name string, t *table.Table) (TableSpec, error) {
	if name == "" {
		return TableSpec{}, fmt.Errorf("table name is empty")
	}
	cols := t.Columns()
	if len(cols) == 0 {
		return TableSpec{}, fmt.Errorf("%s: table has no columns", name)
	}

	spec := TableSpec{Name: name, Columns: make([]ColumnSpec, len(cols))}
	for i, c := range cols {
		spec.Columns[i] = ColumnSpec{Name: c.Name, Type: ColumnTypeFor(c.Type)}
	}
	return spec, nil
}

// ColumnNames returns the column names of s in order.
func (s TableSpec) ColumnNames() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

// Rows converts t into driver arguments, row by row. Missing cells (nil or
// NaN) become nil so they are stored as NULL. Object cells are stringified.
func Rows(t *table.Table) [][]any {
	cols := t.Columns()
	out := make([][]any, t.Rows())
	for i := range out {
		row := make([]any, len(cols))
		for j, c := range cols {
			row[j] = dbValue(c.Type, c.V[i])
		}
		out[i] = row
	}
	return out
}

func dbValue(d table.DType, v any) any {
	if table.IsNull(v) {
		return nil
	}
	switch x := v.(type) {
	case float64:
		if math.IsInf(x, 0) {
			return nil
		}
		return x
	case int64, bool:
		if d == table.Object {
			return table.Format(x)
		}
		return x
	case string:
		return x
	default:
		return table.Format(x)
	}
}
