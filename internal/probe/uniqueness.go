package probe

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/abdulrahmanphy64/yaml-driven-data-pipeline/internal/table"
)

// ColumnStats is the bounded measurement of one sampled column.
type ColumnStats struct {
	Name string
	Type table.DType

	// Present counts sampled rows where the column had a value. It is the
	// denominator for Ratio, not the total row count.
	Present int
	Missing int

	// Distinct is bounded by the per-column cap; Capped reports when the
	// cap was reached.
	Distinct int
	Capped   bool

	// Action is the suggestion made for the column, filled in by Suggest.
	Action string
}

// Ratio is distinct values over present values, 0 for an empty column.
func (c ColumnStats) Ratio() float64 {
	if c.Present == 0 {
		return 0
	}
	return float64(c.Distinct) / float64(c.Present)
}

// Uniqueness holds per-column stats in the sample's column order.
type Uniqueness struct {
	SampledRows int
	Columns     []ColumnStats
}

func measure(t *table.Table) Uniqueness {
	u := Uniqueness{SampledRows: t.Rows(), Columns: make([]ColumnStats, 0, len(t.Columns()))}

	for _, c := range t.Columns() {
		cs := ColumnStats{Name: c.Name, Type: c.Type}
		seen := make(map[string]struct{})

		for _, v := range c.V {
			if table.IsNull(v) {
				cs.Missing++
				continue
			}
			cs.Present++

			if cs.Capped {
				continue
			}
			seen[table.Format(v)] = struct{}{}
			if len(seen) >= distinctCapPerColumn {
				cs.Capped = true
				seen = nil
			}
		}

		if cs.Capped {
			cs.Distinct = distinctCapPerColumn
		} else {
			cs.Distinct = len(seen)
		}
		u.Columns = append(u.Columns, cs)
	}
	return u
}

// WriteReport renders the stats as a table, one row per column in sample
// order.
func (u Uniqueness) WriteReport(w io.Writer) error {
	var b bytes.Buffer
	if u.SampledRows == 0 {
		b.WriteString("uniqueness: no rows sampled\n")
		_, err := w.Write(b.Bytes())
		return err
	}

	fmt.Fprintf(&b, "sampled rows: %d\n", u.SampledRows)

	tw := tablewriter.NewWriter(&b)
	tw.SetHeader([]string{"column", "type", "present", "missing", "unique", "ratio", "capped", "suggestion"})
	tw.SetAutoFormatHeaders(false)
	tw.SetAutoWrapText(false)
	for _, c := range u.Columns {
		tw.Append([]string{
			c.Name,
			string(c.Type),
			strconv.Itoa(c.Present),
			strconv.Itoa(c.Missing),
			strconv.Itoa(c.Distinct),
			fmt.Sprintf("%.1f%%", c.Ratio()*100),
			strconv.FormatBool(c.Capped),
			c.Action,
		})
	}
	tw.Render()

	_, err := w.Write(b.Bytes())
	return err
}
