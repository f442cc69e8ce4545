// Package dataset holds tabular transaction data in memory.
package dataset

import (
	"fmt"

	"github.com/opensource-finance/fraudguard/internal/domain"
)

// Table is an immutable, column-major table. Cells hold float64, bool,
// string or nil for missing values. Operations return new tables that may
// share column storage with their source, so callers must not mutate the
// slices returned by Column.
type Table struct {
	cols []string
	data map[string][]any
	n    int
}

// New builds a table from named columns. Every column must have the same
// length.
func New(cols []string, values [][]any) (*Table, error) {
	if len(cols) != len(values) {
		return nil, fmt.Errorf("dataset: %d column names for %d columns", len(cols), len(values))
	}
	t := &Table{data: make(map[string][]any, len(cols))}
	for i, name := range cols {
		if _, dup := t.data[name]; dup {
			return nil, fmt.Errorf("dataset: duplicate column %q", name)
		}
		if i == 0 {
			t.n = len(values[i])
		} else if len(values[i]) != t.n {
			return nil, fmt.Errorf("dataset: column %q has %d rows, want %d", name, len(values[i]), t.n)
		}
		t.cols = append(t.cols, name)
		t.data[name] = values[i]
	}
	return t, nil
}

// FromRecords builds a table from row maps using the given column order.
// Keys absent from a record become missing cells.
func FromRecords(cols []string, records []map[string]any) *Table {
	t := &Table{cols: append([]string(nil), cols...), data: make(map[string][]any, len(cols)), n: len(records)}
	for _, c := range cols {
		col := make([]any, len(records))
		for i, r := range records {
			col[i] = r[c]
		}
		t.data[c] = col
	}
	return t
}

// Columns returns the column names in table order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.cols...)
}

// Len returns the number of rows.
func (t *Table) Len() int { return t.n }

// Has reports whether the column exists.
func (t *Table) Has(col string) bool {
	_, ok := t.data[col]
	return ok
}

// Column returns the cells of col, or nil if absent.
func (t *Table) Column(col string) []any {
	return t.data[col]
}

// Floats returns col converted to float64. Missing or non-numeric cells
// become 0.
func (t *Table) Floats(col string) []float64 {
	cells := t.data[col]
	out := make([]float64, len(cells))
	for i, v := range cells {
		if f, ok := domain.ToFloat(v); ok {
			out[i] = f
		}
	}
	return out
}

// Strings returns col rendered as strings.
func (t *Table) Strings(col string) []string {
	cells := t.data[col]
	out := make([]string, len(cells))
	for i, v := range cells {
		out[i] = domain.Stringify(v)
	}
	return out
}

// Select keeps the listed columns in the listed order. Unknown names are
// skipped.
func (t *Table) Select(cols ...string) *Table {
	out := &Table{data: make(map[string][]any, len(cols)), n: t.n}
	for _, c := range cols {
		v, ok := t.data[c]
		if !ok {
			continue
		}
		if _, dup := out.data[c]; dup {
			continue
		}
		out.cols = append(out.cols, c)
		out.data[c] = v
	}
	return out
}

// Drop removes the listed columns. Absent names are ignored.
func (t *Table) Drop(cols ...string) *Table {
	skip := make(map[string]bool, len(cols))
	for _, c := range cols {
		skip[c] = true
	}
	keep := make([]string, 0, len(t.cols))
	for _, c := range t.cols {
		if !skip[c] {
			keep = append(keep, c)
		}
	}
	return t.Select(keep...)
}

// WithColumn returns a table with col added at the end, or replaced in
// place if it already exists.
func (t *Table) WithColumn(col string, values []any) (*Table, error) {
	if len(t.cols) > 0 && len(values) != t.n {
		return nil, fmt.Errorf("dataset: column %q has %d rows, want %d", col, len(values), t.n)
	}
	out := t.Select(t.cols...)
	if len(t.cols) == 0 {
		out.n = len(values)
	}
	if !out.Has(col) {
		out.cols = append(out.cols, col)
	}
	out.data[col] = values
	return out, nil
}

// FillMissing replaces every nil cell with v.
func (t *Table) FillMissing(v any) *Table {
	out := &Table{cols: t.Columns(), data: make(map[string][]any, len(t.cols)), n: t.n}
	for _, c := range t.cols {
		src := t.data[c]
		dst := make([]any, len(src))
		for i, cell := range src {
			if cell == nil {
				dst[i] = v
			} else {
				dst[i] = cell
			}
		}
		out.data[c] = dst
	}
	return out
}

// Head returns the first n rows.
func (t *Table) Head(n int) *Table {
	if n > t.n {
		n = t.n
	}
	if n < 0 {
		n = 0
	}
	out := &Table{cols: t.Columns(), data: make(map[string][]any, len(t.cols)), n: n}
	for _, c := range t.cols {
		out.data[c] = t.data[c][:n]
	}
	return out
}

// Records returns the rows as maps.
func (t *Table) Records() []map[string]any {
	out := make([]map[string]any, t.n)
	for i := range out {
		row := make(map[string]any, len(t.cols))
		for _, c := range t.cols {
			row[c] = t.data[c][i]
		}
		out[i] = row
	}
	return out
}

// ValueCounts counts the string form of each cell in col.
func (t *Table) ValueCounts(col string) map[string]int {
	counts := make(map[string]int)
	for _, s := range t.Strings(col) {
		counts[s]++
	}
	return counts
}
