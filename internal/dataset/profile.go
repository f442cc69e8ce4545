package dataset

import (
	"github.com/montanaflynn/stats"
)

// ColumnProfile summarises one numeric column.
type ColumnProfile struct {
	Column  string  `json:"column"`
	Count   int     `json:"count"`
	Missing int     `json:"missing"`
	Mean    float64 `json:"mean"`
	Median  float64 `json:"median"`
	StdDev  float64 `json:"stdDev"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// Preview is the first rows of a table plus its numeric profile.
type Preview struct {
	Rows    int              `json:"rows"`
	Columns []string         `json:"columns"`
	Head    []map[string]any `json:"head"`
	Profile []ColumnProfile  `json:"profile"`
}

// NewPreview returns the first n rows and the profile of t.
func NewPreview(t *Table, n int) *Preview {
	return &Preview{
		Rows:    t.Len(),
		Columns: t.Columns(),
		Head:    t.Head(n).Records(),
		Profile: Profile(t),
	}
}

// Profile describes every column whose present cells are all numeric.
// Columns with no present cells are skipped.
func Profile(t *Table) []ColumnProfile {
	var out []ColumnProfile
	for _, col := range t.cols {
		data, missing, ok := numericCells(t.data[col])
		if !ok || len(data) == 0 {
			continue
		}
		p := ColumnProfile{Column: col, Count: len(data), Missing: missing}
		// stats only errors on empty input, which is excluded above.
		p.Mean, _ = stats.Mean(data)
		p.Median, _ = stats.Median(data)
		p.StdDev, _ = stats.StandardDeviationSample(data)
		p.Min, _ = stats.Min(data)
		p.Max, _ = stats.Max(data)
		out = append(out, p)
	}
	return out
}

func numericCells(cells []any) (stats.Float64Data, int, bool) {
	data := make(stats.Float64Data, 0, len(cells))
	missing := 0
	for _, v := range cells {
		switch x := v.(type) {
		case nil:
			missing++
		case float64:
			data = append(data, x)
		default:
			return nil, 0, false
		}
	}
	return data, missing, true
}
