package normalize

import (
	"github.com/opensource-finance/fraudguard/internal/dataset"
	"github.com/opensource-finance/fraudguard/internal/domain"
	"github.com/opensource-finance/fraudguard/internal/features"
)

// Match finds, for each internal name in catalog order, the first raw
// column (by position) whose header matches its pattern.
func (c *Catalog) Match(columns []string) []domain.ColumnMapping {
	var out []domain.ColumnMapping
	for _, p := range c.Patterns {
		for _, col := range columns {
			if p.re.MatchString(col) {
				out = append(out, domain.ColumnMapping{Internal: p.Internal, Raw: col})
				break
			}
		}
	}
	return out
}

// Normalize renames matched columns to their internal names and drops
// everything else. The result holds only matched internal names, in
// catalog order. One raw column may feed several internal names.
func Normalize(t *dataset.Table, c *Catalog) (*dataset.Table, []string, error) {
	if c == nil {
		return nil, nil, domain.ErrUnknownPatternCatalog
	}
	mapping := c.Match(t.Columns())
	names := make([]string, len(mapping))
	values := make([][]any, len(mapping))
	for i, m := range mapping {
		names[i] = m.Internal
		values[i] = t.Column(m.Raw)
	}
	out, err := dataset.New(names, values)
	if err != nil {
		return nil, nil, err
	}
	return out, names, nil
}

// Report normalizes t, derives ratio features from the result and lists
// the capabilities unlocked by the columns found.
func Report(t *dataset.Table, c *Catalog) (*domain.CapabilityReport, *dataset.Table, error) {
	normalized, found, err := Normalize(t, c)
	if err != nil {
		return nil, nil, err
	}
	derived := features.SafeRatioFeatures(normalized)

	var extra []string
	for _, col := range derived.Columns() {
		if !normalized.Has(col) {
			extra = append(extra, col)
		}
	}

	report := &domain.CapabilityReport{
		Domain:               c.Domain,
		InternalColumnsFound: found,
		Mapping:              c.Match(t.Columns()),
		DerivedColumns:       extra,
		Capabilities:         c.CheckCapabilities(found),
	}
	if report.InternalColumnsFound == nil {
		report.InternalColumnsFound = []string{}
	}
	return report, derived, nil
}
