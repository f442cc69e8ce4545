// Package normalize maps arbitrary uploaded headers onto a domain's
// internal column names and reports which detection capabilities the
// matched columns unlock.
package normalize

import (
	"fmt"
	"regexp"

	"github.com/google/cel-go/cel"

	"github.com/opensource-finance/fraudguard/internal/domain"
)

// Pattern binds an internal column name to a case-insensitive regular
// expression searched anywhere in a raw header.
type Pattern struct {
	Internal string `json:"internal"`
	Expr     string `json:"expr"`

	re *regexp.Regexp
}

// Capability is a detection capability unlocked when Requires, a CEL
// predicate over the list variable found, evaluates to true.
type Capability struct {
	Label    string `json:"label"`
	Requires string `json:"requires"`

	prg cel.Program
}

// Catalog is the ordered pattern table and capability set of one domain.
type Catalog struct {
	Domain       domain.DomainID `json:"domain"`
	Patterns     []Pattern       `json:"patterns"`
	Baseline     string          `json:"baseline"`
	Capabilities []Capability    `json:"capabilities"`
}

var catalogs = map[domain.DomainID]*Catalog{
	domain.CreditCard: mustCatalog(&Catalog{
		Domain: domain.CreditCard,
		Patterns: []Pattern{
			{Internal: "amt", Expr: `amt|amount|val`},
			{Internal: "lat", Expr: `^lat|cust_lat`},
			{Internal: "long", Expr: `^long|cust_long`},
			{Internal: "merch_lat", Expr: `merch.*lat`},
			{Internal: "merch_long", Expr: `merch.*long`},
			{Internal: "time", Expr: `time|date|trans_ts`},
			{Internal: "category", Expr: `cat|merchant_type`},
		},
		Baseline: "Amount Outlier Detection",
		Capabilities: []Capability{
			{Label: "Geospatial Analysis (Haversine)", Requires: `'lat' in found && 'merch_lat' in found`},
			{Label: "Velocity/Time Analysis", Requires: `'time' in found`},
		},
	}),
	domain.MobileTransaction: mustCatalog(&Catalog{
		Domain: domain.MobileTransaction,
		Patterns: []Pattern{
			{Internal: "amount", Expr: `amount|amt`},
			{Internal: "oldbalanceOrg", Expr: `old.*orig`},
			{Internal: "newbalanceOrig", Expr: `new.*orig`},
			{Internal: "oldbalanceDest", Expr: `old.*dest`},
			{Internal: "newbalanceDest", Expr: `new.*dest`},
			{Internal: "type", Expr: `type|txn_type`},
		},
		Baseline: "Large Transfer Detection",
		Capabilities: []Capability{
			{Label: "Origin Account Takeover Logic", Requires: `'oldbalanceOrg' in found && 'newbalanceOrig' in found`},
			{Label: "Mule Account Detection", Requires: `'oldbalanceDest' in found`},
		},
	}),
	domain.LoanApplication: mustCatalog(&Catalog{
		Domain: domain.LoanApplication,
		Patterns: []Pattern{
			{Internal: "credit", Expr: `amt_credit|loan_amt`},
			{Internal: "annuity", Expr: `amt_annuity|payment`},
			{Internal: "goods_price", Expr: `goods_price`},
			{Internal: "days", Expr: `days_decision`},
		},
		Baseline: "Credit Limit Analysis",
		Capabilities: []Capability{
			{Label: "Affordability Ratio Analysis", Requires: `'credit' in found && 'annuity' in found`},
			{Label: "Over-financing Detection", Requires: `'goods_price' in found`},
		},
	}),
}

// CatalogFor returns the pattern catalog of id.
func CatalogFor(id domain.DomainID) (*Catalog, error) {
	c, ok := catalogs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownPatternCatalog, id)
	}
	return c, nil
}

// CatalogByName resolves a domain identifier or label to its catalog.
func CatalogByName(name string) (*Catalog, error) {
	id, err := domain.ParseDomainID(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownPatternCatalog, name)
	}
	return CatalogFor(id)
}

// Compile builds a catalog from declarative patterns and predicates.
func Compile(c *Catalog) (*Catalog, error) {
	out := &Catalog{Domain: c.Domain, Baseline: c.Baseline}
	for _, p := range c.Patterns {
		re, err := regexp.Compile("(?i)" + p.Expr)
		if err != nil {
			return nil, fmt.Errorf("pattern %s: %w", p.Internal, err)
		}
		out.Patterns = append(out.Patterns, Pattern{Internal: p.Internal, Expr: p.Expr, re: re})
	}
	for _, capability := range c.Capabilities {
		prg, err := compilePredicate(capability.Requires)
		if err != nil {
			return nil, fmt.Errorf("capability %q: %w", capability.Label, err)
		}
		out.Capabilities = append(out.Capabilities, Capability{Label: capability.Label, Requires: capability.Requires, prg: prg})
	}
	return out, nil
}

func mustCatalog(c *Catalog) *Catalog {
	compiled, err := Compile(c)
	if err != nil {
		panic(fmt.Sprintf("normalize: catalog %s: %v", c.Domain, err))
	}
	return compiled
}
