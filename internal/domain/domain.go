// Package domain defines the core interfaces and types for FraudGuard.
package domain

import (
	"fmt"
	"strings"
)

// DomainID identifies one of the supported transaction contexts.
type DomainID string

const (
	CreditCard        DomainID = "CreditCard"
	LoanApplication   DomainID = "LoanApplication"
	MobileTransaction DomainID = "MobileTransaction"
)

// Domains lists every supported domain in display order.
var Domains = []DomainID{CreditCard, LoanApplication, MobileTransaction}

// Label returns the human readable domain name.
func (d DomainID) Label() string {
	switch d {
	case CreditCard:
		return "Credit Card"
	case LoanApplication:
		return "Loan Application"
	case MobileTransaction:
		return "Mobile Transaction"
	}
	return string(d)
}

// Valid reports whether d is one of the supported domains.
func (d DomainID) Valid() bool {
	for _, known := range Domains {
		if d == known {
			return true
		}
	}
	return false
}

// ParseDomainID resolves an identifier or display label.
// Matching ignores case, spaces, hyphens and underscores.
func ParseDomainID(s string) (DomainID, error) {
	key := canonical(s)
	for _, d := range Domains {
		if key == canonical(string(d)) || key == canonical(d.Label()) {
			return d, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDomain, s)
}

func canonical(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '_':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(s)))
}

// NumericFeature describes a numerical column and the range offered to
// interactive controls.
type NumericFeature struct {
	Name string  `json:"name"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Step float64 `json:"step"`
}

// DomainConfig is the declarative schema of one domain.
// It drives preprocessing and the generation of input controls.
type DomainConfig struct {
	ID          DomainID         `json:"id"`
	Target      string           `json:"target"`
	DropColumns []string         `json:"dropColumns"`
	Numerical   []NumericFeature `json:"numerical"`
	Categorical []string         `json:"categorical"`
	Flags       []string         `json:"flags"`
}

// NumericalNames returns the numerical feature names in declaration order.
func (c *DomainConfig) NumericalNames() []string {
	names := make([]string, len(c.Numerical))
	for i, f := range c.Numerical {
		names[i] = f.Name
	}
	return names
}

// FeatureNames returns numerical, categorical and flag columns in that order.
func (c *DomainConfig) FeatureNames() []string {
	names := c.NumericalNames()
	names = append(names, c.Categorical...)
	return append(names, c.Flags...)
}

// IsCategorical reports whether col is a declared categorical column.
func (c *DomainConfig) IsCategorical(col string) bool {
	for _, name := range c.Categorical {
		if name == col {
			return true
		}
	}
	return false
}

// Validate checks that the target is disjoint from every other column set.
func (c *DomainConfig) Validate() error {
	if c.Target == "" {
		return fmt.Errorf("domain %s: empty target", c.ID)
	}
	for _, col := range append(c.FeatureNames(), c.DropColumns...) {
		if col == c.Target {
			return fmt.Errorf("domain %s: target %q also declared as feature or drop column", c.ID, c.Target)
		}
	}
	return nil
}
