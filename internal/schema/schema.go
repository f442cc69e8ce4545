// Package schema is the registry of per-domain feature catalogs.
package schema

import (
	"fmt"

	"github.com/opensource-finance/fraudguard/internal/domain"
)

var registry = map[domain.DomainID]domain.DomainConfig{
	domain.CreditCard: {
		ID:          domain.CreditCard,
		Target:      "is_fraud",
		DropColumns: []string{"trans_date_trans_time", "cc_num", "unix_time", "trans_num"},
		Numerical: []domain.NumericFeature{
			{Name: "amt", Min: 0, Max: 5000, Step: 10},
			{Name: "lat", Min: 20, Max: 50, Step: 0.1},
			{Name: "long", Min: -125, Max: -65, Step: 0.1},
			{Name: "city_pop", Min: 1000, Max: 1000000, Step: 1000},
			{Name: "merch_lat", Min: 20, Max: 50, Step: 0.1},
			{Name: "merch_long", Min: -125, Max: -65, Step: 0.1},
		},
		Categorical: []string{"category", "gender", "job"},
		Flags:       []string{},
	},
	domain.LoanApplication: {
		ID:          domain.LoanApplication,
		Target:      "NAME_CONTRACT_STATUS",
		DropColumns: []string{"SK_ID_CURR", "SK_ID_PREV"},
		Numerical: []domain.NumericFeature{
			{Name: "AMT_CREDIT", Min: 10000, Max: 2000000, Step: 5000},
			{Name: "AMT_ANNUITY", Min: 1000, Max: 100000, Step: 500},
			{Name: "AMT_GOODS_PRICE", Min: 10000, Max: 2000000, Step: 5000},
			{Name: "DAYS_DECISION", Min: -3000, Max: 0, Step: 1},
			{Name: "CNT_PAYMENT", Min: 6, Max: 60, Step: 6},
		},
		Categorical: []string{"NAME_CONTRACT_TYPE", "NAME_CLIENT_TYPE"},
		Flags:       []string{"NFLAG_INSURED_ON_APPROVAL"},
	},
	domain.MobileTransaction: {
		ID:     domain.MobileTransaction,
		Target: "isFraud",
		// isFlaggedFraud leaks the target.
		DropColumns: []string{"nameOrig", "nameDest", "isFlaggedFraud"},
		Numerical: []domain.NumericFeature{
			{Name: "amount", Min: 0, Max: 1000000, Step: 1000},
			{Name: "oldbalanceOrg", Min: 0, Max: 1000000, Step: 1000},
			{Name: "newbalanceOrig", Min: 0, Max: 1000000, Step: 1000},
			{Name: "oldbalanceDest", Min: 0, Max: 1000000, Step: 1000},
			{Name: "newbalanceDest", Min: 0, Max: 1000000, Step: 1000},
			{Name: "step", Min: 1, Max: 744, Step: 1},
		},
		Categorical: []string{"type"},
		Flags:       []string{},
	},
}

// Get returns a copy of the configuration for id.
func Get(id domain.DomainID) (*domain.DomainConfig, error) {
	cfg, ok := registry[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownDomain, id)
	}
	return clone(cfg), nil
}

// Lookup resolves a domain identifier or display label and returns its
// configuration.
func Lookup(name string) (*domain.DomainConfig, error) {
	id, err := domain.ParseDomainID(name)
	if err != nil {
		return nil, err
	}
	return Get(id)
}

// All returns every configuration in display order.
func All() []*domain.DomainConfig {
	out := make([]*domain.DomainConfig, 0, len(domain.Domains))
	for _, id := range domain.Domains {
		cfg, _ := Get(id)
		out = append(out, cfg)
	}
	return out
}

func clone(c domain.DomainConfig) *domain.DomainConfig {
	c.DropColumns = append([]string(nil), c.DropColumns...)
	c.Numerical = append([]domain.NumericFeature(nil), c.Numerical...)
	c.Categorical = append([]string(nil), c.Categorical...)
	c.Flags = append([]string{}, c.Flags...)
	return &c
}
