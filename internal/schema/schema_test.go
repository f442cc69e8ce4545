package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/fraudguard/internal/domain"
)

func TestRegistryCoversEveryDomain(t *testing.T) {
	for _, id := range domain.Domains {
		cfg, err := Get(id)
		require.NoError(t, err, id)
		assert.Equal(t, id, cfg.ID)
		assert.NotEmpty(t, cfg.Numerical)
	}
	assert.Len(t, All(), len(domain.Domains))
}

func TestTargetDisjointFromFeatures(t *testing.T) {
	for _, cfg := range All() {
		require.NoError(t, cfg.Validate(), cfg.ID)
		for _, col := range append(cfg.FeatureNames(), cfg.DropColumns...) {
			assert.NotEqual(t, cfg.Target, col, "domain %s", cfg.ID)
		}
	}
}

func TestUnknownDomain(t *testing.T) {
	_, err := Get("Insurance")
	assert.ErrorIs(t, err, domain.ErrUnknownDomain)

	_, err = Lookup("Crypto Exchange")
	assert.ErrorIs(t, err, domain.ErrUnknownDomain)
}

func TestLookupByLabel(t *testing.T) {
	cfg, err := Lookup("Mobile Transaction")
	require.NoError(t, err)
	assert.Equal(t, "isFraud", cfg.Target)
	assert.Contains(t, cfg.DropColumns, "isFlaggedFraud")
	assert.Equal(t, []string{"amount", "oldbalanceOrg", "newbalanceOrig", "oldbalanceDest", "newbalanceDest", "step"}, cfg.NumericalNames())
}

func TestGetReturnsCopy(t *testing.T) {
	a, err := Get(domain.LoanApplication)
	require.NoError(t, err)
	a.Categorical[0] = "mutated"
	a.Numerical[0].Max = -1

	b, err := Get(domain.LoanApplication)
	require.NoError(t, err)
	assert.Equal(t, "NAME_CONTRACT_TYPE", b.Categorical[0])
	assert.Equal(t, 2000000.0, b.Numerical[0].Max)
}

func TestFeatureOrder(t *testing.T) {
	cfg, err := Get(domain.LoanApplication)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"AMT_CREDIT", "AMT_ANNUITY", "AMT_GOODS_PRICE", "DAYS_DECISION", "CNT_PAYMENT",
		"NAME_CONTRACT_TYPE", "NAME_CLIENT_TYPE",
		"NFLAG_INSURED_ON_APPROVAL",
	}, cfg.FeatureNames())
}
