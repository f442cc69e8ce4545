package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/fraudguard/internal/dataset"
	"github.com/opensource-finance/fraudguard/internal/domain"
)

func table(t *testing.T, cols ...string) *dataset.Table {
	t.Helper()
	values := make([][]any, len(cols))
	for i := range cols {
		values[i] = []any{float64(i)}
	}
	tbl, err := dataset.New(cols, values)
	require.NoError(t, err)
	return tbl
}

func TestFirstMatchWins(t *testing.T) {
	c, err := CatalogFor(domain.CreditCard)
	require.NoError(t, err)

	out, found, err := Normalize(table(t, "amount_usd", "amt"), c)
	require.NoError(t, err)

	assert.Equal(t, []string{"amt"}, found)
	assert.Equal(t, []string{"amt"}, out.Columns())
	// value comes from amount_usd, the first positional match
	assert.Equal(t, []any{0.0}, out.Column("amt"))
}

func TestUnmatchedColumnsDropped(t *testing.T) {
	c, err := CatalogFor(domain.MobileTransaction)
	require.NoError(t, err)

	out, found, err := Normalize(table(t, "nameOrig", "Amount", "OldBalanceOrig", "newBalanceOrig", "zzz"), c)
	require.NoError(t, err)

	assert.Equal(t, []string{"amount", "oldbalanceOrg", "newbalanceOrig"}, found)
	assert.Equal(t, found, out.Columns())
	assert.False(t, out.Has("zzz"))
	assert.False(t, out.Has("nameOrig"))
}

func TestCaseInsensitiveSearch(t *testing.T) {
	c, err := CatalogFor(domain.LoanApplication)
	require.NoError(t, err)

	_, found, err := Normalize(table(t, "SK_ID_CURR", "AMT_CREDIT", "AMT_ANNUITY", "AMT_GOODS_PRICE", "DAYS_DECISION"), c)
	require.NoError(t, err)
	assert.Equal(t, []string{"credit", "annuity", "goods_price", "days"}, found)
}

func TestOneRawColumnFeedsSeveralNames(t *testing.T) {
	c, err := CatalogFor(domain.CreditCard)
	require.NoError(t, err)

	// "category_date" matches both time and category
	out, found, err := Normalize(table(t, "category_date"), c)
	require.NoError(t, err)
	assert.Equal(t, []string{"time", "category"}, found)
	assert.Equal(t, found, out.Columns(), "every found name has an output column")
	assert.Equal(t, out.Column("time"), out.Column("category"))
}

func TestCheckCapabilities(t *testing.T) {
	tests := []struct {
		domain domain.DomainID
		found  []string
		want   []string
	}{
		{domain.CreditCard, nil, []string{"Amount Outlier Detection"}},
		{domain.CreditCard, []string{"amt", "lat", "merch_lat", "time"},
			[]string{"Amount Outlier Detection", "Geospatial Analysis (Haversine)", "Velocity/Time Analysis"}},
		{domain.CreditCard, []string{"lat", "long"}, []string{"Amount Outlier Detection"}},
		{domain.MobileTransaction, []string{"oldbalanceOrg", "newbalanceOrig", "oldbalanceDest"},
			[]string{"Large Transfer Detection", "Origin Account Takeover Logic", "Mule Account Detection"}},
		{domain.LoanApplication, []string{"credit", "annuity"},
			[]string{"Credit Limit Analysis", "Affordability Ratio Analysis"}},
		{domain.LoanApplication, []string{"goods_price"},
			[]string{"Credit Limit Analysis", "Over-financing Detection"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.domain), func(t *testing.T) {
			got, err := CheckCapabilities(tt.domain, tt.found)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnknownCatalog(t *testing.T) {
	_, err := CatalogFor("Insurance")
	assert.ErrorIs(t, err, domain.ErrUnknownPatternCatalog)

	_, err = CatalogByName("Insurance")
	assert.ErrorIs(t, err, domain.ErrUnknownPatternCatalog)

	_, err = CheckCapabilities("Insurance", nil)
	assert.ErrorIs(t, err, domain.ErrUnknownPatternCatalog)

	_, _, err = Normalize(table(t, "amt"), nil)
	assert.ErrorIs(t, err, domain.ErrUnknownPatternCatalog)
}

func TestCompileRejectsBadPredicate(t *testing.T) {
	_, err := Compile(&Catalog{
		Domain:       "Test",
		Baseline:     "Base",
		Capabilities: []Capability{{Label: "Broken", Requires: `size(found)`}},
	})
	assert.Error(t, err)

	_, err = Compile(&Catalog{Domain: "Test", Patterns: []Pattern{{Internal: "x", Expr: `(`}}})
	assert.Error(t, err)
}

func TestReportDerivesRatios(t *testing.T) {
	c, err := CatalogByName("Loan Application")
	require.NoError(t, err)

	tbl, err := dataset.New(
		[]string{"LOAN_AMT", "monthly_payment", "GOODS_PRICE"},
		[][]any{{1000.0}, {100.0}, {999.0}},
	)
	require.NoError(t, err)

	report, derived, err := Report(tbl, c)
	require.NoError(t, err)

	assert.Equal(t, domain.LoanApplication, report.Domain)
	assert.Equal(t, []string{"credit", "annuity", "goods_price"}, report.InternalColumnsFound)
	assert.Equal(t, []string{"credit_goods_ratio", "payment_rate"}, report.DerivedColumns)
	assert.Equal(t, []string{"Credit Limit Analysis", "Affordability Ratio Analysis", "Over-financing Detection"}, report.Capabilities)
	assert.Equal(t, domain.ColumnMapping{Internal: "credit", Raw: "LOAN_AMT"}, report.Mapping[0])
	assert.InDelta(t, 1.0, derived.Floats("credit_goods_ratio")[0], 1e-12)
}
