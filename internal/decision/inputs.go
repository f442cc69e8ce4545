package decision

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/opensource-finance/fraudguard/internal/domain"
)

// LoanInput is the loan pathway's view of a transaction. Credit and goods
// price default to 1 when absent so ratios stay finite.
type LoanInput struct {
	Credit       float64
	Annuity      float64
	GoodsPrice   float64
	DaysDecision float64
}

// LoanInputFrom reads AMT_CREDIT, AMT_ANNUITY, AMT_GOODS_PRICE and
// DAYS_DECISION.
func LoanInputFrom(in domain.TransactionInput) LoanInput {
	return LoanInput{
		Credit:       in.FloatOr("AMT_CREDIT", 1),
		Annuity:      in.FloatOr("AMT_ANNUITY", 0),
		GoodsPrice:   in.FloatOr("AMT_GOODS_PRICE", 1),
		DaysDecision: in.FloatOr("DAYS_DECISION", 0),
	}
}

// CardInput is the credit card pathway's view of a transaction.
type CardInput struct {
	Lat       float64
	Long      float64
	MerchLat  float64
	MerchLong float64
	Amount    float64
	Category  string
}

// CardInputFrom reads lat, long, merch_lat, merch_long, amt and category.
// Missing coordinates and amount are 0; a missing category is "unknown".
func CardInputFrom(in domain.TransactionInput) CardInput {
	category, ok := in.String("category")
	if !ok {
		category = "unknown"
	}
	return CardInput{
		Lat:       in.FloatOr("lat", 0),
		Long:      in.FloatOr("long", 0),
		MerchLat:  in.FloatOr("merch_lat", 0),
		MerchLong: in.FloatOr("merch_long", 0),
		Amount:    in.FloatOr("amt", 0),
		Category:  category,
	}
}

// MobileInput is the mobile money pathway's view of a transaction.
type MobileInput struct {
	OldBalance float64
	NewBalance float64
	Amount     float64
}

// MobileInputFrom reads oldbalanceOrg, newbalanceOrig and amount.
func MobileInputFrom(in domain.TransactionInput) MobileInput {
	return MobileInput{
		OldBalance: in.FloatOr("oldbalanceOrg", 0),
		NewBalance: in.FloatOr("newbalanceOrig", 0),
		Amount:     in.FloatOr("amount", 0),
	}
}

// drained reports an origin account emptied by the transaction.
func (in MobileInput) drained() bool {
	return in.OldBalance > 0 && in.NewBalance == 0
}

// mismatched reports balances where |(old - amount) - new| exceeds the
// tolerance. Finite balances are compared as decimals so cents do not drift.
// A NaN or Inf falls back to float arithmetic, where NaN never exceeds it.
func (in MobileInput) mismatched() bool {
	for _, v := range []float64{in.OldBalance, in.NewBalance, in.Amount} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return math.Abs(in.OldBalance-in.Amount-in.NewBalance) > 1
		}
	}
	gap := decimal.NewFromFloat(in.OldBalance).
		Sub(decimal.NewFromFloat(in.Amount)).
		Sub(decimal.NewFromFloat(in.NewBalance)).
		Abs()
	return gap.GreaterThan(balanceTolerance)
}
