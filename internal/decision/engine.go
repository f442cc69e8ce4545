// Package decision implements the rule-based scorecard that runs beside
// the learned model. Each domain has one fixed pathway of checks.
package decision

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/opensource-finance/fraudguard/internal/domain"
	"github.com/opensource-finance/fraudguard/internal/features"
)

// Decision type labels.
const (
	DefaultDecisionType = "Fraud Risk"
	LoanDecisionType    = "Rejection Probability"
	CardDecisionType    = "Fraud Probability"
	MobileDecisionType  = "Account Compromise Risk"
)

// MaxScore caps the accumulated score.
const MaxScore = 100

// categoryLimits are the simulated historical averages per merchant
// category. Unlisted categories use defaultCategoryLimit.
var categoryLimits = map[string]float64{
	"grocery": 200,
	"travel":  3000,
	"tech":    1500,
}

const defaultCategoryLimit = 500

var balanceTolerance = decimal.NewFromInt(1)

// scorecard accumulates points and the factors that produced them.
type scorecard struct {
	score   int
	factors []domain.Factor
}

func (s *scorecard) add(points int, label, detail string) {
	s.score += points
	s.factors = append(s.factors, domain.Factor{Label: label, Detail: detail})
}

// AnalyzeTransaction scores in against the pathway of the named domain.
// Names that do not resolve to a domain score 0 as "Fraud Risk".
func AnalyzeTransaction(in domain.TransactionInput, domainName string) domain.ScoreResult {
	id, err := domain.ParseDomainID(domainName)
	if err != nil {
		return finish(DefaultDecisionType, &scorecard{})
	}
	return Analyze(id, in)
}

// Analyze scores in against the pathway of id.
func Analyze(id domain.DomainID, in domain.TransactionInput) domain.ScoreResult {
	switch id {
	case domain.LoanApplication:
		return finish(LoanDecisionType, scoreLoan(LoanInputFrom(in)))
	case domain.CreditCard:
		return finish(CardDecisionType, scoreCard(CardInputFrom(in)))
	case domain.MobileTransaction:
		return finish(MobileDecisionType, scoreMobile(MobileInputFrom(in)))
	}
	return finish(DefaultDecisionType, &scorecard{})
}

func finish(decisionType string, s *scorecard) domain.ScoreResult {
	score := min(max(s.score, 0), MaxScore)
	factors := s.factors
	if factors == nil {
		factors = []domain.Factor{}
	}
	return domain.ScoreResult{
		Score:        score,
		DecisionType: decisionType,
		Factors:      factors,
		Action:       domain.ActionForScore(score),
	}
}

// scoreLoan checks payment burden, over-financing and rapid
// re-application.
func scoreLoan(in LoanInput) *scorecard {
	s := &scorecard{}

	ratio := 0.0
	if in.Credit > 0 {
		ratio = in.Annuity / in.Credit
	}
	if ratio > 0.15 {
		s.add(30, "High Payment Burden", fmt.Sprintf("Payment is %.1f%% of loan", ratio*100))
	}

	if in.Credit > in.GoodsPrice*1.2 {
		s.add(30, "Over-Financing", "Loan > 120% of Goods Value")
	}

	if in.DaysDecision > -5 && in.DaysDecision < 0 {
		s.add(25, "Rapid Re-application", "Applied within last 5 days")
	}
	return s
}

// scoreCard checks customer to merchant distance and the amount against
// the category average.
func scoreCard(in CardInput) *scorecard {
	s := &scorecard{}

	dist := features.Haversine(in.Lat, in.Long, in.MerchLat, in.MerchLong)
	switch {
	case dist > 800:
		s.add(50, "Impossible Travel", fmt.Sprintf("Merchant is %dkm away", int(dist)))
	case dist > 100:
		s.add(20, "Unusual Distance", fmt.Sprintf("Merchant is %dkm away", int(dist)))
	}

	limit, ok := categoryLimits[in.Category]
	if !ok {
		limit = defaultCategoryLimit
	}
	if in.Amount > limit {
		s.add(30, "Amount Spikes", fmt.Sprintf("$%s exceeds %s avg", strconv.FormatFloat(in.Amount, 'f', -1, 64), in.Category))
	}
	return s
}

// scoreMobile checks for a drained origin account and for balances that do
// not reconcile with the amount moved.
func scoreMobile(in MobileInput) *scorecard {
	s := &scorecard{}

	if in.drained() {
		s.add(60, "Wallet Drain", "Account completely emptied")
	}
	if in.mismatched() {
		s.add(40, "Balance Mismatch", "Server-side math error detected")
	}
	return s
}

// ActionForProbability maps a model probability to the banding shown next
// to model scores: above 0.8 block, above 0.5 review.
func ActionForProbability(p float64) domain.Action {
	switch {
	case p > 0.8:
		return domain.ActionBlock
	case p > 0.5:
		return domain.ActionManualReview
	default:
		return domain.ActionApprove
	}
}
