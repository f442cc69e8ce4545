package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// TransactionInput is a single hypothetical transaction keyed by feature
// name. Values are numbers, strings or booleans.
type TransactionInput map[string]any

// Float returns the numeric value of key. Booleans map to 0/1 and numeric
// strings are parsed. The second result is false when the key is absent or
// not numeric.
func (in TransactionInput) Float(key string) (float64, bool) {
	v, ok := in[key]
	if !ok || v == nil {
		return 0, false
	}
	return ToFloat(v)
}

// FloatOr returns the numeric value of key or def when absent.
func (in TransactionInput) FloatOr(key string, def float64) float64 {
	if f, ok := in.Float(key); ok {
		return f
	}
	return def
}

// String returns the string form of key and whether it was present.
func (in TransactionInput) String(key string) (string, bool) {
	v, ok := in[key]
	if !ok || v == nil {
		return "", false
	}
	return Stringify(v), true
}

// Clone returns a shallow copy.
func (in TransactionInput) Clone() TransactionInput {
	out := make(TransactionInput, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// ToFloat converts a scalar cell value to float64.
func ToFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// Stringify renders a cell value the way tabular data prints it:
// shortest float form, True/False for booleans.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		if x {
			return "True"
		}
		return "False"
	}
	return fmt.Sprint(v)
}

// Action is the recommendation derived from a rule score.
type Action string

const (
	ActionApprove      Action = "APPROVE"
	ActionManualReview Action = "MANUAL REVIEW"
	ActionBlock        Action = "BLOCK"
)

// ActionForScore maps a capped score to its action.
func ActionForScore(score int) Action {
	switch {
	case score > 75:
		return ActionBlock
	case score > 40:
		return ActionManualReview
	default:
		return ActionApprove
	}
}

// Factor is one rule that fired, in evaluation order.
type Factor struct {
	Label  string `json:"label"`
	Detail string `json:"detail"`
}

// ScoreResult is the rule engine's verdict on a single transaction.
type ScoreResult struct {
	Score        int      `json:"score"`
	DecisionType string   `json:"decisionType"`
	Factors      []Factor `json:"factors"`
	Action       Action   `json:"action"`
}

// HasFactor reports whether a factor with the given label fired.
func (r ScoreResult) HasFactor(label string) bool {
	for _, f := range r.Factors {
		if f.Label == label {
			return true
		}
	}
	return false
}

// CapabilityReport lists the internal columns found by the normalizer and
// the detection capabilities they unlock.
type CapabilityReport struct {
	Domain               DomainID        `json:"domain"`
	InternalColumnsFound []string        `json:"internalColumnsFound"`
	Mapping              []ColumnMapping `json:"mapping"`
	DerivedColumns       []string        `json:"derivedColumns,omitempty"`
	Capabilities         []string        `json:"capabilities"`
}

// ColumnMapping records which raw column fed an internal name.
type ColumnMapping struct {
	Internal string `json:"internal"`
	Raw      string `json:"raw"`
}
