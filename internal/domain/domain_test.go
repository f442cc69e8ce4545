package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestParseDomainID(t *testing.T) {
	tests := []struct {
		in   string
		want DomainID
	}{
		{"CreditCard", CreditCard},
		{"Credit Card", CreditCard},
		{"credit-card", CreditCard},
		{"loan_application", LoanApplication},
		{" Mobile Transaction ", MobileTransaction},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDomainID(tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}

	if _, err := ParseDomainID("Insurance"); !errors.Is(err, ErrUnknownDomain) {
		t.Errorf("expected ErrUnknownDomain, got %v", err)
	}
}

func TestActionForScore(t *testing.T) {
	tests := []struct {
		score int
		want  Action
	}{
		{0, ActionApprove},
		{40, ActionApprove},
		{41, ActionManualReview},
		{75, ActionManualReview},
		{76, ActionBlock},
		{100, ActionBlock},
	}
	for _, tt := range tests {
		if got := ActionForScore(tt.score); got != tt.want {
			t.Errorf("score %d: expected %s, got %s", tt.score, tt.want, got)
		}
	}
}

func TestStringify(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{1.0, "1"},
		{0.5, "0.5"},
		{true, "True"},
		{false, "False"},
		{" Fraud ", " Fraud "},
		{7, "7"},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := Stringify(tt.in); got != tt.want {
			t.Errorf("Stringify(%v): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestTransactionInputFloat(t *testing.T) {
	in := TransactionInput{"amt": 12.5, "flag": true, "txt": "3", "cat": "travel"}

	if v, ok := in.Float("amt"); !ok || v != 12.5 {
		t.Errorf("amt: got %v %v", v, ok)
	}
	if v, ok := in.Float("flag"); !ok || v != 1 {
		t.Errorf("flag: got %v %v", v, ok)
	}
	if v, ok := in.Float("txt"); !ok || v != 3 {
		t.Errorf("txt: got %v %v", v, ok)
	}
	if _, ok := in.Float("cat"); ok {
		t.Error("non-numeric string should not convert")
	}
	if got := in.FloatOr("missing", 1); got != 1 {
		t.Errorf("expected default 1, got %v", got)
	}
}

func TestIsDataError(t *testing.T) {
	if !IsDataError(fmt.Errorf("train: %w", ErrNoFraudFound)) {
		t.Error("wrapped ErrNoFraudFound should be a data error")
	}
	if IsDataError(ErrModelNotFitted) {
		t.Error("ErrModelNotFitted is a precondition violation")
	}
	if ErrNoFraudFound.Error() != "NO FRAUD FOUND in data subset." {
		t.Errorf("unexpected message %q", ErrNoFraudFound.Error())
	}
}

func TestTopFeatures(t *testing.T) {
	m := &Metrics{Importance: map[string]float64{"a": 0.1, "b": 0.5, "c": 0.4}}
	top := m.TopFeatures(2)
	if len(top) != 2 {
		t.Fatalf("expected 2 features, got %d", len(top))
	}
	if top[0].Feature != "b" || top[1].Feature != "c" {
		t.Errorf("unexpected order: %+v", top)
	}
	if all := m.TopFeatures(0); len(all) != 3 {
		t.Errorf("expected all 3 features, got %d", len(all))
	}
}
