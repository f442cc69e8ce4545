package model

import (
	"fmt"
	"sort"

	"github.com/opensource-finance/fraudguard/internal/domain"
)

// LabelEncoder is a bijection between the category values observed at fit
// time and the integers 0..n-1, assigned in sorted order.
type LabelEncoder struct {
	classes []string
	index   map[string]int
}

// FitLabelEncoder learns the distinct values of values.
func FitLabelEncoder(values []string) *LabelEncoder {
	index := make(map[string]int)
	for _, v := range values {
		index[v] = 0
	}
	classes := make([]string, 0, len(index))
	for v := range index {
		classes = append(classes, v)
	}
	sort.Strings(classes)
	for i, c := range classes {
		index[c] = i
	}
	return &LabelEncoder{classes: classes, index: index}
}

// Encode returns the code of v, or ErrUnseenCategory.
func (e *LabelEncoder) Encode(v string) (int, error) {
	code, ok := e.index[v]
	if !ok {
		return 0, fmt.Errorf("%w: %q", domain.ErrUnseenCategory, v)
	}
	return code, nil
}

// Decode returns the category for code.
func (e *LabelEncoder) Decode(code int) (string, bool) {
	if code < 0 || code >= len(e.classes) {
		return "", false
	}
	return e.classes[code], true
}

// Classes returns the fitted categories in code order.
func (e *LabelEncoder) Classes() []string {
	return append([]string(nil), e.classes...)
}

// Len returns the number of fitted categories.
func (e *LabelEncoder) Len() int { return len(e.classes) }
