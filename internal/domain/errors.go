package domain

import "errors"

// Data errors. These are user-actionable: the caller may retry with
// different data.
var (
	ErrSchemaMismatch   = errors.New("target column missing from dataset")
	ErrNoFraudFound     = errors.New("NO FRAUD FOUND in data subset.")
	ErrInsufficientData = errors.New("not enough rows per class to stratify")
	ErrDatasetNotFound  = errors.New("dataset not found")
	ErrEmptyDataset     = errors.New("dataset is empty")
)

// Precondition violations. These indicate caller misuse.
var (
	ErrUnknownDomain         = errors.New("unknown domain")
	ErrUnknownPatternCatalog = errors.New("unknown column pattern catalog")
	ErrModelNotFitted        = errors.New("model not fitted")
	ErrUnknownModelKind      = errors.New("unknown model kind")
	ErrSessionNotFound       = errors.New("session not found")
	ErrNotFound              = errors.New("not found")
)

// ErrUnseenCategory is returned by label encoders for values not observed
// at fit time. Inference substitutes 0.
var ErrUnseenCategory = errors.New("unseen category")

// IsDataError reports whether err is a user-actionable data error.
func IsDataError(err error) bool {
	for _, target := range []error{
		ErrSchemaMismatch,
		ErrNoFraudFound,
		ErrInsufficientData,
		ErrDatasetNotFound,
		ErrEmptyDataset,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
