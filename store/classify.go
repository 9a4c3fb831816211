package store

import "errors"

// ErrorClass partitions item errors into retryable and terminal.
type ErrorClass int

const (
	// ClassPermanent marks an error that will not change on retry.
	ClassPermanent ErrorClass = iota
	// ClassTransient marks an error worth retrying within the budget.
	ClassTransient
)

// Classifier decides whether a per-item error is transient or permanent.
// Backends wrap raw failures with the package sentinels so
// DefaultClassifier works for them; pipelines may inject their own policy.
type Classifier func(err error) ErrorClass

// DefaultClassifier treats ErrUnavailable and ErrThrottled as transient and
// everything else, version conflicts included, as permanent.
func DefaultClassifier(err error) ErrorClass {
	if errors.Is(err, ErrUnavailable) || errors.Is(err, ErrThrottled) {
		return ClassTransient
	}
	return ClassPermanent
}
