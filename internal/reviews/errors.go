package reviews

import (
	"errors"
	"fmt"
)

var (
	// ErrEmployeeNotFound indicates that the reviewed employee does not exist or is inactive.
	ErrEmployeeNotFound = errors.New("reviews: employee not found")
	// ErrSelfReview indicates that a reviewer targeted themself.
	ErrSelfReview = errors.New("reviews: self-review rejected")
	// ErrDuplicateReview indicates that the reviewer already reviewed the employee.
	ErrDuplicateReview = errors.New("reviews: duplicate review rejected")
	// ErrInvalidScores indicates that an employer review score is outside 1..5.
	ErrInvalidScores = errors.New("reviews: scores must be between 1 and 5")
	// ErrMissingReviewPeriod indicates that an employer review has no period.
	ErrMissingReviewPeriod = errors.New("reviews: review period is required")
	// ErrForbidden indicates that the viewer may not read the requested reviews.
	ErrForbidden = errors.New("reviews: not authorized to view these reviews")

	errMissingDatabase = errors.New("database handle is required")
)

// ServiceError carries a stable error code alongside the underlying cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the operation-scoped error code.
func (e *ServiceError) Code() string {
	return e.code
}

func newServiceError(operation, reason string, cause error) error {
	return &ServiceError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

// IsPrecondition reports whether err is a caller-facing validation failure rather than a store failure.
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrEmployeeNotFound) ||
		errors.Is(err, ErrSelfReview) ||
		errors.Is(err, ErrDuplicateReview) ||
		errors.Is(err, ErrInvalidScores) ||
		errors.Is(err, ErrMissingReviewPeriod) ||
		errors.Is(err, ErrForbidden)
}
