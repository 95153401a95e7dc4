package points

import (
	"errors"
	"fmt"
)

var (
	// ErrUserNotFound indicates that the ledger owner does not exist.
	ErrUserNotFound = errors.New("points: user not found")
	// ErrBadgeNotFound indicates that the badge does not exist.
	ErrBadgeNotFound = errors.New("points: badge not found")
	// ErrBadgeAlreadyAwarded indicates that the user already holds the badge.
	ErrBadgeAlreadyAwarded = errors.New("points: badge already awarded")
	// ErrInsufficientPoints indicates that the user's balance is below the badge threshold.
	ErrInsufficientPoints = errors.New("points: insufficient points for badge")
	// ErrBadgeNameTaken indicates that another badge already uses the name.
	ErrBadgeNameTaken = errors.New("points: badge name already exists")
	// ErrInvalidBadge indicates that a badge definition is incomplete.
	ErrInvalidBadge = errors.New("points: invalid badge")

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
