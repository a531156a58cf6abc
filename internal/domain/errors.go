package domain

import "errors"

// Domain errors
var (
	ErrInvalidCategory  = errors.New("invalid leaderboard category")
	ErrRecordNotFound   = errors.New("record not found")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrInvalidPath      = errors.New("invalid store path")
	ErrInvalidAction    = errors.New("invalid bulk action")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidField     = errors.New("field is not editable")
	ErrInvalidLoginCode = errors.New("no account found for login code")
	ErrAlreadyLinked    = errors.New("chat account already linked")
	ErrNotLinked        = errors.New("chat account not linked")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInternalError    = errors.New("internal server error")
)

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrRecordNotFound) || errors.Is(err, ErrNotLinked)
}

// IsClientError reports whether err was caused by caller input rather than by the store.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidCategory) ||
		errors.Is(err, ErrInvalidAction) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidField) ||
		errors.Is(err, ErrInvalidPath) ||
		errors.Is(err, ErrInvalidRequest)
}
