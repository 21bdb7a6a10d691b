package service

import "errors"

// Domain errors. Services wrap these with a human-readable message; the HTTP layer maps
// them to status codes with errors.Is.
var (
	ErrUnauthenticated       = errors.New("authentication required")
	ErrForbidden             = errors.New("access denied")
	ErrNotFound              = errors.New("not found")
	ErrInvalidState          = errors.New("invalid state")
	ErrValidation            = errors.New("validation failed")
	ErrDuplicateRegistration = errors.New("duplicate registration")
	ErrRegistrationExpired   = errors.New("registration expired")
	ErrPaymentNotCompleted   = errors.New("payment not completed")
	ErrExternalService       = errors.New("external service error")
)
