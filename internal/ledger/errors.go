package ledger

import "errors"

// Failure taxonomy. All are detected synchronously at the point of
// violation; an operation either fully succeeds or fails with one of
// these and no state change (best-effort closure notifications excepted).
var (
	ErrNotFound          = errors.New("record not found")
	ErrForbidden         = errors.New("actor lacks the required role")
	ErrAlreadyClosed     = errors.New("event already closed")
	ErrAlreadyPaid       = errors.New("invite already paid")
	ErrDuplicateIdentity = errors.New("phone already linked to an account on this provider")
	ErrInvalidCode       = errors.New("invalid verification code")
	ErrNoRecipients      = errors.New("no paid members to notify")
	ErrValidation        = errors.New("invalid input")
)
