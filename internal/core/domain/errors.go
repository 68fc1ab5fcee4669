package domain

import (
	"errors"
	"fmt"
)

// Authorization errors. ErrInvalidKioskSession is deliberately generic: it
// never says which check failed.
var (
	ErrUnauthenticated     = errors.New("authentication required")
	ErrInvalidKioskSession = errors.New("invalid or expired kiosk session")
	ErrForbiddenRole       = errors.New("only crew, organizers or admins may do this")
	ErrNoEventAccess       = errors.New("you do not have access to this event")
)

// Not-found errors.
var (
	ErrEventNotFound        = errors.New("event not found")
	ErrNotOnGuestList       = errors.New("this username is not on the guest list for this event")
	ErrSignatureNotFound    = errors.New("signature not found")
	ErrKioskSessionNotFound = errors.New("kiosk session not found")
)

// Conflict errors. Callers branch on each of these.
var (
	ErrDuplicateSignature = errors.New("an NDA has already been signed for this event")
	ErrPhoneAlreadyUsed   = errors.New("this phone number is already registered on this event; enter your personal phone number")
	ErrPhoneCollision     = errors.New("this phone number is already registered to another guest")
	ErrAlreadyVerified    = errors.New("the signature was already verified by someone else")
)

// Validation errors that are not tied to one field.
var (
	ErrConsentRequired = errors.New("you must confirm that you read the NDA and accept the privacy notice")
	ErrMissingFields   = errors.New("missing required fields")
)

// ValidationError reports a malformed input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err is any validation-kind error.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) || errors.Is(err, ErrConsentRequired) || errors.Is(err, ErrMissingFields)
}

// IsConflict reports whether err is one of the named conflict outcomes.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateSignature) ||
		errors.Is(err, ErrPhoneAlreadyUsed) ||
		errors.Is(err, ErrPhoneCollision) ||
		errors.Is(err, ErrAlreadyVerified)
}

// IsAuthorization reports whether err is an authorization-kind error.
func IsAuthorization(err error) bool {
	return errors.Is(err, ErrUnauthenticated) ||
		errors.Is(err, ErrInvalidKioskSession) ||
		errors.Is(err, ErrForbiddenRole) ||
		errors.Is(err, ErrNoEventAccess)
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEventNotFound) ||
		errors.Is(err, ErrNotOnGuestList) ||
		errors.Is(err, ErrSignatureNotFound) ||
		errors.Is(err, ErrKioskSessionNotFound)
}

// IsRetryable reports whether a failed operation may succeed if repeated
// unchanged. Only infrastructure failures are.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return !IsValidation(err) && !IsConflict(err) && !IsAuthorization(err) && !IsNotFound(err)
}
