package kioskapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/thoknuts/nda-sm-platform/internal/core/domain"
)

// Error codes the kiosk client branches on.
const (
	CodeBadJSON             = "BAD_JSON"
	CodeValidation          = "VALIDATION_ERROR"
	CodeConsentRequired     = "CONSENT_REQUIRED"
	CodeMissingFields       = "MISSING_FIELDS"
	CodeUnauthenticated     = "UNAUTHENTICATED"
	CodeInvalidKioskSession = "INVALID_KIOSK_SESSION"
	CodeForbidden           = "FORBIDDEN"
	CodeNoEventAccess       = "NO_EVENT_ACCESS"
	CodeEventNotFound       = "EVENT_NOT_FOUND"
	CodeNotOnGuestList      = "NOT_ON_GUEST_LIST"
	CodeSignatureNotFound   = "SIGNATURE_NOT_FOUND"
	CodeSessionNotFound     = "KIOSK_SESSION_NOT_FOUND"
	CodeDuplicateSignature  = "DUPLICATE_SIGNATURE"
	CodePhoneAlreadyUsed    = "PHONE_ALREADY_USED"
	CodePhoneCollision      = "PHONE_COLLISION"
	CodeAlreadyVerified     = "ALREADY_VERIFIED"
	CodeRateLimited         = "RATE_LIMITED"
	CodeInternal            = "INTERNAL"
)

// ErrorBody is the error half of the envelope.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// ErrorEnvelope is every non-2xx response body. The lookup flags repeat the
// outcome for kiosks that branch on them instead of the code.
type ErrorEnvelope struct {
	RequestID        string    `json:"request_id"`
	Error            ErrorBody `json:"error"`
	OnGuestList      *bool     `json:"on_guestlist,omitempty"`
	PhoneAlreadyUsed *bool     `json:"phone_already_used,omitempty"`
}

// ErrorMapping ties a domain error to its status and code.
type ErrorMapping struct {
	Err    error
	Status int
	Code   string
}

var mappings = []ErrorMapping{
	{domain.ErrConsentRequired, http.StatusBadRequest, CodeConsentRequired},
	{domain.ErrMissingFields, http.StatusBadRequest, CodeMissingFields},
	{domain.ErrUnauthenticated, http.StatusUnauthorized, CodeUnauthenticated},
	{domain.ErrInvalidKioskSession, http.StatusUnauthorized, CodeInvalidKioskSession},
	{domain.ErrForbiddenRole, http.StatusForbidden, CodeForbidden},
	{domain.ErrNoEventAccess, http.StatusForbidden, CodeNoEventAccess},
	{domain.ErrEventNotFound, http.StatusNotFound, CodeEventNotFound},
	{domain.ErrNotOnGuestList, http.StatusNotFound, CodeNotOnGuestList},
	{domain.ErrSignatureNotFound, http.StatusNotFound, CodeSignatureNotFound},
	{domain.ErrKioskSessionNotFound, http.StatusNotFound, CodeSessionNotFound},
	{domain.ErrDuplicateSignature, http.StatusConflict, CodeDuplicateSignature},
	{domain.ErrPhoneAlreadyUsed, http.StatusConflict, CodePhoneAlreadyUsed},
	{domain.ErrPhoneCollision, http.StatusConflict, CodePhoneCollision},
	{domain.ErrAlreadyVerified, http.StatusConflict, CodeAlreadyVerified},
}

// MappingFor finds the mapping of the first sentinel err matches.
func MappingFor(err error) (ErrorMapping, bool) {
	for _, m := range mappings {
		if errors.Is(err, m.Err) {
			return m, true
		}
	}
	return ErrorMapping{}, false
}

// ErrorForCode maps an error body back to the domain error it was written
// for. Unknown codes return nil.
func ErrorForCode(body ErrorBody) error {
	if body.Code == CodeValidation {
		return domain.NewValidationError(body.Field, strings.TrimPrefix(body.Message, body.Field+": "))
	}
	for _, m := range mappings {
		if m.Code == body.Code {
			return m.Err
		}
	}
	return nil
}

// NewErrorEnvelope builds the envelope for body and sets the lookup flags
// that belong to its code.
func NewErrorEnvelope(requestID string, body ErrorBody) ErrorEnvelope {
	env := ErrorEnvelope{RequestID: requestID, Error: body}
	switch body.Code {
	case CodeNotOnGuestList:
		f := false
		env.OnGuestList = &f
	case CodePhoneAlreadyUsed:
		t := true
		env.PhoneAlreadyUsed = &t
	}
	return env
}
