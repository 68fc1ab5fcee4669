package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	wrapped := fmt.Errorf("submit: %w", ErrDuplicateSignature)

	assert.True(t, IsConflict(wrapped))
	assert.False(t, IsRetryable(wrapped))

	assert.True(t, IsValidation(NewValidationError("phone", "bad")))
	assert.True(t, IsValidation(ErrConsentRequired))
	assert.False(t, IsRetryable(ErrConsentRequired))

	assert.True(t, IsAuthorization(ErrInvalidKioskSession))
	assert.True(t, IsNotFound(ErrNotOnGuestList))

	infra := errors.New("connection refused")
	assert.True(t, IsRetryable(infra))
	assert.False(t, IsRetryable(nil))
}

func TestValidationError_Message(t *testing.T) {
	err := NewValidationError("sm_username", "too short")
	assert.Equal(t, "sm_username: too short", err.Error())

	var ve *ValidationError
	assert.True(t, errors.As(fmt.Errorf("wrap: %w", err), &ve))
	assert.Equal(t, "sm_username", ve.Field)
}
