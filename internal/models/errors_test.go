package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestAppError_IsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("load post: %w", NewNotFoundError("Post", 7))

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrForbidden)
	assert.Equal(t, CodeNotFound, CodeOf(err))
}

func TestAppError_UnwrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewInternalError(cause)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrInternal)
	assert.Equal(t, "Internal server error: connection refused", err.Error())
}

func TestCodeOf_PlainErrorIsInternal(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{NewNotFoundError("Post", 1), fiber.StatusNotFound},
		{NewForbiddenError("no"), fiber.StatusForbidden},
		{NewUnauthorizedError("no"), fiber.StatusUnauthorized},
		{NewInvalidCredentialsError(), fiber.StatusUnauthorized},
		{NewValidationError("bad"), fiber.StatusBadRequest},
		{NewDuplicateUserError(nil), fiber.StatusConflict},
		{NewInternalError(errors.New("x")), fiber.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", NewForbiddenError("no")), fiber.StatusForbidden},
		{fiber.ErrRequestEntityTooLarge, fiber.StatusRequestEntityTooLarge},
		{errors.New("plain"), fiber.StatusInternalServerError},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, StatusOf(tc.err), tc.err.Error())
	}
}
