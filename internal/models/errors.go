package models

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error codes carried by AppError.
const (
	CodeNotFound           = "NOT_FOUND"
	CodeForbidden          = "FORBIDDEN"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeValidation         = "VALIDATION_ERROR"
	CodeDuplicateUser      = "DUPLICATE_USER"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeInternal           = "INTERNAL_ERROR"
)

// Sentinels for errors.Is. They match any AppError with the same code.
var (
	ErrNotFound           = &AppError{Code: CodeNotFound, Message: "not found"}
	ErrForbidden          = &AppError{Code: CodeForbidden, Message: "forbidden"}
	ErrUnauthorized       = &AppError{Code: CodeUnauthorized, Message: "unauthorized"}
	ErrValidation         = &AppError{Code: CodeValidation, Message: "validation failed"}
	ErrDuplicateUser      = &AppError{Code: CodeDuplicateUser, Message: "user already exists"}
	ErrInvalidCredentials = &AppError{Code: CodeInvalidCredentials, Message: "invalid credentials"}
	ErrInternal           = &AppError{Code: CodeInternal, Message: "internal error"}
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an AppError with the same code.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// CodeOf returns the AppError code carried by err, or CodeInternal.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// Predefined error constructors
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s %v not found", resource, id),
	}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{
		Code:    CodeForbidden,
		Message: message,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

func NewDuplicateUserError(err error) *AppError {
	return &AppError{
		Code:    CodeDuplicateUser,
		Message: "Username or email already exists",
		Err:     err,
	}
}

func NewInvalidCredentialsError() *AppError {
	return &AppError{
		Code:    CodeInvalidCredentials,
		Message: "Invalid email or password",
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

var codeStatus = map[string]int{
	CodeNotFound:           fiber.StatusNotFound,
	CodeForbidden:          fiber.StatusForbidden,
	CodeUnauthorized:       fiber.StatusUnauthorized,
	CodeValidation:         fiber.StatusBadRequest,
	CodeDuplicateUser:      fiber.StatusConflict,
	CodeInvalidCredentials: fiber.StatusUnauthorized,
	CodeInternal:           fiber.StatusInternalServerError,
}

// StatusOf maps err to the HTTP status it is reported with.
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		if status, ok := codeStatus[appErr.Code]; ok {
			return status
		}
		return fiber.StatusInternalServerError
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return fiber.StatusInternalServerError
}

// RespondWithError writes the standardized error body for err. Internal
// causes are never exposed to the client.
func RespondWithError(c *fiber.Ctx, err error) error {
	status := StatusOf(err)

	var response ErrorResponse
	var appErr *AppError
	var fe *fiber.Error
	switch {
	case errors.As(err, &appErr):
		response = ErrorResponse{Error: appErr.Message, Code: appErr.Code}
	case errors.As(err, &fe):
		response = ErrorResponse{Error: fe.Message}
	default:
		response = ErrorResponse{Error: "Internal server error", Code: CodeInternal}
	}

	return c.Status(status).JSON(response)
}
