package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// AppError is an error that is safe to show to API callers.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Error codes.
const (
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeAccountDeactivated = "ACCOUNT_DEACTIVATED"
	CodeAlreadyMarked      = "ALREADY_MARKED"
	CodeAlreadyReviewed    = "ALREADY_REVIEWED"
	CodeValidation         = "VALIDATION_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeTooManyRequests    = "TOO_MANY_REQUESTS"
	CodeInternal           = "INTERNAL_ERROR"
)

var (
	ErrUnauthorized       = &AppError{Code: CodeUnauthorized, Message: "Unauthorized", Status: http.StatusUnauthorized}
	ErrForbidden          = &AppError{Code: CodeForbidden, Message: "Admin access required", Status: http.StatusForbidden}
	ErrInvalidCredentials = &AppError{Code: CodeInvalidCredentials, Message: "Invalid email or password", Status: http.StatusUnauthorized}
	ErrAccountDeactivated = &AppError{Code: CodeAccountDeactivated, Message: "Account is deactivated", Status: http.StatusUnauthorized}
	ErrAlreadyMarked      = &AppError{Code: CodeAlreadyMarked, Message: "Attendance already marked for today", Status: http.StatusBadRequest}
	ErrAlreadyReviewed    = &AppError{Code: CodeAlreadyReviewed, Message: "Review has already been moderated", Status: http.StatusConflict}
	ErrTooManyRequests    = &AppError{Code: CodeTooManyRequests, Message: "Too many requests", Status: http.StatusTooManyRequests}
)

func Validation(message string) *AppError {
	return &AppError{Code: CodeValidation, Message: message, Status: http.StatusBadRequest}
}

func NotFound(resource string) *AppError {
	return &AppError{Code: CodeNotFound, Message: resource + " not found", Status: http.StatusNotFound}
}

// Internal hides the cause; callers log it before responding.
func Internal(message string) *AppError {
	if message == "" {
		message = "Internal server error"
	}
	return &AppError{Code: CodeInternal, Message: message, Status: http.StatusInternalServerError}
}

// As reports whether err is (or wraps) an AppError.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// FromBinding turns a request decoding or validation failure into a Validation error
// with a readable message.
func FromBinding(err error) *AppError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return Validation("Invalid request body")
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return Validation(strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := lowerFirst(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return "Invalid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s must satisfy %s", field, fe.Tag())
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
