package errors

import (
	"errors"
	"net/http"
)

// Domain errors
var (
	ErrNotFound          = errors.New("resource not found")
	ErrAlreadyExists     = errors.New("resource already exists")
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidAPIKey     = errors.New("invalid api key")
	ErrKeyBlocked        = errors.New("key blocked")
	ErrKeyExpired        = errors.New("key expired")
	ErrModelNotAllowed   = errors.New("model not allowed")
	ErrBudgetExceeded    = errors.New("budget exceeded")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrModelNotFound     = errors.New("model not found")
	ErrProviderInactive  = errors.New("provider inactive")
	ErrProviderError     = errors.New("provider error")
)

// Machine-readable error codes, returned in the OpenAI-style error body
const (
	CodeInvalidAPIKey     = "invalid_api_key"
	CodeKeyBlocked        = "key_blocked"
	CodeKeyExpired        = "key_expired"
	CodeModelNotAllowed   = "model_not_allowed"
	CodeBudgetExceeded    = "budget_exceeded"
	CodeRateLimitExceeded = "rate_limit_exceeded"
	CodeModelNotFound     = "model_not_found"
	CodeProviderInactive  = "provider_inactive"
	CodeProviderError     = "provider_error"
	CodeInvalidRequest    = "invalid_request"
	CodeInternalError     = "internal_error"
)

// AppError represents application error with HTTP status and wire code
type AppError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new app error
func NewAppError(status int, code, message string, err error) *AppError {
	return &AppError{
		Status:  status,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// AsAppError extracts the AppError from an error chain, wrapping anything
// else as an internal error
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return InternalError(err)
}

// Common error constructors

func InvalidAPIKey() *AppError {
	return NewAppError(http.StatusUnauthorized, CodeInvalidAPIKey, "invalid API key provided", ErrInvalidAPIKey)
}

func KeyBlocked() *AppError {
	return NewAppError(http.StatusUnauthorized, CodeKeyBlocked, "this API key is blocked", ErrKeyBlocked)
}

func KeyExpired() *AppError {
	return NewAppError(http.StatusUnauthorized, CodeKeyExpired, "this API key has expired", ErrKeyExpired)
}

func ModelNotAllowed(model string) *AppError {
	return NewAppError(http.StatusForbidden, CodeModelNotAllowed, "API key does not have access to model "+model, ErrModelNotAllowed)
}

func BudgetExceeded() *AppError {
	return NewAppError(http.StatusTooManyRequests, CodeBudgetExceeded, "budget for this API key has been exceeded", ErrBudgetExceeded)
}

func RateLimitExceeded(message string) *AppError {
	return NewAppError(http.StatusTooManyRequests, CodeRateLimitExceeded, message, ErrRateLimitExceeded)
}

func ModelNotFound(model string) *AppError {
	return NewAppError(http.StatusNotFound, CodeModelNotFound, "no provider registered for model "+model, ErrModelNotFound)
}

func ProviderInactive(provider string) *AppError {
	return NewAppError(http.StatusNotFound, CodeProviderInactive, "provider "+provider+" is not active", ErrProviderInactive)
}

func ProviderError(message string, err error) *AppError {
	return NewAppError(http.StatusBadGateway, CodeProviderError, message, err)
}

func BadRequest(message string) *AppError {
	return NewAppError(http.StatusBadRequest, CodeInvalidRequest, message, ErrInvalidInput)
}

func NotFound(message string) *AppError {
	return NewAppError(http.StatusNotFound, CodeModelNotFound, message, ErrNotFound)
}

func Unauthorized(message string) *AppError {
	return NewAppError(http.StatusUnauthorized, CodeInvalidAPIKey, message, ErrUnauthorized)
}

func Forbidden(message string) *AppError {
	return NewAppError(http.StatusForbidden, CodeModelNotAllowed, message, ErrForbidden)
}

func InternalError(err error) *AppError {
	return NewAppError(http.StatusInternalServerError, CodeInternalError, "internal server error", err)
}
