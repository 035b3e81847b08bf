package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	domainerrors "inferxgate.backend/internal/domain/errors"
)

// ErrorBody is the OpenAI-compatible error envelope
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

// Success sends a success response
func Success(c *gin.Context, status int, data interface{}) {
	c.JSON(status, data)
}

// Error sends an error in the OpenAI error envelope
func Error(c *gin.Context, err error) {
	appErr := domainerrors.AsAppError(err)
	c.JSON(appErr.Status, ErrorBody{
		Error: ErrorDetail{
			Message: appErr.Message,
			Type:    errorType(appErr.Status),
			Code:    appErr.Code,
		},
	})
}

// AbortError sends an error and stops the handler chain
func AbortError(c *gin.Context, err error) {
	Error(c, err)
	c.Abort()
}

// errorType maps an HTTP status to the OpenAI error type string
func errorType(status int) string {
	switch {
	case status == http.StatusUnauthorized:
		return "authentication_error"
	case status == http.StatusForbidden:
		return "permission_error"
	case status == http.StatusTooManyRequests:
		return "rate_limit_error"
	case status == http.StatusNotFound:
		return "invalid_request_error"
	case status >= 500:
		return "api_error"
	default:
		return "invalid_request_error"
	}
}
