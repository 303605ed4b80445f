package utils

import (
	"net/http"

	"document-qa-backend/internal/ai"

	"github.com/gin-gonic/gin"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	ErrorCode string      `json:"error_code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}

// RespondWithError sends a standardized error response
func RespondWithError(c *gin.Context, statusCode int, errorCode, message string, details interface{}) {
	c.JSON(statusCode, ErrorResponse{
		ErrorCode: errorCode,
		Message:   message,
		Details:   details,
	})
}

// RespondWithBadRequest sends a 400 Bad Request error
func RespondWithBadRequest(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusBadRequest, "bad_request", message, details)
}

// RespondWithUnauthorized sends a 401 Unauthorized error
func RespondWithUnauthorized(c *gin.Context, message string) {
	RespondWithError(c, http.StatusUnauthorized, "unauthorized", message, nil)
}

// RespondWithNotFound sends a 404 Not Found error
func RespondWithNotFound(c *gin.Context, message string) {
	RespondWithError(c, http.StatusNotFound, "not_found", message, nil)
}

// RespondWithPayloadTooLarge sends a 413 Payload Too Large error
func RespondWithPayloadTooLarge(c *gin.Context, message string) {
	RespondWithError(c, http.StatusRequestEntityTooLarge, "payload_too_large", message, nil)
}

// RespondWithRateLimited sends a 429 Too Many Requests error
func RespondWithRateLimited(c *gin.Context, message string) {
	RespondWithError(c, http.StatusTooManyRequests, "rate_limited", message, nil)
}

// RespondWithInternalError sends a 500 Internal Server Error
func RespondWithInternalError(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusInternalServerError, "internal_error", message, details)
}

// RespondWithProviderError maps a classified provider failure to the
// client-facing status and message.
func RespondWithProviderError(c *gin.Context, err error) {
	switch ai.Classify(err) {
	case ai.CategoryMissingCredentials:
		RespondWithUnauthorized(c, "Google API key is missing. Please set the GOOGLE_API_KEY environment variable.")
	case ai.CategoryContextTooLarge:
		RespondWithPayloadTooLarge(c, "The document is too large to process this question. Please try a more specific question.")
	case ai.CategoryRateLimited:
		RespondWithRateLimited(c, "The service is currently busy. Please try again in a moment.")
	default:
		RespondWithInternalError(c, "An error occurred while processing your question. Please try again.", nil)
	}
}
