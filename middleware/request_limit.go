package middleware

import (
	"net/http"

	"document-qa-backend/utils"

	"github.com/gin-gonic/gin"
)

// RequestSizeLimit rejects requests whose declared body size exceeds maxSize.
// Uploads close to the limit carry multipart framing on top of the file
// itself, so callers should pass a small allowance above the file limit.
func RequestSizeLimit(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxSize {
			utils.RespondWithError(c, http.StatusRequestEntityTooLarge,
				"payload_too_large",
				"Request body exceeds maximum size of "+utils.HumanReadableSize(maxSize),
				gin.H{
					"max_size": maxSize,
					"received": c.Request.ContentLength,
				})
			c.Abort()
			return
		}
		c.Next()
	}
}
