package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// IngestAuthMiddleware gates the ingest endpoint with a pre-shared key
// carried in the X-API-Key header. An empty configured key disables the
// gate entirely; field devices are otherwise unauthenticated.
func IngestAuthMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}

		provided := c.GetHeader("X-API-Key")
		if provided == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"status":  "error",
				"message": "Missing X-API-Key header",
			})
			c.Abort()
			return
		}

		if provided != apiKey {
			c.JSON(http.StatusUnauthorized, gin.H{
				"status":  "error",
				"message": "Invalid API key",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
