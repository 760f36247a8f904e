package middleware

import (
	"github.com/gin-gonic/gin" // Gin web framework
	"github.com/google/uuid"   // Request id generation
)

// HeaderRequestID carries the correlation id in both directions
const HeaderRequestID = "X-Request-ID"

const requestIDKey = "requestID" // Gin context key

// RequestID propagates the inbound correlation id or generates a new one
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID) // Inbound correlation header
		if id == "" || len(id) > 128 {
			id = uuid.NewString() // Generate a fresh id
		}
		c.Set(requestIDKey, id)       // Store for handlers
		c.Header(HeaderRequestID, id) // Echo on the response
		c.Next()                      // Proceed to the next handler
	}
}

// GetRequestID returns the request id stored by RequestID
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
