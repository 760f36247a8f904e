package middleware

import (
	"fmt" // Panic formatting

	"micropaper/internal/apperr" // Error taxonomy

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// ErrorEnvelope writes the standard error envelope for the last error
// recorded with c.Error, unless a response was already written.
// With debug set, internal error causes are exposed in the message.
func ErrorEnvelope(debug bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next() // Run the rest of the chain first
		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return // Nothing to render
		}
		WriteError(c, last.Err, debug)
	}
}

// WriteError renders err as the error envelope
func WriteError(c *gin.Context, err error, debug bool) {
	appErr := apperr.As(err) // Classify the error
	requestID := GetRequestID(c)
	message := appErr.Message
	if appErr.Kind == apperr.KindInternal || appErr.Kind == apperr.KindGenerationExhausted {
		logrus.WithFields(logrus.Fields{
			"request_id": requestID,   // Correlation id
			"code":       appErr.Code, // Error code
			"error":      err.Error(), // Full error
		}).Error("Request failed")
		if debug && appErr.Err != nil {
			message = appErr.Message + ": " + appErr.Err.Error() // Diagnostic detail
		}
	}
	body := gin.H{
		"code":    appErr.Code, // Error code
		"message": message,     // Human readable message
	}
	if len(appErr.Details) > 0 {
		body["details"] = appErr.Details // Field level violations
	}
	c.AbortWithStatusJSON(appErr.Status(), gin.H{"error": body, "requestId": requestID})
}

// Recovery converts panics into the internal error envelope
func Recovery(debug bool) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		WriteError(c, apperr.Internal(fmt.Errorf("panic: %v", recovered)), debug) // Boundary catch-all
	})
}
