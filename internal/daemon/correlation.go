package daemon

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// correlationIDKey is the context key used to store the correlation ID
const correlationIDKey = "correlation_id"

// CorrelationMiddleware adds a unique correlation ID to each request.
// An existing X-Correlation-ID header is honored so the booking
// application can trace a notification across both services; otherwise
// a new UUID is generated. The ID is stored in the gin context and
// echoed in the response header.
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader("X-Correlation-ID")

		if correlationID == "" {
			correlationID = uuid.New().String()
		}

		c.Set(correlationIDKey, correlationID)
		c.Header("X-Correlation-ID", correlationID)

		c.Next()
	}
}

// GetCorrelationID retrieves the correlation ID from the request context.
// Returns an empty string if no correlation ID is found.
func GetCorrelationID(c *gin.Context) string {
	if id, exists := c.Get(correlationIDKey); exists {
		if strID, ok := id.(string); ok {
			return strID
		}
	}
	return ""
}

// LogWithCorrelation creates a logrus entry with the correlation ID
// included so log lines for one request can be grouped.
func LogWithCorrelation(c *gin.Context) *logrus.Entry {
	return logrus.WithField("correlation_id", GetCorrelationID(c))
}
