package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"library-api/internal/auth"
	"library-api/internal/graph"
)

const requestIDKey = "request_id"

var errMissingQuery = errors.New("query is required")

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.WithFields(logrus.Fields{
			"request_id": c.GetString(requestIDKey),
			"method":     c.Request.Method,
			"path":       path,
			"status":     c.Writer.Status(),
			"latency":    time.Since(start),
			"ip":         c.ClientIP(),
		}).Info("http request")
	}
}

// authMiddleware resolves the current user once per request and stores it
// in the request context. An unverifiable bearer token fails the request.
func (h *Handler) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := h.gate.Authenticate(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				h.logger.WithField("request_id", c.GetString(requestIDKey)).WithError(err).Warn("rejected bearer token")
				gqlErr := graph.Unauthenticated(err)
				c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse(gqlErr.Message, gqlErr.Extensions()))
				return
			}
			h.logger.WithField("request_id", c.GetString(requestIDKey)).WithError(err).Error("resolve current user")
			c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse(err.Error(), nil))
			return
		}

		c.Request = c.Request.WithContext(auth.WithUser(c.Request.Context(), user))
		c.Next()
	}
}
