package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorMessage is the body text of every rejected request.
const ErrorMessage = "Invalid API key or malformed request"

// Middleware rejects requests without the configured API key.
func (s *Service) Middleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		if err := s.ValidateKey(c.GetHeader(s.headerName)); err != nil {
			logger.Warn("api key rejected",
				zap.String("path", c.Request.URL.Path),
				zap.String("client_ip", c.ClientIP()),
				zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": "error", "message": ErrorMessage})
			return
		}
		c.Next()
	}
}
