package auth

import (
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"
)

// RequireAuth builds a gin middleware enforcing JWT or API-key auth. If
// service is nil or has no credentials configured, every request passes
// through unauthenticated — this lets a homelab operator run without auth
// during initial setup.
func RequireAuth(service *Service, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if service == nil || !service.Enabled() {
			c.Next()
			return
		}

		if token := extractBearer(c.GetHeader("Authorization")); token != "" {
			user, err := service.ValidateJWT(token)
			if err != nil {
				if logger != nil {
					logger.Warn("jwt validation failed", "error", err)
				}
				c.AbortWithStatusJSON(401, gin.H{"error": "invalid token"})
				return
			}
			c.Request = c.Request.WithContext(WithUser(c.Request.Context(), user))
			c.Next()
			return
		}

		if apiKey := firstNonEmpty(c.GetHeader("X-API-Key"), c.GetHeader("Api-Key")); apiKey != "" {
			user, err := service.ValidateAPIKey(apiKey)
			if err != nil {
				if logger != nil {
					logger.Warn("api key validation failed", "error", err)
				}
				c.AbortWithStatusJSON(401, gin.H{"error": "invalid api key"})
				return
			}
			c.Request = c.Request.WithContext(WithUser(c.Request.Context(), user))
			c.Next()
			return
		}

		c.AbortWithStatusJSON(401, gin.H{"error": "missing credentials"})
	}
}

func extractBearer(header string) string {
	if header == "" {
		return ""
	}
	lower := strings.ToLower(header)
	if strings.HasPrefix(lower, "bearer ") {
		return strings.TrimSpace(header[len("bearer "):])
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
