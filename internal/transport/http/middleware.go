package httptransport

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"media-caption-server/internal/platform/logging"
)

// TokenVerifier validates a bearer token and returns its subject.
type TokenVerifier interface {
	VerifyToken(token string) (string, error)
}

// SubjectKey is the gin context key holding the authenticated subject.
const SubjectKey = "auth.subject"

// BearerAuth rejects requests without a valid "Authorization: Bearer" token.
func BearerAuth(verifier TokenVerifier, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			RespondError(c, http.StatusUnauthorized, "missing bearer token", nil)
			c.Abort()
			return
		}

		subject, err := verifier.VerifyToken(strings.TrimSpace(token))
		if err != nil {
			if logger != nil {
				logger.WarnTag("HTTP", "rejected token for %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
			}
			RespondError(c, http.StatusUnauthorized, "invalid token", nil)
			c.Abort()
			return
		}

		c.Set(SubjectKey, subject)
		c.Next()
	}
}
