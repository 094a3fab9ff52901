package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/quotadb/quotadb/internal/config"
	"github.com/quotadb/quotadb/internal/logging"
)

// BasicAuth gates report endpoints behind a username/password check.
// The check is an opaque credential comparison; per-user access control
// is out of scope for this service. A disabled config passes everything
// through.
func BasicAuth(cfg config.AuthConfig, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.Enabled {
			c.Next()
			return
		}

		username, password, ok := c.Request.BasicAuth()
		if !ok || !credentialsMatch(username, password, cfg) {
			logger.WarnWithContext(c.Request.Context(), "rejected unauthenticated request",
				"path", c.Request.URL.Path)
			c.Header("WWW-Authenticate", `Basic realm="Login Required"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Next()
	}
}

func credentialsMatch(username, password string, cfg config.AuthConfig) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(cfg.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(cfg.Password)) == 1
	return userOK && passOK
}
