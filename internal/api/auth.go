package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// ──────────────────────────────────────────────────────────────────
// Bearer Token Authentication Middleware
//
// Reads API_AUTH_TOKEN through config. If set, /reconcile and
// /reconcile/stream require: Authorization: Bearer <token>
//
// /health, /parse and /metrics stay public.
// ──────────────────────────────────────────────────────────────────

// AuthMiddleware requires "Authorization: Bearer <token>" when token is set.
// An empty token disables authentication; in release mode that is logged
// loudly once at startup.
func AuthMiddleware(token string, releaseMode bool, log *zerolog.Logger) gin.HandlerFunc {
	if token == "" && releaseMode {
		log.Warn().Msg("API_AUTH_TOKEN is not set in release mode; reconcile endpoints are publicly accessible")
	}

	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}

		auth := c.GetHeader("Authorization")
		if auth == "" {
			respondError(c, http.StatusUnauthorized, ErrCodeUnauthorized, "missing Authorization header", "")
			return
		}

		parts := strings.SplitN(auth, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			respondError(c, http.StatusForbidden, ErrCodeForbidden, "invalid Authorization header format", "")
			return
		}

		// Constant-time comparison against token enumeration by timing.
		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(token)) != 1 {
			respondError(c, http.StatusForbidden, ErrCodeForbidden, "invalid token", "")
			return
		}
		c.Next()
	}
}
