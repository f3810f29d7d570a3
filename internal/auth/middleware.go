package auth

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	RolePhotographer = "photographer"
	RoleAttendee     = "attendee"

	principalKey = "auth.principal"
	opsKeyHeader = "X-API-Key"

	// Browsers cannot set headers on a WebSocket handshake, so upgrades may
	// carry the token as ?access_token=.
	tokenQueryParam = "access_token"
)

func bearerToken(c *gin.Context) string {
	scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
	if ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	if c.GetHeader("Authorization") == "" && c.IsWebsocket() {
		return strings.TrimSpace(c.Query(tokenQueryParam))
	}
	return ""
}

// Authenticate requires a valid bearer token and stores the caller's
// Principal on the context.
func Authenticate(v Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"message": "Access token is missing or invalid.",
			})
			return
		}

		p, err := v.Verify(c.Request.Context(), token)
		if err != nil {
			slog.Debug("token rejected", "path", c.FullPath(), "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"message": "Invalid or expired token.",
			})
			return
		}

		c.Set(principalKey, p)
		c.Next()
	}
}

// RequireRole rejects callers without role. It must run after Authenticate.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"message": "Access token is missing or invalid.",
			})
			return
		}
		if !p.HasRole(role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"message": "Access denied. " + strings.ToUpper(role[:1]) + role[1:] + " role required.",
			})
			return
		}
		c.Next()
	}
}

// RequireOpsKey guards /metrics and /debug/pprof with the X-API-Key header.
// An empty key leaves them open.
func RequireOpsKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}

		provided := c.GetHeader(opsKeyHeader)
		switch {
		case provided == "":
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "API key is missing."})
		case subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1:
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Invalid API key."})
		default:
			c.Next()
		}
	}
}

func PrincipalFrom(c *gin.Context) (*Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*Principal)
	return p, ok && p != nil
}

// WithPrincipal stores p on c. Used by tests and trusted internal callers.
func WithPrincipal(c *gin.Context, p *Principal) {
	c.Set(principalKey, p)
}
