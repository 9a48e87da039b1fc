package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/security"
)

const bearerPrefix = "bearer "

// TokenValidator validates owner access tokens.
type TokenValidator interface {
	ValidateAccess(token string) (*security.OwnerClaims, error)
}

// Auth returns a middleware that requires a valid Bearer access token and stores
// user_id, org_id and role in the request context. Requests without one get 401.
func Auth(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearer(c.GetHeader("Authorization"))
		if token == "" || tokens == nil {
			unauthenticated(c)
			return
		}
		claims, err := tokens.ValidateAccess(token)
		if err != nil {
			unauthenticated(c)
			return
		}
		ctx := WithIdentity(c.Request.Context(), claims.Subject, claims.OrgID, claims.Role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func unauthenticated(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{
		"code":    "UNAUTHENTICATED",
		"message": "missing or invalid authorization",
	}})
}

// extractBearer returns the token of an Authorization header, or "" if missing or malformed.
func extractBearer(header string) string {
	v := strings.TrimSpace(header)
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
