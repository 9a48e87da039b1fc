package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/audit"
)

// ClientIP stores the caller's address in the request context for audit entries.
func ClientIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := audit.WithClientIP(c.Request.Context(), RequestIP(c.Request))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequestIP returns the client IP from X-Forwarded-For, X-Real-IP or the remote address, or "unknown".
func RequestIP(r *http.Request) string {
	if s := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); s != "" {
		if i := strings.Index(s, ","); i > 0 {
			s = strings.TrimSpace(s[:i])
		}
		return s
	}
	if s := strings.TrimSpace(r.Header.Get("X-Real-IP")); s != "" {
		return s
	}
	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return host
		}
		return r.RemoteAddr
	}
	return "unknown"
}

// Audit records an audit entry after each authenticated request. Routes in skip
// (keyed by gin FullPath) are not audited. Requests without org_id are ignored;
// the registration service audits its own milestones.
func Audit(logger audit.AuditLogger, skip map[string]bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if logger == nil || skip[c.FullPath()] {
			return
		}
		ctx := c.Request.Context()
		orgID, _ := GetOrgID(ctx)
		if orgID == "" {
			return
		}
		userID, _ := GetUserID(ctx)
		ar := audit.ParseRoute(c.Request.Method, c.FullPath())
		logger.LogEvent(ctx, orgID, userID, ar.Action, ar.Resource, "")
	}
}
