// Package server assembles the HTTP router and the gRPC health server.
package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/account"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/audit"
	devotphandler "github.com/MatanSaban/GhostPostWebsite-sub000/internal/devotp/handler"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/health"
	reghandler "github.com/MatanSaban/GhostPostWebsite-sub000/internal/registration/handler"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/server/middleware"
)

// Deps holds the handlers and collaborators mounted by NewRouter.
type Deps struct {
	// Registration serves /api/v1/registration. Required.
	Registration *reghandler.Handler
	// Account serves the authenticated /api/v1/account. If nil, or Tokens is nil, the route is not mounted.
	Account *account.Handler
	Tokens  middleware.TokenValidator
	// Audit records authenticated requests. If nil, no request is audited by the router.
	Audit audit.AuditLogger
	// Health backs GET /healthz. If nil, /healthz always answers 200.
	Health *health.Checker
	// DevOTP is the dev-only OTP echo. Set only when dev OTP is enabled and not production.
	DevOTP *devotphandler.Handler
	// CORSOrigins are allowed to call the API with credentials. Empty disables CORS headers.
	CORSOrigins []string
}

// auditSkip lists routes the audit middleware ignores.
var auditSkip = map[string]bool{"/healthz": true}

// NewRouter returns the gin engine serving every HTTP route.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Tracing(), middleware.RequestLogger(), middleware.ClientIP())
	if len(d.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     d.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Length", "Retry-After"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	checker := d.Health
	if checker == nil {
		checker = health.NewChecker()
	}
	r.GET("/healthz", checker.Handler)

	api := r.Group("/api/v1")
	d.Registration.Register(api.Group("/registration"))
	if d.Account != nil && d.Tokens != nil {
		d.Account.Register(api.Group("/account", middleware.Auth(d.Tokens), middleware.Audit(d.Audit, auditSkip)))
	}
	if d.DevOTP != nil {
		d.DevOTP.Register(api)
	}
	return r
}
