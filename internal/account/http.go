package account

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/server/middleware"
)

// Handler serves the authenticated account endpoint.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts GET "" on rg. rg must already run middleware.Auth.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("", h.Get)
}

// Get returns the caller's account overview.
func (h *Handler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	userID, _ := middleware.GetUserID(ctx)
	orgID, _ := middleware.GetOrgID(ctx)
	ov, err := h.svc.Overview(ctx, userID, orgID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, ov)
	case errors.Is(err, ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": err.Error()}})
	case errors.Is(err, ErrNotMember):
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": gin.H{"code": "FORBIDDEN", "message": err.Error()}})
	default:
		log.Error().Err(err).Str("org_id", orgID).Msg("account: overview failed")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "INTERNAL", "message": "internal error"}})
	}
}
