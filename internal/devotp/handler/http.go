// Package handler exposes the dev-only OTP echo endpoint.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/devotp"
)

const devOTPNote = "DEV MODE ONLY"

// Handler serves GET /dev/otp. Only routed when dev OTP is enabled and not production.
type Handler struct {
	store      devotp.Store
	cookieName string
}

// NewHandler returns a handler that reads codes from store, resolving the registration from cookieName.
func NewHandler(store devotp.Store, cookieName string) *Handler {
	return &Handler{store: store, cookieName: cookieName}
}

// Register mounts the endpoint on rg.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/dev/otp", h.GetOTP)
}

// GetOTP returns the latest code sent for the caller's registration.
func (h *Handler) GetOTP(c *gin.Context) {
	ref, err := c.Cookie(h.cookieName)
	if err != nil || ref == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "NO_REGISTRATION", "message": "no registration in progress"}})
		return
	}
	code, ok := h.store.Get(c.Request.Context(), ref)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": "OTP not found or expired"}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"otp": code, "note": devOTPNote})
}
