// Package handler exposes the registration workflow over HTTP. The registration
// reference travels only in an HTTP-only cookie.
package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/registration/domain"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/registration/service"
)

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
	Domain string
	MaxAge time.Duration
}

// Handler serves the registration API.
type Handler struct {
	svc    *service.Service
	cookie CookieConfig
}

// NewHandler returns a Handler backed by svc.
func NewHandler(svc *service.Service, cookie CookieConfig) *Handler {
	if cookie.Name == "" {
		cookie.Name = "reg_session"
	}
	return &Handler{svc: svc, cookie: cookie}
}

// Register mounts the endpoints on rg (normally /api/v1/registration).
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/status", h.Status)
	rg.GET("/steps/:step", h.GetStep)
	rg.POST("/register", h.SubmitForm)
	rg.POST("/otp/send", h.SendOTP)
	rg.POST("/otp/verify", h.VerifyOTP)
	rg.POST("/account/check-slug", h.CheckSlug)
	rg.POST("/account/create", h.CreateAccount)
	rg.POST("/interview", h.SubmitInterview)
	rg.PUT("/interview/:field", h.SaveAnswer)
	rg.GET("/plans", h.ListPlans)
	rg.POST("/plan", h.SelectPlan)
	rg.POST("/payment", h.SubmitPayment)
	rg.POST("/finalize", h.Finalize)
	rg.DELETE("", h.Abandon)
}

// Status returns the canonical current step. Without a cookie the caller starts at FORM.
func (h *Handler) Status(c *gin.Context) {
	id := h.reference(c)
	if id == "" {
		c.JSON(http.StatusOK, gin.H{"started": false, "step": domain.StepForm, "current_step": domain.StepForm})
		return
	}
	v, err := h.svc.Status(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"started": true, "step": v.Step, "current_step": v.CurrentStep, "view": v})
}

// GetStep returns the stored values of a reached step.
func (h *Handler) GetStep(c *gin.Context) {
	step, err := domain.ParseStep(c.Param("step"))
	if err != nil {
		h.fail(c, domain.NewValidationError("step", "unknown step"))
		return
	}
	v, err := h.svc.RequestStep(c.Request.Context(), h.reference(c), step)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// SubmitForm starts a registration (setting the cookie) or edits its FORM data.
func (h *Handler) SubmitForm(c *gin.Context) {
	var in service.FormInput
	if !bind(c, &in) {
		return
	}
	current := h.reference(c)
	id, v, err := h.svc.SubmitForm(c.Request.Context(), current, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	if current == "" {
		h.setCookie(c, id)
		c.JSON(http.StatusCreated, v)
		return
	}
	c.JSON(http.StatusOK, v)
}

type sendOTPRequest struct {
	Method string `json:"method"`
}

// SendOTP issues a verification code.
func (h *Handler) SendOTP(c *gin.Context) {
	var in sendOTPRequest
	if !bind(c, &in) {
		return
	}
	ch, err := h.svc.IssueOTP(c.Request.Context(), h.reference(c), in.Method)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ch)
}

// VerifyOTP submits the VERIFY step.
func (h *Handler) VerifyOTP(c *gin.Context) {
	var in service.VerifyInput
	if !bind(c, &in) {
		return
	}
	v, err := h.svc.VerifyOTP(c.Request.Context(), h.reference(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// CheckSlug reports slug availability.
func (h *Handler) CheckSlug(c *gin.Context) {
	var in service.SlugInput
	if !bind(c, &in) {
		return
	}
	free, err := h.svc.CheckSlug(c.Request.Context(), h.reference(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"slug": in.Slug, "available": free})
}

// CreateAccount submits the ACCOUNT_SETUP step.
func (h *Handler) CreateAccount(c *gin.Context) {
	var in service.AccountInput
	if !bind(c, &in) {
		return
	}
	v, err := h.svc.SubmitAccount(c.Request.Context(), h.reference(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// SubmitInterview saves answers and optionally completes the step.
func (h *Handler) SubmitInterview(c *gin.Context) {
	var in service.InterviewInput
	if !bind(c, &in) {
		return
	}
	v, err := h.svc.SubmitInterview(c.Request.Context(), h.reference(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

type answerRequest struct {
	Value string `json:"value"`
}

// SaveAnswer stores one interview answer.
func (h *Handler) SaveAnswer(c *gin.Context) {
	var in answerRequest
	if !bind(c, &in) {
		return
	}
	v, err := h.svc.SaveAnswer(c.Request.Context(), h.reference(c), service.AnswerInput{Field: c.Param("field"), Value: in.Value})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// ListPlans returns the active plans.
func (h *Handler) ListPlans(c *gin.Context) {
	plans, err := h.svc.ListPlans(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plans": plans})
}

// SelectPlan submits the PLAN step.
func (h *Handler) SelectPlan(c *gin.Context) {
	var in service.PlanInput
	if !bind(c, &in) {
		return
	}
	v, err := h.svc.SelectPlan(c.Request.Context(), h.reference(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// SubmitPayment submits the PAYMENT step.
func (h *Handler) SubmitPayment(c *gin.Context) {
	var in service.PaymentInput
	if !bind(c, &in) {
		return
	}
	v, err := h.svc.SubmitPayment(c.Request.Context(), h.reference(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// Finalize creates the permanent account and clears the cookie. A replay answers 200
// with already_finalized set.
func (h *Handler) Finalize(c *gin.Context) {
	res, err := h.svc.Finalize(c.Request.Context(), h.reference(c))
	if err != nil && !(errors.Is(err, domain.ErrAlreadyFinalized) && res != nil) {
		h.fail(c, err)
		return
	}
	h.clearCookie(c)
	c.JSON(http.StatusOK, res)
}

// Abandon discards the registration and clears the cookie.
func (h *Handler) Abandon(c *gin.Context) {
	if id := h.reference(c); id != "" {
		if err := h.svc.Abandon(c.Request.Context(), id); err != nil {
			h.fail(c, err)
			return
		}
	}
	h.clearCookie(c)
	c.Status(http.StatusNoContent)
}

func (h *Handler) reference(c *gin.Context) string {
	v, err := c.Cookie(h.cookie.Name)
	if err != nil {
		return ""
	}
	return v
}

func (h *Handler) setCookie(c *gin.Context, id string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, id, int(h.cookie.MaxAge.Seconds()), "/", h.cookie.Domain, h.cookie.Secure, true)
}

func (h *Handler) clearCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, "", -1, "/", h.cookie.Domain, h.cookie.Secure, true)
}

func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON", nil)
		return false
	}
	return true
}
