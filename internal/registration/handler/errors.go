package handler

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/registration/domain"
)

// fail maps a service error to its HTTP status and error code.
func (h *Handler) fail(c *gin.Context, err error) {
	var (
		verr     *domain.ValidationError
		notReach *domain.StepNotReachedError
		limited  *domain.RateLimitedError
		invalid  *domain.InvalidCodeError
		declined *domain.PaymentDeclinedError
	)
	switch {
	case errors.As(err, &verr):
		writeError(c, http.StatusBadRequest, "VALIDATION_FAILED", "some fields are invalid", gin.H{"fields": verr.Fields})
	case errors.Is(err, domain.ErrValidation):
		writeError(c, http.StatusBadRequest, "VALIDATION_FAILED", err.Error(), nil)
	case errors.As(err, &notReach):
		writeError(c, http.StatusConflict, "STEP_NOT_REACHED", "complete the current step first", gin.H{
			"requested_step": notReach.Requested,
			"current_step":   notReach.Current,
		})
	case errors.Is(err, domain.ErrStepLocked):
		writeError(c, http.StatusConflict, "STEP_LOCKED", err.Error(), nil)
	case errors.Is(err, domain.ErrSlugTaken):
		writeError(c, http.StatusConflict, "SLUG_TAKEN", "this workspace address is already taken", nil)
	case errors.Is(err, domain.ErrEmailInUse):
		writeError(c, http.StatusConflict, "EMAIL_IN_USE", "an account with this email already exists", nil)
	case errors.Is(err, domain.ErrAlreadyVerified):
		writeError(c, http.StatusConflict, "ALREADY_VERIFIED", "contact already verified", nil)
	case errors.Is(err, domain.ErrNotReady):
		writeError(c, http.StatusConflict, "NOT_READY", err.Error(), nil)
	case errors.Is(err, domain.ErrPaymentInProgress):
		writeError(c, http.StatusConflict, "PAYMENT_IN_PROGRESS", "a payment is already being processed; check the status shortly", nil)
	case errors.As(err, &limited):
		secs := int(math.Ceil(limited.RetryAfter.Seconds()))
		if secs < 1 {
			secs = 1
		}
		c.Header("Retry-After", strconv.Itoa(secs))
		writeError(c, http.StatusTooManyRequests, "RATE_LIMITED", "please wait before requesting another code", gin.H{"retry_after_seconds": secs})
	case errors.Is(err, domain.ErrRegistrationExpired):
		h.clearCookie(c)
		writeError(c, http.StatusGone, "REGISTRATION_EXPIRED", "registration expired; start again", nil)
	case errors.As(err, &invalid):
		writeError(c, http.StatusUnprocessableEntity, "INVALID_CODE", "the code is incorrect", gin.H{"attempts_remaining": invalid.AttemptsRemaining})
	case errors.Is(err, domain.ErrChallengeExpired):
		writeError(c, http.StatusUnprocessableEntity, "CHALLENGE_EXPIRED", "the code expired; request a new one", nil)
	case errors.Is(err, domain.ErrAttemptsExhausted):
		writeError(c, http.StatusUnprocessableEntity, "ATTEMPTS_EXHAUSTED", "too many wrong codes; request a new one", nil)
	case errors.Is(err, domain.ErrNoActiveChallenge):
		writeError(c, http.StatusUnprocessableEntity, "NO_ACTIVE_CHALLENGE", "request a code first", nil)
	case errors.As(err, &declined):
		writeError(c, http.StatusPaymentRequired, "PAYMENT_DECLINED", "the payment was declined", gin.H{"reason": declined.Reason})
	case errors.Is(err, domain.ErrPolicyDenied):
		writeError(c, http.StatusForbidden, "POLICY_DENIED", err.Error(), nil)
	case errors.Is(err, domain.ErrUnavailable):
		log.Warn().Err(err).Str("path", c.FullPath()).Msg("registration: transient failure")
		writeError(c, http.StatusServiceUnavailable, "UNAVAILABLE", "temporarily unavailable; please retry", nil)
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("registration: unexpected error")
		writeError(c, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}

func writeError(c *gin.Context, status int, code, message string, details gin.H) {
	body := gin.H{"code": code, "message": message}
	for k, v := range details {
		body[k] = v
	}
	c.AbortWithStatusJSON(status, gin.H{"error": body})
}
