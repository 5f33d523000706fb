package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/caremarket/onboarding-api/internal/models"
	"github.com/caremarket/onboarding-api/internal/services"
)

// OnboardingHandlers serves the stepped onboarding flow and the phone
// sub-machine inside it. Every route is track-scoped via the optional
// ?track= query parameter, defaulting to the professional track.
type OnboardingHandlers struct {
	service *services.OnboardingService
}

func NewOnboardingHandlers(service *services.OnboardingService) *OnboardingHandlers {
	return &OnboardingHandlers{service: service}
}

// requestTrack resolves the onboarding track the request addresses. An
// unknown track is reported to the client and aborts the handler.
func requestTrack(c *gin.Context) (string, bool) {
	track := c.DefaultQuery("track", models.TrackProfessional)
	if !models.ValidTrack(track) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unknown track: " + track})
		return "", false
	}
	return track, true
}

// GetProgress returns the user's current onboarding state. A store timeout
// yields a fresh default progress so the client can always render a step.
func (h *OnboardingHandlers) GetProgress(c *gin.Context) {
	track, ok := requestTrack(c)
	if !ok {
		return
	}
	progress, err := h.service.GetProgress(c.Request.Context(), c.Param("userId"), track)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

// Advance performs one forward transition with the step's payload.
func (h *OnboardingHandlers) Advance(c *gin.Context) {
	track, ok := requestTrack(c)
	if !ok {
		return
	}

	var req models.OnboardingAdvanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	progress, err := h.service.Advance(c.Request.Context(), c.Param("userId"), track, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

// Back performs one backward transition.
func (h *OnboardingHandlers) Back(c *gin.Context) {
	track, ok := requestTrack(c)
	if !ok {
		return
	}
	progress, err := h.service.Back(c.Request.Context(), c.Param("userId"), track)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

// RequestPhoneCode issues a verification code for the submitted number.
func (h *OnboardingHandlers) RequestPhoneCode(c *gin.Context) {
	track, ok := requestTrack(c)
	if !ok {
		return
	}

	var req models.PhoneCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	progress, err := h.service.StartPhoneVerification(c.Request.Context(), c.Param("userId"), track, req.Phone)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

// VerifyPhoneCode checks the submitted code against the pending one.
func (h *OnboardingHandlers) VerifyPhoneCode(c *gin.Context) {
	track, ok := requestTrack(c)
	if !ok {
		return
	}

	var req models.PhoneVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	progress, err := h.service.ConfirmPhoneCode(c.Request.Context(), c.Param("userId"), track, req.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}
