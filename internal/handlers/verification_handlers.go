package handlers

import (
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/caremarket/onboarding-api/internal/config"
	"github.com/caremarket/onboarding-api/internal/models"
	"github.com/caremarket/onboarding-api/internal/services"
)

// VerificationHandlers triggers the verification pipeline per track and
// reports stored verification state.
type VerificationHandlers struct {
	pipeline *services.VerificationPipeline
}

func NewVerificationHandlers(pipeline *services.VerificationPipeline) *VerificationHandlers {
	return &VerificationHandlers{pipeline: pipeline}
}

// FacilityVerifyRequest triggers the facility track.
type FacilityVerifyRequest struct {
	GLN             string `json:"gln" binding:"required"`
	ResponsibleName string `json:"responsible_name,omitempty"`
}

// ChainVerifyRequest triggers the chain track.
type ChainVerifyRequest struct {
	UID string `json:"uid" binding:"required"`
}

// VerificationStatusResponse is the stored per-track state.
type VerificationStatusResponse struct {
	Professional string `json:"professional,omitempty"`
	Facility     string `json:"facility,omitempty"`
	Commercial   string `json:"commercial,omitempty"`
}

// VerifyProfessional runs the worker track. Multipart request: "gln" form
// value, "identity" document (required), "billing" document (optional).
// The caller's bearer token is forwarded to the extraction provider.
func (h *VerificationHandlers) VerifyProfessional(c *gin.Context) {
	gln := c.PostForm("gln")
	if gln == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "form field 'gln' is required"})
		return
	}

	identity, closeIdentity, err := formDocument(c, "identity")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "multipart field 'identity' is required"})
		return
	}
	defer closeIdentity()

	var billing *services.DocumentInput
	if _, err := c.FormFile("billing"); err == nil {
		var closeBilling func()
		billing, closeBilling, err = formDocument(c, "billing")
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "failed to read billing document"})
			return
		}
		defer closeBilling()
	}

	result, err := h.pipeline.VerifyProfessional(c.Request.Context(), services.ProfessionalVerificationInput{
		UserID:   c.Param("userId"),
		Token:    c.GetString("token"),
		GLN:      gln,
		Bypass:   config.AppConfig.VerificationBypass,
		Identity: identity,
		Billing:  billing,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// VerifyFacility runs the facility track.
func (h *VerificationHandlers) VerifyFacility(c *gin.Context) {
	var req FacilityVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	result, err := h.pipeline.VerifyFacility(c.Request.Context(), services.FacilityVerificationInput{
		OwnerID:         c.Param("userId"),
		GLN:             req.GLN,
		ResponsibleName: req.ResponsibleName,
		Bypass:          config.AppConfig.VerificationBypass,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// VerifyChain runs the chain track.
func (h *VerificationHandlers) VerifyChain(c *gin.Context) {
	var req ChainVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	result, err := h.pipeline.VerifyChain(c.Request.Context(), services.ChainVerificationInput{
		OwnerID: c.Param("userId"),
		UID:     req.UID,
		Bypass:  config.AppConfig.VerificationBypass,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetStatus returns the stored verification state across tracks.
func (h *VerificationHandlers) GetStatus(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.Param("userId")
	var response VerificationStatusResponse

	var professional models.ProfessionalProfile
	err := config.MongoDB.Collection(config.AppConfig.ProfessionalCollection).
		FindOne(ctx, bson.M{"user_id": userID}).Decode(&professional)
	if err == nil {
		response.Professional = professional.VerificationStatus
	} else if err != mongo.ErrNoDocuments {
		respondError(c, err)
		return
	}

	var facility models.FacilityProfile
	err = config.MongoDB.Collection(config.AppConfig.FacilityCollection).
		FindOne(ctx, bson.M{"owner_id": userID}).Decode(&facility)
	if err == nil {
		response.Facility = facility.VerificationStatus
		response.Commercial = facility.CommercialStatus
	} else if err != mongo.ErrNoDocuments {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// formDocument opens one multipart document field as a pipeline input.
func formDocument(c *gin.Context, field string) (*services.DocumentInput, func(), error) {
	file, err := c.FormFile(field)
	if err != nil {
		return nil, nil, err
	}
	reader, err := file.Open()
	if err != nil {
		return nil, nil, err
	}
	return &services.DocumentInput{
		FileName:    file.Filename,
		ContentType: contentTypeOf(file),
		Content:     reader,
	}, func() { _ = reader.Close() }, nil
}

func contentTypeOf(file *multipart.FileHeader) string {
	if ct := file.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
