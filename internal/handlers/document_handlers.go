package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/caremarket/onboarding-api/internal/services"
	"github.com/caremarket/onboarding-api/internal/utils"
)

// DocumentHandlers serves standalone document uploads and the cached
// extraction results that back the client's autofill.
type DocumentHandlers struct {
	uploads *services.UploadService
	cache   *services.ExtractionCache
}

func NewDocumentHandlers(uploads *services.UploadService, cache *services.ExtractionCache) *DocumentHandlers {
	return &DocumentHandlers{uploads: uploads, cache: cache}
}

// Upload stores one document blob for the user. The multipart field "file"
// carries the document; "facility=true" routes the blob and metadata to the
// facility profile.
func (h *DocumentHandlers) Upload(c *gin.Context) {
	documentType := c.Param("documentType")
	if result := utils.ValidateDocumentType(documentType); !result.IsValid {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  fmt.Sprintf("unknown document type %q", documentType),
			"fields": result.Errors,
		})
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "multipart field 'file' is required"})
		return
	}

	reader, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "failed to read uploaded file"})
		return
	}
	defer reader.Close()

	record, err := h.uploads.Upload(c.Request.Context(), services.UploadInput{
		OwnerID:      c.Param("userId"),
		Facility:     c.Query("facility") == "true",
		DocumentType: documentType,
		Subfolder:    documentType,
		FileName:     file.Filename,
		ContentType:  file.Header.Get("Content-Type"),
		Content:      reader,
	}, nil)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

// GetCachedExtraction returns the cached extraction for a document type so
// the client can prefill forms without re-running extraction. A cache miss
// is 404.
func (h *DocumentHandlers) GetCachedExtraction(c *gin.Context) {
	documentType := c.Param("documentType")
	if !utils.IsValidDocumentType(documentType) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: fmt.Sprintf("unknown document type %q", documentType),
		})
		return
	}

	entry, err := h.cache.Get(c.Request.Context(), c.Param("userId"), documentType)
	if err != nil {
		respondError(c, err)
		return
	}
	if entry == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no cached extraction for this document type"})
		return
	}
	c.JSON(http.StatusOK, entry)
}

// InvalidateCachedExtraction drops the cached extraction for a document
// type, forcing the next verification to re-extract.
func (h *DocumentHandlers) InvalidateCachedExtraction(c *gin.Context) {
	documentType := c.Param("documentType")
	if !utils.IsValidDocumentType(documentType) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: fmt.Sprintf("unknown document type %q", documentType),
		})
		return
	}

	h.cache.Invalidate(c.Request.Context(), c.Param("userId"), documentType)
	c.JSON(http.StatusOK, SuccessResponse{Message: "extraction cache invalidated"})
}
