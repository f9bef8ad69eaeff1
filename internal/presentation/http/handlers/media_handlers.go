package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pagecanvas/pagecanvas-go/internal/application/services"
	"github.com/pagecanvas/pagecanvas-go/internal/infrastructure/observability/logging"
)

// UploadImageRequest carries a base64 (or data-URI) image payload.
type UploadImageRequest struct {
	Filename string `json:"filename"`
	Payload  string `json:"payload" binding:"required"`
}

// MediaHandlers contains all media-related HTTP handlers
type MediaHandlers struct {
	mediaService *services.MediaService
	logger       *logging.ChanneledLogger
}

// NewMediaHandlers creates media handlers with injected dependencies
func NewMediaHandlers(mediaService *services.MediaService, logger *logging.ChanneledLogger) *MediaHandlers {
	return &MediaHandlers{
		mediaService: mediaService,
		logger:       logger,
	}
}

// UploadImage stores one base64 image payload and returns its stored path
func (h *MediaHandlers) UploadImage(c *gin.Context) {
	start := time.Now()

	var req UploadImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	result, err := h.mediaService.Upload(req.Filename, req.Payload)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.logger.Media().Info("Image upload completed", "path", result.Path, "duration", time.Since(start))
	c.JSON(http.StatusCreated, result)
}

// DeleteImage removes a stored image and its variants
func (h *MediaHandlers) DeleteImage(c *gin.Context) {
	id := c.Param("id")
	if err := h.mediaService.Delete(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}
