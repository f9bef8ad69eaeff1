package handlers

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pagecanvas/pagecanvas-go/internal/application/services"
	"github.com/pagecanvas/pagecanvas-go/internal/infrastructure/observability/logging"
)

// maxTemplateBytes caps the accepted size of a serialized page tree.
const maxTemplateBytes = 4 << 20

// TemplateHandlers contains all template-related HTTP handlers
type TemplateHandlers struct {
	templateService *services.TemplateService
	previewService  *services.PreviewService
	logger          *logging.ChanneledLogger
}

// NewTemplateHandlers creates template handlers with injected dependencies
func NewTemplateHandlers(templateService *services.TemplateService, previewService *services.PreviewService, logger *logging.ChanneledLogger) *TemplateHandlers {
	return &TemplateHandlers{
		templateService: templateService,
		previewService:  previewService,
		logger:          logger,
	}
}

// ListTemplates returns the template index
func (h *TemplateHandlers) ListTemplates(c *gin.Context) {
	templates, err := h.templateService.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"templates": templates,
		"count":     len(templates),
	})
}

// GetTemplate returns one template's serialized tree
func (h *TemplateHandlers) GetTemplate(c *gin.Context) {
	name := c.Param("name")
	tree, err := h.templateService.Load(name)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json", tree)
}

// SaveTemplate stores the request body as a named template. The body is the
// serialized tree itself.
func (h *TemplateHandlers) SaveTemplate(c *gin.Context) {
	start := time.Now()
	name := c.Param("name")

	tree, err := io.ReadAll(io.LimitReader(c.Request.Body, maxTemplateBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}
	if len(tree) > maxTemplateBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "template too large"})
		return
	}

	if err := h.templateService.Save(name, tree); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.logger.Builder().Info("Template save request completed", "name", name, "duration", time.Since(start))
	c.JSON(http.StatusOK, gin.H{"name": name})
}

// DeleteTemplate removes a template
func (h *TemplateHandlers) DeleteTemplate(c *gin.Context) {
	name := c.Param("name")
	if err := h.templateService.Delete(name); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": name})
}

// ExportTemplate streams a template as a JSON file download
func (h *TemplateHandlers) ExportTemplate(c *gin.Context) {
	name := c.Param("name")
	filename, content, err := h.templateService.Export(name)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/json", content)
}

// PreviewTemplate renders a template into a fully resolved preview tree
func (h *TemplateHandlers) PreviewTemplate(c *gin.Context) {
	start := time.Now()
	name := c.Param("name")

	preview, err := h.previewService.RenderTemplate(c.Request.Context(), name)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	h.logger.Render().Info("Template preview request completed", "name", name, "duration", time.Since(start))
	c.JSON(http.StatusOK, preview)
}
