package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pagecanvas/pagecanvas-go/internal/application/services"
	"github.com/pagecanvas/pagecanvas-go/internal/domain/engine"
	"github.com/pagecanvas/pagecanvas-go/internal/domain/entities/builder"
	"github.com/pagecanvas/pagecanvas-go/internal/infrastructure/observability/logging"
)

// SetPropRequest patches node properties. Class selects the debounce policy.
type SetPropRequest struct {
	Props map[string]any `json:"props" binding:"required"`
	Class string         `json:"class,omitempty"`
}

// GraphHandlers contains the HTTP handlers for live editing sessions
type GraphHandlers struct {
	graphService   *services.GraphService
	previewService *services.PreviewService
	logger         *logging.ChanneledLogger
}

// NewGraphHandlers creates graph handlers with injected dependencies
func NewGraphHandlers(graphService *services.GraphService, previewService *services.PreviewService, logger *logging.ChanneledLogger) *GraphHandlers {
	return &GraphHandlers{
		graphService:   graphService,
		previewService: previewService,
		logger:         logger,
	}
}

// CreateGraph opens a new editing session
func (h *GraphHandlers) CreateGraph(c *gin.Context) {
	session := h.graphService.Create()
	c.JSON(http.StatusCreated, gin.H{"graphId": session.ID})
}

// ListGraphs returns all live session ids
func (h *GraphHandlers) ListGraphs(c *gin.Context) {
	ids := h.graphService.List()
	c.JSON(http.StatusOK, gin.H{
		"graphIds": ids,
		"count":    len(ids),
	})
}

// GetGraph returns the session's current node graph
func (h *GraphHandlers) GetGraph(c *gin.Context) {
	id := c.Param("id")
	graph, err := h.graphService.Graph(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, graph)
}

// CloseGraph tears an editing session down
func (h *GraphHandlers) CloseGraph(c *gin.Context) {
	id := c.Param("id")
	if err := h.graphService.Close(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"graphId": id})
}

// SerializeGraph snapshots the session graph as a serialized tree
func (h *GraphHandlers) SerializeGraph(c *gin.Context) {
	id := c.Param("id")
	tree, err := h.graphService.Serialize(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json", tree)
}

// DeserializeGraph replaces the session graph with the request body
func (h *GraphHandlers) DeserializeGraph(c *gin.Context) {
	start := time.Now()
	id := c.Param("id")

	tree, err := io.ReadAll(io.LimitReader(c.Request.Body, maxTemplateBytes+1))
	if err != nil || len(tree) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}
	if len(tree) > maxTemplateBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "tree too large"})
		return
	}

	if err := h.graphService.Deserialize(id, tree); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.logger.Builder().Info("Graph load request completed", "graphId", id, "duration", time.Since(start))
	c.JSON(http.StatusOK, gin.H{"graphId": id})
}

// SetNodeProps patches one node's properties
func (h *GraphHandlers) SetNodeProps(c *gin.Context) {
	id := c.Param("id")
	nodeID := c.Param("nodeId")

	var req SetPropRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	class := engine.PropClassImmediate
	if req.Class == string(engine.PropClassDebounced) {
		class = engine.PropClassDebounced
	}

	if err := h.graphService.SetProp(id, nodeID, class, req.Props); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"nodeId": nodeID})
}

// AddNode inserts a node into the session graph
func (h *GraphHandlers) AddNode(c *gin.Context) {
	id := c.Param("id")

	var node builder.Node
	if err := c.ShouldBindJSON(&node); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	if err := h.graphService.AddNode(id, &node); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"nodeId": node.ID})
}

// RemoveNode deletes a node subtree from the session graph
func (h *GraphHandlers) RemoveNode(c *gin.Context) {
	id := c.Param("id")
	nodeID := c.Param("nodeId")

	if err := h.graphService.RemoveNode(id, nodeID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"nodeId": nodeID})
}

// ExpandCollection re-renders one collection node
func (h *GraphHandlers) ExpandCollection(c *gin.Context) {
	start := time.Now()
	id := c.Param("id")
	nodeID := c.Param("nodeId")

	expansion, err := h.graphService.Expand(c.Request.Context(), id, nodeID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.logger.Render().Info("Collection expand request completed",
		"graphId", id, "collectionId", nodeID, "items", len(expansion.Items), "duration", time.Since(start))
	c.JSON(http.StatusOK, expansion)
}

// PreviewGraph renders the live session graph into a resolved preview tree
func (h *GraphHandlers) PreviewGraph(c *gin.Context) {
	id := c.Param("id")

	session, err := h.graphService.Get(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	preview, err := h.previewService.RenderGraph(c.Request.Context(), session)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, preview)
}
