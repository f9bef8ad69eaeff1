package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/pagecanvas/pagecanvas-go/internal/application/services"
	"github.com/pagecanvas/pagecanvas-go/internal/infrastructure/messaging"
	"github.com/pagecanvas/pagecanvas-go/internal/infrastructure/observability/logging"
)

// MonitorHandlers exposes the change monitor: a state snapshot endpoint and
// a websocket stream of change reports.
type MonitorHandlers struct {
	graphService *services.GraphService
	broadcaster  *messaging.MonitorBroadcaster
	upgrader     websocket.Upgrader
	logger       *logging.ChanneledLogger
}

// NewMonitorHandlers creates monitor handlers with injected dependencies
func NewMonitorHandlers(graphService *services.GraphService, broadcaster *messaging.MonitorBroadcaster, logger *logging.ChanneledLogger) *MonitorHandlers {
	return &MonitorHandlers{
		graphService: graphService,
		broadcaster:  broadcaster,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Origin checking is handled by the CORS middleware.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// GetMonitorState returns the monitor's current per-collection summaries
func (h *MonitorHandlers) GetMonitorState(c *gin.Context) {
	id := c.Param("id")
	state, err := h.graphService.MonitorState(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"collections": state,
		"count":       len(state),
	})
}

// StreamChanges upgrades to a websocket and streams change reports for one
// graph session until the client disconnects
func (h *MonitorHandlers) StreamChanges(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.graphService.Get(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WebSocket().Error("Websocket upgrade failed", "graphId", id, "error", err.Error())
		return
	}

	client := messaging.NewMonitorClient(conn, id)
	h.broadcaster.Register(client)

	go h.broadcaster.WritePump(client)

	// Read loop only consumes control frames; any read error means the
	// client went away.
	go func() {
		defer h.broadcaster.Unregister(client)
		conn.SetReadLimit(512)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
