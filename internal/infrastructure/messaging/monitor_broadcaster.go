// Package messaging streams collection change reports to connected
// builder clients over websockets.
package messaging

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ohler55/ojg/oj"

	"github.com/pagecanvas/pagecanvas-go/internal/domain/monitor"
	"github.com/pagecanvas/pagecanvas-go/internal/infrastructure/observability/logging"
)

const (
	writeWait     = 10 * time.Second
	pingInterval  = 30 * time.Second
	clientBufSize = 16
)

// MonitorClient is a single connected websocket subscriber scoped to one
// graph session.
type MonitorClient struct {
	Conn    *websocket.Conn
	GraphID string
	Send    chan []byte
}

// NewMonitorClient wraps an upgraded connection as a subscriber for one
// graph session.
func NewMonitorClient(conn *websocket.Conn, graphID string) *MonitorClient {
	return &MonitorClient{
		Conn:    conn,
		GraphID: graphID,
		Send:    make(chan []byte, clientBufSize),
	}
}

// MonitorBroadcaster fans change reports out to every client subscribed to
// the report's graph. Slow clients drop messages rather than block the
// publisher.
type MonitorBroadcaster struct {
	graphClients map[string]map[*MonitorClient]bool
	register     chan *MonitorClient
	unregister   chan *MonitorClient
	done         chan struct{}
	closeOnce    sync.Once
	mu           sync.RWMutex
	logger       *logging.ChanneledLogger
}

func NewMonitorBroadcaster(logger *logging.ChanneledLogger) *MonitorBroadcaster {
	return &MonitorBroadcaster{
		graphClients: make(map[string]map[*MonitorClient]bool),
		register:     make(chan *MonitorClient),
		unregister:   make(chan *MonitorClient),
		done:         make(chan struct{}),
		logger:       logger,
	}
}

// Run drives registration and unregistration. It should be started as a
// goroutine and exits when Close is called.
func (b *MonitorBroadcaster) Run() {
	for {
		select {
		case client := <-b.register:
			b.mu.Lock()
			if _, ok := b.graphClients[client.GraphID]; !ok {
				b.graphClients[client.GraphID] = make(map[*MonitorClient]bool)
			}
			b.graphClients[client.GraphID][client] = true
			b.mu.Unlock()
			b.logger.WebSocket().Debug("Monitor client registered", "graphId", client.GraphID)

		case client := <-b.unregister:
			b.mu.Lock()
			if clients, ok := b.graphClients[client.GraphID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send)
					if len(clients) == 0 {
						delete(b.graphClients, client.GraphID)
					}
				}
			}
			b.mu.Unlock()
			b.logger.WebSocket().Debug("Monitor client unregistered", "graphId", client.GraphID)

		case <-b.done:
			b.mu.Lock()
			for graphID, clients := range b.graphClients {
				for client := range clients {
					close(client.Send)
				}
				delete(b.graphClients, graphID)
			}
			b.mu.Unlock()
			return
		}
	}
}

// Register queues a client for registration.
func (b *MonitorBroadcaster) Register(client *MonitorClient) {
	select {
	case b.register <- client:
	case <-b.done:
	}
}

// Unregister queues a client for removal.
func (b *MonitorBroadcaster) Unregister(client *MonitorClient) {
	select {
	case b.unregister <- client:
	case <-b.done:
	}
}

// Close shuts the broadcaster down and disconnects all clients.
func (b *MonitorBroadcaster) Close() {
	b.closeOnce.Do(func() { close(b.done) })
}

// Publish sends a change report to every client subscribed to its graph.
func (b *MonitorBroadcaster) Publish(graphID string, report *monitor.Report) {
	if report == nil || !report.HasChanges() {
		return
	}

	message := []byte(oj.JSON(report))

	b.mu.RLock()
	defer b.mu.RUnlock()

	clients, ok := b.graphClients[graphID]
	if !ok {
		return
	}
	for client := range clients {
		select {
		case client.Send <- message:
		default:
			b.logger.WebSocket().Warn("Monitor client buffer full, report dropped", "graphId", graphID)
		}
	}
}

// ClientCount reports the number of subscribers for a graph.
func (b *MonitorBroadcaster) ClientCount(graphID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.graphClients[graphID])
}

// WritePump drains a client's send channel onto its websocket connection,
// interleaving pings. The caller owns the goroutine; the pump exits when the
// send channel closes or a write fails.
func (b *MonitorBroadcaster) WritePump(client *MonitorClient) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
