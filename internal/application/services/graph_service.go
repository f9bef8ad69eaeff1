// Package services provides application-level services that orchestrate
// business logic and coordinate between domain packages and infrastructure.
package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/pagecanvas/pagecanvas-go/internal/domain/engine"
	"github.com/pagecanvas/pagecanvas-go/internal/domain/entities/builder"
	"github.com/pagecanvas/pagecanvas-go/internal/domain/monitor"
	"github.com/pagecanvas/pagecanvas-go/internal/domain/render"
	"github.com/pagecanvas/pagecanvas-go/internal/infrastructure/engine/memory"
	"github.com/pagecanvas/pagecanvas-go/internal/infrastructure/observability/logging"
)

// Publisher receives change reports produced while a graph session mutates.
type Publisher interface {
	Publish(graphID string, report *monitor.Report)
}

// Session is one live editing session: an in-memory node graph plus the
// renderer plumbing and change monitor attached to it.
type Session struct {
	ID        string
	Store     *memory.Store
	Refresher *render.AutoRefresher
	Monitor   *monitor.Monitor
	CreatedAt time.Time
}

// GraphService owns the set of live editing sessions. Each session gets its
// own engine store, auto-refresher, and monitor; closing a session tears all
// three down.
type GraphService struct {
	mu       sync.Mutex
	sessions map[string]*Session

	renderer  *render.Renderer
	publisher Publisher
	debounce  time.Duration
	logger    *logging.ChanneledLogger

	ctx    context.Context
	cancel context.CancelFunc
}

func NewGraphService(renderer *render.Renderer, publisher Publisher, debounce time.Duration, logger *logging.ChanneledLogger) *GraphService {
	ctx, cancel := context.WithCancel(context.Background())
	return &GraphService{
		sessions:  make(map[string]*Session),
		renderer:  renderer,
		publisher: publisher,
		debounce:  debounce,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Create opens a new editing session seeded with an empty canvas.
func (s *GraphService) Create() *Session {
	id := "graph-" + ulid.Make().String()

	store := memory.NewStore(s.logger, s.debounce)
	refresher := render.NewAutoRefresher(s.renderer, store, s.logger)
	refresher.Start(s.ctx)
	mon := monitor.New(s.logger)

	session := &Session{
		ID:        id,
		Store:     store,
		Refresher: refresher,
		Monitor:   mon,
		CreatedAt: time.Now(),
	}

	store.OnNodesChanged(func(q engine.Query) {
		refresher.Sync()
		graph := q.Graph()
		for nodeID, node := range graph {
			if node.DisplayName != builder.DisplayNameCollections {
				continue
			}
			if err := s.renderer.SyncFields(store, nodeID); err != nil {
				s.logger.Render().Warn("Field propagation failed", "graphId", id, "nodeId", nodeID, "error", err.Error())
			}
		}
		if report := mon.Observe(graph); report != nil && s.publisher != nil {
			s.publisher.Publish(id, report)
		}
	})

	s.mu.Lock()
	s.sessions[id] = session
	s.mu.Unlock()

	s.logger.Builder().Info("Graph session created", "graphId", id)
	return session
}

// Get returns a session by id.
func (s *GraphService) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("graph session %s not found", id)
	}
	return session, nil
}

// List returns session ids sorted oldest-first.
func (s *GraphService) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return s.sessions[ids[i]].CreatedAt.Before(s.sessions[ids[j]].CreatedAt)
	})
	return ids
}

// Close tears down one session.
func (s *GraphService) Close(id string) error {
	s.mu.Lock()
	session, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("graph session %s not found", id)
	}

	session.Refresher.Close()
	session.Monitor.Dispose()
	s.logger.Builder().Info("Graph session closed", "graphId", id)
	return nil
}

// CloseAll tears down every session. Used at shutdown.
func (s *GraphService) CloseAll() {
	s.cancel()
	s.mu.Lock()
	sessions := make([]*Session, 0, len(s.sessions))
	for id, session := range s.sessions {
		sessions = append(sessions, session)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	for _, session := range sessions {
		session.Refresher.Close()
		session.Monitor.Dispose()
	}
}

// Graph returns the session's current node graph.
func (s *GraphService) Graph(id string) (builder.Graph, error) {
	session, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	return session.Store.Graph(), nil
}

// Deserialize replaces the session's graph with a serialized tree.
func (s *GraphService) Deserialize(id string, data []byte) error {
	session, err := s.Get(id)
	if err != nil {
		return err
	}
	if err := session.Store.Deserialize(data); err != nil {
		return fmt.Errorf("failed to load graph %s: %w", id, err)
	}
	return nil
}

// Serialize snapshots the session's graph.
func (s *GraphService) Serialize(id string) ([]byte, error) {
	session, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	return session.Store.Serialize()
}

// SetProp applies a property patch to one node, immediate or debounced
// depending on class.
func (s *GraphService) SetProp(id, nodeID string, class engine.PropClass, values map[string]any) error {
	session, err := s.Get(id)
	if err != nil {
		return err
	}
	mutate := func(props map[string]any) {
		for k, v := range values {
			props[k] = v
		}
	}
	if class == engine.PropClassDebounced {
		return session.Store.SetPropDebounced(nodeID, class, mutate)
	}
	return session.Store.SetProp(nodeID, mutate)
}

// AddNode inserts a node into the session graph.
func (s *GraphService) AddNode(id string, node *builder.Node) error {
	session, err := s.Get(id)
	if err != nil {
		return err
	}
	if node.ID == "" {
		node.ID = "node-" + ulid.Make().String()
	}
	return session.Store.AddNode(node)
}

// RemoveNode deletes a node subtree from the session graph.
func (s *GraphService) RemoveNode(id, nodeID string) error {
	session, err := s.Get(id)
	if err != nil {
		return err
	}
	session.Refresher.Untrack(nodeID)
	return session.Store.RemoveNode(nodeID)
}

// Expand re-renders one collection node, fanning its dataset out into item
// containers.
func (s *GraphService) Expand(ctx context.Context, id, nodeID string) (*render.Expansion, error) {
	session, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	return s.renderer.Expand(ctx, session.Store, nodeID)
}

// MonitorState returns the monitor's current per-collection summaries.
func (s *GraphService) MonitorState(id string) (map[string]monitor.Summary, error) {
	session, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	return session.Monitor.State(), nil
}
