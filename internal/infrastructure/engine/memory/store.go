// Package memory provides the reference in-memory implementation of the
// editor-engine boundary: a node store with debounced prop mutation,
// serialization with a cycle-safe fallback, and change notification.
package memory

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pagecanvas/pagecanvas-go/internal/domain/engine"
	"github.com/pagecanvas/pagecanvas-go/internal/domain/entities/builder"
	"github.com/pagecanvas/pagecanvas-go/internal/infrastructure/observability/logging"
)

// DefaultDebounce is the quiet period for debounced property edits.
const DefaultDebounce = 500 * time.Millisecond

// Store is an in-memory node graph implementing engine.Engine. All methods
// are safe for concurrent use; change listeners run outside the lock after a
// mutation commits.
type Store struct {
	mu       sync.Mutex
	nodes    builder.Graph
	selected string
	hovered  string

	debounce time.Duration
	pending  map[string]*pendingEdits
	timers   map[string]*time.Timer

	listenersMu sync.Mutex
	listeners   []func(q engine.Query)

	logger *logging.ChanneledLogger
}

type pendingEdits struct {
	mutators []func(props map[string]any)
}

// NewStore creates a store seeded with an empty root canvas.
func NewStore(logger *logging.ChanneledLogger, debounce time.Duration) *Store {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	s := &Store{
		nodes:    make(builder.Graph),
		debounce: debounce,
		pending:  make(map[string]*pendingEdits),
		timers:   make(map[string]*time.Timer),
		logger:   logger,
	}
	s.nodes[builder.RootNodeID] = &builder.Node{
		ID:          builder.RootNodeID,
		DisplayName: builder.DisplayNameContainer,
		IsCanvas:    true,
		Props:       map[string]any{},
		Custom:      map[string]any{"displayName": "Canvas"},
	}
	return s
}

// Node returns a copy of one node.
func (s *Store) Node(id string) (*builder.Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, ok := s.nodes[id]
	if !ok {
		return nil, false
	}
	return node.Clone(), true
}

// Graph returns a deep-copy snapshot of the whole graph.
func (s *Store) Graph() builder.Graph {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nodes.Clone()
}

// Selected returns the currently selected node id.
func (s *Store) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Select records the currently selected node.
func (s *Store) Select(id string) {
	s.mu.Lock()
	s.selected = id
	s.mu.Unlock()
}

// SetProp mutates one node's props immediately.
func (s *Store) SetProp(id string, mutate func(props map[string]any)) error {
	s.mu.Lock()
	node, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("node %s not found", id)
	}
	if node.Props == nil {
		node.Props = map[string]any{}
	}
	mutate(node.Props)
	s.mu.Unlock()

	s.notify()
	return nil
}

// SetPropDebounced applies an edit per its property class: immediate classes
// commit at once, debounced classes batch until the node has been quiet for
// the debounce window, then commit in arrival order.
func (s *Store) SetPropDebounced(id string, class engine.PropClass, mutate func(props map[string]any)) error {
	if class != engine.PropClassDebounced {
		return s.SetProp(id, mutate)
	}

	s.mu.Lock()
	if _, ok := s.nodes[id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("node %s not found", id)
	}
	batch, ok := s.pending[id]
	if !ok {
		batch = &pendingEdits{}
		s.pending[id] = batch
	}
	batch.mutators = append(batch.mutators, mutate)

	if timer, ok := s.timers[id]; ok {
		timer.Stop()
	}
	s.timers[id] = time.AfterFunc(s.debounce, func() { s.flushNode(id) })
	s.mu.Unlock()
	return nil
}

// Flush commits every pending debounced edit now. Serialize calls it so a
// save never loses in-flight edits.
func (s *Store) Flush() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.flushNode(id)
	}
}

func (s *Store) flushNode(id string) {
	s.mu.Lock()
	batch, ok := s.pending[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.pending, id)
	if timer, ok := s.timers[id]; ok {
		timer.Stop()
		delete(s.timers, id)
	}
	node, exists := s.nodes[id]
	if exists {
		if node.Props == nil {
			node.Props = map[string]any{}
		}
		for _, mutate := range batch.mutators {
			mutate(node.Props)
		}
	}
	s.mu.Unlock()

	if exists {
		s.notify()
	}
}

// AddNode inserts a node and links it under its parent.
func (s *Store) AddNode(node *builder.Node) error {
	if node == nil || node.ID == "" {
		return fmt.Errorf("node requires an id")
	}
	s.mu.Lock()
	if _, ok := s.nodes[node.ID]; ok {
		s.mu.Unlock()
		return fmt.Errorf("node %s already exists", node.ID)
	}
	added := node.Clone()
	s.nodes[added.ID] = added
	if parent, ok := s.nodes[added.Parent]; ok && !contains(parent.Nodes, added.ID) {
		parent.Nodes = append(parent.Nodes, added.ID)
	}
	s.mu.Unlock()

	s.notify()
	return nil
}

// RemoveNode deletes a node and its whole subtree, detaching it from its
// parent.
func (s *Store) RemoveNode(id string) error {
	s.mu.Lock()
	node, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("node %s not found", id)
	}
	if parent, ok := s.nodes[node.Parent]; ok {
		parent.Nodes = remove(parent.Nodes, id)
	}
	s.removeSubtreeLocked(id)
	s.mu.Unlock()

	s.notify()
	return nil
}

func (s *Store) removeSubtreeLocked(id string) {
	node, ok := s.nodes[id]
	if !ok {
		return
	}
	for _, childID := range node.Nodes {
		s.removeSubtreeLocked(childID)
	}
	for _, linkedID := range node.LinkedNodes {
		s.removeSubtreeLocked(linkedID)
	}
	delete(s.nodes, id)
	if s.selected == id {
		s.selected = ""
	}
	if s.hovered == id {
		s.hovered = ""
	}
}

// SetChildren replaces one node's child ordering. Ids missing from the graph
// are dropped.
func (s *Store) SetChildren(id string, children []string) error {
	s.mu.Lock()
	node, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("node %s not found", id)
	}
	filtered := make([]string, 0, len(children))
	for _, childID := range children {
		if child, ok := s.nodes[childID]; ok {
			child.Parent = id
			filtered = append(filtered, childID)
		}
	}
	node.Nodes = filtered
	s.mu.Unlock()

	s.notify()
	return nil
}

// OnNodesChanged registers a listener invoked after every committed
// mutation. Listeners receive the store itself as a query handle.
func (s *Store) OnNodesChanged(listener func(q engine.Query)) {
	s.listenersMu.Lock()
	s.listeners = append(s.listeners, listener)
	s.listenersMu.Unlock()
}

func (s *Store) notify() {
	s.listenersMu.Lock()
	listeners := append([]func(q engine.Query){}, s.listeners...)
	s.listenersMu.Unlock()
	for _, listener := range listeners {
		listener(s)
	}
}

func contains(list []string, id string) bool {
	for _, item := range list {
		if item == id {
			return true
		}
	}
	return false
}

func remove(list []string, id string) []string {
	out := list[:0]
	for _, item := range list {
		if item != id {
			out = append(out, item)
		}
	}
	return out
}

var _ engine.Engine = (*Store)(nil)

// Serialize flushes pending edits and marshals the graph. When the full
// state fails to marshal (framework internals can smuggle unserializable
// values into props), it retries with a reduced, explicitly-safe snapshot:
// sanitized node graph plus minimal selection state.
func (s *Store) Serialize() ([]byte, error) {
	s.Flush()

	s.mu.Lock()
	tree := builder.SerializedTree{
		Nodes:  s.nodes.Clone(),
		Events: &builder.EditorEvents{Selected: s.selected, Hovered: s.hovered},
	}
	s.mu.Unlock()

	raw, err := json.Marshal(tree)
	if err == nil {
		return raw, nil
	}
	s.logger.Builder().Warn("Serialization failed, retrying with safe snapshot", "error", err.Error())

	safe := builder.SerializedTree{
		Nodes:  sanitizeGraph(tree.Nodes),
		Events: tree.Events,
	}
	raw, err = json.Marshal(safe)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize graph even with safe snapshot: %w", err)
	}
	return raw, nil
}

// Deserialize replaces the graph with a previously serialized tree.
func (s *Store) Deserialize(data []byte) error {
	var tree builder.SerializedTree
	if err := json.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("failed to parse serialized tree: %w", err)
	}
	if len(tree.Nodes) == 0 {
		return fmt.Errorf("serialized tree has no nodes")
	}
	if _, ok := tree.Nodes[builder.RootNodeID]; !ok {
		return fmt.Errorf("serialized tree has no %s node", builder.RootNodeID)
	}
	for id, node := range tree.Nodes {
		node.ID = id
	}

	s.mu.Lock()
	s.nodes = tree.Nodes
	s.pending = make(map[string]*pendingEdits)
	for _, timer := range s.timers {
		timer.Stop()
	}
	s.timers = make(map[string]*time.Timer)
	if tree.Events != nil {
		s.selected = tree.Events.Selected
		s.hovered = tree.Events.Hovered
	} else {
		s.selected = ""
		s.hovered = ""
	}
	s.mu.Unlock()

	s.notify()
	return nil
}

// sanitizeGraph drops any prop or custom value that cannot marshal on its
// own, keeping everything else.
func sanitizeGraph(graph builder.Graph) builder.Graph {
	out := make(builder.Graph, len(graph))
	for id, node := range graph {
		safe := node.Clone()
		safe.Props = sanitizeMap(safe.Props)
		safe.Custom = sanitizeMap(safe.Custom)
		out[id] = safe
	}
	return out
}

func sanitizeMap(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for key, value := range values {
		if _, err := json.Marshal(value); err != nil {
			continue
		}
		out[key] = value
	}
	return out
}
