// Package engine declares the boundary to the drag-and-drop editor engine.
// The Collections subsystem only ever touches the node graph through these
// interfaces; the reference in-memory implementation lives under
// infrastructure.
package engine

import "github.com/pagecanvas/pagecanvas-go/internal/domain/entities/builder"

// PropClass selects the mutation debounce policy for a property edit.
type PropClass string

const (
	// PropClassImmediate commits at once (toggles, selects, field pickers).
	PropClassImmediate PropClass = "immediate"
	// PropClassDebounced batches rapid edits (free text, slider drags).
	PropClassDebounced PropClass = "debounced"
)

// Query reads the current node graph.
type Query interface {
	Node(id string) (*builder.Node, bool)
	Graph() builder.Graph
	Selected() string
}

// Mutator is the sanctioned mutation entry point. Render-path code must not
// mutate nodes directly; it schedules changes through SetProp and the
// structural helpers.
type Mutator interface {
	SetProp(id string, mutate func(props map[string]any)) error
	SetPropDebounced(id string, class PropClass, mutate func(props map[string]any)) error
	AddNode(node *builder.Node) error
	RemoveNode(id string) error
	SetChildren(id string, children []string) error
}

// Serializer round-trips the graph through its JSON form.
type Serializer interface {
	Serialize() ([]byte, error)
	Deserialize(data []byte) error
}

// Engine is the full editor-engine surface the core consumes.
type Engine interface {
	Query
	Mutator
	Serializer
}
