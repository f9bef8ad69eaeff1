// Package builder defines the application's core node-graph domain entities.
package builder

// RootNodeID is the fixed id craft-style editors assign to the canvas root.
const RootNodeID = "ROOT"

// Display names identify block types structurally within a node graph.
const (
	DisplayNameCollections = "Collections"
	DisplayNameContainer   = "Container"
	DisplayNameText        = "Text"
	DisplayNameImage       = "Image"
	DisplayNameProductCard = "Product Card"
	DisplayNameButton      = "Button"
	DisplayNameVideo       = "Video"
)

// Well-known prop keys shared between the editor client and this backend.
const (
	PropRenderMode      = "renderMode"
	PropDataSource      = "dataSource"
	PropData            = "data"
	PropItemVariable    = "itemVariable"
	PropFields          = "fields"
	PropColumns         = "columns"
	PropLayout          = "layout"
	PropGridGap         = "gridGap"
	PropItemsPerRow     = "itemsPerRow"
	PropJSONData        = "jsonData"
	PropJSONDataPath    = "jsonDataPath"
	PropAPIURL          = "apiUrl"
	PropAPIEnabled      = "apiEnabled"
	PropAPIDataPath     = "apiDataPath"
	PropAPIRefresh      = "apiRefreshInterval"
	PropAPIMethod       = "apiMethod"
	PropAPIHeaders      = "apiHeaders"
	PropAPIBody         = "apiBody"
	PropUseDataBinding  = "useDataBinding"
	PropField           = "field"
	PropAvailableFields = "availableFields"
)

// CustomItemContainer marks a node created by a Collections expansion as a
// per-record container. Leaf blocks use it as one of the descendant-detection
// strategies.
const CustomItemContainer = "isItemContainer"

// Node is one entry in the editor's node graph.
type Node struct {
	ID          string            `json:"id"`
	Parent      string            `json:"parent,omitempty"`
	DisplayName string            `json:"displayName"`
	IsCanvas    bool              `json:"isCanvas,omitempty"`
	Hidden      bool              `json:"hidden,omitempty"`
	Nodes       []string          `json:"nodes,omitempty"`
	LinkedNodes map[string]string `json:"linkedNodes,omitempty"`
	Props       map[string]any    `json:"props,omitempty"`
	Custom      map[string]any    `json:"custom,omitempty"`
}

// Graph is the full node store keyed by node id.
type Graph map[string]*Node

// SerializedTree is the envelope produced by Serialize and accepted by
// Deserialize. Events carry only the minimal selection state that survives
// the safe-snapshot fallback.
type SerializedTree struct {
	Nodes  Graph          `json:"nodes"`
	Events *EditorEvents  `json:"events,omitempty"`
	Meta   map[string]any `json:"meta,omitempty"`
}

// EditorEvents is the reduced event state persisted alongside the node graph.
type EditorEvents struct {
	Selected string `json:"selected,omitempty"`
	Hovered  string `json:"hovered,omitempty"`
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := &Node{
		ID:          n.ID,
		Parent:      n.Parent,
		DisplayName: n.DisplayName,
		IsCanvas:    n.IsCanvas,
		Hidden:      n.Hidden,
	}
	if n.Nodes != nil {
		out.Nodes = append([]string{}, n.Nodes...)
	}
	if n.LinkedNodes != nil {
		out.LinkedNodes = make(map[string]string, len(n.LinkedNodes))
		for k, v := range n.LinkedNodes {
			out.LinkedNodes[k] = v
		}
	}
	out.Props = cloneValue(n.Props).(map[string]any)
	out.Custom = cloneValue(n.Custom).(map[string]any)
	return out
}

// Clone returns a deep copy of the graph.
func (g Graph) Clone() Graph {
	out := make(Graph, len(g))
	for id, node := range g {
		out[id] = node.Clone()
	}
	return out
}

// Ancestors returns the chain of ancestor ids from the node's parent up to
// the root, in walk order.
func (g Graph) Ancestors(id string) []string {
	var chain []string
	seen := map[string]bool{id: true}
	node, ok := g[id]
	for ok && node.Parent != "" {
		if seen[node.Parent] {
			break
		}
		seen[node.Parent] = true
		chain = append(chain, node.Parent)
		node, ok = g[node.Parent]
	}
	return chain
}

// StringProp reads a string-valued prop, returning fallback when absent or of
// another type.
func (n *Node) StringProp(key, fallback string) string {
	if n == nil || n.Props == nil {
		return fallback
	}
	if v, ok := n.Props[key].(string); ok {
		return v
	}
	return fallback
}

// BoolProp reads a bool-valued prop.
func (n *Node) BoolProp(key string) bool {
	if n == nil || n.Props == nil {
		return false
	}
	v, _ := n.Props[key].(bool)
	return v
}

// IntProp reads a numeric prop, accepting the float64 that JSON decoding
// produces for numbers.
func (n *Node) IntProp(key string, fallback int) int {
	if n == nil || n.Props == nil {
		return fallback
	}
	switch v := n.Props[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return fallback
}

// StringsProp reads a prop holding a list of strings, tolerating the []any
// representation JSON decoding produces.
func (n *Node) StringsProp(key string) []string {
	if n == nil || n.Props == nil {
		return nil
	}
	switch v := n.Props[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return val
	}
}
