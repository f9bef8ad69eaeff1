// Package binding implements the field-binding protocol between Collections
// blocks and the leaf blocks rendered inside them: the ambient per-record
// context, descendant detection, bound-value resolution, and the
// availableFields write-back that feeds property-editor field pickers.
package binding

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pagecanvas/pagecanvas-go/internal/domain/engine"
	"github.com/pagecanvas/pagecanvas-go/internal/domain/entities/builder"
	"github.com/pagecanvas/pagecanvas-go/internal/domain/entities/datasource"
)

// SampleFields is the representative field list authors see before any
// resolution has produced a real one.
var SampleFields = []string{
	"title",
	"imageUrl",
	"originalPrice",
	"discountedPrice",
	"voucherCode",
}

// Context is the ambient per-record value a Collections block provides to one
// rendered subtree. It is rebuilt on every render and never persisted.
type Context struct {
	Item         datasource.Record `json:"item"`
	Index        int               `json:"index"`
	ItemVariable string            `json:"itemVariable"`
	Fields       []string          `json:"fields"`
	IsLoading    bool              `json:"isLoading"`
	Error        string            `json:"error,omitempty"`
}

// Sample returns the context wrapped around the sample subtree a Collections
// block renders when it has no records yet.
func Sample(itemVariable string) *Context {
	if itemVariable == "" {
		itemVariable = "item"
	}
	return &Context{
		Item:         datasource.Record{},
		Index:        0,
		ItemVariable: itemVariable,
		Fields:       append([]string{}, SampleFields...),
	}
}

// Leaf is the per-leaf binding state stored as ordinary node props so it
// survives tree serialization.
type Leaf struct {
	UseDataBinding  bool
	Field           string
	AvailableFields []string
}

// LeafFromNode reads a leaf's binding props.
func LeafFromNode(n *builder.Node) Leaf {
	return Leaf{
		UseDataBinding:  n.BoolProp(builder.PropUseDataBinding),
		Field:           n.StringProp(builder.PropField, ""),
		AvailableFields: n.StringsProp(builder.PropAvailableFields),
	}
}

// IsItemContainerID reports whether a node id follows the naming convention
// Collections uses for per-record containers.
func IsItemContainerID(id string) bool {
	return strings.Contains(id, "-item-") || strings.HasSuffix(id, "-sample-item")
}

// InsideCollection reports whether the leaf with the given id is a descendant
// of a Collections block. The live ambient context is authoritative when
// available; otherwise the persisted node graph is walked: an ancestor whose
// id marks it as a per-record container, or whose custom metadata does, is
// sufficient. The redundancy covers parts of the UI (property-editor panels)
// that render outside the live tree and never see the ambient context.
func InsideCollection(ctx *Context, graph builder.Graph, id string) bool {
	if ctx != nil && ctx.Index != -1 {
		return true
	}
	if graph == nil {
		return false
	}
	for _, ancestorID := range graph.Ancestors(id) {
		if IsItemContainerID(ancestorID) {
			return true
		}
		ancestor, ok := graph[ancestorID]
		if !ok {
			continue
		}
		if ancestor.Custom != nil {
			if marked, _ := ancestor.Custom[builder.CustomItemContainer].(bool); marked {
				return true
			}
		}
		if ancestor.DisplayName == builder.DisplayNameCollections {
			return true
		}
	}
	return false
}

// ResolveString resolves a leaf's bound string property against the ambient
// record, falling back to the literal when binding is off, the field is
// unset, or the record has no usable value for it.
func ResolveString(ctx *Context, leaf Leaf, literal string) string {
	if !leaf.UseDataBinding || ctx == nil || leaf.Field == "" {
		return literal
	}
	value, ok := ctx.Item[leaf.Field]
	if !ok || value == nil {
		return literal
	}
	s := stringify(value)
	if s == "" {
		return literal
	}
	return s
}

// ResolveNumber resolves a numeric bound property. Unparseable record values
// degrade to NaN; display formatting is the consuming block's problem.
func ResolveNumber(ctx *Context, leaf Leaf, literal float64) float64 {
	if !leaf.UseDataBinding || ctx == nil || leaf.Field == "" {
		return literal
	}
	value, ok := ctx.Item[leaf.Field]
	if !ok || value == nil {
		return literal
	}
	return CoerceNumber(value)
}

// ResolveSelf resolves the product-card flavor of binding, where the prop's
// own literal value doubles as the field name: item[value] when present,
// else the value unchanged.
func ResolveSelf(ctx *Context, useBinding bool, value string) string {
	if !useBinding || ctx == nil || value == "" {
		return value
	}
	resolved, ok := ctx.Item[value]
	if !ok || resolved == nil {
		return value
	}
	s := stringify(resolved)
	if s == "" {
		return value
	}
	return s
}

// ResolveSelfNumber is ResolveSelf with numeric coercion applied to the
// resolved record value.
func ResolveSelfNumber(ctx *Context, useBinding bool, value string, literal float64) float64 {
	if !useBinding || ctx == nil || value == "" {
		return literal
	}
	resolved, ok := ctx.Item[value]
	if !ok || resolved == nil {
		return literal
	}
	return CoerceNumber(resolved)
}

// CoerceNumber converts a record field value to a number. Strings are parsed;
// anything unparseable yields NaN.
func CoerceNumber(value any) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return math.NaN()
		}
		return parsed
	default:
		return math.NaN()
	}
}

// SyncAvailableFields writes the ambient field list into the leaf's own
// availableFields prop when they differ. This is the sole channel by which
// property-editor panels learn the current field set. Returns whether a
// write was scheduled.
func SyncAvailableFields(mut engine.Mutator, node *builder.Node, fields []string) (bool, error) {
	if node == nil || fields == nil {
		return false, nil
	}
	current := node.StringsProp(builder.PropAvailableFields)
	if equalStrings(current, fields) {
		return false, nil
	}
	snapshot := append([]string{}, fields...)
	err := mut.SetProp(node.ID, func(props map[string]any) {
		props[builder.PropAvailableFields] = snapshot
	})
	return err == nil, err
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
