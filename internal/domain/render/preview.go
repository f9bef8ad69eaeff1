package render

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pagecanvas/pagecanvas-go/internal/domain/binding"
	"github.com/pagecanvas/pagecanvas-go/internal/domain/engine"
	"github.com/pagecanvas/pagecanvas-go/internal/domain/entities/builder"
)

// PreviewNode is one node of a materialized tree: collections expanded, one
// child per record, and every leaf's bound props resolved against its
// ambient record.
type PreviewNode struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"displayName"`
	Props       map[string]any `json:"props,omitempty"`
	Children    []*PreviewNode `json:"children,omitempty"`
}

// Preview materializes the engine's whole graph starting at the root. The
// engine is mutated by the embedded expansions, so callers preview against a
// scratch engine, not the live editing session.
func (r *Renderer) Preview(ctx context.Context, eng engine.Engine) (*PreviewNode, error) {
	if _, ok := eng.Node(builder.RootNodeID); !ok {
		return nil, fmt.Errorf("graph has no %s node", builder.RootNodeID)
	}
	return r.previewNode(ctx, eng, builder.RootNodeID, nil)
}

func (r *Renderer) previewNode(ctx context.Context, eng engine.Engine, id string, ambient *binding.Context) (*PreviewNode, error) {
	node, ok := eng.Node(id)
	if !ok {
		return nil, fmt.Errorf("node %s not found", id)
	}

	out := &PreviewNode{
		ID:          id,
		DisplayName: node.DisplayName,
		Props:       node.Clone().Props,
	}

	if node.DisplayName == builder.DisplayNameCollections {
		return r.previewCollection(ctx, eng, out, ambient)
	}

	resolveLeafProps(out, node, ambient)

	for _, childID := range childIDs(node) {
		child, err := r.previewNode(ctx, eng, childID, ambient)
		if err != nil {
			return nil, err
		}
		out.Children = append(out.Children, child)
	}
	return out, nil
}

func (r *Renderer) previewCollection(ctx context.Context, eng engine.Engine, out *PreviewNode, ambient *binding.Context) (*PreviewNode, error) {
	exp, err := r.Expand(ctx, eng, out.ID)
	if err != nil {
		return nil, err
	}

	switch {
	case exp.Mode == ModeColumns:
		for _, columnID := range exp.ColumnIDs {
			child, err := r.previewNode(ctx, eng, columnID, ambient)
			if err != nil {
				return nil, err
			}
			out.Children = append(out.Children, child)
		}
	case exp.Placeholder == PlaceholderLoading || exp.Placeholder == PlaceholderError:
		out.Children = append(out.Children, &PreviewNode{
			ID:          out.ID + "-placeholder",
			DisplayName: "Placeholder",
			Props: map[string]any{
				"state":   exp.Placeholder,
				"message": exp.Message,
			},
		})
	default:
		for _, item := range exp.Items {
			child, err := r.previewNode(ctx, eng, item.NodeID, item.Context)
			if err != nil {
				return nil, err
			}
			out.Children = append(out.Children, child)
		}
	}
	return out, nil
}

// resolveLeafProps rewrites a leaf's bindable props to their effective values
// under the ambient record.
func resolveLeafProps(out *PreviewNode, node *builder.Node, ambient *binding.Context) {
	switch node.DisplayName {
	case builder.DisplayNameText:
		leaf := binding.LeafFromNode(node)
		out.Props["text"] = binding.ResolveString(ambient, leaf, node.StringProp("text", ""))
	case builder.DisplayNameImage:
		leaf := binding.LeafFromNode(node)
		out.Props["src"] = binding.ResolveString(ambient, leaf, node.StringProp("src", ""))
	case builder.DisplayNameProductCard:
		resolveCardProps(out, node, ambient)
	}
}

// resolveCardProps handles the product card's binding flavor: each bindable
// prop's own value doubles as the record field name when binding is on.
func resolveCardProps(out *PreviewNode, node *builder.Node, ambient *binding.Context) {
	useBinding := node.BoolProp(builder.PropUseDataBinding)

	out.Props["imageUrl"] = binding.ResolveSelf(ambient, useBinding, node.StringProp("imageUrl", ""))
	out.Props["title"] = binding.ResolveSelf(ambient, useBinding, node.StringProp("title", ""))
	out.Props["voucherCode"] = binding.ResolveSelf(ambient, useBinding, node.StringProp("voucherCode", ""))

	original := resolveCardPrice(node, ambient, useBinding, "originalPrice")
	discounted := resolveCardPrice(node, ambient, useBinding, "discountedPrice")
	out.Props["originalPrice"] = original
	out.Props["discountedPrice"] = discounted
	out.Props["originalPriceFormatted"] = FormatPrice(original)
	out.Props["discountedPriceFormatted"] = FormatPrice(discounted)
}

// resolveCardPrice reads a price prop that holds either a literal number or,
// when bound, the name of the record field carrying the price.
func resolveCardPrice(node *builder.Node, ambient *binding.Context, useBinding bool, key string) float64 {
	raw, ok := node.Props[key]
	if !ok {
		return 0
	}
	switch v := raw.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		return binding.ResolveSelfNumber(ambient, useBinding, v, binding.CoerceNumber(v))
	default:
		return 0
	}
}

// FormatPrice renders a price the way the product card displays it: integer
// đồng with dot-grouped thousands. Non-numbers degrade to zero.
func FormatPrice(price float64) string {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return "0đ"
	}
	n := int64(math.Round(price))
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	digits := strconv.FormatInt(n, 10)
	var groups []string
	for len(digits) > 3 {
		groups = append([]string{digits[len(digits)-3:]}, groups...)
		digits = digits[:len(digits)-3]
	}
	groups = append([]string{digits}, groups...)
	return sign + strings.Join(groups, ".") + "đ"
}

func childIDs(node *builder.Node) []string {
	ids := append([]string{}, node.Nodes...)
	for _, linked := range node.LinkedNodes {
		ids = append(ids, linked)
	}
	return ids
}
