package render

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pagecanvas/pagecanvas-go/internal/domain/binding"
	"github.com/pagecanvas/pagecanvas-go/internal/domain/engine"
	"github.com/pagecanvas/pagecanvas-go/internal/domain/entities/builder"
	"github.com/pagecanvas/pagecanvas-go/internal/domain/entities/datasource"
	"github.com/pagecanvas/pagecanvas-go/internal/infrastructure/observability/logging"
)

// Placeholder states an expansion can end in when no records rendered.
const (
	PlaceholderNone    = ""
	PlaceholderLoading = "loading"
	PlaceholderError   = "error"
	PlaceholderSample  = "sample"
)

// Resolver resolves a descriptor into a dataset.
type Resolver interface {
	Resolve(ctx context.Context, d *datasource.Descriptor) *datasource.Dataset
}

// Item is one fanned-out record subtree: the per-record container node and
// the ambient context its descendants render under.
type Item struct {
	NodeID  string           `json:"nodeId"`
	Context *binding.Context `json:"context"`
}

// Expansion is the result of expanding one Collections block.
type Expansion struct {
	CollectionID string              `json:"collectionId"`
	Mode         string              `json:"mode"`
	ColumnIDs    []string            `json:"columnIds,omitempty"`
	Items        []Item              `json:"items,omitempty"`
	Placeholder  string              `json:"placeholder,omitempty"`
	Message      string              `json:"message,omitempty"`
	Dataset      *datasource.Dataset `json:"dataset,omitempty"`
}

// Renderer expands Collections blocks against an editor engine. Expansions
// for the same block are serialized so an older resolution can never
// overwrite the result of a newer one.
type Renderer struct {
	resolver Resolver
	logger   *logging.ChanneledLogger
	locks    sync.Map // collection id -> *sync.Mutex
}

// NewRenderer creates a renderer.
func NewRenderer(resolver Resolver, logger *logging.ChanneledLogger) *Renderer {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	return &Renderer{resolver: resolver, logger: logger}
}

// leafDisplayNames are the block types that participate in field binding.
var leafDisplayNames = map[string]bool{
	builder.DisplayNameText:        true,
	builder.DisplayNameImage:       true,
	builder.DisplayNameProductCard: true,
}

// Expand renders one Collections block: columns mode produces fixed empty
// column containers; data mode resolves the inline descriptor and produces
// one per-record container per record. The current field list is written
// into the block's own fields prop and propagated to every descendant leaf's
// availableFields prop.
func (r *Renderer) Expand(ctx context.Context, eng engine.Engine, nodeID string) (*Expansion, error) {
	lock, _ := r.locks.LoadOrStore(nodeID, &sync.Mutex{})
	lock.(*sync.Mutex).Lock()
	defer lock.(*sync.Mutex).Unlock()

	node, ok := eng.Node(nodeID)
	if !ok {
		return nil, fmt.Errorf("node %s not found", nodeID)
	}
	if node.DisplayName != builder.DisplayNameCollections {
		return nil, fmt.Errorf("node %s is not a Collections block", nodeID)
	}

	props := CollectionPropsFromNode(node)
	if props.RenderMode == ModeColumns {
		return r.expandColumns(eng, node, props)
	}
	return r.expandData(ctx, eng, node, props)
}

func (r *Renderer) expandColumns(eng engine.Engine, node *builder.Node, props CollectionProps) (*Expansion, error) {
	exp := &Expansion{CollectionID: node.ID, Mode: ModeColumns}
	for i := 0; i < props.Columns; i++ {
		columnID := fmt.Sprintf("%s-column-%d", node.ID, i)
		if err := r.ensureContainer(eng, node.ID, columnID, fmt.Sprintf("Column %d", i+1), nil); err != nil {
			return nil, err
		}
		exp.ColumnIDs = append(exp.ColumnIDs, columnID)
	}
	if err := r.reconcileChildren(eng, node, exp.ColumnIDs); err != nil {
		return nil, err
	}
	return exp, nil
}

func (r *Renderer) expandData(ctx context.Context, eng engine.Engine, node *builder.Node, props CollectionProps) (*Expansion, error) {
	start := time.Now()
	dataset := r.resolveFor(ctx, node.ID, props)

	exp := &Expansion{CollectionID: node.ID, Mode: ModeData, Dataset: dataset}

	// Author-declared field override wins over resolver-computed fields.
	fields := dataset.Fields
	if len(props.Fields) > 0 {
		fields = props.Fields
	}

	// A loading or failed resolution reports its placeholder on the expansion
	// only. Existing item containers stay mounted so content authored inside
	// them survives a transient outage and renders again on recovery.
	if len(dataset.Records) == 0 && (dataset.IsLoading || dataset.Error != "") {
		if dataset.IsLoading {
			exp.Placeholder = PlaceholderLoading
		} else {
			exp.Placeholder = PlaceholderError
			exp.Message = dataset.Error
		}
		r.logger.Render().Debug("Collections expanded",
			"id", node.ID, "records", 0, "placeholder", exp.Placeholder, "duration", time.Since(start))
		return exp, nil
	}

	if len(dataset.Records) == 0 {
		exp.Placeholder = PlaceholderSample
		sampleID := node.ID + "-sample-item"
		sampleCtx := binding.Sample(props.ItemVariable)
		sampleCtx.Fields = fields
		if len(sampleCtx.Fields) == 0 {
			sampleCtx.Fields = append([]string{}, binding.SampleFields...)
		}
		if err := r.ensureContainer(eng, node.ID, sampleID, fmt.Sprintf("%s (Sample)", props.ItemVariable), sampleCtx); err != nil {
			return nil, err
		}
		exp.Items = append(exp.Items, Item{NodeID: sampleID, Context: sampleCtx})
	} else {
		for i, record := range dataset.Records {
			itemID := fmt.Sprintf("%s-item-%d", node.ID, i)
			itemFields := fields
			if len(itemFields) == 0 {
				itemFields = datasource.FieldsOf(dataset.Records[i : i+1])
			}
			itemCtx := &binding.Context{
				Item:         record,
				Index:        i,
				ItemVariable: props.ItemVariable,
				Fields:       itemFields,
				IsLoading:    dataset.IsLoading,
				Error:        dataset.Error,
			}
			if err := r.ensureContainer(eng, node.ID, itemID, props.ItemVariable, itemCtx); err != nil {
				return nil, err
			}
			exp.Items = append(exp.Items, Item{NodeID: itemID, Context: itemCtx})
		}
	}

	children := make([]string, 0, len(exp.Items))
	for _, item := range exp.Items {
		children = append(children, item.NodeID)
	}
	if err := r.reconcileChildren(eng, node, children); err != nil {
		return nil, err
	}

	// A successful non-empty resolution seeds the block's own fields prop so
	// the list survives serialization.
	if dataset.Error == "" && len(dataset.Records) > 0 && len(dataset.Fields) > 0 {
		if !equalStrings(node.StringsProp(builder.PropFields), dataset.Fields) {
			seeded := append([]string{}, dataset.Fields...)
			if err := eng.SetProp(node.ID, func(p map[string]any) {
				p[builder.PropFields] = seeded
			}); err != nil {
				return nil, err
			}
		}
	}

	if err := r.propagateFields(eng, exp); err != nil {
		return nil, err
	}

	r.logger.Render().Debug("Collections expanded",
		"id", node.ID, "records", len(dataset.Records), "placeholder", exp.Placeholder, "duration", time.Since(start))
	return exp, nil
}

// resolveFor resolves the block's inline descriptor. An api-kind block that
// is not enabled behaves like an empty source.
func (r *Renderer) resolveFor(ctx context.Context, nodeID string, props CollectionProps) *datasource.Dataset {
	if props.DataSource == string(datasource.KindAPI) && !props.APIEnabled {
		return &datasource.Dataset{Records: []datasource.Record{}, Fields: []string{}}
	}
	if props.DataSource == string(datasource.KindJSON) && props.JSONData == "" {
		return &datasource.Dataset{Records: []datasource.Record{}, Fields: []string{}}
	}
	return r.resolver.Resolve(ctx, props.Descriptor(nodeID))
}

// propagateFields writes each item's field list into the availableFields prop
// of every leaf block inside that item's subtree. The write is skipped when
// the lists already match, which is what keeps repeated expansions from
// looping.
func (r *Renderer) propagateFields(eng engine.Engine, exp *Expansion) error {
	for _, item := range exp.Items {
		for _, descendantID := range descendants(eng, item.NodeID) {
			leaf, ok := eng.Node(descendantID)
			if !ok || !leafDisplayNames[leaf.DisplayName] {
				continue
			}
			if _, err := binding.SyncAvailableFields(eng, leaf, item.Context.Fields); err != nil {
				return err
			}
		}
	}
	return nil
}

// SyncFields re-propagates a block's current field list into descendant
// leaves without resolving the data source, so a direct edit of the fields
// prop reaches availableFields before the next expansion. It does not take
// the per-collection lock: change listeners call it from inside Expand's own
// mutations, and SyncAvailableFields skips writes that already match.
func (r *Renderer) SyncFields(eng engine.Engine, nodeID string) error {
	node, ok := eng.Node(nodeID)
	if !ok || node.DisplayName != builder.DisplayNameCollections {
		return nil
	}
	props := CollectionPropsFromNode(node)
	if props.RenderMode != ModeData || len(props.Fields) == 0 {
		return nil
	}
	for _, childID := range node.Nodes {
		child, ok := eng.Node(childID)
		if !ok {
			continue
		}
		if marked, _ := child.Custom[builder.CustomItemContainer].(bool); !marked {
			continue
		}
		for _, descendantID := range descendants(eng, childID) {
			leaf, ok := eng.Node(descendantID)
			if !ok || !leafDisplayNames[leaf.DisplayName] {
				continue
			}
			if _, err := binding.SyncAvailableFields(eng, leaf, props.Fields); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Renderer) ensureContainer(eng engine.Engine, parentID, id, displayName string, itemCtx *binding.Context) error {
	if _, ok := eng.Node(id); ok {
		return nil
	}
	custom := map[string]any{"displayName": displayName}
	if itemCtx != nil {
		custom[builder.CustomItemContainer] = true
	}
	return eng.AddNode(&builder.Node{
		ID:          id,
		Parent:      parentID,
		DisplayName: builder.DisplayNameContainer,
		IsCanvas:    true,
		Props:       map[string]any{},
		Custom:      custom,
	})
}

// reconcileChildren makes the block's direct children exactly the expansion
// set, removing containers left over from a previous expansion (and their
// subtrees).
func (r *Renderer) reconcileChildren(eng engine.Engine, node *builder.Node, desired []string) error {
	current, ok := eng.Node(node.ID)
	if !ok {
		return fmt.Errorf("node %s disappeared during expansion", node.ID)
	}
	want := make(map[string]bool, len(desired))
	for _, id := range desired {
		want[id] = true
	}
	for _, childID := range current.Nodes {
		if !want[childID] {
			if err := eng.RemoveNode(childID); err != nil {
				return err
			}
		}
	}
	return eng.SetChildren(node.ID, desired)
}

// descendants walks the subtree below id in depth-first order.
func descendants(q engine.Query, id string) []string {
	var out []string
	node, ok := q.Node(id)
	if !ok {
		return out
	}
	stack := append([]string{}, node.Nodes...)
	for _, linked := range node.LinkedNodes {
		stack = append(stack, linked)
	}
	for len(stack) > 0 {
		next := stack[0]
		stack = stack[1:]
		out = append(out, next)
		child, ok := q.Node(next)
		if !ok {
			continue
		}
		stack = append(stack, child.Nodes...)
		for _, linked := range child.LinkedNodes {
			stack = append(stack, linked)
		}
	}
	return out
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
