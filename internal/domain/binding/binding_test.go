package binding

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagecanvas/pagecanvas-go/internal/domain/engine"
	"github.com/pagecanvas/pagecanvas-go/internal/domain/entities/builder"
	"github.com/pagecanvas/pagecanvas-go/internal/domain/entities/datasource"
)

func boundContext(item datasource.Record) *Context {
	return &Context{Item: item, Index: 0, ItemVariable: "item", Fields: datasource.FieldsOf([]datasource.Record{item})}
}

func TestResolveString(t *testing.T) {
	ctx := boundContext(datasource.Record{"title": "Summer Deal", "empty": "", "gone": nil})

	cases := []struct {
		name    string
		leaf    Leaf
		literal string
		want    string
	}{
		{"binding off", Leaf{UseDataBinding: false, Field: "title"}, "literal", "literal"},
		{"field unset", Leaf{UseDataBinding: true}, "literal", "literal"},
		{"bound hit", Leaf{UseDataBinding: true, Field: "title"}, "literal", "Summer Deal"},
		{"field absent", Leaf{UseDataBinding: true, Field: "nope"}, "literal", "literal"},
		{"nil value", Leaf{UseDataBinding: true, Field: "gone"}, "literal", "literal"},
		{"empty value", Leaf{UseDataBinding: true, Field: "empty"}, "literal", "literal"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ResolveString(ctx, tc.leaf, tc.literal))
		})
	}

	assert.Equal(t, "literal", ResolveString(nil, Leaf{UseDataBinding: true, Field: "title"}, "literal"))
}

func TestResolveStringCoercesNonStrings(t *testing.T) {
	ctx := boundContext(datasource.Record{"price": 129000.0, "stock": 7, "active": true})

	assert.Equal(t, "129000", ResolveString(ctx, Leaf{UseDataBinding: true, Field: "price"}, ""))
	assert.Equal(t, "7", ResolveString(ctx, Leaf{UseDataBinding: true, Field: "stock"}, ""))
	assert.Equal(t, "true", ResolveString(ctx, Leaf{UseDataBinding: true, Field: "active"}, ""))
}

func TestResolveNumber(t *testing.T) {
	ctx := boundContext(datasource.Record{"price": "129000", "junk": "free!"})

	assert.Equal(t, 129000.0, ResolveNumber(ctx, Leaf{UseDataBinding: true, Field: "price"}, 5))
	assert.Equal(t, 5.0, ResolveNumber(ctx, Leaf{UseDataBinding: false, Field: "price"}, 5))
	assert.True(t, math.IsNaN(ResolveNumber(ctx, Leaf{UseDataBinding: true, Field: "junk"}, 5)))
}

func TestResolveSelf(t *testing.T) {
	ctx := boundContext(datasource.Record{"imageUrl": "https://cdn.test/a.webp"})

	// The prop value doubles as the field name.
	assert.Equal(t, "https://cdn.test/a.webp", ResolveSelf(ctx, true, "imageUrl"))
	// Unknown field name falls through to the value itself.
	assert.Equal(t, "Product Title", ResolveSelf(ctx, true, "Product Title"))
	assert.Equal(t, "imageUrl", ResolveSelf(ctx, false, "imageUrl"))
	assert.Equal(t, "", ResolveSelf(ctx, true, ""))
}

func TestCoerceNumber(t *testing.T) {
	assert.Equal(t, 1.5, CoerceNumber(1.5))
	assert.Equal(t, 3.0, CoerceNumber(3))
	assert.Equal(t, 42.0, CoerceNumber(" 42 "))
	assert.True(t, math.IsNaN(CoerceNumber("abc")))
	assert.True(t, math.IsNaN(CoerceNumber(nil)))
	assert.True(t, math.IsNaN(CoerceNumber([]any{})))
}

func TestSampleContext(t *testing.T) {
	ctx := Sample("")
	assert.Equal(t, "item", ctx.ItemVariable)
	assert.Equal(t, SampleFields, ctx.Fields)
	assert.Equal(t, 0, ctx.Index)

	ctx.Fields[0] = "mutated"
	assert.Equal(t, "title", SampleFields[0])
}

func TestIsItemContainerID(t *testing.T) {
	assert.True(t, IsItemContainerID("col-1-item-0"))
	assert.True(t, IsItemContainerID("col-1-sample-item"))
	assert.False(t, IsItemContainerID("col-1-column-0"))
	assert.False(t, IsItemContainerID("ROOT"))
}

func TestInsideCollectionAmbient(t *testing.T) {
	assert.True(t, InsideCollection(&Context{Index: 0}, nil, "any"))
	assert.True(t, InsideCollection(&Context{Index: 3}, nil, "any"))
	assert.False(t, InsideCollection(&Context{Index: -1}, nil, "any"))
	assert.False(t, InsideCollection(nil, nil, "any"))
}

func TestInsideCollectionAncestry(t *testing.T) {
	graph := builder.Graph{
		"ROOT":       {ID: "ROOT", Nodes: []string{"col-1", "free"}},
		"col-1":      {ID: "col-1", Parent: "ROOT", DisplayName: builder.DisplayNameCollections, Nodes: []string{"col-1-item-0"}},
		"col-1-item-0": {ID: "col-1-item-0", Parent: "col-1", Nodes: []string{"text-1"}},
		"text-1":     {ID: "text-1", Parent: "col-1-item-0"},
		"marked":     {ID: "marked", Parent: "ROOT", Custom: map[string]any{builder.CustomItemContainer: true}, Nodes: []string{"text-2"}},
		"text-2":     {ID: "text-2", Parent: "marked"},
		"free":       {ID: "free", Parent: "ROOT"},
	}

	assert.True(t, InsideCollection(nil, graph, "text-1"))
	assert.True(t, InsideCollection(nil, graph, "text-2"))
	assert.False(t, InsideCollection(nil, graph, "free"))
}

type recordingMutator struct {
	writes map[string]map[string]any
}

func (m *recordingMutator) SetProp(id string, mutate func(props map[string]any)) error {
	if m.writes == nil {
		m.writes = make(map[string]map[string]any)
	}
	props, ok := m.writes[id]
	if !ok {
		props = make(map[string]any)
		m.writes[id] = props
	}
	mutate(props)
	return nil
}

func (m *recordingMutator) SetPropDebounced(id string, _ engine.PropClass, mutate func(props map[string]any)) error {
	return m.SetProp(id, mutate)
}

func (m *recordingMutator) AddNode(node *builder.Node) error           { return nil }
func (m *recordingMutator) RemoveNode(id string) error                 { return nil }
func (m *recordingMutator) SetChildren(id string, children []string) error { return nil }

func TestSyncAvailableFields(t *testing.T) {
	mut := &recordingMutator{}
	node := &builder.Node{
		ID:    "text-1",
		Props: map[string]any{builder.PropAvailableFields: []any{"old"}},
	}

	wrote, err := SyncAvailableFields(mut, node, []string{"title", "imageUrl"})
	require.NoError(t, err)
	assert.True(t, wrote)
	assert.Equal(t, []string{"title", "imageUrl"}, mut.writes["text-1"][builder.PropAvailableFields])

	// Matching lists skip the write entirely.
	same := &builder.Node{
		ID:    "text-2",
		Props: map[string]any{builder.PropAvailableFields: []any{"title", "imageUrl"}},
	}
	wrote, err = SyncAvailableFields(mut, same, []string{"title", "imageUrl"})
	require.NoError(t, err)
	assert.False(t, wrote)
	assert.NotContains(t, mut.writes, "text-2")

	// Nil field list never writes.
	wrote, err = SyncAvailableFields(mut, node, nil)
	require.NoError(t, err)
	assert.False(t, wrote)
}
