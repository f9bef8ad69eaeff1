package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagecanvas/pagecanvas-go/internal/domain/engine"
	"github.com/pagecanvas/pagecanvas-go/internal/domain/entities/builder"
	"github.com/pagecanvas/pagecanvas-go/internal/domain/entities/datasource"
	"github.com/pagecanvas/pagecanvas-go/internal/domain/monitor"
	"github.com/pagecanvas/pagecanvas-go/internal/domain/render"
	"github.com/pagecanvas/pagecanvas-go/internal/infrastructure/observability/logging"
)

type staticResolver struct{}

func (staticResolver) Resolve(ctx context.Context, d *datasource.Descriptor) *datasource.Dataset {
	records := datasource.CloneRecords(d.StaticRecords)
	return &datasource.Dataset{Records: records, Fields: datasource.FieldsOf(records)}
}

type capturingPublisher struct {
	mu      sync.Mutex
	reports map[string][]*monitor.Report
}

func newCapturingPublisher() *capturingPublisher {
	return &capturingPublisher{reports: make(map[string][]*monitor.Report)}
}

func (p *capturingPublisher) Publish(graphID string, report *monitor.Report) {
	p.mu.Lock()
	p.reports[graphID] = append(p.reports[graphID], report)
	p.mu.Unlock()
}

func (p *capturingPublisher) count(graphID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.reports[graphID])
}

func newGraphService(t *testing.T, publisher Publisher) *GraphService {
	t.Helper()
	logger := logging.NewDiscardLogger()
	renderer := render.NewRenderer(staticResolver{}, logger)
	svc := NewGraphService(renderer, publisher, time.Millisecond, logger)
	t.Cleanup(svc.CloseAll)
	return svc
}

func TestGraphSessionLifecycle(t *testing.T) {
	svc := newGraphService(t, nil)

	first := svc.Create()
	second := svc.Create()
	assert.True(t, strings.HasPrefix(first.ID, "graph-"))
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, []string{first.ID, second.ID}, svc.List())

	got, err := svc.Get(first.ID)
	require.NoError(t, err)
	assert.Same(t, first, got)

	require.NoError(t, svc.Close(first.ID))
	_, err = svc.Get(first.ID)
	assert.Error(t, err)
	assert.Error(t, svc.Close(first.ID))
}

func TestGraphAddExpandAndSerialize(t *testing.T) {
	svc := newGraphService(t, nil)
	session := svc.Create()

	require.NoError(t, svc.AddNode(session.ID, &builder.Node{
		ID:          "col-1",
		Parent:      builder.RootNodeID,
		DisplayName: builder.DisplayNameCollections,
		IsCanvas:    true,
		Props: map[string]any{
			builder.PropRenderMode: "data",
			builder.PropDataSource: "static",
			builder.PropData:       []any{map[string]any{"title": "A"}},
		},
	}))

	exp, err := svc.Expand(context.Background(), session.ID, "col-1")
	require.NoError(t, err)
	require.Len(t, exp.Items, 1)

	raw, err := svc.Serialize(session.ID)
	require.NoError(t, err)

	restored := svc.Create()
	require.NoError(t, svc.Deserialize(restored.ID, raw))
	graph, err := svc.Graph(restored.ID)
	require.NoError(t, err)
	assert.Contains(t, graph, "col-1")
	assert.Contains(t, graph, "col-1-item-0")
}

func TestGraphAddNodeGeneratesID(t *testing.T) {
	svc := newGraphService(t, nil)
	session := svc.Create()

	node := &builder.Node{Parent: builder.RootNodeID, DisplayName: builder.DisplayNameText}
	require.NoError(t, svc.AddNode(session.ID, node))
	assert.True(t, strings.HasPrefix(node.ID, "node-"))

	_, ok := session.Store.Node(node.ID)
	assert.True(t, ok)
}

func TestGraphSetPropClasses(t *testing.T) {
	svc := newGraphService(t, nil)
	session := svc.Create()
	require.NoError(t, svc.AddNode(session.ID, &builder.Node{ID: "n1", Parent: builder.RootNodeID}))

	require.NoError(t, svc.SetProp(session.ID, "n1", engine.PropClassImmediate, map[string]any{"renderMode": "data"}))
	node, _ := session.Store.Node("n1")
	assert.Equal(t, "data", node.Props["renderMode"])

	require.NoError(t, svc.SetProp(session.ID, "n1", engine.PropClassDebounced, map[string]any{"text": "typed"}))
	assert.Eventually(t, func() bool {
		node, _ := session.Store.Node("n1")
		return node.Props["text"] == "typed"
	}, 2*time.Second, 5*time.Millisecond)
}

func TestGraphMutationsPublishMonitorReports(t *testing.T) {
	publisher := newCapturingPublisher()
	svc := newGraphService(t, publisher)
	session := svc.Create()

	require.NoError(t, svc.AddNode(session.ID, &builder.Node{
		ID:          "col-1",
		Parent:      builder.RootNodeID,
		DisplayName: builder.DisplayNameCollections,
		Props:       map[string]any{builder.PropRenderMode: "columns"},
	}))

	assert.Eventually(t, func() bool {
		return publisher.count(session.ID) >= 1
	}, 2*time.Second, 5*time.Millisecond)

	state, err := svc.MonitorState(session.ID)
	require.NoError(t, err)
	assert.Contains(t, state, "col-1")
}

func TestGraphFieldsEditPropagatesToLeaves(t *testing.T) {
	svc := newGraphService(t, nil)
	session := svc.Create()

	require.NoError(t, svc.AddNode(session.ID, &builder.Node{
		ID:          "col-1",
		Parent:      builder.RootNodeID,
		DisplayName: builder.DisplayNameCollections,
		IsCanvas:    true,
		Props: map[string]any{
			builder.PropRenderMode: "data",
			builder.PropDataSource: "static",
			builder.PropData:       []any{map[string]any{"title": "A"}},
		},
	}))
	_, err := svc.Expand(context.Background(), session.ID, "col-1")
	require.NoError(t, err)
	require.NoError(t, svc.AddNode(session.ID, &builder.Node{
		ID:          "text-1",
		Parent:      "col-1-item-0",
		DisplayName: builder.DisplayNameText,
		Props:       map[string]any{},
	}))

	// Editing the fields prop reaches descendant leaves without another
	// expansion.
	require.NoError(t, svc.SetProp(session.ID, "col-1", engine.PropClassImmediate,
		map[string]any{builder.PropFields: []string{"name", "cost"}}))

	text, ok := session.Store.Node("text-1")
	require.True(t, ok)
	assert.Equal(t, []string{"name", "cost"}, text.StringsProp(builder.PropAvailableFields))
}

func TestGraphUnknownSessionErrors(t *testing.T) {
	svc := newGraphService(t, nil)
	_, err := svc.Graph("graph-missing")
	assert.Error(t, err)
	assert.Error(t, svc.AddNode("graph-missing", &builder.Node{ID: "n1"}))
	assert.Error(t, svc.RemoveNode("graph-missing", "n1"))
	_, err = svc.Expand(context.Background(), "graph-missing", "n1")
	assert.Error(t, err)
}
