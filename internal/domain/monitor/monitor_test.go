package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagecanvas/pagecanvas-go/internal/domain/entities/builder"
)

// steppingClock returns a clock that advances by step on every call to tick().
type steppingClock struct {
	now time.Time
}

func newSteppingClock() *steppingClock {
	return &steppingClock{now: time.Unix(1700000000, 0)}
}

func (c *steppingClock) Now() time.Time { return c.now }

func (c *steppingClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func collectionsGraph(props map[string]any, children ...string) builder.Graph {
	root := &builder.Node{ID: builder.RootNodeID, DisplayName: builder.DisplayNameContainer, Nodes: []string{"col-1"}}
	col := &builder.Node{
		ID:          "col-1",
		Parent:      builder.RootNodeID,
		DisplayName: builder.DisplayNameCollections,
		Props:       props,
		Nodes:       children,
	}
	graph := builder.Graph{builder.RootNodeID: root, "col-1": col}
	for _, childID := range children {
		graph[childID] = &builder.Node{ID: childID, Parent: "col-1", DisplayName: builder.DisplayNameContainer}
	}
	return graph
}

func TestObserveBaseline(t *testing.T) {
	clock := newSteppingClock()
	m := New(nil).WithClock(clock.Now)

	report := m.Observe(collectionsGraph(map[string]any{builder.PropRenderMode: "columns"}))
	require.NotNil(t, report)
	assert.True(t, report.Baseline)
	assert.Equal(t, 1, report.Collections)
	assert.False(t, report.HasChanges())
	assert.Contains(t, m.State(), "col-1")
}

func TestObserveThrottlesInsideWindow(t *testing.T) {
	clock := newSteppingClock()
	m := New(nil).WithClock(clock.Now)

	require.NotNil(t, m.Observe(collectionsGraph(nil)))

	clock.Advance(ThrottleTime / 2)
	assert.Nil(t, m.Observe(collectionsGraph(nil)))

	clock.Advance(ThrottleTime)
	assert.NotNil(t, m.Observe(collectionsGraph(nil)))
}

func TestObserveDroppedCallIsNotQueued(t *testing.T) {
	clock := newSteppingClock()
	m := New(nil).WithClock(clock.Now)
	m.Observe(collectionsGraph(map[string]any{builder.PropRenderMode: "columns"}))

	// This change lands inside the window and is dropped.
	clock.Advance(10 * time.Millisecond)
	assert.Nil(t, m.Observe(collectionsGraph(map[string]any{builder.PropRenderMode: "data"})))

	// The next processed observation still sees the delta against the
	// baseline, so nothing is lost permanently.
	clock.Advance(ThrottleTime)
	report := m.Observe(collectionsGraph(map[string]any{builder.PropRenderMode: "data"}))
	require.NotNil(t, report)
	require.Len(t, report.Changed, 1)
	assert.True(t, report.Changed[0].ModeChanged)
}

func TestObserveAddedAndRemoved(t *testing.T) {
	clock := newSteppingClock()
	m := New(nil).WithClock(clock.Now)
	m.Observe(collectionsGraph(nil))

	graph := collectionsGraph(nil)
	graph["col-2"] = &builder.Node{ID: "col-2", Parent: builder.RootNodeID, DisplayName: builder.DisplayNameCollections}

	clock.Advance(ThrottleTime)
	report := m.Observe(graph)
	require.NotNil(t, report)
	assert.Equal(t, []string{"col-2"}, report.Added)
	assert.Empty(t, report.Removed)

	clock.Advance(ThrottleTime)
	report = m.Observe(builder.Graph{builder.RootNodeID: {ID: builder.RootNodeID, DisplayName: builder.DisplayNameContainer}})
	require.NotNil(t, report)
	assert.ElementsMatch(t, []string{"col-1", "col-2"}, report.Removed)
	assert.Zero(t, report.Collections)
}

func TestObserveClassifiesChanges(t *testing.T) {
	clock := newSteppingClock()
	m := New(nil).WithClock(clock.Now)
	m.Observe(collectionsGraph(map[string]any{
		builder.PropRenderMode: "data",
		builder.PropDataSource: "static",
		builder.PropData:       []any{map[string]any{"title": "A"}},
	}, "col-1-item-0"))

	clock.Advance(ThrottleTime)
	report := m.Observe(collectionsGraph(map[string]any{
		builder.PropRenderMode: "data",
		builder.PropDataSource: "api",
		builder.PropAPIURL:     "http://example.test/deals",
		builder.PropData:       []any{map[string]any{"title": "B"}},
	}, "col-1-item-0", "col-1-item-1"))
	require.NotNil(t, report)
	require.Len(t, report.Changed, 1)

	change := report.Changed[0]
	assert.Equal(t, "col-1", change.ID)
	assert.False(t, change.ModeChanged)
	assert.True(t, change.DataSourceChanged)
	assert.Contains(t, change.DataChanged, "data")
	assert.Contains(t, change.DataChanged, "apiUrl")
	assert.True(t, change.StructureChanged)
	assert.NotEmpty(t, change.Changes)
}

func TestObserveIgnoresTimestampOnlyDeltas(t *testing.T) {
	clock := newSteppingClock()
	m := New(nil).WithClock(clock.Now)
	graph := collectionsGraph(map[string]any{builder.PropRenderMode: "columns"})
	m.Observe(graph)

	// Same graph later: updatedAt differs in the summaries but is ignored.
	clock.Advance(ThrottleTime)
	report := m.Observe(graph)
	require.NotNil(t, report)
	assert.False(t, report.HasChanges())
}

func TestObserveAfterDispose(t *testing.T) {
	clock := newSteppingClock()
	m := New(nil).WithClock(clock.Now)
	m.Observe(collectionsGraph(nil))
	m.Dispose()

	clock.Advance(ThrottleTime)
	assert.Nil(t, m.Observe(collectionsGraph(nil)))
	assert.Empty(t, m.State())
}

func TestDiffValueChange(t *testing.T) {
	changes := Diff(
		map[string]any{"mode": "columns", "columns": "3"},
		map[string]any{"mode": "data", "columns": "3"},
	)
	require.Len(t, changes, 1)
	assert.Equal(t, "mode", changes[0].Path)
	assert.Equal(t, ChangeValue, changes[0].Kind)
	assert.Equal(t, "columns", changes[0].From)
	assert.Equal(t, "data", changes[0].To)
}

func TestDiffMissingAndAdded(t *testing.T) {
	changes := Diff(
		map[string]any{"apiUrl": "http://a.test"},
		map[string]any{"jsonData": "[]"},
	)
	require.Len(t, changes, 2)
	assert.Equal(t, ChangeMissing, changes[0].Kind)
	assert.Equal(t, "apiUrl", changes[0].Path)
	assert.Equal(t, ChangeAdded, changes[1].Kind)
	assert.Equal(t, "jsonData", changes[1].Path)
}

func TestDiffArrays(t *testing.T) {
	changes := Diff(
		map[string]any{"childrenIds": []string{"a", "b"}},
		map[string]any{"childrenIds": []string{"a", "b", "c"}},
	)
	require.Len(t, changes, 1)
	assert.Equal(t, ChangeArrayLength, changes[0].Kind)
	assert.Equal(t, 2, changes[0].From)
	assert.Equal(t, 3, changes[0].To)

	changes = Diff(
		map[string]any{"childrenIds": []string{"a", "b"}},
		map[string]any{"childrenIds": []string{"a", "c"}},
	)
	require.Len(t, changes, 1)
	assert.Equal(t, "childrenIds[1]", changes[0].Path)
	assert.Equal(t, ChangeValue, changes[0].Kind)
}

func TestDiffNestedPaths(t *testing.T) {
	changes := Diff(
		map[string]any{"outer": map[string]any{"inner": map[string]any{"value": 1}}},
		map[string]any{"outer": map[string]any{"inner": map[string]any{"value": 2}}},
	)
	require.Len(t, changes, 1)
	assert.Equal(t, "outer.inner.value", changes[0].Path)
}

func TestDiffIgnoreKeysAtEveryDepth(t *testing.T) {
	changes := Diff(
		map[string]any{"updatedAt": int64(1), "nested": map[string]any{"updatedAt": int64(2), "kept": "x"}},
		map[string]any{"updatedAt": int64(9), "nested": map[string]any{"updatedAt": int64(8), "kept": "x"}},
		"updatedAt",
	)
	assert.Empty(t, changes)
}

func TestDiffEqualInputs(t *testing.T) {
	before := map[string]any{"a": 1, "b": []any{"x", map[string]any{"c": true}}}
	after := map[string]any{"a": 1, "b": []any{"x", map[string]any{"c": true}}}
	assert.Empty(t, Diff(before, after))
}

func TestDiffNonComparableValues(t *testing.T) {
	// Slice types outside the normalized forms must compare without
	// panicking.
	assert.Empty(t, Diff(map[string]any{"a": []int{1, 2}}, map[string]any{"a": []int{1, 2}}))

	changes := Diff(map[string]any{"a": []int{1, 2}}, map[string]any{"a": []int{1, 3}})
	require.Len(t, changes, 1)
	assert.Equal(t, ChangeValue, changes[0].Kind)
	assert.Equal(t, "a", changes[0].Path)
}
