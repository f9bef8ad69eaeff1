package render

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagecanvas/pagecanvas-go/internal/domain/entities/builder"
	"github.com/pagecanvas/pagecanvas-go/internal/domain/entities/datasource"
)

func apiCollectionProps(intervalMs int) map[string]any {
	return map[string]any{
		builder.PropRenderMode: "data",
		builder.PropDataSource: "api",
		builder.PropAPIURL:     "http://example.test/deals",
		builder.PropAPIEnabled: true,
		builder.PropAPIRefresh: intervalMs,
	}
}

func TestAutoRefresherTicks(t *testing.T) {
	eng := newTestEngine(t)
	addCollection(t, eng, "col-1", apiCollectionProps(20))
	resolver := &stubResolver{dataset: &datasource.Dataset{
		Records: []datasource.Record{{"title": "A"}},
		Fields:  []string{"title"},
	}}
	a := NewAutoRefresher(NewRenderer(resolver, nil), eng, nil)
	defer a.Close()

	a.Start(context.Background())
	assert.Eventually(t, func() bool {
		return resolver.callCount() >= 3
	}, 2*time.Second, 5*time.Millisecond)
}

func TestAutoRefresherIgnoresDisabledAndStatic(t *testing.T) {
	eng := newTestEngine(t)
	addCollection(t, eng, "col-static", map[string]any{
		builder.PropRenderMode: "data",
		builder.PropDataSource: "static",
	})
	addCollection(t, eng, "col-off", map[string]any{
		builder.PropRenderMode: "data",
		builder.PropDataSource: "api",
		builder.PropAPIURL:     "http://example.test/deals",
		builder.PropAPIRefresh: 20,
	})
	resolver := &stubResolver{}
	a := NewAutoRefresher(NewRenderer(resolver, nil), eng, nil)
	defer a.Close()

	a.Start(context.Background())
	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, resolver.callCount())
}

func TestAutoRefresherStopsWhenIntervalCleared(t *testing.T) {
	eng := newTestEngine(t)
	addCollection(t, eng, "col-1", apiCollectionProps(20))
	resolver := &stubResolver{dataset: &datasource.Dataset{
		Records: []datasource.Record{{"title": "A"}},
		Fields:  []string{"title"},
	}}
	a := NewAutoRefresher(NewRenderer(resolver, nil), eng, nil)
	defer a.Close()

	a.Start(context.Background())
	require.Eventually(t, func() bool {
		return resolver.callCount() >= 1
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, eng.SetProp("col-1", func(p map[string]any) {
		p[builder.PropAPIRefresh] = 0
	}))
	a.Sync()

	settled := resolver.callCount()
	time.Sleep(120 * time.Millisecond)
	assert.LessOrEqual(t, resolver.callCount(), settled+1)
}

func TestAutoRefresherUntracksRemovedBlock(t *testing.T) {
	eng := newTestEngine(t)
	addCollection(t, eng, "col-1", apiCollectionProps(20))
	resolver := &stubResolver{dataset: &datasource.Dataset{
		Records: []datasource.Record{{"title": "A"}},
		Fields:  []string{"title"},
	}}
	a := NewAutoRefresher(NewRenderer(resolver, nil), eng, nil)
	defer a.Close()

	a.Start(context.Background())
	require.NoError(t, eng.RemoveNode("col-1"))
	a.Sync()

	settled := resolver.callCount()
	time.Sleep(120 * time.Millisecond)
	// At most one tick may have been in flight during the removal.
	assert.LessOrEqual(t, resolver.callCount(), settled+1)
}

func TestAutoRefresherCloseIsIdempotent(t *testing.T) {
	eng := newTestEngine(t)
	addCollection(t, eng, "col-1", apiCollectionProps(20))
	a := NewAutoRefresher(NewRenderer(&stubResolver{}, nil), eng, nil)
	a.Start(context.Background())
	a.Close()
	a.Close()
	a.Sync() // no-op after close
}
