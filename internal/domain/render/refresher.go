package render

import (
	"context"
	"sync"
	"time"

	"github.com/pagecanvas/pagecanvas-go/internal/domain/engine"
	"github.com/pagecanvas/pagecanvas-go/internal/domain/entities/builder"
	"github.com/pagecanvas/pagecanvas-go/internal/domain/entities/datasource"
	"github.com/pagecanvas/pagecanvas-go/internal/infrastructure/observability/logging"
)

// AutoRefresher re-expands api-backed Collections blocks on their configured
// interval while they are mounted in a graph. Timers are torn down whenever a
// block disappears, its interval changes, or the refresher closes.
type AutoRefresher struct {
	renderer *Renderer
	eng      engine.Engine
	logger   *logging.ChanneledLogger

	mu      sync.Mutex
	tracked map[string]*trackedCollection
	ctx     context.Context
	cancel  context.CancelFunc
	closed  bool
	wg      sync.WaitGroup
}

type trackedCollection struct {
	stop     chan struct{}
	interval time.Duration
}

// NewAutoRefresher creates a refresher bound to one engine.
func NewAutoRefresher(renderer *Renderer, eng engine.Engine, logger *logging.ChanneledLogger) *AutoRefresher {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	return &AutoRefresher{
		renderer: renderer,
		eng:      eng,
		logger:   logger,
		tracked:  make(map[string]*trackedCollection),
	}
}

// Start makes the refresher live and performs an initial sync.
func (a *AutoRefresher) Start(ctx context.Context) {
	a.mu.Lock()
	a.ctx, a.cancel = context.WithCancel(ctx)
	a.mu.Unlock()
	a.Sync()
}

// Sync reconciles timers against the current graph: every api-enabled
// Collections block with a positive refresh interval gets exactly one timer;
// everything else loses its timer.
func (a *AutoRefresher) Sync() {
	graph := a.eng.Graph()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || a.ctx == nil {
		return
	}

	seen := make(map[string]bool)
	for id, node := range graph {
		if node.DisplayName != builder.DisplayNameCollections {
			continue
		}
		props := CollectionPropsFromNode(node)
		wantInterval := time.Duration(0)
		if props.RenderMode == ModeData &&
			props.DataSource == string(datasource.KindAPI) &&
			props.APIEnabled && props.APIRefreshInterval > 0 {
			wantInterval = time.Duration(props.APIRefreshInterval) * time.Millisecond
		}
		if wantInterval == 0 {
			a.untrackLocked(id)
			continue
		}
		seen[id] = true
		if existing, ok := a.tracked[id]; ok && existing.interval == wantInterval {
			continue
		}
		a.untrackLocked(id)
		a.trackLocked(id, wantInterval)
	}

	for id := range a.tracked {
		if !seen[id] {
			a.untrackLocked(id)
		}
	}
}

// Untrack cancels the timer for one block, if any.
func (a *AutoRefresher) Untrack(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.untrackLocked(id)
}

// Close cancels all timers and waits for in-flight expansions.
func (a *AutoRefresher) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	if a.cancel != nil {
		a.cancel()
	}
	for id := range a.tracked {
		a.untrackLocked(id)
	}
	a.mu.Unlock()
	a.wg.Wait()
}

func (a *AutoRefresher) trackLocked(id string, interval time.Duration) {
	stop := make(chan struct{})
	a.tracked[id] = &trackedCollection{stop: stop, interval: interval}
	a.logger.Render().Debug("Auto-refresh timer started", "id", id, "interval", interval)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := a.renderer.Expand(a.ctx, a.eng, id); err != nil {
					a.logger.Render().Warn("Auto-refresh expansion stopped", "id", id, "error", err.Error())
					return
				}
			case <-stop:
				return
			case <-a.ctx.Done():
				return
			}
		}
	}()
}

func (a *AutoRefresher) untrackLocked(id string) {
	if tracked, ok := a.tracked[id]; ok {
		close(tracked.stop)
		delete(a.tracked, id)
		a.logger.Render().Debug("Auto-refresh timer stopped", "id", id)
	}
}
