// Package registry provides the keyed store of named, reusable data-source
// configurations with cached datasets and periodic auto-refresh.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/pagecanvas/pagecanvas-go/internal/domain/entities/datasource"
	"github.com/pagecanvas/pagecanvas-go/internal/infrastructure/observability/logging"
)

// StoreKey is the key-value entry holding the full registry document.
const StoreKey = "dataSources"

// Store is the external key-value persistence the registry writes through to.
type Store interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

// Resolver resolves a descriptor into a dataset.
type Resolver interface {
	Resolve(ctx context.Context, d *datasource.Descriptor) *datasource.Dataset
}

// Entry pairs a descriptor with its last resolved dataset.
type Entry struct {
	Descriptor *datasource.Descriptor `json:"descriptor"`
	Dataset    *datasource.Dataset    `json:"dataset"`
}

// Clone returns a deep copy safe to hand outside the registry lock.
func (e *Entry) Clone() *Entry {
	out := &Entry{Descriptor: e.Descriptor.Clone()}
	ds := *e.Dataset
	ds.Records = datasource.CloneRecords(e.Dataset.Records)
	ds.Fields = append([]string{}, e.Dataset.Fields...)
	out.Dataset = &ds
	return out
}

// Patch is a partial descriptor update. Nil fields are left untouched.
type Patch struct {
	Name                 *string            `json:"name,omitempty"`
	Description          *string            `json:"description,omitempty"`
	Kind                 *datasource.Kind   `json:"type,omitempty"`
	StaticRecords        []datasource.Record `json:"data,omitempty"`
	JSONText             *string            `json:"jsonData,omitempty"`
	JSONPath             *string            `json:"jsonDataPath,omitempty"`
	APIURL               *string            `json:"apiUrl,omitempty"`
	APIMethod            *string            `json:"apiMethod,omitempty"`
	APIHeaders           map[string]string  `json:"apiHeaders,omitempty"`
	APIBody              *string            `json:"apiBody,omitempty"`
	APIDataPath          *string            `json:"apiDataPath,omitempty"`
	APIRefreshIntervalMs *int               `json:"apiRefreshInterval,omitempty"`
}

// flight tracks the at-most-one in-flight resolution per id. gen is bumped on
// every descriptor change so stale completions are discarded.
type flight struct {
	running bool
	rerun   bool
	gen     uint64
}

// Registry is the keyed data-source store. All mutations persist the full
// registry document back to the key-value store (write-through).
type Registry struct {
	mu      sync.Mutex
	entries map[string]*Entry
	flights map[string]*flight
	timers  map[string]chan struct{}

	resolver    Resolver
	store       Store
	logger      *logging.ChanneledLogger
	minInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	closed bool
	wg     sync.WaitGroup
}

// New creates a registry. Auto-refresh timers are live from the moment an
// entry is scheduled, so a registry is usable before Start; Start loads
// persisted entries and Close tears everything down.
func New(resolver Resolver, store Store, logger *logging.ChanneledLogger) *Registry {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		entries:  make(map[string]*Entry),
		flights:  make(map[string]*flight),
		timers:   make(map[string]chan struct{}),
		resolver: resolver,
		store:    store,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// WithMinInterval clamps auto-refresh intervals to at least min. Zero leaves
// intervals unclamped.
func (r *Registry) WithMinInterval(min time.Duration) *Registry {
	r.minInterval = min
	return r
}

// Start loads persisted entries, schedules auto-refresh timers, and refreshes
// every registered entry exactly once.
func (r *Registry) Start(ctx context.Context) error {
	// The registry's own context exists from New; Start only links the
	// caller's context so cancelling it shuts the registry down too.
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		select {
		case <-ctx.Done():
			r.cancel()
		case <-r.ctx.Done():
		}
	}()

	r.mu.Lock()
	if err := r.loadLocked(); err != nil {
		r.mu.Unlock()
		return err
	}
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
		r.scheduleLocked(id)
	}
	r.mu.Unlock()

	r.logger.DataSource().Info("Data source registry started", "entries", len(ids))
	for _, id := range ids {
		r.wg.Add(1)
		go func(id string) {
			defer r.wg.Done()
			if err := r.Refresh(r.ctx, id); err != nil {
				r.logger.DataSource().Warn("Initial refresh failed", "id", id, "error", err.Error())
			}
		}(id)
	}
	return nil
}

// Close cancels all auto-refresh timers and waits for in-flight work.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	if r.cancel != nil {
		r.cancel()
	}
	for id, stop := range r.timers {
		close(stop)
		delete(r.timers, id)
	}
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.DataSource().Info("Data source registry closed")
}

// Add registers a new data source and returns its generated id.
func (r *Registry) Add(d *datasource.Descriptor) (string, error) {
	desc := d.Clone()
	if desc.Kind == "" {
		desc.Kind = datasource.KindStatic
	}
	if err := desc.Validate(); err != nil {
		return "", err
	}
	if desc.APIMethod == "" {
		desc.APIMethod = "GET"
	}
	if desc.APIHeaders == nil {
		desc.APIHeaders = map[string]string{}
	}
	desc.ID = "ds-" + ulid.Make().String()

	r.mu.Lock()
	r.entries[desc.ID] = &Entry{
		Descriptor: desc,
		Dataset: &datasource.Dataset{
			Records:     []datasource.Record{},
			Fields:      []string{},
			LastUpdated: time.Now().UTC(),
		},
	}
	r.scheduleLocked(desc.ID)
	err := r.persistLocked()
	r.mu.Unlock()

	r.logger.DataSource().Info("Data source added", "id", desc.ID, "kind", string(desc.Kind), "name", desc.Name)
	return desc.ID, err
}

// Update applies a partial patch to a descriptor. The entry's in-flight
// generation is bumped so a resolution started against the old descriptor can
// never overwrite data resolved from the new one, and its timer is recreated.
func (r *Registry) Update(id string, patch *Patch) error {
	r.mu.Lock()
	entry, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("data source %s not found", id)
	}

	applyPatch(entry.Descriptor, patch)
	if err := entry.Descriptor.Validate(); err != nil {
		r.mu.Unlock()
		return err
	}
	entry.Dataset.LastUpdated = time.Now().UTC()
	r.flightFor(id).gen++
	r.scheduleLocked(id)
	err := r.persistLocked()
	r.mu.Unlock()

	r.logger.DataSource().Debug("Data source updated", "id", id)
	return err
}

// Remove deletes a data source and cancels its timer.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	if _, ok := r.entries[id]; !ok {
		r.mu.Unlock()
		return fmt.Errorf("data source %s not found", id)
	}
	delete(r.entries, id)
	r.flightFor(id).gen++
	r.stopTimerLocked(id)
	err := r.persistLocked()
	r.mu.Unlock()

	r.logger.DataSource().Info("Data source removed", "id", id)
	return err
}

// Get returns a copy of one entry, or nil when absent.
func (r *Registry) Get(id string) *Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	if !ok {
		return nil
	}
	return entry.Clone()
}

// List returns copies of all entries ordered by id.
func (r *Registry) List() []*Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Entry, 0, len(r.entries))
	for _, entry := range r.entries {
		out = append(out, entry.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Descriptor.ID < out[j].Descriptor.ID
	})
	return out
}

// Refresh resolves one entry and stores the result. At most one resolution
// per id runs at a time; a call arriving while one is in flight marks it to
// run once more after the current one completes and returns immediately.
func (r *Registry) Refresh(ctx context.Context, id string) error {
	r.mu.Lock()
	entry, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("data source %s not found", id)
	}
	fl := r.flightFor(id)
	if fl.running {
		fl.rerun = true
		r.mu.Unlock()
		return nil
	}
	fl.running = true
	entry.Dataset.IsLoading = true
	entry.Dataset.Error = ""
	r.mu.Unlock()

	for {
		r.mu.Lock()
		entry, ok = r.entries[id]
		if !ok {
			fl.running = false
			fl.rerun = false
			r.mu.Unlock()
			return nil
		}
		desc := entry.Descriptor.Clone()
		gen := fl.gen
		r.mu.Unlock()

		dataset := r.resolver.Resolve(ctx, desc)

		r.mu.Lock()
		entry, ok = r.entries[id]
		if ok && fl.gen == gen {
			entry.Dataset = dataset
			if err := r.persistLocked(); err != nil {
				r.logger.DataSource().Error("Failed to persist registry", "id", id, "error", err.Error())
			}
		}
		if ok && fl.rerun {
			fl.rerun = false
			entry.Dataset.IsLoading = true
			r.mu.Unlock()
			continue
		}
		fl.running = false
		if ok {
			entry.Dataset.IsLoading = false
		}
		r.mu.Unlock()
		return nil
	}
}

func (r *Registry) flightFor(id string) *flight {
	fl, ok := r.flights[id]
	if !ok {
		fl = &flight{}
		r.flights[id] = fl
	}
	return fl
}

// scheduleLocked recreates the auto-refresh timer for one entry. Only
// api-kind entries with a positive interval get one.
func (r *Registry) scheduleLocked(id string) {
	r.stopTimerLocked(id)
	entry, ok := r.entries[id]
	if !ok || r.closed {
		return
	}
	if entry.Descriptor.Kind != datasource.KindAPI || entry.Descriptor.APIRefreshIntervalMs <= 0 {
		return
	}

	interval := time.Duration(entry.Descriptor.APIRefreshIntervalMs) * time.Millisecond
	if interval < r.minInterval {
		interval = r.minInterval
	}
	stop := make(chan struct{})
	r.timers[id] = stop
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := r.Refresh(r.ctx, id); err != nil {
					return
				}
			case <-stop:
				return
			case <-r.ctx.Done():
				return
			}
		}
	}()
}

func (r *Registry) stopTimerLocked(id string) {
	if stop, ok := r.timers[id]; ok {
		close(stop)
		delete(r.timers, id)
	}
}

// persistLocked writes the whole registry document back to the key-value
// store. Writes are full-document overwrites, last write wins.
func (r *Registry) persistLocked() error {
	raw, err := json.Marshal(r.entries)
	if err != nil {
		return fmt.Errorf("failed to serialize registry: %w", err)
	}
	return r.store.Set(StoreKey, string(raw))
}

func (r *Registry) loadLocked() error {
	raw, found, err := r.store.Get(StoreKey)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	if !found || raw == "" {
		return nil
	}
	entries := make(map[string]*Entry)
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return fmt.Errorf("failed to parse persisted registry: %w", err)
	}
	for _, entry := range entries {
		if entry.Descriptor == nil {
			continue
		}
		if entry.Dataset == nil {
			entry.Dataset = &datasource.Dataset{Records: []datasource.Record{}, Fields: []string{}}
		}
		entry.Dataset.IsLoading = false
		r.entries[entry.Descriptor.ID] = entry
	}
	return nil
}

func applyPatch(d *datasource.Descriptor, p *Patch) {
	if p == nil {
		return
	}
	if p.Name != nil {
		d.Name = *p.Name
	}
	if p.Description != nil {
		d.Description = *p.Description
	}
	if p.Kind != nil {
		d.Kind = *p.Kind
	}
	if p.StaticRecords != nil {
		d.StaticRecords = datasource.CloneRecords(p.StaticRecords)
	}
	if p.JSONText != nil {
		d.JSONText = *p.JSONText
	}
	if p.JSONPath != nil {
		d.JSONPath = *p.JSONPath
	}
	if p.APIURL != nil {
		d.APIURL = *p.APIURL
	}
	if p.APIMethod != nil {
		d.APIMethod = *p.APIMethod
	}
	if p.APIHeaders != nil {
		d.APIHeaders = make(map[string]string, len(p.APIHeaders))
		for k, v := range p.APIHeaders {
			d.APIHeaders[k] = v
		}
	}
	if p.APIBody != nil {
		d.APIBody = *p.APIBody
	}
	if p.APIDataPath != nil {
		d.APIDataPath = *p.APIDataPath
	}
	if p.APIRefreshIntervalMs != nil {
		d.APIRefreshIntervalMs = *p.APIRefreshIntervalMs
	}
}
