package monitor

import (
	"sort"
	"sync"
	"time"

	"github.com/ohler55/ojg/oj"

	"github.com/pagecanvas/pagecanvas-go/internal/domain/entities/builder"
	"github.com/pagecanvas/pagecanvas-go/internal/infrastructure/observability/logging"
)

// ThrottleTime is the minimum spacing between processed observations. Calls
// arriving inside the window are dropped outright, not queued.
const ThrottleTime = 100 * time.Millisecond

// Summary is the stable snapshot of one Collections block the monitor
// compares across observations.
type Summary map[string]any

// dataProps are the summary keys whose changes get called out individually.
var dataProps = []string{"data", "jsonData", "apiUrl", "itemVariable"}

// InstanceChange describes what changed in one still-present Collections
// block since the previous observation.
type InstanceChange struct {
	ID                string   `json:"id"`
	Changes           []Change `json:"changes"`
	ModeChanged       bool     `json:"modeChanged,omitempty"`
	DataSourceChanged bool     `json:"dataSourceChanged,omitempty"`
	DataChanged       []string `json:"dataChanged,omitempty"`
	StructureChanged  bool     `json:"structureChanged,omitempty"`
}

// Report is the outcome of one processed observation.
type Report struct {
	Timestamp   time.Time        `json:"timestamp"`
	Baseline    bool             `json:"baseline,omitempty"`
	Collections int              `json:"collections"`
	Added       []string         `json:"added,omitempty"`
	Removed     []string         `json:"removed,omitempty"`
	Changed     []InstanceChange `json:"changed,omitempty"`
}

// HasChanges reports whether the observation found any delta.
func (r *Report) HasChanges() bool {
	return len(r.Added) > 0 || len(r.Removed) > 0 || len(r.Changed) > 0
}

// Monitor tracks Collections blocks across graph observations. It never
// mutates the graph it observes. Create one per composed editor and Dispose
// it on teardown.
type Monitor struct {
	mu            sync.Mutex
	state         map[string]Summary
	initialized   bool
	lastProcessed time.Time
	disposed      bool

	now    func() time.Time
	logger *logging.ChanneledLogger
}

// New creates a monitor.
func New(logger *logging.ChanneledLogger) *Monitor {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	return &Monitor{
		state:  make(map[string]Summary),
		now:    time.Now,
		logger: logger,
	}
}

// WithClock overrides the monitor's time source. Tests use it to step through
// the throttle window deterministically.
func (m *Monitor) WithClock(now func() time.Time) *Monitor {
	m.now = now
	return m
}

// Dispose drops the monitor's state; further observations are no-ops.
func (m *Monitor) Dispose() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disposed = true
	m.state = make(map[string]Summary)
}

// State returns a copy of the last-observed summaries keyed by node id.
func (m *Monitor) State() map[string]Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Summary, len(m.state))
	for id, summary := range m.state {
		copied := make(Summary, len(summary))
		for k, v := range summary {
			copied[k] = v
		}
		out[id] = copied
	}
	return out
}

// Observe processes one snapshot of the node graph. It returns nil when the
// call lands inside the throttle window or the monitor is disposed. The
// first processed observation seeds the baseline and reports no deltas; each
// later one diffs every Collections block against its stored summary.
func (m *Monitor) Observe(graph builder.Graph) *Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.disposed {
		return nil
	}
	now := m.now()
	if !m.lastProcessed.IsZero() && now.Sub(m.lastProcessed) < ThrottleTime {
		return nil
	}
	m.lastProcessed = now

	current := make(map[string]Summary)
	for id, node := range graph {
		if node.DisplayName != builder.DisplayNameCollections {
			continue
		}
		current[id] = summarize(node, now)
	}

	report := &Report{Timestamp: now, Collections: len(current)}

	if !m.initialized {
		m.initialized = true
		m.state = current
		report.Baseline = true
		m.logger.Monitor().Info("Collections monitoring initialized", "collections", len(current))
		return report
	}

	for id := range m.state {
		if _, ok := current[id]; !ok {
			report.Removed = append(report.Removed, id)
			delete(m.state, id)
		}
	}
	sort.Strings(report.Removed)

	ids := make([]string, 0, len(current))
	for id := range current {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		summary := current[id]
		previous, ok := m.state[id]
		if !ok {
			report.Added = append(report.Added, id)
			m.state[id] = summary
			continue
		}
		changes := Diff(map[string]any(previous), map[string]any(summary), "updatedAt")
		if len(changes) == 0 {
			continue
		}
		change := InstanceChange{ID: id, Changes: changes}
		change.ModeChanged = previous["mode"] != summary["mode"]
		change.DataSourceChanged = previous["dataSource"] != summary["dataSource"]
		for _, prop := range dataProps {
			if previous[prop] != summary[prop] {
				change.DataChanged = append(change.DataChanged, prop)
			}
		}
		change.StructureChanged = oj.JSON(previous["childrenIds"]) != oj.JSON(summary["childrenIds"])
		report.Changed = append(report.Changed, change)
		m.state[id] = summary
	}

	if report.HasChanges() {
		m.logger.Monitor().Info("Collections changes detected",
			"added", len(report.Added), "removed", len(report.Removed), "changed", len(report.Changed),
			"tracked", len(m.state))
	}
	return report
}

// summarize extracts the comparable view of one Collections node. Prop
// payloads that can nest arbitrarily are flattened to JSON text so the diff
// stays shallow and cheap.
func summarize(node *builder.Node, now time.Time) Summary {
	summary := Summary{
		"id":          node.ID,
		"displayName": node.DisplayName,
		"parent":      node.Parent,
		"mode":        node.StringProp(builder.PropRenderMode, ""),
		"dataSource":  node.StringProp(builder.PropDataSource, ""),
		"updatedAt":   now.UnixMilli(),
	}
	if node.Props != nil {
		if data, ok := node.Props[builder.PropData]; ok {
			summary["data"] = oj.JSON(data)
		}
		if jsonData := node.StringProp(builder.PropJSONData, ""); jsonData != "" {
			summary["jsonData"] = jsonData
		}
		if apiURL := node.StringProp(builder.PropAPIURL, ""); apiURL != "" {
			summary["apiUrl"] = apiURL
		}
		if itemVariable := node.StringProp(builder.PropItemVariable, ""); itemVariable != "" {
			summary["itemVariable"] = itemVariable
		}
		if columns, ok := node.Props[builder.PropColumns]; ok {
			summary["columns"] = oj.JSON(columns)
		}
		if fields, ok := node.Props[builder.PropFields]; ok {
			summary["fields"] = oj.JSON(fields)
		}
	}
	summary["childrenCount"] = len(node.Nodes)
	summary["childrenIds"] = append([]string{}, node.Nodes...)
	if len(node.LinkedNodes) > 0 {
		linked := make([]string, 0, len(node.LinkedNodes))
		for _, id := range node.LinkedNodes {
			linked = append(linked, id)
		}
		sort.Strings(linked)
		summary["linkedNodeIds"] = linked
		summary["linkedNodesCount"] = len(linked)
	}
	return summary
}
