package resolver

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ohler55/ojg/oj"

	"github.com/pagecanvas/pagecanvas-go/internal/domain/entities/datasource"
	"github.com/pagecanvas/pagecanvas-go/internal/infrastructure/observability/logging"
)

// DefaultTimeout bounds a single API resolution when the caller's context
// carries no deadline of its own.
const DefaultTimeout = 15 * time.Second

// Resolver resolves descriptors into datasets. It is safe for concurrent use.
type Resolver struct {
	client *http.Client
	logger *logging.ChanneledLogger
}

// New creates a resolver using the provided HTTP client. A nil client gets a
// default one with DefaultTimeout.
func New(client *http.Client, logger *logging.ChanneledLogger) *Resolver {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &Resolver{client: client, logger: logger}
}

// Resolve turns a descriptor into a dataset. Failures never surface as Go
// errors; they are captured into Dataset.Error with empty records so the
// render path stays crash-free.
func (r *Resolver) Resolve(ctx context.Context, d *datasource.Descriptor) *datasource.Dataset {
	start := time.Now()
	records, err := r.ResolveRecords(ctx, d)
	if err != nil {
		if r.logger != nil {
			r.logger.DataSource().Warn("Resolution failed",
				"kind", string(d.Kind), "id", d.ID, "error", err.Error(), "duration", time.Since(start))
		}
		return &datasource.Dataset{
			Records:     []datasource.Record{},
			Fields:      []string{},
			Error:       err.Error(),
			LastUpdated: time.Now().UTC(),
		}
	}
	if r.logger != nil {
		r.logger.DataSource().Debug("Resolution completed",
			"kind", string(d.Kind), "id", d.ID, "records", len(records), "duration", time.Since(start))
		if elapsed := time.Since(start); elapsed > time.Second {
			r.logger.LogSlowOperation("datasource_resolve", elapsed)
		}
	}
	return &datasource.Dataset{
		Records:     records,
		Fields:      datasource.FieldsOf(records),
		LastUpdated: time.Now().UTC(),
	}
}

// ResolveRecords performs the raw resolution and exposes the typed failure.
// Most callers want Resolve; the registry and tests use this form.
func (r *Resolver) ResolveRecords(ctx context.Context, d *datasource.Descriptor) ([]datasource.Record, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	switch d.Kind {
	case datasource.KindStatic:
		return datasource.CloneRecords(d.StaticRecords), nil
	case datasource.KindJSON:
		return resolveJSON(d.JSONText, d.JSONPath)
	default:
		return r.resolveAPI(ctx, d)
	}
}

func resolveJSON(text, path string) ([]datasource.Record, error) {
	parsed, err := oj.ParseString(text)
	if err != nil {
		return nil, &ParseError{Cause: err}
	}
	value, err := walkPath(parsed, path)
	if err != nil {
		return nil, err
	}
	return recordsFrom(value), nil
}

func (r *Resolver) resolveAPI(ctx context.Context, d *datasource.Descriptor) ([]datasource.Record, error) {
	method := d.APIMethod
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if method != http.MethodGet && d.APIBody != "" {
		body = strings.NewReader(d.APIBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, d.APIURL, body)
	if err != nil {
		return nil, &NetworkError{Cause: err}
	}
	for name, value := range d.APIHeaders {
		req.Header.Set(name, value)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &NetworkError{Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HttpStatusError{Status: resp.StatusCode, URL: d.APIURL}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Cause: err}
	}

	parsed, err := oj.Parse(raw)
	if err != nil {
		return nil, &ParseError{Cause: err}
	}
	value, err := walkPath(parsed, d.APIDataPath)
	if err != nil {
		return nil, err
	}
	return recordsFrom(value), nil
}

// walkPath applies a dot-delimited path of object-key accesses. The first
// segment missing from the current object is a hard error; there is no
// fallback to the root value.
func walkPath(root any, path string) (any, error) {
	if path == "" {
		return root, nil
	}
	current := root
	for _, segment := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, &ShapeError{Segment: segment, Path: path}
		}
		value, ok := obj[segment]
		if !ok {
			return nil, &PathNotFoundError{Segment: segment, Path: path}
		}
		current = value
	}
	return current, nil
}

// recordsFrom normalizes the walked value into records. A non-array value is
// treated as "no records", not an error. Scalar array elements are wrapped
// under a "value" key so every record stays a flat mapping.
func recordsFrom(value any) []datasource.Record {
	items, ok := value.([]any)
	if !ok {
		return []datasource.Record{}
	}
	records := make([]datasource.Record, 0, len(items))
	for _, item := range items {
		if rec, ok := item.(map[string]any); ok {
			records = append(records, rec)
			continue
		}
		records = append(records, datasource.Record{"value": item})
	}
	return records
}
