// Package datasource defines descriptor and dataset entities for the
// Collections data-binding subsystem.
package datasource

import (
	"fmt"
	"sort"
	"time"
)

// Kind identifies where a data source pulls its records from.
type Kind string

const (
	KindStatic Kind = "static"
	KindJSON   Kind = "json"
	KindAPI    Kind = "api"
)

// Valid reports whether the kind is one of the three supported origins.
func (k Kind) Valid() bool {
	return k == KindStatic || k == KindJSON || k == KindAPI
}

// HTTP methods accepted for api-kind sources.
var allowedMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
}

// ValidMethod reports whether method is usable for an api-kind source. The
// empty string is allowed and defaults to GET at resolution time.
func ValidMethod(method string) bool {
	return method == "" || allowedMethods[method]
}

// Record is one flat data item supplied to a Collections block.
type Record = map[string]any

// Descriptor is a data-source configuration prior to resolution. Only the
// fields relevant to Kind are meaningful; the rest are retained untouched so
// descriptors round-trip through the editor's serialization.
type Descriptor struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Kind        Kind   `json:"type"`

	// static
	StaticRecords []Record `json:"data,omitempty"`

	// json
	JSONText string `json:"jsonData,omitempty"`
	JSONPath string `json:"jsonDataPath,omitempty"`

	// api
	APIURL               string            `json:"apiUrl,omitempty"`
	APIMethod            string            `json:"apiMethod,omitempty"`
	APIHeaders           map[string]string `json:"apiHeaders,omitempty"`
	APIBody              string            `json:"apiBody,omitempty"`
	APIDataPath          string            `json:"apiDataPath,omitempty"`
	APIRefreshIntervalMs int               `json:"apiRefreshInterval,omitempty"`
}

// Validate checks the fields a descriptor of its kind depends on.
func (d *Descriptor) Validate() error {
	if !d.Kind.Valid() {
		return fmt.Errorf("unknown data source kind %q", d.Kind)
	}
	if d.Kind == KindAPI {
		if d.APIURL == "" {
			return fmt.Errorf("api data source requires apiUrl")
		}
		if !ValidMethod(d.APIMethod) {
			return fmt.Errorf("unsupported api method %q", d.APIMethod)
		}
	}
	return nil
}

// Clone returns a deep copy of the descriptor.
func (d *Descriptor) Clone() *Descriptor {
	out := *d
	if d.StaticRecords != nil {
		out.StaticRecords = CloneRecords(d.StaticRecords)
	}
	if d.APIHeaders != nil {
		out.APIHeaders = make(map[string]string, len(d.APIHeaders))
		for k, v := range d.APIHeaders {
			out.APIHeaders[k] = v
		}
	}
	return &out
}

// Dataset is the result of resolving a descriptor. Fields is derived solely
// from the first record; heterogeneous records are not reconciled.
type Dataset struct {
	Records     []Record  `json:"data"`
	Fields      []string  `json:"fields"`
	IsLoading   bool      `json:"isLoading"`
	Error       string    `json:"error,omitempty"`
	LastUpdated time.Time `json:"lastUpdated,omitempty"`
}

// FieldsOf returns the keys of the first record, sorted for a stable order,
// or an empty list when there are no records.
func FieldsOf(records []Record) []string {
	if len(records) == 0 {
		return []string{}
	}
	fields := make([]string, 0, len(records[0]))
	for key := range records[0] {
		fields = append(fields, key)
	}
	sort.Strings(fields)
	return fields
}

// CloneRecords deep-copies a record slice so resolved datasets never alias
// caller-owned data.
func CloneRecords(records []Record) []Record {
	out := make([]Record, len(records))
	for i, rec := range records {
		out[i] = cloneRecord(rec)
	}
	return out
}

func cloneRecord(rec Record) Record {
	out := make(Record, len(rec))
	for k, v := range rec {
		out[k] = cloneAny(v)
	}
	return out
}

func cloneAny(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneRecord(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneAny(item)
		}
		return out
	default:
		return val
	}
}
