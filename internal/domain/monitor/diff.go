// Package monitor watches the node graph for changes to Collections blocks,
// out of band of the render path.
package monitor

import (
	"fmt"
	"reflect"
	"sort"
)

// Change is one structural difference between two values.
type Change struct {
	Path string `json:"path"`
	Kind string `json:"kind"`
	From any    `json:"from,omitempty"`
	To   any    `json:"to,omitempty"`
}

// Change kinds.
const (
	ChangeValue       = "value"
	ChangeMissing     = "property_missing"
	ChangeAdded       = "new_property"
	ChangeArrayLength = "array_length"
)

// Diff computes a generic structural diff between two values, recursing into
// maps and slices. Keys named in ignoreKeys are skipped at every depth;
// callers use it for volatile fields like timestamps.
func Diff(before, after any, ignoreKeys ...string) []Change {
	ignore := make(map[string]bool, len(ignoreKeys))
	for _, key := range ignoreKeys {
		ignore[key] = true
	}
	var changes []Change
	diffValue("", before, after, ignore, &changes)
	return changes
}

func diffValue(path string, before, after any, ignore map[string]bool, out *[]Change) {
	beforeMap, beforeIsMap := asMap(before)
	afterMap, afterIsMap := asMap(after)
	if beforeIsMap && afterIsMap {
		diffMaps(path, beforeMap, afterMap, ignore, out)
		return
	}

	beforeSlice, beforeIsSlice := asSlice(before)
	afterSlice, afterIsSlice := asSlice(after)
	if beforeIsSlice && afterIsSlice {
		diffSlices(path, beforeSlice, afterSlice, ignore, out)
		return
	}

	if !scalarEqual(before, after) {
		*out = append(*out, Change{Path: path, Kind: ChangeValue, From: before, To: after})
	}
}

func diffMaps(path string, before, after map[string]any, ignore map[string]bool, out *[]Change) {
	keys := make([]string, 0, len(before))
	for key := range before {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if ignore[key] {
			continue
		}
		childPath := joinPath(path, key)
		afterValue, ok := after[key]
		if !ok {
			*out = append(*out, Change{Path: childPath, Kind: ChangeMissing, From: before[key]})
			continue
		}
		diffValue(childPath, before[key], afterValue, ignore, out)
	}

	newKeys := make([]string, 0)
	for key := range after {
		if ignore[key] {
			continue
		}
		if _, ok := before[key]; !ok {
			newKeys = append(newKeys, key)
		}
	}
	sort.Strings(newKeys)
	for _, key := range newKeys {
		*out = append(*out, Change{Path: joinPath(path, key), Kind: ChangeAdded, To: after[key]})
	}
}

func diffSlices(path string, before, after []any, ignore map[string]bool, out *[]Change) {
	if len(before) != len(after) {
		*out = append(*out, Change{Path: path, Kind: ChangeArrayLength, From: len(before), To: len(after)})
		return
	}
	for i := range before {
		diffValue(fmt.Sprintf("%s[%d]", path, i), before[i], after[i], ignore, out)
	}
}

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func asSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out, true
	}
	return nil, false
}

func scalarEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	// Comparing two values of the same non-comparable dynamic type with ==
	// panics, and callers may hand Diff slice types asSlice does not
	// normalize.
	if !reflect.TypeOf(a).Comparable() || !reflect.TypeOf(b).Comparable() {
		return reflect.DeepEqual(a, b)
	}
	return a == b
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
