// Package resolver turns data-source descriptors into resolved datasets.
package resolver

import "fmt"

// ParseError reports malformed JSON text, either inline or in an API
// response body.
type ParseError struct {
	Cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid JSON: %v", e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// PathNotFoundError reports the first dot-path segment missing from the value
// being walked.
type PathNotFoundError struct {
	Segment string
	Path    string
}

func (e *PathNotFoundError) Error() string {
	return fmt.Sprintf("path %q not found: missing segment %q", e.Path, e.Segment)
}

// ShapeError reports a value whose shape cannot satisfy the requested walk,
// e.g. a dot path applied to a scalar.
type ShapeError struct {
	Segment string
	Path    string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("path %q cannot be applied: segment %q reached a non-object value", e.Path, e.Segment)
}

// HttpStatusError reports a non-success HTTP response from an api-kind
// source.
type HttpStatusError struct {
	Status int
	URL    string
}

func (e *HttpStatusError) Error() string {
	return fmt.Sprintf("API returned error status %d for %s", e.Status, e.URL)
}

// NetworkError reports a transport-level failure (timeout, DNS, connection
// reset) before any HTTP status was received.
type NetworkError struct {
	Cause error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Cause)
}

func (e *NetworkError) Unwrap() error { return e.Cause }
