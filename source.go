package remotedata

import (
	"errors"
	"strings"
	"time"
)

const defaultSourceTimeout = 10 * time.Second

// Source is a named GraphQL query whose result is kept in a resource store.
//
// Source is immutable after creation via [NewSource]. Getters return copies
// of mutable data (maps), so a Source cannot be modified after construction.
//
// Sources are configured using [SourceOption] functions such as
// [WithVariables], [WithSelector], [WithInterval], [WithTimeout],
// [WithSourceHeaders], and [WithLabels].
type Source struct {
	name      string
	query     string
	variables map[string]any
	selector  Selector
	labels    map[string]string
	headers   map[string]string
	timeout   time.Duration
	interval  time.Duration
}

// Name returns the source's name. It identifies the store in the API and logs.
func (s Source) Name() string {
	return s.name
}

// Query returns the GraphQL document sent for this source.
func (s Source) Query() string {
	return s.query
}

// Variables returns a copy of the GraphQL variables. Returns nil if none are set.
func (s Source) Variables() map[string]any {
	if s.variables == nil {
		return nil
	}
	cp := make(map[string]any, len(s.variables))
	for k, v := range s.variables {
		cp[k] = v
	}
	return cp
}

// Selector returns the source's [Selector], or nil if none was set. When
// nil, [DefaultSelector] is applied.
func (s Source) Selector() Selector {
	return s.selector
}

// Labels returns a copy of the source's labels.
func (s Source) Labels() map[string]string {
	return copyMap(s.labels)
}

// Headers returns a copy of the HTTP headers sent with this source's requests.
func (s Source) Headers() map[string]string {
	return copyMap(s.headers)
}

// Timeout returns the request timeout. Defaults to 10 seconds.
func (s Source) Timeout() time.Duration {
	return s.timeout
}

// Interval returns the source's refresh interval. Zero means the board's
// global polling interval applies.
func (s Source) Interval() time.Duration {
	return s.interval
}

// NewSource creates a [Source] with the given name, GraphQL query, and options.
//
// Returns an error if the name or query is empty, or an option is invalid.
//
// Example:
//
//	src, err := remotedata.NewSource("pharmacies",
//	    `query($zip: String!) { pharmacies(zip: $zip) { id name } }`,
//	    remotedata.WithVariables(map[string]any{"zip": "94103"}),
//	    remotedata.WithInterval(30 * time.Second),
//	)
func NewSource(name, query string, opts ...SourceOption) (Source, error) {
	if strings.TrimSpace(name) == "" {
		return Source{}, errors.New("source name cannot be empty")
	}
	if strings.TrimSpace(query) == "" {
		return Source{}, errors.New("source query cannot be empty")
	}

	cfg := &sourceConfig{
		variables: make(map[string]any),
		labels:    make(map[string]string),
		headers:   make(map[string]string),
		timeout:   defaultSourceTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return Source{}, err
		}
	}

	return Source{
		name:      name,
		query:     query,
		variables: cfg.variables,
		selector:  cfg.selector,
		labels:    cfg.labels,
		headers:   cfg.headers,
		timeout:   cfg.timeout,
		interval:  cfg.interval,
	}, nil
}

// copyMap returns a shallow copy of the map.
func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
