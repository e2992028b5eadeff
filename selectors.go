package remotedata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Selector picks the list of items to store out of a GraphQL "data" object.
//
// A Selector receives the raw data value, which is null or absent when the
// server returned only errors. Each returned element is stored as one item.
// Selectors run inside the store's panic recovery boundary: a panicking
// selector fails the load with a FETCH_PANIC error.
type Selector func(data json.RawMessage) ([]json.RawMessage, error)

// FieldSelector returns a [Selector] that walks data along a dot-separated
// path and returns the value found there.
//
// An array yields its elements. An object yields a single item. null yields
// no items. A path that does not exist is an error.
//
// Example:
//
//	// For data: {"patient": {"allergies": [{"id": "a1"}]}}
//	sel := remotedata.FieldSelector("patient.allergies")
func FieldSelector(path string) Selector {
	parts := strings.Split(path, ".")

	return func(data json.RawMessage) ([]json.RawMessage, error) {
		if isNull(data) {
			return nil, nil
		}
		value, err := walkJSONPath(data, parts)
		if err != nil {
			return nil, err
		}
		return asItems(value)
	}
}

// EdgesSelector returns a [Selector] for Relay-style connections. It walks to
// the connection at path and returns the node of every edge.
//
// Example:
//
//	// For data: {"pharmacies": {"edges": [{"node": {"id": "p1"}}]}}
//	sel := remotedata.EdgesSelector("pharmacies")
func EdgesSelector(path string) Selector {
	parts := strings.Split(path, ".")

	return func(data json.RawMessage) ([]json.RawMessage, error) {
		if isNull(data) {
			return nil, nil
		}
		conn, err := walkJSONPath(data, parts)
		if err != nil {
			return nil, err
		}
		if isNull(conn) {
			return nil, nil
		}

		var c struct {
			Edges []struct {
				Node json.RawMessage `json:"node"`
			} `json:"edges"`
		}
		if err := json.Unmarshal(conn, &c); err != nil {
			return nil, fmt.Errorf("%q is not a connection: %w", path, err)
		}

		nodes := make([]json.RawMessage, 0, len(c.Edges))
		for _, e := range c.Edges {
			if isNull(e.Node) {
				continue
			}
			nodes = append(nodes, e.Node)
		}
		return nodes, nil
	}
}

// DefaultSelector is the [Selector] used when none is set on a [Source].
//
// It expects data to hold exactly one top-level field, the usual shape of a
// single-query document, and selects that field as [FieldSelector] would.
var DefaultSelector Selector = func(data json.RawMessage) ([]json.RawMessage, error) {
	if isNull(data) {
		return nil, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("data is not an object: %w", err)
	}
	if len(obj) != 1 {
		return nil, fmt.Errorf("data has %d top-level fields, set a selector to choose one", len(obj))
	}
	for _, value := range obj {
		return asItems(value)
	}
	return nil, nil
}

// walkJSONPath follows parts through nested objects, decoding one level at a
// time so the selected value stays byte-for-byte as the server sent it.
func walkJSONPath(data json.RawMessage, parts []string) (json.RawMessage, error) {
	current := data
	for i, part := range parts {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(current, &obj); err != nil || obj == nil {
			return nil, fmt.Errorf("field %q is not an object", strings.Join(parts[:i], "."))
		}
		next, ok := obj[part]
		if !ok {
			return nil, fmt.Errorf("field %q not found", strings.Join(parts[:i+1], "."))
		}
		current = next
	}
	return current, nil
}

func asItems(value json.RawMessage) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(value)
	switch {
	case isNull(trimmed):
		return nil, nil
	case trimmed[0] == '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("failed to decode list: %w", err)
		}
		return items, nil
	default:
		return []json.RawMessage{trimmed}, nil
	}
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
