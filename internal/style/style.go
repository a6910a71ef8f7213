// Package style holds the map style document shared by the resolution pipeline.
package style

import (
	"encoding/json"
	"fmt"
)

// Document is a Mapbox/MapLibre style document kept as decoded JSON so that
// fields the pipeline does not touch pass through unchanged.
//
// Reference: https://docs.mapbox.com/style-spec/reference/root
type Document map[string]any

// Decode parses a JSON style document. The top level must be an object.
func Decode(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("style document is not a JSON object")
	}
	return doc, nil
}

// FromValue converts any JSON-marshalable value into a Document.
func FromValue(v any) (Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// String returns a top-level string field and whether it was a string.
func (d Document) String(key string) (string, bool) {
	s, ok := d[key].(string)
	return s, ok
}

// Sources returns the "sources" object, or nil if absent or malformed.
func (d Document) Sources() map[string]any {
	sources, _ := d["sources"].(map[string]any)
	return sources
}

// Layers returns the "layers" array, or nil if absent or malformed.
func (d Document) Layers() []any {
	layers, _ := d["layers"].([]any)
	return layers
}

// Layer finds a layer object by id.
func (d Document) Layer(id string) (map[string]any, bool) {
	for _, l := range d.Layers() {
		layer, ok := l.(map[string]any)
		if !ok {
			continue
		}
		if layer["id"] == id {
			return layer, true
		}
	}
	return nil, false
}

// Clone returns a deep copy, so a cached document can be handed out without
// callers mutating the shared value.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return cloneValue(map[string]any(d)).(map[string]any)
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = cloneValue(val)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, val := range t {
			s[i] = cloneValue(val)
		}
		return s
	default:
		return v
	}
}
