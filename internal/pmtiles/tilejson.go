package pmtiles

import "strings"

// TileJSON is a TileJSON 3.0.0 document describing an archive.
type TileJSON struct {
	TileJSON     string    `json:"tilejson"`
	Scheme       string    `json:"scheme"`
	Tiles        []string  `json:"tiles"`
	Name         string    `json:"name,omitempty"`
	Description  string    `json:"description,omitempty"`
	Version      string    `json:"version,omitempty"`
	Attribution  string    `json:"attribution,omitempty"`
	MinZoom      uint8     `json:"minzoom"`
	MaxZoom      uint8     `json:"maxzoom"`
	Bounds       []float64 `json:"bounds"`
	Center       []float64 `json:"center"`
	VectorLayers []any     `json:"vector_layers,omitempty"`
}

// TileJSON describes a with tile URLs under baseURL, for example
// "https://maps.example.org/tiles/basemap" yields
// "https://maps.example.org/tiles/basemap/{z}/{x}/{y}.mvt".
func (a *Archive) TileJSON(baseURL string) TileJSON {
	h := a.header
	b := h.Bound()
	c := h.Center()

	tj := TileJSON{
		TileJSON:    "3.0.0",
		Scheme:      "xyz",
		Tiles:       []string{strings.TrimSuffix(baseURL, "/") + "/{z}/{x}/{y}" + h.TileType.Ext()},
		Name:        metaString(a.metadata, "name"),
		Description: metaString(a.metadata, "description"),
		Version:     metaString(a.metadata, "version"),
		Attribution: metaString(a.metadata, "attribution"),
		MinZoom:     h.MinZoom,
		MaxZoom:     h.MaxZoom,
		Bounds:      []float64{b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat()},
		Center:      []float64{c.Lon(), c.Lat(), float64(h.CenterZoom)},
	}
	if tj.Name == "" {
		tj.Name = a.name
	}
	if layers, ok := a.metadata["vector_layers"].([]any); ok {
		tj.VectorLayers = layers
	}
	return tj
}

func metaString(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
