package protomaps

// Style is a MapLibre style document.
// For reference see: https://maplibre.org/maplibre-style-spec/root/
type Style struct {
	Version int               `json:"version"` // must be 8
	Name    string            `json:"name"`
	Glyphs  string            `json:"glyphs"`
	Sprite  string            `json:"sprite,omitempty"`
	Sources map[string]Source `json:"sources"`
	Layers  []Layer           `json:"layers"`
}

// Source for reference see: https://maplibre.org/maplibre-style-spec/sources/
type Source struct {
	Type        string   `json:"type"`
	URL         string   `json:"url,omitempty"`
	Tiles       []string `json:"tiles,omitempty"`
	TileSize    int      `json:"tileSize,omitempty"`
	Encoding    string   `json:"encoding,omitempty"`
	MaxZoom     int      `json:"maxzoom,omitempty"`
	Attribution string   `json:"attribution,omitempty"`
}

// Layer for reference see: https://maplibre.org/maplibre-style-spec/layers/
type Layer struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Source      string         `json:"source,omitempty"`
	SourceLayer string         `json:"source-layer,omitempty"`
	MinZoom     float64        `json:"minzoom,omitempty"`
	Filter      []any          `json:"filter,omitempty"`
	Layout      map[string]any `json:"layout,omitempty"`
	Paint       map[string]any `json:"paint,omitempty"`
}

func kindIn(kinds ...string) []any {
	values := make([]any, len(kinds))
	for i, k := range kinds {
		values[i] = k
	}
	return []any{"in", []any{"get", "kind"}, []any{"literal", values}}
}

func zoomWidth(stops ...float64) []any {
	expr := []any{"interpolate", []any{"exponential", 1.6}, []any{"zoom"}}
	for _, s := range stops {
		expr = append(expr, s)
	}
	return expr
}

// basemapLayers is the themed layer set over the Protomaps v4 tile schema.
func basemapLayers(source string, t Theme) []Layer {
	fill := func(id, layer, color string, filter []any) Layer {
		return Layer{
			ID: id, Type: "fill", Source: source, SourceLayer: layer, Filter: filter,
			Paint: map[string]any{"fill-color": color},
		}
	}
	line := func(id, color string, filter []any, width []any) Layer {
		return Layer{
			ID: id, Type: "line", Source: source, SourceLayer: "roads", Filter: filter,
			Paint: map[string]any{"line-color": color, "line-width": width},
		}
	}

	buildings := fill("buildings", "buildings", t.Buildings, nil)
	buildings.MinZoom = 13
	buildings.Paint["fill-opacity"] = 0.5

	return []Layer{
		{ID: "background", Type: "background", Paint: map[string]any{"background-color": t.Background}},
		fill("earth", "earth", t.Earth, nil),
		fill("landuse_park", "landuse", t.Park, kindIn("park", "national_park", "nature_reserve", "garden")),
		fill("landuse_wood", "landuse", t.Wood, kindIn("wood", "forest")),
		fill("water", "water", t.Water, nil),
		{
			ID: "boundaries", Type: "line", Source: source, SourceLayer: "boundaries",
			Paint: map[string]any{
				"line-color":     t.Boundaries,
				"line-width":     1,
				"line-dasharray": []any{3, 2},
			},
		},
		line("roads_minor", t.Minor, kindIn("minor_road"), zoomWidth(11, 0, 16, 4)),
		line("roads_major", t.Major, kindIn("major_road"), zoomWidth(7, 0, 7.5, 0.5, 18, 13)),
		line("roads_highway", t.Highway, kindIn("highway"), zoomWidth(3, 0, 6, 1.1, 12, 1.6, 15, 5, 18, 15)),
		buildings,
		{
			ID: "places_locality", Type: "symbol", Source: source, SourceLayer: "places",
			Filter: kindIn("locality"),
			Layout: map[string]any{
				"text-field": []any{"get", "name"},
				"text-font":  []any{labelFont},
				"text-size":  12,
			},
			Paint: map[string]any{"text-color": t.Labels, "text-halo-color": t.Halo, "text-halo-width": 1},
		},
		{
			ID: "places_region", Type: "symbol", Source: source, SourceLayer: "places",
			Filter: kindIn("region", "country"),
			Layout: map[string]any{
				"text-field":     []any{"get", "name"},
				"text-font":      []any{labelFont},
				"text-size":      14,
				"text-transform": "uppercase",
			},
			Paint: map[string]any{"text-color": t.Labels, "text-halo-color": t.Halo, "text-halo-width": 1.5},
		},
	}
}
