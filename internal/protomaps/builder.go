// Package protomaps builds the self-hosted Protomaps basemap style used when
// no commercial style credentials are available.
package protomaps

import (
	"net/url"
	"strings"

	"github.com/joeblew999/plat-story/internal/style"
)

const (
	// DefaultTheme is used for blank or unknown theme names.
	DefaultTheme = "light"

	// SourceName is the vector source every basemap layer reads from.
	SourceName = "protomaps"

	// GlyphsURL is the public font asset endpoint for basemap labels.
	GlyphsURL = "https://protomaps.github.io/basemaps-assets/fonts/{fontstack}/{range}.pbf"

	// TerrainTilesURL serves Terrarium-encoded elevation tiles.
	TerrainTilesURL = "https://s3.amazonaws.com/elevation-tiles-prod/terrarium/{z}/{x}/{y}.png"

	// TerrainSource and HillshadeSource are the raster-dem sources added for 3D.
	TerrainSource   = "terrainSource"
	HillshadeSource = "hillshadeSource"

	// HillshadeLayer starts hidden; the client toggles it on demand.
	HillshadeLayer = "hills"

	tileJSONURL = "https://api.protomaps.com/tiles/v4.json"
	spriteBase  = "https://protomaps.github.io/basemaps-assets/sprites/v4/"
	attribution = `<a href="https://protomaps.com">Protomaps</a> © <a href="https://openstreetmap.org">OpenStreetMap</a>`
	labelFont   = "Noto Sans Regular"
)

// Builder produces Protomaps style documents.
type Builder struct {
	// APIKey authenticates against the hosted Protomaps tile API.
	APIKey string

	// LocalTileJSON, when set, replaces the hosted tile API with a TileJSON
	// endpoint served from a local PMTiles archive.
	LocalTileJSON string
}

// Build returns the style document for theme, with terrain sources and a
// hidden hillshade layer when enable3D is set.
func (b Builder) Build(theme string, enable3D bool) style.Document {
	doc, err := style.FromValue(b.Style(theme, enable3D))
	if err != nil {
		// Style only holds strings, numbers, slices and maps.
		panic("protomaps: encode style: " + err.Error())
	}
	return doc
}

// Style returns the typed style for theme.
func (b Builder) Style(theme string, enable3D bool) Style {
	t, ok := LookupTheme(strings.TrimSpace(theme))
	if !ok {
		t = themes[DefaultTheme]
	}

	s := Style{
		Version: 8,
		Name:    "Protomaps " + t.Name,
		Glyphs:  GlyphsURL,
		Sprite:  spriteBase + t.Sprite,
		Sources: map[string]Source{
			SourceName: {
				Type:        "vector",
				URL:         b.tileJSON(),
				Attribution: attribution,
			},
		},
		Layers: basemapLayers(SourceName, t),
	}

	if enable3D {
		s.Sources[TerrainSource] = demSource()
		s.Sources[HillshadeSource] = demSource()
		s.Layers = insertAfter(s.Layers, "earth", Layer{
			ID:     HillshadeLayer,
			Type:   "hillshade",
			Source: HillshadeSource,
			Layout: map[string]any{"visibility": "none"},
			Paint: map[string]any{
				"hillshade-shadow-color":    t.Shadow,
				"hillshade-highlight-color": t.Highlight,
				"hillshade-exaggeration":    0.5,
			},
		})
	}

	return s
}

func (b Builder) tileJSON() string {
	if b.LocalTileJSON != "" {
		return b.LocalTileJSON
	}
	return tileJSONURL + "?key=" + url.QueryEscape(b.APIKey)
}

func demSource() Source {
	return Source{
		Type:        "raster-dem",
		Tiles:       []string{TerrainTilesURL},
		Encoding:    "terrarium",
		TileSize:    256,
		MaxZoom:     15,
		Attribution: "Terrain: Mapzen, AWS Open Data",
	}
}

func insertAfter(layers []Layer, id string, layer Layer) []Layer {
	for i, l := range layers {
		if l.ID == id {
			out := make([]Layer, 0, len(layers)+1)
			out = append(out, layers[:i+1]...)
			out = append(out, layer)
			return append(out, layers[i+1:]...)
		}
	}
	return append(layers, layer)
}
