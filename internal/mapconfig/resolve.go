package mapconfig

import (
	"encoding/json"
	"strings"

	"github.com/joeblew999/plat-story/internal/protomaps"
	"github.com/joeblew999/plat-story/internal/style"
)

// Resolved describes the chosen base map style. Exactly one of Locator and
// Document is set: a Mapbox locator still to be fetched, or a ready document.
type Resolved struct {
	Locator           string
	Document          style.Document
	AccessToken       string
	UsesExternalStyle bool
	IsMapboxStyle     bool
}

// Style returns the locator or the document, whichever is set.
func (r Resolved) Style() any {
	if r.Document != nil {
		return r.Document
	}
	return r.Locator
}

type resolvedJSON struct {
	Style             any    `json:"style"`
	AccessToken       string `json:"accessToken,omitempty"`
	UsesExternalStyle bool   `json:"usesExternalStyle"`
	IsMapboxStyle     bool   `json:"isMapboxStyle"`
}

// MarshalJSON encodes style as either a string or an object.
func (r Resolved) MarshalJSON() ([]byte, error) {
	return json.Marshal(resolvedJSON{
		Style:             r.Style(),
		AccessToken:       r.AccessToken,
		UsesExternalStyle: r.UsesExternalStyle,
		IsMapboxStyle:     r.IsMapboxStyle,
	})
}

// Resolve picks the style source for cfg. The theme style pair wins over the
// account-level pair; with neither complete the Protomaps fallback is built.
func Resolve(cfg Normalized, fallback protomaps.Builder) Resolved {
	switch {
	case cfg.MapboxStyleURL != "" && cfg.MapboxStyleAccessToken != "":
		return Resolved{
			Locator:           cfg.MapboxStyleURL,
			AccessToken:       cfg.MapboxStyleAccessToken,
			UsesExternalStyle: true,
			IsMapboxStyle:     true,
		}
	case cfg.MapboxAccessToken != "" && cfg.MapboxStyle != "":
		return Resolved{
			Locator:           cfg.MapboxStyle,
			AccessToken:       cfg.MapboxAccessToken,
			UsesExternalStyle: true,
			IsMapboxStyle:     true,
		}
	default:
		return Resolved{Document: FallbackStyle(cfg, fallback)}
	}
}

// FallbackStyle builds the self-hosted style for cfg. A community pmApiKey
// overrides the builder's key, and the local TileJSON is only used when the
// community asks for the local server.
func FallbackStyle(cfg Normalized, b protomaps.Builder) style.Document {
	if key := strings.TrimSpace(cfg.PMApiKey); key != "" {
		b.APIKey = key
	}
	if !cfg.UseLocalServer {
		b.LocalTileJSON = ""
	}
	return b.Build(cfg.PMBasemapStyle, cfg.Mapbox3DEnabled)
}
