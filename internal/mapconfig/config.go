// Package mapconfig normalizes community map configurations and decides which
// base map style a community renders with.
package mapconfig

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"
)

// Bounds is a [[west, south], [east, north]] viewport constraint.
type Bounds [2]orb.Point

// Bound returns the bounds as an orb.Bound.
func (b Bounds) Bound() orb.Bound {
	return orb.MultiPoint{b[0], b[1]}.Bound()
}

// MapConfig is the raw map configuration of a community. Every field is
// optional; nil means "use the default".
type MapConfig struct {
	UseLocalServer         *bool       `json:"useLocalServer,omitempty" yaml:"useLocalServer,omitempty" doc:"Serve basemap tiles from this server's PMTiles archive"`
	Mapbox3DEnabled        *bool       `json:"mapbox3dEnabled,omitempty" yaml:"mapbox3dEnabled,omitempty" doc:"Enable terrain and hillshade sources"`
	PMApiKey               *string     `json:"pmApiKey,omitempty" yaml:"pmApiKey,omitempty" doc:"Protomaps API key override"`
	PMBasemapStyle         *string     `json:"pmBasemapStyle,omitempty" yaml:"pmBasemapStyle,omitempty" doc:"Protomaps basemap theme" example:"contrast"`
	MapboxAccessToken      *string     `json:"mapboxAccessToken,omitempty" yaml:"mapboxAccessToken,omitempty" doc:"Account-level Mapbox access token"`
	MapboxStyle            *string     `json:"mapboxStyle,omitempty" yaml:"mapboxStyle,omitempty" doc:"Account-level Mapbox style locator"`
	MapboxStyleURL         *string     `json:"mapboxStyleUrl,omitempty" yaml:"mapboxStyleUrl,omitempty" doc:"Theme style locator" example:"mapbox://styles/example/community"`
	MapboxStyleAccessToken *string     `json:"mapboxStyleAccessToken,omitempty" yaml:"mapboxStyleAccessToken,omitempty" doc:"Access token for the theme style"`
	MapProjection          *string     `json:"mapProjection,omitempty" yaml:"mapProjection,omitempty" doc:"Map projection" example:"globe"`
	Center                 *orb.Point  `json:"center,omitempty" yaml:"center,omitempty" doc:"Initial center as [lng, lat]"`
	Zoom                   *float64    `json:"zoom,omitempty" yaml:"zoom,omitempty" doc:"Initial zoom"`
	Pitch                  *float64    `json:"pitch,omitempty" yaml:"pitch,omitempty" doc:"Initial pitch in degrees"`
	Bearing                *float64    `json:"bearing,omitempty" yaml:"bearing,omitempty" doc:"Initial bearing in degrees"`
	MaxBounds              *Bounds     `json:"maxBounds,omitempty" yaml:"maxBounds,omitempty" doc:"Viewport bounds as [[w, s], [e, n]]"`
}

// Normalized is a MapConfig with defaults applied. Blank credential, style
// and projection strings are stored as "" which means absent.
type Normalized struct {
	UseLocalServer         bool      `json:"useLocalServer"`
	Mapbox3DEnabled        bool      `json:"mapbox3dEnabled"`
	PMApiKey               string    `json:"pmApiKey"`
	PMBasemapStyle         string    `json:"pmBasemapStyle"`
	MapboxAccessToken      string    `json:"mapboxAccessToken,omitempty"`
	MapboxStyle            string    `json:"mapboxStyle,omitempty"`
	MapboxStyleURL         string    `json:"mapboxStyleUrl,omitempty"`
	MapboxStyleAccessToken string    `json:"mapboxStyleAccessToken,omitempty"`
	MapProjection          string    `json:"mapProjection,omitempty"`
	Center                 orb.Point `json:"center"`
	Zoom                   float64   `json:"zoom"`
	Pitch                  float64   `json:"pitch"`
	Bearing                float64   `json:"bearing"`
	MaxBounds              *Bounds   `json:"maxBounds,omitempty"`
}

// Defaults returns the configuration used for omitted fields.
func Defaults() Normalized {
	return Normalized{
		PMBasemapStyle: "contrast",
		Center:         orb.Point{0, 0},
		MapProjection:  "mercator",
	}
}

// Normalize merges raw over Defaults and sanitizes the optional strings.
func Normalize(raw *MapConfig) Normalized {
	n := Defaults()
	if raw == nil {
		return n
	}

	setBool(&n.UseLocalServer, raw.UseLocalServer)
	setBool(&n.Mapbox3DEnabled, raw.Mapbox3DEnabled)
	setString(&n.PMApiKey, raw.PMApiKey)
	setString(&n.PMBasemapStyle, raw.PMBasemapStyle)
	setString(&n.MapboxAccessToken, raw.MapboxAccessToken)
	setString(&n.MapboxStyle, raw.MapboxStyle)
	setString(&n.MapboxStyleURL, raw.MapboxStyleURL)
	setString(&n.MapboxStyleAccessToken, raw.MapboxStyleAccessToken)
	setString(&n.MapProjection, raw.MapProjection)
	if raw.Center != nil {
		n.Center = *raw.Center
	}
	setFloat(&n.Zoom, raw.Zoom)
	setFloat(&n.Pitch, raw.Pitch)
	setFloat(&n.Bearing, raw.Bearing)
	if raw.MaxBounds != nil {
		b := *raw.MaxBounds
		n.MaxBounds = &b
	}

	n.MapboxAccessToken = sanitize(n.MapboxAccessToken)
	n.MapboxStyle = sanitize(n.MapboxStyle)
	n.MapboxStyleURL = sanitize(n.MapboxStyleURL)
	n.MapboxStyleAccessToken = sanitize(n.MapboxStyleAccessToken)
	n.MapProjection = sanitize(n.MapProjection)
	return n
}

// sanitize trims s; a blank result means absent.
func sanitize(s string) string {
	return strings.TrimSpace(s)
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

// Validate checks the viewport parameters.
func (n Normalized) Validate() error {
	if err := validatePoint("center", n.Center); err != nil {
		return err
	}
	if n.Zoom < 0 || n.Zoom > 24 {
		return fmt.Errorf("zoom must be between 0 and 24: %g", n.Zoom)
	}
	if n.Pitch < 0 || n.Pitch > 85 {
		return fmt.Errorf("pitch must be between 0 and 85: %g", n.Pitch)
	}

	if n.MaxBounds == nil {
		return nil
	}
	sw, ne := n.MaxBounds[0], n.MaxBounds[1]
	if err := validatePoint("maxBounds south-west", sw); err != nil {
		return err
	}
	if err := validatePoint("maxBounds north-east", ne); err != nil {
		return err
	}
	if sw.Lat() >= ne.Lat() {
		return fmt.Errorf("maxBounds south (%g) must be below north (%g)", sw.Lat(), ne.Lat())
	}
	// West > east is allowed: the bounds cross the antimeridian.
	if sw.Lon() <= ne.Lon() && !n.MaxBounds.Bound().Contains(n.Center) {
		return fmt.Errorf("center %v lies outside maxBounds", n.Center)
	}
	return nil
}

func validatePoint(name string, p orb.Point) error {
	if p.Lon() < -180 || p.Lon() > 180 {
		return fmt.Errorf("%s longitude out of range: %g", name, p.Lon())
	}
	if p.Lat() < -90 || p.Lat() > 90 {
		return fmt.Errorf("%s latitude out of range: %g", name, p.Lat())
	}
	return nil
}
