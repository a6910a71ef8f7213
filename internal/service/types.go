// Package service contains the community store and style orchestration for plat-story.
package service

import (
	"errors"

	"github.com/joeblew999/plat-story/internal/mapconfig"
)

// ErrNotFound is returned when a community does not exist.
var ErrNotFound = errors.New("not found")

// ErrExists is returned when creating a community whose ID is taken.
var ErrExists = errors.New("already exists")

// Community is a named map view with its own map configuration.
type Community struct {
	ID        string               `json:"id,omitempty" yaml:"id,omitempty" doc:"Unique community identifier" example:"river_valley"`
	Name      string               `json:"name" yaml:"name" required:"true" minLength:"1" maxLength:"100" doc:"Display name" example:"River Valley"`
	MapConfig *mapconfig.MapConfig `json:"mapConfig,omitempty" yaml:"mapConfig,omitempty" doc:"Raw map configuration; omitted fields use defaults"`
}

// Normalized returns the community's map configuration with defaults applied.
func (c Community) Normalized() mapconfig.Normalized {
	return mapconfig.Normalize(c.MapConfig)
}

// TileFile represents a PMTiles file.
type TileFile struct {
	Name string `json:"name" doc:"PMTiles file name" example:"basemap.pmtiles"`
	Size string `json:"size" doc:"Human-readable file size" example:"5.4 MB"`
}
