package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-story/internal/protomaps"
	"github.com/joeblew999/plat-story/internal/version"
)

// InfoHandler reports what this server instance is configured with.
type InfoHandler struct {
	dataDir    string
	dbOK       bool
	localTiles string
	svc        *Services
}

func NewInfoHandler(dataDir string, dbOK bool, localTiles string, svc *Services) *InfoHandler {
	return &InfoHandler{dataDir: dataDir, dbOK: dbOK, localTiles: localTiles, svc: svc}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name        string       `json:"name" doc:"Service name"`
	Build       version.Info `json:"build" doc:"Build information"`
	DataDir     string       `json:"data_dir" doc:"Data directory path"`
	DB          bool         `json:"db" doc:"Whether database is available"`
	LocalTiles  string       `json:"local_tiles,omitempty" doc:"PMTiles archive used for local basemap tiles"`
	Themes      []string     `json:"themes" doc:"Fallback basemap themes"`
	Communities int          `json:"communities" doc:"Number of communities"`
	CachedStyle int          `json:"cached_styles" doc:"External styles held in the style cache"`
	StyleLoads  int          `json:"style_loads" doc:"External style loads started since startup"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	body := InfoBody{
		Name:       "plat-story",
		Build:      version.Get(),
		DataDir:    h.dataDir,
		DB:         h.dbOK,
		LocalTiles: h.localTiles,
		Themes:     protomaps.ThemeNames(),
	}
	if h.svc != nil && h.svc.Communities != nil {
		body.Communities = len(h.svc.Communities.List())
	}
	if h.svc != nil && h.svc.Styles != nil {
		body.CachedStyle = h.svc.Styles.Cache().Len()
		body.StyleLoads = h.svc.Styles.Cache().Loads()
	}
	return &struct{ Body InfoBody }{Body: body}, nil
}
