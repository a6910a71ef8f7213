package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-story/internal/db"
	"github.com/joeblew999/plat-story/internal/mapconfig"
	"github.com/joeblew999/plat-story/internal/service"
	"github.com/joeblew999/plat-story/internal/style"
	"github.com/joeblew999/plat-story/internal/styleresource"
)

type MapConfigOutput struct {
	Body mapconfig.Normalized
}

type StyleInput struct {
	IDInput
	Wait bool `query:"wait" doc:"Block until the style is ready or the request is cancelled"`
}

type StyleOutput struct {
	Body StyleBody
}

type ResolveInput struct {
	Body mapconfig.MapConfig
}

// ResolveBody is the result of resolving an ad-hoc map configuration.
type ResolveBody struct {
	Config            mapconfig.Normalized `json:"config" doc:"Normalized configuration"`
	Style             any                  `json:"style" doc:"Style locator string or inline style document"`
	UsesExternalStyle bool                 `json:"usesExternalStyle" doc:"Whether the style comes from the commercial provider"`
	IsMapboxStyle     bool                 `json:"isMapboxStyle" doc:"Whether the style must be fetched and translated"`
}

type FallbackInput struct {
	Theme   string `query:"theme" doc:"Basemap theme; unknown themes fall back to light" example:"dark"`
	Terrain bool   `query:"terrain" doc:"Add terrain and hillshade sources"`
}

type FallbackOutput struct {
	Body style.Document
}

type ResolutionsInput struct {
	IDInput
	Limit int `query:"limit" minimum:"1" maximum:"500" default:"20" doc:"Maximum number of entries"`
}

type ResolutionsOutput struct {
	Body []db.Resolution
}

// RegisterStyles registers style resolution routes.
func (h *APIHandler) RegisterStyles(api huma.API) {
	huma.Get(api, "/api/v1/communities/{id}/map-config", h.GetMapConfig, huma.OperationTags("styles"))
	huma.Get(api, "/api/v1/communities/{id}/style", h.GetStyle, huma.OperationTags("styles"))
	huma.Post(api, "/api/v1/communities/{id}/style/refresh", h.RefreshStyle, huma.OperationTags("styles"),
		func(o *huma.Operation) { o.DefaultStatus = http.StatusAccepted })
	huma.Get(api, "/api/v1/communities/{id}/resolutions", h.GetResolutions, huma.OperationTags("styles"))
	huma.Post(api, "/api/v1/styles/resolve", h.ResolveStyle, huma.OperationTags("styles"))
	huma.Get(api, "/api/v1/styles/fallback", h.GetFallbackStyle, huma.OperationTags("styles"))
}

func (h *APIHandler) GetMapConfig(ctx context.Context, input *IDInput) (*MapConfigOutput, error) {
	if h.svc == nil || h.svc.Communities == nil {
		return nil, huma.Error503ServiceUnavailable("service not available")
	}
	c, ok := h.svc.Communities.Get(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("community not found")
	}
	return &MapConfigOutput{Body: c.Normalized()}, nil
}

func (h *APIHandler) GetStyle(ctx context.Context, input *StyleInput) (*StyleOutput, error) {
	if h.svc == nil || h.svc.Styles == nil {
		return nil, huma.Error503ServiceUnavailable("service not available")
	}

	var snap styleresource.Snapshot
	var err error
	if input.Wait {
		snap, err = h.svc.Styles.Wait(ctx, input.ID)
	} else {
		snap, err = h.svc.Styles.Snapshot(input.ID)
	}
	switch {
	case errors.Is(err, service.ErrNotFound):
		return nil, huma.Error404NotFound("community not found")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return nil, huma.Error504GatewayTimeout("style not ready")
	case err != nil:
		return nil, huma.Error500InternalServerError("failed to resolve style", err)
	}
	return &StyleOutput{Body: StyleBody{Snapshot: snap, communityID: input.ID}}, nil
}

func (h *APIHandler) RefreshStyle(ctx context.Context, input *IDInput) (*StyleOutput, error) {
	if h.svc == nil || h.svc.Styles == nil {
		return nil, huma.Error503ServiceUnavailable("service not available")
	}
	res, err := h.svc.Styles.Refresh(input.ID)
	if errors.Is(err, service.ErrNotFound) {
		return nil, huma.Error404NotFound("community not found")
	}
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to refresh style", err)
	}
	return &StyleOutput{Body: StyleBody{Snapshot: res.Snapshot(), communityID: input.ID}}, nil
}

func (h *APIHandler) GetResolutions(ctx context.Context, input *ResolutionsInput) (*ResolutionsOutput, error) {
	if h.svc == nil || h.svc.Recorder == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}
	list, err := h.svc.Recorder.Recent(ctx, input.ID, input.Limit)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to read resolutions", err)
	}
	return &ResolutionsOutput{Body: list}, nil
}

func (h *APIHandler) ResolveStyle(ctx context.Context, input *ResolveInput) (*struct{ Body ResolveBody }, error) {
	if h.svc == nil || h.svc.Styles == nil {
		return nil, huma.Error503ServiceUnavailable("service not available")
	}
	cfg := mapconfig.Normalize(&input.Body)
	if err := cfg.Validate(); err != nil {
		return nil, huma.Error422UnprocessableEntity(err.Error())
	}
	r := h.svc.Styles.Resolve(cfg)
	return &struct{ Body ResolveBody }{Body: ResolveBody{
		Config:            cfg,
		Style:             r.Style(),
		UsesExternalStyle: r.UsesExternalStyle,
		IsMapboxStyle:     r.IsMapboxStyle,
	}}, nil
}

func (h *APIHandler) GetFallbackStyle(ctx context.Context, input *FallbackInput) (*FallbackOutput, error) {
	if h.svc == nil || h.svc.Styles == nil {
		return nil, huma.Error503ServiceUnavailable("service not available")
	}
	cfg := mapconfig.Defaults()
	cfg.PMBasemapStyle = input.Theme
	cfg.Mapbox3DEnabled = input.Terrain
	return &FallbackOutput{Body: h.svc.Styles.Fallback(cfg)}, nil
}
