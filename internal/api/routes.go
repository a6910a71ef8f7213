// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"go.uber.org/zap"

	"github.com/joeblew999/plat-story/internal/db"
	"github.com/joeblew999/plat-story/internal/service"
	"github.com/joeblew999/plat-story/internal/version"
)

// Services holds the service dependencies for API handlers.
type Services struct {
	Communities *service.CommunityService
	Styles      *service.StyleService
	Tiles       *service.TileService
	Bus         *service.EventBus
	Recorder    *db.Recorder
	Log         *zap.Logger // optional; nil discards
}

func (s *Services) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

// Types

type IDInput struct {
	ID string `path:"id" doc:"Community ID" example:"river_valley"`
}

type CommunityOutput struct {
	Body service.Community
}

type CommunitiesOutput struct {
	Body []service.Community
}

type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

type CreatedCommunityBody struct {
	ID        string            `json:"id" doc:"Generated community ID"`
	Community service.Community `json:"community" doc:"Created community"`
	Message   string            `json:"message" doc:"Result message"`
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterRoutes registers every Register* group of the handler.
func RegisterRoutes(api huma.API, svc *Services) {
	huma.AutoRegister(api, NewAPIHandler(svc))
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterCommunities registers community CRUD routes.
func (h *APIHandler) RegisterCommunities(api huma.API) {
	huma.Get(api, "/api/v1/communities", h.GetCommunities, huma.OperationTags("communities"))
	huma.Post(api, "/api/v1/communities", h.CreateCommunity, huma.OperationTags("communities"))
	huma.Get(api, "/api/v1/communities/{id}", h.GetCommunity, huma.OperationTags("communities"))
	huma.Put(api, "/api/v1/communities/{id}", h.PutCommunity, huma.OperationTags("communities"))
	huma.Delete(api, "/api/v1/communities/{id}", h.DeleteCommunity, huma.OperationTags("communities"))
}

// RegisterTiles registers tile listing routes.
func (h *APIHandler) RegisterTiles(api huma.API) {
	huma.Get(api, "/api/v1/tiles", h.GetTiles, huma.OperationTags("tiles"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: version.Version}}, nil
}

func (h *APIHandler) GetCommunities(ctx context.Context, input *struct{}) (*CommunitiesOutput, error) {
	if h.svc == nil || h.svc.Communities == nil {
		return &CommunitiesOutput{Body: []service.Community{}}, nil
	}
	return &CommunitiesOutput{Body: h.svc.Communities.List()}, nil
}

func (h *APIHandler) CreateCommunity(ctx context.Context, input *struct{ Body service.Community }) (*struct{ Body CreatedCommunityBody }, error) {
	if h.svc == nil || h.svc.Communities == nil {
		return nil, huma.Error503ServiceUnavailable("service not available")
	}
	created, err := h.svc.Communities.Create(input.Body)
	if err != nil {
		if errors.Is(err, service.ErrExists) {
			return nil, huma.Error409Conflict(err.Error())
		}
		return nil, huma.Error400BadRequest(err.Error())
	}
	h.syncStyle(created.ID)
	return &struct{ Body CreatedCommunityBody }{Body: CreatedCommunityBody{
		ID: created.ID, Community: created, Message: "Community created",
	}}, nil
}

func (h *APIHandler) GetCommunity(ctx context.Context, input *IDInput) (*CommunityOutput, error) {
	if h.svc == nil || h.svc.Communities == nil {
		return nil, huma.Error503ServiceUnavailable("service not available")
	}
	c, ok := h.svc.Communities.Get(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("community not found")
	}
	return &CommunityOutput{Body: c}, nil
}

func (h *APIHandler) PutCommunity(ctx context.Context, input *struct {
	IDInput
	Body service.Community
}) (*CommunityOutput, error) {
	if h.svc == nil || h.svc.Communities == nil {
		return nil, huma.Error503ServiceUnavailable("service not available")
	}
	updated, err := h.svc.Communities.Update(input.ID, input.Body)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return nil, huma.Error404NotFound(err.Error())
		}
		return nil, huma.Error400BadRequest(err.Error())
	}
	h.syncStyle(updated.ID)
	return &CommunityOutput{Body: updated}, nil
}

func (h *APIHandler) DeleteCommunity(ctx context.Context, input *IDInput) (*struct{ Body MessageBody }, error) {
	if h.svc == nil || h.svc.Communities == nil {
		return nil, huma.Error503ServiceUnavailable("service not available")
	}
	if err := h.svc.Communities.Delete(input.ID); err != nil {
		return nil, huma.Error404NotFound(err.Error())
	}
	if h.svc.Styles != nil {
		h.svc.Styles.Remove(input.ID)
	}
	return &struct{ Body MessageBody }{Body: MessageBody{Message: "Community deleted"}}, nil
}

func (h *APIHandler) GetTiles(ctx context.Context, input *struct{}) (*struct{ Body []service.TileFile }, error) {
	if h.svc == nil || h.svc.Tiles == nil {
		return &struct{ Body []service.TileFile }{Body: []service.TileFile{}}, nil
	}
	tiles, err := h.svc.Tiles.List()
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list tiles", err)
	}
	return &struct{ Body []service.TileFile }{Body: tiles}, nil
}

// syncStyle starts resolving a community's style so the first style
// request finds it in progress.
func (h *APIHandler) syncStyle(id string) {
	if h.svc.Styles == nil {
		return
	}
	if _, err := h.svc.Styles.Sync(id); err != nil {
		h.svc.logger().Warn("starting style resolution failed",
			zap.String("community", id), zap.Error(err))
	}
}
