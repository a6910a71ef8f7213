package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/joeblew999/plat-story/internal/styleresource"
)

// RegisterEvents registers the style event stream.
func (h *APIHandler) RegisterEvents(api huma.API) {
	huma.Get(api, "/api/v1/communities/{id}/style/events", h.StyleEvents,
		huma.OperationTags("styles"),
	)
}

// StyleEvents streams the community's style snapshots as Datastar signal
// patches: the current snapshot first, then every transition.
func (h *APIHandler) StyleEvents(ctx context.Context, input *IDInput) (*huma.StreamResponse, error) {
	if h.svc == nil || h.svc.Styles == nil || h.svc.Bus == nil {
		return nil, huma.Error503ServiceUnavailable("service not available")
	}
	// Subscribe before reading the snapshot so no transition is missed.
	ch := h.svc.Bus.Subscribe()
	snap, err := h.svc.Styles.Snapshot(input.ID)
	if err != nil {
		h.svc.Bus.Unsubscribe(ch)
		return nil, huma.Error404NotFound("community not found")
	}

	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			defer h.svc.Bus.Unsubscribe(ch)
			r, w := humago.Unwrap(humaCtx)
			sse := datastar.NewSSE(w, r)

			if err := sse.MarshalAndPatchSignals(styleSignals(snap)); err != nil {
				return
			}
			for {
				select {
				case <-ctx.Done():
					return
				case ev := <-ch:
					if ev.ID != input.ID {
						continue
					}
					switch {
					case ev.Resource == "communities" && ev.Action == "deleted":
						sse.MarshalAndPatchSignals(map[string]any{"styleState": "deleted"})
						return
					case ev.Resource == "styles" && ev.Snapshot != nil:
						if err := sse.MarshalAndPatchSignals(styleSignals(*ev.Snapshot)); err != nil {
							return
						}
					}
				}
			}
		},
	}, nil
}

func styleSignals(s styleresource.Snapshot) map[string]any {
	return map[string]any{
		"styleState":        s.State,
		"styleReady":        s.IsReady,
		"usesExternalStyle": s.UsesExternalStyle,
		"styleReason":       s.Reason,
		"style":             s.Style,
	}
}
