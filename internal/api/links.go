package api

import (
	"fmt"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// links maps operation paths to their RFC 8288 Link header values.
// Enables restish hypermedia navigation via `restish links <url>`.
var links = map[string][]string{
	"/health": {
		`</api/v1/info>; rel="info"`,
		`</api/v1/communities>; rel="communities"`,
		`</api/v1/tiles>; rel="tiles"`,
	},
	"/api/v1/info": {
		`</health>; rel="health"`,
		`</api/v1/communities>; rel="communities"`,
	},
	"/api/v1/communities": {
		`</api/v1/styles/fallback>; rel="fallback-style"`,
		`</api/v1/tiles>; rel="tiles"`,
	},
	"/api/v1/communities/{id}": {
		`</api/v1/communities>; rel="collection"`,
	},
	"/api/v1/tiles": {
		`</api/v1/communities>; rel="communities"`,
	},
	"/api/v1/tables": {
		`</api/v1/query>; rel="query"`,
	},
}

// communityLinks are added to every per-community operation.
var communityLinks = []struct{ suffix, rel string }{
	{"", "community"},
	{"/map-config", "map-config"},
	{"/style", "style"},
	{"/style/events", "style-events"},
	{"/resolutions", "resolutions"},
}

// LinkTransformer returns a Huma Transformer that injects RFC 8288 Link headers.
func LinkTransformer() huma.Transformer {
	return func(ctx huma.Context, status string, v any) (any, error) {
		op := ctx.Operation()
		if op == nil {
			return v, nil
		}

		for _, link := range links[op.Path] {
			ctx.AppendHeader("Link", link)
		}

		// Item endpoints get a self link
		if strings.Contains(op.Path, "{") {
			ctx.AppendHeader("Link", fmt.Sprintf(`<%s>; rel="self"`, ctx.URL().Path))
		}

		if strings.HasPrefix(op.Path, "/api/v1/communities/{id}") {
			base := "/api/v1/communities/" + ctx.Param("id")
			for _, l := range communityLinks {
				if op.Path == "/api/v1/communities/{id}"+l.suffix {
					continue
				}
				ctx.AppendHeader("Link", fmt.Sprintf(`<%s%s>; rel="%s"`, base, l.suffix, l.rel))
			}
		}

		if a, ok := v.(Actor); ok {
			for _, action := range a.Actions() {
				ctx.AppendHeader("Link", action.linkHeader())
			}
		}

		return v, nil
	}
}
