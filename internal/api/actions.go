package api

import (
	"fmt"

	"github.com/joeblew999/plat-story/internal/styleresource"
)

// Action is a state-dependent follow-up advertised as an RFC 8288 Link
// header with method and title extension parameters:
//
//	</api/v1/communities/coast/style/refresh>; rel="refresh"; method="POST"; title="Retry external style"
type Action struct {
	Rel    string
	Href   string
	Method string
	Title  string
}

// Actor is implemented by response bodies whose actions depend on their state.
type Actor interface {
	Actions() []Action
}

func (a Action) linkHeader() string {
	h := fmt.Sprintf(`<%s>; rel="%s"`, a.Href, a.Rel)
	if a.Method != "" {
		h += fmt.Sprintf(`; method="%s"`, a.Method)
	}
	if a.Title != "" {
		h += fmt.Sprintf(`; title="%s"`, a.Title)
	}
	return h
}

// StyleBody is a community's style snapshot.
type StyleBody struct {
	styleresource.Snapshot
	communityID string
}

// Actions offers a blocking read while the style is pending and a refetch
// once a commercial style has settled.
func (b StyleBody) Actions() []Action {
	base := "/api/v1/communities/" + b.communityID + "/style"
	switch b.State {
	case styleresource.KindPending.String():
		return []Action{{Rel: "wait", Href: base + "?wait=true", Method: "GET", Title: "Wait for style"}}
	case styleresource.KindFallback.String():
		if b.Reason == "" || b.Reason == styleresource.ErrIncompleteCredentials.Error() {
			return nil
		}
		return []Action{{Rel: "refresh", Href: base + "/refresh", Method: "POST", Title: "Retry external style"}}
	case styleresource.KindExternal.String():
		return []Action{{Rel: "refresh", Href: base + "/refresh", Method: "POST", Title: "Refetch external style"}}
	}
	return nil
}
