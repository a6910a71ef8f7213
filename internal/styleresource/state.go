// Package styleresource tracks the style a map view should render while a
// community's configuration is resolved, fetched, or falls back.
package styleresource

import (
	"github.com/joeblew999/plat-story/internal/style"
)

// Kind tags a State.
type Kind int

const (
	KindIdle Kind = iota
	KindInternal
	KindPending
	KindExternal
	KindFallback
)

func (k Kind) String() string {
	switch k {
	case KindInternal:
		return "internal"
	case KindPending:
		return "pending"
	case KindExternal:
		return "external"
	case KindFallback:
		return "fallback"
	default:
		return "idle"
	}
}

// State is the resource state. Values are only built by the constructors
// below, so a ready state always carries a document and a pending one never does.
type State struct {
	kind    Kind
	doc     style.Document
	locator string
	reason  error
}

// Internal is a self-hosted style known without any fetch.
func Internal(doc style.Document) State {
	return State{kind: KindInternal, doc: doc}
}

// Pending is an external style being fetched.
func Pending(locator string) State {
	return State{kind: KindPending, locator: locator}
}

// External is a fetched and rewritten external style.
func External(doc style.Document) State {
	return State{kind: KindExternal, doc: doc}
}

// Fallback is the self-hosted style used because the external one could
// not be used. reason is nil for incomplete credentials without an error.
func Fallback(doc style.Document, reason error) State {
	return State{kind: KindFallback, doc: doc, reason: reason}
}

// Kind returns the state tag.
func (s State) Kind() Kind { return s.kind }

// Document returns the style document, nil unless ready.
func (s State) Document() style.Document { return s.doc }

// Locator returns the locator of a pending state.
func (s State) Locator() string { return s.locator }

// Reason returns why a fallback happened.
func (s State) Reason() error { return s.reason }

// Ready reports whether a document is available.
func (s State) Ready() bool { return s.doc != nil }

// UsesExternalStyle is true while an external style is pending or loaded.
func (s State) UsesExternalStyle() bool {
	return s.kind == KindPending || s.kind == KindExternal
}

// Snapshot is the consumer-facing view of a State.
type Snapshot struct {
	Style             style.Document `json:"style" doc:"Style document, null until ready"`
	UsesExternalStyle bool           `json:"usesExternalStyle" doc:"Whether the style comes from the commercial provider"`
	IsReady           bool           `json:"isReady" doc:"Whether the map can be constructed"`
	State             string         `json:"state" enum:"idle,internal,pending,external,fallback" doc:"Resolution state"`
	Reason            string         `json:"reason,omitempty" doc:"Why the fallback style is used"`
}

// Snapshot converts s for publication.
func (s State) Snapshot() Snapshot {
	snap := Snapshot{
		Style:             s.doc,
		UsesExternalStyle: s.UsesExternalStyle(),
		IsReady:           s.Ready(),
		State:             s.kind.String(),
	}
	if s.reason != nil {
		snap.Reason = s.reason.Error()
	}
	return snap
}
