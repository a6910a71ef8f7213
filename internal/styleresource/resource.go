package styleresource

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/joeblew999/plat-story/internal/mapconfig"
	"github.com/joeblew999/plat-story/internal/protomaps"
	"github.com/joeblew999/plat-story/internal/style"
	"github.com/joeblew999/plat-story/internal/stylecache"
)

// ErrIncompleteCredentials marks a Mapbox style requested without a token
// or locator.
var ErrIncompleteCredentials = errors.New("incomplete mapbox credentials")

// StylePreparer fetches and rewrites an external style.
type StylePreparer interface {
	PrepareStyle(ctx context.Context, locator, token string) (style.Document, error)
}

// Deps are shared by every Resource of a process.
type Deps struct {
	Cache    *stylecache.Cache
	Preparer StylePreparer
	Fallback protomaps.Builder
	Logger   *zap.Logger
}

// Resource holds the current style state for one map view.
type Resource struct {
	deps  Deps
	label string

	mu       sync.Mutex
	state    State
	gen      uint64
	cancel   context.CancelFunc
	changed  chan struct{}
	onChange func(State)
}

// New creates an idle resource. label identifies it in logs.
func New(deps Deps, label string) *Resource {
	if deps.Cache == nil {
		deps.Cache = stylecache.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Resource{
		deps:    deps,
		label:   label,
		changed: make(chan struct{}),
	}
}

// OnChange registers fn to be called after every state transition. fn runs
// on the goroutine that made the transition and must not call back into r.
func (r *Resource) OnChange(fn func(State)) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

// State returns the current state.
func (r *Resource) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Snapshot returns the current consumer view.
func (r *Resource) Snapshot() Snapshot {
	return r.State().Snapshot()
}

// Update starts resolving resolved for cfg. Internal styles and credential
// fallbacks are applied before Update returns; external styles go Pending
// and complete in the background. A later Update supersedes this one: its
// fetch context is cancelled and its result is dropped.
func (r *Resource) Update(ctx context.Context, resolved mapconfig.Resolved, cfg mapconfig.Normalized) {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.gen++
	gen := r.gen
	r.mu.Unlock()

	log := r.deps.Logger.With(zap.String("resource", r.label))

	if !resolved.IsMapboxStyle {
		r.transition(gen, Internal(resolved.Document))
		return
	}

	if resolved.AccessToken == "" || resolved.Locator == "" {
		log.Warn("mapbox style requested without complete credentials, using fallback style",
			zap.Bool("has_token", resolved.AccessToken != ""),
			zap.Bool("has_locator", resolved.Locator != ""))
		r.transition(gen, Fallback(r.fallback(cfg), ErrIncompleteCredentials))
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	if r.gen != gen {
		// Superseded while unlocked.
		r.mu.Unlock()
		cancel()
		return
	}
	r.cancel = cancel
	r.mu.Unlock()

	r.transition(gen, Pending(resolved.Locator))

	key := stylecache.Key("mapbox", resolved.UsesExternalStyle, resolved.AccessToken, resolved.Locator)
	go func() {
		defer cancel()
		doc, err := r.deps.Cache.Get(runCtx, key, func(ctx context.Context) (style.Document, error) {
			return r.deps.Preparer.PrepareStyle(ctx, resolved.Locator, resolved.AccessToken)
		})
		if runCtx.Err() != nil {
			return
		}
		if err != nil {
			log.Error("failed to load mapbox style, using fallback style",
				zap.String("locator", resolved.Locator),
				zap.String("error_type", fmt.Sprintf("%T", err)),
				zap.Error(err))
			r.transition(gen, Fallback(r.fallback(cfg), err))
			return
		}
		r.transition(gen, External(doc.Clone()))
	}()
}

// Wait blocks until the resource is ready or ctx is done.
func (r *Resource) Wait(ctx context.Context) (State, error) {
	for {
		r.mu.Lock()
		state, changed := r.state, r.changed
		r.mu.Unlock()

		if state.Ready() {
			return state, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return state, ctx.Err()
		}
	}
}

// Close cancels any pending fetch.
func (r *Resource) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

func (r *Resource) fallback(cfg mapconfig.Normalized) style.Document {
	return mapconfig.FallbackStyle(cfg, r.deps.Fallback)
}

// transition applies s if gen is still the latest run.
func (r *Resource) transition(gen uint64, s State) {
	r.mu.Lock()
	if gen != r.gen {
		r.mu.Unlock()
		return
	}
	r.state = s
	close(r.changed)
	r.changed = make(chan struct{})
	fn := r.onChange
	r.mu.Unlock()

	if fn != nil {
		fn(s)
	}
}
