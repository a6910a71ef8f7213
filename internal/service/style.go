package service

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/joeblew999/plat-story/internal/mapbox"
	"github.com/joeblew999/plat-story/internal/mapconfig"
	"github.com/joeblew999/plat-story/internal/style"
	"github.com/joeblew999/plat-story/internal/stylecache"
	"github.com/joeblew999/plat-story/internal/styleresource"
)

// StyleObserver is told about every style state a community reaches.
type StyleObserver func(communityID string, state styleresource.State)

// StyleService keeps one style resource per community over a shared cache.
type StyleService struct {
	ctx         context.Context
	cancel      context.CancelFunc
	deps        styleresource.Deps
	communities *CommunityService
	bus         *EventBus
	log         *zap.Logger

	mu        sync.Mutex
	resources map[string]*styleEntry
	observers []StyleObserver
}

type styleEntry struct {
	res *styleresource.Resource
	key string
}

// NewStyleService creates a style service. Fetches run on a context derived
// from ctx so they outlive the request that triggered them; Close cancels it.
func NewStyleService(ctx context.Context, deps styleresource.Deps, communities *CommunityService, bus *EventBus) *StyleService {
	if deps.Cache == nil {
		deps.Cache = stylecache.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	return &StyleService{
		ctx:         ctx,
		cancel:      cancel,
		deps:        deps,
		communities: communities,
		bus:         bus,
		log:         deps.Logger.Named("styles"),
		resources:   make(map[string]*styleEntry),
	}
}

// Observe registers fn for every state transition of every community.
func (s *StyleService) Observe(fn StyleObserver) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

// Resolve resolves a normalized configuration with this service's fallback builder.
func (s *StyleService) Resolve(cfg mapconfig.Normalized) mapconfig.Resolved {
	return mapconfig.Resolve(cfg, s.deps.Fallback)
}

// Fallback builds the fallback style for cfg.
func (s *StyleService) Fallback(cfg mapconfig.Normalized) style.Document {
	return mapconfig.FallbackStyle(cfg, s.deps.Fallback)
}

// Sync brings the community's style resource in line with its current
// configuration. Resources whose resolution is unchanged are left alone.
func (s *StyleService) Sync(id string) (*styleresource.Resource, error) {
	c, ok := s.communities.Get(id)
	if !ok {
		s.Remove(id)
		return nil, fmt.Errorf("community %q: %w", id, ErrNotFound)
	}

	cfg := c.Normalized()
	resolved := s.Resolve(cfg)
	key := resolutionKey(cfg, resolved)

	s.mu.Lock()
	e, ok := s.resources[id]
	if ok && e.key == key {
		s.mu.Unlock()
		return e.res, nil
	}
	if !ok {
		e = &styleEntry{res: styleresource.New(s.deps, id)}
		e.res.OnChange(func(state styleresource.State) { s.changed(id, state) })
		s.resources[id] = e
	}
	e.key = key
	s.mu.Unlock()

	s.log.Debug("resolving community style",
		zap.String("community", id),
		zap.Bool("mapbox", resolved.IsMapboxStyle))
	e.res.Update(s.ctx, resolved, cfg)
	return e.res, nil
}

// Snapshot returns the community's current style snapshot.
func (s *StyleService) Snapshot(id string) (styleresource.Snapshot, error) {
	res, err := s.Sync(id)
	if err != nil {
		return styleresource.Snapshot{}, err
	}
	return res.Snapshot(), nil
}

// Wait blocks until the community's style is ready or ctx is done.
func (s *StyleService) Wait(ctx context.Context, id string) (styleresource.Snapshot, error) {
	res, err := s.Sync(id)
	if err != nil {
		return styleresource.Snapshot{}, err
	}
	state, err := res.Wait(ctx)
	return state.Snapshot(), err
}

// Remove drops the community's resource and cancels its fetch.
func (s *StyleService) Remove(id string) {
	s.mu.Lock()
	e, ok := s.resources[id]
	delete(s.resources, id)
	s.mu.Unlock()
	if ok {
		e.res.Close()
	}
}

// Refresh discards the community's cached style and resolves it again.
// Failed loads are never cached, so this is how a fallback gets retried.
func (s *StyleService) Refresh(id string) (*styleresource.Resource, error) {
	s.mu.Lock()
	e, ok := s.resources[id]
	s.mu.Unlock()
	if ok {
		s.deps.Cache.Forget(e.key)
	}
	s.Remove(id)
	return s.Sync(id)
}

// WarmResult reports one community handled by Warm.
type WarmResult struct {
	CommunityID string
	Locator     string
	Err         error
}

// Warm pre-fetches the external style of every community, at most limit at
// a time, then syncs each community so its resource picks up the cached
// document. onDone is called once per external style and may be nil.
func (s *StyleService) Warm(ctx context.Context, limit int, onDone func(WarmResult)) error {
	communities := s.communities.List()

	var reqs []stylecache.Request
	byKey := make(map[string][]string)
	locators := make(map[string]string)
	for _, c := range communities {
		resolved := s.Resolve(c.Normalized())
		if !resolved.IsMapboxStyle || resolved.AccessToken == "" || resolved.Locator == "" {
			continue
		}
		key := stylecache.Key("mapbox", resolved.UsesExternalStyle, resolved.AccessToken, resolved.Locator)
		if _, seen := byKey[key]; !seen {
			reqs = append(reqs, stylecache.Request{
				Key: key,
				Load: func(ctx context.Context) (style.Document, error) {
					return s.deps.Preparer.PrepareStyle(ctx, resolved.Locator, resolved.AccessToken)
				},
			})
			locators[key] = resolved.Locator
		}
		byKey[key] = append(byKey[key], c.ID)
	}

	err := s.deps.Cache.Warm(ctx, limit, reqs, func(req stylecache.Request, err error) {
		if err != nil {
			s.log.Warn("style warm-up failed",
				zap.String("locator", mapbox.RedactToken(locators[req.Key])),
				zap.Error(err))
		}
		if onDone == nil {
			return
		}
		for _, id := range byKey[req.Key] {
			onDone(WarmResult{CommunityID: id, Locator: locators[req.Key], Err: err})
		}
	})

	for _, c := range communities {
		if _, serr := s.Sync(c.ID); serr != nil {
			s.log.Warn("sync after warm-up failed", zap.String("community", c.ID), zap.Error(serr))
		}
	}
	return err
}

// Close cancels every pending fetch.
func (s *StyleService) Close() {
	s.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.resources {
		e.res.Close()
		delete(s.resources, id)
	}
}

// Cache returns the shared style cache.
func (s *StyleService) Cache() *stylecache.Cache {
	return s.deps.Cache
}

func (s *StyleService) changed(id string, state styleresource.State) {
	snap := state.Snapshot()
	if s.bus != nil {
		s.bus.Publish(Event{Resource: "styles", Action: "changed", ID: id, Snapshot: &snap})
	}

	s.mu.Lock()
	observers := append([]StyleObserver(nil), s.observers...)
	s.mu.Unlock()
	for _, fn := range observers {
		fn(id, state)
	}
}

// resolutionKey identifies everything that influences a community's style.
func resolutionKey(cfg mapconfig.Normalized, r mapconfig.Resolved) string {
	if r.IsMapboxStyle {
		return stylecache.Key("mapbox", r.UsesExternalStyle, r.AccessToken, r.Locator)
	}
	return fmt.Sprintf("internal|%s|%t|%t|%s", cfg.PMBasemapStyle, cfg.Mapbox3DEnabled, cfg.UseLocalServer, cfg.PMApiKey)
}
