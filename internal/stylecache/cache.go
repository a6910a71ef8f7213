// Package stylecache memoizes prepared style documents by configuration key.
//
// Concurrent requests for the same key share one load. Successful loads are
// kept for the lifetime of the Cache; failed or abandoned loads are evicted
// so the next request retries.
package stylecache

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/joeblew999/plat-story/internal/style"
)

// Loader produces the document for a key.
type Loader func(ctx context.Context) (style.Document, error)

// Key builds a cache key from the style kind, the external/internal tag,
// the access token and the style locator.
func Key(kind string, external bool, token, locator string) string {
	tag := "internal"
	if external {
		tag = "external"
	}
	return strings.Join([]string{kind, tag, token, locator}, "|")
}

type entry struct {
	done    chan struct{}
	doc     style.Document
	err     error
	waiters int
	cancel  context.CancelFunc
}

// Cache is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	loads   int
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[string]*entry)}
}

// Get returns the document for key, calling load at most once per key while
// a load is in flight or after it has succeeded. The load runs detached from
// ctx and is cancelled only when every waiting caller has given up.
// The returned document is shared; callers must not mutate it.
func (c *Cache) Get(ctx context.Context, key string, load Loader) (style.Document, error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		e = c.start(ctx, key, load)
	}
	e.waiters++
	c.mu.Unlock()

	select {
	case <-e.done:
		c.mu.Lock()
		e.waiters--
		c.mu.Unlock()
		return e.doc, e.err
	case <-ctx.Done():
		c.abandon(key, e)
		return nil, ctx.Err()
	}
}

// start must be called with c.mu held.
func (c *Cache) start(ctx context.Context, key string, load Loader) *entry {
	loadCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e := &entry{done: make(chan struct{}), cancel: cancel}
	c.entries[key] = e
	c.loads++

	go func() {
		defer cancel()
		doc, err := load(loadCtx)

		c.mu.Lock()
		e.doc, e.err = doc, err
		if err != nil && c.entries[key] == e {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		close(e.done)
	}()
	return e
}

func (c *Cache) abandon(key string, e *entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e.waiters--
	if e.waiters > 0 {
		return
	}
	select {
	case <-e.done:
		return
	default:
	}
	// Nobody is waiting: stop the load and let the next caller start over.
	if c.entries[key] == e {
		delete(c.entries, key)
	}
	e.cancel()
}

// Forget drops key so the next Get reloads it.
func (c *Cache) Forget(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len returns the number of pending or memoized keys.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Loads returns how many loads the cache has started.
func (c *Cache) Loads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loads
}

// Request is one key to warm.
type Request struct {
	Key  string
	Load Loader
}

// Warm loads every request with at most limit loads in flight. It returns
// the first error after all requests have finished; failed keys stay evicted.
func (c *Cache) Warm(ctx context.Context, limit int, reqs []Request, onDone func(Request, error)) error {
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	var mu sync.Mutex
	for _, r := range reqs {
		g.Go(func() error {
			_, err := c.Get(ctx, r.Key, r.Load)
			if onDone != nil {
				mu.Lock()
				onDone(r, err)
				mu.Unlock()
			}
			return err
		})
	}
	return g.Wait()
}
