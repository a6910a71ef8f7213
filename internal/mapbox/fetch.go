package mapbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"golang.org/x/time/rate"

	"github.com/joeblew999/plat-story/internal/style"
)

// ErrInvalidDocument is returned when the style endpoint answers with a body
// that is not a JSON style object.
var ErrInvalidDocument = errors.New("invalid style document")

// FetchError is returned for a non-2xx response from the Styles API.
type FetchError struct {
	StatusCode int
	Status     string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch style: HTTP %d %s", e.StatusCode, e.Status)
}

// maxStyleBytes bounds the style body read into memory.
const maxStyleBytes = 16 << 20

// Fetcher downloads Mapbox styles and rewrites the references inside them.
type Fetcher struct {
	Client    *http.Client
	Limiter   *rate.Limiter // optional; nil means unlimited
	UserAgent string
}

// NewFetcher creates a fetcher. rps <= 0 disables rate limiting.
func NewFetcher(client *http.Client, rps float64) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	f := &Fetcher{
		Client:    client,
		UserAgent: "plat-story/1.0 (+map styles)",
	}
	if rps > 0 {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		f.Limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return f
}

// PrepareStyle fetches the style at locator with token and returns it with
// sprite, glyphs and Mapbox source URLs expanded and token-bearing.
// Failures are returned as is; the caller decides whether to fall back.
func (f *Fetcher) PrepareStyle(ctx context.Context, locator, token string) (style.Document, error) {
	styleURL := AppendAccessToken(NormalizeStyleURL(locator), token)

	body, err := f.get(ctx, styleURL)
	if err != nil {
		return nil, err
	}

	doc, err := style.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	RewriteDocument(doc, token)
	return doc, nil
}

// RewriteDocument expands the Mapbox references of doc in place.
func RewriteDocument(doc style.Document, token string) {
	if sprite, ok := doc.String("sprite"); ok {
		doc["sprite"] = AppendAccessToken(NormalizeSpriteURL(sprite), token)
	}
	if glyphs, ok := doc.String("glyphs"); ok {
		doc["glyphs"] = AppendAccessToken(NormalizeGlyphsURL(glyphs), token)
	}

	for _, v := range doc.Sources() {
		src, ok := v.(map[string]any)
		if !ok {
			continue
		}
		u, ok := src["url"].(string)
		if !ok {
			continue
		}
		switch {
		case IsMapboxURL(u):
			src["url"] = AppendAccessToken(NormalizeSourceURL(u), token)
		case IsAPIURL(u):
			src["url"] = AppendAccessToken(u, token)
		}
	}
}

func (f *Fetcher) get(ctx context.Context, u string) ([]byte, error) {
	if f.Limiter != nil {
		if err := f.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build style request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) {
			uerr.URL = RedactToken(uerr.URL)
		}
		return nil, fmt.Errorf("fetch style: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, &FetchError{
			StatusCode: resp.StatusCode,
			Status:     http.StatusText(resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStyleBytes))
	if err != nil {
		return nil, fmt.Errorf("read style body: %w", err)
	}
	return body, nil
}
