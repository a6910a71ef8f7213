package mapbox

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// rewriteTransport sends every request to the test server while recording
// the URL the fetcher asked for.
type rewriteTransport struct {
	target    string
	requested []string
}

func (rt *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rt.requested = append(rt.requested, req.URL.String())
	out := req.Clone(req.Context())
	out.URL.Scheme = "http"
	out.URL.Host = strings.TrimPrefix(rt.target, "http://")
	return http.DefaultTransport.RoundTrip(out)
}

func newTestFetcher(t *testing.T, handler http.HandlerFunc) (*Fetcher, *rewriteTransport) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	rt := &rewriteTransport{target: srv.URL}
	return NewFetcher(&http.Client{Transport: rt}, 0), rt
}

const demoStyle = `{
  "version": 8,
  "name": "Demo",
  "sprite": "mapbox://sprites/demo/style",
  "glyphs": "mapbox://fonts/demo/{fontstack}/{range}.pbf",
  "sources": {
    "composite": {"type": "vector", "url": "mapbox://mapbox.mapbox-streets-v8"},
    "api": {"type": "vector", "url": "https://api.mapbox.com/v4/mapbox.satellite.json?secure=true"},
    "geojson": {"type": "geojson", "data": {"type": "FeatureCollection", "features": []}},
    "other": {"type": "vector", "url": "https://tiles.example.com/tiles.json"}
  },
  "layers": [{"id": "background", "type": "background"}]
}`

func TestPrepareStyle(t *testing.T) {
	f, rt := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(demoStyle))
	})

	doc, err := f.PrepareStyle(context.Background(), "mapbox://styles/demo/style", "pk.test-token")
	if err != nil {
		t.Fatalf("PrepareStyle() failed: %v", err)
	}

	if len(rt.requested) != 1 {
		t.Fatalf("requests = %d, want 1", len(rt.requested))
	}
	if want := "https://api.mapbox.com/styles/v1/demo/style?access_token=pk.test-token"; rt.requested[0] != want {
		t.Errorf("request URL = %q, want %q", rt.requested[0], want)
	}

	if got, want := doc["sprite"], "https://api.mapbox.com/styles/v1/demo/style/sprite?access_token=pk.test-token"; got != want {
		t.Errorf("sprite = %q, want %q", got, want)
	}
	if got, want := doc["glyphs"], "https://api.mapbox.com/fonts/v1/demo/{fontstack}/{range}.pbf?access_token=pk.test-token"; got != want {
		t.Errorf("glyphs = %q, want %q", got, want)
	}

	sources := doc.Sources()
	sourceURL := func(name string) any {
		return sources[name].(map[string]any)["url"]
	}
	if got, want := sourceURL("composite"), "https://api.mapbox.com/v4/mapbox.mapbox-streets-v8.json?secure=true&access_token=pk.test-token"; got != want {
		t.Errorf("composite url = %q, want %q", got, want)
	}
	if got, want := sourceURL("api"), "https://api.mapbox.com/v4/mapbox.satellite.json?secure=true&access_token=pk.test-token"; got != want {
		t.Errorf("api url = %q, want %q", got, want)
	}
	if got, want := sourceURL("other"), "https://tiles.example.com/tiles.json"; got != want {
		t.Errorf("other url = %q, want %q", got, want)
	}
	if _, ok := sources["geojson"].(map[string]any)["url"]; ok {
		t.Error("geojson source gained a url")
	}

	if doc["name"] != "Demo" {
		t.Errorf("name = %v, want Demo", doc["name"])
	}
	if len(doc.Layers()) != 1 {
		t.Errorf("layers = %d, want 1", len(doc.Layers()))
	}
}

func TestPrepareStyleHTTPError(t *testing.T) {
	f, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	})

	_, err := f.PrepareStyle(context.Background(), "mapbox://styles/demo/style", "pk.bad")
	if err == nil {
		t.Fatal("PrepareStyle() should fail on 401")
	}

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("error = %T, want *FetchError", err)
	}
	if fetchErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want %d", fetchErr.StatusCode, http.StatusUnauthorized)
	}
	if fetchErr.Status != "Unauthorized" {
		t.Errorf("Status = %q, want %q", fetchErr.Status, "Unauthorized")
	}
}

func TestPrepareStyleInvalidJSON(t *testing.T) {
	f, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	})

	_, err := f.PrepareStyle(context.Background(), "mapbox://styles/demo/style", "pk.test")
	if !errors.Is(err, ErrInvalidDocument) {
		t.Fatalf("error = %v, want ErrInvalidDocument", err)
	}
}

func TestPrepareStyleNetworkErrorRedactsToken(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	f := NewFetcher(&http.Client{Transport: &rewriteTransport{target: addr}}, 0)
	_, err := f.PrepareStyle(context.Background(), "mapbox://styles/demo/style", "pk.secret")
	if err == nil {
		t.Fatal("PrepareStyle() should fail when the server is down")
	}
	if strings.Contains(err.Error(), "pk.secret") {
		t.Errorf("error leaks token: %v", err)
	}
}

func TestPrepareStyleCancelledContext(t *testing.T) {
	f, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(demoStyle))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.PrepareStyle(ctx, "mapbox://styles/demo/style", "pk.test"); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}
