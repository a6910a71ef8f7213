package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joeblew999/plat-story/internal/pmtiles"
	"github.com/joeblew999/plat-story/internal/service"
)

// writeArchive writes a single-tile archive holding z0 tile bytes.
func writeArchive(t *testing.T, dir, name string, tile []byte) {
	t.Helper()
	root, err := pmtiles.EncodeDirectory([]pmtiles.Entry{{TileID: 0, Length: uint32(len(tile)), RunLength: 1}}, pmtiles.NoCompression)
	if err != nil {
		t.Fatal(err)
	}
	meta := []byte(`{"name":"Local basemap"}`)
	h := pmtiles.Header{
		RootOffset:          pmtiles.HeaderLen,
		RootLength:          uint64(len(root)),
		InternalCompression: pmtiles.NoCompression,
		TileCompression:     pmtiles.Gzip,
		TileType:            pmtiles.Mvt,
		MaxZoom:             0,
	}
	h.MetadataOffset = h.RootOffset + h.RootLength
	h.MetadataLength = uint64(len(meta))
	h.TileDataOffset = h.MetadataOffset + h.MetadataLength
	h.TileDataLength = uint64(len(tile))
	hb, _ := h.MarshalBinary()

	var buf bytes.Buffer
	buf.Write(hb)
	buf.Write(root)
	buf.Write(meta)
	buf.Write(tile)

	tiles := filepath.Join(dir, "tiles")
	if err := os.MkdirAll(tiles, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tiles, name+".pmtiles"), buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	writeArchive(t, dir, "basemap", []byte("tile-bytes"))
	srv := New(Config{
		Host:       "0.0.0.0",
		Port:       "8090",
		DataDir:    dir,
		PublicURL:  "https://maps.example.org/",
		LocalTiles: "basemap",
		NoDB:       true,
	}, nil)
	t.Cleanup(func() { srv.Close() })
	return srv, dir
}

func do(srv http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestHealthThroughRouter(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(srv, http.MethodGet, "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Header().Get("Link") == "" {
		t.Fatal("missing Link header")
	}
}

func TestTileJSON(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(srv, http.MethodGet, "/tiles/basemap.json")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("missing CORS header")
	}
	var tj pmtiles.TileJSON
	if err := json.Unmarshal(w.Body.Bytes(), &tj); err != nil {
		t.Fatal(err)
	}
	if tj.Name != "Local basemap" || tj.Tiles[0] != "https://maps.example.org/tiles/basemap/{z}/{x}/{y}.mvt" {
		t.Fatalf("tilejson = %+v", tj)
	}

	if w := do(srv, http.MethodGet, "/tiles/missing.json"); w.Code != http.StatusNotFound {
		t.Fatalf("missing archive status = %d", w.Code)
	}
}

func TestTile(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(srv, http.MethodGet, "/tiles/basemap/0/0/0.mvt")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Body.String() != "tile-bytes" {
		t.Fatalf("body = %q", w.Body.String())
	}
	if w.Header().Get("Content-Encoding") != "gzip" || w.Header().Get("Content-Type") != "application/x-protobuf" {
		t.Fatalf("headers = %v", w.Header())
	}

	tests := []struct {
		path string
		want int
	}{
		{"/tiles/basemap/1/0/0", http.StatusNoContent},
		{"/tiles/basemap/0/1/0", http.StatusBadRequest},
		{"/tiles/basemap/z/0/0", http.StatusBadRequest},
		{"/tiles/nope/0/0/0", http.StatusNotFound},
	}
	for _, tt := range tests {
		if w := do(srv, http.MethodGet, tt.path); w.Code != tt.want {
			t.Errorf("GET %s = %d, want %d", tt.path, w.Code, tt.want)
		}
	}
}

func TestTilesStaticAndPreflight(t *testing.T) {
	srv, _ := newTestServer(t)

	preflight := httptest.NewRequest(http.MethodOptions, "/tiles/basemap.pmtiles", nil)
	preflight.Header.Set("Origin", "https://viewer.example.org")
	preflight.Header.Set("Access-Control-Request-Method", http.MethodGet)
	preflight.Header.Set("Access-Control-Request-Headers", "range")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, preflight)
	if w.Code != http.StatusOK {
		t.Fatalf("preflight status = %d", w.Code)
	}
	for header, want := range map[string]string{
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Methods": "GET",
		"Access-Control-Allow-Headers": "Range",
	} {
		if got := w.Header().Get(header); !strings.EqualFold(got, want) {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/tiles/basemap.pmtiles", nil)
	req.Header.Set("Origin", "https://viewer.example.org")
	req.Header.Set("Range", "bytes=0-6")
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusPartialContent || w.Body.String() != "PMTiles" {
		t.Fatalf("range = %d %q", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
	if got := w.Header().Get("Access-Control-Expose-Headers"); !strings.Contains(got, "Content-Range") {
		t.Errorf("Access-Control-Expose-Headers = %q", got)
	}
}

func TestLocalServerFallbackUsesPublicURL(t *testing.T) {
	srv, _ := newTestServer(t)
	styles := srv.Services().Styles

	c, err := srv.Services().Communities.Create(service.Community{Name: "Local"})
	if err != nil {
		t.Fatal(err)
	}
	cfg := c.Normalized()
	cfg.UseLocalServer = true

	doc := styles.Fallback(cfg)
	src, _ := doc.Sources()["protomaps"].(map[string]any)
	if src["url"] != "https://maps.example.org/tiles/basemap.json" {
		t.Fatalf("source url = %v", src["url"])
	}

	src, _ = styles.Fallback(c.Normalized()).Sources()["protomaps"].(map[string]any)
	if src["url"] == "https://maps.example.org/tiles/basemap.json" {
		t.Fatal("hosted community uses local tiles")
	}
}

func TestOpenAPIDocumentsRoutes(t *testing.T) {
	srv, _ := newTestServer(t)
	paths := srv.OpenAPI().Paths
	for _, p := range []string{
		"/api/v1/communities/{id}/style",
		"/api/v1/communities/{id}/style/events",
		"/api/v1/communities/{id}/style/refresh",
		"/api/v1/styles/resolve",
		"/api/v1/query",
	} {
		if _, ok := paths[p]; !ok {
			t.Errorf("OpenAPI missing %s", p)
		}
	}
}
