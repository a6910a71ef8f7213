package api

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/danielgtaylor/huma/v2/humatest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/joeblew999/plat-story/internal/db"
	"github.com/joeblew999/plat-story/internal/protomaps"
	"github.com/joeblew999/plat-story/internal/service"
	"github.com/joeblew999/plat-story/internal/style"
	"github.com/joeblew999/plat-story/internal/styleresource"
)

type stubPreparer struct{}

func (stubPreparer) PrepareStyle(ctx context.Context, locator, token string) (style.Document, error) {
	return style.Document{"version": 8, "name": "remote " + locator}, nil
}

func newTestAPI(t *testing.T) (humatest.TestAPI, *http.ServeMux, *Services) {
	t.Helper()

	bus := service.NewEventBus()
	communities := service.NewCommunityService(t.TempDir(), bus)
	styles := service.NewStyleService(context.Background(), styleresource.Deps{
		Preparer: stubPreparer{},
		Fallback: protomaps.Builder{APIKey: "pm-key"},
	}, communities, bus)
	t.Cleanup(styles.Close)

	svc := &Services{
		Communities: communities,
		Styles:      styles,
		Tiles:       service.NewTileService(t.TempDir()),
		Bus:         bus,
	}

	mux := http.NewServeMux()
	config := huma.DefaultConfig("Test API", "1.0.0")
	config.Transformers = append(config.Transformers, LinkTransformer())
	hapi := humago.New(mux, config)
	RegisterRoutes(hapi, svc)
	NewInfoHandler("/data", false, "", svc).RegisterRoutes(hapi)
	return humatest.Wrap(t, hapi), mux, svc
}

func decode[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(resp.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", resp.Body.String(), err)
	}
	return v
}

func TestHealthLinks(t *testing.T) {
	api, _, _ := newTestAPI(t)
	resp := api.Get("/health")
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
	if got := strings.Join(resp.Result().Header.Values("Link"), ","); !strings.Contains(got, `rel="communities"`) {
		t.Fatalf("Link = %q", got)
	}
}

func TestCommunityLifecycle(t *testing.T) {
	api, _, _ := newTestAPI(t)

	resp := api.Post("/api/v1/communities", map[string]any{
		"name":      "River Valley",
		"mapConfig": map[string]any{"pmBasemapStyle": "dark", "zoom": 8},
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("create status = %d: %s", resp.Code, resp.Body.String())
	}
	created := decode[CreatedCommunityBody](t, resp)
	if created.ID != "river_valley" {
		t.Fatalf("ID = %q", created.ID)
	}

	if resp := api.Post("/api/v1/communities", map[string]any{"name": "River Valley"}); resp.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d", resp.Code)
	}
	if resp := api.Post("/api/v1/communities", map[string]any{"name": "Bad", "mapConfig": map[string]any{"pitch": 120}}); resp.Code != http.StatusBadRequest {
		t.Fatalf("invalid config status = %d", resp.Code)
	}

	resp = api.Get("/api/v1/communities/river_valley/map-config")
	if resp.Code != http.StatusOK {
		t.Fatalf("map-config status = %d", resp.Code)
	}
	cfg := decode[map[string]any](t, resp)
	if cfg["pmBasemapStyle"] != "dark" || cfg["mapProjection"] != "mercator" || cfg["zoom"] != 8.0 {
		t.Fatalf("map-config = %v", cfg)
	}
	if links := strings.Join(resp.Result().Header.Values("Link"), ","); !strings.Contains(links, `</api/v1/communities/river_valley/style>; rel="style"`) {
		t.Fatalf("Link = %q", links)
	}

	resp = api.Put("/api/v1/communities/river_valley", map[string]any{"name": "River Valley", "mapConfig": map[string]any{"pmBasemapStyle": "white"}})
	if resp.Code != http.StatusOK {
		t.Fatalf("put status = %d", resp.Code)
	}
	if resp := api.Put("/api/v1/communities/nope", map[string]any{"name": "Nope"}); resp.Code != http.StatusNotFound {
		t.Fatalf("put missing status = %d", resp.Code)
	}

	list := decode[[]service.Community](t, api.Get("/api/v1/communities"))
	if len(list) != 1 {
		t.Fatalf("list = %v", list)
	}

	if resp := api.Delete("/api/v1/communities/river_valley"); resp.Code != http.StatusOK {
		t.Fatalf("delete status = %d", resp.Code)
	}
	if resp := api.Get("/api/v1/communities/river_valley"); resp.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d", resp.Code)
	}
}

func TestGetStyle(t *testing.T) {
	api, _, _ := newTestAPI(t)

	api.Post("/api/v1/communities", map[string]any{"name": "Plain"})
	snap := decode[styleresource.Snapshot](t, api.Get("/api/v1/communities/plain/style"))
	if snap.State != "internal" || !snap.IsReady || snap.Style == nil {
		t.Fatalf("snapshot = %+v", snap)
	}

	api.Post("/api/v1/communities", map[string]any{"name": "Coast", "mapConfig": map[string]any{
		"mapboxAccessToken": "pk.coast",
		"mapboxStyle":       "mapbox://styles/example/coast",
	}})
	resp := api.Get("/api/v1/communities/coast/style?wait=true")
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.Code, resp.Body.String())
	}
	snap = decode[styleresource.Snapshot](t, resp)
	if snap.State != "external" || !snap.UsesExternalStyle {
		t.Fatalf("snapshot = %+v", snap)
	}
	if name, _ := snap.Style.String("name"); name != "remote mapbox://styles/example/coast" {
		t.Fatalf("name = %q", name)
	}
	refresh := `</api/v1/communities/coast/style/refresh>; rel="refresh"; method="POST"`
	if links := strings.Join(resp.Result().Header.Values("Link"), ","); !strings.Contains(links, refresh) {
		t.Fatalf("Link = %q", links)
	}

	resp = api.Post("/api/v1/communities/coast/style/refresh")
	if resp.Code != http.StatusAccepted {
		t.Fatalf("refresh status = %d: %s", resp.Code, resp.Body.String())
	}
	if resp := api.Get("/api/v1/communities/coast/style?wait=true"); resp.Code != http.StatusOK {
		t.Fatalf("status after refresh = %d", resp.Code)
	}

	if resp := api.Get("/api/v1/communities/missing/style"); resp.Code != http.StatusNotFound {
		t.Fatalf("missing status = %d", resp.Code)
	}
	if resp := api.Post("/api/v1/communities/missing/style/refresh"); resp.Code != http.StatusNotFound {
		t.Fatalf("missing refresh status = %d", resp.Code)
	}
}

func TestStyleBodyActions(t *testing.T) {
	tests := []struct {
		state, reason string
		want          string
	}{
		{"internal", "", ""},
		{"pending", "", "wait"},
		{"external", "", "refresh"},
		{"fallback", "fetch style: HTTP 401 Unauthorized", "refresh"},
		{"fallback", styleresource.ErrIncompleteCredentials.Error(), ""},
	}
	for _, tt := range tests {
		body := StyleBody{Snapshot: styleresource.Snapshot{State: tt.state, Reason: tt.reason}, communityID: "coast"}
		actions := body.Actions()
		var got string
		if len(actions) > 0 {
			got = actions[0].Rel
		}
		if got != tt.want {
			t.Errorf("%s/%q: rel = %q, want %q", tt.state, tt.reason, got, tt.want)
		}
	}
}

func TestResolveStyle(t *testing.T) {
	api, _, _ := newTestAPI(t)

	body := decode[ResolveBody](t, api.Post("/api/v1/styles/resolve", map[string]any{
		"mapboxStyleUrl":         "mapbox://styles/example/theme",
		"mapboxStyleAccessToken": "pk.theme",
	}))
	if body.Style != "mapbox://styles/example/theme" || !body.IsMapboxStyle {
		t.Fatalf("resolve = %+v", body)
	}

	body = decode[ResolveBody](t, api.Post("/api/v1/styles/resolve", map[string]any{"pmBasemapStyle": "black"}))
	doc, ok := body.Style.(map[string]any)
	if !ok || doc["name"] != "Protomaps black" || body.UsesExternalStyle {
		t.Fatalf("resolve = %+v", body)
	}

	if resp := api.Post("/api/v1/styles/resolve", map[string]any{"zoom": 40}); resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid status = %d", resp.Code)
	}
}

func TestFallbackStyle(t *testing.T) {
	api, _, _ := newTestAPI(t)

	doc := decode[style.Document](t, api.Get("/api/v1/styles/fallback?theme=dark&terrain=true"))
	if name, _ := doc.String("name"); name != "Protomaps dark" {
		t.Fatalf("name = %q", name)
	}
	if _, ok := doc.Sources()[protomaps.TerrainSource]; !ok {
		t.Fatal("terrain source missing")
	}
	if _, ok := doc.Layer(protomaps.HillshadeLayer); !ok {
		t.Fatal("hillshade layer missing")
	}
}

func TestInfo(t *testing.T) {
	api, _, _ := newTestAPI(t)
	api.Post("/api/v1/communities", map[string]any{"name": "One"})

	info := decode[InfoBody](t, api.Get("/api/v1/info"))
	if info.Name != "plat-story" || info.Communities != 1 || len(info.Themes) != 6 {
		t.Fatalf("info = %+v", info)
	}
}

func TestStyleEvents(t *testing.T) {
	_, mux, svc := newTestAPI(t)
	if _, err := svc.Communities.Create(service.Community{Name: "Plain"}); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/communities/plain/style/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("Content-Type = %q", ct)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 1<<20), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: signals") {
			if !strings.Contains(line, `"styleState":"internal"`) {
				t.Fatalf("first signals = %s", line)
			}
			return
		}
	}
	t.Fatalf("no signals received: %v", scanner.Err())
}

func TestDBQuery(t *testing.T) {
	conn, err := sql.Open("duckdb", db.DSN(""))
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	if _, err := db.NewRecorder(context.Background(), conn); err != nil {
		t.Fatal(err)
	}

	_, hapi := humatest.New(t)
	NewDBHandler(conn).RegisterRoutes(hapi)

	tables := decode[TablesBody](t, hapi.Get("/api/v1/tables"))
	if len(tables.Tables) != 1 || tables.Tables[0] != "style_resolutions" {
		t.Fatalf("tables = %v", tables.Tables)
	}

	body := decode[QueryBody](t, hapi.Post("/api/v1/query", map[string]any{"query": "SELECT 42 AS answer"}))
	if body.Count != 1 || body.Columns[0] != "answer" {
		t.Fatalf("query = %+v", body)
	}

	if resp := hapi.Post("/api/v1/query", map[string]any{"query": "DROP TABLE style_resolutions"}); resp.Code != http.StatusBadRequest {
		t.Fatalf("drop status = %d", resp.Code)
	}

	// Table functions pass the statement check but cannot touch host files.
	resp := hapi.Post("/api/v1/query", map[string]any{"query": "SELECT * FROM read_text('/etc/hostname')"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("read_text status = %d: %s", resp.Code, resp.Body.String())
	}
}

func TestIsReadOnly(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"SELECT 1", true},
		{"  with x as (select 1) select * from x;", true},
		{"FROM style_resolutions", true},
		{"select 1; drop table t", false},
		{"INSERT INTO t VALUES (1)", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isReadOnly(tt.query); got != tt.want {
			t.Errorf("isReadOnly(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestSyncStyleLogsFailure(t *testing.T) {
	_, _, svc := newTestAPI(t)
	core, logs := observer.New(zap.WarnLevel)
	svc.Log = zap.New(core)

	// The community vanished between the write and the sync.
	NewAPIHandler(svc).syncStyle("ghost")

	entries := logs.FilterMessage("starting style resolution failed").All()
	if len(entries) != 1 {
		t.Fatalf("warnings = %d, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["community"]; got != "ghost" {
		t.Fatalf("community = %v", got)
	}
}
