// Package server wires services, the Huma API and tile routes into one HTTP handler.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/joeblew999/plat-story/internal/api"
	"github.com/joeblew999/plat-story/internal/db"
	"github.com/joeblew999/plat-story/internal/mapbox"
	"github.com/joeblew999/plat-story/internal/protomaps"
	"github.com/joeblew999/plat-story/internal/service"
	"github.com/joeblew999/plat-story/internal/styleresource"
	"github.com/joeblew999/plat-story/internal/version"
)

// Config holds the server configuration.
type Config struct {
	Host        string
	Port        string
	DataDir     string
	PublicURL   string  // Base URL clients reach this server at; derived from Host/Port when empty
	PMApiKey    string  // Protomaps API key for the hosted fallback tiles
	LocalTiles  string  // PMTiles archive name (without extension) served as the local basemap
	Communities string  // Optional YAML seed file
	FetchRPS    float64 // Rate limit for external style fetches; 0 disables it
	NoDB        bool    // Skip DuckDB, for offline commands
}

// Server is the story HTTP server.
type Server struct {
	config   Config
	log      *zap.Logger
	router   chi.Router
	mux      *http.ServeMux
	humaAPI  huma.API
	db       *sql.DB
	services *api.Services
}

// New creates a new server.
func New(cfg Config, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.PublicURL == "" {
		host := cfg.Host
		if host == "" || host == "0.0.0.0" {
			host = "localhost"
		}
		cfg.PublicURL = fmt.Sprintf("http://%s:%s", host, cfg.Port)
	}
	cfg.PublicURL = strings.TrimSuffix(cfg.PublicURL, "/")

	mux := http.NewServeMux()

	humaConfig := huma.DefaultConfig("plat-story API", version.Version)
	humaConfig.Info.Description = "Map style resolution for community map views: Mapbox styles, Protomaps fallbacks and local PMTiles."
	humaConfig.Servers = []*huma.Server{
		{URL: cfg.PublicURL, Description: "Public URL"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, api.LinkTransformer())

	humaAPI := humago.New(mux, humaConfig)

	s := &Server{
		config:  cfg,
		log:     log,
		mux:     mux,
		humaAPI: humaAPI,
	}

	if !cfg.NoDB {
		conn, err := db.Get(db.Config{DataDir: cfg.DataDir, DBName: "story"})
		if err != nil {
			log.Warn("duckdb unavailable, resolution history disabled", zap.Error(err))
		} else {
			s.db = conn
		}
	}

	s.services = s.newServices()
	s.router = s.routes()
	return s
}

func (s *Server) newServices() *api.Services {
	cfg := s.config

	fallback := protomaps.Builder{APIKey: cfg.PMApiKey}
	if cfg.LocalTiles != "" {
		fallback.LocalTileJSON = cfg.PublicURL + "/tiles/" + cfg.LocalTiles + ".json"
	}

	bus := service.NewEventBus()
	communities := service.NewCommunityService(cfg.DataDir, bus)
	if cfg.Communities != "" {
		n, err := communities.Seed(cfg.Communities)
		if err != nil {
			s.log.Warn("seeding communities failed", zap.String("file", cfg.Communities), zap.Error(err))
		} else {
			s.log.Info("seeded communities", zap.String("file", cfg.Communities), zap.Int("created", n))
		}
	}

	styles := service.NewStyleService(context.Background(), styleresource.Deps{
		Preparer: mapbox.NewFetcher(&http.Client{Timeout: 30 * time.Second}, cfg.FetchRPS),
		Fallback: fallback,
		Logger:   s.log,
	}, communities, bus)

	svc := &api.Services{
		Communities: communities,
		Styles:      styles,
		Tiles:       service.NewTileService(cfg.DataDir),
		Bus:         bus,
		Log:         s.log,
	}

	if s.db != nil {
		rec, err := db.NewRecorder(context.Background(), s.db)
		if err != nil {
			s.log.Warn("resolution history disabled", zap.Error(err))
		} else {
			svc.Recorder = rec
			styles.Observe(s.recordResolution(rec))
		}
	}
	return svc
}

// recordResolution stores every terminal style state.
func (s *Server) recordResolution(rec *db.Recorder) service.StyleObserver {
	return func(id string, state styleresource.State) {
		if !state.Ready() {
			return
		}
		res := db.Resolution{
			CommunityID: id,
			State:       state.Kind().String(),
			External:    state.UsesExternalStyle(),
		}
		res.StyleName, _ = state.Document().String("name")
		if err := state.Reason(); err != nil {
			res.Reason = err.Error()
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rec.Record(ctx, res); err != nil {
			s.log.Warn("recording style resolution failed", zap.String("community", id), zap.Error(err))
		}
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Services exposes the wired services to commands.
func (s *Server) Services() *api.Services {
	return s.services
}

// Close closes server resources.
func (s *Server) Close() error {
	s.services.Styles.Close()
	if err := s.services.Tiles.Close(); err != nil {
		return err
	}
	if s.db != nil {
		return db.Close()
	}
	return nil
}

func (s *Server) routes() chi.Router {
	api.RegisterRoutes(s.humaAPI, s.services)
	api.NewInfoHandler(s.config.DataDir, s.db != nil, s.config.LocalTiles, s.services).RegisterRoutes(s.humaAPI)
	api.NewDBHandler(s.db).RegisterRoutes(s.humaAPI)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(s.log))
	r.Use(middleware.Recoverer)

	r.Route("/tiles", func(r chi.Router) {
		r.Use(tileCORS())
		r.Get("/{name}.json", s.handleTileJSON)
		r.Get("/{name}/{z}/{x}/{y}", s.handleTile)
		r.Handle("/*", http.StripPrefix("/tiles/", http.FileServer(http.Dir(s.services.Tiles.TilesDir()))))
	})
	r.Mount("/", s.mux)
	return r
}
