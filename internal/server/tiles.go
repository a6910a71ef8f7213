package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb/maptile"
	"go.uber.org/zap"

	"github.com/joeblew999/plat-story/internal/pmtiles"
	"github.com/joeblew999/plat-story/internal/service"
)

// handleTileJSON serves the TileJSON of an archive.
// GET /tiles/{name}.json
func (s *Server) handleTileJSON(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	a, err := s.services.Tiles.Archive(name)
	if err != nil {
		s.tileError(w, name, err)
		return
	}
	writeJSON(w, http.StatusOK, a.TileJSON(s.config.PublicURL+"/tiles/"+name))
}

// handleTile serves one tile. The y segment may carry the tile extension.
// GET /tiles/{name}/{z}/{x}/{y}
func (s *Server) handleTile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	t, ok := parseTile(chi.URLParam(r, "z"), chi.URLParam(r, "x"), chi.URLParam(r, "y"))
	if !ok {
		http.Error(w, "invalid tile coordinates", http.StatusBadRequest)
		return
	}

	a, err := s.services.Tiles.Archive(name)
	if err != nil {
		s.tileError(w, name, err)
		return
	}

	data, err := a.Tile(r.Context(), t)
	switch {
	case errors.Is(err, pmtiles.ErrTileNotFound):
		w.WriteHeader(http.StatusNoContent)
		return
	case errors.Is(err, pmtiles.ErrBadCoordinates):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		s.tileError(w, name, err)
		return
	}

	h := a.Header()
	w.Header().Set("Content-Type", h.TileType.ContentType())
	if enc := h.TileCompression.ContentEncoding(); enc != "" {
		w.Header().Set("Content-Encoding", enc)
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

func (s *Server) tileError(w http.ResponseWriter, name string, err error) {
	if errors.Is(err, service.ErrNotFound) {
		http.Error(w, "archive not found", http.StatusNotFound)
		return
	}
	s.log.Error("tile archive failed", zap.String("archive", name), zap.Error(err))
	http.Error(w, "tile archive error", http.StatusInternalServerError)
}

func parseTile(zs, xs, ys string) (maptile.Tile, bool) {
	if i := strings.IndexByte(ys, '.'); i >= 0 {
		ys = ys[:i]
	}
	z, err := strconv.ParseUint(zs, 10, 8)
	if err != nil {
		return maptile.Tile{}, false
	}
	x, err := strconv.ParseUint(xs, 10, 32)
	if err != nil {
		return maptile.Tile{}, false
	}
	y, err := strconv.ParseUint(ys, 10, 32)
	if err != nil {
		return maptile.Tile{}, false
	}
	return maptile.New(uint32(x), uint32(y), maptile.Zoom(z)), true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}
