package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joeblew999/plat-story/internal/pmtiles"
)

// TileService serves PMTiles archives from <dataDir>/tiles.
type TileService struct {
	tilesDir string

	mu       sync.Mutex
	archives map[string]*pmtiles.Archive
}

// NewTileService creates a new tile service.
func NewTileService(dataDir string) *TileService {
	return &TileService{
		tilesDir: filepath.Join(dataDir, "tiles"),
		archives: make(map[string]*pmtiles.Archive),
	}
}

// List returns all available PMTiles files.
func (s *TileService) List() ([]TileFile, error) {
	entries, err := os.ReadDir(s.tilesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []TileFile{}, nil
		}
		return nil, err
	}

	files := []TileFile{}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".pmtiles" {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		files = append(files, TileFile{
			Name: entry.Name(),
			Size: formatSize(info.Size()),
		})
	}

	return files, nil
}

// Archive opens <name>.pmtiles, reusing an already open archive.
func (s *TileService) Archive(name string) (*pmtiles.Archive, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return nil, fmt.Errorf("archive %q: %w", name, ErrNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if a, ok := s.archives[name]; ok {
		return a, nil
	}

	a, err := pmtiles.Open(filepath.Join(s.tilesDir, name+".pmtiles"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("archive %q: %w", name, ErrNotFound)
		}
		return nil, err
	}
	s.archives[name] = a
	return a, nil
}

// Close closes every open archive.
func (s *TileService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for name, a := range s.archives {
		if err := a.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.archives, name)
	}
	return firstErr
}

// TilesDir returns the path to the tiles directory.
func (s *TileService) TilesDir() string {
	return s.tilesDir
}

// formatSize returns a human-readable file size.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
