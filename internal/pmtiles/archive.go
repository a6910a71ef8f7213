package pmtiles

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/paulmach/orb/maptile"
)

const maxCachedDirs = 1024

// Archive reads tiles from a PMTiles v3 archive.
type Archive struct {
	name     string
	r        io.ReaderAt
	closer   io.Closer
	header   Header
	metadata map[string]any

	mu   sync.Mutex
	dirs map[uint64][]Entry
}

// Open opens the archive at path. Its name is the file name without extension.
func Open(path string) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	a, err := NewArchive(name, f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	a.closer = f
	return a, nil
}

// NewArchive reads the header and metadata of an archive held by r.
func NewArchive(name string, r io.ReaderAt) (*Archive, error) {
	buf := make([]byte, HeaderLen)
	if _, err := r.ReadAt(buf, 0); err != nil {
		return nil, fmt.Errorf("pmtiles: read header: %w", err)
	}
	a := &Archive{name: name, r: r, dirs: make(map[uint64][]Entry)}
	if err := a.header.UnmarshalBinary(buf); err != nil {
		return nil, err
	}
	if err := a.readMetadata(); err != nil {
		return nil, err
	}
	return a, nil
}

// Name returns the archive name used in URLs.
func (a *Archive) Name() string { return a.name }

// Header returns the archive header.
func (a *Archive) Header() Header { return a.header }

// Metadata returns the decoded JSON metadata. Callers must not modify it.
func (a *Archive) Metadata() map[string]any { return a.metadata }

// Close releases the underlying file, if any.
func (a *Archive) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

// Tile returns the stored bytes of t, still compressed with
// Header().TileCompression. It returns ErrTileNotFound for tiles the
// archive does not contain.
func (a *Archive) Tile(ctx context.Context, t maptile.Tile) ([]byte, error) {
	if t.Z > 31 || uint64(t.X) >= 1<<t.Z || uint64(t.Y) >= 1<<t.Z {
		return nil, fmt.Errorf("%w: %d/%d/%d", ErrBadCoordinates, t.Z, t.X, t.Y)
	}
	if uint8(t.Z) < a.header.MinZoom || uint8(t.Z) > a.header.MaxZoom {
		return nil, ErrTileNotFound
	}

	id := ZxyToID(uint8(t.Z), t.X, t.Y)
	offset, length := a.header.RootOffset, a.header.RootLength
	for depth := 0; depth <= 3; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entries, err := a.directory(offset, length)
		if err != nil {
			return nil, err
		}
		e, ok := FindTile(entries, id)
		if !ok {
			return nil, ErrTileNotFound
		}
		if e.RunLength > 0 {
			return a.read(a.header.TileDataOffset+e.Offset, uint64(e.Length))
		}
		offset, length = a.header.LeafDirectoryOffset+e.Offset, uint64(e.Length)
	}
	return nil, ErrTooManyLevels
}

func (a *Archive) directory(offset, length uint64) ([]Entry, error) {
	a.mu.Lock()
	entries, ok := a.dirs[offset]
	a.mu.Unlock()
	if ok {
		return entries, nil
	}

	data, err := a.read(offset, length)
	if err != nil {
		return nil, err
	}
	entries, err = DecodeDirectory(data, a.header.InternalCompression)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	if len(a.dirs) >= maxCachedDirs {
		clear(a.dirs)
	}
	a.dirs[offset] = entries
	a.mu.Unlock()
	return entries, nil
}

func (a *Archive) readMetadata() error {
	a.metadata = map[string]any{}
	if a.header.MetadataLength == 0 {
		return nil
	}
	data, err := a.read(a.header.MetadataOffset, a.header.MetadataLength)
	if err != nil {
		return err
	}
	r, err := decompress(data, a.header.InternalCompression)
	if err != nil {
		return err
	}
	if err := json.NewDecoder(r).Decode(&a.metadata); err != nil {
		return fmt.Errorf("pmtiles: decode metadata: %w", err)
	}
	return nil
}

func (a *Archive) read(offset, length uint64) ([]byte, error) {
	buf := make([]byte, length)
	if _, err := a.r.ReadAt(buf, int64(offset)); err != nil {
		return nil, fmt.Errorf("pmtiles: read %d bytes at %d: %w", length, offset, err)
	}
	return buf, nil
}
