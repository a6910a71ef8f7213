package pmtiles

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
)

const maxEntries = 1 << 24

// Entry is a directory entry. RunLength 0 marks a pointer to a leaf directory.
type Entry struct {
	TileID    uint64
	Offset    uint64
	Length    uint32
	RunLength uint32
}

// EncodeDirectory serializes entries, which must be sorted by TileID.
func EncodeDirectory(entries []Entry, compression Compression) ([]byte, error) {
	var buf bytes.Buffer
	var w io.Writer = &buf
	var gz *gzip.Writer
	switch compression {
	case NoCompression:
	case Gzip:
		gz = gzip.NewWriter(&buf)
		w = gz
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupported, compression)
	}

	tmp := make([]byte, binary.MaxVarintLen64)
	put := func(v uint64) {
		n := binary.PutUvarint(tmp, v)
		w.Write(tmp[:n])
	}

	put(uint64(len(entries)))
	var last uint64
	for _, e := range entries {
		put(e.TileID - last)
		last = e.TileID
	}
	for _, e := range entries {
		put(uint64(e.RunLength))
	}
	for _, e := range entries {
		put(uint64(e.Length))
	}
	for i, e := range entries {
		if i > 0 && e.Offset == entries[i-1].Offset+uint64(entries[i-1].Length) {
			put(0)
		} else {
			put(e.Offset + 1)
		}
	}

	if gz != nil {
		if err := gz.Close(); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// DecodeDirectory parses a serialized directory.
func DecodeDirectory(data []byte, compression Compression) ([]Entry, error) {
	r, err := decompress(data, compression)
	if err != nil {
		return nil, err
	}
	br := bufio.NewReader(r)

	count, err := binary.ReadUvarint(br)
	if err != nil {
		return nil, fmt.Errorf("pmtiles: read directory length: %w", err)
	}
	if count > maxEntries {
		return nil, fmt.Errorf("pmtiles: directory claims %d entries", count)
	}

	entries := make([]Entry, count)
	var last uint64
	for i := range entries {
		v, err := binary.ReadUvarint(br)
		if err != nil {
			return nil, fmt.Errorf("pmtiles: read tile id: %w", err)
		}
		last += v
		entries[i].TileID = last
	}
	for i := range entries {
		v, err := binary.ReadUvarint(br)
		if err != nil {
			return nil, fmt.Errorf("pmtiles: read run length: %w", err)
		}
		entries[i].RunLength = uint32(v)
	}
	for i := range entries {
		v, err := binary.ReadUvarint(br)
		if err != nil {
			return nil, fmt.Errorf("pmtiles: read length: %w", err)
		}
		entries[i].Length = uint32(v)
	}
	for i := range entries {
		v, err := binary.ReadUvarint(br)
		if err != nil {
			return nil, fmt.Errorf("pmtiles: read offset: %w", err)
		}
		if v == 0 && i > 0 {
			entries[i].Offset = entries[i-1].Offset + uint64(entries[i-1].Length)
		} else {
			entries[i].Offset = v - 1
		}
	}
	return entries, nil
}

// FindTile returns the entry covering tileID: either the tile run that
// contains it or the leaf directory pointer to descend into.
func FindTile(entries []Entry, tileID uint64) (Entry, bool) {
	i := sort.Search(len(entries), func(i int) bool { return entries[i].TileID > tileID }) - 1
	if i < 0 {
		return Entry{}, false
	}
	e := entries[i]
	if e.TileID == tileID || e.RunLength == 0 || tileID-e.TileID < uint64(e.RunLength) {
		return e, true
	}
	return Entry{}, false
}

func decompress(data []byte, compression Compression) (io.Reader, error) {
	switch compression {
	case NoCompression, UnknownCompression:
		return bytes.NewReader(data), nil
	case Gzip:
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("pmtiles: gzip: %w", err)
		}
		return zr, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupported, compression)
	}
}
