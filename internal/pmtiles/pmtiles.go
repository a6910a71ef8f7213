// Package pmtiles reads PMTiles v3 archives so basemap tiles can be served
// from this server instead of the hosted Protomaps API.
//
// Format: https://github.com/protomaps/PMTiles/blob/main/spec/v3/spec.md
package pmtiles

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
)

// Compression is the compression algorithm applied to directories, metadata or tiles.
type Compression uint8

const (
	UnknownCompression Compression = 0
	NoCompression      Compression = 1
	Gzip               Compression = 2
	Brotli             Compression = 3
	Zstd               Compression = 4
)

// ContentEncoding returns the HTTP Content-Encoding for c, "" when none applies.
func (c Compression) ContentEncoding() string {
	switch c {
	case Gzip:
		return "gzip"
	case Brotli:
		return "br"
	case Zstd:
		return "zstd"
	default:
		return ""
	}
}

// TileType is the format of individual tile contents.
type TileType uint8

const (
	UnknownTileType TileType = 0
	Mvt             TileType = 1
	Png             TileType = 2
	Jpeg            TileType = 3
	Webp            TileType = 4
	Avif            TileType = 5
)

// Ext is the file extension used in tile URLs.
func (t TileType) Ext() string {
	switch t {
	case Mvt:
		return ".mvt"
	case Png:
		return ".png"
	case Jpeg:
		return ".jpg"
	case Webp:
		return ".webp"
	case Avif:
		return ".avif"
	default:
		return ""
	}
}

// ContentType is the HTTP Content-Type of a tile.
func (t TileType) ContentType() string {
	switch t {
	case Mvt:
		return "application/x-protobuf"
	case Png:
		return "image/png"
	case Jpeg:
		return "image/jpeg"
	case Webp:
		return "image/webp"
	case Avif:
		return "image/avif"
	default:
		return "application/octet-stream"
	}
}

// HeaderLen is the size of the fixed binary header.
const HeaderLen = 127

const magic = "PMTiles"

var (
	ErrBadMagic       = errors.New("pmtiles: magic number not detected")
	ErrShortHeader    = errors.New("pmtiles: buffer too small for header")
	ErrUnsupported    = errors.New("pmtiles: unsupported compression")
	ErrTileNotFound   = errors.New("pmtiles: tile not found")
	ErrTooManyLevels  = errors.New("pmtiles: directory nesting too deep")
	ErrBadCoordinates = errors.New("pmtiles: tile coordinates out of range")
)

// Header is the PMTiles v3 header.
type Header struct {
	SpecVersion         uint8
	RootOffset          uint64
	RootLength          uint64
	MetadataOffset      uint64
	MetadataLength      uint64
	LeafDirectoryOffset uint64
	LeafDirectoryLength uint64
	TileDataOffset      uint64
	TileDataLength      uint64
	AddressedTilesCount uint64
	TileEntriesCount    uint64
	TileContentsCount   uint64
	Clustered           bool
	InternalCompression Compression
	TileCompression     Compression
	TileType            TileType
	MinZoom             uint8
	MaxZoom             uint8
	MinLonE7            int32
	MinLatE7            int32
	MaxLonE7            int32
	MaxLatE7            int32
	CenterZoom          uint8
	CenterLonE7         int32
	CenterLatE7         int32
}

const e7 = 10000000.0

// Bound returns the archive extent.
func (h Header) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{float64(h.MinLonE7) / e7, float64(h.MinLatE7) / e7},
		Max: orb.Point{float64(h.MaxLonE7) / e7, float64(h.MaxLatE7) / e7},
	}
}

// Center returns the suggested initial view center.
func (h Header) Center() orb.Point {
	return orb.Point{float64(h.CenterLonE7) / e7, float64(h.CenterLatE7) / e7}
}

// header field offsets after the magic and version bytes
var u64Fields = []struct {
	off int
	get func(*Header) *uint64
}{
	{8, func(h *Header) *uint64 { return &h.RootOffset }},
	{16, func(h *Header) *uint64 { return &h.RootLength }},
	{24, func(h *Header) *uint64 { return &h.MetadataOffset }},
	{32, func(h *Header) *uint64 { return &h.MetadataLength }},
	{40, func(h *Header) *uint64 { return &h.LeafDirectoryOffset }},
	{48, func(h *Header) *uint64 { return &h.LeafDirectoryLength }},
	{56, func(h *Header) *uint64 { return &h.TileDataOffset }},
	{64, func(h *Header) *uint64 { return &h.TileDataLength }},
	{72, func(h *Header) *uint64 { return &h.AddressedTilesCount }},
	{80, func(h *Header) *uint64 { return &h.TileEntriesCount }},
	{88, func(h *Header) *uint64 { return &h.TileContentsCount }},
}

var i32Fields = []struct {
	off int
	get func(*Header) *int32
}{
	{102, func(h *Header) *int32 { return &h.MinLonE7 }},
	{106, func(h *Header) *int32 { return &h.MinLatE7 }},
	{110, func(h *Header) *int32 { return &h.MaxLonE7 }},
	{114, func(h *Header) *int32 { return &h.MaxLatE7 }},
	{119, func(h *Header) *int32 { return &h.CenterLonE7 }},
	{123, func(h *Header) *int32 { return &h.CenterLatE7 }},
}

// MarshalBinary encodes h. The archive version is always written as 3.
func (h Header) MarshalBinary() ([]byte, error) {
	b := make([]byte, HeaderLen)
	copy(b, magic)
	b[7] = 3
	for _, f := range u64Fields {
		binary.LittleEndian.PutUint64(b[f.off:], *f.get(&h))
	}
	if h.Clustered {
		b[96] = 1
	}
	b[97] = uint8(h.InternalCompression)
	b[98] = uint8(h.TileCompression)
	b[99] = uint8(h.TileType)
	b[100] = h.MinZoom
	b[101] = h.MaxZoom
	b[118] = h.CenterZoom
	for _, f := range i32Fields {
		binary.LittleEndian.PutUint32(b[f.off:], uint32(*f.get(&h)))
	}
	return b, nil
}

// UnmarshalBinary decodes a header from the first HeaderLen bytes of d.
func (h *Header) UnmarshalBinary(d []byte) error {
	if len(d) < HeaderLen {
		return ErrShortHeader
	}
	if string(d[:7]) != magic {
		if len(d) > 2 && string(d[:2]) == "PM" {
			return fmt.Errorf("pmtiles: version %d archive, convert it to version 3", d[2])
		}
		return ErrBadMagic
	}

	*h = Header{SpecVersion: d[7]}
	for _, f := range u64Fields {
		*f.get(h) = binary.LittleEndian.Uint64(d[f.off:])
	}
	h.Clustered = d[96] == 1
	h.InternalCompression = Compression(d[97])
	h.TileCompression = Compression(d[98])
	h.TileType = TileType(d[99])
	h.MinZoom = d[100]
	h.MaxZoom = d[101]
	h.CenterZoom = d[118]
	for _, f := range i32Fields {
		*f.get(h) = int32(binary.LittleEndian.Uint32(d[f.off:]))
	}
	return nil
}

// ZxyToID converts tile coordinates to a Hilbert tile ID.
func ZxyToID(z uint8, x, y uint32) uint64 {
	var acc uint64 = (1<<(z*2) - 1) / 3
	if z == 0 {
		return acc
	}
	n := uint32(z - 1)
	for s := uint32(1 << n); s > 0; s >>= 1 {
		rx := s & x
		ry := s & y
		acc += uint64((3*rx)^ry) << n
		x, y = rotate(s, x, y, rx, ry)
		n--
	}
	return acc
}

func rotate(n, x, y, rx, ry uint32) (uint32, uint32) {
	if ry == 0 {
		if rx != 0 {
			x = n - 1 - x
			y = n - 1 - y
		}
		return y, x
	}
	return x, y
}
