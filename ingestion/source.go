package ingestion

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/paulmach/osm/osmxml"
	"github.com/poiesic/geosearch/core"
)

// Feature is one tagged map element with a resolved coordinate.
type Feature struct {
	ID         core.SourceID
	Coordinate core.Coordinate
	Tags       map[string]string
}

// MapDataSource streams features in a deterministic order.
type MapDataSource interface {
	// Scan calls fn for every feature. A non-nil error from fn stops the scan
	// and is returned unchanged.
	Scan(ctx context.Context, fn func(Feature) error) error
}

// SliceSource serves features from memory.
type SliceSource []Feature

// Scan implements MapDataSource.
func (s SliceSource) Scan(ctx context.Context, fn func(Feature) error) error {
	for _, f := range s {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

// Format is an OSM file encoding.
type Format int

const (
	FormatXML Format = iota + 1
	FormatPBF
)

// Compression wraps an XML extract.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionZstd
)

// DetectFormat infers format and compression from a file name:
// .osm.pbf / .pbf, .osm / .xml, optionally followed by .gz or .zst.
func DetectFormat(path string) (Format, Compression, error) {
	name := strings.ToLower(path)
	comp := CompressionNone
	switch {
	case strings.HasSuffix(name, ".gz"):
		comp = CompressionGzip
		name = strings.TrimSuffix(name, ".gz")
	case strings.HasSuffix(name, ".zst"):
		comp = CompressionZstd
		name = strings.TrimSuffix(name, ".zst")
	}
	switch {
	case strings.HasSuffix(name, ".pbf"):
		if comp != CompressionNone {
			return 0, 0, fmt.Errorf("%w: compressed pbf %s", ErrUnknownFormat, path)
		}
		return FormatPBF, comp, nil
	case strings.HasSuffix(name, ".osm"), strings.HasSuffix(name, ".xml"):
		return FormatXML, comp, nil
	}
	return 0, 0, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
}

// OSMSource reads features from an OSM XML or PBF extract. Tagged nodes
// and ways are emitted in file order; relations are ignored. A way's
// coordinate is the mean of its resolved node coordinates.
type OSMSource struct {
	open        func() (io.ReadCloser, error)
	format      Format
	compression Compression
	procs       int
}

// NewOSMFileSource creates a source for the extract at path. The file is
// reopened on every Scan.
func NewOSMFileSource(path string) (*OSMSource, error) {
	format, comp, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return &OSMSource{
		open:        func() (io.ReadCloser, error) { return os.Open(path) },
		format:      format,
		compression: comp,
		procs:       runtime.GOMAXPROCS(0),
	}, nil
}

// NewOSMSource creates a source over an uncompressed stream. It can be
// scanned once.
func NewOSMSource(r io.Reader, format Format) *OSMSource {
	return &OSMSource{
		open:   func() (io.ReadCloser, error) { return io.NopCloser(r), nil },
		format: format,
		procs:  runtime.GOMAXPROCS(0),
	}
}

// nodePos is a node coordinate in 1e-7 degrees.
type nodePos struct {
	lat, lon int32
}

// Scan implements MapDataSource.
func (s *OSMSource) Scan(ctx context.Context, fn func(Feature) error) error {
	rc, err := s.open()
	if err != nil {
		return err
	}
	defer rc.Close()

	r, err := s.decompress(rc)
	if err != nil {
		return err
	}
	defer r.Close()

	var scanner osm.Scanner
	switch s.format {
	case FormatPBF:
		pbf := osmpbf.New(ctx, r, s.procs)
		pbf.SkipRelations = true
		scanner = pbf
	case FormatXML:
		scanner = osmxml.New(ctx, r)
	default:
		return ErrUnknownFormat
	}
	defer scanner.Close()

	// Ways only carry node ids, so every node position is kept until the
	// end of the scan.
	positions := make(map[osm.NodeID]nodePos)
	for scanner.Scan() {
		switch o := scanner.Object().(type) {
		case *osm.Node:
			positions[o.ID] = nodePos{lat: int32(core.ToE7(o.Lat)), lon: int32(core.ToE7(o.Lon))}
			if len(o.Tags) == 0 {
				continue
			}
			err = fn(Feature{
				ID:         core.SourceID{Type: core.SourceNode, ID: int64(o.ID)},
				Coordinate: core.NewCoordinate(o.Lat, o.Lon),
				Tags:       o.Tags.Map(),
			})
		case *osm.Way:
			if len(o.Tags) == 0 {
				continue
			}
			c, ok := wayCentroid(o, positions)
			if !ok {
				continue
			}
			err = fn(Feature{
				ID:         core.SourceID{Type: core.SourceWay, ID: int64(o.ID)},
				Coordinate: c,
				Tags:       o.Tags.Map(),
			})
		}
		if err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return ctx.Err()
}

// wayCentroid averages the coordinates of the way's nodes, preferring
// coordinates embedded in the way itself.
func wayCentroid(w *osm.Way, positions map[osm.NodeID]nodePos) (core.Coordinate, bool) {
	var sumLat, sumLon float64
	n := 0
	for _, wn := range w.Nodes {
		if wn.Lat != 0 || wn.Lon != 0 {
			sumLat += wn.Lat
			sumLon += wn.Lon
			n++
			continue
		}
		if p, ok := positions[wn.ID]; ok {
			sumLat += core.FromE7(int64(p.lat))
			sumLon += core.FromE7(int64(p.lon))
			n++
		}
	}
	if n == 0 {
		return core.Coordinate{}, false
	}
	return core.NewCoordinate(sumLat/float64(n), sumLon/float64(n)), true
}

func (s *OSMSource) decompress(r io.Reader) (io.ReadCloser, error) {
	switch s.compression {
	case CompressionGzip:
		return gzip.NewReader(r)
	case CompressionZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	}
	return io.NopCloser(r), nil
}
