package storage

import (
	"context"
	"time"

	"github.com/poiesic/geosearch/core"
)

// RegionWriter builds one region database in a single pass.
// Implementations are not safe for concurrent use.
type RegionWriter interface {
	// AddPlace stores a place and indexes its text fields.
	// Returns ErrDuplicateKey if a place with the same SourceID was added.
	AddPlace(ctx context.Context, place *core.Place) error

	// AddPOI stores a POI. Its place must have been added first; returns
	// ErrNotFound otherwise.
	AddPOI(ctx context.Context, poi *core.POI) error

	// Finalize writes the lexical and spatial indexes and the region meta.
	// Counts, average document length and spatial root are filled in from
	// the data written. No further writes are accepted.
	Finalize(ctx context.Context, meta core.RegionMeta) (*core.RegionMeta, error)

	// Close releases the underlying database.
	Close() error
}

// RegionReader queries a finalized region database.
// Implementations must be safe for concurrent use.
type RegionReader interface {
	// Meta returns the region metadata.
	Meta() core.RegionMeta

	// SearchText runs a ranked lexical query. Every query term must match
	// a field term exactly or as a prefix. Results are ordered by score
	// descending and carry offline provenance and the region id.
	SearchText(ctx context.Context, query string, limit int) ([]core.Result, error)

	// SearchBBox returns POIs inside bbox, optionally restricted to one
	// category, ordered by distance from the bbox center.
	SearchBBox(ctx context.Context, bbox core.BoundingBox, category *core.Category, limit int) ([]core.POIResult, error)

	// GetPlace returns a place by source id or ErrNotFound.
	GetPlace(ctx context.Context, id core.SourceID) (*core.Place, error)

	// GetPOI returns a POI by source id or ErrNotFound.
	GetPOI(ctx context.Context, id core.SourceID) (*core.POI, error)

	// Close releases the underlying database.
	Close() error
}

// RegionHandle is a pinned reference to an open region. The region stays
// installed until Release is called.
type RegionHandle interface {
	// Meta returns the region metadata without counting as a use.
	Meta() core.RegionMeta

	// Reader returns the region for querying and marks the handle as used.
	Reader() RegionReader

	// Release unpins the region. Further calls are no-ops.
	Release()
}

// RegionProvider hands out pinned handles to every locally available region.
type RegionProvider interface {
	Snapshot(ctx context.Context) ([]RegionHandle, error)
}

// CacheIndexRepository persists the bookkeeping of the local region cache.
type CacheIndexRepository interface {
	// PutEntry inserts or replaces the entry for entry.RegionID.
	PutEntry(ctx context.Context, entry *core.CacheEntry) error

	// GetEntry returns the entry for a region, or nil, nil when absent.
	GetEntry(ctx context.Context, regionID string) (*core.CacheEntry, error)

	// DeleteEntry removes the entry for a region. Missing entries are ignored.
	DeleteEntry(ctx context.Context, regionID string) error

	// ListEntries returns all entries ordered by region id.
	ListEntries(ctx context.Context) ([]*core.CacheEntry, error)

	// Touch updates the last access time of a region.
	// Returns ErrNotFound if the region has no entry.
	Touch(ctx context.Context, regionID string, at time.Time) error

	// Close releases the underlying database.
	Close() error
}
