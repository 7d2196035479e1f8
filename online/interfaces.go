package online

import (
	"context"

	"github.com/poiesic/geosearch/core"
)

// Geocoder resolves free text to places.
// Implementations must be thread-safe for concurrent use.
type Geocoder interface {
	// Geocode returns up to limit places matching query in provider order.
	// near, when set, biases results toward a location.
	// Returns an empty slice if nothing matches.
	Geocode(ctx context.Context, query string, near *core.Coordinate, limit int) ([]*core.Place, error)
}

// POISource finds points of interest inside a bounding box.
// Implementations must be thread-safe for concurrent use.
type POISource interface {
	// FindPOIs returns up to limit POIs inside bbox, restricted to category
	// when it is set. Every returned POI carries a valid category.
	FindPOIs(ctx context.Context, bbox core.BoundingBox, category *core.Category, limit int) ([]*core.POI, error)
}

// Provider aggregates the online services for convenient initialization.
type Provider interface {
	// Geocoder returns the text lookup service, or nil when no geocoder
	// is configured.
	Geocoder() Geocoder

	// POISource returns the nearby lookup service, or nil when none is
	// configured.
	POISource() POISource

	// Close releases resources held by the provider.
	Close() error
}
