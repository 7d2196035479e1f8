// Package mock provides test double implementations of the online service
// interfaces.
//
// This package contains mock implementations of online.Geocoder,
// online.POISource and online.Provider for use in unit tests. Tests run
// without network access and control exactly what the online fallback
// returns.
//
// # Usage in Tests
//
//	// Default behavior returns no results
//	provider := mock.NewMockProvider()
//	places, err := provider.Geocoder().Geocode(ctx, "main st", nil, 10)
//
//	// Custom behavior injection
//	geocoder := mock.NewMockGeocoder()
//	geocoder.GeocodeFunc = func(ctx context.Context, q string, near *core.Coordinate, limit int) ([]*core.Place, error) {
//	    return []*core.Place{place}, nil
//	}
//
//	// Check call counts
//	count := geocoder.CallCount()
//
// # Default Behavior
//
//   - MockGeocoder: returns no places
//   - MockPOISource: returns no POIs
//   - MockProvider: aggregates a mock geocoder and POI source
//
// The mocks are safe for concurrent use; the search engine queries them
// from worker goroutines.
package mock
