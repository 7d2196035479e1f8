package mock

import (
	"context"
	"sync"

	"github.com/poiesic/geosearch/core"
)

// MockGeocoder is a test double for online.Geocoder.
type MockGeocoder struct {
	// GeocodeFunc is called by Geocode if set. If nil, Geocode returns no places.
	GeocodeFunc func(ctx context.Context, query string, near *core.Coordinate, limit int) ([]*core.Place, error)

	mu        sync.Mutex
	callCount int
	queries   []string
}

// NewMockGeocoder creates a mock geocoder that returns no places.
func NewMockGeocoder() *MockGeocoder {
	return &MockGeocoder{}
}

// NewStaticGeocoder creates a mock geocoder that always returns places.
func NewStaticGeocoder(places ...*core.Place) *MockGeocoder {
	return &MockGeocoder{
		GeocodeFunc: func(context.Context, string, *core.Coordinate, int) ([]*core.Place, error) {
			return places, nil
		},
	}
}

// Geocode records the call and delegates to GeocodeFunc.
func (m *MockGeocoder) Geocode(ctx context.Context, query string, near *core.Coordinate, limit int) ([]*core.Place, error) {
	m.mu.Lock()
	m.callCount++
	m.queries = append(m.queries, query)
	fn := m.GeocodeFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, query, near, limit)
	}
	return nil, nil
}

// CallCount returns the number of times Geocode was called.
func (m *MockGeocoder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Queries returns the queries seen so far, in call order.
func (m *MockGeocoder) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}

// Reset clears the call history and custom behavior.
func (m *MockGeocoder) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.queries = nil
	m.GeocodeFunc = nil
}
