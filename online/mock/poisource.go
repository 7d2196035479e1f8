package mock

import (
	"context"
	"sync"

	"github.com/poiesic/geosearch/core"
)

// MockPOISource is a test double for online.POISource.
type MockPOISource struct {
	// FindPOIsFunc is called by FindPOIs if set. If nil, FindPOIs returns no POIs.
	FindPOIsFunc func(ctx context.Context, bbox core.BoundingBox, category *core.Category, limit int) ([]*core.POI, error)

	mu        sync.Mutex
	callCount int
	lastBBox  core.BoundingBox
}

// NewMockPOISource creates a mock POI source that returns no POIs.
func NewMockPOISource() *MockPOISource {
	return &MockPOISource{}
}

// FindPOIs records the call and delegates to FindPOIsFunc.
func (m *MockPOISource) FindPOIs(ctx context.Context, bbox core.BoundingBox, category *core.Category, limit int) ([]*core.POI, error) {
	m.mu.Lock()
	m.callCount++
	m.lastBBox = bbox
	fn := m.FindPOIsFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, bbox, category, limit)
	}
	return nil, nil
}

// CallCount returns the number of times FindPOIs was called.
func (m *MockPOISource) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// LastBBox returns the bounding box of the most recent call.
func (m *MockPOISource) LastBBox() core.BoundingBox {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastBBox
}

// Reset clears the call history and custom behavior.
func (m *MockPOISource) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.lastBBox = core.BoundingBox{}
	m.FindPOIsFunc = nil
}
