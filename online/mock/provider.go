// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package mock

import "github.com/poiesic/geosearch/online"

// MockProvider is a test double for online.Provider.
// It aggregates a mock geocoder and POI source.
type MockProvider struct {
	geocoder  *MockGeocoder
	poiSource *MockPOISource
	closed    bool
}

// NewMockProvider creates a new mock provider with default mock services.
//
// Returns online.Provider for consistency with online.NewProvider.
// Use GetMockGeocoder()/GetMockPOISource() to reach the concrete types.
func NewMockProvider() online.Provider {
	return &MockProvider{
		geocoder:  NewMockGeocoder(),
		poiSource: NewMockPOISource(),
	}
}

// NewMockProviderWithServices creates a mock provider over the given mocks.
func NewMockProviderWithServices(geocoder *MockGeocoder, poiSource *MockPOISource) online.Provider {
	return &MockProvider{
		geocoder:  geocoder,
		poiSource: poiSource,
	}
}

// Geocoder returns the mock geocoder.
func (p *MockProvider) Geocoder() online.Geocoder {
	return p.geocoder
}

// POISource returns the mock POI source.
func (p *MockProvider) POISource() online.POISource {
	return p.poiSource
}

// Close marks the provider closed.
func (p *MockProvider) Close() error {
	p.closed = true
	return nil
}

// Closed reports whether Close was called.
func (p *MockProvider) Closed() bool {
	return p.closed
}

// GetMockGeocoder returns the underlying mock geocoder for test assertions.
func (p *MockProvider) GetMockGeocoder() *MockGeocoder {
	return p.geocoder
}

// GetMockPOISource returns the underlying mock POI source for test assertions.
func (p *MockProvider) GetMockPOISource() *MockPOISource {
	return p.poiSource
}
