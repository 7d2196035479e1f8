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


// Package online provides the network collaborators consulted when the
// local region databases cannot answer a query well enough.
//
// The package defines two small interfaces and production clients for the
// public OpenStreetMap services:
//
//   - Geocoder: free-text lookup, implemented by Photon and Nominatim and
//     combined with Chain so that Nominatim is only asked when Photon fails
//     or finds nothing
//   - POISource: category-filtered lookup inside a bounding box,
//     implemented by Overpass
//
// Every client sets a User-Agent, waits on a rate limiter before each
// request and honors context cancellation. Overpass requests are retried
// with exponential backoff when the server reports overload (429, 502,
// 503, 504).
//
// CachedGeocoder keeps geocoder responses in Redis so repeated queries do
// not hit the public services again.
//
// # Implementation Packages
//
//   - online/mock: call counting test doubles for unit tests
package online
