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


package badger

import (
	"context"

	"github.com/poiesic/geosearch/core"
)

// NewMemoryRegion builds an in-memory region database from places and POIs
// for testing. Every POI must have a matching place.
// The returned reader owns the database; caller must close it when done.
func NewMemoryRegion(ctx context.Context, meta core.RegionMeta, places []*core.Place, pois []*core.POI) (*RegionReader, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, err
	}

	w := NewRegionWriter(backend)
	for _, p := range places {
		if err := w.AddPlace(ctx, p); err != nil {
			w.Close()
			backend.Close()
			return nil, err
		}
	}
	for _, p := range pois {
		if err := w.AddPOI(ctx, p); err != nil {
			w.Close()
			backend.Close()
			return nil, err
		}
	}
	if _, err := w.Finalize(ctx, meta); err != nil {
		w.Close()
		backend.Close()
		return nil, err
	}

	r, err := NewRegionReader(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	r.owned = true
	return r, nil
}

// NewMemoryCacheIndex creates an in-memory cache index for testing.
// The repository owns the database; caller must close it when done.
func NewMemoryCacheIndex() (*CacheIndexRepository, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, err
	}
	return &CacheIndexRepository{backend: backend, owned: true}, nil
}
