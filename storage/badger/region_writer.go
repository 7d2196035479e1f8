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
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/geosearch/core"
	"github.com/poiesic/geosearch/spatial"
	"github.com/poiesic/geosearch/storage"
)

// RegionWriter implements storage.RegionWriter for BadgerDB.
//
// Places and POIs are streamed into a write batch as they arrive. Postings
// and spatial items are accumulated in memory and written by Finalize.
type RegionWriter struct {
	backend   *Backend
	owned     bool
	batch     *badger.WriteBatch
	docs      map[core.SourceID]uint32
	pois      map[uint32]struct{}
	postings  map[string][]storage.Posting
	items     []spatial.Item
	lengthSum float64
	finalized bool
}

var _ storage.RegionWriter = (*RegionWriter)(nil)

// CreateRegion opens a new region database at path for writing. The
// returned writer owns the database and closes it on Close.
func CreateRegion(path string) (*RegionWriter, error) {
	backend, err := OpenBackend(path, false)
	if err != nil {
		return nil, err
	}
	w := NewRegionWriter(backend)
	w.owned = true
	return w, nil
}

// NewRegionWriter creates a writer on an existing backend. The backend
// must be empty.
func NewRegionWriter(backend *Backend) *RegionWriter {
	return &RegionWriter{
		backend:  backend,
		batch:    backend.NewWriteBatch(),
		docs:     make(map[core.SourceID]uint32),
		pois:     make(map[uint32]struct{}),
		postings: make(map[string][]storage.Posting),
	}
}

// AddPlace stores a place and records its postings.
func (w *RegionWriter) AddPlace(ctx context.Context, place *core.Place) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if w.finalized {
		return storage.ErrFinalized
	}
	if err := core.ValidatePlace(place); err != nil {
		return err
	}
	if _, exists := w.docs[place.ID]; exists {
		return fmt.Errorf("%w: %s", storage.ErrDuplicateKey, place.ID)
	}

	doc := uint32(len(w.docs))
	if err := w.batch.Set(makeDocKey(doc), storage.MarshalPlace(place)); err != nil {
		return err
	}
	if err := w.batch.Set(makeSourceKey(place.ID), encodeDoc(doc)); err != nil {
		return err
	}
	w.docs[place.ID] = doc

	freqs, length := fieldTerms(place)
	for term, freq := range freqs {
		w.postings[term] = append(w.postings[term], storage.Posting{Doc: doc, Freq: freq, Length: length})
	}
	w.lengthSum += length
	return nil
}

// AddPOI stores a POI under the document number of its place.
func (w *RegionWriter) AddPOI(ctx context.Context, poi *core.POI) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if w.finalized {
		return storage.ErrFinalized
	}
	if err := core.ValidatePOI(poi); err != nil {
		return err
	}
	doc, ok := w.docs[poi.ID]
	if !ok {
		return fmt.Errorf("%w: no place for poi %s", storage.ErrNotFound, poi.ID)
	}
	if _, exists := w.pois[doc]; exists {
		return fmt.Errorf("%w: poi %s", storage.ErrDuplicateKey, poi.ID)
	}

	if err := w.batch.Set(makePOIKey(doc), storage.MarshalPOI(poi)); err != nil {
		return err
	}
	w.pois[doc] = struct{}{}
	w.items = append(w.items, spatial.Item{
		X:   poi.Coordinate.Lon,
		Y:   poi.Coordinate.Lat,
		Ref: doc,
		Tag: uint8(poi.Category),
	})
	return nil
}

// Finalize writes postings, the packed R-tree and the region meta, then
// flushes everything to disk.
func (w *RegionWriter) Finalize(ctx context.Context, meta core.RegionMeta) (*core.RegionMeta, error) {
	if w.finalized {
		return nil, storage.ErrFinalized
	}
	if meta.RegionID == "" {
		return nil, core.ErrEmptyRegionID
	}

	for term, postings := range w.postings {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := w.batch.Set(makeTermKey(term), storage.MarshalPostings(postings)); err != nil {
			return nil, err
		}
	}

	tree := spatial.Build(w.items, spatial.DefaultCapacity)
	for id, node := range tree.Nodes {
		if err := w.batch.Set(makeNodeKey(uint32(id)), spatial.MarshalNode(node)); err != nil {
			return nil, err
		}
	}

	meta.SchemaVersion = core.SchemaVersion
	meta.PlaceCount = len(w.docs)
	meta.POICount = len(w.pois)
	meta.AvgDocLength = 0
	if len(w.docs) > 0 {
		meta.AvgDocLength = w.lengthSum / float64(len(w.docs))
	}
	meta.SpatialRoot = tree.Root
	meta.SpatialHeight = tree.Height
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}
	if err := w.batch.Set([]byte(metaKey), storage.MarshalRegionMeta(&meta)); err != nil {
		return nil, err
	}

	if err := w.batch.Flush(); err != nil {
		return nil, err
	}
	w.finalized = true
	w.postings = nil
	w.items = nil
	return &meta, nil
}

// Close discards unflushed writes and, for databases opened by
// CreateRegion, closes the database.
func (w *RegionWriter) Close() error {
	if !w.finalized {
		w.batch.Cancel()
	}
	if w.owned {
		return w.backend.Close()
	}
	return nil
}
