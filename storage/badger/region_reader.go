package badger

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/geosearch/core"
	"github.com/poiesic/geosearch/spatial"
	"github.com/poiesic/geosearch/storage"
	"github.com/poiesic/geosearch/textnorm"
)

// RegionReader implements storage.RegionReader for BadgerDB.
type RegionReader struct {
	backend *Backend
	owned   bool
	meta    core.RegionMeta
	nodes   sync.Map // uint32 -> *spatial.Node; region databases never change
}

var _ storage.RegionReader = (*RegionReader)(nil)

// OpenRegion opens a finalized region database read-only. The returned
// reader owns the database and closes it on Close.
func OpenRegion(path string) (*RegionReader, error) {
	backend, err := OpenReadOnlyBackend(path)
	if err != nil {
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

// NewRegionReader creates a reader on a backend holding a finalized region.
// Returns storage.ErrNotFound when the region was never finalized and
// storage.ErrSchemaMismatch when it was written by another schema version.
func NewRegionReader(backend *Backend) (*RegionReader, error) {
	var meta *core.RegionMeta
	err := backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(metaKey))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return fmt.Errorf("%w: region meta", storage.ErrNotFound)
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var unmarshalErr error
			meta, unmarshalErr = storage.UnmarshalRegionMeta(val)
			return unmarshalErr
		})
	}, false)
	if err != nil {
		return nil, err
	}
	if meta.SchemaVersion != core.SchemaVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", storage.ErrSchemaMismatch, meta.SchemaVersion, core.SchemaVersion)
	}
	return &RegionReader{backend: backend, meta: *meta}, nil
}

// Meta returns the region metadata.
func (r *RegionReader) Meta() core.RegionMeta {
	return r.meta
}

// Close closes the database when the reader owns it.
func (r *RegionReader) Close() error {
	if r.owned {
		return r.backend.Close()
	}
	return nil
}

type scoredDoc struct {
	doc   uint32
	score float64
}

// SearchText runs a BM25 query with prefix matching. Every query term must
// match; a term's score in a document is its best scoring expansion.
func (r *RegionReader) SearchText(ctx context.Context, query string, limit int) ([]core.Result, error) {
	if r.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidQuery)
	}
	terms := textnorm.QueryTerms(query)
	if len(terms) == 0 || r.meta.PlaceCount == 0 {
		return nil, nil
	}

	var results []core.Result
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var acc map[uint32]float64
		for _, term := range terms {
			scores, err := r.termScores(ctx, tx, term, acc)
			if err != nil {
				return err
			}
			if acc == nil {
				acc = scores
			} else {
				for doc := range acc {
					s, ok := scores[doc]
					if !ok {
						delete(acc, doc)
						continue
					}
					acc[doc] += s
				}
			}
			if len(acc) == 0 {
				return nil
			}
		}

		ranked := make([]scoredDoc, 0, len(acc))
		for doc, score := range acc {
			ranked = append(ranked, scoredDoc{doc: doc, score: score})
		}
		slices.SortFunc(ranked, func(a, b scoredDoc) int {
			if c := cmp.Compare(b.score, a.score); c != 0 {
				return c
			}
			return cmp.Compare(a.doc, b.doc)
		})
		if len(ranked) > limit {
			ranked = ranked[:limit]
		}

		results = make([]core.Result, 0, len(ranked))
		for _, sd := range ranked {
			place, err := readPlace(tx, makeDocKey(sd.doc))
			if err != nil {
				return err
			}
			results = append(results, core.Result{
				Place:      *place,
				Score:      sd.score,
				Provenance: core.ProvenanceOffline,
				RegionID:   r.meta.RegionID,
			})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// termScores scores every document containing term or a term it prefixes.
// A non-nil admitted restricts scoring to documents already matched by the
// earlier query terms; every expansion is still visited.
func (r *RegionReader) termScores(ctx context.Context, tx *badger.Txn, term string, admitted map[uint32]float64) (map[uint32]float64, error) {
	exact := makeTermKey(term)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = exact
	iter := tx.NewIterator(opts)
	defer iter.Close()

	scores := make(map[uint32]float64)
	for iter.Rewind(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		item := iter.Item()
		weight := prefixMatchWeight
		if bytes.Equal(item.Key(), exact) {
			weight = 1
		}

		var postings []storage.Posting
		err := item.Value(func(val []byte) error {
			var err error
			postings, err = storage.UnmarshalPostings(val)
			return err
		})
		if err != nil {
			return nil, err
		}

		termIDF := idf(r.meta.PlaceCount, len(postings))
		for _, p := range postings {
			if admitted != nil {
				if _, ok := admitted[p.Doc]; !ok {
					continue
				}
			}
			s := weight * bm25(termIDF, p.Freq, p.Length, r.meta.AvgDocLength)
			if s > scores[p.Doc] {
				scores[p.Doc] = s
			}
		}
	}
	return scores, nil
}

// SearchBBox runs an R-tree range query and orders hits by distance from
// the center of bbox.
func (r *RegionReader) SearchBBox(ctx context.Context, bbox core.BoundingBox, category *core.Category, limit int) ([]core.POIResult, error) {
	if r.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidQuery)
	}
	if err := core.ValidateBounds(bbox); err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrInvalidQuery, err)
	}
	if r.meta.POICount == 0 || !bbox.Intersects(r.meta.Bounds) {
		return nil, nil
	}

	query := spatial.Rect{MinX: bbox.MinLon, MinY: bbox.MinLat, MaxX: bbox.MaxLon, MaxY: bbox.MaxLat}
	center := bbox.Center()

	var results []core.POIResult
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var docs []uint32
		nodes := &txNodeReader{tx: tx, cache: &r.nodes}
		err := spatial.Search(ctx, nodes, r.meta.SpatialRoot, query, func(e spatial.Entry) bool {
			if category == nil || e.Tag == uint8(*category) {
				docs = append(docs, e.Ref)
			}
			return true
		})
		if err != nil {
			return err
		}

		results = make([]core.POIResult, 0, len(docs))
		for _, doc := range docs {
			poi, err := readPOI(tx, makePOIKey(doc))
			if err != nil {
				return err
			}
			results = append(results, core.POIResult{
				POI:            *poi,
				DistanceMeters: center.DistanceTo(poi.Coordinate),
				Provenance:     core.ProvenanceOffline,
				RegionID:       r.meta.RegionID,
			})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(results, func(a, b core.POIResult) int {
		return cmp.Compare(a.DistanceMeters, b.DistanceMeters)
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// GetPlace retrieves a place by source id.
func (r *RegionReader) GetPlace(ctx context.Context, id core.SourceID) (*core.Place, error) {
	var place *core.Place
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		doc, err := lookupDoc(tx, id)
		if err != nil {
			return err
		}
		place, err = readPlace(tx, makeDocKey(doc))
		return err
	}, false)
	return place, err
}

// GetPOI retrieves a POI by source id.
func (r *RegionReader) GetPOI(ctx context.Context, id core.SourceID) (*core.POI, error) {
	var poi *core.POI
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		doc, err := lookupDoc(tx, id)
		if err != nil {
			return err
		}
		poi, err = readPOI(tx, makePOIKey(doc))
		return err
	}, false)
	return poi, err
}

func lookupDoc(tx *badger.Txn, id core.SourceID) (uint32, error) {
	item, err := tx.Get(makeSourceKey(id))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return 0, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
		}
		return 0, err
	}
	var doc uint32
	err = item.Value(func(val []byte) error {
		var decodeErr error
		doc, decodeErr = decodeDoc(val)
		return decodeErr
	})
	return doc, err
}

func readPlace(tx *badger.Txn, key []byte) (*core.Place, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	var place *core.Place
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		place, unmarshalErr = storage.UnmarshalPlace(val)
		return unmarshalErr
	})
	return place, err
}

func readPOI(tx *badger.Txn, key []byte) (*core.POI, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	var poi *core.POI
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		poi, unmarshalErr = storage.UnmarshalPOI(val)
		return unmarshalErr
	})
	return poi, err
}

// txNodeReader loads R-tree nodes inside a read transaction, memoizing
// decoded nodes in the reader's cache.
type txNodeReader struct {
	tx    *badger.Txn
	cache *sync.Map
}

var _ spatial.NodeReader = (*txNodeReader)(nil)

func (n *txNodeReader) Node(id uint32) (*spatial.Node, error) {
	if cached, ok := n.cache.Load(id); ok {
		return cached.(*spatial.Node), nil
	}
	item, err := n.tx.Get(makeNodeKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, spatial.ErrNodeNotFound
		}
		return nil, err
	}
	var node *spatial.Node
	err = item.Value(func(val []byte) error {
		var decodeErr error
		node, decodeErr = spatial.UnmarshalNode(val)
		return decodeErr
	})
	if err != nil {
		return nil, err
	}
	n.cache.Store(id, node)
	return node, nil
}
