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
	"github.com/poiesic/geosearch/storage"
)

// CacheIndexRepository implements storage.CacheIndexRepository for BadgerDB.
type CacheIndexRepository struct {
	backend *Backend
	owned   bool
}

var _ storage.CacheIndexRepository = (*CacheIndexRepository)(nil)

// OpenCacheIndex opens or creates the cache index database at path.
func OpenCacheIndex(path string) (*CacheIndexRepository, error) {
	backend, err := OpenBackend(path, false)
	if err != nil {
		return nil, err
	}
	return &CacheIndexRepository{backend: backend, owned: true}, nil
}

// NewCacheIndexRepository creates a new CacheIndexRepository.
func NewCacheIndexRepository(backend *Backend) *CacheIndexRepository {
	return &CacheIndexRepository{
		backend: backend,
	}
}

// Close closes the database when the repository owns it.
func (r *CacheIndexRepository) Close() error {
	if r.owned {
		return r.backend.Close()
	}
	return nil
}

// PutEntry persists the entry for a region, replacing any previous one.
func (r *CacheIndexRepository) PutEntry(ctx context.Context, entry *core.CacheEntry) error {
	if entry.RegionID == "" {
		return core.ErrEmptyRegionID
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeCacheKey(entry.RegionID), storage.MarshalCacheEntry(entry)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetEntry retrieves the entry for a region.
// Returns nil, nil if no entry exists.
func (r *CacheIndexRepository) GetEntry(ctx context.Context, regionID string) (*core.CacheEntry, error) {
	var entry *core.CacheEntry
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		entry, err = readCacheEntry(tx, regionID)
		return err
	}, false)
	return entry, err
}

// DeleteEntry removes the entry for a region.
func (r *CacheIndexRepository) DeleteEntry(ctx context.Context, regionID string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(makeCacheKey(regionID)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// ListEntries returns every entry in region id order.
func (r *CacheIndexRepository) ListEntries(ctx context.Context) ([]*core.CacheEntry, error) {
	var entries []*core.CacheEntry
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(cachePrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := iter.Item().Value(func(val []byte) error {
				entry, err := storage.UnmarshalCacheEntry(val)
				if err != nil {
					return err
				}
				entries = append(entries, entry)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	return entries, err
}

// Touch records an access to a region.
func (r *CacheIndexRepository) Touch(ctx context.Context, regionID string, at time.Time) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		entry, err := readCacheEntry(tx, regionID)
		if err != nil {
			return err
		}
		if entry == nil {
			return fmt.Errorf("%w: cache entry %s", storage.ErrNotFound, regionID)
		}
		entry.LastAccess = at.UTC()
		if err := tx.Set(makeCacheKey(regionID), storage.MarshalCacheEntry(entry)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

func readCacheEntry(tx *badger.Txn, regionID string) (*core.CacheEntry, error) {
	item, err := tx.Get(makeCacheKey(regionID))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}
	var entry *core.CacheEntry
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		entry, unmarshalErr = storage.UnmarshalCacheEntry(val)
		return unmarshalErr
	})
	return entry, err
}
