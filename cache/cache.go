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


// Package cache keeps downloaded region databases on local storage.
//
// Installed databases live under <root>/regions/<region>/<version> and are
// tracked in a BadgerDB index at <root>/index. Databases are opened
// read-only on first use and pinned by reference counted handles; a pinned
// database is never removed, whether it is being replaced by a newer
// version or evicted to stay under the byte quota.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/poiesic/geosearch/core"
	"github.com/poiesic/geosearch/storage"
	"github.com/poiesic/geosearch/storage/badger"
	"golang.org/x/sync/singleflight"
)

const (
	regionsDir       = "regions"
	indexDir         = "index"
	defaultSyncLimit = 4
)

// Catalog lists downloadable regions and serves their artifacts.
type Catalog interface {
	ListAvailable(ctx context.Context) ([]core.CatalogEntry, error)
	Fetch(ctx context.Context, entry core.CatalogEntry) (io.ReadCloser, error)
}

// Cache manages installed region databases.
type Cache struct {
	root      string
	quota     int64
	catalog   Catalog
	index     storage.CacheIndexRepository
	ownsIndex bool
	syncLimit int
	now       func() time.Time
	logger    *slog.Logger
	monitor   Monitor

	installs singleflight.Group

	mu      sync.Mutex
	regions map[string]*openRegion
	retired map[*openRegion]struct{}
	closed  bool
}

var _ storage.RegionProvider = (*Cache)(nil)

// openRegion is an installed database opened for reading.
type openRegion struct {
	entry   core.CacheEntry
	reader  *badger.RegionReader
	refs    int
	retired bool
	closed  bool
}

func (r *openRegion) close(logger *slog.Logger) {
	if r.closed {
		return
	}
	r.closed = true
	if err := r.reader.Close(); err != nil {
		logger.Error("error closing region", "region", r.entry.RegionID, "version", r.entry.Version, "err", err)
	}
}

// Option configures a Cache.
type Option func(*Cache) error

// WithCatalog sets the catalog used by EnsureLocal and SyncAll.
func WithCatalog(catalog Catalog) Option {
	return func(c *Cache) error {
		c.catalog = catalog
		return nil
	}
}

// WithQuota sets the byte quota enforced by Evict. Zero disables eviction.
func WithQuota(bytes int64) Option {
	return func(c *Cache) error {
		if bytes < 0 {
			return fmt.Errorf("cache quota must not be negative: %d", bytes)
		}
		c.quota = bytes
		return nil
	}
}

// WithIndex sets the cache index. The cache does not close an index it
// was given.
func WithIndex(index storage.CacheIndexRepository) Option {
	return func(c *Cache) error {
		c.index = index
		return nil
	}
}

// WithSyncLimit bounds the number of concurrent installs in SyncAll.
func WithSyncLimit(n int) Option {
	return func(c *Cache) error {
		if n <= 0 {
			return fmt.Errorf("sync limit must be positive: %d", n)
		}
		c.syncLimit = n
		return nil
	}
}

// WithClock sets the time source for access times.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) error {
		if now != nil {
			c.now = now
		}
		return nil
	}
}

// WithMonitor sets the monitor notified of installs and evictions.
func WithMonitor(m Monitor) Option {
	return func(c *Cache) error {
		if m != nil {
			c.monitor = m
		}
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// New opens the cache rooted at root, creating it if needed. Leftovers of
// interrupted installs and versions no longer referenced by the index are
// removed.
func New(root string, opts ...Option) (*Cache, error) {
	if root == "" {
		return nil, ErrRootRequired
	}
	c := &Cache{
		root:      root,
		syncLimit: defaultSyncLimit,
		now:       time.Now,
		logger:    slog.Default(),
		monitor:   noopMonitor{},
		regions:   make(map[string]*openRegion),
		retired:   make(map[*openRegion]struct{}),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(filepath.Join(root, regionsDir), 0755); err != nil {
		return nil, err
	}
	if c.index == nil {
		index, err := badger.OpenCacheIndex(filepath.Join(root, indexDir))
		if err != nil {
			return nil, err
		}
		c.index = index
		c.ownsIndex = true
	}

	if err := c.sweep(context.Background()); err != nil {
		c.logger.Warn("cache sweep failed", "root", root, "err", err)
	}
	return c, nil
}

// Root returns the cache directory.
func (c *Cache) Root() string {
	return c.root
}

// sweep drops index entries whose database is gone and removes directories
// the index does not reference.
func (c *Cache) sweep(ctx context.Context) error {
	entries, err := c.index.ListEntries(ctx)
	if err != nil {
		return err
	}
	current := make(map[string]string, len(entries))
	for _, e := range entries {
		if _, err := os.Stat(e.Path); err != nil {
			c.logger.Warn("dropping cache entry without database", "region", e.RegionID, "path", e.Path)
			if err := c.index.DeleteEntry(ctx, e.RegionID); err != nil {
				return err
			}
			continue
		}
		current[e.RegionID] = e.Version
	}

	dirs, err := os.ReadDir(filepath.Join(c.root, regionsDir))
	if err != nil {
		return err
	}
	for _, d := range dirs {
		regionDir := filepath.Join(c.root, regionsDir, d.Name())
		version, ok := current[d.Name()]
		if !ok {
			c.logger.Info("removing unindexed region", "path", regionDir)
			if err := os.RemoveAll(regionDir); err != nil {
				return err
			}
			continue
		}
		children, err := os.ReadDir(regionDir)
		if err != nil {
			return err
		}
		for _, child := range children {
			if child.Name() == version {
				continue
			}
			stale := filepath.Join(regionDir, child.Name())
			c.logger.Info("removing stale region data", "path", stale)
			if err := os.RemoveAll(stale); err != nil {
				return err
			}
		}
	}
	return nil
}

// handle pins an open region until Release.
type handle struct {
	cache  *Cache
	region *openRegion
	used   atomic.Bool
	once   sync.Once
}

var _ storage.RegionHandle = (*handle)(nil)

func (h *handle) Meta() core.RegionMeta {
	return h.region.reader.Meta()
}

func (h *handle) Reader() storage.RegionReader {
	h.used.Store(true)
	return h.region.reader
}

func (h *handle) Release() {
	h.once.Do(func() {
		h.cache.release(h.region, h.used.Load())
	})
}

// Acquire pins the installed database of a region and counts as a use for
// eviction. Returns ErrNotInstalled when the region has no database.
func (c *Cache) Acquire(ctx context.Context, regionID string) (storage.RegionHandle, error) {
	h, err := c.acquire(ctx, regionID)
	if err != nil {
		return nil, err
	}
	h.used.Store(true)
	return h, nil
}

func (c *Cache) acquire(ctx context.Context, regionID string) (*handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}

	r, ok := c.regions[regionID]
	if !ok {
		entry, err := c.index.GetEntry(ctx, regionID)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			return nil, fmt.Errorf("%w: %s", ErrNotInstalled, regionID)
		}
		reader, err := badger.OpenRegion(entry.Path)
		if err != nil {
			return nil, fmt.Errorf("open region %s: %w", regionID, err)
		}
		r = &openRegion{entry: *entry, reader: reader}
		c.regions[regionID] = r
	}
	r.refs++
	return &handle{cache: c, region: r}, nil
}

func (c *Cache) release(r *openRegion, used bool) {
	c.mu.Lock()
	r.refs--
	if r.refs == 0 && r.retired {
		c.disposeLocked(r)
	}
	skip := c.closed || r.retired
	c.mu.Unlock()

	if !used || skip {
		return
	}
	if err := c.index.Touch(context.Background(), r.entry.RegionID, c.now()); err != nil {
		c.logger.Debug("failed to record region access", "region", r.entry.RegionID, "err", err)
	}
}

// disposeLocked closes a retired region and removes its files.
func (c *Cache) disposeLocked(r *openRegion) {
	delete(c.retired, r)
	r.close(c.logger)
	if err := os.RemoveAll(r.entry.Path); err != nil {
		c.logger.Error("failed to remove retired region", "path", r.entry.Path, "err", err)
		return
	}
	c.logger.Info("removed retired region", "region", r.entry.RegionID, "version", r.entry.Version)
}

// Snapshot pins every installed region. Regions that cannot be opened are
// logged and skipped. Callers must release every handle.
func (c *Cache) Snapshot(ctx context.Context) ([]storage.RegionHandle, error) {
	entries, err := c.index.ListEntries(ctx)
	if err != nil {
		return nil, err
	}
	handles := make([]storage.RegionHandle, 0, len(entries))
	releaseAll := func() {
		for _, h := range handles {
			h.Release()
		}
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			releaseAll()
			return nil, err
		}
		h, err := c.acquire(ctx, e.RegionID)
		if err != nil {
			if errors.Is(err, ErrClosed) {
				releaseAll()
				return nil, err
			}
			c.logger.Warn("skipping unreadable region", "region", e.RegionID, "err", err)
			continue
		}
		handles = append(handles, h)
	}
	return handles, nil
}

// Entries returns the installed regions ordered by region id.
func (c *Cache) Entries(ctx context.Context) ([]core.CacheEntry, error) {
	entries, err := c.index.ListEntries(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.CacheEntry, len(entries))
	for i, e := range entries {
		out[i] = *e
	}
	return out, nil
}

// Remove uninstalls a region. Returns ErrPinned while the region is in use.
func (c *Cache) Remove(ctx context.Context, regionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	entry, err := c.index.GetEntry(ctx, regionID)
	if err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("%w: %s", ErrNotInstalled, regionID)
	}
	if r, ok := c.regions[regionID]; ok && r.refs > 0 {
		return fmt.Errorf("%w: %s", ErrPinned, regionID)
	}
	return c.removeLocked(ctx, entry)
}

func (c *Cache) removeLocked(ctx context.Context, entry *core.CacheEntry) error {
	if err := c.index.DeleteEntry(ctx, entry.RegionID); err != nil {
		return err
	}
	if r, ok := c.regions[entry.RegionID]; ok {
		delete(c.regions, entry.RegionID)
		r.close(c.logger)
	}
	if err := os.RemoveAll(entry.Path); err != nil {
		return err
	}
	// Fails while retired versions are still pinned; they remove themselves.
	os.Remove(filepath.Dir(entry.Path))
	return nil
}

// Evict removes least recently used regions until the installed size is
// within quota. Pinned regions are skipped. Returns the evicted region ids.
func (c *Cache) Evict(ctx context.Context) ([]string, error) {
	return c.evict(ctx, "")
}

func (c *Cache) evict(ctx context.Context, keep string) ([]string, error) {
	if c.quota <= 0 {
		return nil, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}

	entries, err := c.index.ListEntries(ctx)
	if err != nil {
		return nil, err
	}
	var total int64
	for _, e := range entries {
		total += e.SizeBytes
	}
	slices.SortStableFunc(entries, func(a, b *core.CacheEntry) int {
		return a.LastAccess.Compare(b.LastAccess)
	})

	var evicted []string
	for _, e := range entries {
		if total <= c.quota {
			break
		}
		if e.RegionID == keep {
			continue
		}
		if r, ok := c.regions[e.RegionID]; ok && r.refs > 0 {
			continue
		}
		if err := c.removeLocked(ctx, e); err != nil {
			return evicted, err
		}
		total -= e.SizeBytes
		evicted = append(evicted, e.RegionID)
		c.monitor.OnEvict(e.RegionID, e.SizeBytes)
		c.logger.Info("evicted region", "region", e.RegionID, "version", e.Version, "size", e.SizeBytes)
	}
	if total > c.quota {
		c.logger.Warn("cache over quota", "size", total, "quota", c.quota)
	}
	return evicted, nil
}

// Close closes every open database and the index. Handles still pinned
// become unusable.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	for id, r := range c.regions {
		if r.refs > 0 {
			c.logger.Warn("closing cache with pinned region", "region", id, "refs", r.refs)
		}
		r.close(c.logger)
	}
	for r := range c.retired {
		r.close(c.logger)
	}
	clear(c.regions)

	if c.ownsIndex {
		return c.index.Close()
	}
	return nil
}

func dirSize(dir string) (int64, error) {
	var size int64
	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		size += info.Size()
		return nil
	})
	return size, err
}
