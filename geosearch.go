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


// Package geosearch wires the region cache, the online collaborators and
// the query engine into one explicitly owned Engine.
package geosearch

import (
	"context"
	"errors"
	"log/slog"

	"github.com/poiesic/geosearch/cache"
	"github.com/poiesic/geosearch/catalog"
	"github.com/poiesic/geosearch/config"
	"github.com/poiesic/geosearch/core"
	"github.com/poiesic/geosearch/metrics"
	"github.com/poiesic/geosearch/online"
	"github.com/poiesic/geosearch/search"
	"github.com/redis/go-redis/v9"
)

// Engine owns a region cache and answers searches over it. Close releases
// everything it opened.
type Engine struct {
	cache    *cache.Cache
	catalog  cache.Catalog
	provider online.Provider
	redis    *redis.Client
	search   *search.Engine
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*options)

type options struct {
	catalog  cache.Catalog
	provider online.Provider
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// WithCatalog overrides the catalog built from the configured URL.
func WithCatalog(c cache.Catalog) Option {
	return func(o *options) {
		o.catalog = c
	}
}

// WithProvider overrides the online provider built from the configuration.
// The engine closes it on Close.
func WithProvider(p online.Provider) Option {
	return func(o *options) {
		o.provider = p
	}
}

// WithMetrics reports cache and search activity to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithLogger sets the logger for every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Open opens the cache under cfg.CacheDir and builds the engine.
func Open(cfg *config.Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	e := &Engine{logger: o.logger}
	ok := false
	defer func() {
		if !ok {
			e.Close()
		}
	}()

	e.catalog = o.catalog
	if e.catalog == nil && cfg.CatalogURL != "" {
		client, err := catalog.NewClient(cfg.CatalogURL,
			catalog.WithUserAgent(cfg.Online.UserAgent),
			catalog.WithLogger(o.logger))
		if err != nil {
			return nil, err
		}
		e.catalog = client
	}

	cacheOpts := []cache.Option{cache.WithQuota(cfg.CacheQuota), cache.WithLogger(o.logger)}
	if e.catalog != nil {
		cacheOpts = append(cacheOpts, cache.WithCatalog(e.catalog))
	}
	if o.metrics != nil {
		cacheOpts = append(cacheOpts, cache.WithMonitor(o.metrics))
	}
	c, err := cache.New(cfg.CacheDir, cacheOpts...)
	if err != nil {
		return nil, err
	}
	e.cache = c

	e.provider = o.provider
	if e.provider == nil && cfg.Online.Enabled {
		p, err := online.NewProvider(cfg.OnlineClientConfig(), online.WithLogger(o.logger))
		if err != nil {
			return nil, err
		}
		e.provider = p
	}

	searchOpts := []search.Option{
		search.WithSufficiencyThreshold(cfg.Search.SufficiencyThreshold),
		search.WithDedupTolerance(cfg.Search.DedupTolerance),
		search.WithOnlineTimeout(cfg.Search.OnlineTimeout),
		search.WithLogger(o.logger),
	}
	if cfg.Search.PoolSize > 0 {
		searchOpts = append(searchOpts, search.WithPoolSize(cfg.Search.PoolSize))
	}
	if o.metrics != nil {
		searchOpts = append(searchOpts, search.WithMonitor(o.metrics))
	}
	if e.provider != nil {
		searchOpts = append(searchOpts, search.WithPOISource(e.provider.POISource()))
		if geocoder := e.provider.Geocoder(); geocoder != nil {
			if cfg.Redis.Addr != "" {
				e.redis = redis.NewClient(&redis.Options{
					Addr:     cfg.Redis.Addr,
					Password: cfg.Redis.Password,
					DB:       cfg.Redis.DB,
				})
				geocoder = online.NewCachedGeocoder(geocoder, e.redis, cfg.Redis.TTL, o.logger)
			}
			searchOpts = append(searchOpts, search.WithGeocoder(geocoder))
		}
	}
	engine, err := search.NewEngine(e.cache, searchOpts...)
	if err != nil {
		return nil, err
	}
	e.search = engine

	ok = true
	return e, nil
}

// SearchText resolves a free-text place or address query.
func (e *Engine) SearchText(ctx context.Context, query string, near *core.Coordinate, limit int) (*search.Response[core.Result], error) {
	return e.search.SearchText(ctx, query, near, limit)
}

// SearchNearby returns POIs inside bbox, optionally of one category.
func (e *Engine) SearchNearby(ctx context.Context, bbox core.BoundingBox, category *core.Category, limit int) (*search.Response[core.POIResult], error) {
	return e.search.SearchNearby(ctx, bbox, category, limit)
}

// EnsureRegion installs the current catalog version of a region if needed.
func (e *Engine) EnsureRegion(ctx context.Context, regionID string) (core.CacheEntry, error) {
	return e.cache.EnsureLocal(ctx, regionID)
}

// Sync installs the current version of every catalog region.
func (e *Engine) Sync(ctx context.Context) ([]core.CacheEntry, error) {
	return e.cache.SyncAll(ctx)
}

// Installed lists the installed regions.
func (e *Engine) Installed(ctx context.Context) ([]core.CacheEntry, error) {
	return e.cache.Entries(ctx)
}

// Available lists the regions offered by the catalog.
func (e *Engine) Available(ctx context.Context) ([]core.CatalogEntry, error) {
	if e.catalog == nil {
		return nil, cache.ErrCatalogRequired
	}
	return e.catalog.ListAvailable(ctx)
}

// RemoveRegion uninstalls a region.
func (e *Engine) RemoveRegion(ctx context.Context, regionID string) error {
	return e.cache.Remove(ctx, regionID)
}

// Cache returns the underlying region cache.
func (e *Engine) Cache() *cache.Cache {
	return e.cache
}

// Search returns the underlying query engine.
func (e *Engine) Search() *search.Engine {
	return e.search
}

// Close shuts down the query engine, the online provider, the Redis client
// and the cache, in that order.
func (e *Engine) Close() error {
	var errs []error
	if e.search != nil {
		e.search.Close()
	}
	if e.provider != nil {
		if err := e.provider.Close(); err != nil {
			e.logger.Error("error closing online provider", "err", err)
			errs = append(errs, err)
		}
	}
	if e.redis != nil {
		if err := e.redis.Close(); err != nil {
			e.logger.Error("error closing redis client", "err", err)
			errs = append(errs, err)
		}
	}
	if e.cache != nil {
		if err := e.cache.Close(); err != nil {
			e.logger.Error("error closing region cache", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
