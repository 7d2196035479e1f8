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


// Package httpapi exposes the search engine over HTTP with gin.
//
// Routes:
//
//	GET    /v1/search?q=&lat=&lon=&limit=
//	GET    /v1/nearby?lat=&lon=&radius=&category=&q=&bbox=&limit=
//	GET    /v1/regions             installed regions
//	GET    /v1/regions/available   regions offered by the catalog
//	POST   /v1/regions/sync        install every catalog region
//	PUT    /v1/regions/:id         install one region
//	DELETE /v1/regions/:id         uninstall one region
//	GET    /healthz
//	GET    /metrics
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/poiesic/geosearch/core"
	"github.com/poiesic/geosearch/metrics"
	"github.com/poiesic/geosearch/search"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

// Backend is the engine surface served over HTTP. *geosearch.Engine
// implements it.
type Backend interface {
	SearchText(ctx context.Context, query string, near *core.Coordinate, limit int) (*search.Response[core.Result], error)
	SearchNearby(ctx context.Context, bbox core.BoundingBox, category *core.Category, limit int) (*search.Response[core.POIResult], error)
	EnsureRegion(ctx context.Context, regionID string) (core.CacheEntry, error)
	Sync(ctx context.Context) ([]core.CacheEntry, error)
	Installed(ctx context.Context) ([]core.CacheEntry, error)
	Available(ctx context.Context) ([]core.CatalogEntry, error)
	RemoveRegion(ctx context.Context, regionID string) error
}

// Server routes HTTP requests to a Backend.
type Server struct {
	backend  Backend
	router   *gin.Engine
	gatherer prometheus.Gatherer
	limiter  *IPRateLimiter
	admin    bool
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server) error

// WithGatherer serves /metrics from g instead of the default gatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) error {
		s.gatherer = g
		return nil
	}
}

// WithRateLimit limits each client IP to r requests per second.
func WithRateLimit(r float64, burst int) Option {
	return func(s *Server) error {
		if r > 0 {
			s.limiter = NewIPRateLimiter(rate.Limit(r), burst, s.logger)
		}
		return nil
	}
}

// WithAdmin enables the region mutation routes (sync, install, remove).
func WithAdmin(enabled bool) Option {
	return func(s *Server) error {
		s.admin = enabled
		return nil
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// New builds the router for backend.
func New(backend Backend, opts ...Option) (*Server, error) {
	s := &Server{
		backend: backend,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), RequestLogger(s.logger))
	if s.limiter != nil {
		r.Use(s.limiter.RateLimit())
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler(s.gatherer)))

	v1 := r.Group("/v1")
	v1.GET("/search", s.searchText)
	v1.GET("/nearby", s.searchNearby)
	v1.GET("/regions", s.listInstalled)
	v1.GET("/regions/available", s.listAvailable)
	if s.admin {
		v1.POST("/regions/sync", s.syncRegions)
		v1.PUT("/regions/:id", s.installRegion)
		v1.DELETE("/regions/:id", s.removeRegion)
	}

	s.router = r
	return s, nil
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}
