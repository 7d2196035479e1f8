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


// Package catalog lists the region databases published by a remote
// manifest and fetches their artifacts.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/poiesic/geosearch/core"
)

const (
	manifestTimeout  = 30 * time.Second
	maxManifestBytes = 16 << 20
	defaultUserAgent = "geosearch/1.0"
)

// Client reads a region manifest over HTTP(S) or from a file:// URL.
type Client struct {
	manifestURL *url.URL
	httpClient  *http.Client
	userAgent   string
	logger      *slog.Logger
}

// Option configures a Client.
type Option func(*Client) error

// WithHTTPClient sets the HTTP client used for manifests and artifacts.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) error {
		if c != nil {
			cl.httpClient = c
		}
		return nil
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(cl *Client) error {
		if ua != "" {
			cl.userAgent = ua
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) error {
		if logger == nil {
			logger = slog.Default()
		}
		cl.logger = logger
		return nil
	}
}

// NewClient creates a catalog client for the manifest at manifestURL.
func NewClient(manifestURL string, opts ...Option) (*Client, error) {
	if manifestURL == "" {
		return nil, ErrManifestURLRequired
	}
	u, err := url.Parse(manifestURL)
	if err != nil {
		return nil, fmt.Errorf("invalid manifest URL: %w", err)
	}
	switch u.Scheme {
	case "http", "https", "file":
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}

	c := &Client{
		manifestURL: u,
		httpClient:  &http.Client{},
		userAgent:   defaultUserAgent,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ListAvailable fetches the manifest and returns its regions. Malformed
// regions are skipped and logged. Every error wraps ErrCatalogUnavailable.
func (c *Client) ListAvailable(ctx context.Context) ([]core.CatalogEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, manifestTimeout)
	defer cancel()

	body, err := c.open(ctx, c.manifestURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}
	defer body.Close()

	var m Manifest
	if err := json.NewDecoder(io.LimitReader(body, maxManifestBytes)).Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: decode manifest: %w", ErrCatalogUnavailable, err)
	}
	if m.SchemaVersion != 0 && m.SchemaVersion != core.SchemaVersion {
		return nil, fmt.Errorf("%w: %w: got %d, want %d",
			ErrCatalogUnavailable, ErrIncompatibleSchema, m.SchemaVersion, core.SchemaVersion)
	}

	regions := m.regions()
	entries := make([]core.CatalogEntry, 0, len(regions))
	seen := make(map[string]bool, len(regions))
	for _, r := range regions {
		entry, err := c.toEntry(&r)
		if err != nil {
			c.logger.Warn("skipping manifest region", "region", r.ID, "err", err)
			continue
		}
		if seen[entry.RegionID] {
			c.logger.Warn("skipping duplicate manifest region", "region", r.ID)
			continue
		}
		seen[entry.RegionID] = true
		entries = append(entries, entry)
	}
	return entries, nil
}

func (c *Client) toEntry(r *ManifestRegion) (core.CatalogEntry, error) {
	if err := core.ValidateRegionID(r.ID); err != nil {
		return core.CatalogEntry{}, err
	}
	version := r.version()
	if version == "" {
		return core.CatalogEntry{}, fmt.Errorf("region %s has no version", r.ID)
	}
	bounds, err := r.bounds()
	if err != nil {
		return core.CatalogEntry{}, err
	}
	ref, err := url.Parse(r.artifactRef())
	if err != nil {
		return core.CatalogEntry{}, fmt.Errorf("invalid artifact URL: %w", err)
	}
	name := r.Name
	if name == "" {
		name = r.ID
	}
	return core.CatalogEntry{
		RegionID:   r.ID,
		Name:       name,
		Version:    version,
		Bounds:     bounds,
		SizeBytes:  r.Size,
		URI:        c.manifestURL.ResolveReference(ref).String(),
		Digest:     r.Digest,
		PlaceCount: r.PlaceCount,
		POICount:   r.POICount,
	}, nil
}

// Fetch opens the artifact of entry for reading. The caller must close it.
func (c *Client) Fetch(ctx context.Context, entry core.CatalogEntry) (io.ReadCloser, error) {
	u, err := url.Parse(entry.URI)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	body, err := c.open(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	return body, nil
}

func (c *Client) open(ctx context.Context, u *url.URL) (io.ReadCloser, error) {
	switch u.Scheme {
	case "file":
		return os.Open(u.Path)
	case "http", "https":
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: unexpected status %d", u.Redacted(), resp.StatusCode)
	}
	return resp.Body, nil
}
