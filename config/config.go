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


// Package config loads geosearch settings from defaults, an optional YAML
// file, a .env file and GEOSEARCH_* environment variables, in that order.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/geosearch/online"
	"gopkg.in/yaml.v3"
)

// Config holds the settings of every geosearch component.
type Config struct {
	// CacheDir is the root of the region database cache.
	CacheDir string `yaml:"cache_dir"`

	// CacheQuota is the maximum total size of installed regions in bytes.
	// Zero means unlimited.
	CacheQuota int64 `yaml:"cache_quota"`

	// CatalogURL locates the region manifest (http(s) or file URL).
	// Empty means only already installed regions are used.
	CatalogURL string `yaml:"catalog_url"`

	Search SearchConfig `yaml:"search"`
	Online OnlineConfig `yaml:"online"`
	Redis  RedisConfig  `yaml:"redis"`
	HTTP   HTTPConfig   `yaml:"http"`
}

// SearchConfig holds query engine policy.
type SearchConfig struct {
	// SufficiencyThreshold is the offline hit count that skips online lookups.
	// Default: 10
	SufficiencyThreshold int `yaml:"sufficiency_threshold"`

	// DedupTolerance is the duplicate distance in meters.
	// Default: 10
	DedupTolerance float64 `yaml:"dedup_tolerance"`

	// OnlineTimeout bounds each online lookup.
	// Default: 10s
	OnlineTimeout time.Duration `yaml:"online_timeout"`

	// PoolSize is the number of regions queried concurrently. Zero selects
	// the number of CPUs.
	PoolSize int `yaml:"pool_size"`
}

// OnlineConfig holds the online fallback services.
type OnlineConfig struct {
	Enabled           bool    `yaml:"enabled"`
	PhotonURL         string  `yaml:"photon_url"`
	NominatimURL      string  `yaml:"nominatim_url"`
	OverpassURL       string  `yaml:"overpass_url"`
	UserAgent         string  `yaml:"user_agent"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// RedisConfig enables the geocoder response cache when Addr is set.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// HTTPConfig holds the API server settings.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Option is a functional option for configuring a Config.
type Option func(*Config)

// WithCacheDir sets the cache root.
func WithCacheDir(dir string) Option {
	return func(c *Config) {
		c.CacheDir = dir
	}
}

// WithCatalogURL sets the catalog manifest location.
func WithCatalogURL(u string) Option {
	return func(c *Config) {
		c.CatalogURL = u
	}
}

// WithOnline enables or disables the online fallback.
func WithOnline(enabled bool) Option {
	return func(c *Config) {
		c.Online.Enabled = enabled
	}
}

// WithHTTPAddr sets the API listen address.
func WithHTTPAddr(addr string) Option {
	return func(c *Config) {
		c.HTTP.Addr = addr
	}
}

// Default returns the default configuration.
func Default() *Config {
	dc := online.DefaultConfig()
	return &Config{
		CacheDir: defaultCacheDir(),
		Search: SearchConfig{
			SufficiencyThreshold: 10,
			DedupTolerance:       10,
			OnlineTimeout:        10 * time.Second,
		},
		Online: OnlineConfig{
			Enabled:           true,
			PhotonURL:         dc.PhotonURL,
			NominatimURL:      dc.NominatimURL,
			OverpassURL:       dc.OverpassURL,
			UserAgent:         dc.UserAgent,
			RequestsPerSecond: dc.RequestsPerSecond,
		},
		Redis: RedisConfig{TTL: 24 * time.Hour},
		HTTP:  HTTPConfig{Addr: ":8080"},
	}
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "geosearch")
	}
	return ".geosearch"
}

// New returns the default configuration with opts applied.
func New(opts ...Option) *Config {
	cfg := Default()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Load builds a configuration from the defaults, the YAML file at path
// (skipped when path is empty), a .env file in the working directory if
// present, and GEOSEARCH_* environment variables. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		defer f.Close()
		if err := cfg.Decode(f); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: .env: %w", err)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode merges YAML from r into c. Unknown keys are rejected.
func (c *Config) Decode(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(c)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.CacheDir == "" {
		return errors.New("config: cache_dir is required")
	}
	if c.CacheQuota < 0 {
		return errors.New("config: cache_quota must not be negative")
	}
	if c.Search.SufficiencyThreshold < 0 {
		return errors.New("config: search.sufficiency_threshold must not be negative")
	}
	if c.Search.DedupTolerance < 0 {
		return errors.New("config: search.dedup_tolerance must not be negative")
	}
	if c.Search.OnlineTimeout <= 0 {
		return errors.New("config: search.online_timeout must be positive")
	}
	if c.Search.PoolSize < 0 {
		return errors.New("config: search.pool_size must not be negative")
	}
	if c.Redis.TTL < 0 {
		return errors.New("config: redis.ttl must not be negative")
	}
	if c.Online.Enabled {
		if err := c.OnlineClientConfig().Validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	return nil
}

// OnlineClientConfig converts the online section for online.NewProvider.
func (c *Config) OnlineClientConfig() *online.Config {
	return online.NewConfig(
		online.WithPhotonURL(c.Online.PhotonURL),
		online.WithNominatimURL(c.Online.NominatimURL),
		online.WithOverpassURL(c.Online.OverpassURL),
		online.WithUserAgent(c.Online.UserAgent),
		online.WithRateLimit(c.Online.RequestsPerSecond, 1),
		online.WithTimeout(c.Search.OnlineTimeout),
	)
}
