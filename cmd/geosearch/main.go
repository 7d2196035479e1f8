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


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/poiesic/geosearch"
	"github.com/poiesic/geosearch/config"
	"github.com/poiesic/geosearch/core"
	"github.com/urfave/cli/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "geosearch",
		Usage: "Offline-first place and POI search over OpenStreetMap data",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file",
				EnvVars: []string{"GEOSEARCH_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "cache-dir",
				Usage: "Region cache directory (overrides configuration)",
			},
			&cli.StringFlag{
				Name:  "catalog-url",
				Usage: "Region catalog manifest URL (overrides configuration)",
			},
			&cli.BoolFlag{
				Name:  "offline",
				Usage: "Never consult online services",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			buildCommand(),
			packageCommand(),
			syncCommand(),
			regionsCommand(),
			removeCommand(),
			searchCommand(),
			nearbyCommand(),
			serveCommand(),
		},
	}
}

// loadConfig reads the configuration file and environment, then applies
// the global flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	var opts []config.Option
	if c.IsSet("cache-dir") {
		opts = append(opts, config.WithCacheDir(c.String("cache-dir")))
	}
	if c.IsSet("catalog-url") {
		opts = append(opts, config.WithCatalogURL(c.String("catalog-url")))
	}
	if c.Bool("offline") {
		opts = append(opts, config.WithOnline(false))
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openEngine(c *cli.Context, opts ...geosearch.Option) (*geosearch.Engine, *config.Config, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	opts = append([]geosearch.Option{geosearch.WithLogger(slog.Default())}, opts...)
	engine, err := geosearch.Open(cfg, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open engine: %w", err)
	}
	return engine, cfg, nil
}

// parseBBox parses "minLat,minLon,maxLat,maxLon".
func parseBBox(s string) (core.BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return core.BoundingBox{}, fmt.Errorf("bbox must be minLat,minLon,maxLat,maxLon: %q", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return core.BoundingBox{}, fmt.Errorf("invalid bbox %q: %w", s, err)
		}
		v[i] = f
	}
	b := core.BoundingBox{MinLat: v[0], MinLon: v[1], MaxLat: v[2], MaxLon: v[3]}
	if err := core.ValidateBounds(b); err != nil {
		return core.BoundingBox{}, err
	}
	return b, nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return nil
}
