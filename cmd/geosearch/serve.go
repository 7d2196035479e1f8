package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/poiesic/geosearch"
	"github.com/poiesic/geosearch/httpapi"
	"github.com/poiesic/geosearch/metrics"
	"github.com/urfave/cli/v2"
)

var _ httpapi.Backend = (*geosearch.Engine)(nil)

const shutdownTimeout = 10 * time.Second

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Serve the search API over HTTP",
		Action: serveAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (overrides configuration)",
			},
			&cli.Float64Flag{
				Name:  "rate-limit",
				Usage: "Requests per second allowed per client IP (0 disables)",
			},
			&cli.IntFlag{
				Name:  "burst",
				Usage: "Rate limit burst size",
				Value: 20,
			},
			&cli.BoolFlag{
				Name:  "admin",
				Usage: "Enable region sync, install and remove routes",
			},
			&cli.BoolFlag{
				Name:  "sync",
				Usage: "Sync every catalog region before serving",
			},
		},
	}
}

func serveAction(c *cli.Context) error {
	engine, cfg, err := openEngine(c, geosearch.WithMetrics(metrics.New(nil)))
	if err != nil {
		return err
	}
	defer engine.Close()

	if c.Bool("sync") {
		if _, err := engine.Sync(c.Context); err != nil {
			slog.Warn("initial region sync incomplete", "err", err)
		}
	}

	api, err := httpapi.New(engine,
		httpapi.WithRateLimit(c.Float64("rate-limit"), c.Int("burst")),
		httpapi.WithAdmin(c.Bool("admin")),
		httpapi.WithLogger(slog.Default()))
	if err != nil {
		return err
	}

	addr := cfg.HTTP.Addr
	if c.IsSet("addr") {
		addr = c.String("addr")
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-c.Context.Done():
	}

	slog.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
