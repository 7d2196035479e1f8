package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/poiesic/geosearch/classify"
	"github.com/poiesic/geosearch/config"
	"github.com/poiesic/geosearch/core"
	"github.com/poiesic/geosearch/search"
	"github.com/poiesic/geosearch/storage"
	"github.com/poiesic/geosearch/storage/badger"
	"github.com/urfave/cli/v2"
)

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Look up a place or address",
		ArgsUsage: "query...",
		Action:    searchAction,
		Flags: append([]cli.Flag{
			&cli.Float64Flag{
				Name:  "lat",
				Usage: "Latitude of the reference point",
			},
			&cli.Float64Flag{
				Name:  "lon",
				Usage: "Longitude of the reference point",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of results",
				Value:   10,
			},
		}, dbFlag()),
	}
}

func searchAction(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("a query is required")
	}
	var near *core.Coordinate
	if c.IsSet("lat") || c.IsSet("lon") {
		if !c.IsSet("lat") || !c.IsSet("lon") {
			return fmt.Errorf("lat and lon must be given together")
		}
		p := core.NewCoordinate(c.Float64("lat"), c.Float64("lon"))
		near = &p
	}

	s, closeFn, err := openSearcher(c)
	if err != nil {
		return err
	}
	defer closeFn()

	resp, err := s.SearchText(c.Context, query, near, c.Int("limit"))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tLABEL\tKIND\tLAT\tLON\tSCORE\tDIST(m)\tSOURCE")
	for i, r := range resp.Results {
		fmt.Fprintf(w, "%d\t%s\t%s\t%.6f\t%.6f\t%.3f\t%.0f\t%s\n",
			i+1, r.Place.Label(), r.Place.Kind, r.Place.Coordinate.Lat, r.Place.Coordinate.Lon,
			r.Score, r.DistanceMeters, source(r.Provenance, r.RegionID))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	printOutcome(c, resp.Outcome, resp.OnlineErr)
	return nil
}

func nearbyCommand() *cli.Command {
	return &cli.Command{
		Name:      "nearby",
		Usage:     "Find points of interest around a location",
		ArgsUsage: "[category query, e.g. \"gas near me\"]",
		Action:    nearbyAction,
		Flags: append([]cli.Flag{
			&cli.Float64Flag{
				Name:  "lat",
				Usage: "Latitude of the search center",
			},
			&cli.Float64Flag{
				Name:  "lon",
				Usage: "Longitude of the search center",
			},
			&cli.Float64Flag{
				Name:  "radius",
				Usage: "Search radius in meters",
				Value: 1000,
			},
			&cli.StringFlag{
				Name:  "bbox",
				Usage: "Search box as minLat,minLon,maxLat,maxLon (instead of lat/lon/radius)",
			},
			&cli.StringFlag{
				Name:  "category",
				Usage: "Category name, e.g. hospital or gas_station",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of results",
				Value:   20,
			},
		}, dbFlag()),
	}
}

func nearbyAction(c *cli.Context) error {
	var bbox core.BoundingBox
	switch {
	case c.IsSet("bbox"):
		var err error
		if bbox, err = parseBBox(c.String("bbox")); err != nil {
			return err
		}
	case c.IsSet("lat") && c.IsSet("lon"):
		if c.Float64("radius") <= 0 {
			return fmt.Errorf("radius must be greater than 0")
		}
		bbox = core.BoundsAround(core.NewCoordinate(c.Float64("lat"), c.Float64("lon")), c.Float64("radius"))
	default:
		return fmt.Errorf("either --bbox or --lat and --lon are required")
	}

	category, err := resolveCategory(c.String("category"), strings.Join(c.Args().Slice(), " "))
	if err != nil {
		return err
	}

	s, closeFn, err := openSearcher(c)
	if err != nil {
		return err
	}
	defer closeFn()

	resp, err := s.SearchNearby(c.Context, bbox, category, c.Int("limit"))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tNAME\tCATEGORY\tLAT\tLON\tDIST(m)\tSOURCE")
	for i, r := range resp.Results {
		fmt.Fprintf(w, "%d\t%s\t%s\t%.6f\t%.6f\t%.0f\t%s\n",
			i+1, r.POI.Label(), r.POI.Category.Label(), r.POI.Coordinate.Lat, r.POI.Coordinate.Lon,
			r.DistanceMeters, source(r.Provenance, r.RegionID))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	printOutcome(c, resp.Outcome, resp.OnlineErr)
	return nil
}

// resolveCategory prefers an explicit category name and otherwise
// interprets query. Neither yields nil, meaning any category.
func resolveCategory(name, query string) (*core.Category, error) {
	if name != "" {
		cat, err := core.ParseCategory(name)
		if err != nil {
			return nil, err
		}
		return &cat, nil
	}
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	m := classify.MatchCategory(query)
	if !m.HasCategory {
		return nil, fmt.Errorf("no category matches %q", query)
	}
	return &m.Category, nil
}

func dbFlag() cli.Flag {
	return &cli.StringSliceFlag{
		Name:  "db",
		Usage: "Query built region databases directly, offline only, instead of the cache",
	}
}

// searcher is the query surface shared by the cache-backed engine and a
// direct search over built databases.
type searcher interface {
	SearchText(ctx context.Context, query string, near *core.Coordinate, limit int) (*search.Response[core.Result], error)
	SearchNearby(ctx context.Context, bbox core.BoundingBox, category *core.Category, limit int) (*search.Response[core.POIResult], error)
}

func openSearcher(c *cli.Context) (searcher, func(), error) {
	paths := c.StringSlice("db")
	if len(paths) == 0 {
		engine, _, err := openEngine(c)
		if err != nil {
			return nil, nil, err
		}
		return engine, func() { engine.Close() }, nil
	}

	cfg := config.Default()
	regions := make(storage.StaticRegions, 0, len(paths))
	closeAll := func() {
		for _, r := range regions {
			if err := r.Close(); err != nil {
				slog.Error("error closing region", "region", r.Meta().RegionID, "err", err)
			}
		}
	}
	for _, p := range paths {
		r, err := badger.OpenRegion(p)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("failed to open region %s: %w", p, err)
		}
		regions = append(regions, r)
	}

	engine, err := search.NewEngine(regions,
		search.WithSufficiencyThreshold(cfg.Search.SufficiencyThreshold),
		search.WithDedupTolerance(cfg.Search.DedupTolerance),
		search.WithLogger(slog.Default()))
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	return engine, func() {
		engine.Close()
		closeAll()
	}, nil
}

func source(p core.Provenance, regionID string) string {
	if regionID == "" {
		return p.String()
	}
	return p.String() + ":" + regionID
}

func printOutcome(c *cli.Context, outcome search.Outcome, onlineErr error) {
	fmt.Fprintf(c.App.ErrWriter, "outcome: %s\n", outcome)
	if onlineErr != nil && !errors.Is(onlineErr, context.Canceled) {
		fmt.Fprintf(c.App.ErrWriter, "online lookup failed: %v\n", onlineErr)
	}
}
