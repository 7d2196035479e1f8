package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/poiesic/geosearch/catalog"
	"github.com/poiesic/geosearch/core"
	"github.com/poiesic/geosearch/ingestion"
	"github.com/poiesic/geosearch/storage/badger"
	"github.com/urfave/cli/v2"
)

func buildCommand() *cli.Command {
	return &cli.Command{
		Name:   "build",
		Usage:  "Build a region database from an OSM extract",
		Action: buildAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "input",
				Aliases:  []string{"i"},
				Usage:    "OSM extract (.osm, .osm.bz2, .osm.gz, .osm.pbf)",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "region",
				Aliases:  []string{"r"},
				Usage:    "Region id",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "name",
				Usage: "Region display name (defaults to the region id)",
			},
			&cli.StringFlag{
				Name:     "bbox",
				Usage:    "Region bounds as minLat,minLon,maxLat,maxLon",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Directory receiving built region databases",
				Value:   "regions",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Worker pool size (0 uses half the CPUs)",
			},
			&cli.IntFlag{
				Name:  "report-interval",
				Usage: "Report progress every N features",
				Value: 100000,
			},
		},
	}
}

func buildAction(c *cli.Context) error {
	bbox, err := parseBBox(c.String("bbox"))
	if err != nil {
		return err
	}
	if c.Int("report-interval") <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}

	source, err := ingestion.NewOSMFileSource(c.String("input"))
	if err != nil {
		return fmt.Errorf("failed to open extract: %w", err)
	}

	opts := []ingestion.Option{
		ingestion.WithProgress(os.Stderr, c.Int("report-interval")),
		ingestion.WithLogger(slog.Default()),
	}
	if n := c.Int("workers"); n > 0 {
		opts = append(opts, ingestion.WithPoolSize(n))
	}
	builder, err := ingestion.NewBuilder(c.String("output"), opts...)
	if err != nil {
		return fmt.Errorf("failed to create builder: %w", err)
	}
	defer builder.Release()

	meta, err := builder.BuildRegion(c.Context, ingestion.RegionSpec{
		ID:     c.String("region"),
		Name:   c.String("name"),
		Bounds: bbox,
		Source: source,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "Region:  %s (%s)\n", meta.RegionID, meta.Name)
	fmt.Fprintf(c.App.Writer, "Version: %s\n", meta.Version)
	fmt.Fprintf(c.App.Writer, "Places:  %d\n", meta.PlaceCount)
	fmt.Fprintf(c.App.Writer, "POIs:    %d\n", meta.POICount)
	fmt.Fprintf(c.App.Writer, "Path:    %s\n", builder.Path(meta.RegionID))
	return nil
}

func packageCommand() *cli.Command {
	return &cli.Command{
		Name:   "package",
		Usage:  "Package built regions as artifacts and write the catalog manifest",
		Action: packageAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "input",
				Aliases: []string{"i"},
				Usage:   "Directory holding built region databases",
				Value:   "regions",
			},
			&cli.StringFlag{
				Name:     "dist",
				Aliases:  []string{"d"},
				Usage:    "Directory receiving artifacts and manifest.json",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:    "region",
				Aliases: []string{"r"},
				Usage:   "Region ids to package (default: every region in the input directory)",
			},
		},
	}
}

func packageAction(c *cli.Context) error {
	input, dist := c.String("input"), c.String("dist")
	regions := c.StringSlice("region")
	if len(regions) == 0 {
		var err error
		if regions, err = builtRegions(input); err != nil {
			return err
		}
	}
	if len(regions) == 0 {
		return fmt.Errorf("no regions found in %s", input)
	}
	if err := os.MkdirAll(dist, 0755); err != nil {
		return err
	}

	entries := make([]core.CatalogEntry, 0, len(regions))
	for _, id := range regions {
		if err := c.Context.Err(); err != nil {
			return err
		}
		entry, err := packageRegion(filepath.Join(input, id), dist)
		if err != nil {
			return fmt.Errorf("package %s: %w", id, err)
		}
		fmt.Fprintf(c.App.Writer, "%s\t%s\t%d bytes\n", entry.RegionID, entry.Version, entry.SizeBytes)
		entries = append(entries, entry)
	}

	path, err := ingestion.WriteManifest(dist, entries)
	if err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Manifest: %s\n", path)
	return nil
}

func packageRegion(dbDir, dist string) (core.CatalogEntry, error) {
	r, err := badger.OpenRegion(dbDir)
	if err != nil {
		return core.CatalogEntry{}, err
	}
	meta := r.Meta()
	if err := r.Close(); err != nil {
		return core.CatalogEntry{}, err
	}

	name := meta.RegionID + catalog.ArtifactExtension
	artifact, err := ingestion.Package(dbDir, filepath.Join(dist, name))
	if err != nil {
		return core.CatalogEntry{}, err
	}
	return ingestion.CatalogEntry(&meta, artifact, name), nil
}

// builtRegions lists the region directories under dir, skipping
// temporary build directories.
func builtRegions(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if !e.IsDir() || core.ValidateRegionID(e.Name()) != nil {
			continue
		}
		ids = append(ids, e.Name())
	}
	return ids, nil
}
