package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/poiesic/geosearch/core"
	"github.com/urfave/cli/v2"
)

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:      "sync",
		Usage:     "Install or update regions from the catalog",
		ArgsUsage: "[region...]",
		Action:    syncAction,
	}
}

func syncAction(c *cli.Context) error {
	engine, _, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	var installed []core.CacheEntry
	var errs []error
	if c.NArg() == 0 {
		installed, err = engine.Sync(c.Context)
		if err != nil {
			errs = append(errs, err)
		}
	} else {
		for _, id := range c.Args().Slice() {
			entry, err := engine.EnsureRegion(c.Context, id)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			installed = append(installed, entry)
		}
	}

	printCacheEntries(c, installed)
	return errors.Join(errs...)
}

func regionsCommand() *cli.Command {
	return &cli.Command{
		Name:   "regions",
		Usage:  "List installed regions",
		Action: regionsAction,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "available",
				Aliases: []string{"a"},
				Usage:   "List the regions offered by the catalog instead",
			},
		},
	}
}

func regionsAction(c *cli.Context) error {
	engine, _, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	if !c.Bool("available") {
		entries, err := engine.Installed(c.Context)
		if err != nil {
			return err
		}
		printCacheEntries(c, entries)
		return nil
	}

	entries, err := engine.Available(c.Context)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "REGION\tNAME\tVERSION\tSIZE\tPLACES\tPOIS")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\n", e.RegionID, e.Name, e.Version, e.SizeBytes, e.PlaceCount, e.POICount)
	}
	return w.Flush()
}

func removeCommand() *cli.Command {
	return &cli.Command{
		Name:      "remove",
		Usage:     "Uninstall regions",
		ArgsUsage: "region...",
		Action:    removeAction,
	}
}

func removeAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one region id is required")
	}
	engine, _, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	for _, id := range c.Args().Slice() {
		if err := engine.RemoveRegion(c.Context, id); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "removed %s\n", id)
	}
	return nil
}

func printCacheEntries(c *cli.Context, entries []core.CacheEntry) {
	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "REGION\tVERSION\tSIZE\tLAST ACCESS")
	for _, e := range entries {
		access := "-"
		if !e.LastAccess.IsZero() {
			access = e.LastAccess.Local().Format(time.DateTime)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", e.RegionID, e.Version, e.SizeBytes, access)
	}
	w.Flush()
}
