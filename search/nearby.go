package search

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/poiesic/geosearch/core"
	"github.com/poiesic/geosearch/storage"
)

// SearchNearby returns POIs inside bbox, optionally of one category,
// ordered by distance from the center of bbox.
func (e *Engine) SearchNearby(ctx context.Context, bbox core.BoundingBox, category *core.Category, limit int) (*Response[core.POIResult], error) {
	return e.SearchNearbyWithMonitor(ctx, bbox, category, limit, nil)
}

// SearchNearbyWithMonitor is SearchNearby reporting to monitor instead of
// the engine-wide monitor.
func (e *Engine) SearchNearbyWithMonitor(ctx context.Context, bbox core.BoundingBox, category *core.Category, limit int, monitor SearchMonitor) (*Response[core.POIResult], error) {
	if monitor == nil {
		monitor = e.monitor
	}
	if err := validateNearby(bbox, category, limit); err != nil {
		return nil, err
	}
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	start := time.Now()
	monitor.Start(KindNearby, describeNearby(bbox, category))

	handles, err := e.snapshot(ctx)
	if err != nil {
		monitor.Failed(KindNearby, err, time.Since(start))
		return nil, err
	}
	handles = keepRegions(handles, func(m core.RegionMeta) bool {
		return m.Bounds.Intersects(bbox)
	})
	defer releaseAll(handles)
	monitor.AfterRegionSelection(KindNearby, regionIDs(handles))

	perRegion, err := queryRegions(ctx, e, handles, func(ctx context.Context, r storage.RegionReader) ([]core.POIResult, error) {
		return r.SearchBBox(ctx, bbox, category, e.fetchLimit(limit))
	})
	if err != nil {
		monitor.Failed(KindNearby, err, time.Since(start))
		return nil, err
	}
	offline := mergeNearby(perRegion)
	monitor.AfterOfflineSearch(KindNearby, len(offline))

	resp := &Response[core.POIResult]{OfflineCount: len(offline)}
	results := offline
	if e.poiSource != nil && e.needsOnline(len(offline)) {
		resp.OnlineConsulted = true
		onlineStart := time.Now()
		pois, onlineErr := e.findPOIs(ctx, bbox, category, limit)
		monitor.AfterOnlineSearch(KindNearby, len(pois), onlineErr, time.Since(onlineStart))
		if onlineErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				monitor.Failed(KindNearby, ctxErr, time.Since(start))
				return nil, ctxErr
			}
			e.logger.Warn("online POI lookup failed, returning offline results", "bbox", bbox, "err", onlineErr)
			resp.OnlineErr = onlineErr
		}
		center := bbox.Center()
		for _, p := range pois {
			if p == nil || !bbox.Contains(p.Coordinate) || (category != nil && p.Category != *category) {
				continue
			}
			results = append(results, core.POIResult{
				POI:            *p,
				DistanceMeters: center.DistanceTo(p.Coordinate),
				Provenance:     core.ProvenanceOnline,
			})
		}
	}

	results = dedupe(results, func(r *core.POIResult) *core.Place { return &r.POI.Place }, e.tolerance)
	sortByDistance(results)
	if len(results) > limit {
		results = results[:limit]
	}
	resp.Results = results
	resp.Outcome = outcome(len(results), resp.OnlineConsulted, resp.OnlineErr)

	monitor.Finish(KindNearby, resp.Outcome, len(results), time.Since(start))
	e.logger.Debug("nearby search", "bbox", bbox, "category", category, "regions", len(handles),
		"offline", resp.OfflineCount, "online", resp.OnlineConsulted, "results", len(results), "outcome", resp.Outcome)
	return resp, nil
}

func validateNearby(bbox core.BoundingBox, category *core.Category, limit int) error {
	if err := core.ValidateBounds(bbox); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	if category != nil && !category.Valid() {
		return fmt.Errorf("%w: %w: %d", ErrInvalidQuery, core.ErrUnknownCategory, *category)
	}
	if limit <= 0 {
		return fmt.Errorf("%w: limit must be positive", ErrInvalidQuery)
	}
	return nil
}

func describeNearby(bbox core.BoundingBox, category *core.Category) string {
	if category == nil {
		return bbox.String()
	}
	return category.String() + " in " + bbox.String()
}

func (e *Engine) findPOIs(ctx context.Context, bbox core.BoundingBox, category *core.Category, limit int) ([]*core.POI, error) {
	ctx, cancel := e.onlineContext(ctx)
	defer cancel()
	return e.poiSource.FindPOIs(ctx, bbox, category, limit)
}

// mergeNearby flattens per-region hits by distance and keeps one copy of a
// POI found in several regions.
func mergeNearby(perRegion [][]core.POIResult) []core.POIResult {
	var merged []core.POIResult
	for _, hits := range perRegion {
		merged = append(merged, hits...)
	}
	sortByDistance(merged)
	return uniqueBySource(merged, func(r *core.POIResult) core.SourceID { return r.POI.ID })
}

// sortByDistance orders results nearest first; ties keep their order, so
// offline results stay ahead of online ones.
func sortByDistance(results []core.POIResult) {
	slices.SortStableFunc(results, func(a, b core.POIResult) int {
		return cmp.Compare(a.DistanceMeters, b.DistanceMeters)
	})
}
