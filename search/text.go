package search

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/poiesic/geosearch/core"
	"github.com/poiesic/geosearch/storage"
	"github.com/poiesic/geosearch/textnorm"
)

// SearchText resolves a free-text address or place query. When near is
// given, regions containing it are preferred and distances are reported.
// Returns up to limit results, most relevant first.
func (e *Engine) SearchText(ctx context.Context, query string, near *core.Coordinate, limit int) (*Response[core.Result], error) {
	return e.SearchTextWithMonitor(ctx, query, near, limit, nil)
}

// SearchTextWithMonitor is SearchText reporting to monitor instead of the
// engine-wide monitor.
func (e *Engine) SearchTextWithMonitor(ctx context.Context, query string, near *core.Coordinate, limit int, monitor SearchMonitor) (*Response[core.Result], error) {
	if monitor == nil {
		monitor = e.monitor
	}
	if err := validateText(query, near, limit); err != nil {
		return nil, err
	}
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	start := time.Now()
	monitor.Start(KindText, query)

	handles, err := e.snapshot(ctx)
	if err != nil {
		monitor.Failed(KindText, err, time.Since(start))
		return nil, err
	}
	handles = keepRegions(handles, textCandidates(handles, near))
	defer releaseAll(handles)
	monitor.AfterRegionSelection(KindText, regionIDs(handles))

	perRegion, err := queryRegions(ctx, e, handles, func(ctx context.Context, r storage.RegionReader) ([]core.Result, error) {
		return r.SearchText(ctx, query, e.fetchLimit(limit))
	})
	if err != nil {
		monitor.Failed(KindText, err, time.Since(start))
		return nil, err
	}
	offline := mergeText(perRegion, near)
	monitor.AfterOfflineSearch(KindText, len(offline))

	resp := &Response[core.Result]{OfflineCount: len(offline)}
	results := offline
	if e.geocoder != nil && e.needsOnline(len(offline)) {
		resp.OnlineConsulted = true
		onlineStart := time.Now()
		places, onlineErr := e.geocode(ctx, query, near, limit)
		monitor.AfterOnlineSearch(KindText, len(places), onlineErr, time.Since(onlineStart))
		if onlineErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				monitor.Failed(KindText, ctxErr, time.Since(start))
				return nil, ctxErr
			}
			e.logger.Warn("online geocoding failed, returning offline results", "query", query, "err", onlineErr)
			resp.OnlineErr = onlineErr
		}
		for _, p := range places {
			results = append(results, onlineResult(p, near))
		}
	}

	results = dedupe(results, func(r *core.Result) *core.Place { return &r.Place }, e.tolerance)
	if len(results) > limit {
		results = results[:limit]
	}
	resp.Results = results
	resp.Outcome = outcome(len(results), resp.OnlineConsulted, resp.OnlineErr)

	monitor.Finish(KindText, resp.Outcome, len(results), time.Since(start))
	e.logger.Debug("text search", "query", query, "regions", len(handles), "offline", resp.OfflineCount,
		"online", resp.OnlineConsulted, "results", len(results), "outcome", resp.Outcome)
	return resp, nil
}

func validateText(query string, near *core.Coordinate, limit int) error {
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("%w: empty query", ErrInvalidQuery)
	}
	if limit <= 0 {
		return fmt.Errorf("%w: limit must be positive", ErrInvalidQuery)
	}
	if near != nil && !near.Valid() {
		return fmt.Errorf("%w: %w: %s", ErrInvalidQuery, core.ErrInvalidCoordinate, near)
	}
	return nil
}

// textCandidates keeps global regions and regions containing near. When
// near lies outside every region, all regions are searched.
func textCandidates(handles []storage.RegionHandle, near *core.Coordinate) func(core.RegionMeta) bool {
	all := func(core.RegionMeta) bool { return true }
	if near == nil {
		return all
	}
	local := slices.ContainsFunc(handles, func(h storage.RegionHandle) bool {
		return h.Meta().Bounds.Contains(*near)
	})
	if !local {
		return all
	}
	return func(m core.RegionMeta) bool {
		return m.Bounds.IsGlobal() || m.Bounds.Contains(*near)
	}
}

func (e *Engine) geocode(ctx context.Context, query string, near *core.Coordinate, limit int) ([]*core.Place, error) {
	ctx, cancel := e.onlineContext(ctx)
	defer cancel()
	return e.geocoder.Geocode(ctx, query, near, limit)
}

func onlineResult(p *core.Place, near *core.Coordinate) core.Result {
	r := core.Result{Place: *p, Provenance: core.ProvenanceOnline}
	if near != nil {
		r.DistanceMeters = near.DistanceTo(p.Coordinate)
	}
	return r
}

// mergeText flattens per-region hits by score descending. Ties go to the
// closer result when near is given, else to the name. A place found in
// several regions is kept once.
func mergeText(perRegion [][]core.Result, near *core.Coordinate) []core.Result {
	var merged []core.Result
	for _, hits := range perRegion {
		for _, r := range hits {
			if near != nil {
				r.DistanceMeters = near.DistanceTo(r.Place.Coordinate)
			}
			merged = append(merged, r)
		}
	}
	slices.SortStableFunc(merged, func(a, b core.Result) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if near != nil {
			if c := cmp.Compare(a.DistanceMeters, b.DistanceMeters); c != 0 {
				return c
			}
		}
		return cmp.Compare(textnorm.NormalizeName(a.Place.Label()), textnorm.NormalizeName(b.Place.Label()))
	})
	return uniqueBySource(merged, func(r *core.Result) core.SourceID { return r.Place.ID })
}
