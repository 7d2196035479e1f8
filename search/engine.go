package search

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/geosearch/core"
	"github.com/poiesic/geosearch/online"
	"github.com/poiesic/geosearch/storage"
)

const (
	// DefaultSufficiencyThreshold is the offline hit count at which the
	// online collaborators are skipped.
	DefaultSufficiencyThreshold = 10

	// DefaultDedupTolerance is the distance in meters under which two
	// results with compatible names are the same place.
	DefaultDedupTolerance = 10.0

	// DefaultOnlineTimeout bounds a single online lookup.
	DefaultOnlineTimeout = 10 * time.Second
)

// Outcome summarizes how a response was produced.
type Outcome int

const (
	// OutcomeOffline means offline results were returned without an online call.
	OutcomeOffline Outcome = iota
	// OutcomeMerged means the online collaborator answered and its results
	// were merged with the offline ones.
	OutcomeMerged
	// OutcomeDegraded means the online collaborator failed and only
	// offline results were returned.
	OutcomeDegraded
	// OutcomeNoResults means nothing matched.
	OutcomeNoResults
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOffline:
		return "offline"
	case OutcomeMerged:
		return "merged"
	case OutcomeDegraded:
		return "degraded"
	case OutcomeNoResults:
		return "no_results"
	}
	return "unknown"
}

// Response is the result of a search.
type Response[T any] struct {
	Results         []T
	Outcome         Outcome
	OfflineCount    int   // offline hits before deduplication and truncation
	OnlineConsulted bool  // the online collaborator was called
	OnlineErr       error // set when the online call failed
}

// Engine answers text and nearby searches over the regions of a
// RegionProvider, falling back to online collaborators when offline data
// is insufficient. It is safe for concurrent use.
type Engine struct {
	regions       storage.RegionProvider
	geocoder      online.Geocoder
	poiSource     online.POISource
	threshold     int
	tolerance     float64
	onlineTimeout time.Duration
	pool          *ants.Pool
	monitor       SearchMonitor
	logger        *slog.Logger
	closed        atomic.Bool
}

// Option configures an Engine.
type Option func(*Engine) error

// WithGeocoder sets the online geocoder used by SearchText.
// Without one the text path is offline only.
func WithGeocoder(g online.Geocoder) Option {
	return func(e *Engine) error {
		e.geocoder = g
		return nil
	}
}

// WithPOISource sets the online POI source used by SearchNearby.
// Without one the nearby path is offline only.
func WithPOISource(s online.POISource) Option {
	return func(e *Engine) error {
		e.poiSource = s
		return nil
	}
}

// WithProvider sets both online collaborators from p.
func WithProvider(p online.Provider) Option {
	return func(e *Engine) error {
		if p == nil {
			return nil
		}
		e.geocoder = p.Geocoder()
		e.poiSource = p.POISource()
		return nil
	}
}

// WithSufficiencyThreshold sets the offline hit count that skips the online
// path. Zero never consults the online collaborators.
// Default is DefaultSufficiencyThreshold.
func WithSufficiencyThreshold(n int) Option {
	return func(e *Engine) error {
		if n < 0 {
			return ErrInvalidThreshold
		}
		e.threshold = n
		return nil
	}
}

// WithDedupTolerance sets the duplicate distance in meters.
// Default is DefaultDedupTolerance.
func WithDedupTolerance(meters float64) Option {
	return func(e *Engine) error {
		if meters < 0 {
			return ErrInvalidTolerance
		}
		e.tolerance = meters
		return nil
	}
}

// WithOnlineTimeout bounds each online call. Non-positive values keep the default.
func WithOnlineTimeout(d time.Duration) Option {
	return func(e *Engine) error {
		if d > 0 {
			e.onlineTimeout = d
		}
		return nil
	}
}

// WithPoolSize sets how many regions are queried concurrently.
// Default is runtime.NumCPU().
func WithPoolSize(size int) Option {
	return func(e *Engine) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if e.pool != nil {
			e.pool.Release()
		}
		e.pool = pool
		return nil
	}
}

// WithMonitor sets the engine-wide search monitor.
func WithMonitor(m SearchMonitor) Option {
	return func(e *Engine) error {
		if m == nil {
			m = &noopMonitor{}
		}
		e.monitor = m
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// NewEngine creates an engine over regions.
func NewEngine(regions storage.RegionProvider, opts ...Option) (*Engine, error) {
	if regions == nil {
		return nil, ErrRegionProviderRequired
	}

	pool, err := ants.NewPool(max(runtime.NumCPU(), 1))
	if err != nil {
		return nil, err
	}

	e := &Engine{
		regions:       regions,
		threshold:     DefaultSufficiencyThreshold,
		tolerance:     DefaultDedupTolerance,
		onlineTimeout: DefaultOnlineTimeout,
		pool:          pool,
		monitor:       &noopMonitor{},
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		if optErr := opt(e); optErr != nil {
			e.pool.Release()
			return nil, optErr
		}
	}
	return e, nil
}

// Threshold returns the sufficiency threshold.
func (e *Engine) Threshold() int {
	return e.threshold
}

// Close releases the worker pool. The region provider and online
// collaborators are not closed.
func (e *Engine) Close() {
	if e.closed.Swap(true) {
		return
	}
	e.pool.Release()
}

// fetchLimit is the per-region hit count collected before merging.
func (e *Engine) fetchLimit(limit int) int {
	return max(limit, e.threshold)
}

// needsOnline reports whether the offline hit count is insufficient.
func (e *Engine) needsOnline(offline int) bool {
	return e.threshold > 0 && offline < e.threshold
}

// snapshot pins every region. An unusable provider behaves like an empty cache.
func (e *Engine) snapshot(ctx context.Context) ([]storage.RegionHandle, error) {
	handles, err := e.regions.Snapshot(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		e.logger.Warn("region snapshot failed, searching without offline data", "err", err)
		return nil, nil
	}
	return handles, nil
}

// keepRegions returns the handles matching keep and releases the others.
func keepRegions(handles []storage.RegionHandle, keep func(core.RegionMeta) bool) []storage.RegionHandle {
	selected := handles[:0]
	for _, h := range handles {
		if keep(h.Meta()) {
			selected = append(selected, h)
		} else {
			h.Release()
		}
	}
	return selected
}

func releaseAll(handles []storage.RegionHandle) {
	for _, h := range handles {
		h.Release()
	}
}

func regionIDs(handles []storage.RegionHandle) []string {
	ids := make([]string, len(handles))
	for i, h := range handles {
		ids[i] = h.Meta().RegionID
	}
	return ids
}

// queryRegions runs query against every handle on the worker pool and
// returns the per-region hits in handle order. A failing region is logged
// and skipped; only cancellation is returned.
func queryRegions[T any](ctx context.Context, e *Engine, handles []storage.RegionHandle, query func(context.Context, storage.RegionReader) ([]T, error)) ([][]T, error) {
	hits := make([][]T, len(handles))
	errs := make([]error, len(handles))

	var wg sync.WaitGroup
	for i, h := range handles {
		wg.Add(1)
		err := e.pool.Submit(func() {
			defer wg.Done()
			hits[i], errs[i] = query(ctx, h.Reader())
		})
		if err != nil {
			wg.Done()
			if errors.Is(err, ants.ErrPoolClosed) {
				err = ErrEngineClosed
			}
			errs[i] = err
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for i, err := range errs {
		if err == nil {
			continue
		}
		if errors.Is(err, ErrEngineClosed) {
			return nil, err
		}
		e.logger.Warn("region query failed", "region", handles[i].Meta().RegionID, "err", err)
	}
	return hits, nil
}

// onlineContext derives the context of one online call.
func (e *Engine) onlineContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.onlineTimeout)
}

// outcome classifies a finished search.
func outcome(results int, consulted bool, onlineErr error) Outcome {
	switch {
	case results == 0:
		return OutcomeNoResults
	case !consulted:
		return OutcomeOffline
	case onlineErr != nil:
		return OutcomeDegraded
	default:
		return OutcomeMerged
	}
}
