package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/geosearch/core"
	"github.com/poiesic/geosearch/online/mock"
	"github.com/poiesic/geosearch/storage"
	"github.com/poiesic/geosearch/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	richmondBounds = core.BoundingBox{MinLat: 37.4, MinLon: -77.6, MaxLat: 37.7, MaxLon: -77.3}
	parisBounds    = core.BoundingBox{MinLat: 48.8, MinLon: 2.2, MaxLat: 48.9, MaxLon: 2.5}
)

func newPlace(id int64, lat, lon float64, name string) *core.Place {
	return &core.Place{
		ID:         core.SourceID{Type: core.SourceNode, ID: id},
		Coordinate: core.NewCoordinate(lat, lon),
		Name:       name,
		Kind:       "test",
	}
}

func newPOI(id int64, lat, lon float64, name string, c core.Category) *core.POI {
	return &core.POI{Place: *newPlace(id, lat, lon, name), Category: c}
}

// memRegion builds an in-memory region closed at the end of the test.
func memRegion(t *testing.T, id string, bounds core.BoundingBox, places []*core.Place, pois []*core.POI) *badger.RegionReader {
	t.Helper()
	for _, p := range pois {
		places = append(places, &p.Place)
	}
	r, err := badger.NewMemoryRegion(context.Background(), core.RegionMeta{
		RegionID: id,
		Name:     id,
		Version:  "v1",
		Bounds:   bounds,
	}, places, pois)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

// elmPlaces returns n places matching "elm", about 111 m apart.
func elmPlaces(n int) []*core.Place {
	places := make([]*core.Place, n)
	for i := range places {
		places[i] = newPlace(int64(i+1), 37.50+float64(i)*0.001, -77.40, fmt.Sprintf("Elm Market %d", i))
	}
	return places
}

func newTestEngine(t *testing.T, regions storage.RegionProvider, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine(regions, append([]Option{WithPoolSize(2)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

// recordingMonitor records the regions each search selected.
type recordingMonitor struct {
	noopMonitor
	mu       sync.Mutex
	regions  [][]string
	outcomes []Outcome
	starts   int
	failures []error
}

func (m *recordingMonitor) Start(_ Kind, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts++
}

func (m *recordingMonitor) Failed(_ Kind, err error, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, err)
}

func (m *recordingMonitor) AfterRegionSelection(_ Kind, ids []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regions = append(m.regions, ids)
}

func (m *recordingMonitor) Finish(_ Kind, outcome Outcome, _ int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

func TestNewEngine(t *testing.T) {
	regions := storage.StaticRegions(nil)

	t.Run("valid configuration", func(t *testing.T) {
		e, err := NewEngine(regions)
		require.NoError(t, err)
		defer e.Close()
		assert.Equal(t, DefaultSufficiencyThreshold, e.Threshold())
	})

	t.Run("with options", func(t *testing.T) {
		e, err := NewEngine(regions,
			WithProvider(mock.NewMockProvider()),
			WithSufficiencyThreshold(3),
			WithDedupTolerance(25),
			WithOnlineTimeout(time.Second),
			WithPoolSize(4),
			WithMonitor(nil),
			WithLogger(nil),
		)
		require.NoError(t, err)
		defer e.Close()
		assert.Equal(t, 3, e.Threshold())
		assert.NotNil(t, e.geocoder)
		assert.NotNil(t, e.poiSource)
		assert.Equal(t, slog.Default(), e.logger)
	})

	t.Run("nil provider", func(t *testing.T) {
		_, err := NewEngine(nil)
		assert.Equal(t, ErrRegionProviderRequired, err)
	})

	t.Run("negative threshold", func(t *testing.T) {
		_, err := NewEngine(regions, WithSufficiencyThreshold(-1))
		assert.ErrorIs(t, err, ErrInvalidThreshold)
	})

	t.Run("negative tolerance", func(t *testing.T) {
		_, err := NewEngine(regions, WithDedupTolerance(-1))
		assert.ErrorIs(t, err, ErrInvalidTolerance)
	})
}

func TestSearchTextSufficiency(t *testing.T) {
	ctx := context.Background()
	online := newPlace(900, 37.60, -77.45, "Elm Online")

	t.Run("ten offline hits skip the online geocoder", func(t *testing.T) {
		region := memRegion(t, "richmond", richmondBounds, elmPlaces(10), nil)
		geocoder := mock.NewStaticGeocoder(online)
		e := newTestEngine(t, storage.StaticRegions{region}, WithGeocoder(geocoder))

		resp, err := e.SearchText(ctx, "elm", nil, 5)
		require.NoError(t, err)
		assert.Equal(t, 0, geocoder.CallCount())
		assert.Equal(t, 10, resp.OfflineCount)
		assert.False(t, resp.OnlineConsulted)
		assert.Equal(t, OutcomeOffline, resp.Outcome)
		assert.Len(t, resp.Results, 5)
		for _, r := range resp.Results {
			assert.Equal(t, core.ProvenanceOffline, r.Provenance)
			assert.Equal(t, "richmond", r.RegionID)
		}
	})

	t.Run("nine offline hits consult the online geocoder", func(t *testing.T) {
		region := memRegion(t, "richmond", richmondBounds, elmPlaces(9), nil)
		geocoder := mock.NewStaticGeocoder(online)
		e := newTestEngine(t, storage.StaticRegions{region}, WithGeocoder(geocoder))

		resp, err := e.SearchText(ctx, "elm", nil, 20)
		require.NoError(t, err)
		assert.Equal(t, 1, geocoder.CallCount())
		assert.Equal(t, []string{"elm"}, geocoder.Queries())
		assert.True(t, resp.OnlineConsulted)
		assert.Equal(t, OutcomeMerged, resp.Outcome)
		require.Len(t, resp.Results, 10)

		last := resp.Results[9]
		assert.Equal(t, core.ProvenanceOnline, last.Provenance)
		assert.Equal(t, "Elm Online", last.Place.Name)
		assert.Empty(t, last.RegionID)
	})

	t.Run("threshold is configurable", func(t *testing.T) {
		region := memRegion(t, "richmond", richmondBounds, elmPlaces(3), nil)
		geocoder := mock.NewStaticGeocoder(online)
		e := newTestEngine(t, storage.StaticRegions{region}, WithGeocoder(geocoder), WithSufficiencyThreshold(3))

		_, err := e.SearchText(ctx, "elm", nil, 10)
		require.NoError(t, err)
		assert.Equal(t, 0, geocoder.CallCount())
	})
}

func TestSearchTextDeduplication(t *testing.T) {
	ctx := context.Background()
	bakery := newPlace(1, 37.55, -77.45, "Main Street Bakery")
	bakery.Address = core.Address{Street: "Main Street", HouseNumber: "12", City: "Richmond"}
	region := memRegion(t, "richmond", richmondBounds, []*core.Place{bakery}, nil)

	// About 3 m away with the same name but a different element.
	nearCopy := newPlace(50, 37.55002, -77.45002, "main street BAKERY")
	// Same element reported at a slightly different position.
	sameID := newPlace(1, 37.56, -77.46, "Main St Bakery")
	// Unnamed result at the same spot.
	unnamed := &core.Place{
		ID:         core.SourceID{Type: core.SourceWay, ID: 51},
		Coordinate: core.NewCoordinate(37.55001, -77.45001),
		Address:    core.Address{Street: "Main Street"},
	}
	// Different bakery 3 m away keeps its own entry.
	other := newPlace(52, 37.55002, -77.45, "Other Bakery")
	// Same name but far away.
	far := newPlace(53, 37.60, -77.45, "Main Street Bakery")

	geocoder := mock.NewStaticGeocoder(nearCopy, sameID, unnamed, other, far)
	e := newTestEngine(t, storage.StaticRegions{region}, WithGeocoder(geocoder))

	resp, err := e.SearchText(ctx, "main street bakery", nil, 10)
	require.NoError(t, err)
	require.Len(t, resp.Results, 3)

	first := resp.Results[0]
	assert.Equal(t, core.ProvenanceOffline, first.Provenance)
	assert.Equal(t, "12", first.Place.Address.HouseNumber)
	assert.Equal(t, int64(52), resp.Results[1].Place.ID.ID)
	assert.Equal(t, int64(53), resp.Results[2].Place.ID.ID)
}

func TestSearchTextOnlineFailure(t *testing.T) {
	ctx := context.Background()
	errDown := errors.New("service unavailable")

	t.Run("degrades to offline results", func(t *testing.T) {
		region := memRegion(t, "richmond", richmondBounds, elmPlaces(2), nil)
		geocoder := mock.NewMockGeocoder()
		geocoder.GeocodeFunc = func(context.Context, string, *core.Coordinate, int) ([]*core.Place, error) {
			return nil, errDown
		}
		e := newTestEngine(t, storage.StaticRegions{region}, WithGeocoder(geocoder))

		resp, err := e.SearchText(ctx, "elm", nil, 10)
		require.NoError(t, err)
		assert.Len(t, resp.Results, 2)
		assert.ErrorIs(t, resp.OnlineErr, errDown)
		assert.Equal(t, OutcomeDegraded, resp.Outcome)
	})

	t.Run("no results is not an error", func(t *testing.T) {
		geocoder := mock.NewMockGeocoder()
		geocoder.GeocodeFunc = func(context.Context, string, *core.Coordinate, int) ([]*core.Place, error) {
			return nil, errDown
		}
		e := newTestEngine(t, storage.StaticRegions(nil), WithGeocoder(geocoder))

		resp, err := e.SearchText(ctx, "anything", nil, 10)
		require.NoError(t, err)
		assert.Empty(t, resp.Results)
		assert.Equal(t, OutcomeNoResults, resp.Outcome)
	})

	t.Run("online timeout", func(t *testing.T) {
		geocoder := mock.NewMockGeocoder()
		geocoder.GeocodeFunc = func(ctx context.Context, _ string, _ *core.Coordinate, _ int) ([]*core.Place, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		e := newTestEngine(t, storage.StaticRegions(nil), WithGeocoder(geocoder), WithOnlineTimeout(20*time.Millisecond))

		resp, err := e.SearchText(ctx, "anything", nil, 10)
		require.NoError(t, err)
		assert.ErrorIs(t, resp.OnlineErr, context.DeadlineExceeded)
	})
}

func TestSearchTextEmptyCacheUsesOnline(t *testing.T) {
	near := core.NewCoordinate(37.54, -77.43)
	geocoder := mock.NewStaticGeocoder(newPlace(7, 37.55, -77.45, "Richmond"))
	e := newTestEngine(t, storage.StaticRegions(nil), WithGeocoder(geocoder))

	resp, err := e.SearchText(context.Background(), "richmond", &near, 5)
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, core.ProvenanceOnline, resp.Results[0].Provenance)
	assert.Greater(t, resp.Results[0].DistanceMeters, 0.0)
	assert.Equal(t, 0, resp.OfflineCount)
	assert.Equal(t, OutcomeMerged, resp.Outcome)
}

func TestSearchTextRegionSelection(t *testing.T) {
	ctx := context.Background()
	richmond := memRegion(t, "richmond", richmondBounds,
		[]*core.Place{newPlace(1, 37.55, -77.45, "Main Street")}, nil)
	paris := memRegion(t, "paris", parisBounds,
		[]*core.Place{newPlace(2, 48.85, 2.35, "Main Street")}, nil)
	world := memRegion(t, "world", core.BoundingBox{MinLat: -90, MinLon: -180, MaxLat: 90, MaxLon: 180},
		[]*core.Place{newPlace(3, 0, 0, "Main Street")}, nil)

	monitor := &recordingMonitor{}
	e := newTestEngine(t, storage.StaticRegions{richmond, paris, world}, WithMonitor(monitor))

	tests := []struct {
		name    string
		near    *core.Coordinate
		regions []string
	}{
		{"near inside a region", &core.Coordinate{Lat: 37.5, Lon: -77.5}, []string{"richmond", "world"}},
		{"only the global region contains near", &core.Coordinate{Lat: -33.9, Lon: 151.2}, []string{"world"}},
		{"without near", nil, []string{"richmond", "paris", "world"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			monitor.regions = nil
			resp, err := e.SearchText(ctx, "main street", tt.near, 10)
			require.NoError(t, err)
			require.Len(t, monitor.regions, 1)
			assert.Equal(t, tt.regions, monitor.regions[0])
			assert.Len(t, resp.Results, len(tt.regions))
		})
	}

	t.Run("results near the reference point come first", func(t *testing.T) {
		near := core.NewCoordinate(48.86, 2.34)
		resp, err := e.SearchText(ctx, "main street", &near, 10)
		require.NoError(t, err)
		require.Len(t, resp.Results, 2)
		assert.Equal(t, "paris", resp.Results[0].RegionID)
		assert.Less(t, resp.Results[0].DistanceMeters, resp.Results[1].DistanceMeters)
	})
}

func TestSearchTextNearOutsideEveryRegion(t *testing.T) {
	richmond := memRegion(t, "richmond", richmondBounds,
		[]*core.Place{newPlace(1, 37.55, -77.45, "Main Street")}, nil)
	paris := memRegion(t, "paris", parisBounds,
		[]*core.Place{newPlace(2, 48.85, 2.35, "Main Street")}, nil)

	monitor := &recordingMonitor{}
	e := newTestEngine(t, storage.StaticRegions{richmond, paris}, WithMonitor(monitor))

	near := core.NewCoordinate(-33.9, 151.2)
	resp, err := e.SearchText(context.Background(), "main street", &near, 10)
	require.NoError(t, err)
	require.Len(t, monitor.regions, 1)
	assert.Equal(t, []string{"richmond", "paris"}, monitor.regions[0])
	assert.Len(t, resp.Results, 2)
}

func TestSearchTextDuplicateAcrossRegions(t *testing.T) {
	shared := newPlace(1, 37.55, -77.45, "Shared Plaza")
	a := memRegion(t, "a", richmondBounds, []*core.Place{shared}, nil)
	b := memRegion(t, "b", richmondBounds, []*core.Place{shared}, nil)
	e := newTestEngine(t, storage.StaticRegions{a, b})

	resp, err := e.SearchText(context.Background(), "shared plaza", nil, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.OfflineCount)
	assert.Len(t, resp.Results, 1)
}

func TestSearchTextInvalidArguments(t *testing.T) {
	e := newTestEngine(t, storage.StaticRegions(nil))
	ctx := context.Background()

	_, err := e.SearchText(ctx, "   ", nil, 10)
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = e.SearchText(ctx, "main", nil, 0)
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = e.SearchText(ctx, "main", &core.Coordinate{Lat: 91, Lon: 0}, 10)
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestSearchCanceled(t *testing.T) {
	region := memRegion(t, "richmond", richmondBounds, elmPlaces(2), nil)

	t.Run("before the search", func(t *testing.T) {
		e := newTestEngine(t, storage.StaticRegions{region})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := e.SearchText(ctx, "elm", nil, 10)
		assert.ErrorIs(t, err, context.Canceled)

		_, err = e.SearchNearby(ctx, richmondBounds, nil, 10)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("during the online call", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		geocoder := mock.NewMockGeocoder()
		geocoder.GeocodeFunc = func(ctx context.Context, _ string, _ *core.Coordinate, _ int) ([]*core.Place, error) {
			cancel()
			<-ctx.Done()
			return nil, ctx.Err()
		}
		e := newTestEngine(t, storage.StaticRegions{region}, WithGeocoder(geocoder))

		_, err := e.SearchText(ctx, "elm", nil, 10)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestSearchNearbyHospitalScenario(t *testing.T) {
	hospital := newPOI(1, 37.55, -77.45, "VCU Medical Center", core.CategoryHospital)
	cafe := newPOI(2, 37.5501, -77.4501, "Corner Cafe", core.CategoryCafe)
	region := memRegion(t, "richmond", richmondBounds, nil, []*core.POI{hospital, cafe})
	e := newTestEngine(t, storage.StaticRegions{region})

	bbox := core.BoundsAround(hospital.Coordinate, 1000)
	category := core.CategoryHospital
	resp, err := e.SearchNearby(context.Background(), bbox, &category, 10)
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)

	got := resp.Results[0]
	assert.Equal(t, hospital.ID, got.POI.ID)
	assert.Equal(t, core.CategoryHospital, got.POI.Category)
	assert.Equal(t, core.ProvenanceOffline, got.Provenance)
	assert.Equal(t, "richmond", got.RegionID)
	assert.Equal(t, OutcomeOffline, resp.Outcome)
}

func TestSearchNearbyOnline(t *testing.T) {
	ctx := context.Background()
	center := core.NewCoordinate(37.55, -77.45)
	bbox := core.BoundsAround(center, 2000)
	category := core.CategoryPharmacy

	offline := newPOI(1, 37.551, -77.451, "Corner Pharmacy", core.CategoryPharmacy)
	region := memRegion(t, "richmond", richmondBounds, nil, []*core.POI{offline})

	source := mock.NewMockPOISource()
	source.FindPOIsFunc = func(context.Context, core.BoundingBox, *core.Category, int) ([]*core.POI, error) {
		return []*core.POI{
			newPOI(10, 37.5501, -77.4501, "Closest Pharmacy", core.CategoryPharmacy),
			newPOI(11, 37.55101, -77.45101, "corner pharmacy", core.CategoryPharmacy), // duplicate of offline
			newPOI(12, 37.70, -77.45, "Outside Pharmacy", core.CategoryPharmacy),
			newPOI(13, 37.552, -77.452, "Not A Pharmacy", core.CategoryCafe),
		}, nil
	}
	e := newTestEngine(t, storage.StaticRegions{region}, WithPOISource(source))

	resp, err := e.SearchNearby(ctx, bbox, &category, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, source.CallCount())
	assert.Equal(t, bbox, source.LastBBox())
	require.Len(t, resp.Results, 2)

	assert.Equal(t, int64(10), resp.Results[0].POI.ID.ID)
	assert.Equal(t, core.ProvenanceOnline, resp.Results[0].Provenance)
	assert.Equal(t, int64(1), resp.Results[1].POI.ID.ID)
	assert.Equal(t, core.ProvenanceOffline, resp.Results[1].Provenance)
	assert.Equal(t, OutcomeMerged, resp.Outcome)
}

func TestSearchNearbySufficiency(t *testing.T) {
	var pois []*core.POI
	for i := range 10 {
		pois = append(pois, newPOI(int64(i+1), 37.55+float64(i)*0.001, -77.45, fmt.Sprintf("Bank %d", i), core.CategoryBank))
	}
	region := memRegion(t, "richmond", richmondBounds, nil, pois)
	source := mock.NewMockPOISource()
	e := newTestEngine(t, storage.StaticRegions{region}, WithPOISource(source))

	resp, err := e.SearchNearby(context.Background(), richmondBounds, nil, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, source.CallCount())
	assert.Equal(t, 10, resp.OfflineCount)
	require.Len(t, resp.Results, 3)
	for i := 1; i < len(resp.Results); i++ {
		assert.LessOrEqual(t, resp.Results[i-1].DistanceMeters, resp.Results[i].DistanceMeters)
	}
}

func TestSearchNearbyRegionSelection(t *testing.T) {
	richmond := memRegion(t, "richmond", richmondBounds, nil,
		[]*core.POI{newPOI(1, 37.55, -77.45, "Richmond Bank", core.CategoryBank)})
	paris := memRegion(t, "paris", parisBounds, nil,
		[]*core.POI{newPOI(2, 48.85, 2.35, "Paris Bank", core.CategoryBank)})

	monitor := &recordingMonitor{}
	e := newTestEngine(t, storage.StaticRegions{richmond, paris}, WithMonitor(monitor))

	resp, err := e.SearchNearby(context.Background(), parisBounds, nil, 10)
	require.NoError(t, err)
	require.Len(t, monitor.regions, 1)
	assert.Equal(t, []string{"paris"}, monitor.regions[0])
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Paris Bank", resp.Results[0].POI.Name)
}

func TestSearchNearbyInvalidArguments(t *testing.T) {
	e := newTestEngine(t, storage.StaticRegions(nil))
	ctx := context.Background()

	_, err := e.SearchNearby(ctx, core.BoundingBox{MinLat: 10, MaxLat: 5, MinLon: 0, MaxLon: 1}, nil, 10)
	assert.ErrorIs(t, err, ErrInvalidQuery)

	bad := core.Category(250)
	_, err = e.SearchNearby(ctx, richmondBounds, &bad, 10)
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = e.SearchNearby(ctx, richmondBounds, nil, 0)
	assert.ErrorIs(t, err, ErrInvalidQuery)

	resp, err := e.SearchNearby(ctx, richmondBounds, nil, 10)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoResults, resp.Outcome)
}

func TestEngineClosed(t *testing.T) {
	e, err := NewEngine(storage.StaticRegions(nil))
	require.NoError(t, err)
	e.Close()
	e.Close()

	_, err = e.SearchText(context.Background(), "main", nil, 10)
	assert.ErrorIs(t, err, ErrEngineClosed)
	_, err = e.SearchNearby(context.Background(), richmondBounds, nil, 10)
	assert.ErrorIs(t, err, ErrEngineClosed)
}

// failingRegions is a RegionProvider whose snapshot always fails.
type failingRegions struct{}

func (failingRegions) Snapshot(context.Context) ([]storage.RegionHandle, error) {
	return nil, errors.New("disk on fire")
}

func TestSearchWithBrokenProvider(t *testing.T) {
	geocoder := mock.NewStaticGeocoder(newPlace(1, 37.55, -77.45, "Main"))
	e := newTestEngine(t, failingRegions{}, WithGeocoder(geocoder))

	resp, err := e.SearchText(context.Background(), "main", nil, 10)
	require.NoError(t, err)
	assert.Len(t, resp.Results, 1)
	assert.Equal(t, 1, geocoder.CallCount())
}

func TestSearchErrorsReachMonitor(t *testing.T) {
	monitor := &recordingMonitor{}
	e := newTestEngine(t, failingRegions{}, WithMonitor(monitor))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.SearchText(ctx, "main street", nil, 10)
	assert.ErrorIs(t, err, context.Canceled)

	pharmacy := core.CategoryPharmacy
	_, err = e.SearchNearby(ctx, richmondBounds, &pharmacy, 10)
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, 2, monitor.starts)
	assert.Len(t, monitor.failures, 2)
	assert.Empty(t, monitor.outcomes)
	for _, err := range monitor.failures {
		assert.ErrorIs(t, err, context.Canceled)
	}
}
