package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/poiesic/geosearch/cache"
	"github.com/poiesic/geosearch/search"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchMonitor(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Start(search.KindText, "main street")
	m.AfterRegionSelection(search.KindText, []string{"a", "b"})
	m.AfterOfflineSearch(search.KindText, 4)
	m.AfterOnlineSearch(search.KindText, 0, errors.New("down"), 20*time.Millisecond)
	m.Finish(search.KindText, search.OutcomeDegraded, 4, 30*time.Millisecond)

	m.Start(search.KindNearby, "cafe")
	m.AfterOnlineSearch(search.KindNearby, 3, nil, time.Millisecond)
	m.Finish(search.KindNearby, search.OutcomeMerged, 3, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchesTotal.WithLabelValues("text", "degraded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchesTotal.WithLabelValues("nearby", "merged")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OnlineRequestsTotal.WithLabelValues("text")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OnlineFailTotal.WithLabelValues("text")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.OnlineFailTotal.WithLabelValues("nearby")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.SearchDurationMs))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.SearchesInFlight.WithLabelValues("text")))
}

func TestSearchMonitorFailed(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Start(search.KindNearby, "cafe")
	m.Start(search.KindNearby, "bank")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SearchesInFlight.WithLabelValues("nearby")))

	m.Failed(search.KindNearby, errors.New("canceled"), time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchesInFlight.WithLabelValues("nearby")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchErrorsTotal.WithLabelValues("nearby")))

	m.Finish(search.KindNearby, search.OutcomeOffline, 1, time.Millisecond)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.SearchesInFlight.WithLabelValues("nearby")))
}

func TestCacheMonitor(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.OnInstall("richmond", "abc", 2048, time.Second)
	m.OnInstall("paris", "def", 1024, time.Second)
	m.OnFetchError("tokyo", cache.ReasonDownload)
	m.OnEvict("paris", 1024)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.InstallsTotal))
	assert.Equal(t, 3072.0, testutil.ToFloat64(m.InstalledBytes))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchErrorsTotal.WithLabelValues(string(cache.ReasonDownload))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EvictionsTotal))
	assert.Equal(t, 1024.0, testutil.ToFloat64(m.EvictedBytes))
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.OnInstall("richmond", "abc", 10, time.Second)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "geosearch_region_installs_total 1")
}

func TestDoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
