// Package metrics exports Prometheus metrics for the search engine and the
// region cache.
package metrics

import (
	"net/http"
	"time"

	"github.com/poiesic/geosearch/cache"
	"github.com/poiesic/geosearch/search"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "geosearch"

var durationBuckets = []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000}

// Metrics holds the collectors. It implements search.SearchMonitor and
// cache.Monitor.
type Metrics struct {
	SearchesTotal       *prometheus.CounterVec
	SearchErrorsTotal   *prometheus.CounterVec
	SearchesInFlight    *prometheus.GaugeVec
	SearchDurationMs    *prometheus.HistogramVec
	SearchResults       *prometheus.HistogramVec
	OfflineHits         *prometheus.HistogramVec
	RegionsSearched     *prometheus.HistogramVec
	OnlineRequestsTotal *prometheus.CounterVec
	OnlineFailTotal     *prometheus.CounterVec
	OnlineDurationMs    *prometheus.HistogramVec
	InstallsTotal       prometheus.Counter
	InstalledBytes      prometheus.Counter
	FetchErrorsTotal    *prometheus.CounterVec
	EvictionsTotal      prometheus.Counter
	EvictedBytes        prometheus.Counter
}

var (
	_ search.SearchMonitor = (*Metrics)(nil)
	_ cache.Monitor        = (*Metrics)(nil)
)

// New creates the collectors and registers them with reg.
// A nil reg registers with prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		SearchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Total searches by kind and outcome",
		}, []string{"kind", "outcome"}),
		SearchErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_errors_total",
			Help:      "Total searches that returned an error",
		}, []string{"kind"}),
		SearchesInFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "searches_in_flight",
			Help:      "Searches currently running",
		}, []string{"kind"}),
		SearchDurationMs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_ms",
			Help:      "Search duration in milliseconds",
			Buckets:   durationBuckets,
		}, []string{"kind"}),
		SearchResults: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_results",
			Help:      "Results returned per search",
			Buckets:   []float64{0, 1, 5, 10, 20, 50, 100},
		}, []string{"kind"}),
		OfflineHits: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "offline_hits",
			Help:      "Offline hits per search before deduplication",
			Buckets:   []float64{0, 1, 5, 9, 10, 20, 50, 100},
		}, []string{"kind"}),
		RegionsSearched: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "regions_searched",
			Help:      "Region databases queried per search",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		}, []string{"kind"}),
		OnlineRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "online_requests_total",
			Help:      "Total online fallback requests",
		}, []string{"kind"}),
		OnlineFailTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "online_fail_total",
			Help:      "Total failed online fallback requests",
		}, []string{"kind"}),
		OnlineDurationMs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "online_duration_ms",
			Help:      "Online fallback duration in milliseconds",
			Buckets:   durationBuckets,
		}, []string{"kind"}),
		InstallsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "region_installs_total",
			Help:      "Total region versions installed",
		}),
		InstalledBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "region_installed_bytes_total",
			Help:      "Total bytes of installed region databases",
		}),
		FetchErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "region_fetch_errors_total",
			Help:      "Total failed region fetches by reason",
		}, []string{"reason"}),
		EvictionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "region_evictions_total",
			Help:      "Total regions evicted to stay within quota",
		}),
		EvictedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "region_evicted_bytes_total",
			Help:      "Total bytes of evicted region databases",
		}),
	}
	reg.MustRegister(
		m.SearchesTotal,
		m.SearchErrorsTotal,
		m.SearchesInFlight,
		m.SearchDurationMs,
		m.SearchResults,
		m.OfflineHits,
		m.RegionsSearched,
		m.OnlineRequestsTotal,
		m.OnlineFailTotal,
		m.OnlineDurationMs,
		m.InstallsTotal,
		m.InstalledBytes,
		m.FetchErrorsTotal,
		m.EvictionsTotal,
		m.EvictedBytes,
	)
	return m
}

// Handler serves the metrics gathered by g, or the default gatherer when g is nil.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func (m *Metrics) Start(kind search.Kind, _ string) {
	m.SearchesInFlight.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) AfterRegionSelection(kind search.Kind, regionIDs []string) {
	m.RegionsSearched.WithLabelValues(string(kind)).Observe(float64(len(regionIDs)))
}

func (m *Metrics) AfterOfflineSearch(kind search.Kind, hits int) {
	m.OfflineHits.WithLabelValues(string(kind)).Observe(float64(hits))
}

func (m *Metrics) AfterOnlineSearch(kind search.Kind, _ int, err error, elapsed time.Duration) {
	m.OnlineRequestsTotal.WithLabelValues(string(kind)).Inc()
	if err != nil {
		m.OnlineFailTotal.WithLabelValues(string(kind)).Inc()
	}
	m.OnlineDurationMs.WithLabelValues(string(kind)).Observe(ms(elapsed))
}

func (m *Metrics) Finish(kind search.Kind, outcome search.Outcome, results int, elapsed time.Duration) {
	m.SearchesTotal.WithLabelValues(string(kind), outcome.String()).Inc()
	m.SearchDurationMs.WithLabelValues(string(kind)).Observe(ms(elapsed))
	m.SearchResults.WithLabelValues(string(kind)).Observe(float64(results))
	m.SearchesInFlight.WithLabelValues(string(kind)).Dec()
}

func (m *Metrics) Failed(kind search.Kind, _ error, elapsed time.Duration) {
	m.SearchErrorsTotal.WithLabelValues(string(kind)).Inc()
	m.SearchDurationMs.WithLabelValues(string(kind)).Observe(ms(elapsed))
	m.SearchesInFlight.WithLabelValues(string(kind)).Dec()
}

func (m *Metrics) OnInstall(_, _ string, bytes int64, _ time.Duration) {
	m.InstallsTotal.Inc()
	m.InstalledBytes.Add(float64(bytes))
}

func (m *Metrics) OnFetchError(_ string, reason cache.Reason) {
	m.FetchErrorsTotal.WithLabelValues(string(reason)).Inc()
}

func (m *Metrics) OnEvict(_ string, bytes int64) {
	m.EvictionsTotal.Inc()
	m.EvictedBytes.Add(float64(bytes))
}
