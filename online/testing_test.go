package online

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// testConfig returns a config with limiting disabled and fast retries.
func testConfig(opts ...ConfigOption) *Config {
	base := []ConfigOption{
		WithRateLimit(0, 0),
		WithRetry(3, time.Millisecond),
		WithTimeout(5 * time.Second),
		WithUserAgent("geosearch-test"),
	}
	return NewConfig(append(base, opts...)...)
}

// recordingServer serves handler and counts requests.
func recordingServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}
