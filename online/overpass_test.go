package online

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/poiesic/geosearch/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const overpassBody = `{
  "elements": [
    {"type": "node", "id": 1, "lat": 37.551, "lon": -77.451,
     "tags": {"amenity": "hospital", "name": "Far Hospital", "phone": "+1 804 555 0100"}},
    {"type": "way", "id": 2, "center": {"lat": 37.5501, "lon": -77.4501},
     "tags": {"amenity": "hospital", "addr:housenumber": "5", "addr:street": "Main Street"}},
    {"type": "node", "id": 3, "lat": 37.5502, "lon": -77.4502,
     "tags": {"amenity": "cafe", "name": "Not A Hospital"}},
    {"type": "node", "id": 4, "lat": 10, "lon": 10,
     "tags": {"amenity": "hospital", "name": "Outside"}},
    {"type": "way", "id": 5, "tags": {"amenity": "hospital", "name": "No Geometry"}},
    {"type": "node", "id": 6, "lat": 37.5503, "lon": -77.4503}
  ]
}`

var richmondBox = core.BoundingBox{MinLat: 37.5, MinLon: -77.5, MaxLat: 37.6, MaxLon: -77.4}

func TestOverpassFindPOIs(t *testing.T) {
	var query string
	srv, hits := recordingServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, r.ParseForm())
		query = r.PostForm.Get("data")
		w.Write([]byte(overpassBody))
	})

	o, err := NewOverpass(testConfig(WithOverpassURL(srv.URL)))
	require.NoError(t, err)

	category := core.CategoryHospital
	pois, err := o.FindPOIs(context.Background(), richmondBox, &category, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, hits.Load())

	assert.Contains(t, query, "[out:json]")
	assert.Contains(t, query, `node["amenity"="hospital"](37.5,-77.5,37.6,-77.4);`)
	assert.Contains(t, query, `way["amenity"="hospital"](37.5,-77.5,37.6,-77.4);`)
	assert.Contains(t, query, "out center;")

	require.Len(t, pois, 2)
	// Sorted by distance from the box center (37.55, -77.45).
	assert.Equal(t, core.SourceID{Type: core.SourceWay, ID: 2}, pois[0].ID)
	assert.Equal(t, "5 Main Street", pois[0].Name)
	assert.Equal(t, "hospital", pois[0].Kind)
	assert.Equal(t, core.CategoryHospital, pois[0].Category)

	assert.Equal(t, "Far Hospital", pois[1].Name)
	assert.Equal(t, "+1 804 555 0100", pois[1].Phone)
}

func TestOverpassLimitAndAnyCategory(t *testing.T) {
	var query string
	srv, _ := recordingServer(t, func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		query = r.PostForm.Get("data")
		w.Write([]byte(overpassBody))
	})

	o, err := NewOverpass(testConfig(WithOverpassURL(srv.URL)))
	require.NoError(t, err)

	pois, err := o.FindPOIs(context.Background(), richmondBox, nil, 2)
	require.NoError(t, err)
	require.Len(t, pois, 2)
	assert.Equal(t, int64(2), pois[0].ID.ID)
	assert.Equal(t, int64(3), pois[1].ID.ID)

	assert.Contains(t, query, `"amenity"="cafe"`)
	assert.Contains(t, query, `"amenity"="hospital"`)
	assert.Equal(t, 1, strings.Count(query, `node["amenity"="hospital"]`))
}

func TestOverpassUnnamedFallsBackToLabel(t *testing.T) {
	srv, _ := recordingServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"elements": [{"type": "node", "id": 9, "lat": 37.55, "lon": -77.45, "tags": {"amenity": "fuel"}}]}`))
	})
	o, err := NewOverpass(testConfig(WithOverpassURL(srv.URL)))
	require.NoError(t, err)

	pois, err := o.FindPOIs(context.Background(), richmondBox, nil, 0)
	require.NoError(t, err)
	require.Len(t, pois, 1)
	assert.Equal(t, "Gas Station", pois[0].Name)
	assert.Equal(t, "gas_station", pois[0].Kind)
}

func TestOverpassRetries(t *testing.T) {
	t.Run("retries on 503", func(t *testing.T) {
		var hits *atomic.Int32
		var srv *httptest.Server
		srv, hits = recordingServer(t, func(w http.ResponseWriter, r *http.Request) {
			if hits.Load() < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte(overpassBody))
		})
		o, err := NewOverpass(testConfig(WithOverpassURL(srv.URL)))
		require.NoError(t, err)

		pois, err := o.FindPOIs(context.Background(), richmondBox, nil, 0)
		require.NoError(t, err)
		assert.NotEmpty(t, pois)
		assert.EqualValues(t, 3, hits.Load())
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		srv, hits := recordingServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})
		o, err := NewOverpass(testConfig(WithOverpassURL(srv.URL)))
		require.NoError(t, err)

		_, err = o.FindPOIs(context.Background(), richmondBox, nil, 0)
		var se *StatusError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
		assert.EqualValues(t, 3, hits.Load())
	})

	t.Run("bad request is not retried", func(t *testing.T) {
		srv, hits := recordingServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		})
		o, err := NewOverpass(testConfig(WithOverpassURL(srv.URL)))
		require.NoError(t, err)

		_, err = o.FindPOIs(context.Background(), richmondBox, nil, 0)
		require.Error(t, err)
		assert.EqualValues(t, 1, hits.Load())
	})
}

func TestOverpassMalformedResponse(t *testing.T) {
	srv, _ := recordingServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>busy</html>`))
	})
	o, err := NewOverpass(testConfig(WithOverpassURL(srv.URL)))
	require.NoError(t, err)

	_, err = o.FindPOIs(context.Background(), richmondBox, nil, 0)
	assert.ErrorIs(t, err, ErrInvalidResponse)
}
