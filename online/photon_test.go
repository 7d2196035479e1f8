package online

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/poiesic/geosearch/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const photonBody = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "geometry": {"type": "Point", "coordinates": [-77.4360, 37.5407]},
      "properties": {
        "osm_type": "R", "osm_id": 206495, "osm_key": "place", "osm_value": "city",
        "name": "Richmond", "state": "Virginia", "country": "United States"
      }
    },
    {
      "type": "Feature",
      "geometry": {"type": "Point", "coordinates": [-77.45, 37.55]},
      "properties": {
        "osm_type": "W", "osm_id": 42, "type": "house",
        "housenumber": "12", "street": "Main Street", "city": "Richmond", "postcode": "23220"
      }
    },
    {
      "type": "Feature",
      "geometry": {"type": "Point", "coordinates": [1, 2]},
      "properties": {"osm_type": "X", "osm_id": 1, "name": "bogus type"}
    },
    {
      "type": "Feature",
      "geometry": {"type": "Point", "coordinates": [1, 2]},
      "properties": {"osm_type": "N", "osm_id": 2}
    }
  ]
}`

func TestPhotonGeocode(t *testing.T) {
	var got *http.Request
	srv, _ := recordingServer(t, func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Write([]byte(photonBody))
	})

	p, err := NewPhoton(testConfig(WithPhotonURL(srv.URL + "/")))
	require.NoError(t, err)

	near := core.NewCoordinate(37.5, -77.4)
	places, err := p.Geocode(context.Background(), "richmond", &near, 5)
	require.NoError(t, err)

	assert.Equal(t, "/api", got.URL.Path)
	assert.Equal(t, "richmond", got.URL.Query().Get("q"))
	assert.Equal(t, "5", got.URL.Query().Get("limit"))
	assert.Equal(t, "37.5", got.URL.Query().Get("lat"))
	assert.Equal(t, "-77.4", got.URL.Query().Get("lon"))
	assert.Equal(t, "geosearch-test", got.Header.Get("User-Agent"))

	require.Len(t, places, 2)

	city := places[0]
	assert.Equal(t, core.SourceID{Type: core.SourceRelation, ID: 206495}, city.ID)
	assert.Equal(t, "Richmond", city.Name)
	assert.Equal(t, "city", city.Kind)
	assert.Equal(t, "Richmond, Virginia, United States", city.DisplayName)
	assert.InDelta(t, 37.5407, city.Coordinate.Lat, 1e-6)
	assert.InDelta(t, -77.4360, city.Coordinate.Lon, 1e-6)

	house := places[1]
	assert.Equal(t, core.SourceID{Type: core.SourceWay, ID: 42}, house.ID)
	assert.Equal(t, "12 Main Street", house.Name)
	assert.Equal(t, "house", house.Kind)
	assert.Equal(t, "Main Street", house.Address.Street)
	assert.Equal(t, "23220", house.Address.Postcode)
}

func TestPhotonGeocodeErrors(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		srv, _ := recordingServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		p, err := NewPhoton(testConfig(WithPhotonURL(srv.URL)))
		require.NoError(t, err)

		_, err = p.Geocode(context.Background(), "x", nil, 1)
		var se *StatusError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
	})

	t.Run("malformed body", func(t *testing.T) {
		srv, _ := recordingServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[1, 2]`))
		})
		p, err := NewPhoton(testConfig(WithPhotonURL(srv.URL)))
		require.NoError(t, err)

		_, err = p.Geocode(context.Background(), "x", nil, 1)
		assert.ErrorIs(t, err, ErrInvalidResponse)
	})

	t.Run("disabled", func(t *testing.T) {
		_, err := NewPhoton(testConfig(WithPhotonURL("")))
		assert.Error(t, err)
	})
}
