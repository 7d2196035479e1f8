package online

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/poiesic/geosearch/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nominatimBody = `[
  {
    "osm_type": "node", "osm_id": 7, "lat": "37.5537", "lon": "-77.4603",
    "name": "VCU Medical Center", "display_name": "VCU Medical Center, Richmond, Virginia",
    "category": "amenity", "type": "hospital",
    "address": {"road": "East Marshall Street", "house_number": "1250", "town": "Richmond", "state": "Virginia"}
  },
  {
    "osm_type": "way", "osm_id": 8, "lat": "not a number", "lon": "0", "name": "broken"
  },
  {
    "osm_type": "way", "osm_id": 9, "lat": "37.6", "lon": "-77.5",
    "type": "house", "address": {"road": "Broad Street", "house_number": "3", "village": "Glen Allen"}
  }
]`

func TestNominatimGeocode(t *testing.T) {
	var got *http.Request
	srv, _ := recordingServer(t, func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Write([]byte(nominatimBody))
	})

	n, err := NewNominatim(testConfig(WithNominatimURL(srv.URL)))
	require.NoError(t, err)

	near := core.NewCoordinate(37.5, -77.4)
	places, err := n.Geocode(context.Background(), "vcu medical", &near, 10)
	require.NoError(t, err)

	q := got.URL.Query()
	assert.Equal(t, "/search", got.URL.Path)
	assert.Equal(t, "vcu medical", q.Get("q"))
	assert.Equal(t, "jsonv2", q.Get("format"))
	assert.Equal(t, "1", q.Get("addressdetails"))
	assert.Equal(t, "10", q.Get("limit"))
	assert.Len(t, strings.Split(q.Get("viewbox"), ","), 4)

	require.Len(t, places, 2)

	hospital := places[0]
	assert.Equal(t, core.SourceID{Type: core.SourceNode, ID: 7}, hospital.ID)
	assert.Equal(t, "VCU Medical Center", hospital.Name)
	assert.Equal(t, "VCU Medical Center, Richmond, Virginia", hospital.DisplayName)
	assert.Equal(t, "hospital", hospital.Kind)
	assert.Equal(t, "Richmond", hospital.Address.City)
	assert.InDelta(t, 37.5537, hospital.Coordinate.Lat, 1e-6)

	house := places[1]
	assert.Equal(t, "3 Broad Street", house.Name)
	assert.Equal(t, "Glen Allen", house.Address.City)
	assert.Equal(t, "3 Broad Street, Glen Allen", house.DisplayName)
}

func TestNominatimWithoutNear(t *testing.T) {
	var got *http.Request
	srv, _ := recordingServer(t, func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Write([]byte(`[]`))
	})

	n, err := NewNominatim(testConfig(WithNominatimURL(srv.URL)))
	require.NoError(t, err)

	places, err := n.Geocode(context.Background(), "nowhere", nil, 0)
	require.NoError(t, err)
	assert.Empty(t, places)
	assert.False(t, got.URL.Query().Has("viewbox"))
	assert.False(t, got.URL.Query().Has("limit"))
}
