package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPlace() *Place {
	return &Place{
		ID:         SourceID{Type: SourceNode, ID: 1},
		Coordinate: Coordinate{Lat: 37.55, Lon: -77.45},
		Name:       "Central Hospital",
	}
}

func TestValidatePlace(t *testing.T) {
	t.Run("valid place", func(t *testing.T) {
		require.NoError(t, ValidatePlace(validPlace()))
	})

	t.Run("street without name is valid", func(t *testing.T) {
		p := validPlace()
		p.Name = ""
		p.Address.Street = "Main Street"
		require.NoError(t, ValidatePlace(p))
	})

	t.Run("postcode without name", func(t *testing.T) {
		p := validPlace()
		p.Name = ""
		p.Address.Postcode = "23220"
		require.NoError(t, ValidatePlace(p))
	})

	tests := []struct {
		name    string
		mutate  func(p *Place)
		wantErr error
	}{
		{"missing source type", func(p *Place) { p.ID.Type = 0 }, ErrInvalidSourceID},
		{"latitude out of range", func(p *Place) { p.Coordinate.Lat = 91 }, ErrInvalidCoordinate},
		{"NaN longitude", func(p *Place) { p.Coordinate.Lon = math.NaN() }, ErrInvalidCoordinate},
		{"no name or address", func(p *Place) { p.Name = "  " }, ErrInvalidPlace},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPlace()
			tt.mutate(p)
			err := ValidatePlace(p)
			assert.ErrorIs(t, err, ErrInvalidPlace)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("nil place", func(t *testing.T) {
		assert.ErrorIs(t, ValidatePlace(nil), ErrInvalidPlace)
	})
}

func TestValidatePOI(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		poi := &POI{Place: *validPlace(), Category: CategoryHospital}
		require.NoError(t, ValidatePOI(poi))
	})

	t.Run("unknown category", func(t *testing.T) {
		poi := &POI{Place: *validPlace()}
		err := ValidatePOI(poi)
		assert.ErrorIs(t, err, ErrInvalidPOI)
		assert.ErrorIs(t, err, ErrUnknownCategory)
	})

	t.Run("invalid place", func(t *testing.T) {
		poi := &POI{Category: CategoryHospital}
		err := ValidatePOI(poi)
		assert.ErrorIs(t, err, ErrInvalidPOI)
		assert.ErrorIs(t, err, ErrInvalidPlace)
	})
}

func TestValidateInRegion(t *testing.T) {
	bounds := BoundingBox{MinLat: 37, MinLon: -78, MaxLat: 38, MaxLon: -77}
	require.NoError(t, ValidateInRegion(validPlace(), bounds))

	outside := validPlace()
	outside.Coordinate = Coordinate{Lat: 40, Lon: -77.5}
	assert.ErrorIs(t, ValidateInRegion(outside, bounds), ErrOutOfBounds)
}

func TestValidateBounds(t *testing.T) {
	require.NoError(t, ValidateBounds(GlobalBounds))
	assert.ErrorIs(t, ValidateBounds(BoundingBox{MinLat: 10, MaxLat: 5}), ErrInvalidBounds)
}

func TestValidateRegionID(t *testing.T) {
	for _, id := range []string{"monaco", "us-ri", "europe_malta", "v1.2"} {
		assert.NoError(t, ValidateRegionID(id), id)
	}

	assert.ErrorIs(t, ValidateRegionID(""), ErrEmptyRegionID)
	for _, id := range []string{"..", "a/b", ".hidden", "x..y", "tab\tid", "-flag"} {
		assert.ErrorIs(t, ValidateRegionID(id), ErrInvalidRegionID, id)
	}
}
