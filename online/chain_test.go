package online

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/geosearch/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// funcGeocoder adapts a function to Geocoder.
type funcGeocoder func(ctx context.Context, query string) ([]*core.Place, error)

func (f funcGeocoder) Geocode(ctx context.Context, query string, _ *core.Coordinate, _ int) ([]*core.Place, error) {
	return f(ctx, query)
}

func place(id int64, name string) *core.Place {
	return &core.Place{
		ID:         core.SourceID{Type: core.SourceNode, ID: id},
		Coordinate: core.NewCoordinate(37.5, -77.4),
		Name:       name,
	}
}

func returning(places ...*core.Place) funcGeocoder {
	return func(context.Context, string) ([]*core.Place, error) { return places, nil }
}

func failing(err error) funcGeocoder {
	return func(context.Context, string) ([]*core.Place, error) { return nil, err }
}

func TestChain(t *testing.T) {
	errPhoton := errors.New("photon down")
	errNominatim := errors.New("nominatim down")

	t.Run("first answer wins", func(t *testing.T) {
		second := 0
		c := NewChain(nil, returning(place(1, "a")), funcGeocoder(func(context.Context, string) ([]*core.Place, error) {
			second++
			return nil, nil
		}))

		places, err := c.Geocode(context.Background(), "a", nil, 5)
		require.NoError(t, err)
		require.Len(t, places, 1)
		assert.Equal(t, 0, second)
	})

	t.Run("falls back on error", func(t *testing.T) {
		c := NewChain(nil, failing(errPhoton), returning(place(2, "b")))

		places, err := c.Geocode(context.Background(), "b", nil, 5)
		require.NoError(t, err)
		require.Len(t, places, 1)
		assert.Equal(t, "b", places[0].Name)
	})

	t.Run("falls back on empty", func(t *testing.T) {
		c := NewChain(nil, returning(), returning(place(3, "c")))

		places, err := c.Geocode(context.Background(), "c", nil, 5)
		require.NoError(t, err)
		require.Len(t, places, 1)
	})

	t.Run("empty with partial failure", func(t *testing.T) {
		c := NewChain(nil, failing(errPhoton), returning())

		places, err := c.Geocode(context.Background(), "d", nil, 5)
		assert.NoError(t, err)
		assert.Empty(t, places)
	})

	t.Run("all failed", func(t *testing.T) {
		c := NewChain(nil, failing(errPhoton), failing(errNominatim))

		_, err := c.Geocode(context.Background(), "e", nil, 5)
		assert.ErrorIs(t, err, errPhoton)
		assert.ErrorIs(t, err, errNominatim)
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		c := NewChain(nil, funcGeocoder(func(ctx context.Context, _ string) ([]*core.Place, error) {
			calls++
			cancel()
			return nil, ctx.Err()
		}), returning(place(4, "f")))

		_, err := c.Geocode(ctx, "f", nil, 5)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})

	t.Run("no geocoders", func(t *testing.T) {
		c := NewChain(nil, nil)
		assert.Equal(t, 0, c.Len())

		_, err := c.Geocode(context.Background(), "g", nil, 5)
		assert.ErrorIs(t, err, ErrNoGeocoders)
	})
}
