package online

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/poiesic/geosearch/core"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func TestCachedGeocoder(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)

	calls := 0
	next := funcGeocoder(func(context.Context, string) ([]*core.Place, error) {
		calls++
		p := place(11, "Café Central")
		p.Address.City = "Vienna"
		return []*core.Place{p}, nil
	})
	c := NewCachedGeocoder(next, rdb, time.Hour, nil)

	first, err := c.Geocode(ctx, "Café Central", nil, 5)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, 1, calls)

	// Equivalent query after normalization hits the cache.
	second, err := c.Geocode(ctx, "cafe   CENTRAL", nil, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)

	key := cacheKey("cafe central", nil, 5)
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Hour, mr.TTL(key))

	// A different limit is a different entry.
	_, err = c.Geocode(ctx, "cafe central", nil, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	mr.FastForward(2 * time.Hour)
	_, err = c.Geocode(ctx, "cafe central", nil, 5)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestCachedGeocoderSkipsEmptyAndErrors(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)

	errDown := errors.New("down")
	c := NewCachedGeocoder(failing(errDown), rdb, time.Minute, nil)
	_, err := c.Geocode(ctx, "x", nil, 5)
	assert.ErrorIs(t, err, errDown)

	c = NewCachedGeocoder(returning(), rdb, time.Minute, nil)
	places, err := c.Geocode(ctx, "x", nil, 5)
	require.NoError(t, err)
	assert.Empty(t, places)
	assert.Empty(t, mr.Keys())
}

func TestCachedGeocoderRedisUnavailable(t *testing.T) {
	mr, rdb := newTestRedis(t)
	mr.Close()

	calls := 0
	c := NewCachedGeocoder(funcGeocoder(func(context.Context, string) ([]*core.Place, error) {
		calls++
		return []*core.Place{place(1, "a")}, nil
	}), rdb, time.Minute, nil)

	places, err := c.Geocode(context.Background(), "a", nil, 5)
	require.NoError(t, err)
	assert.Len(t, places, 1)
	assert.Equal(t, 1, calls)
}

func TestCachedGeocoderCorruptEntry(t *testing.T) {
	mr, rdb := newTestRedis(t)
	require.NoError(t, mr.Set(cacheKey("a", nil, 5), "not json"))

	c := NewCachedGeocoder(returning(place(1, "a")), rdb, time.Minute, nil)
	places, err := c.Geocode(context.Background(), "a", nil, 5)
	require.NoError(t, err)
	assert.Len(t, places, 1)
}

func TestCacheKey(t *testing.T) {
	near := core.NewCoordinate(37.54071, -77.43601)
	assert.Equal(t, "geosearch:geocode:main st|5", cacheKey("Main St.", nil, 5))
	assert.Equal(t, "geosearch:geocode:main st|37.541,-77.436|5", cacheKey("main st", &near, 5))
}
