package online

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/geosearch/core"
	"github.com/poiesic/geosearch/textnorm"
	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "geosearch:geocode:"

// CachedGeocoder keeps non-empty responses of another Geocoder in Redis.
// Redis failures are logged and the wrapped geocoder is asked directly.
type CachedGeocoder struct {
	next   Geocoder
	rdb    redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

var _ Geocoder = (*CachedGeocoder)(nil)

// NewCachedGeocoder wraps next with a Redis response cache. A zero ttl
// keeps entries until Redis evicts them.
func NewCachedGeocoder(next Geocoder, rdb redis.Cmdable, ttl time.Duration, logger *slog.Logger) *CachedGeocoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedGeocoder{next: next, rdb: rdb, ttl: ttl, logger: logger}
}

// Geocode implements Geocoder.
func (c *CachedGeocoder) Geocode(ctx context.Context, query string, near *core.Coordinate, limit int) ([]*core.Place, error) {
	key := cacheKey(query, near, limit)

	cached, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var places []*core.Place
		decodeErr := json.Unmarshal(cached, &places)
		if decodeErr == nil {
			c.logger.Debug("geocode cache hit", "key", key)
			return places, nil
		}
		c.logger.Warn("discarding corrupt geocode cache entry", "key", key, "err", decodeErr)
	case !errors.Is(err, redis.Nil):
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.Warn("geocode cache read failed", "err", err)
	}

	places, err := c.next.Geocode(ctx, query, near, limit)
	if err != nil {
		return nil, err
	}
	if len(places) == 0 {
		return places, nil
	}

	data, err := json.Marshal(places)
	if err != nil {
		c.logger.Warn("failed to encode geocode cache entry", "err", err)
		return places, nil
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("geocode cache write failed", "err", err)
	}
	return places, nil
}

// cacheKey buckets the reference point to about 100 m so nearby callers
// share entries.
func cacheKey(query string, near *core.Coordinate, limit int) string {
	var b strings.Builder
	b.WriteString(cacheKeyPrefix)
	b.WriteString(textnorm.NormalizeName(query))
	if near != nil {
		fmt.Fprintf(&b, "|%.3f,%.3f", near.Lat, near.Lon)
	}
	fmt.Fprintf(&b, "|%d", limit)
	return b.String()
}
