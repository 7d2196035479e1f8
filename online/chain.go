package online

import (
	"context"
	"errors"
	"log/slog"

	"github.com/poiesic/geosearch/core"
)

// Chain asks geocoders in order and returns the first non-empty answer.
// A geocoder that fails is logged and skipped; an error is returned only
// when every geocoder failed.
type Chain struct {
	geocoders []Geocoder
	logger    *slog.Logger
}

var _ Geocoder = (*Chain)(nil)

// NewChain creates a chain over geocoders. Nil geocoders are ignored.
func NewChain(logger *slog.Logger, geocoders ...Geocoder) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Chain{logger: logger}
	for _, g := range geocoders {
		if g != nil {
			c.geocoders = append(c.geocoders, g)
		}
	}
	return c
}

// Len returns the number of geocoders in the chain.
func (c *Chain) Len() int {
	return len(c.geocoders)
}

// Geocode implements Geocoder.
func (c *Chain) Geocode(ctx context.Context, query string, near *core.Coordinate, limit int) ([]*core.Place, error) {
	if len(c.geocoders) == 0 {
		return nil, ErrNoGeocoders
	}
	var errs []error
	for i, g := range c.geocoders {
		places, err := g.Geocode(ctx, query, near, limit)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			c.logger.Warn("geocoder failed, trying next", "position", i, "err", err)
			errs = append(errs, err)
			continue
		}
		if len(places) > 0 {
			return places, nil
		}
	}
	if len(errs) == len(c.geocoders) {
		return nil, errors.Join(errs...)
	}
	return nil, nil
}
