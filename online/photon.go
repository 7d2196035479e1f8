package online

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/poiesic/geosearch/core"
)

// Photon is a Geocoder backed by the Photon search API, which tolerates
// typos in the query.
type Photon struct {
	baseURL string
	http    *httpClient
	logger  *slog.Logger
}

var _ Geocoder = (*Photon)(nil)

// NewPhoton creates a Photon client for cfg.PhotonURL.
func NewPhoton(cfg *Config, opts ...Option) (*Photon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.PhotonURL == "" {
		return nil, fmt.Errorf("online config: PhotonURL is required")
	}
	o := buildOptions(cfg, opts)
	return &Photon{
		baseURL: cfg.PhotonURL,
		http:    newHTTPClient(cfg, o),
		logger:  o.logger.With("component", "photon"),
	}, nil
}

// Geocode implements Geocoder.
func (p *Photon) Geocode(ctx context.Context, query string, near *core.Coordinate, limit int) ([]*core.Place, error) {
	params := url.Values{}
	params.Set("q", query)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if near != nil {
		params.Set("lat", strconv.FormatFloat(near.Lat, 'f', -1, 64))
		params.Set("lon", strconv.FormatFloat(near.Lon, 'f', -1, 64))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	body, err := p.http.do(req)
	if err != nil {
		return nil, err
	}

	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, fmt.Errorf("%w: photon: %w", ErrInvalidResponse, err)
	}

	places := make([]*core.Place, 0, len(fc.Features))
	for _, f := range fc.Features {
		if place, ok := photonPlace(f); ok {
			places = append(places, place)
		}
	}
	places = keepValid(places, p.logger, "photon")
	if limit > 0 && len(places) > limit {
		places = places[:limit]
	}
	p.logger.Debug("photon search", "query", query, "results", len(places))
	return places, nil
}

func photonPlace(f *geojson.Feature) (*core.Place, bool) {
	pt, ok := f.Geometry.(orb.Point)
	if !ok {
		return nil, false
	}
	props := f.Properties
	typ, err := core.ParseSourceType(props.MustString("osm_type", ""))
	if err != nil {
		return nil, false
	}

	name := props.MustString("name", "")
	number := props.MustString("housenumber", "")
	street := props.MustString("street", "")
	city := props.MustString("city", "")
	state := props.MustString("state", "")
	postcode := props.MustString("postcode", "")
	country := props.MustString("country", "")

	kind := props.MustString("osm_value", "")
	if kind == "" {
		kind = props.MustString("type", "")
	}

	return &core.Place{
		ID:          core.SourceID{Type: typ, ID: int64(props.MustInt("osm_id", 0))},
		Coordinate:  core.NewCoordinate(pt.Lat(), pt.Lon()),
		Name:        shortName(name, number, street),
		DisplayName: displayName(name, number, street, city, state, postcode, country),
		Kind:        kind,
		Address: core.Address{
			Street:      street,
			HouseNumber: number,
			City:        city,
			Postcode:    postcode,
			State:       state,
			Country:     country,
		},
	}, true
}
