package online

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/poiesic/geosearch/core"
)

// nominatimBiasRadius is the half size of the preferred area around near.
const nominatimBiasRadius = 50_000

// Nominatim is a Geocoder backed by the Nominatim search API.
type Nominatim struct {
	baseURL string
	http    *httpClient
	logger  *slog.Logger
}

var _ Geocoder = (*Nominatim)(nil)

// NewNominatim creates a Nominatim client for cfg.NominatimURL.
func NewNominatim(cfg *Config, opts ...Option) (*Nominatim, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.NominatimURL == "" {
		return nil, fmt.Errorf("online config: NominatimURL is required")
	}
	o := buildOptions(cfg, opts)
	return &Nominatim{
		baseURL: cfg.NominatimURL,
		http:    newHTTPClient(cfg, o),
		logger:  o.logger.With("component", "nominatim"),
	}, nil
}

type nominatimAddress struct {
	Road         string `json:"road"`
	HouseNumber  string `json:"house_number"`
	Postcode     string `json:"postcode"`
	City         string `json:"city"`
	Town         string `json:"town"`
	Village      string `json:"village"`
	Municipality string `json:"municipality"`
	Hamlet       string `json:"hamlet"`
	State        string `json:"state"`
	Country      string `json:"country"`
}

// city picks the most specific settlement name.
func (a nominatimAddress) city() string {
	for _, v := range []string{a.City, a.Town, a.Village, a.Municipality, a.Hamlet} {
		if v != "" {
			return v
		}
	}
	return ""
}

type nominatimResult struct {
	OSMType     string           `json:"osm_type"`
	OSMID       int64            `json:"osm_id"`
	Lat         string           `json:"lat"`
	Lon         string           `json:"lon"`
	Name        string           `json:"name"`
	DisplayName string           `json:"display_name"`
	Category    string           `json:"category"`
	Type        string           `json:"type"`
	Address     nominatimAddress `json:"address"`
}

// Geocode implements Geocoder.
func (n *Nominatim) Geocode(ctx context.Context, query string, near *core.Coordinate, limit int) ([]*core.Place, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "jsonv2")
	params.Set("addressdetails", "1")
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if near != nil {
		b := core.BoundsAround(*near, nominatimBiasRadius)
		params.Set("viewbox", fmt.Sprintf("%f,%f,%f,%f", b.MinLon, b.MaxLat, b.MaxLon, b.MinLat))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	body, err := n.http.do(req)
	if err != nil {
		return nil, err
	}

	var raw []nominatimResult
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: nominatim: %w", ErrInvalidResponse, err)
	}

	places := make([]*core.Place, 0, len(raw))
	for _, r := range raw {
		if place, ok := nominatimPlace(r); ok {
			places = append(places, place)
		}
	}
	places = keepValid(places, n.logger, "nominatim")
	if limit > 0 && len(places) > limit {
		places = places[:limit]
	}
	n.logger.Debug("nominatim search", "query", query, "results", len(places))
	return places, nil
}

func nominatimPlace(r nominatimResult) (*core.Place, bool) {
	typ, err := core.ParseSourceType(r.OSMType)
	if err != nil {
		return nil, false
	}
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return nil, false
	}
	lon, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return nil, false
	}

	a := r.Address
	display := r.DisplayName
	if display == "" {
		display = displayName(r.Name, a.HouseNumber, a.Road, a.city(), a.State, a.Postcode, a.Country)
	}
	return &core.Place{
		ID:          core.SourceID{Type: typ, ID: r.OSMID},
		Coordinate:  core.NewCoordinate(lat, lon),
		Name:        shortName(r.Name, a.HouseNumber, a.Road),
		DisplayName: display,
		Kind:        r.Type,
		Address: core.Address{
			Street:      a.Road,
			HouseNumber: a.HouseNumber,
			City:        a.city(),
			Postcode:    a.Postcode,
			State:       a.State,
			Country:     a.Country,
		},
	}, true
}
