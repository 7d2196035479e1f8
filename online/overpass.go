package online

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/geosearch/classify"
	"github.com/poiesic/geosearch/core"
)

// overpassServerTimeout is the query timeout requested from the server, in seconds.
const overpassServerTimeout = 25

// Overpass is a POISource backed by the Overpass API.
type Overpass struct {
	endpoint    string
	http        *httpClient
	classifier  *classify.Classifier
	maxAttempts int
	retryDelay  time.Duration
	logger      *slog.Logger
}

var _ POISource = (*Overpass)(nil)

// NewOverpass creates an Overpass client for cfg.OverpassURL.
func NewOverpass(cfg *Config, opts ...Option) (*Overpass, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.OverpassURL == "" {
		return nil, fmt.Errorf("online config: OverpassURL is required")
	}
	o := buildOptions(cfg, opts)
	return &Overpass{
		endpoint:    cfg.OverpassURL,
		http:        newHTTPClient(cfg, o),
		classifier:  o.classifier,
		maxAttempts: cfg.MaxAttempts,
		retryDelay:  cfg.RetryDelay,
		logger:      o.logger.With("component", "overpass"),
	}, nil
}

type overpassCenter struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type overpassElement struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    *float64          `json:"lat"`
	Lon    *float64          `json:"lon"`
	Center *overpassCenter   `json:"center"`
	Tags   map[string]string `json:"tags"`
}

type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

// FindPOIs implements POISource. Without a category every classified
// feature in bbox is requested.
func (o *Overpass) FindPOIs(ctx context.Context, bbox core.BoundingBox, category *core.Category, limit int) ([]*core.POI, error) {
	query, ok := o.buildQuery(bbox, category)
	if !ok {
		return nil, nil
	}

	var body []byte
	err := RetryWithBackoff(ctx, func() error {
		form := url.Values{"data": {query}}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return Permanent(err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		b, err := o.http.do(req)
		if err != nil {
			var se *StatusError
			if errors.As(err, &se) && se.Retryable() {
				o.logger.Info("overpass overloaded, retrying", "status", se.StatusCode)
				return err
			}
			return Permanent(err)
		}
		body = b
		return nil
	}, o.maxAttempts, o.retryDelay)
	if err != nil {
		return nil, err
	}

	var resp overpassResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: overpass: %w", ErrInvalidResponse, err)
	}

	pois := make([]*core.POI, 0, len(resp.Elements))
	for _, el := range resp.Elements {
		poi, ok := o.toPOI(el)
		if !ok {
			continue
		}
		if category != nil && poi.Category != *category {
			continue
		}
		if !bbox.Contains(poi.Coordinate) {
			continue
		}
		pois = append(pois, poi)
	}

	center := bbox.Center()
	slices.SortStableFunc(pois, func(a, b *core.POI) int {
		return cmp.Compare(center.DistanceTo(a.Coordinate), center.DistanceTo(b.Coordinate))
	})
	if limit > 0 && len(pois) > limit {
		pois = pois[:limit]
	}
	o.logger.Debug("overpass search", "bbox", bbox, "category", category, "results", len(pois))
	return pois, nil
}

// buildQuery returns the Overpass QL for bbox, or false when the
// classifier has no tag filter for the category.
func (o *Overpass) buildQuery(bbox core.BoundingBox, category *core.Category) (string, bool) {
	var filters []classify.Equals
	if category != nil {
		filters = o.classifier.TagFilter(*category)
	} else {
		for _, c := range core.Categories() {
			for _, f := range o.classifier.TagFilter(c) {
				if !slices.Contains(filters, f) {
					filters = append(filters, f)
				}
			}
		}
	}
	if len(filters) == 0 {
		return "", false
	}

	box := fmt.Sprintf("(%s,%s,%s,%s)", coord(bbox.MinLat), coord(bbox.MinLon), coord(bbox.MaxLat), coord(bbox.MaxLon))
	var b strings.Builder
	fmt.Fprintf(&b, "[out:json][timeout:%d];\n(\n", overpassServerTimeout)
	for _, f := range filters {
		sel := fmt.Sprintf("[%q]", f.Key)
		if f.Value != "" {
			sel = fmt.Sprintf("[%q=%q]", f.Key, f.Value)
		}
		fmt.Fprintf(&b, "  node%s%s;\n  way%s%s;\n", sel, box, sel, box)
	}
	b.WriteString(");\nout center;\n")
	return b.String(), true
}

func coord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (o *Overpass) toPOI(el overpassElement) (*core.POI, bool) {
	typ, err := core.ParseSourceType(el.Type)
	if err != nil || len(el.Tags) == 0 {
		return nil, false
	}
	var c core.Coordinate
	switch {
	case el.Lat != nil && el.Lon != nil:
		c = core.NewCoordinate(*el.Lat, *el.Lon)
	case el.Center != nil:
		c = core.NewCoordinate(el.Center.Lat, el.Center.Lon)
	default:
		return nil, false
	}

	category, ok := o.classifier.Classify(el.Tags)
	if !ok {
		return nil, false
	}

	tags := el.Tags
	name := firstTag(tags, "name", "official_name", "alt_name")
	number, street := tags["addr:housenumber"], tags["addr:street"]
	label := shortName(name, number, street)
	if label == "" {
		label = category.Label()
	}

	poi := &core.POI{
		Place: core.Place{
			ID:          core.SourceID{Type: typ, ID: el.ID},
			Coordinate:  c,
			Name:        label,
			DisplayName: displayName(label, number, street, tags["addr:city"], tags["addr:state"], tags["addr:postcode"], tags["addr:country"]),
			Kind:        strings.ToLower(category.String()),
			Address: core.Address{
				Street:      street,
				HouseNumber: number,
				City:        tags["addr:city"],
				Postcode:    tags["addr:postcode"],
				State:       tags["addr:state"],
				Country:     tags["addr:country"],
			},
		},
		Category:     category,
		Phone:        firstTag(tags, "phone", "contact:phone"),
		Website:      firstTag(tags, "website", "contact:website"),
		OpeningHours: tags["opening_hours"],
	}
	if err := core.ValidatePOI(poi); err != nil {
		o.logger.Debug("dropping invalid overpass element", "id", poi.ID, "err", err)
		return nil, false
	}
	return poi, true
}

func firstTag(tags map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := tags[k]; v != "" {
			return v
		}
	}
	return ""
}
