package httpapi

import (
	"github.com/poiesic/geosearch/core"
	"github.com/poiesic/geosearch/search"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type searchRequest struct {
	Query string   `form:"q" binding:"required"`
	Lat   *float64 `form:"lat"`
	Lon   *float64 `form:"lon"`
	Limit int      `form:"limit" binding:"omitempty,min=1,max=100"`
}

type nearbyRequest struct {
	Lat      *float64 `form:"lat"`
	Lon      *float64 `form:"lon"`
	Radius   float64  `form:"radius" binding:"omitempty,gt=0,lte=50000"`
	BBox     string   `form:"bbox"`
	Category string   `form:"category"`
	Query    string   `form:"q"`
	Limit    int      `form:"limit" binding:"omitempty,min=1,max=200"`
}

// Address is the postal address of a place.
type Address struct {
	HouseNumber string `json:"house_number,omitempty"`
	Street      string `json:"street,omitempty"`
	City        string `json:"city,omitempty"`
	Postcode    string `json:"postcode,omitempty"`
	State       string `json:"state,omitempty"`
	Country     string `json:"country,omitempty"`
}

// Place is the JSON form of core.Place.
type Place struct {
	ID          string   `json:"id,omitempty"`
	Name        string   `json:"name,omitempty"`
	Label       string   `json:"label"`
	DisplayName string   `json:"display_name,omitempty"`
	Kind        string   `json:"kind,omitempty"`
	Lat         float64  `json:"lat"`
	Lon         float64  `json:"lon"`
	Address     *Address `json:"address,omitempty"`
}

// Result is one text search hit.
type Result struct {
	Place          Place   `json:"place"`
	Score          float64 `json:"score"`
	DistanceMeters float64 `json:"distance_m,omitempty"`
	Provenance     string  `json:"provenance"`
	RegionID       string  `json:"region_id,omitempty"`
}

// POIResult is one nearby search hit.
type POIResult struct {
	Place          Place   `json:"place"`
	Category       string  `json:"category"`
	CategoryLabel  string  `json:"category_label"`
	Phone          string  `json:"phone,omitempty"`
	Website        string  `json:"website,omitempty"`
	OpeningHours   string  `json:"opening_hours,omitempty"`
	DistanceMeters float64 `json:"distance_m"`
	Provenance     string  `json:"provenance"`
	RegionID       string  `json:"region_id,omitempty"`
}

// Response wraps the hits of one search with how they were produced.
type Response[T any] struct {
	Results         []T    `json:"results"`
	Outcome         string `json:"outcome"`
	OfflineCount    int    `json:"offline_count"`
	OnlineConsulted bool   `json:"online_consulted"`
	OnlineError     string `json:"online_error,omitempty"`
}

// Region is an installed or available region.
type Region struct {
	ID         string    `json:"id"`
	Name       string    `json:"name,omitempty"`
	Version    string    `json:"version"`
	BBox       []float64 `json:"bbox"`
	SizeBytes  int64     `json:"size"`
	PlaceCount int       `json:"place_count,omitempty"`
	POICount   int       `json:"poi_count,omitempty"`
	LastAccess string    `json:"last_access,omitempty"`
}

func toPlace(p *core.Place) Place {
	out := Place{
		Name:        p.Name,
		Label:       p.Label(),
		DisplayName: p.DisplayName,
		Kind:        p.Kind,
		Lat:         p.Coordinate.Lat,
		Lon:         p.Coordinate.Lon,
	}
	if !p.ID.IsZero() {
		out.ID = p.ID.String()
	}
	if p.Address != (core.Address{}) {
		out.Address = &Address{
			HouseNumber: p.Address.HouseNumber,
			Street:      p.Address.Street,
			City:        p.Address.City,
			Postcode:    p.Address.Postcode,
			State:       p.Address.State,
			Country:     p.Address.Country,
		}
	}
	return out
}

func toResult(r core.Result) Result {
	return Result{
		Place:          toPlace(&r.Place),
		Score:          r.Score,
		DistanceMeters: r.DistanceMeters,
		Provenance:     r.Provenance.String(),
		RegionID:       r.RegionID,
	}
}

func toPOIResult(r core.POIResult) POIResult {
	return POIResult{
		Place:          toPlace(&r.POI.Place),
		Category:       r.POI.Category.String(),
		CategoryLabel:  r.POI.Category.Label(),
		Phone:          r.POI.Phone,
		Website:        r.POI.Website,
		OpeningHours:   r.POI.OpeningHours,
		DistanceMeters: r.DistanceMeters,
		Provenance:     r.Provenance.String(),
		RegionID:       r.RegionID,
	}
}

func toResponse[T, J any](resp *search.Response[T], convert func(T) J) Response[J] {
	out := Response[J]{
		Results:         make([]J, len(resp.Results)),
		Outcome:         resp.Outcome.String(),
		OfflineCount:    resp.OfflineCount,
		OnlineConsulted: resp.OnlineConsulted,
	}
	for i, r := range resp.Results {
		out.Results[i] = convert(r)
	}
	if resp.OnlineErr != nil {
		out.OnlineError = resp.OnlineErr.Error()
	}
	return out
}

func bboxJSON(b core.BoundingBox) []float64 {
	return []float64{b.MinLat, b.MinLon, b.MaxLat, b.MaxLon}
}
