package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/poiesic/geosearch/cache"
	"github.com/poiesic/geosearch/catalog"
	"github.com/poiesic/geosearch/classify"
	"github.com/poiesic/geosearch/core"
	"github.com/poiesic/geosearch/search"
)

const (
	defaultTextLimit    = 10
	defaultNearbyLimit  = 20
	defaultNearbyRadius = 1000.0

	msgInvalidRequest = "invalid request"
)

var errBadRequest = errors.New("bad request")

// searchText handles GET /v1/search.
func (s *Server) searchText(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, err)
		return
	}
	near, err := coordinate(req.Lat, req.Lon)
	if err != nil {
		badRequest(c, err)
		return
	}
	if req.Limit == 0 {
		req.Limit = defaultTextLimit
	}

	resp, err := s.backend.SearchText(c.Request.Context(), req.Query, near, req.Limit)
	if s.handleError(c, err) {
		return
	}
	c.JSON(http.StatusOK, toResponse(resp, toResult))
}

// searchNearby handles GET /v1/nearby.
func (s *Server) searchNearby(c *gin.Context) {
	var req nearbyRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, err)
		return
	}
	bbox, err := nearbyBounds(&req)
	if err != nil {
		badRequest(c, err)
		return
	}
	category, err := nearbyCategory(&req)
	if err != nil {
		badRequest(c, err)
		return
	}
	if req.Limit == 0 {
		req.Limit = defaultNearbyLimit
	}

	resp, err := s.backend.SearchNearby(c.Request.Context(), bbox, category, req.Limit)
	if s.handleError(c, err) {
		return
	}
	c.JSON(http.StatusOK, toResponse(resp, toPOIResult))
}

// listInstalled handles GET /v1/regions.
func (s *Server) listInstalled(c *gin.Context) {
	entries, err := s.backend.Installed(c.Request.Context())
	if s.handleError(c, err) {
		return
	}
	c.JSON(http.StatusOK, installedRegions(entries))
}

// listAvailable handles GET /v1/regions/available.
func (s *Server) listAvailable(c *gin.Context) {
	entries, err := s.backend.Available(c.Request.Context())
	if s.handleError(c, err) {
		return
	}
	out := make([]Region, len(entries))
	for i, e := range entries {
		out[i] = Region{
			ID:         e.RegionID,
			Name:       e.Name,
			Version:    e.Version,
			BBox:       bboxJSON(e.Bounds),
			SizeBytes:  e.SizeBytes,
			PlaceCount: e.PlaceCount,
			POICount:   e.POICount,
		}
	}
	c.JSON(http.StatusOK, out)
}

// syncRegions handles POST /v1/regions/sync.
func (s *Server) syncRegions(c *gin.Context) {
	entries, err := s.backend.Sync(c.Request.Context())
	if err != nil && len(entries) == 0 {
		s.handleError(c, err)
		return
	}
	body := gin.H{"installed": installedRegions(entries)}
	if err != nil {
		s.logger.Warn("partial region sync", "err", err)
		body["error"] = err.Error()
	}
	c.JSON(http.StatusOK, body)
}

// installRegion handles PUT /v1/regions/:id.
func (s *Server) installRegion(c *gin.Context) {
	entry, err := s.backend.EnsureRegion(c.Request.Context(), c.Param("id"))
	if s.handleError(c, err) {
		return
	}
	c.JSON(http.StatusOK, installedRegions([]core.CacheEntry{entry})[0])
}

// removeRegion handles DELETE /v1/regions/:id.
func (s *Server) removeRegion(c *gin.Context) {
	if s.handleError(c, s.backend.RemoveRegion(c.Request.Context(), c.Param("id"))) {
		return
	}
	c.Status(http.StatusNoContent)
}

func installedRegions(entries []core.CacheEntry) []Region {
	out := make([]Region, len(entries))
	for i, e := range entries {
		out[i] = Region{
			ID:        e.RegionID,
			Version:   e.Version,
			BBox:      bboxJSON(e.Bounds),
			SizeBytes: e.SizeBytes,
		}
		if !e.LastAccess.IsZero() {
			out[i].LastAccess = e.LastAccess.UTC().Format(time.RFC3339)
		}
	}
	return out
}

// coordinate returns nil when neither lat nor lon is given.
func coordinate(lat, lon *float64) (*core.Coordinate, error) {
	if lat == nil && lon == nil {
		return nil, nil
	}
	if lat == nil || lon == nil {
		return nil, fmt.Errorf("%w: lat and lon must be given together", errBadRequest)
	}
	c := core.NewCoordinate(*lat, *lon)
	if !c.Valid() {
		return nil, fmt.Errorf("%w: coordinate %s out of range", errBadRequest, c)
	}
	return &c, nil
}

// nearbyBounds takes an explicit bbox or a box of radius meters around lat/lon.
func nearbyBounds(req *nearbyRequest) (core.BoundingBox, error) {
	if req.BBox != "" {
		return parseBBox(req.BBox)
	}
	center, err := coordinate(req.Lat, req.Lon)
	if err != nil {
		return core.BoundingBox{}, err
	}
	if center == nil {
		return core.BoundingBox{}, fmt.Errorf("%w: bbox or lat/lon required", errBadRequest)
	}
	radius := req.Radius
	if radius == 0 {
		radius = defaultNearbyRadius
	}
	return core.BoundsAround(*center, radius), nil
}

// parseBBox parses "minLat,minLon,maxLat,maxLon".
func parseBBox(s string) (core.BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return core.BoundingBox{}, fmt.Errorf("%w: bbox must be minLat,minLon,maxLat,maxLon", errBadRequest)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return core.BoundingBox{}, fmt.Errorf("%w: bbox: %w", errBadRequest, err)
		}
		v[i] = f
	}
	b := core.BoundingBox{MinLat: v[0], MinLon: v[1], MaxLat: v[2], MaxLon: v[3]}
	if !b.Valid() {
		return core.BoundingBox{}, fmt.Errorf("%w: bbox %s is not a valid box", errBadRequest, b)
	}
	return b, nil
}

// nearbyCategory resolves an explicit category name, or interprets q as
// a category request such as "gas near me". Neither means any category.
func nearbyCategory(req *nearbyRequest) (*core.Category, error) {
	if req.Category != "" {
		c, err := core.ParseCategory(req.Category)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errBadRequest, err)
		}
		return &c, nil
	}
	if req.Query != "" {
		m := classify.MatchCategory(req.Query)
		if !m.HasCategory {
			return nil, fmt.Errorf("%w: no category matches %q", errBadRequest, req.Query)
		}
		return &m.Category, nil
	}
	return nil, nil
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: msgInvalidRequest, Details: err.Error()})
}

// handleError maps engine errors to HTTP statuses. It reports whether err
// was non-nil.
func (s *Server) handleError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, search.ErrInvalidQuery), errors.Is(err, core.ErrInvalidRegionID), errors.Is(err, core.ErrEmptyRegionID):
		status = http.StatusBadRequest
	case errors.Is(err, cache.ErrNotInstalled), errors.Is(err, cache.ErrNotInCatalog):
		status = http.StatusNotFound
	case errors.Is(err, cache.ErrPinned):
		status = http.StatusConflict
	case errors.Is(err, cache.ErrCatalogRequired):
		status = http.StatusNotImplemented
	case errors.Is(err, catalog.ErrCatalogUnavailable), errors.Is(err, catalog.ErrFetchFailed):
		status = http.StatusBadGateway
	case errors.Is(err, search.ErrEngineClosed), errors.Is(err, cache.ErrClosed):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		// client went away
		status = 499
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Request.URL.Path, "request_id", c.GetString(contextRequestIDKey), "err", err)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: err.Error()})
	return true
}
