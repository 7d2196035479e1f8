package core

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// coordScale is the fixed precision used to persist coordinates (1e-7 degrees, ~1cm).
const coordScale = 1e7

// Coordinate is a WGS84 latitude/longitude pair.
type Coordinate struct {
	Lat float64
	Lon float64
}

// NewCoordinate returns a coordinate rounded to the persisted precision.
func NewCoordinate(lat, lon float64) Coordinate {
	return Coordinate{Lat: FromE7(ToE7(lat)), Lon: FromE7(ToE7(lon))}
}

// ToE7 converts degrees to the fixed-precision integer representation.
func ToE7(deg float64) int64 {
	return int64(math.Round(deg * coordScale))
}

// FromE7 converts a fixed-precision integer back to degrees.
func FromE7(v int64) float64 {
	return float64(v) / coordScale
}

// Point returns the coordinate as an orb point (lon, lat order).
func (c Coordinate) Point() orb.Point {
	return orb.Point{c.Lon, c.Lat}
}

// Valid reports whether the coordinate lies within WGS84 ranges.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// DistanceTo returns the great-circle distance in meters.
func (c Coordinate) DistanceTo(other Coordinate) float64 {
	return geo.Distance(c.Point(), other.Point())
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.7f,%.7f", c.Lat, c.Lon)
}

// BoundingBox is an axis-aligned latitude/longitude rectangle.
type BoundingBox struct {
	MinLat float64
	MinLon float64
	MaxLat float64
	MaxLon float64
}

// GlobalBounds covers the whole world.
var GlobalBounds = BoundingBox{MinLat: -90, MinLon: -180, MaxLat: 90, MaxLon: 180}

// BoundsFromOrb converts an orb bound to a BoundingBox.
func BoundsFromOrb(b orb.Bound) BoundingBox {
	return BoundingBox{MinLat: b.Min[1], MinLon: b.Min[0], MaxLat: b.Max[1], MaxLon: b.Max[0]}
}

// BoundsAround returns the box extending radius meters around center.
func BoundsAround(center Coordinate, radius float64) BoundingBox {
	return BoundsFromOrb(geo.NewBoundAroundPoint(center.Point(), radius))
}

// Bound returns the box as an orb bound.
func (b BoundingBox) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.MinLon, b.MinLat},
		Max: orb.Point{b.MaxLon, b.MaxLat},
	}
}

// Valid reports whether the box is well formed and within WGS84 ranges.
func (b BoundingBox) Valid() bool {
	lo := Coordinate{Lat: b.MinLat, Lon: b.MinLon}
	hi := Coordinate{Lat: b.MaxLat, Lon: b.MaxLon}
	return lo.Valid() && hi.Valid() && b.MinLat <= b.MaxLat && b.MinLon <= b.MaxLon
}

// IsGlobal reports whether the box covers the whole world.
func (b BoundingBox) IsGlobal() bool {
	return b.MinLat <= -90 && b.MinLon <= -180 && b.MaxLat >= 90 && b.MaxLon >= 180
}

// Contains reports whether c lies inside the box, edges included.
func (b BoundingBox) Contains(c Coordinate) bool {
	return b.Bound().Contains(c.Point())
}

// Intersects reports whether the two boxes overlap, edges included.
func (b BoundingBox) Intersects(other BoundingBox) bool {
	return b.Bound().Intersects(other.Bound())
}

// Center returns the midpoint of the box.
func (b BoundingBox) Center() Coordinate {
	p := b.Bound().Center()
	return Coordinate{Lat: p[1], Lon: p[0]}
}

// Extend returns the smallest box containing b and c.
func (b BoundingBox) Extend(c Coordinate) BoundingBox {
	return BoundsFromOrb(b.Bound().Extend(c.Point()))
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("%.7f,%.7f,%.7f,%.7f", b.MinLat, b.MinLon, b.MaxLat, b.MaxLon)
}
