package core

import (
	"encoding/hex"
	"fmt"
	"hash"
	"strconv"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// SchemaVersion is the region database layout produced by this module.
const SchemaVersion = 2

// SourceType is the OSM element type a record originated from.
type SourceType uint8

const (
	SourceNode SourceType = iota + 1
	SourceWay
	SourceRelation
)

func (t SourceType) String() string {
	switch t {
	case SourceNode:
		return "node"
	case SourceWay:
		return "way"
	case SourceRelation:
		return "relation"
	}
	return "unknown"
}

// ParseSourceType accepts "node", "way", "relation" and the single-letter forms N, W, R.
func ParseSourceType(s string) (SourceType, error) {
	switch strings.ToLower(s) {
	case "node", "n":
		return SourceNode, nil
	case "way", "w":
		return SourceWay, nil
	case "relation", "r":
		return SourceRelation, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidSourceID, s)
}

// SourceID identifies the OSM element a record was extracted from.
type SourceID struct {
	Type SourceType
	ID   int64
}

// IsZero reports whether the id is unset.
func (s SourceID) IsZero() bool {
	return s.Type == 0 && s.ID == 0
}

func (s SourceID) String() string {
	return s.Type.String() + "/" + strconv.FormatInt(s.ID, 10)
}

// ParseSourceID parses the "node/123" form.
func ParseSourceID(s string) (SourceID, error) {
	kind, id, ok := strings.Cut(s, "/")
	if !ok {
		return SourceID{}, fmt.Errorf("%w: %q", ErrInvalidSourceID, s)
	}
	t, err := ParseSourceType(kind)
	if err != nil {
		return SourceID{}, err
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return SourceID{}, fmt.Errorf("%w: %w", ErrInvalidSourceID, err)
	}
	return SourceID{Type: t, ID: n}, nil
}

// Address is the normalized postal address of a place.
type Address struct {
	Street      string
	HouseNumber string
	City        string
	Postcode    string
	State       string
	Country     string
}

// IsZero reports whether every address part is blank.
func (a Address) IsZero() bool {
	for _, p := range []string{a.Street, a.HouseNumber, a.City, a.Postcode, a.State, a.Country} {
		if strings.TrimSpace(p) != "" {
			return false
		}
	}
	return true
}

// Line returns "housenumber, street, city, postcode" skipping empty parts.
func (a Address) Line() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{a.HouseNumber, a.Street, a.City, a.Postcode} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Place is a named or addressable location extracted from map data.
type Place struct {
	ID          SourceID
	Coordinate  Coordinate
	Name        string
	DisplayName string
	Kind        string // structural type, e.g. "city", "shop_bakery", "address"
	Address     Address
}

// Label returns the best human readable label for the place.
func (p *Place) Label() string {
	if p.Name != "" {
		return p.Name
	}
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Address.Line()
}

// POI is a place classified into exactly one Category.
type POI struct {
	Place
	Category     Category
	Phone        string
	Website      string
	OpeningHours string
}

// Provenance records which source produced a result.
type Provenance int

const (
	ProvenanceOffline Provenance = iota + 1
	ProvenanceOnline
)

func (p Provenance) String() string {
	switch p {
	case ProvenanceOffline:
		return "offline"
	case ProvenanceOnline:
		return "online"
	}
	return "unknown"
}

// Result is a text search hit.
type Result struct {
	Place          Place
	Score          float64
	DistanceMeters float64 // only set when the query carried a reference point
	Provenance     Provenance
	RegionID       string // empty for online results
}

// POIResult is a nearby search hit.
type POIResult struct {
	POI            POI
	DistanceMeters float64 // from the center of the query box
	Provenance     Provenance
	RegionID       string
}

// RegionMeta describes a built region database.
type RegionMeta struct {
	RegionID      string
	Name          string
	Version       string
	SchemaVersion int
	Bounds        BoundingBox
	CreatedAt     time.Time
	PlaceCount    int
	POICount      int
	AvgDocLength  float64
	SpatialRoot   uint32
	SpatialHeight int
}

// CatalogEntry is one downloadable region listed by the catalog.
type CatalogEntry struct {
	RegionID   string
	Name       string
	Version    string
	Bounds     BoundingBox
	SizeBytes  int64
	URI        string
	Digest     string // hex BLAKE2b-256 of the artifact; empty when not published
	PlaceCount int
	POICount   int
}

// CacheEntry is a region database installed on local storage.
type CacheEntry struct {
	RegionID   string
	Version    string
	Path       string
	Bounds     BoundingBox
	SizeBytes  int64
	LastAccess time.Time
}

// ContentHasher accumulates region content into a version string.
type ContentHasher struct {
	h hash.Hash
}

// NewContentHasher returns a hasher seeded with the schema version.
func NewContentHasher() *ContentHasher {
	h, _ := blake2b.New(16, nil) // 128 bits
	fmt.Fprintf(h, "schema:%d\n", SchemaVersion)
	return &ContentHasher{h: h}
}

// Write adds content to the hash.
func (c *ContentHasher) Write(p []byte) (int, error) {
	return c.h.Write(p)
}

// Version returns the hex encoded content version.
func (c *ContentHasher) Version() string {
	return hex.EncodeToString(c.h.Sum(nil))
}

// NewDigest returns a streaming BLAKE2b-256 hash used for artifact digests.
func NewDigest() hash.Hash {
	h, _ := blake2b.New256(nil)
	return h
}
