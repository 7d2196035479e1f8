package ingestion

import (
	"testing"

	"github.com/poiesic/geosearch/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceKind(t *testing.T) {
	tests := []struct {
		name string
		tags map[string]string
		want string
	}{
		{"settlement", map[string]string{"place": "town", "amenity": "bank"}, "town"},
		{"non settlement place", map[string]string{"place": "island", "amenity": "bank"}, "bank"},
		{"shop", map[string]string{"shop": "bakery"}, "shop_bakery"},
		{"tourism", map[string]string{"tourism": "museum"}, "museum"},
		{"address", map[string]string{"addr:street": "Elm", "addr:housenumber": "3"}, "address"},
		{"building yes", map[string]string{"addr:street": "Elm", "addr:housenumber": "3", "building": "yes"}, "building"},
		{"building typed", map[string]string{"addr:street": "Elm", "addr:housenumber": "3", "building": "house"}, "building_house"},
		{"street without number", map[string]string{"addr:street": "Elm", "leisure": "park"}, "park"},
		{"office", map[string]string{"office": "lawyer"}, "office_lawyer"},
		{"aeroway", map[string]string{"aeroway": "aerodrome"}, "aerodrome"},
		{"railway", map[string]string{"railway": "station"}, "station"},
		{"named landuse", map[string]string{"landuse": "forest", "name": "Big Woods"}, "forest"},
		{"unnamed landuse", map[string]string{"landuse": "forest"}, ""},
		{"untyped", map[string]string{"name": "Something", "natural": "tree"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, placeKind(tt.tags))
		})
	}
}

func TestDisplayName(t *testing.T) {
	tags := map[string]string{
		"addr:street":      "Main Street",
		"addr:housenumber": "12",
		"addr:city":        "Richmond",
		"addr:state":       "VA",
		"addr:postcode":    "23220",
	}
	assert.Equal(t, "Joe's, 12 Main Street, Richmond, VA, 23220", displayName(tags, "Joe's", "Virginia"))

	assert.Equal(t, "Main Street", displayName(map[string]string{"addr:street": "Main Street"}, "", "Virginia"))
	assert.Equal(t, "Joe's", displayName(map[string]string{"addr:street": "Main Street"}, "Joe's", "Virginia"))
	assert.Equal(t, "Virginia", displayName(map[string]string{}, "", "Virginia"))
}

func TestExtractPlace(t *testing.T) {
	f := feature(1, 37.5, -77.4, map[string]string{
		"addr:street":      "Main Street",
		"addr:housenumber": "12",
		"addr:country":     "US",
	})
	p := extractPlace(f, "Virginia", 0, false)
	require.NotNil(t, p)
	assert.Equal(t, "12 Main Street", p.Name)
	assert.Equal(t, "12 Main Street, US", p.DisplayName)
	assert.Equal(t, "Virginia", p.Address.State)
	assert.Equal(t, "US", p.Address.Country)
	assert.NoError(t, core.ValidatePlace(p))

	assert.Nil(t, extractPlace(feature(2, 0, 0, map[string]string{"amenity": "atm"}), "", core.CategoryATM, true))

	untyped := extractPlace(feature(3, 0, 0, map[string]string{"name": "No Kind"}), "", 0, false)
	require.NotNil(t, untyped)
	assert.Equal(t, "place", untyped.Kind)

	tree := extractPlace(feature(5, 0, 0, map[string]string{"name": "Lone Pine", "natural": "tree"}), "", 0, false)
	require.NotNil(t, tree)
	assert.Equal(t, "tree", tree.Kind)

	unit := extractPlace(feature(6, 1, 1, map[string]string{"addr:unit": "4B"}), "", 0, false)
	require.NotNil(t, unit)
	assert.Equal(t, "4B", unit.Name)
	assert.NoError(t, core.ValidatePlace(unit))

	named := extractPlace(feature(4, 0, 0, map[string]string{"name": "Cell Site", "man_made": "mast"}), "", core.CategoryCellTower, true)
	require.NotNil(t, named)
	assert.Equal(t, "cell_tower", named.Kind)
}

func TestFallbackKind(t *testing.T) {
	assert.Equal(t, "residential", fallbackKind(map[string]string{"highway": "residential", "natural": "wood"}))
	assert.Equal(t, "peak", fallbackKind(map[string]string{"natural": "peak"}))
	assert.Equal(t, "house", fallbackKind(map[string]string{"building": "house"}))
	assert.Equal(t, "place", fallbackKind(map[string]string{"building": "yes"}))
	assert.Equal(t, "place", fallbackKind(nil))
}

func TestAddressFragment(t *testing.T) {
	assert.Equal(t, "Richmond", addressFragment(map[string]string{"addr:city": "Richmond", "addr:postcode": "23220"}))
	assert.Equal(t, "", addressFragment(map[string]string{"addr:city": " ", "name": "x"}))
}

func TestExtractPOI(t *testing.T) {
	tags := map[string]string{
		"name":            "Corner Cafe",
		"amenity":         "cafe",
		"contact:phone":   "555-0101",
		"website":         "https://cafe.example",
		"contact:website": "https://ignored.example",
		"opening_hours":   "Mo-Fr 07:00-15:00",
	}
	place := extractPlace(feature(1, 1, 1, tags), "", core.CategoryCafe, true)
	require.NotNil(t, place)

	poi := extractPOI(place, tags, core.CategoryCafe)
	assert.Equal(t, "555-0101", poi.Phone)
	assert.Equal(t, "https://cafe.example", poi.Website)
	assert.Equal(t, "Mo-Fr 07:00-15:00", poi.OpeningHours)
	assert.Equal(t, place.ID, poi.ID)
	assert.NoError(t, core.ValidatePOI(poi))
}
