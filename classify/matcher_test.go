package classify

import (
	"testing"

	"github.com/poiesic/geosearch/core"
	"github.com/stretchr/testify/assert"
)

func TestMatchCategory(t *testing.T) {
	tests := []struct {
		query   string
		want    core.Category
		wantHas bool
		nearby  bool
		terms   string
	}{
		{"gas near me", core.CategoryGasStation, true, true, "gas"},
		{"Hospitals", core.CategoryHospital, true, false, "hospitals"},
		{"cops nearby", core.CategoryPoliceStation, true, true, "cops"},
		{"coffee close by", core.CategoryCafe, true, true, "coffee"},
		{"drugstore around me", core.CategoryPharmacy, true, true, "drugstore"},
		{"where is the closest pharmacy", core.CategoryPharmacy, true, false, "where is the closest pharmacy"},
		{"hospitl", core.CategoryHospital, true, false, "hospitl"},
		{"restarant near", core.CategoryRestaurant, true, true, "restarant"},
		{"1600 pennsylvania avenue", 0, false, false, "1600 pennsylvania avenue"},
		{"near me", 0, false, true, ""},
		{"", 0, false, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			m := MatchCategory(tt.query)
			assert.Equal(t, tt.wantHas, m.HasCategory)
			assert.Equal(t, tt.want, m.Category)
			assert.Equal(t, tt.nearby, m.Nearby)
			assert.Equal(t, tt.terms, m.Terms)
		})
	}
}

func TestMatchCategoryPrefersLongestAlias(t *testing.T) {
	m := MatchCategory("best animal hospital in town")
	assert.True(t, m.HasCategory)
	assert.Equal(t, core.CategoryVeterinarian, m.Category)
}

func TestIsNearbyQuery(t *testing.T) {
	assert.True(t, IsNearbyQuery("atm near me"))
	assert.True(t, IsNearbyQuery("ATM NEARBY"))
	assert.False(t, IsNearbyQuery("nearby atm"))
}
