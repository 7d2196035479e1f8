// Package classify maps raw OSM tag sets onto the closed POI category set.
//
// Classification is an ordered list of (predicate, category) rules evaluated
// top to bottom; the first matching rule wins. The order resolves features
// that carry tags for more than one category and is part of the contract.
package classify

import "github.com/poiesic/geosearch/core"

// Predicate tests a tag set.
type Predicate interface {
	Match(tags map[string]string) bool
}

// Equals matches when tags[Key] == Value.
type Equals struct {
	Key   string
	Value string
}

func (e Equals) Match(tags map[string]string) bool {
	v, ok := tags[e.Key]
	return ok && v == e.Value
}

// Has matches when Key is present with a non-empty value.
type Has struct {
	Key string
}

func (h Has) Match(tags map[string]string) bool {
	return tags[h.Key] != ""
}

// Rule pairs a predicate with the category it selects.
type Rule struct {
	When     Predicate
	Category core.Category
}

// DefaultRules is the classification policy, in priority order.
var DefaultRules = []Rule{
	{Equals{"amenity", "hospital"}, core.CategoryHospital},
	{Equals{"amenity", "pharmacy"}, core.CategoryPharmacy},
	{Equals{"amenity", "dentist"}, core.CategoryDentist},
	{Equals{"amenity", "doctors"}, core.CategoryDoctor},
	{Equals{"amenity", "clinic"}, core.CategoryClinic},
	{Equals{"amenity", "veterinary"}, core.CategoryVeterinarian},
	{Equals{"amenity", "fire_station"}, core.CategoryFireStation},
	{Equals{"amenity", "police"}, core.CategoryPoliceStation},
	{Equals{"aeroway", "aerodrome"}, core.CategoryAirport},
	{Equals{"aeroway", "helipad"}, core.CategoryHeliport},
	{Equals{"railway", "station"}, core.CategoryRailwayStation},
	{Equals{"amenity", "ferry_terminal"}, core.CategoryFerryTerminal},
	{Equals{"amenity", "parking"}, core.CategoryParking},
	{Equals{"amenity", "fuel"}, core.CategoryGasStation},
	{Equals{"amenity", "car_wash"}, core.CategoryCarWash},
	{Equals{"amenity", "bank"}, core.CategoryBank},
	{Equals{"amenity", "atm"}, core.CategoryATM},
	{Equals{"amenity", "school"}, core.CategorySchool},
	{Equals{"amenity", "restaurant"}, core.CategoryRestaurant},
	{Equals{"tourism", "hotel"}, core.CategoryHotel},
	{Equals{"amenity", "cafe"}, core.CategoryCafe},
	{Equals{"amenity", "fast_food"}, core.CategoryFastFood},
	{Equals{"amenity", "bar"}, core.CategoryBar},
	{Equals{"amenity", "pub"}, core.CategoryPub},
	{Equals{"shop", "supermarket"}, core.CategorySupermarket},
	{Equals{"shop", "convenience"}, core.CategoryConvenienceStore},
	{Equals{"shop", "mall"}, core.CategoryShoppingMall},
	{Equals{"shop", "hardware"}, core.CategoryHardwareStore},
	{Equals{"shop", "laundry"}, core.CategoryLaundry},
	{Equals{"shop", "hairdresser"}, core.CategoryHairSalon},
	{Equals{"amenity", "cinema"}, core.CategoryCinema},
	{Equals{"leisure", "fitness_centre"}, core.CategoryGym},
	{Equals{"landuse", "cemetery"}, core.CategoryCemetery},
	{Equals{"amenity", "grave_yard"}, core.CategoryGraveYard},
	{Equals{"man_made", "surveillance"}, core.CategorySurveillance},
	{Equals{"amenity", "embassy"}, core.CategoryEmbassy},
	{Equals{"office", "government"}, core.CategoryGovernment},
	{Equals{"amenity", "prison"}, core.CategoryPrison},
	{Equals{"man_made", "tower"}, core.CategoryCommTower},
	{Equals{"man_made", "mast"}, core.CategoryCellTower},
	{Equals{"power", "plant"}, core.CategoryPowerStation},
	{Equals{"man_made", "water_tower"}, core.CategoryWaterTower},
	{Equals{"amenity", "post_office"}, core.CategoryPostOffice},
	{Equals{"amenity", "place_of_worship"}, core.CategoryPlaceOfWorship},
	{Equals{"amenity", "library"}, core.CategoryLibrary},
}

// Classifier evaluates an ordered rule list.
type Classifier struct {
	rules []Rule
}

// New returns a classifier over rules. A nil slice selects DefaultRules.
func New(rules []Rule) *Classifier {
	if rules == nil {
		rules = DefaultRules
	}
	return &Classifier{rules: rules}
}

// Default is the classifier over DefaultRules.
var Default = New(nil)

// Classify returns the category of the first matching rule.
func (c *Classifier) Classify(tags map[string]string) (core.Category, bool) {
	if len(tags) == 0 {
		return 0, false
	}
	for _, r := range c.rules {
		if r.When.Match(tags) {
			return r.Category, true
		}
	}
	return 0, false
}

// Rules returns the rule list in evaluation order.
func (c *Classifier) Rules() []Rule {
	return c.rules
}

// TagFilter returns the exact key/value pairs that select category. Rules
// built from other predicates are reported with an empty Value, meaning
// "key present".
func (c *Classifier) TagFilter(category core.Category) []Equals {
	var out []Equals
	for _, r := range c.rules {
		if r.Category != category {
			continue
		}
		switch p := r.When.(type) {
		case Equals:
			out = append(out, p)
		case Has:
			out = append(out, Equals{Key: p.Key})
		}
	}
	return out
}

// Classify applies the default rules.
func Classify(tags map[string]string) (core.Category, bool) {
	return Default.Classify(tags)
}
