package core

import (
	"fmt"
	"strings"
)

// Category is the closed set of POI kinds. The zero value means "not a POI".
type Category uint8

const (
	CategoryHospital Category = iota + 1
	CategoryPharmacy
	CategoryDentist
	CategoryDoctor
	CategoryClinic
	CategoryVeterinarian
	CategoryFireStation
	CategoryPoliceStation
	CategoryAirport
	CategoryHeliport
	CategoryRailwayStation
	CategoryFerryTerminal
	CategoryParking
	CategoryGasStation
	CategoryCarWash
	CategoryBank
	CategoryATM
	CategorySchool
	CategoryRestaurant
	CategoryHotel
	CategoryCafe
	CategoryFastFood
	CategoryBar
	CategoryPub
	CategorySupermarket
	CategoryConvenienceStore
	CategoryShoppingMall
	CategoryHardwareStore
	CategoryLaundry
	CategoryHairSalon
	CategoryCinema
	CategoryGym
	CategoryCemetery
	CategoryGraveYard
	CategorySurveillance
	CategoryEmbassy
	CategoryGovernment
	CategoryPrison
	CategoryCommTower
	CategoryCellTower
	CategoryPowerStation
	CategoryWaterTower
	CategoryPostOffice
	CategoryPlaceOfWorship
	CategoryLibrary
)

var categoryNames = [...]string{
	CategoryHospital:         "HOSPITAL",
	CategoryPharmacy:         "PHARMACY",
	CategoryDentist:          "DENTIST",
	CategoryDoctor:           "DOCTOR",
	CategoryClinic:           "CLINIC",
	CategoryVeterinarian:     "VETERINARIAN",
	CategoryFireStation:      "FIRE_STATION",
	CategoryPoliceStation:    "POLICE_STATION",
	CategoryAirport:          "AIRPORT",
	CategoryHeliport:         "HELIPORT",
	CategoryRailwayStation:   "RAILWAY_STATION",
	CategoryFerryTerminal:    "FERRY_TERMINAL",
	CategoryParking:          "PARKING",
	CategoryGasStation:       "GAS_STATION",
	CategoryCarWash:          "CAR_WASH",
	CategoryBank:             "BANK",
	CategoryATM:              "ATM",
	CategorySchool:           "SCHOOL",
	CategoryRestaurant:       "RESTAURANT",
	CategoryHotel:            "HOTEL",
	CategoryCafe:             "CAFE",
	CategoryFastFood:         "FAST_FOOD",
	CategoryBar:              "BAR",
	CategoryPub:              "PUB",
	CategorySupermarket:      "SUPERMARKET",
	CategoryConvenienceStore: "CONVENIENCE_STORE",
	CategoryShoppingMall:     "SHOPPING_MALL",
	CategoryHardwareStore:    "HARDWARE_STORE",
	CategoryLaundry:          "LAUNDRY",
	CategoryHairSalon:        "HAIR_SALON",
	CategoryCinema:           "CINEMA",
	CategoryGym:              "GYM",
	CategoryCemetery:         "CEMETERY",
	CategoryGraveYard:        "GRAVE_YARD",
	CategorySurveillance:     "SURVEILLANCE",
	CategoryEmbassy:          "EMBASSY",
	CategoryGovernment:       "GOVERNMENT",
	CategoryPrison:           "PRISON",
	CategoryCommTower:        "COMM_TOWER",
	CategoryCellTower:        "CELL_TOWER",
	CategoryPowerStation:     "POWER_STATION",
	CategoryWaterTower:       "WATER_TOWER",
	CategoryPostOffice:       "POST_OFFICE",
	CategoryPlaceOfWorship:   "PLACE_OF_WORSHIP",
	CategoryLibrary:          "LIBRARY",
}

// Categories returns every category in declaration order.
func Categories() []Category {
	out := make([]Category, 0, len(categoryNames)-1)
	for c := CategoryHospital; c <= CategoryLibrary; c++ {
		out = append(out, c)
	}
	return out
}

// Valid reports whether c is a member of the enumeration.
func (c Category) Valid() bool {
	return c >= CategoryHospital && c <= CategoryLibrary
}

func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Category(%d)", uint8(c))
	}
	return categoryNames[c]
}

// Label returns a human readable name, e.g. "Gas Station".
func (c Category) Label() string {
	words := strings.Split(strings.ToLower(c.String()), "_")
	for i, w := range words {
		if w == "atm" {
			words[i] = "ATM"
			continue
		}
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// ParseCategory parses a category name such as "GAS_STATION" or "gas station".
func ParseCategory(s string) (Category, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	name = strings.NewReplacer(" ", "_", "-", "_").Replace(name)
	for c := CategoryHospital; c <= CategoryLibrary; c++ {
		if categoryNames[c] == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// MarshalText implements encoding.TextMarshaler.
func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCategory, uint8(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
