package classify

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/geosearch/core"
	"github.com/xrash/smetrics"
)

// maxDistanceRatio bounds fuzzy matches to 30% of the alias length.
const maxDistanceRatio = 0.3

var nearbySuffix = regexp.MustCompile(`(?i)\s*(near\s*me|nearby|near\s*by|close\s*by|around\s*me|near)\s*$`)

type alias struct {
	text     string
	category core.Category
}

var aliases = []alias{
	{"gas", core.CategoryGasStation}, {"gas station", core.CategoryGasStation},
	{"gasoline", core.CategoryGasStation}, {"fuel", core.CategoryGasStation},
	{"petrol", core.CategoryGasStation}, {"petrol station", core.CategoryGasStation},
	{"filling station", core.CategoryGasStation},

	{"hospital", core.CategoryHospital}, {"hospitals", core.CategoryHospital},
	{"emergency room", core.CategoryHospital}, {"er", core.CategoryHospital},
	{"medical center", core.CategoryHospital},

	{"pharmacy", core.CategoryPharmacy}, {"pharmacies", core.CategoryPharmacy},
	{"drugstore", core.CategoryPharmacy}, {"drug store", core.CategoryPharmacy},
	{"chemist", core.CategoryPharmacy},

	{"police", core.CategoryPoliceStation}, {"police station", core.CategoryPoliceStation},
	{"cops", core.CategoryPoliceStation}, {"sheriff", core.CategoryPoliceStation},

	{"fire station", core.CategoryFireStation}, {"fire department", core.CategoryFireStation},
	{"firehouse", core.CategoryFireStation}, {"fire brigade", core.CategoryFireStation},

	{"airport", core.CategoryAirport}, {"airports", core.CategoryAirport},
	{"airfield", core.CategoryAirport},
	{"heliport", core.CategoryHeliport}, {"helipad", core.CategoryHeliport},
	{"helicopter", core.CategoryHeliport},

	{"train station", core.CategoryRailwayStation}, {"railway station", core.CategoryRailwayStation},
	{"train", core.CategoryRailwayStation}, {"railway", core.CategoryRailwayStation},
	{"metro", core.CategoryRailwayStation}, {"subway", core.CategoryRailwayStation},
	{"ferry", core.CategoryFerryTerminal}, {"ferry terminal", core.CategoryFerryTerminal},

	{"parking", core.CategoryParking}, {"parking lot", core.CategoryParking},
	{"car park", core.CategoryParking}, {"garage", core.CategoryParking},

	{"bank", core.CategoryBank}, {"banks", core.CategoryBank},
	{"atm", core.CategoryATM}, {"cash machine", core.CategoryATM},
	{"cash point", core.CategoryATM},

	{"school", core.CategorySchool}, {"schools", core.CategorySchool},
	{"elementary school", core.CategorySchool}, {"high school", core.CategorySchool},

	{"restaurant", core.CategoryRestaurant}, {"restaurants", core.CategoryRestaurant},
	{"food", core.CategoryRestaurant}, {"eat", core.CategoryRestaurant},
	{"dining", core.CategoryRestaurant},

	{"hotel", core.CategoryHotel}, {"hotels", core.CategoryHotel},
	{"motel", core.CategoryHotel}, {"lodging", core.CategoryHotel},
	{"accommodation", core.CategoryHotel}, {"inn", core.CategoryHotel},

	{"cafe", core.CategoryCafe}, {"cafes", core.CategoryCafe},
	{"coffee", core.CategoryCafe}, {"coffee shop", core.CategoryCafe},
	{"coffeeshop", core.CategoryCafe}, {"espresso", core.CategoryCafe},

	{"fast food", core.CategoryFastFood}, {"fastfood", core.CategoryFastFood},
	{"burger", core.CategoryFastFood}, {"burgers", core.CategoryFastFood},
	{"drive thru", core.CategoryFastFood}, {"drive through", core.CategoryFastFood},

	{"bar", core.CategoryBar}, {"bars", core.CategoryBar},
	{"tavern", core.CategoryBar}, {"nightclub", core.CategoryBar},
	{"drinks", core.CategoryBar},
	{"pub", core.CategoryPub}, {"pubs", core.CategoryPub},

	{"supermarket", core.CategorySupermarket}, {"supermarkets", core.CategorySupermarket},
	{"grocery", core.CategorySupermarket}, {"grocery store", core.CategorySupermarket},
	{"groceries", core.CategorySupermarket}, {"food store", core.CategorySupermarket},
	{"market", core.CategorySupermarket},

	{"convenience store", core.CategoryConvenienceStore}, {"convenience", core.CategoryConvenienceStore},
	{"corner store", core.CategoryConvenienceStore},

	{"mall", core.CategoryShoppingMall}, {"shopping mall", core.CategoryShoppingMall},
	{"shopping center", core.CategoryShoppingMall}, {"shopping centre", core.CategoryShoppingMall},

	{"hardware store", core.CategoryHardwareStore}, {"hardware", core.CategoryHardwareStore},

	{"dentist", core.CategoryDentist}, {"dentists", core.CategoryDentist},
	{"dental", core.CategoryDentist}, {"dental office", core.CategoryDentist},

	{"doctor", core.CategoryDoctor}, {"doctors", core.CategoryDoctor},
	{"physician", core.CategoryDoctor}, {"medical office", core.CategoryDoctor},
	{"gp", core.CategoryDoctor},

	{"clinic", core.CategoryClinic}, {"clinics", core.CategoryClinic},
	{"urgent care", core.CategoryClinic}, {"walk in clinic", core.CategoryClinic},

	{"vet", core.CategoryVeterinarian}, {"vets", core.CategoryVeterinarian},
	{"veterinarian", core.CategoryVeterinarian}, {"veterinary", core.CategoryVeterinarian},
	{"animal hospital", core.CategoryVeterinarian}, {"pet doctor", core.CategoryVeterinarian},

	{"car wash", core.CategoryCarWash}, {"carwash", core.CategoryCarWash},
	{"auto wash", core.CategoryCarWash},

	{"laundry", core.CategoryLaundry}, {"laundromat", core.CategoryLaundry},
	{"launderette", core.CategoryLaundry}, {"dry cleaner", core.CategoryLaundry},
	{"dry cleaning", core.CategoryLaundry},

	{"hair salon", core.CategoryHairSalon}, {"hairdresser", core.CategoryHairSalon},
	{"barber", core.CategoryHairSalon}, {"barbershop", core.CategoryHairSalon},
	{"haircut", core.CategoryHairSalon}, {"salon", core.CategoryHairSalon},

	{"cinema", core.CategoryCinema}, {"movie theater", core.CategoryCinema},
	{"movie theatre", core.CategoryCinema}, {"movies", core.CategoryCinema},
	{"theater", core.CategoryCinema}, {"theatre", core.CategoryCinema},

	{"gym", core.CategoryGym}, {"gyms", core.CategoryGym},
	{"fitness", core.CategoryGym}, {"fitness center", core.CategoryGym},
	{"fitness centre", core.CategoryGym}, {"workout", core.CategoryGym},
	{"health club", core.CategoryGym},

	{"cemetery", core.CategoryCemetery}, {"cemeteries", core.CategoryCemetery},
	{"burial ground", core.CategoryCemetery}, {"memorial park", core.CategoryCemetery},
	{"graveyard", core.CategoryGraveYard}, {"grave yard", core.CategoryGraveYard},

	{"church", core.CategoryPlaceOfWorship}, {"churches", core.CategoryPlaceOfWorship},
	{"mosque", core.CategoryPlaceOfWorship}, {"temple", core.CategoryPlaceOfWorship},
	{"synagogue", core.CategoryPlaceOfWorship}, {"chapel", core.CategoryPlaceOfWorship},
	{"place of worship", core.CategoryPlaceOfWorship},

	{"library", core.CategoryLibrary}, {"libraries", core.CategoryLibrary},
	{"public library", core.CategoryLibrary},

	{"post office", core.CategoryPostOffice}, {"postal", core.CategoryPostOffice},
	{"mail", core.CategoryPostOffice},

	{"embassy", core.CategoryEmbassy}, {"embassies", core.CategoryEmbassy},
	{"consulate", core.CategoryEmbassy},

	{"government", core.CategoryGovernment}, {"government office", core.CategoryGovernment},
	{"city hall", core.CategoryGovernment}, {"town hall", core.CategoryGovernment},

	{"prison", core.CategoryPrison}, {"jail", core.CategoryPrison},
	{"correctional", core.CategoryPrison},

	{"camera", core.CategorySurveillance}, {"cameras", core.CategorySurveillance},
	{"surveillance", core.CategorySurveillance}, {"cctv", core.CategorySurveillance},

	{"comm tower", core.CategoryCommTower}, {"communication tower", core.CategoryCommTower},
	{"radio tower", core.CategoryCommTower},
	{"cell tower", core.CategoryCellTower}, {"cell phone tower", core.CategoryCellTower},
	{"cellular tower", core.CategoryCellTower},

	{"power station", core.CategoryPowerStation}, {"power plant", core.CategoryPowerStation},
	{"water tower", core.CategoryWaterTower},
}

var (
	aliasIndex   = make(map[string]core.Category, len(aliases))
	aliasesByLen []alias
)

func init() {
	for _, a := range aliases {
		aliasIndex[a.text] = a.category
	}
	aliasesByLen = append([]alias(nil), aliases...)
	sort.SliceStable(aliasesByLen, func(i, j int) bool {
		return len(aliasesByLen[i].text) > len(aliasesByLen[j].text)
	})
}

// Match is the outcome of interpreting a free-text query as a category request.
type Match struct {
	Category    core.Category
	HasCategory bool
	Nearby      bool   // query ended in "near me", "nearby", ...
	Terms       string // lowercased query with the nearby suffix removed
}

// MatchCategory interprets queries such as "gas near me" or "hospitals".
func MatchCategory(query string) Match {
	normalized := strings.ToLower(strings.TrimSpace(query))
	m := Match{Terms: normalized}
	if normalized == "" {
		return m
	}

	if loc := nearbySuffix.FindStringIndex(normalized); loc != nil {
		m.Nearby = true
		m.Terms = strings.TrimSpace(normalized[:loc[0]])
	}

	if c, ok := aliasIndex[m.Terms]; ok {
		m.Category, m.HasCategory = c, true
		return m
	}

	padded := " " + m.Terms + " "
	for _, a := range aliasesByLen {
		if strings.Contains(padded, " "+a.text+" ") {
			m.Category, m.HasCategory = a.category, true
			return m
		}
	}

	if c, ok := fuzzyMatch(m.Terms); ok {
		m.Category, m.HasCategory = c, true
	}
	return m
}

func fuzzyMatch(terms string) (core.Category, bool) {
	if utf8.RuneCountInString(terms) < 3 {
		return 0, false
	}
	best := -1
	var bestCategory core.Category
	for _, a := range aliases {
		limit := max(1, int(float64(len(a.text))*maxDistanceRatio))
		d := smetrics.WagnerFischer(terms, a.text, 1, 1, 1)
		if d <= limit && (best < 0 || d < best) {
			best = d
			bestCategory = a.category
		}
	}
	return bestCategory, best >= 0
}

// IsNearbyQuery reports whether the query ends in a "near me" style suffix.
func IsNearbyQuery(query string) bool {
	return nearbySuffix.MatchString(query)
}
