package models

// TotalScores is the number of quality-score sets kept per listing:
// 2 assessment calls, 4 independently scored sets each.
const TotalScores = 8

// Property type codes as stored in the properties table.
const (
	PropertyTypeHouse     = 1
	PropertyTypeApartment = 2
)

// Listing is one rental record of a daily snapshot. Raw fields are always
// overwritten by the newest scrape; derived fields are carried forward from
// the previous snapshot or the store and recomputed only when unset.
type Listing struct {
	HouseID int64

	// Raw fields, straight from today's snapshot.
	PricePerWeek  int
	AddressLine1  string
	AddressLine2  string
	BedroomCount  float64
	BathroomCount float64
	ParkingCount  float64
	PropertyType  int

	// Derived fields.
	URL           string
	DescriptionEN string
	AvailableDate string
	PublishedAt   string
	KeywordsEN    string
	KeywordsCN    string
	Scores        [TotalScores]float64
	AverageScore  Metric
	Commutes      map[string]Metric // keyed by school name

	// Surrogate id of the resolved region; 0 until resolution.
	RegionID int64
}

// NewListing returns a Listing with its commute map initialised.
func NewListing(houseID int64) *Listing {
	return &Listing{
		HouseID:  houseID,
		Commutes: make(map[string]Metric, len(Schools)),
	}
}

// Region is a geographic identity parsed from address line 2.
type Region struct {
	ID       int64
	Name     string
	State    string
	Postcode int
}

// School is one of the fixed commute destinations.
type School struct {
	ID          int64
	Name        string
	Destination string
}

// Schools is the fixed destination catalogue. Surrogate ids are assigned by
// the store when the table is seeded.
var Schools = []School{
	{Name: "UNSW", Destination: "University of New South Wales, Kensington NSW 2052, Australia"},
	{Name: "USYD", Destination: "University of Sydney, Camperdown NSW 2006, Australia"},
	{Name: "UTS", Destination: "University of Technology Sydney, Ultimo NSW 2007, Australia"},
}

// SchoolNames returns the catalogue names in declaration order.
func SchoolNames() []string {
	names := make([]string, len(Schools))
	for i, s := range Schools {
		names[i] = s.Name
	}
	return names
}

// RunReport accumulates the run-level counters. Per-row failures are
// swallowed into these counters; the pipeline prefers maximal completion
// over all-or-nothing correctness.
type RunReport struct {
	SnapshotRows         int
	DroppedInvalidRegion int

	CommuteCalls     int
	CommuteFallbacks int
	CommuteFailures  int
	ScoringCalls     int
	KeywordCalls     int

	New            int
	Updated        int
	Skipped        int
	Errored        int
	CommuteFilled  int
	CommuteSkipped int
}
