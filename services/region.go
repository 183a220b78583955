package services

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"rental-pipeline/models"
	"rental-pipeline/storage"
	"rental-pipeline/utils"
)

// Enumerated parse failures. Any of these is a validation gate failure: the
// listing is excluded from enrichment and persistence, counted, not retried.
var (
	ErrNoStateToken = errors.New("region: no state token in address")
	ErrNoLocality   = errors.New("region: no locality token before state")
	ErrNoPostcode   = errors.New("region: no postcode token after state")
	ErrBadPostcode  = errors.New("region: postcode is not a positive integer")
)

// stateAbbreviations are the Australian state/territory tokens recognised in
// an address slug.
var stateAbbreviations = map[string]struct{}{
	"NSW": {}, "VIC": {}, "QLD": {}, "SA": {},
	"WA": {}, "TAS": {}, "ACT": {}, "NT": {},
}

// RegionKey is the typed result of parsing address line 2.
type RegionKey struct {
	Name     string
	State    string
	Postcode int
}

// ParseAddressLine2 parses the hyphen-delimited locality slug that address
// line 2 doubles as, e.g. "bondi-junction-nsw-2022" ⇒ ("bondi junction",
// "NSW", 2022). The state token is matched case-insensitively; at least one
// locality token must precede it and exactly one postcode token must follow.
func ParseAddressLine2(s string) (RegionKey, error) {
	parts := strings.Split(s, "-")

	stateIdx := -1
	for i, part := range parts {
		if _, ok := stateAbbreviations[strings.ToUpper(strings.TrimSpace(part))]; ok {
			stateIdx = i
			break
		}
	}
	if stateIdx < 0 {
		return RegionKey{}, ErrNoStateToken
	}
	if stateIdx == 0 {
		return RegionKey{}, ErrNoLocality
	}
	if stateIdx == len(parts)-1 {
		return RegionKey{}, ErrNoPostcode
	}
	if stateIdx != len(parts)-2 {
		// more than one token after the state: the postcode tail is not clean
		return RegionKey{}, ErrBadPostcode
	}

	postcode, err := strconv.Atoi(strings.TrimSpace(parts[stateIdx+1]))
	if err != nil || postcode <= 0 {
		return RegionKey{}, ErrBadPostcode
	}

	locality := make([]string, 0, stateIdx)
	for _, part := range parts[:stateIdx] {
		locality = append(locality, strings.TrimSpace(part))
	}

	return RegionKey{
		Name:     strings.ToLower(strings.Join(locality, " ")),
		State:    strings.ToUpper(strings.TrimSpace(parts[stateIdx])),
		Postcode: postcode,
	}, nil
}

// RegionResolver performs lookup-or-create against the region table. It runs
// single-threaded and owns an in-memory identity cache, so duplicate-region
// races cannot occur within a run.
type RegionResolver struct {
	store  storage.RegionStore
	logger *utils.Logger
	cache  map[RegionKey]int64
}

// NewRegionResolver creates a resolver over the given region store.
func NewRegionResolver(store storage.RegionStore, logger *utils.Logger) *RegionResolver {
	return &RegionResolver{
		store:  store,
		logger: logger,
		cache:  make(map[RegionKey]int64),
	}
}

// Resolve returns the surrogate id for the region identity, creating the row
// on first sight.
func (r *RegionResolver) Resolve(key RegionKey) (int64, error) {
	if id, ok := r.cache[key]; ok {
		return id, nil
	}

	id, err := r.store.FindRegion(key.Name, key.State, key.Postcode)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		id, err = r.store.CreateRegion(key.Name, key.State, key.Postcode)
		if err != nil {
			return 0, err
		}
		r.logger.Debug("[region] created %s/%s/%d -> id %d", key.Name, key.State, key.Postcode, id)
	}

	r.cache[key] = id
	return id, nil
}

// Gate resolves every listing's region and returns the listings that passed.
// Listings whose address fails structured parsing are dropped from all
// further processing and counted; store failures count as row errors.
func (r *RegionResolver) Gate(listings []*models.Listing, report *models.RunReport) []*models.Listing {
	kept := make([]*models.Listing, 0, len(listings))

	for _, l := range listings {
		key, err := ParseAddressLine2(l.AddressLine2)
		if err != nil {
			r.logger.Debug("[region] dropping house %d (%q): %v", l.HouseID, l.AddressLine2, err)
			report.DroppedInvalidRegion++
			continue
		}

		id, err := r.Resolve(key)
		if err != nil {
			r.logger.Warn("[region] house %d: resolve %v failed: %v", l.HouseID, key, err)
			report.Errored++
			continue
		}

		l.RegionID = id
		kept = append(kept, l)
	}

	r.logger.Info("[region] %d/%d listings passed the region gate (%d dropped, %d errored)",
		len(kept), len(listings), report.DroppedInvalidRegion, report.Errored)
	return kept
}

// String implements fmt.Stringer for log lines.
func (k RegionKey) String() string {
	return fmt.Sprintf("%s/%s/%d", k.Name, k.State, k.Postcode)
}
