package services

import (
	"rental-pipeline/models"
	"rental-pipeline/utils"
)

// CarryForwardCache fills a listing's expensive derived fields from prior
// work before any recomputation is allowed: first from the previous day's
// snapshot, then from the persisted store. A value already present is never
// overwritten later in the same run; raw fields never participate.
type CarryForwardCache struct {
	tiers  []map[int64]*models.Listing
	logger *utils.Logger
}

// NewCarryForwardCache builds the cache from the previous snapshot (may be
// nil) and the persisted derived fields (may be nil). When the previous
// snapshot repeats a business key, the first occurrence wins.
func NewCarryForwardCache(previous []*models.Listing, stored map[int64]*models.Listing, logger *utils.Logger) *CarryForwardCache {
	var tiers []map[int64]*models.Listing

	if len(previous) > 0 {
		prevTier := make(map[int64]*models.Listing, len(previous))
		for _, l := range previous {
			if _, dup := prevTier[l.HouseID]; !dup {
				prevTier[l.HouseID] = l
			}
		}
		tiers = append(tiers, prevTier)
	}
	if len(stored) > 0 {
		tiers = append(tiers, stored)
	}

	return &CarryForwardCache{tiers: tiers, logger: logger}
}

// Fill copies prior values into today's listings and returns the number of
// fields filled.
func (c *CarryForwardCache) Fill(listings []*models.Listing) int {
	filled := 0
	for _, l := range listings {
		for _, tier := range c.tiers {
			src, ok := tier[l.HouseID]
			if !ok {
				continue
			}
			filled += mergeDerived(l, src)
		}
	}
	c.logger.Info("[carry-forward] filled %d derived fields across %d listings", filled, len(listings))
	return filled
}

// mergeDerived copies each derived field from src into dst when dst has no
// value yet. Values are copied verbatim, sentinels included; the enricher
// applies its own recompute rules afterwards.
func mergeDerived(dst, src *models.Listing) int {
	filled := 0

	copyString := func(d *string, s string) {
		if *d == "" && s != "" {
			*d = s
			filled++
		}
	}
	copyString(&dst.URL, src.URL)
	copyString(&dst.DescriptionEN, src.DescriptionEN)
	copyString(&dst.AvailableDate, src.AvailableDate)
	copyString(&dst.PublishedAt, src.PublishedAt)
	copyString(&dst.KeywordsEN, src.KeywordsEN)
	copyString(&dst.KeywordsCN, src.KeywordsCN)

	if dst.AverageScore.IsUnattempted() && !src.AverageScore.IsUnattempted() {
		dst.AverageScore = src.AverageScore
		dst.Scores = src.Scores
		filled++
	}

	for _, name := range models.SchoolNames() {
		if dst.Commutes[name].IsUnattempted() && !src.Commutes[name].IsUnattempted() {
			dst.Commutes[name] = src.Commutes[name]
			filled++
		}
	}
	return filled
}
