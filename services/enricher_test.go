package services

import (
	"context"
	"testing"
	"time"

	"rental-pipeline/models"
	"rental-pipeline/routing"
)

var testSchools = []models.School{
	{ID: 1, Name: "UNSW", Destination: "University of New South Wales, Kensington NSW 2052, Australia"},
}

func newTestEnricher(svc routing.Service, chat *fakeChat, schools []models.School) *Enricher {
	logger := newTestLogger()
	return &Enricher{
		planner:        NewCommutePlanner(svc),
		scorer:         NewScorer(chat, logger),
		keywords:       NewKeywordExtractor(chat, logger),
		logger:         logger,
		schools:        schools,
		commuteWorkers: 2,
		commutePacing:  0,
		scoringWorkers: 2,
		keywordWorkers: 2,
		now:            time.Now,
	}
}

func fullyEnrichedListing(houseID int64) *models.Listing {
	l := models.NewListing(houseID)
	l.AddressLine1 = "1 Anzac Parade"
	l.AddressLine2 = "kingsford-nsw-2032"
	l.DescriptionEN = "Sunny two-bedroom apartment"
	l.KeywordsEN = "sunny, two-bedroom"
	l.KeywordsCN = "阳光充足, 两居室"
	l.AverageScore = models.Known(12)
	for _, s := range testSchools {
		l.Commutes[s.Name] = models.Known(35)
	}
	return l
}

func TestEnrichSkipsFullyCarriedListings(t *testing.T) {
	svc := &fakeRouting{transitMinutes: 30}
	chat := &fakeChat{responses: []string{wellFormedScores}}
	e := newTestEnricher(svc, chat, testSchools)

	report := &models.RunReport{}
	e.Enrich(context.Background(), []*models.Listing{fullyEnrichedListing(42)}, report)

	if svc.transitCalls+svc.drivingCalls+chat.calls != 0 {
		t.Errorf("carried listing triggered %d routing and %d chat calls; want 0",
			svc.transitCalls+svc.drivingCalls, chat.calls)
	}
}

func TestEnrichCallAccounting(t *testing.T) {
	// missing commute and score, keywords already present:
	// 1 commute lookup + 2 scoring calls, nothing else
	l := fullyEnrichedListing(7)
	l.Commutes["UNSW"] = models.Metric{}
	l.AverageScore = models.Metric{}

	svc := &fakeRouting{transitMinutes: 30}
	chat := &fakeChat{responses: []string{wellFormedScores}}
	e := newTestEnricher(svc, chat, testSchools)

	report := &models.RunReport{}
	e.Enrich(context.Background(), []*models.Listing{l}, report)

	if report.CommuteCalls != 1 || svc.transitCalls != 1 {
		t.Errorf("commute calls = %d; want 1", report.CommuteCalls)
	}
	if report.ScoringCalls != 2 || chat.calls != 2 {
		t.Errorf("scoring calls = %d (chat %d); want 2", report.ScoringCalls, chat.calls)
	}
	if report.KeywordCalls != 0 {
		t.Errorf("keyword calls = %d; want 0", report.KeywordCalls)
	}

	if l.Commutes["UNSW"] != models.Known(30) {
		t.Errorf("commute = %+v; want Known(30)", l.Commutes["UNSW"])
	}
	if !l.AverageScore.IsKnown() {
		t.Errorf("average score = %+v; want Known", l.AverageScore)
	}
}

func TestEnrichFillsBothKeywordLanguages(t *testing.T) {
	l := fullyEnrichedListing(9)
	l.KeywordsEN = ""
	l.KeywordsCN = "N/A"

	svc := &fakeRouting{}
	chat := &fakeChat{responses: []string{"关键词: 阳光, 泳池", "Keywords: sunny, pool"}}
	e := newTestEnricher(svc, chat, testSchools)

	report := &models.RunReport{}
	e.Enrich(context.Background(), []*models.Listing{l}, report)

	if l.KeywordsCN != "阳光, 泳池" {
		t.Errorf("KeywordsCN = %q", l.KeywordsCN)
	}
	if l.KeywordsEN != "sunny, pool" {
		t.Errorf("KeywordsEN = %q", l.KeywordsEN)
	}
	if report.KeywordCalls != 2 {
		t.Errorf("keyword calls = %d; want 2 (one per language)", report.KeywordCalls)
	}
}

func TestCommutePhaseWritesBackByRowIndex(t *testing.T) {
	listings := make([]*models.Listing, 4)
	for i := range listings {
		l := fullyEnrichedListing(int64(100 + i))
		l.Commutes["UNSW"] = models.Metric{}
		listings[i] = l
	}

	svc := &fakeRouting{transitMinutes: 25}
	e := newTestEnricher(svc, &fakeChat{}, testSchools)

	report := &models.RunReport{}
	e.commutePhase(context.Background(), listings, report)

	for i, l := range listings {
		if l.Commutes["UNSW"] != models.Known(25) {
			t.Errorf("listing %d commute = %+v; want Known(25)", i, l.Commutes["UNSW"])
		}
	}
	if report.CommuteCalls != 4 {
		t.Errorf("commute calls = %d; want 4", report.CommuteCalls)
	}
}

func TestCommutePhaseEmptyOriginFailsWithoutCall(t *testing.T) {
	l := fullyEnrichedListing(11)
	l.AddressLine1 = ""
	l.AddressLine2 = ""
	l.Commutes["UNSW"] = models.Metric{}

	svc := &fakeRouting{transitMinutes: 25}
	e := newTestEnricher(svc, &fakeChat{}, testSchools)

	report := &models.RunReport{}
	e.commutePhase(context.Background(), []*models.Listing{l}, report)

	if svc.transitCalls != 0 {
		t.Errorf("routing called %d times for empty origin; want 0", svc.transitCalls)
	}
	if !l.Commutes["UNSW"].IsFailed() {
		t.Errorf("commute = %+v; want Failed", l.Commutes["UNSW"])
	}
	if report.CommuteFailures != 1 {
		t.Errorf("failures = %d; want 1", report.CommuteFailures)
	}
}
