package services

import (
	"context"
	"time"

	"rental-pipeline/config"
	"rental-pipeline/llm"
	"rental-pipeline/models"
	"rental-pipeline/routing"
	"rental-pipeline/utils"
)

// Enricher fills the expensive fields still missing after carry-forward by
// calling the external services. It runs three sequential phases — commute,
// scoring, keywords — each over its own bounded worker pool; a phase only
// starts once the previous pool has fully drained and its results are
// written back into the listing collection by row index.
type Enricher struct {
	planner  *CommutePlanner
	scorer   *Scorer
	keywords *KeywordExtractor
	logger   *utils.Logger

	schools        []models.School
	commuteWorkers int
	commutePacing  time.Duration
	scoringWorkers int
	keywordWorkers int

	now func() time.Time
}

// NewEnricher wires an Enricher from configuration and the external clients.
func NewEnricher(cfg *config.Config, routingSvc routing.Service, chat llm.Chat, logger *utils.Logger) *Enricher {
	return &Enricher{
		planner:        NewCommutePlanner(routingSvc),
		scorer:         NewScorer(chat, logger),
		keywords:       NewKeywordExtractor(chat, logger),
		logger:         logger,
		schools:        models.Schools,
		commuteWorkers: cfg.CommuteWorkers,
		commutePacing:  time.Duration(cfg.CommutePacingMs) * time.Millisecond,
		scoringWorkers: cfg.ScoringWorkers,
		keywordWorkers: cfg.KeywordWorkers,
		now:            time.Now,
	}
}

// Enrich runs all phases to completion. There is no cancellation once a
// phase begins; per-call failures end up as sentinels, never as errors.
func (e *Enricher) Enrich(ctx context.Context, listings []*models.Listing, report *models.RunReport) {
	e.commutePhase(ctx, listings, report)
	e.scoringPhase(ctx, listings, report)
	e.keywordPhase(ctx, listings, KeywordsChinese, report)
	e.keywordPhase(ctx, listings, KeywordsEnglish, report)
}

type commuteJob struct {
	listing *models.Listing
	school  models.School
}

func (e *Enricher) commutePhase(ctx context.Context, listings []*models.Listing, report *models.RunReport) {
	var jobs []commuteJob
	for _, l := range listings {
		for _, school := range e.schools {
			if l.Commutes[school.Name].IsUnattempted() {
				jobs = append(jobs, commuteJob{listing: l, school: school})
			}
		}
	}
	e.logger.Info("[commute] %d (listing, school) pairs need a commute lookup", len(jobs))
	if len(jobs) == 0 {
		return
	}

	departure := routing.NextMorningDeparture(e.now())
	pool := utils.NewWorkerPool(e.commuteWorkers, e.commutePacing)

	results := make([]models.Metric, len(jobs))
	outcomes := make([]CommuteOutcome, len(jobs))
	attempted := make([]bool, len(jobs))

	for i, job := range jobs {
		origin := OriginAddress(job.listing)
		if origin == "" {
			results[i] = models.Failed()
			outcomes[i] = CommuteFailed
			continue
		}

		i, job := i, job
		attempted[i] = true
		pool.Submit(func() {
			results[i], outcomes[i] = e.planner.Lookup(ctx, origin, job.school.Destination, departure)
		})
	}
	pool.Wait()

	for i, job := range jobs {
		job.listing.Commutes[job.school.Name] = results[i]
		if attempted[i] {
			report.CommuteCalls++
		}
		switch outcomes[i] {
		case CommuteDrivingEstimate:
			report.CommuteFallbacks++
		case CommuteFailed:
			report.CommuteFailures++
		}
	}
	e.logger.Info("[commute] done: %d lookups, %d driving fallbacks, %d failures",
		report.CommuteCalls, report.CommuteFallbacks, report.CommuteFailures)
}

func (e *Enricher) scoringPhase(ctx context.Context, listings []*models.Listing, report *models.RunReport) {
	var targets []*models.Listing
	for _, l := range listings {
		// a zero mean is indistinguishable from a failed run in old data,
		// so failed scores are retried alongside unattempted ones
		if l.AverageScore.IsUnattempted() || l.AverageScore.IsFailed() {
			targets = append(targets, l)
		}
	}
	e.logger.Info("[scoring] %d listings need quality scoring", len(targets))
	if len(targets) == 0 {
		return
	}

	pool := utils.NewWorkerPool(e.scoringWorkers, 0)

	scores := make([][models.TotalScores]float64, len(targets))
	means := make([]models.Metric, len(targets))
	calls := make([]int, len(targets))

	for i, l := range targets {
		i, l := i, l
		pool.Submit(func() {
			scores[i], means[i], calls[i] = e.scorer.Score(ctx, l.DescriptionEN)
		})
	}
	pool.Wait()

	for i, l := range targets {
		l.Scores = scores[i]
		l.AverageScore = means[i]
		report.ScoringCalls += calls[i]
	}
	e.logger.Info("[scoring] done: %d assessment calls", report.ScoringCalls)
}

func (e *Enricher) keywordPhase(ctx context.Context, listings []*models.Listing, lang KeywordLanguage, report *models.RunReport) {
	field := func(l *models.Listing) *string {
		if lang == KeywordsChinese {
			return &l.KeywordsCN
		}
		return &l.KeywordsEN
	}
	name := "en"
	if lang == KeywordsChinese {
		name = "cn"
	}

	var targets []*models.Listing
	for _, l := range listings {
		if NeedsKeywords(*field(l)) {
			targets = append(targets, l)
		}
	}
	e.logger.Info("[keywords/%s] %d listings need keyword extraction", name, len(targets))
	if len(targets) == 0 {
		return
	}

	pool := utils.NewWorkerPool(e.keywordWorkers, 0)

	results := make([]string, len(targets))
	calls := make([]int, len(targets))

	for i, l := range targets {
		i, l := i, l
		pool.Submit(func() {
			results[i], calls[i] = e.keywords.Extract(ctx, l.DescriptionEN, lang)
		})
	}
	pool.Wait()

	for i, l := range targets {
		*field(l) = results[i]
		report.KeywordCalls += calls[i]
	}
	e.logger.Info("[keywords/%s] done", name)
}
