package services

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"rental-pipeline/llm"
	"rental-pipeline/models"
	"rental-pipeline/utils"
)

const (
	// scoringCalls is how many independent assessment requests are issued
	// per listing; each returns scoreSetsPerCall independently scored sets.
	scoringCalls     = 2
	scoreSetsPerCall = 4
)

const scoringSystemPrompt = `You are a professional residential quality assessor. Score a rental listing on three dimensions, each 0-10:
1. quality: build and renovation standard. Old or defective 0-3, ordinary or underdescribed 4-6, renovated or high-grade materials 7-9, brand new premium 10.
2. livability: space, light, noise, comfort. Cramped or noisy 0-3, unclear or average 4-6, spacious and well ventilated 7-9, exceptional comfort 10.
3. amenities: internal facilities. Basic or undescribed 3-5, ordinary modern appliances 6-8, comprehensive high-end fit-out 9-10.

The aggregate (0-20) = (quality + livability + amenities) / 30 * 20.

Produce exactly 4 independent scoring sets, one per line, in this exact form and nothing else:
quality:X, livability:Y, amenities:Z, aggregate:W
quality:X, livability:Y, amenities:Z, aggregate:W
quality:X, livability:Y, amenities:Z, aggregate:W
quality:X, livability:Y, amenities:Z, aggregate:W`

func scoringUserPrompt(description string) string {
	return fmt.Sprintf(
		"Score the following listing description on quality, livability and amenities (0-10 each) with the aggregate (0-20).\n"+
			"Listing description: %s\n"+
			"Output exactly 4 scoring sets, one per line, with no extra text.", description)
}

var aggregateRegexp = regexp.MustCompile(`(?i)aggregate\s*:\s*(\d+(?:\.\d+)?)`)

// ParseScoreLines extracts the four aggregate values from one assessment
// response. The grammar requires exactly 4 lines; any other line count
// rejects the whole response as four zeros, with no partial credit. A line
// whose aggregate is missing or outside [0,20] scores 0.
func ParseScoreLines(text string) [scoreSetsPerCall]float64 {
	var scores [scoreSetsPerCall]float64

	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) != scoreSetsPerCall {
		return scores
	}

	for i, line := range lines {
		match := aggregateRegexp.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		val, err := strconv.ParseFloat(match[1], 64)
		if err != nil || val < 0 || val > 20 {
			continue
		}
		scores[i] = val
	}
	return scores
}

// Scorer fills a listing's quality scores from the content-assessment
// service.
type Scorer struct {
	chat   llm.Chat
	logger *utils.Logger
}

// NewScorer creates a Scorer over the chat client.
func NewScorer(chat llm.Chat, logger *utils.Logger) *Scorer {
	return &Scorer{chat: chat, logger: logger}
}

// Score issues the independent assessment calls for one description and
// returns all retained aggregates, the stored mean, and the number of calls
// actually made. An empty description is scored zero without any call; a
// zero mean is recorded as a failure so a later run retries it.
func (s *Scorer) Score(ctx context.Context, description string) ([models.TotalScores]float64, models.Metric, int) {
	var all [models.TotalScores]float64

	if strings.TrimSpace(description) == "" || description == "N/A" {
		return all, models.Failed(), 0
	}

	calls := 0
	for call := 0; call < scoringCalls; call++ {
		calls++
		resp, err := s.chat.Complete(ctx, scoringSystemPrompt, scoringUserPrompt(description))
		if err != nil {
			s.logger.Warn("[scoring] assessment call failed: %v", err)
			continue // the four slots for this call stay 0
		}
		set := ParseScoreLines(resp)
		copy(all[call*scoreSetsPerCall:], set[:])
	}

	var sum float64
	for _, v := range all {
		sum += v
	}
	mean := sum / float64(models.TotalScores)
	if mean == 0 {
		return all, models.Failed(), calls
	}
	return all, models.Known(mean), calls
}
