package services

import (
	"context"
	"math"
	"strings"
	"time"

	"rental-pipeline/models"
	"rental-pipeline/routing"
)

// DrivingEstimateFactor converts a driving duration into an estimated
// transit duration when no transit itinerary exists.
const DrivingEstimateFactor = 1.5

// CommuteOutcome records which step of the fallback chain produced a result.
type CommuteOutcome int

const (
	// CommuteTransit means the transit itinerary succeeded.
	CommuteTransit CommuteOutcome = iota
	// CommuteDrivingEstimate means transit failed and the value is the
	// driving duration scaled by DrivingEstimateFactor.
	CommuteDrivingEstimate
	// CommuteFailed means both steps failed; the value is permanently
	// failed and never retried.
	CommuteFailed
)

// CommutePlanner runs the fixed attempt sequence for one (origin,
// destination) pair: transit, then driving scaled by DrivingEstimateFactor,
// then permanent failure. No retry layer sits above this chain.
type CommutePlanner struct {
	svc routing.Service
}

// NewCommutePlanner wraps the routing service.
func NewCommutePlanner(svc routing.Service) *CommutePlanner {
	return &CommutePlanner{svc: svc}
}

// Lookup executes the chain and returns the commute metric with the outcome
// that produced it.
func (p *CommutePlanner) Lookup(ctx context.Context, origin, destination string, departure time.Time) (models.Metric, CommuteOutcome) {
	if minutes, err := p.svc.TransitMinutes(ctx, origin, destination, departure); err == nil && minutes > 0 {
		return models.Known(float64(minutes)), CommuteTransit
	}

	if minutes, err := p.svc.DrivingMinutes(ctx, origin, destination, departure); err == nil && minutes > 0 {
		estimated := math.Round(float64(minutes) * DrivingEstimateFactor)
		return models.Known(estimated), CommuteDrivingEstimate
	}

	return models.Failed(), CommuteFailed
}

// OriginAddress assembles the geocodable origin string for a listing,
// degrading to whichever address line is available.
func OriginAddress(l *models.Listing) string {
	line1 := strings.TrimSpace(l.AddressLine1)
	line2 := strings.TrimSpace(l.AddressLine2)

	switch {
	case line1 != "" && line2 != "":
		return line1 + ", " + line2 + ", Australia"
	case line2 != "":
		return line2 + ", Australia"
	case line1 != "":
		return line1 + ", NSW, Australia"
	default:
		return ""
	}
}
