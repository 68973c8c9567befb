package pricing

import (
	"context"
	"errors"
	"time"
)

// Service calculates call costs from per-minute rates.
//
// Contract:
// - Pure calculation + repository lookups.
// - No provider API calls; provider-reported costs are not consulted.
type Service struct {
	repo  RateRepository
	clock func() time.Time
}

func NewService(repo RateRepository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

type CallCostRequest struct {
	Provider string

	// DurationSeconds is the call duration in seconds (billable seconds are derived).
	// Zero is a call that never connected and costs nothing.
	DurationSeconds int

	// At determines which effective pricing to use. If zero, service clock is used.
	At time.Time
}

type CallCost struct {
	Provider string
	Currency string

	BillableSeconds int
	BillableMinutes int

	RatePerMinuteMinor int64
	TotalMinor         int64
}

var (
	ErrPricingNotFound   = errors.New("pricing not found")
	ErrInvalidPricingReq = errors.New("invalid pricing request")
)

// CalculateCallCost computes the call cost for a given duration.
func (s *Service) CalculateCallCost(ctx context.Context, req CallCostRequest) (CallCost, error) {
	if req.DurationSeconds < 0 {
		return CallCost{}, ErrInvalidPricingReq
	}

	at := req.At
	if at.IsZero() {
		at = s.clock().UTC()
	}

	mp, ok, err := s.repo.FindMinutePricing(ctx, req.Provider, at)
	if err != nil {
		return CallCost{}, err
	}
	if !ok {
		return CallCost{}, ErrPricingNotFound
	}

	out := CallCost{
		Provider:           req.Provider,
		Currency:           mp.Currency,
		RatePerMinuteMinor: mp.RatePerMinuteMinor,
	}
	if req.DurationSeconds == 0 {
		return out, nil
	}

	out.BillableSeconds = billableSeconds(req.DurationSeconds, mp.MinimumBillableSeconds, mp.BillingIncrementSeconds)
	out.BillableMinutes = billableMinutesFromSeconds(out.BillableSeconds)
	out.TotalMinor = mp.RatePerMinuteMinor * int64(out.BillableMinutes)
	return out, nil
}

// RateRepository abstracts pricing persistence.
type RateRepository interface {
	FindMinutePricing(ctx context.Context, provider string, at time.Time) (MinutePricing, bool, error)
}

func billableSeconds(actualSec int, minSec int, incrementSec int) int {
	if actualSec < 0 {
		return 0
	}
	if minSec <= 0 {
		minSec = 0
	}
	if incrementSec <= 0 {
		incrementSec = 60
	}

	sec := actualSec
	if sec < minSec {
		sec = minSec
	}

	// round up to nearest increment
	q := sec / incrementSec
	r := sec % incrementSec
	if r != 0 {
		q++
	}
	return q * incrementSec
}

func billableMinutesFromSeconds(sec int) int {
	if sec <= 0 {
		return 0
	}
	m := sec / 60
	if sec%60 != 0 {
		m++
	}
	return m
}
