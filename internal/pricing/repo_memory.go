package pricing

import (
	"context"
	"time"
)

// MemoryRepo holds rate rows in process. The API server seeds it with the
// single rate from configuration.
type MemoryRepo struct {
	Minute []MinutePricing
}

// NewStaticRepo returns a repo with one active rate for every provider.
func NewStaticRepo(currency string, ratePerMinuteMinor int64, incrementSec, minimumSec int) *MemoryRepo {
	return &MemoryRepo{Minute: []MinutePricing{{
		ID:                      "default",
		Currency:                currency,
		RatePerMinuteMinor:      ratePerMinuteMinor,
		BillingIncrementSeconds: incrementSec,
		MinimumBillableSeconds:  minimumSec,
		Status:                  PricingStatusActive,
	}}}
}

func (r *MemoryRepo) FindMinutePricing(ctx context.Context, provider string, at time.Time) (MinutePricing, bool, error) {
	_ = ctx

	// Prefer a provider-specific row, then the most recent effective one.
	var best MinutePricing
	found := false

	for _, p := range r.Minute {
		if p.Provider != provider && p.Provider != "" {
			continue
		}
		if p.Status != PricingStatusActive {
			continue
		}
		if at.Before(p.EffectiveFrom) {
			continue
		}
		if p.EffectiveTo != nil && !at.Before(*p.EffectiveTo) {
			continue
		}

		if !found || better(p, best, provider) {
			best = p
			found = true
		}
	}

	return best, found, nil
}

func better(p, best MinutePricing, provider string) bool {
	pExact, bestExact := p.Provider == provider, best.Provider == provider
	if pExact != bestExact {
		return pExact
	}
	return p.EffectiveFrom.After(best.EffectiveFrom)
}
