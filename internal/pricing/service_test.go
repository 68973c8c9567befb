package pricing

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBillableSeconds(t *testing.T) {
	// 60s increment, 0 min
	if got := billableSeconds(1, 0, 60); got != 60 {
		t.Fatalf("expected 60, got %d", got)
	}
	if got := billableSeconds(60, 0, 60); got != 60 {
		t.Fatalf("expected 60, got %d", got)
	}
	if got := billableSeconds(61, 0, 60); got != 120 {
		t.Fatalf("expected 120, got %d", got)
	}

	// min billable seconds
	if got := billableSeconds(5, 30, 60); got != 60 {
		t.Fatalf("expected 60, got %d", got)
	}
}

func TestBillableMinutesFromSeconds(t *testing.T) {
	if got := billableMinutesFromSeconds(1); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
	if got := billableMinutesFromSeconds(60); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
	if got := billableMinutesFromSeconds(61); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
}

func TestCalculateCallCost(t *testing.T) {
	svc := NewService(NewStaticRepo("USD", 12, 60, 30))

	cost, err := svc.CalculateCallCost(context.Background(), CallCostRequest{Provider: "vapi", DurationSeconds: 61})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cost.BillableMinutes != 2 || cost.TotalMinor != 24 || cost.Currency != "USD" {
		t.Fatalf("unexpected cost: %+v", cost)
	}

	cost, err = svc.CalculateCallCost(context.Background(), CallCostRequest{Provider: "vapi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cost.TotalMinor != 0 || cost.BillableSeconds != 0 {
		t.Fatalf("unanswered call should be free: %+v", cost)
	}

	if _, err := svc.CalculateCallCost(context.Background(), CallCostRequest{DurationSeconds: -1}); !errors.Is(err, ErrInvalidPricingReq) {
		t.Fatalf("expected ErrInvalidPricingReq, got %v", err)
	}
}

func TestFindMinutePricing_PrefersProviderRow(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	ended := now.Add(-time.Hour)
	repo := &MemoryRepo{Minute: []MinutePricing{
		{ID: "any", RatePerMinuteMinor: 10, Status: PricingStatusActive},
		{ID: "twilio", Provider: "twilio", RatePerMinuteMinor: 2, Status: PricingStatusActive},
		{ID: "twilio-old", Provider: "twilio", RatePerMinuteMinor: 1, Status: PricingStatusActive, EffectiveTo: &ended},
		{ID: "vapi-off", Provider: "vapi", RatePerMinuteMinor: 99, Status: PricingStatusInactive},
	}}

	p, ok, err := repo.FindMinutePricing(context.Background(), "twilio", now)
	if err != nil || !ok || p.ID != "twilio" {
		t.Fatalf("expected twilio row, got %+v ok=%v err=%v", p, ok, err)
	}
	p, ok, _ = repo.FindMinutePricing(context.Background(), "vapi", now)
	if !ok || p.ID != "any" {
		t.Fatalf("expected fallback row, got %+v", p)
	}

	_, err = NewService(&MemoryRepo{}).CalculateCallCost(context.Background(), CallCostRequest{DurationSeconds: 10, At: now})
	if !errors.Is(err, ErrPricingNotFound) {
		t.Fatalf("expected ErrPricingNotFound, got %v", err)
	}
}
