package reporting

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"voice-campaigns/internal/calls"
	"voice-campaigns/internal/pricing"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

const defaultWindow = 30 * 24 * time.Hour

// Repository reads the call log for a time window.
type Repository interface {
	ListCalls(ctx context.Context, from, to time.Time, campaignID string) ([]calls.Call, error)
}

// CostCalculator prices a single call. *pricing.Service implements it.
type CostCalculator interface {
	CalculateCallCost(ctx context.Context, req pricing.CallCostRequest) (pricing.CallCost, error)
}

type Service struct {
	repo  Repository
	costs CostCalculator
	clock func() time.Time
}

// NewService builds the reporting service. costs may be nil, in which case
// cost fields are zero.
func NewService(repo Repository, costs CostCalculator) *Service {
	return &Service{repo: repo, costs: costs, clock: time.Now}
}

// resolveRange fills a missing bound: To defaults to now, From to 30 days before To.
func (s *Service) resolveRange(r TimeRange) (TimeRange, error) {
	if r.To.IsZero() {
		r.To = s.clock().UTC()
	}
	if r.From.IsZero() {
		r.From = r.To.Add(-defaultWindow)
	}
	if !r.To.After(r.From) {
		return TimeRange{}, ErrInvalidRequest
	}
	return r, nil
}

func (s *Service) listCalls(ctx context.Context, r TimeRange, campaignID string) (TimeRange, []calls.Call, error) {
	if s.repo == nil {
		return TimeRange{}, nil, errors.New("reporting: repository not configured")
	}
	r, err := s.resolveRange(r)
	if err != nil {
		return TimeRange{}, nil, err
	}
	rows, err := s.repo.ListCalls(ctx, r.From, r.To, campaignID)
	if err != nil {
		return TimeRange{}, nil, err
	}
	return r, rows, nil
}

func (s *Service) CallAnalytics(ctx context.Context, req CallAnalyticsRequest) (CallAnalytics, error) {
	r, rows, err := s.listCalls(ctx, req.Range, req.CampaignID)
	if err != nil {
		return CallAnalytics{}, err
	}

	out := CallAnalytics{DateRange: r}
	connected, connectedSeconds := 0, 0
	for _, c := range rows {
		out.TotalCalls++
		if c.Status == calls.CallStatusCompleted {
			out.SuccessfulCalls++
		}
		if c.Qualified != nil && *c.Qualified {
			out.QualifiedLeads++
		}
		if c.DurationSeconds > 0 {
			connected++
			connectedSeconds += c.DurationSeconds
		}

		if s.costs == nil {
			continue
		}
		cost, err := s.costs.CalculateCallCost(ctx, pricing.CallCostRequest{
			Provider:        c.Provider,
			DurationSeconds: c.DurationSeconds,
			At:              c.CreatedAt,
		})
		if err != nil {
			return CallAnalytics{}, fmt.Errorf("price call %s: %w", c.ID, err)
		}
		out.TotalCostMinor += cost.TotalMinor
		if out.Currency == "" {
			out.Currency = cost.Currency
		}
	}

	if out.TotalCalls > 0 {
		out.ConversionRate = round2(float64(out.QualifiedLeads) / float64(out.TotalCalls) * 100)
		out.CostPerCall = round2(minorToMajor(out.TotalCostMinor) / float64(out.TotalCalls))
	}
	if connected > 0 {
		out.AverageCallDuration = round2(float64(connectedSeconds) / float64(connected))
	}
	out.TotalCost = round2(minorToMajor(out.TotalCostMinor))
	return out, nil
}

func (s *Service) CallsSummary(ctx context.Context, req CallAnalyticsRequest) (CallsSummary, error) {
	_, rows, err := s.listCalls(ctx, req.Range, req.CampaignID)
	if err != nil {
		return CallsSummary{}, err
	}

	out := CallsSummary{CampaignID: req.CampaignID}
	for _, c := range rows {
		out.TotalCalls++
		out.TotalDurationSeconds += c.DurationSeconds
		if c.RecordingURL != "" {
			out.RecordedCalls++
		}
		switch c.Status {
		case calls.CallStatusCompleted:
			out.CompletedCalls++
		case calls.CallStatusFailed:
			out.FailedCalls++
		case calls.CallStatusNoAnswer:
			out.NoAnswerCalls++
		case calls.CallStatusBusy:
			out.BusyCalls++
		case calls.CallStatusCanceled:
			out.CanceledCalls++
		default:
			out.InProgressCalls++
		}
	}
	if out.TotalCalls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.TotalCalls
	}
	return out, nil
}

// minorToMajor assumes a two-decimal currency.
func minorToMajor(v int64) float64 { return float64(v) / 100 }

func round2(v float64) float64 { return math.Round(v*100) / 100 }
