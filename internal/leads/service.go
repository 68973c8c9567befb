package leads

import (
	"context"
	"fmt"
	"strings"
	"time"

	"voice-campaigns/internal/crm"
	"voice-campaigns/pkg/logger"
)

var manualTags = []string{"manual-entry", "mca-lead"}

// Service creates leads in the CRM and mirrors them in the local lead table.
type Service struct {
	crm   crm.Client
	repo  Repository
	clock func() time.Time
}

func NewService(client crm.Client, repo Repository) *Service {
	if repo == nil {
		repo = NewMemoryRepo()
	}
	return &Service{crm: client, repo: repo, clock: time.Now}
}

// Create registers a manually entered lead: a CRM contact tagged
// manual-entry/mca-lead, then a local row with status new.
func (s *Service) Create(ctx context.Context, in CreateRequest) (*Lead, error) {
	phone := strings.TrimSpace(in.Phone)
	if phone == "" {
		return nil, ErrPhoneRequired
	}

	nc := crm.NewContact{
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		Phone:       phone,
		Email:       in.Email,
		CompanyName: in.BusinessName,
		Tags:        append([]string(nil), manualTags...),
	}
	if cf := qualificationFields(in); len(cf) > 0 {
		nc.CustomFields = cf
	}
	contact, err := s.crm.CreateContact(ctx, nc)
	if err != nil {
		return nil, fmt.Errorf("create crm contact: %w", err)
	}

	now := s.clock().UTC()
	l := Lead{
		ID:             contact.ID,
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		Phone:          phone,
		Email:          in.Email,
		BusinessName:   in.BusinessName,
		CreditScore:    in.CreditScore,
		FundingNeeded:  in.FundingNeeded,
		MonthlyRevenue: in.MonthlyRevenue,
		TimeInBusiness: in.TimeInBusiness,
		Status:         StatusNew,
		Source:         SourceManual,
		Notes:          in.Notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, l); err != nil {
		return nil, err
	}
	logger.From(ctx).Info("lead created", "contact_id", contact.ID)
	return &l, nil
}

// List returns one page of leads. limit <= 0 means DefaultLimit and is
// capped at MaxLimit; a negative offset is treated as 0.
func (s *Service) List(ctx context.Context, limit, offset int) (*Page, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}

	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	return &Page{Leads: items, Total: total, HasMore: offset+limit < total}, nil
}

func qualificationFields(in CreateRequest) map[string]any {
	out := map[string]any{}
	if in.CreditScore != nil {
		out["creditScore"] = *in.CreditScore
	}
	if in.FundingNeeded != nil {
		out["fundingNeeded"] = *in.FundingNeeded
	}
	if in.MonthlyRevenue != nil {
		out["monthlyRevenue"] = *in.MonthlyRevenue
	}
	if in.TimeInBusiness != nil {
		out["timeInBusiness"] = *in.TimeInBusiness
	}
	return out
}
