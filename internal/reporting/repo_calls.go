package reporting

import (
	"context"
	"time"

	"voice-campaigns/internal/calls"
)

// CallLogRepo reads reporting data straight from the call log.
type CallLogRepo struct {
	calls calls.Repository
}

func NewCallLogRepo(r calls.Repository) *CallLogRepo { return &CallLogRepo{calls: r} }

func (r *CallLogRepo) ListCalls(ctx context.Context, from, to time.Time, campaignID string) ([]calls.Call, error) {
	return r.calls.List(ctx, calls.ListFilter{From: from, To: to, CampaignID: campaignID})
}
