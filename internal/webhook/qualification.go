package webhook

import (
	"context"
	"fmt"

	"voice-campaigns/internal/crm"
)

var (
	qualifiedTags   = []string{"qualified-lead", "voice-campaign"}
	unqualifiedTags = []string{"unqualified", "voice-campaign"}
)

const (
	opportunitySource   = "AI Voice Call"
	unknownBusinessType = "Unknown"
)

// qualifyLead updates the contact, then opens an opportunity for qualified
// leads. A failed opportunity leaves the contact tagged qualified.
func (d *Dispatcher) qualifyLead(ctx context.Context, callID, contactID string, p QualificationParameters) error {
	qualifiedAt := crm.FormatTime(d.now())

	fields := map[string]any{
		"qualified":         yesNo(p.Qualified),
		"qualificationDate": qualifiedAt,
	}
	if p.BusinessType != nil {
		fields["businessType"] = *p.BusinessType
	}
	if p.TimeInBusiness != nil {
		fields["timeInBusiness"] = *p.TimeInBusiness
	}
	if p.MonthlyRevenue != nil {
		fields["monthlyRevenue"] = *p.MonthlyRevenue
	}
	if p.CreditScore != nil {
		fields["creditScore"] = p.CreditScore.Value()
	}
	if p.FundingNeeded != nil {
		fields["fundingNeeded"] = *p.FundingNeeded
	}

	tags := unqualifiedTags
	if p.Qualified {
		tags = qualifiedTags
	}

	if err := d.crm.UpdateContact(ctx, contactID, crm.ContactUpdate{
		CustomFields: fields,
		Tags:         append([]string(nil), tags...),
	}); err != nil {
		return upstream("update_contact", err)
	}
	d.track(ctx, "qualified", func() error { return d.tracker.MarkQualified(ctx, callID, p.Qualified) })

	if !p.Qualified {
		return nil
	}

	businessType := unknownBusinessType
	if p.BusinessType != nil && *p.BusinessType != "" {
		businessType = *p.BusinessType
	}
	_, err := d.crm.CreateOpportunity(ctx, crm.Opportunity{
		ContactID:     contactID,
		Name:          fmt.Sprintf("MCA Funding - %s", businessType),
		PipelineID:    d.pipelineID,
		StageID:       d.stageID,
		MonetaryValue: p.FundingNeeded,
		CustomFields: map[string]any{
			"source":            opportunitySource,
			"qualificationDate": qualifiedAt,
		},
	})
	return upstream("create_opportunity", err)
}

func (d *Dispatcher) scheduleFollowUp(ctx context.Context, contactID string, p SchedulingParameters) error {
	return upstream("create_task", d.crm.CreateTask(ctx, crm.Task{
		ContactID: contactID,
		Title:     "Scheduled follow-up call",
		Body:      fmt.Sprintf("Follow-up call scheduled for %s. Notes: %s", p.PreferredTime, p.Notes),
		DueDate:   p.DueAt,
	}))
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
