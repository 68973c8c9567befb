package reporting

import "time"

type TimeRange struct {
	From time.Time `json:"start"`
	To   time.Time `json:"end"`
}

type CallAnalyticsRequest struct {
	Range      TimeRange `json:"range"`
	CampaignID string    `json:"campaign_id,omitempty"`
}

// CallAnalytics is the dashboard summary of outbound AI calls.
//
// ConversionRate is qualified leads per call, as a percentage.
// AverageCallDuration is in seconds over calls that connected.
// Costs are in major currency units; the *Minor fields carry the exact sums.
type CallAnalytics struct {
	TotalCalls          int       `json:"totalCalls"`
	SuccessfulCalls     int       `json:"successfulCalls"`
	QualifiedLeads      int       `json:"qualifiedLeads"`
	ConversionRate      float64   `json:"conversionRate"`
	AverageCallDuration float64   `json:"averageCallDuration"`
	CostPerCall         float64   `json:"costPerCall"`
	TotalCost           float64   `json:"totalCost"`
	TotalCostMinor      int64     `json:"totalCostMinor"`
	Currency            string    `json:"currency,omitempty"`
	DateRange           TimeRange `json:"dateRange"`
}

// CallsSummary breaks calls down by final status.
type CallsSummary struct {
	CampaignID string `json:"campaign_id,omitempty"`

	TotalCalls      int `json:"total_calls"`
	CompletedCalls  int `json:"completed_calls"`
	FailedCalls     int `json:"failed_calls"`
	NoAnswerCalls   int `json:"no_answer_calls"`
	BusyCalls       int `json:"busy_calls"`
	CanceledCalls   int `json:"canceled_calls"`
	InProgressCalls int `json:"in_progress_calls"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`

	RecordedCalls int `json:"recorded_calls"`
}
