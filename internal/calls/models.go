package calls

import (
	"errors"
	"strings"
	"time"
)

// Call is one row of the outbound call log.
//
// ProviderCallID is the Vapi call id or the Twilio CallSid. (Provider,
// ProviderCallID) is unique; lifecycle callbacks are matched on that pair.
type Call struct {
	ID             string `json:"id" db:"id"`
	Provider       string `json:"provider" db:"provider"`
	ProviderCallID string `json:"provider_call_id" db:"provider_call_id"`
	ContactID      string `json:"contact_id,omitempty" db:"contact_id"`
	CampaignID     string `json:"campaign_id,omitempty" db:"campaign_id"`
	PhoneNumber    string `json:"phone_number" db:"phone_number"`

	Status CallStatus `json:"status" db:"status"`

	// DurationSeconds is filled in when the call ends.
	DurationSeconds int `json:"duration" db:"duration_seconds"`

	// Qualified is nil until the assistant reports a qualification result.
	Qualified *bool `json:"qualified,omitempty" db:"qualified"`

	RecordingURL string `json:"recording_url,omitempty" db:"recording_url"`

	StartedAt *time.Time `json:"started_at,omitempty" db:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty" db:"ended_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

type CallStatus string

const (
	CallStatusInitiated  CallStatus = "initiated"
	CallStatusQueued     CallStatus = "queued"
	CallStatusRinging    CallStatus = "ringing"
	CallStatusInProgress CallStatus = "in_progress"
	CallStatusCompleted  CallStatus = "completed"
	CallStatusFailed     CallStatus = "failed"
	CallStatusNoAnswer   CallStatus = "no_answer"
	CallStatusBusy       CallStatus = "busy"
	CallStatusCanceled   CallStatus = "canceled"
)

// Terminal reports whether the call can no longer change state.
func (s CallStatus) Terminal() bool {
	switch s {
	case CallStatusCompleted, CallStatusFailed, CallStatusNoAnswer, CallStatusBusy, CallStatusCanceled:
		return true
	}
	return false
}

// NormalizeStatus maps provider status strings (Vapi and Twilio) onto CallStatus.
// Unknown values map to in_progress so a stray callback never ends a call.
func NormalizeStatus(s string) CallStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "queued", "scheduled":
		return CallStatusQueued
	case "ringing":
		return CallStatusRinging
	case "initiated":
		return CallStatusInitiated
	case "ended", "completed":
		return CallStatusCompleted
	case "failed":
		return CallStatusFailed
	case "no-answer", "no_answer":
		return CallStatusNoAnswer
	case "busy":
		return CallStatusBusy
	case "canceled", "cancelled":
		return CallStatusCanceled
	default:
		return CallStatusInProgress
	}
}

const (
	ProviderVapi   = "vapi"
	ProviderTwilio = "twilio"
)

// ListFilter narrows List. Zero values mean "no bound".
type ListFilter struct {
	From       time.Time
	To         time.Time
	CampaignID string
	Limit      int
}

var (
	ErrNotFound = errors.New("calls: not found")

	// ErrStatusChanged means the row was changed (or removed) since it was read.
	ErrStatusChanged = errors.New("calls: status changed concurrently")

	ErrInvalidArgument = errors.New("calls: invalid argument")
	// ErrPhoneRequired is the ErrInvalidArgument returned for a missing phone number.
	ErrPhoneRequired = &argumentError{msg: "Phone number is required"}

	// ErrConcurrencyLimit means the campaign already has its maximum of live calls.
	ErrConcurrencyLimit = errors.New("calls: campaign concurrency limit reached")

	// ErrDialerUnavailable is returned by InitiateDirect when no carrier is configured.
	ErrDialerUnavailable = errors.New("calls: direct dialing is not configured")
)

type argumentError struct{ msg string }

func (e *argumentError) Error() string { return e.msg }

func (e *argumentError) Is(target error) bool { return target == ErrInvalidArgument }

func invalidArgument(msg string) error { return &argumentError{msg: msg} }
