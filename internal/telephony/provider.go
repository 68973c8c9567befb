package telephony

import (
	"context"
	"time"
)

// Provider is the carrier-facing interface used by the call service and the
// operator API.
//
// Rules:
// - No carrier HTTP calls outside telephony adapters.
// - Keep request/response types carrier-agnostic.
type Provider interface {
	Name() string

	MakeCall(ctx context.Context, req MakeCallRequest) (*CallInfo, error)
	GetCallStatus(ctx context.Context, callSID string) (*CallInfo, error)
	// GetCallRecording returns nil, nil when the call has no recording.
	GetCallRecording(ctx context.Context, callSID string) (*Recording, error)
	SendSMS(ctx context.Context, to, body string) (*Message, error)
}

type MakeCallRequest struct {
	To string

	// VoiceURL is fetched by the carrier when the call is answered.
	VoiceURL string
	// StatusCallbackURL receives lifecycle updates for the call.
	StatusCallbackURL string

	Record bool
}

type CallInfo struct {
	SID       string     `json:"callSid"`
	Status    string     `json:"status"`
	To        string     `json:"to"`
	From      string     `json:"from"`
	Direction string     `json:"direction,omitempty"`
	Duration  int        `json:"duration"`
	StartTime *time.Time `json:"startTime,omitempty"`
	EndTime   *time.Time `json:"endTime,omitempty"`
}

type Recording struct {
	SID      string `json:"recordingSid"`
	Duration int    `json:"duration"`
	URL      string `json:"url"`
}

type Message struct {
	SID    string `json:"messageSid"`
	Status string `json:"status"`
	To     string `json:"to"`
	From   string `json:"from"`
}

// StatusUpdate is a normalized carrier status callback.
type StatusUpdate struct {
	CallSID         string
	Status          string
	DurationSeconds int
	RecordingURL    string
	OccurredAt      time.Time
}

// Terminal reports whether no further status callbacks will follow.
func (u StatusUpdate) Terminal() bool {
	switch u.Status {
	case "completed", "busy", "failed", "no-answer", "canceled":
		return true
	}
	return false
}

// StatusSink consumes status callbacks (the call log).
type StatusSink interface {
	RecordCarrierStatus(ctx context.Context, u StatusUpdate) error
}
