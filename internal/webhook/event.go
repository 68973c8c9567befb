// Package webhook turns voice-provider call lifecycle notifications into CRM
// side effects (notes, follow-up tasks, contact qualification, opportunities).
//
// Incoming payloads are classified into a closed set of Event types and
// dispatched with a type switch; function-call parameters are decoded into
// typed structs before any CRM write happens.
package webhook

import (
	"encoding/json"
	"strings"
	"time"
)

// Wire event types.
const (
	TypeCallStarted  = "call-started"
	TypeCallEnded    = "call-ended"
	TypeTranscript   = "transcript"
	TypeFunctionCall = "function-call"
)

// Payload is the JSON body posted by the voice provider.
//
// Some provider versions nest the event under "message"; Normalize flattens it.
type Payload struct {
	Type    string    `json:"type"`
	Call    *CallData `json:"call"`
	Message *Payload  `json:"message,omitempty"`
}

// Normalize returns the innermost payload carrying the event.
func (p Payload) Normalize() Payload {
	if p.Type == "" && p.Call == nil && p.Message != nil {
		return p.Message.Normalize()
	}
	return Payload{Type: p.Type, Call: p.Call}
}

type CallData struct {
	ID       string    `json:"id"`
	Customer *Customer `json:"customer,omitempty"`
	Status   string    `json:"status,omitempty"`

	// Timestamps stay raw so a malformed value does not reject the event.
	StartedAt string `json:"startedAt,omitempty"`
	EndedAt   string `json:"endedAt,omitempty"`

	Transcript   string        `json:"transcript,omitempty"`
	FunctionCall *FunctionCall `json:"functionCall,omitempty"`
}

type Customer struct {
	ContactID string `json:"contactId,omitempty"`
	Number    string `json:"number,omitempty"`
}

type FunctionCall struct {
	Name       string          `json:"name"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

// ContactID returns the CRM contact the call belongs to, or "".
func (c CallData) ContactID() string {
	if c.Customer == nil {
		return ""
	}
	return strings.TrimSpace(c.Customer.ContactID)
}

// DurationSeconds is floor((endedAt - startedAt) / 1s). It is 0 when either
// timestamp is absent or unparseable, and never negative.
func (c CallData) DurationSeconds() int {
	if c.EndedAt == "" || c.StartedAt == "" {
		return 0
	}
	start, ok := parseTimestamp(c.StartedAt)
	if !ok {
		return 0
	}
	end, ok := parseTimestamp(c.EndedAt)
	if !ok {
		return 0
	}
	d := end.Sub(start)
	if d <= 0 {
		return 0
	}
	return int(d / time.Second)
}

// EndedTime returns the parsed endedAt, if any.
func (c CallData) EndedTime() (time.Time, bool) {
	if c.EndedAt == "" {
		return time.Time{}, false
	}
	return parseTimestamp(c.EndedAt)
}

// Event is one classified lifecycle notification. The set is closed.
type Event interface {
	Type() string
	CallData() CallData
	isEvent()
}

type CallStarted struct{ Call CallData }

type CallEnded struct{ Call CallData }

type TranscriptReady struct{ Call CallData }

type FunctionInvoked struct{ Call CallData }

// UnknownEvent carries a type this service does not act on.
type UnknownEvent struct {
	RawType string
	Call    CallData
}

func (CallStarted) Type() string     { return TypeCallStarted }
func (CallEnded) Type() string       { return TypeCallEnded }
func (TranscriptReady) Type() string { return TypeTranscript }
func (FunctionInvoked) Type() string { return TypeFunctionCall }
func (e UnknownEvent) Type() string  { return e.RawType }

func (e CallStarted) CallData() CallData     { return e.Call }
func (e CallEnded) CallData() CallData       { return e.Call }
func (e TranscriptReady) CallData() CallData { return e.Call }
func (e FunctionInvoked) CallData() CallData { return e.Call }
func (e UnknownEvent) CallData() CallData    { return e.Call }

func (CallStarted) isEvent()     {}
func (CallEnded) isEvent()       {}
func (TranscriptReady) isEvent() {}
func (FunctionInvoked) isEvent() {}
func (UnknownEvent) isEvent()    {}

// Classify maps a payload to its Event. A payload without call data is
// rejected with ErrNoCallData.
func Classify(p Payload) (Event, error) {
	p = p.Normalize()
	if p.Call == nil {
		return nil, ErrNoCallData
	}
	call := *p.Call
	switch p.Type {
	case TypeCallStarted:
		return CallStarted{Call: call}, nil
	case TypeCallEnded:
		return CallEnded{Call: call}, nil
	case TypeTranscript:
		return TranscriptReady{Call: call}, nil
	case TypeFunctionCall:
		return FunctionInvoked{Call: call}, nil
	default:
		return UnknownEvent{RawType: p.Type, Call: call}, nil
	}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999Z07",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseTimestamp accepts ISO-8601 forms. Values without a zone are UTC.
func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
