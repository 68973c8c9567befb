// Package crm talks to the CRM that owns contacts, notes, tasks and
// opportunities. Callers depend on the Client interface; GoHighLevel is the
// production implementation.
package crm

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"voice-campaigns/pkg/restclient"
)

// Client is the set of CRM operations the service consumes.
// Every method is a blocking network call.
type Client interface {
	// FindContactByPhone returns nil, nil when no contact has exactly this phone.
	FindContactByPhone(ctx context.Context, phone string) (*Contact, error)
	CreateContact(ctx context.Context, in NewContact) (*Contact, error)
	UpdateContact(ctx context.Context, contactID string, u ContactUpdate) error
	AddNote(ctx context.Context, contactID, body string) error
	CreateTask(ctx context.Context, t Task) error
	CreateOpportunity(ctx context.Context, o Opportunity) (*OpportunityRecord, error)
}

// APIError is returned for non-2xx CRM responses.
type APIError = restclient.APIError

// ErrContactIDRequired is returned by operations addressed to a contact.
var ErrContactIDRequired = errors.New("crm: contact id is required")

// Contact is the CRM-owned record. Only ID is relied upon by callers.
type Contact struct {
	ID          string         `json:"id"`
	FirstName   string         `json:"firstName,omitempty"`
	LastName    string         `json:"lastName,omitempty"`
	Phone       string         `json:"phone,omitempty"`
	Email       string         `json:"email,omitempty"`
	CompanyName string         `json:"companyName,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	CustomField map[string]any `json:"customField,omitempty"`
}

type NewContact struct {
	FirstName    string         `json:"firstName,omitempty"`
	LastName     string         `json:"lastName,omitempty"`
	Phone        string         `json:"phone"`
	Email        string         `json:"email,omitempty"`
	CompanyName  string         `json:"companyName,omitempty"`
	Tags         []string       `json:"tags,omitempty"`
	CustomFields map[string]any `json:"customFields,omitempty"`
}

// ContactUpdate replaces custom fields and tags on a contact.
type ContactUpdate struct {
	CustomFields map[string]any `json:"customFields,omitempty"`
	Tags         []string       `json:"tags,omitempty"`
}

// Task is a follow-up item attached to a contact.
type Task struct {
	ContactID string
	Title     string
	Body      string
	DueDate   time.Time
}

// MarshalJSON writes dueDate in the millisecond UTC form the CRM stores.
func (t Task) MarshalJSON() ([]byte, error) {
	out := struct {
		ContactID string `json:"contactId"`
		Title     string `json:"title"`
		Body      string `json:"body,omitempty"`
		DueDate   string `json:"dueDate,omitempty"`
	}{
		ContactID: t.ContactID,
		Title:     t.Title,
		Body:      t.Body,
	}
	if !t.DueDate.IsZero() {
		out.DueDate = FormatTime(t.DueDate)
	}
	return json.Marshal(out)
}

// Opportunity is a sales-pipeline record tied to a contact.
type Opportunity struct {
	ContactID     string         `json:"contactId"`
	Name          string         `json:"name"`
	PipelineID    string         `json:"pipelineId"`
	StageID       string         `json:"stageId"`
	MonetaryValue *float64       `json:"monetaryValue,omitempty"`
	CustomFields  map[string]any `json:"customFields,omitempty"`
}

type OpportunityRecord struct {
	ID string `json:"id"`
}

// FormatTime renders t as UTC ISO-8601 with millisecond precision,
// e.g. 2024-03-01T15:00:00.000Z.
func FormatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// FindOrCreateContact looks a contact up by phone and creates it when absent.
// The second return value reports whether a new contact was created.
func FindOrCreateContact(ctx context.Context, c Client, in NewContact) (*Contact, bool, error) {
	existing, err := c.FindContactByPhone(ctx, in.Phone)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}
	created, err := c.CreateContact(ctx, in)
	if err != nil {
		return nil, false, err
	}
	return created, true, nil
}
