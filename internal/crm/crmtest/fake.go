// Package crmtest provides an in-memory crm.Client that records every call.
package crmtest

import (
	"context"
	"fmt"
	"sync"

	"voice-campaigns/internal/crm"
)

// Call is one recorded CRM invocation.
type Call struct {
	Op        string
	ContactID string

	Note        string
	Update      crm.ContactUpdate
	Task        crm.Task
	Opportunity crm.Opportunity
	NewContact  crm.NewContact
}

// Fake is a concurrency-safe recording crm.Client.
//
// Errors maps an operation name ("add_note", "create_task", "update_contact",
// "create_opportunity", "create_contact", "find_contact") to the error it
// should return. A failing call is still recorded.
type Fake struct {
	mu       sync.Mutex
	calls    []Call
	contacts map[string]*crm.Contact
	seq      int

	Errors map[string]error
}

func NewFake() *Fake {
	return &Fake{contacts: map[string]*crm.Contact{}, Errors: map[string]error{}}
}

var _ crm.Client = (*Fake)(nil)

// AddContact seeds an existing contact.
func (f *Fake) AddContact(c crm.Contact) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cc := c
	f.contacts[c.Phone] = &cc
}

// Calls returns a copy of every recorded call in order.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallsTo returns recorded calls for one operation.
func (f *Fake) CallsTo(op string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Writes counts every recorded call other than lookups.
func (f *Fake) Writes() int {
	n := 0
	for _, c := range f.Calls() {
		if c.Op != "find_contact" {
			n++
		}
	}
	return n
}

func (f *Fake) record(c Call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	return f.Errors[c.Op]
}

func (f *Fake) FindContactByPhone(_ context.Context, phone string) (*crm.Contact, error) {
	if err := f.record(Call{Op: "find_contact"}); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.contacts[phone]; ok {
		cc := *c
		return &cc, nil
	}
	return nil, nil
}

func (f *Fake) CreateContact(_ context.Context, in crm.NewContact) (*crm.Contact, error) {
	if err := f.record(Call{Op: "create_contact", NewContact: in}); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	c := &crm.Contact{
		ID:          fmt.Sprintf("contact-%d", f.seq),
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		Phone:       in.Phone,
		Email:       in.Email,
		CompanyName: in.CompanyName,
		Tags:        in.Tags,
	}
	f.contacts[in.Phone] = c
	cc := *c
	return &cc, nil
}

func (f *Fake) UpdateContact(_ context.Context, contactID string, u crm.ContactUpdate) error {
	return f.record(Call{Op: "update_contact", ContactID: contactID, Update: u})
}

func (f *Fake) AddNote(_ context.Context, contactID, body string) error {
	return f.record(Call{Op: "add_note", ContactID: contactID, Note: body})
}

func (f *Fake) CreateTask(_ context.Context, t crm.Task) error {
	return f.record(Call{Op: "create_task", ContactID: t.ContactID, Task: t})
}

func (f *Fake) CreateOpportunity(_ context.Context, o crm.Opportunity) (*crm.OpportunityRecord, error) {
	if err := f.record(Call{Op: "create_opportunity", ContactID: o.ContactID, Opportunity: o}); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	return &crm.OpportunityRecord{ID: fmt.Sprintf("opp-%d", f.seq)}, nil
}
