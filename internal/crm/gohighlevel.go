package crm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"voice-campaigns/pkg/restclient"
)

const DefaultGoHighLevelBaseURL = "https://rest.gohighlevel.com/v1"

type GoHighLevelConfig struct {
	APIKey     string
	LocationID string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
	Recorder   restclient.Recorder
}

// GoHighLevel implements Client against the GoHighLevel REST v1 API.
type GoHighLevel struct {
	rest       *restclient.Client
	locationID string
}

func NewGoHighLevel(cfg GoHighLevelConfig) (*GoHighLevel, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("crm: api key is required")
	}
	if strings.TrimSpace(cfg.LocationID) == "" {
		return nil, errors.New("crm: location id is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultGoHighLevelBaseURL
	}
	apiKey := cfg.APIKey
	rest, err := restclient.New(restclient.Config{
		Provider:   "gohighlevel",
		BaseURL:    baseURL,
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
		Backoff:    cfg.Backoff,
		HTTPClient: cfg.HTTPClient,
		Logger:     cfg.Logger,
		Recorder:   cfg.Recorder,
		Authorize: func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+apiKey)
		},
	})
	if err != nil {
		return nil, err
	}
	return &GoHighLevel{rest: rest, locationID: cfg.LocationID}, nil
}

func (g *GoHighLevel) FindContactByPhone(ctx context.Context, phone string) (*Contact, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, errors.New("crm: phone is required")
	}
	body, err := restclient.JSON(map[string]string{
		"locationId": g.locationID,
		"query":      phone,
	})
	if err != nil {
		return nil, err
	}
	var resp struct {
		Contacts []Contact `json:"contacts"`
	}
	if err := g.rest.DoJSON(ctx, restclient.Request{
		Operation: "search_contacts",
		Method:    http.MethodPost,
		Path:      "/contacts/search",
		Body:      body,
		Retry:     true,
	}, &resp); err != nil {
		return nil, err
	}
	// search is fuzzy; only an exact phone match counts
	for i := range resp.Contacts {
		if resp.Contacts[i].Phone == phone {
			c := resp.Contacts[i]
			return &c, nil
		}
	}
	return nil, nil
}

func (g *GoHighLevel) CreateContact(ctx context.Context, in NewContact) (*Contact, error) {
	if strings.TrimSpace(in.Phone) == "" {
		return nil, errors.New("crm: phone is required")
	}
	body, err := restclient.JSON(struct {
		LocationID string `json:"locationId"`
		NewContact
	}{LocationID: g.locationID, NewContact: in})
	if err != nil {
		return nil, err
	}
	data, err := g.rest.Do(ctx, restclient.Request{
		Operation: "create_contact",
		Method:    http.MethodPost,
		Path:      "/contacts/",
		Body:      body,
	})
	if err != nil {
		return nil, err
	}
	return decodeContact(data)
}

// decodeContact accepts both {"contact":{...}} and a bare contact object.
func decodeContact(data []byte) (*Contact, error) {
	var wrapped struct {
		Contact *Contact `json:"contact"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("gohighlevel: decode contact: %w", err)
	}
	if wrapped.Contact != nil && wrapped.Contact.ID != "" {
		return wrapped.Contact, nil
	}
	var bare Contact
	if err := json.Unmarshal(data, &bare); err == nil && bare.ID != "" {
		return &bare, nil
	}
	return nil, errors.New("gohighlevel: contact response has no id")
}

func (g *GoHighLevel) UpdateContact(ctx context.Context, contactID string, u ContactUpdate) error {
	if contactID == "" {
		return ErrContactIDRequired
	}
	body, err := restclient.JSON(u)
	if err != nil {
		return err
	}
	_, err = g.rest.Do(ctx, restclient.Request{
		Operation: "update_contact",
		Method:    http.MethodPut,
		Path:      "/contacts/" + url.PathEscape(contactID),
		Body:      body,
		Retry:     true,
	})
	return err
}

func (g *GoHighLevel) AddNote(ctx context.Context, contactID, note string) error {
	if contactID == "" {
		return ErrContactIDRequired
	}
	body, err := restclient.JSON(map[string]string{"body": note})
	if err != nil {
		return err
	}
	_, err = g.rest.Do(ctx, restclient.Request{
		Operation: "add_note",
		Method:    http.MethodPost,
		Path:      "/contacts/" + url.PathEscape(contactID) + "/notes",
		Body:      body,
		Retry:     true,
	})
	return err
}

func (g *GoHighLevel) CreateTask(ctx context.Context, t Task) error {
	if t.ContactID == "" {
		return ErrContactIDRequired
	}
	body, err := restclient.JSON(t)
	if err != nil {
		return err
	}
	_, err = g.rest.Do(ctx, restclient.Request{
		Operation: "create_task",
		Method:    http.MethodPost,
		Path:      "/contacts/" + url.PathEscape(t.ContactID) + "/tasks",
		Body:      body,
		Retry:     true,
	})
	return err
}

func (g *GoHighLevel) CreateOpportunity(ctx context.Context, o Opportunity) (*OpportunityRecord, error) {
	if o.ContactID == "" {
		return nil, ErrContactIDRequired
	}
	body, err := restclient.JSON(struct {
		LocationID string `json:"locationId"`
		Opportunity
	}{LocationID: g.locationID, Opportunity: o})
	if err != nil {
		return nil, err
	}
	var resp struct {
		ID          string             `json:"id"`
		Opportunity *OpportunityRecord `json:"opportunity"`
	}
	if err := g.rest.DoJSON(ctx, restclient.Request{
		Operation: "create_opportunity",
		Method:    http.MethodPost,
		Path:      "/opportunities/",
		Body:      body,
	}, &resp); err != nil {
		return nil, err
	}
	if resp.Opportunity != nil && resp.Opportunity.ID != "" {
		return resp.Opportunity, nil
	}
	return &OpportunityRecord{ID: resp.ID}, nil
}
