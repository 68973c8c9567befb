// Package voice wraps the voice-calling provider (Vapi) used to place
// outbound AI calls and manage the assistant that runs them.
package voice

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"voice-campaigns/pkg/restclient"
)

const DefaultVapiBaseURL = "https://api.vapi.ai"

// Client is what the call service needs from the provider.
type Client interface {
	CreateCall(ctx context.Context, req CreateCallRequest) (*Call, error)
	GetCallStatus(ctx context.Context, callID string) (*Call, error)
}

type CreateCallRequest struct {
	PhoneNumber   string
	AssistantID   string
	PhoneNumberID string

	// ContactID is echoed back by the provider as customer.contactId on
	// every webhook for this call.
	ContactID string
	Metadata  map[string]any
}

type Customer struct {
	Number    string `json:"number,omitempty"`
	ContactID string `json:"contactId,omitempty"`
}

// Call is the provider's view of a call.
type Call struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	Type        string     `json:"type,omitempty"`
	AssistantID string     `json:"assistantId,omitempty"`
	Customer    *Customer  `json:"customer,omitempty"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	EndedAt     *time.Time `json:"endedAt,omitempty"`
	EndedReason string     `json:"endedReason,omitempty"`
	Cost        float64    `json:"cost,omitempty"`
}

type VapiConfig struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
	Recorder   restclient.Recorder
}

type Vapi struct {
	rest *restclient.Client
}

var _ Client = (*Vapi)(nil)

func NewVapi(cfg VapiConfig) (*Vapi, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("voice: api key is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultVapiBaseURL
	}
	apiKey := cfg.APIKey
	rest, err := restclient.New(restclient.Config{
		Provider:   "vapi",
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
	return &Vapi{rest: rest}, nil
}

// CreateCall places an outbound call. It is never retried: a retry after a
// lost response would dial the lead twice.
func (v *Vapi) CreateCall(ctx context.Context, req CreateCallRequest) (*Call, error) {
	if strings.TrimSpace(req.PhoneNumber) == "" {
		return nil, errors.New("voice: phone number is required")
	}
	if strings.TrimSpace(req.AssistantID) == "" {
		return nil, errors.New("voice: assistant id is required")
	}
	payload := struct {
		AssistantID   string         `json:"assistantId"`
		PhoneNumberID string         `json:"phoneNumberId,omitempty"`
		Customer      Customer       `json:"customer"`
		Metadata      map[string]any `json:"metadata,omitempty"`
	}{
		AssistantID:   req.AssistantID,
		PhoneNumberID: req.PhoneNumberID,
		Customer:      Customer{Number: req.PhoneNumber, ContactID: req.ContactID},
		Metadata:      req.Metadata,
	}
	body, err := restclient.JSON(payload)
	if err != nil {
		return nil, err
	}
	var call Call
	if err := v.rest.DoJSON(ctx, restclient.Request{
		Operation: "create_call",
		Method:    http.MethodPost,
		Path:      "/call",
		Body:      body,
	}, &call); err != nil {
		return nil, err
	}
	if call.ID == "" {
		return nil, errors.New("vapi: create_call response has no id")
	}
	return &call, nil
}

func (v *Vapi) GetCallStatus(ctx context.Context, callID string) (*Call, error) {
	if strings.TrimSpace(callID) == "" {
		return nil, errors.New("voice: call id is required")
	}
	var call Call
	if err := v.rest.DoJSON(ctx, restclient.Request{
		Operation: "get_call",
		Method:    http.MethodGet,
		Path:      "/call/" + url.PathEscape(callID),
		Retry:     true,
	}, &call); err != nil {
		return nil, err
	}
	return &call, nil
}
