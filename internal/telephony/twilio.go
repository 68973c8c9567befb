package telephony

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"voice-campaigns/pkg/restclient"
)

const (
	DefaultTwilioBaseURL = "https://api.twilio.com/2010-04-01"
	twilioMediaHost      = "https://api.twilio.com"
)

type TwilioConfig struct {
	AccountSID  string
	AuthToken   string
	PhoneNumber string

	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
	Recorder   restclient.Recorder
}

// TwilioProvider implements Provider with the Twilio REST API.
// Requests are form-encoded and authenticated with account SID + auth token.
type TwilioProvider struct {
	rest        *restclient.Client
	accountSID  string
	phoneNumber string
}

var _ Provider = (*TwilioProvider)(nil)

func NewTwilioProvider(cfg TwilioConfig) (*TwilioProvider, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, errors.New("telephony: twilio account sid and auth token are required")
	}
	if strings.TrimSpace(cfg.PhoneNumber) == "" {
		return nil, errors.New("telephony: twilio phone number is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultTwilioBaseURL
	}
	sid, token := cfg.AccountSID, cfg.AuthToken
	rest, err := restclient.New(restclient.Config{
		Provider:   "twilio",
		BaseURL:    baseURL,
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
		Backoff:    cfg.Backoff,
		HTTPClient: cfg.HTTPClient,
		Logger:     cfg.Logger,
		Recorder:   cfg.Recorder,
		Authorize: func(r *http.Request) {
			r.SetBasicAuth(sid, token)
		},
	})
	if err != nil {
		return nil, err
	}
	return &TwilioProvider{rest: rest, accountSID: sid, phoneNumber: cfg.PhoneNumber}, nil
}

func (p *TwilioProvider) Name() string { return "twilio" }

func (p *TwilioProvider) accountPath(suffix string) string {
	return "/Accounts/" + url.PathEscape(p.accountSID) + suffix
}

type twilioCall struct {
	SID       string `json:"sid"`
	Status    string `json:"status"`
	To        string `json:"to"`
	From      string `json:"from"`
	Direction string `json:"direction"`
	Duration  string `json:"duration"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func (c twilioCall) toCallInfo() *CallInfo {
	out := &CallInfo{
		SID:       c.SID,
		Status:    c.Status,
		To:        c.To,
		From:      c.From,
		Direction: c.Direction,
	}
	if d, err := strconv.Atoi(c.Duration); err == nil {
		out.Duration = d
	}
	out.StartTime = parseTwilioTime(c.StartTime)
	out.EndTime = parseTwilioTime(c.EndTime)
	return out
}

// Twilio renders timestamps as RFC 1123 with numeric zone.
func parseTwilioTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC1123Z, s)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

// MakeCall is never retried; a duplicate would ring the lead twice.
func (p *TwilioProvider) MakeCall(ctx context.Context, req MakeCallRequest) (*CallInfo, error) {
	if strings.TrimSpace(req.To) == "" {
		return nil, errors.New("telephony: destination number is required")
	}
	if strings.TrimSpace(req.VoiceURL) == "" {
		return nil, errors.New("telephony: voice url is required")
	}
	form := url.Values{}
	form.Set("To", req.To)
	form.Set("From", p.phoneNumber)
	form.Set("Url", req.VoiceURL)
	if req.StatusCallbackURL != "" {
		form.Set("StatusCallback", req.StatusCallbackURL)
		for _, ev := range []string{"initiated", "ringing", "answered", "completed"} {
			form.Add("StatusCallbackEvent", ev)
		}
	}
	if req.Record {
		form.Set("Record", "true")
		form.Set("RecordingChannels", "dual")
	}

	var out twilioCall
	if err := p.rest.DoJSON(ctx, restclient.Request{
		Operation:   "create_call",
		Method:      http.MethodPost,
		Path:        p.accountPath("/Calls.json"),
		Body:        []byte(form.Encode()),
		ContentType: "application/x-www-form-urlencoded",
	}, &out); err != nil {
		return nil, err
	}
	return out.toCallInfo(), nil
}

func (p *TwilioProvider) GetCallStatus(ctx context.Context, callSID string) (*CallInfo, error) {
	if strings.TrimSpace(callSID) == "" {
		return nil, errors.New("telephony: call sid is required")
	}
	var out twilioCall
	if err := p.rest.DoJSON(ctx, restclient.Request{
		Operation: "get_call",
		Method:    http.MethodGet,
		Path:      p.accountPath("/Calls/" + url.PathEscape(callSID) + ".json"),
		Retry:     true,
	}, &out); err != nil {
		return nil, err
	}
	return out.toCallInfo(), nil
}

func (p *TwilioProvider) GetCallRecording(ctx context.Context, callSID string) (*Recording, error) {
	if strings.TrimSpace(callSID) == "" {
		return nil, errors.New("telephony: call sid is required")
	}
	q := url.Values{}
	q.Set("CallSid", callSID)
	q.Set("PageSize", "1")

	var out struct {
		Recordings []struct {
			SID      string `json:"sid"`
			Duration string `json:"duration"`
			URI      string `json:"uri"`
		} `json:"recordings"`
	}
	if err := p.rest.DoJSON(ctx, restclient.Request{
		Operation: "list_recordings",
		Method:    http.MethodGet,
		Path:      p.accountPath("/Recordings.json"),
		Query:     q,
		Retry:     true,
	}, &out); err != nil {
		return nil, err
	}
	if len(out.Recordings) == 0 {
		return nil, nil
	}
	rec := out.Recordings[0]
	d, _ := strconv.Atoi(rec.Duration)
	return &Recording{
		SID:      rec.SID,
		Duration: d,
		URL:      twilioMediaHost + strings.Replace(rec.URI, ".json", ".mp3", 1),
	}, nil
}

func (p *TwilioProvider) SendSMS(ctx context.Context, to, body string) (*Message, error) {
	if strings.TrimSpace(to) == "" {
		return nil, errors.New("telephony: destination number is required")
	}
	if strings.TrimSpace(body) == "" {
		return nil, errors.New("telephony: message body is required")
	}
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", p.phoneNumber)
	form.Set("Body", body)

	var out struct {
		SID    string `json:"sid"`
		Status string `json:"status"`
		To     string `json:"to"`
		From   string `json:"from"`
	}
	if err := p.rest.DoJSON(ctx, restclient.Request{
		Operation:   "send_sms",
		Method:      http.MethodPost,
		Path:        p.accountPath("/Messages.json"),
		Body:        []byte(form.Encode()),
		ContentType: "application/x-www-form-urlencoded",
	}, &out); err != nil {
		return nil, err
	}
	return &Message{SID: out.SID, Status: out.Status, To: out.To, From: out.From}, nil
}
