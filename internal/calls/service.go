package calls

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"voice-campaigns/internal/crm"
	"voice-campaigns/internal/telephony"
	"voice-campaigns/internal/voice"
	"voice-campaigns/internal/webhook"
	"voice-campaigns/pkg/logger"
	"voice-campaigns/pkg/utils"

	"github.com/google/uuid"
)

const (
	defaultCampaign = "default"

	// maxUpdateAttempts bounds reload-and-retry when a concurrent callback
	// changed the call between read and write.
	maxUpdateAttempts = 5

	initiatedNote = "Voice call initiated via AI automation. Call ID: %s"
	directNote    = "Direct call placed via %s. Call SID: %s"
)

var campaignTags = []string{"voice-campaign", "mca-lead"}

// Slots bounds live calls per campaign. *utils.ConcurrencyCap implements it.
type Slots interface {
	Acquire(ctx context.Context, name string) error
	Release(ctx context.Context, name string) error
}

// Recorder counts call attempts. *metrics.Metrics implements it.
type Recorder interface {
	ObserveCallInitiated(provider, outcome string)
}

// LeadData is the optional lead profile sent with a call request. It seeds
// the CRM contact when none exists for the phone number.
type LeadData struct {
	FirstName      string   `json:"firstName,omitempty"`
	LastName       string   `json:"lastName,omitempty"`
	Email          string   `json:"email,omitempty"`
	BusinessName   string   `json:"businessName,omitempty"`
	CreditScore    any      `json:"creditScore,omitempty"`
	FundingNeeded  *float64 `json:"fundingNeeded,omitempty"`
	MonthlyRevenue *float64 `json:"monthlyRevenue,omitempty"`
	TimeInBusiness *float64 `json:"timeInBusiness,omitempty"`
}

func (l *LeadData) customFields() map[string]any {
	out := map[string]any{}
	if l == nil {
		return out
	}
	if l.CreditScore != nil {
		out["creditScore"] = l.CreditScore
	}
	if l.FundingNeeded != nil {
		out["fundingNeeded"] = *l.FundingNeeded
	}
	if l.MonthlyRevenue != nil {
		out["monthlyRevenue"] = *l.MonthlyRevenue
	}
	if l.TimeInBusiness != nil {
		out["timeInBusiness"] = *l.TimeInBusiness
	}
	return out
}

func (l *LeadData) newContact(phone string) crm.NewContact {
	nc := crm.NewContact{
		FirstName: "Unknown",
		LastName:  "Lead",
		Phone:     phone,
		Tags:      append([]string(nil), campaignTags...),
	}
	if l != nil {
		if l.FirstName != "" {
			nc.FirstName = l.FirstName
		}
		if l.LastName != "" {
			nc.LastName = l.LastName
		}
		nc.Email = l.Email
		nc.CompanyName = l.BusinessName
	}
	if cf := l.customFields(); len(cf) > 0 {
		nc.CustomFields = cf
	}
	return nc
}

type InitiateRequest struct {
	PhoneNumber string    `json:"phoneNumber"`
	Lead        *LeadData `json:"leadData,omitempty"`
	CampaignID  string    `json:"campaignId,omitempty"`
}

type InitiateResult struct {
	CallID    string `json:"callId"`
	ContactID string `json:"contactId"`
	Status    string `json:"status"`
}

type DirectDialRequest struct {
	PhoneNumber string    `json:"phoneNumber"`
	Lead        *LeadData `json:"leadData,omitempty"`
	CampaignID  string    `json:"campaignId,omitempty"`
}

type ServiceConfig struct {
	CRM   crm.Client
	Voice voice.Client
	// Dialer is optional; without it InitiateDirect returns ErrDialerUnavailable.
	Dialer telephony.Provider
	Repo   Repository
	// Slots is optional; nil means no cap.
	Slots   Slots
	Metrics Recorder

	AssistantID   string
	PhoneNumberID string
	// PublicBaseURL is where the carrier reaches /webhooks/twilio/*.
	PublicBaseURL string

	Now   func() time.Time
	NewID func() string
}

// Service places outbound calls and keeps the call log current from
// provider callbacks.
type Service struct {
	crm     crm.Client
	voice   voice.Client
	dialer  telephony.Provider
	repo    Repository
	slots   Slots
	metrics Recorder

	assistantID   string
	phoneNumberID string
	publicBaseURL string

	now   func() time.Time
	newID func() string
}

var (
	_ webhook.CallTracker  = (*Service)(nil)
	_ telephony.StatusSink = (*Service)(nil)
)

func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		crm:           cfg.CRM,
		voice:         cfg.Voice,
		dialer:        cfg.Dialer,
		repo:          cfg.Repo,
		slots:         cfg.Slots,
		metrics:       cfg.Metrics,
		assistantID:   cfg.AssistantID,
		phoneNumberID: cfg.PhoneNumberID,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		now:           cfg.Now,
		newID:         cfg.NewID,
	}
	if s.repo == nil {
		s.repo = NewMemoryRepo()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

func slotName(campaignID string) string {
	if campaignID == "" {
		return defaultCampaign
	}
	return campaignID
}

// Initiate places an AI voice call to a lead. The CRM contact is looked up
// by phone and created when missing; a campaign slot is held until the call
// ends.
func (s *Service) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	phone := strings.TrimSpace(req.PhoneNumber)
	if phone == "" {
		return nil, ErrPhoneRequired
	}
	log := logger.From(ctx).With("campaign_id", req.CampaignID)

	contact, created, err := crm.FindOrCreateContact(ctx, s.crm, req.Lead.newContact(phone))
	if err != nil {
		s.observe(ProviderVapi, "error")
		return nil, fmt.Errorf("find or create contact: %w", err)
	}
	if created {
		log.Info("crm contact created", "contact_id", contact.ID)
	}

	slot := slotName(req.CampaignID)
	if err := s.acquire(ctx, slot); err != nil {
		s.observe(ProviderVapi, outcomeFor(err))
		return nil, err
	}

	metadata := map[string]any{
		"contactId":  contact.ID,
		"campaignId": req.CampaignID,
	}
	if req.Lead != nil {
		metadata["leadData"] = req.Lead
	}
	call, err := s.voice.CreateCall(ctx, voice.CreateCallRequest{
		PhoneNumber:   phone,
		AssistantID:   s.assistantID,
		PhoneNumberID: s.phoneNumberID,
		ContactID:     contact.ID,
		Metadata:      metadata,
	})
	if err != nil {
		s.release(ctx, slot)
		s.observe(ProviderVapi, "error")
		return nil, fmt.Errorf("create voice call: %w", err)
	}
	s.observe(ProviderVapi, "ok")
	log = log.With("call_id", call.ID, "contact_id", contact.ID)

	// The call is live at this point; later failures are logged only.
	if err := s.crm.AddNote(ctx, contact.ID, fmt.Sprintf(initiatedNote, call.ID)); err != nil {
		log.Warn("add call note failed", "err", err)
	}
	now := s.now().UTC()
	rec := Call{
		ID:             s.newID(),
		Provider:       ProviderVapi,
		ProviderCallID: call.ID,
		ContactID:      contact.ID,
		CampaignID:     req.CampaignID,
		PhoneNumber:    phone,
		Status:         CallStatusInitiated,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		log.Error("record call failed", "err", err)
	}
	log.Info("voice call initiated")

	return &InitiateResult{CallID: call.ID, ContactID: contact.ID, Status: string(CallStatusInitiated)}, nil
}

// InitiateDirect dials a number through the carrier without the AI
// assistant. The answered call is bridged per the TwiML answer route.
func (s *Service) InitiateDirect(ctx context.Context, req DirectDialRequest) (*Call, error) {
	if s.dialer == nil {
		return nil, ErrDialerUnavailable
	}
	phone := strings.TrimSpace(req.PhoneNumber)
	if phone == "" {
		return nil, ErrPhoneRequired
	}
	provider := s.dialer.Name()
	log := logger.From(ctx).With("campaign_id", req.CampaignID, "provider", provider)

	contact, _, err := crm.FindOrCreateContact(ctx, s.crm, req.Lead.newContact(phone))
	if err != nil {
		s.observe(provider, "error")
		return nil, fmt.Errorf("find or create contact: %w", err)
	}

	slot := slotName(req.CampaignID)
	if err := s.acquire(ctx, slot); err != nil {
		s.observe(provider, outcomeFor(err))
		return nil, err
	}

	info, err := s.dialer.MakeCall(ctx, telephony.MakeCallRequest{
		To:                phone,
		VoiceURL:          s.publicBaseURL + "/webhooks/twilio/voice",
		StatusCallbackURL: s.publicBaseURL + "/webhooks/twilio/status",
		Record:            true,
	})
	if err != nil {
		s.release(ctx, slot)
		s.observe(provider, "error")
		return nil, fmt.Errorf("make call: %w", err)
	}
	s.observe(provider, "ok")
	log = log.With("call_sid", info.SID, "contact_id", contact.ID)

	if err := s.crm.AddNote(ctx, contact.ID, fmt.Sprintf(directNote, provider, info.SID)); err != nil {
		log.Warn("add call note failed", "err", err)
	}
	now := s.now().UTC()
	rec := Call{
		ID:             s.newID(),
		Provider:       provider,
		ProviderCallID: info.SID,
		ContactID:      contact.ID,
		CampaignID:     req.CampaignID,
		PhoneNumber:    phone,
		Status:         NormalizeStatus(info.Status),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		log.Error("record call failed", "err", err)
	}
	log.Info("direct call placed")
	return &rec, nil
}

// Status returns the voice provider's live view of a call.
func (s *Service) Status(ctx context.Context, callID string) (*voice.Call, error) {
	if strings.TrimSpace(callID) == "" {
		return nil, invalidArgument("Call ID is required")
	}
	return s.voice.GetCallStatus(ctx, callID)
}

// List returns call log rows, newest first.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Call, error) {
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return nil, invalidArgument("to must not be before from")
	}
	return s.repo.List(ctx, f)
}

// MarkStarted implements webhook.CallTracker.
func (s *Service) MarkStarted(ctx context.Context, callID string, at time.Time) error {
	return s.update(ctx, ProviderVapi, callID, func(c *Call) bool {
		if c.Status.Terminal() {
			return false
		}
		c.Status = CallStatusInProgress
		if c.StartedAt == nil {
			t := at.UTC()
			c.StartedAt = &t
		}
		return true
	})
}

// MarkEnded implements webhook.CallTracker. The first terminal transition
// frees the campaign slot; replays do not.
func (s *Service) MarkEnded(ctx context.Context, o webhook.CallOutcome) error {
	return s.update(ctx, ProviderVapi, o.CallID, func(c *Call) bool {
		status := NormalizeStatus(o.Status)
		if !status.Terminal() {
			status = CallStatusCompleted
		}
		c.Status = status
		c.DurationSeconds = o.DurationSeconds
		if !o.EndedAt.IsZero() {
			t := o.EndedAt.UTC()
			c.EndedAt = &t
		}
		if c.ContactID == "" {
			c.ContactID = o.ContactID
		}
		return true
	})
}

// MarkQualified implements webhook.CallTracker.
func (s *Service) MarkQualified(ctx context.Context, callID string, qualified bool) error {
	return s.update(ctx, ProviderVapi, callID, func(c *Call) bool {
		q := qualified
		c.Qualified = &q
		return true
	})
}

// RecordCarrierStatus implements telephony.StatusSink.
func (s *Service) RecordCarrierStatus(ctx context.Context, u telephony.StatusUpdate) error {
	return s.update(ctx, ProviderTwilio, u.CallSID, func(c *Call) bool {
		status := NormalizeStatus(u.Status)
		if c.Status.Terminal() && !status.Terminal() {
			// Late non-terminal callback; keep the final state.
			return false
		}
		c.Status = status
		if u.DurationSeconds > 0 {
			c.DurationSeconds = u.DurationSeconds
		}
		if u.RecordingURL != "" {
			c.RecordingURL = u.RecordingURL
		}
		at := u.OccurredAt.UTC()
		if status == CallStatusInProgress && c.StartedAt == nil {
			c.StartedAt = &at
		}
		if status.Terminal() && c.EndedAt == nil {
			c.EndedAt = &at
		}
		return true
	})
}

// update loads a call log row, applies mutate and saves it when mutate
// reports a change. Calls not placed through this service are ignored.
//
// The save is conditional on the status that was read. A writer that loses
// the race reloads and reapplies, so only the writer that actually moves the
// call into a terminal status frees its slot.
func (s *Service) update(ctx context.Context, provider, providerCallID string, mutate func(*Call) bool) error {
	if providerCallID == "" {
		return invalidArgument("call id is required")
	}
	for attempt := 0; ; attempt++ {
		c, err := s.repo.Get(ctx, provider, providerCallID)
		if errors.Is(err, ErrNotFound) {
			logger.From(ctx).Debug("call not in log", "provider", provider, "call_id", providerCallID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("load call: %w", err)
		}

		prev := c.Status
		if !mutate(&c) {
			return nil
		}
		c.UpdatedAt = s.now().UTC()
		err = s.repo.Update(ctx, c, prev)
		if errors.Is(err, ErrStatusChanged) && attempt < maxUpdateAttempts-1 {
			continue
		}
		if err != nil {
			return err
		}
		if !prev.Terminal() && c.Status.Terminal() {
			s.release(ctx, slotName(c.CampaignID))
		}
		return nil
	}
}

func (s *Service) acquire(ctx context.Context, slot string) error {
	if s.slots == nil {
		return nil
	}
	if err := s.slots.Acquire(ctx, slot); err != nil {
		if errors.Is(err, utils.ErrSlotsExhausted) {
			return ErrConcurrencyLimit
		}
		return fmt.Errorf("acquire call slot: %w", err)
	}
	return nil
}

func (s *Service) release(ctx context.Context, slot string) {
	if s.slots == nil {
		return
	}
	if err := s.slots.Release(ctx, slot); err != nil {
		logger.From(ctx).Warn("release call slot failed", "campaign", slot, "err", err)
	}
}

func (s *Service) observe(provider, outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveCallInitiated(provider, outcome)
	}
}

func outcomeFor(err error) string {
	if errors.Is(err, ErrConcurrencyLimit) {
		return "rejected"
	}
	return "error"
}
