package voice

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"voice-campaigns/pkg/restclient"
)

// AssistantConfig is the conversational agent definition sent to the provider.
type AssistantConfig struct {
	Name           string   `json:"name"`
	Model          string   `json:"model"`
	Voice          string   `json:"voice"`
	FirstMessage   string   `json:"firstMessage"`
	SystemMessage  string   `json:"systemMessage"`
	EndCallMessage string   `json:"endCallMessage,omitempty"`
	EndCallPhrases []string `json:"endCallPhrases,omitempty"`
}

type Assistant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (c AssistantConfig) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if strings.TrimSpace(c.Model) == "" {
		errs = append(errs, errors.New("model is required"))
	}
	if strings.TrimSpace(c.Voice) == "" {
		errs = append(errs, errors.New("voice is required"))
	}
	if strings.TrimSpace(c.FirstMessage) == "" {
		errs = append(errs, errors.New("firstMessage is required"))
	}
	if strings.TrimSpace(c.SystemMessage) == "" {
		errs = append(errs, errors.New("systemMessage is required"))
	}
	return errors.Join(errs...)
}

func (v *Vapi) CreateAssistant(ctx context.Context, cfg AssistantConfig) (*Assistant, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	body, err := restclient.JSON(cfg)
	if err != nil {
		return nil, err
	}
	var out Assistant
	if err := v.rest.DoJSON(ctx, restclient.Request{
		Operation: "create_assistant",
		Method:    http.MethodPost,
		Path:      "/assistant",
		Body:      body,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateAssistant applies a partial update. PATCH is idempotent so it retries.
func (v *Vapi) UpdateAssistant(ctx context.Context, assistantID string, updates map[string]any) (*Assistant, error) {
	if strings.TrimSpace(assistantID) == "" {
		return nil, errors.New("voice: assistant id is required")
	}
	if len(updates) == 0 {
		return nil, errors.New("voice: no assistant updates")
	}
	body, err := restclient.JSON(updates)
	if err != nil {
		return nil, err
	}
	var out Assistant
	if err := v.rest.DoJSON(ctx, restclient.Request{
		Operation: "update_assistant",
		Method:    http.MethodPatch,
		Path:      "/assistant/" + url.PathEscape(assistantID),
		Body:      body,
		Retry:     true,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DefaultMCAAgent is the merchant cash advance lead qualification agent.
func DefaultMCAAgent() AssistantConfig {
	return AssistantConfig{
		Name:  "MCA Lead Qualification Agent",
		Model: "gpt-4",
		Voice: "sarah",
		FirstMessage: "Hello! This is Sarah from Business Funding Solutions. I'm calling to discuss " +
			"a quick funding opportunity for your business. Do you have a moment to talk?",
		SystemMessage:  mcaSystemMessage,
		EndCallMessage: "Thank you for your time today. Have a great day!",
		EndCallPhrases: []string{
			"not interested",
			"not a good time",
			"call back later",
			"remove me from your list",
			"stop calling",
		},
	}
}

const mcaSystemMessage = `You are a professional business funding specialist calling to qualify leads for merchant cash advances.

Your goal is to:
1. Qualify the business owner
2. Understand their funding needs
3. Assess their creditworthiness
4. Schedule a follow-up if qualified

Key qualification questions:
- What type of business do you own?
- How long have you been in business?
- What's your monthly revenue?
- Do you have any existing business loans?
- What's your credit score range?
- How much funding are you looking for?
- What would you use the funds for?

When the owner has answered, call qualify_lead with businessType, timeInBusiness (years),
monthlyRevenue, creditScore, fundingNeeded and qualified.
If they agree to a callback, call schedule_follow_up with preferredTime (ISO-8601) and notes.

Be professional, friendly, and efficient. If they're not interested, politely end the call.
If they're qualified, get their email and schedule a follow-up call.`
