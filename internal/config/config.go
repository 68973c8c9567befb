package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values come from env (optionally seeded from a .env file by cmd/api).
// Nothing below cmd/ reads the environment directly.
type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	Auth     AuthConfig
	CRM      CRMConfig
	Voice    VoiceConfig
	Twilio   TwilioConfig
	Upstream UpstreamConfig
	Campaign CampaignConfig
	Pricing  PricingConfig
}

type AppConfig struct {
	Env  string
	Port int

	// PublicBaseURL is the externally reachable base URL, used for provider callbacks.
	PublicBaseURL string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// AdminAPIKey is exchanged for an admin token pair at POST /auth/token.
	AdminAPIKey string
}

// CRMConfig configures the GoHighLevel client and where opportunities land.
type CRMConfig struct {
	APIKey     string
	LocationID string
	BaseURL    string
	PipelineID string
	StageID    string
}

// VoiceConfig configures the Vapi client.
type VoiceConfig struct {
	APIKey        string
	AgentID       string
	PhoneNumberID string
	BaseURL       string
	WebhookSecret string
}

type TwilioConfig struct {
	AccountSID  string
	AuthToken   string
	PhoneNumber string

	// ConnectTo is where answered direct-dial calls are bridged
	// (a sip: URI for the voice agent, or a phone number).
	ConnectTo string
}

// UpstreamConfig bounds every outbound provider request.
type UpstreamConfig struct {
	Timeout    time.Duration
	MaxRetries int
}

type CampaignConfig struct {
	// MaxConcurrentCalls caps live outbound calls per campaign; 0 disables the cap.
	MaxConcurrentCalls int
	// SlotTTL bounds how long a leaked slot can block a campaign.
	SlotTTL time.Duration
}

type PricingConfig struct {
	RatePerMinuteMinor      int64
	Currency                string
	BillingIncrementSeconds int
	MinimumBillableSeconds  int
}

const defaultPipelineSentinel = "default"

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	c.App.Port, parseErrs = requiredInt(parseErrs, "APP_PORT")
	c.App.PublicBaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("PUBLIC_BASE_URL")), "/")

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	c.DB.Port, parseErrs = requiredInt(parseErrs, "DB_PORT")
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	c.Redis.Port, parseErrs = requiredInt(parseErrs, "REDIS_PORT")

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	c.Auth.AccessTokenTTL, parseErrs = optionalDuration(parseErrs, "JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL, parseErrs = optionalDuration(parseErrs, "JWT_REFRESH_TTL")
	c.Auth.AdminAPIKey = os.Getenv("ADMIN_API_KEY")

	c.CRM.APIKey = os.Getenv("GOHIGHLEVEL_API_KEY")
	c.CRM.LocationID = strings.TrimSpace(os.Getenv("GOHIGHLEVEL_LOCATION_ID"))
	c.CRM.BaseURL = strings.TrimSpace(os.Getenv("GOHIGHLEVEL_BASE_URL"))
	c.CRM.PipelineID = strings.TrimSpace(os.Getenv("GOHIGHLEVEL_PIPELINE_ID"))
	c.CRM.StageID = strings.TrimSpace(os.Getenv("GOHIGHLEVEL_STAGE_ID"))

	c.Voice.APIKey = os.Getenv("VAPI_API_KEY")
	c.Voice.AgentID = strings.TrimSpace(os.Getenv("VAPI_ASSISTANT_ID"))
	c.Voice.PhoneNumberID = strings.TrimSpace(os.Getenv("VAPI_PHONE_NUMBER_ID"))
	c.Voice.BaseURL = strings.TrimSpace(os.Getenv("VAPI_BASE_URL"))
	c.Voice.WebhookSecret = os.Getenv("VAPI_WEBHOOK_SECRET")

	c.Twilio.AccountSID = strings.TrimSpace(os.Getenv("TWILIO_ACCOUNT_SID"))
	c.Twilio.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	c.Twilio.PhoneNumber = strings.TrimSpace(os.Getenv("TWILIO_PHONE_NUMBER"))
	c.Twilio.ConnectTo = strings.TrimSpace(os.Getenv("TWILIO_CONNECT_TO"))

	c.Upstream.Timeout, parseErrs = optionalDuration(parseErrs, "UPSTREAM_TIMEOUT")
	c.Upstream.MaxRetries, parseErrs = optionalInt(parseErrs, "UPSTREAM_MAX_RETRIES", -1)

	c.Campaign.MaxConcurrentCalls, parseErrs = optionalInt(parseErrs, "CAMPAIGN_MAX_CONCURRENT_CALLS", -1)
	c.Campaign.SlotTTL, parseErrs = optionalDuration(parseErrs, "CAMPAIGN_SLOT_TTL")

	var rate int
	rate, parseErrs = optionalInt(parseErrs, "CALL_RATE_PER_MINUTE_MINOR", 0)
	c.Pricing.RatePerMinuteMinor = int64(rate)
	c.Pricing.Currency = strings.TrimSpace(os.Getenv("CALL_RATE_CURRENCY"))
	c.Pricing.BillingIncrementSeconds, parseErrs = optionalInt(parseErrs, "CALL_BILLING_INCREMENT_SECONDS", 0)
	c.Pricing.MinimumBillableSeconds, parseErrs = optionalInt(parseErrs, "CALL_MINIMUM_BILLABLE_SECONDS", 0)

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks required values and fills env-aware defaults in place.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if c.DB.SSLMode == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
		if c.Voice.WebhookSecret == "" {
			errs = append(errs, errors.New("VAPI_WEBHOOK_SECRET is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.CRM.APIKey == "" {
		errs = append(errs, errors.New("GOHIGHLEVEL_API_KEY is required"))
	}
	if c.CRM.LocationID == "" {
		errs = append(errs, errors.New("GOHIGHLEVEL_LOCATION_ID is required"))
	}
	if c.CRM.PipelineID == "" {
		c.CRM.PipelineID = defaultPipelineSentinel
	}
	if c.CRM.StageID == "" {
		c.CRM.StageID = defaultPipelineSentinel
	}

	if c.Voice.APIKey == "" {
		errs = append(errs, errors.New("VAPI_API_KEY is required"))
	}
	if c.Voice.AgentID == "" {
		errs = append(errs, errors.New("VAPI_ASSISTANT_ID is required"))
	}

	// Twilio is optional as a whole, but a half-configured account is a mistake.
	if (c.Twilio.AccountSID == "") != (c.Twilio.AuthToken == "") {
		errs = append(errs, errors.New("TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN must be set together"))
	}
	if c.TwilioEnabled() && c.Twilio.PhoneNumber == "" {
		errs = append(errs, errors.New("TWILIO_PHONE_NUMBER is required when Twilio is configured"))
	}

	if c.Upstream.Timeout <= 0 {
		c.Upstream.Timeout = 15 * time.Second
	}
	if c.Upstream.Timeout > 30*time.Second {
		errs = append(errs, fmt.Errorf("UPSTREAM_TIMEOUT must be at most 30s, got %s", c.Upstream.Timeout))
	}
	if c.Upstream.MaxRetries < 0 {
		c.Upstream.MaxRetries = 2
	}

	if c.Campaign.MaxConcurrentCalls < 0 {
		c.Campaign.MaxConcurrentCalls = 10
	}
	if c.Campaign.SlotTTL <= 0 {
		c.Campaign.SlotTTL = 2 * time.Hour
	}

	if c.Pricing.RatePerMinuteMinor < 0 {
		errs = append(errs, fmt.Errorf("CALL_RATE_PER_MINUTE_MINOR must not be negative, got %d", c.Pricing.RatePerMinuteMinor))
	}
	if c.Pricing.Currency == "" {
		c.Pricing.Currency = "USD"
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// TwilioEnabled reports whether Twilio credentials are configured.
func (c Config) TwilioEnabled() bool {
	return c.Twilio.AccountSID != "" && c.Twilio.AuthToken != ""
}

func requiredInt(errs []error, key string) (int, []error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, append(errs, fmt.Errorf("%s is required", key))
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, append(errs, fmt.Errorf("%s must be an integer, got %q", key, v))
	}
	return n, errs
}

// optionalInt returns def when key is unset.
func optionalInt(errs []error, key string, def int) (int, []error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, errs
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, append(errs, fmt.Errorf("%s must be an integer, got %q", key, v))
	}
	return n, errs
}

// optionalDuration returns 0 when key is unset; Validate applies the default.
func optionalDuration(errs []error, key string) (time.Duration, []error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, errs
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, append(errs, fmt.Errorf("%s must be a duration, got %q", key, v))
	}
	return d, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
