package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voice-campaigns/internal/audit"
	"voice-campaigns/internal/auth"
	"voice-campaigns/internal/calls"
	"voice-campaigns/internal/config"
	"voice-campaigns/internal/crm"
	"voice-campaigns/internal/httpapi"
	"voice-campaigns/internal/leads"
	"voice-campaigns/internal/metrics"
	"voice-campaigns/internal/pricing"
	"voice-campaigns/internal/reporting"
	"voice-campaigns/internal/telephony"
	"voice-campaigns/internal/voice"
	"voice-campaigns/internal/webhook"
	"voice-campaigns/pkg/logger"
	"voice-campaigns/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A missing .env is fine; the real environment wins either way.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	m := metrics.New(prometheus.DefaultRegisterer)

	ghl, err := crm.NewGoHighLevel(crm.GoHighLevelConfig{
		APIKey:     cfg.CRM.APIKey,
		LocationID: cfg.CRM.LocationID,
		BaseURL:    cfg.CRM.BaseURL,
		Timeout:    cfg.Upstream.Timeout,
		MaxRetries: cfg.Upstream.MaxRetries,
		Logger:     log,
		Recorder:   m,
	})
	if err != nil {
		log.Error("gohighlevel init failed", "err", err)
		os.Exit(1)
	}

	vapi, err := voice.NewVapi(voice.VapiConfig{
		APIKey:     cfg.Voice.APIKey,
		BaseURL:    cfg.Voice.BaseURL,
		Timeout:    cfg.Upstream.Timeout,
		MaxRetries: cfg.Upstream.MaxRetries,
		Logger:     log,
		Recorder:   m,
	})
	if err != nil {
		log.Error("vapi init failed", "err", err)
		os.Exit(1)
	}

	// Twilio is optional. Keep the interface nil (not a typed nil) when it is off.
	var dialer telephony.Provider
	if cfg.TwilioEnabled() {
		tw, err := telephony.NewTwilioProvider(telephony.TwilioConfig{
			AccountSID:  cfg.Twilio.AccountSID,
			AuthToken:   cfg.Twilio.AuthToken,
			PhoneNumber: cfg.Twilio.PhoneNumber,
			Timeout:     cfg.Upstream.Timeout,
			MaxRetries:  cfg.Upstream.MaxRetries,
			Logger:      log,
			Recorder:    m,
		})
		if err != nil {
			log.Error("twilio init failed", "err", err)
			os.Exit(1)
		}
		dialer = tw
	} else {
		log.Info("twilio not configured; direct dial, sms and recordings disabled")
	}

	slots := utils.NewConcurrencyCap(rdb, "calls:active:", cfg.Campaign.MaxConcurrentCalls, cfg.Campaign.SlotTTL)

	callSvc := calls.NewService(calls.ServiceConfig{
		CRM:           ghl,
		Voice:         vapi,
		Dialer:        dialer,
		Repo:          calls.NewPostgresRepo(db),
		Slots:         slots,
		Metrics:       m,
		AssistantID:   cfg.Voice.AgentID,
		PhoneNumberID: cfg.Voice.PhoneNumberID,
		PublicBaseURL: cfg.App.PublicBaseURL,
	})

	dispatcher := webhook.NewDispatcher(ghl, webhook.Options{
		PipelineID: cfg.CRM.PipelineID,
		StageID:    cfg.CRM.StageID,
		Tracker:    callSvc,
	})

	pricingSvc := pricing.NewService(pricing.NewStaticRepo(
		cfg.Pricing.Currency,
		cfg.Pricing.RatePerMinuteMinor,
		cfg.Pricing.BillingIncrementSeconds,
		cfg.Pricing.MinimumBillableSeconds,
	))

	d := deps{
		db: db,
		webhook: webhook.Handler{
			Dispatcher: dispatcher,
			Secret:     cfg.Voice.WebhookSecret,
			Observer:   m,
		},
		api: httpapi.Handlers{
			Auth:      authManager,
			Calls:     callSvc,
			Leads:     leads.NewService(ghl, leads.NewPostgresRepo(db)),
			Analytics: reporting.NewService(reporting.NewCallLogRepo(calls.NewPostgresRepo(db)), pricingSvc),
			Telephony: dialer,
			Audit:     audit.NewService(audit.NewPostgresRepo(db)),
		},
	}
	if dialer != nil {
		d.twilio = &telephony.TwilioWebhookHandler{
			AuthToken:     cfg.Twilio.AuthToken,
			PublicBaseURL: cfg.App.PublicBaseURL,
			Answer:        telephony.AnswerInstructions{ConnectTo: cfg.Twilio.ConnectTo},
			Sink:          callSvc,
		}
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerPublicRoutes(r, d) // webhooks, health, metrics
	registerAuthRoutes(r, d.api)
	registerProtectedRoutes(r, d.api, auth.RequireAccessToken(authManager))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "twilio", dialer != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
