// Command provision-agent creates the MCA qualification assistant on Vapi,
// or pushes the current definition onto an existing assistant.
//
//	provision-agent                 # create, prints the new assistant id
//	provision-agent -update <id>    # overwrite prompts and voice on <id>
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"voice-campaigns/internal/voice"
	"voice-campaigns/pkg/logger"

	"github.com/joho/godotenv"
)

func main() {
	updateID := flag.String("update", "", "existing assistant id to update instead of creating a new one")
	serverURL := flag.String("server-url", "", "webhook URL the assistant posts events to (e.g. https://host/webhooks/vapi)")
	timeout := flag.Duration("timeout", 30*time.Second, "overall request timeout")
	flag.Parse()

	_ = godotenv.Load()

	log := logger.New(os.Getenv("APP_ENV"))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	client, err := voice.NewVapi(voice.VapiConfig{
		APIKey:  os.Getenv("VAPI_API_KEY"),
		BaseURL: strings.TrimSpace(os.Getenv("VAPI_BASE_URL")),
		Logger:  log,
	})
	if err != nil {
		log.Error("vapi init failed", "err", err)
		os.Exit(1)
	}

	agent := voice.DefaultMCAAgent()

	var assistant *voice.Assistant
	if *updateID != "" {
		assistant, err = client.UpdateAssistant(ctx, *updateID, assistantUpdates(agent, *serverURL))
	} else {
		assistant, err = client.CreateAssistant(ctx, agent)
		if err == nil && *serverURL != "" {
			assistant, err = client.UpdateAssistant(ctx, assistant.ID, map[string]any{"serverUrl": *serverURL})
		}
	}
	if err != nil {
		log.Error("provision assistant failed", "err", err, "update", *updateID != "")
		os.Exit(1)
	}

	log.Info("assistant ready", "assistant_id", assistant.ID, "name", assistant.Name)
	if *updateID == "" {
		fmt.Printf("VAPI_ASSISTANT_ID=%s\n", assistant.ID)
	}
}

func assistantUpdates(a voice.AssistantConfig, serverURL string) map[string]any {
	u := map[string]any{
		"name":           a.Name,
		"model":          a.Model,
		"voice":          a.Voice,
		"firstMessage":   a.FirstMessage,
		"systemMessage":  a.SystemMessage,
		"endCallMessage": a.EndCallMessage,
		"endCallPhrases": a.EndCallPhrases,
	}
	if serverURL != "" {
		u["serverUrl"] = serverURL
	}
	return u
}
