package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/0FL01/Another-Chat-with-LLM-sub000/internal/access"
	"github.com/0FL01/Another-Chat-with-LLM-sub000/internal/bot"
	"github.com/0FL01/Another-Chat-with-LLM-sub000/internal/dispatch"
	"github.com/0FL01/Another-Chat-with-LLM-sub000/internal/healthcheck"
	"github.com/0FL01/Another-Chat-with-LLM-sub000/internal/history"
	"github.com/0FL01/Another-Chat-with-LLM-sub000/internal/logutil"
	"github.com/0FL01/Another-Chat-with-LLM-sub000/internal/models"
	"github.com/0FL01/Another-Chat-with-LLM-sub000/internal/objstore"
	"github.com/0FL01/Another-Chat-with-LLM-sub000/internal/settings"
	"github.com/0FL01/Another-Chat-with-LLM-sub000/internal/telegram"
	"github.com/0FL01/Another-Chat-with-LLM-sub000/internal/transcribe"
	"github.com/0FL01/Another-Chat-with-LLM-sub000/providers/gemini"
	"github.com/0FL01/Another-Chat-with-LLM-sub000/providers/openai"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	cmd.Flags().String("telegram-token", "", "Telegram bot token (or CHATLLM_TELEGRAM_TOKEN).")
	cmd.Flags().Int64("admin-id", 0, "Telegram user ID with implicit admin access.")
	cmd.Flags().String("store-backend", "", "Persistence backend: file|bolt.")
	cmd.Flags().String("store-dir", "", "Data directory for the file backend.")
	cmd.Flags().String("health-listen", "", "Health endpoint address, e.g. :8080 (empty disables).")

	_ = viper.BindPFlag("telegram.token", cmd.Flags().Lookup("telegram-token"))
	_ = viper.BindPFlag("admin_id", cmd.Flags().Lookup("admin-id"))
	_ = viper.BindPFlag("store.backend", cmd.Flags().Lookup("store-backend"))
	_ = viper.BindPFlag("store.dir", cmd.Flags().Lookup("store-dir"))
	_ = viper.BindPFlag("health.listen", cmd.Flags().Lookup("health-listen"))

	return cmd
}

func runServe(parent context.Context) error {
	logger, err := logutil.LoggerFromViper()
	if err != nil {
		return err
	}

	token := strings.TrimSpace(viper.GetString("telegram.token"))
	if token == "" {
		return fmt.Errorf("telegram.token is required (set CHATLLM_TELEGRAM_TOKEN)")
	}
	adminID := viper.GetInt64("admin_id")
	if adminID == 0 {
		logger.Warn("admin_id_unset")
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore()
	if err != nil {
		return err
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		defer func() { _ = closer.Close() }()
	}

	catalog := models.Default()
	if path := strings.TrimSpace(viper.GetString("chat.models_file")); path != "" {
		catalog, err = models.LoadFile(path)
		if err != nil {
			return err
		}
	}

	d := dispatch.New(logger)
	var geminiClient *gemini.Client
	for _, tag := range catalog.Providers() {
		switch tag {
		case models.ProviderGroq:
			key := viper.GetString("groq.api_key")
			if key == "" {
				return fmt.Errorf("groq.api_key is required by the model catalog")
			}
			d.Register(tag, openai.New(tag, viper.GetString("groq.base_url"), key))
		case models.ProviderMistral:
			key := viper.GetString("mistral.api_key")
			if key == "" {
				return fmt.Errorf("mistral.api_key is required by the model catalog")
			}
			d.Register(tag, openai.New(tag, viper.GetString("mistral.base_url"), key))
		case models.ProviderGemini:
			key := viper.GetString("gemini.api_key")
			if key == "" {
				return fmt.Errorf("gemini.api_key is required by the model catalog")
			}
			geminiClient, err = gemini.New(ctx, key)
			if err != nil {
				return err
			}
			defer func() { _ = geminiClient.Close() }()
			d.Register(tag, geminiClient)
		default:
			return fmt.Errorf("catalog references unknown provider %q", tag)
		}
	}

	var transcriber bot.Transcriber
	if geminiClient != nil {
		transcriber = transcribe.New(geminiClient, viper.GetString("gemini.speech_model"), logger)
	} else {
		logger.Warn("transcription_disabled", "reason", "no gemini provider in catalog")
	}

	api := telegram.New(nil, viper.GetString("telegram.base_url"), token)

	b := bot.New(
		api,
		d,
		catalog,
		access.NewManager(store, adminID),
		history.NewManager(store, viper.GetInt("chat.history_max_turns")),
		settings.NewManager(store),
		transcriber,
		logger,
		bot.Config{
			PollTimeout:         viper.GetDuration("telegram.poll_timeout"),
			MaxConcurrent:       viper.GetInt("telegram.max_concurrency"),
			MessageLimit:        viper.GetInt("telegram.message_limit"),
			MaxFileBytes:        viper.GetInt64("telegram.max_file_bytes"),
			TempDir:             os.TempDir(),
			DefaultSystemPrompt: viper.GetString("chat.system_prompt"),
		},
	)

	if addr := strings.TrimSpace(viper.GetString("health.listen")); addr != "" {
		hc := healthcheck.New(addr, catalog.Names(), catalog.Providers(), logger)
		hc.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = hc.Shutdown(shutdownCtx)
		}()
	}

	return b.Run(ctx)
}

func openStore() (objstore.Store, error) {
	switch backend := strings.ToLower(strings.TrimSpace(viper.GetString("store.backend"))); backend {
	case "", "file":
		return objstore.NewFileStore(viper.GetString("store.dir"))
	case "bolt":
		return objstore.NewBoltStore(viper.GetString("store.bolt_path"))
	default:
		return nil, fmt.Errorf("unknown store.backend %q (want file or bolt)", backend)
	}
}
