// Command consult runs the conversational assistant gateway.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/medabroad/consult/pkg/core"
	"github.com/medabroad/consult/pkg/core/providers/gemini"
	"github.com/medabroad/consult/pkg/core/providers/openai"
	"github.com/medabroad/consult/pkg/core/speech/stt"
	"github.com/medabroad/consult/pkg/core/speech/tts"
	"github.com/medabroad/consult/pkg/gateway/config"
	"github.com/medabroad/consult/pkg/gateway/handlers"
	"github.com/medabroad/consult/pkg/gateway/orchestrator"
	"github.com/medabroad/consult/pkg/gateway/server"
	"github.com/medabroad/consult/pkg/store"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.StoreDSN, cfg.MongoDatabase)
	if err != nil {
		logger.Error("failed to open store", "dsn", cfg.StoreDSN, "error", err)
		os.Exit(1)
	}
	defer st.Close(context.Background())

	registry := core.NewProviderRegistry()
	registry.Register(openai.New(cfg.OpenAIAPIKey, logger))
	if cfg.GeminiAPIKey != "" {
		gp, err := gemini.New(ctx, cfg.GeminiAPIKey, logger)
		if err != nil {
			logger.Error("failed to init gemini provider", "error", err)
			os.Exit(1)
		}
		registry.Register(gp)
	}

	orch := orchestrator.New(registry, st, orchestrator.Options{
		TextModel:           cfg.TextModel,
		TextFallbackModel:   cfg.TextFallbackModel,
		VisionModel:         cfg.VisionModel,
		VisionFallbackModel: cfg.VisionFallbackModel,
		SummaryModel:        cfg.SummaryModel,
		SystemPrompt:        cfg.SystemPrompt,
		Temperature:         cfg.Temperature,
		TextMaxTokens:       cfg.TextMaxTokens,
		VisionMaxTokens:     cfg.VisionMaxTokens,
		HistoryLimit:        cfg.HistoryLimit,
	}, logger)

	synth := tts.NewFallback(
		tts.NewElevenLabs(cfg.ElevenLabsAPIKey),
		tts.NewOpenAI(cfg.OpenAIAPIKey),
		logger)

	h := handlers.New(orch, st, synth,
		stt.NewWhisper(cfg.OpenAIAPIKey),
		cfg, logger)
	srv := server.New(cfg, h, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}
}
