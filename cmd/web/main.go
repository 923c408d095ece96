package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"thirdcoast.systems/reverb/cmd/web/internal/web"
	"thirdcoast.systems/reverb/internal/ai"
	"thirdcoast.systems/reverb/internal/ai/openai"
	"thirdcoast.systems/reverb/internal/application"
	"thirdcoast.systems/reverb/internal/chat"
	"thirdcoast.systems/reverb/internal/config"
	"thirdcoast.systems/reverb/internal/db"
	"thirdcoast.systems/reverb/internal/metrics"
	"thirdcoast.systems/reverb/internal/pipeline"
	"thirdcoast.systems/reverb/internal/vector"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting web service")

	conf, err := config.LoadConfig(ctx)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if conf.DatabaseRetries <= 0 {
		conf.DatabaseRetries = 10
	}

	pool, err := application.OpenDBPoolWithRetry(ctx, *conf)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	dbc, err := db.NewDatabaseConnection(ctx, pool)
	if err != nil {
		slog.Error("failed to create database connection", "error", err)
		os.Exit(1)
	}
	defer dbc.Close()

	if err := dbc.Migrate(ctx); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	provider, err := openai.NewProvider(&ai.Config{
		APIKey:          conf.OpenAIKey,
		BaseURL:         conf.OpenAIBaseURL,
		CompletionModel: conf.CompletionModel,
		EmbeddingModel:  conf.EmbeddingModel,
	})
	if err != nil {
		slog.Error("failed to initialize ai provider", "error", err)
		os.Exit(1)
	}
	defer provider.Close()

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	vectors := vector.NewClient(conf.VectorBaseURL, conf.VectorAPIKey)
	embedStage := pipeline.NewEmbedding(dbc, dbc, dbc, provider.Embedder(), vectors, m)
	engine := chat.NewEngine(dbc, dbc, dbc, vectors, provider, m, conf.RetrievalTopK, conf.SimilarityThreshold)

	e, err := web.NewWebserver(dbc, engine, embedStage, registry)
	if err != nil {
		slog.Error("failed to create webserver", "error", err)
		os.Exit(1)
	}

	addr := ":" + strconv.Itoa(conf.WebServerPort)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = e.Shutdown(shutdownCtx)
	}()

	slog.Info("Listening", "addr", addr)
	if err := e.Start(addr); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		// Echo returns an error on Shutdown; treat it as normal if context is done.
		if ctx.Err() != nil {
			return
		}
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
