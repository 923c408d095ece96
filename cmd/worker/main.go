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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"thirdcoast.systems/reverb/internal/ai"
	"thirdcoast.systems/reverb/internal/ai/openai"
	"thirdcoast.systems/reverb/internal/application"
	"thirdcoast.systems/reverb/internal/catalog"
	"thirdcoast.systems/reverb/internal/config"
	"thirdcoast.systems/reverb/internal/db"
	"thirdcoast.systems/reverb/internal/jobs"
	"thirdcoast.systems/reverb/internal/metrics"
	"thirdcoast.systems/reverb/internal/pipeline"
	"thirdcoast.systems/reverb/internal/scrape"
	"thirdcoast.systems/reverb/internal/vector"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting worker service")

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

	catalogClient := catalog.NewClient(conf.CatalogBaseURL, conf.CatalogAPIKey)
	scrapeClient := scrape.NewClient(conf.ScrapeBaseURL, conf.ScrapeAPIKey)
	vectorClient := vector.NewClient(conf.VectorBaseURL, conf.VectorAPIKey)

	discovery := pipeline.NewDiscovery(dbc, dbc, dbc, catalogClient)
	extraction := pipeline.NewExtraction(dbc, dbc, dbc, scrapeClient)
	embedding := pipeline.NewEmbedding(dbc, dbc, dbc, provider.Embedder(), vectorClient, m)

	worker := jobs.NewWorker(dbc, m)
	worker.Register(db.JobTypeDiscovery, discovery.HandleJob)
	worker.Register(db.JobTypeExtraction, extraction.HandleJob)
	worker.Register(db.JobTypeEmbedding, embedding.HandleJob)

	// Metrics endpoint for scraping; the worker serves nothing else.
	metricsServer := &http.Server{Addr: ":9091", Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{})}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	interval := time.Duration(conf.WorkerTickSeconds) * time.Second
	slog.Info("Worker running", "tick_interval", interval)
	if err := worker.Run(ctx, interval); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("worker stopped", "error", err)
		os.Exit(1)
	}
}
