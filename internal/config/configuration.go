package config

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	// WebServer Configuration
	WebServerPort int `mapstructure:"WEBSERVER_PORT"`

	// Database Configuration
	DatabaseDSN     string `mapstructure:"DATABASE_DSN" validate:"required"`
	DatabaseRetries int    `mapstructure:"DATABASE_RETRIES"`

	// Worker Configuration
	WorkerTickSeconds int `mapstructure:"WORKER_TICK_SECONDS"`

	// Collaborator endpoints
	CatalogBaseURL string `mapstructure:"CATALOG_BASE_URL"`
	CatalogAPIKey  string `mapstructure:"CATALOG_API_KEY"`
	ScrapeBaseURL  string `mapstructure:"SCRAPE_BASE_URL"`
	ScrapeAPIKey   string `mapstructure:"SCRAPE_API_KEY"`
	VectorBaseURL  string `mapstructure:"VECTOR_BASE_URL"`
	VectorAPIKey   string `mapstructure:"VECTOR_API_KEY"`

	// AI Configuration
	OpenAIKey       string `mapstructure:"OPENAI_API_KEY"`
	OpenAIBaseURL   string `mapstructure:"OPENAI_BASE_URL"`
	CompletionModel string `mapstructure:"COMPLETION_MODEL"`
	EmbeddingModel  string `mapstructure:"EMBEDDING_MODEL"`

	// Retrieval defaults
	RetrievalTopK       int     `mapstructure:"RETRIEVAL_TOP_K"`
	SimilarityThreshold float64 `mapstructure:"SIMILARITY_THRESHOLD"`
}

// use reflect to bind environment variables based on mapstructure tags
func bindEnv(c Config) {
	val := reflect.ValueOf(c)
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := typ.Field(i)
		fieldVal := val.Field(i)
		tag := field.Tag.Get("mapstructure")

		if tag != "" {
			viper.BindEnv(tag)
		}

		// Handle nested structs
		if field.Type.Kind() == reflect.Struct && tag == "" {
			nestedTyp := fieldVal.Type()
			for j := 0; j < fieldVal.NumField(); j++ {
				nestedField := nestedTyp.Field(j)
				nestedTag := nestedField.Tag.Get("mapstructure")
				if nestedTag != "" {
					viper.BindEnv(nestedTag)
				}
			}
		}
	}
	slog.Info("Environment variables bound", "config", c)
}

func LoadConfig(ctx context.Context) (*Config, error) {
	bindEnv(Config{})
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("DATABASE_RETRIES", 10)
	viper.SetDefault("WORKER_TICK_SECONDS", 5)
	viper.SetDefault("COMPLETION_MODEL", "gpt-4o-mini")
	viper.SetDefault("EMBEDDING_MODEL", "text-embedding-3-small")
	viper.SetDefault("RETRIEVAL_TOP_K", 10)
	viper.SetDefault("SIMILARITY_THRESHOLD", 0.5)

	cfg := Config{}
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	slog.Info("Loaded configuration", "config", cfg)

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}
