// ABOUTME: Builds the service graph shared by every command
// ABOUTME: Loads configuration, opens storage and selects the embedder and reasoner
package commands

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/harper/riskmem/internal/config"
	"github.com/harper/riskmem/internal/core"
	"github.com/harper/riskmem/internal/llm"
	"github.com/harper/riskmem/internal/storage/sqlite"
	"github.com/joho/godotenv"
)

// app is an opened store plus the service built over it
type app struct {
	cfg   *config.Config
	store *sqlite.Storage
	svc   *core.Service
}

// loadConfig reads .env and the layered configuration, then applies --db
func loadConfig() (*config.Config, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	return cfg, nil
}

// openApp loads configuration and builds the service
func openApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	var store *sqlite.Storage
	if cfg.DBPath != "" {
		store, err = sqlite.NewStorageWithPath(cfg.DBPath)
	} else {
		store, err = sqlite.NewStorage()
	}
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}

	embedder, reasoner, err := buildModels(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &app{
		cfg:   cfg,
		store: store,
		svc:   core.NewService(store, embedder, reasoner, core.OptionsFromConfig(cfg)),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		log.Warn("closing storage", "err", err)
	}
}

// buildModels picks the embedder and reasoner. Without an API key the reasoner
// is nil and assessments report the reasoning step as unavailable.
func buildModels(cfg *config.Config) (core.Embedder, core.Reasoner, error) {
	var client *llm.OpenAIClient
	if cfg.OpenAIKey != "" {
		c, err := llm.NewOpenAIClientWithConfig(&llm.ClientConfig{
			APIKey:            cfg.OpenAIKey,
			BaseURL:           cfg.OpenAIBaseURL,
			ChatModel:         cfg.ChatModel,
			EmbeddingModel:    cfg.EmbeddingModel,
			MaxRetries:        cfg.MaxRetries,
			RetryDelay:        cfg.RetryDelay,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Temperature:       0.2,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("initializing OpenAI client: %w", err)
		}
		client = c
	} else {
		log.Warn("OPENAI_API_KEY not set, assessments will be unavailable")
	}

	var embedder core.Embedder
	if cfg.Embedder == "openai" {
		embedder = client
	} else {
		dim := cfg.EmbeddingDimension
		if dim <= 0 {
			dim = 256
		}
		embedder = llm.NewHashEmbedder(dim)
	}

	if client == nil {
		return embedder, nil, nil
	}
	return embedder, client, nil
}
