// ABOUTME: Centralized configuration for the risk retrieval and memory core
// ABOUTME: Defaults, then an optional TOML file, then environment variables, then validation
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for the system
type Config struct {
	// Storage
	DBPath string `toml:"db_path"`

	// Charm settings
	CharmHost   string `toml:"charm_host"`
	CharmDBName string `toml:"charm_db"`
	AutoSync    bool   `toml:"charm_auto_sync"`

	// Model settings
	OpenAIKey          string        `toml:"-"`
	OpenAIBaseURL      string        `toml:"openai_base_url"`
	ChatModel          string        `toml:"chat_model"`
	EmbeddingModel     string        `toml:"embedding_model"`
	Embedder           string        `toml:"embedder"`
	EmbeddingDimension int           `toml:"embedding_dimension"`
	ReasoningTimeout   time.Duration `toml:"-"`
	MaxRetries         int           `toml:"max_retries"`
	RetryDelay         time.Duration `toml:"-"`
	RequestsPerSecond  float64       `toml:"requests_per_second"`
	MaxTokens          int           `toml:"max_tokens"`

	// Ingestion settings
	BoundaryPolicy   string `toml:"boundary_policy"`
	ChunkSize        int    `toml:"chunk_size"`
	ChunkOverlap     int    `toml:"chunk_overlap"`
	EmbedConcurrency int    `toml:"embed_concurrency"`

	// Retrieval settings
	TopK               int     `toml:"top_k"`
	MinScore           float64 `toml:"min_score"`
	ContextBudgetChars int     `toml:"context_budget_chars"`
	TieEpsilon         float64 `toml:"tie_epsilon"`

	// Memory settings
	LongTermCapacity int     `toml:"long_term_capacity"`
	MemoryRelevance  float64 `toml:"memory_relevance"`
	MemoryLimit      int     `toml:"memory_limit"`

	// Prompt settings
	PromptBudgetChars int `toml:"prompt_budget_chars"`

	// Adapters
	HTTPAddr string `toml:"http_addr"`
	WatchDir string `toml:"watch_dir"`
}

// fileDurations holds duration keys, which TOML files carry as strings like "45s"
type fileDurations struct {
	ReasoningTimeout string `toml:"reasoning_timeout"`
	RetryDelay       string `toml:"retry_delay"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		CharmHost:          "cloud.charm.sh",
		CharmDBName:        "riskmem",
		AutoSync:           true,
		ChatModel:          "gpt-4o-mini",
		EmbeddingModel:     "text-embedding-3-small",
		EmbeddingDimension: 1536,
		ReasoningTimeout:   60 * time.Second,
		MaxRetries:         3,
		RetryDelay:         2 * time.Second,
		RequestsPerSecond:  5,
		MaxTokens:          800,
		BoundaryPolicy:     "auto",
		ChunkSize:          400,
		ChunkOverlap:       80,
		EmbedConcurrency:   4,
		TopK:               8,
		MinScore:           0.2,
		ContextBudgetChars: 8000,
		TieEpsilon:         0.005,
		LongTermCapacity:   200,
		MemoryRelevance:    0.3,
		MemoryLimit:        10,
		PromptBudgetChars:  12000,
		HTTPAddr:           ":8000",
	}
}

// Load reads configuration: defaults, then the TOML file named by RISKMEM_CONFIG, then environment variables
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("RISKMEM_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.DBPath = getEnv("RISKMEM_DB", cfg.DBPath)
	cfg.CharmHost = getEnv("CHARM_HOST", cfg.CharmHost)
	cfg.CharmDBName = getEnv("CHARM_DB", cfg.CharmDBName)
	cfg.AutoSync = getEnvBool("CHARM_AUTO_SYNC", cfg.AutoSync)
	cfg.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	cfg.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", cfg.OpenAIBaseURL)
	cfg.ChatModel = getEnv("RISKMEM_CHAT_MODEL", cfg.ChatModel)
	cfg.EmbeddingModel = getEnv("RISKMEM_EMBEDDING_MODEL", cfg.EmbeddingModel)
	cfg.Embedder = getEnv("RISKMEM_EMBEDDER", cfg.Embedder)
	cfg.EmbeddingDimension = getEnvInt("RISKMEM_EMBEDDING_DIMENSION", cfg.EmbeddingDimension)
	cfg.ReasoningTimeout = getEnvDuration("RISKMEM_REASONING_TIMEOUT", cfg.ReasoningTimeout)
	cfg.MaxRetries = getEnvInt("OPENAI_MAX_RETRIES", cfg.MaxRetries)
	cfg.RetryDelay = getEnvDuration("OPENAI_RETRY_DELAY", cfg.RetryDelay)
	cfg.RequestsPerSecond = getEnvFloat("OPENAI_RPS", cfg.RequestsPerSecond)
	cfg.MaxTokens = getEnvInt("RISKMEM_MAX_TOKENS", cfg.MaxTokens)
	cfg.BoundaryPolicy = getEnv("RISKMEM_BOUNDARY_POLICY", cfg.BoundaryPolicy)
	cfg.ChunkSize = getEnvInt("RISKMEM_CHUNK_SIZE", cfg.ChunkSize)
	cfg.ChunkOverlap = getEnvInt("RISKMEM_CHUNK_OVERLAP", cfg.ChunkOverlap)
	cfg.EmbedConcurrency = getEnvInt("RISKMEM_EMBED_CONCURRENCY", cfg.EmbedConcurrency)
	cfg.TopK = getEnvInt("RISKMEM_TOP_K", cfg.TopK)
	cfg.MinScore = getEnvFloat("RISKMEM_MIN_SCORE", cfg.MinScore)
	cfg.ContextBudgetChars = getEnvInt("RISKMEM_CONTEXT_BUDGET", cfg.ContextBudgetChars)
	cfg.TieEpsilon = getEnvFloat("RISKMEM_TIE_EPSILON", cfg.TieEpsilon)
	cfg.LongTermCapacity = getEnvInt("RISKMEM_LONG_TERM_CAPACITY", cfg.LongTermCapacity)
	cfg.MemoryRelevance = getEnvFloat("RISKMEM_MEMORY_RELEVANCE", cfg.MemoryRelevance)
	cfg.MemoryLimit = getEnvInt("RISKMEM_MEMORY_LIMIT", cfg.MemoryLimit)
	cfg.PromptBudgetChars = getEnvInt("RISKMEM_PROMPT_BUDGET", cfg.PromptBudgetChars)
	cfg.HTTPAddr = getEnv("RISKMEM_HTTP_ADDR", cfg.HTTPAddr)
	cfg.WatchDir = getEnv("RISKMEM_WATCH_DIR", cfg.WatchDir)

	if cfg.Embedder == "" {
		if cfg.OpenAIKey != "" {
			cfg.Embedder = "openai"
		} else {
			cfg.Embedder = "hash"
		}
	}

	return cfg, cfg.Validate()
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	var durations fileDurations
	if err := toml.Unmarshal(data, &durations); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if durations.ReasoningTimeout != "" {
		d, err := time.ParseDuration(durations.ReasoningTimeout)
		if err != nil {
			return fmt.Errorf("reasoning_timeout: %w", err)
		}
		c.ReasoningTimeout = d
	}
	if durations.RetryDelay != "" {
		d, err := time.ParseDuration(durations.RetryDelay)
		if err != nil {
			return fmt.Errorf("retry_delay: %w", err)
		}
		c.RetryDelay = d
	}
	return nil
}

// Validate checks every setting is within range
func (c *Config) Validate() error {
	var errs []error
	if c.MaxRetries < 0 || c.MaxRetries > 10 {
		errs = append(errs, fmt.Errorf("OPENAI_MAX_RETRIES must be 0-10, got %d", c.MaxRetries))
	}
	switch c.BoundaryPolicy {
	case "paragraph", "requirement", "auto":
	default:
		errs = append(errs, fmt.Errorf("RISKMEM_BOUNDARY_POLICY must be paragraph, requirement or auto, got %q", c.BoundaryPolicy))
	}
	switch c.Embedder {
	case "openai", "hash":
	default:
		errs = append(errs, fmt.Errorf("RISKMEM_EMBEDDER must be openai or hash, got %q", c.Embedder))
	}
	if c.Embedder == "openai" && c.OpenAIKey == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY is required for the openai embedder"))
	}
	if c.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("RISKMEM_CHUNK_SIZE must be positive, got %d", c.ChunkSize))
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		errs = append(errs, fmt.Errorf("RISKMEM_CHUNK_OVERLAP must be 0 to chunk size-1, got %d", c.ChunkOverlap))
	}
	if c.EmbedConcurrency < 1 {
		errs = append(errs, fmt.Errorf("RISKMEM_EMBED_CONCURRENCY must be at least 1, got %d", c.EmbedConcurrency))
	}
	if c.TopK < 1 {
		errs = append(errs, fmt.Errorf("RISKMEM_TOP_K must be at least 1, got %d", c.TopK))
	}
	if c.MinScore < -1 || c.MinScore > 1 {
		errs = append(errs, fmt.Errorf("RISKMEM_MIN_SCORE must be -1 to 1, got %f", c.MinScore))
	}
	if c.ContextBudgetChars < 1 || c.PromptBudgetChars < 1 {
		errs = append(errs, errors.New("context and prompt budgets must be positive"))
	}
	if c.TieEpsilon < 0 {
		errs = append(errs, fmt.Errorf("RISKMEM_TIE_EPSILON must not be negative, got %f", c.TieEpsilon))
	}
	if c.LongTermCapacity < 1 {
		errs = append(errs, fmt.Errorf("RISKMEM_LONG_TERM_CAPACITY must be at least 1, got %d", c.LongTermCapacity))
	}
	if c.MemoryRelevance < 0 || c.MemoryRelevance > 1 {
		errs = append(errs, fmt.Errorf("RISKMEM_MEMORY_RELEVANCE must be 0-1, got %f", c.MemoryRelevance))
	}
	if c.ReasoningTimeout <= 0 {
		errs = append(errs, fmt.Errorf("RISKMEM_REASONING_TIMEOUT must be positive, got %v", c.ReasoningTimeout))
	}
	if c.RequestsPerSecond <= 0 {
		errs = append(errs, fmt.Errorf("OPENAI_RPS must be positive, got %f", c.RequestsPerSecond))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	v := strings.ToLower(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	return v == "true" || v == "1"
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
