// Package config loads engine configuration: defaults, then a TOML file,
// then CAREERFLOW_* environment variables (env wins).
package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

type Config struct {
	LLM       LLMConfig       `toml:"llm"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Database  DatabaseConfig  `toml:"database"`
	Engine    EngineConfig    `toml:"engine"`
	Observer  ObserverConfig  `toml:"observer"`
}

type LLMConfig struct {
	Model   string `toml:"model"`
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
}

type EmbeddingConfig struct {
	Model      string `toml:"model"`
	BaseURL    string `toml:"base_url"`
	APIKey     string `toml:"api_key"`
	Dimensions int    `toml:"dimensions"`
}

type DatabaseConfig struct {
	// Path is the SQLite file used when PostgresDSN is empty.
	Path        string `toml:"path"`
	PostgresDSN string `toml:"postgres_dsn"`
}

type EngineConfig struct {
	// DefaultJobID is the posting analyzed when the user names none.
	DefaultJobID string  `toml:"default_job_id"`
	SearchTopK   int     `toml:"search_top_k"`
	SearchMin    float64 `toml:"search_min_score"`
	Mode         string  `toml:"mode"` // think | no_think
}

type ObserverConfig struct {
	Enabled bool `toml:"enabled"`
}

// Default returns a Config with all defaults applied. The LLM defaults
// target a local Ollama gateway.
func Default() Config {
	return Config{
		LLM:       LLMConfig{Model: "qwen3:8b", BaseURL: "http://localhost:11434/v1"},
		Embedding: EmbeddingConfig{Model: "nomic-embed-text", BaseURL: "http://localhost:11434/v1", Dimensions: 768},
		Database:  DatabaseConfig{Path: "careerflow.db"},
		Engine:    EngineConfig{DefaultJobID: "4942", SearchTopK: 3, SearchMin: 0.5, Mode: "no_think"},
	}
}

// Load reads config: defaults -> TOML file -> env vars (env wins).
func Load(path string) Config {
	cfg := Default()

	if path == "" {
		path = "careerflow.toml"
	}

	if data, err := os.ReadFile(path); err == nil {
		_ = toml.Unmarshal(data, &cfg)
	}

	// Env overrides
	if v := os.Getenv("CAREERFLOW_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("CAREERFLOW_LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("CAREERFLOW_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("CAREERFLOW_EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("CAREERFLOW_POSTGRES_DSN"); v != "" {
		cfg.Database.PostgresDSN = v
	}
	if v := os.Getenv("CAREERFLOW_DEFAULT_JOB_ID"); v != "" {
		cfg.Engine.DefaultJobID = v
	}
	if v := os.Getenv("CAREERFLOW_OBSERVER_ENABLED"); v == "true" || v == "1" {
		cfg.Observer.Enabled = true
	}

	// Fallbacks
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = cfg.LLM.APIKey
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = cfg.LLM.BaseURL
	}

	return cfg
}
