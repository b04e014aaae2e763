package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	if cfg.Engine.DefaultJobID != "4942" {
		t.Errorf("expected default job id 4942, got %s", cfg.Engine.DefaultJobID)
	}
	if cfg.Engine.SearchTopK != 3 {
		t.Errorf("expected top_k 3, got %d", cfg.Engine.SearchTopK)
	}
	if cfg.Embedding.Dimensions != 768 {
		t.Errorf("expected 768, got %d", cfg.Embedding.Dimensions)
	}
}

func TestLoadFromTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.toml")
	os.WriteFile(path, []byte(`
[llm]
model = "gpt-4o-mini"

[engine]
default_job_id = "7363"
`), 0644)

	cfg := Load(path)
	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("expected gpt-4o-mini, got %s", cfg.LLM.Model)
	}
	if cfg.Engine.DefaultJobID != "7363" {
		t.Errorf("expected 7363, got %s", cfg.Engine.DefaultJobID)
	}
	// Defaults preserved
	if cfg.Database.Path != "careerflow.db" {
		t.Errorf("default should be preserved, got %s", cfg.Database.Path)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("CAREERFLOW_LLM_API_KEY", "env-key")
	t.Setenv("CAREERFLOW_DEFAULT_JOB_ID", "101")

	cfg := Load("/nonexistent/path.toml")
	if cfg.LLM.APIKey != "env-key" {
		t.Errorf("expected env-key, got %s", cfg.LLM.APIKey)
	}
	if cfg.Engine.DefaultJobID != "101" {
		t.Errorf("expected 101, got %s", cfg.Engine.DefaultJobID)
	}
	// Fallback: embedding inherits the LLM key
	if cfg.Embedding.APIKey != "env-key" {
		t.Errorf("expected embedding fallback to env-key, got %s", cfg.Embedding.APIKey)
	}
}
