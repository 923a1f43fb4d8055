package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `{}`))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Generation.MaxIterations != 3 {
		t.Fatalf("expected max_iterations 3, got %d", cfg.Generation.MaxIterations)
	}
	if cfg.Generation.MaxTokens != 1000 || cfg.Generation.Temperature != 0.7 {
		t.Fatalf("unexpected sampling defaults: %+v", cfg.Generation)
	}
	if cfg.LLM.MaxRetries != 3 || cfg.LLM.RetryDelay != 2*time.Second {
		t.Fatalf("unexpected retry defaults: %+v", cfg.LLM)
	}
	if cfg.Retrieval.SearchTopK != 3 || cfg.Retrieval.ChunkSize != 4000 || cfg.Retrieval.ChunkOverlap != 200 {
		t.Fatalf("unexpected retrieval defaults: %+v", cfg.Retrieval)
	}
	f := cfg.Output.Fields
	if f.Query != "Q" || f.COT != "COT" || f.Tools != "Tool Set" || f.Decision != "Decision" {
		t.Fatalf("unexpected field names: %+v", f)
	}
	if cfg.Storage.StateBackend != "memory" {
		t.Fatalf("expected memory state backend, got %s", cfg.Storage.StateBackend)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfig(t, `{
		"llm": {"provider": "OpenAI", "model": "gpt-4o-mini"},
		"generation": {"max_iterations": 5},
		"output": {"format": "json", "fields": {"query": "question"}}
	}`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.LLM.Provider != "openai" {
		t.Fatalf("expected provider normalized to openai, got %s", cfg.LLM.Provider)
	}
	if cfg.Generation.MaxIterations != 5 {
		t.Fatalf("expected max_iterations 5, got %d", cfg.Generation.MaxIterations)
	}
	if cfg.Output.Format != "json" || cfg.Output.Fields.Query != "question" || cfg.Output.Fields.COT != "COT" {
		t.Fatalf("unexpected output config: %+v", cfg.Output)
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"provider": `{"llm": {"provider": "bedrock"}}`,
		"overlap":  `{"retrieval": {"chunk_size": 100, "chunk_overlap": 100}}`,
		"format":   `{"output": {"format": "csv"}}`,
		"redis":    `{"storage": {"state_backend": "redis"}}`,
	}
	for name, body := range cases {
		if _, err := LoadConfig(writeConfig(t, body)); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", User: "u", Password: "p", DBName: "traj"}
	want := "postgres://u:p@db:5432/traj?sslmode=disable"
	if got := p.DSN(); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
	p.URL = "postgres://override"
	if p.DSN() != "postgres://override" {
		t.Fatalf("expected url to win")
	}
}
