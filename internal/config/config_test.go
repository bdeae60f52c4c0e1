package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Clustering.SimilarityThreshold != 0.62 {
		t.Errorf("expected default similarity threshold 0.62, got %v", cfg.Clustering.SimilarityThreshold)
	}
	if cfg.Feeds.IngestIntervalMinutes != 10 {
		t.Errorf("expected default ingest interval 10, got %v", cfg.Feeds.IngestIntervalMinutes)
	}
	if cfg.Feeds.RequestTimeout.Seconds() != 30 {
		t.Errorf("expected post-processed request timeout of 30s, got %v", cfg.Feeds.RequestTimeout)
	}
}

func TestGetWithoutLoadErrors(t *testing.T) {
	Reset()
	if _, err := Get(); err == nil {
		t.Fatalf("expected Get to error before Load is called")
	}
}

func TestEnvOverridesDefault(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	os.Setenv("DATABASE_URL", "postgres://example/test")
	t.Cleanup(func() { os.Unsetenv("DATABASE_URL") })

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.ConnectionString != "postgres://example/test" {
		t.Errorf("expected env override to win, got %q", cfg.Database.ConnectionString)
	}
}

func TestValidateRejectsBadThreshold(t *testing.T) {
	cfg := &Config{
		Database:   DatabaseConfig{ConnectionString: "x"},
		Feeds:      FeedsConfig{IngestIntervalMinutes: 1},
		Clustering: ClusteringConfig{SimilarityThreshold: 1.5, EntityOverlapThreshold: 0.5, TokenSimilarityThreshold: 0.4},
		Relevance:  RelevanceConfig{OllamaBaseURL: "http://x"},
	}
	if err := validateConfig(cfg); err == nil {
		t.Fatalf("expected validation error for out-of-range threshold")
	}
}
