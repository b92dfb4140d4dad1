package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Memory.ShortTerm.Capacity != 100 {
		t.Fatalf("expected default capacity, got %d", cfg.Memory.ShortTerm.Capacity)
	}
	if cfg.Recall.DistanceThreshold != 0.7 {
		t.Fatalf("expected default threshold, got %g", cfg.Recall.DistanceThreshold)
	}
	if cfg.Neo4j.URI != "bolt://localhost:7687" {
		t.Fatalf("expected default neo4j uri, got %s", cfg.Neo4j.URI)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
memory:
  short_term:
    capacity: 250
recall:
  distance_threshold: 0.5
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Memory.ShortTerm.Capacity != 250 {
		t.Fatalf("expected file capacity, got %d", cfg.Memory.ShortTerm.Capacity)
	}
	if cfg.Recall.DistanceThreshold != 0.5 {
		t.Fatalf("expected file threshold, got %g", cfg.Recall.DistanceThreshold)
	}
	// Untouched settings keep their defaults.
	if cfg.Memory.ShortTerm.TTLSeconds != 3600 {
		t.Fatalf("expected default ttl, got %d", cfg.Memory.ShortTerm.TTLSeconds)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
neo4j:
  uri: bolt://filehost:7687
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("NEO4J_URI", "bolt://envhost:7687")
	t.Setenv("NEO4J_PASSWORD", "secret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Neo4j.URI != "bolt://envhost:7687" {
		t.Fatalf("expected env uri to win, got %s", cfg.Neo4j.URI)
	}
	if cfg.Neo4j.Password != "secret" {
		t.Fatalf("expected env password, got %q", cfg.Neo4j.Password)
	}
}

func TestLoad_RejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
memory:
  short_term:
    capacity: -1
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error for negative capacity")
	}
}
