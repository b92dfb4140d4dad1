// Package config loads the memory service configuration: YAML file merged
// over built-in defaults, with environment variables taking final
// precedence for deployment secrets.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// ShortTermConfig tunes the in-process short-term cache.
type ShortTermConfig struct {
	Capacity   int `yaml:"capacity,omitempty"`    // Max items before LRU eviction (default: 100)
	TTLSeconds int `yaml:"ttl_seconds,omitempty"` // Item lifetime in seconds (default: 3600)
}

// LongTermConfig tunes the file-backed long-term store.
type LongTermConfig struct {
	Path          string `yaml:"path,omitempty"`            // Storage directory (default: ~/.ai/memory)
	IndexInMemory *bool  `yaml:"index_in_memory,omitempty"` // Keep a full index in memory (default: true)
}

// SQLiteConfig points the durable SQL store at its database file.
type SQLiteConfig struct {
	Path string `yaml:"path,omitempty"` // Database file path (default: ~/.ai/memory.db)
}

// MemoryConfig groups the store configurations.
type MemoryConfig struct {
	ShortTerm ShortTermConfig `yaml:"short_term,omitempty"`
	LongTerm  LongTermConfig  `yaml:"long_term,omitempty"`
	SQLite    SQLiteConfig    `yaml:"sqlite,omitempty"`
}

// VectorConfig tunes the embedded vector index.
type VectorConfig struct {
	Path       string `yaml:"path,omitempty"`       // Persistence directory; empty keeps the index in memory
	Collection string `yaml:"collection,omitempty"` // Collection name (default: thoughts)
}

// Neo4jConfig holds the graph backend connection settings.
type Neo4jConfig struct {
	URI      string `yaml:"uri,omitempty"`      // Bolt URI (default: bolt://localhost:7687)
	Username string `yaml:"username,omitempty"` // Auth user (default: neo4j)
	Password string `yaml:"password,omitempty"` // Auth password
}

// RecallConfig tunes the recall engine's relation policy.
type RecallConfig struct {
	DistanceThreshold   float64 `yaml:"distance_threshold,omitempty"`   // Relevance cutoff, strict upper bound (default: 0.7)
	SimilarityRelations bool    `yaml:"similarity_relations,omitempty"` // Create SIMILAR_TO relations on store
	SimilarityLimit     int     `yaml:"similarity_limit,omitempty"`     // Neighbors considered per store (default: 5)
	MinStrength         float64 `yaml:"min_strength,omitempty"`         // Weakest similarity relation worth keeping (default: 0.3)
}

// OllamaConfig configures the local embedding provider.
type OllamaConfig struct {
	Host  string `yaml:"host,omitempty"`  // Ollama host (default: "http://localhost:11434")
	Model string `yaml:"model,omitempty"` // Embedding model name (default: nomic-embed-text)
}

// OpenAIConfig configures the hosted embedding provider.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key,omitempty"`  // OpenAI API key
	BaseURL string `yaml:"base_url,omitempty"` // Custom base URL (default: official API)
	Model   string `yaml:"model,omitempty"`    // Embedding model name (default: text-embedding-3-small)
}

// Config is the full service configuration.
type Config struct {
	Memory MemoryConfig `yaml:"memory,omitempty"`
	Vector VectorConfig `yaml:"vector,omitempty"`
	Neo4j  Neo4jConfig  `yaml:"neo4j,omitempty"`
	Recall RecallConfig `yaml:"recall,omitempty"`
	Ollama OllamaConfig `yaml:"ollama,omitempty"`
	OpenAI OpenAIConfig `yaml:"openai,omitempty"`
}

// GetConfigPath returns the default config file path. Can be overridden via
// the AI_CONFIG_PATH environment variable.
func GetConfigPath() string {
	if envPath := os.Getenv("AI_CONFIG_PATH"); envPath != "" {
		return expandPath(envPath)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./.ai/config.yaml"
	}
	return filepath.Join(homeDir, ".ai", "config.yaml")
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	indexInMemory := true
	return Config{
		Memory: MemoryConfig{
			ShortTerm: ShortTermConfig{
				Capacity:   100,
				TTLSeconds: 3600,
			},
			LongTerm: LongTermConfig{
				Path:          "~/.ai/memory",
				IndexInMemory: &indexInMemory,
			},
			SQLite: SQLiteConfig{
				Path: "~/.ai/memory.db",
			},
		},
		Vector: VectorConfig{
			Collection: "thoughts",
		},
		Neo4j: Neo4jConfig{
			URI:      "bolt://localhost:7687",
			Username: "neo4j",
		},
		Recall: RecallConfig{
			DistanceThreshold: 0.7,
			SimilarityLimit:   5,
			MinStrength:       0.3,
		},
		Ollama: OllamaConfig{
			Host:  "http://localhost:11434",
			Model: "nomic-embed-text",
		},
		OpenAI: OpenAIConfig{
			Model: "text-embedding-3-small",
		},
	}
}

// Load reads the config file at path (missing file is fine), merges it over
// the defaults, applies environment overrides, and validates the result.
func Load(path string) (Config, error) {
	cfg := Defaults()

	expandedPath := expandPath(path)
	data, err := os.ReadFile(expandedPath)
	if err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("read config file %s: %w", expandedPath, err)
	}
	if err == nil {
		var fileConfig Config
		if err := yaml.Unmarshal(data, &fileConfig); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", expandedPath, err)
		}
		if err := mergo.Merge(&cfg, fileConfig, mergo.WithOverride); err != nil {
			return Config{}, fmt.Errorf("merge config file %s: %w", expandedPath, err)
		}
	}

	applyEnvOverrides(&cfg)

	cfg.Memory.LongTerm.Path = expandPath(cfg.Memory.LongTerm.Path)
	cfg.Memory.SQLite.Path = expandPath(cfg.Memory.SQLite.Path)
	cfg.Vector.Path = expandPath(cfg.Vector.Path)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the stores cannot honor.
func (c Config) Validate() error {
	if c.Memory.ShortTerm.Capacity <= 0 {
		return fmt.Errorf("memory.short_term.capacity must be positive, got %d", c.Memory.ShortTerm.Capacity)
	}
	if c.Memory.ShortTerm.TTLSeconds <= 0 {
		return fmt.Errorf("memory.short_term.ttl_seconds must be positive, got %d", c.Memory.ShortTerm.TTLSeconds)
	}
	if c.Recall.DistanceThreshold <= 0 || c.Recall.DistanceThreshold > 2 {
		return fmt.Errorf("recall.distance_threshold must be in (0,2], got %g", c.Recall.DistanceThreshold)
	}
	if c.Recall.MinStrength < 0 || c.Recall.MinStrength > 1 {
		return fmt.Errorf("recall.min_strength must be in [0,1], got %g", c.Recall.MinStrength)
	}
	if c.Neo4j.URI == "" {
		return fmt.Errorf("neo4j.uri must not be empty")
	}
	return nil
}

// applyEnvOverrides lets deployment environments override file settings,
// mainly for secrets that should not live in YAML.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("NEO4J_URI"); v != "" {
		cfg.Neo4j.URI = v
	}
	if v := os.Getenv("NEO4J_USER"); v != "" {
		cfg.Neo4j.Username = v
	}
	if v := os.Getenv("NEO4J_PASSWORD"); v != "" {
		cfg.Neo4j.Password = v
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		cfg.Ollama.Host = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAI.APIKey = v
	}
	if v := os.Getenv("MEMORY_DISTANCE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Recall.DistanceThreshold = f
		}
	}
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	return path
}
