// memoryd serves the agent memory tools over MCP stdio. It wires the
// configured backends together: chromem vector index, Neo4j thought graph
// (or the in-memory graph when no password is configured), and an Ollama
// or OpenAI embedder.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/eggplantiny/ai/config"
	"github.com/eggplantiny/ai/graph"
	"github.com/eggplantiny/ai/logger"
	"github.com/eggplantiny/ai/memory"
	"github.com/eggplantiny/ai/repository"
	"github.com/eggplantiny/ai/tools"
	"github.com/eggplantiny/ai/vector"

	ollamaembed "github.com/eggplantiny/ai/embedding/ollama"
	openaiembed "github.com/eggplantiny/ai/embedding/openai"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", config.GetConfigPath(), "Path to config file")
		logFile    = flag.String("logfile", "memory.log", "Path to log file; stdio is reserved for MCP")
	)
	flag.Parse()

	log, err := logger.InitWithOptions(*logFile, false)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log.Info().Str("config", *configPath).Msg("memoryd starting")

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	registry := repository.NewRegistry(func(sessionID string) (*repository.Recall, error) {
		thoughtLog, err := buildThoughtLog(cfg, log)
		if err != nil {
			return nil, err
		}
		index := vector.NewChromemIndex(vectorPathFor(cfg, sessionID), cfg.Vector.Collection, log)
		return repository.NewRecall(thoughtLog, index, embedder, repository.RecallOptions{
			DistanceThreshold:   cfg.Recall.DistanceThreshold,
			SimilarityRelations: cfg.Recall.SimilarityRelations,
			SimilarityLimit:     cfg.Recall.SimilarityLimit,
			MinStrength:         cfg.Recall.MinStrength,
		}, log), nil
	}, log)
	defer func() {
		if err := registry.Close(context.Background()); err != nil {
			log.Error().Err(err).Msg("Failed to close recall engines")
		}
	}()

	toolRegistry := tools.NewRegistry(log)
	toolRegistry.RegisterMemoryTools(registry)

	srv := tools.NewMCPServer(toolRegistry, log)
	log.Info().Msg("Serving memory tools over MCP stdio")
	return tools.ServeStdio(srv)
}

func buildEmbedder(cfg config.Config) (memory.Embedder, error) {
	if cfg.OpenAI.APIKey != "" {
		return openaiembed.NewEmbedder(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model)
	}
	return ollamaembed.NewEmbedder(ollamaembed.Model(cfg.Ollama.Model))
}

// buildThoughtLog prefers the Neo4j backend; without credentials it falls
// back to the in-memory log so the tools still work standalone.
func buildThoughtLog(cfg config.Config, log zerolog.Logger) (graph.ThoughtLog, error) {
	if cfg.Neo4j.Password != "" {
		return graph.NewNeo4jThoughtLog(cfg.Neo4j.URI, cfg.Neo4j.Username, cfg.Neo4j.Password, log)
	}
	log.Warn().Msg("No Neo4j password configured, using in-memory thought log")
	return graph.NewMemoryThoughtLog(log), nil
}

// vectorPathFor keeps each session's index in its own directory so recall
// stays session-scoped. An empty base path keeps everything in memory.
func vectorPathFor(cfg config.Config, sessionID string) string {
	if cfg.Vector.Path == "" {
		return ""
	}
	return cfg.Vector.Path + "/" + sessionID
}
