package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/eggplantiny/ai/repository"
	"github.com/eggplantiny/ai/thought"
)

const recallToolLimit = 5

// RegisterMemoryTools registers the recall tools backed by the session
// registry. The tools return formatted text; an empty result is a normal
// answer, a backend failure is an error the caller must surface.
func (r *Registry) RegisterMemoryTools(registry *repository.Registry) {
	r.logger.Info().Msg("Registering memory tools in registry")

	r.Register("memory_recent", func(ctx context.Context, sessionID string, args json.RawMessage) (any, error) {
		recall, err := registry.Get(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		thoughts, err := recall.GetRecentThoughts(ctx, sessionID, recallToolLimit)
		if err != nil {
			return nil, fmt.Errorf("get recent thoughts: %w", err)
		}
		return FormatRecentThoughts(thoughts), nil
	})

	r.Register("memory_retrieve", func(ctx context.Context, sessionID string, args json.RawMessage) (any, error) {
		var payload struct {
			Query string `json:"query"`
		}
		if err := json.Unmarshal(args, &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal arguments: %w", err)
		}
		if strings.TrimSpace(payload.Query) == "" {
			return nil, fmt.Errorf("query cannot be empty")
		}

		recall, err := registry.Get(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		memories, err := recall.FindRelevantMemories(ctx, payload.Query, recallToolLimit)
		if err != nil {
			return nil, fmt.Errorf("find relevant memories: %w", err)
		}
		return FormatRelevantMemories(memories), nil
	})

	r.Register("memory_store", func(ctx context.Context, sessionID string, args json.RawMessage) (any, error) {
		var payload struct {
			Content           string            `json:"content"`
			Metadata          *thought.Metadata `json:"metadata,omitempty"`
			PreviousThoughtID string            `json:"previous_thought_id,omitempty"`
		}
		if err := json.Unmarshal(args, &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal arguments: %w", err)
		}
		if strings.TrimSpace(payload.Content) == "" {
			return nil, fmt.Errorf("content cannot be empty")
		}

		recall, err := registry.Get(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if _, err := recall.StoreThoughtWithRelations(ctx, sessionID, payload.Content, payload.Metadata, payload.PreviousThoughtID); err != nil {
			return nil, fmt.Errorf("store memory: %w", err)
		}
		return "Memory stored successfully.", nil
	})
}

// FormatRecentThoughts renders recent thoughts as a chat transcript,
// attributing each line to the user or the agent by its metadata source.
func FormatRecentThoughts(thoughts []thought.Thought) string {
	if len(thoughts) == 0 {
		return "No recent thoughts found."
	}
	lines := make([]string, 0, len(thoughts))
	for _, t := range thoughts {
		role := "ai"
		if t.Metadata != nil && t.Metadata.Source == "user" {
			role = "user"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", role, t.Content))
	}
	return "# Recent Messages:\n" + strings.Join(lines, "\n")
}

// FormatRelevantMemories renders recall hits as a bulleted list.
func FormatRelevantMemories(memories []thought.Thought) string {
	if len(memories) == 0 {
		return "No recent memories found."
	}
	lines := make([]string, 0, len(memories))
	for _, m := range memories {
		lines = append(lines, "- "+m.Content)
	}
	return "# Related memories:\n" + strings.Join(lines, "\n")
}
