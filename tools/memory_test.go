package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/eggplantiny/ai/graph"
	"github.com/eggplantiny/ai/repository"
	"github.com/eggplantiny/ai/thought"
	"github.com/eggplantiny/ai/vector"
)

type stubEmbedder struct {
	vectors map[string][]float32
}

func (e stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, ok := e.vectors[text]
	if !ok {
		return nil, errors.New("no vector for text: " + text)
	}
	return vec, nil
}

func (e stubEmbedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func newTestRegistry(t *testing.T, embedder stubEmbedder) *Registry {
	t.Helper()
	sessions := repository.NewRegistry(func(sessionID string) (*repository.Recall, error) {
		log := graph.NewMemoryThoughtLog(zerolog.Nop())
		idx := vector.NewChromemIndex("", "thoughts", zerolog.Nop())
		return repository.NewRecall(log, idx, embedder, repository.RecallOptions{}, zerolog.Nop()), nil
	}, zerolog.Nop())

	r := NewRegistry(zerolog.Nop())
	r.RegisterMemoryTools(sessions)
	return r
}

func TestMemoryTools_StoreAndRecent(t *testing.T) {
	r := newTestRegistry(t, stubEmbedder{vectors: map[string][]float32{
		"hello from the user": {1, 0, 0},
		"reply from the ai":   {0, 1, 0},
	}})
	ctx := context.Background()

	result, err := r.Handle(ctx, "memory_store", "s1",
		[]byte(`{"content": "hello from the user", "metadata": {"source": "user"}}`))
	if err != nil {
		t.Fatalf("memory_store: %v", err)
	}
	if result != "Memory stored successfully." {
		t.Fatalf("unexpected store output: %v", result)
	}
	if _, err := r.Handle(ctx, "memory_store", "s1",
		[]byte(`{"content": "reply from the ai"}`)); err != nil {
		t.Fatalf("memory_store: %v", err)
	}

	result, err = r.Handle(ctx, "memory_recent", "s1", []byte(`{}`))
	if err != nil {
		t.Fatalf("memory_recent: %v", err)
	}
	text, ok := result.(string)
	if !ok {
		t.Fatalf("expected string output, got %T", result)
	}
	want := "# Recent Messages:\nai: reply from the ai\nuser: hello from the user"
	if text != want {
		t.Fatalf("unexpected transcript:\n got: %q\nwant: %q", text, want)
	}
}

func TestMemoryTools_RecentEmpty(t *testing.T) {
	r := newTestRegistry(t, stubEmbedder{vectors: map[string][]float32{}})

	result, err := r.Handle(context.Background(), "memory_recent", "s1", []byte(`{}`))
	if err != nil {
		t.Fatalf("memory_recent: %v", err)
	}
	if result != "No recent thoughts found." {
		t.Fatalf("unexpected empty output: %v", result)
	}
}

func TestMemoryTools_Retrieve(t *testing.T) {
	r := newTestRegistry(t, stubEmbedder{vectors: map[string][]float32{
		"cats are great": {1, 0, 0},
		"weather report": {0, 0, 1},
		"about cats":     {1, 0, 0},
	}})
	ctx := context.Background()

	for _, content := range []string{"cats are great", "weather report"} {
		if _, err := r.Handle(ctx, "memory_store", "s1",
			[]byte(`{"content": "`+content+`"}`)); err != nil {
			t.Fatalf("memory_store: %v", err)
		}
	}

	result, err := r.Handle(ctx, "memory_retrieve", "s1", []byte(`{"query": "about cats"}`))
	if err != nil {
		t.Fatalf("memory_retrieve: %v", err)
	}
	if result != "# Related memories:\n- cats are great" {
		t.Fatalf("unexpected retrieve output: %v", result)
	}

	// A query with no close memories is a normal empty answer.
	r2 := newTestRegistry(t, stubEmbedder{vectors: map[string][]float32{"anything": {1, 0, 0}}})
	result, err = r2.Handle(ctx, "memory_retrieve", "s1", []byte(`{"query": "anything"}`))
	if err != nil {
		t.Fatalf("memory_retrieve: %v", err)
	}
	if result != "No recent memories found." {
		t.Fatalf("unexpected empty retrieve output: %v", result)
	}
}

func TestMemoryTools_InputValidation(t *testing.T) {
	r := newTestRegistry(t, stubEmbedder{vectors: map[string][]float32{}})
	ctx := context.Background()

	if _, err := r.Handle(ctx, "memory_store", "s1", []byte(`{"content": "  "}`)); err == nil {
		t.Fatalf("expected error for blank content")
	}
	if _, err := r.Handle(ctx, "memory_retrieve", "s1", []byte(`{"query": ""}`)); err == nil {
		t.Fatalf("expected error for empty query")
	}
	if _, err := r.Handle(ctx, "nonexistent_tool", "s1", []byte(`{}`)); err == nil {
		t.Fatalf("expected error for unknown tool")
	}
}

func TestMemoryTools_SessionIsolation(t *testing.T) {
	r := newTestRegistry(t, stubEmbedder{vectors: map[string][]float32{
		"private note": {1, 0, 0},
	}})
	ctx := context.Background()

	if _, err := r.Handle(ctx, "memory_store", "s1", []byte(`{"content": "private note"}`)); err != nil {
		t.Fatalf("memory_store: %v", err)
	}

	result, err := r.Handle(ctx, "memory_recent", "s2", []byte(`{}`))
	if err != nil {
		t.Fatalf("memory_recent: %v", err)
	}
	if result != "No recent thoughts found." {
		t.Fatalf("expected session isolation, got %v", result)
	}
}

func TestFormatHelpers(t *testing.T) {
	if got := FormatRecentThoughts(nil); got != "No recent thoughts found." {
		t.Fatalf("unexpected empty transcript: %q", got)
	}
	if got := FormatRelevantMemories(nil); got != "No recent memories found." {
		t.Fatalf("unexpected empty memories: %q", got)
	}

	user := &thought.Metadata{Source: "user"}
	thoughts := []thought.Thought{
		{Content: "question", Metadata: user},
		{Content: "answer"},
	}
	want := "# Recent Messages:\nuser: question\nai: answer"
	if got := FormatRecentThoughts(thoughts); got != want {
		t.Fatalf("unexpected transcript:\n got: %q\nwant: %q", got, want)
	}
}
