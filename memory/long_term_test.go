package memory

import (
	"testing"

	"github.com/rs/zerolog"
)

func newTestLongTerm(t *testing.T, indexInMemory bool) *LongTermMemory {
	t.Helper()
	s, err := NewLongTermMemory(t.TempDir(), indexInMemory, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewLongTermMemory: %v", err)
	}
	return s
}

func TestLongTerm_AddGetRoundTrip(t *testing.T) {
	for _, indexed := range []bool{true, false} {
		s := newTestLongTerm(t, indexed)

		id, err := s.Add(Item{"content": "durable fact", "metadata": map[string]any{"topic": "go"}})
		if err != nil {
			t.Fatalf("Add (indexed=%v): %v", indexed, err)
		}

		item, found, err := s.Get(id)
		if err != nil {
			t.Fatalf("Get (indexed=%v): %v", indexed, err)
		}
		if !found {
			t.Fatalf("expected item to be found (indexed=%v)", indexed)
		}
		if item["content"] != "durable fact" {
			t.Fatalf("expected content round-trip, got %v", item["content"])
		}
	}
}

func TestLongTerm_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	first, err := NewLongTermMemory(dir, true, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewLongTermMemory: %v", err)
	}
	id, err := first.Add(Item{"content": "persisted"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	reopened, err := NewLongTermMemory(dir, true, zerolog.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	item, found, err := reopened.Get(id)
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if !found || item["content"] != "persisted" {
		t.Fatalf("expected record to survive reopen, found=%v item=%v", found, item)
	}
}

func TestLongTerm_DottedPathSearch(t *testing.T) {
	s := newTestLongTerm(t, true)

	if _, err := s.Add(Item{
		"content":  "go notes",
		"metadata": map[string]any{"topic": "go", "source": "user"},
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := s.Add(Item{
		"content":  "rust notes",
		"metadata": map[string]any{"topic": "rust"},
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	// No metadata at all: the dotted path is unresolvable, so this record
	// must be excluded rather than matched or erroring.
	if _, err := s.Add(Item{"content": "bare"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	hits, err := s.Search(Item{"metadata.topic": "go"}, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if hits[0].Item["content"] != "go notes" {
		t.Fatalf("expected go notes, got %v", hits[0].Item["content"])
	}

	none, err := s.Search(Item{"metadata.topic": "go", "metadata.source": "agent"}, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no hits when one field mismatches, got %d", len(none))
	}
}

func TestLongTerm_UpdateAndDelete(t *testing.T) {
	s := newTestLongTerm(t, true)

	id, _ := s.Add(Item{"v": "one"})

	ok, err := s.Update(id, Item{"v": "two"})
	if err != nil || !ok {
		t.Fatalf("Update: (%v, %v)", ok, err)
	}
	item, _, _ := s.Get(id)
	if item["v"] != "two" {
		t.Fatalf("expected updated value, got %v", item["v"])
	}

	ok, err = s.Update("missing", Item{"v": "x"})
	if err != nil || ok {
		t.Fatalf("expected update of unknown id to return (false, nil), got (%v, %v)", ok, err)
	}

	ok, err = s.Delete(id)
	if err != nil || !ok {
		t.Fatalf("Delete: (%v, %v)", ok, err)
	}
	ok, err = s.Delete(id)
	if err != nil || ok {
		t.Fatalf("expected repeat delete to return (false, nil), got (%v, %v)", ok, err)
	}
	if _, found, _ := s.Get(id); found {
		t.Fatalf("expected deleted record to be gone")
	}
}

func TestLongTerm_Stats(t *testing.T) {
	s := newTestLongTerm(t, true)

	for i := 0; i < 3; i++ {
		if _, err := s.Add(Item{"n": i}); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Size != 3 {
		t.Fatalf("expected 3 items, got %d", stats.Size)
	}
	if stats.TotalSizeBytes <= 0 {
		t.Fatalf("expected non-zero stored bytes")
	}

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	stats, _ = s.Stats()
	if stats.Size != 0 {
		t.Fatalf("expected empty store after clear, got %d", stats.Size)
	}
}
