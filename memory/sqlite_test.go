package memory

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/eggplantiny/ai/migrations"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory database and runs migrations.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	migrationsPath := filepath.Join(cwd, "..", "migrations")
	if _, err := os.Stat(filepath.Join(migrationsPath, "000001_initial_schema.up.sql")); err != nil {
		t.Fatalf("migrations not found at %s: %v", migrationsPath, err)
	}

	if err := migrations.RunMigrations(db, migrationsPath, zerolog.Nop()); err != nil {
		_ = db.Close() //nolint:errcheck // Cleanup on error
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

func TestSQLite_AddGetRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	store := NewSQLiteMemory(db, zerolog.Nop())

	id, err := store.Add(Item{"content": "sql fact", "metadata": map[string]any{"topic": "db"}})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	item, found, err := store.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !found {
		t.Fatalf("expected item to be found")
	}
	if item["content"] != "sql fact" {
		t.Fatalf("expected content round-trip, got %v", item["content"])
	}
	meta, ok := item[MetaKey].(Meta)
	if !ok || meta.ID != id {
		t.Fatalf("expected meta with id %s, got %v", id, item[MetaKey])
	}

	if _, found, err := store.Get("missing"); err != nil || found {
		t.Fatalf("expected unknown id to be a normal miss, got (%v, %v)", found, err)
	}
}

func TestSQLite_DottedPathSearch(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	store := NewSQLiteMemory(db, zerolog.Nop())

	if _, err := store.Add(Item{"content": "a", "metadata": map[string]any{"topic": "go"}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := store.Add(Item{"content": "b", "metadata": map[string]any{"topic": "rust"}}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	hits, err := store.Search(Item{"metadata.topic": "go"}, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].Item["content"] != "a" {
		t.Fatalf("expected single go hit, got %v", hits)
	}
}

func TestSQLite_UpdateDeleteClear(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	store := NewSQLiteMemory(db, zerolog.Nop())

	id, _ := store.Add(Item{"v": "one"})

	ok, err := store.Update(id, Item{"v": "two"})
	if err != nil || !ok {
		t.Fatalf("Update: (%v, %v)", ok, err)
	}
	item, _, _ := store.Get(id)
	if item["v"] != "two" {
		t.Fatalf("expected updated value, got %v", item["v"])
	}

	ok, err = store.Update("missing", Item{"v": "x"})
	if err != nil || ok {
		t.Fatalf("expected update of unknown id to return (false, nil), got (%v, %v)", ok, err)
	}

	ok, err = store.Delete(id)
	if err != nil || !ok {
		t.Fatalf("Delete: (%v, %v)", ok, err)
	}
	ok, err = store.Delete(id)
	if err != nil || ok {
		t.Fatalf("expected repeat delete to return (false, nil), got (%v, %v)", ok, err)
	}

	if _, err := store.Add(Item{"v": "left"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	stats, err := store.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Size != 0 {
		t.Fatalf("expected empty table after clear, got %d", stats.Size)
	}
}
