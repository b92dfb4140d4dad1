package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SQLiteMemory implements the Store contract on a SQLite database, for
// deployments that already run on SQL rather than the file-per-record layout.
// Items are stored as JSON in a single table created by the migrations
// package.
type SQLiteMemory struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewSQLiteMemory wraps an already-migrated database handle.
func NewSQLiteMemory(db *sql.DB, logger zerolog.Logger) *SQLiteMemory {
	logger = logger.With().Str("component", "sqlite_memory").Logger()
	logger.Info().Msg("SQLite memory initialized")
	return &SQLiteMemory{db: db, logger: logger}
}

// StatementBuilder returns a Squirrel builder configured for SQLite.
// SQLite uses '?' placeholders, which is Squirrel's default.
func StatementBuilder() sq.StatementBuilderType {
	return sq.StatementBuilder
}

// Add persists an item and returns its assigned identifier.
func (s *SQLiteMemory) Add(item Item) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC()
	payload, err := json.Marshal(cloneItem(item))
	if err != nil {
		return "", fmt.Errorf("marshal item: %w", err)
	}

	query := StatementBuilder().
		Insert("memory_items").
		Columns("id", "item", "created_at", "updated_at").
		Values(id, payload, now.Unix(), now.Unix())
	queryStr, args, err := query.ToSql()
	if err != nil {
		return "", fmt.Errorf("build insert query: %w", err)
	}
	if _, err := s.db.ExecContext(context.Background(), queryStr, args...); err != nil {
		s.logger.Error().Err(err).Str("id", id).Msg("Failed to insert memory item")
		return "", fmt.Errorf("insert memory_item: %w", err)
	}
	s.logger.Debug().Str("id", id).Msg("Item inserted")
	return id, nil
}

// Get returns the item for id with system metadata attached.
func (s *SQLiteMemory) Get(id string) (Item, bool, error) {
	rec, ok, err := s.loadByID(id)
	if err != nil || !ok {
		return nil, false, err
	}
	return rec.itemWithMeta(), true, nil
}

// Search scans all rows newest-first and applies dotted-path exact matching,
// truncating to limit.
func (s *SQLiteMemory) Search(query Item, limit int) ([]SearchHit, error) {
	if limit <= 0 {
		limit = 10
	}
	queryStr, args, err := StatementBuilder().
		Select("id", "item", "created_at", "updated_at").
		From("memory_items").
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select query: %w", err)
	}
	rows, err := s.db.QueryContext(context.Background(), queryStr, args...)
	if err != nil {
		s.logger.Error().Err(err).Msg("Search query failed")
		return nil, fmt.Errorf("select memory_items: %w", err)
	}
	defer rows.Close() //nolint:errcheck // no remedy for rows close error

	var hits []SearchHit
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		if !matchesQuery(rec.Fields, query) {
			continue
		}
		hits = append(hits, SearchHit{ID: rec.Meta.ID, Item: rec.itemWithMeta(), CreatedAt: rec.Meta.CreatedAt})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Unix-second storage loses sub-second ordering; re-sort on decoded times.
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].CreatedAt.After(hits[j].CreatedAt)
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Update replaces the stored value for id, preserving created_at.
func (s *SQLiteMemory) Update(id string, item Item) (bool, error) {
	payload, err := json.Marshal(cloneItem(item))
	if err != nil {
		return false, fmt.Errorf("marshal item: %w", err)
	}
	queryStr, args, err := StatementBuilder().
		Update("memory_items").
		Set("item", payload).
		Set("updated_at", time.Now().UTC().Unix()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build update query: %w", err)
	}
	res, err := s.db.ExecContext(context.Background(), queryStr, args...)
	if err != nil {
		s.logger.Error().Err(err).Str("id", id).Msg("Failed to update memory item")
		return false, fmt.Errorf("update memory_item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Delete removes one row; unknown identifiers are a normal false result.
func (s *SQLiteMemory) Delete(id string) (bool, error) {
	queryStr, args, err := StatementBuilder().
		Delete("memory_items").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build delete query: %w", err)
	}
	res, err := s.db.ExecContext(context.Background(), queryStr, args...)
	if err != nil {
		s.logger.Error().Err(err).Str("id", id).Msg("Failed to delete memory item")
		return false, fmt.Errorf("delete memory_item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Clear removes every row.
func (s *SQLiteMemory) Clear() error {
	if _, err := s.db.ExecContext(context.Background(), "DELETE FROM memory_items"); err != nil {
		return fmt.Errorf("clear memory_items: %w", err)
	}
	s.logger.Info().Msg("SQLite memory cleared")
	return nil
}

// Stats reports row count and total stored payload bytes.
func (s *SQLiteMemory) Stats() (Stats, error) {
	row := s.db.QueryRowContext(context.Background(),
		"SELECT COUNT(*), COALESCE(SUM(LENGTH(item)), 0) FROM memory_items")
	var count int
	var totalSize int64
	if err := row.Scan(&count, &totalSize); err != nil {
		return Stats{}, fmt.Errorf("stats query: %w", err)
	}
	return Stats{
		Type:           "sqlite",
		Size:           count,
		TotalSizeBytes: totalSize,
	}, nil
}

func (s *SQLiteMemory) loadByID(id string) (record, bool, error) {
	queryStr, args, err := StatementBuilder().
		Select("id", "item", "created_at", "updated_at").
		From("memory_items").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return record{}, false, fmt.Errorf("build select query: %w", err)
	}
	rows, err := s.db.QueryContext(context.Background(), queryStr, args...)
	if err != nil {
		return record{}, false, fmt.Errorf("select memory_item: %w", err)
	}
	defer rows.Close() //nolint:errcheck // no remedy for rows close error

	if !rows.Next() {
		return record{}, false, rows.Err()
	}
	rec, err := scanRecord(rows)
	if err != nil {
		return record{}, false, err
	}
	return rec, true, nil
}

func scanRecord(rows *sql.Rows) (record, error) {
	var (
		id        string
		payload   []byte
		createdAt int64
		updatedAt int64
	)
	if err := rows.Scan(&id, &payload, &createdAt, &updatedAt); err != nil {
		return record{}, err
	}
	var fields Item
	if err := json.Unmarshal(payload, &fields); err != nil {
		return record{}, fmt.Errorf("decode item %s: %w", id, err)
	}
	return record{
		Meta: Meta{
			ID:        id,
			CreatedAt: time.Unix(createdAt, 0).UTC(),
			UpdatedAt: time.Unix(updatedAt, 0).UTC(),
		},
		Fields: fields,
	}, nil
}
