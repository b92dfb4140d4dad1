package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LongTermMemory is the durable key→item store: one JSON file per record,
// named by identifier, under a configurable directory. An optional in-memory
// index keeps reads off the disk. Records have no automatic expiry.
type LongTermMemory struct {
	mu            sync.RWMutex
	storagePath   string
	indexInMemory bool
	index         map[string]record
	logger        zerolog.Logger
}

// record is the on-disk envelope: system metadata plus caller fields.
type record struct {
	Meta   Meta `json:"_meta"`
	Fields Item `json:"fields"`
}

// NewLongTermMemory creates a long-term store rooted at storagePath
// (default: ~/.ai/memory). With indexInMemory set, all records are loaded
// into an index at construction and kept current on writes.
func NewLongTermMemory(storagePath string, indexInMemory bool, logger zerolog.Logger) (*LongTermMemory, error) {
	logger = logger.With().Str("component", "long_term_memory").Logger()
	if storagePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		storagePath = filepath.Join(home, ".ai", "memory")
	}
	if err := os.MkdirAll(storagePath, 0o700); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}

	s := &LongTermMemory{
		storagePath:   storagePath,
		indexInMemory: indexInMemory,
		index:         make(map[string]record),
		logger:        logger,
	}
	if indexInMemory {
		if err := s.loadIndex(); err != nil {
			return nil, err
		}
	}
	logger.Info().
		Str("path", storagePath).
		Bool("indexInMemory", indexInMemory).
		Msg("Long-term memory initialized")
	return s, nil
}

// Add persists an item and returns its assigned identifier.
func (s *LongTermMemory) Add(item Item) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	now := time.Now().UTC()
	rec := record{
		Meta:   Meta{ID: id, CreatedAt: now, UpdatedAt: now},
		Fields: cloneItem(item),
	}
	if err := s.saveRecord(id, rec); err != nil {
		s.logger.Error().Err(err).Str("id", id).Msg("Failed to persist item")
		return "", err
	}
	if s.indexInMemory {
		s.index[id] = rec
	}
	s.logger.Debug().Str("id", id).Msg("Item persisted")
	return id, nil
}

// Get returns the item for id with its system metadata attached. Absence is
// a normal result; only an unreadable record is an error.
func (s *LongTermMemory) Get(id string) (Item, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok, err := s.loadRecord(id)
	if err != nil || !ok {
		return nil, false, err
	}
	return rec.itemWithMeta(), true, nil
}

// Search returns records matching every query field, with dotted-path access
// into nested mappings, newest first, truncated to limit.
func (s *LongTermMemory) Search(query Item, limit int) ([]SearchHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}
	var hits []SearchHit
	consider := func(rec record) {
		if matchesQuery(rec.Fields, query) {
			hits = append(hits, SearchHit{ID: rec.Meta.ID, Item: rec.itemWithMeta(), CreatedAt: rec.Meta.CreatedAt})
		}
	}

	if s.indexInMemory {
		for _, rec := range s.index {
			consider(rec)
		}
	} else {
		ids, err := s.listIDs()
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			rec, ok, err := s.loadRecord(id)
			if err != nil {
				s.logger.Warn().Err(err).Str("id", id).Msg("Skipping unreadable record during search")
				continue
			}
			if ok {
				consider(rec)
			}
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		return hits[i].CreatedAt.After(hits[j].CreatedAt)
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	s.logger.Debug().Int("matches", len(hits)).Msg("Long-term search completed")
	return hits, nil
}

// Update replaces the stored value for id, preserving its creation time.
// Returns false when the identifier is unknown.
func (s *LongTermMemory) Update(id string, item Item) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok, err := s.loadRecord(id)
	if err != nil || !ok {
		return false, err
	}
	rec := record{
		Meta: Meta{
			ID:        id,
			CreatedAt: existing.Meta.CreatedAt,
			UpdatedAt: time.Now().UTC(),
		},
		Fields: cloneItem(item),
	}
	if err := s.saveRecord(id, rec); err != nil {
		s.logger.Error().Err(err).Str("id", id).Msg("Failed to update item")
		return false, err
	}
	if s.indexInMemory {
		s.index[id] = rec
	}
	return true, nil
}

// Delete removes the record for id from disk and index. Returns false when
// the identifier is unknown.
func (s *LongTermMemory) Delete(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.itemPath(id)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat record: %w", err)
	}
	if err := os.Remove(path); err != nil {
		s.logger.Error().Err(err).Str("id", id).Msg("Failed to delete record")
		return false, fmt.Errorf("delete record: %w", err)
	}
	delete(s.index, id)
	s.logger.Debug().Str("id", id).Msg("Record deleted")
	return true, nil
}

// Clear removes every stored record.
func (s *LongTermMemory) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.listIDs()
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := os.Remove(s.itemPath(id)); err != nil {
			s.logger.Warn().Err(err).Str("id", id).Msg("Failed to remove record during clear")
		}
	}
	s.index = make(map[string]record)
	s.logger.Info().Int("removed", len(ids)).Msg("Long-term memory cleared")
	return nil
}

// Stats reports item count and total stored byte size.
func (s *LongTermMemory) Stats() (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids, err := s.listIDs()
	if err != nil {
		return Stats{}, err
	}
	var totalSize int64
	for _, id := range ids {
		if info, err := os.Stat(s.itemPath(id)); err == nil {
			totalSize += info.Size()
		}
	}
	return Stats{
		Type:           "long_term",
		Size:           len(ids),
		StoragePath:    s.storagePath,
		IndexInMemory:  s.indexInMemory,
		TotalSizeBytes: totalSize,
	}, nil
}

func (rec record) itemWithMeta() Item {
	item := cloneItem(rec.Fields)
	if item == nil {
		item = Item{}
	}
	item[MetaKey] = rec.Meta
	return item
}

func (s *LongTermMemory) itemPath(id string) string {
	return filepath.Join(s.storagePath, id+".json")
}

func (s *LongTermMemory) saveRecord(id string, rec record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if err := os.WriteFile(s.itemPath(id), data, 0o600); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

func (s *LongTermMemory) loadRecord(id string) (record, bool, error) {
	if s.indexInMemory {
		rec, ok := s.index[id]
		return rec, ok, nil
	}
	data, err := os.ReadFile(s.itemPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return record{}, false, nil
		}
		return record{}, false, fmt.Errorf("read record: %w", err)
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return record{}, false, fmt.Errorf("decode record %s: %w", id, err)
	}
	return rec, true, nil
}

func (s *LongTermMemory) listIDs() ([]string, error) {
	entries, err := os.ReadDir(s.storagePath)
	if err != nil {
		return nil, fmt.Errorf("read storage dir: %w", err)
	}
	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	return ids, nil
}

func (s *LongTermMemory) loadIndex() error {
	ids, err := s.listIDs()
	if err != nil {
		return err
	}
	for _, id := range ids {
		data, err := os.ReadFile(s.itemPath(id))
		if err != nil {
			s.logger.Warn().Err(err).Str("id", id).Msg("Skipping unreadable record during index load")
			continue
		}
		var rec record
		if err := json.Unmarshal(data, &rec); err != nil {
			s.logger.Warn().Err(err).Str("id", id).Msg("Skipping undecodable record during index load")
			continue
		}
		s.index[id] = rec
	}
	s.logger.Info().Int("items", len(s.index)).Msg("Long-term index loaded")
	return nil
}
