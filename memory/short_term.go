package memory

import (
	"container/heap"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ShortTermMemory is the bounded, TTL-expiring, LRU-evicting in-process
// store of recent items. Every operation first sweeps expired items so an
// item past its TTL is never observably returned.
//
// All mutation happens under one mutex; returned items are top-level copies.
type ShortTermMemory struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*cacheEntry
	lru      accessHeap
	clock    func() time.Time
	logger   zerolog.Logger
}

type cacheEntry struct {
	item       Item
	createdAt  time.Time
	lastAccess time.Time
}

// accessHeap is a min-heap of (lastAccess, id) pairs. Entries go stale when
// an item is re-accessed or deleted; stale entries are skipped on pop, which
// keeps eviction O(log n) instead of re-sorting a queue per eviction.
type accessHeap []accessStamp

type accessStamp struct {
	at time.Time
	id string
}

func (h accessHeap) Len() int           { return len(h) }
func (h accessHeap) Less(i, j int) bool { return h[i].at.Before(h[j].at) }
func (h accessHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *accessHeap) Push(x any)        { *h = append(*h, x.(accessStamp)) }

func (h *accessHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// NewShortTermMemory creates a short-term store holding at most capacity
// items, each live for ttl after creation.
func NewShortTermMemory(capacity int, ttl time.Duration, logger zerolog.Logger) *ShortTermMemory {
	logger = logger.With().Str("component", "short_term_memory").Logger()
	if capacity < 100 {
		logger.Warn().Int("capacity", capacity).Msg("Short-term capacity is quite small")
	}
	logger.Info().
		Int("capacity", capacity).
		Dur("ttl", ttl).
		Msg("Short-term memory initialized")
	return &ShortTermMemory{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*cacheEntry),
		clock:    time.Now,
		logger:   logger,
	}
}

// Add stores an item and returns its assigned identifier. If the insert
// pushes the store past capacity, the least-recently-accessed live item is
// evicted; the item being added is never its own eviction victim.
func (s *ShortTermMemory) Add(item Item) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneExpired()

	id := uuid.NewString()
	now := s.clock()
	s.items[id] = &cacheEntry{item: cloneItem(item), createdAt: now, lastAccess: now}
	heap.Push(&s.lru, accessStamp{at: now, id: id})

	if len(s.items) > s.capacity {
		s.evictLRU(id)
	}

	if util := float64(len(s.items)) / float64(s.capacity); util > 0.9 {
		s.logger.Warn().Float64("utilization", util).Msg("Short-term memory nearly full")
	}
	s.logger.Debug().Str("id", id).Int("size", len(s.items)).Msg("Item added")
	return id, nil
}

// Get returns the item for id, refreshing its access time. An unknown or
// expired identifier is a normal absent result.
func (s *ShortTermMemory) Get(id string) (Item, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneExpired()

	entry, ok := s.items[id]
	if !ok {
		s.logger.Debug().Str("id", id).Msg("No recollection of item")
		return nil, false, nil
	}
	s.touch(id, entry)
	return s.withMeta(id, entry), true, nil
}

// Search returns items matching every query field exactly, newest first,
// truncated to limit. Matches count as accesses for LRU purposes.
func (s *ShortTermMemory) Search(query Item, limit int) ([]SearchHit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneExpired()

	if limit <= 0 {
		limit = 10
	}
	var hits []SearchHit
	for id, entry := range s.items {
		if !matchesExact(entry.item, query) {
			continue
		}
		s.touch(id, entry)
		hits = append(hits, SearchHit{ID: id, Item: s.withMeta(id, entry), CreatedAt: entry.createdAt})
	}
	sort.Slice(hits, func(i, j int) bool {
		return hits[i].CreatedAt.After(hits[j].CreatedAt)
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	s.logger.Debug().Int("matches", len(hits)).Msg("Search completed")
	return hits, nil
}

// Update replaces the value for id, preserving its creation time. Returns
// false when the identifier is unknown or expired.
func (s *ShortTermMemory) Update(id string, item Item) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneExpired()

	entry, ok := s.items[id]
	if !ok {
		s.logger.Debug().Str("id", id).Msg("Cannot update unknown item")
		return false, nil
	}
	entry.item = cloneItem(item)
	s.touch(id, entry)
	return true, nil
}

// Delete removes the item for id. Returns false when the identifier is
// unknown; the store's size is unchanged in that case.
func (s *ShortTermMemory) Delete(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneExpired()
	return s.deleteLocked(id), nil
}

// Clear removes every item.
func (s *ShortTermMemory) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := len(s.items)
	s.items = make(map[string]*cacheEntry)
	s.lru = nil
	s.logger.Info().Int("removed", old).Msg("Short-term memory cleared")
	return nil
}

// Stats reports current size, capacity and utilization.
func (s *ShortTermMemory) Stats() (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneExpired()

	utilization := 0.0
	if s.capacity > 0 {
		utilization = float64(len(s.items)) / float64(s.capacity)
	}
	return Stats{
		Type:        "short_term",
		Size:        len(s.items),
		Capacity:    s.capacity,
		Utilization: utilization,
		TTLSeconds:  int(s.ttl / time.Second),
	}, nil
}

// touch refreshes last-access under the lock and records the new stamp in
// the heap; the old stamp is left to be skipped lazily.
func (s *ShortTermMemory) touch(id string, entry *cacheEntry) {
	entry.lastAccess = s.clock()
	heap.Push(&s.lru, accessStamp{at: entry.lastAccess, id: id})
}

func (s *ShortTermMemory) withMeta(id string, entry *cacheEntry) Item {
	item := cloneItem(entry.item)
	item[MetaKey] = Meta{ID: id, CreatedAt: entry.createdAt, UpdatedAt: entry.lastAccess}
	return item
}

func (s *ShortTermMemory) deleteLocked(id string) bool {
	if _, ok := s.items[id]; !ok {
		return false
	}
	delete(s.items, id)
	return true
}

// pruneExpired removes every item whose age exceeds the TTL. Sweep problems
// never fail the caller's operation.
func (s *ShortTermMemory) pruneExpired() {
	if s.ttl <= 0 {
		return
	}
	now := s.clock()
	removed := 0
	for id, entry := range s.items {
		if now.Sub(entry.createdAt) > s.ttl {
			delete(s.items, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug().Int("expired", removed).Msg("Expired items pruned")
	}
}

// evictLRU removes the live item with the oldest last-access time, skipping
// stale heap entries and the just-added item.
func (s *ShortTermMemory) evictLRU(justAdded string) {
	var deferred []accessStamp
	for s.lru.Len() > 0 {
		stamp := heap.Pop(&s.lru).(accessStamp)
		entry, ok := s.items[stamp.id]
		if !ok || !entry.lastAccess.Equal(stamp.at) {
			continue
		}
		if stamp.id == justAdded {
			deferred = append(deferred, stamp)
			continue
		}
		delete(s.items, stamp.id)
		s.logger.Debug().Str("id", stamp.id).Msg("Evicted least-recently-used item")
		break
	}
	for _, stamp := range deferred {
		heap.Push(&s.lru, stamp)
	}
}
