package memory

import (
	"reflect"
	"time"
)

// Item is a single unit of memory: an opaque mapping of field name to value.
// System metadata is attached by the store under the MetaKey field at write
// time; callers never assign identifiers themselves.
type Item = map[string]any

// MetaKey is the reserved item field holding store-assigned system metadata.
const MetaKey = "_meta"

// Meta is the system metadata attached to every stored item.
type Meta struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SearchHit is one search result: the matched item plus its identity and
// creation time, used for descending-recency ordering.
type SearchHit struct {
	ID        string    `json:"id"`
	Item      Item      `json:"item"`
	CreatedAt time.Time `json:"created_at"`
}

// Stats reports a store's current shape.
type Stats struct {
	Type           string  `json:"type"`
	Size           int     `json:"size"`
	Capacity       int     `json:"capacity,omitempty"`
	Utilization    float64 `json:"utilization,omitempty"`
	TTLSeconds     int     `json:"ttl_seconds,omitempty"`
	StoragePath    string  `json:"storage_path,omitempty"`
	IndexInMemory  bool    `json:"index_in_memory,omitempty"`
	TotalSizeBytes int64   `json:"total_size_bytes,omitempty"`
}

// Store is the capability interface implemented independently by the
// short-term cache and the long-term stores. Each implementation owns its
// storage handle; there is no shared base state.
//
// Get, Update and Delete treat an unknown identifier as a normal absent
// result, never an error. Search matches every supplied query field exactly
// (logical AND) and returns hits ordered by descending creation time.
type Store interface {
	Add(item Item) (string, error)
	Get(id string) (Item, bool, error)
	Search(query Item, limit int) ([]SearchHit, error)
	Update(id string, item Item) (bool, error)
	Delete(id string) (bool, error)
	Clear() error
	Stats() (Stats, error)
}

// metaOf extracts system metadata from an item, if present.
func metaOf(item Item) (Meta, bool) {
	raw, ok := item[MetaKey]
	if !ok {
		return Meta{}, false
	}
	meta, ok := raw.(Meta)
	return meta, ok
}

// cloneItem copies the top level of an item so callers cannot mutate a
// store's internal state through a returned map.
func cloneItem(item Item) Item {
	if item == nil {
		return nil
	}
	out := make(Item, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

// matchesExact reports whether every query field is present on the item
// top-level with an identical value. Logical AND, no partial matches.
func matchesExact(item Item, query Item) bool {
	for key, want := range query {
		if key == MetaKey {
			continue
		}
		got, ok := item[key]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

// matchesQuery is matchesExact plus dotted-path field access: keys such as
// "metadata.topic" descend into nested map fields. A path that cannot be
// fully resolved excludes the candidate.
func matchesQuery(item Item, query Item) bool {
	for key, want := range query {
		if key == MetaKey {
			continue
		}
		got, ok := resolvePath(item, key)
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

func resolvePath(item Item, key string) (any, bool) {
	var current any = item
	for {
		idx := indexDot(key)
		part := key
		if idx >= 0 {
			part = key[:idx]
		}
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
		if idx < 0 {
			return current, true
		}
		key = key[idx+1:]
	}
}

func indexDot(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			return i
		}
	}
	return -1
}
