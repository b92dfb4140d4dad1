package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/eggplantiny/ai/memory"
	"github.com/eggplantiny/ai/thought"
)

// MemoryGraph is an in-process Repository for tests and embedded
// single-process deployments. Matching the remote adapter, nodes are
// authoritative for metadata and edges for connectivity.
type MemoryGraph struct {
	mu     sync.RWMutex
	nodes  map[string]NodeMetadata
	edges  map[string]thought.Edge
	logger zerolog.Logger
}

// NewMemoryGraph returns an empty in-process graph.
func NewMemoryGraph(logger zerolog.Logger) *MemoryGraph {
	return &MemoryGraph{
		nodes:  make(map[string]NodeMetadata),
		edges:  make(map[string]thought.Edge),
		logger: logger.With().Str("component", "memory_graph").Logger(),
	}
}

// Initialize is a no-op; the maps are ready at construction.
func (g *MemoryGraph) Initialize(ctx context.Context) error { return nil }

// Close discards all state.
func (g *MemoryGraph) Close(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes = make(map[string]NodeMetadata)
	g.edges = make(map[string]thought.Edge)
	return nil
}

// CreateNode upserts the node stored under id.
func (g *MemoryGraph) CreateNode(ctx context.Context, id string, meta NodeMetadata) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	meta.ID = id
	g.nodes[id] = meta
	g.logger.Debug().Str("id", id).Msg("Node upserted")
	return nil
}

// UpdateNode has the same upsert semantics as CreateNode.
func (g *MemoryGraph) UpdateNode(ctx context.Context, id string, meta NodeMetadata) error {
	return g.CreateNode(ctx, id, meta)
}

// GetNode returns the node for id; absence is a normal result.
func (g *MemoryGraph) GetNode(ctx context.Context, id string) (NodeMetadata, bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	meta, ok := g.nodes[id]
	return meta, ok, nil
}

// DeleteNode removes the node and every incident edge.
func (g *MemoryGraph) DeleteNode(ctx context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.nodes, id)
	for edgeID, edge := range g.edges {
		if edge.FromNodeID == id || edge.ToNodeID == id {
			delete(g.edges, edgeID)
		}
	}
	return nil
}

// CreateEdge upserts an edge by id between two existing nodes.
func (g *MemoryGraph) CreateEdge(ctx context.Context, edge thought.Edge) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.nodes[edge.FromNodeID]; !ok {
		return memory.NewNotFoundError(fmt.Sprintf("edge source node %s not found", edge.FromNodeID))
	}
	if _, ok := g.nodes[edge.ToNodeID]; !ok {
		return memory.NewNotFoundError(fmt.Sprintf("edge target node %s not found", edge.ToNodeID))
	}
	g.edges[edge.ID] = edge
	g.logger.Debug().Str("id", edge.ID).Str("type", string(edge.ConnectionType)).Msg("Edge upserted")
	return nil
}

// DeleteEdge removes the edge stored under edgeID, if any.
func (g *MemoryGraph) DeleteEdge(ctx context.Context, edgeID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.edges, edgeID)
	return nil
}

// GetParentNodes returns nodes with a directed edge into id.
func (g *MemoryGraph) GetParentNodes(ctx context.Context, id string) ([]NodeMetadata, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var parents []NodeMetadata
	for _, edge := range g.edges {
		if edge.ToNodeID != id {
			continue
		}
		if meta, ok := g.nodes[edge.FromNodeID]; ok {
			parents = append(parents, meta)
		}
	}
	return parents, nil
}

// GetChildNodes returns nodes with a directed edge out of id.
func (g *MemoryGraph) GetChildNodes(ctx context.Context, id string) ([]NodeMetadata, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var children []NodeMetadata
	for _, edge := range g.edges {
		if edge.FromNodeID != id {
			continue
		}
		if meta, ok := g.nodes[edge.ToNodeID]; ok {
			children = append(children, meta)
		}
	}
	return children, nil
}

// GetNodesByGoal returns all nodes scoped to goalID.
func (g *MemoryGraph) GetNodesByGoal(ctx context.Context, goalID string) ([]NodeMetadata, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var nodes []NodeMetadata
	for _, meta := range g.nodes {
		if meta.GoalID == goalID {
			nodes = append(nodes, meta)
		}
	}
	return nodes, nil
}

// FindCycles enumerates simple directed paths of edge-length 2..maxDepth
// that return to startID, deduplicated by node sequence.
func (g *MemoryGraph) FindCycles(ctx context.Context, startID string, maxDepth int) ([][]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if maxDepth < 2 {
		return [][]string{}, nil
	}
	if _, ok := g.nodes[startID]; !ok {
		return [][]string{}, nil
	}

	adjacency := make(map[string][]string)
	for _, edge := range g.edges {
		adjacency[edge.FromNodeID] = append(adjacency[edge.FromNodeID], edge.ToNodeID)
	}

	seen := make(map[string]bool)
	var cycles [][]string
	var walk func(current string, path []string)
	walk = func(current string, path []string) {
		if len(path) > maxDepth {
			return
		}
		for _, next := range adjacency[current] {
			if next == startID {
				if len(path) >= 2 {
					key := strings.Join(path, "\x00")
					if !seen[key] {
						seen[key] = true
						cycles = append(cycles, append([]string(nil), path...))
					}
				}
				continue
			}
			if containsID(path, next) {
				continue
			}
			walk(next, append(path, next))
		}
	}
	walk(startID, []string{startID})

	g.logger.Debug().Str("start", startID).Int("cycles", len(cycles)).Msg("Cycle search completed")
	return cycles, nil
}

func containsID(path []string, id string) bool {
	for _, p := range path {
		if p == id {
			return true
		}
	}
	return false
}

// MemoryThoughtLog is the in-process ThoughtLog counterpart to MemoryGraph.
type MemoryThoughtLog struct {
	mu        sync.RWMutex
	thoughts  map[string]thought.Thought
	relations []thought.Relation
	logger    zerolog.Logger
}

// NewMemoryThoughtLog returns an empty in-process thought log.
func NewMemoryThoughtLog(logger zerolog.Logger) *MemoryThoughtLog {
	return &MemoryThoughtLog{
		thoughts: make(map[string]thought.Thought),
		logger:   logger.With().Str("component", "memory_thought_log").Logger(),
	}
}

// Initialize is a no-op.
func (l *MemoryThoughtLog) Initialize(ctx context.Context) error { return nil }

// Close discards all state.
func (l *MemoryThoughtLog) Close(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.thoughts = make(map[string]thought.Thought)
	l.relations = nil
	return nil
}

// StoreThought records one thought event. Last write wins per identifier.
func (l *MemoryThoughtLog) StoreThought(ctx context.Context, t thought.Thought) error {
	if t.ID == "" {
		return memory.NewValidationError("thought id is required")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.thoughts[t.ID] = t
	l.logger.Debug().Str("id", t.ID).Str("session", t.SessionID).Msg("Thought stored")
	return nil
}

// CreateRelation links two stored thoughts.
func (l *MemoryThoughtLog) CreateRelation(ctx context.Context, rel thought.Relation) error {
	if err := rel.Validate(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.thoughts[rel.SourceID]; !ok {
		return memory.NewNotFoundError(fmt.Sprintf("relation source %s not found", rel.SourceID))
	}
	if _, ok := l.thoughts[rel.TargetID]; !ok {
		return memory.NewNotFoundError(fmt.Sprintf("relation target %s not found", rel.TargetID))
	}
	l.relations = append(l.relations, rel)
	return nil
}

// GetThoughtByID returns the thought for id; absence is a normal result.
func (l *MemoryThoughtLog) GetThoughtByID(ctx context.Context, id string) (thought.Thought, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.thoughts[id]
	return t, ok, nil
}

// GetRelatedThoughts follows outgoing relations of the given type.
func (l *MemoryThoughtLog) GetRelatedThoughts(ctx context.Context, id string, relType thought.RelationType) ([]thought.Thought, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var related []thought.Thought
	for _, rel := range l.relations {
		if rel.SourceID != id || rel.RelationType != relType {
			continue
		}
		if t, ok := l.thoughts[rel.TargetID]; ok {
			related = append(related, t)
		}
	}
	return related, nil
}

// GetRecentThoughts returns the newest thoughts for a session.
func (l *MemoryThoughtLog) GetRecentThoughts(ctx context.Context, sessionID string, limit int) ([]thought.Thought, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	var recent []thought.Thought
	for _, t := range l.thoughts {
		if t.SessionID == sessionID {
			recent = append(recent, t)
		}
	}
	sort.Slice(recent, func(i, j int) bool {
		return recent[i].Timestamp.After(recent[j].Timestamp)
	})
	if len(recent) > limit {
		recent = recent[:limit]
	}
	return recent, nil
}
