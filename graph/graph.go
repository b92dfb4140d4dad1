// Package graph abstracts the relationship-graph backend. Two roles are
// covered: Repository serves the thought-node graph (typed weighted edges,
// goal scoping, cycle detection), and ThoughtLog serves the recall engine's
// append-only thought event log with its simpler relations.
package graph

import (
	"context"
	"time"

	"github.com/eggplantiny/ai/thought"
)

// defaultRecentLimit caps GetRecentThoughts when no limit is given.
const defaultRecentLimit = 5

// NodeMetadata is the graph store's record for one thought node. Edges are
// stored separately; parent/child views are derived by traversal.
type NodeMetadata struct {
	ID               string             `json:"id"`
	Content          string             `json:"content"`
	ActivationScore  float64            `json:"activationScore"`
	EvaluationScores map[string]float64 `json:"evaluationScores"`
	GoalID           string             `json:"goalId,omitempty"`
	GoalContribution float64            `json:"goalContribution,omitempty"`
	Metadata         map[string]any     `json:"metadata,omitempty"`
	CreatedAt        time.Time          `json:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt"`
}

// Repository is the thought-node graph backend.
//
// CreateNode has upsert semantics: re-creating an existing id overwrites its
// fields and never duplicates the node. GetNode treats an absent id as a
// normal (zero, false, nil) result. DeleteNode cascades to incident edges.
// CreateEdge upserts by edge id and fails with a NotFound error when either
// endpoint is missing.
type Repository interface {
	Initialize(ctx context.Context) error
	Close(ctx context.Context) error

	CreateNode(ctx context.Context, id string, meta NodeMetadata) error
	UpdateNode(ctx context.Context, id string, meta NodeMetadata) error
	GetNode(ctx context.Context, id string) (NodeMetadata, bool, error)
	DeleteNode(ctx context.Context, id string) error

	CreateEdge(ctx context.Context, edge thought.Edge) error
	DeleteEdge(ctx context.Context, edgeID string) error

	GetParentNodes(ctx context.Context, id string) ([]NodeMetadata, error)
	GetChildNodes(ctx context.Context, id string) ([]NodeMetadata, error)
	GetNodesByGoal(ctx context.Context, goalID string) ([]NodeMetadata, error)

	// FindCycles returns every deduplicated simple directed path of
	// edge-length 2..maxDepth that returns to startID. Each sequence starts
	// at the queried node and does not repeat it; no cycles is an empty
	// list, not an error.
	FindCycles(ctx context.Context, startID string, maxDepth int) ([][]string, error)
}

// ThoughtLog is the recall-side graph backend for the append-only thought
// event log.
type ThoughtLog interface {
	Initialize(ctx context.Context) error
	Close(ctx context.Context) error

	StoreThought(ctx context.Context, t thought.Thought) error
	CreateRelation(ctx context.Context, rel thought.Relation) error
	GetThoughtByID(ctx context.Context, id string) (thought.Thought, bool, error)
	GetRelatedThoughts(ctx context.Context, id string, relType thought.RelationType) ([]thought.Thought, error)
	// GetRecentThoughts returns the newest thoughts for a session, ordered
	// by timestamp descending.
	GetRecentThoughts(ctx context.Context, sessionID string, limit int) ([]thought.Thought, error)
}
