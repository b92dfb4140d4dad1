// Package thought defines the thought-graph data model: the append-only
// Thought event, the graph-enriched ThoughtNode, typed weighted edges between
// nodes, and the simpler relations used by the recall engine.
package thought

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/eggplantiny/ai/memory"
)

// ConnectionType is the semantic classification of a directed edge between
// two thought nodes.
type ConnectionType string

const (
	ConnectionSemantic      ConnectionType = "semantic"
	ConnectionPurpose       ConnectionType = "purpose"
	ConnectionEmotional     ConnectionType = "emotional"
	ConnectionTemporal      ConnectionType = "temporal"
	ConnectionReinforcing   ConnectionType = "reinforcing"
	ConnectionContradictory ConnectionType = "contradictory"
	ConnectionEvolving      ConnectionType = "evolving"
)

// ValidConnectionType reports whether t is one of the known edge types.
func ValidConnectionType(t ConnectionType) bool {
	switch t {
	case ConnectionSemantic, ConnectionPurpose, ConnectionEmotional,
		ConnectionTemporal, ConnectionReinforcing, ConnectionContradictory,
		ConnectionEvolving:
		return true
	}
	return false
}

// RelationType classifies a recall-side relation between two thoughts.
type RelationType string

const (
	// RelationNext encodes session chronology.
	RelationNext RelationType = "NEXT"
	// RelationSimilarTo encodes inferred similarity above a threshold.
	RelationSimilarTo RelationType = "SIMILAR_TO"
	// RelationReferences encodes an explicit reference.
	RelationReferences RelationType = "REFERENCES"
)

// ValidRelationType reports whether t is one of the known relation types.
func ValidRelationType(t RelationType) bool {
	switch t {
	case RelationNext, RelationSimilarTo, RelationReferences:
		return true
	}
	return false
}

// Metadata carries the optional annotations attached to a Thought.
type Metadata struct {
	Importance *float64 `json:"importance,omitempty"`
	Topic      string   `json:"topic,omitempty"`
	// Source tags who produced the thought: "user" or "assistant".
	Source string `json:"source,omitempty"`
}

// Thought is one atomic memory event. Thoughts are created once per agent
// turn and never mutated afterward; they are removed only by explicit purge.
type Thought struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"sessionId"`
	Metadata  *Metadata `json:"metadata,omitempty"`
}

// NewThought creates a thought for the given session with a fresh identifier
// and the current timestamp.
func NewThought(sessionID, content string) (Thought, error) {
	if sessionID == "" {
		return Thought{}, memory.NewValidationError("thought sessionId is required")
	}
	if content == "" {
		return Thought{}, memory.NewValidationError("thought content is required")
	}
	return Thought{
		ID:        uuid.NewString(),
		Content:   content,
		Timestamp: time.Now().UTC(),
		SessionID: sessionID,
	}, nil
}

// Node is a thought enriched with graph position and optional goal-relevance
// scoring. Parent/child id sets are the graph store's derived view; the graph
// index is authoritative for edges.
type Node struct {
	ID               string             `json:"id"`
	Content          string             `json:"content"`
	ActivationScore  float64            `json:"activationScore"`
	EvaluationScores map[string]float64 `json:"evaluationScores"`
	ParentIDs        []string           `json:"parentIds"`
	ChildIDs         []string           `json:"childIds"`
	VectorEmbedding  []float32          `json:"vectorEmbedding"`
	GoalID           string             `json:"goalId,omitempty"`
	GoalContribution float64            `json:"goalContribution,omitempty"`
	PurposeEmbedding []float32          `json:"purposeEmbedding,omitempty"`
	Metadata         map[string]any     `json:"metadata,omitempty"`
	CreatedAt        time.Time          `json:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt"`
}

// NewNode creates a thought node with a fresh identifier and timestamps,
// validating score ranges at construction.
func NewNode(content string, activationScore float64, embedding []float32) (Node, error) {
	if content == "" {
		return Node{}, memory.NewValidationError("node content is required")
	}
	if err := validateScore("activationScore", activationScore); err != nil {
		return Node{}, err
	}
	now := time.Now().UTC()
	return Node{
		ID:               uuid.NewString(),
		Content:          content,
		ActivationScore:  activationScore,
		EvaluationScores: map[string]float64{},
		ParentIDs:        []string{},
		ChildIDs:         []string{},
		VectorEmbedding:  embedding,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// Validate re-checks the invariants a node must hold before it is persisted.
func (n Node) Validate() error {
	if n.ID == "" {
		return memory.NewValidationError("node id is required")
	}
	if err := validateScore("activationScore", n.ActivationScore); err != nil {
		return err
	}
	if n.GoalID != "" {
		if err := validateScore("goalContribution", n.GoalContribution); err != nil {
			return err
		}
	}
	return nil
}

// Edge is a directed, typed, weighted connection between two thought nodes.
// Multiple edges may exist between the same pair with different types.
type Edge struct {
	ID                 string         `json:"id"`
	FromNodeID         string         `json:"fromNodeId"`
	ToNodeID           string         `json:"toNodeId"`
	ConnectionStrength float64        `json:"connectionStrength"`
	ConnectionType     ConnectionType `json:"connectionType"`
	CreatedAt          time.Time      `json:"createdAt"`
}

// NewEdge creates an edge between two nodes, validating strength and type.
func NewEdge(fromID, toID string, strength float64, connType ConnectionType) (Edge, error) {
	if fromID == "" || toID == "" {
		return Edge{}, memory.NewValidationError("edge endpoints are required")
	}
	if err := validateScore("connectionStrength", strength); err != nil {
		return Edge{}, err
	}
	if !ValidConnectionType(connType) {
		return Edge{}, memory.NewValidationError(fmt.Sprintf("unknown connection type %q", connType))
	}
	return Edge{
		ID:                 uuid.NewString(),
		FromNodeID:         fromID,
		ToNodeID:           toID,
		ConnectionStrength: strength,
		ConnectionType:     connType,
		CreatedAt:          time.Now().UTC(),
	}, nil
}

// Validate re-checks the invariants an edge must hold before it is
// persisted.
func (e Edge) Validate() error {
	if e.ID == "" {
		return memory.NewValidationError("edge id is required")
	}
	if e.FromNodeID == "" || e.ToNodeID == "" {
		return memory.NewValidationError("edge endpoints are required")
	}
	if err := validateScore("connectionStrength", e.ConnectionStrength); err != nil {
		return err
	}
	if !ValidConnectionType(e.ConnectionType) {
		return memory.NewValidationError(fmt.Sprintf("unknown connection type %q", e.ConnectionType))
	}
	return nil
}

// Relation is the recall engine's simpler link between two thoughts.
type Relation struct {
	SourceID     string       `json:"sourceId"`
	TargetID     string       `json:"targetId"`
	RelationType RelationType `json:"relationType"`
	Strength     float64      `json:"strength"`
}

// Validate checks endpoints, type, and strength range.
func (r Relation) Validate() error {
	if r.SourceID == "" || r.TargetID == "" {
		return memory.NewValidationError("relation endpoints are required")
	}
	if !ValidRelationType(r.RelationType) {
		return memory.NewValidationError(fmt.Sprintf("unknown relation type %q", r.RelationType))
	}
	return validateScore("strength", r.Strength)
}

func validateScore(name string, v float64) error {
	if v < 0 || v > 1 {
		return memory.NewValidationError(fmt.Sprintf("%s %.3f out of range [0,1]", name, v))
	}
	return nil
}
