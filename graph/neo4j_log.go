package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rs/zerolog"

	"github.com/eggplantiny/ai/memory"
	"github.com/eggplantiny/ai/thought"
)

// Neo4jThoughtLog stores session thoughts and typed relations in Neo4j.
// The relation type becomes the relationship label, so it is validated
// against the known set before being formatted into a query.
type Neo4jThoughtLog struct {
	driver neo4j.DriverWithContext
	logger zerolog.Logger
}

// NewNeo4jThoughtLog connects to the graph backend at uri with basic auth.
func NewNeo4jThoughtLog(uri, username, password string, logger zerolog.Logger) (*Neo4jThoughtLog, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	return &Neo4jThoughtLog{
		driver: driver,
		logger: logger.With().Str("component", "neo4j_thought_log").Logger(),
	}, nil
}

// Initialize verifies connectivity and ensures the id constraint exists.
func (l *Neo4jThoughtLog) Initialize(ctx context.Context) error {
	if err := verifyConnectivity(ctx, l.driver); err != nil {
		l.logger.Error().Err(err).Msg("Graph backend unreachable")
		return memory.NewBackendUnavailableError("graph backend unreachable", err)
	}
	_, err := neo4j.ExecuteQuery(ctx, l.driver, `
		CREATE CONSTRAINT thought_id IF NOT EXISTS
		FOR (t:Thought) REQUIRE t.id IS UNIQUE
	`, nil, neo4j.EagerResultTransformer)
	if err != nil {
		return memory.NewBackendUnavailableError("initialize thought log schema", err)
	}
	return nil
}

// Close shuts the driver down.
func (l *Neo4jThoughtLog) Close(ctx context.Context) error {
	return l.driver.Close(ctx)
}

// StoreThought upserts the thought node by id.
func (l *Neo4jThoughtLog) StoreThought(ctx context.Context, t thought.Thought) error {
	props := map[string]any{
		"content":   t.Content,
		"timestamp": t.Timestamp.UTC().Format(time.RFC3339Nano),
		"sessionId": t.SessionID,
	}
	if t.Metadata != nil {
		raw, err := json.Marshal(t.Metadata)
		if err != nil {
			return fmt.Errorf("marshal thought metadata: %w", err)
		}
		props["metadata"] = string(raw)
	}
	_, err := neo4j.ExecuteQuery(ctx, l.driver, `
		MERGE (t:Thought {id: $id})
		SET t += $properties
	`, map[string]any{"id": t.ID, "properties": props}, neo4j.EagerResultTransformer)
	if err != nil {
		l.logger.Error().Err(err).Str("id", t.ID).Msg("Failed to store thought")
		return memory.NewQueryError("store thought", err)
	}
	l.logger.Debug().Str("id", t.ID).Str("session_id", t.SessionID).Msg("Stored thought")
	return nil
}

// CreateRelation links two stored thoughts with a typed relationship,
// failing with NotFound when either side is missing.
func (l *Neo4jThoughtLog) CreateRelation(ctx context.Context, rel thought.Relation) error {
	if err := rel.Validate(); err != nil {
		return err
	}
	query := fmt.Sprintf(`
		MATCH (source:Thought {id: $sourceId})
		MATCH (target:Thought {id: $targetId})
		MERGE (source)-[r:%s]->(target)
		SET r.strength = $strength
		RETURN r
	`, rel.RelationType)
	result, err := neo4j.ExecuteQuery(ctx, l.driver, query, map[string]any{
		"sourceId": rel.SourceID,
		"targetId": rel.TargetID,
		"strength": rel.Strength,
	}, neo4j.EagerResultTransformer)
	if err != nil {
		return memory.NewQueryError("create relation", err)
	}
	if len(result.Records) == 0 {
		return memory.NewNotFoundError(
			fmt.Sprintf("relation endpoints %s -> %s not found", rel.SourceID, rel.TargetID))
	}
	return nil
}

// GetThoughtByID returns the thought for id; absence is a normal result.
func (l *Neo4jThoughtLog) GetThoughtByID(ctx context.Context, id string) (thought.Thought, bool, error) {
	result, err := neo4j.ExecuteQuery(ctx, l.driver, `
		MATCH (t:Thought {id: $id})
		RETURN t
	`, map[string]any{"id": id}, neo4j.EagerResultTransformer)
	if err != nil {
		return thought.Thought{}, false, memory.NewQueryError("get thought", err)
	}
	if len(result.Records) == 0 {
		return thought.Thought{}, false, nil
	}
	t, err := recordToThought(result.Records[0])
	if err != nil {
		return thought.Thought{}, false, err
	}
	return t, true, nil
}

// GetRelatedThoughts returns thoughts reachable from id over one hop of
// the given relation type.
func (l *Neo4jThoughtLog) GetRelatedThoughts(ctx context.Context, id string, relType thought.RelationType) ([]thought.Thought, error) {
	if !thought.ValidRelationType(relType) {
		return nil, memory.NewValidationError(fmt.Sprintf("unknown relation type %q", relType))
	}
	query := fmt.Sprintf(`
		MATCH (source:Thought {id: $id})-[:%s]->(t:Thought)
		RETURN t
	`, relType)
	result, err := neo4j.ExecuteQuery(ctx, l.driver, query,
		map[string]any{"id": id}, neo4j.EagerResultTransformer)
	if err != nil {
		return nil, memory.NewQueryError("get related thoughts", err)
	}
	return recordsToThoughts(result.Records)
}

// GetRecentThoughts returns up to limit thoughts for the session, newest
// first. Timestamps are stored as RFC 3339 UTC strings, which sort in
// chronological order.
func (l *Neo4jThoughtLog) GetRecentThoughts(ctx context.Context, sessionID string, limit int) ([]thought.Thought, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	result, err := neo4j.ExecuteQuery(ctx, l.driver, `
		MATCH (t:Thought {sessionId: $sessionId})
		RETURN t
		ORDER BY t.timestamp DESC
		LIMIT $limit
	`, map[string]any{"sessionId": sessionID, "limit": limit}, neo4j.EagerResultTransformer)
	if err != nil {
		return nil, memory.NewQueryError("get recent thoughts", err)
	}
	return recordsToThoughts(result.Records)
}

func recordsToThoughts(records []*neo4j.Record) ([]thought.Thought, error) {
	thoughts := make([]thought.Thought, 0, len(records))
	for _, record := range records {
		t, err := recordToThought(record)
		if err != nil {
			return nil, err
		}
		thoughts = append(thoughts, t)
	}
	return thoughts, nil
}

func recordToThought(record *neo4j.Record) (thought.Thought, error) {
	raw, ok := record.Get("t")
	if !ok {
		return thought.Thought{}, memory.NewQueryError("thought missing from record", nil)
	}
	node, ok := raw.(neo4j.Node)
	if !ok {
		return thought.Thought{}, memory.NewQueryError("unexpected record value type", nil)
	}
	props := node.Props

	t := thought.Thought{
		ID:        stringProp(props, "id"),
		Content:   stringProp(props, "content"),
		SessionID: stringProp(props, "sessionId"),
		Timestamp: timeProp(props, "timestamp"),
	}
	if raw := stringProp(props, "metadata"); raw != "" {
		var meta thought.Metadata
		if err := json.Unmarshal([]byte(raw), &meta); err == nil {
			t.Metadata = &meta
		}
	}
	return t, nil
}
