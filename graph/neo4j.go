package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rs/zerolog"

	"github.com/eggplantiny/ai/memory"
	"github.com/eggplantiny/ai/thought"
)

// Neo4jGraph backs the Repository contract with a Neo4j server. Nodes carry
// the Thought label; edges are CONNECTS relationships keyed by edge id.
// Structured metadata is stored as JSON string properties.
type Neo4jGraph struct {
	driver neo4j.DriverWithContext
	logger zerolog.Logger
}

// NewNeo4jGraph connects to the graph backend at uri with basic auth. The
// connection is verified lazily by Initialize.
func NewNeo4jGraph(uri, username, password string, logger zerolog.Logger) (*Neo4jGraph, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	return &Neo4jGraph{
		driver: driver,
		logger: logger.With().Str("component", "neo4j_graph").Logger(),
	}, nil
}

// Initialize verifies connectivity (with a short backoff, since the graph
// service may still be starting) and establishes the uniqueness constraint
// on thought identifiers.
func (g *Neo4jGraph) Initialize(ctx context.Context) error {
	if err := verifyConnectivity(ctx, g.driver); err != nil {
		g.logger.Error().Err(err).Msg("Graph backend unreachable")
		return memory.NewBackendUnavailableError("graph backend unreachable", err)
	}
	_, err := neo4j.ExecuteQuery(ctx, g.driver, `
		CREATE CONSTRAINT thought_id IF NOT EXISTS
		FOR (t:Thought) REQUIRE t.id IS UNIQUE
	`, nil, neo4j.EagerResultTransformer)
	if err != nil {
		g.logger.Error().Err(err).Msg("Failed to create uniqueness constraint")
		return memory.NewBackendUnavailableError("initialize graph schema", err)
	}
	g.logger.Info().Msg("Graph repository initialized")
	return nil
}

// Close shuts the driver down.
func (g *Neo4jGraph) Close(ctx context.Context) error {
	return g.driver.Close(ctx)
}

// CreateNode merges the node by id and overwrites its properties.
func (g *Neo4jGraph) CreateNode(ctx context.Context, id string, meta NodeMetadata) error {
	props, err := nodeProps(meta)
	if err != nil {
		return err
	}
	_, err = neo4j.ExecuteQuery(ctx, g.driver, `
		MERGE (t:Thought {id: $id})
		SET t += $properties
	`, map[string]any{"id": id, "properties": props}, neo4j.EagerResultTransformer)
	if err != nil {
		g.logger.Error().Err(err).Str("id", id).Msg("Failed to upsert node")
		return memory.NewQueryError("upsert node", err)
	}
	return nil
}

// UpdateNode shares CreateNode's merge semantics.
func (g *Neo4jGraph) UpdateNode(ctx context.Context, id string, meta NodeMetadata) error {
	return g.CreateNode(ctx, id, meta)
}

// GetNode returns the node for id; absence is a normal result.
func (g *Neo4jGraph) GetNode(ctx context.Context, id string) (NodeMetadata, bool, error) {
	result, err := neo4j.ExecuteQuery(ctx, g.driver, `
		MATCH (t:Thought {id: $id})
		RETURN t
	`, map[string]any{"id": id}, neo4j.EagerResultTransformer)
	if err != nil {
		return NodeMetadata{}, false, memory.NewQueryError("get node", err)
	}
	if len(result.Records) == 0 {
		return NodeMetadata{}, false, nil
	}
	meta, err := recordToMetadata(result.Records[0], "t")
	if err != nil {
		return NodeMetadata{}, false, err
	}
	return meta, true, nil
}

// DeleteNode detaches and deletes the node, cascading to incident edges.
func (g *Neo4jGraph) DeleteNode(ctx context.Context, id string) error {
	_, err := neo4j.ExecuteQuery(ctx, g.driver, `
		MATCH (t:Thought {id: $id})
		DETACH DELETE t
	`, map[string]any{"id": id}, neo4j.EagerResultTransformer)
	if err != nil {
		return memory.NewQueryError("delete node", err)
	}
	return nil
}

// CreateEdge merges a CONNECTS relationship by edge id between two existing
// nodes, failing with NotFound when either endpoint is missing.
func (g *Neo4jGraph) CreateEdge(ctx context.Context, edge thought.Edge) error {
	result, err := neo4j.ExecuteQuery(ctx, g.driver, `
		MATCH (from:Thought {id: $fromId})
		MATCH (to:Thought {id: $toId})
		MERGE (from)-[r:CONNECTS {id: $id}]->(to)
		SET r += $properties
		RETURN r
	`, map[string]any{
		"id":     edge.ID,
		"fromId": edge.FromNodeID,
		"toId":   edge.ToNodeID,
		"properties": map[string]any{
			"connectionStrength": edge.ConnectionStrength,
			"connectionType":     string(edge.ConnectionType),
			"createdAt":          edge.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}, neo4j.EagerResultTransformer)
	if err != nil {
		g.logger.Error().Err(err).Str("id", edge.ID).Msg("Failed to upsert edge")
		return memory.NewQueryError("upsert edge", err)
	}
	if len(result.Records) == 0 {
		return memory.NewNotFoundError(
			fmt.Sprintf("edge endpoints %s -> %s not found", edge.FromNodeID, edge.ToNodeID))
	}
	return nil
}

// DeleteEdge removes the CONNECTS relationship with the given id.
func (g *Neo4jGraph) DeleteEdge(ctx context.Context, edgeID string) error {
	_, err := neo4j.ExecuteQuery(ctx, g.driver, `
		MATCH ()-[r:CONNECTS {id: $edgeId}]->()
		DELETE r
	`, map[string]any{"edgeId": edgeID}, neo4j.EagerResultTransformer)
	if err != nil {
		return memory.NewQueryError("delete edge", err)
	}
	return nil
}

// GetParentNodes returns one-hop upstream nodes.
func (g *Neo4jGraph) GetParentNodes(ctx context.Context, id string) ([]NodeMetadata, error) {
	return g.collectNodes(ctx, `
		MATCH (child:Thought {id: $id})<-[:CONNECTS]-(parent:Thought)
		RETURN parent AS t
	`, map[string]any{"id": id})
}

// GetChildNodes returns one-hop downstream nodes.
func (g *Neo4jGraph) GetChildNodes(ctx context.Context, id string) ([]NodeMetadata, error) {
	return g.collectNodes(ctx, `
		MATCH (t:Thought {id: $id})-[:CONNECTS]->(child:Thought)
		RETURN child AS t
	`, map[string]any{"id": id})
}

// GetNodesByGoal returns all nodes scoped to goalID.
func (g *Neo4jGraph) GetNodesByGoal(ctx context.Context, goalID string) ([]NodeMetadata, error) {
	return g.collectNodes(ctx, `
		MATCH (t:Thought {goalId: $goalId})
		RETURN t
	`, map[string]any{"goalId": goalID})
}

// FindCycles matches variable-length CONNECTS paths from startID back to
// itself. Cypher cannot take the bound as a parameter, so maxDepth is
// formatted into the pattern; it is validated as a plain integer first.
func (g *Neo4jGraph) FindCycles(ctx context.Context, startID string, maxDepth int) ([][]string, error) {
	if maxDepth < 2 {
		return [][]string{}, nil
	}
	query := fmt.Sprintf(`
		MATCH path = (start:Thought {id: $thoughtId})-[:CONNECTS*2..%d]->(start)
		WITH [node IN nodes(path) | node.id] AS cycle
		RETURN DISTINCT cycle AS cycle
	`, maxDepth)
	result, err := neo4j.ExecuteQuery(ctx, g.driver, query,
		map[string]any{"thoughtId": startID}, neo4j.EagerResultTransformer)
	if err != nil {
		return nil, memory.NewQueryError("find cycles", err)
	}

	cycles := make([][]string, 0, len(result.Records))
	for _, record := range result.Records {
		raw, ok := record.Get("cycle")
		if !ok {
			continue
		}
		list, ok := raw.([]any)
		if !ok {
			continue
		}
		cycle := make([]string, 0, len(list))
		for _, v := range list {
			if s, ok := v.(string); ok {
				cycle = append(cycle, s)
			}
		}
		// nodes(path) repeats the start at the end; the contract does not.
		if len(cycle) > 1 && cycle[0] == cycle[len(cycle)-1] {
			cycle = cycle[:len(cycle)-1]
		}
		cycles = append(cycles, cycle)
	}
	return cycles, nil
}

func (g *Neo4jGraph) collectNodes(ctx context.Context, query string, params map[string]any) ([]NodeMetadata, error) {
	result, err := neo4j.ExecuteQuery(ctx, g.driver, query, params, neo4j.EagerResultTransformer)
	if err != nil {
		return nil, memory.NewQueryError("collect nodes", err)
	}
	nodes := make([]NodeMetadata, 0, len(result.Records))
	for _, record := range result.Records {
		meta, err := recordToMetadata(record, "t")
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, meta)
	}
	return nodes, nil
}

func nodeProps(meta NodeMetadata) (map[string]any, error) {
	scores, err := json.Marshal(meta.EvaluationScores)
	if err != nil {
		return nil, fmt.Errorf("marshal evaluation scores: %w", err)
	}
	extra, err := json.Marshal(meta.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal node metadata: %w", err)
	}
	props := map[string]any{
		"content":          meta.Content,
		"activationScore":  meta.ActivationScore,
		"evaluationScores": string(scores),
		"metadata":         string(extra),
		"createdAt":        meta.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updatedAt":        meta.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if meta.GoalID != "" {
		props["goalId"] = meta.GoalID
		props["goalContribution"] = meta.GoalContribution
	}
	return props, nil
}

func recordToMetadata(record *neo4j.Record, key string) (NodeMetadata, error) {
	raw, ok := record.Get(key)
	if !ok {
		return NodeMetadata{}, memory.NewQueryError("node missing from record", nil)
	}
	node, ok := raw.(neo4j.Node)
	if !ok {
		return NodeMetadata{}, memory.NewQueryError("unexpected record value type", nil)
	}
	props := node.Props

	meta := NodeMetadata{
		ID:      stringProp(props, "id"),
		Content: stringProp(props, "content"),
		GoalID:  stringProp(props, "goalId"),
	}
	if v, ok := props["activationScore"].(float64); ok {
		meta.ActivationScore = v
	}
	if v, ok := props["goalContribution"].(float64); ok {
		meta.GoalContribution = v
	}
	if raw := stringProp(props, "evaluationScores"); raw != "" {
		_ = json.Unmarshal([]byte(raw), &meta.EvaluationScores)
	}
	if raw := stringProp(props, "metadata"); raw != "" {
		_ = json.Unmarshal([]byte(raw), &meta.Metadata)
	}
	meta.CreatedAt = timeProp(props, "createdAt")
	meta.UpdatedAt = timeProp(props, "updatedAt")
	return meta, nil
}

func stringProp(props map[string]any, key string) string {
	if v, ok := props[key].(string); ok {
		return v
	}
	return ""
}

func timeProp(props map[string]any, key string) time.Time {
	if v, ok := props[key].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

func verifyConnectivity(ctx context.Context, driver neo4j.DriverWithContext) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	return backoff.Retry(func() error {
		return driver.VerifyConnectivity(ctx)
	}, policy)
}
