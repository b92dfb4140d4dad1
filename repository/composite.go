// Package repository composes the vector and graph backends into the
// thought repositories the agent works against: Composite for the dual
// vector+graph node store, and Recall for session memory with relation
// tracking and relevance search.
package repository

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/eggplantiny/ai/graph"
	"github.com/eggplantiny/ai/memory"
	"github.com/eggplantiny/ai/thought"
	"github.com/eggplantiny/ai/vector"
)

// Composite keeps every thought in two backends at once: embeddings in the
// vector index for similarity search, structure in the graph for traversal.
// Writes go to the graph first; a failure on the second leg surfaces as a
// partial-write error naming the side that committed.
type Composite struct {
	graph  graph.Repository
	vector vector.Index
	logger zerolog.Logger
}

// NewComposite wires a composite repository over the two backends.
func NewComposite(g graph.Repository, v vector.Index, logger zerolog.Logger) *Composite {
	return &Composite{
		graph:  g,
		vector: v,
		logger: logger.With().Str("component", "composite_repository").Logger(),
	}
}

// Initialize brings both backends up in parallel and fails on the first
// error.
func (c *Composite) Initialize(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return c.graph.Initialize(ctx) })
	eg.Go(func() error { return c.vector.Initialize(ctx) })
	if err := eg.Wait(); err != nil {
		return fmt.Errorf("initialize composite repository: %w", err)
	}
	c.logger.Info().Msg("Composite repository initialized")
	return nil
}

// Close shuts both backends down, reporting the first failure.
func (c *Composite) Close(ctx context.Context) error {
	var eg errgroup.Group
	eg.Go(func() error { return c.graph.Close(ctx) })
	eg.Go(func() error { return c.vector.Close() })
	return eg.Wait()
}

// SaveThought validates the node and writes it to both backends, graph
// first. When the graph write succeeds but the vector write fails the
// returned error carries the committed side so callers can reconcile.
func (c *Composite) SaveThought(ctx context.Context, node thought.Node) error {
	if err := node.Validate(); err != nil {
		return err
	}

	if err := c.graph.CreateNode(ctx, node.ID, nodeToMetadata(node)); err != nil {
		c.logger.Error().Err(err).Str("id", node.ID).Msg("Graph write failed")
		return memory.NewPartialWriteError("graph write failed", memory.SideNone, err)
	}
	if err := c.vector.UpsertVector(ctx, node.ID, node.Content, node.VectorEmbedding); err != nil {
		c.logger.Error().Err(err).Str("id", node.ID).Msg("Vector write failed after graph commit")
		return memory.NewPartialWriteError("vector write failed", memory.SideGraph, err)
	}

	c.logger.Debug().Str("id", node.ID).Msg("Saved thought to both backends")
	return nil
}

// GetThoughtByID reads the node from the graph and hydrates its parent and
// child id lists in parallel. The stored embedding is not read back; the
// returned node carries an empty VectorEmbedding.
func (c *Composite) GetThoughtByID(ctx context.Context, id string) (thought.Node, bool, error) {
	meta, found, err := c.graph.GetNode(ctx, id)
	if err != nil {
		return thought.Node{}, false, err
	}
	if !found {
		return thought.Node{}, false, nil
	}

	node := metadataToNode(meta)

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		parents, err := c.graph.GetParentNodes(ctx, id)
		if err != nil {
			return err
		}
		node.ParentIDs = metadataIDs(parents)
		return nil
	})
	eg.Go(func() error {
		children, err := c.graph.GetChildNodes(ctx, id)
		if err != nil {
			return err
		}
		node.ChildIDs = metadataIDs(children)
		return nil
	})
	if err := eg.Wait(); err != nil {
		return thought.Node{}, false, err
	}
	return node, true, nil
}

// FindSimilarThoughts queries the vector index and hydrates each hit from
// the graph. Hits whose node has since vanished from the graph are dropped
// rather than reported as errors.
func (c *Composite) FindSimilarThoughts(ctx context.Context, embedding []float32, limit int) ([]thought.Node, error) {
	hits, err := c.vector.FindSimilar(ctx, embedding, limit)
	if err != nil {
		return nil, err
	}

	nodes := make([]thought.Node, 0, len(hits))
	for _, hit := range hits {
		meta, found, err := c.graph.GetNode(ctx, hit.ID)
		if err != nil {
			return nil, err
		}
		if !found {
			c.logger.Warn().Str("id", hit.ID).Msg("Vector hit missing from graph, skipping")
			continue
		}
		nodes = append(nodes, metadataToNode(meta))
	}
	return nodes, nil
}

// GetThoughtsByGoal returns every node scoped to the goal.
func (c *Composite) GetThoughtsByGoal(ctx context.Context, goalID string) ([]thought.Node, error) {
	metas, err := c.graph.GetNodesByGoal(ctx, goalID)
	if err != nil {
		return nil, err
	}
	return lo.Map(metas, func(m graph.NodeMetadata, _ int) thought.Node {
		return metadataToNode(m)
	}), nil
}

// SaveEdge records a typed weighted connection between two stored nodes.
func (c *Composite) SaveEdge(ctx context.Context, edge thought.Edge) error {
	if err := edge.Validate(); err != nil {
		return err
	}
	return c.graph.CreateEdge(ctx, edge)
}

// DeleteThought removes the node from both backends, vector first so a
// graph failure leaves no orphaned embedding.
func (c *Composite) DeleteThought(ctx context.Context, id string) error {
	if err := c.vector.DeleteVector(ctx, id); err != nil {
		return memory.NewPartialWriteError("vector delete failed", memory.SideNone, err)
	}
	if err := c.graph.DeleteNode(ctx, id); err != nil {
		return memory.NewPartialWriteError("graph delete failed", memory.SideVector, err)
	}
	return nil
}

// FindCycles reports reasoning loops reachable from startID.
func (c *Composite) FindCycles(ctx context.Context, startID string, maxDepth int) ([][]string, error) {
	return c.graph.FindCycles(ctx, startID, maxDepth)
}

func nodeToMetadata(node thought.Node) graph.NodeMetadata {
	return graph.NodeMetadata{
		ID:               node.ID,
		Content:          node.Content,
		ActivationScore:  node.ActivationScore,
		EvaluationScores: node.EvaluationScores,
		GoalID:           node.GoalID,
		GoalContribution: node.GoalContribution,
		Metadata:         node.Metadata,
		CreatedAt:        node.CreatedAt,
		UpdatedAt:        node.UpdatedAt,
	}
}

func metadataToNode(meta graph.NodeMetadata) thought.Node {
	return thought.Node{
		ID:               meta.ID,
		Content:          meta.Content,
		ActivationScore:  meta.ActivationScore,
		EvaluationScores: meta.EvaluationScores,
		GoalID:           meta.GoalID,
		GoalContribution: meta.GoalContribution,
		Metadata:         meta.Metadata,
		CreatedAt:        meta.CreatedAt,
		UpdatedAt:        meta.UpdatedAt,
	}
}

func metadataIDs(metas []graph.NodeMetadata) []string {
	return lo.Map(metas, func(m graph.NodeMetadata, _ int) string { return m.ID })
}
