package repository

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/eggplantiny/ai/graph"
	"github.com/eggplantiny/ai/memory"
	"github.com/eggplantiny/ai/thought"
	"github.com/eggplantiny/ai/vector"
)

const (
	// DefaultDistanceThreshold bounds how dissimilar a neighbor may be
	// before relevance recall excludes it. The comparison is strict:
	// distance must be below the threshold.
	DefaultDistanceThreshold = 0.7

	// DefaultSimilarityLimit is how many neighbors StoreThoughtWithRelations
	// considers for similarity relations.
	DefaultSimilarityLimit = 5

	// DefaultMinStrength is the floor below which a similarity relation is
	// not worth recording.
	DefaultMinStrength = 0.3
)

// RecallOptions tunes the recall engine's relation policy.
type RecallOptions struct {
	// DistanceThreshold filters relevance recall; 0 means the default.
	DistanceThreshold float64
	// SimilarityRelations enables SIMILAR_TO relation creation on store.
	SimilarityRelations bool
	// SimilarityLimit caps how many neighbors are considered; 0 means the
	// default.
	SimilarityLimit int
	// MinStrength drops similarity relations weaker than this bound.
	MinStrength float64
}

// Recall is the session memory engine. Stored thoughts are dual-written to
// the thought log and the vector index; relations chain consecutive
// thoughts and, optionally, link semantically close ones.
type Recall struct {
	log      graph.ThoughtLog
	vector   vector.Index
	embedder memory.Embedder
	opts     RecallOptions
	logger   zerolog.Logger
}

// NewRecall wires a recall engine over the thought log, vector index, and
// embedder.
func NewRecall(log graph.ThoughtLog, v vector.Index, embedder memory.Embedder, opts RecallOptions, logger zerolog.Logger) *Recall {
	if opts.DistanceThreshold <= 0 {
		opts.DistanceThreshold = DefaultDistanceThreshold
	}
	if opts.SimilarityLimit <= 0 {
		opts.SimilarityLimit = DefaultSimilarityLimit
	}
	if opts.MinStrength <= 0 {
		opts.MinStrength = DefaultMinStrength
	}
	return &Recall{
		log:      log,
		vector:   v,
		embedder: embedder,
		opts:     opts,
		logger:   logger.With().Str("component", "recall").Logger(),
	}
}

// Initialize brings both backends up in parallel.
func (r *Recall) Initialize(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return r.log.Initialize(ctx) })
	eg.Go(func() error { return r.vector.Initialize(ctx) })
	if err := eg.Wait(); err != nil {
		return fmt.Errorf("initialize recall engine: %w", err)
	}
	return nil
}

// Close shuts both backends down.
func (r *Recall) Close(ctx context.Context) error {
	var eg errgroup.Group
	eg.Go(func() error { return r.log.Close(ctx) })
	eg.Go(func() error { return r.vector.Close() })
	return eg.Wait()
}

// StoreThoughtWithRelations embeds the content, writes the thought to both
// backends in parallel, and records relations: a NEXT edge from the
// previous thought when prevID is set, and SIMILAR_TO edges to close
// neighbors when the similarity policy is enabled. Any failure aborts the
// call with an error; nothing is rolled back.
func (r *Recall) StoreThoughtWithRelations(ctx context.Context, sessionID, content string, meta *thought.Metadata, prevID string) (thought.Thought, error) {
	t, err := thought.NewThought(sessionID, content)
	if err != nil {
		return thought.Thought{}, err
	}
	t.Metadata = meta

	embedding, err := r.embedder.Embed(ctx, content)
	if err != nil {
		return thought.Thought{}, fmt.Errorf("embed thought content: %w", err)
	}

	eg, gctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return r.log.StoreThought(gctx, t) })
	eg.Go(func() error { return r.vector.UpsertVector(gctx, t.ID, t.Content, embedding) })
	if err := eg.Wait(); err != nil {
		return thought.Thought{}, fmt.Errorf("store thought %s: %w", t.ID, err)
	}

	if prevID != "" {
		rel := thought.Relation{
			SourceID:     prevID,
			TargetID:     t.ID,
			RelationType: thought.RelationNext,
			Strength:     1.0,
		}
		if err := r.log.CreateRelation(ctx, rel); err != nil {
			return thought.Thought{}, fmt.Errorf("chain thought %s after %s: %w", t.ID, prevID, err)
		}
	}

	if r.opts.SimilarityRelations {
		if err := r.linkSimilar(ctx, t.ID, prevID, embedding); err != nil {
			return thought.Thought{}, err
		}
	}

	r.logger.Debug().Str("id", t.ID).Str("session_id", sessionID).Msg("Stored thought with relations")
	return t, nil
}

// linkSimilar records SIMILAR_TO relations from the new thought to its
// nearest neighbors. Strength is derived from distance, so near-duplicates
// link strongly and marginal matches are dropped at MinStrength.
func (r *Recall) linkSimilar(ctx context.Context, id, prevID string, embedding []float32) error {
	// Fetch two extra so excluding self and prev still leaves a full set.
	hits, err := r.vector.FindSimilar(ctx, embedding, r.opts.SimilarityLimit+2)
	if err != nil {
		return fmt.Errorf("find similar thoughts for %s: %w", id, err)
	}

	linked := 0
	for _, hit := range hits {
		if linked >= r.opts.SimilarityLimit {
			break
		}
		if hit.ID == id || hit.ID == prevID {
			continue
		}
		strength := memory.DistanceToStrength(hit.Distance)
		if strength < r.opts.MinStrength {
			continue
		}
		rel := thought.Relation{
			SourceID:     id,
			TargetID:     hit.ID,
			RelationType: thought.RelationSimilarTo,
			Strength:     strength,
		}
		if err := r.log.CreateRelation(ctx, rel); err != nil {
			return fmt.Errorf("link similar thought %s -> %s: %w", id, hit.ID, err)
		}
		linked++
	}
	return nil
}

// FindRelevantMemories embeds the query and returns stored thoughts whose
// distance is strictly below the threshold, in similarity order. Backend
// failures surface as errors; an empty result means nothing was close
// enough, never that something went wrong.
func (r *Recall) FindRelevantMemories(ctx context.Context, query string, limit int) ([]thought.Thought, error) {
	if limit <= 0 {
		limit = DefaultSimilarityLimit
	}

	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed recall query: %w", err)
	}

	hits, err := r.vector.FindSimilar(ctx, embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("search relevant memories: %w", err)
	}

	thoughts := make([]thought.Thought, 0, len(hits))
	for _, hit := range hits {
		if hit.Distance >= r.opts.DistanceThreshold {
			continue
		}
		t, found, err := r.log.GetThoughtByID(ctx, hit.ID)
		if err != nil {
			return nil, fmt.Errorf("hydrate memory %s: %w", hit.ID, err)
		}
		if !found {
			r.logger.Warn().Str("id", hit.ID).Msg("Vector hit missing from thought log, skipping")
			continue
		}
		thoughts = append(thoughts, t)
	}
	return thoughts, nil
}

// GetRecentThoughts returns the session's latest thoughts, newest first.
func (r *Recall) GetRecentThoughts(ctx context.Context, sessionID string, limit int) ([]thought.Thought, error) {
	return r.log.GetRecentThoughts(ctx, sessionID, limit)
}
