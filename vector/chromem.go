package vector

import (
	"context"
	"sort"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"github.com/rs/zerolog"

	"github.com/eggplantiny/ai/memory"
)

// ChromemIndex backs the Index contract with chromem-go, an embedded pure-Go
// vector database. With a non-empty path the collection is persisted to disk;
// otherwise it lives in process memory.
type ChromemIndex struct {
	mu             sync.RWMutex
	path           string
	collectionName string
	db             *chromem.DB
	collection     *chromem.Collection
	logger         zerolog.Logger
}

// NewChromemIndex creates an index over the named collection, persisted under
// path when path is non-empty.
func NewChromemIndex(path, collectionName string, logger zerolog.Logger) *ChromemIndex {
	logger = logger.With().Str("component", "vector_index").Str("collection", collectionName).Logger()
	if collectionName == "" {
		collectionName = "thoughts"
	}
	return &ChromemIndex{
		path:           path,
		collectionName: collectionName,
		logger:         logger,
	}
}

// Initialize opens the database and creates the collection if needed.
func (x *ChromemIndex) Initialize(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	var (
		db  *chromem.DB
		err error
	)
	if x.path != "" {
		db, err = chromem.NewPersistentDB(x.path, false)
		if err != nil {
			x.logger.Error().Err(err).Str("path", x.path).Msg("Failed to open vector database")
			return newUnavailable("open vector database", err)
		}
	} else {
		db = chromem.NewDB()
	}

	// Embeddings are always supplied by the caller, so no embedding func.
	collection, err := db.GetOrCreateCollection(x.collectionName, nil, nil)
	if err != nil {
		x.logger.Error().Err(err).Msg("Failed to initialize vector collection")
		return newUnavailable("initialize vector collection", err)
	}
	x.db = db
	x.collection = collection
	x.logger.Info().Msg("Vector index initialized")
	return nil
}

// UpsertVector inserts or replaces the embedding stored under id.
func (x *ChromemIndex) UpsertVector(ctx context.Context, id, content string, vec []float32) error {
	col, err := x.ready()
	if err != nil {
		return err
	}
	// chromem's AddDocument rejects duplicate ids, so an upsert is a delete
	// followed by an add.
	if err := col.Delete(ctx, nil, nil, id); err != nil {
		x.logger.Error().Err(err).Str("id", id).Msg("Failed to clear existing vector")
		return newUnavailable("upsert vector", err)
	}
	doc := chromem.Document{
		ID:        id,
		Content:   content,
		Embedding: vec,
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		x.logger.Error().Err(err).Str("id", id).Msg("Failed to upsert vector")
		return newUnavailable("upsert vector", err)
	}
	x.logger.Debug().Str("id", id).Int("dims", len(vec)).Msg("Vector upserted")
	return nil
}

// DeleteVector removes the embedding stored under id. Deleting an unknown id
// is a no-op.
func (x *ChromemIndex) DeleteVector(ctx context.Context, id string) error {
	col, err := x.ready()
	if err != nil {
		return err
	}
	if err := col.Delete(ctx, nil, nil, id); err != nil {
		x.logger.Error().Err(err).Str("id", id).Msg("Failed to delete vector")
		return newUnavailable("delete vector", err)
	}
	return nil
}

// FindSimilar returns up to limit nearest neighbors ordered ascending by
// distance. An empty index yields an empty result.
func (x *ChromemIndex) FindSimilar(ctx context.Context, vec []float32, limit int) ([]Hit, error) {
	col, err := x.ready()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}
	// chromem rejects nResults greater than the collection size.
	if count := col.Count(); count < limit {
		if count == 0 {
			return []Hit{}, nil
		}
		limit = count
	}

	results, err := col.QueryEmbedding(ctx, vec, limit, nil, nil)
	if err != nil {
		x.logger.Error().Err(err).Msg("Vector query failed")
		return nil, newUnavailable("query vectors", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, res := range results {
		hits = append(hits, Hit{ID: res.ID, Distance: 1 - float64(res.Similarity)})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	x.logger.Debug().Int("hits", len(hits)).Msg("Similarity query completed")
	return hits, nil
}

// Close releases the collection handle. chromem keeps no open connections,
// so this only marks the index unusable.
func (x *ChromemIndex) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.db = nil
	x.collection = nil
	return nil
}

func (x *ChromemIndex) ready() (*chromem.Collection, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.collection == nil {
		return nil, newUnavailable("vector index not initialized", nil)
	}
	return x.collection, nil
}

func newUnavailable(message string, err error) error {
	return memory.NewBackendUnavailableError(message, err)
}
