package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// RecallFactory builds a recall engine for one session. The registry
// initializes the engine after construction.
type RecallFactory func(sessionID string) (*Recall, error)

// Registry hands out one recall engine per session, constructing lazily on
// first use. It replaces keeping a process-wide singleton: sessions get
// isolated engines without callers threading construction through.
type Registry struct {
	mu      sync.Mutex
	factory RecallFactory
	engines map[string]*Recall
	logger  zerolog.Logger
}

// NewRegistry wires a registry around the factory.
func NewRegistry(factory RecallFactory, logger zerolog.Logger) *Registry {
	return &Registry{
		factory: factory,
		engines: make(map[string]*Recall),
		logger:  logger.With().Str("component", "recall_registry").Logger(),
	}
}

// Get returns the session's engine, constructing and initializing it on
// first use. Construction happens under the lock so concurrent callers for
// the same session share one engine.
func (r *Registry) Get(ctx context.Context, sessionID string) (*Recall, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if engine, ok := r.engines[sessionID]; ok {
		return engine, nil
	}

	engine, err := r.factory(sessionID)
	if err != nil {
		return nil, fmt.Errorf("build recall engine for session %s: %w", sessionID, err)
	}
	if err := engine.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("initialize recall engine for session %s: %w", sessionID, err)
	}

	r.engines[sessionID] = engine
	r.logger.Debug().Str("session_id", sessionID).Msg("Created recall engine")
	return engine, nil
}

// Close shuts every engine down, returning the first failure after
// attempting all of them.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for sessionID, engine := range r.engines {
		if err := engine.Close(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close recall engine for session %s: %w", sessionID, err)
		}
		delete(r.engines, sessionID)
	}
	return firstErr
}
