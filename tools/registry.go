// Package tools exposes the recall engine to agents: a handler registry
// for direct dispatch, and an MCP server surface for external clients.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
)

// DefaultSessionID scopes tool calls that do not carry a session.
const DefaultSessionID = "default"

// ToolHandler handles a tool call for a specific session.
type ToolHandler func(ctx context.Context, sessionID string, args json.RawMessage) (any, error)

// Registry maps tool names to handlers.
type Registry struct {
	handlers map[string]ToolHandler
	logger   zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	logger = logger.With().Str("component", "tool_registry").Logger()
	return &Registry{
		handlers: make(map[string]ToolHandler),
		logger:   logger,
	}
}

// Register registers a handler for a tool name.
func (r *Registry) Register(name string, h ToolHandler) {
	r.logger.Debug().Str("name", name).Msg("Registering tool handler")
	r.handlers[name] = h
}

// Names returns the registered tool names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}

// Handle dispatches a tool call.
func (r *Registry) Handle(ctx context.Context, toolName, sessionID string, argsStr []byte) (any, error) {
	if sessionID == "" {
		sessionID = DefaultSessionID
	}
	h, ok := r.handlers[toolName]
	if !ok {
		r.logger.Error().Str("tool", toolName).Msg("Unknown tool requested")
		return nil, fmt.Errorf("unknown tool: %s", toolName)
	}

	r.logger.Info().Str("tool", toolName).Str("session_id", sessionID).Msg("Executing tool")
	result, err := h(ctx, sessionID, json.RawMessage(argsStr))
	if err != nil {
		r.logger.Warn().Str("tool", toolName).Str("session_id", sessionID).Err(err).Msg("Tool returned error")
		return nil, err
	}
	r.logger.Debug().Str("tool", toolName).Str("session_id", sessionID).Msg("Tool returned result")
	return result, nil
}
