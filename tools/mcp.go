package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
)

// NewMCPServer exposes the registry's memory tools over MCP so external
// agent clients can use the recall engine. Handlers dispatch through the
// registry, so the formatted outputs match direct tool calls exactly.
func NewMCPServer(registry *Registry, logger zerolog.Logger) *server.MCPServer {
	logger = logger.With().Str("component", "mcp_server").Logger()

	srv := server.NewMCPServer(
		"memory",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	srv.AddTool(mcp.NewTool(
		"memory_recent",
		mcp.WithDescription("Get recent thoughts from memory"),
		mcp.WithString("session_id",
			mcp.Description("Session to read; defaults to the shared session"),
		),
	), dispatch(registry, logger, "memory_recent"))

	srv.AddTool(mcp.NewTool(
		"memory_retrieve",
		mcp.WithDescription("Retrieve relevant memories for a query"),
		mcp.WithString("query",
			mcp.Description("Query to find relevant memories"),
			mcp.Required(),
		),
		mcp.WithString("session_id",
			mcp.Description("Session to search; defaults to the shared session"),
		),
	), dispatch(registry, logger, "memory_retrieve"))

	srv.AddTool(mcp.NewTool(
		"memory_store",
		mcp.WithDescription("Store a memory, linking it to the previous thought when given"),
		mcp.WithString("content",
			mcp.Description("Content of the memory"),
			mcp.Required(),
		),
		mcp.WithObject("metadata",
			mcp.Description("Optional metadata for the memory"),
		),
		mcp.WithString("previous_thought_id",
			mcp.Description("ID of the previous thought"),
		),
		mcp.WithString("session_id",
			mcp.Description("Session to store into; defaults to the shared session"),
		),
	), dispatch(registry, logger, "memory_store"))

	logger.Info().Msg("MCP server configured with memory tools")
	return srv
}

// ServeStdio blocks serving the MCP protocol over stdin/stdout.
func ServeStdio(srv *server.MCPServer) error {
	return server.ServeStdio(srv)
}

// dispatch adapts an MCP call into a registry tool call: the session id is
// peeled off the arguments, the rest is re-encoded as the handler payload.
func dispatch(registry *Registry, logger zerolog.Logger, toolName string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		sessionID := DefaultSessionID
		if v, ok := args["session_id"].(string); ok && v != "" {
			sessionID = v
		}
		delete(args, "session_id")

		payload, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("encode tool arguments: %w", err)
		}

		result, err := registry.Handle(ctx, toolName, sessionID, payload)
		if err != nil {
			logger.Warn().Str("tool", toolName).Err(err).Msg("MCP tool call failed")
			return mcp.NewToolResultError(err.Error()), nil
		}

		text, ok := result.(string)
		if !ok {
			encoded, err := json.Marshal(result)
			if err != nil {
				return nil, fmt.Errorf("encode tool result: %w", err)
			}
			text = string(encoded)
		}
		return mcp.NewToolResultText(text), nil
	}
}
