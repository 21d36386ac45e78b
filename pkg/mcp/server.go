// Package mcp exposes the chat service to MCP clients.
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

const instructions = `Ask questions about the connected relational database in natural language.
Use ask_database for questions; it generates SQL, runs it and returns rows with an explanation.
Pass the returned conversation_id back to continue a conversation with follow-up questions.
Use list_tables and get_table_ddl to inspect the schema, and training_data to see what the SQL generator was trained on.`

// Server wraps the mcp-go MCPServer.
type Server struct {
	mcp    *server.MCPServer
	logger *zap.Logger
}

// NewServer creates a new MCP server instance. A non-nil recorder is
// attached as the server's tool-call hooks.
func NewServer(name, version string, recorder *CallRecorder, logger *zap.Logger) *Server {
	opts := []server.ServerOption{
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	}
	if recorder != nil {
		opts = append(opts, server.WithHooks(recorder.Hooks()))
	}

	return &Server{
		mcp:    server.NewMCPServer(name, version, opts...),
		logger: logger,
	}
}

// MCP returns the underlying MCPServer for tool registration.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// NewStreamableHTTPServer creates an HTTP transport server wrapping this MCP server.
// The HTTP mux handles routing to /mcp, so no endpoint path is configured here.
func (s *Server) NewStreamableHTTPServer() *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(
		s.mcp,
		server.WithStateLess(true),
	)
}

// RegisterTool adds a single tool outside the standard set.
func (s *Server) RegisterTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.mcp.AddTool(tool, handler)
}
