package mcp

import (
	"context"
	"sync"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/metrics"
)

// Tool call outcomes.
const (
	OutcomeSuccess   = "success"
	OutcomeToolError = "tool_error"
	OutcomeFailure   = "failure"
)

// CallRecorder times MCP tool calls and records their outcome.
type CallRecorder struct {
	metrics *metrics.Metrics
	logger  *zap.Logger

	// keyed by JSON-RPC request id
	startTimes sync.Map
}

// NewCallRecorder creates a recorder. m may be nil.
func NewCallRecorder(m *metrics.Metrics, logger *zap.Logger) *CallRecorder {
	return &CallRecorder{
		metrics: m,
		logger:  logger.Named("mcp-calls"),
	}
}

// Hooks returns mcp-go hooks that feed the recorder.
func (c *CallRecorder) Hooks() *server.Hooks {
	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(c.beforeCallTool)
	hooks.AddAfterCallTool(c.afterCallTool)
	hooks.AddOnError(c.onError)
	return hooks
}

func (c *CallRecorder) beforeCallTool(_ context.Context, id any, _ *mcplib.CallToolRequest) {
	c.startTimes.Store(id, time.Now())
}

func (c *CallRecorder) afterCallTool(_ context.Context, id any, req *mcplib.CallToolRequest, result *mcplib.CallToolResult) {
	outcome := OutcomeSuccess
	if result != nil && result.IsError {
		outcome = OutcomeToolError
	}
	c.record(id, req.Params.Name, outcome, nil)
}

func (c *CallRecorder) onError(_ context.Context, id any, method mcplib.MCPMethod, message any, err error) {
	if method != mcplib.MethodToolsCall {
		return
	}
	req, ok := message.(*mcplib.CallToolRequest)
	if !ok {
		return
	}
	c.record(id, req.Params.Name, OutcomeFailure, err)
}

func (c *CallRecorder) record(id any, tool, outcome string, err error) {
	start := time.Now()
	if v, ok := c.startTimes.LoadAndDelete(id); ok {
		start = v.(time.Time)
	}
	d := time.Since(start)

	c.metrics.ObserveMCPTool(tool, outcome, d)

	fields := []zap.Field{
		zap.String("tool", tool),
		zap.String("outcome", outcome),
		zap.Duration("duration", d),
	}
	if err != nil {
		c.logger.Warn("MCP tool call failed", append(fields, zap.Error(err))...)
		return
	}
	c.logger.Debug("MCP tool call", fields...)
}
