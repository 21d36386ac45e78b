package tools

import (
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/services"
)

// Deps holds the services the tools call.
type Deps struct {
	Chat     services.ChatService
	Tables   services.TableService
	Training services.TrainingService
	Health   services.HealthService
	Version  string
	Logger   *zap.Logger
}

// RegisterAll adds every tool to s.
func RegisterAll(s *server.MCPServer, deps *Deps) {
	RegisterAskTool(s, deps)
	RegisterSchemaTools(s, deps)
	RegisterTrainingTool(s, deps)
	RegisterHealthTool(s, deps)
}
