package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/models"
)

type trainingDataResult struct {
	TrainingData []models.TrainingItem `json:"training_data"`
	Count        int                   `json:"count"`
}

// RegisterTrainingTool adds the read-only training_data tool.
func RegisterTrainingTool(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		"training_data",
		mcp.WithDescription("List the DDL, documentation and question/SQL examples the SQL generator was trained on."),
		mcp.WithString(
			"type",
			mcp.Description("Optional - only return items of this type"),
			mcp.Enum(string(models.TrainingDDL), string(models.TrainingDocumentation), string(models.TrainingSQL)),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		items, err := deps.Training.TrainingData(ctx)
		if err != nil {
			return serviceError(err)
		}

		filter := models.TrainingDataType(req.GetString("type", ""))
		out := make([]models.TrainingItem, 0, len(items))
		for _, item := range items {
			if filter == "" || item.Type == filter {
				out = append(out, item)
			}
		}
		return jsonResult(trainingDataResult{TrainingData: out, Count: len(out)})
	})
}
