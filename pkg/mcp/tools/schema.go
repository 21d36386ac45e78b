package tools

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/services"
)

type listTablesResult struct {
	Tables []string `json:"tables"`
	Count  int      `json:"count"`
}

// RegisterSchemaTools adds list_tables and get_table_ddl.
func RegisterSchemaTools(s *server.MCPServer, deps *Deps) {
	registerListTablesTool(s, deps)
	registerGetTableDDLTool(s, deps)
}

func registerListTablesTool(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		"list_tables",
		mcp.WithDescription("List the tables of the connected database. Use get_table_ddl for a table's columns."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tables, err := deps.Tables.Tables(ctx)
		if err != nil {
			return serviceError(err)
		}
		names := make([]string, 0, len(tables))
		for _, t := range tables {
			names = append(names, t.TableName)
		}
		return jsonResult(listTablesResult{Tables: names, Count: len(names)})
	})
}

func registerGetTableDDLTool(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		"get_table_ddl",
		mcp.WithDescription("Return the CREATE TABLE statement of one table. The name is matched without regard to case."),
		mcp.WithString(
			"table",
			mcp.Required(),
			mcp.Description("Table name (e.g., 'users')"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, err := req.RequireString("table")
		if err != nil || strings.TrimSpace(table) == "" {
			return NewErrorResult("invalid_parameters", "table is required"), nil
		}

		info, err := deps.Tables.TableDDL(ctx, strings.TrimSpace(table))
		if err != nil {
			return serviceError(err)
		}
		return jsonResult(services.TableInfo{TableName: info.TableName, TableSchema: info.TableSchema})
	})
}
