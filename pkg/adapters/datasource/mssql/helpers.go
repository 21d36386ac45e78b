package mssql

import (
	"strconv"
	"strings"

	mssqldb "github.com/microsoft/go-mssqldb"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/adapters/datasource"
)

const defaultSchema = "dbo"

// parseSchemaTable parses a table name that may include schema.
// SQL Server format: [schema].[table] or schema.table
// Returns (schema, table). Defaults to "dbo" schema if not specified.
func parseSchemaTable(tableName string) (string, string) {
	cleaned := strings.ReplaceAll(tableName, "[", "")
	cleaned = strings.ReplaceAll(cleaned, "]", "")

	if schema, table, ok := strings.Cut(cleaned, "."); ok {
		return schema, table
	}
	return defaultSchema, cleaned
}

// quoteName brackets an identifier the way QUOTENAME() does, escaping ] as ]].
func quoteName(identifier string) string {
	return "[" + strings.ReplaceAll(identifier, "]", "]]") + "]"
}

// formatColumnType renders INFORMATION_SCHEMA type details as DDL text,
// e.g. nvarchar(255), nvarchar(max), decimal(10,2).
func formatColumnType(dataType string, maxLength, precision, scale *int64) string {
	switch strings.ToLower(dataType) {
	case "char", "nchar", "varchar", "nvarchar", "binary", "varbinary":
		if maxLength == nil {
			return dataType
		}
		if *maxLength == -1 {
			return dataType + "(max)"
		}
		return dataType + "(" + itoa(*maxLength) + ")"
	case "decimal", "numeric":
		if precision == nil || scale == nil {
			return dataType
		}
		return dataType + "(" + itoa(*precision) + "," + itoa(*scale) + ")"
	default:
		return dataType
	}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

// normalizeValue renders GUIDs in their canonical form before the shared
// normalization turns remaining byte slices into strings.
func normalizeValue(v any, dbType string) any {
	if b, ok := v.([]byte); ok && strings.EqualFold(dbType, "UNIQUEIDENTIFIER") && len(b) == 16 {
		var id mssqldb.UniqueIdentifier
		if err := id.Scan(b); err == nil {
			return id.String()
		}
	}
	return datasource.NormalizeValue(v, dbType)
}
