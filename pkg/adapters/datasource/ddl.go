package datasource

import (
	"strings"
)

// BuildCreateTable renders a CREATE TABLE statement from column metadata for
// dialects that cannot return the original DDL. One column per line, so the
// schema resolver's line-based trimming keeps working.
func BuildCreateTable(table string, columns []Column, quote func(string) string) string {
	var primary []string
	for _, col := range columns {
		if col.IsPrimary {
			primary = append(primary, quote(col.Name))
		}
	}

	lines := make([]string, 0, len(columns)+1)
	for _, col := range columns {
		line := "  " + quote(col.Name) + " " + col.DataType
		if !col.IsNullable {
			line += " NOT NULL"
		}
		if col.Default != nil {
			line += " DEFAULT " + *col.Default
		}
		lines = append(lines, line)
	}
	if len(primary) > 0 {
		lines = append(lines, "  PRIMARY KEY ("+strings.Join(primary, ", ")+")")
	}

	return "CREATE TABLE " + quote(table) + " (\n" + strings.Join(lines, ",\n") + "\n)"
}
