package models

import "strings"

// SchemaSnapshot is the live schema view built for a single request. It is never cached.
type SchemaSnapshot struct {
	// TableNames lists every table in database order.
	TableNames []string
	// RelevantTables is the subset whose DDL goes into the generation prompt.
	RelevantTables []string
	// DDLByTable holds trimmed DDL for RelevantTables. A present but empty
	// entry means the DDL could not be read; tables whose DDL had nothing
	// worth keeping are absent.
	DDLByTable map[string]string
}

// HasTable reports whether name exists, ignoring case.
func (s *SchemaSnapshot) HasTable(name string) bool {
	for _, t := range s.TableNames {
		if strings.EqualFold(t, name) {
			return true
		}
	}
	return false
}
