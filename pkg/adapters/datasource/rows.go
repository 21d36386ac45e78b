package datasource

import (
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/models"
)

const (
	DateTimeLayout = "2006-01-02 15:04:05"
	DateLayout     = "2006-01-02"
)

// ScanRows reads every row of a database/sql result into maps keyed by
// column name, normalizing values with NormalizeValue. An empty result is
// an empty, non-nil slice.
func ScanRows(rows *sql.Rows) (*QueryExecutionResult, error) {
	return ScanRowsWith(rows, NormalizeValue)
}

// ScanRowsWith is ScanRows with a dialect-specific value normalizer.
func ScanRowsWith(rows *sql.Rows, normalize func(v any, dbType string) any) (*QueryExecutionResult, error) {
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read column types: %w", err)
	}

	columns := make([]ColumnInfo, len(colTypes))
	for i, ct := range colTypes {
		columns[i] = ColumnInfo{Name: ct.Name(), Type: strings.ToUpper(ct.DatabaseTypeName())}
	}
	DedupeColumnNames(columns)

	resultRows := make([]models.Row, 0)
	values := make([]any, len(columns))
	pointers := make([]any, len(columns))
	for i := range values {
		pointers[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(models.Row, len(columns))
		for i, col := range columns {
			row[col.Name] = normalize(values[i], col.Type)
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return &QueryExecutionResult{
		Columns:  columns,
		Rows:     resultRows,
		RowCount: len(resultRows),
	}, nil
}

// DedupeColumnNames renames repeated column names in place so each row key
// is unique: a second "id" becomes "id_2", a third "id_3".
func DedupeColumnNames(columns []ColumnInfo) {
	taken := make(map[string]bool, len(columns))
	for _, c := range columns {
		taken[c.Name] = true
	}
	seen := make(map[string]int, len(columns))
	for i, c := range columns {
		seen[c.Name]++
		if seen[c.Name] == 1 {
			continue
		}
		n := seen[c.Name]
		name := fmt.Sprintf("%s_%d", c.Name, n)
		for taken[name] {
			n++
			name = fmt.Sprintf("%s_%d", c.Name, n)
		}
		seen[c.Name] = n
		taken[name] = true
		columns[i].Name = name
	}
}

// NormalizeValue converts driver values into the JSON-friendly forms the
// renderer expects: timestamps become "2006-01-02 15:04:05" (date-only for
// DATE columns), byte slices become strings, and byte slices from numeric
// columns become numbers.
func NormalizeValue(v any, dbType string) any {
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		if IsDateType(dbType) {
			return val.Format(DateLayout)
		}
		return val.Format(DateTimeLayout)
	case []byte:
		s := string(val)
		if IsNumericType(dbType) {
			if n, ok := parseNumber(s); ok {
				return n
			}
		}
		return s
	case int:
		return int64(val)
	case int32:
		return int64(val)
	case int16:
		return int64(val)
	case int8:
		return int64(val)
	case uint8:
		return int64(val)
	case uint16:
		return int64(val)
	case uint32:
		return int64(val)
	case uint64:
		if val > math.MaxInt64 {
			return val
		}
		return int64(val)
	case float32:
		return float64(val)
	default:
		return v
	}
}

func parseNumber(s string) (any, bool) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, true
	}
	if u, err := strconv.ParseUint(s, 10, 64); err == nil {
		return u, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, true
	}
	return nil, false
}

// IsDateType reports whether dbType holds dates without a time part.
func IsDateType(dbType string) bool {
	return strings.EqualFold(dbType, "DATE")
}

var numericTypes = map[string]bool{
	"TINYINT": true, "SMALLINT": true, "MEDIUMINT": true, "INT": true, "INTEGER": true, "BIGINT": true,
	"UNSIGNED TINYINT": true, "UNSIGNED SMALLINT": true, "UNSIGNED MEDIUMINT": true,
	"UNSIGNED INT": true, "UNSIGNED BIGINT": true,
	"DECIMAL": true, "NUMERIC": true, "FLOAT": true, "DOUBLE": true, "REAL": true,
	"MONEY": true, "SMALLMONEY": true,
	"INT2": true, "INT4": true, "INT8": true, "FLOAT4": true, "FLOAT8": true,
}

// IsNumericType reports whether dbType is an integer or decimal type.
func IsNumericType(dbType string) bool {
	return numericTypes[strings.ToUpper(dbType)]
}
