package postgres

import (
	"math"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/adapters/datasource"
)

// normalizeValue converts pgx-decoded values that JSON and the renderer
// cannot use directly, then applies the shared normalization.
func normalizeValue(v any, typeName string) any {
	switch val := v.(type) {
	case pgtype.Numeric:
		f, err := val.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		if val.Exp >= 0 && f.Float64 == math.Trunc(f.Float64) && math.Abs(f.Float64) < math.MaxInt64 {
			return int64(f.Float64)
		}
		return f.Float64
	case [16]byte:
		return uuid.UUID(val).String()
	case pgtype.Interval:
		iv, err := val.Value()
		if err != nil {
			return nil
		}
		return iv
	default:
		return datasource.NormalizeValue(v, typeName)
	}
}

// pgTypeNameFromOID maps common type OIDs to names.
func pgTypeNameFromOID(oid uint32) string {
	switch oid {
	case pgtype.BoolOID:
		return "BOOL"
	case pgtype.ByteaOID:
		return "BYTEA"
	case pgtype.Int8OID:
		return "INT8"
	case pgtype.Int2OID:
		return "INT2"
	case pgtype.Int4OID:
		return "INT4"
	case pgtype.TextOID:
		return "TEXT"
	case pgtype.JSONOID:
		return "JSON"
	case pgtype.Float4OID:
		return "FLOAT4"
	case pgtype.Float8OID:
		return "FLOAT8"
	case pgtype.BPCharOID:
		return "BPCHAR"
	case pgtype.VarcharOID:
		return "VARCHAR"
	case pgtype.DateOID:
		return "DATE"
	case pgtype.TimeOID:
		return "TIME"
	case pgtype.TimestampOID:
		return "TIMESTAMP"
	case pgtype.TimestamptzOID:
		return "TIMESTAMPTZ"
	case pgtype.IntervalOID:
		return "INTERVAL"
	case pgtype.NumericOID:
		return "NUMERIC"
	case pgtype.UUIDOID:
		return "UUID"
	case pgtype.JSONBOID:
		return "JSONB"
	default:
		return "UNKNOWN"
	}
}
