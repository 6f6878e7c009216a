package queryengine

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Quote double-quotes a DuckDB identifier, doubling any embedded quote.
// This is the ONLY mechanism by which a column name may appear inside a
// generated SQL string; values are always bound as parameters (§4.1).
func Quote(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

// RequireColumn resolves name against reg, returning an InvalidRequest
// EngineError (UNKNOWN_COLUMN) if the dataset has no such column.
func RequireColumn(reg *ColumnRegistry, name string) (ColumnDescriptor, error) {
	col, ok := reg.Lookup(name)
	if !ok {
		return ColumnDescriptor{}, NewInvalidRequestError(ErrCodeUnknownColumn,
			fmt.Sprintf("unknown column %q", name)).WithDetail("column", name)
	}
	return col, nil
}

// duckDBStorageType maps a SemanticType to a DuckDB column type name. The
// ingestion paths do not call it: Excel sheets are staged as VARCHAR columns
// and the other formats take their types from DuckDB's own readers.
func duckDBStorageType(t SemanticType) string {
	switch t {
	case SemanticInteger:
		return "BIGINT"
	case SemanticFloat:
		return "DOUBLE"
	case SemanticDate:
		return "TIMESTAMP"
	case SemanticBoolean:
		return "BOOLEAN"
	case SemanticString:
		return "VARCHAR"
	default:
		return "VARCHAR"
	}
}

// Coerce converts a JSON-decoded filter/having value to the Go value the
// DuckDB driver should bind for a column of the given semantic type, for the
// given operator. It returns an InvalidRequest EngineError (INVALID_VALUE) on
// any value that cannot be faithfully coerced (§4.1, §4.2).
func Coerce(value any, semanticType SemanticType, column string, op string) (any, error) {
	if value == nil {
		return nil, NewInvalidRequestError(ErrCodeInvalidValue,
			fmt.Sprintf("filter value is required for column %q and operator %q", column, op)).
			WithDetail("column", column).WithDetail("operator", op)
	}
	switch semanticType {
	case SemanticInteger:
		return coerceInteger(value, column)
	case SemanticFloat:
		return coerceFloat(value, column)
	case SemanticBoolean:
		return coerceBool(value, column)
	case SemanticDate:
		return coerceDate(value, column)
	case SemanticString:
		return coerceString(value, column)
	default:
		return value, nil
	}
}

func invalidValue(column string, value any, want string) error {
	return NewInvalidRequestError(ErrCodeInvalidValue,
		fmt.Sprintf("Invalid %s value for column '%s': %v", want, column, value)).
		WithDetail("column", column).WithDetail("value", value)
}

func coerceInteger(value any, column string) (any, error) {
	switch v := value.(type) {
	case float64:
		return int64(v), nil
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil, invalidValue(column, value, "integer")
		}
		return n, nil
	default:
		return nil, invalidValue(column, value, "integer")
	}
}

func coerceFloat(value any, column string) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, invalidValue(column, value, "float")
		}
		return n, nil
	default:
		return nil, invalidValue(column, value, "float")
	}
}

func coerceBool(value any, column string) (any, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return nil, invalidValue(column, value, "boolean")
		}
		return b, nil
	default:
		return nil, invalidValue(column, value, "boolean")
	}
}

// acceptedDateLayouts are tried in order when coercing a string to a date
// value; the first that parses wins.
var acceptedDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func coerceDate(value any, column string) (any, error) {
	switch v := value.(type) {
	case time.Time:
		return v.UTC(), nil
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range acceptedDateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), nil
			}
		}
		return nil, invalidValue(column, value, "date")
	default:
		return nil, invalidValue(column, value, "date")
	}
}

func coerceString(value any, column string) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case float64, int, int64, bool:
		return fmt.Sprintf("%v", v), nil
	default:
		return nil, invalidValue(column, value, "string")
	}
}

// allowedOperators lists the filter operators valid for each semantic type
// (§3). Callers validate membership before compiling SQL; HAVING operators
// are checked separately in tablequery.go.
var allowedOperators = map[SemanticType]map[FilterOp]bool{
	SemanticString: {
		OpEqual: true, OpNotEqual: true, OpContains: true, OpStartsWith: true, OpEndsWith: true,
		OpIsNull: true, OpIsNotNull: true,
	},
	SemanticInteger: {
		OpEqual: true, OpNotEqual: true, OpGreaterThan: true, OpLessThan: true,
		OpGreaterEqual: true, OpLessEqual: true, OpIsNull: true, OpIsNotNull: true,
	},
	SemanticFloat: {
		OpEqual: true, OpNotEqual: true, OpGreaterThan: true, OpLessThan: true,
		OpGreaterEqual: true, OpLessEqual: true, OpIsNull: true, OpIsNotNull: true,
	},
	SemanticDate: {
		OpEqual: true, OpNotEqual: true, OpGreaterThan: true, OpLessThan: true,
		OpGreaterEqual: true, OpLessEqual: true, OpIsNull: true, OpIsNotNull: true,
	},
	SemanticBoolean: {
		OpEqual: true, OpNotEqual: true, OpIsNull: true, OpIsNotNull: true,
	},
}

// OperatorAllowed reports whether op is valid against a column of the given
// semantic type.
func OperatorAllowed(semanticType SemanticType, op FilterOp) bool {
	ops, ok := allowedOperators[semanticType]
	if !ok {
		return false
	}
	return ops[op]
}

// semanticTypeFromDuckDB maps a DuckDB catalog type name to this engine's
// coarser SemanticType (§3).
func semanticTypeFromDuckDB(duckType string) SemanticType {
	t := strings.ToUpper(duckType)
	switch {
	case strings.HasPrefix(t, "BOOL"):
		return SemanticBoolean
	case strings.Contains(t, "TIMESTAMP"), strings.Contains(t, "DATE"), strings.Contains(t, "TIME"):
		return SemanticDate
	case strings.Contains(t, "DOUBLE"), strings.Contains(t, "FLOAT"), strings.Contains(t, "DECIMAL"), strings.Contains(t, "NUMERIC"), strings.Contains(t, "REAL"):
		return SemanticFloat
	case strings.Contains(t, "INT"), strings.Contains(t, "HUGEINT"):
		return SemanticInteger
	default:
		return SemanticString
	}
}

// DescribeColumns resolves a table's current column metadata from the
// engine's catalog (C1, §4.1): storage type via DuckDB's own type name,
// semantic type derived from it.
func (e *Engine) DescribeColumns(ctx context.Context, tableName string) (*ColumnRegistry, error) {
	rows, err := e.Query(ctx, fmt.Sprintf("PRAGMA table_info(%s)", Quote(tableName)))
	if err != nil {
		return nil, NewInternalError("failed to describe table columns", err)
	}
	nameIdx := columnIndex(rows.Columns, "name")
	typeIdx := columnIndex(rows.Columns, "type")
	if nameIdx < 0 || typeIdx < 0 {
		return nil, NewInternalError("unexpected table_info shape", nil)
	}

	cols := make([]ColumnDescriptor, 0, len(rows.Values))
	for _, row := range rows.Values {
		name, _ := row[nameIdx].(string)
		storageType, _ := row[typeIdx].(string)
		cols = append(cols, ColumnDescriptor{
			Name:         name,
			StorageType:  storageType,
			SemanticType: semanticTypeFromDuckDB(storageType),
		})
	}
	return NewColumnRegistry(cols), nil
}
