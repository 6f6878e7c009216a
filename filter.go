package queryengine

import (
	"fmt"
	"strings"
)

// CompileFilters ANDs together the SQL fragments for each filter, returning
// the combined WHERE body (without the "WHERE" keyword) and the positional
// parameters to bind, in order (§4.2). An empty filter list yields "TRUE"
// and no params, so callers can always splice the result after "WHERE ".
func CompileFilters(filters []Filter, reg *ColumnRegistry) (string, []any, error) {
	if len(filters) == 0 {
		return "TRUE", nil, nil
	}
	clauses := make([]string, 0, len(filters))
	args := make([]any, 0, len(filters))
	for _, f := range filters {
		clause, clauseArgs, err := compileFilter(f, reg)
		if err != nil {
			return "", nil, err
		}
		clauses = append(clauses, clause)
		args = append(args, clauseArgs...)
	}
	return strings.Join(clauses, " AND "), args, nil
}

func compileFilter(f Filter, reg *ColumnRegistry) (string, []any, error) {
	col, err := RequireColumn(reg, f.Column)
	if err != nil {
		return "", nil, err
	}
	if !OperatorAllowed(col.SemanticType, f.Operator) {
		return "", nil, NewInvalidRequestError(ErrCodeUnsupportedOperator,
			fmt.Sprintf("operator %q is not valid for column %q (%s)", f.Operator, f.Column, col.SemanticType)).
			WithDetail("column", f.Column).WithDetail("operator", f.Operator)
	}
	quoted := Quote(col.Name)

	switch f.Operator {
	case OpIsNull:
		return quoted + " IS NULL", nil, nil
	case OpIsNotNull:
		return quoted + " IS NOT NULL", nil, nil
	case OpContains:
		v, err := Coerce(f.Value, col.SemanticType, f.Column, string(f.Operator))
		if err != nil {
			return "", nil, err
		}
		s, _ := v.(string)
		return quoted + ` ILIKE ? ESCAPE '\'`, []any{"%" + escapeLike(s) + "%"}, nil
	case OpStartsWith:
		v, err := Coerce(f.Value, col.SemanticType, f.Column, string(f.Operator))
		if err != nil {
			return "", nil, err
		}
		s, _ := v.(string)
		return quoted + ` ILIKE ? ESCAPE '\'`, []any{escapeLike(s) + "%"}, nil
	case OpEndsWith:
		v, err := Coerce(f.Value, col.SemanticType, f.Column, string(f.Operator))
		if err != nil {
			return "", nil, err
		}
		s, _ := v.(string)
		return quoted + ` ILIKE ? ESCAPE '\'`, []any{"%" + escapeLike(s)}, nil
	case OpEqual, OpNotEqual, OpGreaterThan, OpLessThan, OpGreaterEqual, OpLessEqual:
		v, err := Coerce(f.Value, col.SemanticType, f.Column, string(f.Operator))
		if err != nil {
			return "", nil, err
		}
		return quoted + " " + string(f.Operator) + " ?", []any{v}, nil
	default:
		return "", nil, NewInvalidRequestError(ErrCodeUnsupportedOperator,
			fmt.Sprintf("unknown operator %q", f.Operator)).WithDetail("operator", f.Operator)
	}
}

// escapeLike escapes DuckDB LIKE/ILIKE metacharacters in a user-supplied
// substring so contains/starts_with only ever match literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
