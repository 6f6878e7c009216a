package queryengine

import (
	"context"
	"fmt"
	"strings"

	"github.com/tableloom/queryengine/internal"
)

// RunTableQuery compiles a structured spec into SQL, executes it, and emits
// an equivalent data-frame expression string (C5, §4.5).
func (e *Engine) RunTableQuery(ctx context.Context, registry *DatasetRegistry, datasetID string, spec TableQuerySpec) (*TableQueryResult, error) {
	tableName, err := registry.Lookup(datasetID)
	if err != nil {
		return nil, err
	}
	reg, err := e.DescribeColumns(ctx, tableName)
	if err != nil {
		return nil, err
	}

	if spec.Limit < 1 || spec.Limit > 10000 {
		return nil, NewInvalidRequestError(ErrCodeInvalidLimit, "limit must be in [1, 10000]")
	}

	groupSet := internal.NewSet[string]()
	for _, g := range spec.GroupBy {
		if _, err := RequireColumn(reg, g); err != nil {
			return nil, err
		}
		groupSet.Add(g)
	}

	aliasSet := internal.NewSet[string]()
	aliasType := make(map[string]SemanticType, len(spec.Aggregations))
	for _, agg := range spec.Aggregations {
		metricType := SemanticInteger
		if agg.Column != "*" {
			col, err := RequireColumn(reg, agg.Column)
			if err != nil {
				return nil, err
			}
			if (agg.Op == AggSum || agg.Op == AggAvg) && col.SemanticType != SemanticInteger && col.SemanticType != SemanticFloat {
				return nil, NewInvalidRequestError(ErrCodeInvalidAggregation,
					fmt.Sprintf("%s requires a numeric column, got %q (%s)", agg.Op, agg.Column, col.SemanticType))
			}
			if agg.Op != AggCount {
				metricType = col.SemanticType
			}
		} else if agg.Op != AggCount {
			return nil, NewInvalidRequestError(ErrCodeInvalidAggregation, "only count supports column \"*\"")
		}
		alias := agg.Alias()
		if aliasSet.Contains(alias) {
			return nil, NewInvalidRequestError(ErrCodeInvalidAggregation, fmt.Sprintf("duplicate aggregation alias %q", alias))
		}
		aliasSet.Add(alias)
		aliasType[alias] = metricType
	}

	hasAgg := len(spec.Aggregations) > 0
	hasGroup := len(spec.GroupBy) > 0

	if len(spec.Having) > 0 && !(hasAgg && hasGroup) {
		return nil, NewInvalidRequestError(ErrCodeInvalidHaving, "having requires both aggregations and groupBy")
	}
	for i, h := range spec.Having {
		if !aliasSet.Contains(h.Metric) {
			return nil, NewInvalidRequestError(ErrCodeInvalidHaving, fmt.Sprintf("having metric %q is not a produced aggregation alias", h.Metric))
		}
		switch h.Operator {
		case HavingEqual, HavingNotEqual, HavingGreaterThan, HavingLessThan, HavingGreaterEqual, HavingLessEqual:
		default:
			return nil, NewInvalidRequestError(ErrCodeInvalidHaving, fmt.Sprintf("unsupported having operator %q", h.Operator))
		}
		coerced, err := Coerce(h.Value, aliasType[h.Metric], h.Metric, string(h.Operator))
		if err != nil {
			return nil, err
		}
		spec.Having[i].Value = coerced
	}

	for _, s := range spec.Sort {
		if !aliasSet.Contains(s.Column) {
			if _, err := RequireColumn(reg, s.Column); err != nil {
				return nil, NewInvalidRequestError(ErrCodeInvalidSort, fmt.Sprintf("sort column %q is neither a real column nor a produced alias", s.Column))
			}
		}
	}

	whereBody, whereArgs, err := CompileFilters(spec.Filters, reg)
	if err != nil {
		return nil, err
	}

	selectParts := make([]string, 0, len(spec.GroupBy)+len(spec.Aggregations))
	for _, g := range spec.GroupBy {
		selectParts = append(selectParts, Quote(g))
	}
	for _, agg := range spec.Aggregations {
		target := "*"
		if agg.Column != "*" {
			target = Quote(agg.Column)
		}
		selectParts = append(selectParts, fmt.Sprintf("%s(%s) AS %s", strings.ToUpper(string(agg.Op)), target, Quote(agg.Alias())))
	}
	if len(selectParts) == 0 {
		selectParts = append(selectParts, "*")
	}

	sqlBuilder := strings.Builder{}
	fmt.Fprintf(&sqlBuilder, "SELECT %s FROM %s WHERE %s", strings.Join(selectParts, ", "), Quote(tableName), whereBody)
	args := append([]any{}, whereArgs...)

	if hasGroup {
		groupCols := make([]string, 0, len(spec.GroupBy))
		for _, g := range spec.GroupBy {
			groupCols = append(groupCols, Quote(g))
		}
		fmt.Fprintf(&sqlBuilder, " GROUP BY %s", strings.Join(groupCols, ", "))
	}

	if len(spec.Having) > 0 {
		havingParts := make([]string, 0, len(spec.Having))
		for _, h := range spec.Having {
			havingParts = append(havingParts, fmt.Sprintf("%s %s ?", Quote(h.Metric), h.Operator))
			args = append(args, h.Value)
		}
		fmt.Fprintf(&sqlBuilder, " HAVING %s", strings.Join(havingParts, " AND "))
	}

	if len(spec.Sort) > 0 {
		sortParts := make([]string, 0, len(spec.Sort))
		for _, s := range spec.Sort {
			dir := s.Direction
			if dir == "" {
				dir = DirAsc
			}
			sortParts = append(sortParts, fmt.Sprintf("%s %s NULLS LAST", Quote(s.Column), dir.sql()))
		}
		fmt.Fprintf(&sqlBuilder, " ORDER BY %s", strings.Join(sortParts, ", "))
	}

	fmt.Fprintf(&sqlBuilder, " LIMIT %d", spec.Limit)
	generatedSQL := sqlBuilder.String()

	rows, err := e.Query(ctx, generatedSQL, args...)
	if err != nil {
		return nil, NewInvalidRequestError(ErrCodeQueryExecution, "generated query failed to execute").WithCause(err)
	}

	outRows := make([]map[string]any, 0, len(rows.Values))
	for _, rowVals := range rows.Values {
		obj := make(map[string]any, len(rows.Columns))
		for i, c := range rows.Columns {
			obj[c] = projectJSONValue(rowVals[i])
		}
		outRows = append(outRows, obj)
	}

	return &TableQueryResult{
		Columns:         rows.Columns,
		Rows:            outRows,
		RowCount:        len(outRows),
		GeneratedSQL:    generatedSQL,
		GeneratedPython: generatePython(spec, hasAgg, hasGroup),
	}, nil
}

// generatePython renders a pandas-equivalent expression string for display
// purposes only; it is never executed (§4.5).
func generatePython(spec TableQuerySpec, hasAgg, hasGroup bool) string {
	var b strings.Builder
	b.WriteString("df")

	for _, f := range spec.Filters {
		fmt.Fprintf(&b, "[df[%q] %s %s]", f.Column, pythonOp(f.Operator), pythonLiteral(f.Operator, f.Value))
	}

	if hasAgg {
		aggMap := make([]string, 0, len(spec.Aggregations))
		for _, agg := range spec.Aggregations {
			col := agg.Column
			if col == "*" {
				col = "index"
				if len(spec.GroupBy) > 0 {
					col = spec.GroupBy[0]
				}
			}
			aggMap = append(aggMap, fmt.Sprintf("%q: (%q, %q)", agg.Alias(), col, pythonReducer(agg.Op)))
		}
		if hasGroup {
			groupCols := make([]string, 0, len(spec.GroupBy))
			for _, g := range spec.GroupBy {
				groupCols = append(groupCols, fmt.Sprintf("%q", g))
			}
			fmt.Fprintf(&b, ".groupby([%s]).agg({%s}).reset_index()", strings.Join(groupCols, ", "), strings.Join(aggMap, ", "))
		} else {
			fmt.Fprintf(&b, ".agg({%s})", strings.Join(aggMap, ", "))
		}
	} else if hasGroup {
		groupCols := make([]string, 0, len(spec.GroupBy))
		for _, g := range spec.GroupBy {
			groupCols = append(groupCols, fmt.Sprintf("%q", g))
		}
		fmt.Fprintf(&b, "[[%s]].drop_duplicates()", strings.Join(groupCols, ", "))
	}

	for _, h := range spec.Having {
		fmt.Fprintf(&b, ".query(%q)", fmt.Sprintf("%s %s %v", h.Metric, h.Operator, h.Value))
	}

	if len(spec.Sort) > 0 {
		cols := make([]string, 0, len(spec.Sort))
		ascending := make([]string, 0, len(spec.Sort))
		for _, s := range spec.Sort {
			cols = append(cols, fmt.Sprintf("%q", s.Column))
			if s.Direction == DirDesc {
				ascending = append(ascending, "False")
			} else {
				ascending = append(ascending, "True")
			}
		}
		fmt.Fprintf(&b, ".sort_values(by=[%s], ascending=[%s])", strings.Join(cols, ", "), strings.Join(ascending, ", "))
	}

	fmt.Fprintf(&b, ".head(%d)", spec.Limit)
	return b.String()
}

func pythonOp(op FilterOp) string {
	switch op {
	case OpEqual:
		return "=="
	case OpNotEqual:
		return "!="
	case OpGreaterThan:
		return ">"
	case OpLessThan:
		return "<"
	case OpGreaterEqual:
		return ">="
	case OpLessEqual:
		return "<="
	case OpContains:
		return ".str.contains"
	case OpStartsWith:
		return ".str.startswith"
	case OpEndsWith:
		return ".str.endswith"
	case OpIsNull:
		return ".isna()"
	case OpIsNotNull:
		return ".notna()"
	default:
		return string(op)
	}
}

func pythonLiteral(op FilterOp, value any) string {
	switch op {
	case OpIsNull, OpIsNotNull:
		return ""
	case OpContains, OpStartsWith, OpEndsWith:
		return fmt.Sprintf("(%v)", value)
	default:
		switch v := value.(type) {
		case string:
			return fmt.Sprintf("%q", v)
		default:
			return fmt.Sprintf("%v", v)
		}
	}
}

func pythonReducer(op AggOp) string {
	switch op {
	case AggCount:
		return "count"
	case AggSum:
		return "sum"
	case AggAvg:
		return "mean"
	case AggMin:
		return "min"
	case AggMax:
		return "max"
	default:
		return string(op)
	}
}
