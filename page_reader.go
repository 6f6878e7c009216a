package queryengine

import (
	"context"
	"fmt"
	"math"
)

// GetPage implements the Page Reader (C4, §4.4): a keyset-paginated,
// filtered, sorted row fetch with a stable tie-break on intrinsic row
// identity (rowid).
func (e *Engine) GetPage(ctx context.Context, registry *DatasetRegistry, req PageRequest) (*PageResult, error) {
	tableName, err := registry.Lookup(req.DatasetID)
	if err != nil {
		return nil, err
	}

	if req.PageSize < 1 || req.PageSize > 10000 {
		return nil, NewInvalidRequestError(ErrCodeInvalidLimit, "page_size must be in [1, 10000]")
	}

	reg, err := e.DescribeColumns(ctx, tableName)
	if err != nil {
		return nil, err
	}

	var sortCol ColumnDescriptor
	sorted := req.SortColumn != ""
	if sorted {
		sortCol, err = RequireColumn(reg, req.SortColumn)
		if err != nil {
			return nil, err
		}
	}
	sortDir := req.SortDir
	if sortDir == "" {
		sortDir = DirAsc
	}

	whereBody, whereArgs, err := CompileFilters(req.Filters, reg)
	if err != nil {
		return nil, err
	}

	quotedTable := Quote(tableName)

	filteredRows, err := e.scalarInt(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", quotedTable, whereBody), whereArgs...)
	if err != nil {
		return nil, NewInternalError("failed to count filtered rows", err)
	}
	totalRows, err := e.scalarInt(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", quotedTable))
	if err != nil {
		return nil, NewInternalError("failed to count total rows", err)
	}

	keysetBody, keysetArgs, err := compileKeyset(req.Cursor, sorted, req.SortColumn, sortDir, sortCol.SemanticType)
	if err != nil {
		return nil, err
	}

	finalWhere := whereBody
	finalArgs := append([]any{}, whereArgs...)
	if keysetBody != "" {
		finalWhere = finalWhere + " AND (" + keysetBody + ")"
		finalArgs = append(finalArgs, keysetArgs...)
	}

	orderBy := "rowid " + DirAsc.sql()
	if sorted {
		orderBy = fmt.Sprintf("%s %s NULLS LAST, rowid %s", Quote(sortCol.Name), sortDir.sql(), sortDir.sql())
	}

	selectList := "rowid, *"
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s LIMIT ?", selectList, quotedTable, finalWhere, orderBy)
	queryArgs := append(append([]any{}, finalArgs...), req.PageSize+1)

	rows, err := e.Query(ctx, query, queryArgs...)
	if err != nil {
		return nil, NewInternalError("failed to fetch page", err)
	}

	hasMore := len(rows.Values) > req.PageSize
	if hasMore {
		rows.Values = rows.Values[:req.PageSize]
	}

	outCols := make([]string, 0, len(rows.Columns)-1)
	for _, c := range rows.Columns {
		if c == "rowid" {
			continue
		}
		outCols = append(outCols, c)
	}

	outRows := make([]map[string]any, 0, len(rows.Values))
	for _, rowVals := range rows.Values {
		obj := make(map[string]any, len(outCols))
		for i, c := range rows.Columns {
			if c == "rowid" {
				continue
			}
			obj[c] = projectJSONValue(rowVals[i])
		}
		outRows = append(outRows, obj)
	}

	var nextCursor string
	if hasMore && len(rows.Values) > 0 {
		last := rows.Values[len(rows.Values)-1]
		rowIDIdx := columnIndex(rows.Columns, "rowid")
		rowID := toInt64(last[rowIDIdx])
		var sortValue any
		isNull := true
		if sorted {
			idx := columnIndex(rows.Columns, sortCol.Name)
			sortValue = last[idx]
			isNull = sortValue == nil
		}
		nextCursor, err = EncodeCursor(req.SortColumn, sortDir, rowID, sortValue, isNull)
		if err != nil {
			return nil, err
		}
	}

	totalPages := 1
	if req.PageSize > 0 {
		totalPages = int(math.Ceil(float64(filteredRows) / float64(req.PageSize)))
		if totalPages < 1 {
			totalPages = 1
		}
	}

	return &PageResult{
		Rows:         outRows,
		Columns:      outCols,
		TotalRows:    totalRows,
		FilteredRows: filteredRows,
		Page:         req.Page,
		PageSize:     req.PageSize,
		TotalPages:   totalPages,
		NextCursor:   nextCursor,
		PrevCursor:   req.Cursor,
	}, nil
}

// compileKeyset builds the predicate that picks rows strictly after the
// cursor's anchor under the declared order (§4.4 step 5).
func compileKeyset(cursor string, sorted bool, sortColumn string, sortDir SortDirection, semanticType SemanticType) (string, []any, error) {
	if cursor == "" {
		return "", nil, nil
	}
	payload, err := DecodeCursor(cursor, sortColumn, sortDir)
	if err != nil {
		return "", nil, err
	}

	if !sorted {
		return "rowid > ?", []any{payload.R}, nil
	}

	quotedCol := Quote(sortColumn)
	cmp := ">"
	if sortDir == DirDesc {
		cmp = "<"
	}

	if payload.N {
		return fmt.Sprintf("%s IS NULL AND rowid %s ?", quotedCol, cmp), []any{payload.R}, nil
	}

	anchor, err := Coerce(payload.K, semanticType, sortColumn, "=")
	if err != nil {
		return "", nil, invalidCursor("cursor anchor value is not valid for the current sort column")
	}
	return fmt.Sprintf("(%s %s ? OR (%s = ? AND rowid %s ?) OR %s IS NULL)", quotedCol, cmp, quotedCol, cmp, quotedCol),
		[]any{anchor, anchor, payload.R}, nil
}

func columnIndex(cols []string, name string) int {
	for i, c := range cols {
		if c == name {
			return i
		}
	}
	return -1
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

// projectJSONValue stringifies anything outside {string, integer, float,
// boolean, null} — covers dates, decimals, blobs (§4.4 step 8).
func projectJSONValue(v any) any {
	switch val := v.(type) {
	case nil, string, bool:
		return val
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return val
	case float32, float64:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}

func (e *Engine) scalarInt(ctx context.Context, query string, args ...any) (int, error) {
	v, err := e.QueryRowScalar(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return toInt(v), nil
}

func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int32:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}
