package queryengine

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
)

// ExportCSV fully materializes the filtered, sorted rows of a dataset and
// writes them as CSV (C7, §4.7). Nulls render as empty fields; non-primitive
// values are stringified the same way page reads project them.
func (e *Engine) ExportCSV(ctx context.Context, registry *DatasetRegistry, datasetID string, sortColumn string, sortDir SortDirection, filters []Filter) ([]byte, error) {
	tableName, err := registry.Lookup(datasetID)
	if err != nil {
		return nil, err
	}
	reg, err := e.DescribeColumns(ctx, tableName)
	if err != nil {
		return nil, err
	}

	if sortColumn != "" {
		if _, err := RequireColumn(reg, sortColumn); err != nil {
			return nil, err
		}
	}

	whereBody, whereArgs, err := CompileFilters(filters, reg)
	if err != nil {
		return nil, err
	}

	orderBy := "rowid ASC"
	if sortColumn != "" {
		dir := sortDir
		if dir == "" {
			dir = DirAsc
		}
		orderBy = fmt.Sprintf("%s %s NULLS LAST", Quote(sortColumn), dir.sql())
	}

	query := fmt.Sprintf("SELECT * FROM %s WHERE %s ORDER BY %s", Quote(tableName), whereBody, orderBy)
	rows, err := e.Query(ctx, query, whereArgs...)
	if err != nil {
		return nil, NewInternalError("failed to fetch export rows", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(rows.Columns); err != nil {
		return nil, NewInternalError("failed to write csv header", err)
	}
	for _, rowVals := range rows.Values {
		record := make([]string, len(rowVals))
		for i, v := range rowVals {
			record[i] = csvField(v)
		}
		if err := w.Write(record); err != nil {
			return nil, NewInternalError("failed to write csv row", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, NewInternalError("failed to flush csv writer", err)
	}

	return buf.Bytes(), nil
}

func csvField(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
