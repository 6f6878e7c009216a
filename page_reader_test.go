package queryengine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumnIndex(t *testing.T) {
	assert.Equal(t, 1, columnIndex([]string{"rowid", "name", "age"}, "name"))
	assert.Equal(t, -1, columnIndex([]string{"rowid", "name"}, "missing"))
}

func TestToInt64Conversions(t *testing.T) {
	assert.EqualValues(t, 7, toInt64(int64(7)))
	assert.EqualValues(t, 7, toInt64(int32(7)))
	assert.EqualValues(t, 7, toInt64(float64(7)))
}

func TestProjectJSONValuePassesPrimitivesStringifiesRest(t *testing.T) {
	assert.Nil(t, projectJSONValue(nil))
	assert.Equal(t, "x", projectJSONValue("x"))
	assert.Equal(t, true, projectJSONValue(true))
	assert.Equal(t, "[1 2]", projectJSONValue([]byte{1, 2}))
}

func TestCompileKeysetEmptyCursorIsNoop(t *testing.T) {
	body, args, err := compileKeyset("", true, "age", DirAsc, SemanticInteger)
	require.NoError(t, err)
	assert.Empty(t, body)
	assert.Empty(t, args)
}

func TestCompileKeysetUnsortedUsesRowid(t *testing.T) {
	cursor, err := EncodeCursor("", DirAsc, 5, nil, true)
	require.NoError(t, err)
	body, args, err := compileKeyset(cursor, false, "", DirAsc, "")
	require.NoError(t, err)
	assert.Equal(t, "rowid > ?", body)
	assert.Equal(t, []any{int64(5)}, args)
}

func TestCompileKeysetNullAnchor(t *testing.T) {
	cursor, err := EncodeCursor("age", DirAsc, 5, nil, true)
	require.NoError(t, err)
	body, _, err := compileKeyset(cursor, true, "age", DirAsc, SemanticInteger)
	require.NoError(t, err)
	assert.Contains(t, body, "IS NULL")
}

func TestCompileKeysetNonNullAnchor(t *testing.T) {
	cursor, err := EncodeCursor("age", DirAsc, 5, int64(30), false)
	require.NoError(t, err)
	body, args, err := compileKeyset(cursor, true, "age", DirAsc, SemanticInteger)
	require.NoError(t, err)
	assert.Contains(t, body, "OR")
	assert.Len(t, args, 3)
}

func TestGetPageKeysetPaginationIsStableAndExhaustive(t *testing.T) {
	e := newTestEngine(t)
	tableName := seedPeopleTable(t, e)
	registry := NewDatasetRegistry()
	datasetID, err := registry.Register(tableName, "people", "csv")
	require.NoError(t, err)

	ctx := context.Background()
	seen := map[string]bool{}
	cursor := ""
	for i := 0; i < 10; i++ {
		page, err := e.GetPage(ctx, registry, PageRequest{
			DatasetID:  datasetID,
			PageSize:   2,
			SortColumn: "age",
			SortDir:    DirAsc,
			Cursor:     cursor,
		})
		require.NoError(t, err)
		for _, row := range page.Rows {
			name, _ := row["name"].(string)
			require.False(t, seen[name], "row %q seen twice across pages", name)
			seen[name] = true
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	assert.Len(t, seen, 4)
}

func TestGetPageRejectsOutOfRangePageSize(t *testing.T) {
	e := newTestEngine(t)
	tableName := seedPeopleTable(t, e)
	registry := NewDatasetRegistry()
	datasetID, err := registry.Register(tableName, "people", "csv")
	require.NoError(t, err)

	_, err = e.GetPage(context.Background(), registry, PageRequest{DatasetID: datasetID, PageSize: 0})
	require.Error(t, err)
	assert.True(t, IsInvalidRequest(err))
}

func TestGetPageAppliesFilters(t *testing.T) {
	e := newTestEngine(t)
	tableName := seedPeopleTable(t, e)
	registry := NewDatasetRegistry()
	datasetID, err := registry.Register(tableName, "people", "csv")
	require.NoError(t, err)

	page, err := e.GetPage(context.Background(), registry, PageRequest{
		DatasetID: datasetID,
		PageSize:  10,
		Filters:   []Filter{{Column: "active", Operator: OpEqual, Value: true}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, page.FilteredRows)
	assert.Equal(t, 4, page.TotalRows)
}
