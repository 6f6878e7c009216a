package queryengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry() *ColumnRegistry {
	return NewColumnRegistry([]ColumnDescriptor{
		{Name: "name", SemanticType: SemanticString},
		{Name: "age", SemanticType: SemanticInteger},
		{Name: "active", SemanticType: SemanticBoolean},
	})
}

func TestCompileFiltersEmpty(t *testing.T) {
	where, args, err := CompileFilters(nil, testRegistry())
	require.NoError(t, err)
	assert.Equal(t, "TRUE", where)
	assert.Empty(t, args)
}

func TestCompileFiltersEquality(t *testing.T) {
	where, args, err := CompileFilters([]Filter{{Column: "age", Operator: OpEqual, Value: float64(30)}}, testRegistry())
	require.NoError(t, err)
	assert.Equal(t, `"age" = ?`, where)
	assert.Equal(t, []any{int64(30)}, args)
}

func TestCompileFiltersIsNullHasNoArgs(t *testing.T) {
	where, args, err := CompileFilters([]Filter{{Column: "name", Operator: OpIsNull}}, testRegistry())
	require.NoError(t, err)
	assert.Equal(t, `"name" IS NULL`, where)
	assert.Empty(t, args)
}

func TestCompileFiltersAndsMultiple(t *testing.T) {
	where, args, err := CompileFilters([]Filter{
		{Column: "age", Operator: OpGreaterThan, Value: float64(18)},
		{Column: "active", Operator: OpEqual, Value: true},
	}, testRegistry())
	require.NoError(t, err)
	assert.Equal(t, `"age" > ? AND "active" = ?`, where)
	assert.Equal(t, []any{int64(18), true}, args)
}

func TestCompileFiltersRejectsUnsupportedOperator(t *testing.T) {
	_, _, err := CompileFilters([]Filter{{Column: "active", Operator: OpContains, Value: "x"}}, testRegistry())
	require.Error(t, err)
	assert.True(t, IsInvalidRequest(err))
}

func TestCompileFiltersContainsEscapesWildcards(t *testing.T) {
	where, args, err := CompileFilters([]Filter{{Column: "name", Operator: OpContains, Value: "50%_off"}}, testRegistry())
	require.NoError(t, err)
	assert.Contains(t, where, "ILIKE")
	assert.Equal(t, []any{`%50\%\_off%`}, args)
}

func TestCompileFiltersEndsWithEscapesWildcards(t *testing.T) {
	where, args, err := CompileFilters([]Filter{{Column: "name", Operator: OpEndsWith, Value: "50%_off"}}, testRegistry())
	require.NoError(t, err)
	assert.Contains(t, where, "ILIKE")
	assert.Equal(t, []any{`%50\%\_off`}, args)
}

func TestCompileFiltersUnknownColumn(t *testing.T) {
	_, _, err := CompileFilters([]Filter{{Column: "ghost", Operator: OpEqual, Value: "x"}}, testRegistry())
	require.Error(t, err)
	assert.True(t, IsInvalidRequest(err))
}
