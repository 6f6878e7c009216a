package queryengine

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSplitTrailingExpressionSimpleValue(t *testing.T) {
	setup, trailing, ok := splitTrailingExpression("total = df[\"amount\"].sum()\ntotal")
	assert.True(t, ok)
	assert.Equal(t, "total = df[\"amount\"].sum()", setup)
	assert.Equal(t, "total", trailing)
}

func TestSplitTrailingExpressionRejectsIndentedLine(t *testing.T) {
	_, _, ok := splitTrailingExpression("if True:\n    total = 1")
	assert.False(t, ok)
}

func TestSplitTrailingExpressionRejectsAssignment(t *testing.T) {
	_, _, ok := splitTrailingExpression("total = 1")
	assert.False(t, ok)
}

func TestSplitTrailingExpressionAllowsComparisonOperators(t *testing.T) {
	_, trailing, ok := splitTrailingExpression("x = 1\nx >= 1")
	assert.True(t, ok)
	assert.Equal(t, "x >= 1", trailing)
}

func TestSplitTrailingExpressionRejectsStatementKeyword(t *testing.T) {
	_, _, ok := splitTrailingExpression("for x in range(3):\n    print(x)")
	assert.False(t, ok)
	_, _, ok = splitTrailingExpression("x = 1\npass")
	assert.False(t, ok)
}

func TestSplitTrailingExpressionRejectsBlockHeader(t *testing.T) {
	_, _, ok := splitTrailingExpression("def f():")
	assert.False(t, ok)
}

func TestContainsTopLevelAssignmentIgnoresBracketedEquals(t *testing.T) {
	assert.False(t, containsTopLevelAssignment(`df[df["x"] == 1]`))
	assert.True(t, containsTopLevelAssignment(`x = 1`))
}

func TestNormalizeFloatConvertsNaNAndInf(t *testing.T) {
	assert.Nil(t, normalizeFloat(math.NaN()))
	assert.Nil(t, normalizeFloat(math.Inf(1)))
	assert.Nil(t, normalizeFloat(math.Inf(-1)))
	assert.Equal(t, 3.5, normalizeFloat(3.5))
}

func TestNormalizeCellValueDateToISO(t *testing.T) {
	assert.Nil(t, normalizeCellValue(math.NaN()))
	assert.Equal(t, "2024-01-15T00:00:00Z", normalizeCellValue(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)))
}
