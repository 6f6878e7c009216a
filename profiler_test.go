package queryengine

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileNumericBasicStats(t *testing.T) {
	p := profileNumeric([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 5)
	require.NotNil(t, p.Min)
	require.NotNil(t, p.Max)
	assert.Equal(t, 1.0, *p.Min)
	assert.Equal(t, 10.0, *p.Max)
	assert.Equal(t, 5.5, *p.Mean)
	assert.Len(t, p.Histogram, 5)
	total := 0
	for _, bin := range p.Histogram {
		total += bin.Count
	}
	assert.Equal(t, 10, total)
}

func TestProfileNumericEmpty(t *testing.T) {
	p := profileNumeric(nil, 10)
	assert.Nil(t, p.Min)
	assert.Nil(t, p.Max)
	assert.Empty(t, p.Histogram)
}

func TestDominantValueTieReturnsNil(t *testing.T) {
	v, count := dominantValue([]any{"a", "b"})
	assert.Nil(t, v)
	assert.Equal(t, 1, count)
}

func TestProfileReportSerializesNullDominantValueExplicitly(t *testing.T) {
	report := ProfileReport{Column: "g", Type: SemanticString, DominantValue: nil, DominantValueCount: 1}
	b, err := json.Marshal(report)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"dominantValue":null`)
}

func TestDominantValueClearWinner(t *testing.T) {
	v, count := dominantValue([]any{"a", "a", "b"})
	assert.Equal(t, "a", v)
	assert.Equal(t, 2, count)
}

func TestClassifyPatternCases(t *testing.T) {
	assert.Equal(t, "uuid", classifyPattern("123e4567-e89b-12d3-a456-426614174000"))
	assert.Equal(t, "email", classifyPattern("user@example.com"))
	assert.Equal(t, "numeric-only", classifyPattern("-42.5"))
	assert.Equal(t, "code-like", classifyPattern("ORDER-123_A"))
	assert.Equal(t, "free-text", classifyPattern("this is a sentence"))
}

func TestPatternMaskShape(t *testing.T) {
	assert.Equal(t, "AAA-999", patternMask("abc-123"))
}

func TestProfileStringTopValuesAndTailProfile(t *testing.T) {
	values := []string{"x", "x", "x", "x", "x", "x", "x", "x", "y", "z"}
	p := profileString(values, 10)
	assert.Equal(t, 1, p.MinLength)
	assert.Equal(t, 1, p.MaxLength)
	require.NotEmpty(t, p.TopValues)
	assert.Equal(t, "x", p.TopValues[0].Value)
	assert.Equal(t, 8, p.TopValues[0].Count)
	assert.Equal(t, "low", p.TailProfile)
}

func TestProfileStringBlankWhitespace(t *testing.T) {
	p := profileString([]string{"  ", "a", ""}, 10)
	assert.Equal(t, 2, p.BlankWhitespaceCount)
}

func TestProfileDateGapsAndHistogram(t *testing.T) {
	d1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	d3 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	p := profileDate([]time.Time{d3, d1, d2})
	assert.True(t, p.Min.Equal(d1))
	assert.True(t, p.Max.Equal(d3))
	assert.Greater(t, p.LargestGapDays, 0)
	assert.Len(t, p.Histogram, 2)
}

func TestProfileBooleanShares(t *testing.T) {
	p := profileBoolean([]any{true, true, false, nil})
	assert.Equal(t, 2, p.TrueCount)
	assert.Equal(t, 1, p.FalseCount)
	assert.Equal(t, 1, p.NullCount)
	assert.InDelta(t, 50.0, p.TrueSharePct, 0.001)
}

func TestBuildSparklineBooleanOrder(t *testing.T) {
	out := buildSparkline(SemanticBoolean, []any{true, false, false}, 2)
	assert.Equal(t, []int{2, 1}, out)
}

func TestBuildSparklineStringTopBuckets(t *testing.T) {
	out := buildSparkline(SemanticString, []any{"a", "a", "b"}, 8)
	assert.Len(t, out, 8)
	assert.Equal(t, 2, out[0])
}
