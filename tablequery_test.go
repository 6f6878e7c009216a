package queryengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAggregationAliasDefaults(t *testing.T) {
	assert.Equal(t, "sum_revenue", Aggregation{Op: AggSum, Column: "revenue"}.Alias())
	assert.Equal(t, "count_all", Aggregation{Op: AggCount, Column: "*"}.Alias())
	assert.Equal(t, "total", Aggregation{Op: AggSum, Column: "revenue", As: "total"}.Alias())
}

func TestGeneratePythonFilterAndLimit(t *testing.T) {
	spec := TableQuerySpec{
		Filters: []Filter{{Column: "age", Operator: OpGreaterThan, Value: float64(18)}},
		Limit:   50,
	}
	py := generatePython(spec, false, false)
	assert.Contains(t, py, `df[df["age"] > 18]`)
	assert.Contains(t, py, ".head(50)")
}

func TestGeneratePythonGroupByAggregation(t *testing.T) {
	spec := TableQuerySpec{
		GroupBy:      []string{"region"},
		Aggregations: []Aggregation{{Op: AggSum, Column: "revenue"}},
		Limit:        100,
	}
	py := generatePython(spec, true, true)
	assert.Contains(t, py, `.groupby(["region"])`)
	assert.Contains(t, py, `"sum_revenue": ("revenue", "sum")`)
	assert.Contains(t, py, ".reset_index()")
}

func TestGeneratePythonHavingAndSort(t *testing.T) {
	spec := TableQuerySpec{
		GroupBy:      []string{"region"},
		Aggregations: []Aggregation{{Op: AggCount, Column: "*"}},
		Having:       []HavingItem{{Metric: "count_all", Operator: HavingGreaterThan, Value: float64(5)}},
		Sort:         []SortItem{{Column: "count_all", Direction: DirDesc}},
		Limit:        10,
	}
	py := generatePython(spec, true, true)
	assert.Contains(t, py, `.query("count_all > 5")`)
	assert.Contains(t, py, `.sort_values(by=["count_all"], ascending=[False])`)
}
