package queryengine

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/tableloom/queryengine/internal"
)

// profileSampleLimit bounds how many rows are profiled directly; larger
// tables are sampled uniformly instead (§4.6, §9 Open Questions).
const profileSampleLimit = 1_000_000

// ProfileReport is the output of ProfileColumn (§4.6).
type ProfileReport struct {
	Column                string       `json:"column"`
	Type                  SemanticType `json:"type"`
	TotalRows             int          `json:"totalRows"`
	Sampled               bool         `json:"sampled"`
	SampleSize            int          `json:"sampleSize"`
	NonNullCount          int          `json:"nonNullCount"`
	NullCount             int          `json:"nullCount"`
	UniqueCount           int          `json:"uniqueCount"`
	DominantValue         any          `json:"dominantValue"`
	DominantValueCount    int          `json:"dominantValueCount,omitempty"`
	DominantValueSharePct float64      `json:"dominantValueSharePct,omitempty"`

	Numeric *NumericProfile `json:"numeric,omitempty"`
	String  *StringProfile  `json:"string,omitempty"`
	Date    *DateProfile    `json:"date,omitempty"`
	Boolean *BooleanProfile `json:"boolean,omitempty"`
}

// NumericProfile holds §4.6's numeric-type statistics.
type NumericProfile struct {
	Min             *float64        `json:"min"`
	Max             *float64        `json:"max"`
	Mean            *float64        `json:"mean"`
	Median          *float64        `json:"median"`
	Stddev          *float64        `json:"stddev"`
	P25             *float64        `json:"p25"`
	P75             *float64        `json:"p75"`
	P95             *float64        `json:"p95"`
	P99             *float64        `json:"p99"`
	Histogram       []HistogramBin  `json:"histogram"`
	ZeroRatePct     float64         `json:"zeroRatePct"`
	NegativeRatePct float64         `json:"negativeRatePct"`
	OutlierRatePct  float64         `json:"outlierRatePct"`
}

// HistogramBin is one equal-width numeric histogram bucket.
type HistogramBin struct {
	Bin   int     `json:"bin"`
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	Count int     `json:"count"`
}

// PatternClass is one regex-classified string pattern bucket.
type PatternClass struct {
	Class     string  `json:"class"`
	Count     int     `json:"count"`
	SharePct  float64 `json:"sharePct"`
}

// TopValue is one entry of a top-N value/count list.
type TopValue struct {
	Value any `json:"value"`
	Count int `json:"count"`
}

// StringProfile holds §4.6's string-type statistics.
type StringProfile struct {
	MinLength              int            `json:"minLength"`
	MaxLength              int            `json:"maxLength"`
	MedianLength           float64        `json:"medianLength"`
	BlankWhitespaceCount   int            `json:"blankWhitespaceCount"`
	BlankWhitespacePct     float64        `json:"blankWhitespacePct"`
	TopValues              []TopValue     `json:"topValues"`
	PatternClasses         []PatternClass `json:"patternClasses"`
	DistinctPatternCount   int            `json:"distinctPatternCount"`
	Top10CoveragePct       float64        `json:"top10CoveragePct"`
	TailProfile            string         `json:"tailProfile"`
}

// MonthBucket is one {label, count} entry in a date histogram.
type MonthBucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// DateProfile holds §4.6's date-type statistics.
type DateProfile struct {
	Min               *time.Time    `json:"min"`
	Max               *time.Time    `json:"max"`
	MissingPeriodDays int           `json:"missingPeriodDays"`
	LargestGapDays    int           `json:"largestGapDays"`
	Histogram         []MonthBucket `json:"histogram"`
}

// BooleanProfile holds §4.6's boolean-type statistics.
type BooleanProfile struct {
	TrueCount      int     `json:"trueCount"`
	FalseCount     int     `json:"falseCount"`
	NullCount      int     `json:"nullCount"`
	TrueSharePct   float64 `json:"trueSharePct"`
	FalseSharePct  float64 `json:"falseSharePct"`
	NullSharePct   float64 `json:"nullSharePct"`
}

// ProfileColumn computes the statistics contract of C6 (§4.6).
func (e *Engine) ProfileColumn(ctx context.Context, registry *DatasetRegistry, cfg ProfilerConfig, datasetID, column string) (*ProfileReport, error) {
	tableName, err := registry.Lookup(datasetID)
	if err != nil {
		return nil, err
	}
	reg, err := e.DescribeColumns(ctx, tableName)
	if err != nil {
		return nil, err
	}
	col, err := RequireColumn(reg, column)
	if err != nil {
		return nil, err
	}

	quotedTable := Quote(tableName)
	quotedCol := Quote(col.Name)

	totalRows, err := e.scalarInt(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", quotedTable))
	if err != nil {
		return nil, NewInternalError("failed to count rows", err)
	}

	sampled := totalRows > profileSampleLimit
	sampleSize := totalRows
	source := quotedTable
	if sampled {
		sampleSize = profileSampleLimit
		source = fmt.Sprintf("(SELECT * FROM %s USING SAMPLE %d ROWS)", quotedTable, profileSampleLimit)
	}

	rows, err := e.Query(ctx, fmt.Sprintf("SELECT %s FROM %s", quotedCol, source))
	if err != nil {
		return nil, NewInternalError("failed to fetch profile sample", err)
	}

	values := make([]any, 0, len(rows.Values))
	for _, r := range rows.Values {
		values = append(values, r[0])
	}

	report := &ProfileReport{
		Column:     col.Name,
		Type:       col.SemanticType,
		TotalRows:  totalRows,
		Sampled:    sampled,
		SampleSize: sampleSize,
	}

	nonNull := make([]any, 0, len(values))
	for _, v := range values {
		if v != nil {
			nonNull = append(nonNull, v)
		}
	}
	report.NonNullCount = len(nonNull)
	report.NullCount = len(values) - len(nonNull)
	report.UniqueCount = countUnique(nonNull)

	switch col.SemanticType {
	case SemanticInteger, SemanticFloat:
		nums := toFloats(nonNull)
		report.Numeric = profileNumeric(nums, cfg.HistogramBins)
		dv, dc := dominantValue(nonNull)
		report.DominantValue, report.DominantValueCount = dv, dc
	case SemanticString:
		strs := toStrings(nonNull)
		report.String = profileString(strs, cfg.TopValuesLimit)
		dv, dc := dominantValue(nonNull)
		report.DominantValue, report.DominantValueCount = dv, dc
	case SemanticDate:
		dates := toDates(nonNull)
		report.Date = profileDate(dates)
		dv, dc := dominantValue(nonNull)
		report.DominantValue, report.DominantValueCount = dv, dc
	case SemanticBoolean:
		report.Boolean = profileBoolean(values)
		report.DominantValue, report.DominantValueCount = dominantBoolean(report.Boolean)
	}

	if report.DominantValueCount > 0 && len(nonNull) > 0 {
		report.DominantValueSharePct = round4(100 * float64(report.DominantValueCount) / float64(len(nonNull)))
	}

	return report, nil
}

func round4(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*10000) / 10000
}

func round4Ptr(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	r := round4(v)
	return &r
}

func countUnique(values []any) int {
	seen := internal.NewSet[string]()
	for _, v := range values {
		seen.Add(fmt.Sprintf("%v", v))
	}
	return seen.Size()
}

// dominantValue returns the single most frequent value, or (nil, 0) if
// values is empty; on a tie between the top two counts, value is nil (§4.6).
func dominantValue(values []any) (any, int) {
	counts := make(map[string]int)
	rep := make(map[string]any)
	for _, v := range values {
		key := fmt.Sprintf("%v", v)
		counts[key]++
		rep[key] = v
	}
	type kv struct {
		key   string
		count int
	}
	var list []kv
	for k, c := range counts {
		list = append(list, kv{k, c})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].count > list[j].count })
	if len(list) == 0 {
		return nil, 0
	}
	if len(list) > 1 && list[0].count == list[1].count {
		return nil, list[0].count
	}
	return rep[list[0].key], list[0].count
}

func dominantBoolean(b *BooleanProfile) (any, int) {
	if b == nil {
		return nil, 0
	}
	if b.TrueCount == b.FalseCount {
		return nil, b.TrueCount
	}
	if b.TrueCount > b.FalseCount {
		return true, b.TrueCount
	}
	return false, b.FalseCount
}

func toFloats(values []any) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		switch n := v.(type) {
		case float64:
			out = append(out, n)
		case float32:
			out = append(out, float64(n))
		case int64:
			out = append(out, float64(n))
		case int32:
			out = append(out, float64(n))
		case int:
			out = append(out, float64(n))
		}
	}
	return out
}

func toStrings(values []any) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			out = append(out, s)
		} else {
			out = append(out, fmt.Sprintf("%v", v))
		}
	}
	return out
}

func toDates(values []any) []time.Time {
	out := make([]time.Time, 0, len(values))
	for _, v := range values {
		if t, ok := v.(time.Time); ok {
			out = append(out, t)
		}
	}
	return out
}

func profileNumeric(nums []float64, bins int) *NumericProfile {
	p := &NumericProfile{}
	if len(nums) == 0 {
		return p
	}
	sorted := append([]float64{}, nums...)
	sort.Float64s(sorted)

	min, max := sorted[0], sorted[len(sorted)-1]
	p.Min, p.Max = round4Ptr(min), round4Ptr(max)

	sum := 0.0
	zeroCount, negCount := 0, 0
	for _, v := range nums {
		sum += v
		if v == 0 {
			zeroCount++
		}
		if v < 0 {
			negCount++
		}
	}
	mean := sum / float64(len(nums))
	p.Mean = round4Ptr(mean)

	variance := 0.0
	for _, v := range nums {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(nums))
	p.Stddev = round4Ptr(math.Sqrt(variance))

	p.Median = round4Ptr(percentile(sorted, 50))
	p25 := percentile(sorted, 25)
	p75 := percentile(sorted, 75)
	p.P25 = round4Ptr(p25)
	p.P75 = round4Ptr(p75)
	p.P95 = round4Ptr(percentile(sorted, 95))
	p.P99 = round4Ptr(percentile(sorted, 99))

	p.ZeroRatePct = round4(100 * float64(zeroCount) / float64(len(nums)))
	p.NegativeRatePct = round4(100 * float64(negCount) / float64(len(nums)))

	iqr := p75 - p25
	lowFence := p25 - 1.5*iqr
	highFence := p75 + 1.5*iqr
	outliers := 0
	for _, v := range nums {
		if v < lowFence || v > highFence {
			outliers++
		}
	}
	p.OutlierRatePct = round4(100 * float64(outliers) / float64(len(nums)))

	if bins <= 0 {
		bins = 20
	}
	p.Histogram = buildHistogram(sorted, min, max, bins)

	return p
}

func percentile(sorted []float64, pct float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := (pct / 100) * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

func buildHistogram(sorted []float64, min, max float64, bins int) []HistogramBin {
	out := make([]HistogramBin, bins)
	width := (max - min) / float64(bins)
	if width == 0 {
		for i := range out {
			low := min
			high := min
			out[i] = HistogramBin{Bin: i, Low: round4(low), High: round4(high)}
		}
		out[0].Count = len(sorted)
		return out
	}
	for i := 0; i < bins; i++ {
		out[i] = HistogramBin{Bin: i, Low: round4(min + float64(i)*width), High: round4(min + float64(i+1)*width)}
	}
	for _, v := range sorted {
		idx := int((v - min) / width)
		if idx >= bins {
			idx = bins - 1
		}
		if idx < 0 {
			idx = 0
		}
		out[idx].Count++
	}
	return out
}

var (
	uuidPattern    = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	emailPattern   = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	numericPattern = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
	codePattern    = regexp.MustCompile(`^[A-Za-z0-9_\-]+$`)
)

func classifyPattern(s string) string {
	switch {
	case uuidPattern.MatchString(s):
		return "uuid"
	case emailPattern.MatchString(s):
		return "email"
	case numericPattern.MatchString(s):
		return "numeric-only"
	case codePattern.MatchString(s):
		return "code-like"
	default:
		return "free-text"
	}
}

// patternMask turns s into an [A-Za-z]->A, [0-9]->9 shape mask, used to
// count distinct structural patterns (§4.6).
func patternMask(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z':
			b.WriteByte('A')
		case r >= '0' && r <= '9':
			b.WriteByte('9')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func profileString(values []string, topN int) *StringProfile {
	p := &StringProfile{}
	if len(values) == 0 {
		return p
	}
	if topN <= 0 {
		topN = 10
	}

	lengths := make([]int, len(values))
	blank := 0
	counts := make(map[string]int)
	masks := internal.NewSet[string]()
	classCounts := make(map[string]int)
	nonBlankCount := 0

	for i, s := range values {
		lengths[i] = len(s)
		counts[s]++
		trimmed := strings.TrimSpace(s)
		if trimmed == "" {
			blank++
			continue
		}
		nonBlankCount++
		masks.Add(patternMask(trimmed))
		classCounts[classifyPattern(trimmed)]++
	}

	sortedLen := append([]int{}, lengths...)
	sort.Ints(sortedLen)
	p.MinLength = sortedLen[0]
	p.MaxLength = sortedLen[len(sortedLen)-1]
	p.MedianLength = intPercentile(sortedLen, 50)

	p.BlankWhitespaceCount = blank
	p.BlankWhitespacePct = round4(100 * float64(blank) / float64(len(values)))

	type kv struct {
		val   string
		count int
	}
	list := make([]kv, 0, len(counts))
	for k, c := range counts {
		list = append(list, kv{k, c})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].count != list[j].count {
			return list[i].count > list[j].count
		}
		return list[i].val < list[j].val
	})

	top := topN
	if top > len(list) {
		top = len(list)
	}
	topCoverage := 0
	for i := 0; i < top; i++ {
		p.TopValues = append(p.TopValues, TopValue{Value: list[i].val, Count: list[i].count})
		topCoverage += list[i].count
	}
	if len(values) > 0 {
		p.Top10CoveragePct = round4(100 * float64(topCoverage) / float64(len(values)))
	}
	switch {
	case p.Top10CoveragePct >= 70:
		p.TailProfile = "low"
	case p.Top10CoveragePct >= 40:
		p.TailProfile = "medium"
	default:
		p.TailProfile = "high"
	}

	type ckv struct {
		class string
		count int
	}
	var classList []ckv
	for c, n := range classCounts {
		classList = append(classList, ckv{c, n})
	}
	sort.Slice(classList, func(i, j int) bool { return classList[i].count > classList[j].count })
	classTop := 5
	if classTop > len(classList) {
		classTop = len(classList)
	}
	for i := 0; i < classTop; i++ {
		share := 0.0
		if nonBlankCount > 0 {
			share = round4(100 * float64(classList[i].count) / float64(nonBlankCount))
		}
		p.PatternClasses = append(p.PatternClasses, PatternClass{Class: classList[i].class, Count: classList[i].count, SharePct: share})
	}

	p.DistinctPatternCount = masks.Size()

	return p
}

func intPercentile(sorted []int, pct float64) float64 {
	floats := make([]float64, len(sorted))
	for i, v := range sorted {
		floats[i] = float64(v)
	}
	return round4(percentile(floats, pct))
}

func profileDate(dates []time.Time) *DateProfile {
	p := &DateProfile{}
	if len(dates) == 0 {
		return p
	}
	sorted := append([]time.Time{}, dates...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })
	min, max := sorted[0], sorted[len(sorted)-1]
	p.Min, p.Max = &min, &max

	distinctDays := internal.NewSet[string]()
	for _, t := range sorted {
		distinctDays.Add(t.Format("2006-01-02"))
	}
	totalSpanDays := int(max.Sub(min).Hours() / 24)
	p.MissingPeriodDays = totalSpanDays - (distinctDays.Size() - 1)
	if p.MissingPeriodDays < 0 {
		p.MissingPeriodDays = 0
	}

	largestGap := 0
	uniqueDays := distinctDays.ToSlice()
	sort.Strings(uniqueDays)
	for i := 1; i < len(uniqueDays); i++ {
		prev, _ := time.Parse("2006-01-02", uniqueDays[i-1])
		cur, _ := time.Parse("2006-01-02", uniqueDays[i])
		gap := int(cur.Sub(prev).Hours()/24) - 1
		if gap > largestGap {
			largestGap = gap
		}
	}
	p.LargestGapDays = largestGap

	monthCounts := make(map[string]int)
	for _, t := range sorted {
		monthCounts[t.Format("2006-01")]++
	}
	var months []string
	for m := range monthCounts {
		months = append(months, m)
	}
	sort.Strings(months)
	for _, m := range months {
		p.Histogram = append(p.Histogram, MonthBucket{Label: m, Count: monthCounts[m]})
	}

	return p
}

func profileBoolean(values []any) *BooleanProfile {
	p := &BooleanProfile{}
	for _, v := range values {
		if v == nil {
			p.NullCount++
			continue
		}
		b, _ := v.(bool)
		if b {
			p.TrueCount++
		} else {
			p.FalseCount++
		}
	}
	total := len(values)
	if total > 0 {
		p.TrueSharePct = round4(100 * float64(p.TrueCount) / float64(total))
		p.FalseSharePct = round4(100 * float64(p.FalseCount) / float64(total))
		p.NullSharePct = round4(100 * float64(p.NullCount) / float64(total))
	}
	return p
}

// GetSchema returns per-column metadata plus the schema sparklines (§4.6).
func (e *Engine) GetSchema(ctx context.Context, registry *DatasetRegistry, cfg ProfilerConfig, datasetID string) (*SchemaResult, error) {
	tableName, err := registry.Lookup(datasetID)
	if err != nil {
		return nil, err
	}
	reg, err := e.DescribeColumns(ctx, tableName)
	if err != nil {
		return nil, err
	}

	quotedTable := Quote(tableName)
	totalRows, err := e.scalarInt(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", quotedTable))
	if err != nil {
		return nil, NewInternalError("failed to count rows", err)
	}

	sampleSize := cfg.SchemaSparklineSampleSize
	if sampleSize <= 0 {
		sampleSize = 2000
	}
	buckets := cfg.SchemaSparklineBuckets
	if buckets <= 0 {
		buckets = 8
	}

	source := quotedTable
	if totalRows > sampleSize {
		source = fmt.Sprintf("(SELECT * FROM %s USING SAMPLE %d ROWS)", quotedTable, sampleSize)
	}

	columns := make([]SchemaColumn, 0, len(reg.Order))
	for _, name := range reg.Order {
		col := reg.ByName[name]
		quotedCol := Quote(col.Name)

		nullCount, err := e.scalarInt(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s IS NULL", quotedTable, quotedCol))
		if err != nil {
			return nil, NewInternalError("failed to count nulls", err)
		}
		uniqueCount, err := e.scalarInt(ctx, fmt.Sprintf("SELECT COUNT(DISTINCT %s) FROM %s", quotedCol, quotedTable))
		if err != nil {
			return nil, NewInternalError("failed to count distinct values", err)
		}

		rows, err := e.Query(ctx, fmt.Sprintf("SELECT %s FROM %s", quotedCol, source))
		if err != nil {
			return nil, NewInternalError("failed to sample column", err)
		}
		values := make([]any, 0, len(rows.Values))
		for _, r := range rows.Values {
			values = append(values, r[0])
		}

		sparkline := buildSparkline(col.SemanticType, values, buckets)

		columns = append(columns, SchemaColumn{
			Name:        col.Name,
			Type:        col.SemanticType,
			NullCount:   nullCount,
			TotalCount:  totalRows,
			UniqueCount: uniqueCount,
			Sparkline:   sparkline,
		})
	}

	return &SchemaResult{Columns: columns, RowCount: totalRows}, nil
}

func buildSparkline(semanticType SemanticType, values []any, buckets int) []int {
	nonNull := make([]any, 0, len(values))
	for _, v := range values {
		if v != nil {
			nonNull = append(nonNull, v)
		}
	}

	switch semanticType {
	case SemanticBoolean:
		trueCount, falseCount := 0, 0
		for _, v := range nonNull {
			if b, ok := v.(bool); ok && b {
				trueCount++
			} else {
				falseCount++
			}
		}
		return []int{falseCount, trueCount}
	case SemanticInteger, SemanticFloat, SemanticDate:
		return numericOrDateSparkline(semanticType, nonNull, buckets)
	default:
		return stringSparkline(nonNull, buckets)
	}
}

func numericOrDateSparkline(semanticType SemanticType, values []any, buckets int) []int {
	var nums []float64
	if semanticType == SemanticDate {
		for _, v := range values {
			if t, ok := v.(time.Time); ok {
				nums = append(nums, float64(t.Unix()))
			}
		}
	} else {
		nums = toFloats(values)
	}
	if len(nums) == 0 {
		return make([]int, buckets)
	}

	distinct := internal.NewSet[float64]()
	for _, n := range nums {
		distinct.Add(n)
	}
	if distinct.Size() <= buckets {
		counts := make(map[float64]int)
		for _, n := range nums {
			counts[n]++
		}
		keys := distinct.ToSlice()
		sort.Float64s(keys)
		out := make([]int, 0, len(keys))
		for _, k := range keys {
			out = append(out, counts[k])
		}
		for len(out) < buckets {
			out = append(out, 0)
		}
		return out[:buckets]
	}

	sort.Float64s(nums)
	min, max := nums[0], nums[len(nums)-1]
	out := make([]int, buckets)
	width := (max - min) / float64(buckets)
	if width == 0 {
		out[0] = len(nums)
		return out
	}
	for _, n := range nums {
		idx := int((n - min) / width)
		if idx >= buckets {
			idx = buckets - 1
		}
		if idx < 0 {
			idx = 0
		}
		out[idx]++
	}
	return out
}

func stringSparkline(values []any, buckets int) []int {
	counts := make(map[string]int)
	for _, v := range values {
		s, _ := v.(string)
		counts[s]++
	}
	type kv struct {
		val   string
		count int
	}
	list := make([]kv, 0, len(counts))
	for k, c := range counts {
		list = append(list, kv{k, c})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].count != list[j].count {
			return list[i].count > list[j].count
		}
		return list[i].val < list[j].val
	})
	out := make([]int, 0, buckets)
	for i := 0; i < buckets && i < len(list); i++ {
		out = append(out, list[i].count)
	}
	for len(out) < buckets {
		out = append(out, 0)
	}
	return out
}
