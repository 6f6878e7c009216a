package queryengine

import (
	"fmt"
	"strings"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// starlarkFrame is the read-only `df` value exposed to a code cell: a
// defensive snapshot of a dataset's columns and rows (§4.10).
type starlarkFrame struct {
	Columns []string
	Rows    [][]any // row-major, aligned to Columns
}

var (
	_ starlark.Value    = (*starlarkFrame)(nil)
	_ starlark.Mapping  = (*starlarkFrame)(nil)
	_ starlark.Sequence = (*starlarkFrame)(nil)
	_ starlark.HasAttrs = (*starlarkFrame)(nil)
)

func (f *starlarkFrame) String() string {
	return fmt.Sprintf("<dataframe %d rows x %d cols>", len(f.Rows), len(f.Columns))
}
func (f *starlarkFrame) Type() string          { return "dataframe" }
func (f *starlarkFrame) Freeze()               {}
func (f *starlarkFrame) Truth() starlark.Bool  { return starlark.Bool(len(f.Rows) > 0) }
func (f *starlarkFrame) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: dataframe") }
func (f *starlarkFrame) Len() int              { return len(f.Rows) }

func (f *starlarkFrame) Iterate() starlark.Iterator {
	return &frameRowIterator{frame: f}
}

type frameRowIterator struct {
	frame *starlarkFrame
	idx   int
}

func (it *frameRowIterator) Next(p *starlark.Value) bool {
	if it.idx >= len(it.frame.Rows) {
		return false
	}
	*p = rowToDict(it.frame.Columns, it.frame.Rows[it.idx])
	it.idx++
	return true
}
func (it *frameRowIterator) Done() {}

func (f *starlarkFrame) Get(key starlark.Value) (starlark.Value, bool, error) {
	name, ok := starlark.AsString(key)
	if !ok {
		return nil, false, nil
	}
	colIdx := indexOfString(f.Columns, name)
	if colIdx < 0 {
		return nil, false, nil
	}
	values := make([]any, len(f.Rows))
	for i, row := range f.Rows {
		values[i] = row[colIdx]
	}
	return &starlarkSeries{Name: name, Values: values}, true, nil
}

func (f *starlarkFrame) Attr(name string) (starlark.Value, error) {
	switch name {
	case "columns":
		items := make([]starlark.Value, len(f.Columns))
		for i, c := range f.Columns {
			items[i] = starlark.String(c)
		}
		return starlark.NewList(items), nil
	case "shape":
		return starlark.Tuple{starlark.MakeInt(len(f.Rows)), starlark.MakeInt(len(f.Columns))}, nil
	case "head":
		return starlark.NewBuiltin("head", f.head), nil
	case "to_rows":
		return starlark.NewBuiltin("to_rows", f.toRows), nil
	default:
		return nil, nil
	}
}

func (f *starlarkFrame) AttrNames() []string {
	return []string{"columns", "shape", "head", "to_rows"}
}

func (f *starlarkFrame) head(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	n := 5
	if err := starlark.UnpackArgs("head", args, kwargs, "n?", &n); err != nil {
		return nil, err
	}
	if n > len(f.Rows) {
		n = len(f.Rows)
	}
	if n < 0 {
		n = 0
	}
	return &starlarkFrame{Columns: f.Columns, Rows: f.Rows[:n]}, nil
}

func (f *starlarkFrame) toRows(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	items := make([]starlark.Value, len(f.Rows))
	for i, row := range f.Rows {
		items[i] = rowToDict(f.Columns, row)
	}
	return starlark.NewList(items), nil
}

func rowToDict(columns []string, row []any) *starlark.Dict {
	d := starlark.NewDict(len(columns))
	for i, c := range columns {
		v, err := goToStarlark(row[i])
		if err != nil {
			v = starlark.None
		}
		d.SetKey(starlark.String(c), v)
	}
	return d
}

func indexOfString(items []string, s string) int {
	for i, v := range items {
		if v == s {
			return i
		}
	}
	return -1
}

// starlarkSeries is the value returned by df["column"]: one column's values.
type starlarkSeries struct {
	Name   string
	Values []any
}

var (
	_ starlark.Value     = (*starlarkSeries)(nil)
	_ starlark.Sequence  = (*starlarkSeries)(nil)
	_ starlark.Indexable = (*starlarkSeries)(nil)
	_ starlark.HasAttrs  = (*starlarkSeries)(nil)
)

func (s *starlarkSeries) String() string       { return fmt.Sprintf("<series %q len=%d>", s.Name, len(s.Values)) }
func (s *starlarkSeries) Type() string         { return "series" }
func (s *starlarkSeries) Freeze()              {}
func (s *starlarkSeries) Truth() starlark.Bool { return starlark.Bool(len(s.Values) > 0) }
func (s *starlarkSeries) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable type: series")
}
func (s *starlarkSeries) Len() int { return len(s.Values) }

func (s *starlarkSeries) Index(i int) starlark.Value {
	v, err := goToStarlark(s.Values[i])
	if err != nil {
		return starlark.None
	}
	return v
}

func (s *starlarkSeries) Iterate() starlark.Iterator {
	return &seriesIterator{series: s}
}

type seriesIterator struct {
	series *starlarkSeries
	idx    int
}

func (it *seriesIterator) Next(p *starlark.Value) bool {
	if it.idx >= len(it.series.Values) {
		return false
	}
	*p = it.series.Index(it.idx)
	it.idx++
	return true
}
func (it *seriesIterator) Done() {}

func (s *starlarkSeries) Attr(name string) (starlark.Value, error) {
	switch name {
	case "sum":
		return starlark.NewBuiltin("sum", s.reduce(func(a, b float64) float64 { return a + b }, 0)), nil
	case "mean":
		return starlark.NewBuiltin("mean", s.mean), nil
	case "max":
		return starlark.NewBuiltin("max", s.reduce(func(a, b float64) float64 {
			if b > a {
				return b
			}
			return a
		}, negInf)), nil
	case "min":
		return starlark.NewBuiltin("min", s.reduce(func(a, b float64) float64 {
			if b < a {
				return b
			}
			return a
		}, posInfVar)), nil
	default:
		return nil, nil
	}
}

func (s *starlarkSeries) AttrNames() []string { return []string{"sum", "mean", "max", "min"} }

var negInf, posInfVar float64

func init() {
	negInf = negInfValue()
	posInfVar = posInfValue()
}

func negInfValue() float64 {
	var zero float64
	return -1 / zero
}

func posInfValue() float64 {
	var zero float64
	return 1 / zero
}

func (s *starlarkSeries) reduce(fn func(a, b float64) float64, seed float64) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		acc := seed
		for _, v := range s.Values {
			f, ok := toFloat(v)
			if !ok {
				continue
			}
			acc = fn(acc, f)
		}
		return starlark.Float(acc), nil
	}
}

func (s *starlarkSeries) mean(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	sum, count := 0.0, 0
	for _, v := range s.Values {
		f, ok := toFloat(v)
		if !ok {
			continue
		}
		sum += f
		count++
	}
	if count == 0 {
		return starlark.None, nil
	}
	return starlark.Float(sum / float64(count)), nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// newPandasModule builds the `pd` name exposed to code cells: a minimal
// data-frame library handle providing DataFrame(dict_of_lists).
func newPandasModule() *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: "pd",
		Members: starlark.StringDict{
			"DataFrame": starlark.NewBuiltin("DataFrame", pdDataFrame),
		},
	}
}

func pdDataFrame(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var data *starlark.Dict
	if err := starlark.UnpackArgs("DataFrame", args, kwargs, "data", &data); err != nil {
		return nil, err
	}
	columns := make([]string, 0, data.Len())
	series := make([][]any, 0, data.Len())
	maxLen := 0
	for _, item := range data.Items() {
		key, ok := starlark.AsString(item[0])
		if !ok {
			return nil, fmt.Errorf("DataFrame: column names must be strings")
		}
		iterable, ok := item[1].(starlark.Iterable)
		if !ok {
			return nil, fmt.Errorf("DataFrame: column %q must be an iterable of values", key)
		}
		var col []any
		it := iterable.Iterate()
		defer it.Done()
		var v starlark.Value
		for it.Next(&v) {
			col = append(col, starlarkToGo(v))
		}
		columns = append(columns, key)
		series = append(series, col)
		if len(col) > maxLen {
			maxLen = len(col)
		}
	}
	rows := make([][]any, maxLen)
	for r := 0; r < maxLen; r++ {
		row := make([]any, len(columns))
		for c, col := range series {
			if r < len(col) {
				row[c] = col[r]
			}
		}
		rows[r] = row
	}
	return &starlarkFrame{Columns: columns, Rows: rows}, nil
}

// goToStarlark converts a value read out of DuckDB into a Starlark value.
func goToStarlark(v any) (starlark.Value, error) {
	switch val := v.(type) {
	case nil:
		return starlark.None, nil
	case string:
		return starlark.String(val), nil
	case bool:
		return starlark.Bool(val), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case float64:
		return starlark.Float(val), nil
	case time.Time:
		return starlark.String(val.UTC().Format(time.RFC3339)), nil
	default:
		return starlark.String(fmt.Sprintf("%v", val)), nil
	}
}

// starlarkToGo converts a Starlark value back to a plain Go value for JSON
// shaping (§4.10 result normalization).
func starlarkToGo(v starlark.Value) any {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil
	case starlark.Bool:
		return bool(val)
	case starlark.String:
		return string(val)
	case starlark.Int:
		i, _ := val.Int64()
		return i
	case starlark.Float:
		f := float64(val)
		return normalizeFloat(f)
	case *starlarkSeries:
		out := make([]any, len(val.Values))
		copy(out, val.Values)
		return out
	case *starlarkFrame:
		rows := make([]map[string]any, len(val.Rows))
		for i, row := range val.Rows {
			obj := make(map[string]any, len(val.Columns))
			for j, c := range val.Columns {
				obj[c] = row[j]
			}
			rows[i] = obj
		}
		return rows
	case starlark.Tuple:
		out := make([]any, val.Len())
		for i := 0; i < val.Len(); i++ {
			out[i] = starlarkToGo(val.Index(i))
		}
		return out
	case *starlark.List:
		out := make([]any, val.Len())
		for i := 0; i < val.Len(); i++ {
			out[i] = starlarkToGo(val.Index(i))
		}
		return out
	case *starlark.Dict:
		out := make(map[string]any, val.Len())
		for _, item := range val.Items() {
			k, _ := starlark.AsString(item[0])
			out[k] = starlarkToGo(item[1])
		}
		return out
	default:
		return strings.TrimSpace(val.String())
	}
}

// normalizeFloat maps NaN/Inf to nil per §4.10's result normalization.
func normalizeFloat(f float64) any {
	if f != f { // NaN
		return nil
	}
	if f == posInfVar || f == negInf {
		return nil
	}
	return f
}
