package queryengine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

func TestIndexOfString(t *testing.T) {
	assert.Equal(t, 1, indexOfString([]string{"a", "b", "c"}, "b"))
	assert.Equal(t, -1, indexOfString([]string{"a", "b", "c"}, "z"))
}

func TestToFloatSupportedTypes(t *testing.T) {
	f, ok := toFloat(int64(5))
	assert.True(t, ok)
	assert.Equal(t, 5.0, f)

	_, ok = toFloat("not a number")
	assert.False(t, ok)
}

func TestGoToStarlarkRoundTripsPrimitives(t *testing.T) {
	v, err := goToStarlark("hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", starlarkToGo(v))

	v, err = goToStarlark(int64(42))
	require.NoError(t, err)
	assert.Equal(t, int64(42), starlarkToGo(v))

	v, err = goToStarlark(nil)
	require.NoError(t, err)
	assert.Nil(t, starlarkToGo(v))
}

func TestGoToStarlarkFormatsTimeAsISO(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	v, err := goToStarlark(ts)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01T12:00:00Z", string(v.(starlark.String)))
}

func TestStarlarkToGoNormalizesFloatInfinity(t *testing.T) {
	assert.Nil(t, starlarkToGo(starlark.Float(posInfVar)))
}

func TestFrameGetReturnsSeriesForKnownColumn(t *testing.T) {
	frame := &starlarkFrame{Columns: []string{"a", "b"}, Rows: [][]any{{int64(1), "x"}, {int64(2), "y"}}}
	v, found, err := frame.Get(starlark.String("a"))
	require.NoError(t, err)
	require.True(t, found)
	series, ok := v.(*starlarkSeries)
	require.True(t, ok)
	assert.Equal(t, []any{int64(1), int64(2)}, series.Values)
}

func TestFrameGetMissingColumn(t *testing.T) {
	frame := &starlarkFrame{Columns: []string{"a"}, Rows: [][]any{{int64(1)}}}
	_, found, err := frame.Get(starlark.String("missing"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFrameLenAndTruth(t *testing.T) {
	frame := &starlarkFrame{Columns: []string{"a"}, Rows: [][]any{{int64(1)}}}
	assert.Equal(t, 1, frame.Len())
	assert.True(t, bool(frame.Truth()))

	empty := &starlarkFrame{}
	assert.False(t, bool(empty.Truth()))
}
