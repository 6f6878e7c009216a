package queryengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTripSorted(t *testing.T) {
	token, err := EncodeCursor("age", DirAsc, 42, int64(30), false)
	require.NoError(t, err)

	payload, err := DecodeCursor(token, "age", DirAsc)
	require.NoError(t, err)
	assert.Equal(t, int64(42), payload.R)
	assert.False(t, payload.N)
	assert.EqualValues(t, 30, payload.K)
}

func TestCursorRoundTripUnsorted(t *testing.T) {
	token, err := EncodeCursor("", DirAsc, 7, nil, true)
	require.NoError(t, err)

	payload, err := DecodeCursor(token, "", DirAsc)
	require.NoError(t, err)
	assert.Equal(t, int64(7), payload.R)
}

func TestCursorRoundTripNullAnchor(t *testing.T) {
	token, err := EncodeCursor("age", DirDesc, 3, nil, true)
	require.NoError(t, err)

	payload, err := DecodeCursor(token, "age", DirDesc)
	require.NoError(t, err)
	assert.True(t, payload.N)
	assert.Nil(t, payload.K)
}

func TestCursorDecodeRejectsStaleSortColumn(t *testing.T) {
	token, err := EncodeCursor("age", DirAsc, 1, int64(1), false)
	require.NoError(t, err)

	_, err = DecodeCursor(token, "name", DirAsc)
	require.Error(t, err)
	assert.True(t, IsInvalidRequest(err))
}

func TestCursorDecodeRejectsStaleDirection(t *testing.T) {
	token, err := EncodeCursor("age", DirAsc, 1, int64(1), false)
	require.NoError(t, err)

	_, err = DecodeCursor(token, "age", DirDesc)
	require.Error(t, err)
}

func TestCursorDecodeRejectsMalformedToken(t *testing.T) {
	_, err := DecodeCursor("not-valid-base64!!!", "age", DirAsc)
	require.Error(t, err)
	assert.True(t, IsInvalidRequest(err))
}
