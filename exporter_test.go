package queryengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCsvFieldNilIsEmpty(t *testing.T) {
	assert.Equal(t, "", csvField(nil))
}

func TestCsvFieldStringPassthrough(t *testing.T) {
	assert.Equal(t, "hello", csvField("hello"))
}

func TestCsvFieldStringifiesNonStringValues(t *testing.T) {
	assert.Equal(t, "42", csvField(int64(42)))
	assert.Equal(t, "true", csvField(true))
}
