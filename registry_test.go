package queryengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatasetRegistryRegisterAndLookup(t *testing.T) {
	reg := NewDatasetRegistry()
	id, err := reg.Register("ds_abc123", "sales", "csv")
	require.NoError(t, err)
	assert.Len(t, id, 12)

	tableName, err := reg.Lookup(id)
	require.NoError(t, err)
	assert.Equal(t, "ds_abc123", tableName)
}

func TestDatasetRegistryLookupUnknown(t *testing.T) {
	reg := NewDatasetRegistry()
	_, err := reg.Lookup("nonexistent")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestDatasetRegistryDistinctIDsPerRegistration(t *testing.T) {
	reg := NewDatasetRegistry()
	id1, err := reg.Register("ds_one", "one", "csv")
	require.NoError(t, err)
	id2, err := reg.Register("ds_two", "two", "csv")
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)
}
