package queryengine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateUploadFilenameRejectsEmptyAndDotted(t *testing.T) {
	require.Error(t, ValidateUploadFilename("", []string{".csv"}))
	require.Error(t, ValidateUploadFilename(".", []string{".csv"}))
	require.Error(t, ValidateUploadFilename("..", []string{".csv"}))
}

func TestValidateUploadFilenameRejectsPathSeparators(t *testing.T) {
	err := ValidateUploadFilename("../etc/passwd.csv", []string{".csv"})
	require.Error(t, err)
	assert.True(t, IsInvalidRequest(err))
}

func TestValidateUploadFilenameRejectsUnsupportedSuffix(t *testing.T) {
	err := ValidateUploadFilename("report.exe", []string{".csv", ".parquet"})
	require.Error(t, err)
	assert.True(t, IsUnsupported(err))
}

func TestValidateUploadFilenameAcceptsAllowedSuffix(t *testing.T) {
	require.NoError(t, ValidateUploadFilename("sales.CSV", []string{".csv"}))
}

func TestBaseNameWithoutExt(t *testing.T) {
	assert.Equal(t, "sales", baseNameWithoutExt("/tmp/uploads/sales.csv"))
	assert.Equal(t, "report", baseNameWithoutExt("report.xlsx"))
}

func TestSqlStringLiteralEscapesQuotes(t *testing.T) {
	assert.Equal(t, "'o''brien'", sqlStringLiteral("o'brien"))
}

func TestImportSessionStoreRoundTrip(t *testing.T) {
	store := NewImportSessionStore(IngestionConfig{ImportSessionTTL: time.Hour, MaxImportSessions: 10})
	store.Put(&ImportSession{ImportID: "abc", Format: "csv", Entities: []string{"data"}})

	got := store.Get("abc")
	require.NotNil(t, got)
	assert.Equal(t, "csv", got.Format)

	store.Delete("abc")
	assert.Nil(t, store.Get("abc"))
}

func TestImportSessionStoreExpiresByTTL(t *testing.T) {
	store := NewImportSessionStore(IngestionConfig{ImportSessionTTL: time.Minute, MaxImportSessions: 10})
	store.Put(&ImportSession{ImportID: "expiring", Format: "csv"})

	store.Sweep(time.Now().Add(2 * time.Minute))
	assert.Nil(t, store.Get("expiring"))
}

func TestImportSessionStoreEvictsOldestAtCapacity(t *testing.T) {
	store := NewImportSessionStore(IngestionConfig{ImportSessionTTL: time.Hour, MaxImportSessions: 2})
	store.Put(&ImportSession{ImportID: "one", Format: "csv"})
	store.Put(&ImportSession{ImportID: "two", Format: "csv"})
	store.Put(&ImportSession{ImportID: "three", Format: "csv"})

	assert.Nil(t, store.Get("one"))
	assert.NotNil(t, store.Get("two"))
	assert.NotNil(t, store.Get("three"))
}
