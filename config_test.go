package queryengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
}

func TestConfigValidateRejectsInvertedPageSizes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.DefaultPageSize = 100
	cfg.Server.MaxPageSize = 50
	err := cfg.Validate()
	require.Error(t, err)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "server.maxPageSize", cfgErr.Field)
}

func TestConfigValidateRejectsZeroHistogramBins(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Profiler.HistogramBins = 0
	require.Error(t, cfg.Validate())
}

func TestConfigValidateRejectsZeroMaxImportSessions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Ingestion.MaxImportSessions = 0
	require.Error(t, cfg.Validate())
}
