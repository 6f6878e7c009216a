package queryengine

import "time"

// Config consolidates settings for the query engine process.
type Config struct {
	DuckDB    DuckDBConfig    `json:"duckdb"`
	Server    ServerConfig    `json:"server"`
	Profiler  ProfilerConfig  `json:"profiler"`
	Ingestion IngestionConfig `json:"ingestion"`
	Logging   LoggingConfig   `json:"logging"`
}

// DuckDBConfig configures the embedded DuckDB connection.
type DuckDBConfig struct {
	Enabled        bool     `json:"enabled"`
	DBPath         string   `json:"dbPath"` // ":memory:" when empty
	MaxConnections int      `json:"maxConnections"`
	Extensions     []string `json:"extensions"`
	EnableS3       bool     `json:"enableS3"`
	EnableParquet  bool     `json:"enableParquet"`
	S3AccessKey    string   `json:"s3AccessKey,omitempty"`
	S3SecretKey    string   `json:"s3SecretKey,omitempty"`
	S3Region       string   `json:"s3Region,omitempty"`
	S3Endpoint     string   `json:"s3Endpoint,omitempty"`
}

// ServerConfig configures the HTTP boundary (cmd/server).
type ServerConfig struct {
	Port               string        `json:"port"`
	DefaultPageSize    int           `json:"defaultPageSize"`
	MaxPageSize        int           `json:"maxPageSize"`
	RequestTimeout     time.Duration `json:"requestTimeout"`
	MaxUploadSizeBytes int64         `json:"maxUploadSizeBytes"`
}

// ProfilerConfig configures column profiling (§4.6). The sample-row limit is
// deliberately NOT here: the spec treats it as an internal constant (§9 Open
// Questions), not a configuration surface.
type ProfilerConfig struct {
	SchemaSparklineSampleSize int `json:"schemaSparklineSampleSize"`
	SchemaSparklineBuckets    int `json:"schemaSparklineBuckets"`
	TopValuesLimit            int `json:"topValuesLimit"`
	HistogramBins             int `json:"histogramBins"`
}

// IngestionConfig configures file ingestion (§4.9, §5).
type IngestionConfig struct {
	WorkingDir         string        `json:"workingDir"`
	AllowedSuffixes    []string      `json:"allowedSuffixes"`
	ImportSessionTTL   time.Duration `json:"importSessionTTL"`
	MaxImportSessions  int           `json:"maxImportSessions"`
}

// LoggingConfig holds logger settings. cmd/server builds its zap logger with
// zap.NewProduction() and does not read these fields.
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"` // "json" or "console"
}

// DefaultConfig returns sensible defaults for a desktop-oriented deployment.
func DefaultConfig() *Config {
	return &Config{
		DuckDB: DuckDBConfig{
			Enabled:        true,
			DBPath:         ":memory:",
			MaxConnections: 1,
			EnableParquet:  true,
		},
		Server: ServerConfig{
			Port:               "8080",
			DefaultPageSize:    50,
			MaxPageSize:        10000,
			RequestTimeout:     30 * time.Second,
			MaxUploadSizeBytes: 512 * 1024 * 1024,
		},
		Profiler: ProfilerConfig{
			SchemaSparklineSampleSize: 2000,
			SchemaSparklineBuckets:    8,
			TopValuesLimit:            10,
			HistogramBins:             20,
		},
		Ingestion: IngestionConfig{
			WorkingDir:        "./data/uploads",
			AllowedSuffixes:   []string{".csv", ".parquet", ".xlsx", ".sqlite", ".db"},
			ImportSessionTTL:  1 * time.Hour,
			MaxImportSessions: 256,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Server.MaxPageSize < c.Server.DefaultPageSize {
		return &ConfigError{Field: "server.maxPageSize", Message: "must be greater than or equal to defaultPageSize"}
	}
	if c.Server.MaxPageSize <= 0 || c.Server.MaxPageSize > 10000 {
		return &ConfigError{Field: "server.maxPageSize", Message: "must be in [1, 10000]"}
	}
	if c.Profiler.HistogramBins <= 0 {
		return &ConfigError{Field: "profiler.histogramBins", Message: "must be greater than 0"}
	}
	if c.Ingestion.MaxImportSessions <= 0 {
		return &ConfigError{Field: "ingestion.maxImportSessions", Message: "must be greater than 0"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ConfigError) Error() string {
	return "config validation error for field '" + e.Field + "': " + e.Message
}
