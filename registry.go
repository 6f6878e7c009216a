package queryengine

import (
	"encoding/hex"
	"sync"

	"github.com/google/uuid"
)

// datasetEntry is one registered dataset's metadata.
type datasetEntry struct {
	TableName    string
	DisplayName  string
	SourceFormat string
}

// DatasetRegistry maps an opaque dataset id to its backing table name and
// ingestion metadata (C8, §4.8). It never removes entries: datasets live for
// the lifetime of the process.
type DatasetRegistry struct {
	mu      sync.RWMutex
	entries map[string]datasetEntry
}

// NewDatasetRegistry returns an empty registry.
func NewDatasetRegistry() *DatasetRegistry {
	return &DatasetRegistry{entries: make(map[string]datasetEntry)}
}

// Register assigns a fresh dataset id to tableName and returns it.
func (r *DatasetRegistry) Register(tableName, displayName, sourceFormat string) (string, error) {
	id, err := newDatasetID()
	if err != nil {
		return "", NewInternalError("failed to generate dataset id", err)
	}
	r.mu.Lock()
	r.entries[id] = datasetEntry{TableName: tableName, DisplayName: displayName, SourceFormat: sourceFormat}
	r.mu.Unlock()
	return id, nil
}

// Lookup resolves a dataset id to its table name, returning a NotFound
// EngineError (UNKNOWN_DATASET) if the id is unregistered.
func (r *DatasetRegistry) Lookup(datasetID string) (string, error) {
	r.mu.RLock()
	entry, ok := r.entries[datasetID]
	r.mu.RUnlock()
	if !ok {
		return "", NewNotFoundError(ErrCodeUnknownDataset, "unknown dataset").WithDetail("datasetId", datasetID)
	}
	return entry.TableName, nil
}

// Entry returns the full registry entry for a dataset id.
func (r *DatasetRegistry) Entry(datasetID string) (datasetEntry, error) {
	r.mu.RLock()
	entry, ok := r.entries[datasetID]
	r.mu.RUnlock()
	if !ok {
		return datasetEntry{}, NewNotFoundError(ErrCodeUnknownDataset, "unknown dataset").WithDetail("datasetId", datasetID)
	}
	return entry, nil
}

// newDatasetID generates a 12-hex-character token from the low bytes of a
// fresh UUID, independent of any particular backing table name.
func newDatasetID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	b := id[:]
	return hex.EncodeToString(b[len(b)-6:]), nil
}
