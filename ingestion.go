package queryengine

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

// ValidateUploadFilename enforces §6's filename-safety rule: reject any
// upload whose basename differs from the full name, any of "", ".", "..",
// or a suffix outside the configured allow-list.
func ValidateUploadFilename(filename string, allowedSuffixes []string) error {
	if filename == "" || filename == "." || filename == ".." {
		return NewInvalidRequestError(ErrCodeInvalidFilename, "Invalid filename: empty or a path reference")
	}
	if filepath.Base(filename) != filename {
		return NewInvalidRequestError(ErrCodeInvalidFilename, "Invalid filename: must not contain path separators")
	}
	suffix := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range allowedSuffixes {
		if suffix == allowed {
			return nil
		}
	}
	return NewUnsupportedError(ErrCodeUnsupportedSuffix, fmt.Sprintf("unsupported file suffix %q", suffix)).
		WithDetail("filename", filename)
}

// ImportSession retains everything Import needs to finish what Discover
// started (§4.9).
type ImportSession struct {
	ImportID         string
	FilePath         string
	OriginalFilename string
	Format           string
	Entities         []string
	createdAt        time.Time
}

// ImportSessionStore is a capacity-bounded, TTL-expiring map of in-flight
// import sessions (SPEC_FULL.md's supplement of the "never GC'd" original
// behavior into "a bounded LRU... with a TTL... and a configurable cap").
// Sweeping is lazy: on every Get/Put, plus whenever a caller invokes Sweep
// explicitly. No background goroutine is spawned.
type ImportSessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	maxSize  int
	sessions map[string]*ImportSession
	order    []string // least recently put or fetched first, for LRU eviction
}

// NewImportSessionStore builds a store per IngestionConfig.
func NewImportSessionStore(cfg IngestionConfig) *ImportSessionStore {
	return &ImportSessionStore{
		ttl:      cfg.ImportSessionTTL,
		maxSize:  cfg.MaxImportSessions,
		sessions: make(map[string]*ImportSession),
	}
}

// Put registers a session, evicting the least recently used entry if at
// capacity.
func (s *ImportSessionStore) Put(sess *ImportSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked(time.Now())
	if _, exists := s.sessions[sess.ImportID]; !exists && s.maxSize > 0 && len(s.sessions) >= s.maxSize {
		s.evictOldestLocked()
	}
	sess.createdAt = time.Now()
	s.sessions[sess.ImportID] = sess
	s.order = append(s.order, sess.ImportID)
}

// Get returns the session for importID, or nil if it's missing or expired.
func (s *ImportSessionStore) Get(importID string) *ImportSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked(time.Now())
	sess, ok := s.sessions[importID]
	if !ok {
		return nil
	}
	for i, id := range s.order {
		if id == importID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.order = append(s.order, importID)
	return sess
}

// Delete removes a session (called on successful import per §4.9).
func (s *ImportSessionStore) Delete(importID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, importID)
}

// Sweep removes all sessions expired as of now. Exposed so a caller can
// invoke it periodically; never called implicitly from a background
// goroutine.
func (s *ImportSessionStore) Sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked(now)
}

func (s *ImportSessionStore) sweepLocked(now time.Time) {
	if s.ttl <= 0 {
		return
	}
	kept := s.order[:0]
	for _, id := range s.order {
		sess, ok := s.sessions[id]
		if !ok {
			continue
		}
		if now.Sub(sess.createdAt) > s.ttl {
			delete(s.sessions, id)
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
}

func (s *ImportSessionStore) evictOldestLocked() {
	for len(s.order) > 0 {
		oldest := s.order[0]
		s.order = s.order[1:]
		if _, ok := s.sessions[oldest]; ok {
			delete(s.sessions, oldest)
			return
		}
	}
}

const syntheticDataEntity = "data"

// Discover implements the first phase of ingestion (§4.9): for CSV/Parquet
// it yields the synthetic entity "data"; for SQLite it lists tables; for
// Excel it lists sheet names.
func (e *Engine) Discover(ctx context.Context, store *ImportSessionStore, filePath, originalFilename, format string) (*DiscoverResult, error) {
	var entities []string
	var err error

	switch format {
	case "csv", "parquet":
		entities = []string{syntheticDataEntity}
	case "sqlite":
		entities, err = e.listSQLiteTables(ctx, filePath)
	case "xlsx":
		entities, err = listExcelSheets(filePath)
	default:
		return nil, NewUnsupportedError(ErrCodeUnsupportedImport, fmt.Sprintf("unsupported import format %q", format))
	}
	if err != nil {
		return nil, err
	}

	importID := uuid.NewString()
	store.Put(&ImportSession{
		ImportID:         importID,
		FilePath:         filePath,
		OriginalFilename: originalFilename,
		Format:           format,
		Entities:         entities,
	})

	return &DiscoverResult{
		ImportID:          importID,
		Name:              baseNameWithoutExt(originalFilename),
		Format:            format,
		Entities:          entities,
		RequiresSelection: len(entities) > 1,
	}, nil
}

func (e *Engine) listSQLiteTables(ctx context.Context, filePath string) ([]string, error) {
	rows, err := e.Query(ctx, "SELECT name FROM sqlite_scan(?, 'sqlite_master') WHERE type = 'table'", filePath)
	if err != nil {
		return nil, NewInternalError("failed to list sqlite tables", err)
	}
	names := make([]string, 0, len(rows.Values))
	for _, r := range rows.Values {
		if s, ok := r[0].(string); ok {
			names = append(names, s)
		}
	}
	return names, nil
}

func listExcelSheets(filePath string) ([]string, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, NewInvalidRequestError(ErrCodeInvalidSpec, "failed to open excel file").WithCause(err)
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

func baseNameWithoutExt(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Import implements the second phase of ingestion (§4.9): one dataset per
// selected entity, created atomically — an unknown entity fails the whole
// import with nothing registered.
func (e *Engine) Import(ctx context.Context, store *ImportSessionStore, registry *DatasetRegistry, req ImportRequest) (*ImportResult, error) {
	sess := store.Get(req.ImportID)
	if sess == nil {
		return nil, NewNotFoundError(ErrCodeUnknownImportSess, "unknown or expired import session").WithDetail("importId", req.ImportID)
	}

	entities := req.SelectedEntities
	if req.ImportMode == "all" {
		entities = sess.Entities
	}
	if len(entities) == 0 {
		return nil, NewInvalidRequestError(ErrCodeInvalidSpec, "no entities selected for import")
	}

	known := make(map[string]bool, len(sess.Entities))
	for _, ent := range sess.Entities {
		known[ent] = true
	}
	for _, entity := range entities {
		if !known[entity] {
			return nil, NewInvalidRequestError(ErrCodeInvalidSpec, fmt.Sprintf("unknown entity %q for this import session", entity)).
				WithDetail("entity", entity)
		}
	}

	datasets := make([]DatasetSummary, 0, len(entities))
	for _, entity := range entities {
		summary, err := e.importOneEntity(ctx, registry, sess, entity, req.DatasetNameMode)
		if err != nil {
			return nil, err
		}
		datasets = append(datasets, *summary)
	}

	store.Delete(req.ImportID)
	return &ImportResult{ImportID: req.ImportID, Datasets: datasets}, nil
}

func (e *Engine) importOneEntity(ctx context.Context, registry *DatasetRegistry, sess *ImportSession, entity, nameMode string) (*DatasetSummary, error) {
	tableName := "ds_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	var createSQL string
	switch sess.Format {
	case "csv":
		createSQL = fmt.Sprintf("CREATE TABLE %s AS SELECT * FROM read_csv_auto(?)", Quote(tableName))
	case "parquet":
		createSQL = fmt.Sprintf("CREATE TABLE %s AS SELECT * FROM read_parquet(?)", Quote(tableName))
	case "sqlite":
		createSQL = fmt.Sprintf("CREATE TABLE %s AS SELECT * FROM sqlite_scan(?, %s)", Quote(tableName), sqlStringLiteral(entity))
	case "xlsx":
		if err := e.loadExcelSheet(ctx, sess.FilePath, entity, tableName); err != nil {
			return nil, err
		}
		return e.finishImport(ctx, registry, tableName, entity, sess, nameMode)
	default:
		return nil, NewUnsupportedError(ErrCodeUnsupportedImport, fmt.Sprintf("unsupported import format %q", sess.Format))
	}

	if _, err := e.Exec(ctx, createSQL, sess.FilePath); err != nil {
		return nil, NewInternalError(fmt.Sprintf("failed to import entity %q", entity), err)
	}

	return e.finishImport(ctx, registry, tableName, entity, sess, nameMode)
}

// sqlStringLiteral renders a single-quoted SQL literal for contexts (table
// function arguments) where DuckDB does not accept a bound parameter; entity
// names originate from our own Discover call, not from the request body, so
// this is not attacker-controlled input.
func sqlStringLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (e *Engine) loadExcelSheet(ctx context.Context, filePath, sheet, tableName string) error {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return NewInvalidRequestError(ErrCodeInvalidSpec, "failed to open excel file").WithCause(err)
	}
	defer f.Close()

	sheetRows, err := f.GetRows(sheet)
	if err != nil {
		return NewInvalidRequestError(ErrCodeInvalidSpec, fmt.Sprintf("failed to read sheet %q", sheet)).WithCause(err)
	}
	if len(sheetRows) == 0 {
		return NewInvalidRequestError(ErrCodeInvalidSpec, fmt.Sprintf("sheet %q is empty", sheet))
	}

	header := sheetRows[0]
	quotedCols := make([]string, len(header))
	for i, h := range header {
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		quotedCols[i] = Quote(h)
	}

	createCols := make([]string, len(quotedCols))
	for i, c := range quotedCols {
		createCols[i] = c + " VARCHAR"
	}
	if _, err := e.Exec(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", Quote(tableName), strings.Join(createCols, ", "))); err != nil {
		return NewInternalError("failed to create excel staging table", err)
	}

	placeholders := make([]string, len(quotedCols))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	insertSQL := fmt.Sprintf("INSERT INTO %s VALUES (%s)", Quote(tableName), strings.Join(placeholders, ", "))

	for _, row := range sheetRows[1:] {
		args := make([]any, len(quotedCols))
		for i := range quotedCols {
			if i < len(row) {
				args[i] = row[i]
			} else {
				args[i] = nil
			}
		}
		if _, err := e.Exec(ctx, insertSQL, args...); err != nil {
			return NewInternalError("failed to stage excel row", err)
		}
	}
	return nil
}

func (e *Engine) finishImport(ctx context.Context, registry *DatasetRegistry, tableName, entity string, sess *ImportSession, nameMode string) (*DatasetSummary, error) {
	displayName := entity
	if nameMode == "filename_entity" {
		displayName = baseNameWithoutExt(sess.OriginalFilename) + "_" + entity
	}

	datasetID, err := registry.Register(tableName, displayName, sess.Format)
	if err != nil {
		return nil, err
	}

	reg, err := e.DescribeColumns(ctx, tableName)
	if err != nil {
		return nil, err
	}
	rowCount, err := e.scalarInt(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", Quote(tableName)))
	if err != nil {
		return nil, NewInternalError("failed to count imported rows", err)
	}

	cols := make([]ColumnDescriptor, 0, len(reg.Order))
	for _, name := range reg.Order {
		cols = append(cols, reg.ByName[name])
	}

	return &DatasetSummary{ID: datasetID, Name: displayName, RowCount: rowCount, Columns: cols}, nil
}

// ImportSingleStep bypasses discovery for single-step CSV/Parquet uploads
// (§4.9 "Single-step CSV/Parquet uploads bypass discovery").
func (e *Engine) ImportSingleStep(ctx context.Context, registry *DatasetRegistry, filePath, originalFilename, format string) (*DatasetSummary, error) {
	sess := &ImportSession{FilePath: filePath, OriginalFilename: originalFilename, Format: format}
	return e.importOneEntity(ctx, registry, sess, syntheticDataEntity, "entity_only")
}
