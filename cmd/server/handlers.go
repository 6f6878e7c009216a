package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	qe "github.com/tableloom/queryengine"
	"go.uber.org/zap"
)

// handleHealthz reports whether the embedded engine is reachable.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.HealthCheck(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
}

// stageUpload validates and persists an uploaded file, returning its staged
// path, original filename, and detected format (§5 Resource policy, §6
// filename safety).
func (s *Server) stageUpload(r *http.Request) (path, originalFilename, format string, err error) {
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", "", "", qe.NewInvalidRequestError(qe.ErrCodeInvalidSpec, "missing multipart file field \"file\"")
	}
	defer file.Close()

	if verr := qe.ValidateUploadFilename(header.Filename, s.cfg.Ingestion.AllowedSuffixes); verr != nil {
		return "", "", "", verr
	}

	if err := os.MkdirAll(s.cfg.Ingestion.WorkingDir, 0o755); err != nil {
		return "", "", "", qe.NewInternalError("failed to create upload working directory", err)
	}

	stagedName := uuid.NewString() + "_" + header.Filename
	stagedPath := filepath.Join(s.cfg.Ingestion.WorkingDir, stagedName)

	out, err := os.Create(stagedPath)
	if err != nil {
		return "", "", "", qe.NewInternalError("failed to stage upload", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, file); err != nil {
		return "", "", "", qe.NewInternalError("failed to write staged upload", err)
	}

	return stagedPath, header.Filename, formatFromSuffix(header.Filename), nil
}

func formatFromSuffix(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return "csv"
	case ".parquet":
		return "parquet"
	case ".xlsx":
		return "xlsx"
	case ".sqlite", ".db":
		return "sqlite"
	default:
		return ""
	}
}

// handleUpload implements POST /api/datasets/upload: single-step CSV/Parquet
// import that bypasses discovery (§4.9, §6).
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	path, originalFilename, format, err := s.stageUpload(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if format != "csv" && format != "parquet" {
		writeError(w, qe.NewUnsupportedError(qe.ErrCodeUnsupportedImport, "single-step upload only supports csv/parquet; use /discover for other formats"))
		return
	}

	summary, err := s.engine.ImportSingleStep(r.Context(), s.registry, path, originalFilename, format)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, summary)
}

// handleDiscover implements POST /api/datasets/discover (§4.9, §6).
func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	path, originalFilename, format, err := s.stageUpload(r)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := s.engine.Discover(r.Context(), s.sessions, path, originalFilename, format)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, result)
}

// handleImport implements POST /api/datasets/import (§4.9, §6).
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req qe.ImportRequest
	if err := readJSONBody(r, &req); err != nil {
		writeError(w, qe.NewInvalidRequestError(qe.ErrCodeInvalidSpec, "malformed import request body"))
		return
	}

	result, err := s.engine.Import(r.Context(), s.sessions, s.registry, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, result)
}

// handleSchema implements GET /api/datasets/{id}/schema (§4.6, §6).
func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	datasetID := chi.URLParam(r, "id")
	result, err := s.engine.GetSchema(r.Context(), s.registry, s.cfg.Profiler, datasetID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, result)
}

// handlePage implements GET /api/datasets/{id}/page (§4.4, §6).
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	datasetID := chi.URLParam(r, "id")
	filters, err := queryFilters(r)
	if err != nil {
		writeError(w, err)
		return
	}

	pageSize := queryInt(r, "page_size", s.cfg.Server.DefaultPageSize)
	req := qe.PageRequest{
		DatasetID:  datasetID,
		Page:       queryInt(r, "page", 0),
		PageSize:   pageSize,
		SortColumn: r.URL.Query().Get("sort_column"),
		SortDir:    qe.SortDirection(r.URL.Query().Get("sort_direction")),
		Filters:    filters,
		Cursor:     r.URL.Query().Get("cursor"),
	}

	result, err := s.engine.GetPage(r.Context(), s.registry, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, result)
}

// handleProfile implements GET /api/datasets/{id}/profile/{column} (§4.6, §6).
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	datasetID := chi.URLParam(r, "id")
	column := chi.URLParam(r, "column")

	report, err := s.engine.ProfileColumn(r.Context(), s.registry, s.cfg.Profiler, datasetID, column)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, report)
}

// handleQuery implements POST /api/datasets/{id}/query: runs the body's SQL
// unmodified against this dataset, bound as the temporary view "data" (§5, §6).
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	datasetID := chi.URLParam(r, "id")
	var body struct {
		SQL string `json:"sql"`
	}
	if err := readJSONBody(r, &body); err != nil {
		writeError(w, qe.NewInvalidRequestError(qe.ErrCodeInvalidSpec, "malformed query request body"))
		return
	}

	tableName, err := s.registry.Lookup(datasetID)
	if err != nil {
		writeError(w, err)
		return
	}

	start := time.Now()
	rows, err := s.engine.RunQuery(r.Context(), tableName, body.SQL)
	if err != nil {
		writeError(w, qe.NewInvalidRequestError(qe.ErrCodeQueryExecution, "query failed to execute").WithCause(err))
		return
	}
	elapsed := time.Since(start)

	outRows := make([]map[string]any, 0, len(rows.Values))
	for _, rowVals := range rows.Values {
		obj := make(map[string]any, len(rows.Columns))
		for i, c := range rows.Columns {
			obj[c] = rowVals[i]
		}
		outRows = append(outRows, obj)
	}

	writeSuccess(w, http.StatusOK, map[string]any{
		"columns":       rows.Columns,
		"rows":          outRows,
		"rowCount":      len(outRows),
		"executionTime": elapsed.Milliseconds(),
	})
}

// handleTableQuery implements POST /api/datasets/{id}/table-query (§4.5, §6).
func (s *Server) handleTableQuery(w http.ResponseWriter, r *http.Request) {
	datasetID := chi.URLParam(r, "id")
	var spec qe.TableQuerySpec
	if err := readJSONBody(r, &spec); err != nil {
		writeError(w, qe.NewInvalidRequestError(qe.ErrCodeInvalidSpec, "malformed table-query request body"))
		return
	}

	result, err := s.engine.RunTableQuery(r.Context(), s.registry, datasetID, spec)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, result)
}

// handleExport implements GET /api/datasets/{id}/export (§4.7, §6).
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	datasetID := chi.URLParam(r, "id")
	filters, err := queryFilters(r)
	if err != nil {
		writeError(w, err)
		return
	}

	entry, err := s.registry.Entry(datasetID)
	if err != nil {
		writeError(w, err)
		return
	}

	sortColumn := r.URL.Query().Get("sort_column")
	sortDir := qe.SortDirection(r.URL.Query().Get("sort_direction"))

	data, err := s.engine.ExportCSV(r.Context(), s.registry, datasetID, sortColumn, sortDir, filters)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", entry.DisplayName+".csv"))
	if _, err := w.Write(data); err != nil {
		zap.S().Warnw("failed to write csv export response", "err", err)
	}
}

// handleExecuteCell implements the ad-hoc code cell contract of C10 bound to
// a dataset frame, exposed at POST /api/datasets/{id}/execute.
func (s *Server) handleExecuteCell(w http.ResponseWriter, r *http.Request) {
	datasetID := chi.URLParam(r, "id")
	var body struct {
		Code string `json:"code"`
	}
	if err := readJSONBody(r, &body); err != nil {
		writeError(w, qe.NewInvalidRequestError(qe.ErrCodeInvalidSpec, "malformed code cell request body"))
		return
	}

	result, err := s.engine.Execute(r.Context(), s.registry, datasetID, body.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, result)
}
