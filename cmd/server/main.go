package main

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	qe "github.com/tableloom/queryengine"
	"go.uber.org/zap"
)

// Server wires the query engine's exported API to chi routes (§6). It holds
// no domain logic of its own — dispatch, multipart parsing, and the JSON
// envelope are the only things this package adds.
type Server struct {
	engine   *qe.Engine
	registry *qe.DatasetRegistry
	sessions *qe.ImportSessionStore
	cfg      *qe.Config
	router   chi.Router
}

// NewServer builds a Server and registers its routes.
func NewServer(engine *qe.Engine, cfg *qe.Config) *Server {
	s := &Server{
		engine:   engine,
		registry: qe.NewDatasetRegistry(),
		sessions: qe.NewImportSessionStore(cfg.Ingestion),
		cfg:      cfg,
		router:   chi.NewRouter(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)

	s.router.Get("/healthz", s.handleHealthz)

	s.router.Route("/api/datasets", func(r chi.Router) {
		r.Post("/upload", s.handleUpload)
		r.Post("/discover", s.handleDiscover)
		r.Post("/import", s.handleImport)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/schema", s.handleSchema)
			r.Get("/page", s.handlePage)
			r.Get("/profile/{column}", s.handleProfile)
			r.Post("/query", s.handleQuery)
			r.Post("/table-query", s.handleTableQuery)
			r.Post("/execute", s.handleExecuteCell)
			r.Get("/export", s.handleExport)
		})
	})
}

func (s *Server) Start(addr string) error {
	zap.S().Infow("starting server", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	sugar := logger.Sugar()

	cfg := qe.DefaultConfig()
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Port = port
	}
	if dbPath := os.Getenv("DUCKDB_PATH"); dbPath != "" {
		cfg.DuckDB.DBPath = dbPath
	}
	if workDir := os.Getenv("UPLOAD_WORKING_DIR"); workDir != "" {
		cfg.Ingestion.WorkingDir = workDir
	}

	if err := cfg.Validate(); err != nil {
		sugar.Fatalf("invalid configuration: %v", err)
	}

	engine, err := qe.NewEngine(cfg.DuckDB)
	if err != nil {
		sugar.Fatalf("failed to start duckdb engine: %v", err)
	}
	defer engine.Close()

	server := NewServer(engine, cfg)
	if err := server.Start(":" + cfg.Server.Port); err != nil {
		sugar.Fatalf("server error: %v", err)
	}
}
