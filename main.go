package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/ekaya-inc/emistr-mcp/pkg/adapters/datasource"
	_ "github.com/ekaya-inc/emistr-mcp/pkg/adapters/datasource/mssql"
	_ "github.com/ekaya-inc/emistr-mcp/pkg/adapters/datasource/mysql"
	_ "github.com/ekaya-inc/emistr-mcp/pkg/adapters/datasource/postgres"
	_ "github.com/ekaya-inc/emistr-mcp/pkg/adapters/datasource/sqlite"
	"github.com/ekaya-inc/emistr-mcp/pkg/anonymizer"
	"github.com/ekaya-inc/emistr-mcp/pkg/config"
	"github.com/ekaya-inc/emistr-mcp/pkg/handlers"
	"github.com/ekaya-inc/emistr-mcp/pkg/logging"
	"github.com/ekaya-inc/emistr-mcp/pkg/mcp"
	"github.com/ekaya-inc/emistr-mcp/pkg/mcp/tools"
	"github.com/ekaya-inc/emistr-mcp/pkg/metrics"
	"github.com/ekaya-inc/emistr-mcp/pkg/middleware"
	"github.com/ekaya-inc/emistr-mcp/pkg/query"
	"github.com/ekaya-inc/emistr-mcp/pkg/schema"
	"github.com/ekaya-inc/emistr-mcp/pkg/services"
	"github.com/ekaya-inc/emistr-mcp/pkg/tracing"
)

// Version is set at build time via ldflags
var Version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	flags, err := config.ParseFlags(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("Invalid arguments: %v", err)
	}
	if flags.ShowVersion {
		fmt.Println(Version)
		return
	}

	cfg, err := config.Load(flags, Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if flags.PrintConfig {
		out, err := cfg.YAML()
		if err != nil {
			log.Fatalf("%v", err)
		}
		fmt.Print(string(out))
		return
	}

	logger, err := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Configuration loaded",
		zap.String("version", cfg.Version),
		zap.String("env", cfg.Env),
		zap.String("driver", cfg.Database.Driver),
		zap.String("database", fmt.Sprintf("%s@%s:%d/%s", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)),
		zap.Bool("anonymization", cfg.Anonymization.Enabled),
		zap.Int("max_query_results", cfg.Limits.MaxQueryResults),
		zap.String("tracing_exporter", cfg.Tracing.Exporter),
	)
	if !cfg.Anonymization.Enabled {
		logger.Warn("Anonymization is disabled; personal data is returned in clear text")
	}

	tp, err := tracing.NewProvider(cfg.Tracing.Exporter, cfg.Tracing.SampleRatio, cfg.Version, logger)
	if err != nil {
		return err
	}
	otel.SetTracerProvider(tp)
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(flushCtx); err != nil {
			logger.Error("Failed to shut down tracer provider", zap.Error(err))
		}
	}()

	db, err := datasource.Open(ctx, cfg.Database.ToDatasource(), logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database pool", zap.Error(err))
		}
	}()

	introspector := schema.NewIntrospector(db.Dialect(), db.Schema(), logger)
	recorder := metrics.NewPrometheusRecorder()
	anon := anonymizer.New(cfg.Anonymization.Enabled)
	dispatcher := services.NewDispatcher(db,
		services.NewRepositories(db.Dialect(), query.NewRunner(introspector, logger), introspector),
		anon,
		logger,
		services.WithLimits(services.Limits{
			MaxQueryResults: cfg.Limits.MaxQueryResults,
			DefaultPageSize: cfg.Limits.DefaultPageSize,
		}),
		services.WithRecorder(recorder),
		services.WithTracer(tp.Tracer(services.TracerName)),
	)

	catalog := dispatcher.Catalog()
	mcpServer := mcp.NewServer(cfg.Version, logger)
	tools.RegisterHealthTool(mcpServer.MCP(), cfg.Version, db, logger.Named("health"))
	tools.RegisterEmistrTools(mcpServer.MCP(), catalog, dispatcher)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg.Version, cfg.Env, db, anon, logger.Named("health")).RegisterRoutes(mux)
	handlers.NewMCPHandler(mcpServer, catalog, logger.Named("mcp-http")).RegisterRoutes(mux)
	handlers.NewAPIHandler(dispatcher, logger.Named("api")).RegisterRoutes(mux)
	mux.Handle("GET /metrics", recorder.Handler())
	if cfg.DebugEndpoints {
		logger.Warn("Debug endpoints enabled; /debug/anonymization reveals source ids")
		handlers.NewDebugHandler(anon, logger.Named("debug")).RegisterRoutes(mux)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           middleware.Chain(mux, middleware.Recoverer(logger), middleware.RequestLogger(logger)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting emistr-mcp", zap.String("addr", srv.Addr), zap.String("version", cfg.Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
