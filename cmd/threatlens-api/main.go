package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/solhaga/threatlens/internal/adapter/handler"
	"github.com/solhaga/threatlens/internal/adapter/loader"
	"github.com/solhaga/threatlens/internal/adapter/provider"
	"github.com/solhaga/threatlens/internal/adapter/repository"
	"github.com/solhaga/threatlens/internal/adapter/telemetry"
	"github.com/solhaga/threatlens/internal/core/domain"
	"github.com/solhaga/threatlens/internal/core/ports"
)

func main() {
	// Load .env file if it exists (optional)
	_ = godotenv.Load()

	logger := initLogger()
	defer logger.Sync()

	ctx := context.Background()

	// Catalog: local file or remote feed
	catalog, err := loadCatalog(ctx)
	if err != nil {
		logger.Fatal("failed to load threat catalog", zap.Error(err))
	}
	logger.Info("threat catalog loaded", zap.Int("threats", catalog.Len()))

	// Attack tree (optional)
	var tree domain.Node
	if treePath := os.Getenv("TREE_PATH"); treePath != "" {
		tree, err = loader.LoadTree(treePath, catalog)
		if err != nil {
			logger.Fatal("failed to load attack tree", zap.Error(err))
		}
		logger.Info("attack tree loaded and validated", zap.String("path", treePath))
	} else {
		logger.Warn("no TREE_PATH configured, tree endpoints disabled")
	}

	// Assessment history (optional)
	var repo ports.AssessmentRepository
	if dbURL := os.Getenv("ASSESSMENT_DB_URL"); dbURL != "" {
		dbPool, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer dbPool.Close()
		repo = repository.NewPostgresRepository(dbPool)
		logger.Info("assessment history enabled")
	} else {
		logger.Warn("no ASSESSMENT_DB_URL configured, assessment history disabled")
	}

	telemetry.InitMetrics()
	logger.Info("Prometheus metrics initialized")

	workers := getEnvInt("SIM_WORKERS", runtime.NumCPU())
	restHandler := handler.NewRestHandler(catalog, tree, repo, logger, workers)

	router := mux.NewRouter()

	// Health check
	router.HandleFunc("/api/v1/health", restHandler.Health).Methods("GET")

	// Threat endpoints
	router.HandleFunc("/api/v1/threats/ranked", restHandler.RankedThreats).Methods("GET")
	router.HandleFunc("/api/v1/threats/export", restHandler.ExportThreats).Methods("GET")

	// Attack tree endpoints
	router.HandleFunc("/api/v1/tree/evaluate", restHandler.EvaluateTree).Methods("GET")
	router.HandleFunc("/api/v1/tree/simulate", restHandler.SimulateTree).Methods("GET")

	// Assessment history
	router.HandleFunc("/api/v1/assessments", restHandler.ListAssessments).Methods("GET")

	// Metrics endpoint (requires authentication)
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Middleware
	router.Use(loggingMiddleware(logger))
	router.Use(authMiddleware(logger))

	port := getEnv("REST_API_PORT", "8080")
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		logger.Info("ThreatLens REST API listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped gracefully")
}

// initLogger sets up the zap logger to log to the console in a human readable
// format.
func initLogger() *zap.Logger {
	prodConfig := zap.NewProductionConfig()
	prodConfig.Encoding = "console"
	prodConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	prodConfig.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	logger, _ := prodConfig.Build()
	return logger
}

// loadCatalog resolves the catalog from CATALOG_PATH (local file) or
// CATALOG_URL (remote feed with retry and circuit breaker). Exactly one must
// be configured.
func loadCatalog(ctx context.Context) (*domain.Catalog, error) {
	if path := os.Getenv("CATALOG_PATH"); path != "" {
		return loader.LoadCatalog(path)
	}
	if url := os.Getenv("CATALOG_URL"); url != "" {
		source := provider.NewHTTPCatalogSource(nil, url, provider.DefaultHTTPCatalogConfig())
		fetchCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		return source.FetchCatalog(fetchCtx)
	}
	return nil, errMissingCatalogConfig
}

var errMissingCatalogConfig = &configError{"set CATALOG_PATH or CATALOG_URL"}

type configError struct{ msg string }

func (e *configError) Error() string { return e.msg }

func loggingMiddleware(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

func authMiddleware(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip auth for health check
			if r.URL.Path == "/api/v1/health" {
				next.ServeHTTP(w, r)
				return
			}

			token := r.Header.Get("Authorization")
			expectedToken := os.Getenv("REST_API_AUTH_TOKEN")

			// If no token configured, allow all requests (development mode)
			if expectedToken == "" {
				logger.Warn("REST_API_AUTH_TOKEN not set, auth disabled")
				next.ServeHTTP(w, r)
				return
			}

			if token != "Bearer "+expectedToken {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultValue
}
