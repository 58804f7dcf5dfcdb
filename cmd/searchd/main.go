// cmd/searchd/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/cyclosproject/searchd/internal/adapters/db"
	redis_a "github.com/cyclosproject/searchd/internal/adapters/redis_adapter"
	"github.com/cyclosproject/searchd/internal/adapters/restapi"
	"github.com/cyclosproject/searchd/internal/core/domain"
	"github.com/cyclosproject/searchd/internal/core/ports"
	"github.com/cyclosproject/searchd/internal/handlers"
	"github.com/cyclosproject/searchd/internal/handlers/middleware"
	"github.com/cyclosproject/searchd/internal/pkg/config"
	"github.com/cyclosproject/searchd/internal/pkg/logger"
)

// Build information injected at compile time
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	slogger := logger.SetupLogger("debug", "json")

	slogger.Info("starting searchd",
		slog.String("version", Version),
		slog.String("build_time", BuildTime),
	)

	cfg, err := config.Load(slogger.Logger)
	if err != nil {
		slogger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slogger = logger.SetupLogger(cfg.App.LogLevel, cfg.App.LogFormat)
	slogger.Info("configuration loaded",
		slog.String("environment", cfg.App.Environment),
		slog.String("fetch_mode", cfg.Gateway.FetchMode),
	)

	ctx := context.Background()

	deps, err := initializeDependencies(ctx, cfg, slogger.Logger)
	if err != nil {
		slogger.Error("failed to initialize dependencies", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer deps.cleanup()

	server := setupHTTPServer(cfg, deps, slogger)

	serverErrors := make(chan error, 1)
	go func() {
		slogger.Info("starting HTTP server",
			slog.String("address", cfg.GetServerAddress()))
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slogger.Error("server error", slog.String("error", err.Error()))
		}
	case sig := <-shutdown:
		slogger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slogger.Error("failed to gracefully shutdown server", slog.String("error", err.Error()))
			server.Close()
		}

		deps.sessionHandler.CloseAll()

		slogger.Info("server shutdown complete")
	}
}

// dependencies holds all application dependencies
type dependencies struct {
	database       *db.Database
	redisClient    *redis.Client
	cache          *redis_a.Cache
	stateStore     *redis_a.StateStore
	fetcher        ports.DataFetcher
	asynqClient    *asynq.Client
	asynqInspector *asynq.Inspector
	sessionHandler *handlers.SessionHandler
	healthHandler  *handlers.HealthHandler
}

func (d *dependencies) cleanup() {
	if d.database != nil {
		d.database.Close()
	}
	if d.redisClient != nil {
		d.redisClient.Close()
	}
	if d.asynqClient != nil {
		d.asynqClient.Close()
	}
}

func initializeDependencies(ctx context.Context, cfg *config.Config, slogger *slog.Logger) (*dependencies, error) {
	deps := &dependencies{}

	slogger.Info("connecting to redis",
		slog.String("host", cfg.Redis.Host),
		slog.String("port", cfg.Redis.Port))

	redisClient := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddress(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	deps.redisClient = redisClient
	deps.cache = redis_a.NewCache(redisClient, cfg.Redis.TTL, slogger)
	deps.stateStore = redis_a.NewStateStore(deps.cache, cfg.Gateway.SessionTTL, slogger)

	// The data port is backed by the platform REST API or, for
	// deployments colocated with the database, a direct pool.
	switch cfg.Gateway.FetchMode {
	case "database":
		slogger.Info("connecting to database",
			slog.String("host", cfg.Database.Host),
			slog.String("database", cfg.Database.Name))

		database, err := db.NewDatabase(ctx, &db.Config{
			Host:               cfg.Database.Host,
			Port:               cfg.Database.Port,
			User:               cfg.Database.User,
			Password:           cfg.Database.Password,
			Database:           cfg.Database.Name,
			SSLMode:            cfg.Database.SSLMode,
			MaxConnections:     cfg.Database.MaxConnections,
			MinConnections:     cfg.Database.MinConnections,
			MaxConnLifetime:    cfg.Database.MaxConnLifetime,
			MaxConnIdleTime:    cfg.Database.MaxConnIdleTime,
			HealthCheckPeriod:  cfg.Database.HealthCheckPeriod,
			ConnectTimeout:     cfg.Database.ConnectTimeout,
			EnableQueryLogging: cfg.Database.EnableQueryLogging,
		}, slogger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		deps.database = database
		deps.fetcher = db.NewFetcher(database, slogger)
	default:
		var opts []restapi.Option
		if cfg.Gateway.BackendToken != "" {
			opts = append(opts, restapi.WithAuthToken(cfg.Gateway.BackendToken))
		}
		deps.fetcher = restapi.NewClient(cfg.Gateway.BackendURL, slogger, opts...)
	}

	asynqRedisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Asynq.RedisAddr,
		Password: cfg.Asynq.RedisPassword,
		DB:       cfg.Asynq.RedisDB,
	}
	deps.asynqClient = asynq.NewClient(asynqRedisOpt)
	deps.asynqInspector = asynq.NewInspector(asynqRedisOpt)

	deps.sessionHandler = handlers.NewSessionHandler(
		deps.fetcher,
		deps.stateStore,
		deps.cache,
		deps.asynqClient,
		screenSchemas(),
		handlers.SessionConfig{
			DebounceInterval:  cfg.Gateway.DebounceInterval,
			DefaultPageSize:   cfg.Gateway.DefaultPageSize,
			IgnorableStatuses: domain.DefaultIgnorableStatuses,
			ExportRetention:   cfg.Gateway.ExportRetention,
		},
		slogger,
	)
	deps.healthHandler = handlers.NewHealthHandler(
		deps.database,
		redisClient,
		deps.asynqInspector,
		cfg,
		slogger,
	)

	slogger.Info("all dependencies initialized successfully")
	return deps, nil
}

// screenSchemas declares the search screens this gateway serves.
func screenSchemas() []domain.ScreenSchema {
	return []domain.ScreenSchema{
		{
			Name: "account-history",
			Fields: map[string]domain.FieldSpec{
				"keywords":   {Kind: domain.FieldText, Param: "keywords"},
				"amount":     {Kind: domain.FieldAmountRange, Param: "amount"},
				"period":     {Kind: domain.FieldDateRange, Param: "period"},
				"categories": {Kind: domain.FieldIDList, Param: "category"},
				"direction":  {Kind: domain.FieldID, Param: "direction"},
				"expanded":   {Kind: domain.FieldFlag, Param: ""},
			},
			ResultTypes: []domain.ResultType{
				domain.ResultTypeList,
				domain.ResultTypeTiles,
				domain.ResultTypeCategories,
			},
		},
		{
			Name: "transfers-overview",
			Fields: map[string]domain.FieldSpec{
				"keywords": {Kind: domain.FieldText, Param: "keywords"},
				"channel":  {Kind: domain.FieldID, Param: "channel"},
				"kind":     {Kind: domain.FieldIDList, Param: "kind"},
				"amount":   {Kind: domain.FieldAmountRange, Param: "amount"},
				"period":   {Kind: domain.FieldDateRange, Param: "period"},
			},
			ResultTypes: []domain.ResultType{
				domain.ResultTypeList,
			},
		},
	}
}

func setupHTTPServer(cfg *config.Config, deps *dependencies, l *logger.Logger) *http.Server {
	mux := http.NewServeMux()

	var handler http.Handler = mux

	if cfg.App.Environment != "test" {
		handler = middleware.RequestID(handler)
		handler = middleware.Logger(l)(handler)
		handler = middleware.Recovery(l.Logger)(handler)
	}

	if cfg.Security.RateLimitRequests > 0 {
		handler = middleware.RateLimit(cfg.Security.RateLimitRequests, cfg.Security.RateLimitDuration)(handler)
	}

	if len(cfg.Security.AllowedOrigins) > 0 {
		handler = middleware.CORS(cfg.Security.AllowedOrigins)(handler)
	}

	if cfg.Security.SecureHeaders {
		handler = middleware.SecureHeaders(handler)
	}

	mux.HandleFunc("GET /health", deps.healthHandler.Health)
	mux.HandleFunc("GET /ready", deps.healthHandler.Readiness)
	deps.sessionHandler.RegisterRoutes(mux)

	return &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        handler,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(l.Handler(), slog.LevelError),
	}
}
