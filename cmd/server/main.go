package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	inventoryapp "github.com/retail/backend/internal/application/inventory"
	salesapp "github.com/retail/backend/internal/application/sales"
	"github.com/retail/backend/internal/domain/inventory"
	"github.com/retail/backend/internal/infrastructure/cache"
	"github.com/retail/backend/internal/infrastructure/config"
	"github.com/retail/backend/internal/infrastructure/logger"
	"github.com/retail/backend/internal/infrastructure/persistence"
	"github.com/retail/backend/internal/infrastructure/scheduler"
	"github.com/retail/backend/internal/infrastructure/storage"
	"github.com/retail/backend/internal/infrastructure/telemetry"
	"github.com/retail/backend/internal/infrastructure/validation"
	"github.com/retail/backend/internal/interfaces/http/handler"
	"github.com/retail/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

//	@title			Retail Backend API
//	@version		1.0
//	@description	Batch ledger, channel stock and checkout for a retail store

//	@host		localhost:8080
//	@BasePath	/api/v1

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(logger.FromAppConfig(cfg.Log))
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	serviceName := cfg.Telemetry.ServiceName
	if serviceName == "" {
		serviceName = cfg.App.Name
	}

	log.Info("Starting retail backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	ctx := context.Background()

	// Telemetry: traces, metrics, logs, profiles
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       serviceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       serviceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}

	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       serviceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize log export", zap.Error(err))
	}
	if loggerProvider.IsEnabled() {
		log = loggerProvider.Bridge(log, zapcore.InfoLevel)
	}

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.ProfilingEnabled,
		ServerAddress:   cfg.Telemetry.PyroscopeAddress,
		ApplicationName: serviceName,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if profiler.IsEnabled() {
		tracerProvider.EnableSpanProfiles()
	}

	meter := meterProvider.Meter(serviceName)
	var retailMetrics *telemetry.RetailMetrics
	if cfg.Telemetry.MetricsEnabled {
		retailMetrics, err = telemetry.NewRetailMetrics(meter)
		if err != nil {
			log.Fatal("Failed to register retail metrics", zap.Error(err))
		}
	}

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connected", zap.String("driver", cfg.Database.Driver))

	dbSystem := "postgresql"
	if cfg.Database.Driver == "sqlite" {
		dbSystem = "sqlite"
	}
	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        dbSystem,
	}, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}

	// Repositories
	productRepo := persistence.NewGormProductRepository(db.DB)
	batchRepo := persistence.NewGormBatchRepository(db.DB)
	txLog := persistence.NewGormTransactionLog(db.DB)
	billRepo := persistence.NewGormBillRepository(db.DB)
	physicalStore := persistence.NewGormStoreStockRepository(db.DB, inventory.ChannelPhysical)
	onlineStore := persistence.NewGormStoreStockRepository(db.DB, inventory.ChannelOnline)
	inventoryScope := persistence.NewGormTransactionScope(db.DB)
	salesScope := persistence.NewGormSalesTransactionScope(db.DB)

	sessions, err := cache.NewSessionStoreFactory(cfg.Redis, cfg.Session,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	).CreateStore()
	if err != nil {
		log.Fatal("Failed to create bill session store", zap.Error(err))
	}

	// Worker pools
	pools, err := scheduler.NewPools(poolsConfig(cfg.Pools), log)
	if err != nil {
		log.Fatal("Failed to create worker pools", zap.Error(err))
	}
	if err := pools.Start(ctx); err != nil {
		log.Fatal("Failed to start worker pools", zap.Error(err))
	}

	// Application services
	ledger := inventoryapp.NewBatchLedgerService(batchRepo, productRepo, txLog, inventoryScope, log)
	physical := inventoryapp.NewChannelStockService(physicalStore, batchRepo, productRepo, inventoryScope, log)
	online := inventoryapp.NewChannelStockService(onlineStore, batchRepo, productRepo, inventoryScope, log)
	physical.SetRetailMetrics(retailMetrics)
	online.SetRetailMetrics(retailMetrics)
	stocks := inventoryapp.NewChannelStocks(physical, online)

	sales := salesapp.NewService(productRepo, billRepo, sessions, stocks, salesScope, log)
	sales.SetRetailMetrics(retailMetrics)

	archive, err := newBillArchive(ctx, &cfg.Archive, log)
	if err != nil {
		log.Fatal("Failed to initialize bill archive", zap.Error(err))
	}
	sales.SetArchive(archive, pools.Background)

	// Periodic stock checks on the background pool
	monitor := inventoryapp.NewStockMonitor(batchRepo, stocks, monitorConfig(cfg.Stock), log)
	monitor.SetRetailMetrics(retailMetrics)
	periodic := scheduler.NewPeriodicScheduler(pools.Background, log)
	if err := monitor.Register(periodic); err != nil {
		log.Fatal("Failed to schedule stock checks", zap.Error(err))
	}
	if err := periodic.Start(ctx); err != nil {
		log.Fatal("Failed to start periodic scheduler", zap.Error(err))
	}

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	validation.Setup()

	engine, err := router.NewEngine(router.EngineConfig{
		ServiceName:      serviceName,
		HTTP:             cfg.HTTP,
		TracingEnabled:   tracerProvider.IsEnabled(),
		ProfilingEnabled: profiler.IsEnabled(),
		Meter:            meter,
		Logger:           log,
	})
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	systemHandler := handler.NewSystemHandler(cfg.App.Name, version, db)
	billHandler := handler.NewBillHandler(sales)
	engine.GET("/health", systemHandler.Health)

	r := router.NewRouter(engine, router.WithAPIVersion("v1")).Register(
		systemHandler.Routes(),
		handler.NewInventoryHandler(ledger, cfg.Stock.ExpiringSoonDays).Routes(),
		handler.NewStoreHandler(stocks, pools.Inventory, cfg.Stock.LowStockThreshold).Routes(),
		billHandler.Routes(),
		billHandler.SalesRoutes(),
		handler.NewCheckoutHandler(sales, pools.API).Routes(),
	)
	r.Setup()
	for _, route := range r.Routes() {
		log.Debug("Route registered",
			zap.String("method", route.Method),
			zap.String("path", route.Path),
			zap.String("description", route.Description),
		)
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := periodic.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping periodic scheduler", zap.Error(err))
	}
	if err := pools.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping worker pools", zap.Error(err))
	}
	if err := sessions.Close(); err != nil {
		log.Error("Error closing session store", zap.Error(err))
	}
	if err := db.Close(); err != nil {
		log.Error("Error closing database", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Error("Error stopping profiler", zap.Error(err))
	}
	if err := loggerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down log export", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down metrics", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down tracing", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

func poolsConfig(c config.PoolsConfig) scheduler.PoolsConfig {
	out := scheduler.DefaultPoolsConfig()
	if c.API.Workers > 0 {
		out.API.Workers, out.API.QueueSize = c.API.Workers, c.API.QueueSize
	}
	if c.Inventory.Workers > 0 {
		out.Inventory.Workers, out.Inventory.QueueSize = c.Inventory.Workers, c.Inventory.QueueSize
	}
	if c.Background.Workers > 0 {
		out.Background.Workers, out.Background.QueueSize = c.Background.Workers, c.Background.QueueSize
	}
	return out
}

func monitorConfig(c config.StockConfig) inventoryapp.MonitorConfig {
	out := inventoryapp.DefaultMonitorConfig()
	if c.LowStockThreshold > 0 {
		out.LowStockThreshold = c.LowStockThreshold
	}
	if c.ExpiringSoonDays > 0 {
		out.ExpiringSoonDays = c.ExpiringSoonDays
	}
	if c.LowStockCheckInterval > 0 {
		out.LowStockInterval = c.LowStockCheckInterval
	}
	if c.ExpiryCheckInterval > 0 {
		out.ExpiredInterval = c.ExpiryCheckInterval
	}
	if c.StockSyncCheckInterval > 0 {
		out.SyncSummaryInterval = c.StockSyncCheckInterval
	}
	return out
}

// newBillArchive returns the S3 archive when enabled, otherwise an in-process one
func newBillArchive(ctx context.Context, cfg *config.ArchiveConfig, log *zap.Logger) (salesapp.BillArchive, error) {
	if !cfg.Enabled {
		log.Info("Bill archive disabled, keeping finalized bills in memory")
		return storage.NewMemoryBillArchive(cfg.Prefix), nil
	}
	archive, err := storage.NewS3BillArchive(cfg, storage.WithLogger(log))
	if err != nil {
		return nil, err
	}
	ensureCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := archive.EnsureBucket(ensureCtx); err != nil {
		return nil, err
	}
	log.Info("Bill archive ready", zap.String("bucket", archive.GetBucket()))
	return archive, nil
}
