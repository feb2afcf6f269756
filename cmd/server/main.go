package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/greenconsole/internal/config"
	"github.com/mamadbah2/greenconsole/internal/offline"
	"github.com/mamadbah2/greenconsole/internal/offline/sqlitestore"
	"github.com/mamadbah2/greenconsole/internal/repository/credentials"
	"github.com/mamadbah2/greenconsole/internal/repository/sheets"
	"github.com/mamadbah2/greenconsole/internal/scheduler"
	"github.com/mamadbah2/greenconsole/internal/server/handlers"
	"github.com/mamadbah2/greenconsole/internal/server/router"
	"github.com/mamadbah2/greenconsole/internal/service/console"
	reportingsvc "github.com/mamadbah2/greenconsole/internal/service/reporting"
	"github.com/mamadbah2/greenconsole/pkg/clients/greenapi"
	"github.com/mamadbah2/greenconsole/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Debug))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	credentialStore, closeCredentials := openCredentialStore(ctx, cfg, baseLogger)
	defer closeCredentials()

	cacheStorage, closeCache := openCacheStorage(cfg, baseLogger)
	defer closeCache()

	// Page origin fetches are answered from STATIC_DIR; everything else goes out over
	// the default transport so the worker never intercepts its own fetches.
	network := offline.NewNetworkFetcher(nil, cfg.GreenAPI.Timeout)
	originFetcher, err := offline.NewOriginFetcher(cfg.Server.PublicOrigin, os.DirFS(cfg.Server.StaticDir), network)
	if err != nil {
		baseLogger.Fatal("failed to init origin fetcher", zap.Error(err))
	}

	registry := offline.NewRegistry(cfg.Server.PublicOrigin, originFetcher, logger.Named(baseLogger, "offline.registry"))
	worker := offline.NewWorker(offline.Options{
		Prefix:      cfg.Cache.Prefix,
		Version:     cfg.Cache.Version,
		Origin:      cfg.Server.PublicOrigin,
		APIPatterns: []*regexp.Regexp{regexp.MustCompile(cfg.GreenAPI.HostPattern)},
		Retention:   cfg.Cache.Retention,
	}, cacheStorage, originFetcher, logger.Named(baseLogger, "offline.worker"))

	if err := registry.Register(ctx, worker); err != nil {
		baseLogger.Warn("cache worker not activated, waiting for SKIP_WAITING", zap.Error(err))
	}
	defer worker.WaitRevalidations()

	gatewayClient := greenapi.NewClient(cfg.GreenAPI, registry)

	opts := console.Options{Debug: cfg.Debug}
	var (
		journalReader handlers.JournalReader
		callReporter  handlers.CallReporter
		weeklyReports scheduler.Reporter
	)
	if cfg.Sheets.Enabled() {
		sheetsRepo, err := sheets.NewGoogleSheetRepository(ctx, cfg.Sheets, baseLogger.Named("repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
		}
		if err := sheetsRepo.EnsureHeader(ctx); err != nil {
			baseLogger.Warn("journal header not written", zap.Error(err))
		}
		journal := sheets.NewJournal(sheetsRepo)
		reportingSvc := reportingsvc.NewService(sheetsRepo, baseLogger.Named("svc.reporting"))
		opts.Journal = journal
		journalReader = journal
		callReporter = reportingSvc
		weeklyReports = reportingSvc
		baseLogger.Info("call journal enabled", zap.String("range", cfg.Sheets.Range))
	} else {
		baseLogger.Info("google sheets not configured, call journal disabled")
	}

	consoleSvc := console.NewService(gatewayClient, credentialStore, opts, baseLogger.Named("svc.console"))
	if creds := consoleSvc.LoadCredentials(ctx); !creds.IsZero() {
		baseLogger.Info("stored credentials loaded", zap.String("instance_id", creds.InstanceID))
	}

	consoleHandler := handlers.NewConsoleHandler(consoleSvc, baseLogger.Named("handlers.console"))
	journalHandler := handlers.NewJournalHandler(journalReader, callReporter, baseLogger.Named("handlers.journal"))
	workerHandler := handlers.NewWorkerHandler(registry, baseLogger.Named("handlers.worker"))
	engine := router.New(consoleHandler, journalHandler, workerHandler, registry, baseLogger.Named("router"))

	sched := scheduler.NewScheduler(*cfg, registry, weeklyReports, consoleSvc, baseLogger.Named("scheduler"))
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.GreenAPI.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port), zap.String("origin", cfg.Server.PublicOrigin))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func openCredentialStore(ctx context.Context, cfg *config.Config, baseLogger *zap.Logger) (credentials.Store, func()) {
	if cfg.Credentials.Backend != config.CredentialsBackendMongo {
		baseLogger.Info("using file credential store", zap.String("path", cfg.Credentials.Path))
		return credentials.NewFileStore(cfg.Credentials.Path), func() {}
	}

	mongoStore, err := credentials.NewMongoStore(ctx, cfg.MongoDB.URI, cfg.MongoDB.DBName)
	if err != nil {
		baseLogger.Fatal("failed to init mongodb credential store", zap.Error(err))
	}
	baseLogger.Info("using mongodb credential store", zap.String("db", cfg.MongoDB.DBName))

	return mongoStore, func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoStore.Close(closeCtx); err != nil {
			baseLogger.Error("failed to close mongodb connection", zap.Error(err))
		}
	}
}

func openCacheStorage(cfg *config.Config, baseLogger *zap.Logger) (offline.Storage, func()) {
	if cfg.Cache.Backend != config.CacheBackendSQLite {
		return offline.NewMemoryStorage(), func() {}
	}

	store, err := sqlitestore.Open(cfg.Cache.SQLitePath)
	if err != nil {
		baseLogger.Fatal("failed to open sqlite cache storage", zap.Error(err))
	}
	baseLogger.Info("using sqlite cache storage", zap.String("path", cfg.Cache.SQLitePath))

	return store, func() {
		if err := store.Close(); err != nil {
			baseLogger.Error("failed to close sqlite cache storage", zap.Error(err))
		}
	}
}
