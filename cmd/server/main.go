package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/sitecost/internal/config"
	"github.com/mamadbah2/sitecost/internal/events/kafka"
	"github.com/mamadbah2/sitecost/internal/repository/cache"
	"github.com/mamadbah2/sitecost/internal/repository/mongodb"
	"github.com/mamadbah2/sitecost/internal/repository/sheets"
	"github.com/mamadbah2/sitecost/internal/repository/sqldb"
	"github.com/mamadbah2/sitecost/internal/scheduler"
	"github.com/mamadbah2/sitecost/internal/server/handlers"
	"github.com/mamadbah2/sitecost/internal/server/router"
	accountsvc "github.com/mamadbah2/sitecost/internal/service/accounts"
	auditsvc "github.com/mamadbah2/sitecost/internal/service/audit"
	entrysvc "github.com/mamadbah2/sitecost/internal/service/entries"
	reportingsvc "github.com/mamadbah2/sitecost/internal/service/reporting"
	splitsvc "github.com/mamadbah2/sitecost/internal/service/split"
	suppliersvc "github.com/mamadbah2/sitecost/internal/service/suppliers"
	"github.com/mamadbah2/sitecost/pkg/clients/notify"
	"github.com/mamadbah2/sitecost/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Server.LogLevel))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startCtx, cancelStart := context.WithTimeout(ctx, 30*time.Second)
	defer cancelStart()

	dialect, err := sqldb.ParseDialect(cfg.Database.Driver)
	if err != nil {
		baseLogger.Fatal("invalid database driver", zap.Error(err))
	}
	store, err := sqldb.Open(startCtx, dialect, cfg.Database.URL)
	if err != nil {
		baseLogger.Fatal("failed to open ledger database", zap.Error(err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			baseLogger.Error("failed to close ledger database", zap.Error(err))
		}
	}()

	var jsonCache interface {
		reportingsvc.Cache
		accountsvc.Cache
	} = cache.Noop{}
	if cfg.Redis.Addr != "" {
		client, err := cache.Connect(startCtx, cfg.Redis.Addr)
		if err != nil {
			baseLogger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer func() { _ = client.Close() }()
		jsonCache = cache.NewRedisCache(client, baseLogger.Named("repo.cache"))
		baseLogger.Info("redis cache enabled", zap.String("addr", cfg.Redis.Addr))
	} else {
		baseLogger.Warn("redis address missing, caches disabled")
	}

	deps := reportingsvc.Dependencies{
		Cache:    jsonCache,
		CacheTTL: cfg.Redis.DashboardCacheTTL,
	}
	if loc, err := time.LoadLocation(cfg.Reporting.Timezone); err == nil {
		deps.Location = loc
	}

	if cfg.MongoDB.URI != "" {
		mongoRepo, err := mongodb.NewMongoDBRepository(startCtx, cfg.MongoDB.URI, cfg.MongoDB.DBName)
		if err != nil {
			baseLogger.Fatal("failed to init mongodb repository", zap.Error(err))
		}
		defer func() {
			if err := mongoRepo.Close(context.Background()); err != nil {
				baseLogger.Error("failed to close mongodb connection", zap.Error(err))
			}
		}()
		deps.Snapshots = mongoRepo
	} else {
		baseLogger.Warn("mongodb uri missing, dashboard snapshots disabled")
	}

	if cfg.Sheets.Enabled() {
		sheetsRepo, err := sheets.NewGoogleSheetRepository(startCtx, cfg.Sheets, baseLogger.Named("repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
		}
		deps.Sheets = sheetsRepo
	} else {
		baseLogger.Warn("google sheets not configured, sheet export disabled")
	}

	if cfg.Notify.WebhookURL != "" {
		deps.Notifier = notify.NewWebhookClient(cfg.Notify.WebhookURL)
	} else {
		baseLogger.Warn("notify webhook missing, weekly summary disabled")
	}

	var sink auditsvc.Sink
	if len(cfg.Kafka.Brokers) > 0 {
		publisher := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic, baseLogger.Named("events.kafka"))
		defer func() {
			if err := publisher.Close(); err != nil {
				baseLogger.Error("failed to close kafka publisher", zap.Error(err))
			}
		}()
		sink = publisher
		baseLogger.Info("audit events enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.AuditTopic))
	}

	recorder := auditsvc.NewRecorder(sink, baseLogger.Named("svc.audit"))
	reportingSvc := reportingsvc.NewService(store, deps, baseLogger.Named("svc.reporting"))
	recorder.OnChange(reportingSvc.Invalidate)

	entrySvc := entrysvc.NewService(store, recorder, baseLogger.Named("svc.entries"))
	splitSvc := splitsvc.NewService(store, recorder, baseLogger.Named("svc.split"))
	supplierSvc := suppliersvc.NewService(store, recorder, baseLogger.Named("svc.suppliers"))
	auditSvc := auditsvc.NewService(store, baseLogger.Named("svc.audit"))
	accountSvc := accountsvc.NewService(store, jsonCache, cfg.Auth, baseLogger.Named("svc.accounts"))

	if err := accountSvc.SeedDefaults(startCtx, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword); err != nil {
		baseLogger.Fatal("failed to seed default accounts", zap.Error(err))
	}

	engine := router.New(router.Handlers{
		Auth:      handlers.NewAuthHandler(accountSvc, baseLogger.Named("handlers.auth")),
		Entries:   handlers.NewEntryHandler(entrySvc, splitSvc, baseLogger.Named("handlers.entries")),
		Suppliers: handlers.NewSupplierHandler(supplierSvc, entrySvc, baseLogger.Named("handlers.suppliers")),
		Reports:   handlers.NewReportHandler(reportingSvc, auditSvc, baseLogger.Named("handlers.reports")),
		Accounts:  handlers.NewAccountHandler(accountSvc, baseLogger.Named("handlers.accounts")),
	}, baseLogger.Named("router"))

	sched, err := scheduler.NewScheduler(cfg.Reporting, reportingSvc, baseLogger.Named("scheduler"))
	if err != nil {
		baseLogger.Fatal("failed to init scheduler", zap.Error(err))
	}
	if err := sched.Register(); err != nil {
		baseLogger.Fatal("failed to schedule reports", zap.Error(err))
	}
	sched.Start()
	defer sched.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port), zap.String("database", string(dialect)))
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
