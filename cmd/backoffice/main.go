package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/retailops/backoffice/pkg/audit"
	"github.com/retailops/backoffice/pkg/config"
	"github.com/retailops/backoffice/pkg/events"
	"github.com/retailops/backoffice/pkg/httputil"
	"github.com/retailops/backoffice/pkg/observability"
	"github.com/retailops/backoffice/pkg/webhooks"
)

func main() {
	configPath := flag.String("config", os.Getenv("BACKOFFICE_CONFIG"), "Path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	logger := observability.NewLogger(observability.ParseLogLevel(cfg.Observability.LogLevel), os.Stdout)
	metrics := observability.InitMetrics()
	ctx := context.Background()

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize OpenTelemetry")
	}

	db, err := sql.Open(cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to open database")
	}
	if err := db.Ping(); err != nil {
		logrus.WithError(err).Fatalf("Failed to connect to %s database", cfg.Storage.Driver)
	}

	store, err := webhooks.NewSQLStore(db)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize webhook store")
	}
	if subs, err := store.List(ctx); err == nil {
		active := 0
		for _, sub := range subs {
			if sub.Active {
				active++
			}
		}
		metrics.SubscriptionsActive.Set(float64(active))
	}

	var limiter webhooks.Limiter
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		limiter = webhooks.NewDistributedRateLimiter(client, cfg.Webhooks.RateLimit, cfg.Webhooks.RatePeriod)
		logrus.Info("Using Redis-backed webhook rate limiter")
	} else {
		limiter = webhooks.NewRateLimiter(cfg.Webhooks.RateLimit, cfg.Webhooks.RatePeriod)
	}

	deliverer, err := webhooks.NewDeliverer(store, limiter, webhooks.DelivererConfig{
		AttemptTimeout: cfg.Webhooks.DeliveryTimeout,
		MaxConcurrent:  cfg.Webhooks.MaxConcurrent,
	}, logger, metrics)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize delivery engine")
	}

	auditLogger, err := audit.NewDBLogger(db)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize audit logger")
	}

	var archiver audit.Archiver
	if cfg.Audit.ArchiveEnabled {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to load AWS configuration")
		}
		archiver = audit.NewS3Archiver(s3.NewFromConfig(awsCfg), cfg.Audit.ArchiveBucket)
	}
	retention := audit.NewRetention(auditLogger, archiver, audit.RetentionPolicy{
		RetentionDays:  cfg.Audit.RetentionDays,
		ArchiveEnabled: cfg.Audit.ArchiveEnabled,
		ArchivePrefix:  cfg.Audit.ArchivePrefix,
	}, logger)
	if err := retention.Start(); err != nil {
		logrus.WithError(err).Fatal("Failed to start audit retention")
	}

	dispatcher := events.NewDispatcher(logger, metrics)
	dispatcher.SetDeliverer(deliverer)
	dispatcher.SetAuditSink(audit.NewSink(auditLogger))
	registerHandlers(dispatcher, logger)

	router := mux.NewRouter()
	webhooks.NewHandlers(store, deliverer).RegisterRoutes(router)
	events.NewEmitHandlers(dispatcher).RegisterRoutes(router)

	handler := httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(logger),
		httputil.RecoveryMiddleware,
		httputil.MaxBytesMiddleware(1<<20),
	)(router)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	healthMux.Handle("/metrics", metrics.Handler())
	healthServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthMux,
	}

	go func() {
		logrus.Infof("Health/metrics server listening on %s", healthServer.Addr)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("Health server failed")
		}
	}()
	go func() {
		logrus.Infof("Back-office dispatch service listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server failed")
		}
	}()

	sm := observability.NewShutdownManager(logger, server, cfg.Server.ShutdownTimeout)
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		retention.Stop()
		return nil
	})
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		return providers.Shutdown(ctx)
	})
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		return db.Close()
	})

	if err := sm.WaitForShutdown(); err != nil {
		logrus.WithError(err).Error("Shutdown finished with errors")
		os.Exit(1)
	}
}

// registerHandlers performs the explicit, ordered handler registration done
// once at startup. Registration here, not at package load time, keeps
// registration order and completeness deterministic.
func registerHandlers(dispatcher *events.Dispatcher, logger *observability.Logger) {
	// Activity log: every event type gets a structured log line
	for _, t := range events.Types() {
		t := t
		if err := dispatcher.Register(t, func(ctx context.Context, p *events.Payload) error {
			logger.WithFields(map[string]interface{}{
				"event_type":    string(p.EventType),
				"resource_type": p.ResourceType,
				"resource_id":   p.ResourceID,
				"branch_id":     p.BranchID,
			}).Info("event emitted")
			return nil
		}); err != nil {
			logrus.WithError(err).Fatalf("Failed to register activity handler for %s", t)
		}
	}

	// Stock alerts get an elevated log level for on-call visibility
	for _, t := range []events.EventType{events.EventStockLowAlert, events.EventStockOutAlert} {
		if err := dispatcher.Register(t, func(ctx context.Context, p *events.Payload) error {
			logger.WithFields(map[string]interface{}{
				"product":   p.ResourceName,
				"branch_id": p.BranchID,
			}).Warn("stock alert")
			return nil
		}); err != nil {
			logrus.WithError(err).Fatalf("Failed to register stock alert handler for %s", t)
		}
	}
}
