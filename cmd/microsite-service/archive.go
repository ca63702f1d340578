package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"microsite/internal/analytics"
	"microsite/internal/config"
	"microsite/internal/constants"
	"microsite/internal/logger"
	"microsite/pkg/bootstrap"
	"microsite/pkg/health"
	"microsite/pkg/metrics"
	pkgmigrations "microsite/pkg/migrations"
	"microsite/pkg/tracing"
)

const archiveServiceName = "microsite-archive"

// ArchiveWorker drains the analytics topic into MongoDB.
type ArchiveWorker struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	mongoClient    *mongo.Client
	archiver       *analytics.Archiver
	tracerProvider *tracing.TracerProvider
	server         *http.Server
	topic          string
}

func NewArchiveWorker(cfg *config.Config, log logger.Logger) *ArchiveWorker {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName(archiveServiceName)
	}
	topic := cfg.Broker.Kafka.AnalyticsTopic
	if topic == "" {
		topic = constants.DefaultAnalyticsTopic
	}
	return &ArchiveWorker{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
		topic:       topic,
	}
}

func (w *ArchiveWorker) Initialize(ctx context.Context) error {
	metrics.RegisterAll()

	if w.Config.Broker.Type == "" {
		return fmt.Errorf("archive worker requires broker.type")
	}

	client, err := w.dbConnector.InitMongoDB(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize MongoDB: %w", err)
	}
	if client == nil {
		return fmt.Errorf("archive worker requires database.mongodb.uri")
	}
	w.mongoClient = client

	dbName := w.Config.Database.MongoDB.Database
	if dbName == "" {
		dbName = constants.DefaultMongoDBName
	}
	db := client.Database(dbName)
	if err := pkgmigrations.EnsureAnalyticsCollection(ctx, db, constants.AnalyticsCollection); err != nil {
		return fmt.Errorf("failed to prepare analytics collection: %w", err)
	}
	w.archiver = analytics.NewArchiver(db.Collection(constants.AnalyticsCollection), w.Logger.Named("archive"))

	if err := w.InitConsumer(archiveServiceName); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	tp, err := tracing.Init(w.Config.Tracing, archiveServiceName, siteAttributes(w.Config.Site)...)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	w.tracerProvider = tp

	w.initHTTPServer()
	return nil
}

func (w *ArchiveWorker) initHTTPServer() {
	mux := http.NewServeMux()

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewMongoDBChecker(w.mongoClient))

	mux.HandleFunc("/health", func(rw http.ResponseWriter, r *http.Request) {
		h := healthRegistry.Check(r.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(statusCode)
		_ = json.NewEncoder(rw).Encode(h)
	})

	mux.Handle("/metrics", promhttp.Handler())

	w.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", w.Config.Server.Port),
		Handler: mux,
	}
}

func (w *ArchiveWorker) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		w.Logger.InfowCtx(gCtx, "HTTP server starting", "port", w.Config.Server.Port)
		if err := w.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		w.Logger.InfowCtx(gCtx, "Archiving analytics events", "topic", w.topic)
		if err := w.Consumer.Consume(gCtx, w.topic, w.archiver.Handle); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("consumer error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		return w.Shutdown(ctx)
	})

	return g.Wait()
}

func (w *ArchiveWorker) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.ShutdownTimeout)
	defer cancel()

	return w.Base.Shutdown(shutdownCtx, func(ctx context.Context) []error {
		var errs []error
		if w.server != nil {
			if err := w.server.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
			}
		}
		if w.tracerProvider != nil {
			if err := w.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}
		errs = append(errs, w.dbConnector.ShutdownDatabases(ctx, nil, nil, w.mongoClient)...)
		return errs
	})
}
