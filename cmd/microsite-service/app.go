package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"microsite/internal/analytics"
	"microsite/internal/announcement"
	"microsite/internal/config"
	"microsite/internal/constants"
	"microsite/internal/form"
	"microsite/internal/logger"
	"microsite/migrations"
	"microsite/pkg/bootstrap"
	"microsite/pkg/circuitbreaker"
	"microsite/pkg/health"
	"microsite/pkg/metrics"
	"microsite/pkg/middleware"
	pkgmigrations "microsite/pkg/migrations"
	"microsite/pkg/ratelimit"
	"microsite/pkg/timing"
	"microsite/pkg/tracing"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

type App struct {
	config         *config.Config
	logger         logger.Logger
	base           *bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	db             *sql.DB
	redis          *redis.Client
	server         *http.Server
	router         *gin.Engine
	tracerProvider *tracing.TracerProvider
	httpClient     *http.Client

	sink         *analytics.Sink
	tracker      *analytics.Tracker
	throttle     *timing.Throttle
	memSessions  *analytics.MemorySessionStore
	pipeline     *form.Pipeline
	feed         *announcement.Feed
	loader       *announcement.Loader
	feedStore    *announcement.DocumentStore
	rateLimiter  *ratelimit.Registry
	healthChecks *health.CheckerRegistry
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{
		config:      cfg,
		logger:      log,
		base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
		httpClient:  &http.Client{Timeout: constants.DefaultHTTPTimeout},
	}
}

func (a *App) Initialize(ctx context.Context) error {
	metrics.RegisterAll()

	tp, err := tracing.Init(a.config.Tracing, constants.ServiceName, siteAttributes(a.config.Site)...)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	if err := a.initDatabase(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := a.initAnalytics(); err != nil {
		return fmt.Errorf("failed to initialize analytics: %w", err)
	}

	if err := a.initForm(); err != nil {
		return fmt.Errorf("failed to initialize form pipeline: %w", err)
	}

	if err := a.initFeed(); err != nil {
		return fmt.Errorf("failed to initialize announcements feed: %w", err)
	}

	if err := a.initRouter(); err != nil {
		return fmt.Errorf("failed to initialize router: %w", err)
	}

	if err := a.initServer(); err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	return nil
}

func siteAttributes(site config.SiteConfig) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("deployment.environment", site.Environment),
		attribute.String("service.version", site.Version),
	}
}

func (a *App) initDatabase(ctx context.Context) error {
	a.healthChecks = health.NewCheckerRegistry()

	if a.config.Form.Endpoint == constants.EndpointStore {
		db, err := a.dbConnector.InitPostgreSQL(ctx)
		if err != nil {
			return err
		}
		if db == nil {
			return fmt.Errorf("form endpoint %q requires database.postgres", constants.EndpointStore)
		}
		a.db = db
		a.healthChecks.Register(health.NewPostgreSQLChecker(db))

		if a.config.Database.RunMigrations {
			applied, err := pkgmigrations.RunPostgres(db, migrations.Postgres, "postgres")
			if err != nil {
				return err
			}
			a.logger.InfowCtx(ctx, "PostgreSQL migrations checked", "applied", applied)
		}
	}

	if a.config.Form.Endpoint == constants.EndpointStore || a.config.Session.Store == constants.SessionStoreRedis {
		rdb, err := a.dbConnector.InitRedis(ctx)
		if err != nil {
			if a.config.Session.Store == constants.SessionStoreRedis {
				return err
			}
			a.logger.WarnwCtx(ctx, "Redis unavailable, idempotency falls back to the database", "error", err)
		}
		if rdb != nil {
			a.redis = rdb
			a.healthChecks.RegisterOptional(health.NewRedisChecker(rdb))
		}
	}

	return nil
}

func (a *App) breaker(name string) *circuitbreaker.Wrapper {
	cb := a.config.CircuitBreaker
	if !cb.Enabled {
		return nil
	}
	cfg := circuitbreaker.DefaultConfig(name)
	if cb.MaxRequests > 0 {
		cfg.MaxRequests = cb.MaxRequests
	}
	if cb.Interval > 0 {
		cfg.Interval = cb.Interval
	}
	if cb.Timeout > 0 {
		cfg.Timeout = cb.Timeout
	}
	if cb.FailureRatio > 0 {
		cfg.ReadyToTrip = circuitbreaker.RatioTrip(cb.MinRequests, cb.FailureRatio)
	}
	return circuitbreaker.NewWrapper(cfg)
}

func (a *App) initAnalytics() error {
	cfg := a.config.Analytics
	opts := []analytics.Option{}
	if cfg.Timeout > 0 {
		opts = append(opts, analytics.WithTimeout(cfg.Timeout))
	}

	switch cfg.Collector {
	case constants.CollectorWebhook:
		if cfg.Webhook.URL == "" {
			return fmt.Errorf("analytics collector %q requires analytics.webhook.url", cfg.Collector)
		}
		track := analytics.NewWebhookTrackFunc(a.httpClient, cfg.Webhook.URL, cfg.Webhook.Headers, a.breaker("analytics-webhook"))
		opts = append(opts, analytics.WithTrackFunc(track))
	case constants.CollectorKafka:
		if err := a.base.InitProducer(); err != nil {
			return err
		}
		if a.base.Producer == nil {
			return fmt.Errorf("analytics collector %q requires broker.type", cfg.Collector)
		}
		topic := a.config.Broker.Kafka.AnalyticsTopic
		if topic == "" {
			topic = constants.DefaultAnalyticsTopic
		}
		opts = append(opts, analytics.WithTelemetryClient(analytics.NewKafkaClient(a.base.Producer, topic)))
	case constants.CollectorLog, "":
	default:
		return fmt.Errorf("unknown analytics collector %q", cfg.Collector)
	}

	a.sink = analytics.NewSink(a.logger.Named("analytics"), opts...)

	ttl := a.config.Session.TTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	var store analytics.SessionStore
	switch a.config.Session.Store {
	case constants.SessionStoreRedis:
		if a.redis == nil {
			return fmt.Errorf("session store %q requires database.redis", constants.SessionStoreRedis)
		}
		store = analytics.NewRedisSessionStore(a.redis, ttl)
	case constants.SessionStoreMemory, "":
		a.memSessions = analytics.NewMemorySessionStore(ttl)
		store = a.memSessions
	default:
		return fmt.Errorf("unknown session store %q", a.config.Session.Store)
	}

	limit := a.config.Session.ScrollThrottle
	if limit <= 0 {
		limit = time.Second
	}
	a.throttle = timing.NewThrottle(limit)
	a.tracker = analytics.NewTracker(store, a.sink, a.throttle, a.logger.Named("sessions"))

	a.logger.Infow("Analytics configured",
		"collector", a.sink.Collector(),
		"session_store", a.config.Session.Store,
	)
	return nil
}

func (a *App) initForm() error {
	cfg := a.config.Form
	name := cfg.Name
	if name == "" {
		name = constants.EarlyAccessFormName
	}

	var endpoint form.Endpoint
	switch cfg.Endpoint {
	case constants.EndpointSimulated, "":
		latency := cfg.Simulate.Latency
		if latency <= 0 {
			latency = constants.DefaultSubmissionLatency
		}
		endpoint = form.NewSimulatedEndpoint(latency, form.NewProbabilityFault(cfg.Simulate.FailureRate, nil))
	case constants.EndpointStore:
		var guard form.IdempotencyGuard
		if a.redis != nil {
			guard = form.NewRedisIdempotency(a.redis, cfg.Store.IdempotencyTTL)
		}
		endpoint = form.NewStoreEndpoint(form.NewRepository(a.db), guard, a.logger.Named("signups"))
	case constants.EndpointForward:
		if cfg.Forward.URL == "" {
			return fmt.Errorf("form endpoint %q requires form.forward.url", cfg.Endpoint)
		}
		endpoint = form.NewForwardEndpoint(a.httpClient, cfg.Forward.URL, cfg.Forward.Headers, a.breaker("form-forward"), a.logger.Named("signups"))
	default:
		return fmt.Errorf("unknown form endpoint %q", cfg.Endpoint)
	}

	a.pipeline = form.NewPipeline(name, endpoint, a.sink, a.logger.Named("form"), cfg.Timeout)
	a.logger.Infow("Form pipeline configured", "form", name, "endpoint", endpoint.Name())
	return nil
}

func (a *App) initFeed() error {
	cfg := a.config.Feed
	log := a.logger.Named("feed")

	if cfg.File != "" {
		a.feedStore = announcement.NewDocumentStore(cfg.File, cfg.WatchDebounce, log)
		if err := a.feedStore.Load(); err != nil {
			log.Warnw("Announcements file not loaded", "path", cfg.File, "error", err)
		}
		a.healthChecks.RegisterOptional(health.NewFuncChecker("feed_document", a.feedStore.Check))
	}

	var source announcement.Source
	switch {
	case cfg.URL != "":
		source = announcement.NewHTTPSource(a.httpClient, cfg.URL, a.breaker("announcements"))
	case a.feedStore != nil:
		source = a.feedStore
	default:
		return fmt.Errorf("feed requires feed.url or feed.file")
	}

	visibility, err := announcement.CompileVisibility(cfg.VisibilityExpression)
	if err != nil {
		return err
	}

	a.loader = announcement.NewLoader(source, visibility, cfg.Timeout, log)
	a.feed = announcement.NewFeed(a.loader, announcement.NewRenderer(cfg.AllowMarkup), a.sink, log)
	if a.feedStore != nil {
		a.feedStore.OnChange(a.feed.Invalidate)
	}
	return nil
}

func (a *App) initRouter() error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(constants.ServiceName)...)
	}

	router.Use(middleware.RecoveryMiddleware(a.logger))
	router.Use(middleware.LoggerMiddleware(a.logger))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(analytics.PageMiddleware())

	if a.config.RateLimit.Enabled {
		rateLimitConfig := ratelimit.RateLimitConfig{
			RPS:             a.config.RateLimit.RPS,
			Burst:           a.config.RateLimit.Burst,
			CleanupInterval: time.Duration(a.config.RateLimit.CleanupInterval) * time.Second,
			MaxAge:          time.Duration(a.config.RateLimit.MaxAge) * time.Second,
		}
		a.rateLimiter = ratelimit.NewRegistry(rateLimitConfig)
		router.Use(a.rateLimiter.Middleware())
		a.logger.Infow("Rate limiting enabled", "rps", rateLimitConfig.RPS, "burst", rateLimitConfig.Burst)
	}

	form.NewHandler(form.EarlyAccessSchema, a.pipeline, a.sink, a.logger.Named("form")).RegisterRoutes(router)
	announcement.NewHandler(a.feedStore, a.feed, a.loader, a.logger.Named("feed")).RegisterRoutes(router)
	analytics.NewHandler(analytics.NewIngestor(a.sink, a.logger.Named("analytics")), a.tracker, a.logger.Named("analytics")).RegisterRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		h := a.healthChecks.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	if a.config.Site.Root != "" {
		router.NoRoute(gin.WrapH(http.FileServer(http.Dir(a.config.Site.Root))))
	}

	a.router = router
	return nil
}

func (a *App) initServer() error {
	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  a.config.Server.ReadTimeoutSeconds,
		WriteTimeout: a.config.Server.WriteTimeoutSeconds,
	}
	return nil
}

// Run serves HTTP and the background loops until ctx is cancelled or one of
// them fails.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.InfowCtx(gctx, "Server listening", "port", a.config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if a.feedStore != nil {
		g.Go(func() error {
			if err := a.feedStore.Watch(gctx); err != nil {
				a.logger.WarnwCtx(gctx, "Announcements watcher stopped", "error", err)
			}
			return nil
		})
	}

	if a.rateLimiter != nil {
		g.Go(func() error {
			a.rateLimiter.RunCleanup(gctx)
			return nil
		})
	}

	ttl := a.config.Session.TTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if a.memSessions != nil {
		g.Go(func() error {
			a.memSessions.RunPruner(gctx, ttl/2)
			return nil
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(ttl)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				a.throttle.Prune(time.Now().Add(-ttl))
				if n := a.tracker.PruneLocks(gctx); n > 0 {
					a.logger.DebugwCtx(gctx, "Pruned page session locks", "count", n)
				}
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		return a.Shutdown(ctx)
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.InfowCtx(ctx, "Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.ShutdownTimeout)
	defer cancel()

	return a.base.Shutdown(shutdownCtx, func(ctx context.Context) []error {
		var errs []error

		if a.server != nil {
			if err := a.server.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
			}
		}

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, a.redis, a.db, nil)...)
		return errs
	})
}
