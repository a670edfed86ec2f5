package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"stealthtrack/internal/automation"
	"stealthtrack/internal/config"
	"stealthtrack/internal/constants"
	"stealthtrack/internal/contact"
	"stealthtrack/internal/events"
	"stealthtrack/internal/logger"
	"stealthtrack/pkg/bootstrap"
	"stealthtrack/pkg/health"
	"stealthtrack/pkg/metrics"
	"stealthtrack/pkg/middleware"
	"stealthtrack/pkg/ratelimit"
)

type App struct {
	config      *config.Config
	logger      logger.Logger
	dbConnector *bootstrap.DatabaseConnector
	mongoClient *mongo.Client
	redisClient *redis.Client
	bus         *events.Bus
	listener    *automation.Listener
	server      *http.Server
	router      *gin.Engine
	stopListen  context.CancelFunc
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{
		config:      cfg,
		logger:      log,
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.initDatabases(ctx); err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}

	if err := a.initRouter(ctx); err != nil {
		return fmt.Errorf("failed to initialize router: %w", err)
	}

	a.initServer()
	return nil
}

func (a *App) initDatabases(ctx context.Context) error {
	mongoClient, err := a.dbConnector.InitMongoDB(ctx)
	if err != nil {
		return err
	}
	a.mongoClient = mongoClient

	redisClient, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		a.logger.WarnwCtx(ctx, "Redis connection failed, continuing without identification guard", "error", err)
	} else {
		a.redisClient = redisClient
	}
	return nil
}

func (a *App) initRouter(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.RecoveryMiddleware(a.logger))
	router.Use(middleware.LoggerMiddleware(a.logger))
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.RequestIDMiddleware())

	db := a.mongoClient.Database(a.config.Database.MongoDB.Database)

	contactRepo := contact.NewRepository(db)
	ruleRepo := automation.NewRepository(db)
	runRepo := automation.NewRunRepository(db)

	if err := contactRepo.EnsureIndexes(ctx); err != nil {
		return err
	}
	if err := ruleRepo.EnsureIndexes(ctx); err != nil {
		return err
	}
	if err := runRepo.EnsureIndexes(ctx); err != nil {
		return err
	}

	a.bus = events.NewBus(a.logger)

	guard := contact.NewNoopGuard()
	if a.redisClient != nil {
		ttl := time.Duration(a.config.Tracking.IdentifiedTTLSeconds) * time.Second
		guard = contact.NewRedisGuard(a.redisClient, ttl)
	}

	contactSvc := contact.NewService(contactRepo, guard, a.bus, a.logger, a.config.Tracking.AutoStitchEnabled)

	dispatcher := automation.NewDispatcher(
		time.Duration(a.config.Automation.WebhookTimeoutSeconds)*time.Second,
		a.config.Automation.ResponseBodyCapBytes,
		a.logger,
	)
	recorder := automation.NewRecorder(ruleRepo, runRepo, a.logger)
	automationSvc := automation.NewService(ruleRepo, runRepo, dispatcher, recorder, a.logger)

	a.listener = automation.NewListener(ruleRepo, dispatcher, recorder, a.logger, a.config.Automation.DispatchConcurrency)

	api := router.Group("/api")
	track := api.Group("/track")
	if a.config.RateLimit.Enabled {
		rateLimitConfig := ratelimit.Config{
			RPS:             a.config.RateLimit.RPS,
			Burst:           a.config.RateLimit.Burst,
			CleanupInterval: time.Duration(a.config.RateLimit.CleanupInterval) * time.Second,
			MaxAge:          time.Duration(a.config.RateLimit.MaxAge) * time.Second,
		}
		track.Use(ratelimit.Middleware(rateLimitConfig))
		a.logger.InfowCtx(ctx, "Rate limiting enabled on tracking endpoints",
			"rps", rateLimitConfig.RPS, "burst", rateLimitConfig.Burst)
	}

	trackerScript := contact.RenderTrackerScript(a.config.Tracking.BackendURL)
	contact.NewHandler(contactSvc, a.logger, trackerScript).RegisterRoutes(api, track)
	automation.NewHandler(automationSvc, a.logger).RegisterRoutes(api)

	metrics.Register()

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewMongoDBChecker(a.mongoClient))
	if a.redisClient != nil {
		healthRegistry.Register(health.NewRedisChecker(a.redisClient))
	}

	router.GET("/health", func(c *gin.Context) {
		h := healthRegistry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a.router = router
	return nil
}

func (a *App) initServer() {
	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  time.Duration(a.config.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(a.config.Server.WriteTimeoutSeconds) * time.Second,
	}
}

func (a *App) Run(ctx context.Context) error {
	listenerCtx, stopListen := context.WithCancel(context.Background())
	a.stopListen = stopListen
	go a.listener.Start(listenerCtx, a.bus.Subscribe())

	errChan := make(chan error, 1)
	go func() {
		a.logger.InfowCtx(ctx, "Server listening", "port", a.config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return a.Shutdown(ctx)
	case err := <-errChan:
		return err
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.InfowCtx(ctx, "Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()

	var errs []error

	if a.server != nil {
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
		}
	}

	// Stop accepting new events, then let the listener drain.
	if a.bus != nil {
		a.bus.Close()
	}
	if a.stopListen != nil {
		a.stopListen()
	}

	dbErrs := a.dbConnector.ShutdownDatabases(shutdownCtx, a.redisClient, a.mongoClient)
	errs = append(errs, dbErrs...)

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	a.logger.InfowCtx(ctx, "Server exited successfully")
	return nil
}
