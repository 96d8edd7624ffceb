package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/revaspay/settlement/internal/config"
	"github.com/revaspay/settlement/internal/database"
	"github.com/revaspay/settlement/internal/handlers"
	"github.com/revaspay/settlement/internal/jobs"
	"github.com/revaspay/settlement/internal/logger"
	"github.com/revaspay/settlement/internal/middleware"
	"github.com/revaspay/settlement/internal/queue"
	"github.com/revaspay/settlement/internal/repository"
	"github.com/revaspay/settlement/internal/routes"
	"github.com/revaspay/settlement/internal/services/fraud"
	"github.com/revaspay/settlement/internal/services/gateway"
	"github.com/revaspay/settlement/internal/services/ledger"
	"github.com/revaspay/settlement/internal/services/notification"
	"github.com/revaspay/settlement/internal/services/order"
	"github.com/revaspay/settlement/internal/services/partner"
	"github.com/revaspay/settlement/internal/services/payout"
	"github.com/revaspay/settlement/internal/services/settings"
)

func main() {
	cfg := config.LoadConfig()

	zlog, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	if cfg.JWT.Secret == "" {
		zlog.Fatal("JWT_SECRET is not set")
	}
	if cfg.Gateway.WebhookSecret == "" {
		zlog.Warn("GATEWAY_WEBHOOK_SECRET is not set, payment webhooks will be refused")
	}

	db, err := database.InitDB(cfg.Database)
	if err != nil {
		zlog.Fatal("failed to initialize database", zap.Error(err))
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.URL,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx := context.Background()
	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		zlog.Fatal("failed to connect to redis", zap.Error(err))
	}

	redisQueue := queue.NewRedisQueue(redisClient, zlog)
	queueAdapter := queue.NewQueueAdapter(redisQueue)

	store := repository.NewStore(db)
	notifier := notification.NewQueueNotifier(queueAdapter, zlog)

	settingsService := settings.NewService(store.Settings(), cfg.Payout.DefaultThreshold, zlog)
	ledgerService := ledger.NewService(store, notifier, zlog)
	fraudMonitor := fraud.NewMonitor(store.Fraud(), cfg.Fraud, zlog)
	partnerService := partner.NewService(store.Partners(), zlog)
	payoutService := payout.NewService(store, settingsService, notifier, zlog)
	orderService := order.NewService(order.Config{
		Store:    store,
		Gateway:  gateway.NewClient(cfg.Gateway),
		Settler:  ledgerService,
		Fraud:    fraudMonitor,
		Queue:    queueAdapter,
		Notifier: notifier,
		Currency: cfg.Gateway.Currency,
		Logger:   zlog,
	})

	jobs.RegisterAllJobHandlers(queueAdapter, jobs.Dependencies{
		Store:   store,
		Sender:  notification.NewSMTPSender(cfg.SMTP),
		Settler: ledgerService,
		Purger:  fraudMonitor,
		Logger:  zlog,
	})
	jobProcessor := queue.NewJobProcessor(queueAdapter, cfg.Queue.Workers, zlog, jobs.JobTypes()...)
	jobProcessor.Start()

	scheduler := queue.NewScheduler(queueAdapter, zlog)
	if err := jobs.ScheduleRecurringJobs(scheduler, cfg.Queue.SettlementSweepEvery, cfg.Fraud.PurgeInterval); err != nil {
		zlog.Fatal("failed to schedule recurring jobs", zap.Error(err))
	}
	scheduler.Start()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.RequestLogger(zlog))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Security.CORSAllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(middleware.SecureHeadersMiddleware(middleware.DefaultSecureHeadersConfig(cfg.IsProduction())))

	rateLimiter := middleware.NewRateLimiter(cfg.Security.IPRateLimit, cfg.Security.IPRateBurst)

	routes.Register(router, routes.Handlers{
		Webhook: handlers.NewWebhookHandler(gateway.NewVerifier(cfg.Gateway.WebhookSecret), orderService, store.WebhookEvents(), zlog),
		Orders:  handlers.NewOrderHandler(orderService, zlog),
		Creator: handlers.NewCreatorHandler(partnerService, payoutService, settingsService, zlog),
		Admin: handlers.NewAdminHandler(handlers.AdminServices{
			Partners: partnerService,
			Payouts:  payoutService,
			Orders:   orderService,
			Ledger:   ledgerService,
			Fraud:    fraudMonitor,
			Settings: settingsService,
		}, zlog),
	}, routes.Options{
		JWTSecret:   cfg.JWT.Secret,
		RateLimiter: rateLimiter,
		Ping:        pinger(db, redisClient),
	})

	srv := startServer(router, cfg.Server, zlog)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("server forced to shutdown", zap.Error(err))
	}

	scheduler.Stop()
	jobProcessor.Stop()
	rateLimiter.Stop()
	fraudMonitor.Wait()
	notifier.Wait()

	if err := redisClient.Close(); err != nil {
		zlog.Warn("failed to close redis client", zap.Error(err))
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	zlog.Info("server exiting")
}

// startServer starts the HTTP server
func startServer(router *gin.Engine, cfg config.ServerConfig, log *zap.Logger) *http.Server {
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	log.Info("server started", zap.String("port", cfg.Port))
	return srv
}

func pinger(db *gorm.DB, redisClient *redis.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return err
		}
		return redisClient.Ping(ctx).Err()
	}
}
