package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/richxcame/ride-dispatch/internal/dispatch"
	"github.com/richxcame/ride-dispatch/internal/drivers"
	"github.com/richxcame/ride-dispatch/internal/earnings"
	"github.com/richxcame/ride-dispatch/internal/notify"
	"github.com/richxcame/ride-dispatch/internal/pricing"
	"github.com/richxcame/ride-dispatch/internal/realtime"
	"github.com/richxcame/ride-dispatch/internal/rides"
	"github.com/richxcame/ride-dispatch/pkg/bus"
	"github.com/richxcame/ride-dispatch/pkg/common"
	"github.com/richxcame/ride-dispatch/pkg/config"
	"github.com/richxcame/ride-dispatch/pkg/database"
	"github.com/richxcame/ride-dispatch/pkg/eventbus"
	"github.com/richxcame/ride-dispatch/pkg/logger"
	"github.com/richxcame/ride-dispatch/pkg/middleware"
	redisclient "github.com/richxcame/ride-dispatch/pkg/redis"
	"github.com/richxcame/ride-dispatch/pkg/websocket"
)

const (
	serviceName = "ride-dispatch"
	version     = "1.0.0"
)

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if err := logger.Init(cfg.Server.Environment); err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting ride dispatch service",
		zap.String("service", serviceName),
		zap.String("version", version),
		zap.String("environment", cfg.Server.Environment),
	)

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	db, err := database.NewPostgresPool(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)
	logger.Info("Connected to database")

	// Redis backs the shared driver store and the realtime bus. With
	// Redis disabled everything runs in-process, one instance only.
	var (
		redisClient *redisclient.Client
		realtimeBus bus.PatternBus
		driverStore drivers.StateStore
	)
	if cfg.Redis.Enabled {
		redisClient, err = redisclient.NewRedisClient(&cfg.Redis)
		if err != nil {
			logger.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer redisClient.Close()

		realtimeBus = bus.NewRedisBus(redisClient)
		driverStore = drivers.NewRedisStore(redisClient, &cfg.Dispatch)
		logger.Info("Redis-backed driver store and bus enabled")
	} else {
		realtimeBus = bus.NewMemoryBus()
		driverStore = drivers.NewMemoryStore(&cfg.Dispatch)
		logger.Info("In-process driver store and bus enabled")
	}
	defer realtimeBus.Close()

	var events *eventbus.Bus
	if cfg.NATS.Enabled {
		events, err = eventbus.New(eventbus.Config{
			URL:  cfg.NATS.URL,
			Name: serviceName,
		})
		if err != nil {
			logger.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer events.Close()
	}

	engine := pricing.NewEngine(&cfg.Pricing)

	driverRepo := drivers.NewRepository(db)
	driverService := drivers.NewService(driverStore, driverRepo, realtimeBus, events, &cfg.Pricing)
	flusher := drivers.NewFlusher(driverStore, driverRepo, &cfg.Dispatch)

	// Hydrate before serving: nearby queries against an empty store
	// would silently dispatch nothing.
	hydrateCtx, cancelHydrate := context.WithTimeout(rootCtx, 2*time.Minute)
	if err := driverService.Hydrate(hydrateCtx); err != nil {
		cancelHydrate()
		logger.Fatal("Failed to hydrate driver store", zap.Error(err))
	}
	cancelHydrate()

	flusher.Start(rootCtx)
	defer flusher.Stop()

	rideRepo := rides.NewRepository(db, cfg.Pricing.CommissionRate, cfg.Database.TxTimeout)
	rideCache := rides.NewActiveRideCache()
	rideService := rides.NewService(rideRepo, rideCache, driverStore, engine, realtimeBus, events)

	dispatchRepo := dispatch.NewRepository(db)
	dispatchService := dispatch.NewService(driverStore, dispatchRepo, realtimeBus, &cfg.Dispatch)
	rideService.SetDispatcher(dispatchService)

	var shareService *rides.ShareService
	if redisClient != nil {
		shareService = rides.NewShareService(rideService, driverStore, redisClient, rideRepo)
	}

	earningsRepo := earnings.NewRepository(db)
	notifyRepo := notify.NewRepository(db)

	if events != nil {
		worker := dispatch.NewWorker(dispatchService, rideService, events)
		if err := worker.Start(rootCtx); err != nil {
			logger.Fatal("Failed to start dispatch worker", zap.Error(err))
		}
		consumer := notify.NewConsumer(notifyRepo, events)
		if err := consumer.Start(rootCtx); err != nil {
			logger.Fatal("Failed to start notifications consumer", zap.Error(err))
		}
	}

	hub := websocket.NewHub()
	go hub.Run()

	// The bridge's pattern subscriptions make every publish count at
	// least one receiver, so offer delivery is judged by hub presence.
	dispatchService.SetPresence(hub)

	bridge := realtime.NewBridge(realtimeBus, hub, driverStore)
	if err := bridge.Start(rootCtx); err != nil {
		logger.Fatal("Failed to start realtime bridge", zap.Error(err))
	}
	defer bridge.Stop()

	pricingHandler := pricing.NewHandler(engine)
	driverHandler := drivers.NewHandler(driverService, cfg.Dispatch.NearbyRadiusKm)
	rideHandler := rides.NewHandler(rideService, shareService)
	earningsHandler := earnings.NewHandler(earningsRepo, driverStore)
	notifyHandler := notify.NewHandler(notifyRepo)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger(serviceName))
	router.Use(middleware.CORS(cfg.Server.CORSOrigins))

	router.GET("/healthz", common.HealthCheck(serviceName, version))

	healthChecks := map[string]func() error{
		"database": func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return db.Ping(ctx)
		},
		"driver_store": func() error {
			if !driverService.Hydrated() {
				return fmt.Errorf("driver store not hydrated")
			}
			return nil
		},
	}
	if redisClient != nil {
		healthChecks["redis"] = func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return redisClient.Client.Ping(ctx).Err()
		}
	}
	if events != nil {
		healthChecks["nats"] = func() error {
			if !events.Connected() {
				return fmt.Errorf("nats disconnected")
			}
			return nil
		}
	}
	router.GET("/health/ready", common.ReadinessProbe(serviceName, version, healthChecks))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public trip share view; the token is the only credential.
	router.GET("/share/:token", rideHandler.GetSharedRide)

	router.GET("/ws", func(c *gin.Context) {
		websocket.HandleWebSocket(c, hub, cfg.JWT.Secret)
	})

	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(cfg.JWT.Secret))
	{
		api.GET("/fares/estimate", pricingHandler.EstimateFares)

		rideRoutes := api.Group("/rides")
		{
			rideRoutes.POST("", rideHandler.CreateRide)
			rideRoutes.GET("", rideHandler.ListMyRides)
			rideRoutes.GET("/available", middleware.RequireRole(middleware.RoleDriver), rideHandler.ListAvailableRides)
			rideRoutes.GET("/:id", rideHandler.GetRide)
			rideRoutes.POST("/:id/accept", middleware.RequireRole(middleware.RoleDriver), rideHandler.AcceptRide)
			rideRoutes.PATCH("/:id/status", rideHandler.UpdateStatus)
			rideRoutes.POST("/:id/start", middleware.RequireRole(middleware.RoleDriver), rideHandler.StartRide)
			rideRoutes.POST("/:id/cancel", rideHandler.CancelRide)
			rideRoutes.POST("/:id/rate", rideHandler.RateRide)
			rideRoutes.POST("/:id/share", rideHandler.ShareRide)
		}

		driverRoutes := api.Group("/drivers")
		{
			driverRoutes.POST("/location", middleware.RequireRole(middleware.RoleDriver), driverHandler.UpdateLocation)
			driverRoutes.POST("/status", middleware.RequireRole(middleware.RoleDriver), driverHandler.SetStatus)
			driverRoutes.GET("/nearby", driverHandler.FindNearby)
			driverRoutes.GET("/me", middleware.RequireRole(middleware.RoleDriver), driverHandler.GetMe)
			driverRoutes.GET("/penalties", middleware.RequireRole(middleware.RoleDriver), driverHandler.ListPenalties)
			driverRoutes.GET("/earnings", middleware.RequireRole(middleware.RoleDriver), earningsHandler.ListEarnings)
			driverRoutes.GET("/earnings/summary", middleware.RequireRole(middleware.RoleDriver), earningsHandler.GetSummary)
		}

		api.GET("/notifications", notifyHandler.ListNotifications)
		api.POST("/notifications/:id/read", notifyHandler.MarkRead)

		admin := api.Group("/admin")
		admin.Use(middleware.RequireRole(middleware.RoleAdmin))
		{
			admin.GET("/driver-store/metrics", driverHandler.StoreMetrics)
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
}
