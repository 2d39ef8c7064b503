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

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/shopspring/decimal"

	"github.com/HSouheill/barrim_matching/config"
	"github.com/HSouheill/barrim_matching/controllers"
	"github.com/HSouheill/barrim_matching/middleware"
	"github.com/HSouheill/barrim_matching/repositories"
	"github.com/HSouheill/barrim_matching/routes"
	"github.com/HSouheill/barrim_matching/services"
	"github.com/HSouheill/barrim_matching/services/matching"
	"github.com/HSouheill/barrim_matching/utils"
	"github.com/HSouheill/barrim_matching/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Amounts are rendered as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := config.ConnectDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.Disconnect(dctx); err != nil {
			log.Printf("Error disconnecting from MongoDB: %v", err)
		}
	}()
	barrimDB := config.Database(client, cfg)

	ictx, cancel := context.WithTimeout(ctx, cfg.MongoTimeout)
	if err := config.EnsureIndexes(ictx, barrimDB); err != nil {
		log.Fatalf("Failed to create indexes: %v", err)
	}
	cancel()

	// Initialize repositories
	userRepo := repositories.NewUserRepository(barrimDB)
	incomeRepo := repositories.NewIncomeRepository(barrimDB)
	policyRepo := repositories.NewPolicyRepository(barrimDB)
	bonusRepo := repositories.NewMatchingBonusRepository(barrimDB)
	notificationRepo := repositories.NewNotificationRepository(barrimDB)

	// Create WebSocket hub
	wsHub := websocket.NewHub()
	go wsHub.Run(ctx)

	notifiers := services.MultiNotifier{
		services.NewInAppNotifier(notificationRepo),
		wsHub,
	}
	if app, err := config.InitFirebase(ctx, cfg); err != nil {
		log.Printf("Warning: Firebase disabled: %v", err)
	} else if app != nil {
		messagingClient, err := app.Messaging(ctx)
		if err != nil {
			log.Printf("Warning: Firebase messaging disabled: %v", err)
		} else {
			notifiers = append(notifiers, services.NewPushNotifier(messagingClient, userRepo))
		}
	}
	if cfg.SMTPConfigured() {
		notifiers = append(notifiers, services.NewEmailNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, userRepo))
	}

	opts := []matching.Option{
		matching.WithNotifier(notifiers),
		matching.WithMatchedTypes(cfg.MatchingTypes),
		matching.WithLockTTL(cfg.MatchingLockTTL),
		matching.WithWorkers(cfg.MatchingWorkers),
	}
	if redisClient := config.ConnectRedis(cfg); redisClient != nil {
		defer redisClient.Close()
		opts = append(opts, matching.WithLocker(services.NewRedisLocker(redisClient)))
	}
	engine := matching.NewEngine(userRepo, incomeRepo, policyRepo, bonusRepo, opts...)

	if cfg.ScheduleEnabled {
		log.Printf("Matching scheduler enabled, interval %s", cfg.ScheduleInterval)
		go services.RunCycleScheduler(ctx, engine, cfg.ScheduleInterval, time.Now)
	}

	// Create a new Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = utils.NewValidator()

	rateLimiter := middleware.NewRateLimiter()
	go rateLimiter.Cleanup(ctx, time.Hour)

	e.Use(echoMiddleware.RequestID())
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(middleware.GlobalCORS(cfg.CORSAllowedOrigins))
	e.Use(middleware.SecurityHeaders())
	e.Use(rateLimiter.RateLimit())

	ping := func(ctx context.Context) error { return client.Ping(ctx, nil) }
	routes.SetupRoutes(e, ping, controllers.NewMatchingBonusController(engine, cfg.CycleTimeout), wsHub, cfg.JWTSecret)

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.Logger.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server")
	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		log.Printf("Error shutting down server: %v", err)
	}
}
