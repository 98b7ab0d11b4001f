// Command server wires every domain engine into a Fiber app and starts
// listening. Shape follows the teacher's root main.go: load config, connect
// the database, build services, mount routes, listen.
package main

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/redis/go-redis/v9"

	"github.com/kayafamilly/carpool-core/internal/airport"
	"github.com/kayafamilly/carpool-core/internal/auth"
	"github.com/kayafamilly/carpool-core/internal/booking"
	"github.com/kayafamilly/carpool-core/internal/cache"
	"github.com/kayafamilly/carpool-core/internal/capacity"
	"github.com/kayafamilly/carpool-core/internal/clock"
	"github.com/kayafamilly/carpool-core/internal/config"
	"github.com/kayafamilly/carpool-core/internal/database"
	"github.com/kayafamilly/carpool-core/internal/geo"
	"github.com/kayafamilly/carpool-core/internal/httpapi"
	"github.com/kayafamilly/carpool-core/internal/ledger"
	"github.com/kayafamilly/carpool-core/internal/notification"
	"github.com/kayafamilly/carpool-core/internal/payments"
	"github.com/kayafamilly/carpool-core/internal/ratelimit"
	"github.com/kayafamilly/carpool-core/internal/rating"
	"github.com/kayafamilly/carpool-core/internal/request"
	"github.com/kayafamilly/carpool-core/internal/search"
	"github.com/kayafamilly/carpool-core/internal/wallet"
	"github.com/kayafamilly/carpool-core/internal/webhook"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	ctx := context.Background()

	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("invalid REDIS_URL: %v", err)
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Printf("warning: redis ping failed, cache/geo features will degrade: %v", err)
		}
	} else {
		log.Println("warning: REDIS_URL not set, cache/geo search will be unavailable")
	}

	clk := clock.System{}
	feePercent := float64(cfg.PlatformFeePercent)

	gateway := payments.New(cfg.StripeSecretKey)
	capacityStore := capacity.New(db)
	ledgerStore := ledger.New(db)
	cacheLayer := cache.New(redisClient)
	notifier := notification.New(db, cacheLayer)
	geoIndex := geo.NewRedisGeoIndex(redisClient)

	bookingEngine := booking.New(db, capacityStore, ledgerStore, gateway, notifier, clk, feePercent)
	requestEngine := request.New(db, capacityStore, ledgerStore, gateway, notifier, clk, feePercent)
	searchService := search.New(db, geoIndex, cacheLayer)
	ratingStore := rating.New(db, clk, notifier)
	ratingScheduler := rating.NewScheduler(db, clk, notifier)
	airportCatalog := airport.New(db)
	authService := auth.New(db, cfg)
	walletService := wallet.New(db, ledgerStore, gateway)
	webhookReconciler := webhook.New(db, gateway, ledgerStore, cfg.StripeWebhookSecret, feePercent)

	loginRL := ratelimit.New(redisClient, 10, time.Minute)
	otpRL := ratelimit.New(redisClient, 5, time.Minute)

	server := httpapi.New(httpapi.Deps{
		Config:   cfg,
		Auth:     authService,
		Booking:  bookingEngine,
		Request:  requestEngine,
		Search:   searchService,
		Wallet:   walletService,
		Rating:   ratingStore,
		Airports: airportCatalog,
		Webhook:  webhookReconciler,
		LoginRL:  loginRL,
		OTPRL:    otpRL,
	})

	app := fiber.New()
	app.Use(logger.New())
	server.RegisterRoutes(app)

	bgCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ratingScheduler.Run(bgCtx)
	go sweepExpiredRequestsLoop(bgCtx, requestEngine)

	log.Printf("starting server on port %s", cfg.Port)
	log.Fatal(app.Listen(":" + cfg.Port))
}

// sweepExpiredRequestsLoop periodically expires ride-requests past their
// departure window, mirroring the rating scheduler's own polling loop.
func sweepExpiredRequestsLoop(ctx context.Context, engine *request.Engine) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := engine.SweepExpired(ctx)
			if err != nil {
				log.Printf("sweep expired requests failed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("expired %d stale ride requests", n)
			}
		}
	}
}
