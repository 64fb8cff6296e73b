package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/istrom/site-inventory/internal/config"
	"github.com/istrom/site-inventory/internal/database"
	"github.com/istrom/site-inventory/internal/handler"
	"github.com/istrom/site-inventory/internal/queue"
	"github.com/istrom/site-inventory/internal/repository"
	"github.com/istrom/site-inventory/internal/router"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.EnsureSchema(ctx, db); err != nil {
		cancel()
		log.Fatalf("schema: %v", err)
	}
	if err := database.SeedGlobalAdmin(ctx, db, cfg.BootstrapCode, cfg.BcryptCost); err != nil {
		cancel()
		log.Fatalf("seed global admin: %v", err)
	}
	cancel()

	// Redis backs the login rate limiter and the listing cache; a nil
	// client disables both gracefully.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; rate limiting and response cache disabled")
	}
	rlCfg := config.LoadRateLimitConfig()
	cacheCfg := config.LoadCacheConfig()

	// Repositories
	itemRepo := repository.NewItemRepo(db)
	requestRepo := repository.NewRequestRepo(db)
	actualRepo := repository.NewActualRepo(db)
	notifRepo := repository.NewNotificationRepo(db)
	siteRepo := repository.NewSiteRepo(db)
	codeRepo := repository.NewAccessCodeRepo(db)
	logRepo := repository.NewAccessLogRepo(db)
	configRepo := repository.NewBuildingConfigRepo(db)

	// Handlers
	authHandler := handler.NewAuthHandler(cfg, codeRepo, siteRepo, logRepo)
	itemHandler := handler.NewItemHandler(itemRepo)
	requestHandler := handler.NewRequestHandler(itemRepo, requestRepo, actualRepo, notifRepo, codeRepo)
	actualHandler := handler.NewActualHandler(itemRepo, actualRepo)
	notifHandler := handler.NewNotificationHandler(notifRepo)
	summaryHandler := handler.NewSummaryHandler(itemRepo, configRepo)
	adminHandler := handler.NewAdminHandler(cfg, siteRepo, codeRepo, logRepo, itemRepo, requestRepo, notifRepo)

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAuth(e, authHandler, cfg.JWTSecret, rlCfg, rdb)
	router.RegisterInventory(e, itemHandler, requestHandler, actualHandler, notifHandler, summaryHandler, cfg.JWTSecret, cacheCfg, rdb)
	router.RegisterAdmin(e, adminHandler, authHandler, cfg.JWTSecret)

	// Lifecycle events land in logs/requests.log via the broker; the
	// consumer reconnects on its own and never stops the server.
	go func() {
		if err := queue.StartRequestConsumer(); err != nil {
			log.Printf("request consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
