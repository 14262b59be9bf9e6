// Package main is the entry point for the HTTP API.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"menupay/internal/bootstrap"
	"menupay/internal/config"
	"menupay/internal/handlers"
	"menupay/internal/logger"
	"menupay/internal/middleware"
	"menupay/internal/repositories/cache"
	"menupay/internal/routes"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	config.LoadEnv()
	cfg := config.Load()

	if err := logger.Init(cfg.IsProduction()); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	c, err := bootstrap.New(cfg)
	if err != nil {
		logger.SW("error", err).Fatal("failed to initialize dependencies")
	}
	defer c.Close()

	if err := cache.HealthCheck(context.Background(), c.Redis); err != nil {
		logger.SW("error", err).Warn("redis unavailable at startup")
	}

	app := fiber.New(fiber.Config{
		AppName:      "menupay",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH",
	}))
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	app.Use("/api", limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests. Please try again later.",
			})
		},
	}))

	routes.SetupRoutes(app, routes.Handlers{
		Payments:   handlers.NewPaymentHandler(c.Payments, c.Refunds),
		Webhooks:   handlers.NewWebhookHandler(c.Webhooks),
		Processors: handlers.NewProcessorHandler(c.Processors),
		Payouts:    handlers.NewPayoutHandler(c.Settlement),
		Health: handlers.NewHealthHandler(map[string]handlers.Pinger{
			"database": c.Store,
			"redis": handlers.PingerFunc(func(ctx context.Context) error {
				return cache.HealthCheck(ctx, c.Redis)
			}),
		}),
	}, middleware.NewAuthMiddleware(cfg.JWTSecret))

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.SW("error", err).Error("server stopped")
		}
	}()
	logger.SW("port", cfg.Port, "env", cfg.Env).Info("api listening")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.L().Info("shutting down api")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.SW("error", err).Warn("graceful shutdown failed")
	}
}
