package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pos-replicator/internal/di"
	"pos-replicator/internal/replication"
	"pos-replicator/internal/replication/config"
	"pos-replicator/internal/replication/metrics"
	"pos-replicator/internal/shared/database"
	"pos-replicator/internal/shared/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
)

func main() {
	fmt.Println("🚀 POS Replicator - Starting Application...")

	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load replication configuration: %v", err)
	}

	appLogger := logger.NewLogger()
	appLogger.Info("Application configuration loaded successfully")

	container := di.NewContainer()
	container.Logger = appLogger
	defer func() {
		if err := container.Close(); err != nil {
			appLogger.Errorf("Failed to close container: %v", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// An unreachable store is not fatal; only a malformed URI is.
	if err := container.InitializeReplication(ctx, cfg); err != nil {
		log.Fatalf("Failed to initialize Replication module: %v", err)
	}
	module, err := di.GetService[*replication.ReplicationModule](container)
	if err != nil {
		log.Fatalf("Replication module not registered: %v", err)
	}
	stores, err := di.GetService[*database.StoreManager](container)
	if err != nil {
		log.Fatalf("Store manager not registered: %v", err)
	}
	appLogger.Infof("Replication module initialized (primary available: %t, replica available: %t)",
		stores.IsPrimaryAvailable(), stores.IsReplicaAvailable())

	app := fiber.New(fiber.Config{
		AppName:      "POS Replicator v1.0",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			appLogger.Errorf("HTTP Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Internal Server Error",
			})
		},
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,HEAD,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, X-Request-ID",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		healthCtx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
		defer cancel()

		if err := container.HealthCheck(healthCtx); err != nil {
			appLogger.Errorf("Health check failed: %v", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status":  "UNHEALTHY",
				"error":   err.Error(),
				"message": "One or more stores are unreachable",
			})
		}

		return c.JSON(fiber.Map{
			"status":    "HEALTHY",
			"message":   "POS Replicator is running",
			"timestamp": time.Now().UTC(),
			"stores": fiber.Map{
				"primary": storeHealth(stores, database.RolePrimary),
				"replica": storeHealth(stores, database.RoleReplica),
			},
		})
	})
	app.Get("/metrics", metrics.Handler())

	module.RegisterRoutes(app)
	module.Start()

	serverAddr := cfg.Server.Addr()
	appLogger.Infof("🌟 Replication started. Starting HTTP server on %s", serverAddr)

	serverShutdown := make(chan error, 1)
	go func() {
		serverShutdown <- app.Listen(serverAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverShutdown:
		if err != nil {
			appLogger.Errorf("Server failed to start: %v", err)
			log.Fatalf("Server startup failed: %v", err)
		}
	case sig := <-quit:
		appLogger.Infof("Received shutdown signal: %v", sig)
		fmt.Println("🛑 Shutting down server gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			appLogger.Errorf("Server forced to shutdown: %v", err)
		}

		appLogger.Info("HTTP server stopped")
	}

	fmt.Println("✅ Application stopped gracefully.")
}

func storeHealth(stores *database.StoreManager, role string) fiber.Map {
	available := stores.IsReplicaAvailable()
	if role == database.RolePrimary {
		available = stores.IsPrimaryAvailable()
	}
	health := fiber.Map{"available": available}
	if checked, ok := stores.LastChecked(role); ok {
		health["lastChecked"] = checked.UTC()
	}
	return health
}
