package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"menu-service/internal/clients"
	"menu-service/internal/config"
	"menu-service/internal/handlers"
	"menu-service/internal/importer"
	"menu-service/internal/middleware"
	"menu-service/internal/repository"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Initialize configuration
	cfg := config.Load()

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if cfg.Environment == "production" {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}

	// Initialize Redis client
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Printf("WARNING: Failed to parse Redis URL: %v (continuing without Redis)", err)
		redisOpts = &redis.Options{
			Addr: "localhost:6379",
		}
	}
	redisClient := redis.NewClient(redisOpts)

	// Test Redis connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("WARNING: Failed to connect to Redis: %v (category caching will be disabled)", err)
		redisClient = nil
	} else {
		log.Println("✓ Redis connected successfully")
	}
	cancel()

	// Initialize upstream client and pipeline
	menuClient := clients.NewMenuClientWithURL(cfg.MenuAPIURL)
	categories := repository.NewCategoryDirectory(menuClient, redisClient, cfg.CategoryCacheTTL, logger)
	submitter := importer.NewSubmitter(menuClient, cfg.CategorySubmitDelay, logger)
	orchestrator := importer.NewOrchestrator(submitter, categories, nil, logger)

	// Initialize repository and handlers
	importRepo := repository.NewImportRepository(db)
	importHandler := handlers.NewImportHandler(importRepo, orchestrator, logger)
	templateHandler := handlers.NewTemplateHandler()

	// Initialize Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())

	// Health check endpoints (no auth required)
	router.GET("/health", handlers.HealthCheck)
	router.GET("/ready", handlers.HealthCheck)

	// Protected API routes
	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	api.Use(middleware.TenantMiddleware())

	menu := api.Group("/menu/import")
	{
		// Templates are static downloads, registered before the :id routes
		menu.GET("/template", templateHandler.GetItemTemplate)
		menu.GET("/template/categories", templateHandler.GetCategoryTemplate)

		menu.POST("", importHandler.StartImport)
		menu.GET("", importHandler.ListImports)
		menu.GET("/:id", importHandler.GetImport)
		menu.POST("/:id/categories", importHandler.UploadCategories)
		menu.POST("/:id/items", importHandler.UploadItems)
		menu.POST("/:id/skip", importHandler.SkipStage)
		menu.DELETE("/:id", importHandler.CancelImport)
	}

	// Start server
	port := cfg.Port
	if envPort := os.Getenv("PORT"); envPort != "" {
		port = envPort
	}

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Menu service starting on port %s", port)
		if err := router.Run(":" + port); err != nil {
			log.Fatal("Failed to start server:", err)
		}
	}()

	<-quit
	log.Println("Shutting down menu-service...")

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Printf("Error closing Redis client: %v", err)
		}
	}

	log.Println("Menu service stopped")
}
