package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/anipipe/api/internal/config"
	"github.com/anipipe/api/internal/downloader"
	"github.com/anipipe/api/internal/episodes"
	"github.com/anipipe/api/internal/extractor"
	"github.com/anipipe/api/internal/handler"
	"github.com/anipipe/api/internal/middleware"
	"github.com/anipipe/api/internal/pipeline"
	"github.com/anipipe/api/internal/uploader"
	ws "github.com/anipipe/api/internal/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client (optional - only backs rate limiting)
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Printf("Warning: Redis not available, rate limiting disabled: %v", err)
			redisClient = nil
		}
	} else {
		log.Println("Info: Redis not configured, rate limiting disabled")
	}

	// Initialize validator
	validate := validator.New()

	// Initialize pipeline stages
	streamLocator := extractor.New(&cfg.Extractor)
	pageSniffer := extractor.NewSniffer(&cfg.Extractor)
	segmentFetcher := downloader.New(&cfg.Download, pageSniffer)
	uploadClient := uploader.NewClient(&cfg.Upload)

	// Initialize orchestrator
	registry := pipeline.NewRegistry()
	orchestrator := pipeline.NewOrchestrator(registry, streamLocator, segmentFetcher, uploadClient, pipeline.Config{
		TempDir:     cfg.Download.TempDir,
		DownloadDir: cfg.Download.DownloadDir,
		MinFileSize: cfg.Download.MinFileSize,
	})

	// Initialize episode listing client
	episodesClient := episodes.NewClient(&cfg.Extractor)

	// Initialize WebSocket hub
	hub := ws.NewHub(orchestrator)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(&cfg.Auth, validate)
	pipelineHandler := handler.NewPipelineHandler(orchestrator, validate)
	episodesHandler := handler.NewEpisodesHandler(episodesClient, orchestrator, validate)
	cleanupHandler := handler.NewCleanupHandler(&cfg.Download)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.Auth.JWTSecret)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    5 * 1024 * 1024, // 5MB; uploads leave the box, they don't enter it
	})

	// Global middleware
	app.Use(recover.New())
	isDebug := strings.EqualFold(cfg.Server.LogLevel, "debug")
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if isDebug {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"jobs":   len(orchestrator.GetAll()),
		})
	})

	// Auth routes (public)
	app.Post("/api/auth/login", authHandler.Login)

	// API routes (protected)
	api := app.Group("/api", authMiddleware.Authenticate())

	api.Post("/pipeline", rateLimiter.StartLimit(cfg.RateLimit.StartPerHour), pipelineHandler.Start)
	api.Post("/start-download", rateLimiter.StartLimit(cfg.RateLimit.StartPerHour), pipelineHandler.Start)
	api.Post("/bulk", rateLimiter.BulkLimit(cfg.RateLimit.BulkPerHour), pipelineHandler.Bulk)
	api.Get("/pipelines", pipelineHandler.List)
	api.Get("/job/:jobId", pipelineHandler.Status)
	api.Get("/status/:jobId", pipelineHandler.Status)
	api.Post("/cancel/:jobId", pipelineHandler.Cancel)
	api.Post("/pause/:jobId", pipelineHandler.Pause)
	api.Post("/resume/:jobId", pipelineHandler.Resume)
	api.Delete("/job/:jobId", pipelineHandler.Delete)
	api.Post("/clear-failed", pipelineHandler.ClearFailed)
	api.Post("/clear-completed", pipelineHandler.ClearCompleted)
	api.Post("/delete-selected", pipelineHandler.DeleteSelected)

	api.Get("/episodes/:animeId", episodesHandler.List)
	api.Post("/episodes/bulk", rateLimiter.BulkLimit(cfg.RateLimit.BulkPerHour), episodesHandler.Bulk)

	api.Post("/cleanup", cleanupHandler.Cleanup)

	// WebSocket routes; clients authenticate via the token query
	// parameter since browsers cannot set headers on upgrade requests.
	requireUpgrade := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
	api.Get("/pipelines/stream", requireUpgrade, websocket.New(func(c *websocket.Conn) {
		hub.StreamAll(c)
	}))
	api.Get("/stream/:jobId", requireUpgrade, websocket.New(func(c *websocket.Conn) {
		hub.StreamJob(c, c.Params("jobId"))
	}))

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
