package main

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/websocket/v2"
	"github.com/joho/godotenv"
	"github.com/noteduco342/campus-stories-backend/internal/cache"
	"github.com/noteduco342/campus-stories-backend/internal/handlers"
	"github.com/noteduco342/campus-stories-backend/internal/httpx"
	"github.com/noteduco342/campus-stories-backend/internal/middleware"
	"github.com/noteduco342/campus-stories-backend/internal/models"
	"github.com/noteduco342/campus-stories-backend/internal/notify"
	"github.com/noteduco342/campus-stories-backend/internal/repository"
	"github.com/noteduco342/campus-stories-backend/internal/service"
	"github.com/noteduco342/campus-stories-backend/internal/storage"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName: "Campus Stories Backend",
		// A publish batch is up to ten files of 10MB each plus overhead.
		BodyLimit: 110 * 1024 * 1024,
	})

	// Middleware
	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     os.Getenv("ALLOWED_ORIGINS"),
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-CS-CSRF",
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
		AllowCredentials: true,
	}))

	// Initialize database connection
	db, err := repository.InitDB()
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Initialize Redis cache
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	redisPassword := os.Getenv("REDIS_PASSWORD")
	redisDB := 0
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if parsedDB, err := strconv.Atoi(dbStr); err == nil {
			redisDB = parsedDB
		}
	}

	redisCache := cache.NewRedisCache(redisAddr, redisPassword, redisDB)
	if err := redisCache.Ping(); err != nil {
		log.Printf("WARNING: Redis connection failed: %v. Running without cache.", err)
		redisCache = nil
	} else {
		log.Println("Redis cache connected successfully")
	}

	userCache := cache.NewUserCache(redisCache)
	insightCache := cache.NewInsightCache(redisCache)

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	refreshTokenRepo := repository.NewRefreshTokenRepository(db)
	storyRepo := repository.NewStoryRepository(db)

	// Initialize S3/MinIO storage (best-effort; publish returns 503 if missing)
	var s3Store *storage.S3Storage
	var blobStore storage.BlobStoreInterface
	if cfg, err := storage.LoadS3ConfigFromEnv(); err != nil {
		log.Printf("WARNING: S3 storage not configured: %v", err)
	} else if st, err := storage.NewS3Storage(cfg); err != nil {
		log.Printf("WARNING: Failed to initialize S3 storage: %v", err)
	} else {
		s3Store = st
		blobStore = st
		log.Printf("S3 storage initialized successfully (bucket=%s)", cfg.Bucket)
	}

	// Initialize services
	broker := notify.NewBroker()
	sessions := service.NewFeedSessions(storyRepo, broker)
	authService := service.NewAuthService(userRepo, refreshTokenRepo)
	userService := service.NewUserService(userRepo, userCache)
	storyService := service.NewStoryService(storyRepo, blobStore, broker, sessions, insightCache)

	// Initialize handlers
	wsHandler := handlers.NewWebSocketHandler(storyService, broker)
	authHandler := handlers.NewAuthHandler(authService, sessions)
	userHandler := handlers.NewUserHandler(userService)
	mediaHandler := handlers.NewMediaHandler(s3Store)
	storyHandler := handlers.NewStoryHandler(storyService, userService, sessions, wsHandler.GetHub())

	// Expired stories stay out of every read; the purge just reclaims rows
	// once they are safely past their window.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			if purged, err := storyRepo.PurgeExpired(models.StoryTTL); err != nil {
				log.Printf("Expired story purge failed: %v", err)
			} else if purged > 0 {
				log.Printf("Purged %d expired stories", purged)
			}
		}
	}()

	// Public routes
	api := app.Group("/api", middleware.OriginAllowed())
	auth := api.Group("/auth", limiter.New(limiter.Config{
		Max:        20,
		Expiration: time.Minute,
	}))
	auth.Get("/csrf", authHandler.CSRFToken)
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Post("/refresh", authHandler.Refresh) // No CSRF required - protected by HttpOnly refresh token
	auth.Post("/logout", middleware.AuthRequired(), middleware.CSRFRequired(), authHandler.Logout)

	// Protected routes
	protected := api.Group("/", middleware.AuthRequired(), middleware.CSRFRequired())
	protected.Get("/users/me", userHandler.GetCurrentUser)
	protected.Put("/users/me", userHandler.UpdateProfile)
	protected.Get("/users/:id", userHandler.GetUser)

	// Story routes
	protected.Get("/stories/feed", storyHandler.GetFeed)
	protected.Post(
		"/stories",
		limiter.New(limiter.Config{
			Max:        10,
			Expiration: 10 * time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				if uid, err := httpx.LocalUint(c, "userID"); err == nil {
					return "publish:" + strconv.FormatUint(uint64(uid), 10)
				}
				return c.IP()
			},
		}),
		storyHandler.Publish,
	)
	protected.Post("/stories/:id/view", storyHandler.MarkViewed)
	protected.Post("/stories/:id/like", storyHandler.ToggleLike)
	protected.Post("/stories/:id/replies", storyHandler.Reply)
	protected.Get("/stories/:id/insights", storyHandler.Insights)
	protected.Delete("/stories/:id", storyHandler.Delete)

	protected.Get("/media/stories/*", mediaHandler.GetStoryMedia)

	// WebSocket route (websocket upgrade needs special handling)
	app.Use(
		"/ws",
		middleware.OriginAllowed(),
		middleware.AuthRequired(),
		func(c *fiber.Ctx) error {
			// Upgrade to WebSocket
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		},
	)
	app.Get("/ws", websocket.New(wsHandler.HandleWebSocket))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"message": "Campus Stories is running",
		})
	})

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s...", port)
	if err := app.Listen(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
