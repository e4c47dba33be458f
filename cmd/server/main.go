package main

import (
	"context"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hushwire/hushwire/internal/api/handlers"
	"github.com/hushwire/hushwire/internal/api/middleware"
	"github.com/hushwire/hushwire/internal/chat"
	"github.com/hushwire/hushwire/internal/config"
	"github.com/hushwire/hushwire/internal/crypto"
	"github.com/hushwire/hushwire/internal/database"
	"github.com/hushwire/hushwire/internal/identity"
	"github.com/hushwire/hushwire/internal/websocket"
	"github.com/hushwire/hushwire/pkg/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load configuration
	cfg, err := config.Load(config.Overrides{})
	if err != nil {
		logger.Errorf("Failed to load config: %v", err)
		os.Exit(1)
	}

	if cfg.Debug {
		logger.SetLevel(logger.LevelDebug)
	}
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		lvl, err := logger.ParseLevel(raw)
		if err != nil {
			logger.Warnf("Ignoring LOG_LEVEL: %v", err)
		} else {
			logger.SetLevel(lvl)
		}
	}

	// Set Gin mode
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	// Open database
	logger.Infof("Opening database: %s", cfg.DatabasePath)
	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		logger.Errorf("Failed to open database: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize JWT manager
	logger.Infof("Initializing JWT manager...")
	jwtManager, err := crypto.NewJWTManager(cfg.MasterSecret)
	if err != nil {
		logger.Errorf("Failed to create JWT manager: %v", err)
		os.Exit(1)
	}

	// Wire the chat core: directory, store, codec, registry, hub, service.
	// The encryption key and the hub are constructed once here and passed
	// down; nothing mutates them after startup.
	directory := identity.NewSQLDirectory(db.DB)
	store := chat.NewSQLStore(db.DB)
	codec := chat.NewCodec(cfg.ChatKey, cfg.MaxPlaintextLen)
	registry := chat.NewRegistry(store, directory)
	hub := websocket.NewHub()
	service := chat.NewService(store, directory, codec, registry, hub)

	// Start the scheduled-destroy sweeper
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sweeper := chat.NewSweeper(service, cfg.SweepInterval)
	go sweeper.Run(ctx)
	logger.Infof("Destroy sweeper running every %v", cfg.SweepInterval)

	// Initialize websocket gateway
	wsServer := websocket.NewServer(service, directory, jwtManager, hub)

	// Create Gin router
	router := gin.Default()

	// CORS middleware
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"*"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	// Logging middleware
	router.Use(middleware.LoggingMiddleware())

	// Root endpoint - returns plain text for client validation
	router.GET("/", func(c *gin.Context) {
		c.String(200, "Welcome to Hushwire Server!")
	})

	// Prometheus metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Initialize handlers
	chatHandler := handlers.NewChatHandler(service)

	// Protected routes (auth required)
	api := router.Group("/api")
	api.Use(middleware.AuthMiddleware(jwtManager))
	{
		api.GET("/private-chat/summary", chatHandler.GetSummary)
		api.GET("/private-chat/messages/:user_id", chatHandler.GetMessages)
		api.POST("/private-chat/send/:user_id", chatHandler.SendMessage)
		api.POST("/private-chat/mark-all-read", chatHandler.MarkAllRead)
	}

	// Websocket endpoint; auth is checked inside the handler since browser
	// clients pass the token as a query parameter.
	router.GET("/ws/private/:user_id", wsServer.HandleChat)

	// Start HTTP server
	logger.Infof("Hushwire Server starting on http://localhost%s", cfg.Addr)
	logger.Infof("Database: %s", cfg.DatabasePath)
	logger.Infof("JWT signing enabled")

	if err := router.Run(cfg.Addr); err != nil {
		logger.Errorf("Failed to start server: %v", err)
		os.Exit(1)
	}
}
