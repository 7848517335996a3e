package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/wsbridge/backend/api/handlers"
	"github.com/wsbridge/backend/internal/audit"
	"github.com/wsbridge/backend/internal/config"
	"github.com/wsbridge/backend/internal/conn"
	"github.com/wsbridge/backend/internal/db"
	"github.com/wsbridge/backend/internal/lifecycle"
	"github.com/wsbridge/backend/internal/metrics"
	"github.com/wsbridge/backend/internal/repository"
)

func main() {
	// Load configuration: file if given, defaults otherwise, PORT override
	// for container environments.
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg := config.Default()
	if cfgPath != "" {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	if port := os.Getenv("PORT"); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil {
			log.Fatalf("Invalid PORT %q: %v", port, err)
		}
		cfg.Server.Port = n
	}

	// Connection handle factory, shared by all WebSocket routes.
	factory := conn.NewFactory(conn.Options{
		ReadLimit:        cfg.Socket.ReadLimit,
		WriteTimeout:     cfg.Socket.WriteTimeout,
		HandshakeTimeout: cfg.Socket.HandshakeTimeout,
	})
	factory.SetAllowedOrigins(cfg.Socket.AllowedOrigins)

	// Audit trail (optional).
	var recorder lifecycle.Recorder
	var repo *repository.ConnectionRepository
	var pruner *audit.Pruner
	if cfg.Audit.Enabled {
		if err := os.MkdirAll(filepath.Dir(cfg.Audit.DBPath), 0755); err != nil {
			log.Fatalf("Failed to create database directory: %v", err)
		}
		database, err := db.InitDB(cfg.Audit.DBPath)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer db.CloseDB()

		repo = repository.NewConnectionRepository(database)
		recorder = repo

		pruner, err = audit.NewPruner(repo, cfg.Audit.Retention, cfg.Audit.PruneSchedule)
		if err != nil {
			log.Fatalf("Failed to create audit pruner: %v", err)
		}
		pruner.Start()
		defer pruner.Stop()
	}

	// Metrics (optional).
	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector(cfg.Metrics.Namespace, nil)
	}

	// Lifecycle hook and handlers.
	hook := lifecycle.New(factory, recorder, collector)
	wsHandler := handlers.NewWebSocketHandler(hook)

	// Initialize Gin router.
	r := gin.Default()
	r.Use(corsMiddleware())
	r.Use(lifecycle.Finalize())

	// Health check endpoint.
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	if collector != nil {
		r.GET("/metrics", gin.WrapH(collector.Handler()))
	}

	// API routes.
	api := r.Group("/api")
	{
		wsHandler.RegisterRoutes(api)

		if repo != nil {
			handlers.NewConnectionsHandler(repo).RegisterRoutes(api)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Hot-reload the origin allowlist when the config file changes.
	if cfgPath != "" {
		go func() {
			err := config.Watch(ctx, cfgPath, func(updated *config.Config) {
				factory.SetAllowedOrigins(updated.Socket.AllowedOrigins)
			})
			if err != nil {
				log.Printf("Config watch stopped: %v", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Printf("Starting server on port %d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Forced shutdown: %v", err)
	}
}

// corsMiddleware returns a CORS middleware for development.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
