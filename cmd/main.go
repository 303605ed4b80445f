package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"document-qa-backend/internal/ai"
	"document-qa-backend/internal/config"
	"document-qa-backend/internal/logger"
	"document-qa-backend/internal/vectorstore"
	"document-qa-backend/middleware"
	"document-qa-backend/routes"
	"document-qa-backend/services"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	if err := os.MkdirAll(cfg.UploadDir, 0755); err != nil {
		log.Fatal("Failed to create upload directory:", err)
	}

	ctx := context.Background()

	// One health-checked embedding client per process, shared across requests.
	// Startup fails when the health check cannot succeed after retries.
	embedder, err := ai.NewEmbeddingClient(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to initialize embedding client:", err)
	}
	defer embedder.Close()

	gemini, err := ai.NewGeminiClient(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to initialize gemini client:", err)
	}
	defer gemini.Close()

	store, err := vectorstore.Open(cfg.VectorStoreDir)
	if err != nil {
		log.Fatal("Failed to open vector store:", err)
	}
	defer store.Close()

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Tracing())
	router.Use(middleware.CORSMiddlewareWithOrigins(cfg.CORSOrigins))
	router.Use(middleware.RateLimit(cfg.RateLimitReqs, cfg.RateLimitWindow))
	// Allowance above the file limit for multipart framing.
	router.Use(middleware.RequestSizeLimit(cfg.MaxFileSize + 1<<20))
	router.MaxMultipartMemory = 32 << 20

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	// Wire the pipeline
	ingestor := services.NewIngestor(cfg, embedder, store)
	retriever := services.NewRetriever(cfg, embedder, store)
	answerer := services.NewAnswerer(retriever, gemini)

	// Setup routes
	routes.SetupDocumentRoutes(router, cfg, ingestor)
	routes.SetupAskRoutes(router, cfg, answerer)

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
