package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joshdcar/spring-clean-resource-cleanup/internal/adapters/database"
	httpAdapter "github.com/joshdcar/spring-clean-resource-cleanup/internal/adapters/http"
	"github.com/joshdcar/spring-clean-resource-cleanup/internal/adapters/queue"
	"github.com/joshdcar/spring-clean-resource-cleanup/internal/app"
	"github.com/joshdcar/spring-clean-resource-cleanup/internal/obs"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := database.NewPostgresPool(ctx)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		log.Fatalf("Failed to apply database schema: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	defer redisClient.Close()

	instanceRepo := database.NewPostgresInstanceRepository(pool)
	signalBus := queue.NewRedisSignalBus(redisClient)
	metrics := obs.NewMetrics()

	signalService := app.NewSignalService(instanceRepo, signalBus, metrics)
	extendHandler := httpAdapter.NewExtendHandler(signalService)

	port := getEnv("PORT", "8080")

	router := gin.Default()

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "spring-clean-api",
		})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// The confirmation link from the notification email. The unguessable
	// instance identifier is the only credential.
	router.GET("/extend/:instanceID", extendHandler.Extend)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/instances/:id", extendHandler.GetInstance)
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		log.Printf("Starting Spring Clean API server on port %s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
