package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/joshdcar/spring-clean-resource-cleanup/internal/adapters/azure"
	"github.com/joshdcar/spring-clean-resource-cleanup/internal/adapters/database"
	"github.com/joshdcar/spring-clean-resource-cleanup/internal/adapters/mail"
	"github.com/joshdcar/spring-clean-resource-cleanup/internal/adapters/queue"
	"github.com/joshdcar/spring-clean-resource-cleanup/internal/app"
	"github.com/joshdcar/spring-clean-resource-cleanup/internal/obs"
)

func main() {
	log.Println("Spring Clean scanner starting...")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	subscriptionID := os.Getenv("AZURE_SUBSCRIPTION_ID")
	if subscriptionID == "" {
		log.Fatal("AZURE_SUBSCRIPTION_ID is required")
	}
	tagValue := getEnv("EXPIRE_TAG_KEY", "enabled")
	scanInterval := getEnvDuration("SCAN_INTERVAL", 5*time.Minute)
	extendBy := time.Duration(getEnvInt("EXTEND_HOURS", 24)) * time.Hour
	respondWithin := time.Duration(getEnvInt("RESPONSE_HOURS", 24)) * time.Hour
	notifyEnabled := getEnvBool("NOTIFY_ENABLED", true)
	concurrency := getEnvInt("SCANNER_CONCURRENCY", 8)
	baseURL := getEnv("PUBLIC_BASE_URL", "http://localhost:8080")

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

	resourceStore, err := azure.NewResourceGroupStore(subscriptionID, tagValue)
	if err != nil {
		log.Fatalf("Failed to create resource group store: %v", err)
	}

	notifier := mail.NewSendGridNotifier(os.Getenv("SENDGRID_API_KEY"), getEnv("FROM_EMAIL", "noreply@example.com"))

	instanceRepo := database.NewPostgresInstanceRepository(pool)
	checkpointRepo := database.NewPostgresCheckpointRepository(pool)
	signalBus := queue.NewRedisSignalBus(redisClient)
	metrics := obs.NewMetrics()

	definition := app.NewExtensionWorkflow(resourceStore, notifier, instanceRepo, baseURL)
	extensions := app.NewExtensionService(ctx, instanceRepo, checkpointRepo, signalBus, definition, metrics)

	if err := extensions.ResumePending(ctx); err != nil {
		log.Fatalf("Failed to resume pending workflows: %v", err)
	}

	scanner := app.NewScannerService(resourceStore, instanceRepo, extensions, metrics, extendBy, respondWithin, notifyEnabled, concurrency)
	runner := app.NewScanRunner(scanner, scanInterval)

	log.Println("Scanner started successfully")
	if err := runner.Start(ctx); err != nil {
		log.Printf("Scanner error: %v", err)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := extensions.Stop(stopCtx); err != nil {
		log.Printf("Workflows did not drain cleanly: %v", err)
	}

	log.Println("Scanner stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Fatalf("Invalid %s value %q: %v", key, value, err)
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Fatalf("Invalid %s value %q: %v", key, value, err)
	}
	return d
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Fatalf("Invalid %s value %q: %v", key, value, err)
	}
	return b
}
