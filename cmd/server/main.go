package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/notisync/notisync/internal/config"
	"github.com/notisync/notisync/internal/database"
	"github.com/notisync/notisync/internal/handlers"
	"github.com/notisync/notisync/internal/keymutex"
	"github.com/notisync/notisync/internal/repositories"
	"github.com/notisync/notisync/internal/services"
)

func main() {
	ctx := context.Background()

	godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database connections
	postgresPool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create postgres pool: %v", err)
	}
	defer postgresPool.Close()

	if err := database.InitSchema(ctx, postgresPool); err != nil {
		log.Fatalf("Failed to init schema: %v", err)
	}

	redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to create redis client: %v", err)
	}
	defer redisClient.Close()

	// Repositories
	userRepo := repositories.NewPostgresUserRepository(postgresPool)
	deviceRepo := repositories.NewPostgresDeviceRepository(postgresPool)
	notificationRepo := repositories.NewPostgresNotificationRepository(postgresPool)
	readStateRepo := repositories.NewPostgresDeviceReadStateRepository(postgresPool)
	syncEventRepo := repositories.NewPostgresSyncEventRepository(postgresPool)
	sessionRepo := repositories.NewRedisSessionRepository(redisClient)
	presenceRepo := repositories.NewRedisPresenceRepository(redisClient)

	// Services
	serializer := keymutex.New(cfg.LockTimeout)
	authService := services.NewAuthService(userRepo, deviceRepo, sessionRepo, cfg.JWTSecret, cfg.JWTExpiry)
	pushService := services.NewPushService(notificationRepo, presenceRepo, services.NewLogPushTransport())
	reconcileService := services.NewReconcileService(notificationRepo, readStateRepo, deviceRepo, serializer)
	syncService := services.NewSyncService(notificationRepo, readStateRepo, deviceRepo, syncEventRepo)
	notificationService := services.NewNotificationService(notificationRepo, readStateRepo, deviceRepo, pushService)

	router := handlers.NewRouter(authService, notificationService, reconcileService, syncService, presenceRepo)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: router,
	}

	// graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("Starting server on port %s", cfg.ServerPort)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server stopped gracefully")
}
