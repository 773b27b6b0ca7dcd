package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"scanventory-api/internal/cache"
	"scanventory-api/internal/config"
	"scanventory-api/internal/expiry"
	"scanventory-api/internal/handler"
	"scanventory-api/internal/messaging"
	"scanventory-api/internal/reconcile"
	"scanventory-api/internal/repository"
	"scanventory-api/internal/router"
	"scanventory-api/internal/service"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting Scanventory API...")

	// Load configuration
	cfg := config.MustLoad()
	log.Printf("Environment: %s", cfg.App.Environment)

	loc, err := cfg.App.Location()
	if err != nil {
		log.Fatalf("Invalid time zone: %v", err)
	}

	store := openStore(cfg)
	defer store.Close()

	// Cache and item locks
	var (
		appCache  cache.Cache
		locker    cache.Locker
		cacheInfo interface{}
	)
	switch cfg.Cache.Type {
	case "redis":
		redisClient, err := cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddress(),
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()

		redisCache := cache.NewRedisCache(redisClient, cfg.Cache.RedisKeyPrefix)
		appCache, cacheInfo = redisCache, redisCache
		locker = cache.NewRedisLocker(redisClient, cfg.Cache.RedisKeyPrefix)
		log.Printf("Redis cache and item locks initialized at %s", cfg.Cache.RedisAddress())
	default:
		memCache := cache.NewMemoryCache(time.Minute)
		defer memCache.Close()
		appCache, cacheInfo = memCache, memCache
		locker = cache.NewMemoryLocker()
		log.Println("In-memory cache and item locks initialized")
	}

	// Alert events
	var publisher messaging.Publisher
	if cfg.Messaging.KafkaEnabled() {
		publisher = messaging.NewKafkaProducer(cfg.Messaging.KafkaBrokers, cfg.Messaging.KafkaTopic)
	} else {
		publisher = messaging.NewLogPublisher()
		log.Println("No Kafka brokers configured, alert events are logged only")
	}
	defer publisher.Close()

	// Initialize services
	classifier := expiry.New(cfg.Alert.CriticalDays, cfg.Alert.WarningDays)
	log.Printf("Alert thresholds: critical <= %d days, warning <= %d days, zone %s",
		classifier.CriticalDays, classifier.WarningDays, loc)

	deps := service.Deps{
		Store:       store,
		Reconciler:  reconcile.New(classifier),
		Locker:      locker,
		Cache:       appCache,
		CacheTTL:    cfg.Cache.TTL,
		Publisher:   publisher,
		Clock:       service.NewClock(loc),
		LockTimeout: cfg.Alert.LockTimeout,
	}
	alertService := service.NewAlertService(deps)
	itemService := service.NewItemService(alertService)
	dashboardService := service.NewDashboardService(deps)

	scheduler := service.NewReconcileScheduler(alertService, cfg.Alert.ReconcileInterval)
	scheduler.Start()

	// Create router
	r := router.New(router.Config{
		Handler:          handler.New(store, cfg.App.Version),
		ItemHandler:      handler.NewItemHandler(itemService),
		AlertHandler:     handler.NewAlertHandler(alertService),
		DashboardHandler: handler.NewDashboardHandler(dashboardService),
		AdminHandler:     handler.NewAdminHandler(store, cacheInfo, cfg.Store.Type),
		AllowedOrigins:   cfg.Server.CORSOrigins,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	// Stop the scheduler after the server so no request is mid-reconcile
	scheduler.Stop()

	log.Println("Server stopped")
	fmt.Println("Goodbye!")
}

// openStore connects to the configured pantry database.
func openStore(cfg *config.Config) repository.Store {
	switch cfg.Store.Type {
	case "mongodb":
		store, err := repository.NewMongoDBStore(cfg.Store.MongoURI, cfg.Store.MongoDatabase)
		if err != nil {
			log.Fatalf("Failed to initialize MongoDB: %v", err)
		}
		log.Println("MongoDB store initialized")
		return store
	case "postgres":
		store, err := repository.NewPostgresStore(cfg.Store.PostgresDSN())
		if err != nil {
			log.Fatalf("Failed to initialize PostgreSQL: %v", err)
		}
		log.Println("PostgreSQL store initialized")
		return store
	case "mysql":
		store, err := repository.NewMySQLStore(cfg.Store.MySQLDSN())
		if err != nil {
			log.Fatalf("Failed to initialize MySQL: %v", err)
		}
		log.Println("MySQL store initialized")
		return store
	default: // sqlite
		if dir := filepath.Dir(cfg.Store.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				log.Fatalf("Failed to create data directory: %v", err)
			}
		}
		store, err := repository.NewSQLiteStore(cfg.Store.Path)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite: %v", err)
		}
		log.Println("SQLite store initialized")
		return store
	}
}
