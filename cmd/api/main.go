package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/scimbridge/tenant-scim/internal/api"
	"github.com/scimbridge/tenant-scim/internal/config"
	"github.com/scimbridge/tenant-scim/internal/middleware"
	"github.com/scimbridge/tenant-scim/internal/password"
	"github.com/scimbridge/tenant-scim/internal/service"
	"github.com/scimbridge/tenant-scim/internal/store"
	"github.com/scimbridge/tenant-scim/pkg/logger"
)

func main() {
	appLogger := logger.NewLogger(os.Getenv("APP_ENV"))

	cfgPath := config.ConfigPath("config.yaml")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			appLogger.Infof("no config file at %s, starting with the zero-config default tenant", cfgPath)
			cfg = config.Default()
		} else {
			appLogger.Fatal("failed to load config", err)
		}
	}

	db, dialect, err := openDatabase(cfg)
	if err != nil {
		appLogger.Fatal("failed to connect to database", err)
	}
	appLogger.Infof("database connection established (%s)", dialect)

	st := store.New(db, dialect)
	hasher := password.NewManager()
	svc := service.New(st, hasher)

	var redisClient *redis.Client
	if url := cfg.RedisURL(); url != "" {
		opts, err := redis.ParseURL(url)
		if err != nil {
			appLogger.Fatal("failed to parse redis url", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
		appLogger.Info("redis connection established for per-tenant rate limiting")
	} else {
		appLogger.Warn("no redis url configured, per-tenant rate limiting is disabled")
	}
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(redisClient, cfg.Server.RateLimitPerMinute, appLogger)

	server := api.NewServer(cfg, svc, rateLimitMiddleware, appLogger)

	router := gin.Default()
	server.SetupRoutes(router)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: router}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("failed to start server", err)
		}
	}()
	appLogger.Infof("listening on %s", addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Fatal("server forced to shutdown", err)
	}

	appLogger.Info("server exiting")
	appLogger.Sync()
}

// openDatabase opens the gorm connection, dispatching on the configured backend type
// between the postgres and sqlite drivers.
func openDatabase(cfg *config.AppConfig) (*gorm.DB, string, error) {
	url := cfg.DatabaseURL()
	dbType := "sqlite"
	if cfg.Backend.Database != nil && cfg.Backend.Database.Type != "" {
		dbType = cfg.Backend.Database.Type
	}

	var db *gorm.DB
	var err error
	switch dbType {
	case "postgres":
		db, err = gorm.Open(postgres.Open(url), &gorm.Config{})
	case "sqlite":
		if url == "" {
			url = ":memory:"
		}
		db, err = gorm.Open(sqlite.Open(url), &gorm.Config{})
	default:
		return nil, "", fmt.Errorf("config: unsupported database type %q", dbType)
	}
	if err != nil {
		return nil, "", err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, "", err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxConnections())

	return db, dbType, nil
}
