package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"inferxgate.backend/internal/config"
	"inferxgate.backend/internal/infrastructure/cache"
	"inferxgate.backend/internal/infrastructure/pricing"
	"inferxgate.backend/internal/infrastructure/repositories"
	"inferxgate.backend/internal/interfaces/http/handlers"
	"inferxgate.backend/internal/interfaces/http/middleware"
	"inferxgate.backend/internal/usecases"
	"inferxgate.backend/pkg/jwt"
	"inferxgate.backend/pkg/logger"
	"inferxgate.backend/pkg/redis"
)

var (
	loadDotenv = godotenv.Load
	loadCfg    = config.Load
	initLog    = logger.Init
	initRedis  = redis.Init
	openDB     = func(dsn string) (*gorm.DB, error) {
		return gorm.Open(postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		}), &gorm.Config{
			PrepareStmt: false,
		})
	}
	runServer = func(r *gin.Engine, port string) error { return r.Run(":" + port) }
	getStdDB  = func(db *gorm.DB) (*sql.DB, error) { return db.DB() }
)

func main() {
	if err := runMainProcess(); err != nil {
		log.Fatal(err)
	}
}

func runMainProcess() error {
	if err := loadDotenv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := loadCfg()

	initLog(cfg.Server.Env)
	logger.Info(context.Background(), "Logger initialized", zap.String("env", cfg.Server.Env))

	// Redis backs auth caching, rate limiting, and the response cache.
	// The gateway degrades without it, so startup continues on failure.
	if err := initRedis(cfg.Redis.URL, cfg.Redis.PASSWORD); err != nil {
		logger.Warn(context.Background(), "Redis unavailable, caching and rate limits disabled", zap.Error(err))
	} else {
		logger.Info(context.Background(), "Redis initialized")
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := openDB(cfg.Database.URL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := getStdDB(db)
	if err != nil {
		return fmt.Errorf("failed to get generic database object: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		log.Printf("database not available: %v (endpoints will return errors)", err)
	} else {
		log.Println("connected to PostgreSQL")
	}

	jwtService := jwt.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.AccessExpiry)

	// Repositories
	keyRepo := repositories.NewVirtualKeyRepository(db)
	usageRepo := repositories.NewUsageRepository(db)
	credRepo := repositories.NewProviderCredentialRepository(db)

	// Use cases
	resolver := usecases.NewKeyResolver(keyRepo)
	guard := usecases.NewAdmissionGuard(cfg.Gateway.RateLimitWindow)
	registry := usecases.NewProviderRegistry(credRepo, cfg.Providers, cfg.Gateway)
	if err := registry.LoadAll(context.Background()); err != nil {
		logger.Warn(context.Background(), "provider routes not loaded, configure providers via the admin API", zap.Error(err))
	}
	respCache := cache.NewResponseCache(cfg.Gateway.CacheEnabled, cfg.Gateway.CacheTTL)
	accountant := usecases.NewAccountant(usageRepo, keyRepo, resolver, pricing.NewCalculator())
	chatUsecase := usecases.NewChatUseCase(guard, registry, respCache, accountant)
	keyUsecase := usecases.NewVirtualKeyUseCase(keyRepo, resolver)

	// HTTP layer
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggerMiddleware())

	registerRoutes(r, routeDeps{
		chatHandler:     handlers.NewChatHandler(chatUsecase),
		modelsHandler:   handlers.NewModelsHandler(registry),
		providerHandler: handlers.NewProviderHandler(registry),
		keyHandler:      handlers.NewKeyHandler(keyUsecase),
		statsHandler:    handlers.NewStatsHandler(usageRepo),
		healthHandler:   handlers.NewHealthHandler(db),
		keyAuth:         middleware.KeyAuthMiddleware(resolver),
		adminAuth:       middleware.AdminAuthMiddleware(cfg.Auth.MasterKey, jwtService),
	})

	log.Printf("gateway listening on :%s", cfg.Server.Port)
	return runServer(r, cfg.Server.Port)
}
