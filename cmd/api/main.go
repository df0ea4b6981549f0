package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"buddybot/internal/config"
	"buddybot/internal/db"
	apihttp "buddybot/internal/http"
	"buddybot/internal/repository"
	"buddybot/internal/service"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	completionHandler := apihttp.NewCompletionHandler(
		logger,
		cfg.OpenAIAPIKey,
		cfg.OpenAIBaseURL,
		cfg.OpenAIModel,
		cfg.OpenAIMaxTokens,
		cfg.OpenAITemperature,
	)

	// Base de datos y autenticación son opcionales: el proxy funciona solo.
	var userHandler *apihttp.UserHandler
	statusHandler := apihttp.NewStatusHandler(logger, nil)
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("db connect", zap.Error(err))
		}
		defer pool.Close()
		statusHandler = apihttp.NewStatusHandler(logger, pool)

		var tokenStore service.RefreshTokenStore
		if cfg.RedisAddr != "" {
			redisClient := redis.NewClient(&redis.Options{
				Addr:     cfg.RedisAddr,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			})
			ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
			if err := redisClient.Ping(ctxPing).Err(); err != nil {
				logger.Warn("redis ping failed", zap.Error(err))
			} else {
				tokenStore = service.NewRedisRefreshTokenStore(redisClient)
			}
			cancel()
		}

		jwtSvc := service.NewJWTServiceWithStore(
			cfg.JWTSecret,
			time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute,
			time.Duration(cfg.JWTRefreshTTLMinutes)*time.Minute,
			tokenStore,
		)
		if cfg.JWTSecret == "" {
			logger.Warn("jwt secret not configured")
		}

		userRepo := repository.NewPgUserRepository(pool)
		userSvc := service.NewUserService(logger, userRepo)
		userHandler = apihttp.NewUserHandler(logger, userSvc, jwtSvc)
	} else {
		logger.Info("database not configured, auth endpoints disabled")
	}

	router := apihttp.NewRouter(logger, completionHandler, statusHandler, userHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
