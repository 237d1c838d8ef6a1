// Package main runs the Gatherly HTTP server with WebSocket and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gatherly/backend/config"
	"github.com/gatherly/backend/internal/auth"
	"github.com/gatherly/backend/internal/groups"
	"github.com/gatherly/backend/internal/middleware"
	"github.com/gatherly/backend/internal/notify"
	"github.com/gatherly/backend/internal/polls"
	"github.com/gatherly/backend/internal/wishlists"
	"github.com/gatherly/backend/internal/worker"
	"github.com/gatherly/backend/pkg/database"
	"github.com/gatherly/backend/pkg/queue"
	"github.com/gatherly/backend/pkg/redis"
	"github.com/gatherly/backend/pkg/response"
	"github.com/gatherly/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ImagesBucket:         cfg.AWS.ImagesBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := notify.NewRedisPubSub(rdb.Client, logger)
	hub := notify.NewHub(logger, redisPubSub, redisPubSub)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Groups
	groupRepo := groups.NewRepository(pool)
	groupHandler := groups.NewHandler(groupRepo)

	// Polls
	pollRepo := polls.NewRepository(pool)
	pollEngine := polls.NewEngine(pollRepo, notify.NewHubNotifier(hub), logger)
	pollHandler := polls.NewHandler(pollEngine, jobQueue, logger)

	// Wishlists
	wishRepo := wishlists.NewRepository(pool)
	wishHandler := wishlists.NewHandler(wishRepo, jobQueue, s3Client, logger)

	validateToken := func(token string) (uuid.UUID, string, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return uuid.Nil, "", err
		}
		return claims.UserID, claims.Email, nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Protected API (JWT required, rate limited)
	api := router.Group("")
	api.Use(middleware.JWT(validateToken))
	api.Use(middleware.RateLimit(rdb.Client, cfg.RateLimit.RequestsPerWindow,
		time.Duration(cfg.RateLimit.WindowSeconds)*time.Second, logger))
	{
		// Profile
		api.GET("/auth/me", authHandler.Me)
		api.PATCH("/auth/me", authHandler.UpdateMe)
		api.GET("/users/search", authHandler.Search)

		// Groups
		api.GET("/groups", groupHandler.ListMyGroups)
		api.POST("/groups", groupHandler.CreateGroup)
		api.POST("/groups/join", groupHandler.JoinGroup)
		api.POST("/groups/:id/leave", groupHandler.LeaveGroup)
		api.GET("/groups/:id/members", groupHandler.ListMembers)
		api.GET("/groups/:id/polls", pollHandler.ListByGroup)

		// Polls
		api.GET("/polls", pollHandler.ListMine)
		api.POST("/polls", pollHandler.Create)
		api.GET("/polls/:id", pollHandler.Get)
		api.PATCH("/polls/:id", pollHandler.Update)
		api.POST("/polls/:id/finalize", pollHandler.Finalize)
		api.POST("/polls/:id/cancel", pollHandler.Cancel)
		api.POST("/polls/:id/reopen", pollHandler.Reopen)
		api.PUT("/polls/:id/vote", pollHandler.SubmitVote)
		api.GET("/polls/:id/vote", pollHandler.GetMyVote)
		api.DELETE("/polls/:id/vote", pollHandler.DeleteVote)
		api.GET("/polls/:id/voters", pollHandler.Voters)
		api.GET("/polls/:id/results", pollHandler.Results)
		api.POST("/polls/:id/remind", pollHandler.Remind)

		// Wishlists
		api.GET("/wishlists", wishHandler.ListMine)
		api.POST("/wishlists", wishHandler.Create)
		api.GET("/wishlists/:id", wishHandler.Get)
		api.PATCH("/wishlists/:id", wishHandler.Update)
		api.DELETE("/wishlists/:id", wishHandler.Delete)
		api.POST("/wishlists/:id/items", wishHandler.AddItem)
		api.PATCH("/wishlists/:id/items/:itemID", wishHandler.UpdateItem)
		api.DELETE("/wishlists/:id/items/:itemID", wishHandler.DeleteItem)
		api.GET("/wishlists/:id/items/:itemID/image", wishHandler.ItemImage)
		api.GET("/users/:id/wishlists", wishHandler.ListForUser)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", notify.ServeWs(hub, logger, func(token string) (uuid.UUID, error) {
		userID, _, err := validateToken(token)
		return userID, err
	}))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// In-process expiry sweep so overdue polls expire even without the
	// standalone worker.
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	sweeper := worker.NewProcessor(pollRepo, wishRepo, s3Client, jobQueue, redisPubSub, cfg.Reminders.MaxPerInvite, logger)
	go sweeper.RunExpirySweep(sweepCtx, time.Duration(cfg.Reminders.ExpirySweepSec)*time.Second)

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	sweepCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
