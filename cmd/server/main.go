// Package main runs the event platform HTTP server with WebSocket and
// graceful shutdown.
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

	"github.com/aura-events/backend/config"
	"github.com/aura-events/backend/internal/auth"
	"github.com/aura-events/backend/internal/chat"
	"github.com/aura-events/backend/internal/middleware"
	"github.com/aura-events/backend/internal/presence"
	"github.com/aura-events/backend/internal/realtime"
	"github.com/aura-events/backend/internal/scheduling"
	"github.com/aura-events/backend/internal/sessions"
	"github.com/aura-events/backend/pkg/database"
	"github.com/aura-events/backend/pkg/queue"
	"github.com/aura-events/backend/pkg/redis"
	"github.com/aura-events/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, logger)
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

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Session catalog
	sessionRepo := sessions.NewRepository(pool)
	sessionHandler := sessions.NewHandler(sessionRepo, logger)

	// Scheduling engine
	reservationStore := scheduling.NewRepository(pool)
	engine := scheduling.NewEngine(sessionRepo, reservationStore, logger)
	schedulingHandler := scheduling.NewHandler(engine, jobQueue, logger)

	// Presence + realtime messaging
	registry := presence.NewRegistry(logger)
	pubsub := realtime.NewRedisPubSub(rdb.Client, logger)
	router := realtime.NewRouter(logger, pubsub, pubsub)
	chatRepo := chat.NewRepository(pool, rdb.Client, cfg.RateLimit.MessagesPerWindow, cfg.RateLimit.Window, logger)
	relay := chat.NewRelay(chatRepo, chatRepo, router, registry, logger)
	chatHandler := chat.NewHandler(chatRepo, logger)
	gateway := realtime.NewGateway(registry, router, relay, logger)

	validate := func(token string) (uuid.UUID, string, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return uuid.Nil, "", err
		}
		return claims.UserID, claims.Role, nil
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	r.Use(middleware.Logger(logger))

	// Health
	r.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Protected API (JWT required)
	api := r.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Session catalog
		api.GET("/sessions", sessionHandler.List)
		api.GET("/sessions/:id", sessionHandler.GetByID)
		api.POST("/sessions", middleware.RequireRole("admin"), sessionHandler.Create)
		api.PATCH("/sessions/:id/status", middleware.RequireRole("admin"), sessionHandler.UpdateStatus)
		api.DELETE("/sessions/:id", middleware.RequireRole("admin"), sessionHandler.Delete)

		// Reservations
		api.POST("/sessions/:id/reservations", schedulingHandler.Create)
		api.GET("/sessions/:id/conflicts", schedulingHandler.CheckConflicts)
		api.GET("/reservations", schedulingHandler.List)
		api.PATCH("/reservations/:id", schedulingHandler.Update)
		api.DELETE("/reservations/:id", schedulingHandler.Delete)

		// Conversations (history + creation; live traffic is on /ws)
		api.POST("/conversations", chatHandler.CreateConversation)
		api.GET("/conversations", chatHandler.ListConversations)
		api.GET("/conversations/:id/messages", chatHandler.ListMessages)
	}

	// WebSocket (token in query; no Authorization header on upgrade)
	r.GET("/ws", gateway.ServeWs(validate))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

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
