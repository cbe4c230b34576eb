// Package main runs the learning platform HTTP server with WebSocket progress and graceful shutdown.
package main

import (
	"context"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/neurolearn/backend/config"
	"github.com/neurolearn/backend/internal/ai"
	"github.com/neurolearn/backend/internal/auth"
	"github.com/neurolearn/backend/internal/documents"
	"github.com/neurolearn/backend/internal/faults"
	"github.com/neurolearn/backend/internal/media"
	"github.com/neurolearn/backend/internal/middleware"
	"github.com/neurolearn/backend/internal/quiz"
	"github.com/neurolearn/backend/internal/realtime"
	"github.com/neurolearn/backend/internal/videos"
	"github.com/neurolearn/backend/pkg/database"
	"github.com/neurolearn/backend/pkg/queue"
	"github.com/neurolearn/backend/pkg/redis"
	"github.com/neurolearn/backend/pkg/response"
	"github.com/neurolearn/backend/pkg/storage"
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
			VideoBucket:          cfg.AWS.VideoBucket,
			FramesBucket:         cfg.AWS.FramesBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)

	faultSvc := faults.NewService(logger)
	faultSvc.SetPublisher(hub)

	// AI provider for summaries and quiz generation.
	var completer ai.Completer
	var modelName string
	if cfg.Gemini.Enabled {
		completer = ai.NewGemini(cfg.Gemini.APIKey, cfg.Gemini.BaseURL, cfg.Gemini.Model, logger)
		modelName = cfg.Gemini.Model
	} else {
		completer = ai.NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.ChatModel, logger)
		modelName = cfg.OpenAI.ChatModel
	}

	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Videos
	videoRepo := videos.NewRepository(pool)
	ffmpeg := media.NewFFmpeg(cfg.Media.FFmpegPath, cfg.Media.FFprobePath, logger)
	frameSvc := media.NewFrameService(ffmpeg, faultSvc, s3Client, videoRepo, cfg.Media.TempDir, logger)
	videoHandler := videos.NewHandler(videoRepo, s3Client, jobQueue, faultSvc, frameSvc, cfg.Media.TempDir, logger)

	// Documents
	docRepo := documents.NewRepository(pool)
	docHandler := documents.NewHandler(docRepo, s3Client, jobQueue, completer, modelName, logger)

	// Quizzes
	quizRepo := quiz.NewRepository(pool)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	quizGen := quiz.NewGenerator(quizRepo, docRepo, completer, faultSvc, rng, logger)
	quizHandler := quiz.NewHandler(quizRepo, quizGen, faultSvc, logger)

	jwtValidate := func(token string) (userID string, err error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return "", err
		}
		return claims.UserID.String(), nil
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

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Users (admin only)
		api.GET("/users", middleware.RequireRole("admin"), authHandler.List)

		// Videos
		api.POST("/videos/upload", videoHandler.Upload)
		api.POST("/videos/process-url", videoHandler.ProcessURL)
		api.GET("/videos", videoHandler.List)
		api.GET("/videos/:id", videoHandler.Get)
		api.DELETE("/videos/:id", videoHandler.Delete)
		api.GET("/videos/:id/transcript", videoHandler.GetTranscript)
		api.GET("/videos/:id/frames", videoHandler.GetFrames)
		api.POST("/videos/:id/frames/extract", videoHandler.ExtractFrames)
		api.GET("/videos/:id/timestamps", videoHandler.GetTimestamps)
		api.GET("/videos/:id/progress", videoHandler.StreamProgress)

		// Documents
		api.POST("/documents/upload", docHandler.Upload)
		api.GET("/documents", docHandler.List)
		api.GET("/documents/:id", docHandler.Get)
		api.DELETE("/documents/:id", docHandler.Delete)
		api.GET("/documents/:id/chunks", docHandler.GetChunks)

		// Cross-document summaries
		api.POST("/summaries", docHandler.GenerateSummary)
		api.GET("/summaries", docHandler.ListSummaries)

		// Quizzes
		api.POST("/quizzes/generate", quizHandler.Generate)
		api.GET("/quizzes", quizHandler.List)
		api.GET("/quizzes/stats", quizHandler.Stats)
		api.GET("/quizzes/:id", quizHandler.Get)
		api.POST("/quizzes/:id/submit", quizHandler.Submit)
		api.POST("/questions/:id/flag", quizHandler.FlagQuestion)
	}

	// WebSocket progress (token in query; no Authorization header required)
	router.GET("/ws", func(c *gin.Context) {
		realtime.ServeWs(hub, logger, jwtValidate)(c)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Periodic cleanup of resolved errors and finished operation progress.
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-cleanupCtx.Done():
				return
			case <-ticker.C:
				removedErrs, removedOps := faultSvc.Cleanup(time.Hour)
				if removedErrs > 0 || removedOps > 0 {
					logger.Debug("fault cleanup",
						zap.Int("errors", removedErrs), zap.Int("operations", removedOps))
				}
			}
		}
	}()

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cleanupCancel()
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
