// Package main runs the background job worker (video pipeline, document extraction).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/neurolearn/backend/config"
	"github.com/neurolearn/backend/internal/ai"
	"github.com/neurolearn/backend/internal/documents"
	"github.com/neurolearn/backend/internal/faults"
	"github.com/neurolearn/backend/internal/media"
	"github.com/neurolearn/backend/internal/pipeline"
	"github.com/neurolearn/backend/internal/realtime"
	"github.com/neurolearn/backend/internal/transcription"
	"github.com/neurolearn/backend/internal/videos"
	"github.com/neurolearn/backend/internal/worker"
	"github.com/neurolearn/backend/pkg/database"
	"github.com/neurolearn/backend/pkg/queue"
	"github.com/neurolearn/backend/pkg/redis"
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

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	s3Cfg := storage.S3Config{
		Region:               cfg.AWS.Region,
		AccessKeyID:          cfg.AWS.AccessKeyID,
		SecretAccessKey:      cfg.AWS.SecretAccessKey,
		VideoBucket:          cfg.AWS.VideoBucket,
		FramesBucket:         cfg.AWS.FramesBucket,
		PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
	}
	s3Client, err := storage.NewS3(ctx, s3Cfg, logger)
	if err != nil {
		logger.Fatal("s3", zap.Error(err))
	}

	faultSvc := faults.NewService(logger)

	// Publish progress over Redis so server instances can fan out to clients.
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)
	faultSvc.SetPublisher(hub)

	var completer ai.Completer
	if cfg.Gemini.Enabled {
		completer = ai.NewGemini(cfg.Gemini.APIKey, cfg.Gemini.BaseURL, cfg.Gemini.Model, logger)
	} else {
		completer = ai.NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.ChatModel, logger)
	}

	videoRepo := videos.NewRepository(pool)
	ffmpeg := media.NewFFmpeg(cfg.Media.FFmpegPath, cfg.Media.FFprobePath, logger)
	frameSvc := media.NewFrameService(ffmpeg, faultSvc, s3Client, videoRepo, cfg.Media.TempDir, logger)
	whisper := transcription.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, ffmpeg, 0, cfg.Media.TempDir, logger)
	youtube := pipeline.NewYouTube(cfg.Media.YtdlpPath, logger)

	videoPipeline := pipeline.NewVideoPipeline(
		videoRepo, ffmpeg, frameSvc, whisper, completer, s3Client, faultSvc, youtube, cfg.Media.TempDir, logger)

	docRepo := documents.NewRepository(pool)
	docProcessor := documents.NewProcessor(docRepo, s3Client, faultSvc, cfg.Media.TempDir, logger)

	jobQueue := queue.NewQueue(rdb.Client, logger)
	processor := worker.NewProcessor(videoPipeline, docProcessor, jobQueue, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	logger.Info("worker started")

	// Drop stale in-memory error and progress records.
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				faultSvc.Cleanup(time.Hour)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
