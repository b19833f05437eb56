// Package main runs the GaunerAudio backend: transcript extraction, long-text
// speech synthesis, and Drive uploads behind a single HTTP server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gauner-audio/backend/config"
	"github.com/gauner-audio/backend/internal/auth"
	"github.com/gauner-audio/backend/internal/drive"
	"github.com/gauner-audio/backend/internal/middleware"
	"github.com/gauner-audio/backend/internal/speech"
	"github.com/gauner-audio/backend/internal/transcript"
	"github.com/gauner-audio/backend/internal/worker"
	"github.com/gauner-audio/backend/pkg/database"
	"github.com/gauner-audio/backend/pkg/queue"
	"github.com/gauner-audio/backend/pkg/redis"
	"github.com/gauner-audio/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()

	// Postgres backs the user store and upload history. The core pipeline
	// holds no server state, so the service still runs without it.
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Warn("postgres unavailable; users and upload history disabled", zap.Error(err))
		pool = nil
	} else {
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Warn("redis unavailable; transcript cache and archive queue disabled", zap.Error(err))
		rdb = nil
	} else {
		defer rdb.Close()
	}

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Client, err = storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ArchiveBucket:        cfg.AWS.ArchiveBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	// Transcript extraction: yt-dlp subprocess first, direct timedtext second.
	ytdlp := transcript.NewYtdlpSource(cfg.YouTube.YtdlpPath, time.Duration(cfg.YouTube.SubtitleTimeout)*time.Second, logger)
	timedtext := transcript.NewTimedtextSource(logger)
	extractor := transcript.NewExtractor(
		[]transcript.CaptionSource{ytdlp, timedtext},
		ytdlp,
		cfg.YouTube.DefaultLanguage,
		logger,
	)
	var transcriptCache *transcript.Cache
	if rdb != nil {
		transcriptCache = transcript.NewCache(rdb.Client, time.Duration(cfg.YouTube.CacheTTLHours)*time.Hour, logger)
	}
	transcriptHandler := transcript.NewHandler(extractor, transcriptCache, cfg.YouTube.DefaultLanguage, logger)

	// Speech synthesis with optional server-side archive.
	synth := speech.NewSynthesizer(logger)
	var jobQueue *queue.Queue
	if rdb != nil && s3Client != nil {
		jobQueue = queue.NewQueue(rdb.Client, logger)
	}
	speechHandler := speech.NewHandler(synth, jobQueue, cfg.Speech.DefaultRegion, cfg.Speech.DefaultVoice, cfg.Speech.SubscriptionKey, logger)

	// Drive uploads.
	driveClient := drive.NewClient(cfg.Drive.FolderPrefix, logger)
	var driveRepo *drive.Repository
	if pool != nil {
		driveRepo = drive.NewRepository(pool)
	}
	driveHandler := drive.NewHandler(driveClient, driveRepo, logger)

	// Auth / admin.
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	var authHandler *auth.Handler
	if pool != nil {
		authHandler = auth.NewHandler(auth.NewRepository(pool), jwtService, logger)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "message": "GaunerAudio backend is running"})
	})

	api := router.Group("/api")
	{
		api.POST("/tts", speechHandler.Synthesize)
		api.POST("/voices", speechHandler.Voices)
		api.POST("/transcript", transcriptHandler.Get)
		api.POST("/upload-to-drive", driveHandler.Upload)
	}

	if authHandler != nil {
		authGroup := router.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}

		protected := router.Group("/api")
		protected.Use(middleware.JWT(jwtService))
		{
			protected.GET("/users", middleware.RequireRole("admin"), authHandler.List)
			protected.DELETE("/users/:id", middleware.RequireRole("admin"), authHandler.Delete)
			protected.GET("/uploads", driveHandler.History)
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background worker (audio archive to S3).
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if jobQueue != nil {
		archiver := worker.NewArchiver(s3Client, jobQueue, logger)
		go archiver.Run(workerCtx)
		logger.Info("archive worker started")
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

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := cfg.Build()
	return logger
}
