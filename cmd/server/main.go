package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/file-parser/backend/internal/api"
	"github.com/file-parser/backend/internal/cache"
	"github.com/file-parser/backend/internal/config"
	"github.com/file-parser/backend/internal/ingest"
	"github.com/file-parser/backend/internal/logger"
	"github.com/file-parser/backend/internal/parser"
	"github.com/file-parser/backend/internal/queue"
	"github.com/file-parser/backend/internal/storage"
	"github.com/file-parser/backend/internal/store"
	"github.com/file-parser/backend/internal/worker"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// .env is optional; real environments set variables directly
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./file-parser.config.xml"
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Printf("Failed to create directories: %v\n", err)
		os.Exit(1)
	}

	log := logger.Init(logger.Config{
		Level:  cfg.Advanced.LogLevel,
		Format: cfg.Advanced.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Record store
	var st store.Store
	switch cfg.Database.Backend {
	case "memory":
		st = store.NewMemoryStore()
	default:
		st, err = store.NewDuckStore(cfg.Database.Path)
		if err != nil {
			log.Error("failed to open record store", "path", cfg.Database.Path, "error", err)
			os.Exit(1)
		}
	}
	defer st.Close()

	// Uploaded-byte storage
	var blobs storage.BlobStore
	switch cfg.Storage.Backend {
	case "minio":
		blobs, err = storage.NewMinioBlobStore(ctx, storage.MinioConfig{
			Endpoint:  cfg.Storage.MinioEndpoint,
			AccessKey: cfg.Storage.MinioAccessKey,
			SecretKey: cfg.Storage.MinioSecretKey,
			Bucket:    cfg.Storage.MinioBucket,
			UseSSL:    cfg.Storage.MinioUseSSL,
		})
	default:
		blobs, err = storage.NewLocalBlobStore(cfg.Storage.UploadsDirectory)
	}
	if err != nil {
		log.Error("failed to initialize storage", "backend", cfg.Storage.Backend, "error", err)
		os.Exit(1)
	}

	// Job queue
	var jobs queue.Queue
	switch cfg.Queue.Backend {
	case "amqp":
		jobs, err = queue.NewAMQPQueue(cfg.Queue.URL, cfg.Queue.Name, cfg.Worker.Count, log)
		if err != nil {
			log.Error("failed to connect to message broker", "error", err)
			os.Exit(1)
		}
	default:
		jobs = queue.NewMemoryQueue(cfg.Queue.BufferSize)
	}
	defer jobs.Close()

	// Progress read cache
	var progress cache.ProgressCache = cache.Noop{}
	if cfg.Cache.Backend == "redis" {
		progress, err = cache.NewRedisCache(cfg.Cache.RedisAddr, cfg.Cache.RedisDB, time.Duration(cfg.Cache.TTLSeconds)*time.Second)
		if err != nil {
			log.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
	}
	defer progress.Close()

	// Worker pool
	pool := worker.NewPool(st, blobs, jobs, parser.NewRegistry(), progress, log, cfg.Worker.Count)
	pool.Start(ctx)

	// Ingestion + API
	ingestSvc := ingest.NewService(st, blobs, jobs, log)

	var allowedExtensions []string
	if cfg.Security.AllowedFileTypes != "" {
		allowedExtensions = strings.Split(cfg.Security.AllowedFileTypes, ",")
	}
	h := api.NewHandler(st, blobs, ingestSvc, progress, log, allowedExtensions)

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = api.ErrorHandler

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize:         1024 * 4,
		DisablePrintStack: false,
	}))

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			if !cfg.Advanced.EnableRequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return strings.HasSuffix(path, "/progress") || path == "/health"
		},
	}))

	if cfg.Advanced.EnableCompression {
		e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
			Level: cfg.Advanced.CompressionLevel,
		}))
	}

	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	if cfg.Server.EnableCORS {
		origins := strings.Split(cfg.Server.AllowOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		if len(origins) == 0 || (len(origins) == 1 && origins[0] == "") {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}

	api.RegisterRoutes(e, h, cfg.Security.AllowFileDeletion)

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	log.Info("file parser server starting",
		"version", Version,
		"build_time", BuildTime,
		"addr", cfg.GetServerAddr(),
		"store", cfg.Database.Backend,
		"queue", cfg.Queue.Backend,
		"workers", cfg.Worker.Count,
	)

	go func() {
		if err := e.StartServer(s); err != nil && err != http.ErrServerClosed {
			log.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown", "error", err)
	}

	jobs.Close()
	pool.Wait()
}
