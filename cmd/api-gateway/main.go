package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	_ "github.com/noah-isme/dataportal-api/api/swagger"
	"github.com/noah-isme/dataportal-api/internal/handler"
	"github.com/noah-isme/dataportal-api/internal/repository"
	"github.com/noah-isme/dataportal-api/internal/service"
	"github.com/noah-isme/dataportal-api/pkg/cache"
	"github.com/noah-isme/dataportal-api/pkg/config"
	"github.com/noah-isme/dataportal-api/pkg/database"
	"github.com/noah-isme/dataportal-api/pkg/jobs"
	"github.com/noah-isme/dataportal-api/pkg/logger"
	"github.com/noah-isme/dataportal-api/pkg/storage"
)

// @title Data Portal API
// @version 1.0.0
// @description Catalog of atmospheric remote-sensing product files and their best versions
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db, logr); err != nil {
			logr.Fatal("failed to migrate database", zap.Error(err))
		}
	}

	blobs, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		logr.Fatal("failed to init object storage", zap.Error(err))
	}
	defer blobs.Close()

	metrics := service.NewMetricsService()
	cacheSvc := newCacheService(ctx, cfg, metrics, logr)

	validate := validator.New()
	resolver := service.NewBestVersionResolver(service.NewVolatilityPolicy(cfg.Catalog.VolatilityWindow), nil)
	signer := storage.NewSignedURLSigner(cfg.Download.BaseURL, cfg.Download.SigningSecret, cfg.Download.URLTTL)

	fileRepo := repository.NewFileRevisionRepository(db)
	bestRepo := repository.NewBestVersionRepository(db)
	refRepo := repository.NewReferenceRepository(db)

	ranks := service.NewModelRankService(refRepo, cfg.Catalog.ModelRankCacheSize, logr)
	refs := service.NewReferenceService(refRepo, ranks, cacheSvc, logr)
	files := service.NewFileService(fileRepo, bestRepo, blobs, signer, resolver, metrics, validate, logr)
	submissions := service.NewSubmissionService(db, fileRepo, bestRepo, refs, ranks, blobs, resolver, validate, logr,
		service.SubmissionConfig{
			ProductBucket:      cfg.Storage.ProductBucket,
			VolatileBucket:     cfg.Storage.VolatileBucket,
			TransactionTimeout: cfg.Catalog.SubmissionTimeout,
		},
		service.WithSubmissionMetrics(metrics),
	)
	index := service.NewIndexService(db, fileRepo, bestRepo, resolver, metrics, logr, jobs.QueueConfig{
		Workers:    cfg.IndexQueue.Workers,
		BufferSize: 1,
		MaxRetries: cfg.IndexQueue.Retries,
		RetryDelay: cfg.IndexQueue.RetryDelay,
	})
	index.Start(ctx)
	defer index.Stop()

	r := newRouter(cfg, logr, metrics, routerHandlers{
		files:       handler.NewFileHandler(files),
		submissions: handler.NewSubmissionHandler(submissions, files),
		references:  handler.NewReferenceHandler(refs),
		index:       handler.NewIndexHandler(index),
		metrics:     handler.NewMetricsHandler(metrics),
		ready:       readiness(db),
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Catalog.SubmissionTimeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

// newCacheService connects Redis when caching is enabled. A Redis outage at
// startup disables the cache instead of failing the service.
func newCacheService(ctx context.Context, cfg *config.Config, metrics *service.MetricsService, logr *zap.Logger) *service.CacheService {
	if !cfg.Cache.Enabled {
		return service.NewCacheService(nil, metrics, cfg.Cache.TTL, logr, false)
	}
	client, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, reference cache disabled", zap.Error(err))
		return service.NewCacheService(nil, metrics, cfg.Cache.TTL, logr, false)
	}
	repo := repository.NewCacheRepository(client, "dataportal:")
	return service.NewCacheService(repo, metrics, cfg.Cache.TTL, logr, true)
}

func readiness(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		pingCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}
