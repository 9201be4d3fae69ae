package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/dataportal-api/internal/handler"
	"github.com/noah-isme/dataportal-api/internal/middleware"
	"github.com/noah-isme/dataportal-api/internal/service"
	"github.com/noah-isme/dataportal-api/pkg/config"
	"github.com/noah-isme/dataportal-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/dataportal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/dataportal-api/pkg/middleware/requestid"
)

type routerHandlers struct {
	files       *handler.FileHandler
	submissions *handler.SubmissionHandler
	references  *handler.ReferenceHandler
	index       *handler.IndexHandler
	metrics     *handler.MetricsHandler
	ready       gin.HandlerFunc
}

// newRouter mounts the public read API under cfg.APIPrefix and the private
// write and maintenance routes at the root.
func newRouter(cfg *config.Config, logr *zap.Logger, metrics *service.MetricsService, h routerHandlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(middleware.Metrics(metrics))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	r.GET("/health", h.metrics.Health)
	if h.ready != nil {
		r.GET("/ready", h.ready)
	}
	r.GET("/metrics", h.metrics.Prometheus)

	public := r.Group(cfg.APIPrefix)
	public.Use(middleware.WithResponseMeta())
	{
		public.GET("/files", h.files.List)
		public.GET("/files/:uuid", h.files.Get)
		public.GET("/search", h.files.Search)
		public.GET("/download/:uuid", h.files.Download)
		public.GET("/sites", h.references.Sites)
		public.GET("/products", h.references.Products)
		public.GET("/models", h.references.Models)
		public.GET("/status", h.metrics.Status)
	}

	r.PUT("/files/:uuid", h.submissions.Submit)
	r.POST("/files/:uuid", h.submissions.Amend)
	r.POST("/model-files", h.submissions.SubmitModelFile)

	admin := r.Group("/admin")
	{
		admin.POST("/index/rebuild", h.index.Rebuild)
		admin.GET("/index/verify", h.index.Verify)
	}

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
