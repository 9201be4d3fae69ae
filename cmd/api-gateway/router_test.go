package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/dataportal-api/internal/handler"
	"github.com/noah-isme/dataportal-api/internal/service"
	"github.com/noah-isme/dataportal-api/pkg/config"
)

func testRouter(env string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	cfg := &config.Config{Env: env, APIPrefix: "/api"}
	return newRouter(cfg, zap.NewNop(), metrics, routerHandlers{
		files:       handler.NewFileHandler(nil),
		submissions: handler.NewSubmissionHandler(nil, nil),
		references:  handler.NewReferenceHandler(nil),
		index:       handler.NewIndexHandler(nil),
		metrics:     handler.NewMetricsHandler(metrics),
	})
}

func TestRouterRegistersCatalogRoutes(t *testing.T) {
	r := testRouter(config.EnvDevelopment)

	registered := make(map[string]bool)
	for _, route := range r.Routes() {
		registered[route.Method+" "+route.Path] = true
	}
	for _, want := range []string{
		"GET /api/files",
		"GET /api/files/:uuid",
		"GET /api/search",
		"GET /api/download/:uuid",
		"GET /api/models",
		"PUT /files/:uuid",
		"POST /files/:uuid",
		"POST /model-files",
		"POST /admin/index/rebuild",
		"GET /admin/index/verify",
		"GET /docs/*any",
	} {
		assert.True(t, registered[want], "missing route %s", want)
	}
}

func TestRouterHidesDocsInProduction(t *testing.T) {
	r := testRouter(config.EnvProduction)
	for _, route := range r.Routes() {
		assert.NotEqual(t, "/docs/*any", route.Path)
	}
}

func TestRouterHealthAndRequestID(t *testing.T) {
	r := testRouter(config.EnvDevelopment)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRouterUnconfiguredServiceIsServerError(t *testing.T) {
	r := testRouter(config.EnvDevelopment)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/files", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
