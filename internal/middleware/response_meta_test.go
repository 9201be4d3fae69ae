package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dataportal-api/internal/service"
)

func TestWithResponseMetaRecordsProcessingTime(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var captured map[string]interface{}

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Next()
		captured = ExtractMeta(c)
	})
	r.Use(WithResponseMeta())
	r.GET("/files", func(c *gin.Context) {
		SetMeta(c, "count", 3)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/files", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, captured)
	assert.Equal(t, 3, captured["count"])
	assert.Contains(t, captured, "processing_time_ms")
}

func TestMetricsMiddlewareCountsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()

	r := gin.New()
	r.Use(Metrics(metrics))
	r.GET("/files/:uuid", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/files/abc", nil))

	assert.Equal(t, uint64(1), metrics.Snapshot().RequestsTotal)
}

func TestMetricsMiddlewareLabelsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()

	r := gin.New()
	r.Use(Metrics(metrics))
	r.GET("/api/files/:uuid", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{
		"/api/files/9e04d8ef-0f2b-4e8a-a2d6-0c0f5b4b6f10",
		"/api/files/2b1a3c6f-7d44-4e0e-9f0d-1f8f5a7c2d11",
		"/api/nowhere/5d7c0f2e-3b9a-4c61-8e2f-6a4b9d1e0c33",
	} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	w := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()

	assert.Contains(t, body, `http_requests_total{method="GET",path="/api/files/:uuid",status="200"} 2`)
	assert.Contains(t, body, `http_requests_total{method="GET",path="unmatched",status="404"} 1`)
	assert.False(t, strings.Contains(body, "5d7c0f2e"), "raw paths must not become labels")
	assert.Equal(t, uint64(3), metrics.Snapshot().RequestsTotal)
}
