package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestGinMiddlewareCountsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := prometheus.NewRegistry()
	m := newHTTPMetrics(registry, Config{ServiceName: "speechapp"})

	r := gin.New()
	r.Use(GinMiddleware(m))
	r.GET("/api/prompts/:variant/next", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/prompts/scripted/next", nil)
		r.ServeHTTP(w, req)
	}

	got := testutil.ToFloat64(m.requests.WithLabelValues("/api/prompts/:variant/next", "GET", "204"))
	if got != 2 {
		t.Fatalf("expected 2 requests, got %v", got)
	}
}

func TestNewHTTPMetricsReusesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := newHTTPMetrics(registry, Config{})
	second := newHTTPMetrics(registry, Config{})
	if first.requests != second.requests {
		t.Fatalf("expected the existing collector to be reused")
	}
}
