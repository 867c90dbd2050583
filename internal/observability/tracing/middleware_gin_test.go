package tracing

import (
	"net/http"
	"net/http/httptest"
	"testing"

	obscontext "github.com/LyngualLabs/SpeechAppBackendV2/internal/observability/context"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestGinMiddlewareNamesSpanByRoute(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/api/prompts/:variant/next", func(c *gin.Context) {
		c.Request = c.Request.WithContext(obscontext.WithActor(c.Request.Context(), "user", "1001"))
		c.Status(http.StatusOK)
	})
	r.POST("/api/recordings/:variant", func(c *gin.Context) {
		c.Status(http.StatusServiceUnavailable)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/prompts/Scripted/next", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/recordings/freeform", nil))

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}

	next := spans[0]
	if next.Name() != "HTTP GET /api/prompts/:variant/next" {
		t.Fatalf("unexpected span name %q", next.Name())
	}
	attrs := attribute.NewSet(next.Attributes()...)
	if v, ok := attrs.Value("speech.variant"); !ok || v.AsString() != "scripted" {
		t.Fatalf("expected speech.variant=scripted, got %v", v)
	}
	if v, ok := attrs.Value("actor.id"); !ok || v.AsString() != "1001" {
		t.Fatalf("expected actor.id=1001, got %v", v)
	}
	if next.Status().Code == codes.Error {
		t.Fatalf("expected ok status for 200")
	}

	upload := spans[1]
	if upload.Status().Code != codes.Error {
		t.Fatalf("expected error status for 503, got %v", upload.Status().Code)
	}
	if _, ok := attribute.NewSet(upload.Attributes()...).Value("actor.id"); ok {
		t.Fatalf("expected no actor on anonymous request")
	}
}
