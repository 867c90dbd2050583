package tracing

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsSensitiveKeys(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/api/recordings/:variant"),
		attribute.String("token", "secret"),
		attribute.String("answer", "my answer"),
	)
	if len(attrs) != 1 {
		t.Fatalf("expected 1 attribute, got %d", len(attrs))
	}
	if attrs[0].Key != "http.route" {
		t.Fatalf("expected http.route to be retained, got %s", attrs[0].Key)
	}
}

func TestSafeErrorRedactsBearerToken(t *testing.T) {
	err := SafeError(errors.New("upstream rejected Bearer abc.def"))
	if strings.Contains(err.Error(), "abc.def") {
		t.Fatalf("expected token to be redacted, got %q", err.Error())
	}
	if SafeError(nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}

func TestSafeErrorTruncates(t *testing.T) {
	err := SafeError(errors.New(strings.Repeat("x", 1000)))
	if len(err.Error()) != maxErrorMessageLength {
		t.Fatalf("expected truncated message, got %d chars", len(err.Error()))
	}
}

func TestEnsureCorrelationIDKeepsExisting(t *testing.T) {
	ctx := ContextWithCorrelationID(context.Background(), "cid-1")
	_, cid := EnsureCorrelationID(ctx)
	if cid != "cid-1" {
		t.Fatalf("expected existing id, got %q", cid)
	}

	_, generated := EnsureCorrelationID(context.Background())
	if generated == "" {
		t.Fatalf("expected generated id")
	}
}
