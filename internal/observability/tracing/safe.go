package tracing

import (
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

const maxErrorMessageLength = 256

var forbiddenAttributeKeys = map[attribute.Key]struct{}{
	"authorization": {},
	"password":      {},
	"token":         {},
	"answer":        {},
	"audio_url":     {},
}

// SafeAttributes drops attributes that may carry credentials or participant content.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, blocked := forbiddenAttributeKeys[attr.Key]; blocked {
			continue
		}
		out = append(out, attr)
	}
	return out
}

// SafeError returns an error whose message is truncated and stripped of bearer tokens.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if idx := strings.Index(strings.ToLower(msg), "bearer "); idx >= 0 {
		msg = msg[:idx] + "bearer [redacted]"
	}
	if len(msg) > maxErrorMessageLength {
		msg = msg[:maxErrorMessageLength]
	}
	return errors.New(msg)
}
