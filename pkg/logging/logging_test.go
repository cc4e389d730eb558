package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel(" warning "))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "info").With("svc", "test")

	ctx := IntoContext(context.Background(), l)
	FromContext(ctx).Info("hello")
	assert.Contains(t, buf.String(), `"svc":"test"`)
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	assert.Same(t, slog.Default(), FromContext(context.Background()))
}
