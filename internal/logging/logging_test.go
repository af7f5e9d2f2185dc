package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New("warn", "json", &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "bucket", "20150825T080000")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"bucket":"20150825T080000"`)
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New("debug", "text", &buf)
	require.NoError(t, err)

	logger.Debug("pumped", "events", 3)
	assert.True(t, strings.Contains(buf.String(), "events=3"))
}

func TestNewRejectsUnknownSettings(t *testing.T) {
	_, err := New("loud", "json", &bytes.Buffer{})
	assert.Error(t, err)

	_, err = New("info", "xml", &bytes.Buffer{})
	assert.Error(t, err)
}

func TestContextCarriesLogger(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	ctx := ContextWithLogger(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))

	assert.Equal(t, ctx, ContextWithLogger(ctx, nil))
}

func TestOperationPrefersContextLogger(t *testing.T) {
	var base, scoped bytes.Buffer
	baseLogger := slog.New(slog.NewJSONHandler(&base, nil))
	ctx := ContextWithLogger(context.Background(), slog.New(slog.NewJSONHandler(&scoped, nil)))

	Operation(ctx, baseLogger, "groupmanager", "GetGroupKey", "members", 2).Info("group key generated")

	assert.Empty(t, base.String())
	assert.Contains(t, scoped.String(), `"component":"groupmanager"`)
	assert.Contains(t, scoped.String(), `"operation":"GetGroupKey"`)
	assert.Contains(t, scoped.String(), `"members":2`)
}
