package logging

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("Debug")
	require.NoError(t, err)
	assert.Equal(t, DebugLevel, level)

	level, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, InfoLevel, level)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}

func TestDefaultLoggerRoutesByLevel(t *testing.T) {
	var out, errOut bytes.Buffer
	logger := NewDefaultLoggerWithWriters(&out, &errOut)

	logger.Debug("hidden")
	logger.Info("frames analyzed", Fields{"frames": 12, "component": "extractor"})
	logger.Error(errors.New("boom"), "decode failed")

	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), "[INFO] frames analyzed component=extractor frames=12")
	assert.Contains(t, errOut.String(), "[ERROR] decode failed: boom")
}

func TestWithContextFields(t *testing.T) {
	var out bytes.Buffer
	logger := NewDefaultLoggerWithWriters(&out, &out)

	ctx := ContextWithFields(context.Background(), Fields{"request_id": "abc"})
	logger.WithContext(ctx).Info("graded")

	assert.Contains(t, out.String(), "request_id=abc")
}

func TestFatalUsesExitHook(t *testing.T) {
	var out bytes.Buffer
	logger := NewDefaultLoggerWithWriters(&out, &out)
	code := -1
	logger.exit = func(c int) { code = c }

	logger.Fatal(errors.New("bad config"), "cannot start")

	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "[FATAL] cannot start: bad config")
}
