package observability

import (
	"bytes"
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger("debug", FormatText, &buf)
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	logger.Info("hello")
	assert.Contains(t, buf.String(), "hello")
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger("", FormatJSON, &buf)
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())

	logger.Info("hello")
	assert.Contains(t, buf.String(), `"msg":"hello"`)
}

func TestNewLogger_Invalid(t *testing.T) {
	_, err := NewLogger("loud", FormatText, nil)
	assert.Error(t, err)

	_, err = NewLogger("info", LogFormat("xml"), nil)
	assert.Error(t, err)
}

func TestModLogger(t *testing.T) {
	logger, hook := test.NewNullLogger()

	ModLogger(logger, "Farming").Warn("careful")

	require.Len(t, hook.Entries, 1)
	assert.Equal(t, "Farming", hook.LastEntry().Data["mod"])
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestWithTraceContext_NoSpan(t *testing.T) {
	logger, _ := test.NewNullLogger()
	entry := logrus.NewEntry(logger)

	got := WithTraceContext(context.Background(), entry)
	assert.Same(t, entry, got)
}
