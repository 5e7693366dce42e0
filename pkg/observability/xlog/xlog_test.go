package xlog

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/rxgate/pkg/context/xctx"
)

func buildTestLogger(t *testing.T, level Level) (Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger, err := NewBuilder().WithLevel(level).WithWriter(&buf).Build()
	require.NoError(t, err)
	return logger, &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &m))
	return m
}

func TestLogger_EnrichesCorrelationID(t *testing.T) {
	logger, buf := buildTestLogger(t, LevelInfo)
	ctx := xctx.WithCorrelationID(context.Background(), "cid-7")

	logger.Info(ctx, "order created", slog.String("order_id", "o-1"))

	line := decodeLine(t, buf)
	assert.Equal(t, "order created", line["msg"])
	assert.Equal(t, "cid-7", line["correlation_id"])
	assert.Equal(t, "o-1", line["order_id"])
}

func TestLogger_LevelFiltering(t *testing.T) {
	logger, buf := buildTestLogger(t, LevelWarn)

	logger.Debug(context.Background(), "dropped")
	logger.Info(context.Background(), "dropped too")
	assert.Zero(t, buf.Len())

	logger.Warn(context.Background(), "kept")
	assert.Positive(t, buf.Len())
}

func TestLogger_DynamicLevel_SharedByDerived(t *testing.T) {
	logger, buf := buildTestLogger(t, LevelInfo)
	derived := logger.With(slog.String("component", "xcache"))

	leveler, ok := logger.(Leveler)
	require.True(t, ok)
	leveler.SetLevel(LevelError)
	assert.Equal(t, LevelError, leveler.GetLevel())

	derived.Info(context.Background(), "dropped after level change")
	assert.Zero(t, buf.Len())

	derived.Error(context.Background(), "kept")
	line := decodeLine(t, buf)
	assert.Equal(t, "xcache", line["component"])
}

func TestBuilder_WithService_AddsRootAttr(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewBuilder().WithService("rxgate").WithWriter(&buf).Build()
	require.NoError(t, err)

	logger.Info(context.Background(), "boot")
	line := decodeLine(t, &buf)
	assert.Equal(t, "rxgate", line["service"])
}

func TestBuilder_FileOutputWithoutPath_Fails(t *testing.T) {
	_, err := NewBuilder().WithFile(FileOptions{}).Build()
	assert.ErrorIs(t, err, ErrInvalidOutput)
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{" warn ", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"", LevelInfo, false},
		{"verbose", LevelInfo, true},
	}
	for _, tc := range cases {
		got, err := ParseLevel(tc.in)
		if tc.wantErr {
			assert.ErrorIs(t, err, ErrInvalidLevel, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestNop_DiscardsEverything(t *testing.T) {
	logger := Nop()
	// 不应 panic，也不应有任何输出渠道
	logger.Debug(context.Background(), "x")
	logger.Error(nil, "y") //nolint:staticcheck // nil ctx 防御
	assert.NotNil(t, logger.With(slog.String("k", "v")))
}
