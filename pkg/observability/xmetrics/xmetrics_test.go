package xmetrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestStart_WithNilObserver_ReturnsNoop(t *testing.T) {
	ctx, span := Start(context.Background(), nil, SpanOptions{Component: "x"})
	require.NotNil(t, ctx)
	require.NotNil(t, span)
	span.End(Result{}) // 不应 panic
}

func TestStart_WithNilContext_Normalizes(t *testing.T) {
	ctx, span := Start(nil, NoopObserver{}, SpanOptions{}) //nolint:staticcheck // nil 防御
	assert.NotNil(t, ctx)
	assert.NotNil(t, span)
}

func TestOTelObserver_RecordsCounterAndDuration(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	obs, err := NewOTelObserver(WithMeterProvider(provider))
	require.NoError(t, err)

	_, span := obs.Start(context.Background(), SpanOptions{
		Component: "xcache",
		Operation: "get",
		Attrs:     []Attr{String("tier", "remote")},
	})
	span.End(Result{Err: errors.New("boom")})
	// End 幂等：第二次调用不应重复计数
	span.End(Result{})

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.NotEmpty(t, rm.ScopeMetrics)

	var totalSeen bool
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "rxgate.operation.total" {
				continue
			}
			totalSeen = true
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			require.Len(t, sum.DataPoints, 1)
			assert.Equal(t, int64(1), sum.DataPoints[0].Value)

			status, ok := sum.DataPoints[0].Attributes.Value("status")
			require.True(t, ok)
			assert.Equal(t, "error", status.AsString())
		}
	}
	assert.True(t, totalSeen, "rxgate.operation.total not recorded")
}

func TestAttrsToOTel_CoversValueTypes(t *testing.T) {
	out := attrsToOTel([]Attr{
		String("s", "v"),
		Bool("b", true),
		Int("i", 1),
		Int64("i64", 2),
		Float64("f", 1.5),
		Duration("d", 1500*time.Millisecond),
		{Key: "other", Value: struct{ A int }{A: 1}},
	})
	assert.Len(t, out, 7)
	assert.Empty(t, attrsToOTel(nil))
}
