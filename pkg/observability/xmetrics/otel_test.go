package xmetrics

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// ============================================================================
// 测试辅助函数
// ============================================================================

func newTestTracerProvider() (*sdktrace.TracerProvider, *tracetest.InMemoryExporter) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	return tp, exporter
}

func newTestMeterProvider() (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return mp, reader
}

func newTestObserver(t *testing.T) (Observer, *tracetest.InMemoryExporter, *sdkmetric.ManualReader) {
	t.Helper()
	tp, exporter := newTestTracerProvider()
	mp, reader := newTestMeterProvider()
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		_ = mp.Shutdown(context.Background())
	})
	obs, err := NewOTelObserver(WithTracerProvider(tp), WithMeterProvider(mp))
	require.NoError(t, err)
	return obs, exporter, reader
}

// counterByStatus 汇总 xtrap.operation.total 中各 status 的计数
func counterByStatus(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	counts := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != MetricOperationTotal {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				status, _ := dp.Attributes.Value(attribute.Key("status"))
				counts[status.AsString()] += dp.Value
			}
		}
	}
	return counts
}

// ============================================================================
// NewOTelObserver
// ============================================================================

func TestNewOTelObserver_Default(t *testing.T) {
	obs, err := NewOTelObserver()
	require.NoError(t, err)
	require.NotNil(t, obs)
}

func TestNewOTelObserver_IgnoresNilOptions(t *testing.T) {
	obs, err := NewOTelObserver(nil, WithTracerProvider(nil), WithMeterProvider(nil), WithInstrumentationName(""))
	require.NoError(t, err)
	require.NotNil(t, obs)
}

func TestOptions(t *testing.T) {
	cfg := &otelConfig{instrumentationName: defaultInstrumentationName}

	WithInstrumentationName("")(cfg)
	assert.Equal(t, defaultInstrumentationName, cfg.instrumentationName)
	WithInstrumentationName("custom")(cfg)
	assert.Equal(t, "custom", cfg.instrumentationName)

	tp, _ := newTestTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	WithTracerProvider(tp)(cfg)
	assert.Same(t, tp, cfg.tracerProvider)

	mp, _ := newTestMeterProvider()
	defer func() { _ = mp.Shutdown(context.Background()) }()
	WithMeterProvider(mp)(cfg)
	assert.Same(t, mp, cfg.meterProvider)
}

// ============================================================================
// Start / End
// ============================================================================

func TestOTelObserver_StartEnd(t *testing.T) {
	obs, exporter, reader := newTestObserver(t)

	ctx, span := obs.Start(context.Background(), SpanOptions{
		Component: "xtrap",
		Operation: "arm",
		Attrs:     []Attr{String("trap", "t1")},
	})
	require.NotNil(t, ctx)
	assert.True(t, trace.SpanFromContext(ctx).SpanContext().IsValid())
	span.End(Result{Attrs: []Attr{Int("blockers", 0)}})

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "xtrap.arm", spans[0].Name)
	assert.Equal(t, trace.SpanKindInternal, spans[0].SpanKind)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)
	assert.Contains(t, spans[0].Attributes, attribute.String("trap", "t1"))
	assert.Contains(t, spans[0].Attributes, attribute.Int("blockers", 0))
	assert.Contains(t, spans[0].Attributes, attribute.String("status", "ok"))

	assert.Equal(t, map[string]int64{"ok": 1}, counterByStatus(t, reader))
}

func TestOTelObserver_StartDefaults(t *testing.T) {
	obs, exporter, _ := newTestObserver(t)

	//nolint:staticcheck // 验证 nil ctx 兜底
	ctx, span := obs.Start(nil, SpanOptions{})
	require.NotNil(t, ctx)
	span.End(Result{})

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "unknown.unknown", spans[0].Name)
}

func TestOTelSpan_EndWithError(t *testing.T) {
	obs, exporter, reader := newTestObserver(t)

	_, span := obs.Start(context.Background(), SpanOptions{Component: "xtrap", Operation: "add_trigger"})
	span.End(Result{Err: errors.New("boom")})

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "boom", spans[0].Status.Description)
	assert.NotEmpty(t, spans[0].Events)
	assert.Equal(t, map[string]int64{"error": 1}, counterByStatus(t, reader))
}

func TestOTelSpan_CustomStatus(t *testing.T) {
	obs, exporter, reader := newTestObserver(t)

	_, span := obs.Start(context.Background(), SpanOptions{Component: "xtrap", Operation: "arm"})
	span.End(Result{Status: StatusBlocked})

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)
	assert.Contains(t, spans[0].Attributes, attribute.String("status", "blocked"))
	assert.Equal(t, map[string]int64{"blocked": 1}, counterByStatus(t, reader))
}

func TestOTelSpan_EndIdempotent(t *testing.T) {
	obs, exporter, reader := newTestObserver(t)

	_, span := obs.Start(context.Background(), SpanOptions{Component: "xtrap", Operation: "close"})
	span.End(Result{})
	span.End(Result{Err: errors.New("ignored")})

	assert.Len(t, exporter.GetSpans(), 1)
	assert.Equal(t, map[string]int64{"ok": 1}, counterByStatus(t, reader))
}

func TestOTelSpan_EndNil(t *testing.T) {
	var span *otelSpan
	assert.NotPanics(t, func() { span.End(Result{}) })
}

func TestOTelSpan_EndAfterCancel(t *testing.T) {
	obs, _, reader := newTestObserver(t)

	ctx, cancel := context.WithCancel(context.Background())
	_, span := obs.Start(ctx, SpanOptions{Component: "xtrap", Operation: "fire"})
	cancel()
	span.End(Result{})

	assert.Equal(t, map[string]int64{"ok": 1}, counterByStatus(t, reader))
}

func TestOTelObserver_Concurrent(t *testing.T) {
	obs, exporter, reader := newTestObserver(t)

	const n = 50
	var wg sync.WaitGroup
	for range n {
		wg.Go(func() {
			_, span := obs.Start(context.Background(), SpanOptions{Component: "xtrap", Operation: "fire"})
			span.End(Result{})
		})
	}
	wg.Wait()

	assert.Len(t, exporter.GetSpans(), n)
	assert.Equal(t, map[string]int64{"ok": n}, counterByStatus(t, reader))
}

// ============================================================================
// 内部函数
// ============================================================================

func TestResolveStatus(t *testing.T) {
	tests := []struct {
		name   string
		result Result
		want   Status
	}{
		{"empty", Result{}, StatusOK},
		{"error", Result{Err: errors.New("x")}, StatusError},
		{"explicit wins", Result{Status: StatusStale, Err: errors.New("x")}, "stale"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveStatus(tt.result))
		})
	}
}

func TestMapSpanKind(t *testing.T) {
	assert.Equal(t, trace.SpanKindInternal, mapSpanKind(KindInternal))
	assert.Equal(t, trace.SpanKindProducer, mapSpanKind(KindProducer))
	assert.Equal(t, trace.SpanKindConsumer, mapSpanKind(KindConsumer))
	assert.Equal(t, trace.SpanKindInternal, mapSpanKind(Kind(99)))
}

func TestToKeyValue(t *testing.T) {
	tests := []struct {
		attr Attr
		want attribute.KeyValue
	}{
		{String("s", "v"), attribute.String("s", "v")},
		{Bool("b", true), attribute.Bool("b", true)},
		{Int("i", 3), attribute.Int("i", 3)},
		{Attr{Key: "i64", Value: int64(4)}, attribute.Int64("i64", 4)},
		{Uint64("u", 5), attribute.Int64("u", 5)},
		{Uint64("big", math.MaxUint64), attribute.String("big", "18446744073709551615")},
		{Attr{Key: "f", Value: 1.5}, attribute.Float64("f", 1.5)},
		{Attr{Key: "other", Value: struct{ A int }{1}}, attribute.String("other", "{1}")},
	}
	for _, tt := range tests {
		t.Run(tt.attr.Key, func(t *testing.T) {
			assert.Equal(t, tt.want, toKeyValue(tt.attr))
		})
	}
}

func TestAttrsToOTel_SkipsInvalid(t *testing.T) {
	assert.Nil(t, attrsToOTel(nil))
	got := attrsToOTel([]Attr{{Key: "", Value: "x"}, {Key: "nil"}, String("ok", "v")})
	assert.Equal(t, []attribute.KeyValue{attribute.String("ok", "v")}, got)
}
