package xtrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/omeyang/xtrap/pkg/observability/xmetrics"
)

// operationCounts 按 "operation/status" 汇总 xtrap.operation.total
func operationCounts(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != xmetrics.MetricOperationTotal {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				op, _ := dp.Attributes.Value(attribute.Key("operation"))
				status, _ := dp.Attributes.Value(attribute.Key("status"))
				out[op.AsString()+"/"+status.AsString()] += dp.Value
			}
		}
	}
	return out
}

func TestTrap_Observability(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		_ = mp.Shutdown(context.Background())
	})

	obs, err := xmetrics.NewOTelObserver(xmetrics.WithTracerProvider(tp), xmetrics.WithMeterProvider(mp))
	require.NoError(t, err)

	w := newFakeWatcher()
	w.set(1, sigReadable)
	w.set(2, 0)
	trap, _ := newTestTrap(t, w, WithObserver(obs), WithName("obs"))

	require.NoError(t, trap.AddTrigger(1, sigReadable, ConditionSatisfied, 1))
	assert.ErrorIs(t, trap.AddTrigger(1, sigReadable, ConditionSatisfied, 1), ErrDuplicateContext)

	_, err = trap.Arm()
	require.NoError(t, err)

	require.NoError(t, trap.RemoveTrigger(1))
	require.NoError(t, trap.AddTrigger(2, sigReadable, ConditionSatisfied, 2))
	_, err = trap.Arm()
	require.NoError(t, err)

	w.set(2, sigReadable)
	deliveries := w.commit(2)
	require.Len(t, deliveries, 1)
	deliveries[0]()
	deliveries[0]()
	require.NoError(t, trap.Close())

	assert.Equal(t, map[string]int64{
		"add_trigger/ok":    2,
		"add_trigger/error": 1,
		"arm/blocked":       1,
		"arm/ok":            1,
		"remove_trigger/ok": 1,
		"fire/ok":           1,
		"fire/stale":        1,
		"close/ok":          1,
	}, operationCounts(t, reader))

	spans := exporter.GetSpans()
	require.NotEmpty(t, spans)
	assert.Contains(t, spans[0].Attributes, attribute.String("trap", "obs"))
}
