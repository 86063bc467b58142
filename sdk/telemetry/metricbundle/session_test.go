package metricbundle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestSessionMetrics_RecordsWithManualReader(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(ctx) }()

	m, err := NewSessionMetrics(provider.Meter("test"))
	require.NoError(t, err)

	m.RecordSessionOpened(ctx)
	m.RecordFrameRejected(ctx, "CHECKSUM_MISMATCH")
	m.RecordFrameRejected(ctx, "CHECKSUM_MISMATCH")
	m.RecordDelivery(ctx, "ok", "memory", 1.5)
	m.RecordDelivery(ctx, "dropped", "memory", 0)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	sums := map[string]int64{}
	histCount := map[string]uint64{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			switch data := md.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					sums[md.Name] += dp.Value
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					histCount[md.Name] += dp.Count
				}
			}
		}
	}

	assert.Equal(t, int64(1), sums["fixgate.session.opened"])
	assert.Equal(t, int64(2), sums["fixgate.frame.rejected"])
	assert.Equal(t, int64(2), sums["fixgate.delivery.result"])
	assert.Equal(t, uint64(1), histCount["fixgate.delivery.latency"], "los drops no registran latencia")
}
