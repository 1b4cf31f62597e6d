package metrics_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/sap/ord-directory-server/internal/logging"
	"github.com/sap/ord-directory-server/internal/metrics"
)

func TestMetricsClient(t *testing.T) {
	ctx := context.Background()
	logger, ctx := logging.Configure(ctx, logging.Config{})
	_ = logger

	client, err := metrics.New(ctx, metrics.Config{
		ServiceName: "ord-directory-server-test",
		Port:        19102,
	})
	assert.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	client.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	assert.NoError(t, client.Close())
}

func TestMetricsDedicatedServer(t *testing.T) {
	ctx := context.Background()

	logger, ctx := logging.Configure(ctx, logging.Config{})
	_ = logger

	client, err := metrics.New(ctx, metrics.Config{
		ServiceName: "ord-directory-server-test",
		Port:        19103,
	})
	assert.NoError(t, err)
	defer client.Close()

	err = client.ServeMetrics(ctx)
	assert.NoError(t, err)
}

func TestOperationMetrics_NilSafe(t *testing.T) {
	var ops *metrics.OperationMetrics
	// Recording through a nil *OperationMetrics must not panic; components
	// that run without a metrics client configured still call these.
	ops.RecordOperation(context.Background(), "fetch.clone", "success", 0)
	ops.RecordCount(context.Background(), "cache.hit", 1)
}

func TestOperationMetrics_ContextRoundTrip(t *testing.T) {
	ops, err := metrics.NewOperationMetrics()
	assert.NoError(t, err)

	ctx := metrics.ContextWithOperations(context.Background(), ops)
	assert.Equal(t, ops, metrics.FromContext(ctx))
	assert.Zero(t, metrics.FromContext(context.Background()))
}
