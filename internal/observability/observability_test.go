package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShutdownRunsHandlersInReverse(t *testing.T) {
	var order []string
	s := &ShutdownCoordinator{}
	s.Register("first", func(context.Context) error { order = append(order, "first"); return nil })
	s.Register("second", func(context.Context) error { order = append(order, "second"); return errors.New("boom") })

	err := s.Shutdown(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "second: boom")
	require.Equal(t, []string{"second", "first"}, order)
}

func TestNewWithoutTracingServesMetrics(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	logger := SetupLogger(slog.LevelInfo, "json", &buf)
	obs, err := New(context.Background(), Config{}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = obs.Close(context.Background()) })

	op, _ := StartOperation(context.Background(), obs.Metrics, "put")
	op.End(nil)
	obs.Metrics.Uploads.WithLabelValues("stored").Inc()

	rec := httptest.NewRecorder()
	obs.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `floppy_operation_total{operation="put",status="ok"} 1`)
	require.Contains(t, body, `floppy_uploads_total{result="stored"} 1`)

	obs.Logger.Info("hello")
	require.True(t, strings.HasPrefix(buf.String(), "{"), "json handler expected, got %q", buf.String())
}

func TestOperationWithoutMetrics(t *testing.T) {
	op, ctx := StartOperation(context.Background(), nil, "noop")
	require.NotNil(t, ctx)
	op.End(errors.New("failed"))
}
