package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"default", func(*Config) {}, ""},
		{"otlp needs endpoint", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "otlp"
		}, "endpoint is required"},
		{"missing service name", func(c *Config) { c.ServiceName = "" }, "service name"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "invalid log level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "invalid log format"},
		{"bad exporter", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "jaeger"
		}, "invalid trace exporter"},
		{"bad sampling", func(c *Config) { c.Tracing.SamplingRate = 2 }, "sampling rate"},
		{"textfile without metrics", func(c *Config) {
			c.Metrics.Enabled = false
			c.Metrics.TextfilePath = "/tmp/x.prom"
		}, "requires metrics"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoggerFieldsAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewLogger(LoggingConfig{Level: "info", Format: "json", Writer: &buf})
	require.NoError(t, err)

	log.NewComponentLogger("runner").WithRunID("r1").WithHost("prod").Info("task done")
	log.Debugf("hidden %d", 1)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "runner", entry["component"])
	assert.Equal(t, "r1", entry["run_id"])
	assert.Equal(t, "prod", entry["host"])
	assert.Equal(t, "task done", entry["message"])
	assert.Equal(t, "info", entry["level"])
}

func TestLoggerContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewLogger(LoggingConfig{Level: "warn", Format: "json", Writer: &buf})
	require.NoError(t, err)

	ctx := log.WithContext(context.Background())
	FromContext(ctx).WithError(errors.New("boom")).Warn("careful")
	assert.Contains(t, buf.String(), `"error":"boom"`)
	assert.NotNil(t, FromContext(context.Background()))
}

func TestMetricsObservations(t *testing.T) {
	m, err := NewMetrics(DefaultConfig().Metrics)
	require.NoError(t, err)

	m.ObserveAPIRequest("GET", "spaces", 200, 10*time.Millisecond)
	m.ObserveAPIRequest("GET", "spaces", 200, 20*time.Millisecond)
	m.ObserveAPIRequest("POST", "spaces", 0, time.Millisecond)
	m.ObserveTask("space", "create", "changed", time.Second)
	m.ObserveRun("completed", 2*time.Second, time.Unix(1700000000, 0))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.apiRequests.WithLabelValues("GET", "spaces", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.apiRequests.WithLabelValues("POST", "spaces", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tasksExecuted.WithLabelValues("space", "create", "changed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsCompleted.WithLabelValues("completed")))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(m.lastRun))
}

func TestMetricsDisabledIsNoop(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: false})
	require.NoError(t, err)

	m.ObserveAPIRequest("GET", "spaces", 200, time.Millisecond)
	m.ObserveTask("space", "noop", "ok", time.Millisecond)
	assert.False(t, m.Enabled())
	assert.Nil(t, m.Registry())
	assert.NoError(t, m.Flush())
	assert.Error(t, m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))

	var nilMetrics *Metrics
	assert.False(t, nilMetrics.Enabled())
}

func TestMetricsWriteTextfile(t *testing.T) {
	m, err := NewMetrics(DefaultConfig().Metrics)
	require.NoError(t, err)
	m.ObserveTask("user", "update", "changed", 50*time.Millisecond)

	path := filepath.Join(t.TempDir(), "qlikcloud.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `qlikcloud_tasks_executed_total{module="user",operation="update",status="changed"} 1`)
}

func TestTracerStdoutExport(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig().Tracing
	cfg.Enabled = true
	cfg.Exporter = "stdout"
	cfg.Writer = &buf

	tr, err := NewTracer(cfg, "qlikcloud", "test", "test", map[string]string{"tenant": "example"})
	require.NoError(t, err)

	ctx, span := tr.Start(context.Background(), "apply")
	assert.NotEmpty(t, TraceID(ctx))
	RecordError(span, errors.New("task failed"))
	span.End()

	require.NoError(t, tr.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), `"Name": "apply"`)
	assert.Contains(t, buf.String(), "task failed")
}

func TestTracerDisabled(t *testing.T) {
	tr, err := NewTracer(TracingConfig{}, "qlikcloud", "test", "test", nil)
	require.NoError(t, err)
	assert.NoError(t, tr.Shutdown(context.Background()))
	assert.Empty(t, TraceID(context.Background()))
}

func TestTelemetryShutdownWritesTextfile(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Logging.Writer = &buf
	cfg.Metrics.TextfilePath = filepath.Join(t.TempDir(), "run.prom")

	tel, err := New(cfg)
	require.NoError(t, err)
	tel.Metrics.ObserveRun("failed", time.Second, time.Now())
	require.NoError(t, tel.Shutdown(context.Background()))

	data, err := os.ReadFile(cfg.Metrics.TextfilePath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `qlikcloud_runs_completed_total{status="failed"} 1`)
}
