package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestMetrics(t *testing.T) (*PipelineMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := NewPipelineMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatal(err)
	}
	return m, reader
}

func collect(t *testing.T, r *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := r.Collect(context.Background(), &rm); err != nil {
		t.Fatal(err)
	}
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumFor(t *testing.T, m metricdata.Metrics, key, value string) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s is %T", m.Name, m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		if key == "" {
			total += dp.Value
			continue
		}
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			total += dp.Value
		}
	}
	return total
}

func TestPipelineMetrics(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordJob(ctx, OutcomeSucceeded, 2*time.Second)
	m.RecordJob(ctx, OutcomeSucceeded, time.Second)
	m.RecordJob(ctx, OutcomeFailed, time.Second)
	m.RecordStage(ctx, "transcribe", time.Second, true)
	m.RecordStage(ctx, "diarize", time.Second, false)
	m.RecordSpeakers(ctx, 2, 1)

	got := collect(t, reader)
	if n := sumFor(t, got["jobs.total"], "outcome", OutcomeSucceeded); n != 2 {
		t.Errorf("succeeded jobs = %d", n)
	}
	if n := sumFor(t, got["jobs.total"], "outcome", OutcomeFailed); n != 1 {
		t.Errorf("failed jobs = %d", n)
	}
	if n := sumFor(t, got["stage.failures"], "stage", "transcribe"); n != 1 {
		t.Errorf("transcribe failures = %d", n)
	}
	if n := sumFor(t, got["stage.failures"], "stage", "diarize"); n != 0 {
		t.Errorf("diarize failures = %d", n)
	}
	if n := sumFor(t, got["speakers.created"], "", ""); n != 2 {
		t.Errorf("created = %d", n)
	}
	if n := sumFor(t, got["speakers.matched"], "", ""); n != 1 {
		t.Errorf("matched = %d", n)
	}
	if _, ok := got["job.duration"].Data.(metricdata.Histogram[float64]); !ok {
		t.Errorf("job.duration missing")
	}
}

func TestNilPipelineMetrics(t *testing.T) {
	var m *PipelineMetrics
	ctx := context.Background()
	m.RecordJob(ctx, OutcomeFailed, time.Second)
	m.RecordStage(ctx, "x", time.Second, true)
	m.RecordSpeakers(ctx, 1, 1)
}

func TestStage(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	m, reader := newTestMetrics(t)
	ctx := context.Background()

	if err := Stage(ctx, m, "persist", func(context.Context) error { return nil }); err != nil {
		t.Fatal(err)
	}
	boom := errors.New("boom")
	if err := Stage(ctx, m, "transcribe", func(context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("Stage returned %v", err)
	}

	spans := rec.Ended()
	if len(spans) != 2 {
		t.Fatalf("spans = %d", len(spans))
	}
	if spans[0].Name() != "stage.persist" || spans[0].Status().Code == codes.Error {
		t.Errorf("persist span = %s %v", spans[0].Name(), spans[0].Status())
	}
	if spans[1].Status().Code != codes.Error {
		t.Errorf("transcribe span status = %v", spans[1].Status())
	}

	got := collect(t, reader)
	if n := sumFor(t, got["stage.failures"], "stage", "transcribe"); n != 1 {
		t.Errorf("transcribe failures = %d", n)
	}
}

func TestConfig(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.ServiceName != "remworker" || cfg.Endpoint != "localhost:4318" || cfg.Interval != 15*time.Second || cfg.SampleRate != 1 {
		t.Errorf("defaults = %+v", cfg)
	}
	cfg.SampleRate = 2
	if err := cfg.Validate(); err == nil {
		t.Error("expected sample rate error")
	}
}

func TestSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want sdktrace.Sampler
	}{
		{1, sdktrace.ParentBased(sdktrace.AlwaysSample())},
		{2, sdktrace.ParentBased(sdktrace.AlwaysSample())},
		{0, sdktrace.ParentBased(sdktrace.NeverSample())},
		{-1, sdktrace.ParentBased(sdktrace.NeverSample())},
		{0.25, sdktrace.ParentBased(sdktrace.TraceIDRatioBased(0.25))},
	}
	for _, tt := range tests {
		if got, want := sampler(tt.rate).Description(), tt.want.Description(); got != want {
			t.Errorf("sampler(%v) = %s, want %s", tt.rate, got, want)
		}
	}
}

func TestInitMeterAndTracer(t *testing.T) {
	cfg := Config{Endpoint: "localhost:4318", Insecure: true}
	cfg.ApplyDefaults()
	ctx := context.Background()

	mp, err := InitMeter(ctx, cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = mp.Shutdown(ctx) }()

	tp, err := InitTracer(ctx, cfg)
	if err != nil {
		t.Fatal(err)
	}
	shutCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	_ = tp.Shutdown(shutCtx)
}
