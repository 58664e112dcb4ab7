package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/remworker/logger"
)

// InitMeter installs a global meter provider exporting over OTLP HTTP.
// Shut it down on exit to flush the last interval.
func InitMeter(ctx context.Context, cfg Config) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exp, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("metric exporter: %w", err)
	}
	res, err := serviceResource(cfg)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(cfg.Interval))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithResource(res))
	otel.SetMeterProvider(mp)

	logger.Info("metrics enabled", logger.Fields("endpoint", cfg.Endpoint, "interval", cfg.Interval.String()))
	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Job outcomes.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeRejected  = "rejected"
)

// PipelineMetrics holds the worker's instruments. A nil *PipelineMetrics
// records nothing.
type PipelineMetrics struct {
	jobsTotal       metric.Int64Counter
	jobDuration     metric.Float64Histogram
	stageDuration   metric.Float64Histogram
	stageFailures   metric.Int64Counter
	speakersCreated metric.Int64Counter
	speakersMatched metric.Int64Counter
}

// NewPipelineMetrics creates the instruments on meter.
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	m := &PipelineMetrics{}
	var err error

	if m.jobsTotal, err = meter.Int64Counter("jobs.total",
		metric.WithDescription("Recording jobs finished, by outcome"),
	); err != nil {
		return nil, fmt.Errorf("creating jobs.total counter: %w", err)
	}
	if m.jobDuration, err = meter.Float64Histogram("job.duration",
		metric.WithDescription("End-to-end job duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("creating job.duration histogram: %w", err)
	}
	if m.stageDuration, err = meter.Float64Histogram("stage.duration",
		metric.WithDescription("Pipeline stage duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("creating stage.duration histogram: %w", err)
	}
	if m.stageFailures, err = meter.Int64Counter("stage.failures",
		metric.WithDescription("Pipeline stage failures, fatal or not"),
	); err != nil {
		return nil, fmt.Errorf("creating stage.failures counter: %w", err)
	}
	if m.speakersCreated, err = meter.Int64Counter("speakers.created",
		metric.WithDescription("Speaker profiles created"),
	); err != nil {
		return nil, fmt.Errorf("creating speakers.created counter: %w", err)
	}
	if m.speakersMatched, err = meter.Int64Counter("speakers.matched",
		metric.WithDescription("Speaker labels matched to an existing profile"),
	); err != nil {
		return nil, fmt.Errorf("creating speakers.matched counter: %w", err)
	}
	return m, nil
}

// RecordJob records one finished job.
func (m *PipelineMetrics) RecordJob(ctx context.Context, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.jobsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	m.jobDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordStage records one stage run; failed marks it in stage.failures.
func (m *PipelineMetrics) RecordStage(ctx context.Context, stage string, d time.Duration, failed bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("stage", stage))
	m.stageDuration.Record(ctx, d.Seconds(), attrs)
	if failed {
		m.stageFailures.Add(ctx, 1, attrs)
	}
}

// RecordSpeakers adds resolver results.
func (m *PipelineMetrics) RecordSpeakers(ctx context.Context, created, matched int) {
	if m == nil {
		return
	}
	if created > 0 {
		m.speakersCreated.Add(ctx, int64(created))
	}
	if matched > 0 {
		m.speakersMatched.Add(ctx, int64(matched))
	}
}
