// Package observability wires OpenTelemetry metrics and traces for the
// worker.
//
//	mp, err := observability.InitMeter(ctx, cfg)
//	defer mp.Shutdown(ctx)
//
//	metrics, err := observability.NewPipelineMetrics(observability.Meter("remworker"))
//	err = observability.Stage(ctx, metrics, "transcribe", func(ctx context.Context) error { ... })
package observability
