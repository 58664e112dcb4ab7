package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// Stage runs fn inside a span named "stage.<name>" and records its
// duration and failure on m.
func Stage(ctx context.Context, m *PipelineMetrics, name string, fn func(context.Context) error) error {
	ctx, span := StartSpan(ctx, "stage."+name)
	span.SetAttributes(attribute.String(AttrStage, name))

	start := time.Now()
	err := fn(ctx)
	m.RecordStage(ctx, name, time.Since(start), err != nil)
	EndSpan(span, err)
	return err
}
