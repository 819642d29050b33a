package pageobject

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Step runs fn as a named step of the run. The step is logged when it
// starts, succeeds or fails, traced, and timed. fn's error is returned
// unchanged.
func (r *Run) Step(ctx context.Context, name string, fn func(context.Context) error) error {
	_, err := withStep(ctx, r, "", name, "", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// withStep instruments fn. action is the low cardinality step name used
// for spans and metrics, detail describes the target, e.g. a locator.
func withStep[T any](
	ctx context.Context, r *Run, pageID, action, detail string, fn func(context.Context) (T, error),
) (T, error) {
	name := action
	if detail != "" {
		name += " " + detail
	}
	r.Logger.Debugf("Step", "%s", name)

	ctx, span := r.Tracer.TraceStep(ctx, pageID, action,
		oteltrace.WithAttributes(attribute.String("step.detail", detail)))
	defer span.End()

	start := time.Now()
	v, err := fn(ctx)
	elapsed := time.Since(start)
	r.Metrics.ObserveStep(action, elapsed, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.Logger.Errorf("Step", "%s failed after %s: %v", name, elapsed.Round(time.Millisecond), err)
		return v, err
	}
	span.SetStatus(codes.Ok, "")
	r.Logger.Successf("Step", "%s", name)

	return v, nil
}
