package fn

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

// Stage is one step of a flow.
type Stage[In, Out any] func(context.Context, In) Result[Out]

// Run calls the stage and returns its (value, error) pair.
func (s Stage[In, Out]) Run(ctx context.Context, in In) (Out, error) {
	return s(ctx, in).Unwrap()
}

// StageOf turns a (value, error) function into a Stage.
func StageOf[In, Out any](f func(context.Context, In) (Out, error)) Stage[In, Out] {
	return func(ctx context.Context, in In) Result[Out] {
		return FromPair(f(ctx, in))
	}
}

// TracedStage runs stage inside a span named name and marks the span as
// failed when the stage fails.
func TracedStage[In, Out any](name string, stage Stage[In, Out]) Stage[In, Out] {
	tracer := otel.Tracer("pochini/fn")
	return func(ctx context.Context, in In) Result[Out] {
		ctx, span := tracer.Start(ctx, name)
		defer span.End()
		res := stage(ctx, in)
		if err := res.err; err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return res
	}
}
